// Package adwatch watches a dynamically-rendered classifieds listing page
// and reports the first organic (non-promoted) entry as a structured record,
// with derived fields (year, mileage, fuel, transmission, body style)
// classified from free-text attributes.
//
// This package contains domain types and interfaces following Ben Johnson's
// Standard Package Layout. Implementations live in subdirectories named
// after their primary dependency (e.g., rod/, goquery/, sqlite/).
package adwatch
