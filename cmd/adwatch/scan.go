package main

import (
	"encoding/json"
	"fmt"

	"github.com/bkuiper/adwatch"
)

// Run executes the scan command: one scrape, result as JSON on stdout.
func (c *ScanCmd) Run(deps *Dependencies) error {
	listing, err := deps.Service.Latest(deps.Ctx, c.URL)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", adwatch.ErrorMessage(err))
		return err
	}

	enc := json.NewEncoder(deps.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(listing)
}
