package main

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/bkuiper/adwatch"
	"github.com/bkuiper/adwatch/sqlite"
)

// Dependencies holds all services and configuration for command execution.
type Dependencies struct {
	Ctx     context.Context
	Stdout  io.Writer
	Stderr  io.Writer
	Logger  *slog.Logger
	DB      *sqlite.DB
	Service adwatch.ListingService
	Pacer   adwatch.Pacer
}

// CLI defines the command-line interface structure for Kong.
type CLI struct {
	Verbose bool `short:"v" help:"Enable debug logging"`

	Serve ServeCmd `cmd:"" help:"Serve the latest-listing endpoint over HTTP"`
	Scan  ScanCmd  `cmd:"" help:"Scrape once and print the latest listing as JSON"`
}

// ScrapeFlags are shared by every command that runs the scraper.
type ScrapeFlags struct {
	URL         string        `env:"ADWATCH_LIST_URL" default:"${default_list_url}" help:"Listing page URL to watch"`
	NavTimeout  time.Duration `env:"ADWATCH_NAV_TIMEOUT" default:"20s" help:"Per-navigation time budget"`
	MaxRequests int           `env:"ADWATCH_MAX_REQUESTS" default:"75" help:"Pages served before the browser is recycled"`
}

// ServeCmd is the "serve" subcommand.
type ServeCmd struct {
	ScrapeFlags `embed:""`

	Addr        string        `env:"ADWATCH_ADDR" default:":3000" help:"HTTP listen address"`
	MinInterval time.Duration `env:"ADWATCH_MIN_INTERVAL" default:"1m" help:"Minimum interval between scrapes"`
	JitterMin   time.Duration `env:"ADWATCH_JITTER_MIN" default:"500ms" help:"Lower bound of the pre-scrape delay"`
	JitterMax   time.Duration `env:"ADWATCH_JITTER_MAX" default:"2500ms" help:"Upper bound of the pre-scrape delay"`
}

// ScanCmd is the "scan" subcommand.
type ScanCmd struct {
	ScrapeFlags `embed:""`
}
