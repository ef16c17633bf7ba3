package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/bkuiper/adwatch"
	"github.com/bkuiper/adwatch/goquery"
	"github.com/bkuiper/adwatch/rod"
	"github.com/bkuiper/adwatch/scrape"
	adwatchslog "github.com/bkuiper/adwatch/slog"
	"github.com/bkuiper/adwatch/sqlite"
)

// defaultListURL is the newest-first car listing page watched when no URL is
// configured.
const defaultListURL = "https://www.2dehands.be/l/autos/#Language:all-languages|sortBy:SORT_INDEX|sortOrder:DECREASING"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	m := NewMain()

	if err := m.Run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Main represents the program.
type Main struct {
	// Database path. Set before calling Run().
	DBPath string

	// SQLite database used by SQLite service implementations.
	DB *sqlite.DB

	// Services for end-to-end testing.
	State   adwatch.StateService
	Service adwatch.ListingService
}

// NewMain returns a new instance of Main with defaults.
func NewMain() *Main {
	return &Main{
		DBPath: defaultDBPath(),
	}
}

// Close gracefully stops the program.
func (m *Main) Close() error {
	if m.DB != nil {
		return m.DB.Close()
	}
	return nil
}

// Run executes the CLI with the given arguments.
func (m *Main) Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	deps := &Dependencies{
		Ctx:    ctx,
		Stdout: stdout,
		Stderr: stderr,
	}

	cli := &CLI{}
	parser, err := kong.New(cli,
		kong.Name("adwatch"),
		kong.Writers(stdout, stderr),
		kong.Exit(func(int) {}), // Don't exit on help
		kong.Bind(deps),
		kong.Vars{"default_list_url": defaultListURL},
	)
	if err != nil {
		return fmt.Errorf("failed to create parser: %w", err)
	}

	if len(args) == 0 {
		_, _ = parser.Parse([]string{"--help"})
		return fmt.Errorf("no command specified. Run 'adwatch --help' to see available commands")
	}

	cmd := args[0]
	if cmd == "help" || cmd == "--help" || cmd == "-h" {
		_, _ = parser.Parse([]string{"--help"})
		return nil
	}

	kongCtx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	level := slog.LevelInfo
	if cli.Verbose {
		level = slog.LevelDebug
	}
	deps.Logger = slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	// Open database
	m.DB = sqlite.NewDB(m.DBPath)
	if err := m.DB.Open(); err != nil {
		fmt.Fprintf(stderr, "Hint: Set ADWATCH_DB to use a different database path\n")
		return fmt.Errorf("failed to open database at %q: %w", m.DBPath, err)
	}
	defer m.Close()

	m.State = sqlite.NewStateService(m.DB)
	deps.DB = m.DB

	// Both commands drive a browser; wire the full scraping pipeline.
	if cmd == "serve" || cmd == "scan" {
		flags := cli.Scan.ScrapeFlags
		if cmd == "serve" {
			flags = cli.Serve.ScrapeFlags
		}

		manager := rod.NewManager(rod.WithMaxRequests(int64(flags.MaxRequests)))
		loader := rod.NewLoader(manager,
			rod.WithNavTimeout(flags.NavTimeout),
			rod.WithCookieStore(m.State),
			rod.WithLogger(deps.Logger),
		)
		defer func() {
			if err := loader.Close(); err != nil {
				deps.Logger.Error("closing browser", "err", err)
			}
		}()

		scraper := &scrape.Scraper{
			Loader:    adwatchslog.NewLoggingLoader(loader, deps.Logger),
			Extractor: goquery.NewScanner(),
			State:     m.State,
			Logger:    deps.Logger,
		}
		m.Service = adwatchslog.NewLoggingService(scraper, deps.Logger)
		deps.Service = m.Service
	}

	if cmd == "serve" {
		deps.Pacer = scrape.NewIntervalPacer(cli.Serve.MinInterval, cli.Serve.JitterMin, cli.Serve.JitterMax)
	}

	return kongCtx.Run(deps)
}

func defaultDBPath() string {
	if path := os.Getenv("ADWATCH_DB"); path != "" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "adwatch.db"
	}
	dir := filepath.Join(home, ".adwatch")
	_ = os.MkdirAll(dir, 0755)
	return filepath.Join(dir, "adwatch.db")
}
