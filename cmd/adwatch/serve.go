package main

import (
	"fmt"

	adwatchhttp "github.com/bkuiper/adwatch/http"
)

// Run executes the serve command. It blocks until the context is cancelled.
func (c *ServeCmd) Run(deps *Dependencies) error {
	server := adwatchhttp.NewServer(deps.Service)
	server.Addr = c.Addr
	server.DefaultListURL = c.URL
	server.Pacer = deps.Pacer
	server.Logger = deps.Logger

	if err := server.Open(); err != nil {
		return fmt.Errorf("failed to start server on %q: %w", c.Addr, err)
	}

	deps.Logger.Info("listening", "addr", c.Addr, "listUrl", c.URL)
	fmt.Fprintf(deps.Stdout, "adwatch listening on %s\n", c.Addr)

	<-deps.Ctx.Done()

	deps.Logger.Info("shutting down")
	return server.Close()
}
