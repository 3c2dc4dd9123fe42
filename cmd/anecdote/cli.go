package main

import (
	"context"
	"io"
	"time"

	"github.com/lazercorn/anecdote/bus"
	"github.com/lazercorn/anecdote/config"
	"github.com/lazercorn/anecdote/fetch"
)

// Dependencies holds all services and configuration for command execution.
type Dependencies struct {
	Ctx      context.Context
	Stdout   io.Writer
	Stderr   io.Writer
	Config   *config.Config
	Broker   *bus.Broker
	Services map[string]*fetch.Service
}

// CLI defines the command-line interface structure for Kong.
type CLI struct {
	Config  string `short:"c" env:"ANECDOTE_CONFIG" default:"anecdote.yaml" help:"Path to the config file"`
	Verbose bool   `short:"v" help:"Enable debug logging"`

	Sites SitesCmd `cmd:"" help:"List configured sites"`
	Fetch FetchCmd `cmd:"" help:"Fetch listing pages from a site"`
}

// SitesCmd is the "sites" subcommand.
type SitesCmd struct{}

// FetchCmd is the "fetch" subcommand.
type FetchCmd struct {
	Site   string        `arg:"" optional:"" help:"Site ID to fetch"`
	Pages  int           `short:"n" default:"1" help:"Number of pages to load"`
	Offset int           `help:"Item offset to start from"`
	All    bool          `help:"Load the first page of every configured site"`
	Wait   time.Duration `default:"15s" help:"How long to wait for each page"`
}
