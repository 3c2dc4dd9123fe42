package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/lazercorn/anecdote"
	"github.com/lazercorn/anecdote/bus"
	"github.com/lazercorn/anecdote/config"
	"github.com/lazercorn/anecdote/fetch"
	anecquery "github.com/lazercorn/anecdote/goquery"
	anecresty "github.com/lazercorn/anecdote/resty"
	anecslog "github.com/lazercorn/anecdote/slog"
)

func main() {
	ctx := context.Background()

	m := NewMain()

	if err := m.Run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Main represents the program.
type Main struct {
	// Broker carries events between fetch services and commands.
	Broker *bus.Broker

	// Transport issues page requests for every service.
	Transport anecdote.Transport

	// Services holds one fetch service per configured site, keyed by
	// site ID.
	Services map[string]*fetch.Service
}

// NewMain returns a new instance of Main with defaults.
func NewMain() *Main {
	return &Main{
		Services: make(map[string]*fetch.Service),
	}
}

// Close gracefully stops the program.
func (m *Main) Close() error {
	for _, svc := range m.Services {
		svc.Close()
	}
	if m.Broker != nil {
		m.Broker.Close()
	}
	if m.Transport != nil {
		return m.Transport.Close()
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
		kong.Name("anecdote"),
		kong.Description("Incrementally fetch records from paginated listing sites."),
		kong.Writers(stdout, stderr),
		kong.Exit(func(int) {}), // Don't exit on help
		kong.Bind(deps),
	)
	if err != nil {
		return fmt.Errorf("failed to create parser: %w", err)
	}

	if len(args) == 0 {
		_, _ = parser.Parse([]string{"--help"})
		return fmt.Errorf("no command specified. Run 'anecdote --help' to see available commands")
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

	cfg, err := config.Load(cli.Config)
	if err != nil {
		fmt.Fprintf(stderr, "Hint: Set ANECDOTE_CONFIG or pass --config to use a different config file\n")
		return fmt.Errorf("failed to load config at %q: %w", cli.Config, err)
	}
	deps.Config = cfg

	var transportOpts []anecresty.Option
	if cfg.UserAgent != "" {
		transportOpts = append(transportOpts, anecresty.WithUserAgent(cfg.UserAgent))
	}
	if cfg.TimeoutSeconds > 0 {
		transportOpts = append(transportOpts, anecresty.WithTimeout(time.Duration(cfg.TimeoutSeconds)*time.Second))
	}

	var transport anecdote.Transport = anecresty.NewTransport(transportOpts...)
	var extractor anecdote.Extractor = anecquery.NewExtractor()
	if cli.Verbose {
		logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
		transport = anecslog.NewLoggingTransport(transport, logger)
		extractor = anecslog.NewLoggingExtractor(extractor, logger)
	}
	m.Transport = transport

	m.Broker = bus.New()
	deps.Broker = m.Broker

	var serviceOpts []fetch.Option
	if cfg.RequestsPerSecond > 0 {
		serviceOpts = append(serviceOpts, fetch.WithHostLimiter(fetch.NewHostLimiter(cfg.RequestsPerSecond)))
	}

	for _, site := range cfg.SiteDescriptors() {
		svc, err := fetch.NewService(site, transport, extractor, m.Broker, serviceOpts...)
		if err != nil {
			return fmt.Errorf("failed to start service for site %q: %w", site.ID, err)
		}
		m.Services[site.ID] = svc
	}
	deps.Services = m.Services
	defer m.Close()

	return kongCtx.Run(deps)
}
