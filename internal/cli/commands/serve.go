package commands

import (
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/askdb/internal/server"
)

// ServeOptions holds options for the serve command.
type ServeOptions struct {
	Addr          string
	TranslateOnly bool
}

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start an HTTP server exposing the ask pipeline.

Endpoints:
  GET  /healthz             Liveness probe
  GET  /api/schema/tables   Tables in the current snapshot
  POST /api/ask             Translate a question; executes unless dry_run is set

The server watches the local schema snapshot and hot-swaps it when another
process rebuilds it (askdb schema build).`,
		Example: `  # Serve on the configured address (default :8765)
  askdb serve

  # Custom address
  askdb serve --addr 127.0.0.1:9000

  # Translate and validate without touching the database
  askdb serve --translate-only`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "Listen address (default: server.addr from config)")
	cmd.Flags().BoolVar(&opts.TranslateOnly, "translate-only", false, "Translate and validate without executing SQL")

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	translator, err := cmdCtx.Translator()
	if err != nil {
		return err
	}

	cfg := cmdCtx.Cfg
	addr := cfg.Server.Addr
	if opts.Addr != "" {
		addr = opts.Addr
	}

	// Request logs are useful even without --verbose, so the server gets its
	// own info-level logger instead of the CLI's warn-level one.
	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	// Warm the snapshot so the first request doesn't pay for introspection.
	if _, err := cmdCtx.Registry.Ensure(cmd.Context(), cmdCtx.Build); err != nil {
		return err
	}

	provider := cmdCtx.Provider
	if opts.TranslateOnly {
		provider = nil
	}

	srv := server.New(server.Config{
		Addr:     addr,
		Timeout:  time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
		RowLimit: cfg.Translate.RowLimit,
	}, server.Dependencies{
		Translator: translator,
		Registry:   cmdCtx.Registry,
		Build:      cmdCtx.Build,
		Provider:   provider,
		WatchPath:  cmdCtx.SchemaCachePath(),
		Logger:     logger,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := cmdCtx.Renderer
	r.Printf("Serving on %s\n", serverURL(addr))
	r.Println("Press Ctrl+C to stop")

	return srv.Serve(ctx)
}

// serverURL renders a listen address as something clickable.
func serverURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "http://localhost" + addr
	}
	return "http://" + addr
}
