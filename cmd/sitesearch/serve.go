package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nao1215/sitesearch/internal/config"
	"github.com/nao1215/sitesearch/internal/database"
	"github.com/nao1215/sitesearch/internal/server"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve searches over HTTP",
		Long: `Serve starts an HTTP server that runs searches on request.

Endpoints:
  GET /search?url=<start-url>&query=<text>&depth=<n>
      Crawl the site and return the report as JSON. depth defaults to 2.
      A missing or blank query returns 400 {"error":"query parameter is required"}.
  GET /reports/{id}
      Return a saved report (disabled with --no-save).
  GET /healthz
      Liveness probe.

The server shuts down gracefully on SIGINT or SIGTERM.

Examples:
  # Listen on the default address (:8080)
  sitesearch serve

  # Listen on localhost only and stop searches after 30 seconds
  sitesearch serve -a 127.0.0.1:9000 --request-timeout 30s

  curl "http://localhost:8080/search?url=https://go.dev/&query=generics&depth=1"`,
		Args: cobra.NoArgs,
		RunE: runServeCmd,
	}

	cmd.Flags().StringP("addr", "a", config.DefaultListenAddress,
		"Address to listen on")
	cmd.Flags().Duration("request-timeout", config.DefaultRequestTimeout,
		"Maximum duration of one search; partial results are returned when it expires")

	// Crawl behavior flags shared with the search command
	cmd.Flags().IntP("concurrency", "n", config.DefaultConcurrency,
		"Number of pages fetched at the same time per search")
	cmd.Flags().IntP("max-pages", "p", config.DefaultMaxPages,
		"Maximum number of pages fetched per search (0 = no limit)")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each HTTP request")
	cmd.Flags().String("proxy", "",
		"Route requests through a SOCKS5 proxy (e.g., 127.0.0.1:1080)")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header sent with every request")
	cmd.Flags().Bool("no-save", false,
		"Do not record searches in the history database")

	return cmd
}

// runServeCmd executes the serve command.
func runServeCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildServeConfig(cmd)
	if err != nil {
		return err
	}

	if err := cfg.ValidateServe(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger, err := setupLogger(cmd.ErrOrStderr(), cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runServe(ctx, cfg, cmd.OutOrStdout(), logger)
}

// buildServeConfig creates a Config from cobra command flags.
func buildServeConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()

	if err := applyGlobalFlags(cmd, cfg); err != nil {
		return nil, err
	}

	var err error
	flags := cmd.Flags()

	if cfg.ListenAddress, err = flags.GetString("addr"); err != nil {
		return nil, err
	}
	if cfg.RequestTimeout, err = flags.GetDuration("request-timeout"); err != nil {
		return nil, err
	}
	if cfg.Concurrency, err = flags.GetInt("concurrency"); err != nil {
		return nil, err
	}
	if cfg.MaxPages, err = flags.GetInt("max-pages"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.ProxyAddress, err = flags.GetString("proxy"); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
		return nil, err
	}

	noSave, err := flags.GetBool("no-save")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noSave

	return cfg, nil
}

// runServe runs the HTTP server until ctx is cancelled.
func runServe(ctx context.Context, cfg *config.Config, out io.Writer, logger *slog.Logger) error {
	if err := checkProxy(cfg.ProxyAddress); err != nil {
		return err
	}

	opts := []server.Option{
		server.WithRequestTimeout(cfg.RequestTimeout),
		server.WithLogger(logger),
	}

	if cfg.SaveToDB {
		db, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		opts = append(opts, server.WithStore(db))
	}

	srv := server.New(newServiceFactory(cfg, logger), opts...)

	return srv.Run(ctx, cfg.ListenAddress, func(addr net.Addr) {
		fmt.Fprintf(out, "Listening on http://%s\n", addr)
	})
}
