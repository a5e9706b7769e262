package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vango-dev/synthdesk/internal/config"
	"github.com/vango-dev/synthdesk/internal/metrics"
	"github.com/vango-dev/synthdesk/internal/web"
	"github.com/vango-dev/synthdesk/pkg/app"
)

func serveCmd(load func() (*config.Config, error)) *cobra.Command {
	var (
		addr  string
		start string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard",
		Long: `Serve the dashboard over HTTP.

The server connects to the platform API and WebSocket feed named in
the config and renders pages on request. Metrics are exposed at
/metrics and a health check at /healthz.

Examples:
  synthdesk serve
  synthdesk serve --addr=:9090
  synthdesk serve --config=prod.yaml --start=/dashboard`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			return runServe(cmd.Context(), cfg, start)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (default from config)")
	cmd.Flags().StringVar(&start, "start", "/", "Path to open before serving")

	return cmd
}

func runServe(ctx context.Context, cfg *config.Config, start string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := cfg.NewLogger(os.Stderr)
	m := metrics.New()

	a, err := app.New(cfg, app.WithLogger(logger), app.WithMetrics(m))
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Start(ctx); err != nil {
		return err
	}
	if err := a.Navigate(ctx, start); err != nil {
		return err
	}

	success("synthdesk %s", version)
	info("API:    %s", cfg.API.BaseURL)
	info("Socket: %s", cfg.Socket.URL)
	info("Listen: %s", cfg.Server.Addr)

	srv, err := web.New(a, web.WithLogger(logger.With("component", "web")))
	if err != nil {
		return err
	}
	return srv.ListenAndServe(ctx, cfg.Server.Addr)
}
