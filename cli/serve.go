package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/safedep/dry/log"
	"github.com/safedep/gatekeeper/core/audit"
	"github.com/safedep/gatekeeper/dispatch"
	"github.com/safedep/gatekeeper/gateway"
	"github.com/safedep/gatekeeper/internal/version"
	"github.com/safedep/gatekeeper/metrics"
	"github.com/safedep/gatekeeper/pipeline"
	"github.com/safedep/gatekeeper/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout   = 10 * time.Second
	retentionInterval = time.Hour
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	var apiOnly bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gatekeeper",
		Long: `Run the gatekeeper.

Connects to the platform bridge at gateway.url, evaluates every member
join against its guild policy and acts on the verdict. The operator API
and /metrics are served on server.addr.

The process exits when the bridge connection is lost so that a
supervisor can restart it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return withStore(ctx, func(app *App) error {
				return serve(ctx, app, apiOnly)
			})
		},
	}

	cmd.Flags().BoolVar(&apiOnly, "api-only", false, "serve the operator API without connecting to the bridge")

	return cmd
}

func serve(ctx context.Context, app *App, apiOnly bool) error {
	cfg := app.Config

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	engine := app.NewEngine(m)

	var client *gateway.Client
	if !apiOnly {
		if cfg.Gateway.URL == "" {
			return ErrConfig("gateway.url is not configured", nil)
		}

		var err error
		client, err = gateway.Dial(ctx, gateway.Config{
			URL:            cfg.Gateway.URL,
			Token:          cfg.Gateway.Token,
			RequestTimeout: cfg.Gateway.RequestTimeout,
			EventBuffer:    cfg.Engine.QueueSize,
			Metrics:        m,
		})
		if err != nil {
			return ErrPlatform("failed to connect to gateway", err)
		}
		defer client.Close()
	}

	ready := func() bool {
		return client != nil && client.Err() == nil
	}

	httpServer := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: server.New(server.Config{
			Engine:   engine,
			Store:    app.Store,
			Gatherer: registry,
			Token:    cfg.Server.Token,
			Version:  version.Version,
			Ready:    ready,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Infof("operator API listening on %s", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("operator API failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		return httpServer.Shutdown(shutdownCtx)
	})

	if client != nil {
		dispatcher := dispatch.New(client, dispatch.StaticChannels(cfg.Moderation.Channels), app.Store, dispatch.Options{
			AnnounceBlocks: cfg.Moderation.AnnounceBlocks,
			Metrics:        m,
		})

		p := pipeline.New(engine, dispatcher, pipeline.Config{
			Workers:   cfg.Engine.Workers,
			QueueSize: cfg.Engine.QueueSize,
			Metrics:   m,
		})

		g.Go(func() error {
			if err := p.Run(gctx, client.Events()); err != nil {
				return err
			}
			if gctx.Err() != nil {
				return nil
			}

			stats := p.Stats()
			log.Warnf("gateway connection ended after %d joins (%d dropped)", stats.Processed, stats.Dropped)
			return ErrPlatform("gateway connection lost", client.Err())
		})
	}

	g.Go(func() error {
		runRetention(gctx, app, retentionInterval)
		return nil
	})

	err := g.Wait()
	log.Infof("gatekeeper stopped")

	return err
}

// runRetention prunes expired audit records on start and then on every
// tick until ctx is done.
func runRetention(ctx context.Context, app *App, interval time.Duration) {
	retention := audit.NewRetentionPolicy(app.Config.Storage.RetentionDays)
	if !retention.IsEnabled() {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		cutoff := retention.CutoffTime(time.Now())
		deleted, err := app.Store.DeleteAuditsBefore(ctx, cutoff)
		switch {
		case err != nil && ctx.Err() == nil:
			log.Errorf("failed to prune audit records: %v", err)
		case deleted > 0:
			log.Infof("pruned %d audit records older than %s", deleted, cutoff.Format(time.RFC3339))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
