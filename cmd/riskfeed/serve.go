package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/cuemby/riskfeed/pkg/aggregator"
	"github.com/cuemby/riskfeed/pkg/api"
	"github.com/cuemby/riskfeed/pkg/events"
	"github.com/cuemby/riskfeed/pkg/log"
	"github.com/cuemby/riskfeed/pkg/metrics"
	"github.com/cuemby/riskfeed/pkg/query"
	"github.com/cuemby/riskfeed/pkg/scheduler"
	"github.com/cuemby/riskfeed/pkg/storage"
	"github.com/cuemby/riskfeed/pkg/synth"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the feed and the HTTP API",
	Long: `Open (and on first run seed) the database, start the synthesis feed
and serve the query API and push streams until interrupted.

The seed file is only read when the database holds no alerts. Generate one
with "riskfeed seed generate".`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("data-dir", "", "Data directory (default ./data)")
	serveCmd.Flags().String("seed-file", "", "Seed file for an empty database (default <data-dir>/seed.json)")
	serveCmd.Flags().String("api-addr", "", "HTTP listen address (default 127.0.0.1:4000)")
	serveCmd.Flags().Duration("interval", 0, "Synthesis interval (default 8s)")
	serveCmd.Flags().Uint64("seed", 0, "Random seed for synthesis (0 = time based)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := log.WithComponent("serve")
	metrics.SetVersion(Version)

	store, err := storage.Initialize(cfg.DBPath(), storage.SeedFromFile(cfg.SeedPath()))
	if err != nil {
		logger.Fatal().Err(err).Str("db", cfg.DBPath()).Str("seed", cfg.SeedPath()).Msg("Failed to initialize store")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close store")
		}
	}()
	metrics.UpdateComponent(metrics.ComponentStorage, true, "")

	agg := aggregator.New(store)
	hub := events.NewHub(agg.Snapshot, events.WithBufferSize(cfg.StreamBuffer))
	feed := scheduler.NewScheduler(synth.New(store, synth.WithSeed(cfg.Seed)), hub, cfg.Interval)
	collector := metrics.NewCollector(store, metrics.DefaultCollectInterval)

	server := api.NewServer(
		query.NewService(store, agg),
		hub,
		api.WithFeed(feed),
		api.WithStreamRateLimit(cfg.StreamRateLimit, cfg.StreamBurst),
		api.WithWriteTimeout(cfg.WriteTimeout),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	collector.Start()
	feed.Start()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.Start(cfg.APIAddr); err != nil {
			return fmt.Errorf("API server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("Shutting down")

		feed.Stop()
		collector.Stop()
		// Closing the hub ends open streams so Shutdown can drain
		hub.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shutdown server gracefully: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info().Msg("Shutdown complete")
	return nil
}
