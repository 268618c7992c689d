package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"energycalc/internal/amqp"
	"energycalc/internal/cache"
	"energycalc/internal/cli"
	"energycalc/internal/log"
	"energycalc/internal/worker"
)

var workerStatsInterval time.Duration

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume entry events and keep running totals per session",
	Long: `Consumes the entry events published by the server and folds them into
running per-session totals. Requires AMQP_URL.`,
	RunE: runWorker,
}

func init() {
	workerCmd.Flags().DurationVar(&workerStatsInterval, "stats-interval", time.Minute, "how often to log consumer statistics")
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	if !cfg.EventsEnabled() {
		return errors.New("worker requires AMQP_URL")
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		return fmt.Errorf("connecting to AMQP: %w", err)
	}
	defer client.Close()

	w := worker.NewTotalsWorker(cfg.MaxSessions, cfg.SessionTTL, logger)

	manager := cache.NewManager(logger.WithComponent(log.ComponentCache).Logger)
	manager.Register("worker_sessions", w.Cache())
	manager.StartCleanup(5 * time.Minute)
	defer manager.Stop()

	ctx, cancel := cli.GracefulShutdown(cmd.Context(), logger)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Consuming entry events", "queue", cfg.AMQPQueue)
		err := client.ConsumeEntryAppended(ctx, w.HandleEntryAppended)
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("consuming entry events: %w", err)
		}
		return nil
	})
	if workerStatsInterval > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(workerStatsInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					logger.Info("Worker stats", "processed", w.Processed(), "duplicates", w.Duplicates())
				}
			}
		})
	}

	err = g.Wait()
	logger.Info("Worker stopped", "processed", w.Processed(), "duplicates", w.Duplicates())
	return err
}
