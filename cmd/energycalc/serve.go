package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"energycalc/internal/amqp"
	"energycalc/internal/backend"
	"energycalc/internal/cache"
	"energycalc/internal/catalog"
	"energycalc/internal/cli"
	apphttp "energycalc/internal/http"
	"energycalc/internal/log"
	"energycalc/internal/services"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the calculator web server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}

	cat, err := catalog.Load(cfg.CatalogFile)
	if err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	factory := backend.NewFactory(logger.WithComponent(log.ComponentBackend).Logger)
	res, err := factory.CreateBackend(cmd.Context(), backendCfg)
	if err != nil {
		return fmt.Errorf("creating session backend: %w", err)
	}
	defer func() {
		if err := res.Close(); err != nil {
			logger.Warn("Backend cleanup failed", log.FieldError, err)
		}
	}()

	// Entry events are optional; the calculator works without a broker.
	var publisher services.EntryPublisher
	if cfg.EventsEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Entry events disabled, AMQP unavailable", log.FieldError, err)
		} else {
			defer client.Close()
			publisher = client
			logger.Info("Publishing entry events", "exchange", cfg.AMQPExchange)
		}
	}

	svc := services.NewSessionService(res.Backend, cat, publisher, logger)

	caches := make(map[string]cache.Cleaner)
	if res.Cleaner != nil {
		caches["sessions"] = res.Cleaner
	}
	srv := apphttp.NewServer(apphttp.Config{
		Addr:               cfg.Addr(),
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		SessionTTL:         cfg.SessionTTL,
		Caches:             caches,
	}, svc, logger)

	ctx, cancel := cli.GracefulShutdown(cmd.Context(), logger)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting energycalc server", "addr", cfg.Addr(), "backend", cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cli.ShutdownTimeout)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", log.FieldError, err)
		return err
	}
	logger.Info("Server stopped gracefully")
	return nil
}
