package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"bilancio/internal/amqp"
	"bilancio/internal/cache"
	"bilancio/internal/cli"
	"bilancio/internal/config"
	apphttp "bilancio/internal/http"
	"bilancio/internal/ident"
	"bilancio/internal/insights"
	"bilancio/internal/log"
	"bilancio/internal/services"
)

const cacheSweepInterval = time.Minute

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, stop := cli.GracefulShutdown(logger)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Server exited with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	result, err := cli.OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := result.Cleanup(); err != nil {
			logger.Error("Failed to close store", log.FieldError, err)
		}
	}()
	store := result.Store
	ids := ident.New()

	notifiers := services.NewNotifiers(logger)
	months := services.NewMonthService(store,
		services.WithNotifier(notifiers),
		services.WithDeletionPolicy(services.NewDemoAccountPolicy(store, cfg.DemoUsernames)),
		services.WithMaxRetries(cfg.WriteMaxRetries),
		services.WithIDGenerator(ids),
		services.WithLogger(logger),
	)

	ins := insights.NewService(months, cfg.InsightsCacheSize, cfg.InsightsCacheTTL, logger)
	notifiers.Add(ins)

	caches := cache.NewManager(logger)
	ins.Register(caches)
	caches.StartCleanup(cacheSweepInterval)
	defer caches.Stop()

	var events *amqp.Client
	if cfg.AMQPURL != "" {
		events, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, ids.NewID("node"), logger)
		if err != nil {
			return err
		}
		defer events.Close()
		notifiers.Add(events)
		logger.Info("Change events enabled", "exchange", cfg.AMQPExchange, log.FieldOrigin, events.Origin())
	} else {
		logger.Info("AMQP disabled, insights invalidate locally only")
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Services{
		Months:    months,
		Recurring: services.NewRecurringService(store, ids, logger),
		Users:     services.NewUserService(store, ids, logger),
		Insights:  ins,
		Store:     store,
	}, apphttp.Options{
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		AllowedOrigins:     cfg.CORSAllowedOrigins,
		Logger:             logger,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting bilancio server", "port", cfg.Port, "backend", cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if events != nil {
		g.Go(func() error {
			if err := events.Consume(gctx, ins); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
			return err
		}
		return nil
	})
	return g.Wait()
}
