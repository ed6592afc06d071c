package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"dogedash/internal/amqp"
	"dogedash/internal/backend"
	"dogedash/internal/cache"
	"dogedash/internal/config"
	"dogedash/internal/dashboard"
	"dogedash/internal/dataset"
	apphttp "dogedash/internal/http"
	applog "dogedash/internal/log"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()

	logger := applog.New(applog.Config{
		Component: applog.ComponentApp,
		Handler:   applog.NewHandler(os.Stdout, applog.ParseLevel(cfg.LogLevel), cfg.LogFormat),
	})
	applog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err, applog.FieldErrorType, applog.ErrorTypeConfiguration)
		os.Exit(1)
	}

	reg, err := config.LoadRegistry(cfg.DatasetsFile)
	if err != nil {
		logger.Error("Failed to load dataset registry", applog.FieldError, err, "path", cfg.DatasetsFile)
		os.Exit(1)
	}

	backendCfg, err := backend.FromAppConfig(cfg, reg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	src, err := backend.NewFactory(logger.Logger, &http.Client{Timeout: cfg.FetchTimeout}).
		CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize data source", applog.FieldError, err, applog.FieldSource, cfg.DataSource)
		os.Exit(1)
	}
	if src.Cleanup != nil {
		defer func() {
			if err := src.Cleanup(); err != nil {
				logger.Error("Data source cleanup failed", applog.FieldError, err)
			}
		}()
	}

	// DatasetLoaded events are optional; the dashboard works without a broker.
	var publisher dashboard.Publisher
	if cfg.AMQPURL != "" {
		dialCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		client, err := amqp.Dial(dialCtx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingKey, 3)
		cancel()
		if err != nil {
			logger.Warn("AMQP unavailable, dataset events disabled",
				applog.FieldComponent, applog.ComponentAMQP,
				applog.FieldError, err)
		} else {
			defer client.Close()
			publisher = client
			logger.Info("AMQP publisher initialized",
				applog.FieldComponent, applog.ComponentAMQP,
				"exchange", cfg.AMQPExchange,
				"routing_key", cfg.AMQPRoutingKey)
		}
	}

	svc := dashboard.New(dashboard.Options{
		Registry:      reg,
		Fetcher:       src.Fetcher,
		SourceName:    src.Name,
		Cache:         dataset.New(dataset.WithFetchTimeout(cfg.FetchTimeout)),
		Publisher:     publisher,
		Logger:        logger.Logger,
		PageCacheSize: cfg.TableCacheSize,
		PageCacheTTL:  cfg.TableCacheTTL,
	})

	janitor := cache.NewJanitor()
	janitor.Register(svc.PageCache())
	janitor.Start(cleanupInterval(cfg.TableCacheTTL))
	defer janitor.Stop()

	srv, err := apphttp.NewServer(":"+cfg.Port, svc, apphttp.Options{
		RateLimitRPM: cfg.RateLimitRPM,
		Logger:       logger,
		ReadyCheck:   src.Check,
	})
	if err != nil {
		logger.Error("Failed to initialize HTTP server", applog.FieldError, err)
		os.Exit(1)
	}
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = cfg.FetchTimeout + 10*time.Second
	srv.MaxHeaderBytes = 1 << 16

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting dogedash server",
			"port", cfg.Port,
			applog.FieldSource, src.Name,
			applog.FieldOperation, applog.OpStartup)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("Shutdown signal received", applog.FieldOperation, applog.OpShutdown)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", applog.FieldError, err)
	}
	logger.Info("Server stopped gracefully")
}

// cleanupInterval sweeps expired table pages at half their TTL, bounded to
// [1m, 10m].
func cleanupInterval(ttl time.Duration) time.Duration {
	d := ttl / 2
	if d < time.Minute {
		return time.Minute
	}
	if d > 10*time.Minute {
		return 10 * time.Minute
	}
	return d
}
