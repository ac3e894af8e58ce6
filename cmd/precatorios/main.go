package main

import (
	"context"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"

	"precatorios/internal/amqp"
	"precatorios/internal/auth"
	"precatorios/internal/cache"
	"precatorios/internal/cli"
	apphttp "precatorios/internal/http"
	applog "precatorios/internal/log"
	"precatorios/internal/refresh"
	"precatorios/internal/snapshot"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig(applog.ComponentApp)
	logger.Info("Starting precatorios server", "port", cfg.Port, "backend", cfg.DataBackend)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	reader, err := cli.NewBoardReader(cfg, logger)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize board backend", err)
	}
	normalizer, err := cli.NewNormalizer(cfg)
	if err != nil {
		cli.Fatal(logger, "Failed to load normalization rules", err)
	}

	// Refresh events are optional; without a broker the worker simply
	// never hears about refreshes.
	var opts []refresh.Option
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, refresh events disabled", applog.FieldError, err)
		} else {
			defer amqpClient.Close()
			opts = append(opts, refresh.WithPublisher(amqpClient))
			logger.Info("AMQP publisher ready", "exchange", cfg.AMQPExchange)
		}
	}
	refresher := refresh.NewService(reader, normalizer, opts...)

	startCtx, cancelStart := context.WithTimeout(context.Background(), 2*time.Minute)
	if _, err := refresher.Refresh(startCtx, refresh.TriggerStartup); err != nil {
		// The server still starts; /readyz reports 503 until a refresh succeeds.
		logger.Error("Initial board load failed", applog.FieldError, err)
	}
	cancelStart()
	if err := refresher.Schedule(cfg.RefreshSchedule); err != nil {
		cli.Fatal(logger, "Failed to schedule refresh", err)
	}

	cacheManager := cache.NewManager(logger.WithComponent(applog.ComponentCache).Logger)
	snapshots := snapshot.NewService(cli.NewSnapshotStore(cfg, repo, cacheManager))
	cacheManager.StartCleanup(time.Hour)

	authSvc, err := auth.NewService(repo, cfg.JWTSecret, cfg.AccessTokenExpiry)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize auth", err)
	}

	housekeeping := cron.New()
	if _, err := housekeeping.AddFunc("@hourly", func() {
		if _, err := authSvc.PurgeExpiredSessions(context.Background()); err != nil {
			logger.Warn("Session purge failed", applog.FieldError, err)
		}
	}); err != nil {
		cli.Fatal(logger, "Failed to schedule session purge", err)
	}
	housekeeping.Start()

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Auth:             authSvc,
		Datasets:         refresher,
		Snapshots:        snapshots,
		Logger:           logger.WithComponent(applog.ComponentHTTP),
		DB:               repo,
		CORSOrigins:      cfg.CORSOrigins,
		TrustedProxies:   cfg.TrustedProxies,
		RefreshPerMinute: cfg.RefreshRateLimit,
	})
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 4 * time.Minute
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		refresher.Stop()
		<-housekeeping.Stop().Done()
		cacheManager.Stop()
	})

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		cli.Fatal(logger, "Server error", err)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
