package main

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"

	"precatorios/internal/amqp"
	"precatorios/internal/cache"
	"precatorios/internal/cli"
	"precatorios/internal/export"
	"precatorios/internal/export/sheets"
	applog "precatorios/internal/log"
	"precatorios/internal/refresh"
	"precatorios/internal/snapshot"
	"precatorios/internal/storage"
	"precatorios/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig(applog.ComponentWorker)
	logger.Info("Starting precatorios-worker")

	if cfg.AMQPURL == "" {
		cli.Fatal(logger, "Worker needs a broker", errors.New("AMQP_URL is not set"))
	}

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
	// No publisher: the worker's own refreshes must not echo back to it.
	refresher := refresh.NewService(reader, normalizer)

	var exporter export.Exporter = export.Nop{}
	if cfg.SheetsEnabled() {
		client, err := sheets.NewFromConfig(context.Background(), sheets.Config{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			CredentialsFile: cfg.GoogleServiceAccountFile,
		})
		if err != nil {
			cli.Fatal(logger, "Failed to initialize Google Sheets client", err)
		}
		exporter = client
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("Google Sheets export disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	cacheManager := cache.NewManager(logger.WithComponent(applog.ComponentCache).Logger)
	store := cli.NewSnapshotStore(cfg, repo, cacheManager)
	cacheManager.StartCleanup(time.Hour)

	opts := []worker.Option{worker.WithParallelism(cfg.WorkerParallelism)}
	if pruner, ok := store.(*storage.SnapshotStore); ok {
		opts = append(opts, worker.WithPruner(pruner))
	}
	syncWorker := worker.NewSyncWorker(refresher, snapshot.NewService(store), exporter, opts...)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize AMQP client", err)
	}
	defer amqpClient.Close()

	jobs := cron.New()
	if _, err := jobs.AddFunc(cfg.SnapshotPruneSchedule, func() {
		if err := syncWorker.PruneSnapshots(context.Background()); err != nil {
			logger.Error("Snapshot prune failed", applog.FieldError, err)
		}
	}); err != nil {
		cli.Fatal(logger, "Failed to schedule snapshot prune", err)
	}
	jobs.Start()

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		<-jobs.Stop().Done()
		cacheManager.Stop()
	})

	// Catch up on refreshes missed while the worker was down.
	logger.Info("Performing startup sync check...")
	if err := syncWorker.StartupSyncCheck(ctx); err != nil {
		logger.Error("Failed startup sync check", applog.FieldError, err)
	}

	go func() {
		err := amqpClient.ConsumeBoardRefreshed(ctx, syncWorker.HandleBoardRefreshed)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", applog.FieldError, err)
		}
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker shutdown complete")
}
