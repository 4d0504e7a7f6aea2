package main

import (
	"context"
	"fmt"
	"log"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/juan0101/scriptPcdCemaden/internal/cemaden"
	"github.com/juan0101/scriptPcdCemaden/internal/config"
	"github.com/juan0101/scriptPcdCemaden/internal/harvester"
	apphttp "github.com/juan0101/scriptPcdCemaden/internal/http"
	applogger "github.com/juan0101/scriptPcdCemaden/internal/logger"
	"github.com/juan0101/scriptPcdCemaden/internal/repository/postgres"
	"github.com/juan0101/scriptPcdCemaden/internal/storage"

	"go.uber.org/zap"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := applogger.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() {
		if err := logger.Sync(); err != nil {
			log.Printf("Error during logger sync: %v", err)
		}
	}()

	logger.Info("Starting Cemaden PCD Harvester",
		zap.String("feed", cfg.FeedURL),
		zap.Int("stations", len(cfg.Stations)),
		zap.Bool("dry_run", cfg.DryRun))

	// Сборка компонентов цикла
	httpClient := &nethttp.Client{Timeout: cfg.RequestTimeout}
	client := cemaden.NewClient(httpClient, cfg.FeedURL, cfg.StationField, cfg.TimestampField, logger)
	watermarks := storage.NewWatermarkStore(cfg.DataDir, logger)
	sink := storage.NewSink(cfg.DataDir, cfg.TimestampField, cfg.ExcludeFields, watermarks, logger)

	h := harvester.NewHarvester(client, watermarks, sink, cfg.Stations, logger).
		WithDryRun(cfg.DryRun)

	// Опциональный архив в Postgres
	if cfg.DatabaseURL != "" {
		archive, err := postgres.NewArchive(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			logger.Error("Failed to connect to archive database", zap.Error(err))
			os.Exit(1)
		}
		defer func() {
			archive.Close()
			logger.Info("Archive database connection closed")
		}()
		h.WithArchive(archive)
		logger.Info("Archive database connection established")
	}

	if cfg.HarvestInterval <= 0 {
		// Одиночный запуск: один цикл, количество сохранённых записей
		// на stdout, ненулевой код выхода при ошибке цикла
		report, err := h.RunCycle(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "cycle failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(report.TotalSaved())
		return
	}

	runDaemon(ctx, cancel, cfg, h, watermarks, logger)
}

// runDaemon крутит циклы по тикеру и держит статусный HTTP сервер
func runDaemon(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, h *harvester.Harvester, watermarks *storage.WatermarkStore, logger *zap.Logger) {
	tracker := harvester.NewStatusTracker(cfg.DataDir, watermarks, cfg.Stations)

	httpServer := apphttp.NewHTTPServer(cfg.RESTPort, tracker, logger)
	go func() {
		if err := httpServer.Start(); err != nil && err != nethttp.ErrServerClosed {
			logger.Error("HTTP server failed", zap.Error(err))
		}
	}()

	ticker := time.NewTicker(cfg.HarvestInterval)
	defer ticker.Stop()

	runOnce := func() {
		report, err := h.RunCycle(ctx)
		if err != nil {
			// Транспортный сбой: цикл пропущен, состояние не менялось,
			// следующий тик повторит попытку
			logger.Error("Cycle aborted", zap.Error(err))
			return
		}
		tracker.Record(report)
	}

	logger.Info("Starting harvest loop", zap.Duration("interval", cfg.HarvestInterval))
	runOnce()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			runOnce()
		case <-quit:
			logger.Info("Shutting down...")
			cancel()

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer shutdownCancel()

			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("HTTP server shutdown failed", zap.Error(err))
			}

			logger.Info("Cemaden PCD Harvester stopped")
			return
		case <-ctx.Done():
			return
		}
	}
}
