package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/juan0101/scriptPcdCemaden/internal/domain"
	"github.com/juan0101/scriptPcdCemaden/internal/metrics"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Archive зеркалирует сохранённые показания в Postgres.
// Вставка идемпотентна: ON CONFLICT DO NOTHING по (station_code, measured_at),
// поэтому повтор батча после сбоя не плодит дублей.
type Archive struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewArchive(ctx context.Context, databaseURL string, logger *zap.Logger) (*Archive, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Archive{
		pool:   pool,
		logger: logger,
	}, nil
}

// InsertReadings вставляет батч показаний одной транзакцией
func (a *Archive) InsertReadings(ctx context.Context, readings []domain.RawReading) error {
	if len(readings) == 0 {
		return nil
	}

	start := time.Now()
	defer func() {
		metrics.ArchiveInsertDuration.Observe(time.Since(start).Seconds())
	}()

	query := "INSERT INTO readings (station_code, measured_at, fields) VALUES ($1, $2, $3) ON CONFLICT (station_code, measured_at) DO NOTHING"

	batch := &pgx.Batch{}
	for _, reading := range readings {
		batch.Queue(query, reading.StationCode, reading.Timestamp, reading.Fields)
	}

	results := a.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range readings {
		if _, err := results.Exec(); err != nil {
			metrics.ArchiveInserts.WithLabelValues("error").Inc()
			return fmt.Errorf("failed to insert reading: %w", err)
		}
	}

	metrics.ArchiveInserts.WithLabelValues("ok").Add(float64(len(readings)))

	a.logger.Debug("[Archive] readings mirrored",
		zap.Int("count", len(readings)))

	return nil
}

func (a *Archive) HealthCheck(ctx context.Context) error {
	return a.pool.Ping(ctx)
}

func (a *Archive) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
}
