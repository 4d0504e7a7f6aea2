package harvester

import (
	"context"
	"errors"
	"time"

	"github.com/juan0101/scriptPcdCemaden/internal/domain"
	"github.com/juan0101/scriptPcdCemaden/internal/metrics"
	"github.com/juan0101/scriptPcdCemaden/pkg/utils"

	"go.uber.org/zap"
)

// Fetcher получает текущий снимок фида целиком
type Fetcher interface {
	FetchReadings(ctx context.Context) ([]domain.RawReading, error)
}

// WatermarkReader читает watermark станции; nil — станция ещё не сохранялась
type WatermarkReader interface {
	Read(stationCode string) (*time.Time, error)
}

// RecordSink дописывает батч станции в файл данных
type RecordSink interface {
	Save(stationCode string, readings []domain.RawReading) (domain.SaveResult, error)
}

// Archive зеркалирует сохранённые записи во вторичное хранилище
type Archive interface {
	InsertReadings(ctx context.Context, readings []domain.RawReading) error
}

// Harvester выполняет цикл сбора: один fetch на цикл, затем по каждой
// станции независимо match → watermark → filter → save
type Harvester struct {
	fetcher    Fetcher
	watermarks WatermarkReader
	sink       RecordSink
	archive    Archive
	stations   []domain.StationConfig
	dryRun     bool
	logger     *zap.Logger
}

func NewHarvester(fetcher Fetcher, watermarks WatermarkReader, sink RecordSink, stations []domain.StationConfig, logger *zap.Logger) *Harvester {
	return &Harvester{
		fetcher:    fetcher,
		watermarks: watermarks,
		sink:       sink,
		stations:   stations,
		logger:     logger,
	}
}

// WithArchive включает зеркалирование сохранённых записей в архив.
// Ошибки архива логируются и не влияют ни на файлы, ни на watermark.
func (h *Harvester) WithArchive(archive Archive) *Harvester {
	h.archive = archive
	return h
}

// WithDryRun включает режим без записи: цикл считает, что было бы
// сохранено, но не трогает ни файлы, ни watermark
func (h *Harvester) WithDryRun(dryRun bool) *Harvester {
	h.dryRun = dryRun
	return h
}

// RunCycle выполняет один цикл сбора по всем станциям.
// Транспортная ошибка прерывает цикл целиком; любая ошибка отдельной
// станции логируется и не мешает остальным. Отчёт содержит результат
// каждой станции, включая батчи без новых записей.
func (h *Harvester) RunCycle(ctx context.Context) (*domain.CycleReport, error) {
	report := &domain.CycleReport{
		CycleID: utils.NewUUID().String(),
		Started: time.Now().UTC(),
	}
	log := h.logger.With(zap.String("cycle_id", report.CycleID))

	log.Info("[Harvester] cycle started", zap.Int("stations", len(h.stations)))

	readings, err := h.fetcher.FetchReadings(ctx)
	if err != nil {
		metrics.CyclesTotal.WithLabelValues("fetch_error").Inc()
		log.Error("[Harvester] feed fetch failed, aborting cycle", zap.Error(err))
		return nil, err
	}
	report.Fetched = len(readings)

	for _, station := range h.stations {
		result := h.processStation(ctx, log, readings, station.Code)
		report.Stations = append(report.Stations, result)

		metrics.StationOutcomes.WithLabelValues(station.Code, string(result.Outcome)).Inc()
		if result.Saved > 0 {
			metrics.SavedReadings.WithLabelValues(station.Code).Add(float64(result.Saved))
		}
	}

	report.Elapsed = time.Since(report.Started)
	metrics.CyclesTotal.WithLabelValues("ok").Inc()
	metrics.CycleDuration.Observe(report.Elapsed.Seconds())

	log.Info("[Harvester] cycle finished",
		zap.Int("fetched", report.Fetched),
		zap.Int("saved", report.TotalSaved()),
		zap.Duration("elapsed", report.Elapsed))

	return report, nil
}

func (h *Harvester) processStation(ctx context.Context, log *zap.Logger, readings []domain.RawReading, stationCode string) domain.StationResult {
	result := domain.StationResult{StationCode: stationCode}

	matched, err := Match(readings, stationCode)
	if err != nil {
		if errors.Is(err, domain.ErrNoDataForStation) {
			result.Outcome = domain.OutcomeSkipped
			result.Reason = "no data in feed"
			log.Debug("[Harvester] station skipped, no data in feed",
				zap.String("station", stationCode))
			return result
		}
		return h.failStation(log, result, err)
	}
	result.Matched = len(matched)

	watermark, err := h.watermarks.Read(stationCode)
	if err != nil {
		return h.failStation(log, result, err)
	}

	fresh := FilterNew(matched, watermark)
	if len(fresh) == 0 {
		result.Outcome = domain.OutcomeOk
		log.Debug("[Harvester] station already up to date",
			zap.String("station", stationCode),
			zap.Int("matched", result.Matched))
		return result
	}

	if h.dryRun {
		result.Outcome = domain.OutcomeOk
		result.Reason = "dry-run"
		log.Info("[Harvester] dry-run, skipping save",
			zap.String("station", stationCode),
			zap.Int("would_save", len(fresh)))
		return result
	}

	saved, err := h.sink.Save(stationCode, fresh)
	if err != nil {
		return h.failStation(log, result, err)
	}
	result.Outcome = domain.OutcomeOk
	result.Saved = saved.Written

	if h.archive != nil {
		if err := h.archive.InsertReadings(ctx, fresh); err != nil {
			// Архив вторичен: файлы и watermark уже согласованы
			log.Warn("[Harvester] archive insert failed",
				zap.String("station", stationCode),
				zap.Error(err))
		}
	}

	return result
}

func (h *Harvester) failStation(log *zap.Logger, result domain.StationResult, err error) domain.StationResult {
	result.Outcome = domain.OutcomeFailed
	result.Err = err
	result.Reason = err.Error()
	log.Error("[Harvester] station failed",
		zap.String("station", result.StationCode),
		zap.Error(err))
	return result
}
