package harvester

import (
	"os"
	"sync"
	"time"

	"github.com/juan0101/scriptPcdCemaden/internal/domain"
)

// StationStatus — снимок состояния станции для статусного API
type StationStatus struct {
	StationCode string                `json:"station_code"`
	Watermark   *time.Time            `json:"watermark,omitempty"`
	LastOutcome domain.StationOutcome `json:"last_outcome,omitempty"`
	LastSaved   int                   `json:"last_saved"`
}

// StatusTracker хранит отчёт последнего цикла для статусного API.
// Watermark читается с диска при каждом запросе: между циклами
// в памяти ничего долговременного не живёт.
type StatusTracker struct {
	mu         sync.RWMutex
	dataDir    string
	watermarks WatermarkReader
	stations   []domain.StationConfig
	last       *domain.CycleReport
}

func NewStatusTracker(dataDir string, watermarks WatermarkReader, stations []domain.StationConfig) *StatusTracker {
	return &StatusTracker{
		dataDir:    dataDir,
		watermarks: watermarks,
		stations:   stations,
	}
}

// Record фиксирует отчёт завершившегося цикла
func (t *StatusTracker) Record(report *domain.CycleReport) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = report
}

// LastReport возвращает отчёт последнего завершившегося цикла или nil
func (t *StatusTracker) LastReport() *domain.CycleReport {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.last
}

// Stations собирает статус каждой настроенной станции
func (t *StatusTracker) Stations() []StationStatus {
	t.mu.RLock()
	last := t.last
	t.mu.RUnlock()

	statuses := make([]StationStatus, 0, len(t.stations))
	for _, station := range t.stations {
		status := StationStatus{StationCode: station.Code}

		if watermark, err := t.watermarks.Read(station.Code); err == nil {
			status.Watermark = watermark
		}

		if last != nil {
			for _, result := range last.Stations {
				if result.StationCode == station.Code {
					status.LastOutcome = result.Outcome
					status.LastSaved = result.Saved
					break
				}
			}
		}

		statuses = append(statuses, status)
	}
	return statuses
}

// HealthCheck проверяет доступность каталога данных
func (t *StatusTracker) HealthCheck() error {
	_, err := os.Stat(t.dataDir)
	return err
}
