package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/juan0101/scriptPcdCemaden/internal/domain"
	"github.com/juan0101/scriptPcdCemaden/pkg/utils"

	"go.uber.org/zap"
)

// watermarkFileName — файл с отметкой последней сохранённой записи станции
const watermarkFileName = "lastDate.dat"

// WatermarkStore хранит по станции отметку времени последней сохранённой
// записи в dataDir/<код станции>/lastDate.dat
type WatermarkStore struct {
	dataDir string
	logger  *zap.Logger
}

func NewWatermarkStore(dataDir string, logger *zap.Logger) *WatermarkStore {
	return &WatermarkStore{
		dataDir: dataDir,
		logger:  logger,
	}
}

// Read возвращает watermark станции или nil, если станция ещё
// ни разу не сохранялась
func (s *WatermarkStore) Read(stationCode string) (*time.Time, error) {
	raw, err := os.ReadFile(s.path(stationCode))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &domain.PersistenceError{StationCode: stationCode, Op: "read watermark", Err: err}
	}

	ts, err := utils.ParseTimestamp(string(raw))
	if err != nil {
		return nil, &domain.PersistenceError{StationCode: stationCode, Op: "parse watermark", Err: err}
	}

	return &ts, nil
}

// Write атомарно (через временный файл и rename) сохраняет новый watermark.
// Откат watermark назад во времени запрещён.
func (s *WatermarkStore) Write(stationCode string, ts time.Time) error {
	current, err := s.Read(stationCode)
	if err != nil {
		return err
	}
	if current != nil && ts.Before(*current) {
		return &domain.PersistenceError{
			StationCode: stationCode,
			Op:          "write watermark",
			Err:         fmt.Errorf("%w: %s < %s", domain.ErrWatermarkRegression, utils.FormatWatermark(ts), utils.FormatWatermark(*current)),
		}
	}

	dir := filepath.Join(s.dataDir, stationCode)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &domain.PersistenceError{StationCode: stationCode, Op: "write watermark", Err: err}
	}

	tmp := s.path(stationCode) + ".tmp"
	if err := writeFileSync(tmp, []byte(utils.FormatWatermark(ts))); err != nil {
		return &domain.PersistenceError{StationCode: stationCode, Op: "write watermark", Err: err}
	}
	if err := os.Rename(tmp, s.path(stationCode)); err != nil {
		_ = os.Remove(tmp)
		return &domain.PersistenceError{StationCode: stationCode, Op: "write watermark", Err: err}
	}

	s.logger.Debug("[WatermarkStore] watermark advanced",
		zap.String("station", stationCode),
		zap.Time("watermark", ts))

	return nil
}

func (s *WatermarkStore) path(stationCode string) string {
	return filepath.Join(s.dataDir, stationCode, watermarkFileName)
}

// writeFileSync пишет файл и сбрасывает его на диск до закрытия
func writeFileSync(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
