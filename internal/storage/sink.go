package storage

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/juan0101/scriptPcdCemaden/internal/domain"
	"github.com/juan0101/scriptPcdCemaden/internal/metrics"
	"github.com/juan0101/scriptPcdCemaden/pkg/utils"

	"go.uber.org/zap"
)

const (
	fieldSeparator = ";"
	lineEnding     = "\r\n"
)

// Sink пишет новые записи станции в файл данных, именованный отметкой
// времени последней записи батча, и продвигает watermark только после
// успешной записи всех строк
type Sink struct {
	dataDir        string
	timestampField string
	excludeFields  []string
	watermarks     *WatermarkStore
	logger         *zap.Logger
}

func NewSink(dataDir, timestampField string, excludeFields []string, watermarks *WatermarkStore, logger *zap.Logger) *Sink {
	return &Sink{
		dataDir:        dataDir,
		timestampField: timestampField,
		excludeFields:  excludeFields,
		watermarks:     watermarks,
		logger:         logger,
	}
}

// Save дописывает батч в целевой файл. Новый файл получает строку
// заголовка; у существующего файла заголовок сверяется с набором полей
// батча, расхождение — ошибка, строки не пишутся.
// Watermark продвигается к отметке последней записи батча и только
// после того, как все строки легли на диск.
func (s *Sink) Save(stationCode string, readings []domain.RawReading) (domain.SaveResult, error) {
	result := domain.SaveResult{StationCode: stationCode}
	if len(readings) == 0 {
		return result, nil
	}

	start := time.Now()
	defer func() {
		metrics.SinkWriteDuration.WithLabelValues("save").Observe(time.Since(start).Seconds())
	}()

	last := readings[len(readings)-1]
	header := s.headerFields(readings[0])

	dir := filepath.Join(s.dataDir, stationCode)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return result, &domain.PersistenceError{StationCode: stationCode, Op: "create station dir", Err: err}
	}

	path := filepath.Join(dir, utils.FormatFileName(last.Timestamp))
	result.FilePath = path

	existing, exists, err := readHeader(path)
	if err != nil {
		return result, &domain.PersistenceError{StationCode: stationCode, Op: "read header", Err: err}
	}
	if exists && existing != strings.Join(header, fieldSeparator) {
		return result, &domain.PersistenceError{
			StationCode: stationCode,
			Op:          "append",
			Err:         fmt.Errorf("%w: file has %q, batch needs %q", domain.ErrHeaderMismatch, existing, strings.Join(header, fieldSeparator)),
		}
	}

	var buf bytes.Buffer
	if !exists {
		buf.WriteString(strings.Join(header, fieldSeparator))
		buf.WriteString(lineEnding)
	}
	for _, reading := range readings {
		buf.WriteString(s.formatLine(header, reading))
		buf.WriteString(lineEnding)
	}

	if err := appendFileSync(path, buf.Bytes()); err != nil {
		return result, &domain.PersistenceError{StationCode: stationCode, Op: "append", Err: err}
	}

	if !exists {
		metrics.SinkFilesCreated.Inc()
	}

	result.Created = !exists
	result.Written = len(readings)
	result.Watermark = last.Timestamp

	if err := s.watermarks.Write(stationCode, last.Timestamp); err != nil {
		return result, err
	}

	s.logger.Info("[Sink] batch saved",
		zap.String("station", stationCode),
		zap.String("file", path),
		zap.Bool("created", result.Created),
		zap.Int("written", result.Written),
		zap.Time("watermark", last.Timestamp))

	return result, nil
}

// headerFields строит порядок колонок: поле времени первым, остальные —
// в обратном порядке объявления в записи, без исключённых полей
func (s *Sink) headerFields(first domain.RawReading) []string {
	excluded := make(map[string]bool, len(s.excludeFields))
	for _, name := range s.excludeFields {
		excluded[name] = true
	}

	header := []string{s.timestampField}
	for i := len(first.FieldOrder) - 1; i >= 0; i-- {
		name := first.FieldOrder[i]
		if name == s.timestampField || excluded[name] {
			continue
		}
		header = append(header, name)
	}
	return header
}

// formatLine сериализует запись в строку файла: отметка времени,
// затем значения в порядке заголовка; отсутствующие значения — пустые
func (s *Sink) formatLine(header []string, reading domain.RawReading) string {
	values := make([]string, 0, len(header))
	values = append(values, utils.FormatWatermark(reading.Timestamp))
	for _, name := range header[1:] {
		values = append(values, reading.Field(name))
	}
	return strings.Join(values, fieldSeparator)
}

// readHeader возвращает первую строку существующего файла данных
func readHeader(path string) (header string, exists bool, err error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", false, err
	}
	if info.Size() == 0 {
		return "", false, nil
	}

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return "", false, scanner.Err()
	}
	return strings.TrimRight(scanner.Text(), "\r"), true, nil
}

// appendFileSync дописывает данные в конец файла и сбрасывает их на диск
func appendFileSync(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
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
