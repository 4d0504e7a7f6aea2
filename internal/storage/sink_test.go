package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/juan0101/scriptPcdCemaden/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newSink(t *testing.T, exclude []string) (*Sink, *WatermarkStore, string) {
	t.Helper()
	dataDir := t.TempDir()
	logger, _ := zap.NewDevelopment()
	watermarks := NewWatermarkStore(dataDir, logger)
	return NewSink(dataDir, "datahora", exclude, watermarks, logger), watermarks, dataDir
}

func pcdReading(station string, ts time.Time, pairs ...string) domain.RawReading {
	r := domain.RawReading{
		StationCode: station,
		Timestamp:   ts,
		Fields:      map[string]string{"codestacao": station, "datahora": ts.Format("2006-01-02 15:04:05.0")},
		FieldOrder:  []string{"codestacao", "datahora"},
	}
	for i := 0; i+1 < len(pairs); i += 2 {
		r.Fields[pairs[i]] = pairs[i+1]
		r.FieldOrder = append(r.FieldOrder, pairs[i])
	}
	return r
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(raw)
	assert.True(t, strings.HasSuffix(content, "\r\n"))
	return strings.Split(strings.TrimSuffix(content, "\r\n"), "\r\n")
}

func TestSink_EmptyBatchIsNoOp(t *testing.T) {
	sink, watermarks, dataDir := newSink(t, nil)

	result, err := sink.Save("300", nil)

	require.NoError(t, err)
	assert.Equal(t, 0, result.Written)
	assert.Empty(t, result.FilePath)

	_, statErr := os.Stat(filepath.Join(dataDir, "300"))
	assert.True(t, os.IsNotExist(statErr))

	watermark, err := watermarks.Read("300")
	require.NoError(t, err)
	assert.Nil(t, watermark)
}

func TestSink_CreatesFileNamedByLastReading(t *testing.T) {
	sink, watermarks, dataDir := newSink(t, nil)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	last := base.Add(20 * time.Minute)

	batch := []domain.RawReading{
		pcdReading("300", base, "chuva", "0.2"),
		pcdReading("300", base.Add(10*time.Minute), "chuva", "0.4"),
		pcdReading("300", last, "chuva", "1.0"),
	}

	result, err := sink.Save("300", batch)
	require.NoError(t, err)

	assert.True(t, result.Created)
	assert.Equal(t, 3, result.Written)
	assert.Equal(t, filepath.Join(dataDir, "300", "20260301T102000.dat"), result.FilePath)

	lines := readLines(t, result.FilePath)
	require.Len(t, lines, 4)
	// Заголовок: поле времени первым, остальные в обратном порядке объявления
	assert.Equal(t, "datahora;chuva;codestacao", lines[0])
	assert.Equal(t, "2026-03-01 10:00:00.000;0.2;300", lines[1])
	assert.Equal(t, "2026-03-01 10:20:00.000;1.0;300", lines[3])

	watermark, err := watermarks.Read("300")
	require.NoError(t, err)
	assert.True(t, watermark.Equal(last))
}

func TestSink_ExcludedFieldsOmitted(t *testing.T) {
	sink, _, _ := newSink(t, []string{"codestacao", "uf"})
	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	batch := []domain.RawReading{
		pcdReading("300", ts, "uf", "SP", "chuva", "0.2"),
	}

	result, err := sink.Save("300", batch)
	require.NoError(t, err)

	lines := readLines(t, result.FilePath)
	assert.Equal(t, "datahora;chuva", lines[0])
	assert.Equal(t, "2026-03-01 10:00:00.000;0.2", lines[1])
}

func TestSink_MissingFieldBecomesEmpty(t *testing.T) {
	sink, _, _ := newSink(t, []string{"codestacao"})
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	full := pcdReading("300", base, "chuva", "0.2", "nivel", "1.5")
	sparse := pcdReading("300", base.Add(10*time.Minute), "chuva", "0.4")

	result, err := sink.Save("300", []domain.RawReading{full, sparse})
	require.NoError(t, err)

	lines := readLines(t, result.FilePath)
	assert.Equal(t, "datahora;nivel;chuva", lines[0])
	assert.Equal(t, "2026-03-01 10:10:00.000;;0.4", lines[2])
}

func TestSink_HeaderStability(t *testing.T) {
	sink, _, _ := newSink(t, []string{"codestacao"})
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	var batch []domain.RawReading
	for i := 0; i < 4; i++ {
		batch = append(batch, pcdReading("300", base.Add(time.Duration(i)*time.Minute), "chuva", "0.1", "nivel", "2.0"))
	}

	result, err := sink.Save("300", batch)
	require.NoError(t, err)

	lines := readLines(t, result.FilePath)
	columns := len(strings.Split(lines[0], ";"))
	for _, line := range lines[1:] {
		assert.Len(t, strings.Split(line, ";"), columns)
	}
}

func TestSink_AppendsWithoutSecondHeader(t *testing.T) {
	sink, watermarks, _ := newSink(t, []string{"codestacao"})
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	last := base.Add(10 * time.Minute)

	first, err := sink.Save("300", []domain.RawReading{pcdReading("300", last, "chuva", "0.2")})
	require.NoError(t, err)

	// Второй батч заканчивается той же отметкой — тот же целевой файл
	second, err := sink.Save("300", []domain.RawReading{pcdReading("300", last, "chuva", "0.4")})
	require.NoError(t, err)
	assert.Equal(t, first.FilePath, second.FilePath)
	assert.False(t, second.Created)

	lines := readLines(t, second.FilePath)
	require.Len(t, lines, 3)
	assert.Equal(t, "datahora;chuva", lines[0])
	for _, line := range lines[1:] {
		assert.NotEqual(t, "datahora;chuva", line)
	}

	watermark, err := watermarks.Read("300")
	require.NoError(t, err)
	assert.True(t, watermark.Equal(last))
}

func TestSink_HeaderMismatchFailsLoudly(t *testing.T) {
	dataDir := t.TempDir()
	logger, _ := zap.NewDevelopment()
	watermarks := NewWatermarkStore(dataDir, logger)
	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	oldSink := NewSink(dataDir, "datahora", []string{"codestacao"}, watermarks, logger)
	created, err := oldSink.Save("300", []domain.RawReading{pcdReading("300", ts, "chuva", "0.2")})
	require.NoError(t, err)

	before, err := os.ReadFile(created.FilePath)
	require.NoError(t, err)
	wmBefore, err := watermarks.Read("300")
	require.NoError(t, err)

	// Конфигурация исключений поменялась между запусками
	newSink := NewSink(dataDir, "datahora", nil, watermarks, logger)
	_, err = newSink.Save("300", []domain.RawReading{pcdReading("300", ts, "chuva", "0.4")})

	assert.True(t, errors.Is(err, domain.ErrHeaderMismatch))

	// Файл и watermark не тронуты
	after, readErr := os.ReadFile(created.FilePath)
	require.NoError(t, readErr)
	assert.Equal(t, before, after)

	wmAfter, readErr := watermarks.Read("300")
	require.NoError(t, readErr)
	assert.True(t, wmAfter.Equal(*wmBefore))
}

func TestSink_WriteFailureDoesNotAdvanceWatermark(t *testing.T) {
	sink, watermarks, dataDir := newSink(t, nil)
	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	// Целевой путь занят каталогом — запись обязана провалиться
	target := filepath.Join(dataDir, "300", "20260301T100000.dat")
	require.NoError(t, os.MkdirAll(target, 0o755))

	_, err := sink.Save("300", []domain.RawReading{pcdReading("300", ts, "chuva", "0.2")})

	var perr *domain.PersistenceError
	assert.True(t, errors.As(err, &perr))

	watermark, readErr := watermarks.Read("300")
	require.NoError(t, readErr)
	assert.Nil(t, watermark)
}
