package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/juan0101/scriptPcdCemaden/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newWatermarkStore(t *testing.T) (*WatermarkStore, string) {
	t.Helper()
	dataDir := t.TempDir()
	logger, _ := zap.NewDevelopment()
	return NewWatermarkStore(dataDir, logger), dataDir
}

func TestWatermarkStore_ReadMissingReturnsNil(t *testing.T) {
	store, _ := newWatermarkStore(t)

	watermark, err := store.Read("300")

	assert.NoError(t, err)
	assert.Nil(t, watermark)
}

func TestWatermarkStore_WriteReadRoundtrip(t *testing.T) {
	store, _ := newWatermarkStore(t)
	ts := time.Date(2026, 3, 1, 10, 20, 30, 0, time.UTC)

	require.NoError(t, store.Write("300", ts))

	watermark, err := store.Read("300")
	require.NoError(t, err)
	require.NotNil(t, watermark)
	assert.True(t, watermark.Equal(ts))
}

func TestWatermarkStore_WriteIsAtomic(t *testing.T) {
	store, dataDir := newWatermarkStore(t)
	ts := time.Date(2026, 3, 1, 10, 20, 30, 0, time.UTC)

	require.NoError(t, store.Write("300", ts))

	// Временный файл не должен переживать успешную запись
	_, err := os.Stat(filepath.Join(dataDir, "300", "lastDate.dat.tmp"))
	assert.True(t, os.IsNotExist(err))

	raw, err := os.ReadFile(filepath.Join(dataDir, "300", "lastDate.dat"))
	require.NoError(t, err)
	assert.Equal(t, "2026-03-01 10:20:30.000", string(raw))
}

func TestWatermarkStore_MonotonicAdvance(t *testing.T) {
	store, _ := newWatermarkStore(t)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Write("300", base.Add(time.Duration(i)*time.Minute)))

		watermark, err := store.Read("300")
		require.NoError(t, err)
		assert.True(t, watermark.Equal(base.Add(time.Duration(i)*time.Minute)))
	}
}

func TestWatermarkStore_RegressionRejected(t *testing.T) {
	store, _ := newWatermarkStore(t)
	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.Write("300", ts))

	err := store.Write("300", ts.Add(-time.Minute))
	assert.True(t, errors.Is(err, domain.ErrWatermarkRegression))

	// Watermark не должен откатиться
	watermark, readErr := store.Read("300")
	require.NoError(t, readErr)
	assert.True(t, watermark.Equal(ts))
}

func TestWatermarkStore_RewriteSameValueAllowed(t *testing.T) {
	store, _ := newWatermarkStore(t)
	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.Write("300", ts))
	require.NoError(t, store.Write("300", ts))
}

func TestWatermarkStore_StationsAreIndependent(t *testing.T) {
	store, _ := newWatermarkStore(t)
	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.Write("300", ts))

	other, err := store.Read("400")
	assert.NoError(t, err)
	assert.Nil(t, other)
}
