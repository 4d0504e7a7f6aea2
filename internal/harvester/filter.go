package harvester

import (
	"time"

	"github.com/juan0101/scriptPcdCemaden/internal/domain"
)

// FilterNew возвращает подпоследовательность записей строго новее
// watermark, сохраняя порядок. Nil watermark (первый запуск станции)
// пропускает все записи. Сравнение с полным разрешением времени,
// равенство отметок означает "уже сохранено".
// Чистая функция — граница корректности против дублей.
func FilterNew(readings []domain.RawReading, watermark *time.Time) []domain.RawReading {
	if watermark == nil {
		return readings
	}

	var fresh []domain.RawReading
	for _, reading := range readings {
		if reading.Timestamp.After(*watermark) {
			fresh = append(fresh, reading)
		}
	}
	return fresh
}
