package harvester

import (
	"fmt"

	"github.com/juan0101/scriptPcdCemaden/internal/domain"
)

// Match отбирает из фида записи одной станции, сохраняя исходный
// порядок (фид отдаёт записи по неубыванию времени, пересортировка
// не выполняется). Пустой результат — ожидаемое состояние
// domain.ErrNoDataForStation: не каждая станция отчитывается в каждом цикле.
func Match(readings []domain.RawReading, stationCode string) ([]domain.RawReading, error) {
	var matched []domain.RawReading
	for _, reading := range readings {
		if reading.StationCode == stationCode {
			matched = append(matched, reading)
		}
	}

	if len(matched) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrNoDataForStation, stationCode)
	}

	return matched, nil
}
