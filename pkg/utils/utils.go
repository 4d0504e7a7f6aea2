package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// WatermarkLayout — полное разрешение, формат файла lastDate.dat
const WatermarkLayout = "2006-01-02 15:04:05.000"

// FileNameLayout — безопасное для файловой системы имя файла данных
const FileNameLayout = "20060102T150405"

// feedLayouts — форматы времени, встречающиеся в фиде Cemaden
var feedLayouts = []string{
	"2006-01-02 15:04:05.000",
	"2006-01-02 15:04:05.0",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

func NewUUID() uuid.UUID {
	return uuid.New()
}

// ParseTimestamp разбирает отметку времени в одном из известных форматов фида
func ParseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range feedLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp format: %q", raw)
}

// FormatWatermark сериализует watermark для lastDate.dat
func FormatWatermark(ts time.Time) string {
	return ts.Format(WatermarkLayout)
}

// FormatFileName возвращает имя файла данных по отметке времени последней записи
func FormatFileName(ts time.Time) string {
	return ts.Format(FileNameLayout) + ".dat"
}
