package domain

import "time"

// StationConfig описывает станцию (PCD), за которой следит сборщик
type StationConfig struct {
	Code string `json:"code"`
}

// RawReading представляет одну запись из удалённого фида.
// FieldOrder сохраняет порядок объявления полей в JSON —
// от него зависит порядок колонок в заголовке файла.
type RawReading struct {
	StationCode string
	Timestamp   time.Time
	Fields      map[string]string
	FieldOrder  []string
}

// Field возвращает значение поля или пустую строку, если поле отсутствует
func (r *RawReading) Field(name string) string {
	return r.Fields[name]
}

// SaveResult описывает итог записи батча в файловый сток
type SaveResult struct {
	StationCode string    `json:"station_code"`
	FilePath    string    `json:"file_path,omitempty"`
	Created     bool      `json:"created"`
	Written     int       `json:"written"`
	Watermark   time.Time `json:"watermark,omitempty"`
}

// StationOutcome — дискриминант результата обработки станции за цикл
type StationOutcome string

const (
	OutcomeOk      StationOutcome = "ok"
	OutcomeSkipped StationOutcome = "skipped"
	OutcomeFailed  StationOutcome = "failed"
)

// StationResult — итог обработки одной станции внутри цикла.
// Err заполнен только для OutcomeFailed, Reason — для OutcomeSkipped.
type StationResult struct {
	StationCode string         `json:"station_code"`
	Outcome     StationOutcome `json:"outcome"`
	Matched     int            `json:"matched"`
	Saved       int            `json:"saved"`
	Reason      string         `json:"reason,omitempty"`
	Err         error          `json:"-"`
}

// CycleReport агрегирует результаты всех станций за один цикл
type CycleReport struct {
	CycleID  string          `json:"cycle_id"`
	Fetched  int             `json:"fetched"`
	Stations []StationResult `json:"stations"`
	Started  time.Time       `json:"started"`
	Elapsed  time.Duration   `json:"elapsed"`
}

// TotalSaved возвращает суммарное число сохранённых записей за цикл
func (c *CycleReport) TotalSaved() int {
	total := 0
	for _, st := range c.Stations {
		total += st.Saved
	}
	return total
}
