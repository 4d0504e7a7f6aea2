package domain

import (
	"errors"
	"fmt"
)

// ErrNoDataForStation — ожидаемое состояние: фид не содержит записей
// для настроенной станции в этом цикле
var ErrNoDataForStation = errors.New("no data for station")

// ErrHeaderMismatch — заголовок существующего файла не совпадает
// с набором полей текущего батча (менялась конфигурация исключений)
var ErrHeaderMismatch = errors.New("output file header mismatch")

// ErrWatermarkRegression — попытка записать watermark старше текущего
var ErrWatermarkRegression = errors.New("watermark regression")

// ErrMissingConfig — отсутствует обязательный параметр конфигурации
var ErrMissingConfig = errors.New("missing required configuration")

// TransportError — ошибка получения данных от удалённого сервиса.
// Прерывает весь цикл: без полезной нагрузки ни одна станция не обработается.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error fetching %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// PersistenceError — ошибка записи на диск (файл данных или watermark).
// Батч станции не считается сохранённым и будет повторён в следующем цикле.
type PersistenceError struct {
	StationCode string
	Op          string
	Err         error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence error (%s) for station %s: %v", e.Op, e.StationCode, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// IsTransport сообщает, является ли ошибка транспортной
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
