package cemaden

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/juan0101/scriptPcdCemaden/internal/domain"
	"github.com/juan0101/scriptPcdCemaden/internal/metrics"
	"github.com/juan0101/scriptPcdCemaden/pkg/utils"

	"go.uber.org/zap"
)

// Client получает текущий снимок показаний PCD из фида Cemaden
type Client struct {
	httpClient     *http.Client
	url            string
	stationField   string
	timestampField string
	logger         *zap.Logger
}

func NewClient(httpClient *http.Client, url, stationField, timestampField string, logger *zap.Logger) *Client {
	return &Client{
		httpClient:     httpClient,
		url:            url,
		stationField:   stationField,
		timestampField: timestampField,
		logger:         logger,
	}
}

// FetchReadings выполняет один запрос к фиду и возвращает все записи
// в порядке, в котором их отдал сервис. Любая транспортная ошибка
// (таймаут, не-2xx, битый JSON) возвращается как *domain.TransportError.
func (c *Client) FetchReadings(ctx context.Context) ([]domain.RawReading, error) {
	start := time.Now()

	readings, err := c.fetch(ctx)
	metrics.FetchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.FetchRequests.WithLabelValues("error").Inc()
		return nil, &domain.TransportError{URL: c.url, Err: err}
	}

	metrics.FetchRequests.WithLabelValues("ok").Inc()
	metrics.FetchedReadings.Add(float64(len(readings)))

	c.logger.Debug("[Cemaden] feed fetched",
		zap.Int("readings", len(readings)),
		zap.Duration("elapsed", time.Since(start)))

	return readings, nil
}

func (c *Client) fetch(ctx context.Context) ([]domain.RawReading, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	return c.decodePayload(resp.Body)
}

// decodePayload разбирает полезную нагрузку потоково, сохраняя порядок
// объявления полей каждой записи — encoding/json в map его теряет
func (c *Client) decodePayload(r io.Reader) ([]domain.RawReading, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}

	delim, ok := tok.(json.Delim)
	if !ok {
		return nil, fmt.Errorf("decode payload: unexpected token %v", tok)
	}

	switch delim {
	case '[':
		return c.decodeRecords(dec)
	case '{':
		// Объект верхнего уровня: записи лежат в первом массиве
		// (в фиде Cemaden это ключ "cemaden")
		for dec.More() {
			if _, err := dec.Token(); err != nil {
				return nil, fmt.Errorf("decode payload: %w", err)
			}
			tok, err := dec.Token()
			if err != nil {
				return nil, fmt.Errorf("decode payload: %w", err)
			}
			if d, ok := tok.(json.Delim); ok {
				if d == '[' {
					return c.decodeRecords(dec)
				}
				if err := skipDelim(dec, d); err != nil {
					return nil, fmt.Errorf("decode payload: %w", err)
				}
			}
		}
		return nil, fmt.Errorf("decode payload: no readings array found")
	default:
		return nil, fmt.Errorf("decode payload: unexpected delimiter %v", delim)
	}
}

// decodeRecords читает элементы массива до закрывающей скобки
func (c *Client) decodeRecords(dec *json.Decoder) ([]domain.RawReading, error) {
	var readings []domain.RawReading

	for dec.More() {
		reading, err := c.decodeRecord(dec)
		if err != nil {
			return nil, err
		}
		if reading.StationCode == "" {
			c.logger.Warn("[Cemaden] record without station code skipped")
			continue
		}
		if reading.Timestamp.IsZero() {
			c.logger.Warn("[Cemaden] record with invalid timestamp skipped",
				zap.String("station", reading.StationCode))
			continue
		}
		readings = append(readings, reading)
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}

	return readings, nil
}

func (c *Client) decodeRecord(dec *json.Decoder) (domain.RawReading, error) {
	reading := domain.RawReading{Fields: make(map[string]string)}

	tok, err := dec.Token()
	if err != nil {
		return reading, fmt.Errorf("decode record: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return reading, fmt.Errorf("decode record: expected object, got %v", tok)
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return reading, fmt.Errorf("decode record: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return reading, fmt.Errorf("decode record: expected field name, got %v", tok)
		}

		value, scalar, err := readScalar(dec)
		if err != nil {
			return reading, fmt.Errorf("decode record field %q: %w", key, err)
		}
		if !scalar {
			// Вложенные структуры в плоских записях фида не ожидаются
			continue
		}

		reading.Fields[key] = value
		reading.FieldOrder = append(reading.FieldOrder, key)
	}

	if _, err := dec.Token(); err != nil {
		return reading, fmt.Errorf("decode record: %w", err)
	}

	reading.StationCode = reading.Fields[c.stationField]
	if raw := reading.Fields[c.timestampField]; raw != "" {
		if ts, err := utils.ParseTimestamp(raw); err == nil {
			reading.Timestamp = ts
		}
	}

	return reading, nil
}

// readScalar возвращает скалярное значение как строку;
// для вложенного объекта/массива пропускает значение и возвращает scalar=false
func readScalar(dec *json.Decoder) (string, bool, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", false, err
	}

	switch v := tok.(type) {
	case json.Delim:
		if err := skipDelim(dec, v); err != nil {
			return "", false, err
		}
		return "", false, nil
	case string:
		return v, true, nil
	case json.Number:
		return v.String(), true, nil
	case bool:
		if v {
			return "true", true, nil
		}
		return "false", true, nil
	case nil:
		return "", true, nil
	default:
		return fmt.Sprintf("%v", v), true, nil
	}
}

// skipDelim пропускает содержимое открытой скобки до парной закрывающей
func skipDelim(dec *json.Decoder, open json.Delim) error {
	if open != '{' && open != '[' {
		return nil
	}
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		if d, ok := tok.(json.Delim); ok {
			switch d {
			case '{', '[':
				depth++
			case '}', ']':
				depth--
			}
		}
	}
	return nil
}
