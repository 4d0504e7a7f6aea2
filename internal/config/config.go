package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/juan0101/scriptPcdCemaden/internal/domain"

	"github.com/joho/godotenv"
)

const (
	defaultFeedURL        = "http://sjc.salvar.cemaden.gov.br/resources/dados/pcds_last.json"
	defaultStationField   = "codestacao"
	defaultTimestampField = "datahora"
	defaultRequestTimeout = 30 * time.Second
	defaultRESTPort       = ":8080"
)

type Config struct {
	FeedURL        string
	DataDir        string
	Stations       []domain.StationConfig
	ExcludeFields  []string
	StationField   string
	TimestampField string
	RequestTimeout time.Duration
	// HarvestInterval 0 означает одиночный запуск цикла (режим cron)
	HarvestInterval time.Duration
	RESTPort        string
	LogLevel        string
	// DatabaseURL пустой — архив в Postgres отключён
	DatabaseURL string
	DryRun      bool
}

// LoadConfig читает конфигурацию из переменных окружения (опционально .env)
func LoadConfig() (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		FeedURL:         getEnv("FEED_URL", defaultFeedURL),
		DataDir:         strings.TrimSpace(os.Getenv("DATA_DIR")),
		ExcludeFields:   splitList(os.Getenv("EXCLUDE_FIELDS")),
		StationField:    getEnv("STATION_FIELD", defaultStationField),
		TimestampField:  getEnv("TIMESTAMP_FIELD", defaultTimestampField),
		RequestTimeout:  getEnvAsDuration("REQUEST_TIMEOUT", defaultRequestTimeout),
		HarvestInterval: getEnvAsDuration("HARVEST_INTERVAL", 0),
		RESTPort:        getEnv("REST_PORT", defaultRESTPort),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		DatabaseURL:     strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DryRun:          getEnvAsBool("DRY_RUN", false),
	}

	if cfg.DataDir == "" {
		return nil, fmt.Errorf("%w: DATA_DIR", domain.ErrMissingConfig)
	}

	for _, code := range splitList(os.Getenv("STATIONS")) {
		cfg.Stations = append(cfg.Stations, domain.StationConfig{Code: code})
	}
	if len(cfg.Stations) == 0 {
		return nil, fmt.Errorf("%w: STATIONS", domain.ErrMissingConfig)
	}

	return cfg, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}
