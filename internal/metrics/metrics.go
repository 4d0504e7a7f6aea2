package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP метрики
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	// Метрики получения фида
	FetchRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvester_fetch_requests_total",
		Help: "Total number of feed fetch attempts",
	}, []string{"status"})

	FetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "harvester_fetch_duration_seconds",
		Help:    "Feed fetch duration in seconds",
		Buckets: prometheus.DefBuckets,
	})

	FetchedReadings = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvester_fetched_readings_total",
		Help: "Total number of readings received from the feed",
	})

	// Метрики цикла
	CyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvester_cycles_total",
		Help: "Total number of ingestion cycles",
	}, []string{"status"})

	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "harvester_cycle_duration_seconds",
		Help:    "Ingestion cycle duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	})

	// Метрики по станциям
	StationOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvester_station_outcomes_total",
		Help: "Per-station cycle outcomes",
	}, []string{"station", "outcome"})

	SavedReadings = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvester_saved_readings_total",
		Help: "Total number of readings appended to station files",
	}, []string{"station"})

	// Метрики файлового стока
	SinkWriteDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sink_write_duration_seconds",
		Help:    "Record sink write duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	SinkFilesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sink_files_created_total",
		Help: "Total number of station data files created",
	})

	// Метрики архива Postgres
	ArchiveInserts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "archive_inserts_total",
		Help: "Total number of readings mirrored into the Postgres archive",
	}, []string{"status"})

	ArchiveInsertDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "archive_insert_duration_seconds",
		Help:    "Postgres archive batch insert duration in seconds",
		Buckets: prometheus.DefBuckets,
	})
)
