// Package metrics exposes Prometheus collectors for the harvester.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pagesTotal            *prometheus.CounterVec
	fetchDurationSeconds  *prometheus.HistogramVec
	itemsTotal            *prometheus.CounterVec
	chunksTotal           *prometheus.CounterVec
	adaptiveDelaySeconds  *prometheus.GaugeVec
	checkpointWritesTotal *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus collectors. Safe to call multiple times.
func Init() {
	once.Do(func() {
		pagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lexharvest_pages_total",
				Help: "Total pages fetched, labeled by site and status.",
			},
			[]string{"site", "status"},
		)
		fetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lexharvest_fetch_duration_seconds",
				Help:    "Histogram of page fetch latencies, labeled by site.",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"site"},
		)
		itemsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lexharvest_items_total",
				Help: "Total scraped items, labeled by site and outcome.",
			},
			[]string{"site", "outcome"},
		)
		chunksTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lexharvest_chunks_total",
				Help: "Total chunks produced, labeled by document type.",
			},
			[]string{"doc_type"},
		)
		adaptiveDelaySeconds = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "lexharvest_adaptive_delay_seconds",
				Help: "Current adaptive inter-request delay, labeled by site.",
			},
			[]string{"site"},
		)
		checkpointWritesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lexharvest_checkpoint_writes_total",
				Help: "Checkpoint write attempts, labeled by site and result.",
			},
			[]string{"site", "result"},
		)
	})
}

// ObservePage counts one fetched page.
func ObservePage(site, status string) {
	if pagesTotal == nil {
		return
	}
	pagesTotal.WithLabelValues(site, status).Inc()
}

// ObserveFetchDuration records the latency of one fetch.
func ObserveFetchDuration(site string, d time.Duration) {
	if fetchDurationSeconds == nil {
		return
	}
	fetchDurationSeconds.WithLabelValues(site).Observe(d.Seconds())
}

// ObserveItem counts one scraped item outcome ("success", "failed", "skipped").
func ObserveItem(site, outcome string) {
	if itemsTotal == nil {
		return
	}
	itemsTotal.WithLabelValues(site, outcome).Inc()
}

// ObserveChunks counts chunks produced for one document.
func ObserveChunks(docType string, n int) {
	if chunksTotal == nil {
		return
	}
	chunksTotal.WithLabelValues(docType).Add(float64(n))
}

// SetAdaptiveDelay publishes the adaptive limiter's current delay.
func SetAdaptiveDelay(site string, d time.Duration) {
	if adaptiveDelaySeconds == nil {
		return
	}
	adaptiveDelaySeconds.WithLabelValues(site).Set(d.Seconds())
}

// ObserveCheckpointWrite counts one checkpoint flush ("ok" or "error").
func ObserveCheckpointWrite(site, result string) {
	if checkpointWritesTotal == nil {
		return
	}
	checkpointWritesTotal.WithLabelValues(site, result).Inc()
}
