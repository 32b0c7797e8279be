// Package metrics exposes Prometheus collectors for the crawl service.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	itemsExtractedTotal     *prometheus.CounterVec
	keywordsProcessedTotal  prometheus.Counter
	extractionFailuresTotal *prometheus.CounterVec
	interruptsClosedTotal   *prometheus.CounterVec
	jobsTotal               *prometheus.CounterVec
	eventsDroppedTotal      prometheus.Counter
	jobRunning              prometheus.Gauge

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		itemsExtractedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bidwatch_items_extracted_total",
				Help: "Total number of bid items extracted, labeled by strategy.",
			},
			[]string{"strategy"},
		)

		keywordsProcessedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "bidwatch_keywords_processed_total",
				Help: "Total number of keywords fully processed.",
			},
		)

		extractionFailuresTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bidwatch_extraction_failures_total",
				Help: "Total number of extraction failures, labeled by stage.",
			},
			[]string{"stage"},
		)

		interruptsClosedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bidwatch_interrupts_closed_total",
				Help: "Total number of UI interruptions dismissed, labeled by kind.",
			},
			[]string{"kind"},
		)

		jobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bidwatch_jobs_total",
				Help: "Total number of crawl jobs, labeled by terminal state.",
			},
			[]string{"state"},
		)

		eventsDroppedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "bidwatch_events_dropped_total",
				Help: "Total number of events dropped for slow subscribers.",
			},
		)

		jobRunning = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "bidwatch_job_running",
				Help: "Whether a crawl job is currently running (0 or 1).",
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveItems adds extracted item counts for a list strategy.
func ObserveItems(strategy string, count int) {
	if itemsExtractedTotal == nil || count <= 0 {
		return
	}
	itemsExtractedTotal.WithLabelValues(strategy).Add(float64(count))
}

// ObserveKeywordProcessed increments the processed keyword counter.
func ObserveKeywordProcessed() {
	if keywordsProcessedTotal != nil {
		keywordsProcessedTotal.Inc()
	}
}

// ObserveExtractionFailure increments the failure counter for a pipeline stage.
func ObserveExtractionFailure(stage string) {
	if extractionFailuresTotal != nil {
		extractionFailuresTotal.WithLabelValues(stage).Inc()
	}
}

// ObserveInterruptClosed increments the dismissed interruption counter.
func ObserveInterruptClosed(kind string) {
	if interruptsClosedTotal != nil {
		interruptsClosedTotal.WithLabelValues(kind).Inc()
	}
}

// ObserveJob increments the job counter for the given terminal state.
func ObserveJob(state string) {
	if jobsTotal != nil {
		jobsTotal.WithLabelValues(state).Inc()
	}
}

// ObserveEventDropped increments the dropped event counter.
func ObserveEventDropped() {
	if eventsDroppedTotal != nil {
		eventsDroppedTotal.Inc()
	}
}

// SetJobRunning flips the running gauge.
func SetJobRunning(running bool) {
	if jobRunning == nil {
		return
	}
	if running {
		jobRunning.Set(1)
	} else {
		jobRunning.Set(0)
	}
}
