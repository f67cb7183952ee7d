// Package metrics holds the prometheus instruments shared by the batch phases and the API.
//
// The batch commands are short lived, so instead of being scraped they dump the
// registry to a node-exporter textfile at the end of a run.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kurihiro0119/github-traffic-history/internal/domain"
)

const namespace = "traffic"

// Fetch kinds beyond the traffic metrics themselves.
const KindPopularity = "popularity"

// Log labels.
const (
	LogTraffic    = "traffic"
	LogPopularity = "popularity"
)

// Phase labels.
const (
	PhaseFetch   = "fetch"
	PhaseProcess = "process"
	PhasePlot    = "plot"
)

// Recorder owns a private registry. A nil *Recorder records nothing.
type Recorder struct {
	registry         *prometheus.Registry
	fetchAttempts    *prometheus.CounterVec
	fetchFailures    *prometheus.CounterVec
	recordsAppended  *prometheus.CounterVec
	malformedRecords *prometheus.CounterVec
	canonicalEntries *prometheus.GaugeVec
	lastRun          *prometheus.GaugeVec
}

// NewRecorder creates a Recorder with all instruments registered.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		fetchAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_attempts_total",
			Help:      "Snapshot source calls made, by kind.",
		}, []string{"kind"}),
		fetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_failures_total",
			Help:      "Snapshot source calls that failed and were skipped, by kind.",
		}, []string{"kind"}),
		recordsAppended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_appended_total",
			Help:      "Records appended to a raw log.",
		}, []string{"log"}),
		malformedRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "malformed_records_total",
			Help:      "Raw log lines skipped as malformed.",
		}, []string{"log"}),
		canonicalEntries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "canonical_entries",
			Help:      "Dates in the canonical series.",
		}, []string{"repository", "metric"}),
		lastRun: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time a phase last completed.",
		}, []string{"phase"}),
	}

	r.registry.MustRegister(
		r.fetchAttempts,
		r.fetchFailures,
		r.recordsAppended,
		r.malformedRecords,
		r.canonicalEntries,
		r.lastRun,
	)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) FetchAttempt(kind string) {
	if r == nil {
		return
	}
	r.fetchAttempts.WithLabelValues(kind).Inc()
}

func (r *Recorder) FetchFailure(kind string) {
	if r == nil {
		return
	}
	r.fetchFailures.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordAppended(log string) {
	if r == nil {
		return
	}
	r.recordsAppended.WithLabelValues(log).Inc()
}

func (r *Recorder) MalformedRecords(log string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.malformedRecords.WithLabelValues(log).Add(float64(n))
}

// CanonicalEntries sets the entry count of one reconciled series.
func (r *Recorder) CanonicalEntries(key domain.SeriesKey, n int) {
	if r == nil {
		return
	}
	r.canonicalEntries.WithLabelValues(key.Repository.String(), string(key.Metric)).Set(float64(n))
}

// PhaseCompleted stamps the completion time of a phase.
func (r *Recorder) PhaseCompleted(phase string, at time.Time) {
	if r == nil {
		return
	}
	r.lastRun.WithLabelValues(phase).Set(float64(at.Unix()))
}

// WriteTextfile atomically writes the registry to path for the node-exporter textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
