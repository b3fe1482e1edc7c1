// Package metrics records batch outcomes in a per-run Prometheus registry
// that is written out in node_exporter textfile-collector format.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "dash"

// Recorder holds the metrics of one run. A nil *Recorder records nothing.
type Recorder struct {
	reg *prometheus.Registry

	sources        *prometheus.CounterVec
	stageDuration  *prometheus.HistogramVec
	encodeFailures *prometheus.CounterVec
	renditions     *prometheus.CounterVec
	retries        *prometheus.CounterVec
	lastRun        prometheus.Gauge
	runDuration    prometheus.Gauge
}

// New returns a Recorder backed by a fresh registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Recorder{
		reg: reg,
		sources: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sources_total",
			Help:      "Sources processed, by outcome.",
		}, []string{"outcome"}),
		stageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time per pipeline stage.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 14), // 0.5s to ~68m
		}, []string{"stage"}),
		encodeFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "encode_failures_total",
			Help:      "Failed encodes, by family and classified reason.",
		}, []string{"family", "reason"}),
		renditions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "renditions_published_total",
			Help:      "Renditions published, by family and height.",
		}, []string{"family", "height"}),
		retries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Source attempts repeated in watch mode, by stage.",
		}, []string{"stage"}),
		lastRun: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last batch finished.",
		}),
		runDuration: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_duration_seconds",
			Help:      "Wall time of the last batch.",
		}),
	}
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.reg
}

// SourceFinished counts one source with its terminal outcome.
func (r *Recorder) SourceFinished(outcome string) {
	if r == nil {
		return
	}
	r.sources.WithLabelValues(outcome).Inc()
}

// ObserveStage records how long a stage took.
func (r *Recorder) ObserveStage(stage string, d time.Duration) {
	if r == nil {
		return
	}
	r.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// EncodeFailed counts a failed encode.
func (r *Recorder) EncodeFailed(family, reason string) {
	if r == nil {
		return
	}
	r.encodeFailures.WithLabelValues(family, reason).Inc()
}

// RenditionPublished counts a published rendition.
func (r *Recorder) RenditionPublished(family string, height int) {
	if r == nil {
		return
	}
	r.renditions.WithLabelValues(family, strconv.Itoa(height)).Inc()
}

// Retried counts a watch-mode retry of a source that failed at stage.
func (r *Recorder) Retried(stage string) {
	if r == nil {
		return
	}
	r.retries.WithLabelValues(stage).Inc()
}

// RunFinished stamps the end of a batch.
func (r *Recorder) RunFinished(end time.Time, d time.Duration) {
	if r == nil {
		return
	}
	r.lastRun.Set(float64(end.Unix()))
	r.runDuration.Set(d.Seconds())
}

// WriteTextfile writes every metric to path atomically, for the
// node_exporter textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.reg)
}
