package pipeline

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const metricsJob = "nbuild"

// Metrics exports a build report as Prometheus gauges.
type Metrics struct {
	registry *prometheus.Registry
	duration prometheus.Gauge
	files    prometheus.Gauge
	finished prometheus.Gauge
	bytes    *prometheus.GaugeVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nbuild_build_duration_seconds",
			Help: "Wall time of the last build.",
		}),
		files: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nbuild_image_files",
			Help: "Files placed in the image filesystem or archive.",
		}),
		finished: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nbuild_build_finished_timestamp_seconds",
			Help: "Unix time the last build finished.",
		}),
		bytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "nbuild_artifact_bytes",
			Help: "Size of each produced artifact.",
		}, []string{"kind", "path"}),
	}
	m.registry.MustRegister(m.duration, m.files, m.finished, m.bytes)
	return m
}

func (m *Metrics) Observe(r *Report) {
	m.duration.Set(r.Duration.Seconds())
	m.files.Set(float64(len(r.Entries) + len(r.Archive)))
	m.finished.SetToCurrentTime()
	for _, a := range r.Artifacts {
		m.bytes.WithLabelValues(a.Kind, a.Path).Set(float64(a.Size))
	}
}

// WriteFile writes the gauges in the text exposition format, suitable for
// the node exporter's textfile collector.
func (m *Metrics) WriteFile(path string) error {
	return errors.Wrap(prometheus.WriteToTextfile(path, m.registry), "error writing metrics")
}

// Push replaces the job's metrics on a Pushgateway.
func (m *Metrics) Push(url string) error {
	return errors.Wrap(push.New(url, metricsJob).Gatherer(m.registry).Push(), "error pushing metrics")
}
