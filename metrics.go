package ifacemap

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/jward/ifacemap/internal/index"
)

// metrics are registered on a per-Engine registry so several Engines can
// live in one process.
type metrics struct {
	registry *prometheus.Registry

	rebuilds        *prometheus.CounterVec
	rebuildDuration prometheus.Histogram
	filesSkipped    prometheus.Counter
	triggers        *prometheus.CounterVec
	triggersFolded  prometheus.Counter

	generation      prometheus.Gauge
	files           prometheus.Gauge
	interfaces      prometheus.Gauge
	declarations    prometheus.Gauge
	implementations prometheus.Gauge
}

func newMetrics() *metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &metrics{
		registry: reg,
		rebuilds: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ifacemap_rebuilds_total",
			Help: "Full rebuilds by result",
		}, []string{"result"}),
		rebuildDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "ifacemap_rebuild_duration_seconds",
			Help:    "Wall time of successful rebuilds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		filesSkipped: f.NewCounter(prometheus.CounterOpts{
			Name: "ifacemap_files_skipped_total",
			Help: "Enumerated files that could not be read",
		}),
		triggers: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ifacemap_triggers_total",
			Help: "Rebuild requests that queued a rebuild, by reason",
		}, []string{"reason"}),
		triggersFolded: f.NewCounter(prometheus.CounterOpts{
			Name: "ifacemap_triggers_coalesced_total",
			Help: "Rebuild requests folded into an already queued rebuild",
		}),
		generation: f.NewGauge(prometheus.GaugeOpts{
			Name: "ifacemap_generation",
			Help: "Sequence number of the published generation, 0 when empty",
		}),
		files: f.NewGauge(prometheus.GaugeOpts{
			Name: "ifacemap_indexed_files",
			Help: "Files in the published generation",
		}),
		interfaces: f.NewGauge(prometheus.GaugeOpts{
			Name: "ifacemap_interfaces",
			Help: "Interfaces in the published generation",
		}),
		declarations: f.NewGauge(prometheus.GaugeOpts{
			Name: "ifacemap_declarations",
			Help: "Declarations in the published generation",
		}),
		implementations: f.NewGauge(prometheus.GaugeOpts{
			Name: "ifacemap_implemented_interfaces",
			Help: "Interfaces with at least one implementation",
		}),
	}
}

func (m *metrics) rebuildSucceeded(s *RebuildStats) {
	m.rebuilds.WithLabelValues("ok").Inc()
	m.rebuildDuration.Observe(s.Duration.Seconds())
	m.filesSkipped.Add(float64(len(s.Skipped)))
}

func (m *metrics) rebuildFailed() {
	m.rebuilds.WithLabelValues("error").Inc()
}

func (m *metrics) triggered(reason string) {
	m.triggers.WithLabelValues(reason).Inc()
}

func (m *metrics) coalesced() {
	m.triggersFolded.Inc()
}

// observeGeneration sets the gauges from gen; nil resets them.
func (m *metrics) observeGeneration(gen *index.Generation) {
	if gen == nil {
		m.generation.Set(0)
		m.files.Set(0)
		m.interfaces.Set(0)
		m.declarations.Set(0)
		m.implementations.Set(0)
		return
	}
	ifaces, decls, impls := gen.Counts()
	m.generation.Set(float64(gen.Seq))
	m.files.Set(float64(len(gen.Files)))
	m.interfaces.Set(float64(ifaces))
	m.declarations.Set(float64(decls))
	m.implementations.Set(float64(impls))
}

// Registry returns the Engine's metrics registry, for serving or scraping in
// tests.
func (e *Engine) Registry() *prometheus.Registry {
	return e.metrics.registry
}
