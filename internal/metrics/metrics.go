// Package metrics exposes node counters in the Prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/coreman2200/bespeckle/internal/engine"
	"github.com/coreman2200/bespeckle/internal/events"
	"github.com/coreman2200/bespeckle/internal/packet"
	"github.com/coreman2200/bespeckle/internal/render"
)

const namespace = "bespeckle"

// Metrics owns a private registry so several nodes (or tests) can live in
// one process.
type Metrics struct {
	reg *prometheus.Registry

	packets      *prometheus.CounterVec
	created      *prometheus.CounterVec
	removed      *prometheus.CounterVec
	resets       *prometheus.CounterVec
	beats        prometheus.Counter
	frameSeconds *prometheus.HistogramVec
	driverErrors prometheus.Counter
	lastErrors   uint64
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	f := promauto.With(reg)

	m := &Metrics{
		reg: reg,
		packets: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "packets_total",
			Help:      "Packets handled by op and outcome",
		}, []string{"op", "outcome"}),
		created: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "effects_created_total",
			Help:      "Effects created by kind",
		}, []string{"kind"}),
		removed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "effects_removed_total",
			Help:      "Effects removed by kind and reason",
		}, []string{"kind", "reason"}),
		resets: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "resets_total",
			Help:      "Engine resets by command",
		}, []string{"cmd"}),
		beats: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "clock",
			Name:      "beats_total",
			Help:      "Beats delivered to the effect stack",
		}),
		frameSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "render",
			Name:      "frame_seconds",
			Help:      "Time spent per frame by stage",
			Buckets:   []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .025},
		}, []string{"stage"}),
		driverErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "render",
			Name:      "driver_errors_total",
			Help:      "Frames the strip driver failed to write",
		}),
	}
	for _, o := range engine.Outcomes() {
		m.packets.WithLabelValues("create", o.String())
	}
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry for /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Active registers a gauge reporting the live effect count and the pool
// capacity.
func (m *Metrics) Active(e *engine.Engine) {
	f := promauto.With(m.reg)
	f.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "active_effects",
		Help:      "Effects currently in the pool",
	}, func() float64 { return float64(e.Active()) })
	f.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "pool_capacity",
		Help:      "Maximum number of live effects",
	}, func() float64 { return float64(e.Capacity()) })
}

// Packet counts one handled packet.
func (m *Metrics) Packet(p packet.Packet, o engine.Outcome) {
	m.packets.WithLabelValues(p.Op(), o.String()).Inc()
}

// Frame records the timings of a rendered frame.
func (m *Metrics) Frame(s render.Stats) {
	m.frameSeconds.WithLabelValues("compose").Observe(s.RenderMS / 1000)
	m.frameSeconds.WithLabelValues("post").Observe(s.PostMS / 1000)
	m.frameSeconds.WithLabelValues("total").Observe(s.TotalMS / 1000)
	if s.Errors > m.lastErrors {
		m.driverErrors.Add(float64(s.Errors - m.lastErrors))
		m.lastErrors = s.Errors
	}
}

// Subscribe counts engine events from bus. The returned function detaches.
func (m *Metrics) Subscribe(bus *events.Bus) func() {
	unsubs := []func(){
		bus.Subscribe(func(e events.EffectCreated) {
			m.created.WithLabelValues(e.Name).Inc()
		}),
		bus.Subscribe(func(e events.EffectRemoved) {
			m.removed.WithLabelValues(e.Name, e.Reason).Inc()
		}),
		bus.Subscribe(func(e events.EngineReset) {
			cmd := "reset"
			if e.Reboot {
				cmd = "reboot"
			}
			m.resets.WithLabelValues(cmd).Inc()
		}),
		bus.Subscribe(func(events.Beat) { m.beats.Inc() }),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
