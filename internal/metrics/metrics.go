// Package metrics exposes fleet counters and gauges in Prometheus format,
// fed by event-bus subscriptions rather than polling.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"camfleet/internal/events"
)

// Fleet holds the supervisor's Prometheus metrics.
type Fleet struct {
	registry *prometheus.Registry
	handler  http.Handler

	processesLive     prometheus.Gauge
	devicesDiscovered prometheus.Gauge
	spawnsTotal       prometheus.Counter
	exitsTotal        *prometheus.CounterVec
	killFailuresTotal prometheus.Counter
	recordingsTotal   prometheus.Counter

	unsubs []func()
}

// NewFleet creates the metric set on its own registry and subscribes it to
// the bus. A nil bus registers the metrics without feeding them.
func NewFleet(bus *events.Bus) *Fleet {
	registry := prometheus.NewRegistry()

	f := &Fleet{
		registry: registry,
		handler:  promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		processesLive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "camfleet_processes_live",
			Help: "Number of live camera processes.",
		}),
		devicesDiscovered: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "camfleet_devices_discovered",
			Help: "Devices found by the most recent discovery run.",
		}),
		spawnsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "camfleet_process_spawns_total",
			Help: "Camera processes spawned.",
		}),
		exitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "camfleet_process_exits_total",
			Help: "Camera processes that left the fleet, by terminal reason.",
		}, []string{"reason"}),
		killFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "camfleet_kill_failures_total",
			Help: "Kill attempts that timed out or errored.",
		}),
		recordingsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "camfleet_recordings_started_total",
			Help: "Recording sessions started.",
		}),
	}

	registry.MustRegister(
		f.processesLive,
		f.devicesDiscovered,
		f.spawnsTotal,
		f.exitsTotal,
		f.killFailuresTotal,
		f.recordingsTotal,
	)

	if bus != nil {
		f.subscribe(bus)
	}
	return f
}

func (f *Fleet) subscribe(bus *events.Bus) {
	f.unsubs = append(f.unsubs,
		bus.Subscribe(func(_ events.ProcessStartedEvent) {
			f.spawnsTotal.Inc()
			f.processesLive.Inc()
		}),
		bus.Subscribe(func(e events.ProcessExitedEvent) {
			f.exitsTotal.WithLabelValues(e.Reason).Inc()
			f.processesLive.Dec()
		}),
		bus.Subscribe(func(_ events.KillFailedEvent) {
			f.killFailuresTotal.Inc()
		}),
		bus.Subscribe(func(e events.DiscoveryCompletedEvent) {
			f.devicesDiscovered.Set(float64(e.DeviceCount))
		}),
		bus.Subscribe(func(_ events.RecordingStartedEvent) {
			f.recordingsTotal.Inc()
		}),
	)
}

// Handler serves the registry in Prometheus exposition format.
func (f *Fleet) Handler() http.Handler {
	return f.handler
}

// Registry exposes the underlying registry.
func (f *Fleet) Registry() *prometheus.Registry {
	return f.registry
}

// Close drops the event-bus subscriptions.
func (f *Fleet) Close() {
	for _, unsub := range f.unsubs {
		unsub()
	}
	f.unsubs = nil
}
