package mainthread

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the executor's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	TasksDispatched prometheus.Counter
	TasksRejected   *prometheus.CounterVec
	TasksPanicked   prometheus.Counter
	QueueDepth      prometheus.Gauge
	NativeEvents    *prometheus.CounterVec
	TaskDuration    prometheus.Histogram
}

// NewMetrics registers the executor collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		TasksDispatched: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "surface_host_mainthread_tasks_dispatched_total",
				Help: "Total number of closures run on the main thread",
			},
		),
		TasksRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "surface_host_mainthread_tasks_rejected_total",
				Help: "Total number of closures rejected with channel-closed",
			},
			[]string{"stage"},
		),
		TasksPanicked: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "surface_host_mainthread_tasks_panicked_total",
				Help: "Total number of dispatched closures that panicked",
			},
		),
		QueueDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "surface_host_mainthread_queue_depth",
				Help: "Closures waiting for the main thread",
			},
		),
		NativeEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "surface_host_native_events_total",
				Help: "Native platform events handled by the event loop",
			},
			[]string{"kind"},
		),
		TaskDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "surface_host_mainthread_task_duration_seconds",
				Help:    "Time spent running a dispatched closure",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
		),
	}
}

func (m *Metrics) dispatched(d time.Duration) {
	if m == nil {
		return
	}
	m.TasksDispatched.Inc()
	m.TaskDuration.Observe(d.Seconds())
}

func (m *Metrics) rejected(stage string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.TasksRejected.WithLabelValues(stage).Add(float64(n))
}

func (m *Metrics) panicked() {
	if m == nil {
		return
	}
	m.TasksPanicked.Inc()
}

func (m *Metrics) depth(n int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(n))
}

func (m *Metrics) event(kind string) {
	if m == nil {
		return
	}
	m.NativeEvents.WithLabelValues(kind).Inc()
}
