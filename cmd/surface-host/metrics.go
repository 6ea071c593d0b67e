package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/wippyai/surface-host/resource"
)

// resourceMetrics tracks the component's handle table.
type resourceMetrics struct {
	live    *prometheus.GaugeVec
	created *prometheus.CounterVec
}

func newResourceMetrics(reg prometheus.Registerer) *resourceMetrics {
	factory := promauto.With(reg)
	return &resourceMetrics{
		live: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "surface_host_resources",
				Help: "Live resource handles held by the component",
			},
			[]string{"kind"},
		),
		created: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "surface_host_resources_created_total",
				Help: "Resource handles issued to the component",
			},
			[]string{"kind"},
		),
	}
}

func (m *resourceMetrics) observe(e resource.Event) {
	kind := e.Kind.String()
	switch e.Type {
	case resource.EventCreated:
		m.created.WithLabelValues(kind).Inc()
		m.live.WithLabelValues(kind).Inc()
	case resource.EventDropped:
		m.live.WithLabelValues(kind).Dec()
	}
}
