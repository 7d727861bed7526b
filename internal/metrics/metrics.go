// Package metrics owns the process-wide prometheus registry.  Each server
// process constructs exactly one Metrics value and passes it down by
// reference; using a private registry (not the package-level default) keeps
// tests free to build as many instances as they like.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	// WebhookEvents counts provider deliveries by event type and outcome
	// (applied, duplicate, ignored, error).
	WebhookEvents *prometheus.CounterVec

	// ReflectionsWritten counts durable reflection inserts by path
	// (consumer, elevated).
	ReflectionsWritten *prometheus.CounterVec

	// RateLimitRejections counts requests rejected by the fixed-window
	// limiter, by operation.
	RateLimitRejections *prometheus.CounterVec

	// SSESubscribers tracks currently connected stream subscribers.
	SSESubscribers prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		WebhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "perspectives_webhook_events_total",
			Help: "Provider webhook deliveries by type and outcome.",
		}, []string{"type", "outcome"}),
		ReflectionsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "perspectives_reflections_written_total",
			Help: "Durable reflection inserts by authorization path.",
		}, []string{"path"}),
		RateLimitRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "perspectives_rate_limit_rejections_total",
			Help: "Requests rejected by the fixed-window rate limiter.",
		}, []string{"op"}),
		SSESubscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "perspectives_sse_subscribers",
			Help: "Currently connected event-stream subscribers.",
		}),
	}

	reg.MustRegister(
		m.WebhookEvents,
		m.ReflectionsWritten,
		m.RateLimitRejections,
		m.SSESubscribers,
	)

	return m
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
