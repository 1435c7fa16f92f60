// Package metrics owns the Prometheus collectors of the service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups every collector on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRateLimited     prometheus.Counter

	// Domain
	SessionsRecorded    *prometheus.CounterVec
	SessionMinutes      prometheus.Counter
	AchievementsAwarded *prometheus.CounterVec
	StreaksBroken       prometheus.Counter
	AchievementsShared  prometheus.Counter
	GroupEvents         *prometheus.CounterVec

	// Infrastructure
	EventsPublished   *prometheus.CounterVec
	EventHandlerFails *prometheus.CounterVec
	CacheLookups      *prometheus.CounterVec
}

// New creates the collectors under namespace and registers the Go and process collectors.
func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		HTTPRateLimited: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_rate_limited_total",
			Help:      "Requests rejected by the rate limiter",
		}),

		SessionsRecorded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_recorded_total",
			Help:      "Meditation sessions recorded, by activity type",
		}, []string{"activity_type"}),
		SessionMinutes: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_minutes_total",
			Help:      "Total minutes of recorded sessions",
		}),
		AchievementsAwarded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "achievements_awarded_total",
			Help:      "Achievements awarded, by category",
		}, []string{"category"}),
		StreaksBroken: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "streaks_broken_total",
			Help:      "Streaks longer than one day that restarted",
		}),
		AchievementsShared: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "achievements_shared_total",
			Help:      "Attestations issued",
		}),
		GroupEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "group_events_total",
			Help:      "Group lifecycle events, by type",
		}, []string{"type"}),

		EventsPublished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Domain events published on the bus, by type",
		}, []string{"type"}),
		EventHandlerFails: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_handler_failures_total",
			Help:      "Event handler errors and panics, by type",
		}, []string{"type"}),
		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Achievement cache lookups, by result",
		}, []string{"result"}),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
