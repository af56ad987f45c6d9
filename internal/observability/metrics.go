// Package observability exposes the console's Prometheus metrics.
package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/melih/lighthouse-console/internal/core/cache"
	"github.com/melih/lighthouse-console/internal/core/domain"
	"github.com/melih/lighthouse-console/internal/core/services"
)

const metricsNamespace = "lighthouse_console"

var connectionStates = []domain.ConnectionState{
	domain.ConnectionConnecting,
	domain.ConnectionConnected,
	domain.ConnectionDisconnected,
	domain.ConnectionOffline,
}

// Metrics holds every collector. It implements services.Metrics and
// cache.Observer.
type Metrics struct {
	// PushState is 1 for the current push channel state. Labels: state
	PushState *prometheus.GaugeVec

	ReconnectAttempts prometheus.Counter

	// PushEvents counts decoded push events. Labels: event
	PushEvents *prometheus.CounterVec

	// Polls counts fallback status polls. Labels: outcome (ok, error)
	Polls *prometheus.CounterVec

	Transitions prometheus.Counter

	// Mutations counts reorder requests. Labels: kind, outcome
	Mutations *prometheus.CounterVec

	// Reloads counts full renders. Labels: outcome (ok, error, stale)
	Reloads *prometheus.CounterVec

	// CacheLookups labels: key, result (hit, miss)
	CacheLookups *prometheus.CounterVec

	// ProxyRequests counts passthrough requests. Labels: method, code
	ProxyRequests *prometheus.CounterVec
}

// NewMetrics registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		PushState: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "push_connection_state",
			Help:      "Current push channel state (1 for the active state)",
		}, []string{"state"}),
		ReconnectAttempts: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "push_reconnect_attempts_total",
			Help:      "Scheduled push channel reconnects",
		}),
		PushEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "push_events_total",
			Help:      "Push events received on the live channel",
		}, []string{"event"}),
		Polls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "status_polls_total",
			Help:      "Fallback status polls by outcome",
		}, []string{"outcome"}),
		Transitions: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "status_transitions_total",
			Help:      "Container status changes applied to the board",
		}),
		Mutations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "mutations_total",
			Help:      "Reorder mutations by kind and outcome",
		}, []string{"kind", "outcome"}),
		Reloads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "reloads_total",
			Help:      "Full board reloads by outcome",
		}, []string{"outcome"}),
		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "cache_lookups_total",
			Help:      "Data cache lookups by key and result",
		}, []string{"key", "result"}),
		ProxyRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "proxy_requests_total",
			Help:      "Backend passthrough requests by method and status code",
		}, []string{"method", "code"}),
	}
}

// ConnectionState sets the state gauge to one-hot.
func (m *Metrics) ConnectionState(state domain.ConnectionState) {
	for _, s := range connectionStates {
		v := 0.0
		if s == state {
			v = 1
		}
		m.PushState.WithLabelValues(string(s)).Set(v)
	}
}

func (m *Metrics) ReconnectAttempt() { m.ReconnectAttempts.Inc() }

func (m *Metrics) PushEvent(event string) { m.PushEvents.WithLabelValues(event).Inc() }

func (m *Metrics) Poll(outcome string) { m.Polls.WithLabelValues(outcome).Inc() }

func (m *Metrics) StatusTransitions(n int) { m.Transitions.Add(float64(n)) }

func (m *Metrics) Mutation(kind, outcome string) { m.Mutations.WithLabelValues(kind, outcome).Inc() }

func (m *Metrics) Reload(outcome string) { m.Reloads.WithLabelValues(outcome).Inc() }

// CacheLookup implements cache.Observer. Generic keys are collapsed so
// passthrough paths do not explode label cardinality.
func (m *Metrics) CacheLookup(key string, hit bool) {
	if key != cache.KeyCategories && key != cache.KeyContainers {
		key = "generic"
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(key, result).Inc()
}

// ProxyRequest records one passthrough request.
func (m *Metrics) ProxyRequest(method string, code int) {
	m.ProxyRequests.WithLabelValues(method, strconv.Itoa(code)).Inc()
}

var (
	_ services.Metrics = (*Metrics)(nil)
	_ cache.Observer   = (*Metrics)(nil)
)
