// Package metrics exposes Prometheus collectors for chat clients and the room service.
//
// A nil *Metrics is valid and records nothing, so components can take an
// optional *Metrics without guarding every call.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "lanchat"

// Metrics holds the collectors.
type Metrics struct {
	registry *prometheus.Registry

	messagesReceived  *prometheus.CounterVec
	messagesPublished *prometheus.CounterVec
	publishFailures   prometheus.Counter
	sessionErrors     prometheus.Counter
	stateTransitions  *prometheus.CounterVec
	roomMembers       *prometheus.GaugeVec
	relayed           *prometheus.CounterVec
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		messagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: DefaultNamespace,
			Subsystem: "client",
			Name:      "messages_received_count",
			Help:      "Number of messages received by kind.",
		}, []string{"kind"}),
		messagesPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: DefaultNamespace,
			Subsystem: "client",
			Name:      "messages_published_count",
			Help:      "Number of chat messages published by channel type.",
		}, []string{"type"}),
		publishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: DefaultNamespace,
			Subsystem: "client",
			Name:      "publish_failures_count",
			Help:      "Number of publish operations that failed.",
		}),
		sessionErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: DefaultNamespace,
			Subsystem: "client",
			Name:      "errors_count",
			Help:      "Number of errors recorded by the chat service.",
		}),
		stateTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: DefaultNamespace,
			Subsystem: "client",
			Name:      "state_transitions_count",
			Help:      "Number of session state transitions by target state.",
		}, []string{"state"}),
		roomMembers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: DefaultNamespace,
			Subsystem: "room",
			Name:      "members",
			Help:      "Number of members currently in a room.",
		}, []string{"room"}),
		relayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: DefaultNamespace,
			Subsystem: "room",
			Name:      "relayed_count",
			Help:      "Number of service requests handled by the room service by kind.",
		}, []string{"kind"}),
	}
	m.registry.MustRegister(
		m.messagesReceived,
		m.messagesPublished,
		m.publishFailures,
		m.sessionErrors,
		m.stateTransitions,
		m.roomMembers,
		m.relayed,
	)
	return m
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the collected metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) IncReceived(kind string) {
	if m == nil {
		return
	}
	m.messagesReceived.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncPublished(channelType string) {
	if m == nil {
		return
	}
	m.messagesPublished.WithLabelValues(channelType).Inc()
}

func (m *Metrics) IncPublishFailure() {
	if m == nil {
		return
	}
	m.publishFailures.Inc()
}

func (m *Metrics) IncError() {
	if m == nil {
		return
	}
	m.sessionErrors.Inc()
}

func (m *Metrics) IncStateTransition(state string) {
	if m == nil {
		return
	}
	m.stateTransitions.WithLabelValues(state).Inc()
}

func (m *Metrics) SetRoomMembers(room string, n int) {
	if m == nil {
		return
	}
	m.roomMembers.WithLabelValues(room).Set(float64(n))
}

func (m *Metrics) IncRelayed(kind string) {
	if m == nil {
		return
	}
	m.relayed.WithLabelValues(kind).Inc()
}
