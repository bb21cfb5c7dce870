// Package metrics exposes prometheus collectors for room activity. A nil
// *Metrics is valid and records nothing, so instrumentation points never
// need to guard against an unconfigured host.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors for a single registry
type Metrics struct {
	registry *prometheus.Registry

	activeRooms      prometheus.Gauge
	connectedPlayers prometheus.Gauge
	joinsTotal       prometheus.Counter
	departuresTotal  *prometheus.CounterVec
	eventsTotal      *prometheus.CounterVec
	timeoutsFired    prometheus.Counter
	opFailures       *prometheus.CounterVec
}

// New creates a Metrics backed by its own registry
func New(namespace string) *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		activeRooms: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_rooms",
			Help:      "Number of open rooms",
		}),
		connectedPlayers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected_players",
			Help:      "Number of currently connected players across all rooms",
		}),
		joinsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "player_joins_total",
			Help:      "Total number of accepted player joins",
		}),
		departuresTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "player_departures_total",
			Help:      "Total number of player departures by reason",
		}, []string{"reason"}),
		eventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_emitted_total",
			Help:      "Total number of room events emitted by type",
		}, []string{"event"}),
		timeoutsFired: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "disconnect_timeouts_fired_total",
			Help:      "Total number of disconnect grace periods that expired",
		}),
		opFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_failures_total",
			Help:      "Total number of failed room operations by operation",
		}, []string{"operation"}),
	}
}

// Handler returns an http.Handler serving the registry
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RoomOpened records a new open room
func (m *Metrics) RoomOpened() {
	if m == nil {
		return
	}
	m.activeRooms.Inc()
}

// RoomClosed records a room teardown
func (m *Metrics) RoomClosed() {
	if m == nil {
		return
	}
	m.activeRooms.Dec()
}

// PlayerJoined records an accepted join
func (m *Metrics) PlayerJoined() {
	if m == nil {
		return
	}
	m.joinsTotal.Inc()
	m.connectedPlayers.Inc()
}

// PlayerLeft records a departure; wasConnected keeps the connected gauge
// honest when a disconnected player is removed by timeout
func (m *Metrics) PlayerLeft(reason string, wasConnected bool) {
	if m == nil {
		return
	}
	m.departuresTotal.WithLabelValues(reason).Inc()
	if wasConnected {
		m.connectedPlayers.Dec()
	}
}

// PlayerDisconnected records a player dropping
func (m *Metrics) PlayerDisconnected() {
	if m == nil {
		return
	}
	m.connectedPlayers.Dec()
}

// PlayerReconnected records a player coming back
func (m *Metrics) PlayerReconnected() {
	if m == nil {
		return
	}
	m.connectedPlayers.Inc()
}

// EventEmitted records one emitted event
func (m *Metrics) EventEmitted(event string) {
	if m == nil {
		return
	}
	m.eventsTotal.WithLabelValues(event).Inc()
}

// TimeoutFired records an expired disconnect grace period
func (m *Metrics) TimeoutFired() {
	if m == nil {
		return
	}
	m.timeoutsFired.Inc()
}

// OperationFailed records a failed room operation
func (m *Metrics) OperationFailed(operation string) {
	if m == nil {
		return
	}
	m.opFailures.WithLabelValues(operation).Inc()
}
