package metrics

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/hilthontt/huddle/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "huddle"

// Metrics is the prometheus view of the broadcast engine and the HTTP
// surface. It satisfies broadcast.Observer.
type Metrics struct {
	registry *prometheus.Registry

	sessions           prometheus.Gauge
	joins              *prometheus.CounterVec
	leaves             *prometheus.CounterVec
	messages           *prometheus.CounterVec
	persistenceFailure *prometheus.CounterVec
	dropped            *prometheus.CounterVec
	rejected           *prometheus.CounterVec

	requests *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_connected",
			Help:      "Websocket sessions currently connected.",
		}),
		joins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "room_joins_total",
			Help:      "Sessions that joined a room.",
		}, []string{"room"}),
		leaves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "room_leaves_total",
			Help:      "Sessions that left a room, explicitly or by disconnecting.",
		}, []string{"room"}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Messages persisted and broadcast.",
		}, []string{"room"}),
		persistenceFailure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persistence_failures_total",
			Help:      "Messages rejected because the store append failed.",
		}, []string{"room"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_dropped_total",
			Help:      "Events not queued because the receiver's outbox was full or closed.",
		}, []string{"room"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_rejected_total",
			Help:      "Engine operations rejected, by operation and reason.",
		}, []string{"operation", "reason"}),
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.sessions, m.joins, m.leaves, m.messages,
		m.persistenceFailure, m.dropped, m.rejected, m.requests,
	)

	return m
}

// TrackRooms exposes the number of live rooms, read at scrape time.
func (m *Metrics) TrackRooms(count func() int) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "rooms_active",
		Help:      "Rooms with at least one member.",
	}, func() float64 { return float64(count()) }))
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) SessionConnected() { m.sessions.Inc() }
func (m *Metrics) SessionDisconnected() { m.sessions.Dec() }

func (m *Metrics) RoomJoined(roomID string) { m.joins.WithLabelValues(roomID).Inc() }
func (m *Metrics) RoomLeft(roomID string) { m.leaves.WithLabelValues(roomID).Inc() }
func (m *Metrics) MessageSent(roomID string) { m.messages.WithLabelValues(roomID).Inc() }
func (m *Metrics) PersistenceFailed(roomID string) { m.persistenceFailure.WithLabelValues(roomID).Inc() }
func (m *Metrics) DeliveryDropped(roomID string) { m.dropped.WithLabelValues(roomID).Inc() }

func (m *Metrics) Rejected(operation string, reason error) {
	m.rejected.WithLabelValues(operation, reasonLabel(reason)).Inc()
}

func (m *Metrics) ObserveRequest(method, route string, status int, seconds float64) {
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Observe(seconds)
}

// reasonLabel keeps label cardinality bounded to the known error kinds.
func reasonLabel(err error) string {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, domain.ErrNotInRoom):
		return "not_in_room"
	case errors.Is(err, domain.ErrIdentityNotFound), errors.Is(err, domain.ErrIdentityLookupFailure):
		return "identity_lookup"
	default:
		return "other"
	}
}
