package monitoring

import (
	"time"

	"studyhub/internal/core/domain"
	"studyhub/internal/core/ports"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "studyhub"

// PrometheusCollector records signaling and transport metrics.
type PrometheusCollector struct {
	connectionsActive   prometheus.Gauge
	connectionsTotal    prometheus.Counter
	connectionDuration  prometheus.Histogram
	framesDropped       *prometheus.CounterVec
	eventsHandled       *prometheus.CounterVec
	eventDuration       *prometheus.HistogramVec
	participantJoins    *prometheus.CounterVec
	participantLeaves   *prometheus.CounterVec
	signalsRelayed      *prometheus.CounterVec
	signalsRejected     *prometheus.CounterVec
	sessionTransitions  *prometheus.CounterVec
	sessionPersistDelay *prometheus.HistogramVec
	messagesSent        *prometheus.CounterVec
	messagePersistDelay prometheus.Histogram
}

var (
	_ ports.SignalingMetrics = (*PrometheusCollector)(nil)
	_ ports.TransportMetrics = (*PrometheusCollector)(nil)
)

// NewPrometheusCollector registers the collector's metrics with reg.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	factory := promauto.With(reg)

	return &PrometheusCollector{
		connectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Number of open WebSocket connections",
		}),

		connectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Total number of WebSocket connections accepted",
		}),

		connectionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "connection_duration_seconds",
			Help:      "Lifetime of WebSocket connections",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),

		framesDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_dropped_total",
			Help:      "Outbound frames dropped because the receiver was slow or gone",
		}, []string{"event"}),

		eventsHandled: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_handled_total",
			Help:      "Inbound events handled, by outcome",
		}, []string{"event", "outcome"}),

		eventDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "event_duration_seconds",
			Help:      "Time spent handling an inbound event",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"event"}),

		participantJoins: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "participant_joins_total",
			Help:      "Total room joins, by room kind",
		}, []string{"kind"}),

		participantLeaves: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "participant_leaves_total",
			Help:      "Total room departures including disconnects, by room kind",
		}, []string{"kind"}),

		signalsRelayed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signals_relayed_total",
			Help:      "Offers, answers and ICE candidates forwarded",
		}, []string{"signal"}),

		signalsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signals_rejected_total",
			Help:      "Signals not forwarded because the receiver was unavailable",
		}, []string{"signal"}),

		sessionTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_transitions_total",
			Help:      "Session start and end requests, by outcome",
		}, []string{"transition", "outcome"}),

		sessionPersistDelay: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_persist_duration_seconds",
			Help:      "Time spent persisting a session transition",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"transition"}),

		messagesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_messages_total",
			Help:      "Chat messages stored and relayed, by outcome",
		}, []string{"outcome"}),

		messagePersistDelay: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chat_message_persist_duration_seconds",
			Help:      "Time spent writing a chat message to the store",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (p *PrometheusCollector) ConnectionOpened() {
	p.connectionsActive.Inc()
	p.connectionsTotal.Inc()
}

func (p *PrometheusCollector) ConnectionClosed(duration time.Duration) {
	p.connectionsActive.Dec()
	p.connectionDuration.Observe(duration.Seconds())
}

func (p *PrometheusCollector) FrameDropped(event string) {
	p.framesDropped.WithLabelValues(event).Inc()
}

// EventHandled is called with arbitrary client-supplied event names, so
// unknown ones are folded into a single label value.
func (p *PrometheusCollector) EventHandled(event string, duration time.Duration, err error) {
	if !knownEvents[event] {
		event = "unknown"
	}
	p.eventsHandled.WithLabelValues(event, outcome(err)).Inc()
	p.eventDuration.WithLabelValues(event).Observe(duration.Seconds())
}

func (p *PrometheusCollector) RecordParticipantJoined(kind domain.RoomKind) {
	p.participantJoins.WithLabelValues(string(kind)).Inc()
}

func (p *PrometheusCollector) RecordParticipantLeft(kind domain.RoomKind) {
	p.participantLeaves.WithLabelValues(string(kind)).Inc()
}

func (p *PrometheusCollector) RecordSignalRelayed(signal string) {
	p.signalsRelayed.WithLabelValues(signal).Inc()
}

func (p *PrometheusCollector) RecordSignalRejected(signal string) {
	p.signalsRejected.WithLabelValues(signal).Inc()
}

func (p *PrometheusCollector) RecordSessionTransition(transition string, duration time.Duration, err error) {
	p.sessionTransitions.WithLabelValues(transition, outcome(err)).Inc()
	p.sessionPersistDelay.WithLabelValues(transition).Observe(duration.Seconds())
}

func (p *PrometheusCollector) RecordMessageSent(duration time.Duration, err error) {
	p.messagesSent.WithLabelValues(outcome(err)).Inc()
	p.messagePersistDelay.Observe(duration.Seconds())
}

// RegisterRoomGauge exposes the live room count of one presence registry.
func RegisterRoomGauge(reg prometheus.Registerer, kind domain.RoomKind, rooms func() int) {
	promauto.With(reg).NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "rooms_active",
		Help:        "Rooms with at least one participant",
		ConstLabels: prometheus.Labels{"kind": string(kind)},
	}, func() float64 {
		return float64(rooms())
	})
}

var knownEvents = map[string]bool{
	domain.EventJoinGroupCall:  true,
	domain.EventLeaveGroupCall: true,
	domain.EventOffer:          true,
	domain.EventAnswer:         true,
	domain.EventICECandidate:   true,
	domain.EventJoinSession:    true,
	domain.EventLeaveSession:   true,
	domain.EventStartSession:   true,
	domain.EventEndSession:     true,
	domain.EventJoinGroup:      true,
	domain.EventLeaveGroup:     true,
	domain.EventTyping:         true,
	domain.EventStopTyping:     true,
	domain.EventSendMessage:    true,
}
