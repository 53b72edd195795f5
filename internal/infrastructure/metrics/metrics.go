package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	messagesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tidyhome_chat_messages_sent_total",
			Help: "Total chat messages appended to the store, by sender role.",
		},
		[]string{"role"},
	)
	sideEffectFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tidyhome_chat_side_effect_failures_total",
			Help: "Best-effort chat writes that failed, by kind.",
		},
		[]string{"kind"},
	)
	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tidyhome_chat_sessions_active",
			Help: "Current number of live chat sessions.",
		},
	)
	wsConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tidyhome_ws_connections",
			Help: "Current number of active websocket connections.",
		},
	)
	toastsRaised = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tidyhome_chat_toasts_total",
			Help: "Toasts raised for messages arriving from the counterpart.",
		},
	)
)

func init() {
	prometheus.MustRegister(messagesSent, sideEffectFailures, activeSessions, wsConnections, toastsRaised)
}

func MessageSent(role string) {
	messagesSent.WithLabelValues(role).Inc()
}

// Kinds of best-effort writes.
const (
	KindCounterIncrement = "counter_increment"
	KindCounterReset     = "counter_reset"
	KindReadReceipt      = "read_receipt"
	KindNotification     = "notification"
)

func SideEffectFailed(kind string) {
	sideEffectFailures.WithLabelValues(kind).Inc()
}

func SessionOpened() {
	activeSessions.Inc()
}

func SessionClosed() {
	activeSessions.Dec()
}

func ConnectionOpened() {
	wsConnections.Inc()
}

func ConnectionClosed() {
	wsConnections.Dec()
}

func ToastsRaised(n int) {
	toastsRaised.Add(float64(n))
}
