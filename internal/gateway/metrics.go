package gateway

import "github.com/prometheus/client_golang/prometheus"

var (
	// connsActive gauges live, authenticated sessions.
	connsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gateway_connections_active",
			Help: "Current number of authenticated websocket sessions.",
		},
	)

	// eventsTotal counts inbound events by name and outcome
	// (ok, error, rate_limited, dropped).
	eventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_events_total",
			Help: "Inbound websocket events by event and outcome.",
		},
		[]string{"event", "outcome"},
	)

	// pushDropped counts frames dropped because a send queue was full.
	pushDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_push_dropped_total",
			Help: "Outbound frames dropped due to a full send buffer.",
		},
	)

	// superseded counts sessions replaced by a reconnect of the same user.
	superseded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_sessions_superseded_total",
			Help: "Sessions replaced by a newer connection of the same user.",
		},
	)

	// handshakes counts handshake outcomes by result code.
	handshakes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_handshakes_total",
			Help: "Websocket handshakes by result.",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(connsActive, eventsTotal, pushDropped, superseded, handshakes)
}
