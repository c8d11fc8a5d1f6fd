package chat

import "github.com/prometheus/client_golang/prometheus"

var (
	// roomConnects counts successful websocket connections, initial and
	// reconnect alike.
	roomConnects = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "howl_client_chat_connects_total",
			Help: "Total number of successful chat websocket connections.",
		},
	)

	// roomTerminalCloses counts connections ended by a non-retryable
	// server close code.
	roomTerminalCloses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "howl_client_chat_terminal_closes_total",
			Help: "Total number of chat connections closed with a non-retryable code.",
		},
	)

	// roomInboundMessages counts message frames received off the wire.
	roomInboundMessages = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "howl_client_chat_messages_received_total",
			Help: "Total number of chat message frames received.",
		},
	)

	// roomFallbackSends counts sends routed over HTTP because the
	// channel was down.
	roomFallbackSends = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "howl_client_chat_fallback_sends_total",
			Help: "Total number of chat sends delivered over the HTTP fallback.",
		},
	)
)

func init() {
	prometheus.MustRegister(roomConnects, roomTerminalCloses, roomInboundMessages, roomFallbackSends)
}
