package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rtsv_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rtsv_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Relay metrics
	ConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rtsv_connections_active",
			Help: "Currently connected relay sockets",
		},
	)

	RelayMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rtsv_relay_messages_total",
			Help: "Inbound relay messages by event name",
		},
		[]string{"event"},
	)

	RelayBroadcastsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rtsv_relay_broadcasts_total",
			Help: "Room broadcasts by outgoing event name",
		},
		[]string{"event"},
	)

	RelayDeliveriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rtsv_relay_deliveries_total",
			Help: "Packets handed to local sockets by broadcasts",
		},
	)

	RelayDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rtsv_relay_dropped_total",
			Help: "Inbound relay messages dropped without a broadcast",
		},
		[]string{"event", "reason"}, // reason: "no_room", "not_member", "unknown_event"
	)

	// Backplane metrics
	BackplanePublishErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rtsv_backplane_publish_errors_total",
			Help: "Failed backplane publications",
		},
	)

	BackplaneEnvelopesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rtsv_backplane_envelopes_received_total",
			Help: "Broadcast envelopes received from other relay instances",
		},
	)
)
