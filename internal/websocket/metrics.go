package websocket

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ConnectedClients - текущее количество WebSocket соединений
var ConnectedClients = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "mt5bridge",
		Subsystem: "ws",
		Name:      "connected_clients",
		Help:      "Current number of connected WebSocket clients",
	},
)

// DroppedMessagesTotal - события, отброшенные из-за переполнения
// канала рассылки hub
var DroppedMessagesTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "mt5bridge",
		Subsystem: "ws",
		Name:      "dropped_messages_total",
		Help:      "Events dropped because the hub publish channel was full",
	},
)
