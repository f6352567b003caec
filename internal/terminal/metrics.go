package terminal

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// AcquireWait - ожидание слота терминала.
// Рост хвоста указывает на перегрузку одного терминала: счетов
// стало больше, чем слот успевает обслужить за интервал.
var AcquireWait = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: "mt5bridge",
		Subsystem: "gateway",
		Name:      "acquire_wait_seconds",
		Help:      "Time spent waiting for the exclusive terminal slot in seconds",
		Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 2.5, 5, 10, 30},
	},
)
