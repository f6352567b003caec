package syncer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============================================================
// Prometheus метрики синхронизации счетов
// ============================================================
//
// Использование:
// - Grafana дашборды для визуализации
// - Alertmanager для уведомлений о проблемах

// ============ Метрики латентности ============

// SyncDuration - длительность полного цикла синхронизации счёта
// (захват слота терминала, логин, чтение состояния)
var SyncDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "mt5bridge",
		Subsystem: "sync",
		Name:      "duration_seconds",
		Help:      "Duration of a full account sync cycle in seconds",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	},
	[]string{"result"}, // success, transient_error, permanent_error
)

// ============ Счётчики событий ============

// SyncsTotal - количество синхронизаций по результатам
var SyncsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "mt5bridge",
		Subsystem: "sync",
		Name:      "attempts_total",
		Help:      "Total number of sync attempts",
	},
	[]string{"result"}, // success, transient_error, permanent_error, discarded
)

// GatewayBusyTotal - сколько раз слот терминала не достался вовремя
var GatewayBusyTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "mt5bridge",
		Subsystem: "sync",
		Name:      "gateway_busy_total",
		Help:      "Number of sync attempts rejected because the terminal slot was busy",
	},
)

// AccountsGaveUp - счета, переведённые в ERROR после исчерпания попыток
var AccountsGaveUp = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "mt5bridge",
		Subsystem: "sync",
		Name:      "accounts_gave_up_total",
		Help:      "Accounts moved to ERROR after exhausting reconnect attempts",
	},
)

// ============ Метрики состояния ============

// AccountsByStatus - текущее количество счетов по статусам
var AccountsByStatus = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "mt5bridge",
		Subsystem: "sync",
		Name:      "accounts",
		Help:      "Current number of tracked accounts by status",
	},
	[]string{"status"},
)

// InFlightSyncs - количество синхронизаций, выполняющихся прямо сейчас
var InFlightSyncs = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "mt5bridge",
		Subsystem: "sync",
		Name:      "in_flight",
		Help:      "Number of account syncs currently in flight",
	},
)
