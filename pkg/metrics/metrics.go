package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "signal_bot"

// MonitorTicks - сколько тиков сделал монитор.
var MonitorTicks = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "monitor",
		Name:      "ticks_total",
		Help:      "Lifecycle monitor ticks",
	},
)

// SymbolErrors - ошибки обработки одного символа внутри тика.
var SymbolErrors = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "monitor",
		Name:      "symbol_errors_total",
		Help:      "Per-symbol errors caught inside a monitor tick",
	},
	[]string{"symbol"},
)

// Transitions - переходы состояний позиции.
var Transitions = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "monitor",
		Name:      "transitions_total",
		Help:      "Position lifecycle transitions by target state",
	},
	[]string{"state"},
)

// Watched - сколько символов сейчас в реестре.
var Watched = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "registry",
		Name:      "watched_positions",
		Help:      "Symbols currently supervised",
	},
)

// Orders - ордера по типу (entry|dca|tp|stop) и результату (placed|rejected|skipped|cancelled).
var Orders = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "orders",
		Name:      "total",
		Help:      "Orders submitted to the exchange",
	},
	[]string{"kind", "result"},
)

// Signals - результат приёма сигнала (accepted|cooldown|cap|too_small|busy|rejected|error).
var Signals = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "admission",
		Name:      "signals_total",
		Help:      "Signal admission outcomes",
	},
	[]string{"result"},
)

// ExchangeLatency - латентность REST вызовов биржи.
var ExchangeLatency = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "exchange",
		Name:      "request_duration_seconds",
		Help:      "Exchange REST request latency",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	},
	[]string{"path", "code"},
)
