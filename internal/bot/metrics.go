package bot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============================================================
// Prometheus метрики торгового ядра
// ============================================================
//
// Экспортируются через /metrics (promhttp).

// ============ Метрики циклов ============

// LoopTicks - количество выполненных тиков по циклам
var LoopTicks = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "autotrader",
		Subsystem: "engine",
		Name:      "loop_ticks_total",
		Help:      "Total number of completed loop ticks",
	},
	[]string{"loop"}, // decision, monitor
)

// TickDuration - длительность тика (все символы)
var TickDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "autotrader",
		Subsystem: "engine",
		Name:      "tick_duration_ms",
		Help:      "Duration of a full loop tick in milliseconds",
		Buckets:   []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
	},
	[]string{"loop"},
)

// ============ Сигналы ============

// SignalsTotal - полученные сигналы по действиям
var SignalsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "autotrader",
		Subsystem: "trading",
		Name:      "signals_total",
		Help:      "Total number of received signals",
	},
	[]string{"action"},
)

// SignalsRejected - сигналы, отклонённые по уверенности
var SignalsRejected = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "autotrader",
		Subsystem: "trading",
		Name:      "signals_rejected_total",
		Help:      "Number of signals rejected by the confidence gate",
	},
	[]string{"symbol"},
)

// ============ Позиции и сделки ============

// PositionsOpened - открытые позиции
var PositionsOpened = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "autotrader",
		Subsystem: "trading",
		Name:      "positions_opened_total",
		Help:      "Total number of opened positions",
	},
	[]string{"symbol"},
)

// PositionsClosed - закрытые позиции по причинам
var PositionsClosed = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "autotrader",
		Subsystem: "trading",
		Name:      "positions_closed_total",
		Help:      "Total number of closed positions by reason",
	},
	[]string{"symbol", "reason"},
)

// OpenPositions - текущее число позиций, занимающих слот
var OpenPositions = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "autotrader",
		Subsystem: "trading",
		Name:      "open_positions",
		Help:      "Current number of open or closing positions",
	},
)

// RealizedPnl - суммарный реализованный PNL (может быть отрицательным)
var RealizedPnl = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "autotrader",
		Subsystem: "trading",
		Name:      "realized_pnl_usdt",
		Help:      "Total realized PnL in quote currency",
	},
)

// ============ Биржа и сигналы: ошибки и латентность ============

// CollaboratorErrors - ошибки внешних вызовов по операциям
var CollaboratorErrors = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "autotrader",
		Subsystem: "exchange",
		Name:      "errors_total",
		Help:      "Number of failed exchange and signal calls",
	},
	[]string{"operation"}, // get_price, get_signal, open_order, close_order, persist
)

// OrderExecutionLatency - время исполнения ордера на бирже
var OrderExecutionLatency = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "autotrader",
		Subsystem: "exchange",
		Name:      "order_execution_latency_ms",
		Help:      "Time to execute order on exchange in milliseconds",
		Buckets:   []float64{50, 100, 200, 300, 500, 1000, 2000, 5000},
	},
	[]string{"side"},
)

// ============ Вспомогательные функции ============

// RecordTick записывает завершённый тик цикла
func RecordTick(loop string, durationMs float64) {
	LoopTicks.WithLabelValues(loop).Inc()
	TickDuration.WithLabelValues(loop).Observe(durationMs)
}

// RecordSignal записывает полученный сигнал
func RecordSignal(action string) {
	SignalsTotal.WithLabelValues(action).Inc()
}

// RecordRejectedSignal записывает сигнал, отклонённый по уверенности
func RecordRejectedSignal(symbol string) {
	SignalsRejected.WithLabelValues(symbol).Inc()
}

// RecordError записывает ошибку внешнего вызова
func RecordError(operation string) {
	CollaboratorErrors.WithLabelValues(operation).Inc()
}

// RecordOrderLatency записывает латентность ордера
func RecordOrderLatency(side string, latencyMs float64) {
	OrderExecutionLatency.WithLabelValues(side).Observe(latencyMs)
}

// RecordOpen записывает открытие позиции
func RecordOpen(symbol string) {
	PositionsOpened.WithLabelValues(symbol).Inc()
}

// RecordClose записывает закрытие позиции
func RecordClose(symbol, reason string) {
	PositionsClosed.WithLabelValues(symbol, reason).Inc()
}

// UpdateOpenPositions обновляет gauge открытых позиций
func UpdateOpenPositions(count int) {
	OpenPositions.Set(float64(count))
}

// UpdateRealizedPnl обновляет gauge реализованного PNL
func UpdateRealizedPnl(total float64) {
	RealizedPnl.Set(total)
}
