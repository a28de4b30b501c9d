package models

import "time"

// TradeRecord - запись о завершённой сделке (неизменяема после создания)
type TradeRecord struct {
	ID               string    `json:"id"`
	Symbol           string    `json:"symbol"`
	Side             string    `json:"side"`
	Quantity         float64   `json:"quantity"`
	EntryPrice       float64   `json:"entry_price"`
	ExitPrice        float64   `json:"exit_price"`
	Pnl              float64   `json:"pnl"`
	PnlPercent       float64   `json:"pnl_percent"`
	SignalConfidence float64   `json:"signal_confidence"`
	EntryTime        time.Time `json:"entry_time"`
	ExitTime         time.Time `json:"exit_time"`
	CloseReason      string    `json:"close_reason"`
}

// Причины закрытия позиции
const (
	CloseReasonSignal            = "SIGNAL"
	CloseReasonStopLoss          = "STOP_LOSS"
	CloseReasonTakeProfit        = "TAKE_PROFIT"
	CloseReasonForcedLiquidation = "FORCED_LIQUIDATION"
)

// CloseReasons - все причины закрытия (для статистики и валидации)
var CloseReasons = []string{
	CloseReasonSignal,
	CloseReasonStopLoss,
	CloseReasonTakeProfit,
	CloseReasonForcedLiquidation,
}

// IsWin - сделка прибыльная (нулевой PNL не считается выигрышем)
func (t *TradeRecord) IsWin() bool {
	return t.Pnl > 0
}

// Duration - время удержания позиции
func (t *TradeRecord) Duration() time.Duration {
	return t.ExitTime.Sub(t.EntryTime)
}
