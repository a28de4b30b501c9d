package models

import "time"

// Signal - торговый сигнал от источника сигналов
type Signal struct {
	Symbol      string    `json:"symbol"`
	Action      string    `json:"action"`     // BUY, SELL, HOLD
	Confidence  float64   `json:"confidence"` // [0, 1]
	StopLoss    float64   `json:"stop_loss,omitempty"`
	TakeProfit  float64   `json:"take_profit,omitempty"`
	TargetPrice float64   `json:"target_price,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Действия сигнала
const (
	ActionBuy  = "BUY"
	ActionSell = "SELL"
	ActionHold = "HOLD"
)

// IsValidAction проверяет действие сигнала
func IsValidAction(action string) bool {
	return action == ActionBuy || action == ActionSell || action == ActionHold
}
