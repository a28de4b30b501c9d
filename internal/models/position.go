package models

import "time"

// Position представляет позицию по одному символу
//
// Жизненный цикл: (нет позиции) → OPEN → CLOSING → CLOSED.
// CLOSED позиции удаляются из хранилища сразу после закрытия,
// в истории остаётся только TradeRecord.
type Position struct {
	Symbol           string     `json:"symbol"`
	State            string     `json:"state"` // OPEN, CLOSING, CLOSED
	Side             string     `json:"side"`  // LONG, SHORT
	Quantity         float64    `json:"quantity"`
	EntryPrice       float64    `json:"entry_price"`
	ExitPrice        float64    `json:"exit_price,omitempty"` // только для CLOSED
	StopLoss         float64    `json:"stop_loss,omitempty"`   // 0 = не задан
	TakeProfit       float64    `json:"take_profit,omitempty"` // 0 = не задан
	EntryTime        time.Time  `json:"entry_time"`
	ExitTime         *time.Time `json:"exit_time,omitempty"`
	SignalConfidence float64    `json:"signal_confidence"`

	// Поля для отображения (обновляются монитором, на решения не влияют)
	CurrentPrice     float64   `json:"current_price,omitempty"`
	UnrealizedPnl    float64   `json:"unrealized_pnl"`
	UnrealizedPnlPct float64   `json:"unrealized_pnl_pct"`
	LastUpdate       time.Time `json:"last_update,omitempty"`
}

// Состояния позиции (state machine)
const (
	StateNone    = "NONE"    // позиции нет (в хранилище не хранится)
	StateOpen    = "OPEN"    // позиция открыта
	StateClosing = "CLOSING" // отправлен закрывающий ордер
	StateClosed  = "CLOSED"  // позиция закрыта
)

// Направления позиции
const (
	SideLong  = "LONG"  // ставка на рост
	SideShort = "SHORT" // ставка на падение
)

// Стороны ордера
const (
	OrderSideBuy  = "BUY"
	OrderSideSell = "SELL"
)

// OpenOrderSide возвращает сторону ордера, открывающего позицию
func OpenOrderSide(side string) string {
	if side == SideShort {
		return OrderSideSell
	}
	return OrderSideBuy
}

// CloseOrderSide возвращает сторону ордера, закрывающего позицию
// (противоположную направлению позиции)
func CloseOrderSide(side string) string {
	if side == SideShort {
		return OrderSideBuy
	}
	return OrderSideSell
}

// Notional возвращает стоимость входа (entry × qty)
func (p *Position) Notional() float64 {
	return p.EntryPrice * p.Quantity
}

// OrderFill - результат исполнения рыночного ордера
//
// Нулевые значения означают, что биржа не сообщила детали исполнения.
type OrderFill struct {
	OrderID        string    `json:"order_id,omitempty"`
	FilledQuantity float64   `json:"filled_quantity"`
	FilledPrice    float64   `json:"filled_price"`
	FilledAt       time.Time `json:"filled_at"`
}
