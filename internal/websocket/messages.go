package websocket

import (
	"time"

	"autotrader/internal/models"
	"autotrader/pkg/utils"
)

// ============ Типы сообщений ============

// MessageType - тип сообщения, отправляемого клиентам
type MessageType string

const (
	// MessageTypePositionUpdate - позиция открыта или обновлена монитором
	MessageTypePositionUpdate MessageType = "positionUpdate"

	// MessageTypeTradeClosed - позиция закрыта, сделка записана в журнал
	MessageTypeTradeClosed MessageType = "tradeClosed"

	// MessageTypeStatsUpdate - пересчитанная статистика журнала
	MessageTypeStatsUpdate MessageType = "statsUpdate"
)

// BaseMessage - общие поля всех сообщений
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp int64       `json:"timestamp"` // unix ms
}

func newBase(t MessageType) BaseMessage {
	return BaseMessage{Type: t, Timestamp: time.Now().UnixMilli()}
}

// ============ positionUpdate ============

// PositionUpdateMessage - обновление открытой позиции
type PositionUpdateMessage struct {
	BaseMessage
	Symbol string             `json:"symbol"`
	Data   PositionUpdateData `json:"data"`
}

// PositionUpdateData - данные позиции для отображения
//
// Значения PNL округлены до центов, сравнения с порогами на стороне клиента не делаются.
type PositionUpdateData struct {
	State            string  `json:"state"`
	Side             string  `json:"side"`
	Quantity         float64 `json:"quantity"`
	EntryPrice       float64 `json:"entry_price"`
	CurrentPrice     float64 `json:"current_price"`
	StopLoss         float64 `json:"stop_loss,omitempty"`
	TakeProfit       float64 `json:"take_profit,omitempty"`
	UnrealizedPnl    float64 `json:"unrealized_pnl"`
	UnrealizedPnlPct float64 `json:"unrealized_pnl_pct"`
	EntryTime        int64   `json:"entry_time"`
}

// NewPositionUpdateMessage создаёт сообщение из снимка позиции
func NewPositionUpdateMessage(pos *models.Position) *PositionUpdateMessage {
	current := pos.CurrentPrice
	if current == 0 {
		// Только что открытая позиция ещё не размечена монитором
		current = pos.EntryPrice
	}

	return &PositionUpdateMessage{
		BaseMessage: newBase(MessageTypePositionUpdate),
		Symbol:      pos.Symbol,
		Data: PositionUpdateData{
			State:            pos.State,
			Side:             pos.Side,
			Quantity:         pos.Quantity,
			EntryPrice:       pos.EntryPrice,
			CurrentPrice:     current,
			StopLoss:         pos.StopLoss,
			TakeProfit:       pos.TakeProfit,
			UnrealizedPnl:    utils.Round2(pos.UnrealizedPnl),
			UnrealizedPnlPct: utils.Round2(pos.UnrealizedPnlPct),
			EntryTime:        pos.EntryTime.UnixMilli(),
		},
	}
}

// ============ tradeClosed ============

// TradeClosedMessage - сделка завершена
type TradeClosedMessage struct {
	BaseMessage
	Data *models.TradeRecord `json:"data"`
}

// NewTradeClosedMessage создаёт сообщение о закрытой сделке
func NewTradeClosedMessage(trade *models.TradeRecord) *TradeClosedMessage {
	return &TradeClosedMessage{
		BaseMessage: newBase(MessageTypeTradeClosed),
		Data:        trade,
	}
}

// ============ statsUpdate ============

// StatsUpdateMessage - сводная статистика журнала
type StatsUpdateMessage struct {
	BaseMessage
	Data StatsUpdateData `json:"data"`
}

// StatsUpdateData - облегчённая статистика (без лучшей/худшей сделки)
type StatsUpdateData struct {
	TotalTrades   int            `json:"total_trades"`
	WinningTrades int            `json:"winning_trades"`
	LosingTrades  int            `json:"losing_trades"`
	WinRate       float64        `json:"win_rate"`
	TotalPnl      float64        `json:"total_pnl"`
	AveragePnl    float64        `json:"average_pnl"`
	ByReason      map[string]int `json:"by_reason"`
}

// NewStatsUpdateMessage создаёт сообщение со статистикой
func NewStatsUpdateMessage(stats *models.LedgerStats) *StatsUpdateMessage {
	return &StatsUpdateMessage{
		BaseMessage: newBase(MessageTypeStatsUpdate),
		Data: StatsUpdateData{
			TotalTrades:   stats.TotalTrades,
			WinningTrades: stats.WinningTrades,
			LosingTrades:  stats.LosingTrades,
			WinRate:       utils.Round2(stats.WinRate),
			TotalPnl:      utils.Round2(stats.TotalPnl),
			AveragePnl:    utils.Round2(stats.AveragePnl),
			ByReason:      stats.ByReason,
		},
	}
}
