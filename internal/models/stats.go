package models

import "time"

// LedgerStats - агрегированная статистика по журналу сделок
//
// Пересчитывается при каждом запросе по текущему содержимому журнала.
type LedgerStats struct {
	TotalTrades   int            `json:"total_trades"`
	WinningTrades int            `json:"winning_trades"`
	LosingTrades  int            `json:"losing_trades"`
	WinRate       float64        `json:"win_rate"` // %, 0 без сделок
	TotalPnl      float64        `json:"total_pnl"`
	AveragePnl    float64        `json:"average_pnl"`
	BestTrade     *TradeRecord   `json:"best_trade,omitempty"`
	WorstTrade    *TradeRecord   `json:"worst_trade,omitempty"`
	ByReason      map[string]int `json:"by_reason"`
	Capacity      int            `json:"capacity"`
}

// EngineStatus - снимок состояния торгового движка
type EngineStatus struct {
	Running       bool           `json:"running"`
	Config        *TradingConfig `json:"config,omitempty"`
	StartedAt     *time.Time     `json:"started_at,omitempty"`
	OpenPositions []*Position    `json:"open_positions"`
	Stats         *LedgerStats   `json:"stats"`
	RecentTrades  []*TradeRecord `json:"recent_trades"`
}
