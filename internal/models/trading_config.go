package models

import "time"

// TradingConfig - параметры торговой сессии
//
// Нулевые значения заменяются дефолтами при запуске движка (кроме MinConfidence,
// для которого 0 - осмысленный порог).
type TradingConfig struct {
	Symbols              []string      `json:"symbols" yaml:"symbols"`
	InvestmentPerTrade   float64       `json:"investment_per_trade" yaml:"investment_per_trade"`
	MaxOpenTrades        int           `json:"max_open_trades" yaml:"max_open_trades"`
	MinConfidence        float64       `json:"min_confidence" yaml:"min_confidence"`
	CheckInterval        time.Duration `json:"check_interval" yaml:"check_interval"`
	MonitorInterval      time.Duration `json:"monitor_interval" yaml:"monitor_interval"`
	ForcedLiquidationPct float64       `json:"forced_liquidation_pct" yaml:"forced_liquidation_pct"`
	CallTimeout          time.Duration `json:"call_timeout" yaml:"call_timeout"`
}

// Значения по умолчанию
const (
	DefaultInvestmentPerTrade   = 100.0
	DefaultMaxOpenTrades        = 3
	DefaultMinConfidence        = 0.7
	DefaultCheckInterval        = 60 * time.Second
	DefaultMonitorInterval      = 15 * time.Second
	DefaultForcedLiquidationPct = -10.0
	DefaultCallTimeout          = 10 * time.Second
	DefaultLedgerCapacity       = 1000
)

// DefaultSymbols - список символов по умолчанию
var DefaultSymbols = []string{"BTCUSDT", "ETHUSDT"}

// Clone возвращает глубокую копию конфигурации
func (c *TradingConfig) Clone() *TradingConfig {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Symbols = append([]string(nil), c.Symbols...)
	return &cp
}
