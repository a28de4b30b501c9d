package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

// ============ Position Tests ============

func TestOrderSides(t *testing.T) {
	tests := []struct {
		side      string
		wantOpen  string
		wantClose string
	}{
		{SideLong, OrderSideBuy, OrderSideSell},
		{SideShort, OrderSideSell, OrderSideBuy},
	}

	for _, tt := range tests {
		t.Run(tt.side, func(t *testing.T) {
			if got := OpenOrderSide(tt.side); got != tt.wantOpen {
				t.Errorf("OpenOrderSide(%s) = %s, want %s", tt.side, got, tt.wantOpen)
			}
			if got := CloseOrderSide(tt.side); got != tt.wantClose {
				t.Errorf("CloseOrderSide(%s) = %s, want %s", tt.side, got, tt.wantClose)
			}
		})
	}
}

func TestPosition_Notional(t *testing.T) {
	p := Position{EntryPrice: 35000, Quantity: 100.0 / 35000}
	if n := p.Notional(); n < 99.999 || n > 100.001 {
		t.Errorf("Notional() = %v, want 100", n)
	}
}

func TestPosition_JSONFieldNames(t *testing.T) {
	p := Position{
		Symbol:     "BTCUSDT",
		State:      StateOpen,
		Side:       SideLong,
		Quantity:   0.01,
		EntryPrice: 35000,
		EntryTime:  time.Now(),
	}

	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("ошибка сериализации: %v", err)
	}
	jsonStr := string(data)

	for _, field := range []string{`"symbol"`, `"state"`, `"side"`, `"entry_price"`, `"unrealized_pnl"`} {
		if !strings.Contains(jsonStr, field) {
			t.Errorf("поле %s должно быть в JSON: %s", field, jsonStr)
		}
	}
	// Незаданные SL/TP и время выхода не сериализуются
	for _, field := range []string{`"stop_loss"`, `"take_profit"`, `"exit_time"`} {
		if strings.Contains(jsonStr, field) {
			t.Errorf("поле %s не должно быть в JSON: %s", field, jsonStr)
		}
	}
}

// ============ TradeRecord Tests ============

func TestTradeRecord_IsWin(t *testing.T) {
	tests := []struct {
		pnl  float64
		want bool
	}{
		{10, true},
		{0.01, true},
		{0, false},
		{-10, false},
	}

	for _, tt := range tests {
		tr := TradeRecord{Pnl: tt.pnl}
		if got := tr.IsWin(); got != tt.want {
			t.Errorf("IsWin() with pnl=%v = %v, want %v", tt.pnl, got, tt.want)
		}
	}
}

func TestTradeRecord_Duration(t *testing.T) {
	entry := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	tr := TradeRecord{EntryTime: entry, ExitTime: entry.Add(90 * time.Minute)}
	if d := tr.Duration(); d != 90*time.Minute {
		t.Errorf("Duration() = %v, want 90m", d)
	}
}

func TestCloseReasons(t *testing.T) {
	expected := map[string]bool{
		"SIGNAL":             true,
		"STOP_LOSS":          true,
		"TAKE_PROFIT":        true,
		"FORCED_LIQUIDATION": true,
	}
	if len(CloseReasons) != len(expected) {
		t.Fatalf("len(CloseReasons) = %d, want %d", len(CloseReasons), len(expected))
	}
	for _, r := range CloseReasons {
		if !expected[r] {
			t.Errorf("unexpected close reason %q", r)
		}
	}
}

// ============ Signal Tests ============

func TestIsValidAction(t *testing.T) {
	tests := []struct {
		action string
		want   bool
	}{
		{ActionBuy, true},
		{ActionSell, true},
		{ActionHold, true},
		{"buy", false},
		{"", false},
		{"SHORT", false},
	}

	for _, tt := range tests {
		if got := IsValidAction(tt.action); got != tt.want {
			t.Errorf("IsValidAction(%q) = %v, want %v", tt.action, got, tt.want)
		}
	}
}

// ============ TradingConfig Tests ============

func TestTradingConfig_Clone(t *testing.T) {
	orig := &TradingConfig{Symbols: []string{"BTCUSDT", "ETHUSDT"}, MaxOpenTrades: 3}
	cp := orig.Clone()

	cp.Symbols[0] = "SOLUSDT"
	cp.MaxOpenTrades = 10

	if orig.Symbols[0] != "BTCUSDT" {
		t.Error("Clone() должен копировать слайс символов")
	}
	if orig.MaxOpenTrades != 3 {
		t.Error("Clone() не должен изменять оригинал")
	}

	var nilCfg *TradingConfig
	if nilCfg.Clone() != nil {
		t.Error("Clone() of nil should return nil")
	}
}
