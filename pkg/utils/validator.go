package utils

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// validator.go - валидация торговых параметров
//
// Функции:
// - ValidateSymbol / NormalizeSymbol: формат символа (BTCUSDT, btc-usdt, BTC/USDT)
// - ExtractBaseCurrency / ExtractQuoteCurrency: разбор пары
// - ValidateConfidence: уверенность сигнала в [0, 1]
// - ValidateInvestment: сумма на сделку (> 0)
// - ValidateMaxOpenTrades: лимит позиций (1..100)
// - ValidateLiquidationPct: порог принудительного закрытия (-100..0)

var (
	ErrEmptySymbol   = errors.New("symbol is empty")
	ErrInvalidSymbol = errors.New("invalid symbol format")
)

// 2-30 символов: буквы, цифры и разделители - _ /
var symbolRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9\-_/]{1,29}$`)

// Известные котируемые валюты, от длинных к коротким
var quoteCurrencies = []string{"FDUSD", "USDT", "USDC", "BUSD", "TUSD", "BTC", "ETH", "BNB", "EUR", "USD"}

// ValidateSymbol проверяет формат символа
func ValidateSymbol(symbol string) error {
	if symbol == "" {
		return ErrEmptySymbol
	}
	if !symbolRegex.MatchString(symbol) {
		return fmt.Errorf("%w: %q", ErrInvalidSymbol, symbol)
	}
	return nil
}

// NormalizeSymbol приводит символ к виду биржи: верхний регистр без разделителей
func NormalizeSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	return strings.NewReplacer("-", "", "_", "", "/", "").Replace(s)
}

// ExtractBaseCurrency возвращает базовую валюту пары (BTCUSDT → BTC)
func ExtractBaseCurrency(symbol string) string {
	base, _ := splitSymbol(symbol)
	return base
}

// ExtractQuoteCurrency возвращает котируемую валюту пары (BTCUSDT → USDT)
func ExtractQuoteCurrency(symbol string) string {
	_, quote := splitSymbol(symbol)
	return quote
}

func splitSymbol(symbol string) (base, quote string) {
	s := strings.ToUpper(symbol)
	for _, sep := range []string{"-", "_", "/"} {
		if parts := strings.SplitN(s, sep, 2); len(parts) == 2 {
			return parts[0], parts[1]
		}
	}
	for _, q := range quoteCurrencies {
		if strings.HasSuffix(s, q) && len(s) > len(q) {
			return strings.TrimSuffix(s, q), q
		}
	}
	return s, ""
}

// ValidateConfidence проверяет порог уверенности сигнала
func ValidateConfidence(conf float64) error {
	if conf < 0 || conf > 1 {
		return fmt.Errorf("confidence must be in [0, 1], got %v", conf)
	}
	return nil
}

// ValidateInvestment проверяет сумму на сделку
func ValidateInvestment(amount float64) error {
	if amount <= 0 {
		return fmt.Errorf("investment per trade must be positive, got %v", amount)
	}
	if amount > 1e9 {
		return fmt.Errorf("investment per trade too large: %v", amount)
	}
	return nil
}

// ValidateMaxOpenTrades проверяет лимит одновременно открытых позиций
func ValidateMaxOpenTrades(n int) error {
	if n < 1 || n > 100 {
		return fmt.Errorf("max open trades must be in [1, 100], got %d", n)
	}
	return nil
}

// ValidateLiquidationPct проверяет порог принудительного закрытия (отрицательный процент)
func ValidateLiquidationPct(pct float64) error {
	if pct >= 0 || pct < -100 {
		return fmt.Errorf("forced liquidation pct must be in [-100, 0), got %v", pct)
	}
	return nil
}
