package exchange

import (
	"fmt"
	"strings"
	"time"

	"autotrader/internal/config"
)

// SupportedModes - поддерживаемые режимы работы с биржей
var SupportedModes = []string{
	config.ExchangeModePaper,
	config.ExchangeModeBinance,
}

// NewClient создаёт клиента биржи по режиму из конфигурации
//
// Клиент оборачивается в RateLimitedClient если задан EXCHANGE_RATE_LIMIT.
func NewClient(cfg config.ExchangeConfig) (Client, error) {
	var client Client

	switch strings.ToLower(cfg.Mode) {
	case config.ExchangeModePaper:
		client = NewPaperClient(time.Now().UnixNano())
	case config.ExchangeModeBinance:
		if cfg.APIKey == "" || cfg.SecretKey == "" {
			return nil, fmt.Errorf("binance client requires api key and secret")
		}
		client = NewBinanceClient(cfg.APIKey, cfg.SecretKey, cfg.BaseURL)
	default:
		return nil, fmt.Errorf("unsupported exchange mode: %s", cfg.Mode)
	}

	if cfg.RateLimit > 0 {
		client = NewRateLimitedClient(client, cfg.RateLimit, cfg.RateBurst)
	}
	return client, nil
}

// IsSupported проверяет, поддерживается ли режим
func IsSupported(mode string) bool {
	mode = strings.ToLower(mode)
	for _, supported := range SupportedModes {
		if mode == supported {
			return true
		}
	}
	return false
}
