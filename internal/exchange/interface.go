package exchange

import (
	"context"

	"autotrader/internal/models"
)

// Client - минимальный интерфейс биржи, нужный торговому ядру
//
// Реализации: PaperClient (симуляция), BinanceClient (spot REST),
// RateLimitedClient (декоратор с ограничением частоты запросов).
type Client interface {
	// GetName возвращает имя биржи
	GetName() string

	// GetPrice получает текущую цену символа
	GetPrice(ctx context.Context, symbol string) (float64, error)

	// PlaceMarketOrder размещает рыночный ордер
	// side: models.OrderSideBuy / models.OrderSideSell
	PlaceMarketOrder(ctx context.Context, symbol, side string, qty float64) (*models.OrderFill, error)
}

// ExchangeError представляет ошибку от биржи
type ExchangeError struct {
	Exchange string
	Code     string
	Message  string
	Original error
}

func (e *ExchangeError) Error() string {
	if e.Code != "" {
		return e.Exchange + ": " + e.Message + " (code " + e.Code + ")"
	}
	return e.Exchange + ": " + e.Message
}

// Unwrap возвращает оригинальную ошибку для поддержки errors.Is() и errors.As()
func (e *ExchangeError) Unwrap() error {
	return e.Original
}
