// Package signal предоставляет источники торговых сигналов.
package signal

import (
	"context"

	"autotrader/internal/models"
)

// Source - источник торговых сигналов по символу
type Source interface {
	GetSignal(ctx context.Context, symbol string) (*models.Signal, error)
}

// QuotedSource - источник, строящий цели сигнала от переданной цены
//
// DecisionEngine передаёт цену своего тика, чтобы SL/TP и ордер
// считались от одного снимка рынка.
type QuotedSource interface {
	GetSignalAt(ctx context.Context, symbol string, price float64) (*models.Signal, error)
}

// PriceSource - поставщик текущей цены (реализуется клиентом биржи)
type PriceSource interface {
	GetPrice(ctx context.Context, symbol string) (float64, error)
}
