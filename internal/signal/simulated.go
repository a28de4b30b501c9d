package signal

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"autotrader/internal/models"
)

// Множители целевых цен относительно текущей
const (
	takeProfitRatio  = 1.02 // краткосрочная цель +2%
	targetPriceRatio = 1.05 // среднесрочная цель +5%
	stopLossRatio    = 0.97 // стоп -3%
)

// SimulatedSource - генератор случайных сигналов для paper-режима
//
// Действие равновероятно BUY/SELL/HOLD, уверенность в [0.5, 1.0).
// SL/TP считаются от текущей цены биржи.
type SimulatedSource struct {
	prices PriceSource

	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

// NewSimulatedSource создаёт генератор с заданным seed
func NewSimulatedSource(prices PriceSource, seed int64) *SimulatedSource {
	return &SimulatedSource{
		prices: prices,
		rng:    rand.New(rand.NewSource(seed)),
		now:    time.Now,
	}
}

var simulatedActions = []string{models.ActionBuy, models.ActionSell, models.ActionHold}

// GetSignal возвращает случайный сигнал с целями от текущей цены
func (s *SimulatedSource) GetSignal(ctx context.Context, symbol string) (*models.Signal, error) {
	price, err := s.prices.GetPrice(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("get price for signal %s: %w", symbol, err)
	}
	return s.GetSignalAt(ctx, symbol, price)
}

// GetSignalAt возвращает случайный сигнал с целями от переданной цены
func (s *SimulatedSource) GetSignalAt(ctx context.Context, symbol string, price float64) (*models.Signal, error) {
	if price <= 0 {
		return nil, fmt.Errorf("invalid price %v for signal %s", price, symbol)
	}

	s.mu.Lock()
	action := simulatedActions[s.rng.Intn(len(simulatedActions))]
	confidence := 0.5 + s.rng.Float64()*0.5
	s.mu.Unlock()

	return &models.Signal{
		Symbol:      symbol,
		Action:      action,
		Confidence:  confidence,
		StopLoss:    price * stopLossRatio,
		TakeProfit:  price * takeProfitRatio,
		TargetPrice: price * targetPriceRatio,
		Reason:      "simulated",
		GeneratedAt: s.now(),
	}, nil
}
