package exchange

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"autotrader/internal/models"

	"github.com/google/uuid"
)

// basePrices - стартовые цены симуляции
var basePrices = map[string]float64{
	"BTCUSDT": 35000,
	"ETHUSDT": 2000,
	"BNBUSDT": 300,
	"ADAUSDT": 0.25,
	"SOLUSDT": 100,
}

const defaultBasePrice = 100.0

// PaperClient - симуляция биржи в памяти
//
// Цена каждого символа - случайное блуждание вокруг предыдущего значения.
// Рыночные ордера исполняются полностью по текущей цене.
type PaperClient struct {
	mu         sync.Mutex
	prices     map[string]float64
	pinned     map[string]bool
	volatility float64 // максимальный шаг блуждания, доля цены
	rng        *rand.Rand

	orders []PaperOrder
}

// PaperOrder - исполненный симулированный ордер
type PaperOrder struct {
	ID       string
	Symbol   string
	Side     string
	Quantity float64
	Price    float64
	FilledAt time.Time
}

// NewPaperClient создаёт симулятор с заданным seed (одинаковый seed - одинаковые цены)
func NewPaperClient(seed int64) *PaperClient {
	return &PaperClient{
		prices:     make(map[string]float64),
		pinned:     make(map[string]bool),
		volatility: 0.005,
		rng:        rand.New(rand.NewSource(seed)),
	}
}

// GetName возвращает имя биржи
func (p *PaperClient) GetName() string {
	return "paper"
}

// SetPrice фиксирует цену символа (блуждание для него отключается)
func (p *PaperClient) SetPrice(symbol string, price float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prices[symbol] = price
	p.pinned[symbol] = true
}

// GetPrice возвращает текущую цену и сдвигает её случайным шагом
func (p *PaperClient) GetPrice(ctx context.Context, symbol string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if symbol == "" {
		return 0, fmt.Errorf("empty symbol")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	return p.nextPriceLocked(symbol), nil
}

func (p *PaperClient) nextPriceLocked(symbol string) float64 {
	price, ok := p.prices[symbol]
	if !ok {
		price, ok = basePrices[symbol]
		if !ok {
			price = defaultBasePrice
		}
		p.prices[symbol] = price
		return price
	}
	if p.pinned[symbol] {
		return price
	}

	step := (p.rng.Float64()*2 - 1) * p.volatility
	price *= 1 + step
	p.prices[symbol] = price
	return price
}

// PlaceMarketOrder исполняет ордер по текущей цене без сдвига
func (p *PaperClient) PlaceMarketOrder(ctx context.Context, symbol, side string, qty float64) (*models.OrderFill, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if side != models.OrderSideBuy && side != models.OrderSideSell {
		return nil, fmt.Errorf("invalid order side %q", side)
	}
	if qty <= 0 {
		return nil, fmt.Errorf("invalid order quantity %v", qty)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	price, ok := p.prices[symbol]
	if !ok {
		price = p.nextPriceLocked(symbol)
	}

	order := PaperOrder{
		ID:       uuid.NewString(),
		Symbol:   symbol,
		Side:     side,
		Quantity: qty,
		Price:    price,
		FilledAt: time.Now(),
	}
	p.orders = append(p.orders, order)

	return &models.OrderFill{
		OrderID:        order.ID,
		FilledQuantity: qty,
		FilledPrice:    price,
		FilledAt:       order.FilledAt,
	}, nil
}

// Orders возвращает копию истории исполненных ордеров
func (p *PaperClient) Orders() []PaperOrder {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]PaperOrder(nil), p.orders...)
}
