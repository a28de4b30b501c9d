package bot

import (
	"context"
	"errors"
	"sync"
	"time"

	"autotrader/internal/models"
)

// ============ Mock Exchange ============

// MockExchange мок для exchange.Client
type MockExchange struct {
	mu        sync.Mutex
	prices    map[string]float64
	priceErr  map[string]error
	orderErr  error
	fill      *models.OrderFill // если задан - возвращается вместо исполнения по цене
	orders    []mockOrder

	// Блокировки: вызов ждёт закрытия канала или отмены ctx
	priceGates   map[string]chan struct{}
	orderGate    chan struct{}
	orderEntered chan struct{} // получает значение при входе в PlaceMarketOrder
}

type mockOrder struct {
	Symbol   string
	Side     string
	Quantity float64
}

// NewMockExchange создаёт мок биржи с ценами
func NewMockExchange(prices map[string]float64) *MockExchange {
	p := make(map[string]float64, len(prices))
	for k, v := range prices {
		p[k] = v
	}
	return &MockExchange{prices: p, priceErr: make(map[string]error)}
}

func (m *MockExchange) GetName() string { return "mock" }

func (m *MockExchange) GetPrice(ctx context.Context, symbol string) (float64, error) {
	m.mu.Lock()
	gate := m.priceGates[symbol]
	m.mu.Unlock()
	if err := waitGate(ctx, gate); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.priceErr[symbol]; err != nil {
		return 0, err
	}
	price, ok := m.prices[symbol]
	if !ok {
		return 0, errors.New("unknown symbol")
	}
	return price, nil
}

func (m *MockExchange) PlaceMarketOrder(ctx context.Context, symbol, side string, qty float64) (*models.OrderFill, error) {
	m.mu.Lock()
	gate, entered := m.orderGate, m.orderEntered
	m.mu.Unlock()
	if entered != nil {
		select {
		case entered <- struct{}{}:
		default:
		}
	}
	if err := waitGate(ctx, gate); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.orderErr != nil {
		return nil, m.orderErr
	}
	m.orders = append(m.orders, mockOrder{Symbol: symbol, Side: side, Quantity: qty})

	if m.fill != nil {
		f := *m.fill
		return &f, nil
	}
	return &models.OrderFill{
		OrderID:        "mock-order",
		FilledQuantity: qty,
		FilledPrice:    m.prices[symbol],
		FilledAt:       time.Now(),
	}, nil
}

func (m *MockExchange) SetPrice(symbol string, price float64) {
	m.mu.Lock()
	m.prices[symbol] = price
	m.mu.Unlock()
}

func (m *MockExchange) SetPriceErr(symbol string, err error) {
	m.mu.Lock()
	m.priceErr[symbol] = err
	m.mu.Unlock()
}

func (m *MockExchange) SetOrderErr(err error) {
	m.mu.Lock()
	m.orderErr = err
	m.mu.Unlock()
}

func (m *MockExchange) SetFill(fill *models.OrderFill) {
	m.mu.Lock()
	m.fill = fill
	m.mu.Unlock()
}

// BlockPrice заставляет GetPrice(symbol) висеть до вызова release
func (m *MockExchange) BlockPrice(symbol string) (release func()) {
	gate := make(chan struct{})
	m.mu.Lock()
	if m.priceGates == nil {
		m.priceGates = make(map[string]chan struct{})
	}
	m.priceGates[symbol] = gate
	m.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

// BlockOrders заставляет PlaceMarketOrder висеть до вызова release;
// entered получает значение, когда ордер начал исполняться
func (m *MockExchange) BlockOrders() (entered <-chan struct{}, release func()) {
	gate := make(chan struct{})
	in := make(chan struct{}, 1)
	m.mu.Lock()
	m.orderGate = gate
	m.orderEntered = in
	m.mu.Unlock()
	var once sync.Once
	return in, func() { once.Do(func() { close(gate) }) }
}

// waitGate ждёт закрытия gate (nil - не ждёт) или отмены ctx
func waitGate(ctx context.Context, gate chan struct{}) error {
	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *MockExchange) Orders() []mockOrder {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mockOrder(nil), m.orders...)
}

// ============ Mock Signal Source ============

// MockSignalSource мок для signal.Source
type MockSignalSource struct {
	mu      sync.Mutex
	signals map[string]*models.Signal
	errs    map[string]error
	calls   int
}

func NewMockSignalSource() *MockSignalSource {
	return &MockSignalSource{
		signals: make(map[string]*models.Signal),
		errs:    make(map[string]error),
	}
}

func (m *MockSignalSource) GetSignal(ctx context.Context, symbol string) (*models.Signal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if err := m.errs[symbol]; err != nil {
		return nil, err
	}
	sig, ok := m.signals[symbol]
	if !ok {
		return &models.Signal{Symbol: symbol, Action: models.ActionHold, Confidence: 1}, nil
	}
	s := *sig
	return &s, nil
}

func (m *MockSignalSource) Set(symbol, action string, confidence, stopLoss, takeProfit float64) {
	m.mu.Lock()
	m.signals[symbol] = &models.Signal{
		Symbol:     symbol,
		Action:     action,
		Confidence: confidence,
		StopLoss:   stopLoss,
		TakeProfit: takeProfit,
	}
	m.mu.Unlock()
}

func (m *MockSignalSource) SetErr(symbol string, err error) {
	m.mu.Lock()
	m.errs[symbol] = err
	m.mu.Unlock()
}

func (m *MockSignalSource) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MockQuotedSource - источник, строящий BUY с целями от цены тика
type MockQuotedSource struct {
	*MockSignalSource

	mu     sync.Mutex
	quoted []float64
}

func (m *MockQuotedSource) GetSignalAt(ctx context.Context, symbol string, price float64) (*models.Signal, error) {
	m.mu.Lock()
	m.quoted = append(m.quoted, price)
	m.mu.Unlock()
	return &models.Signal{
		Symbol:     symbol,
		Action:     models.ActionBuy,
		Confidence: 0.9,
		StopLoss:   price * 0.97,
		TakeProfit: price * 1.02,
	}, nil
}

func (m *MockQuotedSource) Quoted() []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]float64(nil), m.quoted...)
}

// ============ Mock Broadcaster ============

// MockBroadcaster мок для EventBroadcaster
type MockBroadcaster struct {
	mu             sync.Mutex
	positionEvents []models.Position
	tradeEvents    []models.TradeRecord
	statsEvents    int
}

func (m *MockBroadcaster) BroadcastPositionUpdate(pos *models.Position) {
	m.mu.Lock()
	m.positionEvents = append(m.positionEvents, *pos)
	m.mu.Unlock()
}

func (m *MockBroadcaster) BroadcastTradeClosed(trade *models.TradeRecord) {
	m.mu.Lock()
	m.tradeEvents = append(m.tradeEvents, *trade)
	m.mu.Unlock()
}

func (m *MockBroadcaster) BroadcastStatsUpdate(stats *models.LedgerStats) {
	m.mu.Lock()
	m.statsEvents++
	m.mu.Unlock()
}

func (m *MockBroadcaster) counts() (positions, trades, stats int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.positionEvents), len(m.tradeEvents), m.statsEvents
}

// ============ Mock Trade Sink ============

// MockTradeSink мок для TradeSink; первые failFirst вызовов возвращают ошибку
type MockTradeSink struct {
	mu        sync.Mutex
	saved     []*models.TradeRecord
	failFirst int
	calls     int
}

func (m *MockTradeSink) SaveTrade(ctx context.Context, trade *models.TradeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.calls <= m.failFirst {
		return errors.New("db unavailable")
	}
	m.saved = append(m.saved, trade)
	return nil
}

func (m *MockTradeSink) Saved() []*models.TradeRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*models.TradeRecord(nil), m.saved...)
}

// ============ Helpers ============

// newTestConfig - конфигурация с короткими таймаутами для тестов
func newTestConfig(symbols ...string) models.TradingConfig {
	return models.TradingConfig{
		Symbols:              symbols,
		InvestmentPerTrade:   100,
		MaxOpenTrades:        5,
		MinConfidence:        0.7,
		CheckInterval:        time.Hour,
		MonitorInterval:      time.Hour,
		ForcedLiquidationPct: -10,
		CallTimeout:          time.Second,
	}
}

// openPosition открывает подтверждённую позицию напрямую через store
func openPosition(t interface{ Fatalf(string, ...interface{}) }, s *PositionStore, symbol string, qty, entry, sl, tp float64) {
	if _, ok := s.TryOpen(symbol, models.Position{Side: models.SideLong, StopLoss: sl, TakeProfit: tp}); !ok {
		t.Fatalf("TryOpen(%s) failed", symbol)
	}
	if _, err := s.ConfirmOpen(symbol, qty, entry, time.Now()); err != nil {
		t.Fatalf("ConfirmOpen(%s) error = %v", symbol, err)
	}
}
