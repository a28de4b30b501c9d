package handlers

import (
	"context"
	"errors"
	"sync"

	"autotrader/internal/bot"
	"autotrader/internal/models"
	"autotrader/pkg/utils"
)

// ErrMockUpstream - ошибка внешнего сервиса для тестов
var ErrMockUpstream = errors.New("mock upstream error")

// MockEngine - потокобезопасный мок TradingEngine
type MockEngine struct {
	mu sync.Mutex

	running    bool
	lastConfig *models.TradingConfig
	startErr   error
	stopCalls  int

	trades    []*models.TradeRecord
	positions []*models.Position
	stats     *models.LedgerStats

	signal     *models.Signal
	predictErr error
	lastLimit  int
}

func NewMockEngine() *MockEngine {
	return &MockEngine{
		stats: &models.LedgerStats{ByReason: map[string]int{}},
	}
}

func (m *MockEngine) Start(cfg *models.TradingConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return bot.ErrAlreadyRunning
	}
	if m.startErr != nil {
		return m.startErr
	}
	normalized, err := bot.NormalizeConfig(cfg)
	if err != nil {
		return err
	}
	m.lastConfig = normalized
	m.running = true
	return nil
}

func (m *MockEngine) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopCalls++
	m.running = false
}

func (m *MockEngine) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *MockEngine) Status() *models.EngineStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &models.EngineStatus{
		Running:       m.running,
		Config:        m.lastConfig.Clone(),
		OpenPositions: m.positions,
		Stats:         m.stats,
		RecentTrades:  m.trades,
	}
}

func (m *MockEngine) Stats() *models.LedgerStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

func (m *MockEngine) Trades(limit int) []*models.TradeRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastLimit = limit
	if limit < len(m.trades) {
		return m.trades[:limit]
	}
	return m.trades
}

func (m *MockEngine) Positions() []*models.Position {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.positions
}

func (m *MockEngine) Predict(ctx context.Context, symbol string) (*models.Signal, error) {
	if err := utils.ValidateSymbol(symbol); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.predictErr != nil {
		return nil, m.predictErr
	}
	sig := *m.signal
	sig.Symbol = utils.NormalizeSymbol(symbol)
	return &sig, nil
}

// newTestHandler - handler с дефолтной конфигурацией и ничего не пишущим логгером
func newTestHandler(engine TradingEngine) *TradingHandler {
	defaults := models.TradingConfig{
		Symbols:              []string{"BTCUSDT", "ETHUSDT"},
		InvestmentPerTrade:   100,
		MaxOpenTrades:        5,
		MinConfidence:        0.7,
		CheckInterval:        models.DefaultCheckInterval,
		MonitorInterval:      models.DefaultMonitorInterval,
		ForcedLiquidationPct: models.DefaultForcedLiquidationPct,
		CallTimeout:          models.DefaultCallTimeout,
	}
	return NewTradingHandler(engine, defaults, utils.NewNopLogger())
}

// MockHistory - мок TradeHistory
type MockHistory struct {
	recent      []*models.TradeRecord
	bySymbols   []*models.TradeRecord
	pnl         map[string]float64
	err         error
	lastSymbols []string
	lastLimit   int
}

func (m *MockHistory) GetRecent(ctx context.Context, limit int) ([]*models.TradeRecord, error) {
	m.lastLimit = limit
	return m.recent, m.err
}

func (m *MockHistory) GetBySymbols(ctx context.Context, symbols []string, limit int) ([]*models.TradeRecord, error) {
	m.lastSymbols = symbols
	m.lastLimit = limit
	return m.bySymbols, m.err
}

func (m *MockHistory) RealizedPnlBySymbol(ctx context.Context) (map[string]float64, error) {
	return m.pnl, m.err
}
