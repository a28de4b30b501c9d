package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"autotrader/internal/exchange"
	"autotrader/internal/models"
	"autotrader/internal/signal"
	"autotrader/pkg/retry"
	"autotrader/pkg/utils"
)

// recentTradesInStatus - сколько последних сделок отдаёт Status
const recentTradesInStatus = 10

// persistTimeout - общий бюджет асинхронной записи одной сделки (с повторами)
const persistTimeout = 30 * time.Second

// EventBroadcaster - интерфейс для отправки событий клиентам
//
// Реализуется пакетом internal/websocket/Hub.
type EventBroadcaster interface {
	// BroadcastPositionUpdate - позиция открыта или обновлена mark-цена
	BroadcastPositionUpdate(pos *models.Position)

	// BroadcastTradeClosed - позиция закрыта, сделка записана в журнал
	BroadcastTradeClosed(trade *models.TradeRecord)

	// BroadcastStatsUpdate - статистика после каждой закрытой сделки
	BroadcastStatsUpdate(stats *models.LedgerStats)
}

// TradeSink - постоянное хранилище сделок (реализуется repository.TradeRepository)
type TradeSink interface {
	SaveTrade(ctx context.Context, trade *models.TradeRecord) error
}

// Engine - торговый движок: два независимых цикла над общим PositionStore
//
// Архитектура:
//
//	decision loop (CheckInterval):   цена + сигнал → OrderExecutor.Open / Close(SIGNAL)
//	monitor loop  (MonitorInterval): цена → EvaluateExit → OrderExecutor.Close(SL/TP/FORCED)
//
// Оба цикла закрывают позиции только через TryBeginClose, поэтому
// одну позицию не закроют дважды. Store и ledger живут дольше одного запуска:
// после Stop/Start открытые позиции и история сохраняются.
type Engine struct {
	exch    exchange.Client
	signals signal.Source
	store   *PositionStore
	ledger  *TradingLedger
	log     *utils.Logger

	// lifecycle сериализует Start/Stop целиком
	lifecycle sync.Mutex

	mu        sync.RWMutex
	running   bool
	cfg       *models.TradingConfig
	startedAt time.Time
	cancel    context.CancelFunc
	loopsDone chan struct{}
	monitor   *PositionMonitor

	broadcaster EventBroadcaster
	sink        TradeSink
	persistWg   sync.WaitGroup

	pnlMu       sync.Mutex
	realizedPnl float64
}

// NewEngine создаёт остановленный движок
func NewEngine(exch exchange.Client, signals signal.Source, ledgerCapacity int, log *utils.Logger) *Engine {
	if log == nil {
		log = utils.NewNopLogger()
	}
	return &Engine{
		exch:    exch,
		signals: signals,
		store:   NewPositionStore(models.DefaultMaxOpenTrades),
		ledger:  NewTradingLedger(ledgerCapacity),
		log:     log.WithComponent("engine"),
	}
}

// SetBroadcaster подключает push-уведомления (до Start)
func (e *Engine) SetBroadcaster(b EventBroadcaster) {
	e.mu.Lock()
	e.broadcaster = b
	e.mu.Unlock()
}

// SetTradeSink подключает постоянное хранилище сделок (до Start)
func (e *Engine) SetTradeSink(sink TradeSink) {
	e.mu.Lock()
	e.sink = sink
	e.mu.Unlock()
}

// RestoreHistory загружает сделки из постоянного хранилища в журнал
//
// records ожидаются новыми первыми (как отдаёт TradeRepository.GetRecent).
// Вызывается при старте процесса до Start; повторно сделки не сохраняются.
func (e *Engine) RestoreHistory(records []*models.TradeRecord) {
	var restored float64
	for i := len(records) - 1; i >= 0; i-- {
		if records[i] == nil {
			continue
		}
		e.ledger.Append(records[i])
		restored += records[i].Pnl
	}

	e.pnlMu.Lock()
	e.realizedPnl += restored
	total := e.realizedPnl
	e.pnlMu.Unlock()

	UpdateRealizedPnl(total)
	e.log.Info("trade history restored",
		utils.Int("trades", len(records)),
		utils.PNL(restored),
	)
}

// ============ Жизненный цикл ============

// Start проверяет конфигурацию и запускает оба цикла
//
// Возвращает ErrAlreadyRunning если движок уже запущен,
// ErrEmptyWatchlist / ErrInvalidConfig при некорректной конфигурации.
func (e *Engine) Start(cfg *models.TradingConfig) error {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()

	if e.IsRunning() {
		return ErrAlreadyRunning
	}

	normalized, err := NormalizeConfig(cfg)
	if err != nil {
		return err
	}

	e.store.SetMaxOpenTrades(normalized.MaxOpenTrades)

	exec := NewOrderExecutor(e.store, e.exch, normalized.CallTimeout, e.log, ExecutorHooks{
		OnOpened: e.onPositionOpened,
		OnClosed: e.onTradeClosed,
	})
	decision := NewDecisionEngine(*normalized, e.store, exec, e.exch, e.signals, e.log)
	monitor := NewPositionMonitor(*normalized, e.store, exec, e.exch, e.log, e.onPositionMarked)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	e.mu.Lock()
	e.running = true
	e.cfg = normalized
	e.startedAt = time.Now()
	e.cancel = cancel
	e.loopsDone = done
	e.monitor = monitor
	e.mu.Unlock()

	var loops sync.WaitGroup
	loops.Add(2)
	go func() {
		defer loops.Done()
		runLoop(ctx, normalized.CheckInterval, false, decision.Tick)
	}()
	go func() {
		defer loops.Done()
		runLoop(ctx, normalized.MonitorInterval, true, monitor.Tick)
	}()
	go func() {
		loops.Wait()
		close(done)
	}()

	e.log.Info("trading engine started",
		utils.Any("symbols", normalized.Symbols),
		utils.Float64("investment_per_trade", normalized.InvestmentPerTrade),
		utils.Int("max_open_trades", normalized.MaxOpenTrades),
		utils.Float64("min_confidence", normalized.MinConfidence),
		utils.Duration("check_interval", normalized.CheckInterval),
		utils.Duration("monitor_interval", normalized.MonitorInterval),
	)
	return nil
}

// Stop останавливает циклы и ждёт завершения текущих тиков
//
// Уже отправленные ордера не отменяются. Повторный вызов ничего не делает.
func (e *Engine) Stop() {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()

	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	cancel, done := e.cancel, e.loopsDone
	e.mu.Unlock()

	cancel()
	<-done

	e.log.Info("trading engine stopped",
		utils.Int("open_positions", len(e.store.ListOpen())),
	)
}

// Shutdown останавливает движок и ждёт завершения записи сделок в хранилище
func (e *Engine) Shutdown(ctx context.Context) error {
	e.Stop()

	flushed := make(chan struct{})
	go func() {
		e.persistWg.Wait()
		close(flushed)
	}()

	select {
	case <-flushed:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait trade persistence: %w", ctx.Err())
	}
}

// runLoop вызывает tick каждые interval до отмены ctx
//
// Начатый тик всегда доходит до конца; после отмены новые тики не начинаются.
func runLoop(ctx context.Context, interval time.Duration, immediate bool, tick func()) {
	if immediate && ctx.Err() == nil {
		tick()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			tick()
		}
	}
}

// NormalizeConfig заполняет нулевые поля дефолтами и проверяет конфигурацию
//
// Символы приводятся к верхнему регистру без разделителей, дубликаты удаляются.
// MinConfidence не подменяется: 0 - допустимый порог (принимать любой сигнал),
// дефолт для него подставляют config и API при отсутствии значения.
func NormalizeConfig(cfg *models.TradingConfig) (*models.TradingConfig, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: config is nil", ErrInvalidConfig)
	}
	c := cfg.Clone()

	seen := make(map[string]struct{}, len(c.Symbols))
	symbols := make([]string, 0, len(c.Symbols))
	for _, raw := range c.Symbols {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		if err := utils.ValidateSymbol(strings.TrimSpace(raw)); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		s := utils.NormalizeSymbol(raw)
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		symbols = append(symbols, s)
	}
	if len(symbols) == 0 {
		return nil, ErrEmptyWatchlist
	}
	c.Symbols = symbols

	if c.InvestmentPerTrade == 0 {
		c.InvestmentPerTrade = models.DefaultInvestmentPerTrade
	}
	if c.MaxOpenTrades == 0 {
		c.MaxOpenTrades = models.DefaultMaxOpenTrades
	}
	if c.CheckInterval == 0 {
		c.CheckInterval = models.DefaultCheckInterval
	}
	if c.MonitorInterval == 0 {
		c.MonitorInterval = models.DefaultMonitorInterval
	}
	if c.ForcedLiquidationPct == 0 {
		c.ForcedLiquidationPct = models.DefaultForcedLiquidationPct
	}
	if c.CallTimeout == 0 {
		c.CallTimeout = models.DefaultCallTimeout
	}

	if err := utils.ValidateInvestment(c.InvestmentPerTrade); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := utils.ValidateMaxOpenTrades(c.MaxOpenTrades); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := utils.ValidateConfidence(c.MinConfidence); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := utils.ValidateLiquidationPct(c.ForcedLiquidationPct); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.CheckInterval < 0 || c.MonitorInterval < 0 || c.CallTimeout < 0 {
		return nil, fmt.Errorf("%w: intervals and call timeout must be positive", ErrInvalidConfig)
	}

	return c, nil
}

// ============ Запросы ============

// IsRunning - запущен ли движок
func (e *Engine) IsRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// Status возвращает снимок состояния движка
func (e *Engine) Status() *models.EngineStatus {
	e.mu.RLock()
	status := &models.EngineStatus{
		Running: e.running,
		Config:  e.cfg.Clone(),
	}
	if e.running {
		startedAt := e.startedAt
		status.StartedAt = &startedAt
	}
	e.mu.RUnlock()

	status.OpenPositions = e.store.ListOpen()
	status.Stats = e.ledger.Stats()
	status.RecentTrades = e.ledger.Recent(recentTradesInStatus)
	return status
}

// Predict запрашивает сигнал по символу без торговли
func (e *Engine) Predict(ctx context.Context, symbol string) (*models.Signal, error) {
	if err := utils.ValidateSymbol(symbol); err != nil {
		return nil, err
	}
	return e.signals.GetSignal(ctx, utils.NormalizeSymbol(symbol))
}

// Trades возвращает последние limit сделок (новые первыми); limit ≤ 0 - все
func (e *Engine) Trades(limit int) []*models.TradeRecord {
	return e.ledger.Recent(limit)
}

// Stats возвращает статистику журнала сделок
func (e *Engine) Stats() *models.LedgerStats {
	return e.ledger.Stats()
}

// Positions возвращает подтверждённые открытые позиции
func (e *Engine) Positions() []*models.Position {
	return e.store.ListOpen()
}

// MonitorStats возвращает статистику монитора текущего (или последнего) запуска
func (e *Engine) MonitorStats() MonitorStats {
	e.mu.RLock()
	m := e.monitor
	e.mu.RUnlock()
	if m == nil {
		return MonitorStats{}
	}
	return m.Stats()
}

// RealizedPnl - суммарный реализованный PNL с момента создания движка
func (e *Engine) RealizedPnl() float64 {
	e.pnlMu.Lock()
	defer e.pnlMu.Unlock()
	return e.realizedPnl
}

// ============ Обработчики событий исполнителя ============

func (e *Engine) onPositionOpened(pos models.Position) {
	UpdateOpenPositions(e.store.CountOpenOrClosing())
	if b := e.getBroadcaster(); b != nil {
		b.BroadcastPositionUpdate(&pos)
	}
}

func (e *Engine) onPositionMarked(pos models.Position) {
	if b := e.getBroadcaster(); b != nil {
		b.BroadcastPositionUpdate(&pos)
	}
}

func (e *Engine) onTradeClosed(record *models.TradeRecord) {
	e.ledger.Append(record)

	e.pnlMu.Lock()
	e.realizedPnl += record.Pnl
	total := e.realizedPnl
	e.pnlMu.Unlock()

	UpdateRealizedPnl(total)
	UpdateOpenPositions(e.store.CountOpenOrClosing())

	if b := e.getBroadcaster(); b != nil {
		b.BroadcastTradeClosed(record)
		b.BroadcastStatsUpdate(e.ledger.Stats())
	}

	e.persist(record)
}

func (e *Engine) getBroadcaster() EventBroadcaster {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.broadcaster
}

// persist асинхронно записывает сделку; ошибки не влияют на торговлю
func (e *Engine) persist(record *models.TradeRecord) {
	e.mu.RLock()
	sink := e.sink
	e.mu.RUnlock()
	if sink == nil {
		return
	}

	e.persistWg.Add(1)
	go func() {
		defer e.persistWg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()

		cfg := retry.PersistenceConfig()
		cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
			e.log.Warn("retrying trade persistence",
				utils.TradeID(record.ID),
				utils.Int("attempt", attempt),
				utils.Duration("delay", delay),
				utils.Err(err),
			)
		}

		err := retry.Do(ctx, func() error {
			return sink.SaveTrade(ctx, record)
		}, cfg)
		if err != nil {
			RecordError("persist")
			e.log.Error("failed to persist trade",
				utils.TradeID(record.ID),
				utils.Symbol(record.Symbol),
				utils.Err(err),
			)
		}
	}()
}
