package bot

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"autotrader/internal/exchange"
	"autotrader/internal/models"
	"autotrader/pkg/utils"

	"golang.org/x/sync/errgroup"
)

// PositionMonitor - цикл контроля открытых позиций
//
// Каждый тик для каждой подтверждённой OPEN позиции:
//  1. получает текущую цену
//  2. обновляет mark-цену и нереализованный PNL (для UI)
//  3. проверяет FORCED_LIQUIDATION / STOP_LOSS / TAKE_PROFIT (EvaluateExit)
//  4. при срабатывании закрывает позицию через общий OrderExecutor
//
// Позиции в CLOSING пропускаются: их закрывает другой цикл.
type PositionMonitor struct {
	cfg   models.TradingConfig
	store *PositionStore
	exec  *OrderExecutor
	exch  exchange.Client
	log   *utils.Logger

	onMark func(pos models.Position)

	// Статистика (atomic)
	checksCount    int64
	exitsCount     int64
	stopLossHits   int64
	takeProfitHits int64
	liquidations   int64
}

// MonitorStats - статистика монитора позиций
type MonitorStats struct {
	ChecksCount    int64 `json:"checks_count"`
	ExitsCount     int64 `json:"exits_count"`
	StopLossHits   int64 `json:"stop_loss_hits"`
	TakeProfitHits int64 `json:"take_profit_hits"`
	Liquidations   int64 `json:"liquidations"`
}

// NewPositionMonitor создаёт монитор; onMark вызывается после обновления mark-цены
func NewPositionMonitor(cfg models.TradingConfig, store *PositionStore, exec *OrderExecutor, exch exchange.Client, log *utils.Logger, onMark func(pos models.Position)) *PositionMonitor {
	if log == nil {
		log = utils.NewNopLogger()
	}
	return &PositionMonitor{
		cfg:    cfg,
		store:  store,
		exec:   exec,
		exch:   exch,
		log:    log.WithComponent("monitor"),
		onMark: onMark,
	}
}

// Tick проверяет все открытые позиции и ждёт завершения проверок
func (m *PositionMonitor) Tick() {
	start := time.Now()

	var g errgroup.Group
	for _, pos := range m.store.ListOpen() {
		if pos.State != models.StateOpen {
			continue
		}
		pos := *pos
		g.Go(func() error {
			m.checkPosition(pos)
			return nil
		})
	}
	_ = g.Wait()

	RecordTick("monitor", float64(time.Since(start).Milliseconds()))
}

// checkPosition проверяет одну позицию
func (m *PositionMonitor) checkPosition(pos models.Position) {
	atomic.AddInt64(&m.checksCount, 1)
	log := m.log.WithSymbol(pos.Symbol)

	price, err := m.getPrice(pos.Symbol)
	if err != nil {
		RecordError("get_price")
		log.Warn("failed to get price for open position", utils.Err(err))
		return
	}

	if marked, ok := m.store.UpdateMark(pos.Symbol, price); ok {
		pos = marked
		if m.onMark != nil {
			m.onMark(marked)
		}
	} else {
		// Позицию закрыли между ListOpen и получением цены
		return
	}

	decision := EvaluateExit(pos, price, m.cfg.ForcedLiquidationPct)
	if !decision.Triggered {
		return
	}

	log.Info("exit condition triggered",
		utils.Reason(decision.Reason),
		utils.Price(price),
		utils.PNL(utils.Round2(decision.Pnl)),
		utils.PNLPercent(utils.Round2(decision.PnlPercent)),
	)

	_, err = m.exec.Close(pos.Symbol, price, decision.Reason)
	switch {
	case err == nil:
		m.recordExit(decision.Reason)
	case errors.Is(err, ErrNotClosable):
		// Закрывается другим циклом
	default:
		log.Error("failed to close position", utils.Reason(decision.Reason), utils.Err(err))
	}
}

func (m *PositionMonitor) recordExit(reason string) {
	atomic.AddInt64(&m.exitsCount, 1)
	switch reason {
	case models.CloseReasonStopLoss:
		atomic.AddInt64(&m.stopLossHits, 1)
	case models.CloseReasonTakeProfit:
		atomic.AddInt64(&m.takeProfitHits, 1)
	case models.CloseReasonForcedLiquidation:
		atomic.AddInt64(&m.liquidations, 1)
	}
}

func (m *PositionMonitor) getPrice(symbol string) (float64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.CallTimeout)
	defer cancel()
	return m.exch.GetPrice(ctx, symbol)
}

// Stats возвращает статистику монитора
func (m *PositionMonitor) Stats() MonitorStats {
	return MonitorStats{
		ChecksCount:    atomic.LoadInt64(&m.checksCount),
		ExitsCount:     atomic.LoadInt64(&m.exitsCount),
		StopLossHits:   atomic.LoadInt64(&m.stopLossHits),
		TakeProfitHits: atomic.LoadInt64(&m.takeProfitHits),
		Liquidations:   atomic.LoadInt64(&m.liquidations),
	}
}
