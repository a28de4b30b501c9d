package bot

import (
	"context"
	"errors"
	"time"

	"autotrader/internal/exchange"
	"autotrader/internal/models"
	"autotrader/internal/signal"
	"autotrader/pkg/utils"

	"golang.org/x/sync/errgroup"
)

// Итог обработки символа за один тик (для логов и тестов)
const (
	outcomeOpened    = "opened"
	outcomeClosed    = "closed"
	outcomeHold      = "hold"
	outcomeRejected  = "rejected"
	outcomeSkipped   = "skipped"
	outcomeNoSignal  = "no_signal"
	outcomeCallError = "error"
)

// DecisionEngine - цикл принятия решений по сигналам
//
// Каждый тик обходит список символов параллельно (errgroup), для каждого:
// цена → сигнал → фильтр уверенности → BUY/SELL/HOLD.
// Ошибка одного символа не прерывает обработку остальных.
type DecisionEngine struct {
	cfg     models.TradingConfig
	store   *PositionStore
	exec    *OrderExecutor
	exch    exchange.Client
	signals signal.Source
	log     *utils.Logger
}

// NewDecisionEngine создаёт цикл решений для конфигурации cfg
func NewDecisionEngine(cfg models.TradingConfig, store *PositionStore, exec *OrderExecutor, exch exchange.Client, signals signal.Source, log *utils.Logger) *DecisionEngine {
	if log == nil {
		log = utils.NewNopLogger()
	}
	return &DecisionEngine{
		cfg:     cfg,
		store:   store,
		exec:    exec,
		exch:    exch,
		signals: signals,
		log:     log.WithComponent("decision"),
	}
}

// Tick выполняет один проход по всем символам и ждёт завершения всех
func (d *DecisionEngine) Tick() {
	start := time.Now()

	var g errgroup.Group
	for _, symbol := range d.cfg.Symbols {
		symbol := symbol
		g.Go(func() error {
			d.evaluateSymbol(symbol)
			return nil
		})
	}
	_ = g.Wait()

	RecordTick("decision", float64(time.Since(start).Milliseconds()))
}

// evaluateSymbol обрабатывает один символ
func (d *DecisionEngine) evaluateSymbol(symbol string) string {
	log := d.log.WithSymbol(symbol)

	price, err := d.getPrice(symbol)
	if err != nil {
		RecordError("get_price")
		log.Warn("failed to get price", utils.Err(err))
		return outcomeCallError
	}

	sig, err := d.getSignal(symbol, price)
	if err != nil {
		RecordError("get_signal")
		log.Warn("failed to get signal", utils.Err(err))
		return outcomeCallError
	}
	if sig == nil {
		return outcomeNoSignal
	}

	RecordSignal(sig.Action)

	if sig.Confidence < d.cfg.MinConfidence {
		RecordRejectedSignal(symbol)
		log.Debug("signal below confidence threshold",
			utils.Action(sig.Action),
			utils.Confidence(sig.Confidence),
			utils.Float64("min_confidence", d.cfg.MinConfidence),
		)
		return outcomeRejected
	}

	switch sig.Action {
	case models.ActionBuy:
		return d.handleBuy(symbol, price, sig, log)
	case models.ActionSell:
		return d.handleSell(symbol, price, log)
	default:
		return outcomeHold
	}
}

// handleBuy открывает позицию, если символ свободен и есть слот
func (d *DecisionEngine) handleBuy(symbol string, price float64, sig *models.Signal, log *utils.Logger) string {
	if _, exists := d.store.Get(symbol); exists {
		return outcomeSkipped
	}

	_, err := d.exec.Open(symbol, price, d.cfg.InvestmentPerTrade, sig)
	switch {
	case err == nil:
		return outcomeOpened
	case errors.Is(err, ErrSlotUnavailable):
		log.Debug("no free slot for new position",
			utils.Int("max_open_trades", d.cfg.MaxOpenTrades),
		)
		return outcomeSkipped
	default:
		log.Error("failed to open position", utils.Err(err))
		return outcomeCallError
	}
}

// handleSell закрывает открытую позицию по сигналу; без позиции - ничего не делает
func (d *DecisionEngine) handleSell(symbol string, price float64, log *utils.Logger) string {
	_, err := d.exec.Close(symbol, price, models.CloseReasonSignal)
	switch {
	case err == nil:
		return outcomeClosed
	case errors.Is(err, ErrNotClosable):
		return outcomeSkipped
	default:
		log.Error("failed to close position on signal", utils.Err(err))
		return outcomeCallError
	}
}

func (d *DecisionEngine) getPrice(symbol string) (float64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.CallTimeout)
	defer cancel()
	return d.exch.GetPrice(ctx, symbol)
}

// getSignal запрашивает сигнал; источнику, умеющему строить цели от цены,
// передаётся цена текущего тика
func (d *DecisionEngine) getSignal(symbol string, price float64) (*models.Signal, error) {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.CallTimeout)
	defer cancel()
	if quoted, ok := d.signals.(signal.QuotedSource); ok {
		return quoted.GetSignalAt(ctx, symbol, price)
	}
	return d.signals.GetSignal(ctx, symbol)
}
