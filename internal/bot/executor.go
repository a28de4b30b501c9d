package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"autotrader/internal/exchange"
	"autotrader/internal/models"
	"autotrader/pkg/utils"
)

// OrderExecutor - общий путь открытия и закрытия позиций
//
// Используется и DecisionEngine, и PositionMonitor, поэтому правила
// резервирования, отката и учёта исполнения одинаковы для обоих циклов:
//   - Open: TryOpen → рыночный ордер → ConfirmOpen (ошибка биржи → ReleaseReservation)
//   - Close: TryBeginClose → противоположный ордер → FinalizeClose (ошибка биржи → AbortClose)
//
// Каждый вызов биржи получает собственный таймаут от context.Background(),
// поэтому остановка движка не отменяет уже отправленные ордера.
type OrderExecutor struct {
	store       *PositionStore
	exch        exchange.Client
	log         *utils.Logger
	callTimeout time.Duration

	onOpened func(pos models.Position)
	onClosed func(record *models.TradeRecord)
}

// ExecutorHooks - callback'и на успешные открытие и закрытие
type ExecutorHooks struct {
	OnOpened func(pos models.Position)
	OnClosed func(record *models.TradeRecord)
}

// NewOrderExecutor создаёт исполнитель
func NewOrderExecutor(store *PositionStore, exch exchange.Client, callTimeout time.Duration, log *utils.Logger, hooks ExecutorHooks) *OrderExecutor {
	if callTimeout <= 0 {
		callTimeout = models.DefaultCallTimeout
	}
	if log == nil {
		log = utils.NewNopLogger()
	}
	return &OrderExecutor{
		store:       store,
		exch:        exch,
		log:         log.WithComponent("executor"),
		callTimeout: callTimeout,
		onOpened:    hooks.OnOpened,
		onClosed:    hooks.OnClosed,
	}
}

// callContext - контекст одного внешнего вызова
func (oe *OrderExecutor) callContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), oe.callTimeout)
}

// Open открывает LONG позицию на сумму investment по цене price
//
// Возвращает ErrSlotUnavailable если символ занят или достигнут лимит.
func (oe *OrderExecutor) Open(symbol string, price, investment float64, sig *models.Signal) (models.Position, error) {
	if price <= 0 || investment <= 0 {
		return models.Position{}, fmt.Errorf("open %s: invalid price %v or investment %v", symbol, price, investment)
	}

	candidate := models.Position{Side: models.SideLong}
	if sig != nil {
		candidate.StopLoss = sig.StopLoss
		candidate.TakeProfit = sig.TakeProfit
		candidate.SignalConfidence = sig.Confidence
	}

	if _, ok := oe.store.TryOpen(symbol, candidate); !ok {
		return models.Position{}, ErrSlotUnavailable
	}

	qty := investment / price
	side := models.OpenOrderSide(candidate.Side)

	fill, err := oe.placeOrder(symbol, side, qty)
	if err != nil {
		RecordError("open_order")
		if relErr := oe.store.ReleaseReservation(symbol); relErr != nil {
			oe.log.Warn("reservation already released",
				utils.Symbol(symbol),
				utils.Err(relErr),
			)
		}
		return models.Position{}, fmt.Errorf("open %s: %w", symbol, err)
	}

	filledQty, filledPrice, filledAt := resolveFill(fill, qty, price)

	pos, err := oe.store.ConfirmOpen(symbol, filledQty, filledPrice, filledAt)
	if err != nil {
		// Резерв пропал между TryOpen и ConfirmOpen - ошибка программы
		oe.log.Error("failed to confirm open",
			utils.Symbol(symbol),
			utils.OrderID(fill.OrderID),
			utils.Err(err),
		)
		return models.Position{}, err
	}

	RecordOpen(symbol)
	oe.log.Info("position opened",
		utils.Symbol(symbol),
		utils.Side(pos.Side),
		utils.Quantity(pos.Quantity),
		utils.Price(pos.EntryPrice),
		utils.Confidence(pos.SignalConfidence),
		utils.Float64("stop_loss", pos.StopLoss),
		utils.Float64("take_profit", pos.TakeProfit),
	)

	if oe.onOpened != nil {
		oe.onOpened(pos)
	}
	return pos, nil
}

// Close закрывает подтверждённую OPEN позицию рыночным ордером
//
// observedPrice используется как цена выхода, если биржа не сообщила цену исполнения.
// Возвращает ErrNotClosable если позицию уже закрывает другой цикл.
func (oe *OrderExecutor) Close(symbol string, observedPrice float64, reason string) (*models.TradeRecord, error) {
	pos, ok := oe.store.TryBeginClose(symbol)
	if !ok {
		return nil, ErrNotClosable
	}

	side := models.CloseOrderSide(pos.Side)

	fill, err := oe.placeOrder(symbol, side, pos.Quantity)
	if err != nil {
		RecordError("close_order")
		if abortErr := oe.store.AbortClose(symbol); abortErr != nil {
			oe.log.Error("failed to abort close",
				utils.Symbol(symbol),
				utils.Err(abortErr),
			)
		}
		oe.log.Warn("close order failed, position reverted to OPEN",
			utils.Symbol(symbol),
			utils.Reason(reason),
			utils.Err(err),
		)
		return nil, fmt.Errorf("close %s: %w", symbol, err)
	}

	_, exitPrice, _ := resolveFill(fill, pos.Quantity, observedPrice)

	record, err := oe.store.FinalizeClose(symbol, exitPrice, reason)
	if err != nil {
		oe.log.Error("failed to finalize close",
			utils.Symbol(symbol),
			utils.Err(err),
		)
		return nil, err
	}

	RecordClose(symbol, reason)
	oe.log.Info("position closed",
		utils.Symbol(symbol),
		utils.TradeID(record.ID),
		utils.Reason(reason),
		utils.Price(record.ExitPrice),
		utils.PNL(utils.Round2(record.Pnl)),
		utils.PNLPercent(utils.Round2(record.PnlPercent)),
	)

	if oe.onClosed != nil {
		oe.onClosed(record)
	}
	return record, nil
}

// placeOrder отправляет рыночный ордер с собственным таймаутом
func (oe *OrderExecutor) placeOrder(symbol, side string, qty float64) (*models.OrderFill, error) {
	ctx, cancel := oe.callContext()
	defer cancel()

	start := time.Now()
	fill, err := oe.exch.PlaceMarketOrder(ctx, symbol, side, qty)
	RecordOrderLatency(side, float64(time.Since(start).Microseconds())/1000)

	if err != nil {
		return nil, err
	}
	if fill == nil {
		return nil, errors.New("empty order fill")
	}
	return fill, nil
}

// resolveFill возвращает фактические объём, цену и время исполнения
//
// Нулевые значения в отчёте биржи заменяются запрошенным объёмом и наблюдаемой ценой.
func resolveFill(fill *models.OrderFill, requestedQty, observedPrice float64) (qty, price float64, at time.Time) {
	qty, price, at = requestedQty, observedPrice, time.Now()
	if fill == nil {
		return
	}
	if fill.FilledQuantity > 0 {
		qty = fill.FilledQuantity
	}
	if fill.FilledPrice > 0 {
		price = fill.FilledPrice
	}
	if !fill.FilledAt.IsZero() {
		at = fill.FilledAt
	}
	return
}
