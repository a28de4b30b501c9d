package bot

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"autotrader/internal/models"
	"autotrader/pkg/utils"

	"github.com/google/uuid"
)

// PositionStore - единственная точка изменения позиций
//
// Гарантии:
// - не более одной OPEN/CLOSING позиции на символ
// - число OPEN+CLOSING ≤ maxOpenTrades (проверка и вставка - одна критическая секция)
// - ровно один вызывающий выигрывает переход OPEN → CLOSING
// - никаких сетевых вызовов под мьютексом
//
// Наружу отдаются только копии позиций.
type PositionStore struct {
	mu            sync.Mutex
	positions     map[string]*storedPosition
	maxOpenTrades int

	now func() time.Time
}

// storedPosition - позиция + флаг подтверждения биржей
//
// Неподтверждённая позиция - резерв слота на время отправки открывающего ордера:
// учитывается в лимите, но не видна в ListOpen и не может быть закрыта.
type storedPosition struct {
	pos       models.Position
	confirmed bool
}

// NewPositionStore создаёт хранилище с лимитом одновременно открытых позиций
func NewPositionStore(maxOpenTrades int) *PositionStore {
	return &PositionStore{
		positions:     make(map[string]*storedPosition),
		maxOpenTrades: maxOpenTrades,
		now:           time.Now,
	}
}

// SetMaxOpenTrades меняет лимит (при перезапуске движка с новой конфигурацией)
//
// Уже открытые позиции не закрываются, даже если их больше нового лимита.
func (s *PositionStore) SetMaxOpenTrades(n int) {
	s.mu.Lock()
	s.maxOpenTrades = n
	s.mu.Unlock()
}

// TryOpen резервирует символ под новую позицию
//
// Отказ, если по символу уже есть позиция или достигнут лимит.
// Возвращает копию зарезервированной позиции в состоянии OPEN.
func (s *PositionStore) TryOpen(symbol string, candidate models.Position) (models.Position, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.positions[symbol]; exists {
		return models.Position{}, false
	}
	if s.countLocked() >= s.maxOpenTrades {
		return models.Position{}, false
	}

	pos := candidate
	pos.Symbol = symbol
	pos.State = models.StateOpen
	if pos.Side == "" {
		pos.Side = models.SideLong
	}
	pos.ExitPrice = 0
	pos.ExitTime = nil

	s.positions[symbol] = &storedPosition{pos: pos}
	return pos, true
}

// ConfirmOpen фиксирует объём и цену входа после исполнения ордера
//
// После подтверждения Quantity и EntryPrice не меняются.
func (s *PositionStore) ConfirmOpen(symbol string, qty, entryPrice float64, entryTime time.Time) (models.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sp, ok := s.positions[symbol]
	if !ok {
		return models.Position{}, fmt.Errorf("confirm open %s: %w", symbol, ErrPositionNotFound)
	}
	if sp.confirmed || sp.pos.State != models.StateOpen {
		return models.Position{}, fmt.Errorf("confirm open %s in state %s: %w", symbol, sp.pos.State, ErrInvalidTransition)
	}

	sp.pos.Quantity = qty
	sp.pos.EntryPrice = entryPrice
	sp.pos.EntryTime = entryTime
	sp.pos.CurrentPrice = entryPrice
	sp.pos.LastUpdate = entryTime
	sp.confirmed = true

	return sp.pos, nil
}

// ReleaseReservation откатывает неподтверждённый резерв (OPEN → NONE)
func (s *PositionStore) ReleaseReservation(symbol string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sp, ok := s.positions[symbol]
	if !ok {
		return fmt.Errorf("release reservation %s: %w", symbol, ErrPositionNotFound)
	}
	if sp.confirmed {
		return fmt.Errorf("release confirmed position %s: %w", symbol, ErrInvalidTransition)
	}

	delete(s.positions, symbol)
	return nil
}

// TryBeginClose переводит подтверждённую позицию OPEN → CLOSING
//
// Из конкурирующих вызовов успешен ровно один.
func (s *PositionStore) TryBeginClose(symbol string) (models.Position, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sp, ok := s.positions[symbol]
	if !ok || !sp.confirmed || !CanTransition(sp.pos.State, models.StateClosing) {
		return models.Position{}, false
	}

	sp.pos.State = models.StateClosing
	return sp.pos, true
}

// AbortClose возвращает позицию CLOSING → OPEN после неудачного закрывающего ордера
func (s *PositionStore) AbortClose(symbol string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sp, ok := s.positions[symbol]
	if !ok {
		return fmt.Errorf("abort close %s: %w", symbol, ErrPositionNotFound)
	}
	if sp.pos.State != models.StateClosing {
		return fmt.Errorf("abort close %s in state %s: %w", symbol, sp.pos.State, ErrInvalidTransition)
	}

	sp.pos.State = models.StateOpen
	return nil
}

// FinalizeClose закрывает позицию CLOSING → CLOSED и удаляет её из хранилища
//
// Возвращает запись о сделке. Вызов для позиции не в CLOSING - ошибка программы.
func (s *PositionStore) FinalizeClose(symbol string, exitPrice float64, reason string) (*models.TradeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sp, ok := s.positions[symbol]
	if !ok {
		return nil, fmt.Errorf("finalize close %s: %w", symbol, ErrPositionNotFound)
	}
	if !CanTransition(sp.pos.State, models.StateClosed) {
		return nil, fmt.Errorf("finalize close %s in state %s: %w", symbol, sp.pos.State, ErrInvalidTransition)
	}

	pos := sp.pos
	pnl := utils.CalculatePNL(pos.Side, pos.EntryPrice, exitPrice, pos.Quantity)

	record := &models.TradeRecord{
		ID:               uuid.NewString(),
		Symbol:           symbol,
		Side:             pos.Side,
		Quantity:         pos.Quantity,
		EntryPrice:       pos.EntryPrice,
		ExitPrice:        exitPrice,
		Pnl:              pnl,
		PnlPercent:       utils.CalculatePNLPercent(pnl, pos.EntryPrice, pos.Quantity),
		SignalConfidence: pos.SignalConfidence,
		EntryTime:        pos.EntryTime,
		ExitTime:         s.now(),
		CloseReason:      reason,
	}

	delete(s.positions, symbol)
	return record, nil
}

// UpdateMark обновляет текущую цену и нереализованный PNL (только для отображения)
//
// Состояние позиции не меняется. Возвращает false если подтверждённой позиции нет.
func (s *PositionStore) UpdateMark(symbol string, price float64) (models.Position, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sp, ok := s.positions[symbol]
	if !ok || !sp.confirmed {
		return models.Position{}, false
	}

	pnl := utils.CalculatePNL(sp.pos.Side, sp.pos.EntryPrice, price, sp.pos.Quantity)
	sp.pos.CurrentPrice = price
	sp.pos.UnrealizedPnl = utils.Round2(pnl)
	sp.pos.UnrealizedPnlPct = utils.Round2(utils.CalculatePNLPercent(pnl, sp.pos.EntryPrice, sp.pos.Quantity))
	sp.pos.LastUpdate = s.now()

	return sp.pos, true
}

// Get возвращает копию позиции по символу (включая неподтверждённый резерв)
func (s *PositionStore) Get(symbol string) (models.Position, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sp, ok := s.positions[symbol]
	if !ok {
		return models.Position{}, false
	}
	return sp.pos, true
}

// ListOpen возвращает копии подтверждённых позиций (OPEN и CLOSING), отсортированные по символу
func (s *PositionStore) ListOpen() []*models.Position {
	s.mu.Lock()
	result := make([]*models.Position, 0, len(s.positions))
	for _, sp := range s.positions {
		if !sp.confirmed {
			continue
		}
		pos := sp.pos
		result = append(result, &pos)
	}
	s.mu.Unlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].Symbol < result[j].Symbol
	})
	return result
}

// CountOpenOrClosing возвращает число позиций, занимающих слот лимита (включая резервы)
func (s *PositionStore) CountOpenOrClosing() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countLocked()
}

func (s *PositionStore) countLocked() int {
	n := 0
	for _, sp := range s.positions {
		if HasOpenPosition(sp.pos.State) {
			n++
		}
	}
	return n
}
