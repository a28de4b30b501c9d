package bot

import (
	"sync"

	"autotrader/internal/models"
	"autotrader/pkg/utils"
)

// TradingLedger - журнал завершённых сделок фиксированной ёмкости
//
// Кольцевой буфер: при переполнении вытесняется самая старая запись.
// Статистика пересчитывается при каждом запросе.
type TradingLedger struct {
	mu       sync.RWMutex
	records  []*models.TradeRecord
	head     int // индекс самой старой записи
	size     int
	capacity int
}

// NewTradingLedger создаёт журнал (capacity <= 0 → значение по умолчанию)
func NewTradingLedger(capacity int) *TradingLedger {
	if capacity <= 0 {
		capacity = models.DefaultLedgerCapacity
	}
	return &TradingLedger{
		records:  make([]*models.TradeRecord, capacity),
		capacity: capacity,
	}
}

// Append добавляет запись, вытесняя самую старую при переполнении
func (l *TradingLedger) Append(record *models.TradeRecord) {
	if record == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.size < l.capacity {
		l.records[(l.head+l.size)%l.capacity] = record
		l.size++
		return
	}

	// Буфер полон - перезаписываем самую старую
	l.records[l.head] = record
	l.head = (l.head + 1) % l.capacity
}

// Len - текущее число записей
func (l *TradingLedger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.size
}

// Capacity - ёмкость журнала
func (l *TradingLedger) Capacity() int {
	return l.capacity
}

// All возвращает записи от старой к новой
func (l *TradingLedger) All() []*models.TradeRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make([]*models.TradeRecord, 0, l.size)
	for i := 0; i < l.size; i++ {
		result = append(result, l.records[(l.head+i)%l.capacity])
	}
	return result
}

// Recent возвращает до n последних записей, самая новая первой
//
// n <= 0 - все записи.
func (l *TradingLedger) Recent(n int) []*models.TradeRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if n <= 0 || n > l.size {
		n = l.size
	}

	result := make([]*models.TradeRecord, 0, n)
	for i := 0; i < n; i++ {
		idx := (l.head + l.size - 1 - i) % l.capacity
		result = append(result, l.records[idx])
	}
	return result
}

// Stats считает статистику по текущему содержимому журнала
func (l *TradingLedger) Stats() *models.LedgerStats {
	records := l.All()

	stats := &models.LedgerStats{
		TotalTrades: len(records),
		ByReason:    make(map[string]int, len(models.CloseReasons)),
		Capacity:    l.capacity,
	}
	for _, r := range models.CloseReasons {
		stats.ByReason[r] = 0
	}

	if len(records) == 0 {
		return stats
	}

	var totalPnl float64
	for _, r := range records {
		totalPnl += r.Pnl
		if r.IsWin() {
			stats.WinningTrades++
		} else if r.Pnl < 0 {
			stats.LosingTrades++
		}
		stats.ByReason[r.CloseReason]++

		if stats.BestTrade == nil || r.Pnl > stats.BestTrade.Pnl {
			stats.BestTrade = r
		}
		if stats.WorstTrade == nil || r.Pnl < stats.WorstTrade.Pnl {
			stats.WorstTrade = r
		}
	}

	stats.TotalPnl = utils.Round2(totalPnl)
	stats.AveragePnl = utils.Round2(totalPnl / float64(len(records)))
	stats.WinRate = utils.Round2(float64(stats.WinningTrades) / float64(len(records)) * 100)

	return stats
}
