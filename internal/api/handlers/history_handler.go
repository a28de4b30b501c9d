package handlers

import (
	"context"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"autotrader/internal/models"
	"autotrader/pkg/utils"
)

// historyQueryTimeout - таймаут запроса к базе данных
const historyQueryTimeout = 5 * time.Second

// TradeHistory - постоянная история сделок (реализуется repository.TradeRepository)
type TradeHistory interface {
	GetRecent(ctx context.Context, limit int) ([]*models.TradeRecord, error)
	GetBySymbols(ctx context.Context, symbols []string, limit int) ([]*models.TradeRecord, error)
	RealizedPnlBySymbol(ctx context.Context) (map[string]float64, error)
}

// HistoryHandler отдаёт историю сделок из базы данных.
//
// В отличие от /trading/trades (журнал в памяти ограниченной ёмкости)
// база хранит все сделки, включая сделки прошлых запусков.
//
// Endpoints:
// - GET /api/v1/history/trades?symbols=BTCUSDT,ETHUSDT&limit=N
// - GET /api/v1/history/pnl - реализованный PNL по символам
type HistoryHandler struct {
	history TradeHistory
	log     *utils.Logger
}

// NewHistoryHandler создает HistoryHandler
func NewHistoryHandler(history TradeHistory, log *utils.Logger) *HistoryHandler {
	if log == nil {
		log = utils.NewNopLogger()
	}
	return &HistoryHandler{
		history: history,
		log:     log.WithComponent("api"),
	}
}

// GetTrades возвращает сделки из базы (новые первыми).
//
// GET /api/v1/history/trades?symbols=BTCUSDT,ETHUSDT&limit=100
//
// Response 400 Bad Request: некорректный limit или символ
// Response 500 Internal Server Error: ошибка базы данных
func (h *HistoryHandler) GetTrades(w http.ResponseWriter, r *http.Request) {
	limit := defaultTradesLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			respondError(w, http.StatusBadRequest, CodeInvalidRequest, "limit must be a positive integer", nil)
			return
		}
		limit = n
	}
	if limit > maxTradesLimit {
		limit = maxTradesLimit
	}

	var symbols []string
	for _, raw := range strings.Split(r.URL.Query().Get("symbols"), ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if err := utils.ValidateSymbol(raw); err != nil {
			respondError(w, http.StatusBadRequest, CodeInvalidSymbol, "invalid symbol", err)
			return
		}
		symbols = append(symbols, utils.NormalizeSymbol(raw))
	}

	ctx, cancel := context.WithTimeout(r.Context(), historyQueryTimeout)
	defer cancel()

	var (
		trades []*models.TradeRecord
		err    error
	)
	if len(symbols) > 0 {
		trades, err = h.history.GetBySymbols(ctx, symbols, limit)
	} else {
		trades, err = h.history.GetRecent(ctx, limit)
	}
	if err != nil {
		h.log.Error("failed to load trade history", utils.Err(err))
		respondError(w, http.StatusInternalServerError, CodeInternal, "failed to load trade history", nil)
		return
	}

	if trades == nil {
		trades = []*models.TradeRecord{}
	}
	respondJSON(w, http.StatusOK, trades)
}

// PnlBySymbol - элемент ответа /history/pnl
type PnlBySymbol struct {
	Symbol string  `json:"symbol"`
	Pnl    float64 `json:"pnl"`
}

// GetPnl возвращает реализованный PNL по символам (по убыванию PNL).
//
// GET /api/v1/history/pnl
func (h *HistoryHandler) GetPnl(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), historyQueryTimeout)
	defer cancel()

	bySymbol, err := h.history.RealizedPnlBySymbol(ctx)
	if err != nil {
		h.log.Error("failed to load realized pnl", utils.Err(err))
		respondError(w, http.StatusInternalServerError, CodeInternal, "failed to load realized pnl", nil)
		return
	}

	result := make([]PnlBySymbol, 0, len(bySymbol))
	for symbol, pnl := range bySymbol {
		result = append(result, PnlBySymbol{Symbol: symbol, Pnl: utils.Round2(pnl)})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Pnl != result[j].Pnl {
			return result[i].Pnl > result[j].Pnl
		}
		return result[i].Symbol < result[j].Symbol
	})

	respondJSON(w, http.StatusOK, result)
}
