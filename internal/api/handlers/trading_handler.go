package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"autotrader/internal/bot"
	"autotrader/internal/models"
	"autotrader/pkg/utils"
)

// Лимиты списка сделок
const (
	defaultTradesLimit = 50
	maxTradesLimit     = 1000

	// predictTimeout - таймаут запроса к источнику сигналов из API
	predictTimeout = 15 * time.Second
)

// TradingEngine - операции движка, доступные через API
type TradingEngine interface {
	Start(cfg *models.TradingConfig) error
	Stop()
	IsRunning() bool
	Status() *models.EngineStatus
	Stats() *models.LedgerStats
	Trades(limit int) []*models.TradeRecord
	Positions() []*models.Position
	Predict(ctx context.Context, symbol string) (*models.Signal, error)
}

// TradingHandler обрабатывает HTTP запросы управления торговлей.
//
// Endpoints:
// - POST /api/v1/trading/start - запустить движок с конфигурацией
// - POST /api/v1/trading/stop - остановить движок
// - GET /api/v1/trading/status - состояние движка, позиции, последние сделки
// - GET /api/v1/trading/stats - статистика журнала сделок
// - GET /api/v1/trading/trades?limit=N - последние сделки
// - GET /api/v1/trading/positions - открытые позиции
// - GET /api/v1/predict/{symbol} - сигнал по символу без торговли
type TradingHandler struct {
	engine   TradingEngine
	defaults models.TradingConfig
	log      *utils.Logger
}

// NewTradingHandler создает TradingHandler.
// defaults подставляются для полей, не переданных в запросе start.
func NewTradingHandler(engine TradingEngine, defaults models.TradingConfig, log *utils.Logger) *TradingHandler {
	if log == nil {
		log = utils.NewNopLogger()
	}
	return &TradingHandler{
		engine:   engine,
		defaults: defaults,
		log:      log.WithComponent("api"),
	}
}

// StartRequest - тело запроса POST /trading/start
//
// Интервалы передаются строками time.ParseDuration ("30s", "1m").
// Отсутствующие поля берутся из конфигурации сервера.
type StartRequest struct {
	Symbols              *[]string `json:"symbols,omitempty"`
	InvestmentPerTrade   *float64  `json:"investment_per_trade,omitempty"`
	MaxOpenTrades        *int      `json:"max_open_trades,omitempty"`
	MinConfidence        *float64  `json:"min_confidence,omitempty"`
	CheckInterval        string    `json:"check_interval,omitempty"`
	MonitorInterval      string    `json:"monitor_interval,omitempty"`
	ForcedLiquidationPct *float64  `json:"forced_liquidation_pct,omitempty"`
	CallTimeout          string    `json:"call_timeout,omitempty"`
}

// toConfig накладывает запрос на конфигурацию по умолчанию
func (req *StartRequest) toConfig(defaults models.TradingConfig) (*models.TradingConfig, error) {
	cfg := defaults.Clone()

	if req.Symbols != nil {
		cfg.Symbols = append([]string(nil), (*req.Symbols)...)
	}
	if req.InvestmentPerTrade != nil {
		cfg.InvestmentPerTrade = *req.InvestmentPerTrade
	}
	if req.MaxOpenTrades != nil {
		cfg.MaxOpenTrades = *req.MaxOpenTrades
	}
	if req.MinConfidence != nil {
		cfg.MinConfidence = *req.MinConfidence
	}
	if req.ForcedLiquidationPct != nil {
		cfg.ForcedLiquidationPct = *req.ForcedLiquidationPct
	}

	durations := []struct {
		name  string
		value string
		dst   *time.Duration
	}{
		{"check_interval", req.CheckInterval, &cfg.CheckInterval},
		{"monitor_interval", req.MonitorInterval, &cfg.MonitorInterval},
		{"call_timeout", req.CallTimeout, &cfg.CallTimeout},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", d.name, err)
		}
		*d.dst = parsed
	}

	return cfg, nil
}

// StartTrading запускает торговый движок.
//
// POST /api/v1/trading/start
//
// Request (все поля опциональны):
//
//	{
//	  "symbols": ["BTCUSDT", "ETHUSDT"],
//	  "investment_per_trade": 100,
//	  "max_open_trades": 5,
//	  "min_confidence": 0.7,
//	  "check_interval": "60s",
//	  "monitor_interval": "15s"
//	}
//
// Response 200 OK: EngineStatus
// Response 400 Bad Request: некорректная конфигурация
// Response 409 Conflict: движок уже запущен
func (h *TradingHandler) StartTrading(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, CodeInvalidRequest, "invalid request body", err)
		return
	}

	cfg, err := req.toConfig(h.defaults)
	if err != nil {
		respondError(w, http.StatusBadRequest, CodeInvalidConfig, "invalid trading config", err)
		return
	}

	if err := h.engine.Start(cfg); err != nil {
		switch {
		case errors.Is(err, bot.ErrAlreadyRunning):
			respondError(w, http.StatusConflict, CodeAlreadyRunning, "trading already running", nil)
		case errors.Is(err, bot.ErrEmptyWatchlist), errors.Is(err, bot.ErrInvalidConfig):
			respondError(w, http.StatusBadRequest, CodeInvalidConfig, "invalid trading config", err)
		default:
			h.log.Error("failed to start trading", utils.Err(err))
			respondError(w, http.StatusInternalServerError, CodeInternal, "failed to start trading", err)
		}
		return
	}

	h.log.Info("trading started via api", utils.Int("symbols", len(cfg.Symbols)))
	respondJSON(w, http.StatusOK, h.engine.Status())
}

// StopTrading останавливает движок. Повторный вызов безопасен.
//
// POST /api/v1/trading/stop
//
// Response 200 OK: {"message": "trading stopped", "data": EngineStatus}
func (h *TradingHandler) StopTrading(w http.ResponseWriter, r *http.Request) {
	wasRunning := h.engine.IsRunning()
	h.engine.Stop()

	message := "trading stopped"
	if !wasRunning {
		message = "trading was not running"
	} else {
		h.log.Info("trading stopped via api")
	}
	respondJSON(w, http.StatusOK, SuccessResponse{Message: message, Data: h.engine.Status()})
}

// GetStatus возвращает снимок состояния движка.
//
// GET /api/v1/trading/status
func (h *TradingHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.engine.Status())
}

// GetStats возвращает статистику журнала сделок.
//
// GET /api/v1/trading/stats
func (h *TradingHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.engine.Stats())
}

// GetTrades возвращает последние сделки (новые первыми).
//
// GET /api/v1/trading/trades?limit=50
func (h *TradingHandler) GetTrades(w http.ResponseWriter, r *http.Request) {
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

	trades := h.engine.Trades(limit)
	if trades == nil {
		trades = []*models.TradeRecord{}
	}
	respondJSON(w, http.StatusOK, trades)
}

// GetPositions возвращает открытые позиции.
//
// GET /api/v1/trading/positions
func (h *TradingHandler) GetPositions(w http.ResponseWriter, r *http.Request) {
	positions := h.engine.Positions()
	if positions == nil {
		positions = []*models.Position{}
	}
	respondJSON(w, http.StatusOK, positions)
}

// Predict запрашивает сигнал по символу без открытия позиции.
//
// GET /api/v1/predict/{symbol}
//
// Response 400 Bad Request: некорректный символ
// Response 502 Bad Gateway: источник сигналов недоступен
func (h *TradingHandler) Predict(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	ctx, cancel := context.WithTimeout(r.Context(), predictTimeout)
	defer cancel()

	sig, err := h.engine.Predict(ctx, symbol)
	if err != nil {
		if errors.Is(err, utils.ErrEmptySymbol) || errors.Is(err, utils.ErrInvalidSymbol) {
			respondError(w, http.StatusBadRequest, CodeInvalidSymbol, "invalid symbol", err)
			return
		}
		h.log.Warn("prediction failed", utils.Symbol(symbol), utils.Err(err))
		respondError(w, http.StatusBadGateway, CodeUpstream, "signal source unavailable", err)
		return
	}

	respondJSON(w, http.StatusOK, sig)
}
