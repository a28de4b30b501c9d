package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"autotrader/internal/api/handlers"
	"autotrader/internal/api/middleware"
	"autotrader/internal/models"
	"autotrader/internal/websocket"
	"autotrader/pkg/utils"
)

// Dependencies содержит все зависимости для API handlers
type Dependencies struct {
	Engine handlers.TradingEngine
	Hub    *websocket.Hub // nil = WebSocket endpoint не регистрируется

	// History - история сделок из БД (nil = /history не регистрируется)
	History handlers.TradeHistory

	// Defaults - торговая конфигурация для POST /trading/start без тела
	Defaults models.TradingConfig

	// APIKeyHash - bcrypt хеш ключа X-API-Key (пусто = без проверки)
	APIKeyHash string

	// AllowedOrigins - origins для CORS и WebSocket (пусто = все)
	AllowedOrigins []string

	Logger *utils.Logger
}

// SetupRoutes настраивает все HTTP маршруты приложения
//
// Структура маршрутов:
//
// /api/v1/ (X-API-Key, если задан API_KEY_HASH)
//
//	├── /trading/
//	│   ├── POST /start - запустить движок
//	│   ├── POST /stop - остановить движок
//	│   ├── GET /status - состояние, позиции, последние сделки
//	│   ├── GET /stats - статистика журнала
//	│   ├── GET /trades?limit=N - последние сделки
//	│   └── GET /positions - открытые позиции
//	├── /history/ (только при DB_ENABLED)
//	│   ├── GET /trades?symbols=A,B&limit=N - сделки из базы
//	│   └── GET /pnl - реализованный PNL по символам
//	└── GET /predict/{symbol} - сигнал без торговли
//
// /ws/stream - WebSocket для real-time обновлений
// /metrics - Prometheus
// /health - проверка живости
//
// Middleware применяется в следующем порядке:
// 1. Recovery (для всех маршрутов)
// 2. Logging (для всех маршрутов)
// 3. CORS (для всех маршрутов)
// 4. Auth (только /api/v1)
func SetupRoutes(deps *Dependencies) *mux.Router {
	log := deps.Logger
	if log == nil {
		log = utils.NewNopLogger()
	}

	router := mux.NewRouter()

	// Глобальные middleware (применяются ко всем маршрутам)
	router.Use(middleware.Recovery(log))
	router.Use(middleware.Logging(log))
	router.Use(middleware.CORS(deps.AllowedOrigins))

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.APIKeyAuth(deps.APIKeyHash, log))

	if deps.Engine != nil {
		tradingHandler := handlers.NewTradingHandler(deps.Engine, deps.Defaults, log)

		api.HandleFunc("/trading/start", tradingHandler.StartTrading).Methods(http.MethodPost, http.MethodOptions)
		api.HandleFunc("/trading/stop", tradingHandler.StopTrading).Methods(http.MethodPost, http.MethodOptions)
		api.HandleFunc("/trading/status", tradingHandler.GetStatus).Methods(http.MethodGet)
		api.HandleFunc("/trading/stats", tradingHandler.GetStats).Methods(http.MethodGet)
		api.HandleFunc("/trading/trades", tradingHandler.GetTrades).Methods(http.MethodGet)
		api.HandleFunc("/trading/positions", tradingHandler.GetPositions).Methods(http.MethodGet)
		api.HandleFunc("/predict/{symbol}", tradingHandler.Predict).Methods(http.MethodGet)
	}

	if deps.History != nil {
		historyHandler := handlers.NewHistoryHandler(deps.History, log)

		api.HandleFunc("/history/trades", historyHandler.GetTrades).Methods(http.MethodGet)
		api.HandleFunc("/history/pnl", historyHandler.GetPnl).Methods(http.MethodGet)
	}

	if deps.Hub != nil {
		router.Handle("/ws/stream", deps.Hub.Handler(websocket.NewOriginChecker(deps.AllowedOrigins))).Methods(http.MethodGet)
	}

	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		running := deps.Engine != nil && deps.Engine.IsRunning()
		if running {
			w.Write([]byte(`{"status":"ok","trading":true}`))
			return
		}
		w.Write([]byte(`{"status":"ok","trading":false}`))
	}).Methods(http.MethodGet)

	return router
}
