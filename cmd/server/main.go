package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"autotrader/internal/api"
	"autotrader/internal/bot"
	"autotrader/internal/config"
	"autotrader/internal/exchange"
	"autotrader/internal/repository"
	tradesignal "autotrader/internal/signal"
	"autotrader/internal/websocket"
	"autotrader/pkg/crypto"
	"autotrader/pkg/utils"
)

func main() {
	// server hashkey [key] - сгенерировать ключ API и bcrypt хеш для API_KEY_HASH
	if len(os.Args) > 1 && os.Args[1] == "hashkey" {
		if err := runHashKey(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "hashkey: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(); err != nil {
		utils.L().Fatal("server failed", utils.Err(err))
	}
}

func run() error {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := utils.InitGlobalLogger(utils.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	defer logger.Sync()

	// Биржа
	exch, err := exchange.NewClient(cfg.Exchange)
	if err != nil {
		return fmt.Errorf("init exchange: %w", err)
	}
	defer exchange.CloseGlobalClient()

	// Источник сигналов
	var signals tradesignal.Source
	switch cfg.Signal.Mode {
	case config.SignalModeHTTP:
		signals = tradesignal.NewHTTPSource(cfg.Signal.APIURL, exchange.NewHTTPClient(exchange.DefaultHTTPClientConfig()))
	default:
		signals = tradesignal.NewSimulatedSource(exch, time.Now().UnixNano())
	}

	logger.Info("starting autotrader",
		utils.Exchange(exch.GetName()),
		utils.String("signal_mode", cfg.Signal.Mode),
		utils.Int("symbols", len(cfg.Trading.Defaults.Symbols)),
	)

	engine := bot.NewEngine(exch, signals, cfg.Trading.LedgerCapacity, logger)

	deps := &api.Dependencies{
		Engine:         engine,
		Defaults:       cfg.Trading.Defaults,
		APIKeyHash:     cfg.Security.APIKeyHash,
		AllowedOrigins: cfg.Security.AllowedOrigins,
		Logger:         logger,
	}

	// История сделок в базе данных (опционально)
	if cfg.Database.Enabled {
		db, err := initDatabase(cfg.Database)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer db.Close()
		logger.Info("connected to database", utils.String("dsn", cfg.Database.DSNWithoutPassword()))

		repo := repository.NewTradeRepository(db)
		if err := restoreHistory(repo, engine, cfg.Trading.LedgerCapacity); err != nil {
			return err
		}
		engine.SetTradeSink(repo)
		deps.History = repo
	}

	// WebSocket hub
	hub := websocket.NewHub(logger)
	go hub.Run()
	defer hub.Stop()
	engine.SetBroadcaster(hub)
	deps.Hub = hub

	router := api.SetupRoutes(deps)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", utils.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	if cfg.Trading.AutoStart {
		defaults := cfg.Trading.Defaults
		if err := engine.Start(&defaults); err != nil {
			logger.Error("auto start failed", utils.Err(err))
		}
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("shutting down", utils.String("signal", sig.String()))
	case err := <-serverErr:
		engine.Stop()
		return fmt.Errorf("http server: %w", err)
	}

	// Сначала останавливаем торговлю: новые ордера не отправляются
	engine.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("http server forced to shutdown", utils.Err(err))
	}

	// Дожидаемся записи закрытых сделок в базу
	if err := engine.Shutdown(ctx); err != nil {
		logger.Error("trade persistence did not finish", utils.Err(err))
	}

	logger.Info("server exited",
		utils.Int("open_positions", len(engine.Positions())),
		utils.PNL(engine.RealizedPnl()),
	)
	return nil
}

// initDatabase создает подключение к базе данных
func initDatabase(cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open(cfg.Driver, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Настройка пула соединений
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// restoreHistory создаёт схему и загружает последние сделки в журнал движка
func restoreHistory(repo *repository.TradeRepository, engine *bot.Engine, capacity int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := repo.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	recent, err := repo.GetRecent(ctx, capacity)
	if err != nil {
		return fmt.Errorf("load trade history: %w", err)
	}
	engine.RestoreHistory(recent)
	return nil
}

// runHashKey печатает ключ и его bcrypt хеш
//
// Без аргумента генерирует случайный ключ.
func runHashKey(args []string) error {
	key := ""
	if len(args) > 0 {
		key = args[0]
	} else {
		generated, err := crypto.GenerateAPIKey()
		if err != nil {
			return err
		}
		key = generated
	}

	hash, err := crypto.HashAPIKey(key, crypto.DefaultCost)
	if err != nil {
		return err
	}

	fmt.Printf("X-API-Key:    %s\n", key)
	fmt.Printf("API_KEY_HASH=%s\n", hash)
	return nil
}
