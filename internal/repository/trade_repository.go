package repository

import (
	"context"
	"database/sql"
	"errors"

	"autotrader/internal/models"

	"github.com/lib/pq"
)

// Ошибки репозитория сделок
var (
	ErrTradeNotFound = errors.New("trade not found")
	ErrNilTrade      = errors.New("trade is nil")
)

// schemaTrades - таблица завершённых сделок
const schemaTrades = `
	CREATE TABLE IF NOT EXISTS trades (
		id                TEXT PRIMARY KEY,
		symbol            TEXT NOT NULL,
		side              TEXT NOT NULL,
		quantity          DOUBLE PRECISION NOT NULL,
		entry_price       DOUBLE PRECISION NOT NULL,
		exit_price        DOUBLE PRECISION NOT NULL,
		pnl               DOUBLE PRECISION NOT NULL,
		pnl_percent       DOUBLE PRECISION NOT NULL,
		signal_confidence DOUBLE PRECISION NOT NULL,
		entry_time        TIMESTAMPTZ NOT NULL,
		exit_time         TIMESTAMPTZ NOT NULL,
		close_reason      TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_trades_exit_time ON trades (exit_time DESC);
	CREATE INDEX IF NOT EXISTS idx_trades_symbol ON trades (symbol);`

const tradeColumns = `id, symbol, side, quantity, entry_price, exit_price, pnl, pnl_percent, signal_confidence, entry_time, exit_time, close_reason`

// TradeRepository - работа с таблицей trades
//
// Реализует bot.TradeSink. Запись идемпотентна по id, поэтому
// повторная отправка той же сделки после сетевой ошибки безопасна.
type TradeRepository struct {
	db *sql.DB
}

// NewTradeRepository создает новый экземпляр репозитория
func NewTradeRepository(db *sql.DB) *TradeRepository {
	return &TradeRepository{db: db}
}

// EnsureSchema создаёт таблицу и индексы, если их нет
func (r *TradeRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, schemaTrades)
	return err
}

// SaveTrade сохраняет завершённую сделку
func (r *TradeRepository) SaveTrade(ctx context.Context, trade *models.TradeRecord) error {
	if trade == nil {
		return ErrNilTrade
	}

	query := `
		INSERT INTO trades (` + tradeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO NOTHING`

	_, err := r.db.ExecContext(ctx, query,
		trade.ID,
		trade.Symbol,
		trade.Side,
		trade.Quantity,
		trade.EntryPrice,
		trade.ExitPrice,
		trade.Pnl,
		trade.PnlPercent,
		trade.SignalConfidence,
		trade.EntryTime,
		trade.ExitTime,
		trade.CloseReason,
	)
	return err
}

// GetByID возвращает сделку по ID
func (r *TradeRepository) GetByID(ctx context.Context, id string) (*models.TradeRecord, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE id = $1`

	trade, err := scanTrade(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTradeNotFound
		}
		return nil, err
	}
	return trade, nil
}

// GetRecent возвращает последние limit сделок (новые первыми)
func (r *TradeRepository) GetRecent(ctx context.Context, limit int) ([]*models.TradeRecord, error) {
	query := `
		SELECT ` + tradeColumns + `
		FROM trades
		ORDER BY exit_time DESC
		LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTrades(rows)
}

// GetBySymbols возвращает сделки по набору символов (новые первыми)
func (r *TradeRepository) GetBySymbols(ctx context.Context, symbols []string, limit int) ([]*models.TradeRecord, error) {
	query := `
		SELECT ` + tradeColumns + `
		FROM trades
		WHERE symbol = ANY($1)
		ORDER BY exit_time DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(symbols), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTrades(rows)
}

// RealizedPnlBySymbol возвращает суммарный PNL по каждому символу
func (r *TradeRepository) RealizedPnlBySymbol(ctx context.Context) (map[string]float64, error) {
	query := `SELECT symbol, COALESCE(SUM(pnl), 0) FROM trades GROUP BY symbol`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]float64)
	for rows.Next() {
		var symbol string
		var pnl float64
		if err := rows.Scan(&symbol, &pnl); err != nil {
			return nil, err
		}
		result[symbol] = pnl
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTrade(row rowScanner) (*models.TradeRecord, error) {
	t := &models.TradeRecord{}
	err := row.Scan(
		&t.ID,
		&t.Symbol,
		&t.Side,
		&t.Quantity,
		&t.EntryPrice,
		&t.ExitPrice,
		&t.Pnl,
		&t.PnlPercent,
		&t.SignalConfidence,
		&t.EntryTime,
		&t.ExitTime,
		&t.CloseReason,
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func scanTrades(rows *sql.Rows) ([]*models.TradeRecord, error) {
	trades := make([]*models.TradeRecord, 0)
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return trades, nil
}
