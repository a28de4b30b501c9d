package bot

import "errors"

// Ошибки торгового ядра
var (
	ErrInvalidTransition = errors.New("invalid position state transition")
	ErrPositionNotFound  = errors.New("position not found")
	ErrAlreadyRunning    = errors.New("trading engine already running")
	ErrNotRunning        = errors.New("trading engine not running")
	ErrEmptyWatchlist    = errors.New("watchlist is empty")
	ErrInvalidConfig     = errors.New("invalid trading config")
)

// Отказы исполнителя (не ошибки программы: лимит или чужой переход состояния)
var (
	ErrSlotUnavailable = errors.New("position slot unavailable")
	ErrNotClosable     = errors.New("position is not closable")
)
