package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"autotrader/internal/models"
	"autotrader/pkg/crypto"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config содержит всю конфигурацию приложения
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Security SecurityConfig
	Exchange ExchangeConfig
	Signal   SignalConfig
	Trading  TradingConfig
	Logging  LoggingConfig
}

// ServerConfig - настройки HTTP сервера
type ServerConfig struct {
	Port            int
	Host            string
	ShutdownTimeout time.Duration
}

// DatabaseConfig - настройки подключения к БД (история сделок)
type DatabaseConfig struct {
	Enabled  bool
	Driver   string
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
}

// SecurityConfig - настройки безопасности
type SecurityConfig struct {
	// APIKeyHash - bcrypt хеш ключа для X-API-Key (пусто = API открыт)
	APIKeyHash string

	// AllowedOrigins - разрешённые Origin для WebSocket и CORS (пусто или "*" = все)
	AllowedOrigins []string
}

// ExchangeConfig - настройки подключения к бирже
type ExchangeConfig struct {
	Mode      string // paper, binance
	BaseURL   string
	APIKey    string
	SecretKey string
	RateLimit float64 // запросов в секунду (0 = без ограничения)
	RateBurst float64
}

// SignalConfig - настройки источника сигналов
type SignalConfig struct {
	Mode   string // simulated, http
	APIURL string // адрес сервиса прогнозов для режима http
}

// TradingConfig - параметры торговли по умолчанию
type TradingConfig struct {
	Defaults       models.TradingConfig
	LedgerCapacity int
	AutoStart      bool
	ProfileFile    string // путь к YAML профилю (пусто = не используется)
}

// LoggingConfig - настройки логирования
type LoggingConfig struct {
	Level  string
	Format string
	Output string
}

// Режимы работы с биржей
const (
	ExchangeModePaper   = "paper"
	ExchangeModeBinance = "binance"
)

// Режимы источника сигналов
const (
	SignalModeSimulated = "simulated"
	SignalModeHTTP      = "http"
)

// Load загружает конфигурацию из .env и переменных окружения
func Load() (*Config, error) {
	// .env не обязателен
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Enabled:  getEnvAsBool("DB_ENABLED", false),
			Driver:   getEnv("DB_DRIVER", "postgres"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			Name:     getEnv("DB_NAME", "autotrader"),
			User:     getEnv("DB_USER", "user"),
			Password: getEnv("DB_PASSWORD", "password"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Security: SecurityConfig{
			APIKeyHash:     getEnv("API_KEY_HASH", ""),
			AllowedOrigins: getEnvAsRawList("ALLOWED_ORIGINS"),
		},
		Exchange: ExchangeConfig{
			Mode:      strings.ToLower(getEnv("EXCHANGE_MODE", ExchangeModePaper)),
			BaseURL:   getEnv("EXCHANGE_BASE_URL", ""),
			APIKey:    getEnv("EXCHANGE_API_KEY", ""),
			SecretKey: getEnv("EXCHANGE_SECRET_KEY", ""),
			RateLimit: getEnvAsFloat("EXCHANGE_RATE_LIMIT", 10),
			RateBurst: getEnvAsFloat("EXCHANGE_RATE_BURST", 20),
		},
		Signal: SignalConfig{
			Mode:   strings.ToLower(getEnv("SIGNAL_MODE", SignalModeSimulated)),
			APIURL: getEnv("SIGNAL_API_URL", "http://localhost:5000/api/predict"),
		},
		Trading: TradingConfig{
			Defaults: models.TradingConfig{
				Symbols:              getEnvAsList("TRADING_SYMBOLS", models.DefaultSymbols),
				InvestmentPerTrade:   getEnvAsFloat("INVESTMENT_PER_TRADE", models.DefaultInvestmentPerTrade),
				MaxOpenTrades:        getEnvAsInt("MAX_OPEN_TRADES", models.DefaultMaxOpenTrades),
				MinConfidence:        getEnvAsFloat("MIN_CONFIDENCE", models.DefaultMinConfidence),
				CheckInterval:        getEnvAsDuration("CHECK_INTERVAL", models.DefaultCheckInterval),
				MonitorInterval:      getEnvAsDuration("MONITOR_INTERVAL", models.DefaultMonitorInterval),
				ForcedLiquidationPct: getEnvAsFloat("FORCED_LIQUIDATION_PCT", models.DefaultForcedLiquidationPct),
				CallTimeout:          getEnvAsDuration("CALL_TIMEOUT", models.DefaultCallTimeout),
			},
			LedgerCapacity: getEnvAsInt("LEDGER_CAPACITY", models.DefaultLedgerCapacity),
			AutoStart:      getEnvAsBool("AUTO_START", false),
			ProfileFile:    getEnv("TRADING_CONFIG_FILE", ""),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
			Output: getEnv("LOG_OUTPUT", ""),
		},
	}

	// YAML профиль перекрывает торговые параметры из env
	if cfg.Trading.ProfileFile != "" {
		if err := cfg.Trading.applyProfile(cfg.Trading.ProfileFile); err != nil {
			return nil, err
		}
	}

	if err := cfg.validateExchange(); err != nil {
		return nil, err
	}

	if err := cfg.validateSignal(); err != nil {
		return nil, err
	}

	if cfg.Security.APIKeyHash != "" {
		if err := crypto.ValidateHash(cfg.Security.APIKeyHash); err != nil {
			return nil, fmt.Errorf("API_KEY_HASH: %w", err)
		}
	}

	// Валидация числовых диапазонов
	if err := cfg.validateRanges(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// profileFile - структура YAML профиля торговли
type profileFile struct {
	Trading        models.TradingConfig `yaml:"trading"`
	LedgerCapacity int                  `yaml:"ledger_capacity"`
}

// profilePresence отличает отсутствующий min_confidence от явного 0
type profilePresence struct {
	Trading struct {
		MinConfidence *float64 `yaml:"min_confidence"`
	} `yaml:"trading"`
}

// applyProfile читает YAML профиль и перекрывает заданные в нём поля
func (t *TradingConfig) applyProfile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read trading profile %s: %w", path, err)
	}

	var profile profileFile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return fmt.Errorf("parse trading profile %s: %w", path, err)
	}

	var presence profilePresence
	if err := yaml.Unmarshal(data, &presence); err != nil {
		return fmt.Errorf("parse trading profile %s: %w", path, err)
	}

	p := profile.Trading
	d := &t.Defaults
	if len(p.Symbols) > 0 {
		d.Symbols = p.Symbols
	}
	if p.InvestmentPerTrade != 0 {
		d.InvestmentPerTrade = p.InvestmentPerTrade
	}
	if p.MaxOpenTrades != 0 {
		d.MaxOpenTrades = p.MaxOpenTrades
	}
	if presence.Trading.MinConfidence != nil {
		d.MinConfidence = *presence.Trading.MinConfidence
	}
	if p.CheckInterval != 0 {
		d.CheckInterval = p.CheckInterval
	}
	if p.MonitorInterval != 0 {
		d.MonitorInterval = p.MonitorInterval
	}
	if p.ForcedLiquidationPct != 0 {
		d.ForcedLiquidationPct = p.ForcedLiquidationPct
	}
	if p.CallTimeout != 0 {
		d.CallTimeout = p.CallTimeout
	}
	if profile.LedgerCapacity != 0 {
		t.LedgerCapacity = profile.LedgerCapacity
	}
	return nil
}

// validateExchange проверяет настройки биржи
func (c *Config) validateExchange() error {
	switch c.Exchange.Mode {
	case ExchangeModePaper:
		return nil
	case ExchangeModeBinance:
		if c.Exchange.APIKey == "" || c.Exchange.SecretKey == "" {
			return fmt.Errorf("EXCHANGE_API_KEY and EXCHANGE_SECRET_KEY are required for mode %q", c.Exchange.Mode)
		}
		return nil
	default:
		return fmt.Errorf("EXCHANGE_MODE must be %q or %q, got %q", ExchangeModePaper, ExchangeModeBinance, c.Exchange.Mode)
	}
}

// validateSignal проверяет настройки источника сигналов
func (c *Config) validateSignal() error {
	switch c.Signal.Mode {
	case SignalModeSimulated:
		return nil
	case SignalModeHTTP:
		if c.Signal.APIURL == "" {
			return fmt.Errorf("SIGNAL_API_URL is required for SIGNAL_MODE=http")
		}
		return nil
	default:
		return fmt.Errorf("SIGNAL_MODE must be %q or %q, got %q", SignalModeSimulated, SignalModeHTTP, c.Signal.Mode)
	}
}

// validateRanges проверяет числовые диапазоны параметров
func (c *Config) validateRanges() error {
	// Валидация портов
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("DB_PORT must be between 1 and 65535, got %d", c.Database.Port)
	}

	if c.Exchange.RateLimit < 0 {
		return fmt.Errorf("EXCHANGE_RATE_LIMIT cannot be negative, got %v", c.Exchange.RateLimit)
	}

	t := c.Trading.Defaults
	if len(t.Symbols) == 0 {
		return fmt.Errorf("TRADING_SYMBOLS cannot be empty")
	}

	if t.InvestmentPerTrade <= 0 {
		return fmt.Errorf("INVESTMENT_PER_TRADE must be positive, got %v", t.InvestmentPerTrade)
	}

	if t.MaxOpenTrades < 1 {
		return fmt.Errorf("MAX_OPEN_TRADES must be at least 1, got %d", t.MaxOpenTrades)
	}

	if t.MinConfidence < 0 || t.MinConfidence > 1 {
		return fmt.Errorf("MIN_CONFIDENCE must be between 0 and 1, got %v", t.MinConfidence)
	}

	// Валидация таймаутов и интервалов (должны быть положительными)
	if t.CheckInterval <= 0 {
		return fmt.Errorf("CHECK_INTERVAL must be positive, got %v", t.CheckInterval)
	}

	if t.MonitorInterval <= 0 {
		return fmt.Errorf("MONITOR_INTERVAL must be positive, got %v", t.MonitorInterval)
	}

	if t.CallTimeout <= 0 {
		return fmt.Errorf("CALL_TIMEOUT must be positive, got %v", t.CallTimeout)
	}

	if t.ForcedLiquidationPct >= 0 {
		return fmt.Errorf("FORCED_LIQUIDATION_PCT must be negative, got %v", t.ForcedLiquidationPct)
	}

	if c.Trading.LedgerCapacity < 1 {
		return fmt.Errorf("LEDGER_CAPACITY must be at least 1, got %d", c.Trading.LedgerCapacity)
	}

	return nil
}

// Addr возвращает адрес для http.Server
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DSN возвращает строку подключения к базе данных
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// DSNWithoutPassword возвращает строку подключения без пароля (для логирования)
func (d DatabaseConfig) DSNWithoutPassword() string {
	return fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Name, d.SSLMode)
}

// Вспомогательные функции для чтения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList читает список через запятую ("BTCUSDT, ETHUSDT")
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return append([]string(nil), defaultValue...)
	}
	var result []string
	for _, part := range strings.Split(valueStr, ",") {
		if s := strings.ToUpper(strings.TrimSpace(part)); s != "" {
			result = append(result, s)
		}
	}
	return result
}

// getEnvAsRawList читает список через запятую без изменения регистра
func getEnvAsRawList(key string) []string {
	var result []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if s := strings.TrimSpace(part); s != "" {
			result = append(result, s)
		}
	}
	return result
}
