package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"ytcbot/internal/adapters/logger" // Import the logger package for LogLevel
)

// Knowledge sources accepted by KNOWLEDGE_SOURCE.
const (
	KnowledgeNone  = "none"
	KnowledgeFile  = "file"
	KnowledgeRedis = "redis"
)

// Config holds all application configuration.
type Config struct {
	// Binance API
	APIKey    string
	SecretKey string
	IsTestnet bool

	// Instrument and timeframes
	Symbol            string
	StructureInterval string // e.g. 4h
	TrendInterval     string // e.g. 15m
	EntryInterval     string // e.g. 5m
	BarLimit          int    // bars fetched per timeframe

	// Account and risk
	BalanceAsset        string
	RiskPercent         float64 // % of balance risked per trade
	MaxPositionPercent  float64 // max position value as % of balance
	MaxDrawdownPercent  float64 // % drawdown from peak that halts new entries
	MaxDailyTrades      int
	MinAvailableBalance float64 // Minimum available balance required for trading
	DryRun              bool    // route orders to the paper exchange

	// Database
	DBPath string

	// Logging
	LogLevel logger.LogLevel // Use the LogLevel type from the logger adapter
	LogFile  string

	// Connection Settings
	ReconnectDelay       time.Duration
	MaxReconnectAttempts int
	RequestsPerSecond    float64

	// Analysis tuning and pattern knowledge
	AnalysisConfigPath string
	KnowledgeSource    string // none | file | redis
	KnowledgeFile      string
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	// Binance API
	cfg.APIKey = getEnv("BINANCE_API_KEY", "")
	cfg.SecretKey = getEnv("BINANCE_API_SECRET", "")
	cfg.IsTestnet = getEnvAsBool("IS_TESTNET", true) // Default to testnet for safety
	cfg.DryRun = getEnvAsBool("DRY_RUN", false)

	// Keys are only needed when orders reach the exchange.
	if !cfg.DryRun {
		if cfg.APIKey == "" {
			errs = append(errs, "BINANCE_API_KEY must be set")
		}
		if cfg.SecretKey == "" {
			errs = append(errs, "BINANCE_API_SECRET must be set")
		}
	}

	// Instrument and timeframes
	cfg.Symbol = getEnv("SYMBOL", "BTCUSDT")
	cfg.StructureInterval = getEnv("STRUCTURE_INTERVAL", "4h")
	cfg.TrendInterval = getEnv("TREND_INTERVAL", "15m")
	cfg.EntryInterval = getEnv("ENTRY_INTERVAL", "5m")
	for key, interval := range map[string]string{
		"STRUCTURE_INTERVAL": cfg.StructureInterval,
		"TREND_INTERVAL":     cfg.TrendInterval,
		"ENTRY_INTERVAL":     cfg.EntryInterval,
	} {
		if !isValidInterval(interval) {
			errs = append(errs, fmt.Sprintf("%s has unsupported value '%s'", key, interval))
		}
	}

	cfg.BarLimit, err = getEnvAsIntRequired("BAR_LIMIT", 200)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid BAR_LIMIT: %v", err))
	} else if cfg.BarLimit < 30 || cfg.BarLimit > 1500 {
		errs = append(errs, "BAR_LIMIT must be between 30 and 1500")
	}

	// Account and risk
	cfg.BalanceAsset = getEnv("ACCOUNT_BALANCE_ASSET", "USDT")

	cfg.RiskPercent, err = getEnvAsFloatRequired("ACCOUNT_RISK_PERCENT", 1.0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid ACCOUNT_RISK_PERCENT: %v", err))
	} else if cfg.RiskPercent <= 0 || cfg.RiskPercent > 10 {
		errs = append(errs, "ACCOUNT_RISK_PERCENT must be in (0, 10]")
	}

	cfg.MaxPositionPercent, err = getEnvAsFloatRequired("MAX_POSITION_PERCENT", 5.0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_POSITION_PERCENT: %v", err))
	} else if cfg.MaxPositionPercent <= 0 || cfg.MaxPositionPercent > 100 {
		errs = append(errs, "MAX_POSITION_PERCENT must be in (0, 100]")
	}

	cfg.MaxDrawdownPercent, err = getEnvAsFloatRequired("MAX_DRAWDOWN_PERCENT", 10.0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_DRAWDOWN_PERCENT: %v", err))
	} else if cfg.MaxDrawdownPercent <= 0 || cfg.MaxDrawdownPercent >= 100 {
		errs = append(errs, "MAX_DRAWDOWN_PERCENT must be in (0, 100)")
	}

	cfg.MaxDailyTrades, err = getEnvAsIntRequired("MAX_DAILY_TRADES", 5)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_DAILY_TRADES: %v", err))
	} else if cfg.MaxDailyTrades <= 0 {
		errs = append(errs, "MAX_DAILY_TRADES must be positive")
	}

	cfg.MinAvailableBalance, err = getEnvAsFloatRequired("MIN_AVAILABLE_BALANCE", 100.0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MIN_AVAILABLE_BALANCE: %v", err))
	} else if cfg.MinAvailableBalance < 0 {
		errs = append(errs, "MIN_AVAILABLE_BALANCE cannot be negative")
	}

	// Database
	cfg.DBPath = getEnv("DB_PATH", "./data/ytcbot.db")

	// Logging
	cfg.LogLevel = logger.ParseLevel(getEnv("LOG_LEVEL", "INFO"))
	cfg.LogFile = getEnv("LOG_FILE", "")

	// Connection Settings
	reconnectDelaySeconds := getEnvAsInt("RECONNECT_DELAY_SECONDS", 5)
	if reconnectDelaySeconds <= 0 {
		errs = append(errs, "RECONNECT_DELAY_SECONDS must be positive")
	}
	cfg.ReconnectDelay = time.Duration(reconnectDelaySeconds) * time.Second

	cfg.MaxReconnectAttempts = getEnvAsInt("MAX_RECONNECT_ATTEMPTS", 10)
	if cfg.MaxReconnectAttempts < 0 {
		errs = append(errs, "MAX_RECONNECT_ATTEMPTS cannot be negative")
	}

	cfg.RequestsPerSecond = getEnvAsFloat("REQUESTS_PER_SECOND", 10)
	if cfg.RequestsPerSecond <= 0 {
		errs = append(errs, "REQUESTS_PER_SECOND must be positive")
	}

	// Analysis tuning and pattern knowledge
	cfg.AnalysisConfigPath = getEnv("ANALYSIS_CONFIG_PATH", "")
	cfg.KnowledgeSource = strings.ToLower(getEnv("KNOWLEDGE_SOURCE", KnowledgeNone))
	cfg.KnowledgeFile = getEnv("KNOWLEDGE_FILE", "./data/patterns.yaml")
	cfg.RedisAddr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	cfg.RedisDB, err = getEnvAsIntRequired("REDIS_DB", 0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid REDIS_DB: %v", err))
	}
	switch cfg.KnowledgeSource {
	case KnowledgeNone, KnowledgeFile, KnowledgeRedis:
	default:
		errs = append(errs, fmt.Sprintf("KNOWLEDGE_SOURCE must be one of none, file, redis; got '%s'", cfg.KnowledgeSource))
	}

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

var validIntervals = map[string]bool{
	"1m": true, "3m": true, "5m": true, "15m": true, "30m": true,
	"1h": true, "2h": true, "4h": true, "6h": true, "8h": true, "12h": true,
	"1d": true, "3d": true, "1w": true,
}

func isValidInterval(interval string) bool {
	return validIntervals[interval]
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
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

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		// Use default if env var is not set at all
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		// Return error if env var is set but invalid
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
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

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
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
