package config

import (
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"time"

	"spot_trader/internal/models"

	"github.com/joho/godotenv"
)

// Exchanges the bot can trade on.
const (
	ExchangeAlpaca  = "alpaca"
	ExchangeBinance = "binance"
)

// Config holds the process level configuration. Trading parameters live in the
// settings file instead, because they can change while the bot runs.
type Config struct {
	Exchange      string
	SettingsFile  string
	DBPath        string
	LogLevel      string
	LogFile       string
	MaxLogSizeMB  int64
	MaxLogBackups int
	HTTPAddr      string

	// Settings file hot reload.
	WatchSettings    bool
	WatchDebounceSec float64

	AlpacaKeyID     string
	AlpacaSecretKey string
	AlpacaBaseURL   string
	// Follow Alpaca trade prints between cycles for intra-candle stop checks.
	PriceStream bool

	BinanceAPIKey    string
	BinanceAPISecret string
	BinanceBaseURL   string

	TelegramBotToken string
	TelegramChatID   string

	Version string
}

// secretVars are masked when the .env file is echoed.
var secretVars = map[string]bool{
	"APCA_API_KEY_ID":     true,
	"APCA_API_SECRET_KEY": true,
	"BINANCE_API_KEY":     true,
	"BINANCE_API_SECRET":  true,
	"TELEGRAM_BOT_TOKEN":  true,
}

// Load reads a .env file if present and builds the configuration from the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: No .env file found, using system environment variables")
	}

	cfg := &Config{
		Exchange:      strings.ToLower(getEnv("TRADER_EXCHANGE", ExchangeBinance)),
		SettingsFile:  getEnv("TRADER_SETTINGS_FILE", "trader_settings.json"),
		DBPath:        getEnv("TRADER_DB_PATH", "spot_trader.db"),
		LogLevel:      strings.ToUpper(getEnv("TRADER_LOG_LEVEL", "INFO")),
		LogFile:       getEnv("TRADER_LOG_FILE", "spot_trader.log"),
		MaxLogSizeMB:  int64(getEnvAsInt("TRADER_MAX_LOG_SIZE_MB", 10)),
		MaxLogBackups: getEnvAsInt("TRADER_MAX_LOG_BACKUPS", 3),
		HTTPAddr:      getEnv("TRADER_HTTP_ADDR", ""),

		WatchSettings:    getEnvAsBool("TRADER_WATCH_SETTINGS", true),
		WatchDebounceSec: getEnvAsFloat64("TRADER_WATCH_DEBOUNCE_SEC", 0.5),

		AlpacaKeyID:     os.Getenv("APCA_API_KEY_ID"),
		AlpacaSecretKey: os.Getenv("APCA_API_SECRET_KEY"),
		AlpacaBaseURL:   getEnv("APCA_API_BASE_URL", "https://paper-api.alpaca.markets"),
		PriceStream:     getEnvAsBool("TRADER_PRICE_STREAM", true),

		BinanceAPIKey:    os.Getenv("BINANCE_API_KEY"),
		BinanceAPISecret: os.Getenv("BINANCE_API_SECRET"),
		BinanceBaseURL:   getEnv("BINANCE_BASE_URL", "https://api.binance.com"),

		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:   os.Getenv("TELEGRAM_CHAT_ID"),
	}

	switch cfg.Exchange {
	case ExchangeAlpaca, ExchangeBinance:
	default:
		return nil, fmt.Errorf("TRADER_EXCHANGE must be %q or %q, got %q", ExchangeAlpaca, ExchangeBinance, cfg.Exchange)
	}

	echoEnvFile()
	return cfg, nil
}

// Validate returns an error naming every credential missing for mode on the configured exchange.
// Paper mode only needs market data: Binance serves it unauthenticated, Alpaca does not.
func (c *Config) Validate(mode models.TradingMode) error {
	var missing []string
	need := func(key, val string) {
		if val == "" {
			missing = append(missing, key)
		}
	}

	switch c.Exchange {
	case ExchangeAlpaca:
		need("APCA_API_KEY_ID", c.AlpacaKeyID)
		need("APCA_API_SECRET_KEY", c.AlpacaSecretKey)
	case ExchangeBinance:
		if mode == models.ModeLive {
			need("BINANCE_API_KEY", c.BinanceAPIKey)
			need("BINANCE_API_SECRET", c.BinanceAPISecret)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables for %s %s mode: %v", c.Exchange, mode, missing)
	}
	return nil
}

// TelegramEnabled reports whether both Telegram credentials are set.
func (c *Config) TelegramEnabled() bool {
	return c.TelegramBotToken != "" && c.TelegramChatID != ""
}

// WatchDebounce is the quiet period before a settings file change is reloaded.
func (c *Config) WatchDebounce() time.Duration {
	return time.Duration(c.WatchDebounceSec * float64(time.Second))
}

// echoEnvFile prints the variables defined in .env, masking secrets.
func echoEnvFile() {
	envMap, err := godotenv.Read()
	if err != nil {
		return
	}
	keys := make([]string, 0, len(envMap))
	for k := range envMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	log.Println("--- .env File Variables ---")
	for _, key := range keys {
		log.Printf("%s=%s", key, maskValue(key, envMap[key]))
	}
	log.Println("---------------------------")
}

// maskValue shows only the last 4 chars of a secret.
func maskValue(key, val string) string {
	if !secretVars[key] {
		return val
	}
	if len(val) > 4 {
		return "***" + val[len(val)-4:]
	}
	return "***"
}
