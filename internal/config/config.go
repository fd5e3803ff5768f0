package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"signal-scanner/internal/domain"
	"signal-scanner/internal/logger"
	"signal-scanner/internal/signal"

	"go.uber.org/zap"
)

type Config struct {
	BinanceAPIKey    string
	BinanceAPISecret string
	BinanceTestnet   bool

	QuoteAsset              string
	TradingPairs            []string
	AutoExecute             bool
	RiskPercentage          float64
	AIEnabled               bool
	WarnInsufficientHistory bool
	SimulatedBalance        float64
	MinBalance              float64

	ScanInterval   time.Duration
	SymbolDelay    time.Duration
	ErrorBackoff   time.Duration
	CandleInterval string
	CandleLimit    int
	MinHistory     int

	RSIOversold       float64
	RSIStrictOversold float64
	RSIOverbought     float64

	OpenAIAPIKey string
	OpenAIModel  string

	HTTPPort   int
	AdminToken string

	TelegramBotToken     string
	TelegramAllowedChats []int64

	RedisURL        string
	CandleCacheSecs int
	DatabaseURL     string

	MCPHTTPEnabled        bool
	MCPHTTPBind           string
	MCPHTTPPort           int
	MCPAuthToken          string
	MCPRequestTimeoutSecs int

	LogLevel       string
	LogFormat      string
	TracingEnabled bool
}

// Load reads the environment. Invalid values fall back to their defaults
// with a warning; nothing here is fatal.
func Load(log *zap.Logger) *Config {
	log = logger.OrNop(log).Named("config")
	cfg := &Config{
		BinanceAPIKey:    strings.TrimSpace(os.Getenv("BINANCE_API_KEY")),
		BinanceAPISecret: strings.TrimSpace(os.Getenv("BINANCE_API_SECRET")),
		AdminToken:       strings.TrimSpace(os.Getenv("ADMIN_TOKEN")),
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		RedisURL:         strings.TrimSpace(os.Getenv("REDIS_URL")),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		MCPAuthToken:     os.Getenv("MCP_AUTH_TOKEN"),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
	}
	env := envReader{log: log}

	if cfg.BinanceAPIKey == "" || cfg.BinanceAPISecret == "" {
		log.Warn("BINANCE_API_KEY/BINANCE_API_SECRET not set, running in simulation mode")
	}
	if cfg.OpenAIAPIKey == "" {
		log.Warn("OPENAI_API_KEY not set, AI rationale will be unavailable")
	}
	if cfg.AdminToken == "" {
		log.Warn("ADMIN_TOKEN not set, operator endpoints are unauthenticated")
	}
	if cfg.DatabaseURL == "" {
		log.Info("DATABASE_URL not set, trade journal disabled")
	}
	if cfg.RedisURL == "" {
		log.Info("REDIS_URL not set, candle cache disabled")
	}

	cfg.BinanceTestnet = env.boolVar("BINANCE_TESTNET", false)

	cfg.QuoteAsset = strings.ToUpper(strings.TrimSpace(os.Getenv("QUOTE_ASSET")))
	if cfg.QuoteAsset == "" {
		cfg.QuoteAsset = domain.DefaultQuoteAsset
	}

	cfg.TradingPairs = append([]string(nil), domain.DefaultTradingPairs...)
	if v := strings.TrimSpace(os.Getenv("TRADING_PAIRS")); v != "" {
		var pairs []string
		for _, p := range strings.Split(v, ",") {
			if n := domain.NormalizePair(p, cfg.QuoteAsset); n != "" {
				pairs = append(pairs, n)
			}
		}
		if len(pairs) > 0 {
			cfg.TradingPairs = pairs
		} else {
			log.Warn("TRADING_PAIRS has no usable entries, using defaults", zap.String("value", v))
		}
	}

	cfg.AutoExecute = env.boolVar("AUTO_EXECUTE", false)
	cfg.AIEnabled = env.boolVar("AI_ENABLED", false)
	cfg.WarnInsufficientHistory = env.boolVar("WARN_INSUFFICIENT_HISTORY", true)

	cfg.RiskPercentage = 1.0
	if strings.TrimSpace(os.Getenv("RISK_PERCENTAGE")) != "" {
		cfg.RiskPercentage = env.floatVar("RISK_PERCENTAGE", 1.0, func(f float64) bool { return f > 0 && f <= 100 })
	} else if strings.TrimSpace(os.Getenv("RISK_PCT")) != "" {
		// legacy fraction form: 0.01 means 1%
		frac := env.floatVar("RISK_PCT", 0.01, func(f float64) bool { return f > 0 && f <= 1 })
		cfg.RiskPercentage = frac * 100
	}

	cfg.SimulatedBalance = env.floatVar("SIMULATED_BALANCE", 1000, func(f float64) bool { return f >= 0 })
	cfg.MinBalance = env.floatVar("MIN_BALANCE", 10, func(f float64) bool { return f >= 0 })

	cfg.ScanInterval = time.Duration(env.intVar("SCAN_INTERVAL_SECS", 300, positive)) * time.Second
	cfg.SymbolDelay = time.Duration(env.intVar("SYMBOL_DELAY_MS", 1000, positive)) * time.Millisecond
	cfg.ErrorBackoff = time.Duration(env.intVar("ERROR_BACKOFF_SECS", 60, positive)) * time.Second

	cfg.CandleInterval = strings.TrimSpace(os.Getenv("CANDLE_INTERVAL"))
	if cfg.CandleInterval == "" {
		cfg.CandleInterval = "1h"
	}
	if !supportedInterval(cfg.CandleInterval) {
		log.Warn("unsupported CANDLE_INTERVAL, defaulting to 1h", zap.String("value", cfg.CandleInterval))
		cfg.CandleInterval = "1h"
	}
	cfg.CandleLimit = env.intVar("CANDLE_LIMIT", 100, func(n int) bool { return n > 0 && n <= 1000 })
	cfg.MinHistory = env.intVar("MIN_HISTORY", 50, positive)

	cfg.RSIOversold = env.floatVar("RSI_OVERSOLD", 35, rsiRange)
	cfg.RSIStrictOversold = env.floatVar("RSI_STRICT_OVERSOLD", 30, rsiRange)
	cfg.RSIOverbought = env.floatVar("RSI_OVERBOUGHT", 65, rsiRange)
	if err := cfg.Thresholds().Validate(); err != nil {
		log.Warn("inconsistent RSI thresholds, using defaults", zap.Error(err))
		def := signal.DefaultThresholds()
		cfg.RSIOversold, cfg.RSIStrictOversold, cfg.RSIOverbought = def.Oversold, def.StrictOversold, def.Overbought
	}

	cfg.OpenAIModel = strings.TrimSpace(os.Getenv("OPENAI_MODEL"))
	if cfg.OpenAIModel == "" {
		cfg.OpenAIModel = "gpt-4o-mini"
	}

	cfg.HTTPPort = env.intVar("HTTP_PORT", 8080, validPort)
	if v := strings.TrimSpace(os.Getenv("PORT")); v != "" && os.Getenv("HTTP_PORT") == "" {
		cfg.HTTPPort = env.intVar("PORT", 8080, validPort)
	}

	if v := strings.TrimSpace(os.Getenv("TELEGRAM_ALLOWED_CHAT")); v != "" {
		for _, part := range strings.Split(v, ",") {
			id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
			if err != nil {
				log.Warn("ignoring invalid TELEGRAM_ALLOWED_CHAT entry", zap.String("value", part))
				continue
			}
			cfg.TelegramAllowedChats = append(cfg.TelegramAllowedChats, id)
		}
	}

	cfg.CandleCacheSecs = env.intVar("CANDLE_CACHE_SECS", 60, positive)

	cfg.MCPHTTPEnabled = env.boolVar("MCP_HTTP_ENABLED", false)
	cfg.MCPHTTPBind = strings.TrimSpace(os.Getenv("MCP_HTTP_BIND"))
	if cfg.MCPHTTPBind == "" {
		cfg.MCPHTTPBind = "127.0.0.1"
	}
	cfg.MCPHTTPPort = env.intVar("MCP_HTTP_PORT", 8090, validPort)
	cfg.MCPRequestTimeoutSecs = env.intVar("MCP_REQUEST_TIMEOUT_SECS", 30, positive)
	if cfg.MCPHTTPEnabled && cfg.MCPAuthToken == "" {
		log.Warn("MCP_HTTP_ENABLED without MCP_AUTH_TOKEN, MCP endpoint is unauthenticated")
	}

	cfg.LogLevel = strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	cfg.LogFormat = strings.TrimSpace(os.Getenv("LOG_FORMAT"))
	if cfg.LogFormat == "" {
		cfg.LogFormat = "json"
	}
	cfg.TracingEnabled = env.boolVar("TRACING_ENABLED", true)

	return cfg
}

// TradingConfig is the runtime-mutable part handed to the scanner.
func (c *Config) TradingConfig() domain.TradingConfig {
	return domain.TradingConfig{
		APIKey:                  c.BinanceAPIKey,
		APISecret:               c.BinanceAPISecret,
		AutoExecute:             c.AutoExecute,
		RiskPercentage:          c.RiskPercentage,
		TradingPairs:            append([]string(nil), c.TradingPairs...),
		AIEnabled:               c.AIEnabled,
		WarnInsufficientHistory: c.WarnInsufficientHistory,
		QuoteAsset:              c.QuoteAsset,
	}
}

func (c *Config) Thresholds() signal.Thresholds {
	t := signal.DefaultThresholds()
	t.Oversold = c.RSIOversold
	t.StrictOversold = c.RSIStrictOversold
	t.Overbought = c.RSIOverbought
	return t
}

type envReader struct {
	log *zap.Logger
}

func (e envReader) intVar(key string, def int, ok func(int) bool) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || !ok(n) {
		e.log.Warn("invalid value, using default", zap.String("key", key), zap.String("value", v), zap.Int("default", def))
		return def
	}
	return n
}

func (e envReader) floatVar(key string, def float64, ok func(float64) bool) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || !ok(f) {
		e.log.Warn("invalid value, using default", zap.String("key", key), zap.String("value", v), zap.Float64("default", def))
		return def
	}
	return f
}

func (e envReader) boolVar(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.log.Warn("invalid value, using default", zap.String("key", key), zap.String("value", v), zap.Bool("default", def))
		return def
	}
	return b
}

func positive(n int) bool { return n > 0 }

func validPort(n int) bool { return n > 0 && n <= 65535 }

func rsiRange(f float64) bool { return f > 0 && f < 100 }

func supportedInterval(iv string) bool {
	for _, s := range domain.SupportedIntervals {
		if s == iv {
			return true
		}
	}
	return false
}
