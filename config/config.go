package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"forexTradeBot/internal/domain"
)

// Config holds all application configuration. It is constructed once at
// startup and passed by reference; nothing mutates it afterwards.
type Config struct {
	// API credentials and endpoints
	APIKey        string
	APISecret     string
	MarketDataURL string
	BrokerURL     string

	// Scheduling
	UpdateInterval     time.Duration // data refresh cadence
	CheckInterval      time.Duration // opportunity check cadence
	RequestTimeout     time.Duration // per gateway call
	StalenessTolerance time.Duration // max age of a point still usable for evaluation
	Retention          time.Duration // price series retention horizon
	FetchRetry         bool          // one bounded retry on fetch failure before deferring to next cycle

	// Trading
	TradeMode       domain.TradeMode
	AllowHedging    bool // permit more than one open position per pair
	MaxTradesPerDay int
	AvailableFunds  float64
	TradeCap        float64 // max base units per order; zero disables the check

	// Storage
	DBPath string

	// Strategy
	StrategyName        string
	Pair                domain.CurrencyPair
	ThresholdPercent    float64
	Direction           string // momentum or reversion (simple strategy)
	TradeAmount         float64
	SecondaryPairs      []domain.CurrencyPair
	CorrelationWindow   int // days (correlation strategy)
	MinSamples          int
	DivergenceThreshold float64
	StabilityThreshold  float64

	// Advanced strategy indicator parameters
	ShortMAPeriod int
	LongMAPeriod  int
	EMAPeriod     int
	RSIPeriod     int
	RSIOverbought float64
	RSIOversold   float64
	CombineRule   string // majority or weighted

	// Logging
	LogLevel string
	LogFile  string
}

const (
	StrategySimple      = "simple"
	StrategyAdvanced    = "advanced"
	StrategyCorrelation = "correlation"
)

// Load reads an INI configuration file, applies environment overrides for
// secrets (FOREX_API_KEY, FOREX_API_SECRET, optionally from a .env file) and
// validates everything. Any validation failure is fatal: the bot must not
// start on a malformed configuration.
func Load(path string) (*Config, error) {
	// Load .env if present so secrets can stay out of the config file.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("ini")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %q: %w", path, err)
	}

	setDefaults(v)

	cfg := &Config{}
	var errs []string

	// [API]
	cfg.APIKey = v.GetString("API.key")
	cfg.APISecret = v.GetString("API.secret")
	cfg.MarketDataURL = v.GetString("API.market_data_url")
	cfg.BrokerURL = v.GetString("API.broker_url")
	if envKey := v.GetString("FOREX_API_KEY"); envKey != "" {
		cfg.APIKey = envKey
	}
	if envSecret := v.GetString("FOREX_API_SECRET"); envSecret != "" {
		cfg.APISecret = envSecret
	}
	if cfg.APIKey == "" {
		errs = append(errs, "[API] key must be set")
	}

	// [Settings]
	updateSeconds := v.GetInt("Settings.update_interval")
	if updateSeconds <= 0 {
		errs = append(errs, "[Settings] update_interval must be a positive number of seconds")
	}
	cfg.UpdateInterval = time.Duration(updateSeconds) * time.Second

	checkSeconds := v.GetInt("Settings.check_interval")
	if checkSeconds <= 0 {
		errs = append(errs, "[Settings] check_interval must be a positive number of seconds")
	}
	cfg.CheckInterval = time.Duration(checkSeconds) * time.Second

	cfg.TradeMode = domain.TradeMode(strings.ToLower(v.GetString("Settings.trade_mode")))
	if !cfg.TradeMode.IsValid() {
		errs = append(errs, fmt.Sprintf("[Settings] trade_mode must be %q or %q", domain.ModePaper, domain.ModeLive))
	}
	if cfg.TradeMode == domain.ModeLive && cfg.APISecret == "" {
		errs = append(errs, "[API] secret must be set for live trading")
	}

	cfg.RequestTimeout = time.Duration(v.GetInt("Settings.request_timeout")) * time.Second
	if cfg.RequestTimeout <= 0 {
		errs = append(errs, "[Settings] request_timeout must be positive")
	}

	staleSeconds := v.GetInt("Settings.staleness_tolerance")
	if staleSeconds > 0 {
		cfg.StalenessTolerance = time.Duration(staleSeconds) * time.Second
	} else {
		cfg.StalenessTolerance = 3 * cfg.UpdateInterval
	}

	cfg.Retention = time.Duration(v.GetInt("Settings.retention_hours")) * time.Hour
	if cfg.Retention <= 0 {
		errs = append(errs, "[Settings] retention_hours must be positive")
	}

	cfg.FetchRetry = v.GetBool("Settings.fetch_retry")
	cfg.AllowHedging = v.GetBool("Settings.allow_hedging")

	cfg.MaxTradesPerDay = v.GetInt("Settings.max_trades_per_day")
	if cfg.MaxTradesPerDay <= 0 {
		errs = append(errs, "[Settings] max_trades_per_day must be positive")
	}

	cfg.AvailableFunds = v.GetFloat64("Settings.available_funds")
	if cfg.AvailableFunds <= 0 {
		errs = append(errs, "[Settings] available_funds must be positive")
	}

	cfg.TradeCap = v.GetFloat64("Settings.trade_cap")
	if cfg.TradeCap < 0 {
		errs = append(errs, "[Settings] trade_cap must not be negative")
	}

	cfg.DBPath = v.GetString("Settings.db_path")
	if cfg.DBPath == "" {
		errs = append(errs, "[Settings] db_path must be set")
	}

	// [Strategy]
	cfg.StrategyName = strings.ToLower(v.GetString("Strategy.name"))
	switch cfg.StrategyName {
	case StrategySimple, StrategyAdvanced, StrategyCorrelation:
	default:
		errs = append(errs, fmt.Sprintf("[Strategy] name must be one of simple, advanced, correlation; got %q", cfg.StrategyName))
	}

	pair, err := domain.ParsePair(v.GetString("Strategy.currency"))
	if err != nil {
		errs = append(errs, fmt.Sprintf("[Strategy] currency: %v", err))
	}
	cfg.Pair = pair

	cfg.ThresholdPercent = v.GetFloat64("Strategy.threshold")
	if cfg.ThresholdPercent <= 0 {
		errs = append(errs, "[Strategy] threshold must be a positive percentage")
	}

	cfg.Direction = strings.ToLower(v.GetString("Strategy.direction"))
	if cfg.Direction != "momentum" && cfg.Direction != "reversion" {
		errs = append(errs, fmt.Sprintf("[Strategy] direction must be momentum or reversion; got %q", cfg.Direction))
	}

	cfg.TradeAmount = v.GetFloat64("Strategy.trade_amount")
	if cfg.TradeAmount <= 0 {
		errs = append(errs, "[Strategy] trade_amount must be positive")
	}

	if raw := v.GetString("Strategy.secondary_currencies"); raw != "" {
		secondaries, err := domain.ParsePairList(raw)
		if err != nil {
			errs = append(errs, fmt.Sprintf("[Strategy] secondary_currencies: %v", err))
		}
		cfg.SecondaryPairs = secondaries
	}

	cfg.CorrelationWindow = v.GetInt("Strategy.correlation_window")
	cfg.MinSamples = v.GetInt("Strategy.min_samples")
	cfg.DivergenceThreshold = v.GetFloat64("Strategy.divergence_threshold")
	cfg.StabilityThreshold = v.GetFloat64("Strategy.stability_threshold")
	if cfg.StrategyName == StrategyCorrelation {
		if len(cfg.SecondaryPairs) == 0 {
			errs = append(errs, "[Strategy] secondary_currencies must be set for the correlation strategy")
		}
		if cfg.CorrelationWindow <= 0 {
			errs = append(errs, "[Strategy] correlation_window must be a positive number of days")
		}
		if cfg.MinSamples <= 1 {
			errs = append(errs, "[Strategy] min_samples must be greater than 1")
		}
		if cfg.DivergenceThreshold <= 0 {
			errs = append(errs, "[Strategy] divergence_threshold must be positive")
		}
	}

	cfg.ShortMAPeriod = v.GetInt("Strategy.short_ma_period")
	cfg.LongMAPeriod = v.GetInt("Strategy.long_ma_period")
	cfg.EMAPeriod = v.GetInt("Strategy.ema_period")
	cfg.RSIPeriod = v.GetInt("Strategy.rsi_period")
	cfg.RSIOverbought = v.GetFloat64("Strategy.rsi_overbought")
	cfg.RSIOversold = v.GetFloat64("Strategy.rsi_oversold")
	cfg.CombineRule = strings.ToLower(v.GetString("Strategy.combine"))
	if cfg.StrategyName == StrategyAdvanced {
		if cfg.ShortMAPeriod <= 0 || cfg.LongMAPeriod <= 0 || cfg.EMAPeriod <= 0 || cfg.RSIPeriod <= 0 {
			errs = append(errs, "[Strategy] indicator periods must be positive")
		}
		if cfg.ShortMAPeriod >= cfg.LongMAPeriod {
			errs = append(errs, "[Strategy] short_ma_period must be less than long_ma_period")
		}
		if cfg.RSIOverbought <= cfg.RSIOversold || cfg.RSIOverbought > 100 || cfg.RSIOversold < 0 {
			errs = append(errs, "[Strategy] invalid RSI thresholds (overbought must be > oversold, within 0-100)")
		}
		if cfg.CombineRule != "majority" && cfg.CombineRule != "weighted" {
			errs = append(errs, fmt.Sprintf("[Strategy] combine must be majority or weighted; got %q", cfg.CombineRule))
		}
	}

	// [Logging]
	cfg.LogLevel = v.GetString("Logging.level")
	cfg.LogFile = v.GetString("Logging.file")

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("API.market_data_url", "https://api.exchangerate.host")
	v.SetDefault("Settings.update_interval", 60)
	v.SetDefault("Settings.check_interval", 300)
	v.SetDefault("Settings.trade_mode", string(domain.ModePaper))
	v.SetDefault("Settings.request_timeout", 10)
	v.SetDefault("Settings.retention_hours", 72)
	v.SetDefault("Settings.max_trades_per_day", 10)
	v.SetDefault("Settings.available_funds", 100000)
	v.SetDefault("Settings.db_path", "forexbot.db")
	v.SetDefault("Strategy.name", StrategySimple)
	v.SetDefault("Strategy.currency", "USD/JPY")
	v.SetDefault("Strategy.threshold", 0.5)
	v.SetDefault("Strategy.direction", "momentum")
	v.SetDefault("Strategy.trade_amount", 1000)
	v.SetDefault("Strategy.stability_threshold", 0.7)
	v.SetDefault("Strategy.min_samples", 10)
	v.SetDefault("Strategy.short_ma_period", 20)
	v.SetDefault("Strategy.long_ma_period", 50)
	v.SetDefault("Strategy.ema_period", 20)
	v.SetDefault("Strategy.rsi_period", 14)
	v.SetDefault("Strategy.rsi_overbought", 70.0)
	v.SetDefault("Strategy.rsi_oversold", 30.0)
	v.SetDefault("Strategy.combine", "majority")
	v.SetDefault("Logging.level", "info")

	// Environment overrides for secrets.
	v.AutomaticEnv()
	_ = v.BindEnv("FOREX_API_KEY")
	_ = v.BindEnv("FOREX_API_SECRET")
}
