package main

import (
	"context"
	"flag"
	"log" // standard log only for fatal errors before the logger is up
	"os/signal"
	"syscall"
	"time"

	"forexTradeBot/config"
	"forexTradeBot/internal/adapters/execution"
	"forexTradeBot/internal/adapters/logger"
	"forexTradeBot/internal/adapters/ratesapi"
	"forexTradeBot/internal/adapters/sqlite"
	"forexTradeBot/internal/app"
	"forexTradeBot/internal/correlation"
	"forexTradeBot/internal/domain"
	"forexTradeBot/internal/ledger"
	"forexTradeBot/internal/ports"
	"forexTradeBot/internal/pricestore"
	"forexTradeBot/internal/risk"
	"forexTradeBot/internal/strategy"
)

func main() {
	configPath := flag.String("config", "config.ini", "path to the INI configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	appLogger, err := logger.New(logger.Config{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize logger: %v", err)
	}
	defer func() { _ = appLogger.Sync() }()
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{"level": cfg.LogLevel})

	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize database repository")
		log.Fatalf("FATAL: Failed to initialize database repository: %v", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(context.Background(), err, "Error closing database repository")
		}
	}()
	appLogger.Info(context.Background(), "Database repository initialized", map[string]interface{}{"path": cfg.DBPath})

	manager, err := risk.NewManager(risk.Config{
		TradeCap:        cfg.TradeCap,
		AvailableFunds:  cfg.AvailableFunds,
		MaxTradesPerDay: cfg.MaxTradesPerDay,
		Logger:          appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize risk manager")
		log.Fatalf("FATAL: Failed to initialize risk manager: %v", err)
	}

	book, err := ledger.New(ledger.Config{
		Positions:    repo,
		Orders:       repo,
		Risk:         manager,
		Logger:       appLogger,
		AllowHedging: cfg.AllowHedging,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize ledger")
		log.Fatalf("FATAL: Failed to initialize ledger: %v", err)
	}

	store := pricestore.New(pricestore.Config{Retention: cfg.Retention})

	strat, err := strategy.New(cfg.StrategyName, strategy.FromConfig(cfg), appLogger)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize trading strategy")
		log.Fatalf("FATAL: Failed to initialize trading strategy: %v", err)
	}
	appLogger.Info(context.Background(), "Trading strategy initialized", map[string]interface{}{"strategy": strat.Name()})

	// The correlation engine only runs when the correlation strategy needs it.
	var engine *correlation.Engine
	if cfg.StrategyName == config.StrategyCorrelation {
		engine, err = correlation.New(correlation.Config{
			Window:     time.Duration(cfg.CorrelationWindow) * 24 * time.Hour,
			MinSamples: cfg.MinSamples,
		}, appLogger)
		if err != nil {
			appLogger.Error(context.Background(), err, "FATAL: Failed to initialize correlation engine")
			log.Fatalf("FATAL: Failed to initialize correlation engine: %v", err)
		}
		for _, secondary := range cfg.SecondaryPairs {
			engine.Track(cfg.Pair, secondary)
		}
	}

	marketData, err := ratesapi.New(ratesapi.Config{
		BaseURL: cfg.MarketDataURL,
		APIKey:  cfg.APIKey,
		Timeout: cfg.RequestTimeout,
		Logger:  appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize market data gateway")
		log.Fatalf("FATAL: Failed to initialize market data gateway: %v", err)
	}

	var executionGateway ports.ExecutionGateway
	switch cfg.TradeMode {
	case domain.ModeLive:
		executionGateway, err = execution.NewBroker(execution.BrokerConfig{
			BaseURL:   cfg.BrokerURL,
			APIKey:    cfg.APIKey,
			APISecret: cfg.APISecret,
			Timeout:   cfg.RequestTimeout,
			Logger:    appLogger,
		})
	default:
		executionGateway, err = execution.NewPaper(execution.PaperConfig{
			Quote:  store.Latest,
			Logger: appLogger,
		})
	}
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize execution gateway")
		log.Fatalf("FATAL: Failed to initialize execution gateway: %v", err)
	}
	appLogger.Info(context.Background(), "Execution gateway initialized", map[string]interface{}{"mode": string(cfg.TradeMode)})

	service, err := app.NewTradingService(app.Config{
		Logger:             appLogger,
		MarketData:         marketData,
		Execution:          executionGateway,
		Strategy:           strat,
		Store:              store,
		Ledger:             book,
		Engine:             engine,
		Pair:               cfg.Pair,
		SecondaryPairs:     cfg.SecondaryPairs,
		Mode:               cfg.TradeMode,
		TradeAmount:        cfg.TradeAmount,
		UpdateInterval:     cfg.UpdateInterval,
		CheckInterval:      cfg.CheckInterval,
		RequestTimeout:     cfg.RequestTimeout,
		StalenessTolerance: cfg.StalenessTolerance,
		FetchRetry:         cfg.FetchRetry,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize trading service")
		log.Fatalf("FATAL: Failed to initialize trading service: %v", err)
	}
	appLogger.Info(context.Background(), "Trading service initialized")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := service.Start(ctx); err != nil {
		appLogger.Error(context.Background(), err, "Trading service exited with error")
		log.Fatalf("FATAL: Trading service exited with error: %v", err)
	}

	appLogger.Info(context.Background(), "Application finished gracefully.")
}
