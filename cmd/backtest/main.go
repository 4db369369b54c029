package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"forexTradeBot/config"
	"forexTradeBot/internal/adapters/logger"
	"forexTradeBot/internal/backtest"
	"forexTradeBot/internal/strategy"
	"forexTradeBot/internal/utils"
)

func main() {
	configPath := flag.String("config", "config.ini", "path to the INI configuration file")
	dataPath := flag.String("data", "", "CSV file of recorded price points (timestamp,pair,bid,ask)")
	balance := flag.Float64("balance", 10000, "starting balance in quote currency units")
	flag.Parse()

	if *dataPath == "" {
		log.Fatal("FATAL: -data is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	appLogger, err := logger.New(logger.Config{Level: cfg.LogLevel})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize logger: %v", err)
	}
	defer func() { _ = appLogger.Sync() }()

	points, err := utils.ReadPricePointsFromCSV(*dataPath)
	if err != nil {
		appLogger.Error(context.Background(), err, "Failed to load price points")
		log.Fatalf("FATAL: Failed to load price points: %v", err)
	}
	appLogger.Info(context.Background(), "Loaded price points", map[string]interface{}{
		"file":  *dataPath,
		"count": len(points),
	})

	strat, err := strategy.New(cfg.StrategyName, strategy.FromConfig(cfg), appLogger)
	if err != nil {
		appLogger.Error(context.Background(), err, "Failed to initialize strategy")
		log.Fatalf("FATAL: Failed to initialize strategy: %v", err)
	}

	runner, err := backtest.New(backtest.Config{
		Strategy:       strat,
		Pair:           cfg.Pair,
		TradeAmount:    cfg.TradeAmount,
		InitialBalance: *balance,
		Logger:         appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "Failed to initialize backtest")
		log.Fatalf("FATAL: Failed to initialize backtest: %v", err)
	}

	report, err := runner.Run(context.Background(), points)
	if err != nil {
		appLogger.Error(context.Background(), err, "Backtest failed")
		log.Fatalf("FATAL: Backtest failed: %v", err)
	}

	fmt.Println("--- Backtest Report ---")
	fmt.Printf("Strategy:       %s\n", strat.Name())
	fmt.Printf("Pair:           %s\n", cfg.Pair)
	fmt.Printf("Points:         %d\n", len(points))
	fmt.Printf("Trades:         %d (W: %d / L: %d)\n", len(report.Trades), report.Wins, report.Losses)
	fmt.Printf("Win Rate:       %.2f%%\n", report.WinRate()*100)
	fmt.Printf("Total PnL:      %.2f\n", report.TotalPNL)
	fmt.Printf("Max Drawdown:   %.2f\n", report.MaxDrawdown)
	fmt.Printf("Final Balance:  %.2f\n", report.FinalBalance)
	if report.OpenAtEnd {
		fmt.Println("Note: a position was still open when the series ended; it is excluded from the figures above.")
	}
}
