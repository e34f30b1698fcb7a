package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"ytcbot/config"
	"ytcbot/internal/adapters/binanceclient"
	"ytcbot/internal/adapters/logger"
	"ytcbot/internal/utils"
)

var (
	symbol   = flag.String("symbol", "", "symbol to fetch (defaults to SYMBOL)")
	interval = flag.String("interval", "5m", "bar interval")
	days     = flag.Int("days", 30, "days of history to fetch")
	outDir   = flag.String("out", "data", "output directory")
)

func main() {
	flag.Parse()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}
	if *symbol == "" {
		*symbol = cfg.Symbol
	}

	// 2. Initialize Logger
	appLogger, err := logger.New(logger.Config{Level: cfg.LogLevel})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize logger: %v", err)
	}

	// 3. Initialize Exchange Client (Binance Adapter)
	binanceClient, err := binanceclient.New(binanceclient.Config{
		APIKey:               cfg.APIKey,
		SecretKey:            cfg.SecretKey,
		UseTestnet:           cfg.IsTestnet,
		Logger:               appLogger,
		ReconnectDelay:       cfg.ReconnectDelay,
		MaxReconnectAttempts: cfg.MaxReconnectAttempts,
		RequestsPerSecond:    cfg.RequestsPerSecond,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize Binance client")
		log.Fatalf("FATAL: Failed to initialize Binance client: %v", err)
	}

	end := time.Now()
	start := end.AddDate(0, 0, -*days)

	fmt.Printf("Fetching bars for %s %s from %s to %s...\n", *symbol, *interval, start.Format(time.RFC3339), end.Format(time.RFC3339))
	bars, err := binanceClient.GetBarsRange(context.Background(), *symbol, *interval, start, end)
	if err != nil {
		appLogger.Error(context.Background(), err, "Error fetching bars")
		log.Fatalf("Error fetching bars: %v", err)
	}
	appLogger.Info(context.Background(), "Fetched bars", map[string]interface{}{"count": len(bars)})

	filename := fmt.Sprintf("%s/%s_%s_%s_to_%s.csv", *outDir, *symbol, *interval, start.Format("20060102"), end.Format("20060102"))
	if err := utils.WriteBarsToCSV(bars, filename); err != nil {
		appLogger.Error(context.Background(), err, "Error writing CSV")
		log.Fatalf("Error writing CSV: %v", err)
	}
	appLogger.Info(context.Background(), "Saved to", map[string]interface{}{"filename": filename})
}
