package main

import (
	"context"
	"log" // Use standard log only for initial fatal errors before logger is set up

	"ytcbot/config"
	"ytcbot/internal/adapters/binanceclient"
	"ytcbot/internal/adapters/knowledge"
	"ytcbot/internal/adapters/logger"
	"ytcbot/internal/adapters/paper"
	"ytcbot/internal/adapters/sqlite"
	"ytcbot/internal/app"
	"ytcbot/internal/ports"
	"ytcbot/internal/position"
	"ytcbot/internal/risk"
	"ytcbot/internal/strategy"
	"ytcbot/internal/strategy/setups"
)

// paperStartingBalance seeds the paper account in dry runs.
const paperStartingBalance = 10_000

func main() {
	ctx := context.Background()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}
	analysisCfg, err := config.LoadAnalysisConfig(cfg.AnalysisConfigPath)
	if err != nil {
		log.Fatalf("FATAL: Failed to load analysis configuration: %v", err)
	}

	// 2. Initialize Logger
	appLogger, err := logger.New(logger.Config{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize logger: %v", err)
	}
	defer appLogger.Close()
	appLogger.Info(ctx, "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	// 3. Initialize Repository (Database Adapter)
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize database repository")
		log.Fatalf("FATAL: Failed to initialize database repository: %v", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(ctx, err, "Error closing database repository")
		}
	}()

	// 4. Initialize Exchange Client (Binance Adapter)
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
		appLogger.Error(ctx, err, "FATAL: Failed to initialize Binance client")
		log.Fatalf("FATAL: Failed to initialize Binance client: %v", err)
	}
	if err := binanceClient.Ping(ctx); err != nil {
		appLogger.Error(ctx, err, "FATAL: Binance is unreachable")
		log.Fatalf("FATAL: Binance is unreachable: %v", err)
	}

	// Orders go to the paper venue in dry runs; quotes always come from Binance.
	var execution ports.ExecutionClient = binanceClient
	var account ports.AccountReader = binanceClient
	if cfg.DryRun {
		paperExchange, err := paper.New(cfg.BalanceAsset, paperStartingBalance, appLogger)
		if err != nil {
			log.Fatalf("FATAL: Failed to initialize paper exchange: %v", err)
		}
		paperExchange.WithPriceSource(binanceClient)
		execution, account = paperExchange, paperExchange
		appLogger.Warn(ctx, "Dry run: orders are simulated", map[string]interface{}{"balance": paperStartingBalance})
	}

	// 5. Initialize Analyzer
	var opts []setups.Option
	lookup, closeLookup, err := buildKnowledge(cfg, appLogger)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize knowledge source")
		log.Fatalf("FATAL: Failed to initialize knowledge source: %v", err)
	}
	defer closeLookup()
	if lookup != nil {
		opts = append(opts, setups.WithKnowledge(lookup))
	}
	analyzer, err := strategy.New(analysisCfg, appLogger, opts...)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize analyzer")
		log.Fatalf("FATAL: Failed to initialize analyzer: %v", err)
	}

	// 6. Initialize Position Lifecycle and Risk
	lifecycleCfg := position.DefaultConfig()
	lifecycleCfg.MaxPositionPct = cfg.MaxPositionPercent
	lifecycle, err := position.New(lifecycleCfg, execution, appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize position lifecycle: %v", err)
	}
	riskManager, err := risk.NewRiskManager(risk.RiskConfig{
		RiskPercent:         cfg.RiskPercent,
		MaxDrawdownPercent:  cfg.MaxDrawdownPercent,
		MaxDailyTrades:      cfg.MaxDailyTrades,
		MinAvailableBalance: cfg.MinAvailableBalance,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize risk manager: %v", err)
	}

	// 7. Initialize Application Service
	pipeline, err := app.NewPipeline(app.PipelineDeps{
		Analyzer:  analyzer,
		Lifecycle: lifecycle,
		Execution: execution,
		Risk:      riskManager,
		Account:   account,
		Asset:     cfg.BalanceAsset,
		Positions: repo,
		Results:   repo,
	}, appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize pipeline: %v", err)
	}
	tradingService, err := app.NewTradingService(cfg, appLogger, binanceClient, pipeline, repo, repo, riskManager)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize trading service")
		log.Fatalf("FATAL: Failed to initialize trading service: %v", err)
	}

	// 8. Start the Service
	if err := tradingService.Start(ctx); err != nil {
		appLogger.Error(ctx, err, "Trading service exited with error")
		log.Fatalf("FATAL: Trading service exited with error: %v", err)
	}

	appLogger.Info(ctx, "Application finished gracefully.")
}

// buildKnowledge returns the configured pattern lookup (nil for none) and its cleanup.
func buildKnowledge(cfg *config.Config, appLogger ports.Logger) (ports.KnowledgeLookup, func(), error) {
	noop := func() {}
	switch cfg.KnowledgeSource {
	case config.KnowledgeFile:
		store, err := knowledge.NewFileStore(cfg.KnowledgeFile, appLogger)
		if err != nil {
			return nil, noop, err
		}
		return store, noop, nil
	case config.KnowledgeRedis:
		store, err := knowledge.NewRedisStore(knowledge.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, appLogger)
		if err != nil {
			return nil, noop, err
		}
		return store, func() { _ = store.Close() }, nil
	default:
		return nil, noop, nil
	}
}
