// Command analyze runs one dry-run cycle over bars stored in CSV files and
// prints the analysis, the event log and any position the cycle would open.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"text/tabwriter"

	"ytcbot/config"
	"ytcbot/internal/adapters/knowledge"
	"ytcbot/internal/adapters/logger"
	"ytcbot/internal/adapters/paper"
	"ytcbot/internal/app"
	"ytcbot/internal/position"
	"ytcbot/internal/risk"
	"ytcbot/internal/strategy"
	"ytcbot/internal/strategy/setups"
	"ytcbot/internal/utils"
)

var (
	structurePath = flag.String("structure", "", "CSV of structural-timeframe bars (required)")
	trendPath     = flag.String("trend", "", "CSV of trading-timeframe bars (required)")
	entryPath     = flag.String("entry", "", "CSV of entry-timeframe bars (defaults to -trend)")
	symbol        = flag.String("symbol", "BTCUSDT", "symbol label")
	balance       = flag.Float64("balance", 10_000, "paper account balance")
	riskPct       = flag.Float64("risk", 1.0, "percent of balance risked per trade")
	analysisPath  = flag.String("config", "", "analysis tuning YAML")
	patternsPath  = flag.String("patterns", "", "knowledge seed YAML for corroboration")
	logLevel      = flag.String("log", "WARN", "log level")
)

func main() {
	flag.Parse()
	if *structurePath == "" || *trendPath == "" {
		flag.Usage()
		os.Exit(2)
	}
	ctx := context.Background()

	appLogger, err := logger.New(logger.Config{Level: logger.ParseLevel(*logLevel)})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize logger: %v", err)
	}

	in := app.CycleInput{Symbol: *symbol}
	if in.StructureBars, err = utils.ReadBarsFromCSV(*structurePath); err != nil {
		log.Fatalf("Error reading structure bars: %v", err)
	}
	if in.TrendBars, err = utils.ReadBarsFromCSV(*trendPath); err != nil {
		log.Fatalf("Error reading trend bars: %v", err)
	}
	if *entryPath != "" {
		if in.EntryBars, err = utils.ReadBarsFromCSV(*entryPath); err != nil {
			log.Fatalf("Error reading entry bars: %v", err)
		}
	}
	last := in.TrendBars
	if len(in.EntryBars) > 0 {
		last = in.EntryBars
	}
	if len(last) == 0 {
		log.Fatalf("no bars to analyze")
	}
	price := last[len(last)-1].Close

	analysisCfg, err := config.LoadAnalysisConfig(*analysisPath)
	if err != nil {
		log.Fatalf("FATAL: Failed to load analysis configuration: %v", err)
	}
	var opts []setups.Option
	if *patternsPath != "" {
		store, err := knowledge.NewFileStore(*patternsPath, appLogger)
		if err != nil {
			log.Fatalf("FATAL: Failed to load patterns: %v", err)
		}
		opts = append(opts, setups.WithKnowledge(store))
	}
	analyzer, err := strategy.New(analysisCfg, appLogger, opts...)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize analyzer: %v", err)
	}

	exchange, err := paper.New("USDT", *balance, appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize paper exchange: %v", err)
	}
	exchange.SetPrice(*symbol, price)
	lifecycle, err := position.New(position.DefaultConfig(), exchange, appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize position lifecycle: %v", err)
	}
	riskManager, err := risk.NewRiskManager(risk.RiskConfig{RiskPercent: *riskPct, MaxDrawdownPercent: 100, MaxDailyTrades: 1})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize risk manager: %v", err)
	}
	pipeline, err := app.NewPipeline(app.PipelineDeps{
		Analyzer:  analyzer,
		Lifecycle: lifecycle,
		Execution: exchange,
		Risk:      riskManager,
		Account:   exchange,
		Asset:     "USDT",
	}, appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize pipeline: %v", err)
	}

	res := pipeline.RunCycle(ctx, in)
	printResult(res)
	if res.Failed() {
		os.Exit(1)
	}
}

func printResult(res *app.CycleResult) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STAGE\tMESSAGE\t")
	for _, e := range res.Events {
		fmt.Fprintf(w, "%s\t%s\t\n", e.Stage, e.Message)
	}
	w.Flush()

	if res.Analysis != nil && len(res.Analysis.Scan.Setups) > 0 {
		fmt.Println()
		w = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintln(w, "Type\tDir\tEntry\tStop\tTarget\tRR\tProb\tQuality\tReady\t")
		for _, s := range res.Analysis.Scan.Setups {
			fmt.Fprintf(w, "%s\t%s\t%.4f\t%.4f\t%.4f\t%.2f\t%.0f\t%s\t%t\t\n",
				s.Type, s.Direction, s.EntryZone.Ideal, s.StopLoss, s.FirstTarget(),
				s.RiskRewardRatio, s.ProbabilityScore, s.Quality, s.ReadyToTrade)
		}
		w.Flush()
	}

	if res.Opened != nil {
		p := res.Opened
		fmt.Printf("\nWould open %s %s: entry %.4f stop %.4f target %.4f size %.6f (value %.2f)\n",
			p.TradeID, p.Direction, p.EntryPrice, p.StopLoss, p.TakeProfit, p.Size, p.Value)
	}
	if res.Failed() {
		fmt.Printf("\nCycle failed: %v\n", res.Failure)
	}
}
