// Command review prints a session review of the trade journal.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"text/tabwriter"

	"ytcbot/config"
	"ytcbot/internal/adapters/logger"
	"ytcbot/internal/adapters/sqlite"
	"ytcbot/internal/domain"
	"ytcbot/internal/strategy/analytics"
)

var (
	symbol  = flag.String("symbol", "", "symbol to review (defaults to SYMBOL)")
	limit   = flag.Int("limit", 500, "most recent trades to include")
	initial = flag.Float64("balance", 10_000, "starting balance for return and drawdown figures")
)

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}
	if *symbol == "" {
		*symbol = cfg.Symbol
	}
	appLogger, err := logger.New(logger.Config{Level: logger.LevelWarn})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize logger: %v", err)
	}

	repo, err := sqlite.NewRepository(sqlite.Config{DBPath: cfg.DBPath, Logger: appLogger})
	if err != nil {
		log.Fatalf("FATAL: Failed to open trade journal: %v", err)
	}
	defer repo.Close()

	results, err := repo.FindResultsBySymbol(context.Background(), *symbol, *limit)
	if err != nil {
		log.Fatalf("Error loading trades: %v", err)
	}
	if len(results) == 0 {
		fmt.Printf("No closed trades for %s.\n", *symbol)
		return
	}

	m := analytics.AnalyzePerformance(results, *initial)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight|tabwriter.Debug)
	fmt.Fprintln(w, "Trades\tWinRate\tAvgWin\tAvgLoss\tPF\tExpectancy\tTotalPnL\tMaxDD\tROI\t")
	fmt.Fprintf(w, "%d\t%.1f%%\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%.1f%%\t%.1f%%\t\n",
		m.TotalTrades, m.WinRate*100, m.AverageWin, m.AverageLoss, m.ProfitFactor,
		m.Expectancy, m.TotalProfit, m.MaxDrawdown*100, m.ReturnOnInvestment*100)
	w.Flush()

	fmt.Println()
	w = tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight|tabwriter.Debug)
	fmt.Fprintln(w, "Setup\tTrades\tWinRate\tPnL\tAvgPnL%\t")
	types := make([]domain.SetupType, 0, len(m.BySetup))
	for t := range m.BySetup {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	for _, t := range types {
		s := m.BySetup[t]
		fmt.Fprintf(w, "%s\t%d\t%.1f%%\t%.2f\t%.2f\t\n", t, s.Trades, s.WinRate*100, s.TotalProfit, s.AvgPnLPct)
	}
	w.Flush()

	fmt.Println()
	for _, line := range m.Observations() {
		fmt.Println("- " + line)
	}
}
