package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ytcbot/internal/domain"
	"ytcbot/internal/ports"
	"ytcbot/internal/position"
	"ytcbot/internal/risk"
	"ytcbot/internal/strategy/indicators"
)

// neutralRSI is used for management when the entry bars cannot support RSI(14).
const neutralRSI = 50.0

// Event is one append-only entry of a cycle's log.
type Event struct {
	Stage   domain.CycleStage
	Time    time.Time
	Message string
	Fields  map[string]interface{}
}

// CycleInput is the snapshot one cycle evaluates. Position is the open
// position carried over from the previous cycle, if any.
type CycleInput struct {
	Symbol        string
	StructureBars []*domain.Bar
	TrendBars     []*domain.Bar
	EntryBars     []*domain.Bar
	CurrentPrice  float64               // fetched from the execution client when zero
	HTFDirection  domain.TrendDirection // derived from the structural stage when empty
	Balance       float64               // fetched from the account reader when zero
	Position      *domain.Position
}

// CycleResult is everything a cycle produced. Position is the open position
// after the cycle (nil once closed); Opened and Trade are set on transitions.
type CycleResult struct {
	Symbol       string
	CurrentPrice float64
	Analysis     *domain.Analysis
	Position     *domain.Position
	Opened       *domain.Position
	Management   *domain.ManagementUpdate
	Trade        *domain.TradeResult
	Events       []Event
	Failure      *domain.CycleFailure
}

// Failed reports whether the cycle was aborted.
func (r *CycleResult) Failed() bool {
	return r.Failure != nil
}

// PipelineDeps are the collaborators of a pipeline. Account, Positions and
// Results are optional; without them balances must be supplied in the input
// and nothing is persisted.
type PipelineDeps struct {
	Analyzer  ports.Analyzer
	Lifecycle *position.Lifecycle
	Execution ports.ExecutionClient
	Risk      *risk.RiskManager
	Account   ports.AccountReader
	Asset     string
	Positions ports.PositionRepository
	Results   ports.TradeResultRepository
}

// Pipeline runs one evaluation cycle at a time over independently owned inputs.
type Pipeline struct {
	deps   PipelineDeps
	logger ports.Logger
	rsi    *indicators.RSI
	now    func() time.Time
}

// NewPipeline validates the required collaborators.
func NewPipeline(deps PipelineDeps, logger ports.Logger) (*Pipeline, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for pipeline")
	}
	if deps.Analyzer == nil || deps.Lifecycle == nil || deps.Execution == nil || deps.Risk == nil {
		return nil, fmt.Errorf("missing required dependencies for pipeline")
	}
	return &Pipeline{
		deps:   deps,
		logger: logger,
		rsi:    indicators.NewRSI(indicators.DefaultRSIConfig()),
		now:    time.Now,
	}, nil
}

// cycle carries the mutable state of a single RunCycle call.
type cycle struct {
	p   *Pipeline
	in  CycleInput
	res *CycleResult
}

func (c *cycle) record(stage domain.CycleStage, msg string, fields map[string]interface{}) {
	c.res.Events = append(c.res.Events, Event{Stage: stage, Time: c.p.now(), Message: msg, Fields: fields})
}

func (c *cycle) fail(ctx context.Context, stage domain.CycleStage, reason string, err error) *CycleResult {
	c.res.Failure = &domain.CycleFailure{Stage: stage, Reason: reason, Err: err}
	c.record(stage, "cycle aborted: "+reason, nil)
	c.p.logger.Error(ctx, err, "Cycle aborted", map[string]interface{}{
		"symbol": c.in.Symbol,
		"stage":  stage,
		"reason": reason,
	})
	return c.res
}

// RunCycle runs risk, analysis, then entry or management, then exit. Analytical
// gaps yield incomplete results; I/O failures and broken invariants abort the
// cycle with a CycleFailure. Nothing is retried.
func (p *Pipeline) RunCycle(ctx context.Context, in CycleInput) *CycleResult {
	c := &cycle{p: p, in: in, res: &CycleResult{Symbol: in.Symbol, Position: in.Position}}

	pos := in.Position
	if pos != nil && !pos.IsOpen() {
		pos = nil
		c.res.Position = nil
	}

	// Risk
	balance, entryAllowed, failed := c.checkRisk(ctx, pos)
	if failed {
		return c.res
	}

	// Analysis
	price := in.CurrentPrice
	if price == 0 {
		fetched, err := p.deps.Execution.GetPrice(ctx, in.Symbol)
		if err != nil {
			return c.fail(ctx, domain.CycleMarketStructure, "price fetch failed", err)
		}
		price = fetched
	}
	if price <= 0 {
		return c.fail(ctx, domain.CycleMarketStructure, "non-positive price",
			fmt.Errorf("%w: got %.8f", ports.ErrInvalidPrice, price))
	}
	c.res.CurrentPrice = price

	analysis, err := p.deps.Analyzer.Analyze(ctx, ports.AnalysisInput{
		Symbol:        in.Symbol,
		StructureBars: in.StructureBars,
		TrendBars:     in.TrendBars,
		EntryBars:     in.EntryBars,
		CurrentPrice:  price,
		HTFDirection:  in.HTFDirection,
	})
	if err != nil {
		return c.fail(ctx, domain.CycleMarketStructure, "analysis failed", err)
	}
	c.res.Analysis = analysis
	c.recordAnalysis(analysis)

	if pos != nil {
		return c.manage(ctx, pos, price, balance)
	}
	return c.enter(ctx, price, balance, entryAllowed)
}

// checkRisk resolves the balance and whether account limits allow an entry.
// Limit breaches block entries but never abort management of an open position.
func (c *cycle) checkRisk(ctx context.Context, pos *domain.Position) (balance float64, entryAllowed, failed bool) {
	p := c.p
	balance = c.in.Balance
	if balance == 0 && p.deps.Account != nil {
		b, err := p.deps.Account.GetAccountBalance(ctx, p.deps.Asset)
		if err != nil {
			c.fail(ctx, domain.CycleRisk, "balance fetch failed", err)
			return 0, false, true
		}
		balance = b
	}

	if pos != nil {
		c.record(domain.CycleRisk, "position open; entry checks skipped", map[string]interface{}{"tradeID": pos.TradeID})
		return balance, false, false
	}
	if balance <= 0 {
		c.fail(ctx, domain.CycleRisk, "no balance available for sizing",
			fmt.Errorf("%w: balance %.2f", ports.ErrInvalidRequest, balance))
		return 0, false, true
	}

	if err := p.deps.Risk.CheckLimits(ctx, balance); err != nil {
		if !errors.Is(err, ports.ErrRiskLimitExceeded) {
			c.fail(ctx, domain.CycleRisk, "risk check failed", err)
			return 0, false, true
		}
		c.record(domain.CycleRisk, "entries blocked: "+err.Error(), map[string]interface{}{"balance": balance})
		p.logger.Warn(ctx, "Risk limits block new entries", map[string]interface{}{"symbol": c.in.Symbol, "reason": err.Error()})
		return balance, false, false
	}
	c.record(domain.CycleRisk, "limits ok", map[string]interface{}{
		"balance": balance,
		"budget":  p.deps.Risk.Budget(balance),
	})
	return balance, true, false
}

func (c *cycle) recordAnalysis(a *domain.Analysis) {
	ms := a.Structure
	c.record(domain.CycleMarketStructure, structureMessage(ms), map[string]interface{}{
		"stage":           ms.Stage,
		"location":        ms.Location,
		"supportZones":    len(ms.SupportZones),
		"resistanceZones": len(ms.ResistanceZones),
	})
	c.record(domain.CycleTrend, fmt.Sprintf("%s trend, %s", a.Trend.Direction, a.Trend.Strength), map[string]interface{}{
		"confidence": a.Trend.Confidence,
		"htfAligned": a.Trend.HTFAligned,
		"breaks":     a.Trend.StructureBreaks,
	})
	c.record(domain.CycleStrength, fmt.Sprintf("combined %.1f (%s)", a.Strength.Combined, a.Strength.CombinedRating), map[string]interface{}{
		"bias":     a.Strength.Bias,
		"weakness": a.Strength.Weakness.Any(),
	})
	c.record(domain.CycleSetupScan, a.Scan.Summary.MarketVerdict, map[string]interface{}{
		"setups":     a.Scan.Summary.Total,
		"tradeReady": a.Scan.Summary.TradeReady,
		"topSetup":   a.Scan.Summary.TopSetupID,
	})
}

func structureMessage(ms *domain.MarketStructure) string {
	if !ms.Complete {
		return "incomplete: " + ms.Reason
	}
	return fmt.Sprintf("%s stage at %s", ms.Stage, ms.Location)
}

func (c *cycle) enter(ctx context.Context, price, balance float64, entryAllowed bool) *CycleResult {
	p := c.p
	setup := c.res.Analysis.Scan.BestReady()
	if setup == nil {
		c.record(domain.CycleEntry, "no trade-ready setup", nil)
		return c.res
	}
	if !entryAllowed {
		c.record(domain.CycleEntry, "setup skipped: entries blocked", map[string]interface{}{"setupID": setup.ID})
		return c.res
	}

	pos, err := p.deps.Lifecycle.Open(ctx, c.in.Symbol, setup, balance, p.deps.Risk.Budget(balance), price)
	if err != nil {
		return c.fail(ctx, domain.CycleEntry, fmt.Sprintf("open %s %s failed", setup.Type, setup.Direction), err)
	}

	if p.deps.Positions != nil {
		if _, err := p.deps.Positions.Create(ctx, pos); err != nil {
			if abortErr := p.deps.Lifecycle.Abort(ctx, pos); abortErr != nil {
				err = errors.Join(err, abortErr)
			}
			return c.fail(ctx, domain.CycleEntry, "position persistence failed; entry aborted", err)
		}
	}

	c.res.Opened = pos
	c.res.Position = pos
	c.record(domain.CycleEntry, fmt.Sprintf("opened %s %s", pos.Direction, pos.TradeID), map[string]interface{}{
		"setupID": setup.ID,
		"entry":   pos.EntryPrice,
		"stop":    pos.StopLoss,
		"target":  pos.TakeProfit,
		"size":    pos.Size,
	})
	return c.res
}

func (c *cycle) manage(ctx context.Context, pos *domain.Position, price, balance float64) *CycleResult {
	p := c.p
	rsi := c.entryRSI(ctx)
	a := c.res.Analysis

	upd, err := p.deps.Lifecycle.Manage(ctx, pos, price, a.Strength.Bias, rsi, a.Strength.Weakness.MomentumDivergence)
	if err != nil {
		return c.fail(ctx, domain.CycleManagement, "management failed", err)
	}
	c.res.Management = upd
	c.record(domain.CycleManagement, upd.Message, map[string]interface{}{
		"status":    upd.Status,
		"stopLoss":  upd.StopLoss,
		"stopMoved": upd.StopMoved,
		"rsi":       rsi,
	})

	// The exit persists the final stop along with the closed status.
	if upd.ShouldExit() {
		return c.exit(ctx, pos, price, balance, upd.ExitSignal)
	}
	if upd.StopMoved && p.deps.Positions != nil {
		if err := p.deps.Positions.Update(ctx, pos); err != nil {
			return c.fail(ctx, domain.CycleManagement, "stop update persistence failed", err)
		}
	}
	return c.res
}

// entryRSI computes RSI(14) on the entry bars, falling back to the trend bars.
func (c *cycle) entryRSI(ctx context.Context) float64 {
	bars := c.in.EntryBars
	if len(bars) == 0 {
		bars = c.in.TrendBars
	}
	value, err := c.p.rsi.Calculate(ctx, bars)
	if err != nil {
		c.record(domain.CycleManagement, "RSI unavailable, using neutral", map[string]interface{}{"error": err.Error()})
		return neutralRSI
	}
	return value
}

func (c *cycle) exit(ctx context.Context, pos *domain.Position, price, balance float64, exitSignal bool) *CycleResult {
	p := c.p
	result, err := p.deps.Lifecycle.Close(ctx, pos, price, "", exitSignal)
	if err != nil {
		return c.fail(ctx, domain.CycleExit, "close failed; position remains open", err)
	}
	c.res.Trade = result
	c.res.Position = nil
	c.record(domain.CycleExit, string(result.ExitReason), map[string]interface{}{
		"tradeID": result.TradeID,
		"exit":    result.ExitPrice,
		"pnl":     result.GrossPnL,
		"pnlPct":  result.PnLPercent,
	})

	var balanceAfter float64
	if balance > 0 {
		balanceAfter = balance + result.GrossPnL
	}
	if p.deps.Account != nil {
		if b, err := p.deps.Account.GetAccountBalance(ctx, p.deps.Asset); err == nil {
			balanceAfter = b
		}
	}
	p.deps.Risk.RecordResult(ctx, result, balanceAfter)

	// The exchange is already flat, so both writes are attempted.
	var persistErrs []error
	if p.deps.Results != nil {
		if _, err := p.deps.Results.SaveResult(ctx, result); err != nil {
			persistErrs = append(persistErrs, fmt.Errorf("save trade result: %w", err))
		}
	}
	if p.deps.Positions != nil {
		if err := p.deps.Positions.Update(ctx, pos); err != nil {
			persistErrs = append(persistErrs, fmt.Errorf("mark position closed: %w", err))
		}
	}
	if len(persistErrs) > 0 {
		return c.fail(ctx, domain.CycleExit, "closed trade persistence failed", errors.Join(persistErrs...))
	}
	return c.res
}
