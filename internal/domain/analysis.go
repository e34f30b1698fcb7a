package domain

// Analysis bundles the outputs of one pass through the analytical stages.
type Analysis struct {
	Symbol    string
	Structure *MarketStructure
	Trend     *TrendState
	Strength  *StrengthScore
	Scan      *ScanResult
}

// CycleStage names a step of one evaluation cycle.
type CycleStage string

const (
	CycleRisk            CycleStage = "risk"
	CycleMarketStructure CycleStage = "market_structure"
	CycleTrend           CycleStage = "trend"
	CycleStrength        CycleStage = "strength"
	CycleSetupScan       CycleStage = "setup_scan"
	CycleEntry           CycleStage = "entry"
	CycleManagement      CycleStage = "management"
	CycleExit            CycleStage = "exit"
)

// CycleFailure reports where and why a cycle was aborted.
type CycleFailure struct {
	Stage  CycleStage
	Reason string
	Err    error
}

func (f *CycleFailure) Error() string {
	if f.Err == nil {
		return string(f.Stage) + ": " + f.Reason
	}
	return string(f.Stage) + ": " + f.Reason + ": " + f.Err.Error()
}

// Unwrap exposes the underlying error to errors.Is and errors.As.
func (f *CycleFailure) Unwrap() error {
	return f.Err
}
