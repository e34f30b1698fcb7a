package app

import (
	"context"
	"fmt"
	"time"

	"ytcbot/internal/domain"
	"ytcbot/internal/ports"
)

// Mock implementations
type mockLogger struct {
	debugMsgs []string
	infoMsgs  []string
	warnMsgs  []string
	errorMsgs []string
}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.debugMsgs = append(m.debugMsgs, msg)
}

func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.infoMsgs = append(m.infoMsgs, msg)
}

func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.warnMsgs = append(m.warnMsgs, msg)
}

func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	m.errorMsgs = append(m.errorMsgs, msg)
}

type mockAnalyzer struct {
	analysis *domain.Analysis
	err      error
	inputs   []ports.AnalysisInput
}

func (m *mockAnalyzer) Analyze(ctx context.Context, in ports.AnalysisInput) (*domain.Analysis, error) {
	m.inputs = append(m.inputs, in)
	if m.err != nil {
		return nil, m.err
	}
	return m.analysis, nil
}

type mockExecution struct {
	price     float64
	priceErr  error
	placeErr  error
	cancelErr error
	orders    []ports.OrderRequest
	canceled  []string
}

func (m *mockExecution) GetPrice(ctx context.Context, symbol string) (float64, error) {
	return m.price, m.priceErr
}

func (m *mockExecution) PlaceOrder(ctx context.Context, req ports.OrderRequest) (*ports.OrderResponse, error) {
	if m.placeErr != nil {
		return nil, m.placeErr
	}
	m.orders = append(m.orders, req)
	return &ports.OrderResponse{
		OrderID:     fmt.Sprintf("ord-%d", len(m.orders)),
		Symbol:      req.Symbol,
		Side:        req.Side,
		Price:       req.Price,
		AvgPrice:    req.Price,
		ExecutedQty: req.Quantity,
		Status:      "FILLED",
		Timestamp:   time.Date(2024, 3, 1, 12, 0, len(m.orders), 0, time.UTC),
	}, nil
}

func (m *mockExecution) CancelOrder(ctx context.Context, symbol, orderID string) error {
	if m.cancelErr != nil {
		return m.cancelErr
	}
	m.canceled = append(m.canceled, orderID)
	return nil
}

type mockAccount struct {
	balance float64
	err     error
}

func (m *mockAccount) GetAccountBalance(ctx context.Context, asset string) (float64, error) {
	return m.balance, m.err
}

type mockPositionRepo struct {
	created   []*domain.Position
	updated   []domain.Position
	open      *domain.Position
	createErr error
	updateErr error
	findErr   error
}

func (m *mockPositionRepo) Create(ctx context.Context, pos *domain.Position) (int64, error) {
	if m.createErr != nil {
		return 0, m.createErr
	}
	m.created = append(m.created, pos)
	pos.ID = int64(len(m.created))
	return pos.ID, nil
}

func (m *mockPositionRepo) Update(ctx context.Context, pos *domain.Position) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.updated = append(m.updated, *pos)
	return nil
}

func (m *mockPositionRepo) FindOpenBySymbol(ctx context.Context, symbol string) (*domain.Position, error) {
	return m.open, m.findErr
}

func (m *mockPositionRepo) FindByTradeID(ctx context.Context, tradeID string) (*domain.Position, error) {
	for _, p := range m.created {
		if p.TradeID == tradeID {
			return p, nil
		}
	}
	return nil, nil
}

type mockResultRepo struct {
	saved      []*domain.TradeResult
	saveErr    error
	todayCount int
	countErr   error
}

func (m *mockResultRepo) SaveResult(ctx context.Context, res *domain.TradeResult) (int64, error) {
	if m.saveErr != nil {
		return 0, m.saveErr
	}
	m.saved = append(m.saved, res)
	return int64(len(m.saved)), nil
}

func (m *mockResultRepo) FindResultsBySymbol(ctx context.Context, symbol string, limit int) ([]*domain.TradeResult, error) {
	return m.saved, nil
}

func (m *mockResultRepo) CountTodayBySymbol(ctx context.Context, symbol string) (int, error) {
	return m.todayCount, m.countErr
}

// mockMarket serves canned bars per interval and fails the first failures calls.
type mockMarket struct {
	bars     map[string][]*domain.Bar
	err      error
	failures int
	calls    int
}

func (m *mockMarket) GetBars(ctx context.Context, symbol, interval string, limit int) ([]*domain.Bar, error) {
	m.calls++
	if m.err != nil && m.calls <= m.failures {
		return nil, m.err
	}
	return m.bars[interval], nil
}

func (m *mockMarket) StreamBars(ctx context.Context, symbol, interval string, handler func(bar *domain.Bar), errHandler func(err error)) (chan struct{}, chan struct{}, error) {
	done := make(chan struct{})
	stop := make(chan struct{}, 1)
	go func() {
		<-stop
		close(done)
	}()
	return done, stop, nil
}

func readySetup() *domain.Setup {
	return &domain.Setup{
		ID:               "setup-1",
		Type:             domain.SetupPB,
		Direction:        domain.Long,
		EntryZone:        domain.EntryZone{Lower: 99.5, Upper: 100.5, Ideal: 100},
		StopLoss:         95,
		Targets:          []domain.Target{{Price: 110, RMultiple: 2}},
		RiskRewardRatio:  2,
		ProbabilityScore: 80,
		Quality:          domain.QualityA,
		ReadyToTrade:     true,
	}
}

func fixtureAnalysis(setups ...*domain.Setup) *domain.Analysis {
	ready := 0
	for _, s := range setups {
		if s.ReadyToTrade {
			ready++
		}
	}
	return &domain.Analysis{
		Symbol: "BTCUSDT",
		Structure: &domain.MarketStructure{
			Complete:     true,
			CurrentPrice: 100,
			Stage:        domain.StageStrongUp,
			Location:     domain.LocationInRange,
		},
		Trend: &domain.TrendState{
			Direction:  domain.TrendUp,
			Confidence: 1,
			Strength:   domain.StrengthStrong,
			HTFAligned: true,
		},
		Strength: &domain.StrengthScore{
			Combined:       72,
			CombinedRating: domain.RatingStrong,
			Bias:           domain.MomentumNeutral,
		},
		Scan: &domain.ScanResult{
			Complete: true,
			Setups:   setups,
			Summary:  domain.ScanSummary{Total: len(setups), TradeReady: ready, MarketVerdict: "Trending market"},
		},
	}
}

func openPosition() *domain.Position {
	return &domain.Position{
		TradeID:         "TRD-0000ABCD",
		Symbol:          "BTCUSDT",
		Direction:       domain.Long,
		SetupType:       domain.SetupPB,
		EntryPrice:      100,
		StopLoss:        95,
		InitialStopLoss: 95,
		TakeProfit:      110,
		Size:            10,
		Value:           1000,
		EntryTime:       time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
		EntryOrderID:    "ord-entry",
		Status:          domain.StatusOpen,
	}
}
