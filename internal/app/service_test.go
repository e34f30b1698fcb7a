package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ytcbot/config"
	"ytcbot/internal/domain"
	"ytcbot/internal/ports"
)

func testConfig() *config.Config {
	return &config.Config{
		Symbol:            "BTCUSDT",
		StructureInterval: "4h",
		TrendInterval:     "15m",
		EntryInterval:     "5m",
		BarLimit:          100,
	}
}

func testBars(interval string, n int) []*domain.Bar {
	t0 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]*domain.Bar, n)
	for i := range bars {
		c := 100 + float64(i%5)
		bars[i] = &domain.Bar{OpenTime: t0.Add(time.Duration(i) * time.Minute), Interval: interval, Open: c, High: c + 1, Low: c - 1, Close: c, IsFinal: true}
	}
	return bars
}

func newTestService(t *testing.T, market *mockMarket, analysis *domain.Analysis) (*TradingService, *pipelineFixture) {
	t.Helper()
	f := newPipelineFixture(t, analysis)
	svc, err := NewTradingService(testConfig(), f.logger, market, f.pipeline, f.positions, f.results, f.risk)
	require.NoError(t, err)
	svc.refreshTimeout = 2 * time.Second
	return svc, f
}

func defaultMarket() *mockMarket {
	return &mockMarket{bars: map[string][]*domain.Bar{
		"4h":  testBars("4h", 60),
		"15m": testBars("15m", 80),
		"5m":  testBars("5m", 40),
	}}
}

func TestNewTradingService_Validation(t *testing.T) {
	f := newPipelineFixture(t, fixtureAnalysis())
	tests := []struct {
		name string
		cfg  *config.Config
		mkt  ports.MarketData
	}{
		{"nil config", nil, defaultMarket()},
		{"nil market", testConfig(), nil},
		{"missing symbol", &config.Config{BarLimit: 10}, defaultMarket()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTradingService(tt.cfg, f.logger, tt.mkt, f.pipeline, f.positions, f.results, f.risk)
			assert.Error(t, err)
		})
	}
}

func TestTradingService_SyncState(t *testing.T) {
	svc, f := newTestService(t, defaultMarket(), fixtureAnalysis())
	pos := openPosition()
	f.positions.open = pos
	f.results.todayCount = 3

	require.NoError(t, svc.syncState(context.Background()))
	assert.Same(t, pos, svc.CurrentPosition())
	assert.Equal(t, 3, f.risk.GetStats().DailyTrades)

	f.results.countErr = ports.ErrQueryFailed
	assert.ErrorIs(t, svc.syncState(context.Background()), ports.ErrQueryFailed)

	f.positions.findErr = ports.ErrDBConnection
	assert.ErrorIs(t, svc.syncState(context.Background()), ports.ErrDBConnection)
}

func TestTradingService_SyncState_JournaledPositionIsClosed(t *testing.T) {
	svc, f := newTestService(t, defaultMarket(), fixtureAnalysis())
	pos := openPosition()
	f.positions.open = pos
	f.results.saved = []*domain.TradeResult{{TradeID: pos.TradeID, Symbol: "BTCUSDT", ExitReason: domain.ExitReasonTakeProfit}}

	require.NoError(t, svc.syncState(context.Background()))
	assert.Nil(t, svc.CurrentPosition())
	require.Len(t, f.positions.updated, 1)
	assert.Equal(t, domain.StatusClosed, f.positions.updated[0].Status)
}

func TestTradingService_ProcessBar(t *testing.T) {
	market := defaultMarket()
	svc, f := newTestService(t, market, fixtureAnalysis(readySetup()))
	ctx := context.Background()
	bar := &domain.Bar{Symbol: "BTCUSDT", Interval: "5m", Close: 100, IsFinal: true}

	res := svc.ProcessBar(ctx, bar)
	require.NotNil(t, res)
	require.False(t, res.Failed())
	require.NotNil(t, res.Opened)
	assert.Same(t, res.Opened, svc.CurrentPosition())

	require.Len(t, f.analyzer.inputs, 1)
	in := f.analyzer.inputs[0]
	assert.Len(t, in.StructureBars, 60)
	assert.Len(t, in.TrendBars, 80)
	assert.Len(t, in.EntryBars, 40)

	// The next bar manages the carried position instead of opening another one.
	f.exec.price = 111
	res = svc.ProcessBar(ctx, bar)
	require.NotNil(t, res)
	require.NotNil(t, res.Trade)
	assert.Nil(t, svc.CurrentPosition())
	assert.Len(t, f.positions.created, 1)
	assert.Len(t, f.results.saved, 1)
}

func TestTradingService_RefreshRetries(t *testing.T) {
	market := defaultMarket()
	market.err = ports.ErrExchangeUnavailable
	market.failures = 1
	svc, _ := newTestService(t, market, fixtureAnalysis())

	res := svc.ProcessBar(context.Background(), &domain.Bar{IsFinal: true})
	require.NotNil(t, res)
	assert.False(t, res.Failed())
	assert.Equal(t, 4, market.calls)
}

func TestTradingService_RefreshPermanentError(t *testing.T) {
	market := defaultMarket()
	market.err = ports.ErrInvalidRequest
	market.failures = 100
	svc, f := newTestService(t, market, fixtureAnalysis())

	res := svc.ProcessBar(context.Background(), &domain.Bar{IsFinal: true})
	assert.Nil(t, res)
	assert.Equal(t, 1, market.calls)
	assert.Empty(t, f.analyzer.inputs)
	assert.Contains(t, f.logger.errorMsgs, "Bar refresh failed; cycle skipped")
}

func TestTradingService_HandleBarEventIgnoresOpenBars(t *testing.T) {
	market := defaultMarket()
	svc, f := newTestService(t, market, fixtureAnalysis())

	svc.handleBarEvent(&domain.Bar{IsFinal: false})
	assert.Equal(t, 0, market.calls)
	assert.Empty(t, f.analyzer.inputs)
}

func TestTradingService_HandleBarEventSkipsAfterShutdown(t *testing.T) {
	market := defaultMarket()
	svc, f := newTestService(t, market, fixtureAnalysis())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc.runCtx = ctx

	svc.handleBarEvent(&domain.Bar{IsFinal: true})
	assert.Equal(t, 0, market.calls)
	assert.Empty(t, f.analyzer.inputs)
}

func TestTradingService_RefreshStopsOnCanceledContext(t *testing.T) {
	market := defaultMarket()
	market.err = ports.ErrExchangeUnavailable
	market.failures = 100
	svc, f := newTestService(t, market, fixtureAnalysis())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	res := svc.ProcessBar(ctx, &domain.Bar{IsFinal: true})
	assert.Nil(t, res)
	assert.Equal(t, 1, market.calls)
	assert.Less(t, time.Since(start), time.Second)
	assert.Empty(t, f.analyzer.inputs)
}

func TestTradingService_StartStopsOnCancel(t *testing.T) {
	svc, _ := newTestService(t, defaultMarket(), fixtureAnalysis())
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- svc.Start(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("service did not stop")
	}
}

func TestTradingService_SurfacesWsErrors(t *testing.T) {
	svc, f := newTestService(t, defaultMarket(), fixtureAnalysis())
	svc.handleWsError(errors.New("socket reset"))
	assert.Contains(t, f.logger.errorMsgs, "WebSocket stream error reported")
}
