package copytrade

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	brcfg "polycopy/internal/config"
	"polycopy/internal/gateway/exchange"
)

// fakeSource replays a fixed newest-first batch on every fetch.
type fakeSource struct {
	mu      sync.Mutex
	batches [][]RawTradeEvent
	err     error
	fetches int
}

func (f *fakeSource) RecentTrades(ctx context.Context, target string, limit int) ([]RawTradeEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.err != nil {
		return nil, f.err
	}
	if len(f.batches) == 0 {
		return nil, nil
	}
	batch := f.batches[0]
	if len(f.batches) > 1 {
		f.batches = f.batches[1:]
	}
	return batch, nil
}

// countingPlacer records every order it receives.
type countingPlacer struct {
	mu     sync.Mutex
	orders []exchange.OrderRequest
}

func (p *countingPlacer) PlaceOrder(ctx context.Context, req exchange.OrderRequest) (*exchange.OrderResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.orders = append(p.orders, req)
	return &exchange.OrderResult{Success: true, OrderID: "o", AvgPrice: req.Price}, nil
}

func (p *countingPlacer) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.orders)
}

func engineConfig() brcfg.CopyConfig {
	return brcfg.CopyConfig{
		TargetAddress:         "0xtarget",
		SizeUSD:               1.0,
		PollIntervalMS:        1,
		FetchLimit:            5,
		WarmupLimit:           20,
		CooldownSeconds:       3600,
		ErrorBackoffSeconds:   0,
		StatusIntervalSeconds: 600,
		SeenCap:               1000,
	}
}

func riskConfig() brcfg.RiskConfig {
	return brcfg.RiskConfig{StartBalance: 10, MinBalance: 8, MaxDailyLoss: 2}
}

func newTestEngine(src TradeSource, placer exchange.OrderPlacer) *Engine {
	cfg := engineConfig()
	return NewEngine(cfg, riskConfig(), src, NewDispatcher(cfg, placer, nil))
}

func TestWarmupMarksHistoricalTradesSeen(t *testing.T) {
	src := &fakeSource{batches: [][]RawTradeEvent{{
		{"id": "h1", "side": "BUY", "asset": "tok", "price": 0.5},
		{"id": "h2", "side": "BUY", "asset": "tok", "price": 0.5},
	}}}
	placer := &countingPlacer{}
	e := newTestEngine(src, placer)

	e.warmup(context.Background())
	assert.Equal(t, 2, e.ledger.Len())

	// the same trades on the next tick are not dispatched
	e.tick(context.Background())
	assert.Equal(t, 0, placer.count())
}

func TestWarmupFailureProceedsWithEmptyLedger(t *testing.T) {
	src := &fakeSource{err: errors.New("upstream down")}
	e := newTestEngine(src, &countingPlacer{})

	e.warmup(context.Background())
	assert.Equal(t, 0, e.ledger.Len())
	assert.Equal(t, StateWarmup, e.Snapshot().State)
}

func TestTickDispatchesEachTradeOnce(t *testing.T) {
	src := &fakeSource{batches: [][]RawTradeEvent{{
		{"id": "t1", "side": "BUY", "asset": "tok", "price": 0.6},
	}}}
	placer := &countingPlacer{}
	e := newTestEngine(src, placer)

	e.tick(context.Background())
	e.tick(context.Background())
	e.tick(context.Background())

	assert.Equal(t, 1, placer.count(), "same id must be dispatched exactly once")
	assert.Equal(t, 1, e.Snapshot().Counters.Copies)
}

func TestTickDispatchOldestFirst(t *testing.T) {
	// feed is newest-first: t2 happened after t1
	src := &fakeSource{batches: [][]RawTradeEvent{{
		{"id": "t2", "side": "BUY", "asset": "tok-2", "price": 0.6},
		{"id": "t1", "side": "BUY", "asset": "tok-1", "price": 0.4},
	}}}
	placer := &countingPlacer{}
	e := newTestEngine(src, placer)

	e.tick(context.Background())

	require.Equal(t, 2, placer.count())
	assert.Equal(t, "tok-1", placer.orders[0].TokenID)
	assert.Equal(t, "tok-2", placer.orders[1].TokenID)
}

func TestTickUnidentifiableEventNeverMarked(t *testing.T) {
	src := &fakeSource{batches: [][]RawTradeEvent{{
		{"side": "BUY", "market": "BTC Up or Down"},
	}}}
	placer := &countingPlacer{}
	e := newTestEngine(src, placer)

	e.tick(context.Background())
	e.tick(context.Background())

	assert.Equal(t, 0, placer.count())
	assert.Equal(t, 0, e.ledger.Len(), "unidentifiable events must not enter the ledger")
}

func TestTickSellSkippedAndCounted(t *testing.T) {
	src := &fakeSource{batches: [][]RawTradeEvent{{
		{"id": "s1", "side": "SELL", "asset": "tok", "price": 0.6},
	}}}
	placer := &countingPlacer{}
	e := newTestEngine(src, placer)

	e.tick(context.Background())

	assert.Equal(t, 0, placer.count())
	snap := e.Snapshot()
	assert.Equal(t, 1, snap.Counters.Skips)
	// the skipped trade is still marked seen, so it is not re-evaluated
	assert.Equal(t, 1, snap.LedgerSize)
}

func TestTickFetchErrorCountedAndContained(t *testing.T) {
	src := &fakeSource{err: errors.New("status=503")}
	e := newTestEngine(src, &countingPlacer{})

	e.tick(context.Background())
	snap := e.Snapshot()
	assert.Equal(t, 1, snap.Counters.Errors)
	assert.Equal(t, "CLOSED", snap.FeedState)
	assert.Equal(t, 1, snap.FeedFailures)
}

func TestSnapshotReportsFeedBreakerOpen(t *testing.T) {
	src := &fakeSource{err: errors.New("status=503")}
	e := newTestEngine(src, &countingPlacer{})

	// 连续失败达到阈值后熔断打开
	for i := 0; i < 5; i++ {
		e.tick(context.Background())
	}
	snap := e.Snapshot()
	assert.Equal(t, "OPEN", snap.FeedState)
	assert.Equal(t, 5, snap.FeedFailures)
	assert.Equal(t, 5, snap.Counters.Errors)
}

func TestTickUnresolvableTokenCountedAsSkip(t *testing.T) {
	src := &fakeSource{batches: [][]RawTradeEvent{{
		{"id": "t1", "side": "BUY", "price": 0.6, "title": "Bitcoin Up or Down"},
	}}}
	placer := &countingPlacer{}
	cfg := engineConfig()
	resolver := &stubResolver{err: errors.New("no active market")}
	e := NewEngine(cfg, riskConfig(), src, NewDispatcher(cfg, placer, resolver))

	e.tick(context.Background())
	snap := e.Snapshot()
	assert.Equal(t, 1, snap.Counters.Skips)
	assert.Equal(t, 0, snap.Counters.Errors)
	assert.Equal(t, 0, snap.Counters.Copies)
	assert.Equal(t, 0, placer.count())
}

func TestRunHaltsOnLowBalanceBeforeDispatch(t *testing.T) {
	src := &fakeSource{batches: [][]RawTradeEvent{{
		{"id": "t1", "side": "BUY", "asset": "tok", "price": 0.6},
	}}}
	placer := &countingPlacer{}
	cfg := engineConfig()
	risk := riskConfig()
	risk.StartBalance = 5 // below min_balance=8
	e := NewEngine(cfg, risk, src, NewDispatcher(cfg, placer, nil))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := e.Run(ctx)

	require.NoError(t, err)
	assert.Equal(t, StateHalted, e.Snapshot().State)
	assert.Equal(t, 0, placer.count(), "no dispatch may happen after the balance floor is hit")
}

func TestRunPausesOnDailyLossThenResumes(t *testing.T) {
	src := &fakeSource{}
	placer := &countingPlacer{}
	cfg := engineConfig()
	cfg.CooldownSeconds = 0 // elapse immediately for the test
	e := NewEngine(cfg, riskConfig(), src, NewDispatcher(cfg, placer, nil))
	e.risk.RecordLoss(decimal.NewFromFloat(2.50))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	require.Eventually(t, func() bool {
		snap := e.Snapshot()
		return snap.DailyLoss == 0 && snap.State == StateRunning
	}, 2*time.Second, 5*time.Millisecond, "daily loss should reset after cooldown")

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, StateStopped, e.Snapshot().State)
}

func TestRunStopsOnCancellation(t *testing.T) {
	src := &fakeSource{}
	e := newTestEngine(src, &countingPlacer{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	require.Eventually(t, func() bool {
		src.mu.Lock()
		defer src.mu.Unlock()
		return src.fetches >= 2
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not stop after cancellation")
	}
	assert.Equal(t, StateStopped, e.Snapshot().State)
}
