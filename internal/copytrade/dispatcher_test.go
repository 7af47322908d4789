package copytrade

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	brcfg "polycopy/internal/config"
	"polycopy/internal/gateway/exchange"
)

type mockPlacer struct {
	mock.Mock
}

func (m *mockPlacer) PlaceOrder(ctx context.Context, req exchange.OrderRequest) (*exchange.OrderResult, error) {
	args := m.Called(ctx, req)
	if res := args.Get(0); res != nil {
		return res.(*exchange.OrderResult), args.Error(1)
	}
	return nil, args.Error(1)
}

type stubResolver struct {
	tokenID string
	err     error
	calls   int
}

func (s *stubResolver) Resolve(ctx context.Context, coin, outcomeHint string) (string, error) {
	s.calls++
	return s.tokenID, s.err
}

func dispatcherConfig() brcfg.CopyConfig {
	return brcfg.CopyConfig{TargetAddress: "0xtarget", SizeUSD: 1.0}
}

func TestDispatchQuantityFromSizeAndPrice(t *testing.T) {
	placer := &mockPlacer{}
	placer.On("PlaceOrder", mock.Anything, mock.MatchedBy(func(req exchange.OrderRequest) bool {
		return req.TokenID == "tok-1" &&
			req.Side == exchange.SideBuy &&
			req.Size > 1.6128 && req.Size < 1.6130 // 1.0 / 0.62
	})).Return(&exchange.OrderResult{Success: true, OrderID: "o1", Status: "matched", AvgPrice: 0.62}, nil)

	d := NewDispatcher(dispatcherConfig(), placer, nil)
	out := d.Dispatch(context.Background(), &ActionDescriptor{Side: SideBuy, TokenID: "tok-1", Price: 0.62, Coin: "BTC"})

	require.True(t, out.Success)
	assert.Equal(t, "o1", out.OrderID)
	assert.InDelta(t, 1.0/0.62, out.Shares, 1e-9)
	cost, _ := out.CostUSD.Float64()
	assert.InDelta(t, 1.0, cost, 1e-9)
	placer.AssertNumberOfCalls(t, "PlaceOrder", 1)
}

func TestDispatchFailureClassified(t *testing.T) {
	placer := &mockPlacer{}
	placer.On("PlaceOrder", mock.Anything, mock.Anything).Return(nil, errors.New("connection reset"))

	d := NewDispatcher(dispatcherConfig(), placer, nil)
	out := d.Dispatch(context.Background(), &ActionDescriptor{Side: SideBuy, TokenID: "tok-1", Price: 0.5})

	assert.False(t, out.Success)
	assert.Contains(t, out.Detail, "connection reset")
	// never retried
	placer.AssertNumberOfCalls(t, "PlaceOrder", 1)
}

func TestDispatchUnsuccessfulResultIsFailure(t *testing.T) {
	placer := &mockPlacer{}
	placer.On("PlaceOrder", mock.Anything, mock.Anything).
		Return(&exchange.OrderResult{Success: false, ErrorMsg: "not enough liquidity"}, nil)

	d := NewDispatcher(dispatcherConfig(), placer, nil)
	out := d.Dispatch(context.Background(), &ActionDescriptor{Side: SideBuy, TokenID: "tok-1", Price: 0.5})

	assert.False(t, out.Success)
	assert.Equal(t, "not enough liquidity", out.Detail)
}

func TestDispatchResolvesMissingToken(t *testing.T) {
	placer := &mockPlacer{}
	placer.On("PlaceOrder", mock.Anything, mock.MatchedBy(func(req exchange.OrderRequest) bool {
		return req.TokenID == "tok-resolved"
	})).Return(&exchange.OrderResult{Success: true, OrderID: "o2"}, nil)
	resolver := &stubResolver{tokenID: "tok-resolved"}

	d := NewDispatcher(dispatcherConfig(), placer, resolver)
	out := d.Dispatch(context.Background(), &ActionDescriptor{Side: SideBuy, Price: 0.4, Coin: "ETH", Outcome: "Up"})

	assert.True(t, out.Success)
	assert.Equal(t, 1, resolver.calls)
}

func TestDispatchResolverFailureSkipsOrder(t *testing.T) {
	placer := &mockPlacer{}
	resolver := &stubResolver{err: errors.New("no active market")}

	d := NewDispatcher(dispatcherConfig(), placer, resolver)
	out := d.Dispatch(context.Background(), &ActionDescriptor{Side: SideBuy, Price: 0.4, Coin: "SOL"})

	assert.False(t, out.Success)
	assert.True(t, out.Skipped, "an unresolvable token is a skip, not an execution error")
	assert.Contains(t, out.Detail, "no active market")
	placer.AssertNotCalled(t, "PlaceOrder", mock.Anything, mock.Anything)
}

func TestDispatchWithoutResolverSkipsTokenlessAction(t *testing.T) {
	placer := &mockPlacer{}

	d := NewDispatcher(dispatcherConfig(), placer, nil)
	out := d.Dispatch(context.Background(), &ActionDescriptor{Side: SideBuy, Price: 0.4, Coin: "BTC"})

	assert.False(t, out.Success)
	assert.True(t, out.Skipped)
	placer.AssertNotCalled(t, "PlaceOrder", mock.Anything, mock.Anything)
}

func TestDispatchCancelledDuringDelay(t *testing.T) {
	placer := &mockPlacer{}
	cfg := dispatcherConfig()
	cfg.DelayMS = 5000

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := NewDispatcher(cfg, placer, nil)
	out := d.Dispatch(ctx, &ActionDescriptor{Side: SideBuy, TokenID: "tok-1", Price: 0.5})

	assert.False(t, out.Success)
	placer.AssertNotCalled(t, "PlaceOrder", mock.Anything, mock.Anything)
}
