package copytrade

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	brcfg "polycopy/internal/config"
)

func testGate() *Gate {
	return NewGate(brcfg.RiskConfig{StartBalance: 10, MinBalance: 8, MaxDailyLoss: 2})
}

func buyAt(price float64) *ActionDescriptor {
	return &ActionDescriptor{Side: SideBuy, Price: price}
}

func TestGateSellNeverMirrored(t *testing.T) {
	st := NewRiskState(10)
	act := &ActionDescriptor{Side: SideSell, Price: 0.5}
	assert.Equal(t, SkipWrongDirection, testGate().Evaluate(act, st))

	// direction is checked before price, so a SELL with a bad price still
	// reports the direction skip
	act.Price = 1.5
	assert.Equal(t, SkipWrongDirection, testGate().Evaluate(act, st))
}

func TestGatePriceBounds(t *testing.T) {
	st := NewRiskState(10)
	g := testGate()
	for _, p := range []float64{0, -0.1, 1, 1.01} {
		assert.Equal(t, SkipInvalidPrice, g.Evaluate(buyAt(p), st), "price %v", p)
	}
	for _, p := range []float64{0.01, 0.5, 0.99} {
		assert.Equal(t, Proceed, g.Evaluate(buyAt(p), st), "price %v", p)
	}
}

func TestGateDailyLossHalt(t *testing.T) {
	st := NewRiskState(10)
	st.DailyLoss = decimal.NewFromFloat(2.00)
	assert.Equal(t, HaltDailyLoss, testGate().Evaluate(buyAt(0.5), st))

	st.ResetDailyLoss()
	assert.Equal(t, Proceed, testGate().Evaluate(buyAt(0.5), st))
}

func TestGateLowBalanceHalt(t *testing.T) {
	st := NewRiskState(5)
	assert.Equal(t, HaltLowBalance, testGate().Evaluate(buyAt(0.5), st))
}

func TestGateHaltCheckPriority(t *testing.T) {
	g := testGate()

	healthy := NewRiskState(10)
	assert.Equal(t, Proceed, g.HaltCheck(healthy))

	paused := NewRiskState(10)
	paused.DailyLoss = decimal.NewFromFloat(2.50)
	assert.Equal(t, HaltDailyLoss, g.HaltCheck(paused))

	// low balance is terminal and wins over the daily-loss pause
	broke := NewRiskState(5)
	broke.DailyLoss = decimal.NewFromFloat(2.50)
	assert.Equal(t, HaltLowBalance, g.HaltCheck(broke))
}

func TestRiskStateAccounting(t *testing.T) {
	st := NewRiskState(10)
	st.ApplyCost(decimal.NewFromFloat(1.25))
	st.ApplyCost(decimal.NewFromFloat(1.25))
	assert.True(t, st.Balance.Equal(decimal.NewFromFloat(7.50)), "balance=%s", st.Balance)

	st.RecordLoss(decimal.NewFromFloat(0.75))
	assert.True(t, st.DailyLoss.Equal(decimal.NewFromFloat(0.75)))
	assert.Equal(t, 1, st.Counters.Losses)
}
