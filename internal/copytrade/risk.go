package copytrade

import (
	"github.com/shopspring/decimal"

	brcfg "polycopy/internal/config"
)

// GateDecision is the risk gate's verdict for one candidate action.
type GateDecision int

const (
	Proceed GateDecision = iota
	SkipWrongDirection
	SkipInvalidPrice
	HaltDailyLoss
	HaltLowBalance
)

func (d GateDecision) String() string {
	switch d {
	case Proceed:
		return "proceed"
	case SkipWrongDirection:
		return "skip_wrong_direction"
	case SkipInvalidPrice:
		return "skip_invalid_price"
	case HaltDailyLoss:
		return "halt_daily_loss"
	case HaltLowBalance:
		return "halt_low_balance"
	default:
		return "unknown"
	}
}

// Counters accumulates per-run bookkeeping for the status reports.
type Counters struct {
	Copies int
	Wins   int
	Losses int
	Skips  int
	Errors int
}

// RiskState is the running account view. It is owned by the copy loop and
// mutated only between dispatches; money stays in decimal so repeated
// subtraction cannot drift.
type RiskState struct {
	Balance   decimal.Decimal
	DailyLoss decimal.Decimal
	Counters  Counters
}

func NewRiskState(startBalance float64) *RiskState {
	return &RiskState{Balance: decimal.NewFromFloat(startBalance)}
}

// ApplyCost deducts the spend of one copied trade.
func (s *RiskState) ApplyCost(usd decimal.Decimal) {
	s.Balance = s.Balance.Sub(usd)
}

// RecordLoss adds a realized loss to the daily total.
func (s *RiskState) RecordLoss(usd decimal.Decimal) {
	s.DailyLoss = s.DailyLoss.Add(usd)
	s.Counters.Losses++
}

// ResetDailyLoss clears the daily counter after a cooldown elapses.
func (s *RiskState) ResetDailyLoss() {
	s.DailyLoss = decimal.Zero
}

// Gate applies the configured thresholds to each candidate action.
type Gate struct {
	minBalance   decimal.Decimal
	maxDailyLoss decimal.Decimal
}

func NewGate(cfg brcfg.RiskConfig) *Gate {
	return &Gate{
		minBalance:   decimal.NewFromFloat(cfg.MinBalance),
		maxDailyLoss: decimal.NewFromFloat(cfg.MaxDailyLoss),
	}
}

// Evaluate checks one action against the risk rules, in order: direction,
// price sanity, daily loss, balance floor. Only BUY trades are mirrored;
// mirroring a SELL would require holding the position being sold.
func (g *Gate) Evaluate(act *ActionDescriptor, st *RiskState) GateDecision {
	if act.Side != SideBuy {
		return SkipWrongDirection
	}
	if act.Price <= 0 || act.Price >= 1 {
		return SkipInvalidPrice
	}
	if st.DailyLoss.GreaterThanOrEqual(g.maxDailyLoss) {
		return HaltDailyLoss
	}
	if st.Balance.LessThan(g.minBalance) {
		return HaltLowBalance
	}
	return Proceed
}

// HaltCheck reports whether the current state alone forces a halt or pause,
// independent of any candidate action. The balance floor wins over the
// daily-loss pause because it is terminal.
func (g *Gate) HaltCheck(st *RiskState) GateDecision {
	if st.Balance.LessThan(g.minBalance) {
		return HaltLowBalance
	}
	if st.DailyLoss.GreaterThanOrEqual(g.maxDailyLoss) {
		return HaltDailyLoss
	}
	return Proceed
}
