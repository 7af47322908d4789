// Package copytrade implements the detect, normalize, gate, execute pipeline that
// mirrors a target actor's prediction-market trades.
package copytrade

import "time"

// Side is the trade direction of the target actor's action.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// RawTradeEvent is one loosely structured record from the activity feed.
// Upstream schemas drift, so field access always goes through alias tables.
type RawTradeEvent = map[string]any

// ActionDescriptor is the canonical form of one observed trade, ready for
// risk evaluation and dispatch. TokenID may be empty when the feed omitted
// the asset id; the dispatcher resolves it on demand.
type ActionDescriptor struct {
	Side     Side
	TokenID  string
	Price    float64
	Market   string
	Coin     string
	Outcome  string
	Identity string
	Observed time.Time
}
