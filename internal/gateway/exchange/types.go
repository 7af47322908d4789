// Package exchange defines a common abstraction for the order execution
// venue. The copy engine talks to an OrderPlacer only; concrete backends
// (paper simulation, a live CLOB submitter) live in their own packages.
package exchange

import (
	"context"
	"time"
)

// Side is the order direction on the venue.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderRequest contains parameters for a single mirrored order.
type OrderRequest struct {
	TokenID string  // Outcome token identifier (CLOB asset id)
	Price   float64 // Limit price in (0,1), probability-like
	Size    float64 // Quantity of outcome tokens
	Side    Side
	TraceID string // Per-copy trace id for log correlation
}

// OrderResult is the structured outcome of one submission.
type OrderResult struct {
	Success  bool
	OrderID  string
	Status   string // e.g. matched, live, delayed, simulated
	ErrorMsg string
	AvgPrice float64 // Estimated or reported fill price
	FilledAt time.Time
	Raw      map[string]any
}

// OrderPlacer submits one order to the venue. Implementations must not
// retry internally; the caller owns failure accounting.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, req OrderRequest) (*OrderResult, error)
}

// OrderBookLevel is a single price level. The venue serializes both fields
// as strings; clients convert on parse.
type OrderBookLevel struct {
	Price float64
	Size  float64
}

// OrderBook is the venue order book for one outcome token, best price first
// on both sides.
type OrderBook struct {
	TokenID string
	Bids    []OrderBookLevel
	Asks    []OrderBookLevel
}
