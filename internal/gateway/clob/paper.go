package clob

import (
	"context"
	"fmt"
	"time"

	"polycopy/internal/gateway/exchange"
	"polycopy/internal/logger"
)

// bookReader is the slice of Client the paper executor needs.
type bookReader interface {
	GetOrderBook(ctx context.Context, tokenID string) (*exchange.OrderBook, error)
}

// PaperExecutor simulates fills against the live order book without signing
// or settling anything on chain. It walks the opposing side of the book and
// reports the volume-weighted price the order would have taken.
type PaperExecutor struct {
	books bookReader
	nowFn func() time.Time
}

func NewPaperExecutor(books bookReader) *PaperExecutor {
	return &PaperExecutor{books: books, nowFn: time.Now}
}

// PlaceOrder implements exchange.OrderPlacer.
func (p *PaperExecutor) PlaceOrder(ctx context.Context, req exchange.OrderRequest) (*exchange.OrderResult, error) {
	if req.TokenID == "" {
		return &exchange.OrderResult{Success: false, ErrorMsg: "empty token id"}, nil
	}
	if req.Size <= 0 || req.Price <= 0 {
		return &exchange.OrderResult{Success: false, ErrorMsg: fmt.Sprintf("invalid order: size=%.4f price=%.4f", req.Size, req.Price)}, nil
	}

	avg := req.Price
	book, err := p.books.GetOrderBook(ctx, req.TokenID)
	if err != nil {
		// 盘口不可用时按请求价成交, 模拟模式不因行情缺失而失败
		logger.Warnf("paper fill without book token=%s err=%v", req.TokenID, err)
	} else if px, ok := sweepBook(book, req.Side, req.Size); ok {
		avg = px
	}

	logger.Infof("[PAPER] %s %.2f @ %.4f token=%s trace=%s", req.Side, req.Size, avg, shortToken(req.TokenID), req.TraceID)
	return &exchange.OrderResult{
		Success:  true,
		OrderID:  "paper-" + req.TraceID,
		Status:   "matched",
		AvgPrice: avg,
		FilledAt: p.nowFn(),
	}, nil
}

// sweepBook walks the asks for a buy (bids for a sell) and returns the
// volume-weighted average price over the requested size. Returns false when
// the book is too thin to cover the order.
func sweepBook(book *exchange.OrderBook, side exchange.Side, size float64) (float64, bool) {
	levels := book.Asks
	if side == exchange.SideSell {
		levels = book.Bids
	}
	remaining := size
	cost := 0.0
	for _, lvl := range levels {
		take := lvl.Size
		if take > remaining {
			take = remaining
		}
		cost += take * lvl.Price
		remaining -= take
		if remaining <= 0 {
			return cost / size, true
		}
	}
	return 0, false
}

func shortToken(id string) string {
	if len(id) <= 12 {
		return id
	}
	return id[:12] + "…"
}
