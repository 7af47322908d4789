package copytrade

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	brcfg "polycopy/internal/config"
	"polycopy/internal/gateway/exchange"
	"polycopy/internal/gateway/notifier"
	"polycopy/internal/logger"
	"polycopy/internal/scheduler"
)

// InstrumentResolver finds the outcome token for an event that arrived
// without one.
type InstrumentResolver interface {
	Resolve(ctx context.Context, coin, outcomeHint string) (string, error)
}

// AuditSink persists the outcome of each dispatch attempt.
type AuditSink interface {
	RecordCopy(ctx context.Context, target string, act *ActionDescriptor, out *ExecutionOutcome) error
}

// ExecutionOutcome is the dispatcher's report for one mirrored order.
// Skipped marks attempts abandoned before any order was submitted (for
// example an unresolvable token id); those count as skips, not errors.
type ExecutionOutcome struct {
	Success  bool
	Skipped  bool
	Latency  time.Duration
	OrderID  string
	Detail   string
	Shares   float64
	AvgPrice float64
	CostUSD  decimal.Decimal
}

// Dispatcher turns a gated ActionDescriptor into exactly one order
// submission. It never retries: re-submitting at a stale price compounds
// loss, so a failed copy is counted and the loop moves on.
type Dispatcher struct {
	placer   exchange.OrderPlacer
	resolver InstrumentResolver
	audit    AuditSink
	notify   notifier.StructuredNotifier
	target   string
	sizeUSD  decimal.Decimal
	delay    time.Duration
	nowFn    func() time.Time
}

func NewDispatcher(cfg brcfg.CopyConfig, placer exchange.OrderPlacer, resolver InstrumentResolver) *Dispatcher {
	return &Dispatcher{
		placer:   placer,
		resolver: resolver,
		target:   cfg.TargetAddress,
		sizeUSD:  decimal.NewFromFloat(cfg.SizeUSD),
		delay:    time.Duration(cfg.DelayMS) * time.Millisecond,
		nowFn:    time.Now,
	}
}

// WithAudit attaches an optional persistence sink.
func (d *Dispatcher) WithAudit(sink AuditSink) *Dispatcher {
	d.audit = sink
	return d
}

// WithNotifier attaches an optional push channel.
func (d *Dispatcher) WithNotifier(n notifier.StructuredNotifier) *Dispatcher {
	d.notify = n
	return d
}

// Dispatch submits one mirrored order. The context cancels the optional
// pre-execution delay; once the order call starts it runs to completion.
func (d *Dispatcher) Dispatch(ctx context.Context, act *ActionDescriptor) *ExecutionOutcome {
	tokenID := act.TokenID
	if tokenID == "" {
		if d.resolver == nil {
			return d.finish(ctx, act, &ExecutionOutcome{Skipped: true, Detail: "no token id and no resolver"})
		}
		resolved, err := d.resolver.Resolve(ctx, act.Coin, act.Outcome)
		if err != nil {
			return d.finish(ctx, act, &ExecutionOutcome{Skipped: true, Detail: fmt.Sprintf("resolve %s/%s: %v", act.Coin, act.Outcome, err)})
		}
		tokenID = resolved
	}

	// 可选的执行前延迟, 用于延迟对比实验
	if d.delay > 0 {
		if !scheduler.Sleep(ctx, d.delay) {
			return &ExecutionOutcome{Detail: "cancelled before submit"}
		}
	}

	sizeUSD, _ := d.sizeUSD.Float64()
	shares := sizeUSD / act.Price
	trace := uuid.NewString()

	start := d.nowFn()
	res, err := d.placer.PlaceOrder(ctx, exchange.OrderRequest{
		TokenID: tokenID,
		Price:   act.Price,
		Size:    shares,
		Side:    exchange.Side(act.Side),
		TraceID: trace,
	})
	latency := d.nowFn().Sub(start)

	out := &ExecutionOutcome{Latency: latency, Shares: shares}
	switch {
	case err != nil:
		out.Detail = err.Error()
	case res == nil:
		out.Detail = "empty order result"
	case !res.Success:
		out.Detail = res.ErrorMsg
		out.OrderID = res.OrderID
	default:
		out.Success = true
		out.OrderID = res.OrderID
		out.AvgPrice = res.AvgPrice
		if out.AvgPrice <= 0 {
			out.AvgPrice = act.Price
		}
		out.CostUSD = decimal.NewFromFloat(shares * out.AvgPrice)
	}
	return d.finish(ctx, act, out)
}

func (d *Dispatcher) finish(ctx context.Context, act *ActionDescriptor, out *ExecutionOutcome) *ExecutionOutcome {
	switch {
	case out.Success:
		logger.Infof("copy filled %s %s %.2f股 @ %.4f 延迟=%dms order=%s",
			act.Side, act.Coin, out.Shares, out.AvgPrice, out.Latency.Milliseconds(), out.OrderID)
	case out.Skipped:
		logger.Infof("copy skipped %s %s: %s", act.Side, act.Coin, out.Detail)
	default:
		logger.Warnf("copy failed %s %s: %s", act.Side, act.Coin, out.Detail)
	}
	if d.audit != nil {
		if err := d.audit.RecordCopy(ctx, d.target, act, out); err != nil {
			logger.Warnf("记录跟单流水失败: %v", err)
		}
	}
	if d.notify != nil && out.Success {
		usd, _ := out.CostUSD.Float64()
		msg := notifier.CopyFillMessage(d.target, act.Coin, string(act.Side), act.Market, out.AvgPrice, out.Shares, usd, out.Latency)
		if err := d.notify.SendStructured(msg); err != nil {
			logger.Warnf("Telegram 推送失败: %v", err)
		}
	}
	return out
}
