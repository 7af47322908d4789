package copytrade

import (
	"context"
	"fmt"
	"sync"
	"time"

	brcfg "polycopy/internal/config"
	"polycopy/internal/gateway/notifier"
	"polycopy/internal/logger"
	"polycopy/internal/pkg/circuit"
	"polycopy/internal/scheduler"
)

// State is the copy loop's lifecycle phase.
type State string

const (
	StateInit    State = "INIT"
	StateWarmup  State = "WARMUP"
	StateRunning State = "RUNNING"
	StatePaused  State = "PAUSED"
	StateHalted  State = "HALTED"
	StateStopped State = "STOPPED"
)

// TradeSource delivers the target actor's recent trades, newest first.
type TradeSource interface {
	RecentTrades(ctx context.Context, target string, limit int) ([]RawTradeEvent, error)
}

// CopyEvent is the in-memory trail entry for one dispatch attempt, kept for
// the live status endpoint.
type CopyEvent struct {
	Time      time.Time `json:"time"`
	Coin      string    `json:"coin"`
	Market    string    `json:"market"`
	Outcome   string    `json:"outcome"`
	Side      Side      `json:"side"`
	Price     float64   `json:"price"`
	Shares    float64   `json:"shares"`
	Success   bool      `json:"success"`
	LatencyMS int64     `json:"latency_ms"`
	Detail    string    `json:"detail,omitempty"`
}

const recentEventCap = 50

// Snapshot is a point-in-time view of one engine for reporting.
type Snapshot struct {
	Target       string      `json:"target"`
	State        State       `json:"state"`
	Balance      float64     `json:"balance"`
	DailyLoss    float64     `json:"daily_loss"`
	Counters     Counters    `json:"counters"`
	LedgerSize   int         `json:"ledger_size"`
	FeedState    string      `json:"feed_state"`
	FeedFailures int         `json:"feed_failures"`
	StartedAt    time.Time   `json:"started_at"`
	Recent       []CopyEvent `json:"recent,omitempty"`
}

// Engine drives the copy loop for one target actor: a single worker running
// fetch, filter, normalize, gate, dispatch ticks on a fixed cadence. All
// pipeline state is owned by that worker; the mutex only covers reads from
// the status endpoint.
type Engine struct {
	cfg        brcfg.CopyConfig
	source     TradeSource
	ledger     *Ledger
	gate       *Gate
	dispatcher *Dispatcher
	breaker    *circuit.CircuitBreaker
	notify     notifier.StructuredNotifier

	mu        sync.Mutex
	state     State
	risk      *RiskState
	recent    []CopyEvent
	startedAt time.Time
}

func NewEngine(cfg brcfg.CopyConfig, riskCfg brcfg.RiskConfig, source TradeSource, dispatcher *Dispatcher) *Engine {
	return &Engine{
		cfg:        cfg,
		source:     source,
		ledger:     NewLedger(cfg.SeenCap),
		gate:       NewGate(riskCfg),
		dispatcher: dispatcher,
		breaker:    circuit.NewCircuitBreaker("trade-source", 5, 30*time.Second),
		state:      StateInit,
		risk:       NewRiskState(riskCfg.StartBalance),
	}
}

// WithNotifier attaches a push channel for risk events.
func (e *Engine) WithNotifier(n notifier.StructuredNotifier) *Engine {
	e.notify = n
	return e
}

// Run executes the copy loop until a terminal state or cancellation. The
// returned error is nil for graceful STOPPED and HALTED exits; both end with
// a final summary.
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	e.startedAt = time.Now()
	e.mu.Unlock()

	logger.InfoBlock(fmt.Sprintf(
		"===== 跟单循环启动 =====\ntarget=%s size=$%.2f poll=%dms fetch=%d warmup=%d",
		e.cfg.TargetAddress, e.cfg.SizeUSD, e.cfg.PollIntervalMS, e.cfg.FetchLimit, e.cfg.WarmupLimit))

	e.warmup(ctx)
	e.setState(StateRunning)

	statusCtx, stopStatus := context.WithCancel(ctx)
	defer stopStatus()
	go func() {
		rep := scheduler.NewIntervalScheduler(statusCtx, time.Duration(e.cfg.StatusIntervalSeconds)*time.Second)
		rep.Name = "status-report"
		rep.Start(e.logStatus)
	}()

	poll := time.Duration(e.cfg.PollIntervalMS) * time.Millisecond
	cooldown := time.Duration(e.cfg.CooldownSeconds) * time.Second

	for {
		if ctx.Err() != nil {
			e.setState(StateStopped)
			e.finalReport()
			return nil
		}

		switch e.gate.HaltCheck(e.riskView()) {
		case HaltLowBalance:
			e.setState(StateHalted)
			e.announceRisk("跟单停止：余额低于下限", "balance below minimum, loop terminated")
			e.finalReport()
			return nil
		case HaltDailyLoss:
			e.setState(StatePaused)
			e.announceRisk("跟单暂停：当日亏损触顶", fmt.Sprintf("cooling down %s", cooldown))
			if !scheduler.Sleep(ctx, cooldown) {
				e.setState(StateStopped)
				e.finalReport()
				return nil
			}
			e.mu.Lock()
			e.risk.ResetDailyLoss()
			e.mu.Unlock()
			e.setState(StateRunning)
			logger.Infof("cooldown elapsed, daily loss reset, resuming")
			continue
		}

		e.tick(ctx)

		if !scheduler.Sleep(ctx, poll) {
			e.setState(StateStopped)
			e.finalReport()
			return nil
		}
	}
}

// warmup marks the current batch of historical trades as seen without
// dispatching. A failed warmup fetch still proceeds with an empty ledger;
// we accept the small risk of mirroring a stale trade over never starting.
func (e *Engine) warmup(ctx context.Context) {
	e.setState(StateWarmup)
	trades, err := e.source.RecentTrades(ctx, e.cfg.TargetAddress, e.cfg.WarmupLimit)
	if err != nil {
		logger.Warnf("warmup fetch failed, starting with empty ledger: %v", err)
		return
	}
	marked := 0
	for _, ev := range trades {
		if id, ok := Identity(ev); ok {
			e.ledger.MarkSeen(id)
			marked++
		}
	}
	logger.Infof("warmup complete, %d historical trades marked seen", marked)
}

// tick runs one fetch→filter→normalize→gate→dispatch cycle. Per-event
// faults are contained here and never abort the tick.
func (e *Engine) tick(ctx context.Context) {
	if !e.breaker.Allow() {
		return
	}
	trades, err := e.source.RecentTrades(ctx, e.cfg.TargetAddress, e.cfg.FetchLimit)
	if err != nil {
		e.breaker.RecordFailure()
		e.bumpErrors()
		logger.Warnf("fetch failed: %v", err)
		scheduler.Sleep(ctx, time.Duration(e.cfg.ErrorBackoffSeconds)*time.Second)
		return
	}
	e.breaker.RecordSuccess()

	// 先筛出新交易并立即登记, 再按目标的原始先后顺序处理
	novel := make([]RawTradeEvent, 0, len(trades))
	for _, ev := range trades {
		id, ok := Identity(ev)
		if !ok {
			logger.Debugf("unidentifiable event skipped: %v", ev)
			continue
		}
		if !e.ledger.IsNovel(id) {
			continue
		}
		e.ledger.MarkSeen(id)
		novel = append(novel, ev)
	}
	// feed is newest-first; dispatch oldest-first to preserve causal order
	for i := len(novel) - 1; i >= 0; i-- {
		if ctx.Err() != nil {
			return
		}
		if !e.processEvent(ctx, novel[i]) {
			return
		}
	}
}

// processEvent gates and dispatches one novel event. Returns false when a
// halt decision should end the batch early.
func (e *Engine) processEvent(ctx context.Context, ev RawTradeEvent) bool {
	act := Normalize(ev)
	logger.Infof("detected %s %s @ %.4f market=%q outcome=%q", act.Side, act.Coin, act.Price, act.Market, act.Outcome)

	e.mu.Lock()
	decision := e.gate.Evaluate(act, e.risk)
	e.mu.Unlock()

	switch decision {
	case Proceed:
		out := e.dispatcher.Dispatch(ctx, act)
		e.record(act, out)
		return true
	case SkipWrongDirection, SkipInvalidPrice:
		e.mu.Lock()
		e.risk.Counters.Skips++
		e.mu.Unlock()
		logger.Infof("skip %s: %s", act.Identity, decision)
		return true
	default:
		// HaltDailyLoss / HaltLowBalance: let the outer loop transition state
		logger.Warnf("gate halt (%s), ending batch", decision)
		return false
	}
}

func (e *Engine) record(act *ActionDescriptor, out *ExecutionOutcome) {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch {
	case out.Success:
		e.risk.Counters.Copies++
		e.risk.ApplyCost(out.CostUSD)
	case out.Skipped:
		e.risk.Counters.Skips++
	default:
		e.risk.Counters.Errors++
	}
	ev := CopyEvent{
		Time:      time.Now(),
		Coin:      act.Coin,
		Market:    act.Market,
		Outcome:   act.Outcome,
		Side:      act.Side,
		Price:     act.Price,
		Shares:    out.Shares,
		Success:   out.Success,
		LatencyMS: out.Latency.Milliseconds(),
		Detail:    out.Detail,
	}
	e.recent = append(e.recent, ev)
	if len(e.recent) > recentEventCap {
		e.recent = e.recent[len(e.recent)-recentEventCap:]
	}
}

// Snapshot returns a copy of the engine's reportable state. Safe to call
// from other goroutines.
func (e *Engine) Snapshot() Snapshot {
	feedState, feedFailures := e.breaker.Snapshot()

	e.mu.Lock()
	defer e.mu.Unlock()
	balance, _ := e.risk.Balance.Float64()
	loss, _ := e.risk.DailyLoss.Float64()
	recent := make([]CopyEvent, len(e.recent))
	copy(recent, e.recent)
	return Snapshot{
		Target:       e.cfg.TargetAddress,
		State:        e.state,
		Balance:      balance,
		DailyLoss:    loss,
		Counters:     e.risk.Counters,
		LedgerSize:   e.ledger.Len(),
		FeedState:    feedState.String(),
		FeedFailures: feedFailures,
		StartedAt:    e.startedAt,
		Recent:       recent,
	}
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	prev := e.state
	e.state = s
	e.mu.Unlock()
	if prev != s {
		logger.Infof("state %s -> %s", prev, s)
	}
}

func (e *Engine) riskView() *RiskState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.risk
}

func (e *Engine) bumpErrors() {
	e.mu.Lock()
	e.risk.Counters.Errors++
	e.mu.Unlock()
}

func (e *Engine) logStatus() {
	snap := e.Snapshot()
	logger.InfoBlock(fmt.Sprintf(
		"[%s] state=%s feed=%s balance=$%.2f dailyLoss=$%.2f copies=%d skips=%d errors=%d ledger=%d uptime=%s",
		e.cfg.TargetAddress,
		snap.State, snap.FeedState, snap.Balance, snap.DailyLoss,
		snap.Counters.Copies, snap.Counters.Skips, snap.Counters.Errors,
		snap.LedgerSize, time.Since(snap.StartedAt).Round(time.Second)))
}

func (e *Engine) finalReport() {
	snap := e.Snapshot()
	logger.InfoBlock(fmt.Sprintf(
		"===== 收盘总结 =====\nstate=%s balance=$%.2f dailyLoss=$%.2f copies=%d wins=%d losses=%d skips=%d errors=%d uptime=%s",
		snap.State, snap.Balance, snap.DailyLoss,
		snap.Counters.Copies, snap.Counters.Wins, snap.Counters.Losses,
		snap.Counters.Skips, snap.Counters.Errors,
		time.Since(snap.StartedAt).Round(time.Second)))
}

func (e *Engine) announceRisk(title, reason string) {
	snap := e.Snapshot()
	logger.Warnf("%s: %s (balance=$%.2f dailyLoss=$%.2f)", title, reason, snap.Balance, snap.DailyLoss)
	if e.notify == nil {
		return
	}
	if err := e.notify.SendStructured(notifier.RiskEventMessage(title, reason, snap.Balance, snap.DailyLoss)); err != nil {
		logger.Warnf("Telegram 推送失败: %v", err)
	}
}
