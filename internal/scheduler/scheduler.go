package scheduler

import (
	"context"
	"time"

	"polycopy/internal/logger"
)

// IntervalScheduler runs a task in a loop with a fixed gap between the end
// of one run and the start of the next. Runs never overlap.
type IntervalScheduler struct {
	Interval time.Duration
	Name     string

	ctx   context.Context
	nowFn func() time.Time
}

func NewIntervalScheduler(ctx context.Context, interval time.Duration) *IntervalScheduler {
	if ctx == nil {
		ctx = context.Background()
	}
	return &IntervalScheduler{
		Interval: interval,
		ctx:      ctx,
		nowFn:    time.Now,
	}
}

// Start blocks until ctx is cancelled. The task is executed immediately,
// then again Interval after each completion.
func (s *IntervalScheduler) Start(task func()) {
	if s == nil {
		return
	}
	if task == nil {
		logger.Warnf("IntervalScheduler: task is nil, exit")
		return
	}
	if s.Interval <= 0 {
		logger.Warnf("IntervalScheduler: invalid interval=%s, exit", s.Interval)
		return
	}
	if s.ctx == nil {
		s.ctx = context.Background()
	}

	logger.Infof("IntervalScheduler%s: started interval=%s", s.tag(), s.Interval)

	for {
		select {
		case <-s.ctx.Done():
			logger.Infof("IntervalScheduler%s: ctx done, exit", s.tag())
			return
		default:
		}

		task()

		if !Sleep(s.ctx, s.Interval) {
			logger.Infof("IntervalScheduler%s: ctx done, exit", s.tag())
			return
		}
	}
}

func (s *IntervalScheduler) tag() string {
	if s.Name == "" {
		return ""
	}
	return " " + s.Name
}

// Sleep waits for d or until ctx is cancelled, whichever comes first.
// Returns false when cut short by cancellation.
func Sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		select {
		case <-ctx.Done():
			return false
		default:
			return true
		}
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
