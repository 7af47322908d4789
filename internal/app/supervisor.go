package app

import (
	"context"
	"sync"

	"polycopy/internal/copytrade"
	"polycopy/internal/logger"
	"polycopy/internal/watchlist"
)

// EngineFactory 根据 watchlist 目标构建一个跟单引擎。
type EngineFactory func(target watchlist.Target) (*copytrade.Engine, error)

type engineHandle struct {
	engine *copytrade.Engine
	cancel context.CancelFunc
}

// Supervisor 管理每个目标一个的跟单引擎，支持 watchlist 热更时增删。
type Supervisor struct {
	factory EngineFactory

	mu      sync.Mutex
	ctx     context.Context
	wg      sync.WaitGroup
	engines map[string]*engineHandle
}

func NewSupervisor(factory EngineFactory) *Supervisor {
	return &Supervisor{
		factory: factory,
		engines: make(map[string]*engineHandle),
	}
}

// Run 启动清单中的所有引擎并阻塞，直到全部引擎退出。
func (s *Supervisor) Run(ctx context.Context, targets []watchlist.Target) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()
	for _, t := range targets {
		if err := s.launch(t); err != nil {
			return err
		}
	}
	s.wg.Wait()
	return nil
}

// Reconcile 将运行中的引擎集合对齐到新的清单：新目标启动，消失的目标停止。
// 已在运行的目标保持原引擎不动，避免重置其去重账本。
func (s *Supervisor) Reconcile(snap watchlist.Snapshot) {
	desired := make(map[string]watchlist.Target)
	for _, t := range snap.Enabled() {
		desired[t.Address] = t
	}

	s.mu.Lock()
	var toStart []watchlist.Target
	for addr, t := range desired {
		if _, ok := s.engines[addr]; !ok {
			toStart = append(toStart, t)
		}
	}
	s.mu.Unlock()

	// 先启动新目标再停旧目标, 避免引擎集合瞬间清空导致 Run 提前返回
	for _, t := range toStart {
		if err := s.launch(t); err != nil {
			logger.Errorf("watchlist update: start engine for %s failed: %v", t.Address, err)
		}
	}

	s.mu.Lock()
	var toStop []string
	for addr, h := range s.engines {
		if _, ok := desired[addr]; !ok {
			h.cancel()
			toStop = append(toStop, addr)
		}
	}
	for _, addr := range toStop {
		delete(s.engines, addr)
	}
	s.mu.Unlock()

	for _, addr := range toStop {
		logger.Infof("watchlist update: target %s removed, engine stopped", addr)
	}
}

func (s *Supervisor) launch(t watchlist.Target) error {
	engine, err := s.factory(t)
	if err != nil {
		return err
	}
	s.mu.Lock()
	if _, ok := s.engines[t.Address]; ok {
		s.mu.Unlock()
		return nil
	}
	if s.ctx == nil {
		s.ctx = context.Background()
	}
	engineCtx, cancel := context.WithCancel(s.ctx)
	s.engines[t.Address] = &engineHandle{engine: engine, cancel: cancel}
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := engine.Run(engineCtx); err != nil {
			logger.Errorf("engine %s exited with error: %v", t.Address, err)
		}
	}()
	return nil
}

// Snapshots 返回所有引擎的运行状态。
func (s *Supervisor) Snapshots() []copytrade.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]copytrade.Snapshot, 0, len(s.engines))
	for _, h := range s.engines {
		out = append(out, h.engine.Snapshot())
	}
	return out
}
