package app

import (
	"context"
	"fmt"
	"strings"

	brcfg "polycopy/internal/config"
	"polycopy/internal/copytrade"
	"polycopy/internal/gateway/clob"
	"polycopy/internal/gateway/dataapi"
	"polycopy/internal/gateway/exchange"
	"polycopy/internal/gateway/gamma"
	"polycopy/internal/gateway/notifier"
	"polycopy/internal/logger"
	"polycopy/internal/store/copylog"
	livehttp "polycopy/internal/transport/http/live"
	"polycopy/internal/watchlist"
)

// AppBuilder 负责把配置装配成可运行的 App。各构造函数可按需覆盖，
// 便于测试时替换外部依赖。
type AppBuilder struct {
	cfg *brcfg.Config

	sourceFn   func(brcfg.SourceConfig) (copytrade.TradeSource, error)
	resolverFn func(brcfg.GammaConfig) (copytrade.InstrumentResolver, error)
	placerFn   func(brcfg.ClobConfig) (exchange.OrderPlacer, error)
	storeFn    func(brcfg.StoreConfig) (*copylog.Store, error)
}

type AppBuilderOption func(*AppBuilder)

func NewAppBuilder(cfg *brcfg.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:        cfg,
		sourceFn:   buildTradeSource,
		resolverFn: buildResolver,
		placerFn:   buildOrderPlacer,
		storeFn:    buildCopyStore,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// WithTradeSource 覆盖数据源构造，测试用。
func WithTradeSource(fn func(brcfg.SourceConfig) (copytrade.TradeSource, error)) AppBuilderOption {
	return func(b *AppBuilder) { b.sourceFn = fn }
}

// WithOrderPlacer 覆盖执行端构造，测试用。
func WithOrderPlacer(fn func(brcfg.ClobConfig) (exchange.OrderPlacer, error)) AppBuilderOption {
	return func(b *AppBuilder) { b.placerFn = fn }
}

func buildTradeSource(cfg brcfg.SourceConfig) (copytrade.TradeSource, error) {
	return dataapi.NewClient(cfg)
}

func buildResolver(cfg brcfg.GammaConfig) (copytrade.InstrumentResolver, error) {
	return gamma.NewClient(cfg)
}

func buildOrderPlacer(cfg brcfg.ClobConfig) (exchange.OrderPlacer, error) {
	client, err := clob.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Mode)) {
	case "", "paper":
		return clob.NewPaperExecutor(client), nil
	default:
		return nil, fmt.Errorf("不支持的 clob.mode: %s", cfg.Mode)
	}
}

func buildCopyStore(cfg brcfg.StoreConfig) (*copylog.Store, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	return copylog.NewStore(cfg.Path)
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := b.cfg
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)

	source, err := b.sourceFn(cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("init trade source: %w", err)
	}
	resolver, err := b.resolverFn(cfg.Gamma)
	if err != nil {
		return nil, fmt.Errorf("init instrument resolver: %w", err)
	}
	placer, err := b.placerFn(cfg.Clob)
	if err != nil {
		return nil, fmt.Errorf("init order placer: %w", err)
	}
	store, err := b.storeFn(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("init copy store: %w", err)
	}

	var tg *notifier.Telegram
	if cfg.Notify.Telegram.Enabled {
		tg = notifier.NewTelegram(cfg.Notify.Telegram.BotToken, cfg.Notify.Telegram.ChatID)
		logger.Infof("✓ Telegram 通知已启用")
	}

	factory := func(t watchlist.Target) (*copytrade.Engine, error) {
		tcfg := cfg.Copy
		tcfg.TargetAddress = t.Address
		if t.SizeUSD > 0 {
			tcfg.SizeUSD = t.SizeUSD
		}
		src := source
		if t.HasFilter() {
			src = &filteredSource{inner: source, target: t}
		}
		dispatcher := copytrade.NewDispatcher(tcfg, placer, resolver)
		if store != nil {
			dispatcher.WithAudit(store)
		}
		if tg != nil {
			dispatcher.WithNotifier(tg)
		}
		engine := copytrade.NewEngine(tcfg, cfg.Risk, src, dispatcher)
		if tg != nil {
			engine.WithNotifier(tg)
		}
		return engine, nil
	}
	supervisor := NewSupervisor(factory)

	var (
		registry *watchlist.Registry
		targets  []watchlist.Target
	)
	if path := strings.TrimSpace(cfg.Copy.WatchlistPath); path != "" {
		registry, err = watchlist.NewRegistry(path)
		if err != nil {
			return nil, fmt.Errorf("init watchlist: %w", err)
		}
		registry.OnChange(supervisor.Reconcile)
		targets = registry.Snapshot().Enabled()
		logger.Infof("✓ watchlist 模式，%d 个启用目标", len(targets))
	} else {
		targets = []watchlist.Target{{Address: strings.ToLower(cfg.Copy.TargetAddress)}}
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("没有启用的跟单目标")
	}

	var liveHTTP *livehttp.Server
	if addr := strings.TrimSpace(cfg.App.HTTPAddr); addr != "" {
		liveHTTP, err = livehttp.NewServer(livehttp.ServerConfig{
			Addr:    addr,
			Engines: supervisor,
			Copies:  store,
		})
		if err != nil {
			return nil, fmt.Errorf("init live http server: %w", err)
		}
	}

	return &App{
		cfg:        cfg,
		supervisor: supervisor,
		targets:    targets,
		registry:   registry,
		liveHTTP:   liveHTTP,
		store:      store,
	}, nil
}

// filteredSource 在原始事件进入去重账本前应用目标的过滤 schema。
type filteredSource struct {
	inner  copytrade.TradeSource
	target watchlist.Target
}

func (f *filteredSource) RecentTrades(ctx context.Context, target string, limit int) ([]copytrade.RawTradeEvent, error) {
	events, err := f.inner.RecentTrades(ctx, target, limit)
	if err != nil {
		return nil, err
	}
	out := events[:0]
	for _, ev := range events {
		if f.target.Allows(ev) {
			out = append(out, ev)
		}
	}
	return out, nil
}
