// Package app 负责应用级编排：加载配置→初始化依赖→启动跟单引擎与查询服务。
package app

import (
	"context"
	"fmt"

	brcfg "polycopy/internal/config"
	"polycopy/internal/logger"
	"polycopy/internal/store/copylog"
	livehttp "polycopy/internal/transport/http/live"
	"polycopy/internal/watchlist"

	"golang.org/x/sync/errgroup"
)

// App 持有装配完成的组件。
type App struct {
	cfg        *brcfg.Config
	supervisor *Supervisor
	targets    []watchlist.Target
	registry   *watchlist.Registry
	liveHTTP   *livehttp.Server
	store      *copylog.Store
}

// NewApp 根据配置构建应用对象（不启动）。
func NewApp(cfg *brcfg.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg)
}

// Run 启动跟单引擎与 HTTP 服务，直到 ctx 取消或全部引擎终止。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	defer func() {
		if a.store != nil {
			if err := a.store.Close(); err != nil {
				logger.Warnf("关闭流水存储失败: %v", err)
			}
		}
	}()

	group, ctx := errgroup.WithContext(ctx)

	if a.liveHTTP != nil {
		group.Go(func() error {
			if err := a.liveHTTP.Start(ctx); err != nil {
				return fmt.Errorf("live http server error: %w", err)
			}
			return nil
		})
	}

	group.Go(func() error {
		return a.supervisor.Run(ctx, a.targets)
	})

	return group.Wait()
}

// Supervisor 暴露引擎管理器（测试/回放用）。
func (a *App) Supervisor() *Supervisor {
	if a == nil {
		return nil
	}
	return a.supervisor
}
