// Package livehttp 提供最小化的 /api/live HTTP 服务（跟单状态查询）。
package livehttp

import (
	"context"
	"errors"
	"net/http"
	"time"

	"polycopy/internal/copytrade"
	"polycopy/internal/logger"
	"polycopy/internal/store/copylog"

	"github.com/gin-gonic/gin"
)

// SnapshotProvider 暴露一个或多个跟单引擎的运行状态。
type SnapshotProvider interface {
	Snapshots() []copytrade.Snapshot
}

// Server 提供 live HTTP 服务。
type Server struct {
	addr   string
	router *gin.Engine
}

// ServerConfig 描述 live HTTP 服务依赖。
type ServerConfig struct {
	Addr    string
	Engines SnapshotProvider
	Copies  *copylog.Store
}

// NewServer 构建 live HTTP server。
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Engines == nil {
		return nil, errors.New("live http server requires an engine snapshot provider")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9992"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	liveRouter := NewRouter(cfg.Engines, cfg.Copies)
	liveRouter.Register(router.Group("/api/live"))

	return &Server{addr: cfg.Addr, router: router}, nil
}

// requestLogger 记录接口调用，便于追踪刷新与排查。
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery
		client := c.ClientIP()
		c.Next()
		dur := time.Since(start)
		status := c.Writer.Status()
		fullPath := path
		if query != "" {
			fullPath = path + "?" + query
		}
		logger.Debugf("HTTP %s %s status=%d ip=%s dur=%s", method, fullPath, status, client, dur)
	}
}

// Addr 返回监听地址。
func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.addr
}

// Start 启动 HTTP 服务，直到 ctx 取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()
	logger.Infof("live http server listening on %s", s.addr)
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

// Handler 暴露底层路由，测试用。
func (s *Server) Handler() http.Handler {
	return s.router
}
