package livehttp

import (
	"net/http"
	"strconv"
	"strings"

	"polycopy/internal/store/copylog"

	"github.com/gin-gonic/gin"
)

// Router 暴露跟单状态查询接口。
type Router struct {
	engines SnapshotProvider
	copies  *copylog.Store
}

// NewRouter 构造 live HTTP router。
func NewRouter(engines SnapshotProvider, copies *copylog.Store) *Router {
	return &Router{engines: engines, copies: copies}
}

// Register 将 /api/live 路由挂载到给定分组下。
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.GET("/status", r.handleStatus)
	group.GET("/copies", r.handleCopies)
	group.GET("/stats", r.handleStats)
}

func (r *Router) handleStatus(c *gin.Context) {
	snaps := r.engines.Snapshots()
	c.JSON(http.StatusOK, gin.H{"engines": snaps})
}

// handleCopies 优先读 sqlite 流水；未启用存储时退回引擎内存里的最近记录。
func (r *Router) handleCopies(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit <= 0 {
		limit = 20
	}
	if limit > 200 {
		limit = 200
	}
	if r.copies != nil {
		recs, err := r.copies.ListRecent(c.Request.Context(), limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"copies": recs})
		return
	}
	recent := make([]any, 0, limit)
	for _, snap := range r.engines.Snapshots() {
		for _, ev := range snap.Recent {
			if len(recent) >= limit {
				break
			}
			recent = append(recent, ev)
		}
	}
	c.JSON(http.StatusOK, gin.H{"copies": recent})
}

func (r *Router) handleStats(c *gin.Context) {
	if r.copies == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "流水存储未启用"})
		return
	}
	target := strings.TrimSpace(c.Query("target"))
	if target == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "target 参数必填"})
		return
	}
	stats, err := r.copies.StatsByTarget(c.Request.Context(), strings.ToLower(target))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}
