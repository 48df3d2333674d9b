// Package api HTTP 入口：中间件链和 /api/v1 路由
package api

import (
	"net/http"

	"microgrid/api/middleware"
	"microgrid/config"

	"github.com/gin-gonic/gin"
)

// RouteRegistrar 控制器在 /api/v1 下注册自己的路由
type RouteRegistrar interface {
	RegisterRoutes(group *gin.RouterGroup)
}

// NewEngine 中间件顺序：请求 ID 最先，访问日志在 recovery 外层以便记下 panic 的 500
func NewEngine(cfg *config.Config, controllers ...RouteRegistrar) *gin.Engine {
	if cfg.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(
		middleware.RequestID(),
		middleware.AccessLog(),
		middleware.Recovery(),
		middleware.CORS(&cfg.CORS),
		middleware.RateLimit(&cfg.Server.RateLimit),
	)

	v1 := engine.Group("/api/v1")
	for _, c := range controllers {
		c.RegisterRoutes(v1)
	}

	engine.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"name":    cfg.App.Name,
			"version": cfg.App.Version,
			"health":  "/api/v1/health",
			"events":  "/api/v1/events/ws",
		})
	})
	return engine
}
