// Package health 存活/就绪探针
package health

import (
	"context"
	"net/http"
	"runtime"
	"sync"
	"time"

	"microgrid/config"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

const (
	probeTimeout = 2 * time.Second

	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
)

// Dependency 外部依赖探针（数据库、redis 等），Ping 返回 nil 即健康
type Dependency struct {
	Name string
	Ping func(ctx context.Context) error
}

type Controller struct {
	cfg     *config.Config
	deps    []Dependency
	started time.Time
}

// NewController memory 驱动下没有依赖，deps 可为空
func NewController(cfg *config.Config, deps ...Dependency) *Controller {
	return &Controller{cfg: cfg, deps: deps, started: time.Now()}
}

func (c *Controller) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/health", c.Health)
	router.GET("/health/live", c.Liveness)
	router.GET("/health/ready", c.Readiness)
}

type HealthResponse struct {
	Status    string           `json:"status"`
	Version   string           `json:"version"`
	Uptime    string           `json:"uptime"`
	Timestamp string           `json:"timestamp"`
	Checks    map[string]Check `json:"checks,omitempty"`
	System    *SystemInfo      `json:"system,omitempty"`
}

type Check struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// SystemInfo 仅开发环境返回
type SystemInfo struct {
	GoVersion    string `json:"go_version"`
	NumCPU       int    `json:"num_cpu"`
	NumGoroutine int    `json:"num_goroutine"`
	MemAlloc     uint64 `json:"mem_alloc_bytes"`
}

// Health 全量检查，任一依赖不健康即 503
func (c *Controller) Health(ctx *gin.Context) {
	checks, healthy := c.probeAll(ctx.Request.Context())

	resp := HealthResponse{
		Status:    statusHealthy,
		Version:   c.cfg.App.Version,
		Uptime:    time.Since(c.started).Round(time.Second).String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}
	if c.cfg.IsDevelopment() {
		resp.System = systemInfo()
	}

	code := http.StatusOK
	if !healthy {
		resp.Status = statusUnhealthy
		code = http.StatusServiceUnavailable
	}
	ctx.JSON(code, resp)
}

func (c *Controller) Liveness(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "alive"})
}

// Readiness 依赖全部可用才接流量
func (c *Controller) Readiness(ctx *gin.Context) {
	checks, healthy := c.probeAll(ctx.Request.Context())
	if healthy {
		ctx.JSON(http.StatusOK, gin.H{"status": "ready"})
		return
	}

	var down []string
	for name, ch := range checks {
		if ch.Status != statusHealthy {
			down = append(down, name)
		}
	}
	ctx.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "unavailable": down})
}

// probeAll 并发探测所有依赖
func (c *Controller) probeAll(parent context.Context) (map[string]Check, bool) {
	var (
		mu      sync.Mutex
		checks  = make(map[string]Check, len(c.deps))
		healthy = true
	)

	var g errgroup.Group
	for _, dep := range c.deps {
		g.Go(func() error {
			ch := probe(parent, dep)
			mu.Lock()
			defer mu.Unlock()
			checks[dep.Name] = ch
			if ch.Status != statusHealthy {
				healthy = false
			}
			return nil
		})
	}
	_ = g.Wait()
	return checks, healthy
}

func probe(parent context.Context, dep Dependency) Check {
	ctx, cancel := context.WithTimeout(parent, probeTimeout)
	defer cancel()

	start := time.Now()
	err := dep.Ping(ctx)
	ch := Check{Status: statusHealthy, Latency: time.Since(start).String()}
	if err != nil {
		ch.Status = statusUnhealthy
		ch.Message = err.Error()
	}
	return ch
}

func systemInfo() *SystemInfo {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return &SystemInfo{
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
		MemAlloc:     m.Alloc,
	}
}
