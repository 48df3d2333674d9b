/*
Package topology - 微电网拓扑 API 控制器

错误处理与其它控制器一致:
 1. 参数绑定错误: response.HandleError 直接返回 400
 2. 业务错误: response.HandleAppError 按错误码映射状态码
*/
package topology

import (
	"net/http"
	"strings"

	"microgrid/api/ctxutil"
	"microgrid/api/response"
	"microgrid/api/stream"
	topologyapp "microgrid/application/topology"

	"github.com/gin-gonic/gin"
)

// Controller 拓扑控制器
type Controller struct {
	service *topologyapp.ApplicationService
	hub     *stream.Hub
}

// NewController hub 为 nil 时不注册事件流路由
func NewController(service *topologyapp.ApplicationService, hub *stream.Hub) *Controller {
	return &Controller{service: service, hub: hub}
}

// RegisterRoutes 注册拓扑路由
func (c *Controller) RegisterRoutes(router *gin.RouterGroup) {
	g := router.Group("/topologies")
	{
		g.POST("", c.CreateTopology)
		g.GET("", c.ListTopologies)
		g.POST("/import", c.ImportTopology)
		g.GET("/:id", c.GetTopology)
		g.PUT("/:id", c.UpdateTopology)
		g.PUT("/:id/status", c.UpdateStatus)
		g.DELETE("/:id", c.DeleteTopology)
		g.GET("/:id/export", c.ExportTopology)

		g.POST("/:id/devices", c.AddDevice)
		g.PATCH("/:id/devices/:deviceId", c.UpdateDevice)
		g.DELETE("/:id/devices/:deviceId", c.RemoveDevice)
		g.GET("/:id/devices/:deviceId/neighbors", c.Neighbors)

		g.POST("/:id/connections", c.CreateConnection)
		g.PATCH("/:id/connections/:connectionId", c.UpdateConnection)
		g.DELETE("/:id/connections/:connectionId", c.RemoveConnection)

		g.POST("/:id/validate", c.ValidateTopology)
		g.GET("/:id/check", c.CheckTopology)
		g.GET("/:id/connectivity", c.AnalyzeConnectivity)
		g.GET("/:id/path", c.FindShortestPath)
		g.GET("/:id/optimization", c.OptimizeTopology)
	}
	router.GET("/formats", c.Formats)
	if c.hub != nil {
		router.GET("/events/ws", c.hub.ServeWS)
	}
}

// CreateTopology POST /api/v1/topologies
func (c *Controller) CreateTopology(ctx *gin.Context) {
	var req topologyapp.CreateTopologyRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.HandleError(ctx, err, "invalid request parameters", http.StatusBadRequest)
		return
	}

	topo, err := c.service.CreateTopology(ctxutil.WithRequestID(ctx), req)
	if err != nil {
		response.HandleAppError(ctx, err)
		return
	}
	response.HandleCreated(ctx, topo, "topology created successfully")
}

// ListTopologies GET /api/v1/topologies?status=&name=&created_after=&created_before=&page=&page_size=
func (c *Controller) ListTopologies(ctx *gin.Context) {
	var q topologyapp.ListTopologiesQuery
	if err := ctx.ShouldBindQuery(&q); err != nil {
		response.HandleError(ctx, err, "invalid query parameters", http.StatusBadRequest)
		return
	}

	page, err := c.service.ListTopologies(ctxutil.WithRequestID(ctx), q)
	if err != nil {
		response.HandleAppError(ctx, err)
		return
	}
	response.HandlePaginated(ctx, page.Items,
		response.NewPagination(page.Page, page.PageSize, page.Total),
		"topologies retrieved successfully")
}

// GetTopology GET /api/v1/topologies/:id
func (c *Controller) GetTopology(ctx *gin.Context) {
	topo, err := c.service.GetTopology(ctxutil.WithRequestID(ctx), ctx.Param("id"))
	if err != nil {
		response.HandleAppError(ctx, err)
		return
	}
	response.HandleSuccess(ctx, topo, "topology retrieved successfully")
}

// UpdateTopology PUT /api/v1/topologies/:id
func (c *Controller) UpdateTopology(ctx *gin.Context) {
	var req topologyapp.UpdateTopologyRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.HandleError(ctx, err, "invalid request parameters", http.StatusBadRequest)
		return
	}

	topo, err := c.service.UpdateTopology(ctxutil.WithRequestID(ctx), ctx.Param("id"), req)
	if err != nil {
		response.HandleAppError(ctx, err)
		return
	}
	response.HandleSuccess(ctx, topo, "topology updated successfully")
}

// UpdateStatus PUT /api/v1/topologies/:id/status
func (c *Controller) UpdateStatus(ctx *gin.Context) {
	var req topologyapp.UpdateStatusRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.HandleError(ctx, err, "invalid request parameters", http.StatusBadRequest)
		return
	}

	topo, err := c.service.UpdateStatus(ctxutil.WithRequestID(ctx), ctx.Param("id"), req)
	if err != nil {
		response.HandleAppError(ctx, err)
		return
	}
	response.HandleSuccess(ctx, topo, "topology status updated successfully")
}

// DeleteTopology DELETE /api/v1/topologies/:id
func (c *Controller) DeleteTopology(ctx *gin.Context) {
	if err := c.service.DeleteTopology(ctxutil.WithRequestID(ctx), ctx.Param("id")); err != nil {
		response.HandleAppError(ctx, err)
		return
	}
	response.HandleNoContent(ctx)
}

// AddDevice POST /api/v1/topologies/:id/devices
func (c *Controller) AddDevice(ctx *gin.Context) {
	var req topologyapp.AddDeviceRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.HandleError(ctx, err, "invalid request parameters", http.StatusBadRequest)
		return
	}

	device, err := c.service.AddDevice(ctxutil.WithRequestID(ctx), ctx.Param("id"), req)
	if err != nil {
		response.HandleAppError(ctx, err)
		return
	}
	response.HandleCreated(ctx, device, "device added successfully")
}

// UpdateDevice PATCH /api/v1/topologies/:id/devices/:deviceId
func (c *Controller) UpdateDevice(ctx *gin.Context) {
	var req topologyapp.UpdateDeviceRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.HandleError(ctx, err, "invalid request parameters", http.StatusBadRequest)
		return
	}

	device, err := c.service.UpdateDevice(ctxutil.WithRequestID(ctx), ctx.Param("id"), ctx.Param("deviceId"), req)
	if err != nil {
		response.HandleAppError(ctx, err)
		return
	}
	response.HandleSuccess(ctx, device, "device updated successfully")
}

// RemoveDevice DELETE /api/v1/topologies/:id/devices/:deviceId
func (c *Controller) RemoveDevice(ctx *gin.Context) {
	if err := c.service.RemoveDevice(ctxutil.WithRequestID(ctx), ctx.Param("id"), ctx.Param("deviceId")); err != nil {
		response.HandleAppError(ctx, err)
		return
	}
	response.HandleNoContent(ctx)
}

// Neighbors GET /api/v1/topologies/:id/devices/:deviceId/neighbors
func (c *Controller) Neighbors(ctx *gin.Context) {
	ids, err := c.service.Neighbors(ctxutil.WithRequestID(ctx), ctx.Param("id"), ctx.Param("deviceId"))
	if err != nil {
		response.HandleAppError(ctx, err)
		return
	}
	response.HandleSuccess(ctx, ids, "neighbors retrieved successfully")
}

// CreateConnection POST /api/v1/topologies/:id/connections
func (c *Controller) CreateConnection(ctx *gin.Context) {
	var req topologyapp.CreateConnectionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.HandleError(ctx, err, "invalid request parameters", http.StatusBadRequest)
		return
	}

	conn, err := c.service.CreateConnection(ctxutil.WithRequestID(ctx), ctx.Param("id"), req)
	if err != nil {
		response.HandleAppError(ctx, err)
		return
	}
	response.HandleCreated(ctx, conn, "connection created successfully")
}

// UpdateConnection PATCH /api/v1/topologies/:id/connections/:connectionId
func (c *Controller) UpdateConnection(ctx *gin.Context) {
	var req topologyapp.UpdateConnectionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.HandleError(ctx, err, "invalid request parameters", http.StatusBadRequest)
		return
	}

	conn, err := c.service.UpdateConnection(ctxutil.WithRequestID(ctx), ctx.Param("id"), ctx.Param("connectionId"), req)
	if err != nil {
		response.HandleAppError(ctx, err)
		return
	}
	response.HandleSuccess(ctx, conn, "connection updated successfully")
}

// RemoveConnection DELETE /api/v1/topologies/:id/connections/:connectionId
func (c *Controller) RemoveConnection(ctx *gin.Context) {
	if err := c.service.RemoveConnection(ctxutil.WithRequestID(ctx), ctx.Param("id"), ctx.Param("connectionId")); err != nil {
		response.HandleAppError(ctx, err)
		return
	}
	response.HandleNoContent(ctx)
}

// ValidateTopology POST /api/v1/topologies/:id/validate
// 结果写回拓扑状态，校验失败同样返回 200，由 is_valid 区分
func (c *Controller) ValidateTopology(ctx *gin.Context) {
	report, err := c.service.ValidateTopology(ctxutil.WithRequestID(ctx), ctx.Param("id"))
	if err != nil {
		response.HandleAppError(ctx, err)
		return
	}
	response.HandleSuccess(ctx, report, "topology validated")
}

// CheckTopology GET /api/v1/topologies/:id/check
func (c *Controller) CheckTopology(ctx *gin.Context) {
	report, err := c.service.CheckTopology(ctxutil.WithRequestID(ctx), ctx.Param("id"))
	if err != nil {
		response.HandleAppError(ctx, err)
		return
	}
	response.HandleSuccess(ctx, report, "topology checked")
}

// AnalyzeConnectivity GET /api/v1/topologies/:id/connectivity
func (c *Controller) AnalyzeConnectivity(ctx *gin.Context) {
	report, err := c.service.AnalyzeConnectivity(ctxutil.WithRequestID(ctx), ctx.Param("id"))
	if err != nil {
		response.HandleAppError(ctx, err)
		return
	}
	response.HandleSuccess(ctx, report, "connectivity analyzed")
}

// FindShortestPath GET /api/v1/topologies/:id/path?from=&to=
func (c *Controller) FindShortestPath(ctx *gin.Context) {
	from, to := ctx.Query("from"), ctx.Query("to")
	if from == "" || to == "" {
		response.HandleError(ctx, nil, "from and to are required", http.StatusBadRequest)
		return
	}

	path, err := c.service.FindShortestPath(ctxutil.WithRequestID(ctx), ctx.Param("id"), from, to)
	if err != nil {
		response.HandleAppError(ctx, err)
		return
	}
	response.HandleSuccess(ctx, path, "path computed")
}

// OptimizeTopology GET /api/v1/topologies/:id/optimization
func (c *Controller) OptimizeTopology(ctx *gin.Context) {
	report, err := c.service.OptimizeTopology(ctxutil.WithRequestID(ctx), ctx.Param("id"))
	if err != nil {
		response.HandleAppError(ctx, err)
		return
	}
	response.HandleSuccess(ctx, report, "optimization suggestions generated")
}

// Formats GET /api/v1/formats
func (c *Controller) Formats(ctx *gin.Context) {
	response.HandleSuccess(ctx, c.service.Formats(), "supported formats")
}

// ImportTopology POST /api/v1/topologies/import?format=yaml
// 请求体即文档本身；format 缺省时按 Content-Type 推断
func (c *Controller) ImportTopology(ctx *gin.Context) {
	format := ctx.Query("format")
	if format == "" {
		format = formatFromContentType(ctx.ContentType())
	}
	if format == "" {
		response.HandleError(ctx, nil, "format is required", http.StatusBadRequest)
		return
	}

	topo, err := c.service.ImportTopology(ctxutil.WithRequestID(ctx), format, ctx.Request.Body)
	if err != nil {
		response.HandleAppError(ctx, err)
		return
	}
	response.HandleCreated(ctx, topo, "topology imported successfully")
}

// ExportTopology GET /api/v1/topologies/:id/export?format=json
func (c *Controller) ExportTopology(ctx *gin.Context) {
	format := ctx.DefaultQuery("format", "json")

	result, err := c.service.ExportTopology(ctxutil.WithRequestID(ctx), ctx.Param("id"), format)
	if err != nil {
		response.HandleAppError(ctx, err)
		return
	}
	ctx.Header("Content-Disposition", "attachment; filename=\""+ctx.Param("id")+"."+result.Format+"\"")
	ctx.Data(http.StatusOK, result.ContentType, result.Data)
}

func formatFromContentType(ct string) string {
	switch {
	case strings.Contains(ct, "yaml"):
		return "yaml"
	case strings.Contains(ct, "json"):
		return "json"
	}
	return ""
}
