package topology

import "time"

// CreateTopologyRequest 创建拓扑入参
type CreateTopologyRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

// UpdateTopologyRequest 修改名称与描述
type UpdateTopologyRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

// UpdateStatusRequest 直接设置状态
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// ListTopologiesQuery 列表过滤条件，均为可选
type ListTopologiesQuery struct {
	Status        string    `form:"status"`
	NameContains  string    `form:"name"`
	CreatedAfter  time.Time `form:"created_after" time_format:"2006-01-02T15:04:05Z07:00"`
	CreatedBefore time.Time `form:"created_before" time_format:"2006-01-02T15:04:05Z07:00"`
	Page          int       `form:"page" binding:"omitempty,min=1"`
	PageSize      int       `form:"page_size" binding:"omitempty,min=1,max=100"`
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// TopologyPage 一页列表结果，Total 为过滤后的总数
type TopologyPage struct {
	Items    []*TopologySummary
	Total    int64
	Page     int
	PageSize int
}

type PositionDTO struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z,omitempty"`
}

type LocationDTO struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Altitude  float64 `json:"altitude,omitempty"`
}

// AddDeviceRequest ID 为空时由分配器生成
type AddDeviceRequest struct {
	ID         string         `json:"id"`
	Type       string         `json:"type" binding:"required"`
	Properties map[string]any `json:"properties"`
	Position   *PositionDTO   `json:"position"`
	Location   *LocationDTO   `json:"location"`
	Active     *bool          `json:"active"`
}

// UpdateDeviceRequest nil 字段保持不变；properties 与现有属性合并
type UpdateDeviceRequest struct {
	Properties map[string]any `json:"properties"`
	Position   *PositionDTO   `json:"position"`
	Location   *LocationDTO   `json:"location"`
	Active     *bool          `json:"active"`
}

// CreateConnectionRequest ID 为空时生成 UUID；type 为空即 BIDIRECTIONAL
type CreateConnectionRequest struct {
	ID         string         `json:"id"`
	SourceID   string         `json:"source_id" binding:"required"`
	TargetID   string         `json:"target_id" binding:"required"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
}

// UpdateConnectionRequest properties 整体替换（端口键保留）
type UpdateConnectionRequest struct {
	Properties map[string]any `json:"properties"`
	Active     *bool          `json:"active"`
}

// TopologyResponse 完整拓扑
type TopologyResponse struct {
	ID              string               `json:"id"`
	Name            string               `json:"name"`
	Description     string               `json:"description"`
	Status          string               `json:"status"`
	Version         int                  `json:"version"`
	DeviceCount     int                  `json:"device_count"`
	ConnectionCount int                  `json:"connection_count"`
	Devices         []DeviceResponse     `json:"devices"`
	Connections     []ConnectionResponse `json:"connections"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
}

// TopologySummary 列表项，不含设备与连接
type TopologySummary struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	Status          string    `json:"status"`
	Version         int       `json:"version"`
	DeviceCount     int       `json:"device_count"`
	ConnectionCount int       `json:"connection_count"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type DeviceResponse struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Category   string         `json:"category"`
	Properties map[string]any `json:"properties"`
	Position   *PositionDTO   `json:"position,omitempty"`
	Location   *LocationDTO   `json:"location,omitempty"`
	Active     bool           `json:"active"`
}

type ConnectionResponse struct {
	ID         string         `json:"id"`
	SourceID   string         `json:"source_id"`
	TargetID   string         `json:"target_id"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
	Active     bool           `json:"active"`
}

// ValidationResponse report plus the status it led to
type ValidationResponse struct {
	TopologyID string   `json:"topology_id"`
	Status     string   `json:"status"`
	IsValid    bool     `json:"is_valid"`
	Errors     []string `json:"errors"`
	Checks     struct {
		ValidTopology       bool `json:"valid_topology"`
		CompleteTopology    bool `json:"complete_topology"`
		AllDevicesConnected bool `json:"all_devices_connected"`
	} `json:"checks"`
}

// PathResponse empty Path means the devices are not connected
type PathResponse struct {
	From  string   `json:"from"`
	To    string   `json:"to"`
	Found bool     `json:"found"`
	Hops  int      `json:"hops"`
	Path  []string `json:"path"`
}

// ExportResult encoded document and its media type
type ExportResult struct {
	Format      string
	ContentType string
	Data        []byte
}
