/*
Package topology 微电网拓扑子域 - DDD 核心层

拓扑是一张带类型的设备图：母线、线路、变压器、开关、功率设备和量测设备
通过连接组成电气网络。MicrogridTopology 作为聚合根是唯一的修改边界：

  - 每次变更要么完整成功（图更新 + 事件入队），要么完全失败（状态不变）
  - 连接在提交前由 ConnectionRules 检查，并计算需要写回端点设备的派生属性
  - 连通性、校验、优化分析均为只读，不修改聚合
*/
package topology

import (
	"fmt"
	"strings"
	"time"

	"microgrid/domain/shared"

	"github.com/google/uuid"
)

// MicrogridTopology 拓扑聚合根
// 设备与连接按插入顺序保存，保证遍历结果确定
type MicrogridTopology struct {
	id          string
	name        string
	description string
	status      Status

	devices         map[string]Device
	deviceOrder     []string
	connections     map[string]*Connection
	connectionOrder []string

	version   int // 乐观锁版本号，由持久化成功后递增
	createdAt time.Time
	updatedAt time.Time

	shared.EventRecorder
	isNew bool
	rules *ConnectionRules
}

// ============================================================================
// Factory Methods
// ============================================================================

// NewMicrogridTopology 创建空拓扑，状态为 CREATED
func NewMicrogridTopology(name, description string) (*MicrogridTopology, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewValidationError("topology", "name", "name cannot be empty")
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate topology ID: %w", err)
	}

	now := time.Now()
	t := &MicrogridTopology{
		id:          id.String(),
		name:        name,
		description: description,
		status:      StatusCreated,
		devices:     make(map[string]Device),
		connections: make(map[string]*Connection),
		createdAt:   now,
		updatedAt:   now,
		isNew:       true,
		rules:       NewConnectionRules(),
	}
	t.Record(NewTopologyCreatedEvent(t.id, t.name, t.description))
	return t, nil
}

// ============================================================================
// ReconstructionDTO - 仅供仓储层使用
// ============================================================================

// ReconstructionDTO 从存储重建拓扑的数据
// 重建不重放连接规则，也不产生事件；派生属性已经保存在设备属性中
type ReconstructionDTO struct {
	ID          string
	Name        string
	Description string
	Status      Status
	Devices     []Device
	Connections []*Connection
	Version     int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RebuildFromDTO 从 DTO 重建聚合根
// ⚠️ 仅在仓储实现中调用，应用层请使用 NewMicrogridTopology
func RebuildFromDTO(dto ReconstructionDTO) *MicrogridTopology {
	t := &MicrogridTopology{
		id:          dto.ID,
		name:        dto.Name,
		description: dto.Description,
		status:      dto.Status,
		devices:     make(map[string]Device, len(dto.Devices)),
		connections: make(map[string]*Connection, len(dto.Connections)),
		version:     dto.Version,
		createdAt:   dto.CreatedAt,
		updatedAt:   dto.UpdatedAt,
		isNew:       false,
		rules:       NewConnectionRules(),
	}
	if t.status == "" {
		t.status = StatusCreated
	}
	for _, d := range dto.Devices {
		if d == nil {
			continue
		}
		if _, exists := t.devices[d.ID()]; exists {
			continue
		}
		t.devices[d.ID()] = cloneDevice(d)
		t.deviceOrder = append(t.deviceOrder, d.ID())
	}
	for _, c := range dto.Connections {
		if c == nil {
			continue
		}
		if _, exists := t.connections[c.ID()]; exists {
			continue
		}
		t.connections[c.ID()] = c.clone()
		t.connectionOrder = append(t.connectionOrder, c.ID())
	}
	return t
}

// Clone 深拷贝聚合状态（不含待发布事件），供内存仓储隔离快照
func (t *MicrogridTopology) Clone() *MicrogridTopology {
	cp := RebuildFromDTO(ReconstructionDTO{
		ID:          t.id,
		Name:        t.name,
		Description: t.description,
		Status:      t.status,
		Devices:     t.orderedDevices(),
		Connections: t.orderedConnections(),
		Version:     t.version,
		CreatedAt:   t.createdAt,
		UpdatedAt:   t.updatedAt,
	})
	cp.isNew = t.isNew
	return cp
}

// ============================================================================
// Device Operations
// ============================================================================

// AddDevice 添加设备
func (t *MicrogridTopology) AddDevice(d Device) error {
	if d == nil {
		return NewInvalidDeviceError("device", "device cannot be nil")
	}
	if d.Type().Category() == CategoryUnknown {
		return NewInvalidDeviceError("type", fmt.Sprintf("unknown device type %q", d.Type()))
	}
	if _, exists := t.devices[d.ID()]; exists {
		return NewDuplicateDeviceError(d.ID())
	}

	t.devices[d.ID()] = cloneDevice(d)
	t.deviceOrder = append(t.deviceOrder, d.ID())
	t.touch()
	t.Record(NewDeviceAddedEvent(t.id, d.ID(), d.Type()))
	return nil
}

// RemoveDevice 移除设备，设备仍被任何连接引用时拒绝
func (t *MicrogridTopology) RemoveDevice(deviceID string) error {
	d, ok := t.devices[deviceID]
	if !ok {
		return NewDeviceNotFoundError(deviceID)
	}

	var inUse []string
	for _, c := range t.connectionsOf(deviceID) {
		inUse = append(inUse, c.id)
	}
	if len(inUse) > 0 {
		return NewDeviceInUseError(deviceID, inUse)
	}

	delete(t.devices, deviceID)
	t.deviceOrder = removeID(t.deviceOrder, deviceID)
	t.touch()
	t.Record(NewDeviceRemovedEvent(t.id, deviceID, d.Type()))
	return nil
}

// DeviceUpdate 设备的可变部分；nil 字段保持不变
type DeviceUpdate struct {
	Properties *Properties // 与现有属性合并；派生键由连接规则维护，忽略
	Position   *shared.Position
	Location   *shared.Location
	Active     *bool
}

// UpdateDevice 合并属性、移动或启停设备
func (t *MicrogridTopology) UpdateDevice(deviceID string, update DeviceUpdate) error {
	d, ok := t.devices[deviceID]
	if !ok {
		return NewDeviceNotFoundError(deviceID)
	}

	c := d.core()
	if update.Properties != nil {
		c.properties = c.properties.Merge(update.Properties.WithoutDerived())
	}
	if update.Position != nil {
		p := *update.Position
		c.position = &p
	}
	if update.Location != nil {
		l := *update.Location
		c.location = &l
	}
	if update.Active != nil {
		c.active = *update.Active
	}

	t.touch()
	t.Record(NewDeviceUpdatedEvent(t.id, deviceID))
	return nil
}

// ============================================================================
// Connection Operations
// ============================================================================

// AddConnection 添加连接
// 顺序：标识/同端口重复 -> 端点存在 -> 连接规则 -> 提交派生属性
func (t *MicrogridTopology) AddConnection(c *Connection) error {
	if c == nil {
		return NewInvalidDeviceError("connection", "connection cannot be nil")
	}
	if _, exists := t.connections[c.id]; exists {
		return NewDuplicateConnectionError(c.id, "connection id already exists")
	}
	for _, existing := range t.orderedConnections() {
		if existing.SamePair(c) && samePort(existing, c) {
			return NewDuplicateConnectionError(c.id,
				fmt.Sprintf("devices %s and %s are already connected by %s", c.sourceID, c.targetID, existing.id))
		}
	}

	source, ok := t.devices[c.sourceID]
	if !ok {
		return NewDeviceNotFoundError(c.sourceID)
	}
	target, ok := t.devices[c.targetID]
	if !ok {
		return NewDeviceNotFoundError(c.targetID)
	}

	plan, err := t.rules.Check(t, c, source, target)
	if err != nil {
		return err
	}

	t.connections[c.id] = c.clone()
	t.connectionOrder = append(t.connectionOrder, c.id)
	for id, props := range plan {
		if d, ok := t.devices[id]; ok {
			d.core().properties = props
		}
	}
	t.touch()
	t.Record(NewConnectionCreatedEvent(t.id, c.id, c.sourceID, c.targetID))
	return nil
}

// RemoveConnection 移除连接
// 已写入端点的派生属性（from_bus 等）不会回滚
func (t *MicrogridTopology) RemoveConnection(connectionID string) error {
	if _, ok := t.connections[connectionID]; !ok {
		return NewInvalidTopologyError("connection not found: " + connectionID)
	}

	delete(t.connections, connectionID)
	t.connectionOrder = removeID(t.connectionOrder, connectionID)
	t.touch()
	t.Record(NewConnectionRemovedEvent(t.id, connectionID))
	return nil
}

// UpdateConnection 替换连接的用户属性，端口键保持不变
func (t *MicrogridTopology) UpdateConnection(connectionID string, props Properties) error {
	c, ok := t.connections[connectionID]
	if !ok {
		return NewInvalidTopologyError("connection not found: " + connectionID)
	}

	next := props.Without(PropSourcePort).Without(PropTargetPort)
	for _, key := range []string{PropSourcePort, PropTargetPort} {
		if v, ok := c.properties.Get(key); ok {
			next = next.With(key, v)
		}
	}
	c.properties = next

	t.touch()
	t.Record(NewConnectionUpdatedEvent(t.id, connectionID))
	return nil
}

// SetConnectionActive 启停连接；停用的连接不参与连通性分析
func (t *MicrogridTopology) SetConnectionActive(connectionID string, active bool) error {
	c, ok := t.connections[connectionID]
	if !ok {
		return NewInvalidTopologyError("connection not found: " + connectionID)
	}
	if c.active == active {
		return nil
	}
	c.active = active

	t.touch()
	t.Record(NewConnectionUpdatedEvent(t.id, connectionID))
	return nil
}

// ============================================================================
// Topology State
// ============================================================================

// UpdateStatus 无条件设置状态
func (t *MicrogridTopology) UpdateStatus(status Status) {
	t.status = status
	t.touch()
	t.Record(NewTopologyUpdatedEvent(t.id, t.name, t.description, t.status))
}

// UpdateInfo 修改名称与描述
func (t *MicrogridTopology) UpdateInfo(name, description string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return shared.NewValidationError("topology", "name", "name cannot be empty")
	}
	t.name = name
	t.description = description
	t.touch()
	t.Record(NewTopologyUpdatedEvent(t.id, t.name, t.description, t.status))
	return nil
}

// ApplyValidation 根据校验报告设置 VALIDATED / INVALID，并记录对应的校验事件
func (t *MicrogridTopology) ApplyValidation(report ValidationReport) {
	t.touch()
	if report.IsValid {
		t.status = StatusValidated
		t.Record(NewTopologyValidatedEvent(t.id, report))
		return
	}
	t.status = StatusInvalid
	t.Record(NewTopologyValidationFailedEvent(t.id, report.Errors))
}

// IncrementVersionForSave 持久化成功后由仓储调用
func (t *MicrogridTopology) IncrementVersionForSave() {
	t.version++
	t.isNew = false
	t.updatedAt = time.Now()
}

func (t *MicrogridTopology) touch() { t.updatedAt = time.Now() }

// ============================================================================
// Getters
// ============================================================================

func (t *MicrogridTopology) ID() string           { return t.id }
func (t *MicrogridTopology) Name() string         { return t.name }
func (t *MicrogridTopology) Description() string  { return t.description }
func (t *MicrogridTopology) Status() Status       { return t.status }
func (t *MicrogridTopology) Version() int         { return t.version }
func (t *MicrogridTopology) CreatedAt() time.Time { return t.createdAt }
func (t *MicrogridTopology) UpdatedAt() time.Time { return t.updatedAt }
func (t *MicrogridTopology) IsNew() bool          { return t.isNew }
func (t *MicrogridTopology) DeviceCount() int     { return len(t.devices) }
func (t *MicrogridTopology) ConnectionCount() int { return len(t.connections) }

// HasDevice reports whether the device id exists
func (t *MicrogridTopology) HasDevice(deviceID string) bool {
	_, ok := t.devices[deviceID]
	return ok
}

// Device 返回设备副本
func (t *MicrogridTopology) Device(deviceID string) (Device, error) {
	d, ok := t.devices[deviceID]
	if !ok {
		return nil, NewDeviceNotFoundError(deviceID)
	}
	return cloneDevice(d), nil
}

// Connection 返回连接副本
func (t *MicrogridTopology) Connection(connectionID string) (*Connection, error) {
	c, ok := t.connections[connectionID]
	if !ok {
		return nil, NewInvalidTopologyError("connection not found: " + connectionID)
	}
	return c.clone(), nil
}

// Devices 按插入顺序返回设备副本
func (t *MicrogridTopology) Devices() []Device {
	out := make([]Device, 0, len(t.deviceOrder))
	for _, d := range t.orderedDevices() {
		out = append(out, cloneDevice(d))
	}
	return out
}

// Connections 按插入顺序返回连接副本
func (t *MicrogridTopology) Connections() []*Connection {
	out := make([]*Connection, 0, len(t.connectionOrder))
	for _, c := range t.orderedConnections() {
		out = append(out, c.clone())
	}
	return out
}

// ConnectionsOf 返回引用该设备的连接副本
func (t *MicrogridTopology) ConnectionsOf(deviceID string) []*Connection {
	internal := t.connectionsOf(deviceID)
	out := make([]*Connection, 0, len(internal))
	for _, c := range internal {
		out = append(out, c.clone())
	}
	return out
}

// ============================================================================
// Internal views (no copies, package use only)
// ============================================================================

func (t *MicrogridTopology) orderedDevices() []Device {
	out := make([]Device, 0, len(t.deviceOrder))
	for _, id := range t.deviceOrder {
		out = append(out, t.devices[id])
	}
	return out
}

func (t *MicrogridTopology) orderedConnections() []*Connection {
	out := make([]*Connection, 0, len(t.connectionOrder))
	for _, id := range t.connectionOrder {
		out = append(out, t.connections[id])
	}
	return out
}

func (t *MicrogridTopology) connectionsOf(deviceID string) []*Connection {
	var out []*Connection
	for _, id := range t.connectionOrder {
		if c := t.connections[id]; c.Touches(deviceID) {
			out = append(out, c)
		}
	}
	return out
}

func (t *MicrogridTopology) device(deviceID string) (Device, bool) {
	d, ok := t.devices[deviceID]
	return d, ok
}

func removeID(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			out := make([]string, 0, len(ids)-1)
			out = append(out, ids[:i]...)
			return append(out, ids[i+1:]...)
		}
	}
	return ids
}

var _ shared.AggregateRoot = (*MicrogridTopology)(nil)
