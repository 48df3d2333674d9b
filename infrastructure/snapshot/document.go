/*
Package snapshot 拓扑的可序列化快照

Document 是拓扑聚合在存储和文件交换时使用的扁平结构：
  - sqlite 文档仓储、redis 缓存用 Restore 原样还原（含规则派生属性）
  - 文件导入用 Devices/Connections 逐个重放到新聚合上，派生属性由规则重新计算
*/
package snapshot

import (
	"fmt"
	"time"

	"microgrid/domain/shared"
	"microgrid/domain/topology"
)

// Document topology snapshot
type Document struct {
	ID          string          `json:"id,omitempty" yaml:"id,omitempty"`
	Name        string          `json:"name" yaml:"name"`
	Description string          `json:"description,omitempty" yaml:"description,omitempty"`
	Status      string          `json:"status,omitempty" yaml:"status,omitempty"`
	Version     int             `json:"version,omitempty" yaml:"version,omitempty"`
	CreatedAt   time.Time       `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	UpdatedAt   time.Time       `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
	Devices     []DeviceDoc     `json:"devices" yaml:"devices"`
	Connections []ConnectionDoc `json:"connections" yaml:"connections"`
}

type DeviceDoc struct {
	ID         string         `json:"id" yaml:"id"`
	Type       string         `json:"type" yaml:"type"`
	Properties map[string]any `json:"properties,omitempty" yaml:"properties,omitempty"`
	Position   *PositionDoc   `json:"position,omitempty" yaml:"position,omitempty"`
	Location   *LocationDoc   `json:"location,omitempty" yaml:"location,omitempty"`
	Active     *bool          `json:"active,omitempty" yaml:"active,omitempty"`
}

type PositionDoc struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z,omitempty" yaml:"z,omitempty"`
}

type LocationDoc struct {
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
	Altitude  float64 `json:"altitude,omitempty" yaml:"altitude,omitempty"`
}

type ConnectionDoc struct {
	ID         string         `json:"id" yaml:"id"`
	SourceID   string         `json:"source_id" yaml:"source_id"`
	TargetID   string         `json:"target_id" yaml:"target_id"`
	Type       string         `json:"type,omitempty" yaml:"type,omitempty"`
	Properties map[string]any `json:"properties,omitempty" yaml:"properties,omitempty"`
	Active     *bool          `json:"active,omitempty" yaml:"active,omitempty"`
}

// ============================================================================
// Domain -> Document
// ============================================================================

// FromDomain captures the full aggregate state
func FromDomain(t *topology.MicrogridTopology) *Document {
	doc := &Document{
		ID:          t.ID(),
		Name:        t.Name(),
		Description: t.Description(),
		Status:      string(t.Status()),
		Version:     t.Version(),
		CreatedAt:   t.CreatedAt(),
		UpdatedAt:   t.UpdatedAt(),
		Devices:     make([]DeviceDoc, 0, t.DeviceCount()),
		Connections: make([]ConnectionDoc, 0, t.ConnectionCount()),
	}
	for _, d := range t.Devices() {
		doc.Devices = append(doc.Devices, FromDevice(d))
	}
	for _, c := range t.Connections() {
		doc.Connections = append(doc.Connections, FromConnection(c))
	}
	return doc
}

func FromDevice(d topology.Device) DeviceDoc {
	active := d.IsActive()
	dd := DeviceDoc{
		ID:         d.ID(),
		Type:       string(d.Type()),
		Properties: d.Properties().ToMap(),
		Active:     &active,
	}
	if p, ok := d.Position(); ok {
		dd.Position = &PositionDoc{X: p.X(), Y: p.Y(), Z: p.Z()}
	}
	if l, ok := d.Location(); ok {
		dd.Location = &LocationDoc{Latitude: l.Latitude(), Longitude: l.Longitude(), Altitude: l.Altitude()}
	}
	return dd
}

func FromConnection(c *topology.Connection) ConnectionDoc {
	active := c.IsActive()
	return ConnectionDoc{
		ID:         c.ID(),
		SourceID:   c.SourceID(),
		TargetID:   c.TargetID(),
		Type:       string(c.Type()),
		Properties: c.Properties().ToMap(),
		Active:     &active,
	}
}

// ============================================================================
// Document -> Domain
// ============================================================================

// Restore rebuilds the aggregate exactly as stored. Rules are not replayed.
func (doc *Document) Restore() (*topology.MicrogridTopology, error) {
	status := topology.StatusCreated
	if doc.Status != "" {
		parsed, err := topology.ParseStatus(doc.Status)
		if err != nil {
			return nil, err
		}
		status = parsed
	}

	devices := make([]topology.Device, 0, len(doc.Devices))
	for _, dd := range doc.Devices {
		d, err := dd.ToDevice(false)
		if err != nil {
			return nil, err
		}
		devices = append(devices, d)
	}
	conns := make([]*topology.Connection, 0, len(doc.Connections))
	for _, cd := range doc.Connections {
		c, err := cd.ToConnection()
		if err != nil {
			return nil, err
		}
		conns = append(conns, c)
	}

	return topology.RebuildFromDTO(topology.ReconstructionDTO{
		ID:          doc.ID,
		Name:        doc.Name,
		Description: doc.Description,
		Status:      status,
		Devices:     devices,
		Connections: conns,
		Version:     doc.Version,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}), nil
}

// ToDevice builds the domain device. stripDerived drops the keys the
// connection rules own, for documents that will be replayed.
func (dd DeviceDoc) ToDevice(stripDerived bool) (topology.Device, error) {
	dt, err := topology.ParseDeviceType(dd.Type)
	if err != nil {
		return nil, fmt.Errorf("device %s: %w", dd.ID, err)
	}
	props := topology.NewProperties(dd.Properties)
	if stripDerived {
		props = props.WithoutDerived()
	}

	var opts []topology.DeviceOption
	if dd.Position != nil {
		opts = append(opts, topology.WithPosition(shared.NewPosition3D(dd.Position.X, dd.Position.Y, dd.Position.Z)))
	}
	if dd.Location != nil {
		loc, err := shared.NewLocation(dd.Location.Latitude, dd.Location.Longitude, dd.Location.Altitude)
		if err != nil {
			return nil, fmt.Errorf("device %s: %w", dd.ID, err)
		}
		opts = append(opts, topology.WithLocation(loc))
	}
	if dd.Active != nil && !*dd.Active {
		opts = append(opts, topology.Inactive())
	}
	return topology.NewDevice(dd.ID, dt, props, opts...)
}

func (cd ConnectionDoc) ToConnection() (*topology.Connection, error) {
	ct, err := topology.ParseConnectionType(cd.Type)
	if err != nil {
		return nil, fmt.Errorf("connection %s: %w", cd.ID, err)
	}
	active := cd.Active == nil || *cd.Active
	return topology.RebuildConnection(cd.ID, cd.SourceID, cd.TargetID, ct, topology.NewProperties(cd.Properties), active)
}
