package po

import (
	"encoding/json"
	"fmt"
	"time"

	"microgrid/domain/topology"
	"microgrid/infrastructure/snapshot"
)

// TopologyPO Topology persistence object
// Note: Only used for database mapping, does not contain any business logic
// Defining GORM associations is prohibited here
type TopologyPO struct {
	ID          string    `gorm:"primaryKey;size:64"`
	Name        string    `gorm:"size:255;not null;index"`
	Description string    `gorm:"type:text"`
	Status      string    `gorm:"size:20;not null;index"`
	Version     int       `gorm:"not null"`
	CreatedAt   time.Time `gorm:"index"`
	UpdatedAt   time.Time
}

func (TopologyPO) TableName() string {
	return "topologies"
}

// DevicePO device row; ids are unique within one topology
type DevicePO struct {
	TopologyID string   `gorm:"primaryKey;size:64"`
	ID         string   `gorm:"primaryKey;size:64"`
	Type       string   `gorm:"size:32;not null"`
	Properties string   `gorm:"type:json;not null"`
	PosX       *float64 `gorm:"column:pos_x"`
	PosY       *float64 `gorm:"column:pos_y"`
	PosZ       *float64 `gorm:"column:pos_z"`
	Latitude   *float64
	Longitude  *float64
	Altitude   *float64
	Active     bool `gorm:"not null"`
	Seq        int  `gorm:"not null"` // insertion order
}

func (DevicePO) TableName() string {
	return "topology_devices"
}

// ConnectionPO connection row; source/target reference device ids of the same topology
type ConnectionPO struct {
	TopologyID string `gorm:"primaryKey;size:64"`
	ID         string `gorm:"primaryKey;size:64"`
	SourceID   string `gorm:"size:64;not null;index"`
	TargetID   string `gorm:"size:64;not null;index"`
	Type       string `gorm:"size:20;not null"`
	Properties string `gorm:"type:json;not null"`
	Active     bool   `gorm:"not null"`
	Seq        int    `gorm:"not null"`
}

func (ConnectionPO) TableName() string {
	return "topology_connections"
}

// FromTopologyDomain Convert the aggregate to rows
func FromTopologyDomain(t *topology.MicrogridTopology) (*TopologyPO, []DevicePO, []ConnectionPO, error) {
	topologyPO := &TopologyPO{
		ID:          t.ID(),
		Name:        t.Name(),
		Description: t.Description(),
		Status:      string(t.Status()),
		Version:     t.Version(),
		CreatedAt:   t.CreatedAt(),
		UpdatedAt:   t.UpdatedAt(),
	}

	doc := snapshot.FromDomain(t)

	devicePOs := make([]DevicePO, len(doc.Devices))
	for i, d := range doc.Devices {
		props, err := marshalProps(d.Properties)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("device %s: %w", d.ID, err)
		}
		row := DevicePO{
			TopologyID: t.ID(),
			ID:         d.ID,
			Type:       d.Type,
			Properties: props,
			Active:     d.Active == nil || *d.Active,
			Seq:        i,
		}
		if d.Position != nil {
			row.PosX, row.PosY, row.PosZ = &d.Position.X, &d.Position.Y, &d.Position.Z
		}
		if d.Location != nil {
			row.Latitude, row.Longitude, row.Altitude = &d.Location.Latitude, &d.Location.Longitude, &d.Location.Altitude
		}
		devicePOs[i] = row
	}

	connectionPOs := make([]ConnectionPO, len(doc.Connections))
	for i, c := range doc.Connections {
		props, err := marshalProps(c.Properties)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connection %s: %w", c.ID, err)
		}
		connectionPOs[i] = ConnectionPO{
			TopologyID: t.ID(),
			ID:         c.ID,
			SourceID:   c.SourceID,
			TargetID:   c.TargetID,
			Type:       c.Type,
			Properties: props,
			Active:     c.Active == nil || *c.Active,
			Seq:        i,
		}
	}

	return topologyPO, devicePOs, connectionPOs, nil
}

// ToDomain Rebuild the aggregate; rows must already be ordered by Seq
func (p *TopologyPO) ToDomain(devices []DevicePO, connections []ConnectionPO) (*topology.MicrogridTopology, error) {
	doc := &snapshot.Document{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Status:      p.Status,
		Version:     p.Version,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
		Devices:     make([]snapshot.DeviceDoc, 0, len(devices)),
		Connections: make([]snapshot.ConnectionDoc, 0, len(connections)),
	}

	for _, row := range devices {
		props, err := unmarshalProps(row.Properties)
		if err != nil {
			return nil, fmt.Errorf("device %s: %w", row.ID, err)
		}
		active := row.Active
		dd := snapshot.DeviceDoc{ID: row.ID, Type: row.Type, Properties: props, Active: &active}
		if row.PosX != nil && row.PosY != nil {
			dd.Position = &snapshot.PositionDoc{X: *row.PosX, Y: *row.PosY, Z: deref(row.PosZ)}
		}
		if row.Latitude != nil && row.Longitude != nil {
			dd.Location = &snapshot.LocationDoc{Latitude: *row.Latitude, Longitude: *row.Longitude, Altitude: deref(row.Altitude)}
		}
		doc.Devices = append(doc.Devices, dd)
	}

	for _, row := range connections {
		props, err := unmarshalProps(row.Properties)
		if err != nil {
			return nil, fmt.Errorf("connection %s: %w", row.ID, err)
		}
		active := row.Active
		doc.Connections = append(doc.Connections, snapshot.ConnectionDoc{
			ID:         row.ID,
			SourceID:   row.SourceID,
			TargetID:   row.TargetID,
			Type:       row.Type,
			Properties: props,
			Active:     &active,
		})
	}

	return doc.Restore()
}

func marshalProps(m map[string]any) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func unmarshalProps(s string) (map[string]any, error) {
	if s == "" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, err
	}
	return m, nil
}

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
