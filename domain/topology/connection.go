package topology

import (
	"strings"
)

// Connection edge between two devices. Graph analyses treat it as
// undirected; the rules keep source and target apart for role propagation.
type Connection struct {
	id             string
	sourceID       string
	targetID       string
	connectionType ConnectionType
	properties     Properties
	active         bool
}

// NewConnection creates an active connection. Port discriminators are read
// from the "source_port" and "target_port" properties.
func NewConnection(id, sourceID, targetID string, connectionType ConnectionType, props Properties) (*Connection, error) {
	if strings.TrimSpace(id) == "" {
		return nil, NewInvalidDeviceError("id", "connection id cannot be empty")
	}
	if sourceID == "" || targetID == "" {
		return nil, NewInvalidDeviceError("endpoint", "connection endpoints cannot be empty")
	}
	if connectionType == "" {
		connectionType = ConnectionTypeBidirectional
	}
	for _, key := range []string{PropSourcePort, PropTargetPort} {
		if v, ok := props.Get(key); ok && v != nil {
			if _, ok := props.GetInt(key); !ok {
				return nil, NewInvalidDeviceError(key, key+" must be an integer")
			}
		}
	}
	return &Connection{
		id:             id,
		sourceID:       sourceID,
		targetID:       targetID,
		connectionType: connectionType,
		properties:     props,
		active:         true,
	}, nil
}

// RebuildConnection restores a stored connection including its active flag
func RebuildConnection(id, sourceID, targetID string, connectionType ConnectionType, props Properties, active bool) (*Connection, error) {
	c, err := NewConnection(id, sourceID, targetID, connectionType, props)
	if err != nil {
		return nil, err
	}
	c.active = active
	return c, nil
}

func (c *Connection) ID() string               { return c.id }
func (c *Connection) SourceID() string         { return c.sourceID }
func (c *Connection) TargetID() string         { return c.targetID }
func (c *Connection) Type() ConnectionType     { return c.connectionType }
func (c *Connection) Properties() Properties   { return c.properties }
func (c *Connection) IsActive() bool           { return c.active }
func (c *Connection) SourcePort() (int, bool)  { return c.properties.GetInt(PropSourcePort) }
func (c *Connection) TargetPort() (int, bool)  { return c.properties.GetInt(PropTargetPort) }
func (c *Connection) Touches(deviceID string) bool {
	return c.sourceID == deviceID || c.targetID == deviceID
}

// Peer returns the opposite endpoint of deviceID
func (c *Connection) Peer(deviceID string) string {
	if c.sourceID == deviceID {
		return c.targetID
	}
	return c.sourceID
}

// PortAt returns the port discriminator on deviceID's end of the connection
func (c *Connection) PortAt(deviceID string) (int, bool) {
	if c.sourceID == deviceID {
		return c.SourcePort()
	}
	if c.targetID == deviceID {
		return c.TargetPort()
	}
	return 0, false
}

// SamePair reports whether both connections join the same unordered device pair
func (c *Connection) SamePair(other *Connection) bool {
	return (c.sourceID == other.sourceID && c.targetID == other.targetID) ||
		(c.sourceID == other.targetID && c.targetID == other.sourceID)
}

// PairKey canonical key of the unordered device pair
func (c *Connection) PairKey() string {
	a, b := c.sourceID, c.targetID
	if b < a {
		a, b = b, a
	}
	return a + "\x00" + b
}

func (c *Connection) clone() *Connection {
	cp := *c
	return &cp
}

func samePort(a, b *Connection) bool {
	pa, okA := a.TargetPort()
	pb, okB := b.TargetPort()
	if okA != okB {
		return false
	}
	return !okA || pa == pb
}
