package topology

import (
	"context"
	"strings"
	"time"

	"microgrid/domain/shared"
)

// ============================================================================
// Topology specifications
// ============================================================================

// ValidTopologySpecification non-empty device set and every connection endpoint exists
type ValidTopologySpecification struct{}

func (ValidTopologySpecification) IsSatisfiedBy(ctx context.Context, t *MicrogridTopology) bool {
	if len(t.devices) == 0 {
		return false
	}
	for _, c := range t.connections {
		if _, ok := t.devices[c.sourceID]; !ok {
			return false
		}
		if _, ok := t.devices[c.targetID]; !ok {
			return false
		}
	}
	return true
}

// CompleteTopologySpecification every device appears in at least one connection
type CompleteTopologySpecification struct{}

func (CompleteTopologySpecification) IsSatisfiedBy(ctx context.Context, t *MicrogridTopology) bool {
	connected := make(map[string]bool, len(t.devices))
	for _, c := range t.connections {
		connected[c.sourceID] = true
		connected[c.targetID] = true
	}
	for id := range t.devices {
		if !connected[id] {
			return false
		}
	}
	return true
}

// DeviceExistsSpecification the topology contains DeviceID
type DeviceExistsSpecification struct {
	DeviceID string
}

func (spec DeviceExistsSpecification) IsSatisfiedBy(ctx context.Context, t *MicrogridTopology) bool {
	_, ok := t.devices[spec.DeviceID]
	return ok
}

// ByStatusSpecification filters topologies by status
type ByStatusSpecification struct {
	Status Status
}

func (spec ByStatusSpecification) IsSatisfiedBy(ctx context.Context, t *MicrogridTopology) bool {
	return t.status == spec.Status
}

// NameContainsSpecification case-insensitive substring match on the name
type NameContainsSpecification struct {
	Fragment string
}

func (spec NameContainsSpecification) IsSatisfiedBy(ctx context.Context, t *MicrogridTopology) bool {
	return strings.Contains(strings.ToLower(t.name), strings.ToLower(spec.Fragment))
}

// CreatedBetweenSpecification filters by creation time; zero bounds are ignored
type CreatedBetweenSpecification struct {
	Start time.Time
	End   time.Time
}

func (spec CreatedBetweenSpecification) IsSatisfiedBy(ctx context.Context, t *MicrogridTopology) bool {
	if !spec.Start.IsZero() && t.createdAt.Before(spec.Start) {
		return false
	}
	if !spec.End.IsZero() && t.createdAt.After(spec.End) {
		return false
	}
	return true
}

// ============================================================================
// Connection specifications
// ============================================================================

// ConnectionValidSpecification source and target differ
type ConnectionValidSpecification struct{}

func (ConnectionValidSpecification) IsSatisfiedBy(ctx context.Context, c *Connection) bool {
	return c.sourceID != c.targetID
}

// ActiveConnectionSpecification connection contributes to the graph
var ActiveConnectionSpecification = shared.SpecFunc[*Connection](func(ctx context.Context, c *Connection) bool {
	return c.active
})

// ============================================================================
// Helper constructors
// ============================================================================

func NewValidTopologySpecification() shared.Specification[*MicrogridTopology] {
	return ValidTopologySpecification{}
}

func NewCompleteTopologySpecification() shared.Specification[*MicrogridTopology] {
	return CompleteTopologySpecification{}
}

func NewDeviceExistsSpecification(deviceID string) shared.Specification[*MicrogridTopology] {
	return DeviceExistsSpecification{DeviceID: deviceID}
}

func NewByStatusSpecification(status Status) shared.Specification[*MicrogridTopology] {
	return ByStatusSpecification{Status: status}
}

func NewNameContainsSpecification(fragment string) shared.Specification[*MicrogridTopology] {
	return NameContainsSpecification{Fragment: fragment}
}

func NewCreatedBetweenSpecification(start, end time.Time) shared.Specification[*MicrogridTopology] {
	return CreatedBetweenSpecification{Start: start, End: end}
}

func NewConnectionValidSpecification() shared.Specification[*Connection] {
	return ConnectionValidSpecification{}
}
