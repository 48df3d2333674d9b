package topology

import (
	"time"

	"microgrid/domain/shared"
)

// Event names
const (
	EventTopologyCreated          = "topology.created"
	EventTopologyUpdated          = "topology.updated"
	EventDeviceAdded              = "topology.device_added"
	EventDeviceUpdated            = "topology.device_updated"
	EventDeviceRemoved            = "topology.device_removed"
	EventConnectionCreated        = "topology.connection_created"
	EventConnectionUpdated        = "topology.connection_updated"
	EventConnectionRemoved        = "topology.connection_removed"
	EventTopologyValidated        = "topology.validated"
	EventTopologyValidationFailed = "topology.validation_failed"
)

// EventNames lists every event the topology context emits
func EventNames() []string {
	return []string{
		EventTopologyCreated, EventTopologyUpdated,
		EventDeviceAdded, EventDeviceUpdated, EventDeviceRemoved,
		EventConnectionCreated, EventConnectionUpdated, EventConnectionRemoved,
		EventTopologyValidated, EventTopologyValidationFailed,
	}
}

type TopologyCreatedEvent struct {
	topologyID  string
	name        string
	description string
	occurredOn  time.Time
}

func NewTopologyCreatedEvent(topologyID, name, description string) *TopologyCreatedEvent {
	return &TopologyCreatedEvent{
		topologyID:  topologyID,
		name:        name,
		description: description,
		occurredOn:  time.Now(),
	}
}

func (e *TopologyCreatedEvent) EventName() string      { return EventTopologyCreated }
func (e *TopologyCreatedEvent) OccurredOn() time.Time  { return e.occurredOn }
func (e *TopologyCreatedEvent) GetAggregateID() string { return e.topologyID }
func (e *TopologyCreatedEvent) Name() string           { return e.name }
func (e *TopologyCreatedEvent) Description() string    { return e.description }

type TopologyUpdatedEvent struct {
	topologyID  string
	name        string
	description string
	status      Status
	occurredOn  time.Time
}

func NewTopologyUpdatedEvent(topologyID, name, description string, status Status) *TopologyUpdatedEvent {
	return &TopologyUpdatedEvent{
		topologyID:  topologyID,
		name:        name,
		description: description,
		status:      status,
		occurredOn:  time.Now(),
	}
}

func (e *TopologyUpdatedEvent) EventName() string      { return EventTopologyUpdated }
func (e *TopologyUpdatedEvent) OccurredOn() time.Time  { return e.occurredOn }
func (e *TopologyUpdatedEvent) GetAggregateID() string { return e.topologyID }
func (e *TopologyUpdatedEvent) Name() string           { return e.name }
func (e *TopologyUpdatedEvent) Description() string    { return e.description }
func (e *TopologyUpdatedEvent) Status() Status         { return e.status }

type DeviceAddedEvent struct {
	topologyID string
	deviceID   string
	deviceType DeviceType
	occurredOn time.Time
}

func NewDeviceAddedEvent(topologyID, deviceID string, deviceType DeviceType) *DeviceAddedEvent {
	return &DeviceAddedEvent{
		topologyID: topologyID,
		deviceID:   deviceID,
		deviceType: deviceType,
		occurredOn: time.Now(),
	}
}

func (e *DeviceAddedEvent) EventName() string      { return EventDeviceAdded }
func (e *DeviceAddedEvent) OccurredOn() time.Time  { return e.occurredOn }
func (e *DeviceAddedEvent) GetAggregateID() string { return e.topologyID }
func (e *DeviceAddedEvent) DeviceID() string       { return e.deviceID }
func (e *DeviceAddedEvent) DeviceType() DeviceType { return e.deviceType }

type DeviceUpdatedEvent struct {
	topologyID string
	deviceID   string
	occurredOn time.Time
}

func NewDeviceUpdatedEvent(topologyID, deviceID string) *DeviceUpdatedEvent {
	return &DeviceUpdatedEvent{
		topologyID: topologyID,
		deviceID:   deviceID,
		occurredOn: time.Now(),
	}
}

func (e *DeviceUpdatedEvent) EventName() string      { return EventDeviceUpdated }
func (e *DeviceUpdatedEvent) OccurredOn() time.Time  { return e.occurredOn }
func (e *DeviceUpdatedEvent) GetAggregateID() string { return e.topologyID }
func (e *DeviceUpdatedEvent) DeviceID() string       { return e.deviceID }

type DeviceRemovedEvent struct {
	topologyID string
	deviceID   string
	deviceType DeviceType
	occurredOn time.Time
}

func NewDeviceRemovedEvent(topologyID, deviceID string, deviceType DeviceType) *DeviceRemovedEvent {
	return &DeviceRemovedEvent{
		topologyID: topologyID,
		deviceID:   deviceID,
		deviceType: deviceType,
		occurredOn: time.Now(),
	}
}

func (e *DeviceRemovedEvent) EventName() string      { return EventDeviceRemoved }
func (e *DeviceRemovedEvent) OccurredOn() time.Time  { return e.occurredOn }
func (e *DeviceRemovedEvent) GetAggregateID() string { return e.topologyID }
func (e *DeviceRemovedEvent) DeviceID() string       { return e.deviceID }
func (e *DeviceRemovedEvent) DeviceType() DeviceType { return e.deviceType }

type ConnectionCreatedEvent struct {
	topologyID   string
	connectionID string
	sourceID     string
	targetID     string
	occurredOn   time.Time
}

func NewConnectionCreatedEvent(topologyID, connectionID, sourceID, targetID string) *ConnectionCreatedEvent {
	return &ConnectionCreatedEvent{
		topologyID:   topologyID,
		connectionID: connectionID,
		sourceID:     sourceID,
		targetID:     targetID,
		occurredOn:   time.Now(),
	}
}

func (e *ConnectionCreatedEvent) EventName() string      { return EventConnectionCreated }
func (e *ConnectionCreatedEvent) OccurredOn() time.Time  { return e.occurredOn }
func (e *ConnectionCreatedEvent) GetAggregateID() string { return e.topologyID }
func (e *ConnectionCreatedEvent) ConnectionID() string   { return e.connectionID }
func (e *ConnectionCreatedEvent) SourceID() string       { return e.sourceID }
func (e *ConnectionCreatedEvent) TargetID() string       { return e.targetID }

type ConnectionUpdatedEvent struct {
	topologyID   string
	connectionID string
	occurredOn   time.Time
}

func NewConnectionUpdatedEvent(topologyID, connectionID string) *ConnectionUpdatedEvent {
	return &ConnectionUpdatedEvent{
		topologyID:   topologyID,
		connectionID: connectionID,
		occurredOn:   time.Now(),
	}
}

func (e *ConnectionUpdatedEvent) EventName() string      { return EventConnectionUpdated }
func (e *ConnectionUpdatedEvent) OccurredOn() time.Time  { return e.occurredOn }
func (e *ConnectionUpdatedEvent) GetAggregateID() string { return e.topologyID }
func (e *ConnectionUpdatedEvent) ConnectionID() string   { return e.connectionID }

type ConnectionRemovedEvent struct {
	topologyID   string
	connectionID string
	occurredOn   time.Time
}

func NewConnectionRemovedEvent(topologyID, connectionID string) *ConnectionRemovedEvent {
	return &ConnectionRemovedEvent{
		topologyID:   topologyID,
		connectionID: connectionID,
		occurredOn:   time.Now(),
	}
}

func (e *ConnectionRemovedEvent) EventName() string      { return EventConnectionRemoved }
func (e *ConnectionRemovedEvent) OccurredOn() time.Time  { return e.occurredOn }
func (e *ConnectionRemovedEvent) GetAggregateID() string { return e.topologyID }
func (e *ConnectionRemovedEvent) ConnectionID() string   { return e.connectionID }

type TopologyValidatedEvent struct {
	topologyID string
	report     ValidationReport
	occurredOn time.Time
}

func NewTopologyValidatedEvent(topologyID string, report ValidationReport) *TopologyValidatedEvent {
	return &TopologyValidatedEvent{
		topologyID: topologyID,
		report:     report,
		occurredOn: time.Now(),
	}
}

func (e *TopologyValidatedEvent) EventName() string        { return EventTopologyValidated }
func (e *TopologyValidatedEvent) OccurredOn() time.Time    { return e.occurredOn }
func (e *TopologyValidatedEvent) GetAggregateID() string   { return e.topologyID }
func (e *TopologyValidatedEvent) Report() ValidationReport { return e.report }

type TopologyValidationFailedEvent struct {
	topologyID string
	errors     []string
	occurredOn time.Time
}

func NewTopologyValidationFailedEvent(topologyID string, errs []string) *TopologyValidationFailedEvent {
	copied := make([]string, len(errs))
	copy(copied, errs)
	return &TopologyValidationFailedEvent{
		topologyID: topologyID,
		errors:     copied,
		occurredOn: time.Now(),
	}
}

func (e *TopologyValidationFailedEvent) EventName() string      { return EventTopologyValidationFailed }
func (e *TopologyValidationFailedEvent) OccurredOn() time.Time  { return e.occurredOn }
func (e *TopologyValidationFailedEvent) GetAggregateID() string { return e.topologyID }
func (e *TopologyValidationFailedEvent) Errors() []string {
	out := make([]string, len(e.errors))
	copy(out, e.errors)
	return out
}

// ============================================================================
// Payloads - flat maps consumed by the outbox and the event stream
// ============================================================================

func (e *TopologyCreatedEvent) Payload() map[string]any {
	return map[string]any{"topology_id": e.topologyID, "name": e.name, "description": e.description}
}

func (e *TopologyUpdatedEvent) Payload() map[string]any {
	return map[string]any{"topology_id": e.topologyID, "name": e.name, "description": e.description, "status": string(e.status)}
}

func (e *DeviceAddedEvent) Payload() map[string]any {
	return map[string]any{"topology_id": e.topologyID, "device_id": e.deviceID, "device_type": string(e.deviceType)}
}

func (e *DeviceUpdatedEvent) Payload() map[string]any {
	return map[string]any{"topology_id": e.topologyID, "device_id": e.deviceID}
}

func (e *DeviceRemovedEvent) Payload() map[string]any {
	return map[string]any{"topology_id": e.topologyID, "device_id": e.deviceID, "device_type": string(e.deviceType)}
}

func (e *ConnectionCreatedEvent) Payload() map[string]any {
	return map[string]any{
		"topology_id":      e.topologyID,
		"connection_id":    e.connectionID,
		"source_device_id": e.sourceID,
		"target_device_id": e.targetID,
	}
}

func (e *ConnectionUpdatedEvent) Payload() map[string]any {
	return map[string]any{"topology_id": e.topologyID, "connection_id": e.connectionID}
}

func (e *ConnectionRemovedEvent) Payload() map[string]any {
	return map[string]any{"topology_id": e.topologyID, "connection_id": e.connectionID}
}

func (e *TopologyValidatedEvent) Payload() map[string]any {
	return map[string]any{
		"topology_id": e.topologyID,
		"is_valid":    e.report.IsValid,
		"checks": map[string]any{
			"valid_topology":        e.report.Checks.ValidTopology,
			"complete_topology":     e.report.Checks.CompleteTopology,
			"all_devices_connected": e.report.Checks.AllDevicesConnected,
		},
	}
}

func (e *TopologyValidationFailedEvent) Payload() map[string]any {
	return map[string]any{"topology_id": e.topologyID, "errors": e.Errors()}
}

var (
	_ shared.PayloadEvent = (*TopologyCreatedEvent)(nil)
	_ shared.PayloadEvent = (*TopologyUpdatedEvent)(nil)
	_ shared.PayloadEvent = (*DeviceAddedEvent)(nil)
	_ shared.PayloadEvent = (*DeviceUpdatedEvent)(nil)
	_ shared.PayloadEvent = (*DeviceRemovedEvent)(nil)
	_ shared.PayloadEvent = (*ConnectionCreatedEvent)(nil)
	_ shared.PayloadEvent = (*ConnectionUpdatedEvent)(nil)
	_ shared.PayloadEvent = (*ConnectionRemovedEvent)(nil)
	_ shared.PayloadEvent = (*TopologyValidatedEvent)(nil)
	_ shared.PayloadEvent = (*TopologyValidationFailedEvent)(nil)
)
