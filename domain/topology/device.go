package topology

import (
	"fmt"
	"strings"

	"microgrid/domain/shared"
)

// Device is a graph node of the topology. The set of implementations is
// closed: *Bus, *Line, *Transformer, *Switch, *PowerDevice and *Meter.
// Devices are read-only outside this package; every change goes through
// MicrogridTopology.
type Device interface {
	ID() string
	Type() DeviceType
	Name() string
	Properties() Properties
	Position() (shared.Position, bool)
	Location() (shared.Location, bool)
	IsActive() bool

	core() *deviceCore
}

// deviceCore is the storage shape shared by every variant
type deviceCore struct {
	id         string
	deviceType DeviceType
	properties Properties
	position   *shared.Position
	location   *shared.Location
	active     bool
}

func (d *deviceCore) ID() string             { return d.id }
func (d *deviceCore) Type() DeviceType       { return d.deviceType }
func (d *deviceCore) Name() string           { return d.properties.GetString(PropName) }
func (d *deviceCore) Properties() Properties { return d.properties }
func (d *deviceCore) IsActive() bool         { return d.active }
func (d *deviceCore) core() *deviceCore      { return d }

func (d *deviceCore) Position() (shared.Position, bool) {
	if d.position == nil {
		return shared.Position{}, false
	}
	return *d.position, true
}

func (d *deviceCore) Location() (shared.Location, bool) {
	if d.location == nil {
		return shared.Location{}, false
	}
	return *d.location, true
}

func (d *deviceCore) clone() deviceCore {
	c := *d
	if d.position != nil {
		p := *d.position
		c.position = &p
	}
	if d.location != nil {
		l := *d.location
		c.location = &l
	}
	return c
}

// DeviceOption configures optional device attributes
type DeviceOption func(*deviceCore)

// WithPosition places the device on the canvas
func WithPosition(p shared.Position) DeviceOption {
	return func(d *deviceCore) { d.position = &p }
}

// WithLocation sets the geographic location
func WithLocation(l shared.Location) DeviceOption {
	return func(d *deviceCore) { d.location = &l }
}

// Inactive creates the device deactivated
func Inactive() DeviceOption {
	return func(d *deviceCore) { d.active = false }
}

func newCore(id string, t DeviceType, props Properties, opts []DeviceOption) deviceCore {
	c := deviceCore{id: id, deviceType: t, properties: props, active: true}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// ============================================================================
// Variants
// ============================================================================

// Bus busbar or node. Both BUS and NODE tags map here.
type Bus struct{ deviceCore }

func NewBus(id string, props Properties, opts ...DeviceOption) *Bus {
	return &Bus{newCore(id, DeviceTypeBus, props, opts)}
}

// NewNode creates a bus carrying the NODE tag
func NewNode(id string, props Properties, opts ...DeviceOption) *Bus {
	return &Bus{newCore(id, DeviceTypeNode, props, opts)}
}

// VoltageLevel nominal voltage, accepting the "vn_kv" alias
func (b *Bus) VoltageLevel() float64 {
	if v := b.properties.GetFloat("voltage_level", 0); v != 0 {
		return v
	}
	return b.properties.GetFloat("vn_kv", 0)
}

// Line two-terminal line
type Line struct{ deviceCore }

func NewLine(id string, props Properties, opts ...DeviceOption) *Line {
	return &Line{newCore(id, DeviceTypeLine, props, opts)}
}

func (l *Line) Resistance() float64  { return l.properties.GetFloat("resistance", 0) }
func (l *Line) Reactance() float64   { return l.properties.GetFloat("reactance", 0) }
func (l *Line) Capacitance() float64 { return l.properties.GetFloat("capacitance", 0) }
func (l *Line) FromBus() string      { return l.properties.GetString(PropFromBus) }
func (l *Line) ToBus() string        { return l.properties.GetString(PropToBus) }

// Transformer two-winding transformer
type Transformer struct{ deviceCore }

func NewTransformer(id string, props Properties, opts ...DeviceOption) *Transformer {
	return &Transformer{newCore(id, DeviceTypeTransformer, props, opts)}
}

func (t *Transformer) PrimaryVoltage() float64   { return t.properties.GetFloat("primary_voltage", 0) }
func (t *Transformer) SecondaryVoltage() float64 { return t.properties.GetFloat("secondary_voltage", 0) }
func (t *Transformer) PowerRating() float64      { return t.properties.GetFloat("power_rating", 0) }
func (t *Transformer) HVBus() string             { return t.properties.GetString(PropHVBus) }
func (t *Transformer) LVBus() string             { return t.properties.GetString(PropLVBus) }

// Switch breaker or disconnector between a bus and a branch, or between buses
type Switch struct{ deviceCore }

func NewSwitch(id string, props Properties, opts ...DeviceOption) *Switch {
	return &Switch{newCore(id, DeviceTypeSwitch, props, opts)}
}

func (s *Switch) IsClosed() bool { return s.properties.GetBool(PropIsClosed, false) }
func (s *Switch) Bus() string    { return s.properties.GetString(PropSwitchBus) }
func (s *Switch) Element() string {
	return s.properties.GetString(PropElement)
}

// ElementType "l" for a line, "t" for a transformer, "" when unbound
func (s *Switch) ElementType() string { return s.properties.GetString(PropElementType) }

// PowerDevice generic injector or consumer (load, generator, storage...)
type PowerDevice struct{ deviceCore }

// NewPowerDevice creates a power device of the given kind
func NewPowerDevice(id string, kind DeviceType, props Properties, opts ...DeviceOption) (*PowerDevice, error) {
	if kind.Category() != CategoryPower {
		return nil, NewInvalidDeviceError("type", fmt.Sprintf("%s is not a power device type", kind))
	}
	return &PowerDevice{newCore(id, kind, props, opts)}, nil
}

func (p *PowerDevice) Kind() DeviceType    { return p.deviceType }
func (p *PowerDevice) RatedPower() float64 { return p.properties.GetFloat("rated_power", 0) }

// Meter measurement point attached to exactly one element
type Meter struct{ deviceCore }

func NewMeter(id string, props Properties, opts ...DeviceOption) *Meter {
	return &Meter{newCore(id, DeviceTypeMeter, props, opts)}
}

// MeasuredElement id of the device the meter is attached to, "" when unattached
func (m *Meter) MeasuredElement() string { return m.properties.GetString(PropElement) }

// ============================================================================
// Factory
// ============================================================================

// NewDevice builds the variant matching t
func NewDevice(id string, t DeviceType, props Properties, opts ...DeviceOption) (Device, error) {
	if strings.TrimSpace(id) == "" {
		return nil, NewInvalidDeviceError("id", "device id cannot be empty")
	}
	switch t.Category() {
	case CategoryBus:
		if t == DeviceTypeNode {
			return NewNode(id, props, opts...), nil
		}
		return NewBus(id, props, opts...), nil
	case CategoryBranch:
		if t == DeviceTypeLine {
			return NewLine(id, props, opts...), nil
		}
		return NewTransformer(id, props, opts...), nil
	case CategorySwitch:
		return NewSwitch(id, props, opts...), nil
	case CategoryPower:
		return NewPowerDevice(id, t, props, opts...)
	case CategoryMeter:
		return NewMeter(id, props, opts...), nil
	default:
		return nil, NewInvalidDeviceError("type", fmt.Sprintf("unknown device type %q", t))
	}
}

// cloneDevice deep-copies a device so callers never alias aggregate state
func cloneDevice(d Device) Device {
	switch v := d.(type) {
	case *Bus:
		return &Bus{v.deviceCore.clone()}
	case *Line:
		return &Line{v.deviceCore.clone()}
	case *Transformer:
		return &Transformer{v.deviceCore.clone()}
	case *Switch:
		return &Switch{v.deviceCore.clone()}
	case *PowerDevice:
		return &PowerDevice{v.deviceCore.clone()}
	case *Meter:
		return &Meter{v.deviceCore.clone()}
	default:
		panic(fmt.Sprintf("topology: unhandled device variant %T", d))
	}
}

var (
	_ Device = (*Bus)(nil)
	_ Device = (*Line)(nil)
	_ Device = (*Transformer)(nil)
	_ Device = (*Switch)(nil)
	_ Device = (*PowerDevice)(nil)
	_ Device = (*Meter)(nil)
)
