package topology

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// DeviceType device type tag
type DeviceType string

const (
	DeviceTypeBus             DeviceType = "BUS"
	DeviceTypeNode            DeviceType = "NODE"
	DeviceTypeLine            DeviceType = "LINE"
	DeviceTypeTransformer     DeviceType = "TRANSFORMER"
	DeviceTypeSwitch          DeviceType = "SWITCH"
	DeviceTypeGenerator       DeviceType = "GENERATOR"
	DeviceTypeLoad            DeviceType = "LOAD"
	DeviceTypeStorage         DeviceType = "STORAGE"
	DeviceTypeStaticGenerator DeviceType = "STATIC_GENERATOR"
	DeviceTypeCharger         DeviceType = "CHARGER"
	DeviceTypeExternalGrid    DeviceType = "EXTERNAL_GRID"
	DeviceTypeMeter           DeviceType = "METER"
)

var deviceTypes = []DeviceType{
	DeviceTypeBus, DeviceTypeNode, DeviceTypeLine, DeviceTypeTransformer, DeviceTypeSwitch,
	DeviceTypeGenerator, DeviceTypeLoad, DeviceTypeStorage, DeviceTypeStaticGenerator,
	DeviceTypeCharger, DeviceTypeExternalGrid, DeviceTypeMeter,
}

// DeviceTypes returns every known device type
func DeviceTypes() []DeviceType {
	out := make([]DeviceType, len(deviceTypes))
	copy(out, deviceTypes)
	return out
}

// ParseDeviceType parses a device type tag, case-insensitively
func ParseDeviceType(s string) (DeviceType, error) {
	t := DeviceType(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range deviceTypes {
		if t == known {
			return t, nil
		}
	}
	return "", NewInvalidDeviceError("type", fmt.Sprintf("unknown device type %q", s))
}

// Category groups device types for the connection rules
type Category int

const (
	CategoryUnknown Category = iota
	CategoryBus
	CategorySwitch
	CategoryBranch // lines and transformers
	CategoryPower
	CategoryMeter
)

func (c Category) String() string {
	switch c {
	case CategoryBus:
		return "bus"
	case CategorySwitch:
		return "switch"
	case CategoryBranch:
		return "branch"
	case CategoryPower:
		return "power device"
	case CategoryMeter:
		return "meter"
	default:
		return "unknown"
	}
}

// Category returns the rule category of the device type
func (t DeviceType) Category() Category {
	switch t {
	case DeviceTypeBus, DeviceTypeNode:
		return CategoryBus
	case DeviceTypeSwitch:
		return CategorySwitch
	case DeviceTypeLine, DeviceTypeTransformer:
		return CategoryBranch
	case DeviceTypeGenerator, DeviceTypeLoad, DeviceTypeStorage, DeviceTypeStaticGenerator,
		DeviceTypeCharger, DeviceTypeExternalGrid:
		return CategoryPower
	case DeviceTypeMeter:
		return CategoryMeter
	default:
		return CategoryUnknown
	}
}

func (t DeviceType) IsBus() bool   { return t.Category() == CategoryBus }
func (t DeviceType) IsMeter() bool { return t == DeviceTypeMeter }
func (t DeviceType) String() string {
	return string(t)
}

// ConnectionType connection type
type ConnectionType string

const (
	ConnectionTypeSeries         ConnectionType = "SERIES"
	ConnectionTypeParallel       ConnectionType = "PARALLEL"
	ConnectionTypeBidirectional  ConnectionType = "BIDIRECTIONAL"
	ConnectionTypeUnidirectional ConnectionType = "UNIDIRECTIONAL"
)

// ParseConnectionType parses a connection type; empty input means BIDIRECTIONAL
func ParseConnectionType(s string) (ConnectionType, error) {
	t := ConnectionType(strings.ToUpper(strings.TrimSpace(s)))
	switch t {
	case "":
		return ConnectionTypeBidirectional, nil
	case ConnectionTypeSeries, ConnectionTypeParallel, ConnectionTypeBidirectional, ConnectionTypeUnidirectional:
		return t, nil
	}
	return "", NewInvalidDeviceError("connection_type", fmt.Sprintf("unknown connection type %q", s))
}

// Status topology status
type Status string

const (
	StatusCreated    Status = "CREATED"
	StatusValidated  Status = "VALIDATED"
	StatusInvalid    Status = "INVALID"
	StatusComplete   Status = "COMPLETE"
	StatusIncomplete Status = "INCOMPLETE"
)

// ParseStatus parses a topology status
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case StatusCreated, StatusValidated, StatusInvalid, StatusComplete, StatusIncomplete:
		return st, nil
	}
	return "", NewInvalidDeviceError("status", fmt.Sprintf("unknown topology status %q", s))
}

// Well-known property keys written by the connection rules
const (
	PropName        = "name"
	PropFromBus     = "from_bus"
	PropToBus       = "to_bus"
	PropHVBus       = "hv_bus"
	PropLVBus       = "lv_bus"
	PropSwitchBus   = "bus"
	PropElement     = "element"
	PropElementType = "et"
	PropIsClosed    = "is_closed"
	PropSourcePort  = "source_port"
	PropTargetPort  = "target_port"
)

// DerivedPropertyKeys keys the connection rules write onto devices.
// They are recomputed whenever a topology is replayed through the aggregate.
func DerivedPropertyKeys() []string {
	return []string{PropFromBus, PropToBus, PropHVBus, PropLVBus, PropSwitchBus, PropElement, PropElementType}
}

// Properties is an immutable property bag keyed by string.
// Values are scalars (string, bool, numbers); mutators return a new bag.
type Properties struct {
	values map[string]any
}

// NewProperties copies m into a new property bag
func NewProperties(m map[string]any) Properties {
	values := make(map[string]any, len(m))
	for k, v := range m {
		values[k] = v
	}
	return Properties{values: values}
}

// EmptyProperties returns an empty property bag
func EmptyProperties() Properties {
	return Properties{}
}

// Get returns the raw value for key
func (p Properties) Get(key string) (any, bool) {
	v, ok := p.values[key]
	return v, ok
}

// GetString returns the value for key rendered as a string, "" if absent
func (p Properties) GetString(key string) string {
	v, ok := p.values[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// GetFloat returns the numeric value for key, or def when absent or not numeric
func (p Properties) GetFloat(key string, def float64) float64 {
	v, ok := p.values[key]
	if !ok {
		return def
	}
	if f, ok := toFloat(v); ok {
		return f
	}
	return def
}

// GetInt returns the integer value for key. Floats with a fractional part and
// non-numeric strings are rejected.
func (p Properties) GetInt(key string) (int, bool) {
	v, ok := p.values[key]
	if !ok || v == nil {
		return 0, false
	}
	f, ok := toFloat(v)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

// GetBool returns the boolean value for key, or def
func (p Properties) GetBool(key string, def bool) bool {
	v, ok := p.values[key]
	if !ok {
		return def
	}
	switch b := v.(type) {
	case bool:
		return b
	case string:
		parsed, err := strconv.ParseBool(b)
		if err != nil {
			return def
		}
		return parsed
	}
	return def
}

// Has reports whether key is present with a non-empty value
func (p Properties) Has(key string) bool {
	return p.GetString(key) != ""
}

// With returns a copy with key set to value
func (p Properties) With(key string, value any) Properties {
	values := make(map[string]any, len(p.values)+1)
	for k, v := range p.values {
		values[k] = v
	}
	values[key] = value
	return Properties{values: values}
}

// Without returns a copy without key
func (p Properties) Without(key string) Properties {
	values := make(map[string]any, len(p.values))
	for k, v := range p.values {
		if k != key {
			values[k] = v
		}
	}
	return Properties{values: values}
}

// WithoutDerived returns a copy without the rule-derived keys
func (p Properties) WithoutDerived() Properties {
	out := p
	for _, k := range DerivedPropertyKeys() {
		if _, ok := out.values[k]; ok {
			out = out.Without(k)
		}
	}
	return out
}

// Merge returns a copy with other's entries layered on top
func (p Properties) Merge(other Properties) Properties {
	values := make(map[string]any, len(p.values)+len(other.values))
	for k, v := range p.values {
		values[k] = v
	}
	for k, v := range other.values {
		values[k] = v
	}
	return Properties{values: values}
}

// Len number of entries
func (p Properties) Len() int { return len(p.values) }

// Keys returns the sorted keys
func (p Properties) Keys() []string {
	keys := make([]string, 0, len(p.values))
	for k := range p.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ToMap returns a copy of the underlying map
func (p Properties) ToMap() map[string]any {
	out := make(map[string]any, len(p.values))
	for k, v := range p.values {
		out[k] = v
	}
	return out
}

// Equals compares sorted key/value pairs. Numbers compare by value so that a
// bag round-tripped through JSON (int -> float64) stays equal.
func (p Properties) Equals(other interface{}) bool {
	o, ok := other.(Properties)
	if !ok {
		return false
	}
	if len(p.values) != len(o.values) {
		return false
	}
	for _, k := range p.Keys() {
		ov, ok := o.values[k]
		if !ok || !scalarEqual(p.values[k], ov) {
			return false
		}
	}
	return true
}

func scalarEqual(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}
