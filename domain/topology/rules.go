package topology

import (
	"fmt"
)

// PropertyPlan new property bags for endpoint devices, keyed by device id.
// The aggregate commits it only after every check passed.
type PropertyPlan map[string]Properties

func (p PropertyPlan) props(d Device) Properties {
	if props, ok := p[d.ID()]; ok {
		return props
	}
	return d.Properties()
}

func (p PropertyPlan) set(d Device, key string, value any) {
	p[d.ID()] = p.props(d).With(key, value)
}

// ruleContext one candidate connection with its resolved endpoints.
// first has the lower category of the two, second the higher one.
type ruleContext struct {
	topology *MicrogridTopology
	conn     *Connection
	first    Device
	second   Device
	plan     PropertyPlan
}

// port on d's end of the candidate connection
func (rc *ruleContext) port(d Device) (int, bool) {
	return rc.conn.PortAt(d.ID())
}

// neighbors existing connections of d paired with the opposite device
func (rc *ruleContext) neighbors(d Device) []neighbor {
	var out []neighbor
	for _, c := range rc.topology.connectionsOf(d.ID()) {
		peer, ok := rc.topology.device(c.Peer(d.ID()))
		if !ok {
			continue
		}
		out = append(out, neighbor{conn: c, device: peer})
	}
	return out
}

type neighbor struct {
	conn   *Connection
	device Device
}

func countCategory(ns []neighbor, cat Category) int {
	n := 0
	for _, nb := range ns {
		if nb.device.Type().Category() == cat {
			n++
		}
	}
	return n
}

type categoryPair [2]Category

type ruleHandler func(rc *ruleContext) error

// ConnectionRules wiring rules consulted before a connection is committed
type ConnectionRules struct {
	handlers map[categoryPair]ruleHandler
}

func NewConnectionRules() *ConnectionRules {
	r := &ConnectionRules{handlers: make(map[categoryPair]ruleHandler)}

	r.register(CategoryBus, CategorySwitch, busSwitch)
	r.register(CategoryBus, CategoryBranch, busBranch)
	r.register(CategoryBus, CategoryPower, busPower)
	r.register(CategoryBus, CategoryMeter, attachMeter)
	r.register(CategorySwitch, CategoryBranch, switchBranch)
	r.register(CategorySwitch, CategoryMeter, switchMeter)
	r.register(CategoryBranch, CategoryMeter, branchMeter)
	r.register(CategoryPower, CategoryMeter, powerMeter)

	r.register(CategorySwitch, CategorySwitch, reject("Switch cannot connect directly to another switch"))
	r.register(CategorySwitch, CategoryPower, reject("Switch cannot connect to a power device"))
	r.register(CategoryBranch, CategoryBranch, reject("Line and transformer devices must be joined through a bus"))
	r.register(CategoryBranch, CategoryPower, reject("Power device must connect to a bus, not to a line or transformer"))
	r.register(CategoryPower, CategoryPower, reject("Power devices cannot connect to each other"))
	r.register(CategoryMeter, CategoryMeter, reject("Meter cannot connect to another meter"))
	return r
}

func (r *ConnectionRules) register(a, b Category, h ruleHandler) {
	if b < a {
		a, b = b, a
	}
	r.handlers[categoryPair{a, b}] = h
}

// Check evaluates the candidate connection against the current topology and
// returns the property changes to apply on acceptance. The topology is not
// modified.
func (r *ConnectionRules) Check(t *MicrogridTopology, c *Connection, source, target Device) (PropertyPlan, error) {
	sc, tc := source.Type().Category(), target.Type().Category()

	if sc == CategoryBus && tc == CategoryBus {
		return nil, NewInvalidTopologyError("Bus devices cannot be connected directly")
	}

	if portReused(t, c) {
		return nil, NewInvalidTopologyError("Device cannot connect multiple ports to the same target port")
	}

	first, second := source, target
	if tc < sc {
		first, second = target, source
	}
	h, ok := r.handlers[categoryPair{first.Type().Category(), second.Type().Category()}]
	if !ok {
		return nil, NewInvalidTopologyError(fmt.Sprintf("unsupported connection between %s and %s", source.Type(), target.Type()))
	}

	rc := &ruleContext{topology: t, conn: c, first: first, second: second, plan: make(PropertyPlan)}
	if err := h(rc); err != nil {
		return nil, err
	}
	return rc.plan, nil
}

func reject(message string) ruleHandler {
	return func(*ruleContext) error {
		return NewInvalidTopologyError(message)
	}
}

// ============================================================================
// Handlers
// ============================================================================

func busBranch(rc *ruleContext) error {
	bus, branch := rc.first, rc.second
	if err := checkBranchSlot(rc, branch); err != nil {
		return err
	}
	port, hasPort := rc.port(branch)
	return assignBusSlot(rc, branch, bus.ID(), port, hasPort)
}

func busSwitch(rc *ruleContext) error {
	bus, sw := rc.first, rc.second
	ns := rc.neighbors(sw)
	if err := checkSwitchArity(ns); err != nil {
		return err
	}

	props := rc.plan.props(sw)
	if props.GetString(PropSwitchBus) == "" {
		rc.plan.set(sw, PropSwitchBus, bus.ID())
	} else if props.GetString(PropElement) == "" {
		// bus coupler
		rc.plan.set(sw, PropElement, bus.ID())
		rc.plan.set(sw, PropElementType, "b")
		return nil
	}

	// a switch already bridging a branch passes the bus through to it
	for _, nb := range ns {
		if nb.device.Type().Category() != CategoryBranch {
			continue
		}
		port, hasPort := nb.conn.PortAt(nb.device.ID())
		if err := assignBusSlot(rc, nb.device, bus.ID(), port, hasPort); err != nil {
			return err
		}
	}
	return nil
}

func switchBranch(rc *ruleContext) error {
	sw, branch := rc.first, rc.second

	swNeighbors := rc.neighbors(sw)
	if err := checkSwitchArity(swNeighbors); err != nil {
		return err
	}
	if countCategory(swNeighbors, CategoryBranch) > 0 {
		return NewInvalidTopologyError("Switch second non-bus end must be bus")
	}
	if countCategory(rc.neighbors(branch), CategorySwitch) > 0 {
		return NewInvalidTopologyError("Branch device cannot connect to switches on both ends")
	}
	if err := checkBranchSlot(rc, branch); err != nil {
		return err
	}

	et := "l"
	if branch.Type() == DeviceTypeTransformer {
		et = "t"
	}
	rc.plan.set(sw, PropElementType, et)
	rc.plan.set(sw, PropElement, branch.ID())

	if busID := rc.plan.props(sw).GetString(PropSwitchBus); busID != "" {
		port, hasPort := rc.port(branch)
		return assignBusSlot(rc, branch, busID, port, hasPort)
	}
	return nil
}

func busPower(rc *ruleContext) error {
	power := rc.second
	if countCategory(rc.neighbors(power), CategoryBus) > 0 {
		return NewInvalidTopologyError("Power device can only connect to one bus")
	}
	return nil
}

func powerMeter(rc *ruleContext) error {
	power := rc.first
	if countCategory(rc.neighbors(power), CategoryMeter) > 0 {
		return NewInvalidTopologyError("Power device can only connect to one meter")
	}
	return attachMeter(rc)
}

func branchMeter(rc *ruleContext) error {
	branch := rc.first
	if countCategory(rc.neighbors(branch), CategoryMeter) >= 2 {
		return NewInvalidTopologyError("Branch device cannot have more than two meters")
	}
	return attachMeter(rc)
}

func switchMeter(rc *ruleContext) error {
	if err := checkSwitchArity(rc.neighbors(rc.first)); err != nil {
		return err
	}
	return attachMeter(rc)
}

// attachMeter meter is always the higher category end
func attachMeter(rc *ruleContext) error {
	meter, measured := rc.second, rc.first
	if len(rc.topology.connectionsOf(meter.ID())) > 0 {
		return NewInvalidTopologyError("Meter can only have one connection")
	}
	rc.plan.set(meter, PropElement, measured.ID())
	return nil
}

// ============================================================================
// Shared checks
// ============================================================================

func checkSwitchArity(ns []neighbor) error {
	if len(ns) >= 2 {
		return NewInvalidTopologyError("Switch cannot have more than two connections")
	}
	return nil
}

// checkBranchSlot limits a line or transformer to two non-meter ends, one per port
func checkBranchSlot(rc *ruleContext, branch Device) error {
	var ends []neighbor
	for _, nb := range rc.neighbors(branch) {
		if nb.device.Type().Category() != CategoryMeter {
			ends = append(ends, nb)
		}
	}
	if len(ends) >= 2 {
		return NewInvalidTopologyError(fmt.Sprintf("%s cannot have more than two connections", branchLabel(branch)))
	}
	if port, ok := rc.port(branch); ok {
		for _, nb := range ends {
			if p, ok := nb.conn.PortAt(branch.ID()); ok && p == port {
				return NewInvalidTopologyError(fmt.Sprintf("%s port %d is already connected", branchLabel(branch), port))
			}
		}
	}
	return nil
}

// assignBusSlot writes busID into the branch's first or second bus slot.
// Port 0 pins the first slot, port 1 the second; without a port the first
// empty slot wins, unless a slot still names busID from a removed
// connection, which is then reused.
func assignBusSlot(rc *ruleContext, branch Device, busID string, port int, hasPort bool) error {
	plan := rc.plan
	firstKey, secondKey := PropFromBus, PropToBus
	if branch.Type() == DeviceTypeTransformer {
		firstKey, secondKey = PropHVBus, PropLVBus
	}
	props := plan.props(branch)

	if hasPort {
		var key string
		switch port {
		case 0:
			key = firstKey
		case 1:
			key = secondKey
		default:
			return NewInvalidTopologyError(fmt.Sprintf("%s port must be 0 or 1, got %d", branchLabel(branch), port))
		}
		current := props.GetString(key)
		if current != "" && current != busID {
			return NewInvalidTopologyError(fmt.Sprintf("%s %s is already bound to bus %s", branchLabel(branch), key, current))
		}
		plan.set(branch, key, busID)
		return nil
	}

	if !backedBy(rc, branch, busID) {
		for _, key := range []string{firstKey, secondKey} {
			if props.GetString(key) == busID {
				plan.set(branch, key, busID)
				return nil
			}
		}
	}

	switch {
	case props.GetString(firstKey) == "":
		plan.set(branch, firstKey, busID)
	case props.GetString(secondKey) == "":
		plan.set(branch, secondKey, busID)
	default:
		return NewInvalidTopologyError(fmt.Sprintf("%s is already connected to two buses", branchLabel(branch)))
	}
	return nil
}

// backedBy reports whether a current connection ties branch to busID,
// directly or through a switch stamped with that bus
func backedBy(rc *ruleContext, branch Device, busID string) bool {
	for _, nb := range rc.neighbors(branch) {
		switch nb.device.Type().Category() {
		case CategoryBus:
			if nb.device.ID() == busID {
				return true
			}
		case CategorySwitch:
			if rc.plan.props(nb.device).GetString(PropSwitchBus) == busID {
				return true
			}
		}
	}
	return false
}

// portReused reports whether an existing connection between the same two
// devices already occupies one of c's ports, in either orientation
func portReused(t *MicrogridTopology, c *Connection) bool {
	sp, hasSource := c.SourcePort()
	tp, hasTarget := c.TargetPort()
	if !hasSource && !hasTarget {
		return false
	}

	for _, e := range t.orderedConnections() {
		var onSource, onTarget func() (int, bool)
		switch {
		case e.sourceID == c.sourceID && e.targetID == c.targetID:
			onSource, onTarget = e.SourcePort, e.TargetPort
		case e.sourceID == c.targetID && e.targetID == c.sourceID:
			onSource, onTarget = e.TargetPort, e.SourcePort
		default:
			continue
		}
		if hasSource && portEquals(onSource, sp) || hasTarget && portEquals(onTarget, tp) {
			return true
		}
	}
	return false
}

func portEquals(get func() (int, bool), want int) bool {
	p, ok := get()
	return ok && p == want
}

func branchLabel(d Device) string {
	if d.Type() == DeviceTypeTransformer {
		return "Transformer"
	}
	return "Line"
}
