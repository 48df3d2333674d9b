package topology

import (
	"errors"
	"strings"
	"testing"
)

func TestBusToBusIsRejected(t *testing.T) {
	for _, pair := range [][2]DeviceType{
		{DeviceTypeBus, DeviceTypeBus},
		{DeviceTypeBus, DeviceTypeNode},
		{DeviceTypeNode, DeviceTypeNode},
	} {
		topo := newTestTopology(t)
		addDevice(t, topo, "a", pair[0])
		addDevice(t, topo, "b", pair[1])

		err := connect(topo, "c", "a", "b", nil)
		if !errors.Is(err, ErrInvalidTopology) {
			t.Errorf("%s-%s: error = %v, want ErrInvalidTopology", pair[0], pair[1], err)
		}
	}
}

// Scenario A
func TestLineBusRolesFollowConnectionOrder(t *testing.T) {
	topo := newTestTopology(t)
	addDevice(t, topo, "A", DeviceTypeBus)
	addDevice(t, topo, "B", DeviceTypeBus)
	addDevice(t, topo, "L", DeviceTypeLine)

	mustConnect(t, topo, "c1", "A", "L", nil)
	mustConnect(t, topo, "c2", "L", "B", nil)

	if got := prop(t, topo, "L", PropFromBus); got != "A" {
		t.Errorf("from_bus = %q, want A", got)
	}
	if got := prop(t, topo, "L", PropToBus); got != "B" {
		t.Errorf("to_bus = %q, want B", got)
	}

	report := NewConnectivityAnalyzer().CheckConnectivity(topo)
	if report.ComponentCount != 1 || !report.IsFullyConnected {
		t.Errorf("report = %+v, want one fully connected component", report)
	}
}

func TestLineBusRolesReverseOrientation(t *testing.T) {
	topo := newTestTopology(t)
	addDevice(t, topo, "A", DeviceTypeBus)
	addDevice(t, topo, "B", DeviceTypeBus)
	addDevice(t, topo, "L", DeviceTypeLine)

	mustConnect(t, topo, "c1", "L", "B", nil)
	mustConnect(t, topo, "c2", "A", "L", nil)

	if prop(t, topo, "L", PropFromBus) != "B" || prop(t, topo, "L", PropToBus) != "A" {
		t.Errorf("slots should follow connection order, got from=%s to=%s",
			prop(t, topo, "L", PropFromBus), prop(t, topo, "L", PropToBus))
	}
}

func TestTransformerBusRolesWithPorts(t *testing.T) {
	topo := newTestTopology(t)
	addDevice(t, topo, "HV", DeviceTypeBus)
	addDevice(t, topo, "LV", DeviceTypeBus)
	addDevice(t, topo, "T", DeviceTypeTransformer)

	// low side first, pinned to port 1
	mustConnect(t, topo, "c1", "LV", "T", map[string]any{PropTargetPort: 1})
	mustConnect(t, topo, "c2", "HV", "T", map[string]any{PropTargetPort: 0})

	if prop(t, topo, "T", PropHVBus) != "HV" || prop(t, topo, "T", PropLVBus) != "LV" {
		t.Errorf("hv_bus=%s lv_bus=%s", prop(t, topo, "T", PropHVBus), prop(t, topo, "T", PropLVBus))
	}
}

func TestBranchPortRules(t *testing.T) {
	topo := newTestTopology(t)
	addDevice(t, topo, "A", DeviceTypeBus)
	addDevice(t, topo, "B", DeviceTypeBus)
	addDevice(t, topo, "L", DeviceTypeLine)
	mustConnect(t, topo, "c1", "A", "L", map[string]any{PropTargetPort: 0})

	err := connect(topo, "c2", "B", "L", map[string]any{PropTargetPort: 0})
	if !errors.Is(err, ErrInvalidTopology) {
		t.Fatalf("same branch port twice: error = %v", err)
	}
	err = connect(topo, "c3", "B", "L", map[string]any{PropTargetPort: 7})
	if !errors.Is(err, ErrInvalidTopology) {
		t.Fatalf("port outside 0/1: error = %v", err)
	}
	mustConnect(t, topo, "c4", "B", "L", map[string]any{PropTargetPort: 1})
	if prop(t, topo, "L", PropToBus) != "B" {
		t.Errorf("to_bus = %q, want B", prop(t, topo, "L", PropToBus))
	}
}

func TestSameTargetPortFromEitherOrientation(t *testing.T) {
	topo := newTestTopology(t)
	addDevice(t, topo, "A", DeviceTypeBus)
	addDevice(t, topo, "L", DeviceTypeLine)
	mustConnect(t, topo, "c1", "L", "A", map[string]any{PropSourcePort: 0})

	err := connect(topo, "c2", "A", "L", map[string]any{PropTargetPort: 0})
	if !errors.Is(err, ErrInvalidTopology) {
		t.Fatalf("error = %v, want ErrInvalidTopology", err)
	}
	if !strings.Contains(err.Error(), "same target port") {
		t.Errorf("message = %q", err.Error())
	}

	t.Run("source port reused on the same pair", func(t *testing.T) {
		topo := newTestTopology(t)
		addDevice(t, topo, "A", DeviceTypeBus)
		addDevice(t, topo, "L", DeviceTypeLine)
		mustConnect(t, topo, "c1", "A", "L", map[string]any{PropSourcePort: 0, PropTargetPort: 0})

		err := connect(topo, "c2", "A", "L", map[string]any{PropSourcePort: 0, PropTargetPort: 1})
		if !errors.Is(err, ErrInvalidTopology) {
			t.Fatalf("error = %v, want ErrInvalidTopology", err)
		}
		if got := prop(t, topo, "L", PropToBus); got != "" {
			t.Errorf("rejected connection stamped to_bus = %q", got)
		}
	})

	t.Run("source port reused in reverse", func(t *testing.T) {
		topo := newTestTopology(t)
		addDevice(t, topo, "A", DeviceTypeBus)
		addDevice(t, topo, "L", DeviceTypeLine)
		mustConnect(t, topo, "c1", "L", "A", map[string]any{PropTargetPort: 2})

		if err := connect(topo, "c2", "A", "L", map[string]any{PropSourcePort: 2}); !errors.Is(err, ErrInvalidTopology) {
			t.Errorf("error = %v, want ErrInvalidTopology", err)
		}
	})
}

// Scenario B
func TestLineAcceptsOnlyOneSwitch(t *testing.T) {
	topo := newTestTopology(t)
	addDevice(t, topo, "S1", DeviceTypeSwitch)
	addDevice(t, topo, "S2", DeviceTypeSwitch)
	addDevice(t, topo, "L", DeviceTypeLine)

	mustConnect(t, topo, "c1", "S1", "L", nil)
	err := connect(topo, "c2", "S2", "L", nil)
	if !errors.Is(err, ErrInvalidTopology) {
		t.Fatalf("second switch on a line: error = %v, want ErrInvalidTopology", err)
	}
}

func TestSwitchIsTransparentForBusRoles(t *testing.T) {
	t.Run("switch to line first", func(t *testing.T) {
		topo := newTestTopology(t)
		addDevice(t, topo, "A", DeviceTypeBus)
		addDevice(t, topo, "S", DeviceTypeSwitch)
		addDevice(t, topo, "L", DeviceTypeLine)

		mustConnect(t, topo, "c1", "S", "L", nil)
		if prop(t, topo, "L", PropFromBus) != "" {
			t.Fatalf("line should not have a bus before the switch does")
		}
		mustConnect(t, topo, "c2", "A", "S", nil)

		if prop(t, topo, "L", PropFromBus) != "A" {
			t.Errorf("from_bus = %q, want A", prop(t, topo, "L", PropFromBus))
		}
		if prop(t, topo, "S", PropSwitchBus) != "A" || prop(t, topo, "S", PropElement) != "L" || prop(t, topo, "S", PropElementType) != "l" {
			t.Errorf("switch stamping wrong: bus=%s element=%s et=%s",
				prop(t, topo, "S", PropSwitchBus), prop(t, topo, "S", PropElement), prop(t, topo, "S", PropElementType))
		}
	})

	t.Run("bus to switch first", func(t *testing.T) {
		topo := newTestTopology(t)
		addDevice(t, topo, "A", DeviceTypeBus)
		addDevice(t, topo, "S", DeviceTypeSwitch)
		addDevice(t, topo, "T", DeviceTypeTransformer)

		mustConnect(t, topo, "c1", "A", "S", nil)
		mustConnect(t, topo, "c2", "S", "T", nil)

		if prop(t, topo, "T", PropHVBus) != "A" {
			t.Errorf("hv_bus = %q, want A", prop(t, topo, "T", PropHVBus))
		}
		if prop(t, topo, "S", PropElementType) != "t" {
			t.Errorf("et = %q, want t", prop(t, topo, "S", PropElementType))
		}
		for _, v := range []string{prop(t, topo, "T", PropHVBus), prop(t, topo, "T", PropLVBus)} {
			if v == "S" {
				t.Errorf("switch id leaked into transformer bus slot")
			}
		}
	})
}

func TestSwitchArity(t *testing.T) {
	topo := newTestTopology(t)
	addDevice(t, topo, "A", DeviceTypeBus)
	addDevice(t, topo, "B", DeviceTypeBus)
	addDevice(t, topo, "C", DeviceTypeBus)
	addDevice(t, topo, "S", DeviceTypeSwitch)

	mustConnect(t, topo, "c1", "A", "S", nil)
	mustConnect(t, topo, "c2", "S", "B", nil)
	if prop(t, topo, "S", PropElementType) != "b" || prop(t, topo, "S", PropElement) != "B" {
		t.Errorf("bus coupler stamping wrong")
	}
	if err := connect(topo, "c3", "C", "S", nil); !errors.Is(err, ErrInvalidTopology) {
		t.Fatalf("third connection on a switch: error = %v", err)
	}
}

func TestSwitchSecondNonBusEndMustBeBus(t *testing.T) {
	topo := newTestTopology(t)
	addDevice(t, topo, "S", DeviceTypeSwitch)
	addDevice(t, topo, "L1", DeviceTypeLine)
	addDevice(t, topo, "L2", DeviceTypeLine)

	mustConnect(t, topo, "c1", "S", "L1", nil)
	err := connect(topo, "c2", "L2", "S", nil)
	if !errors.Is(err, ErrInvalidTopology) {
		t.Fatalf("error = %v, want ErrInvalidTopology", err)
	}
	if !strings.Contains(err.Error(), "must be bus") {
		t.Errorf("message = %q", err.Error())
	}
}

func TestPowerDeviceBusArity(t *testing.T) {
	for _, reversed := range []bool{false, true} {
		topo := newTestTopology(t)
		addDevice(t, topo, "B1", DeviceTypeBus)
		addDevice(t, topo, "B2", DeviceTypeBus)
		addDevice(t, topo, "G", DeviceTypeGenerator)
		mustConnect(t, topo, "c1", "B1", "G", nil)

		src, tgt := "B2", "G"
		if reversed {
			src, tgt = tgt, src
		}
		if err := connect(topo, "c2", src, tgt, nil); !errors.Is(err, ErrInvalidTopology) {
			t.Errorf("reversed=%v: second bus error = %v, want ErrInvalidTopology", reversed, err)
		}
	}
}

// Scenario C
func TestPowerDeviceMeterArity(t *testing.T) {
	topo := newTestTopology(t)
	addDevice(t, topo, "Load", DeviceTypeLoad)
	addDevice(t, topo, "M1", DeviceTypeMeter)
	addDevice(t, topo, "M2", DeviceTypeMeter)
	addDevice(t, topo, "B", DeviceTypeBus)

	mustConnect(t, topo, "c1", "B", "Load", nil)
	mustConnect(t, topo, "c2", "Load", "M1", nil)
	if err := connect(topo, "c3", "Load", "M2", nil); !errors.Is(err, ErrInvalidTopology) {
		t.Fatalf("second meter: error = %v, want ErrInvalidTopology", err)
	}
	if prop(t, topo, "M1", PropElement) != "Load" {
		t.Errorf("meter element = %q, want Load", prop(t, topo, "M1", PropElement))
	}
}

func TestMeterHasOneConnection(t *testing.T) {
	topo := newTestTopology(t)
	addDevice(t, topo, "M", DeviceTypeMeter)
	addDevice(t, topo, "B", DeviceTypeBus)
	addDevice(t, topo, "L", DeviceTypeLine)

	mustConnect(t, topo, "c1", "M", "B", nil)
	if err := connect(topo, "c2", "L", "M", nil); !errors.Is(err, ErrInvalidTopology) {
		t.Fatalf("error = %v, want ErrInvalidTopology", err)
	}
}

func TestBranchAcceptsTwoMeters(t *testing.T) {
	topo := newTestTopology(t)
	addDevice(t, topo, "L", DeviceTypeLine)
	for _, id := range []string{"M1", "M2", "M3"} {
		addDevice(t, topo, id, DeviceTypeMeter)
	}
	addDevice(t, topo, "A", DeviceTypeBus)
	addDevice(t, topo, "B", DeviceTypeBus)

	mustConnect(t, topo, "c1", "L", "M1", nil)
	mustConnect(t, topo, "c2", "M2", "L", nil)
	// meters do not take bus slots
	mustConnect(t, topo, "c3", "A", "L", nil)
	mustConnect(t, topo, "c4", "B", "L", nil)

	if err := connect(topo, "c5", "L", "M3", nil); !errors.Is(err, ErrInvalidTopology) {
		t.Fatalf("third meter: error = %v", err)
	}
}

func TestRejectedCategoryPairs(t *testing.T) {
	tests := []struct {
		a, b DeviceType
	}{
		{DeviceTypeSwitch, DeviceTypeSwitch},
		{DeviceTypeSwitch, DeviceTypeLoad},
		{DeviceTypeLine, DeviceTypeTransformer},
		{DeviceTypeLine, DeviceTypeLine},
		{DeviceTypeTransformer, DeviceTypeStorage},
		{DeviceTypeGenerator, DeviceTypeCharger},
		{DeviceTypeMeter, DeviceTypeMeter},
	}
	for _, tt := range tests {
		t.Run(string(tt.a)+"-"+string(tt.b), func(t *testing.T) {
			topo := newTestTopology(t)
			addDevice(t, topo, "x", tt.a)
			addDevice(t, topo, "y", tt.b)
			if err := connect(topo, "c", "x", "y", nil); !errors.Is(err, ErrInvalidTopology) {
				t.Errorf("error = %v, want ErrInvalidTopology", err)
			}
			if err := connect(topo, "c", "y", "x", nil); !errors.Is(err, ErrInvalidTopology) {
				t.Errorf("reversed: error = %v, want ErrInvalidTopology", err)
			}
		})
	}
}

func TestAcceptedCategoryPairs(t *testing.T) {
	tests := []struct {
		a, b DeviceType
	}{
		{DeviceTypeBus, DeviceTypeLine},
		{DeviceTypeNode, DeviceTypeTransformer},
		{DeviceTypeBus, DeviceTypeSwitch},
		{DeviceTypeBus, DeviceTypeExternalGrid},
		{DeviceTypeBus, DeviceTypeMeter},
		{DeviceTypeSwitch, DeviceTypeLine},
		{DeviceTypeSwitch, DeviceTypeMeter},
		{DeviceTypeLine, DeviceTypeMeter},
		{DeviceTypeStaticGenerator, DeviceTypeMeter},
	}
	for _, tt := range tests {
		t.Run(string(tt.a)+"-"+string(tt.b), func(t *testing.T) {
			topo := newTestTopology(t)
			addDevice(t, topo, "x", tt.a)
			addDevice(t, topo, "y", tt.b)
			if err := connect(topo, "c", "y", "x", nil); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestCheckDoesNotMutate(t *testing.T) {
	topo := newTestTopology(t)
	addDevice(t, topo, "A", DeviceTypeBus)
	addDevice(t, topo, "L", DeviceTypeLine)

	c, _ := NewConnection("c1", "A", "L", ConnectionTypeSeries, EmptyProperties())
	src, _ := topo.device("A")
	tgt, _ := topo.device("L")
	plan, err := NewConnectionRules().Check(topo, c, src, tgt)
	if err != nil {
		t.Fatal(err)
	}
	if plan["L"].GetString(PropFromBus) != "A" {
		t.Errorf("plan = %v", plan["L"].ToMap())
	}
	if prop(t, topo, "L", PropFromBus) != "" || topo.ConnectionCount() != 0 {
		t.Errorf("Check must not modify the topology")
	}
}
