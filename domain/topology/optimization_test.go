package topology

import (
	"math"
	"reflect"
	"testing"
)

// Scenario D: 4 connections with one duplicate pair, 1 isolated device of 5
func TestOptimizeScore(t *testing.T) {
	topo := newTestTopology(t)
	addDevice(t, topo, "A", DeviceTypeBus)
	addDevice(t, topo, "T", DeviceTypeTransformer)
	addDevice(t, topo, "P", DeviceTypeLoad)
	addDevice(t, topo, "Mtr", DeviceTypeMeter)
	addDevice(t, topo, "B", DeviceTypeBus)

	mustConnect(t, topo, "c1", "A", "T", map[string]any{PropTargetPort: 0})
	mustConnect(t, topo, "c2", "A", "T", map[string]any{PropTargetPort: 1})
	mustConnect(t, topo, "c3", "A", "P", nil)
	mustConnect(t, topo, "c4", "P", "Mtr", nil)

	report := NewOptimizationAdvisor().Optimize(topo)

	if math.Abs(report.Score-82.5) > 1e-9 {
		t.Errorf("Score = %v, want 82.5", report.Score)
	}
	if !reflect.DeepEqual(report.RedundantConnections, []string{"c2"}) {
		t.Errorf("RedundantConnections = %v", report.RedundantConnections)
	}
	if !reflect.DeepEqual(report.IsolatedDevices, []string{"B"}) {
		t.Errorf("IsolatedDevices = %v", report.IsolatedDevices)
	}
	want := []string{
		"Remove redundant connection c2",
		"Connect isolated device B to the main network",
	}
	if !reflect.DeepEqual(report.Suggestions, want) {
		t.Errorf("Suggestions = %v, want %v", report.Suggestions, want)
	}
	if report.Before.Connections != 4 || report.After.Connections != 3 {
		t.Errorf("Before/After = %+v / %+v", report.Before, report.After)
	}
}

func TestOptimizeEdgeCases(t *testing.T) {
	advisor := NewOptimizationAdvisor()

	empty := advisor.Optimize(newTestTopology(t))
	if empty.Score != 100 || len(empty.Suggestions) != 0 {
		t.Errorf("empty topology report = %+v", empty)
	}

	// every device isolated: 100 - 50
	topo := newTestTopology(t)
	addDevice(t, topo, "1", DeviceTypeBus)
	addDevice(t, topo, "2", DeviceTypeBus)
	if got := advisor.Optimize(topo).Score; got != 50 {
		t.Errorf("Score = %v, want 50", got)
	}

	if got := advisor.Optimize(chain(t)).Score; got != 100 {
		t.Errorf("clean chain Score = %v, want 100", got)
	}
}
