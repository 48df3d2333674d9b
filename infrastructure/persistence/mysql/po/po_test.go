package po

import (
	"errors"
	"strings"
	"testing"
	"time"

	"microgrid/domain/shared"
	"microgrid/domain/topology"
)

func buildTopology(t *testing.T) *topology.MicrogridTopology {
	t.Helper()
	topo, err := topology.NewMicrogridTopology("campus", "")
	if err != nil {
		t.Fatal(err)
	}
	loc, _ := shared.NewLocation(31.2, 121.5, 4)
	b1, _ := topology.NewDevice("B1", topology.DeviceTypeBus, topology.EmptyProperties(), topology.WithLocation(loc))
	tr, _ := topology.NewDevice("T1", topology.DeviceTypeTransformer, topology.NewProperties(map[string]any{"power_rating": 630}),
		topology.WithPosition(shared.NewPosition(3, 4)))
	b2, _ := topology.NewDevice("B2", topology.DeviceTypeBus, topology.EmptyProperties())
	for _, d := range []topology.Device{b1, tr, b2} {
		if err := topo.AddDevice(d); err != nil {
			t.Fatal(err)
		}
	}
	c1, _ := topology.NewConnection("c1", "B1", "T1", "", topology.NewProperties(map[string]any{topology.PropTargetPort: 0}))
	c2, _ := topology.NewConnection("c2", "B2", "T1", "", topology.NewProperties(map[string]any{topology.PropTargetPort: 1}))
	for _, c := range []*topology.Connection{c1, c2} {
		if err := topo.AddConnection(c); err != nil {
			t.Fatal(err)
		}
	}
	return topo
}

func TestTopologyPORoundTrip(t *testing.T) {
	topo := buildTopology(t)

	topologyPO, devices, conns, err := FromTopologyDomain(topo)
	if err != nil {
		t.Fatalf("FromTopologyDomain() error = %v", err)
	}
	if len(devices) != 3 || len(conns) != 2 {
		t.Fatalf("rows = %d devices, %d connections", len(devices), len(conns))
	}
	if devices[1].Seq != 1 || devices[1].TopologyID != topo.ID() {
		t.Errorf("device row = %+v", devices[1])
	}
	if devices[1].PosX == nil || *devices[1].PosX != 3 {
		t.Errorf("position columns not set: %+v", devices[1])
	}

	restored, err := topologyPO.ToDomain(devices, conns)
	if err != nil {
		t.Fatalf("ToDomain() error = %v", err)
	}
	if restored.ID() != topo.ID() || restored.DeviceCount() != 3 || restored.ConnectionCount() != 2 {
		t.Fatalf("restored = %s / %d / %d", restored.ID(), restored.DeviceCount(), restored.ConnectionCount())
	}

	tr, _ := restored.Device("T1")
	if tr.Properties().GetString(topology.PropHVBus) != "B1" || tr.Properties().GetString(topology.PropLVBus) != "B2" {
		t.Errorf("derived bus slots lost: %v", tr.Properties().ToMap())
	}
	if got := tr.Properties().GetFloat("power_rating", 0); got != 630 {
		t.Errorf("power_rating = %v", got)
	}
	b1, _ := restored.Device("B1")
	if loc, ok := b1.Location(); !ok || loc.Latitude() != 31.2 {
		t.Errorf("location = %+v, %v", loc, ok)
	}
	c1, _ := restored.Connection("c1")
	if port, ok := c1.TargetPort(); !ok || port != 0 {
		t.Errorf("target port = %d, %v", port, ok)
	}
	t.Log("✓ topology rows round-trip through the aggregate")
}

func TestNewOutboxEventFlattensPayload(t *testing.T) {
	event := topology.NewDeviceAddedEvent("topo-1", "B1", topology.DeviceTypeBus)

	outbox, err := NewOutboxEvent(event)
	if err != nil {
		t.Fatalf("NewOutboxEvent() error = %v", err)
	}
	if outbox.Status != OutboxPending || outbox.EventType != topology.EventDeviceAdded || len(outbox.ID) != 36 {
		t.Errorf("outbox = %+v", outbox)
	}

	data, err := outbox.Decode()
	if err != nil {
		t.Fatal(err)
	}
	if data["device_id"] != "B1" || data["device_type"] != "BUS" {
		t.Errorf("payload = %v", data)
	}
	if data["aggregate_id"] != "topo-1" || data["event_name"] != topology.EventDeviceAdded {
		t.Errorf("envelope = %v", data)
	}
	if _, err := time.Parse(time.RFC3339Nano, data["occurred_on"].(string)); err != nil {
		t.Errorf("occurred_on = %v", data["occurred_on"])
	}
}

func TestOutboxFail(t *testing.T) {
	o := &OutboxEventPO{Status: OutboxProcessing}

	o.Fail(errors.New("nats: timeout"), 2)
	if o.Status != OutboxPending || o.Attempts != 1 || o.LastError != "nats: timeout" {
		t.Errorf("after first failure = %+v", o)
	}
	o.Fail(errors.New(strings.Repeat("x", 2*maxLastErrorLen)), 2)
	if o.Status != OutboxFailed || len(o.LastError) != maxLastErrorLen {
		t.Errorf("after second failure status=%s len=%d", o.Status, len(o.LastError))
	}
}
