package snapshot

import (
	"encoding/json"
	"testing"

	"microgrid/domain/shared"
	"microgrid/domain/topology"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTopology(t *testing.T) *topology.MicrogridTopology {
	t.Helper()
	topo, err := topology.NewMicrogridTopology("feeder", "north feeder")
	require.NoError(t, err)

	b1, _ := topology.NewDevice("B1", topology.DeviceTypeBus, topology.NewProperties(map[string]any{"voltage_level": 10.5}),
		topology.WithPosition(shared.NewPosition(10, 20)))
	l1, _ := topology.NewDevice("L1", topology.DeviceTypeLine, topology.EmptyProperties())
	b2, _ := topology.NewDevice("B2", topology.DeviceTypeBus, topology.EmptyProperties(), topology.Inactive())
	for _, d := range []topology.Device{b1, l1, b2} {
		require.NoError(t, topo.AddDevice(d))
	}
	c1, _ := topology.NewConnection("c1", "B1", "L1", topology.ConnectionTypeSeries, topology.EmptyProperties())
	c2, _ := topology.NewConnection("c2", "L1", "B2", "", topology.EmptyProperties())
	require.NoError(t, topo.AddConnection(c1))
	require.NoError(t, topo.AddConnection(c2))
	require.NoError(t, topo.SetConnectionActive("c2", false))
	topo.PullEvents()
	return topo
}

func TestRestoreKeepsState(t *testing.T) {
	topo := buildTopology(t)

	raw, err := json.Marshal(FromDomain(topo))
	require.NoError(t, err)
	var doc Document
	require.NoError(t, json.Unmarshal(raw, &doc))

	restored, err := doc.Restore()
	require.NoError(t, err)

	assert.Equal(t, topo.ID(), restored.ID())
	assert.Equal(t, "north feeder", restored.Description())
	assert.Equal(t, 3, restored.DeviceCount())
	assert.Empty(t, restored.PullEvents(), "restore must not emit events")

	line, err := restored.Device("L1")
	require.NoError(t, err)
	assert.Equal(t, "B1", line.Properties().GetString(topology.PropFromBus))
	assert.Equal(t, "B2", line.Properties().GetString(topology.PropToBus))

	b1, _ := restored.Device("B1")
	pos, ok := b1.Position()
	require.True(t, ok)
	assert.Equal(t, 20.0, pos.Y())
	assert.Equal(t, 10.5, b1.Properties().GetFloat("voltage_level", 0))

	b2, _ := restored.Device("B2")
	assert.False(t, b2.IsActive())

	c2, err := restored.Connection("c2")
	require.NoError(t, err)
	assert.False(t, c2.IsActive())
	assert.Equal(t, topology.ConnectionTypeBidirectional, c2.Type())
}

func TestToDeviceStripsDerivedProperties(t *testing.T) {
	dd := DeviceDoc{
		ID:         "L9",
		Type:       "line",
		Properties: map[string]any{"from_bus": "B1", "to_bus": "B2", "resistance": 0.4},
	}
	d, err := dd.ToDevice(true)
	require.NoError(t, err)
	assert.False(t, d.Properties().Has(topology.PropFromBus))
	assert.Equal(t, 0.4, d.Properties().GetFloat("resistance", 0))

	kept, err := dd.ToDevice(false)
	require.NoError(t, err)
	assert.Equal(t, "B1", kept.Properties().GetString(topology.PropFromBus))
}

func TestRestoreRejectsBadInput(t *testing.T) {
	bad := Document{Name: "x", Devices: []DeviceDoc{{ID: "d", Type: "TOASTER"}}}
	_, err := bad.Restore()
	assert.ErrorIs(t, err, topology.ErrInvalidDevice)

	bad = Document{Name: "x", Devices: []DeviceDoc{{ID: "d", Type: "BUS", Location: &LocationDoc{Latitude: 120}}}}
	_, err = bad.Restore()
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	bad = Document{Name: "x", Status: "BROKEN"}
	_, err = bad.Restore()
	assert.Error(t, err)
}
