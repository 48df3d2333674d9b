package stream

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"microgrid/domain/topology"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Hub, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	hub := NewHub()
	engine := gin.New()
	engine.GET("/ws", hub.ServeWS)
	srv := httptest.NewServer(engine)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHubBroadcastsEvents(t *testing.T) {
	hub, url := newTestServer(t)
	conn := dial(t, url)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Handle(topology.NewDeviceAddedEvent("topo-1", "B1", topology.DeviceTypeBus)))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, topology.EventDeviceAdded, msg.Event)
	assert.Equal(t, "topo-1", msg.AggregateID)
	assert.Equal(t, "B1", msg.Payload["device_id"])
}

func TestHubFiltersByTopology(t *testing.T) {
	hub, url := newTestServer(t)
	conn := dial(t, url+"?topology_id=topo-2")
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Handle(topology.NewDeviceAddedEvent("topo-1", "B1", topology.DeviceTypeBus)))
	require.NoError(t, hub.Handle(topology.NewDeviceRemovedEvent("topo-2", "B9", topology.DeviceTypeBus)))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "topo-2", msg.AggregateID, "events of other topologies are filtered out")
}

func TestHubForgetsClosedClients(t *testing.T) {
	hub, url := newTestServer(t)
	conn := dial(t, url)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}
