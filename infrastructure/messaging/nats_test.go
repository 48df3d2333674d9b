package messaging

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingConn struct {
	subjects []string
	payloads []string
	err      error
}

func (c *recordingConn) Publish(subject string, data []byte) error {
	if c.err != nil {
		return c.err
	}
	c.subjects = append(c.subjects, subject)
	c.payloads = append(c.payloads, string(data))
	return nil
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "microgrid.topology.created", Subject("microgrid", "topology.created"))
	assert.Equal(t, "microgrid.topology.created", Subject("microgrid.", "topology.created"))
	assert.Equal(t, "topology.created", Subject("", "topology.created"))
}

func TestNATSPublisherSendsPayloadUnchanged(t *testing.T) {
	conn := &recordingConn{}
	p := NewNATSPublisher(conn, "grid")

	require.NoError(t, p.Publish(context.Background(), "topology.device_added", `{"device_id":"B1"}`))
	assert.Equal(t, []string{"grid.topology.device_added"}, conn.subjects)
	assert.Equal(t, []string{`{"device_id":"B1"}`}, conn.payloads)
}

func TestNATSPublisherErrors(t *testing.T) {
	conn := &recordingConn{err: errors.New("nats: connection closed")}
	p := NewNATSPublisher(conn, "grid")

	err := p.Publish(context.Background(), "topology.created", "{}")
	assert.ErrorContains(t, err, "grid.topology.created")

	assert.Error(t, p.Publish(context.Background(), "", "{}"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Publish(ctx, "topology.created", "{}"), context.Canceled)
}
