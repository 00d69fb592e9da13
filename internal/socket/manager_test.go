package socket

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slotter-org/clinic-voice-scheduler/internal/logger"
)

func testClient(h *Hub) *Client {
	return &Client{ID: uuid.New(), Hub: h, Log: logger.Nop(), Outbound: make(chan Message, 4)}
}

func TestHubPublishReachesOnlySubscribers(t *testing.T) {
	h := NewHub(logger.Nop())
	watcher := testClient(h)
	other := testClient(h)
	h.Subscribe(watcher, []string{SessionChannel("session-aaa")})
	h.Subscribe(other, []string{SessionChannel("session-bbb")})
	assert.Equal(t, 1, h.Subscribers("session:session-aaa"))

	require.NoError(t, h.Publish(context.Background(), "session:session-aaa", []byte(`{"type":"tool_call"}`)))

	require.Len(t, watcher.Outbound, 1)
	msg := <-watcher.Outbound
	assert.JSONEq(t, `{"type":"tool_call"}`, string(msg.Payload))
	assert.Empty(t, other.Outbound)

	h.Unsubscribe(watcher)
	assert.Equal(t, 0, h.Subscribers("session:session-aaa"))
}

func TestHubIgnoresOwnRelayedMessages(t *testing.T) {
	h := NewHub(logger.Nop())
	c := testClient(h)
	h.Subscribe(c, []string{"session:x"})

	h.receiveRemote(Message{Channel: "session:x", Payload: []byte(`{}`), Origin: h.nodeID})
	assert.Empty(t, c.Outbound)

	h.receiveRemote(Message{Channel: "session:x", Payload: []byte(`{}`), Origin: "another-node"})
	assert.Len(t, c.Outbound, 1)
}

func TestDecodeRelayed(t *testing.T) {
	raw, err := json.Marshal(Message{Channel: "session:x", Payload: []byte(`{"a":1}`), Origin: "n1"})
	require.NoError(t, err)
	got, err := decodeRelayed(string(raw))
	require.NoError(t, err)
	assert.Equal(t, "session:x", got.Channel)
	assert.Equal(t, "n1", got.Origin)
	assert.JSONEq(t, `{"a":1}`, string(got.Payload))

	for _, bad := range []string{
		`not json`,
		`{"channel":"user:1","payload":{},"origin":"n1"}`,
		`{"channel":"session:x","payload":{}}`,
		`{"channel":"session:x","origin":"n1"}`,
	} {
		_, err := decodeRelayed(bad)
		assert.Error(t, err, bad)
	}
}
