package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/live-support/internal/domain"
	"github.com/spec-kit/live-support/internal/observability"
)

type nopSink struct{}

func (nopSink) Connect(string, domain.Role) {}
func (nopSink) Disconnect(string)           {}

func newTestHub() *Hub {
	return NewHub(nopSink{}, observability.NewMetrics(), nil)
}

// addSession seeds a registered session without a live connection; only the
// queueing paths are exercised.
func addSession(h *Hub, actorID string, queueSize int) *session {
	s := &session{send: make(chan Envelope, queueSize)}
	h.register(actorID, s)
	return s
}

func TestHub_SendToActorQueuesEnvelope(t *testing.T) {
	hub := newTestHub()
	s := addSession(hub, "u1", 4)

	hub.SendToActor("u1", "request_matched", map[string]string{"agent_id": "a1"})

	require.Len(t, s.send, 1)
	envelope := <-s.send
	assert.EqualValues(t, "request_matched", envelope.Type)
}

func TestHub_SendToActorNeverBlocksOnFullQueue(t *testing.T) {
	hub := newTestHub()
	s := addSession(hub, "u1", 1)
	s.send <- Envelope{Type: "filler"}

	done := make(chan struct{})
	go func() {
		hub.SendToActor("u1", "request_timeout", nil)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("SendToActor blocked behind a full session queue")
	}
	// The filler is untouched and the new envelope was dropped.
	require.Len(t, s.send, 1)
	envelope := <-s.send
	assert.EqualValues(t, "filler", envelope.Type)
}

func TestHub_SlowSessionDoesNotStallOthers(t *testing.T) {
	hub := newTestHub()
	stalled := addSession(hub, "u1", 1)
	stalled.send <- Envelope{Type: "filler"}
	healthy := addSession(hub, "u2", 4)

	done := make(chan struct{})
	go func() {
		hub.Broadcast("agent_presence", nil)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Broadcast blocked behind a full session queue")
	}
	require.Len(t, healthy.send, 1)
	envelope := <-healthy.send
	assert.EqualValues(t, "agent_presence", envelope.Type)
}

func TestHub_SendToDisconnectedActorIsDropped(t *testing.T) {
	hub := newTestHub()

	done := make(chan struct{})
	go func() {
		hub.SendToActor("ghost", "request_matched", nil)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("SendToActor blocked for a disconnected actor")
	}
}

func TestHub_UnregisterClosesQueueOnce(t *testing.T) {
	hub := newTestHub()
	s := addSession(hub, "u1", 1)

	hub.unregister("u1", s)
	assert.NotPanics(t, func() { hub.unregister("u1", s) })

	_, open := <-s.send
	assert.False(t, open)

	// A send after teardown is a quiet drop.
	assert.NotPanics(t, func() { hub.SendToActor("u1", "request_matched", nil) })
}
