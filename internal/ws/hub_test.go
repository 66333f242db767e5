package ws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

func TestBroadcast_NeverBlocksOnFullBuffer(t *testing.T) {
	h := NewHub(zerolog.Nop())

	// No Run loop drains the hub, so the buffer fills to capacity.
	for i := 0; i < cap(h.broadcast); i++ {
		h.broadcast <- []byte("x")
	}

	done := make(chan struct{})
	go func() {
		h.Broadcast([]byte("overflow"))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("broadcast blocked on a full buffer")
	}

	if len(h.broadcast) != cap(h.broadcast) {
		t.Fatalf("overflow frame must be dropped, not queued")
	}
}

func TestRun_FanOutDeliversToClient(t *testing.T) {
	h := NewHub(zerolog.Nop())
	go h.Run()

	c := &Client{hub: h, send: make(chan []byte, 1)}
	h.Register(c)
	waitFor(t, func() bool { return h.ClientCount() == 1 })

	h.Broadcast([]byte("hello"))

	select {
	case msg := <-c.send:
		if string(msg) != "hello" {
			t.Fatalf("wrong frame: %q", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("frame never reached the client")
	}
}

// A client that stops draining its send buffer is evicted instead of stalling
// the fan-out for everyone else.
func TestRun_EvictsClientWithFullSendBuffer(t *testing.T) {
	h := NewHub(zerolog.Nop())
	go h.Run()

	stuck := &Client{hub: h, send: make(chan []byte)}
	h.Register(stuck)
	waitFor(t, func() bool { return h.ClientCount() == 1 })

	h.Broadcast([]byte("first"))
	waitFor(t, func() bool { return h.ClientCount() == 0 })
}

func TestNotifyUserEvent_NilHubIsNoOp(t *testing.T) {
	SetDefaultHub(nil)

	// Must not panic or block when no hub is installed.
	NotifyUserEvent(EventUserUpdated, uuid.New())
}

func TestNotifyUserEvent_ReachesRegisteredClient(t *testing.T) {
	h := NewHub(zerolog.Nop())
	go h.Run()

	c := &Client{hub: h, send: make(chan []byte, 4)}
	h.Register(c)
	waitFor(t, func() bool { return h.ClientCount() == 1 })

	SetDefaultHub(h)
	t.Cleanup(func() { SetDefaultHub(nil) })

	id := uuid.New()
	NotifyUserEvent(EventUserRegistered, id)

	var frame []byte
	select {
	case frame = <-c.send:
	case <-time.After(2 * time.Second):
		t.Fatalf("event never reached the client")
	}

	var evt UserEvent
	if err := json.Unmarshal(frame, &evt); err != nil {
		t.Fatalf("frame is not a user event: %v", err)
	}
	if evt.Type != EventUserRegistered {
		t.Fatalf("wrong event type: %s", evt.Type)
	}
	if evt.UserID != id {
		t.Fatalf("event for wrong user: %s", evt.UserID)
	}
	if _, err := time.Parse(time.RFC3339, evt.Timestamp); err != nil {
		t.Fatalf("timestamp not RFC3339: %q", evt.Timestamp)
	}
}
