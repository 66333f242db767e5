package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type captureBackend struct {
	mu     sync.Mutex
	events []Event
	fail   bool
}

func (b *captureBackend) Name() string { return "capture" }

func (b *captureBackend) Deliver(_ context.Context, evt Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail {
		return errors.New("delivery refused")
	}
	b.events = append(b.events, evt)
	return nil
}

func (b *captureBackend) delivered() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Event, len(b.events))
	copy(out, b.events)
	return out
}

type memIdemStore struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func newMemIdemStore() *memIdemStore {
	return &memIdemStore{seen: make(map[string]struct{})}
}

func (s *memIdemStore) SetIfNotExists(_ context.Context, key, _ string, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[key]; ok {
		return false, nil
	}
	s.seen[key] = struct{}{}
	return true, nil
}

func stopDispatcher(t *testing.T, d *Dispatcher) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.Stop(ctx); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
}

func TestDispatcher_DeliversQueuedEvents(t *testing.T) {
	backend := &captureBackend{}
	d := NewDispatcher(backend, newMemIdemStore(), zerolog.Nop())
	d.Start()

	d.Dispatch(Event{Type: TypeEmailVerification, Email: "a@example.com"})
	d.Dispatch(Event{Type: TypeProfessionalUpgrade, Email: "b@example.com"})

	stopDispatcher(t, d)

	got := backend.delivered()
	if len(got) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", len(got))
	}
	if got[0].ID == uuid.Nil || got[1].ID == uuid.Nil {
		t.Fatalf("dispatch must assign event ids")
	}
	if got[0].OccurredAt.IsZero() {
		t.Fatalf("dispatch must stamp occurrence time")
	}
}

func TestDispatcher_BackendFailureDoesNotPropagate(t *testing.T) {
	backend := &captureBackend{fail: true}
	d := NewDispatcher(backend, newMemIdemStore(), zerolog.Nop())
	d.Start()

	// Dispatch never returns an error and never panics, whatever the backend does.
	d.Dispatch(Event{Type: TypePasswordReset, Email: "a@example.com"})

	stopDispatcher(t, d)

	if len(backend.delivered()) != 0 {
		t.Fatalf("failing backend must not record deliveries")
	}
}

func TestDispatcher_SuppressesDuplicateEventIDs(t *testing.T) {
	backend := &captureBackend{}
	d := NewDispatcher(backend, newMemIdemStore(), zerolog.Nop())
	d.Start()

	evt := Event{ID: uuid.New(), Type: TypeAccountLocked, Email: "a@example.com"}
	d.Dispatch(evt)
	d.Dispatch(evt)
	d.Dispatch(evt)

	stopDispatcher(t, d)

	if got := backend.delivered(); len(got) != 1 {
		t.Fatalf("expected 1 delivery for a repeated event id, got %d", len(got))
	}
}

// Events arriving without an id get one derived from what they announce, so
// a redispatch of the same logical event collapses in the idempotency window
// without the caller threading ids around.
func TestDispatcher_RedispatchOfSameLogicalEventCollapses(t *testing.T) {
	backend := &captureBackend{}
	d := NewDispatcher(backend, newMemIdemStore(), zerolog.Nop())
	d.Start()

	userID := uuid.New()
	d.Dispatch(Event{Type: TypeAccountLocked, UserID: userID, Email: "a@example.com"})
	d.Dispatch(Event{Type: TypeAccountLocked, UserID: userID, Email: "a@example.com"})

	// A fresh token means a fresh link, which is a different event.
	d.Dispatch(Event{Type: TypePasswordReset, UserID: userID, URL: "http://localhost/reset/t1"})
	d.Dispatch(Event{Type: TypePasswordReset, UserID: userID, URL: "http://localhost/reset/t2"})

	stopDispatcher(t, d)

	got := backend.delivered()
	if len(got) != 3 {
		t.Fatalf("expected 3 deliveries (1 lock + 2 resets), got %d", len(got))
	}
}

func TestEvent_StableIDIsDeterministic(t *testing.T) {
	userID := uuid.New()
	a := Event{Type: TypeProfessionalUpgrade, UserID: userID, URL: "http://localhost/users/x"}
	b := Event{Type: TypeProfessionalUpgrade, UserID: userID, URL: "http://localhost/users/x"}

	if a.StableID() != b.StableID() {
		t.Fatalf("same logical event must derive the same id")
	}
	if a.StableID() == uuid.Nil {
		t.Fatalf("derived id must not be nil")
	}

	other := Event{Type: TypeProfessionalUpgrade, UserID: uuid.New(), URL: "http://localhost/users/x"}
	if a.StableID() == other.StableID() {
		t.Fatalf("different users must derive different ids")
	}
}

func TestDispatcher_NilIdemStoreDeliversEverything(t *testing.T) {
	backend := &captureBackend{}
	d := NewDispatcher(backend, nil, zerolog.Nop())
	d.Start()

	evt := Event{ID: uuid.New(), Type: TypeEmailVerification, Email: "a@example.com"}
	d.Dispatch(evt)
	d.Dispatch(evt)

	stopDispatcher(t, d)

	if got := backend.delivered(); got == nil || len(got) != 2 {
		t.Fatalf("without an idempotency store every dispatch delivers, got %d", len(got))
	}
}

func TestDispatcher_DispatchAfterStopIsHarmless(t *testing.T) {
	backend := &captureBackend{}
	d := NewDispatcher(backend, newMemIdemStore(), zerolog.Nop())
	d.Start()
	stopDispatcher(t, d)

	// Must not panic.
	d.Dispatch(Event{Type: TypeEmailVerification, Email: "late@example.com"})

	if len(backend.delivered()) != 0 {
		t.Fatalf("events after stop must be dropped")
	}
}
