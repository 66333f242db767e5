package notification

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Notifier is what the usecases depend on. Dispatch must never block the
// request path and must never surface delivery failures to the caller.
type Notifier interface {
	Dispatch(evt Event)
}

// Backend delivers a single event: SMTP directly, or a queue for someone else
// to deliver.
type Backend interface {
	Deliver(ctx context.Context, evt Event) error
	Name() string
}

// IdempotencyStore suppresses duplicate deliveries of the same event id.
type IdempotencyStore interface {
	SetIfNotExists(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
}

const (
	queueSize       = 256
	deliveryTimeout = 15 * time.Second
	idempotencyTTL  = 24 * time.Hour
)

type Dispatcher struct {
	backend Backend
	idem    IdempotencyStore
	logger  zerolog.Logger

	queue chan Event

	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
}

func NewDispatcher(backend Backend, idem IdempotencyStore, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		backend: backend,
		idem:    idem,
		logger:  logger,
		queue:   make(chan Event, queueSize),
		done:    make(chan struct{}),
	}
}

func (d *Dispatcher) Start() {
	d.startOnce.Do(func() {
		go d.run()
	})
}

// Stop drains what is already queued and returns when the worker exits or the
// context gives up. Events enqueued after Stop are dropped.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.stopOnce.Do(func() {
		close(d.queue)
	})
	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dispatch enqueues without blocking; a full queue drops the event with a log
// line. Losing a courtesy email is preferable to stalling an HTTP response.
func (d *Dispatcher) Dispatch(evt Event) {
	if evt.ID == uuid.Nil {
		evt.ID = evt.StableID()
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}

	defer func() {
		// Dispatch on a stopped dispatcher panics on the closed channel;
		// swallow it so late fire-and-forget callers stay harmless.
		if r := recover(); r != nil {
			d.logger.Warn().Str("type", string(evt.Type)).Msg("notification dropped, dispatcher stopped")
		}
	}()

	select {
	case d.queue <- evt:
	default:
		d.logger.Warn().
			Str("type", string(evt.Type)).
			Str("email", evt.Email).
			Msg("notification dropped, queue full")
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)

	for evt := range d.queue {
		d.deliver(evt)
	}
}

func (d *Dispatcher) deliver(evt Event) {
	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()

	if d.idem != nil {
		fresh, err := d.idem.SetIfNotExists(ctx, "notify:sent:"+evt.ID.String(), string(evt.Type), idempotencyTTL)
		if err == nil && !fresh {
			d.logger.Debug().
				Str("event_id", evt.ID.String()).
				Str("type", string(evt.Type)).
				Msg("notification suppressed, already delivered")
			return
		}
	}

	if err := d.backend.Deliver(ctx, evt); err != nil {
		// At-least-once, best effort: the state change this event announces
		// is already committed and must not be rolled back.
		d.logger.Error().
			Err(err).
			Str("backend", d.backend.Name()).
			Str("type", string(evt.Type)).
			Str("email", evt.Email).
			Msg("notification delivery failed")
		return
	}

	d.logger.Info().
		Str("backend", d.backend.Name()).
		Str("type", string(evt.Type)).
		Str("email", evt.Email).
		Msg("notification delivered")
}
