package eventbus

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/ZanzyTHEbar/aspectjobs/internal/domain"
)

// Handler is invoked for every drained event of the kind it subscribed to.
type Handler func(domain.Event)

// EventBus defines the interface for publishing and dispatching events.
type EventBus interface {
	Publish(event domain.Event)
	Subscribe(kind string, h Handler) (unsubscribe func())
	Drain() int
	Stop()
}

type subscription struct {
	id uint64
	h  Handler
}

// Dispatcher is an in-memory event bus with queued delivery. Publish is safe
// from any goroutine and only appends to the queue; handlers run during Drain
// on the draining goroutine, in publish order.
type Dispatcher struct {
	mu       sync.Mutex
	handlers map[string][]subscription
	queue    []domain.Event
	nextID   uint64
	capacity int
	dropped  int
	stopped  bool
	logger   zerolog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithCapacity bounds the number of queued events. Publishing to a full queue
// drops the event. Zero means unbounded.
func WithCapacity(n int) Option {
	return func(d *Dispatcher) { d.capacity = n }
}

// WithLogger sets the dispatcher logger.
func WithLogger(l zerolog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// NewDispatcher creates a new Dispatcher.
func NewDispatcher(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		handlers: make(map[string][]subscription),
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

var _ EventBus = (*Dispatcher)(nil)

// Publish queues an event for the next Drain.
func (d *Dispatcher) Publish(event domain.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.capacity > 0 && len(d.queue) >= d.capacity {
		d.dropped++
		d.logger.Warn().Str("kind", event.Kind).Msg("event queue full, event dropped")
		return
	}
	d.queue = append(d.queue, event)
}

// Subscribe registers h for events of the given kind. The returned function
// removes the registration; calling it more than once is harmless.
func (d *Dispatcher) Subscribe(kind string, h Handler) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	id := d.nextID
	d.handlers[kind] = append(d.handlers[kind], subscription{id: id, h: h})

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		subs := d.handlers[kind]
		for i, s := range subs {
			if s.id == id {
				d.handlers[kind] = append(subs[:i:i], subs[i+1:]...)
				break
			}
		}
		if len(d.handlers[kind]) == 0 {
			delete(d.handlers, kind)
		}
	}
}

// Drain delivers every queued event and returns how many were delivered.
// Events published by handlers during Drain are delivered in the same call.
func (d *Dispatcher) Drain() int {
	delivered := 0
	for {
		d.mu.Lock()
		if len(d.queue) == 0 {
			d.mu.Unlock()
			return delivered
		}
		batch := d.queue
		d.queue = nil
		d.mu.Unlock()

		for _, ev := range batch {
			for _, s := range d.snapshot(ev.Kind) {
				s.h(ev)
			}
			delivered++
		}
	}
}

func (d *Dispatcher) snapshot(kind string) []subscription {
	d.mu.Lock()
	defer d.mu.Unlock()
	subs := d.handlers[kind]
	out := make([]subscription, len(subs))
	copy(out, subs)
	return out
}

// Pending returns the number of queued events.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// Dropped returns how many events were discarded because the queue was full.
func (d *Dispatcher) Dropped() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dropped
}

// Stop discards queued events and ignores further publishes.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.stopped = true
	d.queue = nil
	d.handlers = make(map[string][]subscription)
	d.logger.Debug().Msg("event dispatcher stopped")
}
