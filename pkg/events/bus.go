package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gatherly/gatherly/pkg/async"
)

// Bus publishes domain events. Publishing is fire and forget: a slow
// or failing consumer never delays or fails the operation that
// produced the event.
type Bus interface {
	Publish(ctx context.Context, event *Event)
}

// Handler consumes a single event. Handlers run on background
// goroutines and must not assume the originating request is still in
// flight.
type Handler func(ctx context.Context, event *Event)

// Dispatcher is the in-process Bus. Handlers subscribe to specific
// event types or to every event, and each delivery runs on its own
// panic-safe goroutine.
type Dispatcher struct {
	mu       sync.RWMutex
	byType   map[Type][]Handler
	wildcard []Handler
	timeout  time.Duration
}

// NewDispatcher creates an in-process event dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		byType:  make(map[Type][]Handler),
		timeout: 10 * time.Second,
	}
}

// Subscribe registers a handler for the given event types. With no
// types the handler receives every event.
func (d *Dispatcher) Subscribe(handler Handler, types ...Type) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(types) == 0 {
		d.wildcard = append(d.wildcard, handler)
		return
	}
	for _, t := range types {
		d.byType[t] = append(d.byType[t], handler)
	}
}

// Publish stamps the event and fans it out. Delivery is detached from
// the caller's context so request cancellation does not drop events.
func (d *Dispatcher) Publish(ctx context.Context, event *Event) {
	if event == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	d.mu.RLock()
	handlers := make([]Handler, 0, len(d.byType[event.Type])+len(d.wildcard))
	handlers = append(handlers, d.byType[event.Type]...)
	handlers = append(handlers, d.wildcard...)
	d.mu.RUnlock()

	for _, h := range handlers {
		h := h
		async.SafeGoNoError(context.Background(), d.timeout, "event "+string(event.Type), func(ctx context.Context) {
			h(ctx, event)
		})
	}
}

// NopBus discards every event. Useful in tests and the janitor, where
// no consumer is wired.
type NopBus struct{}

// Publish implements Bus.
func (NopBus) Publish(ctx context.Context, event *Event) {}
