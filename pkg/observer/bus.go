// Package observer fans out setting change notifications to registered handlers.
package observer

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/evervolv/evsettings/pkg/schema"
)

// All registers a handler for every change.
const All = "*"

// Handler is invoked on the bus dispatcher goroutine. It must not block for long.
type Handler func(schema.Change)

// Registration identifies a registered handler.
type Registration struct {
	ID  uuid.UUID
	URI string
}

// Bus delivers Change notifications to the handlers registered for the
// changed setting's URI. Notifications for the same change that pile up while
// the dispatcher is busy are delivered once.
type Bus struct {
	log zerolog.Logger

	mu       sync.Mutex
	handlers map[string]map[uuid.UUID]Handler
	pending  map[schema.Change]struct{}
	queue    []schema.Change
	closed   bool

	wake chan struct{}
	done chan struct{}
}

// NewBus starts a bus and its dispatcher.
func NewBus(log zerolog.Logger) *Bus {
	b := &Bus{
		log:      log.With().Str("component", "observer").Logger(),
		handlers: make(map[string]map[uuid.UUID]Handler),
		pending:  make(map[schema.Change]struct{}),
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	go b.run()
	return b
}

// Register adds h for uri, as returned by schema.URI or Table.URIFor, or All.
func (b *Bus) Register(uri string, h Handler) Registration {
	reg := Registration{ID: uuid.New(), URI: uri}

	b.mu.Lock()
	defer b.mu.Unlock()
	hs, ok := b.handlers[uri]
	if !ok {
		hs = make(map[uuid.UUID]Handler)
		b.handlers[uri] = hs
	}
	hs[reg.ID] = h
	return reg
}

// Unregister removes a handler. It is a no-op for unknown registrations.
func (b *Bus) Unregister(reg Registration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if hs, ok := b.handlers[reg.URI]; ok {
		delete(hs, reg.ID)
		if len(hs) == 0 {
			delete(b.handlers, reg.URI)
		}
	}
}

// Notify queues c for delivery. It never blocks on handlers.
func (b *Bus) Notify(c schema.Change) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	if _, dup := b.pending[c]; !dup {
		b.pending[c] = struct{}{}
		b.queue = append(b.queue, c)
	}
	select {
	case b.wake <- struct{}{}:
	default:
	}
	b.mu.Unlock()
}

// Close stops accepting notifications, delivers what is queued and waits for
// the dispatcher to exit.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		<-b.done
		return
	}
	b.closed = true
	close(b.wake)
	b.mu.Unlock()

	<-b.done
}

func (b *Bus) run() {
	defer close(b.done)
	for range b.wake {
		b.drain()
	}
	b.drain()
}

func (b *Bus) drain() {
	for {
		b.mu.Lock()
		if len(b.queue) == 0 {
			b.mu.Unlock()
			return
		}
		batch := b.queue
		b.queue = nil
		clear(b.pending)

		type delivery struct {
			change   schema.Change
			handlers []Handler
		}
		deliveries := make([]delivery, 0, len(batch))
		for _, c := range batch {
			hs, wild := b.handlers[c.URI()], b.handlers[All]
			if len(hs)+len(wild) == 0 {
				continue
			}
			d := delivery{change: c, handlers: make([]Handler, 0, len(hs)+len(wild))}
			for _, h := range hs {
				d.handlers = append(d.handlers, h)
			}
			for _, h := range wild {
				d.handlers = append(d.handlers, h)
			}
			deliveries = append(deliveries, d)
		}
		b.mu.Unlock()

		for _, d := range deliveries {
			for _, h := range d.handlers {
				b.invoke(h, d.change)
			}
		}
	}
}

func (b *Bus) invoke(h Handler, c schema.Change) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().Interface("panic", r).Str("uri", c.URI()).Msg("observer handler panicked")
		}
	}()
	h(c)
}
