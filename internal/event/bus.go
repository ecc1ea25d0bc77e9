package event

import (
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/Iron-Ham/devboot/internal/logging"
)

// DefaultBuffer is the channel size given to subscribers that ask for none.
const DefaultBuffer = 256

// Handler is a function that handles an event.
type Handler func(Event)

// Subscription is a registered subscriber. Events are read from Events();
// the channel is closed by Close, Bus.Unsubscribe or Bus.Close.
type Subscription struct {
	id      string
	types   map[string]bool // nil means every type
	ch      chan Event
	bus     *Bus
	dropped atomic.Uint64
}

// ID returns the subscription ID.
func (s *Subscription) ID() string { return s.id }

// Events returns the channel events are delivered on.
func (s *Subscription) Events() <-chan Event { return s.ch }

// Dropped returns how many events this subscriber missed because its
// channel was full.
func (s *Subscription) Dropped() uint64 { return s.dropped.Load() }

// Close unsubscribes. It is safe to call more than once.
func (s *Subscription) Close() {
	s.bus.Unsubscribe(s.id)
}

func (s *Subscription) wants(eventType string) bool {
	return s.types == nil || s.types[eventType]
}

// Bus fans events out to subscribers without blocking the publisher.
type Bus struct {
	mu            sync.RWMutex
	subscriptions map[string]*Subscription
	closed        bool

	nextID        atomic.Uint64
	dropped       atomic.Uint64
	defaultBuffer int
	logger        *logging.Logger
}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger logs dropped deliveries and handler panics to logger.
func WithLogger(logger *logging.Logger) Option {
	return func(b *Bus) {
		if logger != nil {
			b.logger = logger.WithComponent("event")
		}
	}
}

// WithDefaultBuffer sets the channel size used when Subscribe is given a
// non-positive buffer.
func WithDefaultBuffer(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.defaultBuffer = n
		}
	}
}

// NewBus creates a new event bus.
func NewBus(opts ...Option) *Bus {
	b := &Bus{
		subscriptions: make(map[string]*Subscription),
		defaultBuffer: DefaultBuffer,
		logger:        logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a subscriber with a channel of the given size for the
// listed event types. No types means all types. Subscribing to a closed bus
// returns a subscription whose channel is already closed.
func (b *Bus) Subscribe(buffer int, types ...string) *Subscription {
	if buffer <= 0 {
		buffer = b.defaultBuffer
	}

	sub := &Subscription{
		id:  fmt.Sprintf("sub-%d", b.nextID.Add(1)),
		ch:  make(chan Event, buffer),
		bus: b,
	}
	if len(types) > 0 {
		sub.types = make(map[string]bool, len(types))
		for _, t := range types {
			sub.types[t] = true
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		close(sub.ch)
		return sub
	}
	b.subscriptions[sub.id] = sub
	return sub
}

// SubscribeFunc registers handler for the listed event types (all when
// none are given). The handler runs on a dedicated goroutine, so a slow
// handler only ever causes its own events to be dropped. A panicking
// handler is logged and recovered.
func (b *Bus) SubscribeFunc(handler Handler, types ...string) *Subscription {
	sub := b.Subscribe(0, types...)
	go func() {
		for e := range sub.ch {
			b.safeCall(handler, e)
		}
	}()
	return sub
}

// Unsubscribe removes a subscription by ID and closes its channel.
// Returns true if the subscription was found and removed.
func (b *Bus) Unsubscribe(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, ok := b.subscriptions[id]
	if !ok {
		return false
	}
	delete(b.subscriptions, id)
	close(sub.ch)
	return true
}

// Publish delivers e to every interested subscriber. It never blocks: a
// subscriber whose channel is full misses the event.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	eventType := e.EventType()
	for _, sub := range b.subscriptions {
		if !sub.wants(eventType) {
			continue
		}
		select {
		case sub.ch <- e:
		default:
			b.dropped.Add(1)
			if sub.dropped.Add(1) == 1 {
				b.logger.Warn("subscriber falling behind, dropping events",
					"subscription", sub.id,
					"event_type", eventType,
					"project_id", e.ProjectID(),
					"buffer", cap(sub.ch))
			}
		}
	}
}

// safeCall invokes a handler and recovers from any panics.
func (b *Bus) safeCall(handler Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				"event_type", e.EventType(),
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()))
		}
	}()
	handler(e)
}

// Dropped returns the total number of deliveries dropped across all
// subscribers.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// SubscriptionCount returns the number of active subscriptions.
func (b *Bus) SubscriptionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscriptions)
}

// Close removes every subscription and closes their channels. Later
// publishes are ignored.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subscriptions {
		close(sub.ch)
		delete(b.subscriptions, id)
	}
}
