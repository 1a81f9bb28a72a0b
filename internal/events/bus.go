package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Name identifies an event kind on the bus.
type Name string

// Event catalogue. The engine publishes these in a fixed order per run:
// pipeline:start first, pipeline:complete or pipeline:error last, and for
// stage index i every stage event strictly between stage i-1's terminal
// event and stage i+1's stage:start.
const (
	PipelineStart    Name = "pipeline:start"
	PipelineComplete Name = "pipeline:complete"
	PipelineError    Name = "pipeline:error"
	StageStart       Name = "stage:start"
	StageProgress    Name = "stage:progress"
	StageLog         Name = "stage:log"
	StageComplete    Name = "stage:complete"
	StageError       Name = "stage:error"
	StageRecover     Name = "stage:recover"
)

// Event is an immutable, timestamped record published on the bus.
// Payload types are defined by the publisher; subscribers must not mutate
// payloads, and no subscriber return value can alter pipeline behavior.
type Event struct {
	Name      Name
	Timestamp time.Time
	Payload   interface{}
}

// New creates an event stamped with the current time.
func New(name Name, payload interface{}) Event {
	return Event{
		Name:      name,
		Timestamp: time.Now(),
		Payload:   payload,
	}
}

// Handler receives a published event. Handlers run synchronously on the
// publisher's goroutine, in subscription order.
type Handler func(Event)

// Subscription is the handle returned by Subscribe, used to Unsubscribe.
type Subscription struct {
	id   uuid.UUID
	name Name
	all  bool
}

// entry pairs a handler with its subscription token.
type entry struct {
	id      uuid.UUID
	handler Handler
}

// Bus is a synchronous publish/subscribe broadcast list. Publishing invokes
// every matching handler before Publish returns, preserving the strict
// ordering the engine's event sequence promises. A mutex guards the
// subscriber table; handlers themselves run outside the lock so a handler
// may subscribe or unsubscribe without deadlocking.
type Bus struct {
	mu   sync.RWMutex
	subs map[Name][]entry
	all  []entry
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		subs: make(map[Name][]entry),
	}
}

// Subscribe registers a handler for one event name.
func (b *Bus) Subscribe(name Name, h Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := Subscription{id: uuid.New(), name: name}
	b.subs[name] = append(b.subs[name], entry{id: sub.id, handler: h})
	return sub
}

// SubscribeAll registers a handler for every event.
func (b *Bus) SubscribeAll(h Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := Subscription{id: uuid.New(), all: true}
	b.all = append(b.all, entry{id: sub.id, handler: h})
	return sub
}

// Unsubscribe removes a previously registered handler. Unknown handles are
// ignored.
func (b *Bus) Unsubscribe(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub.all {
		b.all = remove(b.all, sub.id)
		return
	}
	b.subs[sub.name] = remove(b.subs[sub.name], sub.id)
}

// Publish delivers the event to all-event subscribers first, then to
// name-specific subscribers, each in subscription order. Events are
// fire-and-forget: handler panics are not recovered here because a
// subscriber that panics is a programming error the run should surface.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.all)+len(b.subs[ev.Name]))
	for _, e := range b.all {
		handlers = append(handlers, e.handler)
	}
	for _, e := range b.subs[ev.Name] {
		handlers = append(handlers, e.handler)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
}

// SubscriberCount reports how many handlers would see an event with the
// given name. Used by tests and the serve-mode stream endpoint.
func (b *Bus) SubscriberCount(name Name) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.all) + len(b.subs[name])
}

func remove(entries []entry, id uuid.UUID) []entry {
	for i, e := range entries {
		if e.id == id {
			return append(entries[:i:i], entries[i+1:]...)
		}
	}
	return entries
}
