package events

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeAndPublish(t *testing.T) {
	bus := NewBus()

	var got []Event
	bus.Subscribe(StageStart, func(ev Event) {
		got = append(got, ev)
	})

	bus.Publish(New(StageStart, "payload"))
	bus.Publish(New(StageComplete, "ignored"))

	require.Len(t, got, 1)
	assert.Equal(t, StageStart, got[0].Name)
	assert.Equal(t, "payload", got[0].Payload)
	assert.False(t, got[0].Timestamp.IsZero())
}

func TestSubscribeAll(t *testing.T) {
	bus := NewBus()

	var names []Name
	bus.SubscribeAll(func(ev Event) {
		names = append(names, ev.Name)
	})

	bus.Publish(New(PipelineStart, nil))
	bus.Publish(New(StageStart, nil))
	bus.Publish(New(PipelineComplete, nil))

	assert.Equal(t, []Name{PipelineStart, StageStart, PipelineComplete}, names)
}

func TestSubscriptionOrder(t *testing.T) {
	bus := NewBus()

	var order []int
	for i := 0; i < 5; i++ {
		i := i
		bus.Subscribe(StageProgress, func(Event) {
			order = append(order, i)
		})
	}

	bus.Publish(New(StageProgress, nil))

	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestAllSubscribersSeeEventBeforeNamed(t *testing.T) {
	bus := NewBus()

	var order []string
	bus.Subscribe(StageStart, func(Event) { order = append(order, "named") })
	bus.SubscribeAll(func(Event) { order = append(order, "all") })

	bus.Publish(New(StageStart, nil))

	assert.Equal(t, []string{"all", "named"}, order)
}

func TestUnsubscribe(t *testing.T) {
	bus := NewBus()

	calls := 0
	sub := bus.Subscribe(StageLog, func(Event) { calls++ })

	bus.Publish(New(StageLog, nil))
	bus.Unsubscribe(sub)
	bus.Publish(New(StageLog, nil))

	assert.Equal(t, 1, calls)
}

func TestUnsubscribeAll(t *testing.T) {
	bus := NewBus()

	calls := 0
	sub := bus.SubscribeAll(func(Event) { calls++ })
	keep := 0
	bus.SubscribeAll(func(Event) { keep++ })

	bus.Unsubscribe(sub)
	bus.Publish(New(PipelineStart, nil))

	assert.Equal(t, 0, calls)
	assert.Equal(t, 1, keep)
}

func TestUnsubscribeUnknownHandle(t *testing.T) {
	bus := NewBus()
	// Must not panic
	bus.Unsubscribe(Subscription{})
}

func TestSubscriberCount(t *testing.T) {
	bus := NewBus()
	assert.Equal(t, 0, bus.SubscriberCount(StageStart))

	bus.Subscribe(StageStart, func(Event) {})
	bus.SubscribeAll(func(Event) {})

	assert.Equal(t, 2, bus.SubscriberCount(StageStart))
	assert.Equal(t, 1, bus.SubscriberCount(StageComplete))
}

func TestHandlerMaySubscribeDuringPublish(t *testing.T) {
	bus := NewBus()

	added := 0
	bus.Subscribe(PipelineStart, func(Event) {
		bus.Subscribe(PipelineComplete, func(Event) { added++ })
	})

	bus.Publish(New(PipelineStart, nil))
	bus.Publish(New(PipelineComplete, nil))

	assert.Equal(t, 1, added)
}

func TestConcurrentSubscribePublish(t *testing.T) {
	bus := NewBus()

	var mu sync.Mutex
	seen := 0
	bus.SubscribeAll(func(Event) {
		mu.Lock()
		seen++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			bus.Publish(New(StageProgress, nil))
		}()
		go func() {
			defer wg.Done()
			sub := bus.Subscribe(StageProgress, func(Event) {})
			bus.Unsubscribe(sub)
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 10, seen)
}
