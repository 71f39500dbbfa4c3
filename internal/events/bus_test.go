package events

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPublishDispatchesToSubscribers(t *testing.T) {
	bus := NewBus(10)
	var mu sync.Mutex
	var got Event
	bus.Subscribe(func(ev Event) {
		mu.Lock()
		got = ev
		mu.Unlock()
	})

	bus.Publish(New(SessionStarted, "scene-1", "720p", "started"))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, SessionStarted, got.Type)
	assert.Equal(t, "scene-1", got.SceneID)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus(10)
	count := 0
	id := bus.Subscribe(func(Event) { count++ })
	bus.Unsubscribe(id)
	bus.Publish(New(SessionStopped, "scene-1", "720p", "stopped"))
	assert.Equal(t, 0, count)
}

func TestRecentIsBounded(t *testing.T) {
	bus := NewBus(3)
	for i := 0; i < 5; i++ {
		bus.Publish(New(SegmentFailed, "scene-1", "720p", "fail"))
	}
	assert.Len(t, bus.Recent(), 3)
}

func TestPublishAsyncEventuallyDelivers(t *testing.T) {
	bus := NewBus(10)
	done := make(chan struct{})
	bus.Subscribe(func(Event) { close(done) })
	bus.PublishAsync(New(SessionFailed, "scene-1", "720p", "failed"))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for async publish")
	}
}
