package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []*Event
	ch     chan struct{}
}

func newRecorder(expect int) *recorder {
	return &recorder{ch: make(chan struct{}, expect)}
}

func (r *recorder) handle(ctx context.Context, event *Event) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
	r.ch <- struct{}{}
}

func (r *recorder) wait(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-r.ch:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for event %d of %d", i+1, n)
		}
	}
}

func TestDispatcherRoutesByType(t *testing.T) {
	d := NewDispatcher()

	joined := newRecorder(1)
	deleted := newRecorder(1)
	d.Subscribe(joined.handle, CollectionJoined)
	d.Subscribe(deleted.handle, CollectionDeleted)

	d.Publish(context.Background(), &Event{Type: CollectionJoined, CollectionID: "c1", ActorID: "u1"})
	joined.wait(t, 1)

	joined.mu.Lock()
	defer joined.mu.Unlock()
	require.Len(t, joined.events, 1)
	assert.Equal(t, "c1", joined.events[0].CollectionID)
	assert.NotEmpty(t, joined.events[0].ID)
	assert.False(t, joined.events[0].Timestamp.IsZero())

	deleted.mu.Lock()
	defer deleted.mu.Unlock()
	assert.Empty(t, deleted.events)
}

func TestDispatcherWildcardSeesEverything(t *testing.T) {
	d := NewDispatcher()

	all := newRecorder(2)
	d.Subscribe(all.handle)

	d.Publish(context.Background(), &Event{Type: PostPinned})
	d.Publish(context.Background(), &Event{Type: MemberRemoved})
	all.wait(t, 2)

	all.mu.Lock()
	defer all.mu.Unlock()
	assert.Len(t, all.events, 2)
}

func TestDispatcherSurvivesPanickingHandler(t *testing.T) {
	d := NewDispatcher()

	d.Subscribe(func(ctx context.Context, event *Event) {
		panic("consumer bug")
	}, PostCreated)

	healthy := newRecorder(1)
	d.Subscribe(healthy.handle, PostCreated)

	d.Publish(context.Background(), &Event{Type: PostCreated})
	healthy.wait(t, 1)
}

func TestDispatcherNilEvent(t *testing.T) {
	d := NewDispatcher()
	assert.NotPanics(t, func() {
		d.Publish(context.Background(), nil)
	})
}

func TestNopBus(t *testing.T) {
	var bus Bus = NopBus{}
	assert.NotPanics(t, func() {
		bus.Publish(context.Background(), &Event{Type: CollectionCreated})
	})
}
