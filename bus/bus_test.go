package bus

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/graphmind/core"
)

// collector accumulates delivered events behind a mutex and signals arrival.
type collector struct {
	mu     sync.Mutex
	events []core.Event
	ch     chan struct{}
}

func newCollector() *collector {
	return &collector{ch: make(chan struct{}, 128)}
}

func (c *collector) handler(ev core.Event) error {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
	c.ch <- struct{}{}
	return nil
}

func (c *collector) wait(t *testing.T, n int) []core.Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for i := 0; i < n; i++ {
		select {
		case <-c.ch:
		case <-deadline:
			t.Fatalf("timed out waiting for %d events", n)
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]core.Event(nil), c.events...)
}

func TestBus_FanOutToAllSubscribers(t *testing.T) {
	b := New()
	defer b.Close()

	first := newCollector()
	second := newCollector()
	b.Subscribe(core.EventNodeCreated, first.handler)
	b.Subscribe(core.EventNodeCreated, second.handler)

	ev := core.NewEvent(core.EventNodeCreated)
	b.Publish(ev)

	got := first.wait(t, 1)
	assert.Equal(t, ev.ID, got[0].ID)
	got = second.wait(t, 1)
	assert.Equal(t, ev.ID, got[0].ID)
}

func TestBus_TypeFiltering(t *testing.T) {
	b := New()
	defer b.Close()

	nodes := newCollector()
	b.Subscribe(core.EventNodeCreated, nodes.handler)

	b.Publish(core.NewEvent(core.EventEdgeCreated))
	b.Publish(core.NewEvent(core.EventNodeCreated))

	got := nodes.wait(t, 1)
	require.Len(t, got, 1)
	assert.Equal(t, core.EventNodeCreated, got[0].Type)
}

func TestBus_PerSubscriberOrdering(t *testing.T) {
	b := New()
	defer b.Close()

	c := newCollector()
	b.Subscribe(core.EventNodeCreated, c.handler)

	var want []string
	for i := 0; i < 50; i++ {
		ev := core.NewEvent(core.EventNodeCreated)
		want = append(want, ev.ID)
		b.Publish(ev)
	}

	got := c.wait(t, 50)
	require.Len(t, got, 50)
	for i, ev := range got {
		assert.Equal(t, want[i], ev.ID, "delivery order must match publish order at index %d", i)
	}
}

func TestBus_HandlerErrorDoesNotAffectOthers(t *testing.T) {
	b := New()
	defer b.Close()

	healthy := newCollector()
	b.Subscribe(core.EventNodeCreated, func(core.Event) error {
		return errors.New("boom")
	})
	b.Subscribe(core.EventNodeCreated, func(core.Event) error {
		panic("much worse")
	})
	b.Subscribe(core.EventNodeCreated, healthy.handler)

	b.Publish(core.NewEvent(core.EventNodeCreated))
	b.Publish(core.NewEvent(core.EventNodeCreated))

	got := healthy.wait(t, 2)
	assert.Len(t, got, 2)

	assert.Eventually(t, func() bool {
		return b.HandlerErrors() == 4
	}, 2*time.Second, 10*time.Millisecond)
}

func TestBus_NoReplayForLateSubscribers(t *testing.T) {
	b := New()
	defer b.Close()

	b.Publish(core.NewEvent(core.EventNodeCreated))

	late := newCollector()
	b.Subscribe(core.EventNodeCreated, late.handler)

	ev := core.NewEvent(core.EventNodeCreated)
	b.Publish(ev)

	got := late.wait(t, 1)
	require.Len(t, got, 1)
	assert.Equal(t, ev.ID, got[0].ID)
}

func TestBus_DropsWhenSubscriberQueueFull(t *testing.T) {
	release := make(chan struct{})
	b := New(func(o *Options) { o.QueueSize = 1 })

	b.Subscribe(core.EventNodeCreated, func(core.Event) error {
		<-release
		return nil
	})

	// First event is picked up by the drain goroutine, second fills the
	// queue; publishing until a drop is counted avoids racing the drain.
	require.Eventually(t, func() bool {
		b.Publish(core.NewEvent(core.EventNodeCreated))
		return b.Dropped() > 0
	}, 2*time.Second, time.Millisecond)

	close(release)
	b.Close()
}

func TestBus_CloseIsIdempotentAndFinal(t *testing.T) {
	b := New()
	c := newCollector()
	b.Subscribe(core.EventNodeCreated, c.handler)

	b.Close()
	b.Close()

	// Publications and subscriptions after close are ignored.
	b.Publish(core.NewEvent(core.EventNodeCreated))
	b.Subscribe(core.EventNodeCreated, c.handler)
	b.Publish(core.NewEvent(core.EventNodeCreated))

	c.mu.Lock()
	defer c.mu.Unlock()
	assert.Empty(t, c.events)
}

func TestBus_ConcurrentPublishers(t *testing.T) {
	b := New()
	defer b.Close()

	c := newCollector()
	b.Subscribe(core.EventNodeCreated, c.handler)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				b.Publish(core.NewEvent(core.EventNodeCreated))
			}
		}()
	}
	wg.Wait()

	got := c.wait(t, 100)
	assert.Len(t, got, 100)
}
