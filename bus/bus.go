// Package bus provides the in-process publish/subscribe dispatcher that
// decouples graph mutation from agent reaction. Delivery is fan-out: every
// handler registered for an event type at publish time receives the event on
// its own ordered queue. A failing handler is logged and counted, never
// propagated to the publisher or to sibling handlers. The bus holds no
// durable queue; a handler subscribed after publication never sees the event.
package bus

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/graphmind/core"
	"github.com/hupe1980/graphmind/logging"
)

// Options configures an InMemoryBus instance.
type Options struct {
	// QueueSize bounds each subscriber's delivery queue. When a queue is
	// full the event is dropped for that subscriber and counted; delivery
	// never blocks the publisher.
	QueueSize int

	// Logger receives handler failure and drop diagnostics.
	Logger logging.Logger
}

// InMemoryBus is the process-local core.Bus implementation. Each subscriber
// owns a buffered queue drained by a dedicated goroutine, so publish order is
// preserved per subscriber for any single publishing goroutine while handlers
// of different subscribers run independently.
type InMemoryBus struct {
	mu     sync.RWMutex
	subs   map[core.EventType][]*subscription
	closed bool
	wg     sync.WaitGroup

	logger logging.Logger

	queueSize   int
	handlerErrs atomic.Uint64
	dropped     atomic.Uint64
}

type subscription struct {
	queue   chan core.Event
	handler core.Handler
}

var _ core.Bus = (*InMemoryBus)(nil)

// New constructs a bus with optional overrides.
func New(optFns ...func(o *Options)) *InMemoryBus {
	opts := Options{
		QueueSize: 256,
		Logger:    logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &InMemoryBus{
		subs:      make(map[core.EventType][]*subscription),
		logger:    opts.Logger,
		queueSize: opts.QueueSize,
	}
}

// Subscribe registers a handler for an event type. The handler starts
// receiving events published after registration; there is no replay.
func (b *InMemoryBus) Subscribe(t core.EventType, h core.Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		b.logger.Warn("subscribe on closed bus ignored", "event_type", string(t))
		return
	}

	sub := &subscription{
		queue:   make(chan core.Event, b.queueSize),
		handler: h,
	}
	b.subs[t] = append(b.subs[t], sub)

	b.wg.Add(1)
	go b.drain(sub)
}

// Publish fans the event out to all handlers registered for its type at this
// moment. Enqueueing is non-blocking; a subscriber whose queue is full loses
// the event (counted via Dropped) rather than stalling the publisher.
func (b *InMemoryBus) Publish(ev core.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for _, sub := range b.subs[ev.Type] {
		select {
		case sub.queue <- ev:
		default:
			b.dropped.Add(1)
			b.logger.Warn("subscriber queue full, event dropped", "event_type", string(ev.Type), "event_id", ev.ID)
		}
	}
}

// Close tears down all subscriber queues and waits for in-flight handler
// calls to finish. The bus rejects publications and subscriptions afterwards.
func (b *InMemoryBus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for _, subs := range b.subs {
		for _, sub := range subs {
			close(sub.queue)
		}
	}
	b.mu.Unlock()

	b.wg.Wait()
}

// HandlerErrors returns the number of handler invocations that signalled an
// error or panicked since construction.
func (b *InMemoryBus) HandlerErrors() uint64 { return b.handlerErrs.Load() }

// Dropped returns the number of events shed due to full subscriber queues.
func (b *InMemoryBus) Dropped() uint64 { return b.dropped.Load() }

// drain delivers queued events to one handler in order. Errors and panics are
// absorbed so one misbehaving handler cannot crash the bus or starve others.
func (b *InMemoryBus) drain(sub *subscription) {
	defer b.wg.Done()
	for ev := range sub.queue {
		if err := b.invoke(sub.handler, ev); err != nil {
			b.handlerErrs.Add(1)
			b.logger.Error("event handler failed", "event_type", string(ev.Type), "event_id", ev.ID, "error", err)
		}
	}
}

func (b *InMemoryBus) invoke(h core.Handler, ev core.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ev)
}
