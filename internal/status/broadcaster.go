package status

import (
	"context"
	"sync"
	"time"

	"github.com/slotter-org/clinic-voice-scheduler/internal/logger"
)

const DefaultBuffer = 64

// Sink delivers an encoded event to observers of channel.
type Sink interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// Broadcaster queues events on one channel drained by a single goroutine,
// so observers see them in emission order.
type Broadcaster struct {
	log     *logger.Logger
	sink    Sink
	channel string
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	events chan Event
	done   chan struct{}
}

func NewBroadcaster(sink Sink, channel string, buffer int, log *logger.Logger) *Broadcaster {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	b := &Broadcaster{
		log:     log.With("component", "StatusBroadcaster", "channel", channel),
		sink:    sink,
		channel: channel,
		timeout: 2 * time.Second,
		events:  make(chan Event, buffer),
		done:    make(chan struct{}),
	}
	go b.run()
	return b
}

// Emit never blocks. When the queue is full the event is dropped.
func (b *Broadcaster) Emit(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	select {
	case b.events <- e:
	default:
		b.log.Warn("Status queue full, dropping event", "type", e.Type, "component", e.Component)
	}
}

func (b *Broadcaster) run() {
	defer close(b.done)
	for e := range b.events {
		b.log.Debug("Status event", "type", e.Type, "component", e.Component, "status", e.Status, "message", e.Message)
		if b.sink == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
		if err := b.sink.Publish(ctx, b.channel, e.JSON()); err != nil {
			b.log.Warn("Status delivery failed", "type", e.Type, "error", err)
		}
		cancel()
	}
}

// Close stops accepting events and waits for the queue to drain.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	if !b.closed {
		b.closed = true
		close(b.events)
	}
	b.mu.Unlock()
	<-b.done
}

// History keeps the most recent events in memory.
type History struct {
	mu     sync.Mutex
	limit  int
	events []Event
}

func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = 100
	}
	return &History{limit: limit}
}

func (h *History) Emit(e Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, e)
	if len(h.events) > h.limit {
		h.events = h.events[len(h.events)-h.limit:]
	}
}

func (h *History) Events() []Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Event, len(h.events))
	copy(out, h.events)
	return out
}
