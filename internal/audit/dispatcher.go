package audit

import (
	"context"
	"sync"
	"sync/atomic"
)

// Config controls dispatcher buffering behavior.
type Config struct {
	Enabled    bool
	BufferSize int
	// DropIfFull discards events when the buffer is full. Otherwise Emit waits
	// for room, for ctx to end or for Close.
	DropIfFull bool
	// OnDrop, when set, is called synchronously for every event lost to a full buffer.
	OnDrop func(Event)
}

// Stats is a point-in-time view of a Dispatcher.
type Stats struct {
	Delivered uint64
	Dropped   uint64
	Pending   int
}

// Dispatcher hands audit events to a Sink from one worker goroutine, in the
// order they were accepted. A nil *Dispatcher accepts and ignores every call.
type Dispatcher struct {
	sink   Sink
	drop   bool
	onDrop func(Event)

	// mu is held shared by senders and exclusively by Close, so the queue is
	// never closed under an in-flight send.
	mu      sync.RWMutex
	closing bool
	queue   chan Event
	stopped chan struct{}

	delivered atomic.Uint64
	dropped   atomic.Uint64
}

// NewDispatcher starts the worker. It returns nil when cfg is disabled.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	size := cfg.BufferSize
	if size < 1 {
		size = 1
	}

	d := &Dispatcher{
		sink:    sink,
		drop:    cfg.DropIfFull,
		onDrop:  cfg.OnDrop,
		queue:   make(chan Event, size),
		stopped: make(chan struct{}),
	}
	go d.work()
	return d
}

// work exits once Close has closed the queue and everything in it is delivered.
func (d *Dispatcher) work() {
	defer close(d.stopped)
	for event := range d.queue {
		d.sink.Emit(context.Background(), event)
		d.delivered.Add(1)
	}
}

// Emit queues event. Events emitted after Close are discarded silently.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closing {
		return
	}

	if d.drop {
		select {
		case d.queue <- event:
		default:
			d.dropped.Add(1)
			if d.onDrop != nil {
				d.onDrop(event)
			}
		}
		return
	}

	select {
	case d.queue <- event:
	case <-ctx.Done():
	}
}

// Close stops intake, waits for the buffered events to reach the sink and
// returns. Calling it again is a no-op.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.mu.Lock()
	if !d.closing {
		d.closing = true
		close(d.queue)
	}
	d.mu.Unlock()
	<-d.stopped
}

// Stats reports delivery counters and the current queue depth.
func (d *Dispatcher) Stats() Stats {
	if d == nil {
		return Stats{}
	}
	return Stats{
		Delivered: d.delivered.Load(),
		Dropped:   d.dropped.Load(),
		Pending:   len(d.queue),
	}
}

func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// Delivered counts events handed to the sink.
func (d *Dispatcher) Delivered() uint64 {
	if d == nil {
		return 0
	}
	return d.delivered.Load()
}
