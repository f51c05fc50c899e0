package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Class decides what Emit does when the buffer is full.
type Class uint8

const (
	// ClassCaller events are emitted on the goroutine of the call they describe
	// (login, register, logout). They follow Config.DropIfFull; when blocking they give
	// up as soon as the caller's context ends.
	ClassCaller Class = iota
	// ClassBackground events are emitted by the refresh path on behalf of many callers.
	// They never block: on a full buffer the oldest queued event is evicted.
	ClassBackground
)

// ClassOf is the default classification of the session event types.
func ClassOf(eventType string) Class {
	switch eventType {
	case EventRefresh, EventRefreshFailed, EventReauthRequired:
		return ClassBackground
	default:
		return ClassCaller
	}
}

// Config controls dispatcher buffering behavior.
type Config struct {
	Enabled    bool
	BufferSize int
	// DropIfFull applies to ClassCaller events only.
	DropIfFull bool
	// Classify maps an event type to its Class. Defaults to ClassOf.
	Classify func(eventType string) Class
	// Now stamps events emitted without a timestamp. Defaults to time.Now.
	Now func() time.Time
}

// Dispatcher asynchronously forwards session events to a sink. A nil Dispatcher is
// valid and drops everything.
type Dispatcher struct {
	cfg  Config
	sink Sink
	ch   chan Event

	// sinkCtx is handed to the sink and cancelled by Close, which releases a sink
	// stuck on a reader that went away.
	sinkCtx    context.Context
	cancelSink context.CancelFunc
	done       chan struct{}
	wg         sync.WaitGroup
	closeOnce  sync.Once
	closed     atomic.Bool

	dropped   atomic.Uint64
	delivered atomic.Uint64
}

// NewDispatcher starts the delivery worker. It returns nil when cfg is disabled.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if cfg.Classify == nil {
		cfg.Classify = ClassOf
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		cfg:        cfg,
		sink:       sink,
		ch:         make(chan Event, cfg.BufferSize),
		sinkCtx:    ctx,
		cancelSink: cancel,
		done:       make(chan struct{}),
	}
	d.wg.Add(1)
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case event := <-d.ch:
			d.deliver(event)
		case <-d.done:
			d.drain()
			return
		}
	}
}

func (d *Dispatcher) drain() {
	for {
		select {
		case event := <-d.ch:
			d.deliver(event)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(event Event) {
	d.sink.Emit(d.sinkCtx, event)
	d.delivered.Add(1)
}

// Emit queues event. Missing ID and Timestamp are filled in. What happens on a full
// buffer depends on the event's Class.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil || d.closed.Load() {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = d.cfg.Now().UTC()
	}

	switch {
	case d.cfg.Classify(event.Type) == ClassBackground:
		d.evictOldest(event)
	case d.cfg.DropIfFull:
		if !d.offer(event) {
			d.dropped.Add(1)
		}
	default:
		if ctx == nil {
			ctx = context.Background()
		}
		select {
		case d.ch <- event:
		case <-ctx.Done():
			d.dropped.Add(1)
		case <-d.done:
		}
	}
}

func (d *Dispatcher) offer(event Event) bool {
	select {
	case d.ch <- event:
		return true
	default:
		return false
	}
}

// evictOldest makes room by discarding queued events. A blocked caller may take the
// freed slot first, so it gives up after a few rounds and drops event instead.
func (d *Dispatcher) evictOldest(event Event) {
	for range 3 {
		if d.offer(event) {
			return
		}
		select {
		case <-d.ch:
			d.dropped.Add(1)
		default:
		}
	}
	d.dropped.Add(1)
}

// Close stops accepting events, hands what is queued to the sink and waits for the
// worker to exit. Sinks that honour their context stop waiting on a reader once
// Close is called. It is idempotent.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.cancelSink()
		d.wg.Wait()
	})
}

// Dropped returns the number of events discarded on a full buffer.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// Delivered returns the number of events handed to the sink.
func (d *Dispatcher) Delivered() uint64 {
	if d == nil {
		return 0
	}
	return d.delivered.Load()
}
