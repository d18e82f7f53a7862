package xtrack

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/trickstertwo/xlog"
	"golang.org/x/time/rate"
)

// DefaultQueueSize is the dispatcher capacity used when a relay config leaves it unset.
const DefaultQueueSize = 1024

// DeliverFunc hands one dequeued message to a backend.
type DeliverFunc func(ctx context.Context, msg Message)

// Dispatcher decouples producers from backend latency with a bounded queue drained by
// exactly one consumer goroutine. Enqueue never blocks: when the queue is full the
// incoming message is dropped. Messages are delivered in enqueue order.
//
// There is no drain-on-shutdown; cancelling the consumer context abandons whatever
// is still queued.
type Dispatcher struct {
	name      string
	queue     chan Message
	logger    *xlog.Logger
	observers []Observer
	dropLog   *rate.Limiter

	claimed atomic.Bool
	done    chan struct{}

	enqueued atomic.Uint64
	dropped  atomic.Uint64
	dequeued atomic.Uint64
}

// DispatcherStats is a point-in-time snapshot of a dispatcher.
type DispatcherStats struct {
	Enqueued uint64 // Messages accepted
	Dropped  uint64 // Messages rejected because the queue was full
	Dequeued uint64 // Messages handed to the consumer
	Pending  int    // Current queue depth
	Capacity int    // Queue capacity
}

// NewDispatcher creates a dispatcher named after its relay (used in logs and metrics).
// size < 1 falls back to DefaultQueueSize. No goroutine runs until Start or Consume.
func NewDispatcher(name string, size int, opts ...Option) *Dispatcher {
	if size < 1 {
		size = DefaultQueueSize
	}
	o := BuildOptions(opts...)
	return &Dispatcher{
		name:      name,
		queue:     make(chan Message, size),
		logger:    o.Logger,
		observers: o.Observers,
		dropLog:   rate.NewLimiter(rate.Every(time.Second), 1),
		done:      make(chan struct{}),
	}
}

// Name returns the relay name the dispatcher was created with.
func (d *Dispatcher) Name() string { return d.name }

// Enqueue offers msg to the queue and reports whether it was accepted.
func (d *Dispatcher) Enqueue(msg Message) bool {
	select {
	case d.queue <- msg:
		d.enqueued.Add(1)
		queueEnqueued.WithLabelValues(d.name).Inc()
		queueDepth.WithLabelValues(d.name).Inc()
		return true
	default:
		n := d.dropped.Add(1)
		queueDropped.WithLabelValues(d.name).Inc()
		if d.dropLog.Allow() {
			d.logger.Warn().
				Str("relay", d.name).
				Str("event", msg.Metadata.Event).
				Str("dropped_total", strconv.FormatUint(n, 10)).
				Msg("xtrack: queue full, dropping event")
		}
		notifyObservers(d.observers, RelayEvent{
			Type:   Dropped,
			Relay:  d.name,
			Event:  msg.Metadata.Event,
			Portal: msg.Metadata.Portal,
		})
		return false
	}
}

// Next blocks until a message is available or ctx is done.
func (d *Dispatcher) Next(ctx context.Context) (Message, bool) {
	select {
	case <-ctx.Done():
		return Message{}, false
	case msg := <-d.queue:
		d.dequeued.Add(1)
		queueDepth.WithLabelValues(d.name).Dec()
		return msg, true
	}
}

// Consume claims the single consumer slot and runs loop on its own goroutine. It
// returns false, without running loop, if the slot was already claimed.
func (d *Dispatcher) Consume(ctx context.Context, loop func(ctx context.Context)) bool {
	if !d.claimed.CompareAndSwap(false, true) {
		return false
	}
	go func() {
		defer close(d.done)
		loop(ctx)
	}()
	return true
}

// Start runs the FIFO drain loop, handing each message to deliver. A panic inside
// deliver loses that message only.
func (d *Dispatcher) Start(ctx context.Context, deliver DeliverFunc) bool {
	return d.Consume(ctx, func(ctx context.Context) {
		for {
			msg, ok := d.Next(ctx)
			if !ok {
				return
			}
			d.deliver(ctx, deliver, msg)
		}
	})
}

func (d *Dispatcher) deliver(ctx context.Context, deliver DeliverFunc, msg Message) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error().
				Str("relay", d.name).
				Str("event", msg.Metadata.Event).
				Err(fmt.Errorf("panic recovered: %v", r)).
				Msg("xtrack: relay panicked while sending")
		}
	}()
	deliver(ctx, msg)
}

// ReportSend records the outcome of one backend send in metrics and tells the
// observers. Relays call it from their consumer after every attempt.
func (d *Dispatcher) ReportSend(md Metadata, took time.Duration, err error) {
	recordSend(d.name, took, err)
	e := RelayEvent{Type: Sent, Relay: d.name, Event: md.Event, Portal: md.Portal, Duration: took}
	if err != nil {
		e.Type = SendFailed
		e.Err = err
	}
	notifyObservers(d.observers, e)
}

// ReportConnect records a connection attempt (err == nil means connected) or the
// loss of an established connection.
func (d *Dispatcher) ReportConnect(err error) {
	recordConnect(d.name, err)
	e := RelayEvent{Type: Connected, Relay: d.name}
	if err != nil {
		e.Type = Disconnected
		e.Err = err
	}
	notifyObservers(d.observers, e)
}

// Done is closed when the consumer goroutine exits.
func (d *Dispatcher) Done() <-chan struct{} { return d.done }

// Stats returns current dispatcher counters.
func (d *Dispatcher) Stats() DispatcherStats {
	return DispatcherStats{
		Enqueued: d.enqueued.Load(),
		Dropped:  d.dropped.Load(),
		Dequeued: d.dequeued.Load(),
		Pending:  len(d.queue),
		Capacity: cap(d.queue),
	}
}
