package memory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/trickstertwo/xtrack"
)

const RelayName = "memory"

func init() {
	if err := xtrack.RegisterRelay(RelayName, func(cfg map[string]any, opts ...xtrack.Option) (xtrack.Relay, error) {
		return NewRelay(ConfigFromMap(cfg), opts...), nil
	}); err != nil {
		panic(fmt.Errorf("xtrack/memory: failed to register relay: %w", err))
	}
}

// Config controls memory relay behavior.
type Config struct {
	// QueueSize is the dispatcher capacity (default: 1024).
	QueueSize int
	// Retain is how many delivered messages Messages() keeps, oldest evicted first
	// (default: 1024).
	Retain int
}

func ConfigFromMap(cfg map[string]any) Config {
	getInt := func(k string, d int) int {
		switch v := cfg[k].(type) {
		case int:
			return v
		case int32:
			return int(v)
		case int64:
			return int(v)
		case float64:
			return int(v)
		default:
			return d
		}
	}

	return Config{
		QueueSize: maxInt(1, getInt("queue_size", xtrack.DefaultQueueSize)),
		Retain:    maxInt(1, getInt("retain", 1024)),
	}
}

// Handler observes each delivered message on the consumer goroutine.
type Handler func(ctx context.Context, msg xtrack.Message)

// Relay is an in-process relay for development and tests. Messages go through a
// real dispatcher, so ordering and drop behavior match the network relays.
type Relay struct {
	cfg        Config
	dispatcher *xtrack.Dispatcher

	mu       sync.RWMutex
	handlers []Handler
	messages []xtrack.Message

	delivered atomic.Uint64
}

var (
	_ xtrack.Relay   = (*Relay)(nil)
	_ xtrack.Starter = (*Relay)(nil)
)

// NewRelay creates a memory relay. Call Start (or install it with SetRelay) before
// expecting deliveries.
func NewRelay(cfg Config, opts ...xtrack.Option) *Relay {
	if cfg.Retain < 1 {
		cfg.Retain = 1024
	}
	return &Relay{
		cfg:        cfg,
		dispatcher: xtrack.NewDispatcher(RelayName, cfg.QueueSize, opts...),
	}
}

// Transport enqueues the event; it never blocks.
func (r *Relay) Transport(meta xtrack.Metadata, payload []byte) {
	r.dispatcher.Enqueue(xtrack.Message{Metadata: meta, Payload: payload})
}

// Start launches the consumer.
func (r *Relay) Start(ctx context.Context) {
	r.dispatcher.Start(ctx, r.deliver)
}

// Subscribe adds a handler called for every subsequent delivery.
func (r *Relay) Subscribe(h Handler) {
	if h == nil {
		return
	}
	r.mu.Lock()
	r.handlers = append(r.handlers, h)
	r.mu.Unlock()
}

// Messages returns a copy of the retained deliveries, oldest first.
func (r *Relay) Messages() []xtrack.Message {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]xtrack.Message, len(r.messages))
	copy(out, r.messages)
	return out
}

func (r *Relay) deliver(ctx context.Context, msg xtrack.Message) {
	r.mu.Lock()
	r.messages = append(r.messages, msg)
	if over := len(r.messages) - r.cfg.Retain; over > 0 {
		r.messages = append(r.messages[:0], r.messages[over:]...)
	}
	handlers := make([]Handler, len(r.handlers))
	copy(handlers, r.handlers)
	r.mu.Unlock()

	r.delivered.Add(1)
	for _, h := range handlers {
		h(ctx, msg)
	}
	r.dispatcher.ReportSend(msg.Metadata, 0, nil)
}

// Stats returns relay telemetry.
type Stats struct {
	Dispatcher xtrack.DispatcherStats
	Delivered  uint64
}

func (r *Relay) Stats() Stats {
	return Stats{
		Dispatcher: r.dispatcher.Stats(),
		Delivered:  r.delivered.Load(),
	}
}

// Done is closed when the consumer exits.
func (r *Relay) Done() <-chan struct{} { return r.dispatcher.Done() }

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
