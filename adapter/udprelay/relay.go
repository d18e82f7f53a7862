// Package udprelay ships events as unframed UDP datagrams, one per event.
//
// The socket is owned by a reconnect supervisor running as the dispatcher's only
// consumer. While it is disconnected, producers keep enqueuing; the queue's fixed
// capacity decides what survives the outage.
package udprelay

import (
	"context"
	"fmt"

	"github.com/trickstertwo/xtrack"
)

const RelayName = "udp"

func init() {
	if err := xtrack.RegisterRelay(RelayName, func(cfg map[string]any, opts ...xtrack.Option) (xtrack.Relay, error) {
		return New(ConfigFromMap(cfg), opts...)
	}); err != nil {
		panic(fmt.Errorf("xtrack/udprelay: failed to register relay: %w", err))
	}
}

// Relay forwards events to a UDP listener.
type Relay struct {
	dispatcher *xtrack.Dispatcher
	sup        *supervisor
}

var (
	_ xtrack.Relay   = (*Relay)(nil)
	_ xtrack.Starter = (*Relay)(nil)
)

// New validates cfg and builds a relay. No socket is opened until Start.
func New(cfg Config, opts ...xtrack.Option) (*Relay, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := xtrack.BuildOptions(opts...)
	d := xtrack.NewDispatcher(RelayName, cfg.QueueSize, opts...)
	return &Relay{
		dispatcher: d,
		sup: &supervisor{
			addr:   cfg.Addr,
			delay:  cfg.ReconnectDelay,
			dial:   dialUDP,
			queue:  d,
			logger: o.Logger,
			clock:  o.Clock,
		},
	}, nil
}

// Use builds a relay and installs it as the process relay.
func Use(cfg Config, opts ...xtrack.Option) (*Relay, error) {
	r, err := New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	if err := xtrack.SetRelay(r); err != nil {
		return nil, err
	}
	return r, nil
}

// Transport enqueues the event; it never blocks.
func (r *Relay) Transport(meta xtrack.Metadata, payload []byte) {
	r.dispatcher.Enqueue(xtrack.Message{Metadata: meta, Payload: payload})
}

// Start launches the reconnect supervisor.
func (r *Relay) Start(ctx context.Context) {
	r.dispatcher.Consume(ctx, r.sup.run)
}

// State reports the supervisor's connection state.
func (r *Relay) State() State { return r.sup.State() }

func (r *Relay) Stats() xtrack.DispatcherStats { return r.dispatcher.Stats() }

// Done is closed when the supervisor exits.
func (r *Relay) Done() <-chan struct{} { return r.dispatcher.Done() }
