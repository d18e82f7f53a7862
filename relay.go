package xtrack

import "context"

// Relay is the Strategy interface for event backends. Transport must not block on
// I/O and must handle every failure internally; callers cannot observe delivery.
type Relay interface {
	Transport(meta Metadata, payload []byte)
}

// Starter is implemented by relays that own background work (a dispatcher consumer,
// a reconnect supervisor). The registry starts only the relay that wins SetRelay.
type Starter interface {
	Start(ctx context.Context)
}

// Noop discards every message. It is what Current returns before a relay is installed.
type Noop struct{}

func (Noop) Transport(Metadata, []byte) {}

var noop Relay = Noop{}

// RelayFunc is an Adapter that lets a plain function satisfy Relay.
type RelayFunc func(meta Metadata, payload []byte)

func (f RelayFunc) Transport(meta Metadata, payload []byte) { f(meta, payload) }
