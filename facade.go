package xtrack

import (
	"context"
	"runtime"
	"sync/atomic"
)

const (
	uninitialized int32 = iota
	initializing
	initialized
)

// Registry is a publish-once slot for the active relay. The zero value is ready to use.
//
// State only moves forward (uninitialized, initializing, initialized) and there is
// no reset: a relay installed here lives as long as the Registry.
type Registry struct {
	state atomic.Int32
	relay atomic.Pointer[relayHolder]
}

type relayHolder struct{ r Relay }

// SetRelay installs r if no relay has been installed yet. The winning call starts r
// (when it implements Starter) before publishing it. Every other call waits for the
// winner to finish and returns ErrRelayAlreadyInitialized.
func (g *Registry) SetRelay(r Relay) error {
	if r == nil {
		return ErrNilRelay
	}
	if g.state.CompareAndSwap(uninitialized, initializing) {
		g.relay.Store(&relayHolder{r: r})
		if s, ok := r.(Starter); ok {
			s.Start(context.Background())
		}
		g.state.Store(initialized)
		return nil
	}
	for g.state.Load() == initializing {
		runtime.Gosched()
	}
	return ErrRelayAlreadyInitialized
}

// Current returns the installed relay, or a shared Noop until one is published.
// It never blocks.
func (g *Registry) Current() Relay {
	if g.state.Load() != initialized {
		return noop
	}
	return g.relay.Load().r
}

// Initialized reports whether a relay has been published.
func (g *Registry) Initialized() bool { return g.state.Load() == initialized }

var defaultRegistry Registry

// SetRelay installs the process-wide relay. It succeeds at most once per process.
func SetRelay(r Relay) error { return defaultRegistry.SetRelay(r) }

// Current returns the process-wide relay, or Noop before SetRelay succeeds.
func Current() Relay { return defaultRegistry.Current() }
