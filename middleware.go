package xtrack

import (
	"context"
	"fmt"

	"github.com/trickstertwo/xlog"
)

// Middleware decorates a relay. It sees every flattened event before the wrapped
// relay does and runs on the producer goroutine, so it must not block.
type Middleware func(next Relay) Relay

// FilterMiddleware forwards only the events keep accepts.
func FilterMiddleware(keep func(md Metadata) bool) Middleware {
	if keep == nil {
		return func(next Relay) Relay { return next }
	}
	return func(next Relay) Relay {
		return RelayFunc(func(md Metadata, payload []byte) {
			if keep(md) {
				next.Transport(md, payload)
			}
		})
	}
}

// RecoveryMiddleware keeps a panicking relay from taking down the tracking caller.
// The event is lost and the panic is logged.
func RecoveryMiddleware(logger *xlog.Logger) Middleware {
	if logger == nil {
		logger = xlog.Default()
	}
	return func(next Relay) Relay {
		return RelayFunc(func(md Metadata, payload []byte) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error().
						Str("event", md.Event).
						Err(fmt.Errorf("panic recovered: %v", r)).
						Msg("xtrack: relay panicked in Transport")
				}
			}()
			next.Transport(md, payload)
		})
	}
}

// Chain composes middlewares around r in order: the first middleware sees events
// first. The result still starts r when installed with SetRelay.
func Chain(r Relay, mws ...Middleware) Relay {
	if len(mws) == 0 {
		return r
	}
	wrapped := r
	// Apply in reverse so that first middleware wraps last.
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] == nil {
			continue
		}
		wrapped = mws[i](wrapped)
	}
	return &chained{head: wrapped, base: r}
}

type chained struct {
	head Relay
	base Relay
}

func (c *chained) Transport(md Metadata, payload []byte) { c.head.Transport(md, payload) }

func (c *chained) Start(ctx context.Context) {
	if s, ok := c.base.(Starter); ok {
		s.Start(ctx)
	}
}

// Unwrap returns the relay the middlewares were applied to.
func (c *chained) Unwrap() Relay { return c.base }

// Unwrap peels middleware chains off r and returns the innermost relay.
func Unwrap(r Relay) Relay {
	for {
		u, ok := r.(interface{ Unwrap() Relay })
		if !ok {
			return r
		}
		r = u.Unwrap()
	}
}
