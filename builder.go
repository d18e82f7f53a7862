package xtrack

import (
	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"
)

// RelayBuilder constructs relays from the factory registry (Builder pattern).
type RelayBuilder struct {
	name     string
	cfg      map[string]any
	instance Relay

	middlewares []Middleware
	observers   []Observer
	logger      *xlog.Logger
	clock       xclock.Clock
}

// NewRelayBuilder returns an empty builder.
func NewRelayBuilder() *RelayBuilder { return &RelayBuilder{} }

// WithRelay selects a registered relay by name; cfg is handed to its factory.
func (rb *RelayBuilder) WithRelay(name string, cfg map[string]any) *RelayBuilder {
	rb.name = name
	rb.cfg = cfg
	return rb
}

// WithRelayInstance accepts a ready relay (e.g., from an adapter's New). Logger,
// clock and observers are not applied to it.
func (rb *RelayBuilder) WithRelayInstance(r Relay) *RelayBuilder {
	rb.instance = r
	return rb
}

func (rb *RelayBuilder) WithMiddleware(mw ...Middleware) *RelayBuilder {
	rb.middlewares = append(rb.middlewares, mw...)
	return rb
}

func (rb *RelayBuilder) WithObserver(obs ...Observer) *RelayBuilder {
	for _, o := range obs {
		if o != nil {
			rb.observers = append(rb.observers, o)
		}
	}
	return rb
}

func (rb *RelayBuilder) WithLogger(l *xlog.Logger) *RelayBuilder {
	rb.logger = l
	return rb
}

func (rb *RelayBuilder) WithClock(c xclock.Clock) *RelayBuilder {
	rb.clock = c
	return rb
}

// Build constructs the relay without starting it.
func (rb *RelayBuilder) Build() (Relay, error) {
	var (
		r   Relay
		err error
	)
	switch {
	case rb.instance != nil:
		r = rb.instance
	case rb.name != "":
		var opts []Option
		if rb.logger != nil {
			opts = append(opts, WithLogger(rb.logger))
		}
		if rb.clock != nil {
			opts = append(opts, WithClock(rb.clock))
		}
		if len(rb.observers) > 0 {
			opts = append(opts, WithObserver(rb.observers...))
		}
		r, err = NewRelay(rb.name, rb.cfg, opts...)
		if err != nil {
			return nil, err
		}
	default:
		return nil, ErrNoRelayConfigured
	}

	if len(rb.middlewares) > 0 {
		logger := rb.logger
		if logger == nil {
			logger = xlog.Default()
		}
		mws := append([]Middleware{RecoveryMiddleware(logger)}, rb.middlewares...)
		r = Chain(r, mws...)
	}
	return r, nil
}

// Install builds the relay and installs it as the process relay, which starts it.
// When a relay is already installed the new one is closed again if it can be.
func (rb *RelayBuilder) Install() (Relay, error) {
	return rb.installIn(&defaultRegistry)
}

func (rb *RelayBuilder) installIn(g *Registry) (Relay, error) {
	r, err := rb.Build()
	if err != nil {
		return nil, err
	}
	if err := g.SetRelay(r); err != nil {
		if c, ok := Unwrap(r).(interface{ Close() error }); ok {
			_ = c.Close()
		}
		return nil, err
	}
	return r, nil
}
