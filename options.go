package xtrack

import (
	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"
)

// Options carries the ambient dependencies shared by dispatchers and relays.
type Options struct {
	Logger    *xlog.Logger
	Clock     xclock.Clock
	Observers []Observer
}

// Option configures Options.
type Option func(*Options)

// WithLogger injects a custom xlog logger.
func WithLogger(l *xlog.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// WithClock injects a custom xclock clock (used for latency measurement).
func WithClock(c xclock.Clock) Option {
	return func(o *Options) { o.Clock = c }
}

// WithObserver registers observers for relay lifecycle notifications.
func WithObserver(obs ...Observer) Option {
	return func(o *Options) { o.Observers = append(o.Observers, obs...) }
}

// BuildOptions applies opts over the defaults: xlog.Default() and xclock.Default().
func BuildOptions(opts ...Option) Options {
	var o Options
	for _, fn := range opts {
		if fn != nil {
			fn(&o)
		}
	}
	if o.Logger == nil {
		o.Logger = xlog.Default()
	}
	if o.Clock == nil {
		o.Clock = xclock.Default()
	}
	return o
}
