package memory

import (
	"github.com/trickstertwo/xtrack"
)

// Use builds a memory relay and installs it as the process relay.
// Mirrors httprelay.Use and udprelay.Use: explicit construction with global install.
//
// Example:
//
//	rec, err := memory.Use(memory.Config{QueueSize: 4096, Retain: 100},
//	    xtrack.WithLogger(logger),
//	)
//
// Install fails with xtrack.ErrRelayAlreadyInitialized if a relay is already set.
func Use(cfg Config, opts ...xtrack.Option) (*Relay, error) {
	r := NewRelay(cfg, opts...)
	if err := xtrack.SetRelay(r); err != nil {
		return nil, err
	}
	return r, nil
}
