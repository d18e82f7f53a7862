package redisstream

import (
	"fmt"

	"github.com/trickstertwo/xtrack"
)

// Adapter: Redis Streams relay (Strategy + Adapter patterns)

const RelayName = "redis-streams"

func init() {
	if err := xtrack.RegisterRelay(RelayName, func(cfg map[string]any, opts ...xtrack.Option) (xtrack.Relay, error) {
		return NewRelay(ConfigFromMap(cfg), opts...)
	}); err != nil {
		panic(fmt.Errorf("xtrack: failed to register relay %q: %w", RelayName, err))
	}
}

// Use connects a Redis Streams relay and installs it as the process relay. When
// another relay is already installed the new client is closed again.
func Use(cfg Config, opts ...xtrack.Option) (*Relay, error) {
	r, err := NewRelay(cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("redisstream.Use: %w", err)
	}
	if err := xtrack.SetRelay(r); err != nil {
		_ = r.Close()
		return nil, err
	}
	return r, nil
}
