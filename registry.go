package xtrack

import (
	"errors"
	"sort"
	"sync"
)

// RelayFactory constructs relays from a config blob.
type RelayFactory func(cfg map[string]any, opts ...Option) (Relay, error)

var (
	relayRegistryMu sync.RWMutex
	relayRegistry   = map[string]RelayFactory{
		"noop": func(map[string]any, ...Option) (Relay, error) { return Noop{}, nil },
	}
)

// RegisterRelay registers a backend adapter under name.
func RegisterRelay(name string, factory RelayFactory) error {
	if name == "" {
		return errors.New("relay name must not be empty")
	}
	if factory == nil {
		return errors.New("relay factory must not be nil")
	}
	relayRegistryMu.Lock()
	relayRegistry[name] = factory
	relayRegistryMu.Unlock()
	return nil
}

// NewRelay constructs a relay by name with config. The relay is not started; install
// it with SetRelay or start it directly.
func NewRelay(name string, cfg map[string]any, opts ...Option) (Relay, error) {
	relayRegistryMu.RLock()
	f, ok := relayRegistry[name]
	relayRegistryMu.RUnlock()
	if !ok {
		return nil, ErrUnknownRelay{name: name}
	}
	return f(cfg, opts...)
}

// Relays lists registered relay names in sorted order.
func Relays() []string {
	relayRegistryMu.RLock()
	names := make([]string, 0, len(relayRegistry))
	for n := range relayRegistry {
		names = append(names, n)
	}
	relayRegistryMu.RUnlock()
	sort.Strings(names)
	return names
}
