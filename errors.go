package xtrack

import (
	"errors"
	"fmt"
)

var (
	// ErrRelayAlreadyInitialized is returned by SetRelay to every caller except the
	// one that installed the process relay.
	ErrRelayAlreadyInitialized = errors.New("xtrack: attempted to set relay after the relay was already initialized")

	ErrNilRelay = errors.New("xtrack: relay must not be nil")

	// ErrNoRelayConfigured is returned by RelayBuilder.Build when neither a relay
	// name nor an instance was given.
	ErrNoRelayConfigured = errors.New("xtrack: no relay configured")
)

type ErrUnknownRelay struct{ name string }

func (e ErrUnknownRelay) Error() string { return fmt.Sprintf("xtrack: unknown relay: %s", e.name) }

// SerializationError reports an event whose payload could not be flattened into a
// wire document. The event is never enqueued.
type SerializationError struct {
	Event string
	Err   error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("xtrack: serialize event %q: %v", e.Event, e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }
