package xtrack

import (
	"sync/atomic"

	"github.com/trickstertwo/xclock"
)

// Metadata describes one telemetry occurrence. It is fixed when the event is built;
// Time is the construction time, not the send time.
type Metadata struct {
	// Event is the event name.
	Event string
	// Portal is the subject the event happened in.
	Portal string
	// Time is milliseconds since the Unix epoch.
	Time uint64
	// DebugPin is optional; nil means absent.
	DebugPin *int32
}

// Event couples Metadata with a caller payload. The payload must encode to a JSON
// object (or null); its fields are flattened next to the metadata fields.
type Event[T any] struct {
	Metadata
	Payload T
}

// EventOption adjusts metadata while an event is built.
type EventOption func(*Metadata)

// WithDebugPin sets the optional debug pin.
func WithDebugPin(pin int32) EventOption {
	return func(m *Metadata) { m.DebugPin = &pin }
}

// NewEvent builds an event stamped with the package clock.
func NewEvent[T any](name, portal string, payload T, opts ...EventOption) Event[T] {
	md := Metadata{
		Event:  name,
		Portal: portal,
		Time:   uint64(clock().Now().UnixMilli()),
	}
	for _, o := range opts {
		if o != nil {
			o(&md)
		}
	}
	return Event[T]{Metadata: md, Payload: payload}
}

type clockHolder struct{ c xclock.Clock }

var eventClock atomic.Pointer[clockHolder]

// SetClock replaces the clock used to stamp new events. Passing nil restores
// xclock.Default().
func SetClock(c xclock.Clock) {
	if c == nil {
		eventClock.Store(nil)
		return
	}
	eventClock.Store(&clockHolder{c: c})
}

func clock() xclock.Clock {
	if h := eventClock.Load(); h != nil {
		return h.c
	}
	return xclock.Default()
}
