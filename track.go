package xtrack

import (
	"strings"

	"github.com/trickstertwo/xlog"
)

// Track flattens e and hands it to the process relay. The only errors are
// serialization failures; once encoded the event is fire-and-forget.
func Track[T any](e Event[T]) error {
	return TrackTo(Current(), e)
}

// TrackTo is Track against an explicit relay, using the JSON codec.
func TrackTo[T any](r Relay, e Event[T]) error {
	return TrackWith(r, JSONCodec{}, e)
}

// TrackWith is Track against an explicit relay and codec.
func TrackWith[T any](r Relay, c Codec, e Event[T]) error {
	doc, collided, err := flatten(c, e.Metadata, e.Payload)
	if err != nil {
		xlog.Default().Error().
			Str("event", e.Event).
			Err(err).
			Msg("xtrack: couldn't serialize event")
		return &SerializationError{Event: e.Event, Err: err}
	}
	if len(collided) > 0 {
		xlog.Default().Debug().
			Str("event", e.Event).
			Str("keys", strings.Join(collided, ",")).
			Msg("xtrack: payload keys shadowed by metadata")
	}
	if r == nil {
		r = noop
	}
	r.Transport(e.Metadata, doc)
	return nil
}
