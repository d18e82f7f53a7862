package xtrack

import (
	"time"

	"github.com/trickstertwo/xlog"
)

// RelayEventType names a relay lifecycle notification.
type RelayEventType string

const (
	// Dropped: the dispatcher queue was full and the event was discarded.
	Dropped RelayEventType = "dropped"
	// Sent: the backend accepted the event.
	Sent RelayEventType = "sent"
	// SendFailed: the backend rejected the event or could not be reached.
	SendFailed RelayEventType = "send_failed"
	// Connected: a reconnect supervisor established its connection.
	Connected RelayEventType = "connected"
	// Disconnected: a connection attempt failed or an established connection broke.
	Disconnected RelayEventType = "disconnected"
)

// RelayEvent is what observers receive. Event and Portal are empty for connection
// notifications.
type RelayEvent struct {
	Type     RelayEventType
	Relay    string
	Event    string
	Portal   string
	Duration time.Duration
	Err      error
}

// Observer is notified synchronously on the goroutine that caused the event: the
// producer for Dropped, the relay's consumer for everything else. Implementations
// must be fast and must not call back into the relay.
type Observer interface {
	OnRelayEvent(e RelayEvent)
}

// ObserverFunc is an Adapter that lets a plain function satisfy Observer.
type ObserverFunc func(e RelayEvent)

func (f ObserverFunc) OnRelayEvent(e RelayEvent) { f(e) }

// LoggingObserver is an Adapter that emits RelayEvents via xlog.
type LoggingObserver struct {
	Logger *xlog.Logger
}

func (o LoggingObserver) OnRelayEvent(e RelayEvent) {
	if o.Logger == nil {
		return
	}
	l := o.Logger.With(xlog.Str("type", string(e.Type))).
		With(xlog.Str("relay", e.Relay))
	if e.Event != "" {
		l = l.With(xlog.Str("event", e.Event))
	}
	switch e.Type {
	case SendFailed, Disconnected:
		l.Warn().Err(e.Err).Msg("xtrack relay event")
	default:
		if e.Duration > 0 {
			l = l.With(xlog.Dur("duration", e.Duration))
		}
		l.Debug().Msg("xtrack relay event")
	}
}

// notifyObservers calls every observer, tolerating panics so a faulty observer
// cannot take down a consumer goroutine.
func notifyObservers(observers []Observer, e RelayEvent) {
	for _, obs := range observers {
		if obs == nil {
			continue
		}
		func() {
			defer func() { _ = recover() }()
			obs.OnRelayEvent(e)
		}()
	}
}
