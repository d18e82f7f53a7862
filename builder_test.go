package xtrack

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trickstertwo/xlog"
)

type eventLog struct {
	mu  sync.Mutex
	evs []RelayEvent
}

func (l *eventLog) OnRelayEvent(e RelayEvent) {
	l.mu.Lock()
	l.evs = append(l.evs, e)
	l.mu.Unlock()
}

func (l *eventLog) snapshot() []RelayEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]RelayEvent(nil), l.evs...)
}

// queueRelay is a minimal dispatcher-backed relay that reports every delivery.
type queueRelay struct {
	d    *Dispatcher
	fail error
}

func newQueueRelay(cfg map[string]any, opts ...Option) (Relay, error) {
	size, _ := cfg["queue_size"].(int)
	return &queueRelay{d: NewDispatcher("queue-test", size, opts...)}, nil
}

func (q *queueRelay) Transport(md Metadata, payload []byte) {
	q.d.Enqueue(Message{Metadata: md, Payload: payload})
}

func (q *queueRelay) Start(ctx context.Context) {
	q.d.Start(ctx, func(_ context.Context, msg Message) {
		q.d.ReportSend(msg.Metadata, time.Millisecond, q.fail)
	})
}

func init() {
	if err := RegisterRelay("queue-test", newQueueRelay); err != nil {
		panic(err)
	}
}

func TestDispatcher_NotifiesObservers(t *testing.T) {
	obs := &eventLog{}
	d := NewDispatcher("obs", 1, WithObserver(obs, ObserverFunc(func(RelayEvent) { panic("faulty observer") })))

	d.Enqueue(Message{Metadata: Metadata{Event: "kept"}})
	d.Enqueue(Message{Metadata: Metadata{Event: "lost", Portal: "fr"}})
	d.ReportSend(Metadata{Event: "kept"}, time.Millisecond, nil)
	d.ReportSend(Metadata{Event: "kept"}, time.Millisecond, errors.New("503"))
	d.ReportConnect(nil)
	d.ReportConnect(errors.New("refused"))

	evs := obs.snapshot()
	require.Len(t, evs, 5)
	assert.Equal(t, RelayEvent{Type: Dropped, Relay: "obs", Event: "lost", Portal: "fr"}, evs[0])
	assert.Equal(t, Sent, evs[1].Type)
	assert.Equal(t, time.Millisecond, evs[1].Duration)
	assert.Equal(t, SendFailed, evs[2].Type)
	assert.EqualError(t, evs[2].Err, "503")
	assert.Equal(t, Connected, evs[3].Type)
	assert.Equal(t, Disconnected, evs[4].Type)
}

func TestLoggingObserver_NilLoggerIsSafe(t *testing.T) {
	assert.NotPanics(t, func() {
		LoggingObserver{}.OnRelayEvent(RelayEvent{Type: SendFailed, Err: errors.New("x")})
		LoggingObserver{Logger: xlog.Default()}.OnRelayEvent(RelayEvent{Type: Sent, Relay: "r", Event: "e", Duration: time.Second})
		LoggingObserver{Logger: xlog.Default()}.OnRelayEvent(RelayEvent{Type: Disconnected, Relay: "r", Err: errors.New("x")})
	})
}

func TestFilterMiddleware(t *testing.T) {
	rec := &recorder{}
	r := Chain(rec, FilterMiddleware(func(md Metadata) bool { return md.Portal == "fr" }))

	r.Transport(Metadata{Event: "a", Portal: "fr"}, []byte(`{}`))
	r.Transport(Metadata{Event: "b", Portal: "de"}, []byte(`{}`))

	require.Len(t, rec.metas, 1)
	assert.Equal(t, "a", rec.metas[0].Event)

	assert.Same(t, rec, Chain(rec))
	assert.Same(t, rec, Chain(rec, FilterMiddleware(nil)).(*chained).head)
}

func TestRecoveryMiddleware(t *testing.T) {
	boom := RelayFunc(func(Metadata, []byte) { panic("backend bug") })
	r := Chain(boom, RecoveryMiddleware(nil))
	assert.NotPanics(t, func() { r.Transport(Metadata{Event: "e"}, nil) })
}

func TestChain_OrderAndStart(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(next Relay) Relay {
			return RelayFunc(func(md Metadata, p []byte) {
				order = append(order, name)
				next.Transport(md, p)
			})
		}
	}
	base := &startCounter{}
	r := Chain(base, mw("first"), nil, mw("second"))
	r.Transport(Metadata{}, nil)
	assert.Equal(t, []string{"first", "second"}, order)

	var g Registry
	require.NoError(t, g.SetRelay(r))
	assert.Equal(t, int32(1), base.started.Load())
	assert.Same(t, base, Unwrap(g.Current()))
}

func TestRelayBuilder_Build(t *testing.T) {
	_, err := NewRelayBuilder().Build()
	assert.ErrorIs(t, err, ErrNoRelayConfigured)

	_, err = NewRelayBuilder().WithRelay("does-not-exist", nil).Build()
	assert.Error(t, err)

	inst := &recorder{}
	r, err := NewRelayBuilder().WithRelayInstance(inst).Build()
	require.NoError(t, err)
	assert.Same(t, inst, r)
}

func TestRelayBuilder_WiresObserversAndMiddleware(t *testing.T) {
	obs := &eventLog{}
	var g Registry
	r, err := NewRelayBuilder().
		WithRelay("queue-test", map[string]any{"queue_size": 8}).
		WithLogger(xlog.Default()).
		WithObserver(obs, nil).
		WithMiddleware(FilterMiddleware(func(md Metadata) bool { return md.Event != "skip" })).
		installIn(&g)
	require.NoError(t, err)
	assert.IsType(t, &queueRelay{}, Unwrap(r))

	require.NoError(t, TrackTo(g.Current(), NewEvent("keep", "fr", struct{}{})))
	require.NoError(t, TrackTo(g.Current(), NewEvent("skip", "fr", struct{}{})))

	require.Eventually(t, func() bool { return len(obs.snapshot()) == 1 }, 5*time.Second, 5*time.Millisecond)
	ev := obs.snapshot()[0]
	assert.Equal(t, Sent, ev.Type)
	assert.Equal(t, "keep", ev.Event)
	assert.Equal(t, "queue-test", ev.Relay)

	_, err = NewRelayBuilder().WithRelay("queue-test", nil).installIn(&g)
	assert.ErrorIs(t, err, ErrRelayAlreadyInitialized)
}
