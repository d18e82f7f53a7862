package kafkarelay

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trickstertwo/xtrack"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	fail   error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail != nil {
		return w.fail
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	return nil
}

func (w *fakeWriter) written() []kafka.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]kafka.Message(nil), w.msgs...)
}

func header(m kafka.Message, key string) (string, bool) {
	for _, h := range m.Headers {
		if h.Key == key {
			return string(h.Value), true
		}
	}
	return "", false
}

func TestBuildMessage(t *testing.T) {
	pin := int32(7)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	m := buildMessage(xtrack.Message{
		Metadata: xtrack.Metadata{Event: "click", Portal: "de", Time: 1709294400000, DebugPin: &pin},
		Payload:  []byte(`{"event":"click"}`),
	}, now)

	assert.Equal(t, []byte("de"), m.Key)
	assert.Equal(t, []byte(`{"event":"click"}`), m.Value)
	assert.Equal(t, now, m.Time)

	v, ok := header(m, "X-Local-Time")
	require.True(t, ok)
	assert.Equal(t, "1709294400000", v)
	v, _ = header(m, "X-Platform")
	assert.Equal(t, Platform, v)
	v, _ = header(m, "X-Portal")
	assert.Equal(t, "de", v)
	v, ok = header(m, "X-Debug-Pin")
	require.True(t, ok)
	assert.Equal(t, "7", v)
}

func TestBuildMessage_NoDebugPin(t *testing.T) {
	m := buildMessage(xtrack.Message{Metadata: xtrack.Metadata{Event: "e", Portal: "p"}}, time.Now())
	_, ok := header(m, "X-Debug-Pin")
	assert.False(t, ok)
}

func TestConfigFromMap(t *testing.T) {
	c := ConfigFromMap(nil)
	assert.Equal(t, Defaults(), c)
	require.NoError(t, c.Validate())

	c = ConfigFromMap(map[string]any{
		"brokers":       "k1:9092, k2:9092",
		"topic":         "tracking",
		"queue_size":    16,
		"write_timeout": "1s",
	})
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Brokers)
	assert.Equal(t, "tracking", c.Topic)
	assert.Equal(t, 16, c.QueueSize)
	assert.Equal(t, time.Second, c.WriteTimeout)

	c = ConfigFromMap(map[string]any{"brokers": []any{"a:1", "b:2"}})
	assert.Equal(t, []string{"a:1", "b:2"}, c.Brokers)
}

func TestConfig_Validate(t *testing.T) {
	c := Defaults()
	c.Brokers = nil
	assert.Error(t, c.Validate())

	c = Defaults()
	c.Topic = ""
	assert.Error(t, c.Validate())

	c = Defaults()
	c.WriteTimeout = 0
	assert.Error(t, c.Validate())
}

func TestNew_DoesNotDial(t *testing.T) {
	cfg := Defaults()
	cfg.Brokers = []string{"127.0.0.1:1"}
	r, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, r.Close())
}

func TestRelay_WritesInOrder(t *testing.T) {
	w := &fakeWriter{}
	r := newRelay(Defaults(), w)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Start(ctx)

	const total = 100
	for i := 0; i < total; i++ {
		require.NoError(t, xtrack.TrackTo(r, xtrack.NewEvent("iteration", "fr", map[string]int{"iteration": i})))
	}

	require.Eventually(t, func() bool {
		return r.Stats().Published == total
	}, 5*time.Second, 10*time.Millisecond)

	msgs := w.written()
	require.Len(t, msgs, total)
	for i, m := range msgs {
		assert.Equal(t, []byte("fr"), m.Key)
		assert.Contains(t, string(m.Value), `"iteration":`+strconv.Itoa(i)+`}`)
	}
}

func TestRelay_WriteErrorContinues(t *testing.T) {
	w := &fakeWriter{fail: errors.New("broker down")}
	r := newRelay(Defaults(), w)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Start(ctx)

	r.Transport(xtrack.Metadata{Event: "a"}, []byte(`{}`))
	r.Transport(xtrack.Metadata{Event: "b"}, []byte(`{}`))

	require.Eventually(t, func() bool {
		return r.Stats().Failed == 2
	}, 5*time.Second, 10*time.Millisecond)
	assert.Zero(t, r.Stats().Published)
}

func TestRelay_ClosedDiscards(t *testing.T) {
	w := &fakeWriter{}
	r := newRelay(Defaults(), w)
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
	assert.True(t, w.closed)

	r.Transport(xtrack.Metadata{Event: "late"}, []byte(`{}`))
	assert.Zero(t, r.Stats().Dispatcher.Enqueued)
}

func TestFactory_Registered(t *testing.T) {
	rel, err := xtrack.NewRelay(RelayName, map[string]any{"topic": "t"})
	require.NoError(t, err)
	r, ok := rel.(*Relay)
	require.True(t, ok)
	assert.Equal(t, "t", r.topic)
	_ = r.Close()
}
