package main

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trickstertwo/xlog"
)

type sinkRecorder struct {
	mu  sync.Mutex
	evs []received
}

func (s *sinkRecorder) sink(ev received) {
	s.mu.Lock()
	s.evs = append(s.evs, ev)
	s.mu.Unlock()
}

func (s *sinkRecorder) events() []received {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]received(nil), s.evs...)
}

func TestCollectRouter_AcceptsEvent(t *testing.T) {
	rec := &sinkRecorder{}
	h := newCollectRouter(xlog.Default(), rec.sink)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"event":"test","portal":"fr","time":1,"iteration":1}`))
	req.Header.Set("X-Portal", "fr")
	req.Header.Set("X-Local-Time", "1")
	req.Header.Set("X-Debug-Pin", "12")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	evs := rec.events()
	require.Len(t, evs, 1)
	assert.Equal(t, received{
		Source:   "http",
		Portal:   "fr",
		Time:     "1",
		DebugPin: "12",
		Body:     []byte(`{"event":"test","portal":"fr","time":1,"iteration":1}`),
	}, evs[0])
}

func TestCollectRouter_RejectsMalformed(t *testing.T) {
	rec := &sinkRecorder{}
	h := newCollectRouter(xlog.Default(), rec.sink)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/events", strings.NewReader(`{"event":`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("x", maxEventSize+1))))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	assert.Empty(t, rec.events())
}

func TestCollectRouter_Healthz(t *testing.T) {
	w := httptest.NewRecorder()
	newCollectRouter(xlog.Default(), func(received) {}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestServeUDP(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	rec := &sinkRecorder{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serveUDP(ctx, pc, xlog.Default(), rec.sink) }()

	c, err := net.Dial("udp", pc.LocalAddr().String())
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Write([]byte("garbage"))
	require.NoError(t, err)
	_, err = c.Write([]byte(`{"event":"e","portal":"fr","time":1700000000000,"debug_pin":3,"iteration":1}`))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(rec.events()) == 1 }, 5*time.Second, 10*time.Millisecond)
	ev := rec.events()[0]
	assert.Equal(t, "udp", ev.Source)
	assert.Equal(t, "fr", ev.Portal)
	assert.Equal(t, "1700000000000", ev.Time)
	assert.Equal(t, "3", ev.DebugPin)

	cancel()
	require.NoError(t, pc.Close())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serveUDP did not return")
	}
}

func TestRunCollect_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- runCollect(ctx, CollectConfig{HTTPAddr: "127.0.0.1:0", UDPAddr: "127.0.0.1:0"}, xlog.Default(), func(received) {})
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("runCollect did not stop")
	}
}

func TestRunCollect_BadUDPAddr(t *testing.T) {
	err := runCollect(context.Background(), CollectConfig{UDPAddr: "not-an-addr"}, xlog.Default(), func(received) {})
	assert.Error(t, err)
}
