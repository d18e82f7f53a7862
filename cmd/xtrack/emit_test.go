package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trickstertwo/xlog"
	"github.com/trickstertwo/xtrack"
	"github.com/trickstertwo/xtrack/adapter/httprelay"
	"github.com/trickstertwo/xtrack/adapter/memory"
)

func TestRunEmit_ThroughMemoryRelay(t *testing.T) {
	cfg := defaultConfig()
	cfg.Relay = memory.RelayName
	cfg.Portal = "fr"

	f := emitFlags{event: "event", count: 25, debugPin: 7, wait: 5 * time.Second}
	require.NoError(t, runEmit(context.Background(), cfg, f, xlog.Default()))

	rec, ok := xtrack.Current().(*memory.Relay)
	require.True(t, ok)
	require.Eventually(t, func() bool { return rec.Stats().Delivered == 25 }, 5*time.Second, 10*time.Millisecond)

	msgs := rec.Messages()
	require.Len(t, msgs, 25)
	assert.Equal(t, "fr", msgs[0].Metadata.Portal)
	require.NotNil(t, msgs[0].Metadata.DebugPin)
	assert.Equal(t, int32(7), *msgs[0].Metadata.DebugPin)
	assert.Contains(t, string(msgs[0].Payload), `"iteration":1}`)
	assert.Contains(t, string(msgs[24].Payload), `"iteration":25}`)

	// The process relay is already installed.
	assert.ErrorIs(t, runEmit(context.Background(), cfg, f, xlog.Default()), xtrack.ErrRelayAlreadyInitialized)
}

func TestRunEmit_UnknownRelay(t *testing.T) {
	cfg := defaultConfig()
	cfg.Relay = "pigeon"
	err := runEmit(context.Background(), cfg, emitFlags{count: 1}, xlog.Default())
	assert.Error(t, err)
}

func TestApplyEmitFlags(t *testing.T) {
	cfg := defaultConfig()
	applyEmitFlags(&cfg, emitFlags{relay: "udp", addr: "127.0.0.1:9999", portal: "lt"})
	assert.Equal(t, "udp", cfg.Relay)
	assert.Equal(t, "127.0.0.1:9999", cfg.UDP.Addr)
	assert.Equal(t, "lt", cfg.Portal)
	assert.Equal(t, httprelay.Defaults().URL, cfg.HTTP.URL)
}
