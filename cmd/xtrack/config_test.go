package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trickstertwo/xtrack"
	"github.com/trickstertwo/xtrack/adapter/httprelay"
	"github.com/trickstertwo/xtrack/adapter/kafkarelay"
	"github.com/trickstertwo/xtrack/adapter/udprelay"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "xtrack.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, defaultConfig(), cfg)
	assert.Equal(t, httprelay.RelayName, cfg.Relay)
	assert.Equal(t, udprelay.DefaultReconnectDelay, cfg.UDP.ReconnectDelay)
}

func TestLoadConfig_Overlay(t *testing.T) {
	path := writeConfig(t, `
relay: udp
portal: de
log:
  debug: true
udp:
  addr: 10.0.0.5:6000
  reconnect_delay: 2s
http:
  timeout: 1500ms
kafka:
  brokers: [" k1:9092 ", "", "k2:9092"]
  topic: tracking
collect:
  udp_addr: 0.0.0.0:7000
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "udp", cfg.Relay)
	assert.Equal(t, "de", cfg.Portal)
	assert.True(t, cfg.LogDebug)
	assert.Equal(t, "10.0.0.5:6000", cfg.UDP.Addr)
	assert.Equal(t, 2*time.Second, cfg.UDP.ReconnectDelay)
	assert.Equal(t, 1500*time.Millisecond, cfg.HTTP.Timeout)
	assert.Equal(t, httprelay.Defaults().URL, cfg.HTTP.URL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "tracking", cfg.Kafka.Topic)
	assert.Equal(t, "0.0.0.0:7000", cfg.Collect.UDPAddr)
	assert.Equal(t, "127.0.0.1:8888", cfg.Collect.HTTPAddr)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "udp: [not, a, map"))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "udp:\n  reconnect_delay: soon\n"))
	assert.ErrorContains(t, err, "udp.reconnect_delay")
}

func TestRelayConfig_RoundTripsThroughFactories(t *testing.T) {
	cfg := defaultConfig()

	for _, name := range []string{httprelay.RelayName, udprelay.RelayName, kafkarelay.RelayName, "memory", "noop"} {
		cfg.Relay = name
		r, err := xtrack.NewRelay(name, cfg.RelayConfig())
		require.NoError(t, err, name)
		require.NotNil(t, r, name)
		if c, ok := r.(interface{ Close() error }); ok {
			_ = c.Close()
		}
	}

	cfg.Relay = udprelay.RelayName
	cfg.UDP.ReconnectDelay = 3 * time.Second
	assert.Equal(t, udprelay.Config{
		Addr:           cfg.UDP.Addr,
		QueueSize:      cfg.UDP.QueueSize,
		ReconnectDelay: 3 * time.Second,
	}, udprelay.ConfigFromMap(cfg.RelayConfig()))
}
