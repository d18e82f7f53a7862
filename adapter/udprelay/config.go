package udprelay

import (
	"fmt"
	"net"
	"time"

	"github.com/trickstertwo/xtrack"
)

// DefaultReconnectDelay is the constant wait between failed connection attempts.
const DefaultReconnectDelay = 10 * time.Second

// Config for the UDP relay.
type Config struct {
	// Addr is the remote "host:port". It is resolved on every connection attempt.
	Addr string
	// QueueSize is the dispatcher capacity (default: xtrack.DefaultQueueSize).
	QueueSize int
	// ReconnectDelay is the wait after a failed connection attempt (default: 10s).
	ReconnectDelay time.Duration
}

func Defaults() Config {
	return Config{
		Addr:           "127.0.0.1:5005",
		QueueSize:      xtrack.DefaultQueueSize,
		ReconnectDelay: DefaultReconnectDelay,
	}
}

// Validate checks the address shape; it does not resolve the host.
func (c Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("config: addr required")
	}
	if _, _, err := net.SplitHostPort(c.Addr); err != nil {
		return fmt.Errorf("config: addr: %w", err)
	}
	if c.QueueSize < 0 {
		return fmt.Errorf("config: queue_size must be >= 0, got %d", c.QueueSize)
	}
	if c.ReconnectDelay <= 0 {
		return fmt.Errorf("config: reconnect_delay must be > 0, got %v", c.ReconnectDelay)
	}
	return nil
}

// ConfigFromMap converts a generic map into Config with defaults.
func ConfigFromMap(m map[string]any) Config {
	c := Defaults()
	if v, ok := m["addr"].(string); ok && v != "" {
		c.Addr = v
	}
	switch v := m["queue_size"].(type) {
	case int:
		c.QueueSize = v
	case int64:
		c.QueueSize = int(v)
	case float64:
		c.QueueSize = int(v)
	}
	switch v := m["reconnect_delay"].(type) {
	case time.Duration:
		if v > 0 {
			c.ReconnectDelay = v
		}
	case string:
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.ReconnectDelay = d
		}
	}
	return c
}
