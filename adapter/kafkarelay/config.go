package kafkarelay

import (
	"fmt"
	"strings"
	"time"

	"github.com/trickstertwo/xtrack"
)

// Config for the Kafka relay.
type Config struct {
	Brokers []string
	Topic   string

	QueueSize    int
	WriteTimeout time.Duration
}

// Defaults returns a Config for a local single-broker cluster.
func Defaults() Config {
	return Config{
		Brokers:      []string{"127.0.0.1:9092"},
		Topic:        "xtrack.events",
		QueueSize:    xtrack.DefaultQueueSize,
		WriteTimeout: 5 * time.Second,
	}
}

func (c Config) Validate() error {
	if len(c.Brokers) == 0 {
		return fmt.Errorf("config: at least one broker required")
	}
	for _, b := range c.Brokers {
		if strings.TrimSpace(b) == "" {
			return fmt.Errorf("config: empty broker address")
		}
	}
	if c.Topic == "" {
		return fmt.Errorf("config: topic required")
	}
	if c.QueueSize < 0 {
		return fmt.Errorf("config: queue_size must be >= 0, got %d", c.QueueSize)
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("config: write_timeout must be > 0, got %v", c.WriteTimeout)
	}
	return nil
}

// ConfigFromMap converts a generic map into Config with defaults. Brokers may be
// given as a list or as a comma-separated string.
func ConfigFromMap(m map[string]any) Config {
	c := Defaults()

	switch v := m["brokers"].(type) {
	case []string:
		if len(v) > 0 {
			c.Brokers = v
		}
	case []any:
		var out []string
		for _, b := range v {
			if s, ok := b.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		if len(out) > 0 {
			c.Brokers = out
		}
	case string:
		if v != "" {
			c.Brokers = splitBrokers(v)
		}
	}
	if v, ok := m["topic"].(string); ok && v != "" {
		c.Topic = v
	}
	switch v := m["queue_size"].(type) {
	case int:
		c.QueueSize = v
	case int64:
		c.QueueSize = int(v)
	case float64:
		c.QueueSize = int(v)
	}
	switch v := m["write_timeout"].(type) {
	case time.Duration:
		if v > 0 {
			c.WriteTimeout = v
		}
	case string:
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.WriteTimeout = d
		}
	}
	return c
}

func splitBrokers(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
