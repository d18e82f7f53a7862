package httprelay

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/trickstertwo/xtrack"
)

// Config for the HTTP relay.
type Config struct {
	// URL receives one POST per event.
	URL string
	// QueueSize is the dispatcher capacity (default: xtrack.DefaultQueueSize).
	QueueSize int
	// Timeout bounds one request. Zero means no client-side timeout.
	Timeout time.Duration
	// Client overrides the HTTP client. Timeout is ignored when set.
	Client *http.Client
}

// Defaults returns a Config pointing at a local collector.
func Defaults() Config {
	return Config{
		URL:       "http://localhost:8888",
		QueueSize: xtrack.DefaultQueueSize,
	}
}

// Validate checks the URL and sizes.
func (c Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("config: url required")
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("config: url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("config: url scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("config: url host required")
	}
	if c.QueueSize < 0 {
		return fmt.Errorf("config: queue_size must be >= 0, got %d", c.QueueSize)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("config: timeout must be >= 0, got %v", c.Timeout)
	}
	return nil
}

// ConfigFromMap converts a generic map into Config with defaults.
func ConfigFromMap(m map[string]any) Config {
	c := Defaults()
	if v, ok := m["url"].(string); ok && v != "" {
		c.URL = v
	}
	switch v := m["queue_size"].(type) {
	case int:
		c.QueueSize = v
	case int64:
		c.QueueSize = int(v)
	case float64:
		c.QueueSize = int(v)
	}
	switch v := m["timeout"].(type) {
	case time.Duration:
		c.Timeout = v
	case string:
		if d, err := time.ParseDuration(v); err == nil {
			c.Timeout = d
		}
	}
	return c
}
