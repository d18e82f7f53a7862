// Package redisstream provides a Redis Streams relay for xtrack.
//
// Relay name: "redis-streams"
//
// Every tracked event becomes one XADD entry on a single stream with the fields
// event, portal, time, debug_pin (when set) and payload (the full wire document).
//
// Minimal config keys:
// - addr: "host:port" (default "127.0.0.1:6379")
// - stream: stream key (default "xtrack:events")
// - queue_size: dispatcher capacity (default 1024)
// - max_len_approx: approximate MAXLEN trim, 0 disables (default 0)
// - write_timeout: per-XADD timeout (default 2s)
//
// Example:
//
//	relay, _ := xtrack.NewRelay(redisstream.RelayName, map[string]any{
//	    "addr":           "localhost:6379",
//	    "stream":         "tracking",
//	    "max_len_approx": int64(1_000_000),
//	})
//	_ = xtrack.SetRelay(relay)
package redisstream
