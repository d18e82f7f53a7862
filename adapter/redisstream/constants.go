package redisstream

// Field constants (avoid typos/allocs)
const (
	fieldEvent    = "event"
	fieldPortal   = "portal"
	fieldTime     = "time"      // ms since epoch, decimal
	fieldDebugPin = "debug_pin" // omitted when absent
	fieldPayload  = "payload"   // raw wire document bytes
)
