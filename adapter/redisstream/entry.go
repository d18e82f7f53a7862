package redisstream

import (
	"fmt"
	"strconv"

	"github.com/trickstertwo/xtrack"
)

// encodeValues flattens a message into XADD field/value pairs.
func encodeValues(msg xtrack.Message) map[string]any {
	vals := make(map[string]any, 5)
	vals[fieldEvent] = msg.Metadata.Event
	vals[fieldPortal] = msg.Metadata.Portal
	vals[fieldTime] = strconv.FormatUint(msg.Metadata.Time, 10)
	if pin := msg.Metadata.DebugPin; pin != nil {
		vals[fieldDebugPin] = strconv.FormatInt(int64(*pin), 10)
	}
	// raw payload bytes (binary-safe, no base64 encoding overhead)
	vals[fieldPayload] = msg.Payload
	return vals
}

// DecodeEntry reconstructs a message from the values of a stream entry written by
// this relay. Consumers reading the stream with XREAD/XREADGROUP can use it.
func DecodeEntry(vals map[string]any) (xtrack.Message, error) {
	var msg xtrack.Message

	if v, ok := vals[fieldEvent]; ok {
		msg.Metadata.Event = asString(v)
	}
	if msg.Metadata.Event == "" {
		return msg, fmt.Errorf("redisstream: entry has no %q field", fieldEvent)
	}
	if v, ok := vals[fieldPortal]; ok {
		msg.Metadata.Portal = asString(v)
	}
	if v, ok := vals[fieldTime]; ok {
		ms, ok := toInt64(v)
		if !ok || ms < 0 {
			return msg, fmt.Errorf("redisstream: invalid %q field: %v", fieldTime, v)
		}
		msg.Metadata.Time = uint64(ms)
	}
	if v, ok := vals[fieldDebugPin]; ok {
		n, ok := toInt64(v)
		if !ok {
			return msg, fmt.Errorf("redisstream: invalid %q field: %v", fieldDebugPin, v)
		}
		pin := int32(n)
		msg.Metadata.DebugPin = &pin
	}
	if v, ok := vals[fieldPayload]; ok {
		switch p := v.(type) {
		case []byte:
			msg.Payload = p
		case string:
			msg.Payload = []byte(p)
		}
	}
	return msg, nil
}

// Helper functions for type conversion

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	default:
		return fmt.Sprintf("%v", s)
	}
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int32:
		return int64(n), true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	case string:
		if n == "" {
			return 0, false
		}
		if i, err := strconv.ParseInt(n, 10, 64); err == nil {
			return i, true
		}
	case []byte:
		return toInt64(string(n))
	}
	return 0, false
}
