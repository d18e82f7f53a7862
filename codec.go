package xtrack

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Codec is the Strategy for encoding payloads. Flatten splices the encoded payload
// into the wire document, so implementations must produce JSON.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Name() string
}

// JSONCodec is the default JSON implementation.
type JSONCodec struct{}

func (JSONCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }
func (JSONCodec) Name() string                  { return "json" }

var errPayloadNotObject = errors.New("payload must encode to a JSON object")

// wireMetadata fixes the metadata keys and their order at the head of the document.
type wireMetadata struct {
	Event    string `json:"event"`
	Portal   string `json:"portal"`
	Time     uint64 `json:"time"`
	DebugPin *int32 `json:"debug_pin,omitempty"`
}

var reservedKeys = map[string]struct{}{
	"event":     {},
	"portal":    {},
	"time":      {},
	"debug_pin": {},
}

// Flatten builds the wire document: metadata keys first, then the payload's own keys
// in the order the codec produced them. A payload key that collides with a metadata
// key is dropped; metadata wins.
func Flatten(c Codec, md Metadata, payload any) ([]byte, error) {
	doc, _, err := flatten(c, md, payload)
	return doc, err
}

func flatten(c Codec, md Metadata, payload any) ([]byte, []string, error) {
	if c == nil {
		c = JSONCodec{}
	}
	raw, err := c.Marshal(payload)
	if err != nil {
		return nil, nil, err
	}

	head, err := json.Marshal(wireMetadata{
		Event:    md.Event,
		Portal:   md.Portal,
		Time:     md.Time,
		DebugPin: md.DebugPin,
	})
	if err != nil {
		return nil, nil, err
	}

	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return head, nil, nil
	}
	if raw[0] != '{' {
		return nil, nil, errPayloadNotObject
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	if _, err := dec.Token(); err != nil {
		return nil, nil, err
	}

	out := make([]byte, 0, len(head)+len(raw))
	out = append(out, head[:len(head)-1]...)
	var collided []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("unexpected token %v in payload object", tok)
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, nil, err
		}
		if _, reserved := reservedKeys[key]; reserved {
			collided = append(collided, key)
			continue
		}
		kb, err := json.Marshal(key)
		if err != nil {
			return nil, nil, err
		}
		out = append(out, ',')
		out = append(out, kb...)
		out = append(out, ':')
		out = append(out, value...)
	}
	if _, err := dec.Token(); err != nil {
		return nil, nil, err
	}
	out = append(out, '}')
	return out, collided, nil
}
