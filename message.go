package xtrack

// Message is a serialized event on its way to a relay: the metadata (for headers and
// routing) plus the flattened wire document.
type Message struct {
	Metadata Metadata
	// Payload is the complete wire document produced by Flatten.
	Payload []byte
}
