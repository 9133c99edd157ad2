package message

import "maps"

// DefaultClass tags messages sent without an explicit class.
const DefaultClass = "message"

// Metadata is application-defined message metadata.
type Metadata map[string]any

// Clone returns a shallow copy. A nil receiver yields an empty map.
func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m))
	maps.Copy(out, m)
	return out
}

// Message is an outbound or received queue message.
type Message struct {
	// Class identifies the payload's logical type; empty means DefaultClass.
	Class string
	// Content is the opaque serialized payload.
	Content []byte
	// Metadata carries application values plus, after send or receive, the
	// delivery ticket under the queue's reserved key.
	Metadata Metadata
	// Body is the decoded payload produced by a Registry decoder, if any.
	Body any
}

// New creates a message with the default class.
func New(content []byte) *Message {
	return &Message{Class: DefaultClass, Content: content, Metadata: Metadata{}}
}

// ClassTag returns Class or DefaultClass when unset.
func (m *Message) ClassTag() string {
	if m.Class == "" {
		return DefaultClass
	}
	return m.Class
}

// Envelope is a decoded stored document: everything a consumer may see.
type Envelope struct {
	Class    string
	Content  []byte
	Metadata Metadata
}
