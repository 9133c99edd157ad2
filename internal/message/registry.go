package message

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Decoder turns an envelope into a message. Decoders receive the envelope with
// its ticket already embedded in Metadata.
type Decoder func(env Envelope) (*Message, error)

// Registry maps class tags to decoders. Tags are bound at registration time;
// decoding never resolves types by name.
type Registry struct {
	mu       sync.RWMutex
	decoders map[string]Decoder
}

// NewRegistry returns a registry where every class decodes to a raw Message.
func NewRegistry() *Registry {
	return &Registry{decoders: make(map[string]Decoder)}
}

// Register binds tag to dec, replacing any previous binding.
func (r *Registry) Register(tag string, dec Decoder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decoders[tag] = dec
}

// Decode resolves env.Class and runs its decoder. Unregistered classes decode
// to a raw Message carrying the envelope as-is.
func (r *Registry) Decode(env Envelope) (*Message, error) {
	var dec Decoder
	if r != nil {
		r.mu.RLock()
		dec = r.decoders[env.Class]
		r.mu.RUnlock()
	}
	if dec == nil {
		return Raw(env)
	}
	return dec(env)
}

// Raw is the default decoder.
func Raw(env Envelope) (*Message, error) {
	md := env.Metadata
	if md == nil {
		md = Metadata{}
	}
	return &Message{Class: env.Class, Content: env.Content, Metadata: md}, nil
}

// RegisterJSON binds tag to a decoder that unmarshals Content into a T and
// exposes it as Message.Body.
func RegisterJSON[T any](r *Registry, tag string) {
	r.Register(tag, func(env Envelope) (*Message, error) {
		m, _ := Raw(env)
		var body T
		if len(env.Content) > 0 {
			if err := json.Unmarshal(env.Content, &body); err != nil {
				return nil, fmt.Errorf("decode %s: %w", tag, err)
			}
		}
		m.Body = body
		return m, nil
	})
}

// NewJSON encodes body as the content of a message tagged with class.
func NewJSON(class string, body any) (*Message, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return &Message{Class: class, Content: b, Metadata: Metadata{}, Body: body}, nil
}
