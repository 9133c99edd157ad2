package message

// Set is the result container handed to consumers.
type Set interface {
	// Queue names the queue the batch came from.
	Queue() string
	// Len is the number of envelopes in the batch.
	Len() int
	// Envelopes returns the decoded envelopes in delivery order.
	Envelopes() []Envelope
	// Messages decodes every envelope. Envelopes whose decoder fails are
	// reported through the returned error and left out of the slice.
	Messages() ([]*Message, error)
}

// SetFactory builds a result container from decoded envelopes.
type SetFactory func(queue string, envs []Envelope) Set

// ListSet is the default Set, decoding through a Registry.
type ListSet struct {
	queue    string
	envs     []Envelope
	registry *Registry
}

// NewListSetFactory returns a SetFactory producing ListSets decoded by reg.
// A nil reg decodes everything as raw messages.
func NewListSetFactory(reg *Registry) SetFactory {
	return func(queue string, envs []Envelope) Set {
		return &ListSet{queue: queue, envs: envs, registry: reg}
	}
}

func (s *ListSet) Queue() string         { return s.queue }
func (s *ListSet) Len() int              { return len(s.envs) }
func (s *ListSet) Envelopes() []Envelope { return s.envs }

func (s *ListSet) Messages() ([]*Message, error) {
	out := make([]*Message, 0, len(s.envs))
	var firstErr error
	for _, env := range s.envs {
		m, err := s.registry.Decode(env)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		out = append(out, m)
	}
	return out, firstErr
}
