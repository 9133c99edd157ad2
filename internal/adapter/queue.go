package adapter

import (
	"github.com/rzbill/docq/internal/message"
)

const (
	// DefaultCapacityBytes is the capped collection size of bounded queues.
	DefaultCapacityBytes int64 = 1000000
	// DefaultMaxDocumentCount is the capped document count of bounded queues.
	DefaultMaxDocumentCount int64 = 100
	// DefaultAdmissionThreshold is the minimum number of handled documents a
	// bounded queue must hold to accept a send.
	DefaultAdmissionThreshold int64 = 10
	// DefaultMetadataKey is where delivery tickets live in message metadata.
	DefaultMetadataKey = "__queue"
)

// Options carries per-queue settings. The capacity fields only apply to
// bounded queues.
type Options struct {
	CapacityBytes    int64
	MaxDocumentCount int64
	// AdmissionThreshold of 0 disables admission control.
	AdmissionThreshold int64
	MetadataKey        string
	NewSet             message.SetFactory
}

// DefaultOptions returns the stock queue options.
func DefaultOptions() Options {
	return Options{
		CapacityBytes:      DefaultCapacityBytes,
		MaxDocumentCount:   DefaultMaxDocumentCount,
		AdmissionThreshold: DefaultAdmissionThreshold,
		MetadataKey:        DefaultMetadataKey,
		NewSet:             message.NewListSetFactory(nil),
	}
}

// Queue names a queue and its options.
type Queue struct {
	Name    string
	Options Options
}

// NewQueue returns a queue with DefaultOptions.
func NewQueue(name string) Queue {
	return Queue{Name: name, Options: DefaultOptions()}
}

// normalized fills unset fields. The admission threshold is left alone so
// that zero keeps meaning disabled.
func (q Queue) normalized() Queue {
	if q.Options.CapacityBytes <= 0 {
		q.Options.CapacityBytes = DefaultCapacityBytes
	}
	if q.Options.MaxDocumentCount <= 0 {
		q.Options.MaxDocumentCount = DefaultMaxDocumentCount
	}
	if q.Options.MetadataKey == "" {
		q.Options.MetadataKey = DefaultMetadataKey
	}
	if q.Options.NewSet == nil {
		q.Options.NewSet = message.NewListSetFactory(nil)
	}
	return q
}

// ReceiveParams restricts which messages a receive may claim. Restrictions
// are applied before claiming, so skipped messages stay available.
type ReceiveParams struct {
	// ClassFilter only admits messages of this class.
	ClassFilter string
	// Selector only admits messages it matches. Nil admits everything. A
	// polling receive evaluates it on the maxCount oldest candidates only,
	// so a batch may come back short while later messages would match.
	Selector *Selector
}

func (p ReceiveParams) admits(env message.Envelope) bool {
	if p.ClassFilter != "" && env.Class != p.ClassFilter {
		return false
	}
	return p.Selector.Match(env)
}

// needsBody reports whether candidate documents must be read in full before
// claiming.
func (p ReceiveParams) needsBody() bool { return p.Selector != nil }
