package docstore

import (
	"context"
	"errors"
	"time"

	"github.com/rzbill/docq/pkg/id"
)

// ErrCollectionExists is returned by CreateCollection for a taken name.
var ErrCollectionExists = errors.New("docstore: collection already exists")

// ErrCollectionNotFound is returned by operations on a missing collection.
var ErrCollectionNotFound = errors.New("docstore: collection not found")

// ErrNotCapped is returned when tailing a collection that is not capped.
var ErrNotCapped = errors.New("docstore: collection is not capped")

// ErrCappedDelete is returned by DeleteOne on a capped collection.
var ErrCappedDelete = errors.New("docstore: cannot delete from a capped collection")

// ErrDuplicateID is returned by InsertOne when an explicit id is already stored.
var ErrDuplicateID = errors.New("docstore: duplicate document id")

// ErrDocumentTooLarge is returned when a document exceeds a capped size.
var ErrDocumentTooLarge = errors.New("docstore: document larger than collection")

// ErrClosed is returned by operations on a store that has been closed.
var ErrClosed = errors.New("docstore: store closed")

// Document is one stored queue envelope.
type Document struct {
	ID       id.ID
	Class    string
	Content  []byte
	Metadata map[string]any
	Handled  bool
}

// Size approximates the stored footprint, used for capped byte budgets.
func (d *Document) Size() int {
	n := len(d.ID) + len(d.Class) + len(d.Content) + 1
	for k, v := range d.Metadata {
		n += len(k) + approxSize(v)
	}
	return n
}

func approxSize(v any) int {
	switch t := v.(type) {
	case string:
		return len(t)
	case []byte:
		return len(t)
	case map[string]any:
		n := 0
		for k, vv := range t {
			n += len(k) + approxSize(vv)
		}
		return n
	case []any:
		n := 0
		for _, vv := range t {
			n += approxSize(vv)
		}
		return n
	default:
		return 8
	}
}

// CollectionOptions configures CreateCollection.
type CollectionOptions struct {
	Capped       bool
	SizeBytes    int64
	MaxDocuments int64
}

// CollectionInfo is the result of Inspect.
type CollectionInfo struct {
	Name         string
	Exists       bool
	Valid        bool
	Capped       bool
	SizeBytes    int64
	MaxDocuments int64
	Count        int64
}

// Direction selects natural-order iteration direction.
type Direction int

const (
	Ascending Direction = iota
	Descending
)

// FindOptions shapes Find.
type FindOptions struct {
	Sort  Direction
	Skip  int64
	Limit int64 // 0 means no limit
	// IDOnly asks the store to return only ID and Handled.
	IDOnly bool
}

// TailOptions shapes Tail.
type TailOptions struct {
	// Await bounds how long Cursor.Next blocks when nothing new is available.
	Await time.Duration
	// IDOnly asks the store to return only ID and Handled.
	IDOnly bool
}

// Store is a database of collections.
type Store interface {
	// CreateCollection creates name. It returns ErrCollectionExists when taken.
	CreateCollection(ctx context.Context, name string, opts CollectionOptions) error
	// DropCollection removes name and all its documents. It reports whether
	// the collection existed.
	DropCollection(ctx context.Context, name string) (bool, error)
	// Inspect validates and describes name. A missing collection is reported
	// with Exists=false and no error.
	Inspect(ctx context.Context, name string) (CollectionInfo, error)
	// Collection returns a handle; it does not check existence.
	Collection(name string) Collection
	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error
	// Close releases the store.
	Close(ctx context.Context) error
}

// Collection is a handle on one named collection.
type Collection interface {
	Name() string
	// InsertOne stores doc and returns its id. A zero doc.ID is assigned by
	// the store in the same critical section as the insert, so assigned ids
	// increase in natural order. An explicit id is stored as given.
	InsertOne(ctx context.Context, doc Document) (id.ID, error)
	// ClaimOne atomically sets handled=true on the unhandled document with
	// the given id and returns the document as it was before the update.
	// found is false when no unhandled document matched.
	ClaimOne(ctx context.Context, docID id.ID) (pre Document, found bool, err error)
	// Find returns the documents matching f.
	Find(ctx context.Context, f Filter, opts FindOptions) ([]Document, error)
	// Count returns the number of documents matching f.
	Count(ctx context.Context, f Filter) (int64, error)
	// DeleteOne removes the first document matching f and returns how many
	// documents were removed (0 or 1).
	DeleteOne(ctx context.Context, f Filter) (int64, error)
	// Tail opens a tailable, await-capable cursor over documents matching f.
	// Like MongoDB, a tail whose filter matches nothing at open time is
	// returned already dead.
	Tail(ctx context.Context, f Filter, opts TailOptions) (Cursor, error)
}

// Cursor is a tailable cursor.
type Cursor interface {
	// Next returns the next matching document, blocking for at most the
	// cursor's await interval. ok is false when nothing arrived in time or
	// the cursor is dead.
	Next(ctx context.Context) (doc Document, ok bool, err error)
	// Alive reports whether the server side of the cursor still exists.
	Alive() bool
	// Close releases the cursor.
	Close(ctx context.Context) error
}
