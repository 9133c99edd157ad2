// Package errdefs defines the error kinds returned by docq queue operations.
//
// Every adapter failure is an *Error whose Kind is one of the sentinels below,
// so callers branch with errors.Is(err, errdefs.ErrCapacityExhausted) while the
// underlying store error stays reachable through the same chain.
package errdefs

import (
	"errors"
	"strings"

	"github.com/rzbill/docq/internal/docstore"
)

var (
	// ErrConfiguration indicates required connection or queue parameters are missing.
	ErrConfiguration = errors.New("docq: configuration error")
	// ErrConnection indicates an operation was attempted before the store connection exists.
	ErrConnection = errors.New("docq: not connected")
	// ErrQueueNotFound indicates the named queue does not exist.
	ErrQueueNotFound = errors.New("docq: queue not found")
	// ErrStructuralMismatch indicates a same-named collection exists with the other
	// bounded/unbounded shape.
	ErrStructuralMismatch = errors.New("docq: collection shape mismatch")
	// ErrCapacityExhausted indicates a bounded queue refused a send because too few
	// handled documents remain to recycle.
	ErrCapacityExhausted = errors.New("docq: capacity exhausted")
	// ErrAnchorUnavailable indicates a bounded queue holds fewer than two documents,
	// so no tail anchor exists.
	ErrAnchorUnavailable = errors.New("docq: tail anchor unavailable")
	// ErrStoreOperation wraps any failure of the underlying store.
	ErrStoreOperation = errors.New("docq: store operation failed")
)

// Error is the concrete error returned at adapter boundaries.
type Error struct {
	Op    string // operation, e.g. "send"
	Queue string // queue name, may be empty
	Kind  error  // one of the sentinels above
	Err   error  // underlying cause, may be nil
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Queue != "" {
		b.WriteString(" ")
		b.WriteString(e.Queue)
	}
	b.WriteString(": ")
	if e.Kind != nil {
		b.WriteString(e.Kind.Error())
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// New builds an *Error.
func New(op, queue string, kind, cause error) *Error {
	return &Error{Op: op, Queue: queue, Kind: kind, Err: cause}
}

// Store wraps a store failure as ErrStoreOperation, or as ErrConnection when
// the store has been closed. A nil cause returns nil.
func Store(op, queue string, cause error) error {
	if cause == nil {
		return nil
	}
	var e *Error
	if errors.As(cause, &e) {
		return cause
	}
	kind := ErrStoreOperation
	if errors.Is(cause, docstore.ErrClosed) {
		kind = ErrConnection
	}
	return &Error{Op: op, Queue: queue, Kind: kind, Err: cause}
}

// Configuration builds an ErrConfiguration error with a message.
func Configuration(op, msg string) error {
	return &Error{Op: op, Kind: ErrConfiguration, Err: errors.New(msg)}
}
