package adapter

import (
	"context"
	"errors"

	"github.com/rzbill/docq/internal/docstore"
	"github.com/rzbill/docq/internal/errdefs"
	"github.com/rzbill/docq/internal/message"
	logpkg "github.com/rzbill/docq/pkg/log"
)

// Standard serves queues stored in plain collections.
type Standard struct {
	base
}

var _ Adapter = (*Standard)(nil)

// NewStandard returns a standard adapter over store. A nil store yields an
// adapter whose operations fail with ErrConnection.
func NewStandard(store docstore.Store, opts ...Option) *Standard {
	return &Standard{base: newBase(store, "adapter.standard", opts)}
}

// CreateQueue implements Adapter.
func (s *Standard) CreateQueue(ctx context.Context, q Queue) (bool, error) {
	if err := s.connected("create_queue", q.Name); err != nil {
		return false, err
	}
	if q.Name == "" {
		return false, errdefs.Configuration("create_queue", "queue name is required")
	}
	info, err := s.store.Inspect(ctx, q.Name)
	if err != nil {
		return false, errdefs.Store("create_queue", q.Name, err)
	}
	if info.Exists {
		return false, nil
	}
	err = s.store.CreateCollection(ctx, q.Name, docstore.CollectionOptions{})
	if errors.Is(err, docstore.ErrCollectionExists) {
		return false, nil
	}
	if err != nil {
		return false, errdefs.Store("create_queue", q.Name, err)
	}
	s.names.add(q.Name)
	s.logger.Info("queue created", logpkg.Queue(q.Name))
	return true, nil
}

// QueueExists implements Adapter. A capped collection under the name is a
// structural mismatch, not a missing queue.
func (s *Standard) QueueExists(ctx context.Context, name string) (bool, error) {
	if err := s.connected("queue_exists", name); err != nil {
		return false, err
	}
	if s.names.has(name) {
		return true, nil
	}
	info, err := s.store.Inspect(ctx, name)
	if err != nil {
		return false, errdefs.Store("queue_exists", name, err)
	}
	if info.Capped {
		return false, errdefs.New("queue_exists", name, errdefs.ErrStructuralMismatch, errors.New("collection is capped"))
	}
	if !info.Exists || !info.Valid {
		return false, nil
	}
	s.names.add(name)
	return true, nil
}

// QueueID implements Adapter.
func (s *Standard) QueueID(ctx context.Context, name string) (string, error) {
	if err := s.connected("queue_id", name); err != nil {
		return "", err
	}
	return s.queueID(ctx, name, s.QueueExists)
}

// DeleteQueue implements Adapter.
func (s *Standard) DeleteQueue(ctx context.Context, name string) (bool, error) {
	return s.deleteQueue(ctx, name, s.QueueExists)
}

// Send implements Adapter. Any ticket already on m is replaced by the one
// for the new document.
func (s *Standard) Send(ctx context.Context, q Queue, m *message.Message) error {
	q = q.normalized()
	if err := s.connected("send", q.Name); err != nil {
		return err
	}
	return s.send(ctx, q, m)
}

// Receive implements Adapter. maxCount 0 means one message; a negative
// maxCount returns an empty set.
func (s *Standard) Receive(ctx context.Context, q Queue, maxCount int, params ReceiveParams) (message.Set, error) {
	q = q.normalized()
	if err := s.connected("receive", q.Name); err != nil {
		return nil, err
	}
	return s.receive(ctx, q, maxCount, params)
}

// Count implements Adapter.
func (s *Standard) Count(ctx context.Context, q Queue) (int64, error) {
	q = q.normalized()
	if err := s.connected("count", q.Name); err != nil {
		return 0, err
	}
	return s.count(ctx, q)
}

// DeleteMessage removes the document behind m's ticket. It reports false
// without touching the store when the ticket is missing, incomplete, or
// issued by another queue, and false when the store did not remove a
// document whose id and handled flag both match the ticket.
func (s *Standard) DeleteMessage(ctx context.Context, q Queue, m *message.Message) (bool, error) {
	q = q.normalized()
	if err := s.connected("delete_message", q.Name); err != nil {
		return false, err
	}
	key := q.Options.MetadataKey
	t, ok := m.Ticket(key)
	if !ok || (t.Queue != "" && t.Queue != q.Name) {
		return false, nil
	}
	n, err := s.store.Collection(q.Name).DeleteOne(ctx, docstore.ByID(t.MessageID).WithHandled(t.Handled))
	if err != nil {
		return false, errdefs.Store("delete_message", q.Name, err)
	}
	if n != 1 {
		return false, nil
	}
	m.CleanTicket(key)
	s.obs.Deleted(q.Name)
	return true, nil
}
