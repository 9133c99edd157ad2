package adapter

import (
	"context"
	"errors"

	"github.com/rzbill/docq/internal/docstore"
	"github.com/rzbill/docq/internal/envelope"
	"github.com/rzbill/docq/internal/errdefs"
	"github.com/rzbill/docq/internal/message"
	logpkg "github.com/rzbill/docq/pkg/log"
)

// Bounded serves queues stored in capped collections.
type Bounded struct {
	base
}

var _ Adapter = (*Bounded)(nil)

// NewBounded returns a bounded adapter over store. A nil store yields an
// adapter whose operations fail with ErrConnection.
func NewBounded(store docstore.Store, opts ...Option) *Bounded {
	return &Bounded{base: newBase(store, "adapter.bounded", opts)}
}

// CreateQueue implements Adapter. The new capped collection is filled with
// exactly MaxDocumentCount sentinels so tails always have an anchor and
// admission control has handled documents to recycle.
func (b *Bounded) CreateQueue(ctx context.Context, q Queue) (bool, error) {
	q = q.normalized()
	if err := b.connected("create_queue", q.Name); err != nil {
		return false, err
	}
	if q.Name == "" {
		return false, errdefs.Configuration("create_queue", "queue name is required")
	}
	info, err := b.store.Inspect(ctx, q.Name)
	if err != nil {
		return false, errdefs.Store("create_queue", q.Name, err)
	}
	if info.Exists {
		if !info.Capped {
			return false, errdefs.New("create_queue", q.Name, errdefs.ErrStructuralMismatch, errors.New("collection is not capped"))
		}
		return false, nil
	}

	err = b.store.CreateCollection(ctx, q.Name, docstore.CollectionOptions{
		Capped:       true,
		SizeBytes:    q.Options.CapacityBytes,
		MaxDocuments: q.Options.MaxDocumentCount,
	})
	if errors.Is(err, docstore.ErrCollectionExists) {
		return false, nil
	}
	if err != nil {
		return false, errdefs.Store("create_queue", q.Name, err)
	}
	coll := b.store.Collection(q.Name)
	for i := int64(0); i < q.Options.MaxDocumentCount; i++ {
		if _, err := coll.InsertOne(ctx, envelope.Sentinel()); err != nil {
			return false, errdefs.Store("create_queue", q.Name, err)
		}
	}
	b.names.add(q.Name)
	b.logger.Info("queue created",
		logpkg.Queue(q.Name),
		logpkg.Int64("capacity_bytes", q.Options.CapacityBytes),
		logpkg.Int64("max_documents", q.Options.MaxDocumentCount))
	return true, nil
}

// QueueExists implements Adapter: a valid capped collection holding at least
// one document. A plain collection under the name is a structural mismatch.
func (b *Bounded) QueueExists(ctx context.Context, name string) (bool, error) {
	if err := b.connected("queue_exists", name); err != nil {
		return false, err
	}
	if b.names.has(name) {
		return true, nil
	}
	info, err := b.store.Inspect(ctx, name)
	if err != nil {
		return false, errdefs.Store("queue_exists", name, err)
	}
	if !info.Exists || !info.Valid {
		return false, nil
	}
	if !info.Capped {
		return false, errdefs.New("queue_exists", name, errdefs.ErrStructuralMismatch, errors.New("collection is not capped"))
	}
	if info.Count < 1 {
		return false, nil
	}
	b.names.add(name)
	return true, nil
}

// QueueID implements Adapter.
func (b *Bounded) QueueID(ctx context.Context, name string) (string, error) {
	if err := b.connected("queue_id", name); err != nil {
		return "", err
	}
	return b.queueID(ctx, name, b.QueueExists)
}

// DeleteQueue implements Adapter.
func (b *Bounded) DeleteQueue(ctx context.Context, name string) (bool, error) {
	return b.deleteQueue(ctx, name, b.QueueExists)
}

// Send implements Adapter. With a positive admission threshold, the send is
// refused with ErrCapacityExhausted while fewer handled documents than the
// threshold remain, and nothing is stored.
func (b *Bounded) Send(ctx context.Context, q Queue, m *message.Message) error {
	q = q.normalized()
	if err := b.connected("send", q.Name); err != nil {
		return err
	}
	if threshold := q.Options.AdmissionThreshold; threshold > 0 {
		handled, err := b.store.Collection(q.Name).Count(ctx, docstore.Filter{}.WithHandled(true))
		if err != nil {
			return errdefs.Store("send", q.Name, err)
		}
		if handled < threshold {
			b.obs.Rejected(q.Name)
			b.logger.Debug("send refused", logpkg.Queue(q.Name), logpkg.Int64("handled", handled), logpkg.Int64("threshold", threshold))
			return errdefs.New("send", q.Name, errdefs.ErrCapacityExhausted, nil)
		}
	}
	return b.send(ctx, q, m)
}

// Receive implements Adapter with a single non-blocking pass.
func (b *Bounded) Receive(ctx context.Context, q Queue, maxCount int, params ReceiveParams) (message.Set, error) {
	q = q.normalized()
	if err := b.connected("receive", q.Name); err != nil {
		return nil, err
	}
	return b.receive(ctx, q, maxCount, params)
}

// Count implements Adapter. Sentinels are handled and never counted.
func (b *Bounded) Count(ctx context.Context, q Queue) (int64, error) {
	q = q.normalized()
	if err := b.connected("count", q.Name); err != nil {
		return 0, err
	}
	return b.count(ctx, q)
}
