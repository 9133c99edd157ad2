package adapter

import (
	"context"

	"github.com/rzbill/docq/internal/docstore"
	"github.com/rzbill/docq/internal/envelope"
	"github.com/rzbill/docq/internal/errdefs"
	"github.com/rzbill/docq/internal/message"
	logpkg "github.com/rzbill/docq/pkg/log"
)

// Adapter is the surface shared by standard and bounded queues.
type Adapter interface {
	// CreateQueue creates q and reports false, without error, when it
	// already exists.
	CreateQueue(ctx context.Context, q Queue) (bool, error)
	QueueExists(ctx context.Context, name string) (bool, error)
	// QueueID returns name when the queue exists, else ErrQueueNotFound.
	QueueID(ctx context.Context, name string) (string, error)
	DeleteQueue(ctx context.Context, name string) (bool, error)
	Send(ctx context.Context, q Queue, m *message.Message) error
	Receive(ctx context.Context, q Queue, maxCount int, params ReceiveParams) (message.Set, error)
	Count(ctx context.Context, q Queue) (int64, error)
}

// Option configures an adapter.
type Option func(*base)

// WithLogger sets the adapter logger.
func WithLogger(l logpkg.Logger) Option {
	return func(b *base) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithObserver sets the activity observer.
func WithObserver(o Observer) Option {
	return func(b *base) {
		if o != nil {
			b.obs = o
		}
	}
}

// base holds what both adapters share: the store and the queue-name cache.
type base struct {
	store  docstore.Store
	names  *nameCache
	logger logpkg.Logger
	obs    Observer
}

func newBase(store docstore.Store, component string, opts []Option) base {
	b := base{
		store:  store,
		names:  newNameCache(),
		logger: logpkg.NewLogger(logpkg.WithOutput(logpkg.NullOutput{})),
		obs:    noopObserver{},
	}
	for _, opt := range opts {
		opt(&b)
	}
	b.logger = b.logger.WithComponent(component)
	return b
}

// connected fails with ErrConnection when no store is attached.
func (b *base) connected(op, queue string) error {
	if b.store == nil {
		return errdefs.New(op, queue, errdefs.ErrConnection, nil)
	}
	return nil
}

func (b *base) deleteQueue(ctx context.Context, name string, exists func(context.Context, string) (bool, error)) (bool, error) {
	if err := b.connected("delete_queue", name); err != nil {
		return false, err
	}
	ok, err := exists(ctx, name)
	if err != nil || !ok {
		return false, err
	}
	dropped, err := b.store.DropCollection(ctx, name)
	b.names.remove(name)
	if err != nil {
		return false, errdefs.Store("delete_queue", name, err)
	}
	if dropped {
		b.logger.Info("queue deleted", logpkg.Queue(name))
	}
	return dropped, nil
}

func (b *base) queueID(ctx context.Context, name string, exists func(context.Context, string) (bool, error)) (string, error) {
	if b.names.has(name) {
		return name, nil
	}
	ok, err := exists(ctx, name)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", errdefs.New("queue_id", name, errdefs.ErrQueueNotFound, nil)
	}
	return name, nil
}

// send stores m in q and embeds the unhandled ticket into m. m's metadata is
// left in the canonical form a receive will return.
func (b *base) send(ctx context.Context, q Queue, m *message.Message) error {
	key := q.Options.MetadataKey
	m.CleanTicket(key)
	doc, err := envelope.Encode(m)
	if err != nil {
		return errdefs.Store("send", q.Name, err)
	}
	docID, err := b.store.Collection(q.Name).InsertOne(ctx, doc)
	if err != nil {
		return errdefs.Store("send", q.Name, err)
	}
	m.Embed(key, message.Ticket{Handled: false, MessageID: docID, Queue: q.Name})
	b.obs.Sent(q.Name)
	b.logger.Debug("message sent", logpkg.Queue(q.Name), logpkg.Str("id", docID.String()), logpkg.Str("class", doc.Class))
	return nil
}

// receive examines the first maxCount unhandled documents in natural order
// and claims those the params admit. Lost races and selector misses shrink
// the batch; they do not widen the window.
func (b *base) receive(ctx context.Context, q Queue, maxCount int, params ReceiveParams) (message.Set, error) {
	if maxCount == 0 {
		maxCount = 1
	}
	var envs []message.Envelope
	if maxCount < 0 {
		return q.Options.NewSet(q.Name, envs), nil
	}

	coll := b.store.Collection(q.Name)
	filter := docstore.Filter{}.WithHandled(false).WithClass(params.ClassFilter)
	opts := docstore.FindOptions{Sort: docstore.Ascending, Limit: int64(maxCount), IDOnly: !params.needsBody()}
	candidates, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, errdefs.Store("receive", q.Name, err)
	}
	for _, cand := range candidates {
		if params.needsBody() && !params.admits(envelope.Decode(cand)) {
			continue
		}
		env, ok, err := b.claim(ctx, coll, q, cand.ID)
		if err != nil {
			return nil, err
		}
		if ok {
			envs = append(envs, env)
		}
	}
	b.obs.Received(q.Name, ModePoll, len(envs))
	return q.Options.NewSet(q.Name, envs), nil
}

// count returns the number of unhandled documents in q.
func (b *base) count(ctx context.Context, q Queue) (int64, error) {
	n, err := b.store.Collection(q.Name).Count(ctx, docstore.Filter{}.WithHandled(false))
	if err != nil {
		return 0, errdefs.Store("count", q.Name, err)
	}
	return n, nil
}
