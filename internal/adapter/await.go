package adapter

import (
	"context"
	"errors"
	"iter"

	"github.com/rzbill/docq/internal/docstore"
	"github.com/rzbill/docq/internal/envelope"
	"github.com/rzbill/docq/internal/errdefs"
	"github.com/rzbill/docq/internal/message"
	"github.com/rzbill/docq/pkg/id"
	logpkg "github.com/rzbill/docq/pkg/log"
)

// reanchorWarnEvery is how many consecutive re-anchors without a delivery
// trigger a warning.
const reanchorWarnEvery = 100

// Await returns a blocking stream of single-message batches from q, with an
// empty batch after every cursor pass that delivered nothing. The stream runs
// until the consumer stops ranging over it or ctx is done; a failure is
// yielded once as the final element.
func (b *Bounded) Await(ctx context.Context, q Queue, params ReceiveParams) iter.Seq2[message.Set, error] {
	q = q.normalized()
	return func(yield func(message.Set, error) bool) {
		if err := b.connected("await", q.Name); err != nil {
			yield(nil, err)
			return
		}
		coll := b.store.Collection(q.Name)
		idle := 0
		for {
			anchor, err := b.anchor(ctx, coll, q)
			if err != nil {
				yield(nil, err)
				return
			}
			delivered, stop, err := b.tailPass(ctx, coll, q, params, anchor, yield)
			if err != nil {
				yield(nil, err)
				return
			}
			if stop {
				return
			}

			b.obs.Reanchored(q.Name)
			if delivered {
				idle = 0
			} else {
				idle++
				b.logger.Debug("cursor died, re-anchoring", logpkg.Queue(q.Name), logpkg.Int("idle_passes", idle))
				if idle%reanchorWarnEvery == 0 {
					b.logger.Warn("tail keeps dying without deliveries", logpkg.Queue(q.Name), logpkg.Int("idle_passes", idle))
				}
				b.obs.Heartbeat(q.Name)
				if !yield(q.Options.NewSet(q.Name, nil), nil) {
					return
				}
			}
		}
	}
}

// AwaitMessages calls fn with each batch Await yields until fn returns
// false, ctx is done, or the stream fails.
func (b *Bounded) AwaitMessages(ctx context.Context, q Queue, fn func(message.Set) bool, params ReceiveParams) error {
	for set, err := range b.Await(ctx, q, params) {
		if err != nil {
			return err
		}
		if !fn(set) {
			return nil
		}
	}
	return nil
}

// anchor returns the id of the second most recent document.
func (b *Bounded) anchor(ctx context.Context, coll docstore.Collection, q Queue) (id.ID, error) {
	if err := ctx.Err(); err != nil {
		return id.Zero, err
	}
	docs, err := coll.Find(ctx, docstore.Filter{}, docstore.FindOptions{Sort: docstore.Descending, Skip: 1, Limit: 1, IDOnly: true})
	if err != nil {
		return id.Zero, errdefs.Store("await", q.Name, err)
	}
	if len(docs) == 0 {
		return id.Zero, errdefs.New("await", q.Name, errdefs.ErrAnchorUnavailable, errors.New("fewer than two documents"))
	}
	return docs[0].ID, nil
}

// tailPass tails everything after anchor until the cursor dies. stop is true
// when the consumer asked to stop.
func (b *Bounded) tailPass(ctx context.Context, coll docstore.Collection, q Queue, params ReceiveParams, anchor id.ID, yield func(message.Set, error) bool) (delivered, stop bool, err error) {
	// Class and selector checks need the document body.
	idOnly := params.ClassFilter == "" && !params.needsBody()
	cur, err := coll.Tail(ctx, docstore.After(anchor), docstore.TailOptions{IDOnly: idOnly})
	if err != nil {
		return false, false, errdefs.Store("await", q.Name, err)
	}
	defer cur.Close(context.Background())

	for {
		if err := ctx.Err(); err != nil {
			return delivered, false, err
		}
		doc, ok, err := cur.Next(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return delivered, false, ctxErr
			}
			return delivered, false, errdefs.Store("await", q.Name, err)
		}
		if !ok {
			if !cur.Alive() {
				return delivered, false, nil
			}
			continue
		}
		if doc.Handled {
			continue
		}
		if !idOnly && !params.admits(envelope.Decode(doc)) {
			continue
		}
		env, won, err := b.claim(ctx, coll, q, doc.ID)
		if err != nil {
			return delivered, false, err
		}
		if !won {
			continue
		}
		delivered = true
		b.obs.Received(q.Name, ModeAwait, 1)
		if !yield(q.Options.NewSet(q.Name, []message.Envelope{env}), nil) {
			return delivered, true, nil
		}
	}
}
