package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/rzbill/docq/internal/docstore"
	"github.com/rzbill/docq/pkg/id"
)

const (
	codeBadValue           = 2
	codeCursorNotFound     = 43
	codeCappedPositionLost = 136
	codeQueryPlanKilled    = 175
	codeCursorKilled       = 237
)

// Collection is a handle on one MongoDB collection.
type Collection struct {
	store *Store
	coll  *mongo.Collection
}

var _ docstore.Collection = (*Collection)(nil)

// Name implements docstore.Collection.
func (c *Collection) Name() string { return c.coll.Name() }

// InsertOne implements docstore.Collection. Assigned ids are drawn under a
// per-collection lock held across the insert, so within one process they
// reach the server in generation order.
func (c *Collection) InsertOne(ctx context.Context, doc docstore.Document) (id.ID, error) {
	if doc.ID.IsZero() {
		mu := c.store.insertLock(c.coll.Name())
		mu.Lock()
		defer mu.Unlock()
		doc.ID = c.store.ids.Next()
	}
	_, err := c.coll.InsertOne(ctx, fromDocstore(doc))
	if mongo.IsDuplicateKeyError(err) {
		return id.Zero, docstore.ErrDuplicateID
	}
	if err != nil {
		return id.Zero, storeErr(err)
	}
	return doc.ID, nil
}

// ClaimOne implements docstore.Collection with one findAndModify returning
// the pre-image.
func (c *Collection) ClaimOne(ctx context.Context, docID id.ID) (docstore.Document, bool, error) {
	filter := bson.D{{Key: "_id", Value: docID.String()}, {Key: "h", Value: false}}
	update := bson.D{{Key: "$set", Value: bson.D{{Key: "h", Value: true}}}}
	opts := options.FindOneAndUpdate().
		SetSort(naturalOrder).
		SetReturnDocument(options.Before)

	var pre document
	err := c.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&pre)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return docstore.Document{}, false, nil
	}
	if err != nil {
		return docstore.Document{}, false, storeErr(err)
	}
	if pre.Handled {
		return docstore.Document{}, false, nil
	}
	out, err := pre.toDocstore()
	return out, err == nil, err
}

// Find implements docstore.Collection.
func (c *Collection) Find(ctx context.Context, f docstore.Filter, opts docstore.FindOptions) ([]docstore.Document, error) {
	fo := options.Find()
	if opts.Sort == docstore.Descending {
		fo.SetSort(bson.D{{Key: "$natural", Value: -1}})
	} else {
		fo.SetSort(naturalOrder)
	}
	if opts.Skip > 0 {
		fo.SetSkip(opts.Skip)
	}
	if opts.Limit > 0 {
		fo.SetLimit(opts.Limit)
	}
	if opts.IDOnly {
		fo.SetProjection(idOnlyProjection)
	}
	cur, err := c.coll.Find(ctx, toFilter(f), fo)
	if err != nil {
		return nil, storeErr(err)
	}
	defer cur.Close(ctx)

	var out []docstore.Document
	for cur.Next(ctx) {
		var d document
		if err := cur.Decode(&d); err != nil {
			return nil, err
		}
		doc, err := d.toDocstore()
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, cur.Err()
}

// Count implements docstore.Collection.
func (c *Collection) Count(ctx context.Context, f docstore.Filter) (int64, error) {
	n, err := c.coll.CountDocuments(ctx, toFilter(f))
	return n, storeErr(err)
}

// DeleteOne implements docstore.Collection.
func (c *Collection) DeleteOne(ctx context.Context, f docstore.Filter) (int64, error) {
	res, err := c.coll.DeleteOne(ctx, toFilter(f))
	if err != nil {
		if isCappedError(err) {
			return 0, docstore.ErrCappedDelete
		}
		return 0, storeErr(err)
	}
	return res.DeletedCount, nil
}

// Tail implements docstore.Collection. The server kills a tailable cursor
// whose query matches nothing, so such a cursor comes back already dead.
func (c *Collection) Tail(ctx context.Context, f docstore.Filter, opts docstore.TailOptions) (docstore.Cursor, error) {
	await := opts.Await
	if await <= 0 {
		await = c.store.await
	}
	fo := options.Find().
		SetCursorType(options.TailableAwait).
		SetMaxAwaitTime(await).
		SetSort(naturalOrder)
	if opts.IDOnly {
		fo.SetProjection(idOnlyProjection)
	}
	cur, err := c.coll.Find(ctx, toFilter(f), fo)
	if err != nil {
		if isCappedError(err) {
			return nil, docstore.ErrNotCapped
		}
		return nil, storeErr(err)
	}
	return &Cursor{cur: cur}, nil
}

func isCappedError(err error) bool {
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.Code == codeBadValue && strings.Contains(cmdErr.Message, "capped")
	}
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if strings.Contains(e.Message, "capped") {
				return true
			}
		}
	}
	return false
}

// isCursorDeath reports whether err means the server discarded the tailable
// cursor: the tail fell behind capped eviction, or the collection was
// dropped or recreated underneath it. Callers re-anchor as for any death.
func isCursorDeath(err error) bool {
	var se mongo.ServerError
	if !errors.As(err, &se) {
		return false
	}
	for _, code := range []int{codeCappedPositionLost, codeQueryPlanKilled, codeCursorKilled, codeCursorNotFound} {
		if se.HasErrorCode(code) {
			return true
		}
	}
	return false
}

// storeErr marks failures caused by a disconnected client as docstore.ErrClosed.
func storeErr(err error) error {
	if errors.Is(err, mongo.ErrClientDisconnected) {
		return fmt.Errorf("%w: %w", docstore.ErrClosed, err)
	}
	return err
}

// Cursor wraps a TailableAwait driver cursor.
type Cursor struct {
	cur *mongo.Cursor
	// exhausted is set once the server closed the cursor and the local batch
	// is drained.
	exhausted bool
}

var _ docstore.Cursor = (*Cursor)(nil)

// Next implements docstore.Cursor using TryNext, which issues at most one
// awaiting getMore.
func (c *Cursor) Next(ctx context.Context) (docstore.Document, bool, error) {
	if c.exhausted {
		return docstore.Document{}, false, nil
	}
	if !c.cur.TryNext(ctx) {
		if err := c.cur.Err(); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return docstore.Document{}, false, ctxErr
			}
			c.exhausted = true
			if isCursorDeath(err) {
				return docstore.Document{}, false, nil
			}
			return docstore.Document{}, false, storeErr(err)
		}
		if c.cur.ID() == 0 {
			c.exhausted = true
		}
		return docstore.Document{}, false, nil
	}
	var d document
	if err := c.cur.Decode(&d); err != nil {
		return docstore.Document{}, false, err
	}
	doc, err := d.toDocstore()
	return doc, err == nil, err
}

// Alive implements docstore.Cursor. A cursor is alive while the server
// still holds it or local documents remain.
func (c *Cursor) Alive() bool {
	if c.exhausted {
		return false
	}
	return c.cur.ID() != 0 || c.cur.RemainingBatchLength() > 0
}

// Close implements docstore.Cursor.
func (c *Cursor) Close(ctx context.Context) error {
	c.exhausted = true
	return c.cur.Close(ctx)
}
