package embedded

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/rzbill/docq/internal/docstore"
	"github.com/rzbill/docq/pkg/id"
)

// Collection is a handle on one named collection of a Store.
type Collection struct {
	store *Store
	name  string
}

var _ docstore.Collection = (*Collection)(nil)

// Name implements docstore.Collection.
func (h *Collection) Name() string { return h.name }

// ensure loads the collection, creating a plain one when missing.
func (h *Collection) ensure(ctx context.Context) (*coll, error) {
	c, err := h.store.load(h.name)
	if err != nil || c != nil {
		return c, err
	}
	if err := h.store.CreateCollection(ctx, h.name, docstore.CollectionOptions{}); err != nil && err != docstore.ErrCollectionExists {
		return nil, err
	}
	return h.store.load(h.name)
}

// InsertOne implements docstore.Collection. Capped collections evict their
// oldest documents until the new one fits.
func (h *Collection) InsertOne(ctx context.Context, doc docstore.Document) (id.ID, error) {
	c, err := h.ensure(ctx)
	if err != nil {
		return id.Zero, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dropped {
		return id.Zero, docstore.ErrCollectionNotFound
	}
	if doc.ID.IsZero() {
		doc.ID = h.store.ids.Next()
	} else if _, err := h.store.db.Get(KeyIndex(h.name, doc.ID)); err == nil {
		return id.Zero, docstore.ErrDuplicateID
	} else if !isNotFound(err) {
		return id.Zero, err
	}
	raw, err := EncodeDocument(doc)
	if err != nil {
		return id.Zero, err
	}
	size := int64(len(raw))
	if c.meta.Capped && size > c.meta.SizeBytes {
		return id.Zero, docstore.ErrDocumentTooLarge
	}

	b := h.store.db.NewBatch()
	defer b.Close()

	next := c.st
	if c.meta.Capped {
		for next.count > 0 && ((c.meta.MaxDocuments > 0 && next.count+1 > c.meta.MaxDocuments) || next.bytes+size > c.meta.SizeBytes) {
			old, err := h.store.db.Get(KeyDoc(h.name, next.firstSeq))
			if err != nil {
				return id.Zero, fmt.Errorf("embedded: evict %s/%d: %w", h.name, next.firstSeq, err)
			}
			evicted, err := DecodeDocument(old)
			if err != nil {
				return id.Zero, err
			}
			if err := b.Delete(KeyDoc(h.name, next.firstSeq), nil); err != nil {
				return id.Zero, err
			}
			if err := b.Delete(KeyIndex(h.name, evicted.ID), nil); err != nil {
				return id.Zero, err
			}
			next.count--
			next.bytes -= int64(len(old))
			next.firstSeq++
		}
	}
	next.lastSeq++
	if next.count == 0 {
		next.firstSeq = next.lastSeq
	}
	next.count++
	next.bytes += size

	if err := b.Set(KeyDoc(h.name, next.lastSeq), raw, nil); err != nil {
		return id.Zero, err
	}
	if err := b.Set(KeyIndex(h.name, doc.ID), appendBE8(nil, next.lastSeq), nil); err != nil {
		return id.Zero, err
	}
	if err := b.Set(KeyState(h.name), next.encode(), nil); err != nil {
		return id.Zero, err
	}
	if err := h.store.db.CommitBatch(ctx, b); err != nil {
		return id.Zero, err
	}
	c.st = next
	c.notifyLocked()
	return doc.ID, nil
}

// ClaimOne implements docstore.Collection. The collection mutex makes the
// check and the rewrite a single step, so concurrent claims of one id yield
// exactly one winner.
func (h *Collection) ClaimOne(ctx context.Context, docID id.ID) (docstore.Document, bool, error) {
	c, err := h.store.load(h.name)
	if err != nil || c == nil {
		return docstore.Document{}, false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dropped {
		return docstore.Document{}, false, nil
	}
	seq, raw, err := h.lookupLocked(docID)
	if err != nil || raw == nil {
		return docstore.Document{}, false, err
	}
	pre, err := DecodeDocument(raw)
	if err != nil {
		return docstore.Document{}, false, err
	}
	if pre.Handled {
		return docstore.Document{}, false, nil
	}
	post := pre
	post.Handled = true
	updated, err := EncodeDocument(post)
	if err != nil {
		return docstore.Document{}, false, err
	}
	next := c.st
	next.bytes += int64(len(updated) - len(raw))

	b := h.store.db.NewBatch()
	defer b.Close()
	if err := b.Set(KeyDoc(h.name, seq), updated, nil); err != nil {
		return docstore.Document{}, false, err
	}
	if err := b.Set(KeyState(h.name), next.encode(), nil); err != nil {
		return docstore.Document{}, false, err
	}
	if err := h.store.db.CommitBatch(ctx, b); err != nil {
		return docstore.Document{}, false, err
	}
	c.st = next
	return pre, true, nil
}

// lookupLocked resolves an id to its sequence and record. raw is nil when
// the id is not stored.
func (h *Collection) lookupLocked(docID id.ID) (uint64, []byte, error) {
	v, err := h.store.db.Get(KeyIndex(h.name, docID))
	if err != nil {
		if isNotFound(err) {
			return 0, nil, nil
		}
		return 0, nil, err
	}
	if len(v) != 8 {
		return 0, nil, errCorrupt
	}
	seq := binary.BigEndian.Uint64(v)
	raw, err := h.store.db.Get(KeyDoc(h.name, seq))
	if err != nil {
		if isNotFound(err) {
			return 0, nil, nil
		}
		return 0, nil, err
	}
	return seq, raw, nil
}

// Find implements docstore.Collection.
func (h *Collection) Find(ctx context.Context, f docstore.Filter, opts docstore.FindOptions) ([]docstore.Document, error) {
	c, err := h.store.load(h.name)
	if err != nil || c == nil {
		return nil, err
	}
	var out []docstore.Document
	skipped := int64(0)
	err = h.store.scan(ctx, h.name, opts.Sort, func(_ uint64, raw []byte) (bool, error) {
		d, err := DecodeDocument(raw)
		if err != nil {
			return false, err
		}
		if !f.Match(&d) {
			return true, nil
		}
		if skipped < opts.Skip {
			skipped++
			return true, nil
		}
		if opts.IDOnly {
			d = docstore.Document{ID: d.ID, Handled: d.Handled}
		}
		out = append(out, d)
		return opts.Limit <= 0 || int64(len(out)) < opts.Limit, nil
	})
	return out, err
}

// Count implements docstore.Collection.
func (h *Collection) Count(ctx context.Context, f docstore.Filter) (int64, error) {
	c, err := h.store.load(h.name)
	if err != nil || c == nil {
		return 0, err
	}
	if f == (docstore.Filter{}) {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.st.count, nil
	}
	var n int64
	err = h.store.scan(ctx, h.name, docstore.Ascending, func(_ uint64, raw []byte) (bool, error) {
		d, err := DecodeDocument(raw)
		if err != nil {
			return false, err
		}
		if f.Match(&d) {
			n++
		}
		return true, nil
	})
	return n, err
}

// DeleteOne implements docstore.Collection.
func (h *Collection) DeleteOne(ctx context.Context, f docstore.Filter) (int64, error) {
	c, err := h.store.load(h.name)
	if err != nil || c == nil {
		return 0, err
	}
	if c.meta.Capped {
		return 0, docstore.ErrCappedDelete
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dropped {
		return 0, nil
	}

	var (
		seq   uint64
		found *docstore.Document
		size  int
	)
	if f.ID != nil {
		s, raw, err := h.lookupLocked(*f.ID)
		if err != nil || raw == nil {
			return 0, err
		}
		d, err := DecodeDocument(raw)
		if err != nil {
			return 0, err
		}
		if f.Match(&d) {
			seq, found, size = s, &d, len(raw)
		}
	} else {
		err := h.store.scan(ctx, h.name, docstore.Ascending, func(s uint64, raw []byte) (bool, error) {
			d, err := DecodeDocument(raw)
			if err != nil {
				return false, err
			}
			if !f.Match(&d) {
				return true, nil
			}
			seq, found, size = s, &d, len(raw)
			return false, nil
		})
		if err != nil {
			return 0, err
		}
	}
	if found == nil {
		return 0, nil
	}

	next := c.st
	next.count--
	next.bytes -= int64(size)
	b := h.store.db.NewBatch()
	defer b.Close()
	if err := b.Delete(KeyDoc(h.name, seq), nil); err != nil {
		return 0, err
	}
	if err := b.Delete(KeyIndex(h.name, found.ID), nil); err != nil {
		return 0, err
	}
	if err := b.Set(KeyState(h.name), next.encode(), nil); err != nil {
		return 0, err
	}
	if err := h.store.db.CommitBatch(ctx, b); err != nil {
		return 0, err
	}
	c.st = next
	return 1, nil
}

// Tail implements docstore.Collection.
func (h *Collection) Tail(ctx context.Context, f docstore.Filter, opts docstore.TailOptions) (docstore.Cursor, error) {
	c, err := h.store.load(h.name)
	if err != nil {
		return nil, err
	}
	await := opts.Await
	if await <= 0 {
		await = h.store.await
	}
	cur := &Cursor{store: h.store, coll: c, name: h.name, filter: f, await: await, idOnly: opts.IDOnly}
	if c == nil {
		return cur, nil
	}
	if !c.meta.Capped {
		return nil, docstore.ErrNotCapped
	}
	var first uint64
	err = h.store.scan(ctx, h.name, docstore.Ascending, func(seq uint64, raw []byte) (bool, error) {
		d, err := DecodeDocument(raw)
		if err != nil {
			return false, err
		}
		if f.Match(&d) {
			first = seq
			return false, nil
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if first == 0 {
		return cur, nil
	}
	cur.pos = first - 1
	cur.alive = true
	return cur, nil
}
