package embedded

import (
	"context"
	"time"

	"github.com/rzbill/docq/internal/docstore"
)

// Cursor is a tailable cursor over a capped collection. It dies when the
// collection is dropped or recreated, when the store closes, and when the
// documents after its position were evicted before it read them.
type Cursor struct {
	store  *Store
	coll   *coll
	name   string
	filter docstore.Filter
	await  time.Duration
	idOnly bool

	pos   uint64 // last seq examined
	alive bool
}

var _ docstore.Cursor = (*Cursor)(nil)

// Alive implements docstore.Cursor.
func (c *Cursor) Alive() bool { return c.alive }

// Close implements docstore.Cursor.
func (c *Cursor) Close(context.Context) error {
	c.alive = false
	return nil
}

// Next implements docstore.Cursor. It blocks until a matching document is
// appended, the await interval elapses, or ctx is done.
func (c *Cursor) Next(ctx context.Context) (docstore.Document, bool, error) {
	waited := false
	for c.alive {
		if !c.store.current(c.coll) {
			c.alive = false
			break
		}
		c.coll.mu.Lock()
		if c.coll.dropped || (c.coll.st.count > 0 && c.coll.st.firstSeq > c.pos+1) {
			c.coll.mu.Unlock()
			c.alive = false
			break
		}
		ch := c.coll.notifyCh
		last := c.coll.st.lastSeq
		c.coll.mu.Unlock()

		if last > c.pos {
			doc, ok, err := c.advance(ctx)
			if err != nil || ok {
				return doc, ok, err
			}
		}
		if waited {
			return docstore.Document{}, false, nil
		}

		timer := time.NewTimer(c.await)
		select {
		case <-ch:
			timer.Stop()
			waited = true
		case <-timer.C:
			return docstore.Document{}, false, nil
		case <-ctx.Done():
			timer.Stop()
			return docstore.Document{}, false, ctx.Err()
		}
	}
	return docstore.Document{}, false, nil
}

// advance scans forward from pos and returns the first matching document,
// moving pos past everything it examined.
func (c *Cursor) advance(ctx context.Context) (docstore.Document, bool, error) {
	var (
		out   docstore.Document
		found bool
	)
	err := c.store.scanFrom(ctx, c.name, docstore.Ascending, c.pos, func(seq uint64, raw []byte) (bool, error) {
		if seq <= c.pos {
			return true, nil
		}
		c.pos = seq
		d, err := DecodeDocument(raw)
		if err != nil {
			return false, err
		}
		if !c.filter.Match(&d) {
			return true, nil
		}
		if c.idOnly {
			d = docstore.Document{ID: d.ID, Handled: d.Handled}
		}
		out, found = d, true
		return false, nil
	})
	return out, found, err
}
