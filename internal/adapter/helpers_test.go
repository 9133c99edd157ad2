package adapter

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rzbill/docq/internal/docstore"
	"github.com/rzbill/docq/internal/docstore/embedded"
)

func newTestStore(t *testing.T) docstore.Store {
	t.Helper()
	s, err := embedded.Open(embedded.Options{DataDir: t.TempDir(), Await: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

type observed struct {
	sent, received       int
	won, lost            int
	rejected, reanchored int
	heartbeats, deleted  int
}

// countingObserver records observer calls for assertions.
type countingObserver struct {
	mu sync.Mutex
	c  observed
}

func (o *countingObserver) add(field *int, n int) {
	o.mu.Lock()
	*field += n
	o.mu.Unlock()
}

func (o *countingObserver) Sent(string)                 { o.add(&o.c.sent, 1) }
func (o *countingObserver) Received(_, _ string, n int) { o.add(&o.c.received, n) }
func (o *countingObserver) Rejected(string)             { o.add(&o.c.rejected, 1) }
func (o *countingObserver) Reanchored(string)           { o.add(&o.c.reanchored, 1) }
func (o *countingObserver) Heartbeat(string)            { o.add(&o.c.heartbeats, 1) }
func (o *countingObserver) Deleted(string)              { o.add(&o.c.deleted, 1) }

func (o *countingObserver) Claimed(_ string, won bool) {
	if won {
		o.add(&o.c.won, 1)
		return
	}
	o.add(&o.c.lost, 1)
}

func (o *countingObserver) snapshot() observed {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.c
}
