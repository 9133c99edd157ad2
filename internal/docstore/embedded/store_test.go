package embedded

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rzbill/docq/internal/docstore"
	"github.com/rzbill/docq/pkg/id"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Options{DataDir: t.TempDir(), Await: 100 * time.Millisecond})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func newDoc(gen *id.Generator, body string) docstore.Document {
	return docstore.Document{ID: gen.Next(), Class: "message", Content: []byte(body)}
}

func TestCreateCollectionTwice(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.CreateCollection(ctx, "q", docstore.CollectionOptions{}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.CreateCollection(ctx, "q", docstore.CollectionOptions{}); !errors.Is(err, docstore.ErrCollectionExists) {
		t.Fatalf("expected ErrCollectionExists, got %v", err)
	}
	info, err := s.Inspect(ctx, "q")
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if !info.Exists || !info.Valid || info.Capped {
		t.Fatalf("unexpected info %+v", info)
	}
}

func TestInsertFindCountDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	gen := id.NewGenerator()
	coll := s.Collection("plain")

	var ids []id.ID
	for i := 0; i < 5; i++ {
		d := newDoc(gen, fmt.Sprintf("m%d", i))
		ids = append(ids, d.ID)
		if _, err := coll.InsertOne(ctx, d); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	if _, err := coll.InsertOne(ctx, docstore.Document{ID: ids[0]}); !errors.Is(err, docstore.ErrDuplicateID) {
		t.Fatalf("expected duplicate error, got %v", err)
	}

	n, err := coll.Count(ctx, docstore.Filter{})
	if err != nil || n != 5 {
		t.Fatalf("count=%d err=%v", n, err)
	}

	latest, err := coll.Find(ctx, docstore.Filter{}, docstore.FindOptions{Sort: docstore.Descending, Limit: 1})
	if err != nil || len(latest) != 1 || latest[0].ID != ids[4] {
		t.Fatalf("latest=%v err=%v", latest, err)
	}
	second, err := coll.Find(ctx, docstore.Filter{}, docstore.FindOptions{Sort: docstore.Descending, Skip: 1, Limit: 1, IDOnly: true})
	if err != nil || len(second) != 1 || second[0].ID != ids[3] || second[0].Content != nil {
		t.Fatalf("second=%v err=%v", second, err)
	}

	removed, err := coll.DeleteOne(ctx, docstore.ByID(ids[2]))
	if err != nil || removed != 1 {
		t.Fatalf("delete removed=%d err=%v", removed, err)
	}
	removed, err = coll.DeleteOne(ctx, docstore.ByID(ids[2]))
	if err != nil || removed != 0 {
		t.Fatalf("second delete removed=%d err=%v", removed, err)
	}
	n, _ = coll.Count(ctx, docstore.Filter{})
	if n != 4 {
		t.Fatalf("count after delete=%d", n)
	}
}

func TestClaimOneSingleWinner(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	gen := id.NewGenerator()
	coll := s.Collection("claims")
	d := newDoc(gen, "once")
	if _, err := coll.InsertOne(ctx, d); err != nil {
		t.Fatalf("insert: %v", err)
	}

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pre, ok, err := coll.ClaimOne(ctx, d.ID)
			if err != nil {
				t.Errorf("claim: %v", err)
				return
			}
			if ok {
				if pre.Handled {
					t.Errorf("pre-image should be unhandled")
				}
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
	unhandled, _ := coll.Count(ctx, docstore.Filter{}.WithHandled(false))
	if unhandled != 0 {
		t.Fatalf("unhandled=%d", unhandled)
	}
}

func TestCappedEvictsOldest(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	gen := id.NewGenerator()
	if err := s.CreateCollection(ctx, "capped", docstore.CollectionOptions{Capped: true, SizeBytes: 1 << 20, MaxDocuments: 3}); err != nil {
		t.Fatalf("create: %v", err)
	}
	coll := s.Collection("capped")
	var ids []id.ID
	for i := 0; i < 5; i++ {
		d := newDoc(gen, "x")
		ids = append(ids, d.ID)
		if _, err := coll.InsertOne(ctx, d); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	docs, err := coll.Find(ctx, docstore.Filter{}, docstore.FindOptions{})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(docs) != 3 || docs[0].ID != ids[2] || docs[2].ID != ids[4] {
		t.Fatalf("unexpected survivors %v", docs)
	}
	if _, err := coll.DeleteOne(ctx, docstore.ByID(ids[4])); !errors.Is(err, docstore.ErrCappedDelete) {
		t.Fatalf("expected ErrCappedDelete, got %v", err)
	}
	info, err := s.Inspect(ctx, "capped")
	if err != nil || !info.Capped || !info.Valid || info.Count != 3 || info.MaxDocuments != 3 {
		t.Fatalf("info=%+v err=%v", info, err)
	}
}

func TestCappedByteBudget(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	gen := id.NewGenerator()
	if err := s.CreateCollection(ctx, "tiny", docstore.CollectionOptions{Capped: true, SizeBytes: 256}); err != nil {
		t.Fatalf("create: %v", err)
	}
	coll := s.Collection("tiny")
	big := make([]byte, 300)
	if _, err := coll.InsertOne(ctx, docstore.Document{ID: gen.Next(), Content: big}); !errors.Is(err, docstore.ErrDocumentTooLarge) {
		t.Fatalf("expected ErrDocumentTooLarge, got %v", err)
	}
	for i := 0; i < 10; i++ {
		if _, err := coll.InsertOne(ctx, docstore.Document{ID: gen.Next(), Content: make([]byte, 64)}); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	n, _ := coll.Count(ctx, docstore.Filter{})
	if n == 0 || n >= 10 {
		t.Fatalf("expected byte budget eviction, count=%d", n)
	}
}

func TestTailWakesOnInsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	gen := id.NewGenerator()
	if err := s.CreateCollection(ctx, "tail", docstore.CollectionOptions{Capped: true, SizeBytes: 1 << 20, MaxDocuments: 100}); err != nil {
		t.Fatalf("create: %v", err)
	}
	coll := s.Collection("tail")
	anchor := newDoc(gen, "anchor")
	if _, err := coll.InsertOne(ctx, anchor); err != nil {
		t.Fatalf("insert: %v", err)
	}
	cur, err := coll.Tail(ctx, docstore.Filter{}, docstore.TailOptions{Await: time.Second})
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	defer cur.Close(ctx)

	got, ok, err := cur.Next(ctx)
	if err != nil || !ok || got.ID != anchor.ID {
		t.Fatalf("first next got=%v ok=%v err=%v", got.ID, ok, err)
	}

	later := newDoc(gen, "later")
	go func() {
		time.Sleep(50 * time.Millisecond)
		_, _ = coll.InsertOne(context.Background(), later)
	}()
	start := time.Now()
	got, ok, err = cur.Next(ctx)
	if err != nil || !ok || got.ID != later.ID {
		t.Fatalf("second next got=%v ok=%v err=%v", got.ID, ok, err)
	}
	if time.Since(start) > 900*time.Millisecond {
		t.Fatalf("tail did not wake on insert")
	}
	if !cur.Alive() {
		t.Fatalf("cursor should be alive")
	}
}

func TestTailAwaitTimeoutKeepsCursorAlive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	gen := id.NewGenerator()
	_ = s.CreateCollection(ctx, "idle", docstore.CollectionOptions{Capped: true, SizeBytes: 4096})
	coll := s.Collection("idle")
	_, _ = coll.InsertOne(ctx, newDoc(gen, "a"))
	cur, err := coll.Tail(ctx, docstore.Filter{}, docstore.TailOptions{Await: 30 * time.Millisecond})
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if _, ok, _ := cur.Next(ctx); !ok {
		t.Fatalf("expected first document")
	}
	if _, ok, err := cur.Next(ctx); ok || err != nil {
		t.Fatalf("expected empty await, ok=%v err=%v", ok, err)
	}
	if !cur.Alive() {
		t.Fatalf("cursor should survive an empty await")
	}
}

func TestTailDeadCursors(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	gen := id.NewGenerator()

	if _, err := s.Collection("missing").Tail(ctx, docstore.Filter{}, docstore.TailOptions{}); err != nil {
		t.Fatalf("tail missing: %v", err)
	}

	if err := s.CreateCollection(ctx, "plain", docstore.CollectionOptions{}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.Collection("plain").Tail(ctx, docstore.Filter{}, docstore.TailOptions{}); !errors.Is(err, docstore.ErrNotCapped) {
		t.Fatalf("expected ErrNotCapped, got %v", err)
	}

	_ = s.CreateCollection(ctx, "c", docstore.CollectionOptions{Capped: true, SizeBytes: 4096})
	coll := s.Collection("c")
	d := newDoc(gen, "only")
	_, _ = coll.InsertOne(ctx, d)
	empty, err := coll.Tail(ctx, docstore.After(d.ID), docstore.TailOptions{})
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if empty.Alive() {
		t.Fatalf("tail with no match at open should be dead")
	}

	live, err := coll.Tail(ctx, docstore.Filter{}, docstore.TailOptions{Await: time.Second})
	if err != nil || !live.Alive() {
		t.Fatalf("live tail err=%v", err)
	}
	if _, ok, _ := live.Next(ctx); !ok {
		t.Fatalf("expected document")
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, ok, err := live.Next(ctx)
		if ok || err != nil {
			t.Errorf("expected dead cursor after drop, ok=%v err=%v", ok, err)
		}
	}()
	time.Sleep(30 * time.Millisecond)
	if dropped, err := s.DropCollection(ctx, "c"); err != nil || !dropped {
		t.Fatalf("drop=%v err=%v", dropped, err)
	}
	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("drop did not wake tail")
	}
	if live.Alive() {
		t.Fatalf("cursor should be dead after drop")
	}
}

func TestTailPositionLost(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	gen := id.NewGenerator()
	_ = s.CreateCollection(ctx, "lossy", docstore.CollectionOptions{Capped: true, SizeBytes: 1 << 20, MaxDocuments: 2})
	coll := s.Collection("lossy")
	_, _ = coll.InsertOne(ctx, newDoc(gen, "a"))
	cur, err := coll.Tail(ctx, docstore.Filter{}, docstore.TailOptions{Await: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if _, ok, _ := cur.Next(ctx); !ok {
		t.Fatalf("expected document")
	}
	for i := 0; i < 4; i++ {
		_, _ = coll.InsertOne(ctx, newDoc(gen, "b"))
	}
	if _, ok, _ := cur.Next(ctx); ok {
		t.Fatalf("expected no document after eviction overran the cursor")
	}
	if cur.Alive() {
		t.Fatalf("cursor should be dead after losing its position")
	}
}

func TestTailContextCancel(t *testing.T) {
	s := newTestStore(t)
	gen := id.NewGenerator()
	ctx := context.Background()
	_ = s.CreateCollection(ctx, "cancel", docstore.CollectionOptions{Capped: true, SizeBytes: 4096})
	coll := s.Collection("cancel")
	_, _ = coll.InsertOne(ctx, newDoc(gen, "a"))
	cur, _ := coll.Tail(ctx, docstore.Filter{}, docstore.TailOptions{Await: 5 * time.Second})
	_, _, _ = cur.Next(ctx)

	cctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if _, _, err := cur.Next(cctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestReopenRestoresCounters(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	gen := id.NewGenerator()
	s, err := Open(Options{DataDir: dir})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_ = s.CreateCollection(ctx, "persist", docstore.CollectionOptions{Capped: true, SizeBytes: 4096, MaxDocuments: 10})
	for i := 0; i < 3; i++ {
		_, _ = s.Collection("persist").InsertOne(ctx, newDoc(gen, "p"))
	}
	if err := s.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}

	s2, err := Open(Options{DataDir: dir})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close(ctx)
	info, err := s2.Inspect(ctx, "persist")
	if err != nil || !info.Exists || info.Count != 3 || !info.Valid {
		t.Fatalf("info=%+v err=%v", info, err)
	}
	if err := s2.CreateCollection(ctx, "persist", docstore.CollectionOptions{}); !errors.Is(err, docstore.ErrCollectionExists) {
		t.Fatalf("expected exists after reopen, got %v", err)
	}
}

func TestInsertAssignsIDsInNaturalOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.CreateCollection(ctx, "ordered", docstore.CollectionOptions{Capped: true, SizeBytes: 1 << 20, MaxDocuments: 500}); err != nil {
		t.Fatalf("create: %v", err)
	}
	coll := s.Collection("ordered")

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				docID, err := coll.InsertOne(ctx, docstore.Document{Class: "message"})
				if err != nil || docID.IsZero() {
					t.Errorf("insert: id=%v err=%v", docID, err)
					return
				}
			}
		}()
	}
	wg.Wait()

	docs, err := coll.Find(ctx, docstore.Filter{}, docstore.FindOptions{IDOnly: true})
	if err != nil || len(docs) != 200 {
		t.Fatalf("find: n=%d err=%v", len(docs), err)
	}
	for i := 1; i < len(docs); i++ {
		if docs[i-1].ID.Compare(docs[i].ID) >= 0 {
			t.Fatalf("natural order %d breaks id order: %s then %s", i, docs[i-1].ID, docs[i].ID)
		}
	}
}

func TestClosedStoreReportsErrClosed(t *testing.T) {
	s, err := Open(Options{DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ctx := context.Background()
	coll := s.Collection("gone")
	if _, err := coll.InsertOne(ctx, docstore.Document{Class: "message"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := coll.InsertOne(ctx, docstore.Document{Class: "message"}); !errors.Is(err, docstore.ErrClosed) {
		t.Fatalf("insert after close: %v", err)
	}
	if _, err := coll.Count(ctx, docstore.Filter{}); !errors.Is(err, docstore.ErrClosed) {
		t.Fatalf("count after close: %v", err)
	}
	if err := s.Ping(ctx); !errors.Is(err, docstore.ErrClosed) {
		t.Fatalf("ping after close: %v", err)
	}
}
