//go:build integration

package mongo

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go/modules/mongodb"

	"github.com/rzbill/docq/internal/docstore"
	"github.com/rzbill/docq/pkg/id"
)

// testURI returns DOCQ_TEST_MONGO_URI or starts a throwaway container.
func testURI(t *testing.T) string {
	t.Helper()
	if uri := os.Getenv("DOCQ_TEST_MONGO_URI"); uri != "" {
		return uri
	}
	ctx := context.Background()
	container, err := mongodb.Run(ctx, "mongo:7")
	if err != nil {
		t.Fatalf("start mongodb container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })
	uri, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}
	return uri
}

func newIntegrationStore(t *testing.T) *Store {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	s, err := Connect(ctx, Options{URI: testURI(t), Database: "docq_test_" + id.NewGenerator().Next().String()[:12], Await: 200 * time.Millisecond})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() {
		_ = s.db.Drop(context.Background())
		_ = s.Close(context.Background())
	})
	return s
}

func TestMongoCreateInspectDrop(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()
	if err := s.CreateCollection(ctx, "capped", docstore.CollectionOptions{Capped: true, SizeBytes: 1 << 20, MaxDocuments: 5}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.CreateCollection(ctx, "capped", docstore.CollectionOptions{}); !errors.Is(err, docstore.ErrCollectionExists) {
		t.Fatalf("expected exists, got %v", err)
	}
	info, err := s.Inspect(ctx, "capped")
	if err != nil || !info.Exists || !info.Valid || !info.Capped || info.MaxDocuments != 5 {
		t.Fatalf("info=%+v err=%v", info, err)
	}
	dropped, err := s.DropCollection(ctx, "capped")
	if err != nil || !dropped {
		t.Fatalf("drop=%v err=%v", dropped, err)
	}
	dropped, err = s.DropCollection(ctx, "capped")
	if err != nil || dropped {
		t.Fatalf("second drop=%v err=%v", dropped, err)
	}
}

func TestMongoClaimSingleWinner(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()
	coll := s.Collection("claims")
	docID, err := coll.InsertOne(ctx, docstore.Document{Class: "message", Content: []byte("x")})
	if err != nil || docID.IsZero() {
		t.Fatalf("insert: id=%v err=%v", docID, err)
	}
	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok, err := coll.ClaimOne(ctx, docID); err == nil && ok {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("expected one winner, got %d", wins)
	}
}

func TestMongoTailAndDeadCursor(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()
	gen := id.NewGenerator()
	if err := s.CreateCollection(ctx, "tail", docstore.CollectionOptions{Capped: true, SizeBytes: 1 << 20, MaxDocuments: 10}); err != nil {
		t.Fatalf("create: %v", err)
	}
	coll := s.Collection("tail")
	first := docstore.Document{ID: gen.Next(), Handled: true}
	second := docstore.Document{ID: gen.Next(), Handled: true}
	_, _ = coll.InsertOne(ctx, first)
	_, _ = coll.InsertOne(ctx, second)

	dead, err := coll.Tail(ctx, docstore.After(second.ID), docstore.TailOptions{})
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if _, ok, _ := dead.Next(ctx); ok || dead.Alive() {
		t.Fatalf("expected dead cursor for empty initial match")
	}

	cur, err := coll.Tail(ctx, docstore.After(first.ID), docstore.TailOptions{})
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	defer cur.Close(ctx)
	got, ok, err := cur.Next(ctx)
	if err != nil || !ok || got.ID != second.ID {
		t.Fatalf("got=%v ok=%v err=%v", got.ID, ok, err)
	}
	fresh := docstore.Document{ID: gen.Next(), Class: "message", Content: []byte("new")}
	_, _ = coll.InsertOne(ctx, fresh)
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		got, ok, err = cur.Next(ctx)
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		if ok {
			break
		}
	}
	if got.ID != fresh.ID {
		t.Fatalf("expected fresh document, got %v", got.ID)
	}
}

func TestMongoTailDiesQuietlyOnRecreate(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()
	opts := docstore.CollectionOptions{Capped: true, SizeBytes: 1 << 20, MaxDocuments: 10}
	if err := s.CreateCollection(ctx, "recreated", opts); err != nil {
		t.Fatalf("create: %v", err)
	}
	coll := s.Collection("recreated")
	anchor, _ := coll.InsertOne(ctx, docstore.Document{Handled: true})
	_, _ = coll.InsertOne(ctx, docstore.Document{Class: "message", Content: []byte("a")})

	cur, err := coll.Tail(ctx, docstore.After(anchor), docstore.TailOptions{})
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	defer cur.Close(ctx)
	if _, ok, err := cur.Next(ctx); err != nil || !ok {
		t.Fatalf("first next ok=%v err=%v", ok, err)
	}

	if _, err := s.DropCollection(ctx, "recreated"); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if err := s.CreateCollection(ctx, "recreated", opts); err != nil {
		t.Fatalf("recreate: %v", err)
	}
	_, _ = coll.InsertOne(ctx, docstore.Document{Handled: true})

	deadline := time.Now().Add(5 * time.Second)
	for cur.Alive() && time.Now().Before(deadline) {
		if _, _, err := cur.Next(ctx); err != nil {
			t.Fatalf("next after recreate: expected a dead cursor, got %v", err)
		}
	}
	if cur.Alive() {
		t.Fatalf("cursor still alive after the collection was recreated")
	}
}

func TestMongoConcurrentInsertsKeepIDOrder(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()
	if err := s.CreateCollection(ctx, "ordered", docstore.CollectionOptions{Capped: true, SizeBytes: 1 << 20, MaxDocuments: 200}); err != nil {
		t.Fatalf("create: %v", err)
	}
	coll := s.Collection("ordered")
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				if _, err := coll.InsertOne(ctx, docstore.Document{Class: "message"}); err != nil {
					t.Errorf("insert: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()
	docs, err := coll.Find(ctx, docstore.Filter{}, docstore.FindOptions{IDOnly: true})
	if err != nil || len(docs) != 100 {
		t.Fatalf("find: n=%d err=%v", len(docs), err)
	}
	for i := 1; i < len(docs); i++ {
		if docs[i-1].ID.Compare(docs[i].ID) >= 0 {
			t.Fatalf("natural order %d breaks id order: %s then %s", i, docs[i-1].ID, docs[i].ID)
		}
	}
}
