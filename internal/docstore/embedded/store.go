package embedded

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/google/uuid"

	"github.com/rzbill/docq/internal/docstore"
	pebblestore "github.com/rzbill/docq/internal/storage/pebble"
	"github.com/rzbill/docq/pkg/id"
	logpkg "github.com/rzbill/docq/pkg/log"
)

// DefaultAwait is the tail wait used when TailOptions.Await is zero.
const DefaultAwait = time.Second

// Options configures the embedded store.
type Options struct {
	// DB is an already-open Pebble wrapper. When nil, Pebble is opened with
	// the fields below and closed by Store.Close.
	DB            *pebblestore.DB
	DataDir       string
	Fsync         pebblestore.FsyncMode
	FsyncInterval time.Duration
	Metrics       pebblestore.MetricsHook
	// Await is the default tail wait.
	Await  time.Duration
	Logger logpkg.Logger
}

// collMeta is persisted under KeyMeta.
type collMeta struct {
	Incarnation  string `json:"incarnation"`
	Capped       bool   `json:"capped"`
	SizeBytes    int64  `json:"sizeBytes,omitempty"`
	MaxDocuments int64  `json:"maxDocuments,omitempty"`
	CreatedAtMs  int64  `json:"createdAtMs"`
}

// coll is the in-memory state of one loaded collection. mu serialises every
// mutation of the collection; it is the store's native concurrency control.
type coll struct {
	name string
	meta collMeta

	mu       sync.Mutex
	st       counters
	notifyCh chan struct{}
	dropped  bool
}

// counters is persisted under KeyState.
type counters struct {
	lastSeq  uint64
	firstSeq uint64 // oldest live seq in a capped collection
	count    int64
	bytes    int64
}

// Store is a single-process document store on Pebble.
type Store struct {
	db     *pebblestore.DB
	owned  bool
	await  time.Duration
	logger logpkg.Logger
	ids    *id.Generator

	mu     sync.Mutex
	colls  map[string]*coll
	closed bool
}

// Open builds a Store from opts.
func Open(opts Options) (*Store, error) {
	db := opts.DB
	owned := false
	if db == nil {
		var err error
		db, err = pebblestore.Open(pebblestore.Options{
			DataDir:       opts.DataDir,
			Fsync:         opts.Fsync,
			FsyncInterval: opts.FsyncInterval,
			Metrics:       opts.Metrics,
		})
		if err != nil {
			return nil, err
		}
		owned = true
	}
	await := opts.Await
	if await <= 0 {
		await = DefaultAwait
	}
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewLogger(logpkg.WithOutput(logpkg.NullOutput{}))
	}
	return &Store{
		db:     db,
		owned:  owned,
		await:  await,
		logger: logger.With(logpkg.Component("docstore.embedded")),
		ids:    id.NewGenerator(),
		colls:  make(map[string]*coll),
	}, nil
}

func validName(name string) error {
	if name == "" || strings.ContainsAny(name, "/$\x00") {
		return fmt.Errorf("embedded: invalid collection name %q", name)
	}
	return nil
}

// load returns the collection state, reading it from Pebble on first use.
// It returns nil when the collection does not exist.
func (s *Store) load(name string) (*coll, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(name)
}

func (s *Store) loadLocked(name string) (*coll, error) {
	if s.closed {
		return nil, docstore.ErrClosed
	}
	if c, ok := s.colls[name]; ok {
		return c, nil
	}
	if validName(name) != nil {
		return nil, nil
	}
	raw, err := s.db.Get(KeyMeta(name))
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	var meta collMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("embedded: collection %s metadata: %w", name, err)
	}
	c := &coll{name: name, meta: meta, notifyCh: make(chan struct{})}
	if st, err := s.db.Get(KeyState(name)); err == nil && len(st) >= 32 {
		c.st = decodeCounters(st)
	}
	s.colls[name] = c
	return c, nil
}

// current reports whether c is still the live incarnation of its name.
func (s *Store) current(c *coll) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed && s.colls[c.name] == c
}

func (st counters) encode() []byte {
	var b [32]byte
	binary.BigEndian.PutUint64(b[0:8], st.lastSeq)
	binary.BigEndian.PutUint64(b[8:16], st.firstSeq)
	binary.BigEndian.PutUint64(b[16:24], uint64(st.count))
	binary.BigEndian.PutUint64(b[24:32], uint64(st.bytes))
	return b[:]
}

func decodeCounters(b []byte) counters {
	return counters{
		lastSeq:  binary.BigEndian.Uint64(b[0:8]),
		firstSeq: binary.BigEndian.Uint64(b[8:16]),
		count:    int64(binary.BigEndian.Uint64(b[16:24])),
		bytes:    int64(binary.BigEndian.Uint64(b[24:32])),
	}
}

func isNotFound(err error) bool { return pebblestore.IsNotFound(err) }

// notifyLocked wakes tail cursors waiting on c. Caller holds c.mu.
func (c *coll) notifyLocked() {
	close(c.notifyCh)
	c.notifyCh = make(chan struct{})
}

// CreateCollection implements docstore.Store.
func (s *Store) CreateCollection(ctx context.Context, name string, opts docstore.CollectionOptions) error {
	if err := validName(name); err != nil {
		return err
	}
	if opts.Capped && opts.SizeBytes <= 0 {
		return fmt.Errorf("embedded: capped collection %s needs a positive size", name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, err := s.loadLocked(name)
	if err != nil {
		return err
	}
	if existing != nil {
		return docstore.ErrCollectionExists
	}
	meta := collMeta{
		Incarnation:  uuid.NewString(),
		Capped:       opts.Capped,
		SizeBytes:    opts.SizeBytes,
		MaxDocuments: opts.MaxDocuments,
		CreatedAtMs:  time.Now().UnixMilli(),
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	c := &coll{name: name, meta: meta, notifyCh: make(chan struct{})}
	b := s.db.NewBatch()
	defer b.Close()
	if err := b.Set(KeyMeta(name), raw, nil); err != nil {
		return err
	}
	if err := b.Set(KeyState(name), c.st.encode(), nil); err != nil {
		return err
	}
	if err := s.db.CommitBatch(ctx, b); err != nil {
		return err
	}
	s.colls[name] = c
	s.logger.Debug("collection created", logpkg.Str("name", name), logpkg.Bool("capped", opts.Capped), logpkg.Str("incarnation", meta.Incarnation))
	return nil
}

// DropCollection implements docstore.Store.
func (s *Store) DropCollection(ctx context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.loadLocked(name)
	if err != nil || c == nil {
		return false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	low, high := collBounds(name)
	if err := s.db.DeleteRange(ctx, low, high); err != nil {
		return false, err
	}
	c.dropped = true
	c.notifyLocked()
	delete(s.colls, name)
	if err := s.db.Compact(low, high); err != nil {
		s.logger.Warn("compact after drop failed", logpkg.Str("name", name), logpkg.Err(err))
	}
	s.logger.Debug("collection dropped", logpkg.Str("name", name))
	return true, nil
}

// Inspect implements docstore.Store. Validation walks every document and
// verifies its checksum and the stored counters.
func (s *Store) Inspect(ctx context.Context, name string) (docstore.CollectionInfo, error) {
	info := docstore.CollectionInfo{Name: name}
	c, err := s.load(name)
	if err != nil || c == nil {
		return info, err
	}
	c.mu.Lock()
	count := c.st.count
	c.mu.Unlock()

	info.Exists = true
	info.Capped = c.meta.Capped
	info.SizeBytes = c.meta.SizeBytes
	info.MaxDocuments = c.meta.MaxDocuments
	info.Count = count

	valid := true
	var seen int64
	err = s.scan(ctx, name, docstore.Ascending, func(_ uint64, raw []byte) (bool, error) {
		if _, derr := DecodeDocument(raw); derr != nil {
			valid = false
			return false, nil
		}
		seen++
		return true, nil
	})
	if err != nil {
		return info, err
	}
	info.Valid = valid && seen == count
	return info, nil
}

// Collection implements docstore.Store.
func (s *Store) Collection(name string) docstore.Collection {
	return &Collection{store: s, name: name}
}

// Ping implements docstore.Store.
func (s *Store) Ping(ctx context.Context) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return docstore.ErrClosed
	}
	it, err := s.db.NewIter(nil)
	if err != nil {
		return err
	}
	return it.Close()
}

// Close implements docstore.Store. Waiting tails are woken and die.
func (s *Store) Close(context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for _, c := range s.colls {
		c.mu.Lock()
		c.dropped = true
		c.notifyLocked()
		c.mu.Unlock()
	}
	s.colls = map[string]*coll{}
	s.mu.Unlock()
	if s.owned {
		return s.db.Close()
	}
	return nil
}

// scan iterates the documents of name in the given direction. fn returns
// false to stop. raw is only valid for the duration of the call.
func (s *Store) scan(ctx context.Context, name string, dir docstore.Direction, fn func(seq uint64, raw []byte) (bool, error)) error {
	return s.scanFrom(ctx, name, dir, 0, fn)
}

// scanFrom is scan starting after afterSeq when ascending.
func (s *Store) scanFrom(ctx context.Context, name string, dir docstore.Direction, afterSeq uint64, fn func(seq uint64, raw []byte) (bool, error)) error {
	low, high := docBounds(name)
	if afterSeq > 0 && dir == docstore.Ascending {
		low = KeyDoc(name, afterSeq+1)
	}
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: low, UpperBound: high})
	if err != nil {
		return err
	}
	defer iter.Close()

	var ok bool
	if dir == docstore.Descending {
		ok = iter.Last()
	} else {
		ok = iter.First()
	}
	for ; ok; ok = step(iter, dir) {
		if err := ctx.Err(); err != nil {
			return err
		}
		cont, err := fn(seqFromDocKey(iter.Key()), iter.Value())
		if err != nil {
			return err
		}
		if !cont {
			return nil
		}
	}
	return iter.Error()
}

func step(iter *pebble.Iterator, dir docstore.Direction) bool {
	if dir == docstore.Descending {
		return iter.Prev()
	}
	return iter.Next()
}
