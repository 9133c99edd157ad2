package pebblestore

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/pebble"
)

// DefaultFsyncInterval is the group-commit window when none is configured.
const DefaultFsyncInterval = 5 * time.Millisecond

// ErrClosed is returned by operations on a closed DB.
var ErrClosed = errors.New("pebble: db closed")

// FsyncMode selects when committed batches reach stable storage.
type FsyncMode int

const (
	// FsyncModeUnspecified behaves like FsyncModeInterval with the default window.
	FsyncModeUnspecified FsyncMode = iota
	// FsyncModeAlways syncs the WAL on every commit.
	FsyncModeAlways
	// FsyncModeInterval lets Pebble coalesce WAL syncs within FsyncInterval.
	FsyncModeInterval
	// FsyncModeNever leaves syncing entirely to Pebble.
	FsyncModeNever
)

// Options configures Open.
type Options struct {
	DataDir       string
	Fsync         FsyncMode
	FsyncInterval time.Duration
	// PebbleOptions is passed through to Pebble; nil uses Pebble's defaults.
	PebbleOptions *pebble.Options
	// Metrics observes reads and commits. Optional.
	Metrics MetricsHook
}

// MetricsHook receives storage observations.
type MetricsHook interface {
	// ObserveRead is called after a point read that found a value.
	ObserveRead(elapsed time.Duration, bytes int)
	// ObserveCommit is called after every batch commit, successful or not.
	ObserveCommit(elapsed time.Duration, ops, bytes int)
}

type noopMetrics struct{}

func (noopMetrics) ObserveRead(time.Duration, int)        {}
func (noopMetrics) ObserveCommit(time.Duration, int, int) {}

// DB is a Pebble database with a fixed durability policy.
type DB struct {
	inner   *pebble.DB
	sync    *pebble.WriteOptions
	metrics MetricsHook
	closed  atomic.Bool
}

// Open creates or opens the database in opts.DataDir.
func Open(opts Options) (*DB, error) {
	if opts.DataDir == "" {
		return nil, errors.New("pebble: data dir is required")
	}
	po := opts.PebbleOptions
	if po == nil {
		po = &pebble.Options{}
	}
	if window := walSyncWindow(opts); window > 0 {
		po.WALMinSyncInterval = func() time.Duration { return window }
	}
	inner, err := pebble.Open(opts.DataDir, po)
	if err != nil {
		return nil, err
	}
	db := &DB{inner: inner, sync: pebble.NoSync, metrics: opts.Metrics}
	if opts.Fsync == FsyncModeAlways {
		db.sync = pebble.Sync
	}
	if db.metrics == nil {
		db.metrics = noopMetrics{}
	}
	return db, nil
}

// walSyncWindow is the group-commit window for opts; zero means none.
func walSyncWindow(opts Options) time.Duration {
	switch opts.Fsync {
	case FsyncModeAlways, FsyncModeNever:
		return 0
	case FsyncModeInterval:
		if opts.FsyncInterval > 0 {
			return opts.FsyncInterval
		}
	}
	return DefaultFsyncInterval
}

// Close closes the database. Further calls are no-ops.
func (db *DB) Close() error {
	if db == nil || !db.closed.CompareAndSwap(false, true) {
		return nil
	}
	return db.inner.Close()
}

// NewBatch returns an empty write batch. Callers Close it.
func (db *DB) NewBatch() *pebble.Batch {
	return db.inner.NewBatch()
}

// CommitBatch applies b atomically under the configured fsync policy.
func (db *DB) CommitBatch(ctx context.Context, b *pebble.Batch) error {
	if b == nil {
		return errors.New("pebble: nil batch")
	}
	if db.closed.Load() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	ops, size := int(b.Count()), b.Len()
	start := time.Now()
	err := b.Commit(db.sync)
	db.metrics.ObserveCommit(time.Since(start), ops, size)
	return err
}

// Get returns a copy of the value stored at key. A missing key yields an
// error for which IsNotFound is true.
func (db *DB) Get(key []byte) ([]byte, error) {
	if db.closed.Load() {
		return nil, ErrClosed
	}
	start := time.Now()
	val, closer, err := db.inner.Get(key)
	if err != nil {
		return nil, err
	}
	out := append([]byte(nil), val...)
	_ = closer.Close()
	db.metrics.ObserveRead(time.Since(start), len(out))
	return out, nil
}

// NewIter opens an iterator. Callers Close it.
func (db *DB) NewIter(opts *pebble.IterOptions) (*pebble.Iterator, error) {
	if db.closed.Load() {
		return nil, ErrClosed
	}
	return db.inner.NewIter(opts)
}

// DeleteRange removes every key in [start, end) in one commit.
func (db *DB) DeleteRange(ctx context.Context, start, end []byte) error {
	b := db.inner.NewBatch()
	defer b.Close()
	if err := b.DeleteRange(start, end, nil); err != nil {
		return err
	}
	return db.CommitBatch(ctx, b)
}

// Compact compacts [start, end), reclaiming space left by DeleteRange.
func (db *DB) Compact(start, end []byte) error {
	if db.closed.Load() {
		return ErrClosed
	}
	return db.inner.Compact(start, end, true)
}

// IsNotFound reports whether err is Pebble's not-found error.
func IsNotFound(err error) bool { return errors.Is(err, pebble.ErrNotFound) }
