package runtime

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rzbill/docq/internal/adapter"
	cfgpkg "github.com/rzbill/docq/internal/config"
	"github.com/rzbill/docq/internal/docstore"
	"github.com/rzbill/docq/internal/docstore/embedded"
	mongostore "github.com/rzbill/docq/internal/docstore/mongo"
	"github.com/rzbill/docq/internal/errdefs"
	"github.com/rzbill/docq/internal/message"
	"github.com/rzbill/docq/internal/metrics"
	logpkg "github.com/rzbill/docq/pkg/log"
)

// Options for building the Runtime.
type Options struct {
	Config cfgpkg.Config
	Logger logpkg.Logger
	// Registry receives the metrics collectors. Nil uses a private registry.
	Registry *prometheus.Registry
	// Classes decodes message classes for sets built by Queue. Nil decodes
	// every class as a raw message.
	Classes *message.Registry
}

// Runtime owns the configured document store and the adapters built on it.
type Runtime struct {
	config  cfgpkg.Config
	logger  logpkg.Logger
	metrics *metrics.QueueMetrics
	classes *message.Registry

	mu       sync.RWMutex
	store    docstore.Store
	standard *adapter.Standard
	bounded  *adapter.Bounded
}

// Open validates the configuration, opens the selected backend and returns a
// Runtime. A backend that cannot be reached is an ErrConnection error.
func Open(ctx context.Context, opts Options) (*Runtime, error) {
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewLogger(logpkg.WithOutput(logpkg.NullOutput{}))
	}
	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	qm := metrics.NewQueueMetrics(reg)

	var (
		store docstore.Store
		err   error
	)
	switch cfg.Backend {
	case cfgpkg.BackendMongo:
		dialCtx := ctx
		if timeout := cfg.ConnectTimeout(); timeout > 0 {
			var cancel context.CancelFunc
			dialCtx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		store, err = mongostore.Connect(dialCtx, mongostore.Options{
			URI:            cfg.Mongo.URI,
			Database:       cfg.Mongo.Database,
			ConnectTimeout: cfg.ConnectTimeout(),
			Await:          cfg.TailAwait(),
			Logger:         logger,
		})
	default:
		store, err = embedded.Open(embedded.Options{
			DataDir:       cfg.DataDir,
			Fsync:         cfg.FsyncMode(),
			FsyncInterval: cfg.FsyncInterval(),
			Metrics:       metrics.NewStorageMetrics(reg),
			Await:         cfg.TailAwait(),
			Logger:        logger,
		})
	}
	if err != nil {
		return nil, errdefs.New("open", "", errdefs.ErrConnection, err)
	}

	adapterOpts := []adapter.Option{adapter.WithLogger(logger), adapter.WithObserver(qm)}
	rt := &Runtime{
		config:   cfg,
		logger:   logger.WithComponent("runtime"),
		metrics:  qm,
		classes:  opts.Classes,
		store:    store,
		standard: adapter.NewStandard(store, adapterOpts...),
		bounded:  adapter.NewBounded(store, adapterOpts...),
	}
	rt.logger.Info("runtime opened", logpkg.Str("backend", cfg.Backend))
	return rt, nil
}

// Close releases the store. Adapters obtained afterwards fail with
// ErrConnection, and so do calls through adapters obtained before.
func (r *Runtime) Close(ctx context.Context) error {
	r.mu.Lock()
	store := r.store
	r.store = nil
	r.mu.Unlock()
	if store == nil {
		return nil
	}
	return store.Close(ctx)
}

// CheckHealth pings the store.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	r.mu.RLock()
	store := r.store
	r.mu.RUnlock()
	if store == nil {
		return errdefs.New("health", "", errdefs.ErrConnection, nil)
	}
	if err := store.Ping(ctx); err != nil {
		return errdefs.New("health", "", errdefs.ErrConnection, err)
	}
	return nil
}

// Standard returns the standard queue adapter.
func (r *Runtime) Standard() (*adapter.Standard, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.store == nil {
		return nil, errdefs.New("standard", "", errdefs.ErrConnection, nil)
	}
	return r.standard, nil
}

// Bounded returns the bounded queue adapter.
func (r *Runtime) Bounded() (*adapter.Bounded, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.store == nil {
		return nil, errdefs.New("bounded", "", errdefs.ErrConnection, nil)
	}
	return r.bounded, nil
}

// Adapter returns the bounded adapter when bounded is true, else the
// standard one.
func (r *Runtime) Adapter(bounded bool) (adapter.Adapter, error) {
	if bounded {
		return r.Bounded()
	}
	return r.Standard()
}

// Queue returns a queue named name carrying the configured queue defaults.
func (r *Runtime) Queue(name string) adapter.Queue {
	q := adapter.NewQueue(name)
	q.Options.CapacityBytes = r.config.Queue.CapacityBytes
	q.Options.MaxDocumentCount = r.config.Queue.MaxDocumentCount
	q.Options.AdmissionThreshold = r.config.Queue.AdmissionThreshold
	q.Options.MetadataKey = r.config.Queue.MetadataKey
	q.Options.NewSet = message.NewListSetFactory(r.classes)
	return q
}

// Store exposes the underlying store (internal use only). It is nil after
// Close.
func (r *Runtime) Store() docstore.Store {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.store
}

// Metrics returns the queue metrics.
func (r *Runtime) Metrics() *metrics.QueueMetrics { return r.metrics }

// Logger returns the runtime logger.
func (r *Runtime) Logger() logpkg.Logger { return r.logger }

// Config returns the runtime configuration.
func (r *Runtime) Config() cfgpkg.Config { return r.config }
