package mongo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"

	"github.com/rzbill/docq/internal/docstore"
	"github.com/rzbill/docq/pkg/id"
	logpkg "github.com/rzbill/docq/pkg/log"
)

// DefaultAwait is the tail wait used when TailOptions.Await is zero.
const DefaultAwait = time.Second

const codeNamespaceExists = 48

// Options configures Connect.
type Options struct {
	URI string
	// Database overrides the database named in the URI path.
	Database       string
	ConnectTimeout time.Duration
	Await          time.Duration
	Logger         logpkg.Logger
}

// Store is a docstore backed by one MongoDB database.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	await  time.Duration
	logger logpkg.Logger
	ids    *id.Generator

	mu      sync.Mutex
	inserts map[string]*sync.Mutex
}

var _ docstore.Store = (*Store)(nil)

// DatabaseFromURI returns the database named in the path of a MongoDB URI.
func DatabaseFromURI(uri string) (string, error) {
	cs, err := connstring.ParseAndValidate(uri)
	if err != nil {
		return "", err
	}
	return cs.Database, nil
}

// Connect dials MongoDB and verifies the primary is reachable.
func Connect(ctx context.Context, opts Options) (*Store, error) {
	if opts.URI == "" {
		return nil, errors.New("mongo: URI is required")
	}
	dbName := opts.Database
	if dbName == "" {
		var err error
		if dbName, err = DatabaseFromURI(opts.URI); err != nil {
			return nil, fmt.Errorf("mongo: parse uri: %w", err)
		}
	}
	if dbName == "" {
		return nil, errors.New("mongo: no database in options or URI")
	}

	clientOpts := options.Client().
		ApplyURI(opts.URI).
		SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true})
	if opts.ConnectTimeout > 0 {
		clientOpts.SetConnectTimeout(opts.ConnectTimeout)
		clientOpts.SetServerSelectionTimeout(opts.ConnectTimeout)
	}
	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	await := opts.Await
	if await <= 0 {
		await = DefaultAwait
	}
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewLogger(logpkg.WithOutput(logpkg.NullOutput{}))
	}
	s := &Store{
		client:  client,
		db:      client.Database(dbName),
		await:   await,
		logger:  logger.With(logpkg.Component("docstore.mongo")),
		ids:     id.NewGenerator(),
		inserts: make(map[string]*sync.Mutex),
	}
	s.logger.Info("connected", logpkg.Str("database", dbName))
	return s, nil
}

// CreateCollection implements docstore.Store.
func (s *Store) CreateCollection(ctx context.Context, name string, opts docstore.CollectionOptions) error {
	co := options.CreateCollection()
	if opts.Capped {
		co.SetCapped(true).SetSizeInBytes(opts.SizeBytes)
		if opts.MaxDocuments > 0 {
			co.SetMaxDocuments(opts.MaxDocuments)
		}
	}
	err := s.db.CreateCollection(ctx, name, co)
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) && cmdErr.Code == codeNamespaceExists {
		return docstore.ErrCollectionExists
	}
	return err
}

// DropCollection implements docstore.Store.
func (s *Store) DropCollection(ctx context.Context, name string) (bool, error) {
	names, err := s.db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return false, err
	}
	if len(names) == 0 {
		return false, nil
	}
	if err := s.db.Collection(name).Drop(ctx); err != nil {
		return false, err
	}
	return true, nil
}

type specOptions struct {
	Capped bool  `bson:"capped"`
	Size   int64 `bson:"size"`
	Max    int64 `bson:"max"`
}

// Inspect implements docstore.Store. Validity comes from the server's
// validate command.
func (s *Store) Inspect(ctx context.Context, name string) (docstore.CollectionInfo, error) {
	info := docstore.CollectionInfo{Name: name}
	specs, err := s.db.ListCollectionSpecifications(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return info, err
	}
	if len(specs) == 0 {
		return info, nil
	}
	info.Exists = true
	var so specOptions
	if len(specs[0].Options) > 0 {
		if err := bson.Unmarshal(specs[0].Options, &so); err != nil {
			return info, fmt.Errorf("mongo: collection %s options: %w", name, err)
		}
	}
	info.Capped, info.SizeBytes, info.MaxDocuments = so.Capped, so.Size, so.Max

	var res struct {
		Valid bool `bson:"valid"`
	}
	if err := s.db.RunCommand(ctx, bson.D{{Key: "validate", Value: name}}).Decode(&res); err != nil {
		return info, err
	}
	info.Valid = res.Valid

	n, err := s.db.Collection(name).EstimatedDocumentCount(ctx)
	if err != nil {
		return info, err
	}
	info.Count = n
	return info, nil
}

// insertLock returns the mutex serialising id assignment for name.
func (s *Store) insertLock(name string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	mu, ok := s.inserts[name]
	if !ok {
		mu = &sync.Mutex{}
		s.inserts[name] = mu
	}
	return mu
}

// Collection implements docstore.Store.
func (s *Store) Collection(name string) docstore.Collection {
	return &Collection{store: s, coll: s.db.Collection(name)}
}

// Ping implements docstore.Store.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// Close implements docstore.Store.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
