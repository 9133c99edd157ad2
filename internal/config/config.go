package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	mongostore "github.com/rzbill/docq/internal/docstore/mongo"
	"github.com/rzbill/docq/internal/errdefs"
	pebblestore "github.com/rzbill/docq/internal/storage/pebble"
)

// Backend names.
const (
	BackendEmbedded = "embedded"
	BackendMongo    = "mongo"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	// Backend selects the document store: "embedded" or "mongo".
	Backend         string `json:"backend" yaml:"backend"`
	DataDir         string `json:"dataDir" yaml:"dataDir"`
	Fsync           string `json:"fsync" yaml:"fsync"`
	FsyncIntervalMs int    `json:"fsyncIntervalMs" yaml:"fsyncIntervalMs"`
	// TailAwaitMs bounds each blocking wait of a tail cursor.
	TailAwaitMs int         `json:"tailAwaitMs" yaml:"tailAwaitMs"`
	Mongo       MongoConfig `json:"mongo" yaml:"mongo"`
	Queue       QueueConfig `json:"queue" yaml:"queue"`
	Log         LogConfig   `json:"log" yaml:"log"`
}

// MongoConfig holds MongoDB connection settings.
type MongoConfig struct {
	URI string `json:"uri" yaml:"uri"`
	// Database defaults to the database named in the URI path.
	Database         string `json:"database" yaml:"database"`
	ConnectTimeoutMs int    `json:"connectTimeoutMs" yaml:"connectTimeoutMs"`
}

// QueueConfig holds the defaults applied to queues opened by the CLI.
type QueueConfig struct {
	CapacityBytes    int64 `json:"capacityBytes" yaml:"capacityBytes"`
	MaxDocumentCount int64 `json:"maxDocumentCount" yaml:"maxDocumentCount"`
	// AdmissionThreshold of 0 disables admission control.
	AdmissionThreshold int64  `json:"admissionThreshold" yaml:"admissionThreshold"`
	MetadataKey        string `json:"metadataKey" yaml:"metadataKey"`
}

// LogConfig selects the log level and format.
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		Backend:         BackendEmbedded,
		DataDir:         DefaultDataDir(),
		Fsync:           "interval",
		FsyncIntervalMs: 5,
		TailAwaitMs:     1000,
		Mongo: MongoConfig{
			ConnectTimeoutMs: 10000,
		},
		Queue: QueueConfig{
			CapacityBytes:      1000000,
			MaxDocumentCount:   100,
			AdmissionThreshold: 10,
			MetadataKey:        "__queue",
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads configuration from a JSON or YAML file (by extension) over the
// defaults. If path is empty, returns defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config %s: %w", path, err)
		}
	}
	return cfg, nil
}

// Validate checks cfg and fills the Mongo database from the URI when it is
// not set. Failures are ErrConfiguration errors.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendEmbedded:
		if c.DataDir == "" {
			return errdefs.Configuration("config", "dataDir is required for the embedded backend")
		}
	case BackendMongo:
		if c.Mongo.URI == "" {
			return errdefs.Configuration("config", "mongo.uri is required for the mongo backend")
		}
		if c.Mongo.Database == "" {
			db, err := mongostore.DatabaseFromURI(c.Mongo.URI)
			if err != nil {
				return errdefs.Configuration("config", "mongo.uri: "+err.Error())
			}
			if db == "" {
				return errdefs.Configuration("config", "mongo.database is required when the URI names no database")
			}
			c.Mongo.Database = db
		}
	default:
		return errdefs.Configuration("config", fmt.Sprintf("unknown backend %q", c.Backend))
	}
	if _, err := parseFsync(c.Fsync); err != nil {
		return errdefs.Configuration("config", err.Error())
	}
	if c.Queue.CapacityBytes <= 0 || c.Queue.MaxDocumentCount <= 0 {
		return errdefs.Configuration("config", "queue capacityBytes and maxDocumentCount must be positive")
	}
	if c.Queue.AdmissionThreshold < 0 {
		return errdefs.Configuration("config", "queue admissionThreshold must not be negative")
	}
	if c.Queue.MetadataKey == "" {
		return errdefs.Configuration("config", "queue metadataKey is required")
	}
	return nil
}

// FsyncMode maps the Fsync setting onto the storage layer's modes.
func (c Config) FsyncMode() pebblestore.FsyncMode {
	m, _ := parseFsync(c.Fsync)
	return m
}

// FsyncInterval returns FsyncIntervalMs as a duration.
func (c Config) FsyncInterval() time.Duration {
	return time.Duration(c.FsyncIntervalMs) * time.Millisecond
}

// TailAwait returns TailAwaitMs as a duration.
func (c Config) TailAwait() time.Duration {
	return time.Duration(c.TailAwaitMs) * time.Millisecond
}

// ConnectTimeout returns Mongo.ConnectTimeoutMs as a duration.
func (c Config) ConnectTimeout() time.Duration {
	return time.Duration(c.Mongo.ConnectTimeoutMs) * time.Millisecond
}

func parseFsync(s string) (pebblestore.FsyncMode, error) {
	switch strings.ToLower(s) {
	case "", "default":
		return pebblestore.FsyncModeUnspecified, nil
	case "always":
		return pebblestore.FsyncModeAlways, nil
	case "interval":
		return pebblestore.FsyncModeInterval, nil
	case "never":
		return pebblestore.FsyncModeNever, nil
	default:
		return pebblestore.FsyncModeUnspecified, fmt.Errorf("unknown fsync mode %q", s)
	}
}
