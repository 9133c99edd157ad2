package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads KEY=VALUE files into the process environment without
// overriding variables that are already set. Missing files are skipped; with
// no paths it looks for ./.env.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

// FromEnv overlays DOCQ_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	setString(&cfg.Backend, "DOCQ_BACKEND")
	setString(&cfg.DataDir, "DOCQ_DATA_DIR")
	setString(&cfg.Fsync, "DOCQ_FSYNC")
	setInt(&cfg.FsyncIntervalMs, "DOCQ_FSYNC_INTERVAL_MS")
	setInt(&cfg.TailAwaitMs, "DOCQ_TAIL_AWAIT_MS")

	setString(&cfg.Mongo.URI, "DOCQ_MONGO_URI")
	setString(&cfg.Mongo.Database, "DOCQ_MONGO_DATABASE")
	setInt(&cfg.Mongo.ConnectTimeoutMs, "DOCQ_MONGO_CONNECT_TIMEOUT_MS")

	setInt64(&cfg.Queue.CapacityBytes, "DOCQ_QUEUE_CAPACITY_BYTES")
	setInt64(&cfg.Queue.MaxDocumentCount, "DOCQ_QUEUE_MAX_DOCUMENTS")
	setInt64(&cfg.Queue.AdmissionThreshold, "DOCQ_QUEUE_ADMISSION_THRESHOLD")
	setString(&cfg.Queue.MetadataKey, "DOCQ_QUEUE_METADATA_KEY")

	setString(&cfg.Log.Level, "DOCQ_LOG_LEVEL")
	setString(&cfg.Log.Format, "DOCQ_LOG_FORMAT")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}
