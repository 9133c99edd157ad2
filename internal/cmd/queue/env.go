package queuecmd

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/rzbill/docq/internal/adapter"
	cfgpkg "github.com/rzbill/docq/internal/config"
	"github.com/rzbill/docq/internal/runtime"
	logpkg "github.com/rzbill/docq/pkg/log"
)

// addGlobalFlags registers the configuration flags shared by every command.
func addGlobalFlags(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.String("config", "", "Config file (.json, .yaml or .yml)")
	f.String("env-file", ".env", "Dotenv file loaded before DOCQ_* variables are read (missing files are ignored)")
	f.String("backend", "", "Store backend: embedded|mongo")
	f.String("data-dir", "", "Data directory for the embedded backend")
	f.String("mongo-uri", "", "MongoDB connection URI for the mongo backend")
	f.String("mongo-database", "", "MongoDB database (defaults to the URI path)")
	f.String("log-level", "", "Log level: debug|info|warn|error")
	f.String("log-format", "", "Log format: text|json|zap")
}

// loadConfig resolves the configuration for cmd: file, dotenv, DOCQ_* env,
// then flags.
func loadConfig(cmd *cobra.Command) (cfgpkg.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	envFile, _ := cmd.Flags().GetString("env-file")
	if envFile != "" {
		if err := cfgpkg.LoadDotEnv(envFile); err != nil {
			return cfgpkg.Config{}, err
		}
	}
	cfg, err := cfgpkg.Load(path)
	if err != nil {
		return cfgpkg.Config{}, err
	}
	cfgpkg.FromEnv(&cfg)

	overlay := func(name string, dst *string) {
		if v, _ := cmd.Flags().GetString(name); v != "" {
			*dst = v
		}
	}
	overlay("backend", &cfg.Backend)
	overlay("data-dir", &cfg.DataDir)
	overlay("mongo-uri", &cfg.Mongo.URI)
	overlay("mongo-database", &cfg.Mongo.Database)
	overlay("log-level", &cfg.Log.Level)
	overlay("log-format", &cfg.Log.Format)
	return cfg, nil
}

// newLogger builds the process logger from cfg. CLI output goes to stdout,
// logs to stderr.
func newLogger(cfg cfgpkg.Config, stderr io.Writer) logpkg.Logger {
	logger, err := logpkg.ApplyConfig(&logpkg.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		lvl, perr := logpkg.ParseLevel(cfg.Log.Level)
		if perr != nil {
			lvl = logpkg.InfoLevel
		}
		logger = logpkg.NewLogger(
			logpkg.WithLevel(lvl),
			logpkg.WithFormatter(&logpkg.TextFormatter{}),
			logpkg.WithOutput(logpkg.NewWriterOutput(stderr)),
		)
	}
	return logger
}

// withRuntime opens a runtime for the duration of fn.
func withRuntime(cmd *cobra.Command, fn func(ctx context.Context, rt *runtime.Runtime) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg, cmd.ErrOrStderr())
	logpkg.RedirectStdLog(logger)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	rt, err := runtime.Open(ctx, runtime.Options{Config: cfg, Logger: logger})
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close(context.Background()) }()
	return fn(ctx, rt)
}

// withAdapter opens a runtime and hands fn the adapter selected by --bounded
// together with the named queue.
func withAdapter(cmd *cobra.Command, fn func(ctx context.Context, a adapter.Adapter, q adapter.Queue) error) error {
	name, _ := cmd.Flags().GetString("name")
	bounded, _ := cmd.Flags().GetBool("bounded")
	return withRuntime(cmd, func(ctx context.Context, rt *runtime.Runtime) error {
		a, err := rt.Adapter(bounded)
		if err != nil {
			return err
		}
		return fn(ctx, a, rt.Queue(name))
	})
}
