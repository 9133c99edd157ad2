// Package log is docq's structured logging facade.
//
// A Logger takes a message plus typed Fields (Str, Int, Int64, Bool, Dur,
// Err, Queue, Component). Entries go through a log/slog handler, which
// applies redaction and sampling, and are then rendered by a Formatter
// (TextFormatter, JSONFormatter) into one or more Outputs. ZapOutput hands
// entries to a go.uber.org/zap logger instead.
//
//	l := log.NewLogger(
//	    log.WithLevel(log.InfoLevel),
//	    log.WithFormatter(&log.TextFormatter{}),
//	    log.WithOutput(log.NewConsoleOutput()),
//	)
//	l = l.With(log.Component("adapter"), log.Queue("orders"))
//	l.Info("queue created", log.Bool("bounded", true))
//
// ApplyConfig builds a logger from a Config (level, text|json|zap format,
// redacted keys, sampling). Child loggers share their parent's level, so
// SetLevel on the root applies everywhere.
//
// RedirectStdLog routes the standard library logger, which Pebble writes
// to, through a Logger.
package log
