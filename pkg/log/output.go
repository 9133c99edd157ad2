package log

import (
	"io"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ConsoleOutput writes formatted entries to a writer (stderr by default).
type ConsoleOutput struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsoleOutput writes to stderr.
func NewConsoleOutput() *ConsoleOutput { return &ConsoleOutput{w: os.Stderr} }

// NewWriterOutput writes to w.
func NewWriterOutput(w io.Writer) *ConsoleOutput { return &ConsoleOutput{w: w} }

// Write implements Output.
func (o *ConsoleOutput) Write(_ *Entry, formatted []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	w := o.w
	if w == nil {
		w = os.Stderr
	}
	_, err := w.Write(formatted)
	return err
}

// Close implements Output.
func (o *ConsoleOutput) Close() error { return nil }

// NullOutput discards everything.
type NullOutput struct{}

func (NullOutput) Write(*Entry, []byte) error { return nil }
func (NullOutput) Close() error               { return nil }

// ZapOutput hands entries to a zap logger, ignoring the facade's formatter.
// It lets docq share sinks, sampling and encoders with applications already
// standardised on zap.
type ZapOutput struct {
	z *zap.Logger
}

// NewZapOutput wraps z. A nil z falls back to zap's production config.
func NewZapOutput(z *zap.Logger) (*ZapOutput, error) {
	if z == nil {
		var err error
		z, err = zap.NewProduction(zap.AddCallerSkip(1))
		if err != nil {
			return nil, err
		}
	}
	return &ZapOutput{z: z}, nil
}

// Write implements Output.
func (o *ZapOutput) Write(entry *Entry, _ []byte) error {
	ce := o.z.Check(toZapLevel(entry.Level), entry.Message)
	if ce == nil {
		return nil
	}
	fields := make([]zap.Field, 0, len(entry.Fields)+1)
	for k, v := range entry.Fields {
		fields = append(fields, zap.Any(k, v))
	}
	if entry.Error != nil {
		fields = append(fields, zap.Error(entry.Error))
	}
	ce.Write(fields...)
	return nil
}

// Close flushes zap buffers.
func (o *ZapOutput) Close() error {
	_ = o.z.Sync()
	return nil
}

func toZapLevel(level Level) zapcore.Level {
	switch level {
	case DebugLevel:
		return zapcore.DebugLevel
	case InfoLevel:
		return zapcore.InfoLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	default:
		// Fatal is handled by the facade; zap must not exit on its own.
		return zapcore.ErrorLevel
	}
}
