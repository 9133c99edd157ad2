package log

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func newBufferLogger(level Level) (Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	l := NewLogger(
		WithLevel(level),
		WithFormatter(&TextFormatter{DisableTimestamp: true}),
		WithOutput(NewWriterOutput(buf)),
	)
	return l, buf
}

func TestLevelFiltering(t *testing.T) {
	l, buf := newBufferLogger(WarnLevel)
	l.Info("hidden")
	l.Warn("shown")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info should be filtered: %q", out)
	}
	if !strings.Contains(out, "WARN  shown") {
		t.Fatalf("expected warn line, got %q", out)
	}
}

func TestWithFieldsPropagate(t *testing.T) {
	l, buf := newBufferLogger(DebugLevel)
	child := l.With(Component("adapter"), Queue("orders"))
	child.Info("sent", Int("n", 3))
	out := buf.String()
	for _, want := range []string{"component=adapter", "queue=orders", "n=3"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}
	buf.Reset()
	l.Info("parent")
	if strings.Contains(buf.String(), "queue=orders") {
		t.Fatalf("child fields leaked into parent: %q", buf.String())
	}
}

func TestWithError(t *testing.T) {
	l, buf := newBufferLogger(InfoLevel)
	l.WithError(errors.New("boom")).Error("failed")
	if !strings.Contains(buf.String(), "error=boom") {
		t.Fatalf("expected error field, got %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{"debug": DebugLevel, "INFO": InfoLevel, "warning": WarnLevel, "error": ErrorLevel, "": InfoLevel}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Fatalf("ParseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestApplyConfigRejectsUnknownFormat(t *testing.T) {
	if _, err := ApplyConfig(&Config{Format: "xml"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestRedaction(t *testing.T) {
	buf := &bytes.Buffer{}
	base := NewLogger(WithFormatter(&TextFormatter{DisableTimestamp: true}), WithOutput(NewWriterOutput(buf))).(*BaseLogger)
	base.handler = base.handler.withRedactions([]string{"secret"})
	base.slogLogger = newSlogLogger(base.handler)
	base.Info("login", Str("secret", "hunter2"), Str("user", "ann"))
	out := buf.String()
	if strings.Contains(out, "hunter2") || !strings.Contains(out, "secret=[REDACTED]") {
		t.Fatalf("expected redaction, got %q", out)
	}
}

func TestJSONFormatter(t *testing.T) {
	buf := &bytes.Buffer{}
	l := NewLogger(WithFormatter(&JSONFormatter{}), WithOutput(NewWriterOutput(buf)))
	l.Info("hello", Str("k", "v"))
	if !strings.Contains(buf.String(), `"msg":"hello"`) || !strings.Contains(buf.String(), `"k":"v"`) {
		t.Fatalf("unexpected json: %q", buf.String())
	}
}

func TestSamplerKeepsInitialThenEveryNth(t *testing.T) {
	s := newSampler(2, 3)
	var kept []int
	for i := 0; i < 9; i++ {
		if s.allow(0, "tick") {
			kept = append(kept, i)
		}
	}
	want := []int{0, 1, 2, 5, 8}
	if len(kept) != len(want) {
		t.Fatalf("kept %v, want %v", kept, want)
	}
	for i := range want {
		if kept[i] != want[i] {
			t.Fatalf("kept %v, want %v", kept, want)
		}
	}
	if !s.allow(0, "other") {
		t.Fatalf("distinct messages are sampled independently")
	}
}

func TestContextFieldsAndSharedLevel(t *testing.T) {
	l, buf := newBufferLogger(InfoLevel)
	ctx := ContextWithFields(context.Background(), Str("request", "r1"))
	ctx = ContextWithFields(ctx, Queue("orders"))
	child := l.WithContext(ctx)
	child.Debug("hidden")
	l.SetLevel(DebugLevel)
	child.Debug("visible")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug entry logged before SetLevel: %q", out)
	}
	for _, want := range []string{"DEBUG visible", "request=r1", "queue=orders"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}
}
