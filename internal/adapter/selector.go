package adapter

import (
	"encoding/json"
	"strings"

	"github.com/google/cel-go/cel"

	"github.com/rzbill/docq/internal/message"
)

// Selector is a compiled CEL predicate over a stored message. The expression
// sees:
//
//	class     string            message class tag
//	size      int               content length in bytes
//	text      string            content as a string
//	json      dyn               content parsed as JSON, null when it is not JSON
//	metadata  map(string, dyn)  application metadata
type Selector struct {
	expr string
	prog cel.Program
}

// CompileSelector parses and type-checks expr. An empty expression yields a
// nil Selector, which matches everything.
func CompileSelector(expr string) (*Selector, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("class", cel.StringType),
		cel.Variable("size", cel.IntType),
		cel.Variable("text", cel.StringType),
		cel.Variable("json", cel.DynType),
		cel.Variable("metadata", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, err
	}
	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, iss.Err()
	}
	prog, err := env.Program(ast)
	if err != nil {
		return nil, err
	}
	return &Selector{expr: expr, prog: prog}, nil
}

// String returns the source expression.
func (s *Selector) String() string {
	if s == nil {
		return ""
	}
	return s.expr
}

// Match evaluates the selector against env. Evaluation errors and non-bool
// results count as no match.
func (s *Selector) Match(env message.Envelope) bool {
	if s == nil {
		return true
	}
	var parsed any
	_ = json.Unmarshal(env.Content, &parsed)
	md := map[string]any(env.Metadata)
	if md == nil {
		md = map[string]any{}
	}
	out, _, err := s.prog.Eval(map[string]any{
		"class":    env.Class,
		"size":     int64(len(env.Content)),
		"text":     string(env.Content),
		"json":     parsed,
		"metadata": md,
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}
