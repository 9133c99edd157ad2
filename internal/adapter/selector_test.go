package adapter

import (
	"testing"

	"github.com/rzbill/docq/internal/message"
)

func TestSelector(t *testing.T) {
	env := message.Envelope{
		Class:    "order",
		Content:  []byte(`{"total": 42, "currency": "EUR"}`),
		Metadata: message.Metadata{"region": "eu"},
	}
	cases := []struct {
		expr string
		want bool
	}{
		{"", true},
		{`class == "order"`, true},
		{`class == "invoice"`, false},
		{`size > 10`, true},
		{`json.total > 40.0 && json.currency == "EUR"`, true},
		{`metadata.region == "us"`, false},
		{`"region" in metadata && metadata["region"] == "eu"`, true},
		{`text.contains("EUR")`, true},
		{`json.missing == 1`, false},
	}
	for _, tc := range cases {
		s, err := CompileSelector(tc.expr)
		if err != nil {
			t.Fatalf("compile %q: %v", tc.expr, err)
		}
		if got := s.Match(env); got != tc.want {
			t.Fatalf("%q: got %v want %v", tc.expr, got, tc.want)
		}
	}
}

func TestSelectorCompileErrors(t *testing.T) {
	for _, expr := range []string{`class ==`, `unknown_var == 1`, `size == "x"`} {
		if _, err := CompileSelector(expr); err == nil {
			t.Fatalf("expected compile error for %q", expr)
		}
	}
}

func TestReceiveParamsAdmits(t *testing.T) {
	sel, _ := CompileSelector(`size < 5`)
	p := ReceiveParams{ClassFilter: "a", Selector: sel}
	if !p.admits(message.Envelope{Class: "a", Content: []byte("hi")}) {
		t.Fatalf("expected admit")
	}
	if p.admits(message.Envelope{Class: "b", Content: []byte("hi")}) {
		t.Fatalf("class filter ignored")
	}
	if p.admits(message.Envelope{Class: "a", Content: []byte("too long")}) {
		t.Fatalf("selector ignored")
	}
}
