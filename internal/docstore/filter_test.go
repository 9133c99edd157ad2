package docstore

import (
	"testing"

	"github.com/rzbill/docq/pkg/id"
)

func TestFilterMatch(t *testing.T) {
	g := id.NewGenerator()
	a, b := g.Next(), g.Next()
	doc := &Document{ID: b, Class: "order", Handled: false}

	tests := []struct {
		name string
		f    Filter
		want bool
	}{
		{"zero matches all", Filter{}, true},
		{"by id", ByID(b), true},
		{"by other id", ByID(a), false},
		{"after smaller", After(a), true},
		{"after self", After(b), false},
		{"unhandled", Filter{}.WithHandled(false), true},
		{"handled", Filter{}.WithHandled(true), false},
		{"class", Filter{}.WithClass("order"), true},
		{"other class", Filter{}.WithClass("invoice"), false},
		{"conjunction", ByID(b).WithHandled(false).WithClass("order"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.f.Match(doc); got != tt.want {
				t.Errorf("Match = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWithHandledDoesNotAlias(t *testing.T) {
	base := Filter{}
	unhandled := base.WithHandled(false)
	handled := base.WithHandled(true)
	if *unhandled.Handled || !*handled.Handled || base.Handled != nil {
		t.Fatalf("filters alias each other")
	}
}
