package docstore

import "github.com/rzbill/docq/pkg/id"

// Filter is the conjunction of its set fields. The zero Filter matches
// every document.
type Filter struct {
	ID      *id.ID
	AfterID *id.ID
	Handled *bool
	Class   string
}

// ByID matches a single id.
func ByID(docID id.ID) Filter { return Filter{ID: &docID} }

// After matches ids strictly greater than docID.
func After(docID id.ID) Filter { return Filter{AfterID: &docID} }

// WithHandled returns a copy of f restricted to the handled value.
func (f Filter) WithHandled(handled bool) Filter {
	f.Handled = &handled
	return f
}

// WithClass returns a copy of f restricted to class (empty means any).
func (f Filter) WithClass(class string) Filter {
	f.Class = class
	return f
}

// Match evaluates f in memory.
func (f Filter) Match(d *Document) bool {
	if f.ID != nil && d.ID != *f.ID {
		return false
	}
	if f.AfterID != nil && d.ID.Compare(*f.AfterID) <= 0 {
		return false
	}
	if f.Handled != nil && d.Handled != *f.Handled {
		return false
	}
	if f.Class != "" && d.Class != f.Class {
		return false
	}
	return true
}
