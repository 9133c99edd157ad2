// Package envelope converts between queue messages and stored documents.
package envelope

import (
	"encoding/json"
	"fmt"

	"github.com/rzbill/docq/internal/docstore"
	"github.com/rzbill/docq/internal/message"
)

// Encode builds the stored form of m. The id is left zero; the store assigns
// it at insert time.
//
// Metadata is rewritten, in the document and in m, to its canonical form (see
// Canonical), which is the form every backend returns on receive. The two maps
// share nothing, so later changes to m do not leak into the document.
func Encode(m *message.Message) (docstore.Document, error) {
	d := docstore.Document{Class: m.ClassTag(), Content: m.Content}
	md, err := Canonical(m.Metadata)
	if err != nil || md == nil {
		return d, err
	}
	d.Metadata = md
	// md holds only JSON values, so the second pass cannot fail.
	m.Metadata, _ = Canonical(md)
	return d, nil
}

// Canonical returns md in the JSON data model: numbers are float64, lists are
// []any, objects are map[string]any and byte slices are base64 strings. An
// empty map yields nil.
func Canonical(md map[string]any) (map[string]any, error) {
	if len(md) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(md)
	if err != nil {
		return nil, fmt.Errorf("envelope: metadata: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("envelope: metadata: %w", err)
	}
	return out, nil
}

// Sentinel builds a filler document: already handled, with no payload.
func Sentinel() docstore.Document {
	return docstore.Document{Handled: true}
}

// Decode extracts the consumer-visible envelope of d. The returned metadata
// is a fresh map the caller may extend.
func Decode(d docstore.Document) message.Envelope {
	class := d.Class
	if class == "" {
		class = message.DefaultClass
	}
	return message.Envelope{
		Class:    class,
		Content:  d.Content,
		Metadata: message.Metadata(d.Metadata).Clone(),
	}
}

// IsSentinel reports whether d is a filler document.
func IsSentinel(d docstore.Document) bool {
	return d.Handled && d.Class == "" && len(d.Content) == 0 && len(d.Metadata) == 0
}
