package queuecmd

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"unicode/utf8"

	"github.com/rzbill/docq/internal/adapter"
	"github.com/rzbill/docq/internal/message"
)

// decodedMessage returns a map with id, class, metadata and one of
// payload_json, payload_text or payload_b64. The delivery ticket is reported
// as id and left out of metadata.
func decodedMessage(q adapter.Queue, m *message.Message) map[string]any {
	out := map[string]any{"class": m.ClassTag()}
	if t, ok := m.Ticket(q.Options.MetadataKey); ok {
		out["id"] = t.MessageID.String()
	}
	md := m.Metadata.Clone()
	delete(md, q.Options.MetadataKey)
	if len(md) > 0 {
		out["metadata"] = md
	}
	payload := m.Content
	if len(payload) > 0 && (payload[0] == '{' || payload[0] == '[') {
		var v any
		if json.Unmarshal(payload, &v) == nil {
			out["payload_json"] = v
			return out
		}
	}
	if utf8.Valid(payload) {
		out["payload_text"] = string(payload)
		return out
	}
	out["payload_b64"] = base64.StdEncoding.EncodeToString(payload)
	return out
}

func printMessage(w io.Writer, q adapter.Queue, m *message.Message) error {
	return writeJSON(w, decodedMessage(q, m))
}

func writeJSON(w io.Writer, v any) error {
	return json.NewEncoder(w).Encode(v)
}
