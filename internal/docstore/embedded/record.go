package embedded

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"hash/crc32"

	"github.com/rzbill/docq/internal/docstore"
	"github.com/rzbill/docq/pkg/id"
)

// Record encoding: varint headerLen | header | content | crc32c(header|content)
//
// The header is a small JSON object with the envelope fields that are not
// the content; its keys match the MongoDB layout (t, m, h).

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

var errCorrupt = errors.New("embedded: corrupt document record")

type docHeader struct {
	ID       id.ID          `json:"i"`
	Class    string         `json:"t,omitempty"`
	Metadata map[string]any `json:"m,omitempty"`
	Handled  bool           `json:"h"`
}

func encodeRecord(header, payload []byte) []byte {
	out := make([]byte, 0, 10+len(header)+len(payload)+4)
	var tmp [10]byte
	n := binary.PutUvarint(tmp[:], uint64(len(header)))
	out = append(out, tmp[:n]...)
	out = append(out, header...)
	out = append(out, payload...)

	crc := crc32.Update(0, castagnoli, header)
	crc = crc32.Update(crc, castagnoli, payload)
	var crcb [4]byte
	binary.BigEndian.PutUint32(crcb[:], crc)
	return append(out, crcb[:]...)
}

func decodeRecord(b []byte) (header, payload []byte, ok bool) {
	if len(b) < 1+4 {
		return nil, nil, false
	}
	hlen, n := binary.Uvarint(b)
	if n <= 0 {
		return nil, nil, false
	}
	if n+int(hlen)+4 > len(b) {
		return nil, nil, false
	}
	header = b[n : n+int(hlen)]
	payload = b[n+int(hlen) : len(b)-4]
	expect := binary.BigEndian.Uint32(b[len(b)-4:])
	crc := crc32.Update(0, castagnoli, header)
	crc = crc32.Update(crc, castagnoli, payload)
	if crc != expect {
		return nil, nil, false
	}
	return append([]byte(nil), header...), append([]byte(nil), payload...), true
}

// EncodeDocument serializes a document for storage.
func EncodeDocument(d docstore.Document) ([]byte, error) {
	h, err := json.Marshal(docHeader{ID: d.ID, Class: d.Class, Metadata: d.Metadata, Handled: d.Handled})
	if err != nil {
		return nil, err
	}
	return encodeRecord(h, d.Content), nil
}

// DecodeDocument parses a stored record, verifying its checksum.
func DecodeDocument(b []byte) (docstore.Document, error) {
	header, payload, ok := decodeRecord(b)
	if !ok {
		return docstore.Document{}, errCorrupt
	}
	var h docHeader
	if err := json.Unmarshal(header, &h); err != nil {
		return docstore.Document{}, errCorrupt
	}
	var content []byte
	if len(payload) > 0 {
		content = payload
	}
	return docstore.Document{ID: h.ID, Class: h.Class, Content: content, Metadata: h.Metadata, Handled: h.Handled}, nil
}
