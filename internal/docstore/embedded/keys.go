package embedded

import (
	"encoding/binary"

	"github.com/rzbill/docq/pkg/id"
)

// Keyspace helpers for Pebble keys.
//
// Layout (byte-wise, lexicographically sortable):
// - c/{name}/m             collection metadata (JSON)
// - c/{name}/s             collection state: lastSeq | firstSeq | count | bytes
// - c/{name}/n/{seq_be8}   documents in natural (insertion) order
// - c/{name}/i/{id_16}     id index -> seq_be8

var (
	collPrefix  = []byte("c/")
	metaSuffix  = []byte("/m")
	stateSuffix = []byte("/s")
	natSeg      = []byte("/n/")
	idxSeg      = []byte("/i/")
)

func appendBE8(dst []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(dst, b[:]...)
}

func collKey(name string, suffix []byte, extra int) []byte {
	k := make([]byte, 0, len(collPrefix)+len(name)+len(suffix)+extra)
	k = append(k, collPrefix...)
	k = append(k, name...)
	k = append(k, suffix...)
	return k
}

// KeyMeta builds the collection metadata key.
func KeyMeta(name string) []byte { return collKey(name, metaSuffix, 0) }

// KeyState builds the collection counters key.
func KeyState(name string) []byte { return collKey(name, stateSuffix, 0) }

// KeyDoc builds the natural-order document key.
func KeyDoc(name string, seq uint64) []byte {
	return appendBE8(collKey(name, natSeg, 8), seq)
}

// KeyIndex builds the id index key.
func KeyIndex(name string, docID id.ID) []byte {
	return append(collKey(name, idxSeg, 16), docID[:]...)
}

// docBounds returns [low, high) covering every document key of name.
func docBounds(name string) ([]byte, []byte) {
	return KeyDoc(name, 0), append(KeyDoc(name, ^uint64(0)), 0x00)
}

// collBounds returns [low, high) covering every key of name.
func collBounds(name string) ([]byte, []byte) {
	low := collKey(name, []byte{'/'}, 0)
	high := collKey(name, []byte{'/' + 1}, 0)
	return low, high
}

// seqFromDocKey extracts the trailing sequence of a document key.
func seqFromDocKey(k []byte) uint64 {
	return binary.BigEndian.Uint64(k[len(k)-8:])
}
