// Package id provides the 128-bit, lexicographically sortable identifier used
// as the document id of every queue envelope.
//
// # Format
//
// The ID is 16 bytes big-endian: [8 bytes ms_timestamp][8 bytes sequence].
// Byte-wise comparison preserves generation order, and the 32-character hex
// form (String/Parse) sorts identically, which lets stores that only index
// strings compare ids with a plain range predicate.
//
// # Monotonicity
//
// The Generator ensures per-process monotonicity:
//   - If the system clock regresses, it pins to the last seen millisecond and
//     increments the sequence to avoid going backwards.
//   - If the sequence would overflow within a millisecond, it waits for the
//     next millisecond before emitting the next ID.
//
// Usage
//
//	g := id.NewGenerator()
//	docID := g.Next()
//	s := docID.String()     // hex form stored as the document key
//	back, _ := id.Parse(s)  // back == docID
package id
