// Package embedded implements docstore on a local Pebble database.
//
// Every collection keeps its documents under a natural-order sequence key and
// an id index pointing at that sequence. Capped collections evict from the
// head on insert, and tail cursors wake on a per-collection notify channel
// that is closed and replaced on every insert.
//
// The store is safe for concurrent use by one process. It is what tests and
// single-node deployments run against; shared deployments use the mongo
// backend.
package embedded
