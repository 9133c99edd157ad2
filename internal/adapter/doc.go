// Package adapter implements docq queues on a docstore.
//
// A queue is one collection. Standard queues live in plain collections and
// delete messages through their delivery ticket. Bounded queues live in
// capped collections pre-filled with handled sentinel documents; sends are
// refused once too few handled documents remain to be recycled, and receivers
// can block on a tail cursor instead of polling.
//
// # Delivery
//
// Every receive path funnels through claim: one atomic find-and-set of the
// handled flag returning the pre-image. The store guarantees a single winner
// per document, so adapters take no locks of their own. A lost race is not an
// error; the document is simply skipped.
//
// # Blocking receive
//
// Await anchors on the second most recent document, tails everything after
// it, and claims unhandled documents as they are appended. When the cursor
// dies (the collection was recycled past it, dropped, or the store closed
// it) Await re-anchors and, if that pass delivered nothing, yields an empty
// batch so consumers get a periodic chance to stop.
package adapter
