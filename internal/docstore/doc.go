// Package docstore defines the document-store surface docq queues are built on.
//
// A Store owns named collections. A collection is either plain or capped
// (fixed byte size and document count, oldest evicted first). Documents are
// ordered by insertion ("natural order") and carry the queue envelope fields
// directly, so adapters never deal with a store-specific document model.
//
// Two implementations exist: embedded (Pebble on local disk, single process)
// and mongo (a MongoDB database, shared by any number of processes).
package docstore
