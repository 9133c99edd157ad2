// Package mongo implements docstore on a MongoDB database.
//
// Documents use short field names: _id (the hex form of the document id, so
// string order is id order), t (class), c (content), m (metadata) and h
// (handled). Claims are a single findAndModify sorted by $natural that returns
// the pre-image; tails are TailableAwait cursors on capped collections.
package mongo
