// Package pebblestore is the key/value layer under the embedded document
// store: a Pebble database opened with one durability policy, atomic batch
// commits, range deletion for dropping collections, and a metrics hook.
//
//	db, err := pebblestore.Open(pebblestore.Options{
//	    DataDir: dir,
//	    Fsync:   pebblestore.FsyncModeInterval,
//	})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	b := db.NewBatch()
//	defer b.Close()
//	_ = b.Set(key, value, nil)
//	err = db.CommitBatch(ctx, b)
package pebblestore
