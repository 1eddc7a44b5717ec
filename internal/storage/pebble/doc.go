// Package pebblestore provides a thin wrapper around Pebble with an fsync
// policy, snapshots, batches and prefix scans. It backs the tub index cache.
//
// Usage:
//
//	db, err := pebblestore.Open(pebblestore.Options{
//	    DataDir: "./data/.index",
//	    Fsync:   pebblestore.FsyncModeNever,
//	})
//	if err != nil { /* handle */ }
//	defer db.Close()
//
//	// Atomic updates with batches
//	b := db.NewBatch()
//	_ = b.Set([]byte("tub/a/r/1"), []byte("v"), nil)
//	_ = db.CommitBatch(context.Background(), b)
//	b.Close()
//
//	// Everything under one prefix
//	_ = db.ScanPrefix([]byte("tub/a/"), func(k, v []byte) error { return nil })
//	_ = db.DeletePrefix(context.Background(), []byte("tub/a/"))
package pebblestore
