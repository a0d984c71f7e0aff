// Package foundationdb implements the client-side read path of a
// distributed transactional key-value store: read-version pinning, snapshot
// isolation, key-selector resolution, conflict-range accumulation and
// chunked range streaming.
//
// A Database pairs a versioned store with a version source and hands out
// read transactions:
//
//	db, store := foundationdb.NewMemoryDatabase()
//	store.Apply(foundationdb.KeyValue{Key: []byte("a"), Value: []byte("1")})
//
//	rtx := db.ReadTransaction()
//	v, err := rtx.Get(ctx, []byte("a"))
//
// All reads issued through one transaction observe the same database
// version. Reads register conflict ranges for the commit path unless they
// go through the transaction's Snapshot view.
package foundationdb
