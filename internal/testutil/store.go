// Package testutil provides store builders for tests.
package testutil

import (
	"testing"

	"github.com/cockroachdb/pebble/vfs"

	"github.com/MikeMcMahon/foundationdb/internal/backend"
	"github.com/MikeMcMahon/foundationdb/internal/backend/memorykv"
	"github.com/MikeMcMahon/foundationdb/internal/backend/pebblekv"
	"github.com/MikeMcMahon/foundationdb/internal/testutil/assert"
)

// KV builds a pair from strings.
func KV(k, v string) backend.KeyValue {
	return backend.KeyValue{Key: []byte(k), Value: []byte(v)}
}

// NewMemoryStore creates an in-memory store, committing each given pair at
// its own version.
func NewMemoryStore(t testing.TB, kvs ...backend.KeyValue) *memorykv.Store {
	t.Helper()

	store := memorykv.NewStore()
	for _, kv := range kvs {
		store.Apply(kv)
	}
	return store
}

// NewPebbleStore creates a pebble store on an in-memory filesystem,
// committing each given pair at its own version.
func NewPebbleStore(t testing.TB, kvs ...backend.KeyValue) *pebblekv.Store {
	t.Helper()

	store, err := pebblekv.Open("", &pebblekv.Options{FS: vfs.NewMem()})
	assert.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, store.Close())
	})

	for _, kv := range kvs {
		_, err := store.Apply(kv)
		assert.NoError(t, err)
	}
	return store
}
