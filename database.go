package foundationdb

import (
	"context"

	"golang.org/x/sync/semaphore"

	"github.com/MikeMcMahon/foundationdb/internal/backend"
	"github.com/MikeMcMahon/foundationdb/internal/backend/memorykv"
	"github.com/MikeMcMahon/foundationdb/internal/backend/pebblekv"
	"github.com/MikeMcMahon/foundationdb/internal/conflict"
	"github.com/MikeMcMahon/foundationdb/internal/version"
)

const defaultMaxConcurrentFetches = 16

// DatabaseOptions configures a Database.
type DatabaseOptions struct {
	// MaxConcurrentFetches bounds the backend round trips in flight
	// across all transactions of this Database. Zero means the default.
	MaxConcurrentFetches int64
}

// A Database pairs a versioned store with a version source and creates
// read transactions. It is safe for concurrent use; the fetch semaphore it
// owns is shared by every transaction it creates.
type Database struct {
	store  backend.Store
	source backend.VersionSource
	sem    *semaphore.Weighted
}

// NewDatabase wraps a store and a version source.
func NewDatabase(store backend.Store, source backend.VersionSource, opts *DatabaseOptions) *Database {
	max := int64(defaultMaxConcurrentFetches)
	if opts != nil && opts.MaxConcurrentFetches > 0 {
		max = opts.MaxConcurrentFetches
	}
	return &Database{
		store:  store,
		source: source,
		sem:    semaphore.NewWeighted(max),
	}
}

// NewMemoryDatabase creates a Database over a fresh in-memory store and
// returns the store so callers can seed it.
func NewMemoryDatabase() (*Database, *memorykv.Store) {
	store := memorykv.NewStore()
	return NewDatabase(store, store, nil), store
}

// OpenPebbleDatabase creates a Database over a Pebble store at path.
func OpenPebbleDatabase(path string, opts *pebblekv.Options) (*Database, *pebblekv.Store, error) {
	store, err := pebblekv.Open(path, opts)
	if err != nil {
		return nil, nil, err
	}
	return NewDatabase(store, store, nil), store, nil
}

// ReadTransaction starts a read-only transaction. Its read version is
// pinned lazily on the first read, or explicitly via SetReadVersion.
func (db *Database) ReadTransaction() *ReadTransaction {
	return &ReadTransaction{
		db:        db,
		oracle:    version.NewOracle(db.source),
		conflicts: &conflict.Set{},
		settings:  &txSettings{},
	}
}

// acquire reserves a slot for one backend round trip.
func (db *Database) acquire(ctx context.Context) error {
	return db.sem.Acquire(ctx, 1)
}

func (db *Database) release() {
	db.sem.Release(1)
}
