// Package version pins the read version of a transaction.
package version

import (
	"context"
	"sync"

	"github.com/MikeMcMahon/foundationdb/internal/backend"
)

// Oracle resolves a transaction's read version at most once and caches it.
// The first Get contacts the version source; every later call returns the
// cached value without touching the network.
type Oracle struct {
	source backend.VersionSource

	mu       sync.Mutex
	resolved bool
	version  int64
}

func NewOracle(source backend.VersionSource) *Oracle {
	return &Oracle{source: source}
}

// Get returns the pinned read version, fetching it from the source on the
// first call. Concurrent callers block until the first fetch completes and
// all observe the same version.
func (o *Oracle) Get(ctx context.Context) (int64, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.resolved {
		return o.version, nil
	}

	v, err := o.source.FetchCurrentVersion(ctx)
	if err != nil {
		return 0, err
	}

	o.version = v
	o.resolved = true
	return v, nil
}

// Set overrides the cached version, bypassing the source. Calling it after
// reads have already resolved a version lets later reads observe a mix of
// versions; keeping that from happening is the caller's responsibility.
func (o *Oracle) Set(v int64) {
	o.mu.Lock()
	o.version = v
	o.resolved = true
	o.mu.Unlock()
}

// Resolved reports whether a read version has been pinned.
func (o *Oracle) Resolved() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.resolved
}
