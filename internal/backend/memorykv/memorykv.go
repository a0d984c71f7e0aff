// Package memorykv implements an in-memory versioned key-value store on a
// btree. It backs the in-memory database constructor and most of the test
// suite. Every write bumps the store's current version; reads are as-of a
// version and older versions stay visible until they fall out of the
// configured retention window.
package memorykv

import (
	"bytes"
	"context"
	"math"
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/google/btree"

	"github.com/MikeMcMahon/foundationdb/internal/backend"
)

// entry is one version of one key. Entries sort by key ascending, then by
// version descending, so the newest version of a key is encountered first
// on an ascending scan.
type entry struct {
	key       []byte
	version   int64
	value     []byte
	tombstone bool
}

func entryLess(a, b entry) bool {
	if c := bytes.Compare(a.key, b.key); c != 0 {
		return c < 0
	}
	return a.version > b.version
}

// Store is a versioned in-memory store. It implements both backend.Store
// and backend.VersionSource.
type Store struct {
	mu      sync.RWMutex
	tree    *btree.BTreeG[entry]
	current int64

	// retention is the number of versions kept behind current; 0 keeps
	// everything.
	retention int64

	// selectorStep caps how many positions a single ResolveSelector call
	// may walk; 0 means unbounded. Small values exercise the resolver's
	// partial-progress loop.
	selectorStep int

	unavailable bool
}

var (
	_ backend.Store         = (*Store)(nil)
	_ backend.VersionSource = (*Store)(nil)
)

func NewStore() *Store {
	return &Store{
		tree: btree.NewG[entry](32, entryLess),
	}
}

// SetRetention limits readable history to the last n versions.
func (s *Store) SetRetention(n int64) {
	s.mu.Lock()
	s.retention = n
	s.mu.Unlock()
}

// SetSelectorStep caps the offset walked per ResolveSelector call.
func (s *Store) SetSelectorStep(n int) {
	s.mu.Lock()
	s.selectorStep = n
	s.mu.Unlock()
}

// SetUnavailable makes every call fail with ErrUnavailable until reset.
func (s *Store) SetUnavailable(down bool) {
	s.mu.Lock()
	s.unavailable = down
	s.mu.Unlock()
}

// Apply commits the given pairs atomically at the next version and returns
// that version.
func (s *Store) Apply(kvs ...backend.KeyValue) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current++
	for _, kv := range kvs {
		s.tree.ReplaceOrInsert(entry{
			key:     append([]byte(nil), kv.Key...),
			version: s.current,
			value:   append([]byte(nil), kv.Value...),
		})
	}
	return s.current
}

// Remove commits tombstones for the given keys at the next version.
func (s *Store) Remove(keys ...[]byte) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current++
	for _, k := range keys {
		s.tree.ReplaceOrInsert(entry{
			key:       append([]byte(nil), k...),
			version:   s.current,
			tombstone: true,
		})
	}
	return s.current
}

// CurrentVersion returns the version of the latest commit.
func (s *Store) CurrentVersion() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// FetchCurrentVersion implements backend.VersionSource.
func (s *Store) FetchCurrentVersion(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.unavailable {
		return 0, errors.WithStack(backend.ErrUnavailable)
	}
	return s.current, nil
}

func (s *Store) checkLocked(version int64) error {
	if s.unavailable {
		return errors.WithStack(backend.ErrUnavailable)
	}
	if s.retention > 0 && version < s.current-s.retention {
		return errors.WithStack(backend.ErrPastVersion)
	}
	return nil
}

// visible collapses the tree into the list of pairs visible at version,
// ascending by key.
func (s *Store) visible(version int64) []backend.KeyValue {
	var out []backend.KeyValue
	var cur []byte
	decided := false

	s.tree.Ascend(func(e entry) bool {
		if cur == nil || !bytes.Equal(e.key, cur) {
			cur = e.key
			decided = false
		}
		if decided || e.version > version {
			return true
		}
		decided = true
		if !e.tombstone {
			out = append(out, backend.KeyValue{Key: e.key, Value: e.value})
		}
		return true
	})
	return out
}

// PointRead implements backend.Store.
func (s *Store) PointRead(ctx context.Context, key []byte, version int64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkLocked(version); err != nil {
		return nil, err
	}

	var value []byte
	found := false
	pivot := entry{key: key, version: math.MaxInt64}
	s.tree.AscendGreaterOrEqual(pivot, func(e entry) bool {
		if !bytes.Equal(e.key, key) {
			return false
		}
		if e.version > version {
			return true
		}
		if !e.tombstone {
			value = append([]byte(nil), e.value...)
			found = true
		}
		return false
	})

	if !found {
		return nil, errors.WithStack(backend.ErrKeyNotFound)
	}
	return value, nil
}

// ResolveSelector implements backend.Store. The walk is capped per call by
// the configured selector step.
func (s *Store) ResolveSelector(ctx context.Context, anchor []byte, orEqual bool, offset int, version int64) ([]byte, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkLocked(version); err != nil {
		return nil, 0, err
	}

	kvs := s.visible(version)
	n := len(kvs)

	// Base position: the last key <= anchor, or < anchor when !orEqual.
	// -1 means before the first key.
	base := sort.Search(n, func(i int) bool {
		c := bytes.Compare(kvs[i].Key, anchor)
		if orEqual {
			return c > 0
		}
		return c >= 0
	}) - 1

	target := base + offset

	if s.selectorStep > 0 && abs(offset) > s.selectorStep {
		// Partial progress: walk selectorStep positions and report the
		// remainder, as long as the stop lands on a real key the caller
		// can anchor the next query on.
		step := s.selectorStep
		if offset < 0 {
			step = -step
		}
		if stop := base + step; stop >= 0 && stop < n {
			key := append([]byte(nil), kvs[stop].Key...)
			return key, offset - step, nil
		}
	}

	switch {
	case target <= -2 || target >= n+1:
		return nil, 0, errors.WithStack(backend.ErrKeyOutOfRange)
	case target == -1:
		return backend.MinKey, 0, nil
	case target == n:
		return backend.MaxKey, 0, nil
	}
	return append([]byte(nil), kvs[target].Key...), 0, nil
}

// RangeFetch implements backend.Store.
func (s *Store) RangeFetch(ctx context.Context, begin, end []byte, version int64, limitHint int, reverse bool) (backend.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return backend.Chunk{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkLocked(version); err != nil {
		return backend.Chunk{}, err
	}

	kvs := s.visible(version)
	lo := sort.Search(len(kvs), func(i int) bool { return bytes.Compare(kvs[i].Key, begin) >= 0 })
	hi := sort.Search(len(kvs), func(i int) bool { return bytes.Compare(kvs[i].Key, end) >= 0 })
	if lo > hi {
		lo = hi
	}
	window := kvs[lo:hi]

	var chunk backend.Chunk
	if limitHint <= 0 || limitHint > len(window) {
		limitHint = len(window)
	}

	if reverse {
		taken := window[len(window)-limitHint:]
		for i := len(taken) - 1; i >= 0; i-- {
			chunk.KVs = append(chunk.KVs, copyKV(taken[i]))
		}
		if len(taken) < len(window) {
			chunk.More = true
			chunk.Continuation = append([]byte(nil), taken[0].Key...)
		}
	} else {
		taken := window[:limitHint]
		for _, kv := range taken {
			chunk.KVs = append(chunk.KVs, copyKV(kv))
		}
		if len(taken) < len(window) {
			chunk.More = true
			chunk.Continuation = keySuccessor(taken[len(taken)-1].Key)
		}
	}
	return chunk, nil
}

func copyKV(kv backend.KeyValue) backend.KeyValue {
	return backend.KeyValue{
		Key:   append([]byte(nil), kv.Key...),
		Value: append([]byte(nil), kv.Value...),
	}
}

func keySuccessor(key []byte) []byte {
	next := make([]byte, len(key)+1)
	copy(next, key)
	return next
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
