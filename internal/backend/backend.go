// Package backend defines the two collaborator interfaces the read engine
// depends on: a source of read versions and a versioned key-value store.
// Implementations live in the memorykv and pebblekv subpackages.
package backend

import (
	"context"

	"github.com/cockroachdb/errors"
)

// Common errors returned by backend implementations.
var (
	// ErrKeyNotFound is returned by PointRead when the key doesn't exist at
	// the requested version.
	ErrKeyNotFound = errors.New("key not found")

	// ErrUnavailable is returned when the backend cannot be reached. It is
	// never retried internally; callers own the retry loop.
	ErrUnavailable = errors.New("backend unavailable")

	// ErrPastVersion is returned when the requested version predates the
	// backend's retained history window.
	ErrPastVersion = errors.New("read version too old")

	// ErrKeyOutOfRange is returned when a selector resolves past the
	// absolute boundaries of the keyspace.
	ErrKeyOutOfRange = errors.New("key selector resolves outside the keyspace")

	// ErrInvalidRange is returned when a range's begin key sorts after its
	// end key.
	ErrInvalidRange = errors.New("range begin key is greater than end key")
)

// Keyspace boundary markers. Selector resolution clamps to these: one
// position before the first key resolves to MinKey, one position after the
// last key resolves to MaxKey. Anything further is ErrKeyOutOfRange.
var (
	MinKey = []byte{}
	MaxKey = []byte{0xff}
)

// KeyValue is a single key-value pair. Ordering is lexicographic by key.
type KeyValue struct {
	Key   []byte
	Value []byte
}

// Chunk is one batch of a range fetch.
type Chunk struct {
	KVs  []KeyValue
	More bool

	// Continuation positions the next fetch when More is true: the next
	// window is [Continuation, end) for forward fetches and
	// [begin, Continuation) for reverse fetches.
	Continuation []byte
}

// VersionSource supplies a causally-consistent current version.
type VersionSource interface {
	FetchCurrentVersion(ctx context.Context) (int64, error)
}

// Store is a versioned key-value store. All reads are as-of the given
// version and must return ErrPastVersion when that version has fallen out
// of the retained history window.
type Store interface {
	// PointRead returns the value of key at version, or ErrKeyNotFound.
	PointRead(ctx context.Context, key []byte, version int64) ([]byte, error)

	// ResolveSelector walks from the anchor position toward offset. The
	// base position is the last key <= anchor when orEqual, the last key
	// < anchor otherwise. The store may satisfy only part of the offset
	// per call: it returns the key it reached and the offset still
	// remaining, with the same sign as the request. A zero remaining
	// offset means key is the final resolution, clamped to MinKey or
	// MaxKey at the keyspace boundaries.
	ResolveSelector(ctx context.Context, anchor []byte, orEqual bool, offset int, version int64) (key []byte, remaining int, err error)

	// RangeFetch returns up to limitHint pairs of [begin, end) at version,
	// ascending, or descending from the end of the range when reverse.
	RangeFetch(ctx context.Context, begin, end []byte, version int64, limitHint int, reverse bool) (Chunk, error)
}
