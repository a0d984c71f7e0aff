package foundationdb

import (
	"github.com/MikeMcMahon/foundationdb/internal/backend"
)

// Errors surfaced by read operations. They originate in the backend layer
// and are re-exported here so callers don't import internal packages.
// None of them is retried internally; the retry loop belongs to the caller,
// which should create a fresh transaction per attempt.
var (
	// ErrBackendUnavailable is a transient failure to reach the backend.
	ErrBackendUnavailable = backend.ErrUnavailable

	// ErrPastVersion means the transaction's read version predates the
	// backend's retained history. The transaction attempt is dead; retry
	// with a fresh one.
	ErrPastVersion = backend.ErrPastVersion

	// ErrKeyOutOfRange means a key selector resolved past the absolute
	// boundaries of the keyspace.
	ErrKeyOutOfRange = backend.ErrKeyOutOfRange

	// ErrInvalidRange means a range's begin key sorts after its end key.
	// It is returned before any backend call is made.
	ErrInvalidRange = backend.ErrInvalidRange
)
