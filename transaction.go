package foundationdb

import (
	"bytes"
	"context"

	"github.com/cockroachdb/errors"

	"github.com/MikeMcMahon/foundationdb/internal/backend"
	"github.com/MikeMcMahon/foundationdb/internal/conflict"
	"github.com/MikeMcMahon/foundationdb/internal/version"
)

// RowLimitUnlimited asks a range read not to cap the number of rows.
const RowLimitUnlimited = 0

// ReadTransaction is a read-only transaction over a Database. All reads
// observe the database at one pinned version: the version is fetched lazily
// on the first read, or set explicitly with SetReadVersion.
//
// Reads register the key ranges they touched for conflict checking at
// commit time, unless issued through the Snapshot view. The accumulated
// ranges are handed off via ReadConflictRanges.
//
// Methods may be called from multiple goroutines; the version cache and
// the conflict set are internally synchronized.
type ReadTransaction struct {
	db        *Database
	oracle    *version.Oracle
	conflicts *conflict.Set
	settings  *txSettings
	snapshot  bool
}

// IsSnapshot reports whether reads through this view skip conflict-range
// registration.
func (t *ReadTransaction) IsSnapshot() bool {
	return t.snapshot
}

// Snapshot returns a view of the transaction with relaxed isolation:
// reads through it do not register conflict ranges. The view shares the
// transaction's read version, backend and options.
func (t *ReadTransaction) Snapshot() *ReadTransaction {
	if t.snapshot {
		return t
	}
	view := *t
	view.snapshot = true
	return &view
}

// GetReadVersion returns the version all reads of this transaction run at,
// fetching it from the version source on the first call.
func (t *ReadTransaction) GetReadVersion(ctx context.Context) (int64, error) {
	return t.readVersion(ctx)
}

// readVersion resolves the pinned version, holding a fetch slot only when
// the version source actually has to be contacted.
func (t *ReadTransaction) readVersion(ctx context.Context) (int64, error) {
	if t.oracle.Resolved() {
		return t.oracle.Get(ctx)
	}
	if err := t.db.acquire(ctx); err != nil {
		return 0, err
	}
	defer t.db.release()
	return t.oracle.Get(ctx)
}

// SetReadVersion pins the read version directly instead of asking the
// version source. A version set too far in the past surfaces later as
// ErrPastVersion from read operations. Setting it after reads have already
// pinned a version lets later reads observe a different version than
// earlier ones; callers are responsible for not doing that.
func (t *ReadTransaction) SetReadVersion(v int64) {
	t.oracle.Set(v)
}

// AddReadConflictRange records [begin, end) as if it had been read,
// reporting whether it was recorded. Snapshot views and empty ranges
// record nothing. A begin key sorting after end is ErrInvalidRange.
func (t *ReadTransaction) AddReadConflictRange(begin, end []byte) (bool, error) {
	if bytes.Compare(begin, end) > 0 {
		return false, errors.WithStack(backend.ErrInvalidRange)
	}
	return t.conflicts.AddRange(begin, end, t.snapshot), nil
}

// AddReadConflictKey records key as if it had been read, reporting whether
// it was recorded. Snapshot views record nothing.
func (t *ReadTransaction) AddReadConflictKey(key []byte) bool {
	return t.conflicts.AddKey(key, t.snapshot)
}

// ReadConflictRanges returns the conflict ranges accumulated so far, for
// hand-off to the commit path.
func (t *ReadTransaction) ReadConflictRanges() []ConflictRange {
	return t.conflicts.Ranges()
}

// Options returns the transaction's option set, shared with all its views.
func (t *ReadTransaction) Options() TransactionOptions {
	return TransactionOptions{s: t.settings}
}

// Get returns the value of key, or nil if the key is absent. Absence is a
// normal result, not an error.
func (t *ReadTransaction) Get(ctx context.Context, key []byte) ([]byte, error) {
	ver, err := t.readVersion(ctx)
	if err != nil {
		return nil, err
	}

	if err := t.db.acquire(ctx); err != nil {
		return nil, err
	}
	value, err := t.db.store.PointRead(ctx, key, ver)
	t.db.release()

	if err != nil && !errors.Is(err, backend.ErrKeyNotFound) {
		return nil, err
	}

	// Reading a key conflicts on it whether or not it existed.
	t.conflicts.AddKey(key, t.snapshot)

	if err != nil {
		return nil, nil
	}
	return value, nil
}

// GetKey resolves a key selector to an absolute key. The resolved key may
// lie outside any range the selector is later used to bound; resolution
// that runs past the keyspace boundary clamps to it, one position beyond
// that is ErrKeyOutOfRange.
func (t *ReadTransaction) GetKey(ctx context.Context, sel KeySelector) ([]byte, error) {
	ver, err := t.readVersion(ctx)
	if err != nil {
		return nil, err
	}

	key, err := t.db.resolveSelector(ctx, sel, ver)
	if err != nil {
		return nil, err
	}

	// The conflict covers the resolved position, not the selector anchor.
	t.conflicts.AddKey(key, t.snapshot)

	return key, nil
}

// GetRange returns an iterator over the ordered key-value pairs of r.
// Bounds given as concrete keys read as "first key at or after". The
// iterator fetches lazily in chunks sized by opts.Mode, staying one chunk
// ahead of consumption; see RangeIterator.
//
// Validation failures (inverted KeyRange, exact mode without a limit,
// negative limit) are returned here before any backend work is issued.
func (t *ReadTransaction) GetRange(ctx context.Context, r Range, opts RangeOptions) (*RangeIterator, error) {
	if opts.Limit < 0 {
		return nil, errors.Newf("negative row limit %d", opts.Limit)
	}
	if opts.Mode == StreamingModeExact && opts.Limit == RowLimitUnlimited {
		return nil, errors.New("exact streaming mode requires a row limit")
	}
	if kr, ok := r.(KeyRange); ok && bytes.Compare(kr.Begin, kr.End) > 0 {
		return nil, errors.WithStack(backend.ErrInvalidRange)
	}

	begin, end := r.RangeSelectors()
	return t.newRangeIterator(ctx, begin, end, opts), nil
}

// GetRangeAll reads the whole range eagerly with StreamingModeWantAll.
func (t *ReadTransaction) GetRangeAll(ctx context.Context, r Range, limit int) ([]KeyValue, error) {
	it, err := t.GetRange(ctx, r, RangeOptions{Limit: limit, Mode: StreamingModeWantAll})
	if err != nil {
		return nil, err
	}
	defer it.Close()
	return it.Slice()
}
