package foundationdb

import (
	"context"

	"github.com/cockroachdb/errors"
)

// resolveSelector turns a key selector into an absolute key at the given
// version. The backend may satisfy only part of the selector's offset per
// round trip; the loop reissues follow-up queries anchored on the partial
// result until the offset is exhausted or a keyspace boundary is reached.
func (db *Database) resolveSelector(ctx context.Context, sel KeySelector, ver int64) ([]byte, error) {
	anchor, orEqual, offset := sel.Key, sel.OrEqual, sel.Offset

	for {
		if err := db.acquire(ctx); err != nil {
			return nil, err
		}
		key, remaining, err := db.store.ResolveSelector(ctx, anchor, orEqual, offset, ver)
		db.release()
		if err != nil {
			return nil, err
		}
		if remaining == 0 {
			return key, nil
		}
		if abs(remaining) >= abs(offset) {
			return nil, errors.Newf("backend made no progress resolving selector %s", sel)
		}

		// The partial result is an existing key, so the follow-up anchors
		// on it inclusively.
		anchor, orEqual, offset = key, true, remaining
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
