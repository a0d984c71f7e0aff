package foundationdb

import (
	"github.com/cockroachdb/errors"

	"github.com/MikeMcMahon/foundationdb/internal/backend"
	"github.com/MikeMcMahon/foundationdb/internal/conflict"
)

// KeyValue is a single key-value pair.
type KeyValue = backend.KeyValue

// ConflictRange is a half-open key range recorded for conflict checking.
type ConflictRange = conflict.Range

// Range describes a half-open interval of keys. Both bounds normalize to
// key selectors; the begin selector is inclusive, the end selector
// exclusive.
type Range interface {
	RangeSelectors() (begin, end KeySelector)
}

// KeyRange bounds a range with concrete keys: Begin inclusive, End
// exclusive. Begin must not sort after End.
type KeyRange struct {
	Begin []byte
	End   []byte
}

func (r KeyRange) RangeSelectors() (KeySelector, KeySelector) {
	return FirstGreaterOrEqual(r.Begin), FirstGreaterOrEqual(r.End)
}

// SelectorRange bounds a range with explicit key selectors.
type SelectorRange struct {
	Begin KeySelector
	End   KeySelector
}

func (r SelectorRange) RangeSelectors() (KeySelector, KeySelector) {
	return r.Begin, r.End
}

// PrefixRange returns the range of all keys starting with prefix.
func PrefixRange(prefix []byte) (KeyRange, error) {
	end, err := Strinc(prefix)
	if err != nil {
		return KeyRange{}, err
	}
	return KeyRange{
		Begin: append([]byte(nil), prefix...),
		End:   end,
	}, nil
}

// Strinc returns the first key that does not have prefix as a prefix:
// the prefix with its last non-0xff byte incremented and everything after
// it dropped. A prefix consisting only of 0xff bytes has no such key.
func Strinc(prefix []byte) ([]byte, error) {
	for i := len(prefix) - 1; i >= 0; i-- {
		if prefix[i] != 0xff {
			out := make([]byte, i+1)
			copy(out, prefix[:i+1])
			out[i]++
			return out, nil
		}
	}
	return nil, errors.New("key must contain at least one byte not equal to 0xff")
}
