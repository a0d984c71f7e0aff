package foundationdb

import "fmt"

// KeySelector names a database key relative to an anchor key: starting from
// the last key at or before the anchor (or strictly before it when OrEqual
// is false), move Offset positions forward. Selectors are plain values;
// resolving one requires a transaction and may return a key outside any
// range the selector is used to bound.
type KeySelector struct {
	Key     []byte
	OrEqual bool
	Offset  int
}

// LastLessThan returns the selector for the last key strictly before key.
func LastLessThan(key []byte) KeySelector {
	return KeySelector{Key: key}
}

// LastLessOrEqual returns the selector for the last key at or before key.
func LastLessOrEqual(key []byte) KeySelector {
	return KeySelector{Key: key, OrEqual: true}
}

// FirstGreaterThan returns the selector for the first key strictly after key.
func FirstGreaterThan(key []byte) KeySelector {
	return KeySelector{Key: key, OrEqual: true, Offset: 1}
}

// FirstGreaterOrEqual returns the selector for the first key at or after key.
func FirstGreaterOrEqual(key []byte) KeySelector {
	return KeySelector{Key: key, Offset: 1}
}

// Add returns a selector shifted offset keys forward (or backward when
// negative) from s.
func (s KeySelector) Add(offset int) KeySelector {
	s.Offset += offset
	return s
}

func (s KeySelector) String() string {
	return fmt.Sprintf("(%q, %v, %d)", s.Key, s.OrEqual, s.Offset)
}
