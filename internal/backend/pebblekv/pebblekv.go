// Package pebblekv implements a durable versioned key-value store on
// Pebble. User keys are escaped and suffixed with the inverted commit
// version so that an ascending scan sees the newest version of each key
// first. It implements both backend.Store and backend.VersionSource.
package pebblekv

import (
	"bytes"
	"context"
	"encoding/binary"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/sirupsen/logrus"

	"github.com/MikeMcMahon/foundationdb/internal/backend"
)

const (
	dataPrefix byte = 0x01

	valueTag     byte = 0x01
	tombstoneTag byte = 0x00

	// defaultSelectorStep caps the positions walked per ResolveSelector
	// call; longer offsets resolve over multiple round trips.
	defaultSelectorStep = 128
)

var (
	metaVersionKey = []byte{0x00, 'v'}

	dataLowerBound = []byte{dataPrefix}
	dataUpperBound = []byte{dataPrefix + 1}
)

// Options configures a Store.
type Options struct {
	// FS overrides the filesystem, e.g. vfs.NewMem() for tests.
	FS vfs.FS

	// SelectorStep caps the offset walked per ResolveSelector call.
	// Zero means defaultSelectorStep.
	SelectorStep int

	Logger *logrus.Logger
}

// Store is a Pebble-backed versioned store.
type Store struct {
	db   *pebble.DB
	log  *logrus.Logger
	step int

	// mu serializes commits and guards the version counter.
	mu      sync.Mutex
	current int64
}

var (
	_ backend.Store         = (*Store)(nil)
	_ backend.VersionSource = (*Store)(nil)
)

// Open opens or creates a store at path.
func Open(path string, opts *Options) (*Store, error) {
	if opts == nil {
		opts = &Options{}
	}

	popts := &pebble.Options{}
	if opts.FS != nil {
		popts.FS = opts.FS
	}

	db, err := pebble.Open(path, popts)
	if err != nil {
		return nil, err
	}

	s := &Store{
		db:   db,
		log:  opts.Logger,
		step: opts.SelectorStep,
	}
	if s.log == nil {
		s.log = logrus.StandardLogger()
	}
	if s.step <= 0 {
		s.step = defaultSelectorStep
	}

	v, closer, err := db.Get(metaVersionKey)
	if err == nil {
		s.current = int64(binary.BigEndian.Uint64(v))
		if err := closer.Close(); err != nil {
			_ = db.Close()
			return nil, err
		}
	} else if !errors.Is(err, pebble.ErrNotFound) {
		_ = db.Close()
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"path": path, "version": s.current}).Debug("pebblekv: store opened")
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	s.log.Debug("pebblekv: store closed")
	return s.db.Close()
}

// CurrentVersion returns the version of the latest commit.
func (s *Store) CurrentVersion() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// FetchCurrentVersion implements backend.VersionSource.
func (s *Store) FetchCurrentVersion(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, nil
}

// Apply commits the given pairs atomically at the next version and returns
// that version.
func (s *Store) Apply(kvs ...backend.KeyValue) (int64, error) {
	return s.commit(kvs, nil)
}

// Remove commits tombstones for the given keys at the next version.
func (s *Store) Remove(keys ...[]byte) (int64, error) {
	return s.commit(nil, keys)
}

func (s *Store) commit(kvs []backend.KeyValue, deletes [][]byte) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.current + 1
	b := s.db.NewBatch()
	defer b.Close()

	for _, kv := range kvs {
		if err := b.Set(encodeKey(kv.Key, next), encodeValue(kv.Value), nil); err != nil {
			return 0, err
		}
	}
	for _, k := range deletes {
		if err := b.Set(encodeKey(k, next), []byte{tombstoneTag}, nil); err != nil {
			return 0, err
		}
	}

	var vbuf [8]byte
	binary.BigEndian.PutUint64(vbuf[:], uint64(next))
	if err := b.Set(metaVersionKey, vbuf[:], nil); err != nil {
		return 0, err
	}

	if err := b.Commit(&pebble.WriteOptions{Sync: true}); err != nil {
		return 0, err
	}

	s.current = next
	return next, nil
}

// PointRead implements backend.Store.
func (s *Store) PointRead(ctx context.Context, key []byte, version int64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	it := s.db.NewIter(&pebble.IterOptions{
		LowerBound: encodeBound(key),
		UpperBound: encodeBound(keySuccessor(key)),
	})
	defer it.Close()

	for it.SeekGE(encodeBound(key)); it.Valid(); it.Next() {
		_, ver, err := decodeKey(it.Key())
		if err != nil {
			return nil, err
		}
		if ver > version {
			continue
		}
		value, tomb := decodeValue(it.Value())
		if tomb {
			break
		}
		return value, nil
	}

	return nil, errors.WithStack(backend.ErrKeyNotFound)
}

// ResolveSelector implements backend.Store.
func (s *Store) ResolveSelector(ctx context.Context, anchor []byte, orEqual bool, offset int, version int64) ([]byte, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	it := s.db.NewIter(&pebble.IterOptions{
		LowerBound: dataLowerBound,
		UpperBound: dataUpperBound,
	})
	defer it.Close()
	w := walker{it: it, version: version}

	// Base position: the last visible key <= anchor (< when !orEqual), or
	// the virtual position before the first key.
	seek := anchor
	if orEqual {
		seek = keySuccessor(anchor)
	}
	it.SeekLT(encodeBound(seek))
	base, _, baseValid := w.backward()

	if offset == 0 {
		if !baseValid {
			return backend.MinKey, 0, nil
		}
		return base, 0, nil
	}

	if offset > 0 {
		return s.walkForward(&w, base, baseValid, offset)
	}
	return s.walkBackward(&w, base, baseValid, offset)
}

func (s *Store) walkForward(w *walker, base []byte, baseValid bool, offset int) ([]byte, int, error) {
	if baseValid {
		w.it.SeekGE(encodeBound(keySuccessor(base)))
	} else {
		w.it.SeekGE(dataLowerBound)
	}

	cur := base
	curValid := baseValid
	for steps := 0; steps < offset; {
		key, _, ok := w.forward()
		if !ok {
			// Walked off the back of the keyspace. One position past the
			// last key is the end marker; anything further is out of
			// range.
			if offset-steps == 1 {
				return backend.MaxKey, 0, nil
			}
			return nil, 0, errors.WithStack(backend.ErrKeyOutOfRange)
		}
		cur, curValid = key, true
		steps++

		if steps < offset && steps >= s.step {
			return cur, offset - steps, nil
		}
		w.it.SeekGE(encodeBound(keySuccessor(key)))
	}
	if !curValid {
		return backend.MinKey, 0, nil
	}
	return cur, 0, nil
}

func (s *Store) walkBackward(w *walker, base []byte, baseValid bool, offset int) ([]byte, int, error) {
	if !baseValid {
		// The base is already the front marker; any step back from it
		// leaves the keyspace.
		return nil, 0, errors.WithStack(backend.ErrKeyOutOfRange)
	}

	// The backward walker left the iterator just before base, so further
	// calls keep yielding preceding keys.
	cur := base
	for steps := 0; steps > offset; {
		key, _, ok := w.backward()
		if !ok {
			if offset-steps == -1 {
				return backend.MinKey, 0, nil
			}
			return nil, 0, errors.WithStack(backend.ErrKeyOutOfRange)
		}
		cur = key
		steps--

		if steps > offset && -steps >= s.step {
			return cur, offset - steps, nil
		}
	}
	return cur, 0, nil
}

// RangeFetch implements backend.Store.
func (s *Store) RangeFetch(ctx context.Context, begin, end []byte, version int64, limitHint int, reverse bool) (backend.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return backend.Chunk{}, err
	}
	if limitHint <= 0 {
		limitHint = defaultSelectorStep
	}

	it := s.db.NewIter(&pebble.IterOptions{
		LowerBound: encodeBound(begin),
		UpperBound: encodeBound(end),
	})
	defer it.Close()
	w := walker{it: it, version: version}

	var chunk backend.Chunk
	if reverse {
		it.SeekLT(encodeBound(end))
		for len(chunk.KVs) < limitHint {
			key, value, ok := w.backward()
			if !ok {
				return chunk, nil
			}
			chunk.KVs = append(chunk.KVs, backend.KeyValue{Key: key, Value: value})
		}
		if _, _, ok := w.backward(); ok {
			chunk.More = true
			chunk.Continuation = chunk.KVs[len(chunk.KVs)-1].Key
		}
		return chunk, nil
	}

	it.SeekGE(encodeBound(begin))
	for len(chunk.KVs) < limitHint {
		key, value, ok := w.forward()
		if !ok {
			return chunk, nil
		}
		chunk.KVs = append(chunk.KVs, backend.KeyValue{Key: key, Value: value})
		it.SeekGE(encodeBound(keySuccessor(key)))
	}
	if _, _, ok := w.forward(); ok {
		chunk.More = true
		chunk.Continuation = keySuccessor(chunk.KVs[len(chunk.KVs)-1].Key)
	}
	return chunk, nil
}

// walker resolves MVCC entries into the keys visible at a version.
type walker struct {
	it      *pebble.Iterator
	version int64
}

// forward finds the next visible key scanning from the current raw
// position. Entries of one user key are ordered newest version first, so
// the first entry at or below the walker's version decides visibility.
func (w *walker) forward() (key, value []byte, ok bool) {
	for w.it.Valid() {
		uk, ver, err := decodeKey(w.it.Key())
		if err != nil {
			return nil, nil, false
		}
		if ver > w.version {
			w.it.Next()
			continue
		}
		value, tomb := decodeValue(w.it.Value())
		if !tomb {
			return uk, value, true
		}
		// Deleted at this version; skip the rest of this user key.
		w.it.SeekGE(encodeBound(keySuccessor(uk)))
	}
	return nil, nil, false
}

// backward finds the previous visible key scanning from the current raw
// position. Descending order yields oldest versions first, so all entries
// of a user key are examined and the newest one at or below the walker's
// version decides visibility. The iterator is left on the preceding user
// key, so repeated calls walk backward.
func (w *walker) backward() (key, value []byte, ok bool) {
	for w.it.Valid() {
		uk, ver, err := decodeKey(w.it.Key())
		if err != nil {
			return nil, nil, false
		}

		var candValue []byte
		candFound := false
		candTomb := false
		if ver <= w.version {
			candValue, candTomb = decodeValue(w.it.Value())
			candFound = true
		}
		for {
			w.it.Prev()
			if !w.it.Valid() {
				break
			}
			uk2, ver2, err := decodeKey(w.it.Key())
			if err != nil {
				return nil, nil, false
			}
			if !bytes.Equal(uk2, uk) {
				break
			}
			if ver2 <= w.version {
				candValue, candTomb = decodeValue(w.it.Value())
				candFound = true
			}
		}
		if candFound && !candTomb {
			return uk, candValue, true
		}
	}
	return nil, nil, false
}

// encodeBound returns the encoded position just before any version of key.
func encodeBound(key []byte) []byte {
	buf := make([]byte, 0, len(key)+4)
	buf = append(buf, dataPrefix)
	for _, c := range key {
		if c == 0x00 {
			buf = append(buf, 0x00, 0xff)
			continue
		}
		buf = append(buf, c)
	}
	return append(buf, 0x00, 0x01)
}

// encodeKey builds the storage key: escaped user key, terminator, then the
// inverted version so newer versions sort first.
func encodeKey(key []byte, version int64) []byte {
	buf := encodeBound(key)
	var vbuf [8]byte
	binary.BigEndian.PutUint64(vbuf[:], ^uint64(version))
	return append(buf, vbuf[:]...)
}

func decodeKey(enc []byte) (key []byte, version int64, err error) {
	if len(enc) < 1+2+8 || enc[0] != dataPrefix {
		return nil, 0, errors.New("pebblekv: malformed storage key")
	}
	body := enc[1 : len(enc)-8]

	key = make([]byte, 0, len(body))
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != 0x00 {
			key = append(key, c)
			continue
		}
		if i+1 >= len(body) {
			return nil, 0, errors.New("pebblekv: truncated escape sequence")
		}
		i++
		switch body[i] {
		case 0xff:
			key = append(key, 0x00)
		case 0x01:
			if i != len(body)-1 {
				return nil, 0, errors.New("pebblekv: terminator inside storage key")
			}
		default:
			return nil, 0, errors.New("pebblekv: invalid escape sequence")
		}
	}

	version = int64(^binary.BigEndian.Uint64(enc[len(enc)-8:]))
	return key, version, nil
}

func encodeValue(value []byte) []byte {
	buf := make([]byte, 0, len(value)+1)
	buf = append(buf, valueTag)
	return append(buf, value...)
}

func decodeValue(enc []byte) (value []byte, tombstone bool) {
	if len(enc) == 0 || enc[0] == tombstoneTag {
		return nil, true
	}
	return append([]byte(nil), enc[1:]...), false
}

// keySuccessor returns the smallest key strictly greater than key.
func keySuccessor(key []byte) []byte {
	next := make([]byte, len(key)+1)
	copy(next, key)
	return next
}
