package foundationdb

import (
	"bytes"
	"context"
	"sync"
)

// RangeOptions tunes a range read.
type RangeOptions struct {
	// Limit caps the number of rows returned; RowLimitUnlimited (0) means
	// no cap. With Reverse, rows are counted from the end of the range.
	Limit int

	// Reverse delivers rows from the end of the range backward.
	Reverse bool

	// Mode hints the fetch chunk sizing. It never changes the result.
	Mode StreamingMode
}

// RangeIterator streams the key-value pairs of one range read. A producer
// goroutine resolves the range bounds, then fetches chunks from the
// backend, keeping exactly one fetched chunk ahead of consumption: the next
// chunk is not requested until the previous one has been handed over, so
// memory stays bounded by the chunk size and the consumer's pace applies
// backpressure.
//
// The iterator is forward-only and not restartable. Abandoning it is safe
// at any point: Close stops the producer and no further backend requests
// are issued, but conflict ranges already registered for fetched chunks
// remain registered.
//
//	it, err := rtx.GetRange(ctx, r, opts)
//	if err != nil { ... }
//	defer it.Close()
//	for it.Next() {
//		kv := it.KeyValue()
//	}
//	if err := it.Err(); err != nil { ... }
type RangeIterator struct {
	cancel context.CancelFunc
	chunks chan chunkResult

	cur  []KeyValue
	idx  int
	kv   KeyValue
	err  error
	done bool

	closeOnce sync.Once
}

type chunkResult struct {
	kvs []KeyValue
	err error
}

func (t *ReadTransaction) newRangeIterator(ctx context.Context, begin, end KeySelector, opts RangeOptions) *RangeIterator {
	ctx, cancel := context.WithCancel(ctx)
	it := &RangeIterator{
		cancel: cancel,
		chunks: make(chan chunkResult),
		idx:    -1,
	}
	go t.produceRange(ctx, begin, end, opts, it.chunks)
	return it
}

// Next advances to the next pair, blocking if it is in a chunk that has
// not arrived yet. It returns false at the end of the range, at the row
// limit, or on error; check Err after the loop.
func (it *RangeIterator) Next() bool {
	if it.done || it.err != nil {
		return false
	}

	it.idx++
	for it.idx >= len(it.cur) {
		res, ok := <-it.chunks
		if !ok {
			it.done = true
			return false
		}
		if res.err != nil {
			it.err = res.err
			it.done = true
			return false
		}
		it.cur = res.kvs
		it.idx = 0
	}

	it.kv = it.cur[it.idx]
	return true
}

// Key returns the key of the current pair.
func (it *RangeIterator) Key() []byte { return it.kv.Key }

// Value returns the value of the current pair.
func (it *RangeIterator) Value() []byte { return it.kv.Value }

// KeyValue returns the current pair.
func (it *RangeIterator) KeyValue() KeyValue { return it.kv }

// Err returns the first error the stream hit, if any.
func (it *RangeIterator) Err() error { return it.err }

// Slice consumes the rest of the stream into memory.
func (it *RangeIterator) Slice() ([]KeyValue, error) {
	var out []KeyValue
	for it.Next() {
		out = append(out, it.kv)
	}
	return out, it.err
}

// Close releases the in-flight chunk and stops the producer. Safe to call
// more than once and safe to call mid-iteration.
func (it *RangeIterator) Close() {
	it.closeOnce.Do(func() {
		it.cancel()
		// Drain so the producer can observe cancellation and exit.
		for range it.chunks {
		}
		it.done = true
	})
}

// produceRange is the fetch loop feeding a RangeIterator. Every chunk
// shares the transaction's pinned version, so the delivered sequence is
// ordered, gap-free and duplicate-free as if read atomically.
func (t *ReadTransaction) produceRange(ctx context.Context, beginSel, endSel KeySelector, opts RangeOptions, out chan<- chunkResult) {
	defer close(out)

	fail := func(err error) {
		select {
		case out <- chunkResult{err: err}:
		case <-ctx.Done():
		}
	}

	ver, err := t.readVersion(ctx)
	if err != nil {
		fail(err)
		return
	}

	begin, err := t.db.resolveSelector(ctx, beginSel, ver)
	if err != nil {
		fail(err)
		return
	}
	end, err := t.db.resolveSelector(ctx, endSel, ver)
	if err != nil {
		fail(err)
		return
	}

	// Selectors may resolve crossed; that is an empty range, not an error.
	if bytes.Compare(begin, end) >= 0 {
		return
	}

	remaining := opts.Limit
	for iteration := 0; ; iteration++ {
		hint := opts.Mode.chunkHint(iteration, remaining)

		if err := t.db.acquire(ctx); err != nil {
			fail(err)
			return
		}
		chunk, err := t.db.store.RangeFetch(ctx, begin, end, ver, hint, opts.Reverse)
		t.db.release()
		if err != nil {
			fail(err)
			return
		}

		kvs := chunk.KVs
		if remaining > 0 && len(kvs) > remaining {
			kvs = kvs[:remaining]
			chunk.More = false
		}

		// Conflict on what was actually fetched, chunk by chunk, so an
		// abandoned iterator only conflicts on the data it pulled.
		if len(kvs) > 0 {
			lo, hi := kvs[0].Key, kvs[len(kvs)-1].Key
			if opts.Reverse {
				lo, hi = hi, lo
			}
			t.conflicts.AddRange(lo, keySuccessor(hi), t.snapshot)
		}

		if len(kvs) > 0 {
			select {
			case out <- chunkResult{kvs: kvs}:
			case <-ctx.Done():
				return
			}
		}

		if !chunk.More {
			return
		}
		if remaining > 0 {
			remaining -= len(kvs)
			if remaining == 0 {
				return
			}
		}
		if opts.Reverse {
			end = chunk.Continuation
		} else {
			begin = chunk.Continuation
		}
	}
}

// keySuccessor returns the smallest key strictly greater than key.
func keySuccessor(key []byte) []byte {
	next := make([]byte, len(key)+1)
	copy(next, key)
	return next
}
