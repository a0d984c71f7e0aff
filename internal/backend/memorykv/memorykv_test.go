package memorykv_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MikeMcMahon/foundationdb/internal/backend"
	"github.com/MikeMcMahon/foundationdb/internal/backend/memorykv"
	"github.com/MikeMcMahon/foundationdb/internal/testutil/assert"
)

func kv(k, v string) backend.KeyValue {
	return backend.KeyValue{Key: []byte(k), Value: []byte(v)}
}

func seed(kvs ...backend.KeyValue) *memorykv.Store {
	s := memorykv.NewStore()
	for _, p := range kvs {
		s.Apply(p)
	}
	return s
}

func TestPointRead(t *testing.T) {
	ctx := context.Background()

	t.Run("Should return the value at the requested version", func(t *testing.T) {
		s := memorykv.NewStore()
		v1 := s.Apply(kv("a", "1"))
		v2 := s.Apply(kv("a", "2"))

		got, err := s.PointRead(ctx, []byte("a"), v1)
		assert.NoError(t, err)
		require.Equal(t, []byte("1"), got)

		got, err = s.PointRead(ctx, []byte("a"), v2)
		assert.NoError(t, err)
		require.Equal(t, []byte("2"), got)
	})

	t.Run("Should fail if not found", func(t *testing.T) {
		s := seed(kv("a", "1"))

		_, err := s.PointRead(ctx, []byte("b"), s.CurrentVersion())
		assert.ErrorIs(t, err, backend.ErrKeyNotFound)
	})

	t.Run("Should not see keys committed after the version", func(t *testing.T) {
		s := memorykv.NewStore()
		v1 := s.Apply(kv("a", "1"))
		s.Apply(kv("b", "2"))

		_, err := s.PointRead(ctx, []byte("b"), v1)
		assert.ErrorIs(t, err, backend.ErrKeyNotFound)
	})

	t.Run("Should not see deleted keys", func(t *testing.T) {
		s := seed(kv("a", "1"))
		v := s.Remove([]byte("a"))

		_, err := s.PointRead(ctx, []byte("a"), v)
		assert.ErrorIs(t, err, backend.ErrKeyNotFound)
	})

	t.Run("Should fail past the retention window", func(t *testing.T) {
		s := memorykv.NewStore()
		v1 := s.Apply(kv("a", "1"))
		s.SetRetention(2)
		for i := 0; i < 5; i++ {
			s.Apply(kv("a", "x"))
		}

		_, err := s.PointRead(ctx, []byte("a"), v1)
		assert.ErrorIs(t, err, backend.ErrPastVersion)
	})

	t.Run("Should fail when unavailable", func(t *testing.T) {
		s := seed(kv("a", "1"))
		s.SetUnavailable(true)

		_, err := s.PointRead(ctx, []byte("a"), s.CurrentVersion())
		assert.ErrorIs(t, err, backend.ErrUnavailable)

		_, err = s.FetchCurrentVersion(ctx)
		assert.ErrorIs(t, err, backend.ErrUnavailable)
	})
}

func TestResolveSelector(t *testing.T) {
	ctx := context.Background()
	s := seed(kv("a", "1"), kv("b", "2"), kv("c", "3"))
	ver := s.CurrentVersion()

	resolve := func(anchor string, orEqual bool, offset int) ([]byte, int, error) {
		return s.ResolveSelector(ctx, []byte(anchor), orEqual, offset, ver)
	}

	t.Run("Base positions", func(t *testing.T) {
		// last key <= b
		key, rem, err := resolve("b", true, 0)
		assert.NoError(t, err)
		require.Zero(t, rem)
		require.Equal(t, []byte("b"), key)

		// last key < b
		key, _, err = resolve("b", false, 0)
		assert.NoError(t, err)
		require.Equal(t, []byte("a"), key)

		// first key >= b
		key, _, err = resolve("b", false, 1)
		assert.NoError(t, err)
		require.Equal(t, []byte("b"), key)

		// first key > b
		key, _, err = resolve("b", true, 1)
		assert.NoError(t, err)
		require.Equal(t, []byte("c"), key)
	})

	t.Run("Boundary clamping", func(t *testing.T) {
		key, _, err := resolve("a", false, 0)
		assert.NoError(t, err)
		require.Equal(t, backend.MinKey, key)

		key, _, err = resolve("c", true, 1)
		assert.NoError(t, err)
		require.Equal(t, backend.MaxKey, key)
	})

	t.Run("Out of range", func(t *testing.T) {
		_, _, err := resolve("a", false, -1)
		assert.ErrorIs(t, err, backend.ErrKeyOutOfRange)

		_, _, err = resolve("c", true, 2)
		assert.ErrorIs(t, err, backend.ErrKeyOutOfRange)
	})

	t.Run("Partial progress within the step cap", func(t *testing.T) {
		s.SetSelectorStep(1)
		defer s.SetSelectorStep(0)

		key, rem, err := resolve("a", true, 2)
		assert.NoError(t, err)
		require.Equal(t, []byte("b"), key)
		require.Equal(t, 1, rem)

		// Follow-up query anchored on the partial result.
		key, rem, err = s.ResolveSelector(ctx, key, true, rem, ver)
		assert.NoError(t, err)
		require.Zero(t, rem)
		require.Equal(t, []byte("c"), key)
	})
}

func TestRangeFetch(t *testing.T) {
	ctx := context.Background()
	s := seed(kv("a", "1"), kv("b", "2"), kv("c", "3"), kv("d", "4"))
	ver := s.CurrentVersion()

	t.Run("Forward chunked", func(t *testing.T) {
		chunk, err := s.RangeFetch(ctx, []byte("a"), []byte("e"), ver, 3, false)
		assert.NoError(t, err)
		require.Len(t, chunk.KVs, 3)
		require.Equal(t, []byte("a"), chunk.KVs[0].Key)
		require.Equal(t, []byte("c"), chunk.KVs[2].Key)
		require.True(t, chunk.More)

		chunk, err = s.RangeFetch(ctx, chunk.Continuation, []byte("e"), ver, 3, false)
		assert.NoError(t, err)
		require.Len(t, chunk.KVs, 1)
		require.Equal(t, []byte("d"), chunk.KVs[0].Key)
		require.False(t, chunk.More)
	})

	t.Run("Reverse chunked", func(t *testing.T) {
		chunk, err := s.RangeFetch(ctx, []byte("a"), []byte("e"), ver, 3, true)
		assert.NoError(t, err)
		require.Len(t, chunk.KVs, 3)
		require.Equal(t, []byte("d"), chunk.KVs[0].Key)
		require.Equal(t, []byte("b"), chunk.KVs[2].Key)
		require.True(t, chunk.More)

		chunk, err = s.RangeFetch(ctx, []byte("a"), chunk.Continuation, ver, 3, true)
		assert.NoError(t, err)
		require.Len(t, chunk.KVs, 1)
		require.Equal(t, []byte("a"), chunk.KVs[0].Key)
		require.False(t, chunk.More)
	})

	t.Run("Empty range", func(t *testing.T) {
		chunk, err := s.RangeFetch(ctx, []byte("x"), []byte("z"), ver, 10, false)
		assert.NoError(t, err)
		require.Empty(t, chunk.KVs)
		require.False(t, chunk.More)
	})

	t.Run("Old version hides later writes", func(t *testing.T) {
		s2 := memorykv.NewStore()
		v1 := s2.Apply(kv("a", "1"))
		s2.Apply(kv("b", "2"))

		chunk, err := s2.RangeFetch(ctx, []byte("a"), []byte("z"), v1, 10, false)
		assert.NoError(t, err)
		require.Len(t, chunk.KVs, 1)
		require.Equal(t, []byte("a"), chunk.KVs[0].Key)
	})
}
