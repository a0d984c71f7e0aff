package foundationdb_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	fdb "github.com/MikeMcMahon/foundationdb"
	"github.com/MikeMcMahon/foundationdb/internal/testutil"
	"github.com/MikeMcMahon/foundationdb/internal/testutil/assert"
)

func seededDB(t testing.TB, pairs ...fdb.KeyValue) *fdb.Database {
	t.Helper()
	store := testutil.NewMemoryStore(t, pairs...)
	return fdb.NewDatabase(store, store, nil)
}

func TestGet(t *testing.T) {
	ctx := context.Background()

	t.Run("Should return the value", func(t *testing.T) {
		db := seededDB(t, testutil.KV("foo", "FOO"))
		rtx := db.ReadTransaction()

		v, err := rtx.Get(ctx, []byte("foo"))
		assert.NoError(t, err)
		require.Equal(t, []byte("FOO"), v)
	})

	t.Run("Absent key is nil, not an error", func(t *testing.T) {
		db := seededDB(t, testutil.KV("foo", "FOO"))
		rtx := db.ReadTransaction()

		v, err := rtx.Get(ctx, []byte("bar"))
		assert.NoError(t, err)
		require.Nil(t, v)
	})

	t.Run("Should conflict on the key even when absent", func(t *testing.T) {
		db := seededDB(t)
		rtx := db.ReadTransaction()

		_, err := rtx.Get(ctx, []byte("ghost"))
		assert.NoError(t, err)

		ranges := rtx.ReadConflictRanges()
		require.Len(t, ranges, 1)
		require.True(t, ranges[0].Contains([]byte("ghost")))
	})

	t.Run("Should surface backend unavailability", func(t *testing.T) {
		store := testutil.NewMemoryStore(t, testutil.KV("a", "1"))
		db := fdb.NewDatabase(store, store, nil)
		store.SetUnavailable(true)

		rtx := db.ReadTransaction()
		_, err := rtx.Get(ctx, []byte("a"))
		assert.ErrorIs(t, err, fdb.ErrBackendUnavailable)
	})
}

func TestReadVersion(t *testing.T) {
	ctx := context.Background()

	t.Run("Should be idempotent", func(t *testing.T) {
		store := testutil.NewMemoryStore(t, testutil.KV("a", "1"))
		db := fdb.NewDatabase(store, store, nil)
		rtx := db.ReadTransaction()

		v1, err := rtx.GetReadVersion(ctx)
		assert.NoError(t, err)

		// Later commits must not move an already-pinned version.
		store.Apply(testutil.KV("b", "2"))

		v2, err := rtx.GetReadVersion(ctx)
		assert.NoError(t, err)
		require.Equal(t, v1, v2)
	})

	t.Run("Reads run at the pinned version", func(t *testing.T) {
		store := testutil.NewMemoryStore(t, testutil.KV("a", "old"))
		db := fdb.NewDatabase(store, store, nil)

		rtx := db.ReadTransaction()
		_, err := rtx.GetReadVersion(ctx)
		assert.NoError(t, err)

		store.Apply(testutil.KV("a", "new"))

		v, err := rtx.Get(ctx, []byte("a"))
		assert.NoError(t, err)
		require.Equal(t, []byte("old"), v)
	})

	t.Run("SetReadVersion overrides without contacting the source", func(t *testing.T) {
		store := testutil.NewMemoryStore(t)
		v1 := store.Apply(testutil.KV("a", "old"))
		store.Apply(testutil.KV("a", "new"))
		db := fdb.NewDatabase(store, store, nil)

		rtx := db.ReadTransaction()
		rtx.SetReadVersion(v1)

		v, err := rtx.Get(ctx, []byte("a"))
		assert.NoError(t, err)
		require.Equal(t, []byte("old"), v)
	})

	t.Run("A version set too far in the past surfaces as ErrPastVersion", func(t *testing.T) {
		store := testutil.NewMemoryStore(t)
		v1 := store.Apply(testutil.KV("a", "1"))
		store.SetRetention(1)
		for i := 0; i < 5; i++ {
			store.Apply(testutil.KV("a", "x"))
		}
		db := fdb.NewDatabase(store, store, nil)

		rtx := db.ReadTransaction()
		rtx.SetReadVersion(v1)

		_, err := rtx.Get(ctx, []byte("a"))
		assert.ErrorIs(t, err, fdb.ErrPastVersion)
	})
}

func TestSnapshotIsolation(t *testing.T) {
	ctx := context.Background()

	t.Run("Snapshot reads register no conflict ranges", func(t *testing.T) {
		db := seededDB(t, testutil.KV("a", "1"), testutil.KV("b", "2"))
		rtx := db.ReadTransaction()
		snap := rtx.Snapshot()

		require.False(t, rtx.IsSnapshot())
		require.True(t, snap.IsSnapshot())

		_, err := snap.Get(ctx, []byte("a"))
		assert.NoError(t, err)
		_, err = snap.GetRangeAll(ctx, fdb.KeyRange{Begin: []byte("a"), End: []byte("z")}, fdb.RowLimitUnlimited)
		assert.NoError(t, err)

		require.Empty(t, rtx.ReadConflictRanges())

		// The same reads through the transaction itself do register.
		_, err = rtx.Get(ctx, []byte("a"))
		assert.NoError(t, err)
		require.NotEmpty(t, rtx.ReadConflictRanges())
	})

	t.Run("Snapshot of a snapshot is the same view", func(t *testing.T) {
		db := seededDB(t)
		snap := db.ReadTransaction().Snapshot()
		require.Same(t, snap, snap.Snapshot())
	})

	t.Run("Views share the read version", func(t *testing.T) {
		store := testutil.NewMemoryStore(t, testutil.KV("a", "1"))
		db := fdb.NewDatabase(store, store, nil)
		rtx := db.ReadTransaction()
		snap := rtx.Snapshot()

		v1, err := snap.GetReadVersion(ctx)
		assert.NoError(t, err)

		store.Apply(testutil.KV("b", "2"))

		v2, err := rtx.GetReadVersion(ctx)
		assert.NoError(t, err)
		require.Equal(t, v1, v2)
	})
}

func TestConflictRegistration(t *testing.T) {
	t.Run("AddReadConflictKey", func(t *testing.T) {
		db := seededDB(t)
		rtx := db.ReadTransaction()

		ok := rtx.AddReadConflictKey([]byte("k"))
		require.True(t, ok)

		ranges := rtx.ReadConflictRanges()
		require.Len(t, ranges, 1)
		require.True(t, ranges[0].Contains([]byte("k")))
		require.False(t, ranges[0].Contains([]byte("k\x00")))

		require.False(t, rtx.Snapshot().AddReadConflictKey([]byte("k2")))
		require.Len(t, rtx.ReadConflictRanges(), 1)
	})

	t.Run("AddReadConflictRange", func(t *testing.T) {
		db := seededDB(t)
		rtx := db.ReadTransaction()

		ok, err := rtx.AddReadConflictRange([]byte("a"), []byte("b"))
		assert.NoError(t, err)
		require.True(t, ok)

		// Empty range is a no-op.
		ok, err = rtx.AddReadConflictRange([]byte("a"), []byte("a"))
		assert.NoError(t, err)
		require.False(t, ok)

		// Inverted range fails fast.
		_, err = rtx.AddReadConflictRange([]byte("b"), []byte("a"))
		assert.ErrorIs(t, err, fdb.ErrInvalidRange)

		ok, err = rtx.Snapshot().AddReadConflictRange([]byte("c"), []byte("d"))
		assert.NoError(t, err)
		require.False(t, ok)
	})
}

func TestGetKey(t *testing.T) {
	ctx := context.Background()
	db := seededDB(t, testutil.KV("a", "1"), testutil.KV("b", "2"), testutil.KV("c", "3"))

	t.Run("Should resolve selectors", func(t *testing.T) {
		rtx := db.ReadTransaction()

		key, err := rtx.GetKey(ctx, fdb.FirstGreaterThan([]byte("a")))
		assert.NoError(t, err)
		require.Equal(t, []byte("b"), key)

		key, err = rtx.GetKey(ctx, fdb.LastLessThan([]byte("c")))
		assert.NoError(t, err)
		require.Equal(t, []byte("b"), key)

		key, err = rtx.GetKey(ctx, fdb.FirstGreaterOrEqual([]byte("b")).Add(1))
		assert.NoError(t, err)
		require.Equal(t, []byte("c"), key)
	})

	t.Run("Conflict covers the resolved key, not the anchor", func(t *testing.T) {
		rtx := db.ReadTransaction()

		_, err := rtx.GetKey(ctx, fdb.FirstGreaterThan([]byte("a")))
		assert.NoError(t, err)

		ranges := rtx.ReadConflictRanges()
		require.Len(t, ranges, 1)
		require.True(t, ranges[0].Contains([]byte("b")))
		require.False(t, ranges[0].Contains([]byte("a")))
	})

	t.Run("Resolution past the boundary is out of range", func(t *testing.T) {
		rtx := db.ReadTransaction()

		_, err := rtx.GetKey(ctx, fdb.FirstGreaterThan([]byte("c")).Add(1))
		assert.ErrorIs(t, err, fdb.ErrKeyOutOfRange)
	})
}
