package manifest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cfstore/internal/integrity"
	"github.com/roach88/cfstore/internal/model"
	"github.com/roach88/cfstore/internal/store"
	"github.com/roach88/cfstore/internal/testutil"
)

func seedAggregateFile(t *testing.T, ctx context.Context, tx *store.Tx) (model.File, model.Location) {
	t.Helper()

	loc, err := tx.CreateLocation(ctx, "archive")
	require.NoError(t, err)
	f, err := tx.InsertFile(ctx, model.File{Name: "tas.cfa", Path: "/data", Size: 7, Type: model.FileAggregate})
	require.NoError(t, err)
	_, err = integrity.AttachFile(ctx, tx, f.ID, loc.ID)
	require.NoError(t, err)
	return f, loc
}

func TestPersist(t *testing.T) {
	s := testutil.NewStore(t)

	testutil.MustTx(t, s, func(ctx context.Context, tx *store.Tx) error {
		cfa, loc := seedAggregateFile(t, ctx, tx)
		desc, _, err := newBuilder(t).Add(monthly("tas"))
		require.NoError(t, err)

		m, created, err := Persist(ctx, tx, cfa, desc)
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, cfa.ID, m.CFAFileID)
		assert.Equal(t, desc.Key, m.Key)
		assert.Equal(t, desc.Bounds, m.Bounds)
		assert.False(t, m.IsQuark)
		require.Len(t, m.Fragments, 2)
		assert.Equal(t, "tas_2000.nc", m.Fragments[0].Name)
		assert.Equal(t, model.FileFragment, m.Fragments[0].Type)

		got, err := tx.GetLocationByID(ctx, loc.ID)
		require.NoError(t, err)
		want := int64(7) + m.Fragments[0].Size + m.Fragments[1].Size
		assert.Equal(t, want, got.Volume)

		again, created, err := Persist(ctx, tx, cfa, desc)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, m.ID, again.ID)
		assert.Equal(t, int64(3), testutil.Count(t, ctx, tx, "files"))
		return nil
	})
}

func TestPersist_CloneSharesFragmentFiles(t *testing.T) {
	s := testutil.NewStore(t)

	testutil.MustTx(t, s, func(ctx context.Context, tx *store.Tx) error {
		cfa, loc := seedAggregateFile(t, ctx, tx)
		b := newBuilder(t)

		first, _, err := b.Add(monthly("tas"))
		require.NoError(t, err)
		other := monthly("tas_1")
		other.coord = "time_1"
		second, _, err := b.Add(other)
		require.NoError(t, err)

		m1, _, err := Persist(ctx, tx, cfa, first)
		require.NoError(t, err)
		before, err := tx.GetLocationByID(ctx, loc.ID)
		require.NoError(t, err)

		m2, created, err := Persist(ctx, tx, cfa, second)
		require.NoError(t, err)
		assert.True(t, created)
		assert.NotEqual(t, m1.ID, m2.ID)
		assert.Equal(t, m1.Fragments, m2.Fragments)

		after, err := tx.GetLocationByID(ctx, loc.ID)
		require.NoError(t, err)
		assert.Equal(t, before.Volume, after.Volume)
		assert.Equal(t, int64(3), testutil.Count(t, ctx, tx, "files"))
		return nil
	})
}

func TestPersist_MismatchedBoundsWritesNothing(t *testing.T) {
	s := testutil.NewStore(t)

	testutil.MustTx(t, s, func(ctx context.Context, tx *store.Tx) error {
		cfa, _ := seedAggregateFile(t, ctx, tx)
		desc := &Description{
			Key:       "broken",
			Bounds:    model.Bounds{{0, 10}},
			Fragments: []FragmentStub{{Name: "a.nc", Path: "/d"}, {Name: "b.nc", Path: "/d"}},
		}

		_, _, err := Persist(ctx, tx, cfa, desc)
		require.Error(t, err)
		assert.True(t, model.IsInvariant(err))
		assert.Equal(t, int64(0), testutil.Count(t, ctx, tx, "manifests"))
		assert.Equal(t, int64(1), testutil.Count(t, ctx, tx, "files"))
		return nil
	})
}

func TestPersist_RequiresAggregateFile(t *testing.T) {
	s := testutil.NewStore(t)

	testutil.MustTx(t, s, func(ctx context.Context, tx *store.Tx) error {
		f, err := tx.InsertFile(ctx, model.File{Name: "plain.nc", Path: "/d", Type: model.FileStandalone})
		require.NoError(t, err)
		desc, _, err := newBuilder(t).Add(monthly("tas"))
		require.NoError(t, err)

		_, _, err = Persist(ctx, tx, f, desc)
		assert.True(t, model.IsInvariant(err))
		return nil
	})
}
