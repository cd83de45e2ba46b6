package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cfstore/internal/model"
	"github.com/roach88/cfstore/internal/store"
)

func TestSeedAggregate(t *testing.T) {
	s := NewStore(t)
	bounds := model.Bounds{{0, 10}, {10, 20}, {20, 30}}

	MustTx(t, s, func(ctx context.Context, tx *store.Tx) error {
		agg := SeedAggregate(t, ctx, tx, "tas", bounds)

		assert.Equal(t, "00000000-0000-7000-8000-000000000001", agg.File.UUID)
		assert.Len(t, agg.Manifest.Fragments, 3)
		assert.Equal(t, bounds, agg.Manifest.Bounds)
		assert.Equal(t, int64(AggregateSize+3*FragmentSize), agg.Location.Volume)
		require.NotNil(t, agg.Variable.InManifestID)
		assert.Equal(t, agg.Manifest.ID, *agg.Variable.InManifestID)
		assert.Equal(t, int64(4), Count(t, ctx, tx, "files"))
		return nil
	})
}

func TestSeedAggregate_SharesLocation(t *testing.T) {
	s := NewStore(t)

	MustTx(t, s, func(ctx context.Context, tx *store.Tx) error {
		a := SeedAggregate(t, ctx, tx, "tas", model.Bounds{{0, 1}})
		b := SeedAggregate(t, ctx, tx, "pr", model.Bounds{{0, 1}})

		assert.Equal(t, a.Location.ID, b.Location.ID)
		assert.Equal(t, int64(2*(AggregateSize+FragmentSize)), b.Location.Volume)
		assert.NotEqual(t, a.Variable.PropertySetID, b.Variable.PropertySetID)
		assert.Equal(t, *a.Variable.TimeDomainID, *b.Variable.TimeDomainID)
		return nil
	})
}
