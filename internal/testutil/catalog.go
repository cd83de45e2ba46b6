package testutil

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/cfstore/internal/model"
	"github.com/roach88/cfstore/internal/registry"
	"github.com/roach88/cfstore/internal/store"
)

// Sizes used by SeedAggregate.
const (
	AggregateSize = 10
	FragmentSize  = 100
)

// NewStore opens an empty catalog in a temp directory with deterministic
// UUIDs. The store is closed when the test ends.
func NewStore(t testing.TB) *store.Store {
	t.Helper()

	s, err := store.Open(filepath.Join(t.TempDir(), "catalog.db"),
		store.WithUUIDGenerator(model.NewSequentialGenerator()))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// MustTx runs fn in a transaction and fails the test if it returns an error.
func MustTx(t testing.TB, s *store.Store, fn func(ctx context.Context, tx *store.Tx) error) {
	t.Helper()

	ctx := context.Background()
	require.NoError(t, s.InTx(ctx, func(tx *store.Tx) error {
		return fn(ctx, tx)
	}))
}

// Aggregate is a seeded aggregation file with one variable.
type Aggregate struct {
	Location model.Location
	File     model.File
	Manifest model.Manifest
	Variable model.Variable
}

// SeedAggregate creates (or reuses) location "archive" and adds an
// aggregation file named name with one variable whose manifest has one
// fragment per bounds row. Fragment files are named name_01.nc, name_02.nc,
// ... under /data/fragments and are FragmentSize bytes each.
func SeedAggregate(t testing.TB, ctx context.Context, tx *store.Tx, name string, bounds model.Bounds) Aggregate {
	t.Helper()

	loc, err := tx.GetLocation(ctx, "archive")
	if model.IsNotFound(err) {
		loc, err = tx.CreateLocation(ctx, "archive")
	}
	require.NoError(t, err)

	file, err := tx.InsertFile(ctx, model.File{
		Name: name + ".cfa",
		Path: "/data/aggregates",
		Size: AggregateSize,
		Type: model.FileAggregate,
	})
	require.NoError(t, err)
	attach(t, ctx, tx, file, loc)

	fragmentIDs := make([]int64, len(bounds))
	for i := range bounds {
		frag, err := tx.InsertFile(ctx, model.File{
			Name: fmt.Sprintf("%s_%02d.nc", name, i+1),
			Path: "/data/fragments",
			Size: FragmentSize,
			Type: model.FileFragment,
		})
		require.NoError(t, err)
		attach(t, ctx, tx, frag, loc)
		fragmentIDs[i] = frag.ID
	}

	m, _, err := tx.InsertManifest(ctx, model.Manifest{
		CFAFileID: file.ID,
		Key:       "manifest-" + name,
		Bounds:    bounds,
		Units:     "days since 2000-01-01",
		Calendar:  "standard",
	}, fragmentIDs)
	require.NoError(t, err)

	h, err := model.NewHasher(model.HashSHA256)
	require.NoError(t, err)
	props, _, err := registry.New(h).GetOrCreatePropertySet(ctx, tx, []model.Property{
		{Key: "standard_name", Value: name},
	})
	require.NoError(t, err)

	td := model.TimeDomain{Units: m.Units, Calendar: m.Calendar}
	if len(bounds) > 0 {
		td.Starting, td.Ending = bounds.Outer()
	}
	td, _, err = tx.GetOrCreateTimeDomain(ctx, td)
	require.NoError(t, err)

	v, err := tx.InsertVariable(ctx, model.Variable{
		PropertySetID: props.ID,
		TimeDomainID:  &td.ID,
		InFileID:      file.ID,
		InManifestID:  &m.ID,
	})
	require.NoError(t, err)

	loc, err = tx.GetLocationByID(ctx, loc.ID)
	require.NoError(t, err)

	return Aggregate{Location: loc, File: file, Manifest: m, Variable: v}
}

func attach(t testing.TB, ctx context.Context, tx *store.Tx, f model.File, loc model.Location) {
	t.Helper()

	_, err := tx.LinkFileLocation(ctx, f.ID, loc.ID)
	require.NoError(t, err)
	require.NoError(t, tx.AdjustLocationVolume(ctx, loc.ID, f.Size))
}

// Count returns the number of rows in table.
func Count(t testing.TB, ctx context.Context, tx *store.Tx, table string) int64 {
	t.Helper()

	n, err := tx.CountRows(ctx, table)
	require.NoError(t, err)
	return n
}
