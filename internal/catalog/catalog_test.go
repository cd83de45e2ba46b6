package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	prom "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cfstore/internal/manifest"
	"github.com/roach88/cfstore/internal/metrics"
	"github.com/roach88/cfstore/internal/model"
	"github.com/roach88/cfstore/internal/store"
	"github.com/roach88/cfstore/internal/testutil"
)

const fragmentBytes = 100

var decade = model.Bounds{{0, 10}, {10, 20}, {20, 30}, {30, 40}}

// stubField is an aggregated field with one time record per fragment
// unless counts says otherwise.
type stubField struct {
	id      string
	files   []string
	source  string
	records model.Bounds
	counts  []int
	lie     bool
}

func (f *stubField) Identity() string             { return f.id }
func (f *stubField) Filenames() ([]string, error) { return f.files, nil }
func (f *stubField) TimeUnits() (string, string)  { return "days since 2000-01-01", "standard" }

func (f *stubField) TimeCoordinateName() (string, bool) {
	return f.source, f.source != ""
}

func (f *stubField) TimeBounds() (model.Bounds, bool, error) {
	return f.records, f.records != nil, nil
}

func (f *stubField) FragmentCounts() ([]int, bool) {
	return f.counts, f.counts != nil
}

// Subspace keeps the fragments whose records touch [start, end]. A lying
// field drops the last of them.
func (f *stubField) Subspace(start, end float64) (manifest.Field, error) {
	var files []string
	rec := 0
	for i, n := range f.counts {
		lo, hi := f.records[rec][0], f.records[rec+n-1][1]
		rec += n
		if hi >= start && lo <= end {
			files = append(files, f.files[i])
		}
	}
	if f.lie && len(files) > 1 {
		files = files[:len(files)-1]
	}
	return &stubField{id: f.id, files: files, source: f.source}, nil
}

func newField(name string, bounds model.Bounds) *stubField {
	files := make([]string, len(bounds))
	counts := make([]int, len(bounds))
	for i := range bounds {
		files[i] = "/data/fragments/" + name + "_" + string(rune('a'+i)) + ".nc"
		counts[i] = 1
	}
	return &stubField{id: name, files: files, source: "time", records: bounds, counts: counts}
}

type fixture struct {
	cat     *Catalog
	store   *store.Store
	metrics *metrics.Metrics
}

func newFixture(t *testing.T, verify bool) fixture {
	t.Helper()
	s := testutil.NewStore(t)
	m := metrics.NewMetrics(prometheus.NewRegistry())
	cat, err := New(Config{
		Store:         s,
		HashAlgorithm: model.HashSHA256,
		FragmentSize:  func(string) (int64, error) { return fragmentBytes, nil },
		Metrics:       m,
		VerifyQuarks:  verify,
	})
	require.NoError(t, err)
	_, err = cat.CreateLocation(context.Background(), "archive")
	require.NoError(t, err)
	return fixture{cat: cat, store: s, metrics: m}
}

func aggregateRequest(name string, field *stubField) IngestRequest {
	return IngestRequest{
		File: FileProps{
			Name:      name + ".cfa",
			Path:      "/data/aggregates",
			Size:      10,
			Type:      model.FileAggregate,
			Locations: []string{"archive"},
		},
		Collections: []string{"cmip"},
		Variables: []VariableSpec{{
			Properties:  map[string]any{"standard_name": name, "units": "K", "comment": "monthly"},
			CellMethods: []model.CellMethod{{Axis: "time", Method: "mean"}},
			Field:       field,
		}},
	}
}

func (f fixture) count(t *testing.T, table string) int64 {
	t.Helper()
	var n int64
	testutil.MustTx(t, f.store, func(ctx context.Context, tx *store.Tx) error {
		var err error
		n, err = tx.CountRows(ctx, table)
		return err
	})
	return n
}

func (f fixture) volume(t *testing.T) int64 {
	t.Helper()
	loc, err := f.cat.GetLocation(context.Background(), "archive")
	require.NoError(t, err)
	return loc.Volume
}

func TestNew(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)

	_, err = New(Config{Store: testutil.NewStore(t), HashAlgorithm: "crc32"})
	assert.Error(t, err)

	cat, err := New(Config{Store: testutil.NewStore(t)})
	require.NoError(t, err)
	assert.Equal(t, model.HashMD5, cat.Hasher().Algorithm())
}

func TestLocations(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	_, err := f.cat.CreateLocation(ctx, "archive")
	assert.True(t, model.IsDuplicate(err))

	_, err = f.cat.CreateLocation(ctx, "scratch")
	require.NoError(t, err)
	locs, err := f.cat.ListLocations(ctx)
	require.NoError(t, err)
	require.Len(t, locs, 2)
	assert.Equal(t, "archive", locs[0].Name)

	file, err := f.cat.CreateFile(ctx, FileProps{Name: "a.nc", Path: "/data", Size: 7, Locations: []string{"scratch"}})
	require.NoError(t, err)
	assert.Equal(t, model.FileStandalone, file.Type)

	err = f.cat.DeleteLocation(ctx, "scratch")
	assert.True(t, model.IsInUse(err))

	detached, err := f.cat.DetachFile(ctx, file.ID, "scratch")
	require.NoError(t, err)
	assert.True(t, detached)
	require.NoError(t, f.cat.DeleteLocation(ctx, "scratch"))
	_, err = f.cat.GetLocation(ctx, "scratch")
	assert.True(t, model.IsNotFound(err))
}

func TestCreateFile_UnknownLocationRollsBack(t *testing.T) {
	f := newFixture(t, false)

	_, err := f.cat.CreateFile(context.Background(), FileProps{
		Name: "a.nc", Path: "/data", Size: 7, Locations: []string{"archive", "nowhere"},
	})
	assert.True(t, model.IsNotFound(err))
	assert.Zero(t, f.count(t, "files"))
	assert.Zero(t, f.volume(t))
}

func TestIngestFile_Aggregate(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	res, err := f.cat.IngestFile(ctx, aggregateRequest("tas", newField("tas", decade)))
	require.NoError(t, err)

	assert.Equal(t, model.FileAggregate, res.File.Type)
	require.Len(t, res.Manifests, 1)
	m := res.Manifests[0]
	assert.Equal(t, decade, m.Bounds)
	require.Len(t, m.Fragments, 4)
	assert.Equal(t, "tas_a.nc", m.Fragments[0].Name)
	assert.Equal(t, "/data/fragments", m.Fragments[0].Path)

	require.Len(t, res.Variables, 1)
	v := res.Variables[0]
	assert.Equal(t, map[string]any{"comment": "monthly"}, v.Proxied)
	require.NotNil(t, v.InManifestID)
	assert.Equal(t, m.ID, *v.InManifestID)
	require.NotNil(t, v.CellMethodSetID)

	ps, err := f.cat.VariableProperties(ctx, v.ID)
	require.NoError(t, err)
	name, _ := ps.Get("standard_name")
	assert.Equal(t, "tas", name)

	var entities []string
	for _, e := range res.Created {
		entities = append(entities, e.Entity)
	}
	assert.Equal(t, []string{"file", "manifest", "variable", "collection"}, entities)

	// Aggregation file plus four fragments, all at the archive.
	assert.Equal(t, int64(10+4*fragmentBytes), f.volume(t))

	members, err := f.cat.CollectionVariables(ctx, "cmip")
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, v.ID, members[0].ID)

	testutil.MustTx(t, f.store, func(ctx context.Context, tx *store.Tx) error {
		td, err := tx.GetTimeDomain(ctx, *v.TimeDomainID)
		require.NoError(t, err)
		assert.Equal(t, 0.0, td.Starting)
		assert.Equal(t, 40.0, td.Ending)
		assert.Equal(t, "standard", td.Calendar)
		return nil
	})

	assert.Equal(t, 1.0, prom.ToFloat64(f.metrics.EntitiesCreatedTotal.WithLabelValues("file")))
	assert.Equal(t, 1.0, prom.ToFloat64(f.metrics.EntitiesCreatedTotal.WithLabelValues("variable")))
	assert.Equal(t, 0.0, prom.ToFloat64(f.metrics.UnitOfWorkRollbacksTotal))
}

func TestIngestFile_SharedFragmentsReuseManifest(t *testing.T) {
	f := newFixture(t, false)

	field := newField("tas", decade)
	req := aggregateRequest("tas", field)
	req.Variables = append(req.Variables, VariableSpec{
		Properties: map[string]any{"standard_name": "tas_anomaly"},
		Field:      field,
	})

	res, err := f.cat.IngestFile(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, res.Manifests, 1)
	require.Len(t, res.Variables, 2)
	assert.Equal(t, *res.Variables[0].InManifestID, *res.Variables[1].InManifestID)
	assert.Equal(t, int64(1), f.count(t, "manifests"))
	assert.Equal(t, int64(5), f.count(t, "files"))
}

func TestIngestFile_RollsBackEverything(t *testing.T) {
	f := newFixture(t, false)

	req := aggregateRequest("tas", newField("tas", decade))
	req.Variables = append(req.Variables, VariableSpec{
		Properties: map[string]any{"units": "K"},
	})

	_, err := f.cat.IngestFile(context.Background(), req)
	require.Error(t, err)

	var uow *UnitOfWorkError
	require.True(t, errors.As(err, &uow))
	assert.True(t, model.IsInvariant(err))
	assert.Equal(t, 5, uow.Step)
	assert.Equal(t, "variable <unnamed>", uow.Payload)
	assert.Contains(t, err.Error(), "step 5 (variable <unnamed>)")

	var undone []string
	for _, e := range uow.Undone {
		undone = append(undone, e.Entity)
	}
	assert.Equal(t, []string{"variable", "manifest", "file"}, undone)

	for _, table := range []string{"files", "manifests", "variables", "property_sets", "collections"} {
		assert.Zero(t, f.count(t, table), table)
	}
	assert.Zero(t, f.volume(t))
	assert.Equal(t, 1.0, prom.ToFloat64(f.metrics.UnitOfWorkRollbacksTotal))
	assert.Equal(t, 0.0, prom.ToFloat64(f.metrics.EntitiesCreatedTotal.WithLabelValues("file")))
}

func TestIngestFile_StandaloneCannotCarryAggregation(t *testing.T) {
	f := newFixture(t, false)

	req := aggregateRequest("tas", newField("tas", decade))
	req.File.Type = model.FileStandalone

	_, err := f.cat.IngestFile(context.Background(), req)
	var uow *UnitOfWorkError
	require.True(t, errors.As(err, &uow))
	assert.Equal(t, "manifest of tas", uow.Payload)
	assert.True(t, model.IsInvariant(err))
}

func TestVariables_GetOrCreateAndStrictCreate(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	file, err := f.cat.CreateFile(ctx, FileProps{Name: "a.nc", Path: "/data", Size: 7, Locations: []string{"archive"}})
	require.NoError(t, err)

	props := VariableProps{
		Properties:    map[string]any{"long_name": "surface temperature", "history": "v1"},
		SpatialDomain: &model.SpatialDomain{Name: "N96", Size: 27648},
		TimeDomain:    &model.TimeDomain{Units: "days since 1850-01-01", Starting: 0, Ending: 365},
		FileID:        file.ID,
	}
	v, created, err := f.cat.GetOrCreateVariable(ctx, props)
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, model.ValidUUID(v.UUID))

	again, created, err := f.cat.GetOrCreateVariable(ctx, props)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, v.ID, again.ID)

	_, err = f.cat.CreateVariable(ctx, props)
	assert.True(t, model.IsDuplicate(err))

	props.Properties["history"] = "v2"
	other, err := f.cat.CreateVariable(ctx, props)
	require.NoError(t, err)
	assert.NotEqual(t, v.ID, other.ID)
	assert.Equal(t, v.PropertySetID, other.PropertySetID)
	assert.Equal(t, v.SpatialDomainID, other.SpatialDomainID)

	_, _, err = f.cat.GetOrCreateVariable(ctx, VariableProps{Properties: map[string]any{"units": "K"}, FileID: file.ID})
	assert.True(t, model.IsInvariant(err))

	_, _, err = f.cat.GetOrCreateVariable(ctx, VariableProps{Properties: map[string]any{"identity": "x"}, FileID: 999})
	assert.True(t, model.IsNotFound(err))
}

func TestVariables_ManifestMustBelongToFile(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	res, err := f.cat.IngestFile(ctx, aggregateRequest("tas", newField("tas", decade)))
	require.NoError(t, err)
	other, err := f.cat.CreateFile(ctx, FileProps{Name: "b.nc", Path: "/data", Type: model.FileStandalone})
	require.NoError(t, err)

	_, _, err = f.cat.GetOrCreateVariable(ctx, VariableProps{
		Properties: map[string]any{"standard_name": "tas"},
		FileID:     other.ID,
		ManifestID: model.Int64Ptr(res.Manifests[0].ID),
	})
	assert.True(t, model.IsInvariant(err))
}

func TestAddManifest(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	cfa, err := f.cat.CreateFile(ctx, FileProps{
		Name: "pr.cfa", Path: "/data", Size: 10, Type: model.FileAggregate, Locations: []string{"archive"},
	})
	require.NoError(t, err)

	stubs := []manifest.FragmentStub{
		{Name: "pr_1.nc", Path: "/data/fragments", Size: 5},
		{Name: "pr_2.nc", Path: "/data/fragments", Size: 5},
	}

	_, _, err = f.cat.AddManifest(ctx, ManifestProps{
		FileID: cfa.ID, Fragments: stubs, Bounds: model.Bounds{{0, 10}}, BoundsSource: "time",
	})
	assert.True(t, model.IsInvariant(err))
	assert.Zero(t, f.count(t, "manifests"))
	assert.Equal(t, int64(1), f.count(t, "files"))

	props := ManifestProps{
		FileID: cfa.ID, Fragments: stubs, Bounds: model.Bounds{{0, 10}, {10, 20}},
		Units: "days since 2000-01-01", BoundsSource: "time",
	}
	m, created, err := f.cat.AddManifest(ctx, props)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(20), f.volume(t))

	again, created, err := f.cat.AddManifest(ctx, props)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, m.ID, again.ID)

	got, err := f.cat.GetManifest(ctx, m.ID)
	require.NoError(t, err)
	assert.Len(t, got.Fragments, 2)

	require.NoError(t, f.cat.DeleteManifest(ctx, m.ID))
	assert.Equal(t, int64(10), f.volume(t))
	assert.Equal(t, int64(1), f.count(t, "files"))
}

func TestMakeQuark_Scenario(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	res, err := f.cat.IngestFile(ctx, aggregateRequest("tas", newField("tas", decade)))
	require.NoError(t, err)
	src := res.Variables[0]
	original := res.Manifests[0]

	first, err := f.cat.MakeQuark(ctx, src.ID, 12, 28)
	require.NoError(t, err)
	assert.True(t, first.VariableCreated)
	assert.True(t, first.ManifestCreated)
	assert.Len(t, first.Manifest.Fragments, 2)
	assert.Equal(t, model.Bounds{{10, 20}, {20, 30}}, first.Manifest.Bounds)

	second, err := f.cat.MakeQuark(ctx, src.ID, 12, 28)
	require.NoError(t, err)
	assert.False(t, second.VariableCreated)
	assert.False(t, second.ManifestCreated)
	assert.Equal(t, first.Variable.ID, second.Variable.ID)

	full, err := f.cat.MakeQuark(ctx, src.ID, 0, 40)
	require.NoError(t, err)
	assert.Equal(t, original.ID, full.Manifest.ID)
	assert.Equal(t, src.ID, full.Variable.ID)
	assert.False(t, full.ManifestCreated)

	manifests := f.count(t, "manifests")
	_, err = f.cat.MakeQuark(ctx, src.ID, -5, 40)
	assert.True(t, model.IsOutOfRange(err))
	assert.Equal(t, manifests, f.count(t, "manifests"))

	mq, err := f.cat.MakeManifestQuark(ctx, original.ID, 12, 28)
	require.NoError(t, err)
	assert.Equal(t, first.Manifest.ID, mq.Manifest.ID)
	assert.False(t, mq.ManifestCreated)
}

func TestMakeQuark_Verification(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	field := newField("tas", decade)
	res, err := f.cat.IngestFile(ctx, aggregateRequest("tas", field))
	require.NoError(t, err)
	src := res.Variables[0]

	_, err = f.cat.MakeQuark(ctx, src.ID, 12, 28, WithField(&stubField{
		id: field.id, files: field.files, source: field.source,
		records: field.records, counts: field.counts, lie: true,
	}))
	assert.True(t, model.IsInvariant(err))
	assert.Equal(t, int64(1), f.count(t, "manifests"))

	q, err := f.cat.MakeQuark(ctx, src.ID, 12, 28, WithField(field))
	require.NoError(t, err)
	assert.True(t, q.ManifestCreated)

	require.NoError(t, f.cat.VerifyQuark(ctx, field, res.Manifests[0].ID, 12, 28))
	require.NoError(t, f.cat.VerifyQuark(ctx, field, res.Manifests[0].ID, 0, 40))
}

func TestMakeQuark_FailedVerificationCountsNothing(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	field := newField("tas", decade)
	res, err := f.cat.IngestFile(ctx, aggregateRequest("tas", field))
	require.NoError(t, err)

	created := func(entity string) float64 {
		return prom.ToFloat64(f.metrics.EntitiesCreatedTotal.WithLabelValues(entity))
	}
	manifests, variables, timeDomains := created("manifest"), created("variable"), created("time_domain")

	_, err = f.cat.MakeQuark(ctx, res.Variables[0].ID, 12, 28, WithField(&stubField{
		id: field.id, files: field.files, source: field.source,
		records: field.records, counts: field.counts, lie: true,
	}))
	require.True(t, model.IsInvariant(err))

	assert.Equal(t, int64(1), f.count(t, "manifests"))
	assert.Equal(t, manifests, created("manifest"))
	assert.Equal(t, variables, created("variable"))
	assert.Equal(t, timeDomains, created("time_domain"))
	assert.Zero(t, prom.ToFloat64(f.metrics.QuarkRequestsTotal.WithLabelValues(metrics.OutcomeCreated)))
	assert.Equal(t, 1.0, prom.ToFloat64(f.metrics.QuarkRequestsTotal.WithLabelValues(metrics.OutcomeError)))

	_, err = f.cat.MakeQuark(ctx, res.Variables[0].ID, 12, 28, WithField(field))
	require.NoError(t, err)
	assert.Equal(t, manifests+1, created("manifest"))
	assert.Equal(t, 1.0, prom.ToFloat64(f.metrics.QuarkRequestsTotal.WithLabelValues(metrics.OutcomeCreated)))
}

func TestMakeQuarks_SkipsOutOfRange(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	long, err := f.cat.IngestFile(ctx, aggregateRequest("tas", newField("tas", decade)))
	require.NoError(t, err)
	short, err := f.cat.IngestFile(ctx, aggregateRequest("pr", newField("pr", decade[:2])))
	require.NoError(t, err)

	out, err := f.cat.MakeQuarks(ctx, []int64{long.Variables[0].ID, short.Variables[0].ID}, 12, 28)
	require.NoError(t, err)
	require.Len(t, out.Results, 1)
	assert.Equal(t, long.Variables[0].InFileID, out.Results[0].Variable.InFileID)
	require.Len(t, out.Skipped, 1)
	assert.Equal(t, short.Variables[0].ID, out.Skipped[0].VariableID)
	assert.Equal(t, 1.0, prom.ToFloat64(f.metrics.QuarkRequestsTotal.WithLabelValues(metrics.OutcomeOutOfRange)))

	standalone, err := f.cat.CreateFile(ctx, FileProps{Name: "s.nc", Path: "/data"})
	require.NoError(t, err)
	v, _, err := f.cat.GetOrCreateVariable(ctx, VariableProps{
		Properties: map[string]any{"standard_name": "orog"}, FileID: standalone.ID,
	})
	require.NoError(t, err)
	_, err = f.cat.MakeQuarks(ctx, []int64{v.ID}, 12, 28)
	assert.True(t, model.IsInvariant(err))
}

func TestPlanQuark(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	res, err := f.cat.IngestFile(ctx, aggregateRequest("tas", newField("tas", decade)))
	require.NoError(t, err)

	plan, err := f.cat.PlanQuark(ctx, res.Variables[0].ID, 12, 28)
	require.NoError(t, err)
	assert.Equal(t, 1, plan.Selection.First)
	assert.Equal(t, 2, plan.Selection.Last)
	assert.Equal(t, res.Manifests[0].ID, plan.Manifest.ID)
	assert.Equal(t, int64(1), f.count(t, "manifests"))
}

func TestDeleteCollection_ForceConservesVolume(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	_, err := f.cat.IngestFile(ctx, aggregateRequest("tas", newField("tas", decade)))
	require.NoError(t, err)
	_, err = f.cat.IngestFile(ctx, aggregateRequest("pr", newField("pr", decade)))
	require.NoError(t, err)
	assert.Equal(t, int64(2*(10+4*fragmentBytes)), f.volume(t))

	err = f.cat.DeleteCollection(ctx, "cmip", false)
	assert.True(t, model.IsInUse(err))

	require.NoError(t, f.cat.DeleteCollection(ctx, "cmip", true))
	for _, table := range []string{"files", "manifests", "variables", "property_sets", "time_domains", "cell_method_sets", "collections"} {
		assert.Zero(t, f.count(t, table), table)
	}
	assert.Zero(t, f.volume(t))

	checks, err := f.cat.VerifyVolumes(ctx)
	require.NoError(t, err)
	require.Len(t, checks, 1)
	assert.True(t, checks[0].OK())
}

func TestCollections(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	_, err := f.cat.CreateCollection(ctx, CollectionProps{Name: ""})
	assert.True(t, model.IsInvariant(err))

	obs, err := f.cat.CreateCollection(ctx, CollectionProps{
		Name: "obs", Description: "observations", Tags: []string{"insitu"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"insitu"}, obs.Tags)

	_, err = f.cat.CreateCollection(ctx, CollectionProps{Name: "model"})
	require.NoError(t, err)
	require.NoError(t, f.cat.TagCollection(ctx, "obs", "atmos"))

	rel, err := f.cat.Relate(ctx, "obs", "validates", "model")
	require.NoError(t, err)
	rels, err := f.cat.Relationships(ctx, "obs")
	require.NoError(t, err)
	assert.Equal(t, []model.Relationship{rel}, rels)

	_, err = f.cat.Relate(ctx, "obs", "validates", "missing")
	assert.True(t, model.IsNotFound(err))

	names, err := f.cat.ListCollections(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"model", "obs"}, names)

	file, err := f.cat.CreateFile(ctx, FileProps{Name: "a.nc", Path: "/data", Size: 3, Locations: []string{"archive"}})
	require.NoError(t, err)
	v, _, err := f.cat.GetOrCreateVariable(ctx, VariableProps{
		Properties: map[string]any{"standard_name": "tas"}, FileID: file.ID,
	})
	require.NoError(t, err)

	for _, name := range []string{"obs", "model"} {
		added, err := f.cat.AddToCollection(ctx, name, v.ID)
		require.NoError(t, err)
		assert.True(t, added)
	}

	// Shared with "model", so emptying "obs" needs no force.
	require.NoError(t, f.cat.EmptyCollection(ctx, "obs", false))
	members, err := f.cat.CollectionVariables(ctx, "obs")
	require.NoError(t, err)
	assert.Empty(t, members)

	got, err := f.cat.GetCollection(ctx, "obs")
	require.NoError(t, err)
	assert.Equal(t, []string{"atmos", "insitu"}, got.Tags)
	assert.Equal(t, int64(3), f.volume(t))
}

func TestDeleteFile_AndVariable(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	res, err := f.cat.IngestFile(ctx, aggregateRequest("tas", newField("tas", decade)))
	require.NoError(t, err)

	err = f.cat.DeleteFile(ctx, res.Manifests[0].Fragments[0].ID)
	assert.True(t, model.IsInUse(err))

	require.NoError(t, f.cat.DeleteVariable(ctx, res.Variables[0].ID))
	assert.Zero(t, f.count(t, "files"))
	assert.Zero(t, f.volume(t))

	_, err = f.cat.GetFile(ctx, res.File.ID)
	assert.True(t, model.IsNotFound(err))
}
