package ingest

import (
	"slices"

	"github.com/roach88/cfstore/internal/manifest"
	"github.com/roach88/cfstore/internal/model"
)

// AggregationField presents a document aggregation block as a field.
type AggregationField struct {
	name string
	agg  Aggregation
}

var _ manifest.Field = (*AggregationField)(nil)

// NewAggregationField wraps agg under the given field name.
func NewAggregationField(name string, agg Aggregation) *AggregationField {
	return &AggregationField{name: name, agg: agg}
}

// Identity returns the field name the aggregation was registered under.
func (f *AggregationField) Identity() string { return f.name }

// Filenames returns the fragment files in document order.
func (f *AggregationField) Filenames() ([]string, error) {
	return slices.Clone(f.agg.Fragments), nil
}

// TimeCoordinateName returns the time coordinate the bounds are read from.
// A block without one is boundless.
func (f *AggregationField) TimeCoordinateName() (string, bool) {
	return f.agg.TimeCoordinate, f.agg.TimeCoordinate != ""
}

// TimeBounds returns one [start, end] row per time record. Rows that are
// not pairs are an invariant violation.
func (f *AggregationField) TimeBounds() (model.Bounds, bool, error) {
	if len(f.agg.Bounds) == 0 {
		return nil, false, nil
	}
	b := make(model.Bounds, len(f.agg.Bounds))
	for i, row := range f.agg.Bounds {
		if len(row) != 2 {
			return nil, false, model.Invariant("read time bounds", "field %s: record %d has %d values", f.name, i, len(row))
		}
		b[i] = [2]float64{row[0], row[1]}
	}
	return b, true, nil
}

// FragmentCounts returns how many time records each fragment holds.
func (f *AggregationField) FragmentCounts() ([]int, bool) {
	if len(f.agg.Counts) == 0 {
		return nil, false
	}
	return slices.Clone(f.agg.Counts), true
}

// TimeUnits returns the units and calendar of the time coordinate.
func (f *AggregationField) TimeUnits() (string, string) {
	return f.agg.Units, f.agg.Calendar
}

// Subspace keeps the fragments holding at least one record that touches
// [start, end]. It works record by record and never looks at fragment
// bounds.
func (f *AggregationField) Subspace(start, end float64) (manifest.Field, error) {
	const op = "subspace"

	if start > end {
		return nil, model.OutOfRange(op, "field %s: start %v is after end %v", f.name, start, end)
	}
	if len(f.agg.Bounds) == 0 || len(f.agg.Counts) == 0 {
		return nil, model.Invariant(op, "field %s has no record structure to subspace", f.name)
	}

	sub := Aggregation{
		TimeCoordinate: f.agg.TimeCoordinate,
		Units:          f.agg.Units,
		Calendar:       f.agg.Calendar,
	}
	rec := 0
	for i, n := range f.agg.Counts {
		if rec+n > len(f.agg.Bounds) {
			return nil, model.Invariant(op, "field %s: counts cover more than %d records", f.name, len(f.agg.Bounds))
		}
		records := f.agg.Bounds[rec : rec+n]
		rec += n
		if !slices.ContainsFunc(records, func(r []float64) bool { return r[1] >= start && r[0] <= end }) {
			continue
		}
		sub.Fragments = append(sub.Fragments, f.agg.Fragments[i])
		sub.Bounds = append(sub.Bounds, records...)
		sub.Counts = append(sub.Counts, n)
	}
	if len(sub.Fragments) == 0 {
		return nil, model.OutOfRange(op, "field %s has no records in [%v, %v]", f.name, start, end)
	}
	return &AggregationField{name: f.name, agg: sub}, nil
}
