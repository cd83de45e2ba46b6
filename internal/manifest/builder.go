package manifest

import (
	"path/filepath"
	"slices"

	"github.com/roach88/cfstore/internal/model"
)

// SizeFunc reports the size in bytes of a fragment file. It may be nil, in
// which case fragments are recorded with size 0.
type SizeFunc func(path string) (int64, error)

// FragmentStub describes a fragment file before it is persisted.
type FragmentStub struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// FullPath joins Path and Name.
func (s FragmentStub) FullPath() string {
	return filepath.Join(s.Path, s.Name)
}

// Description is a manifest ready to persist.
type Description struct {
	Key         string         `json:"key"`
	FragmentKey string         `json:"fragment_key"`
	Bounds      model.Bounds   `json:"bounds,omitempty"`
	Units       string         `json:"units,omitempty"`
	Calendar    string         `json:"calendar,omitempty"`
	Fragments   []FragmentStub `json:"fragments"`

	// Parse-time only, never persisted.
	BoundsSource string   `json:"-"`
	Counts       []int    `json:"-"`
	Fields       []string `json:"-"`
}

// Builder collects the manifests of one aggregation file.
type Builder struct {
	hasher      *model.Hasher
	size        SizeFunc
	byFragments map[string][]*Description
	order       []*Description
}

// NewBuilder creates a Builder.
func NewBuilder(h *model.Hasher, size SizeFunc) *Builder {
	return &Builder{
		hasher:      h,
		size:        size,
		byFragments: make(map[string][]*Description),
	}
}

// Descriptions returns the distinct descriptions in the order they were
// first produced.
func (b *Builder) Descriptions() []*Description {
	return b.order
}

// Add returns the Description for field, reusing a previous one when both
// the fragment set and the bounds source match. reused reports whether an
// existing description was returned.
func (b *Builder) Add(field Field) (desc *Description, reused bool, err error) {
	const op = "build manifest"

	names, err := field.Filenames()
	if err != nil {
		return nil, false, err
	}
	if len(names) == 0 {
		return nil, false, model.Invariant(op, "field %s has no fragment files", field.Identity())
	}
	fragKey := FragmentKey(b.hasher, names)

	source, hasTime := field.TimeCoordinateName()
	if !hasTime {
		source = ""
	}
	counts, _ := field.FragmentCounts()

	existing := b.byFragments[fragKey]
	for _, d := range existing {
		if d.BoundsSource != source {
			continue
		}
		// Same fragments and same bounds source: reuse only if the
		// interval structure matches as well.
		if hasTime && !slices.Equal(d.Counts, counts) {
			return nil, false, model.Invariant(op,
				"field %s shares fragments and time coordinate %q with %s but maps records to fragments differently",
				field.Identity(), source, d.Fields[0])
		}
		d.Fields = append(d.Fields, field.Identity())
		return d, true, nil
	}

	if len(existing) > 0 {
		// Same fragments, different bounds source: it is ambiguous whether
		// the time axes agree, so clone and attach this field's own bounds.
		desc = &Description{
			FragmentKey: fragKey,
			Fragments:   inOrder(existing[0].Fragments, names),
		}
	} else {
		stubs, err := b.stubs(names)
		if err != nil {
			return nil, false, err
		}
		desc = &Description{FragmentKey: fragKey, Fragments: stubs}
	}

	desc.BoundsSource = source
	desc.Fields = []string{field.Identity()}
	desc.Key = Key(b.hasher, fragKey, source)

	if hasTime {
		if err := attachBounds(desc, field, counts); err != nil {
			return nil, false, err
		}
	}

	b.byFragments[fragKey] = append(existing, desc)
	b.order = append(b.order, desc)
	return desc, false, nil
}

// FragmentKey is the content key of a set of fragment file names.
func FragmentKey(h *model.Hasher, names []string) string {
	return h.SetKey(model.DomainFragments, names)
}

// Key is the manifest key for a fragment set whose bounds are read from
// the coordinate named source ("" for a boundless manifest).
func Key(h *model.Hasher, fragKey, source string) string {
	return h.SequenceKey(model.DomainManifest, []string{fragKey, source})
}

func (b *Builder) stubs(names []string) ([]FragmentStub, error) {
	stubs := make([]FragmentStub, len(names))
	for i, name := range names {
		dir, base := filepath.Split(name)
		stubs[i] = FragmentStub{Name: base, Path: filepath.Clean(dir)}
		if b.size != nil {
			size, err := b.size(name)
			if err != nil {
				return nil, err
			}
			stubs[i].Size = size
		}
	}
	return stubs, nil
}

// inOrder returns the stubs in the order names lists them. A clone takes its
// bounds from the new field, so its fragments follow that field's order.
func inOrder(stubs []FragmentStub, names []string) []FragmentStub {
	byPath := make(map[string]FragmentStub, len(stubs))
	for _, s := range stubs {
		byPath[s.FullPath()] = s
	}
	out := make([]FragmentStub, len(names))
	for i, name := range names {
		out[i] = byPath[filepath.Clean(name)]
	}
	return out
}

func attachBounds(desc *Description, field Field, counts []int) error {
	const op = "build manifest"

	records, ok, err := field.TimeBounds()
	if err != nil {
		return err
	}
	if !ok {
		source, _ := field.TimeCoordinateName()
		return model.Invariant(op, "field %s: time coordinate %q has no bounds", field.Identity(), source)
	}
	_, haveCounts := field.FragmentCounts()
	if haveCounts && len(counts) != len(desc.Fragments) {
		return model.Invariant(op, "field %s: %d fragment counts for %d fragments",
			field.Identity(), len(counts), len(desc.Fragments))
	}
	fragBounds, err := DeriveFragmentBounds(records, counts, haveCounts)
	if err != nil {
		return err
	}

	desc.Bounds = fragBounds
	desc.Counts = slices.Clone(counts)
	desc.Units, desc.Calendar = field.TimeUnits()
	return nil
}

// DeriveFragmentBounds collapses per-record bounds into one [start, end]
// row per fragment using the records-per-fragment map. Without a map the
// fragment structure is unknown and the call fails.
func DeriveFragmentBounds(records model.Bounds, counts []int, haveCounts bool) (model.Bounds, error) {
	const op = "derive fragment bounds"

	if !haveCounts {
		return nil, model.Invariant(op, "fragment time bounds requested but no cell-interval coverage map is declared")
	}
	total := 0
	for i, c := range counts {
		if c <= 0 {
			return nil, model.Invariant(op, "fragment %d holds %d records", i, c)
		}
		total += c
	}
	if total != len(records) {
		return nil, model.Invariant(op, "coverage map covers %d records but %d bounds rows are present",
			total, len(records))
	}

	out := make(model.Bounds, len(counts))
	first := 0
	for i, c := range counts {
		last := first + c - 1
		out[i] = [2]float64{records[first][0], records[last][1]}
		first = last + 1
	}
	return out, nil
}
