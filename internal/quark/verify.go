package quark

import (
	"path/filepath"
	"slices"

	"github.com/roach88/cfstore/internal/manifest"
	"github.com/roach88/cfstore/internal/model"
)

// Verify cross-checks a selection against the field library's own subspace
// logic: the subspace of field over [start, end] must be backed by exactly
// the selected fragment files.
func Verify(field manifest.Field, start, end float64, selected []model.File) error {
	const op = "verify quark"

	sub, err := field.Subspace(start, end)
	if err != nil {
		return err
	}
	got, err := sub.Filenames()
	if err != nil {
		return err
	}

	want := make([]string, len(selected))
	for i, f := range selected {
		want[i] = filepath.Join(f.Path, f.Name)
	}
	have := make([]string, len(got))
	for i, name := range got {
		have[i] = filepath.Clean(name)
	}
	slices.Sort(want)
	slices.Sort(have)

	if !slices.Equal(want, have) {
		return model.Invariant(op, "field %s over [%s, %s]: subspace uses %v, selection uses %v",
			field.Identity(), fmtf(start), fmtf(end), have, want)
	}
	return nil
}
