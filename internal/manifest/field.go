package manifest

import "github.com/roach88/cfstore/internal/model"

// Field is the scientific-field collaborator: one variable as read from an
// aggregation file by an external library.
type Field interface {
	// Identity names the field for diagnostics.
	Identity() string

	// Filenames lists the fragment files backing the field, in time order.
	Filenames() ([]string, error)

	// TimeCoordinateName returns the variable backing the time coordinate.
	// ok is false when the field has no time dimension coordinate.
	TimeCoordinateName() (name string, ok bool)

	// TimeBounds returns one [start, end] row per time record.
	// ok is false when the coordinate carries no bounds.
	TimeBounds() (bounds model.Bounds, ok bool, err error)

	// FragmentCounts returns the number of time records held by each
	// fragment, in Filenames order. ok is false when the aggregation does
	// not declare its interval structure.
	FragmentCounts() (counts []int, ok bool)

	// TimeUnits returns the time coordinate's units and calendar.
	TimeUnits() (units, calendar string)

	// Subspace returns the field restricted to [start, end].
	Subspace(start, end float64) (Field, error)
}
