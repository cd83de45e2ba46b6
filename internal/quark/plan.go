package quark

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"text/tabwriter"

	"github.com/roach88/cfstore/internal/model"
)

// Selection is the contiguous run of fragments chosen for an interval.
// First and Last are zero-based and inclusive; Start and End are the outer
// bounds of the selected fragments.
type Selection struct {
	First int     `json:"first"`
	Last  int     `json:"last"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Full  bool    `json:"full"`
}

// Len returns the number of selected fragments.
func (s Selection) Len() int {
	return s.Last - s.First + 1
}

// Plan selects the fragments of bounds overlapping [start, end], inclusive
// at both ends. The interval must lie within the outer bounds.
func Plan(bounds model.Bounds, start, end float64) (Selection, error) {
	const op = "plan quark"

	if err := checkBounds(bounds); err != nil {
		return Selection{}, err
	}
	if math.IsNaN(start) || math.IsNaN(end) {
		return Selection{}, model.OutOfRange(op, "interval [%v, %v] is not a number", start, end)
	}
	if start > end {
		return Selection{}, model.OutOfRange(op, "interval start %s is after end %s", fmtf(start), fmtf(end))
	}
	lo, hi := bounds.Outer()
	if start < lo || end > hi {
		return Selection{}, model.OutOfRange(op, "interval [%s, %s] extends beyond bounds [%s, %s]",
			fmtf(start), fmtf(end), fmtf(lo), fmtf(hi))
	}

	first, last := -1, -1
	for i, b := range bounds {
		if b[1] >= start && b[0] <= end {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 {
		return Selection{}, model.OutOfRange(op, "interval [%s, %s] falls between fragments", fmtf(start), fmtf(end))
	}

	return Selection{
		First: first,
		Last:  last,
		Start: bounds[first][0],
		End:   bounds[last][1],
		Full:  first == 0 && last == len(bounds)-1,
	}, nil
}

func checkBounds(bounds model.Bounds) error {
	const op = "plan quark"

	if len(bounds) == 0 {
		return model.Invariant(op, "manifest has no time bounds")
	}
	for i, b := range bounds {
		if math.IsNaN(b[0]) || math.IsNaN(b[1]) || b[0] > b[1] {
			return model.Invariant(op, "bounds row %d [%v, %v] is malformed", i, b[0], b[1])
		}
		if i > 0 && b[0] < bounds[i-1][1] {
			return model.Invariant(op, "bounds row %d starts at %s before row %d ends at %s",
				i, fmtf(b[0]), i-1, fmtf(bounds[i-1][1]))
		}
	}
	return nil
}

// FormatPlan writes a table of the fragments and which of them sel picks,
// followed by a one-line summary.
func FormatPlan(w io.Writer, bounds model.Bounds, start, end float64, sel Selection) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FRAGMENT\tSTART\tEND\tSELECTED")
	for i, b := range bounds {
		picked := "no"
		if i >= sel.First && i <= sel.Last {
			picked = "yes"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", i+1, fmtf(b[0]), fmtf(b[1]), picked)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if sel.Full {
		_, err := fmt.Fprintf(w, "interval [%s, %s] covers all %d fragments; the original manifest is used\n",
			fmtf(start), fmtf(end), len(bounds))
		return err
	}
	_, err := fmt.Fprintf(w, "interval [%s, %s] selects fragments %d-%d of %d, outer bounds [%s, %s]\n",
		fmtf(start), fmtf(end), sel.First+1, sel.Last+1, len(bounds), fmtf(sel.Start), fmtf(sel.End))
	return err
}

func fmtf(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
