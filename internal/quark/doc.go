// Package quark derives time-bounded subsets ("quarks") of aggregated
// datasets.
//
// Plan selects the contiguous run of fragments overlapping an interval. The
// Engine turns a selection into a quark manifest, a time domain and a
// variable, reusing each one when an equivalent already exists. Requesting
// an interval that covers every fragment returns the original entities.
package quark
