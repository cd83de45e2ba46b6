// Package manifest turns parsed aggregation-file fields into manifests.
//
// A Builder is created per aggregation file. Each field handed to Add is
// keyed by the sorted set of its fragment file names; fields sharing a
// fragment set and the same time-coordinate bounds source share one
// Description. A field with the same fragment set but a different bounds
// source gets a clone carrying its own bounds.
//
// Persist writes a Description as a Manifest owned by the aggregation file,
// creating fragment File rows and charging their sizes to the file's
// locations.
package manifest
