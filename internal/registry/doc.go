// Package registry provides the content-addressed get-or-create factories
// for cell method sets and property sets.
//
// A set's key is a hash of its sorted canonical members, so the same logical
// set presented in any enumeration order maps to the same row. Sets are
// immutable: a new combination of members always produces a new set.
//
// Concurrent registration of the same key is resolved by the unique index on
// the key column: the loser's INSERT ... ON CONFLICT DO NOTHING affects no
// rows and the winner's row is returned with created=false.
package registry
