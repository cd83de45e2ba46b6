// Package model defines the catalog entities shared by every other package.
//
// This package contains types, the error taxonomy, canonical JSON and the
// content keys derived from it. model imports nothing internal, so store,
// registry, manifest, quark, integrity and catalog can all depend on it.
//
// Conventions:
//   - Surrogate IDs are int64 and assigned by the store.
//   - File, Manifest and Variable additionally carry a UUIDv7.
//   - Optional references are *int64; nil means "not set".
//   - All JSON tags use snake_case.
package model
