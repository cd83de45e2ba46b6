// Package store provides SQLite-backed durable storage for the cfstore
// catalog.
//
// The store holds:
//   - Locations and the files held at them, with a stored volume per location
//   - Manifests: the ordered fragment lists of aggregation files
//   - Shared sub-entities: time and spatial domains, cell method sets and
//     property sets
//   - Variables, which reference all of the above
//   - Collections, tags and relationships between collections
//
// # Critical Patterns
//
// Insert-or-get: hash-keyed rows (property sets, cell method sets,
// manifests) are written with ON CONFLICT DO NOTHING and re-read when no
// row was affected, so two writers racing on the same key end up with one
// row.
//
// Live reference counts: whether a shared sub-entity is still used is
// answered by counting variables that reference it. Nothing is cached.
//
// Error taxonomy: driver constraint failures are mapped onto model error
// codes (unique to Duplicate, foreign key to InUse, CHECK to Invariant,
// no rows to NotFound).
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//   - _txlock=immediate: Take the write lock when a transaction begins
//
// Every typed operation is a method on Tx; callers compose them into one
// unit of work with Store.InTx.
package store
