// Package catalog is the facade over the cfstore catalog.
//
// Every exported operation runs in its own transaction, composing the
// registries, the manifest builder, the quarking engine and the integrity
// engine. IngestFile is the one multi-step unit of work: a file, its
// manifests, its variables and their collection memberships are created
// together or not at all, and a failure is reported as a *UnitOfWorkError
// naming the step and record that failed.
package catalog
