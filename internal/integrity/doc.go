// Package integrity keeps the catalog referentially consistent.
//
// Shared sub-entities (property sets, cell method sets, spatial and time
// domains) have no stored reference counts: when a variable is deleted each
// of them is reclaimed if no remaining variable uses it. Manifests and files
// are reclaimed the same way when their last variable goes.
//
// Deletions cascade. Each cascaded call carries a Trigger naming the entity
// that initiated it, so that a callee never deletes back into its caller.
//
// Location volumes are adjusted on every attach and detach. VerifyVolumes
// recomputes them from the attached files.
package integrity
