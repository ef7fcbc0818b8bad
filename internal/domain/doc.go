// Package domain defines the data model for guest-level workload
// discovery: scan targets and credentials, per-VM workload inventories
// (databases, web apps, container runtimes, orchestrators, port tables),
// and the derived cross-VM dependency topology.
//
// Domain types are plain data. A VMWorkloads record is created empty at
// run start, mutated only by the worker that owns it, and treated as
// read-only once the run publishes it.
package domain
