// Package entity implements the proxy layer over WiseFood REST resources.
//
// An Entity is a schema-driven view over one remote resource held as a
// map[string]any. Reads materialize defaults and lazily fetch identifier-only
// entities; writes are dirty-tracked and, when sync is enabled, pushed to the
// API immediately as a partial update. A Collection is a paginated view over
// all entities of one schema that caches the first page of identifiers. A
// Profile is a dirty-tracked key/value store for nested sub-resources whose
// schema is not known in advance.
//
// None of the types in this package are safe for concurrent use.
package entity
