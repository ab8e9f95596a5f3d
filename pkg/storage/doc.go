// Package storage defines the persistence interfaces the domain layers
// depend on, plus the shared backend configuration.
//
// The postgres subpackage is the production implementation: PostgreSQL
// for records, Redis for read caching, S3 for media. Permission and
// membership decisions always read through CollectionStore.Get, which
// bypasses caches; only display paths are cached.
package storage
