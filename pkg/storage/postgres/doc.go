// Package postgres implements the storage interfaces on PostgreSQL,
// with Redis for display caching and S3 for media.
//
// Membership writes are guarded by the record's updated_at timestamp;
// a concurrent writer surfaces as ErrStaleState so the coordinator can
// re-fetch and retry or fail closed.
package postgres
