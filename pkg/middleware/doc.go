// Package middleware provides HTTP middleware for authentication and
// rate limiting.
//
// AuthMiddleware validates bearer tokens and places the caller's
// identity in the request context. Rate limiting comes in two
// flavors: an in-process token bucket for single instances and a
// Redis-backed counter window shared across instances. The Redis
// limiter fails open so a cache outage degrades to unlimited rather
// than unavailable.
//
// Role checks on collections are not here; pkg/rbac owns those.
package middleware
