// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Response Helpers
//
//	httputil.WriteJSON(w, http.StatusOK, data)
//	httputil.WriteCreated(w, resource)
//	httputil.WriteDomainError(w, err)
//
// WriteDomainError maps the domain error taxonomy onto HTTP statuses:
// permission denials become 403, invariant violations 422, missing
// records 404, stale-state conflicts 409 and transient storage
// failures 503. Anything else is a generic 500; store internals never
// reach the client.
//
// # Request Helpers
//
//	id, ok := httputil.ParsePathStringOrError(w, r, "id")
//	limit, offset, err := httputil.ParsePagination(r, 20)
package httputil
