// Package api exposes the Gatherly REST surface.
//
// The server is a thin HTTP layer over the domain services: the
// membership coordinator owns all membership transitions and their
// permission checks, the post and reply services own content rules,
// and the role middleware gates record reads by visibility. Handlers
// translate JSON in, domain errors out via httputil.WriteDomainError.
package api
