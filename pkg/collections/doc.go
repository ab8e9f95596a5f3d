// Package collections defines the canonical collection record, the role
// hierarchy, and the pure functions that resolve a user's role and the
// structural invariants every mutation must preserve.
//
// The role model is strictly hierarchical:
//
//	Owner > Admin > Member > Follower > Outsider
//
// A user occupies exactly the highest tier that applies. The owner is
// tracked separately from the admins set and can never be removed from
// the role; ResolveRole is the single source of truth every calling
// surface must use instead of re-deriving membership checks locally.
//
// The package has no dependencies on storage or transport. Stores wrap
// their failures in ErrTransientStore so callers can match the shared
// error taxonomy with errors.Is.
package collections
