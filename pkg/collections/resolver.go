package collections

// ResolveRole maps a user to their single role on a collection. Pure and
// total for any well-formed collection: exactly one tier resolves, and it
// is the highest one that applies.
func ResolveRole(c *Collection, userID string) Role {
	if c == nil || userID == "" {
		return RoleOutsider
	}
	switch {
	case userID == c.OwnerID:
		return RoleOwner
	case c.IsAdmin(userID):
		return RoleAdmin
	case c.IsMember(userID):
		return RoleMember
	case c.IsFollower(userID):
		return RoleFollower
	default:
		return RoleOutsider
	}
}

// CanView reports whether a user may see the collection at all. Public
// collections are visible to everyone except explicitly denied users;
// private collections are visible to the membership tiers and the
// explicit allow-list. The owner always sees their own collection.
func CanView(c *Collection, userID string) bool {
	if c == nil || c.IsDeleted() {
		return false
	}
	if userID == c.OwnerID {
		return true
	}
	if c.IsPublic {
		return !contains(c.DeniedUsers, userID)
	}
	if ResolveRole(c, userID) != RoleOutsider {
		return true
	}
	return contains(c.AllowedUsers, userID)
}
