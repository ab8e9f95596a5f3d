package collections

// ValidateNew checks the structural invariants for a collection at
// creation time.
func ValidateNew(c *Collection) error {
	if c.ID == "" {
		return InvariantViolationf("collection id is required")
	}
	if c.OwnerID == "" {
		return InvariantViolationf("owner id is required")
	}
	if c.Name == "" {
		return InvariantViolationf("collection name is required")
	}
	if !c.Type.Valid() {
		return InvariantViolationf("unknown collection type %q", c.Type)
	}
	if c.Type.RequiresPublic() && !c.IsPublic {
		return InvariantViolationf("%s collections must be public", c.Type)
	}
	if c.Type == TypeIndividual {
		if len(c.Admins) > 0 || len(c.Members) > 0 {
			return InvariantViolationf("individual collections have no admins or members beyond the owner")
		}
	}
	if contains(c.Admins, c.OwnerID) || contains(c.Members, c.OwnerID) || contains(c.Followers, c.OwnerID) {
		return InvariantViolationf("owner must not appear in admin, member, or follower sets")
	}
	return nil
}

// ValidateUpdate checks a partial edit against the current record. The
// visibility invariant is enforced on every edit attempt, not just at
// creation.
func ValidateUpdate(current *Collection, update Update) error {
	if current == nil {
		return ErrNotFound
	}
	if update.IsPublic != nil && !*update.IsPublic && current.Type.RequiresPublic() {
		return InvariantViolationf("%s collections must remain public", current.Type)
	}
	// Allow/deny lists are only meaningful on one side of the
	// visibility flag; resolve the flag the update would leave in place.
	public := current.IsPublic
	if update.IsPublic != nil {
		public = *update.IsPublic
	}
	if update.AllowedUsers != nil && public {
		return InvariantViolationf("allow-list applies only to private collections")
	}
	if update.DeniedUsers != nil && !public {
		return InvariantViolationf("deny-list applies only to public collections")
	}
	return nil
}
