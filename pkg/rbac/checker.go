package rbac

import (
	"github.com/gatherly/gatherly/pkg/collections"
)

// Checker evaluates the role/action permission table. It is pure: the
// caller is responsible for resolving the role from a freshly fetched
// collection record before asking.
type Checker struct{}

// NewChecker creates a permission checker.
func NewChecker() *Checker {
	return &Checker{}
}

// Can reports whether a role may perform an action. Unknown actions are
// denied; the table fails closed.
func (ch *Checker) Can(role collections.Role, action Action, ctx Context) bool {
	switch action {
	case ActionEditCollection, ActionViewFollowers, ActionApproveRequest, ActionInviteMember:
		return role.AtLeast(collections.RoleAdmin)

	case ActionManageAccess, ActionPromoteMember, ActionRemoveAdmin, ActionDeleteCollection:
		return role == collections.RoleOwner

	case ActionRemoveMember:
		return role.AtLeast(collections.RoleAdmin)

	case ActionCreatePost:
		return role.AtLeast(collections.RoleMember)

	case ActionPinPost:
		// Single-occupant collections collapse the owner/member
		// distinction: pin rights belong to the post author.
		if ctx.CollectionType == collections.TypeIndividual {
			return ctx.IsAuthor()
		}
		return role.AtLeast(collections.RoleAdmin)

	case ActionDeletePost:
		if ctx.CollectionType == collections.TypeIndividual {
			return ctx.IsAuthor()
		}
		if role.AtLeast(collections.RoleAdmin) {
			return true
		}
		// Members may delete their own posts only.
		return role == collections.RoleMember && ctx.IsAuthor()

	default:
		return false
	}
}

// Check evaluates an action and returns a full decision for logging.
func (ch *Checker) Check(role collections.Role, action Action, ctx Context) Decision {
	d := Decision{
		Role:   role,
		Action: action,
	}
	d.Allowed = ch.Can(role, action, ctx)
	if !d.Allowed {
		d.Reason = "role " + string(role) + " lacks " + string(action)
	}
	return d
}

// Require returns ErrPermissionDenied unless the role may perform the
// action.
func (ch *Checker) Require(role collections.Role, action Action, ctx Context) error {
	if ch.Can(role, action, ctx) {
		return nil
	}
	return collections.PermissionDeniedf("role %s may not %s", role, action)
}
