package membership

import (
	"context"
	"fmt"

	"github.com/gatherly/gatherly/pkg/collections"
	"github.com/gatherly/gatherly/pkg/events"
	"github.com/gatherly/gatherly/pkg/rbac"
)

// ApproveRequest admits a pending requester as a member. The actor's
// role is resolved from the fresh record inside the guarded write, so
// a demoted admin cannot approve with a stale token of authority.
func (co *Coordinator) ApproveRequest(ctx context.Context, collectionID, actorID, subjectID string) (*collections.Collection, error) {
	updated, err := co.apply(ctx, collectionID,
		func(c *collections.Collection) error {
			role := collections.ResolveRole(c, actorID)
			if err := co.checker.Require(role, rbac.ActionApproveRequest, rbac.Context{CollectionType: c.Type, InvokerID: actorID}); err != nil {
				return err
			}
			if !c.HasPendingRequest(subjectID) {
				return collections.InvariantViolationf("user %s has no pending request on collection %s", subjectID, collectionID)
			}
			co.admit(c, subjectID)
			return nil
		},
		func(c *collections.Collection) error {
			if collections.ResolveRole(c, subjectID) != collections.RoleMember {
				return collections.InvariantViolationf("approval of %s did not persist", subjectID)
			}
			return nil
		})
	if err != nil {
		return nil, err
	}
	co.publish(ctx, events.RequestApproved, collectionID, actorID, subjectID)
	return updated, nil
}

// RejectRequest discards a pending join request without admitting the
// requester. Rejecting an absent request is a no-op.
func (co *Coordinator) RejectRequest(ctx context.Context, collectionID, actorID, subjectID string) (*collections.Collection, error) {
	changed := false
	updated, err := co.apply(ctx, collectionID,
		func(c *collections.Collection) error {
			role := collections.ResolveRole(c, actorID)
			if err := co.checker.Require(role, rbac.ActionApproveRequest, rbac.Context{CollectionType: c.Type, InvokerID: actorID}); err != nil {
				return err
			}
			if !c.HasPendingRequest(subjectID) {
				return errNoop
			}
			c.PendingRequests = collections.Remove(c.PendingRequests, subjectID)
			changed = true
			return nil
		}, nil)
	if err != nil {
		return nil, err
	}
	if changed {
		co.publish(ctx, events.RequestCancelled, collectionID, actorID, subjectID)
	}
	return updated, nil
}

// Promote raises a member to admin. Only the owner may promote, and
// only members can be promoted.
func (co *Coordinator) Promote(ctx context.Context, collectionID, actorID, subjectID string) (*collections.Collection, error) {
	updated, err := co.apply(ctx, collectionID,
		func(c *collections.Collection) error {
			role := collections.ResolveRole(c, actorID)
			if err := co.checker.Require(role, rbac.ActionPromoteMember, rbac.Context{CollectionType: c.Type, InvokerID: actorID}); err != nil {
				return err
			}
			if collections.ResolveRole(c, subjectID) != collections.RoleMember {
				return collections.InvariantViolationf("user %s is not a member of collection %s", subjectID, collectionID)
			}
			c.Members = collections.Remove(c.Members, subjectID)
			c.Admins = collections.Add(c.Admins, subjectID)
			return nil
		},
		func(c *collections.Collection) error {
			if collections.ResolveRole(c, subjectID) != collections.RoleAdmin {
				return collections.InvariantViolationf("promotion of %s did not persist", subjectID)
			}
			return nil
		})
	if err != nil {
		return nil, err
	}
	co.publish(ctx, events.MemberPromoted, collectionID, actorID, subjectID)
	return updated, nil
}

// Demote lowers an admin back to member. Owner only. The member's
// join date is restored from the current time since the admin set
// does not carry one.
func (co *Coordinator) Demote(ctx context.Context, collectionID, actorID, subjectID string) (*collections.Collection, error) {
	updated, err := co.apply(ctx, collectionID,
		func(c *collections.Collection) error {
			role := collections.ResolveRole(c, actorID)
			if err := co.checker.Require(role, rbac.ActionRemoveAdmin, rbac.Context{CollectionType: c.Type, InvokerID: actorID}); err != nil {
				return err
			}
			if collections.ResolveRole(c, subjectID) != collections.RoleAdmin {
				return collections.InvariantViolationf("user %s is not an admin of collection %s", subjectID, collectionID)
			}
			c.Admins = collections.Remove(c.Admins, subjectID)
			co.admit(c, subjectID)
			return nil
		},
		func(c *collections.Collection) error {
			if collections.ResolveRole(c, subjectID) != collections.RoleMember {
				return collections.InvariantViolationf("demotion of %s did not persist", subjectID)
			}
			return nil
		})
	if err != nil {
		return nil, err
	}
	co.publish(ctx, events.MemberDemoted, collectionID, actorID, subjectID)
	return updated, nil
}

// Remove strips the subject's role entirely. Removing an admin takes
// the owner; removing a member or follower takes admin or above. The
// owner cannot be removed.
func (co *Coordinator) Remove(ctx context.Context, collectionID, actorID, subjectID string) (*collections.Collection, error) {
	changed := false
	updated, err := co.apply(ctx, collectionID,
		func(c *collections.Collection) error {
			actorRole := collections.ResolveRole(c, actorID)
			subjectRole := collections.ResolveRole(c, subjectID)
			rctx := rbac.Context{CollectionType: c.Type, InvokerID: actorID}

			switch subjectRole {
			case collections.RoleOwner:
				return collections.PermissionDeniedf("the owner of collection %s cannot be removed", collectionID)
			case collections.RoleAdmin:
				if err := co.checker.Require(actorRole, rbac.ActionRemoveAdmin, rctx); err != nil {
					return err
				}
			case collections.RoleOutsider:
				return errNoop
			default:
				if err := co.checker.Require(actorRole, rbac.ActionRemoveMember, rctx); err != nil {
					return err
				}
			}
			co.evict(c, subjectID)
			changed = true
			return nil
		},
		func(c *collections.Collection) error {
			if collections.ResolveRole(c, subjectID) != collections.RoleOutsider {
				return collections.InvariantViolationf("removal of %s did not persist", subjectID)
			}
			return nil
		})
	if err != nil {
		return nil, err
	}
	if changed {
		co.publish(ctx, events.MemberRemoved, collectionID, actorID, subjectID)
	}
	return updated, nil
}

// DeleteCollection soft-deletes the collection and cascades to its
// posts. Owner only.
func (co *Coordinator) DeleteCollection(ctx context.Context, collectionID, actorID string) error {
	current, err := co.store.Get(ctx, collectionID)
	if err != nil {
		return err
	}
	role := collections.ResolveRole(current, actorID)
	if err := co.checker.Require(role, rbac.ActionDeleteCollection, rbac.Context{CollectionType: current.Type, InvokerID: actorID}); err != nil {
		return err
	}

	if err := co.store.Delete(ctx, collectionID); err != nil {
		return err
	}
	if err := co.posts.DeleteByCollection(ctx, collectionID); err != nil {
		return fmt.Errorf("failed to cascade post deletion for collection %s: %w", collectionID, err)
	}
	co.publish(ctx, events.CollectionDeleted, collectionID, actorID, "")
	return nil
}
