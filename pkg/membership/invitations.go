package membership

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/gatherly/gatherly/pkg/collections"
	"github.com/gatherly/gatherly/pkg/events"
	"github.com/gatherly/gatherly/pkg/rbac"
)

// Invite issues an invitation for inviteeID. Admin or above on an
// invite-type collection. The returned record carries the raw token
// exactly once; the store only keeps a hash.
func (co *Coordinator) Invite(ctx context.Context, collectionID, actorID, inviteeID string) (*collections.Invitation, error) {
	current, err := co.store.Get(ctx, collectionID)
	if err != nil {
		return nil, err
	}

	role := collections.ResolveRole(current, actorID)
	if err := co.checker.Require(role, rbac.ActionInviteMember, rbac.Context{CollectionType: current.Type, InvokerID: actorID}); err != nil {
		return nil, err
	}
	if current.Type != collections.TypeInvite {
		return nil, collections.InvariantViolationf("collection %s does not admit by invitation", collectionID)
	}
	if collections.ResolveRole(current, inviteeID).AtLeast(collections.RoleMember) {
		return nil, collections.InvariantViolationf("user %s is already a member", inviteeID)
	}

	token, err := collections.NewInvitationToken()
	if err != nil {
		return nil, err
	}
	now := co.now().UTC()
	inv := &collections.Invitation{
		ID:           uuid.NewString(),
		CollectionID: collectionID,
		InviterID:    actorID,
		InviteeID:    inviteeID,
		Token:        token,
		CreatedAt:    now,
		ExpiresAt:    now.Add(collections.InvitationTTL),
	}
	if err := co.invites.Create(ctx, inv); err != nil {
		return nil, fmt.Errorf("failed to create invitation: %w", err)
	}

	co.publish(ctx, events.InvitationCreated, collectionID, actorID, inviteeID)
	return inv, nil
}

// AcceptInvitation redeems a token and admits the invitee as a member.
// Only the named invitee may redeem, and only while the invitation is
// neither expired nor already redeemed.
func (co *Coordinator) AcceptInvitation(ctx context.Context, token, actorID string) (*collections.Collection, error) {
	inv, err := co.invites.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if inv.InviteeID != actorID {
		return nil, collections.PermissionDeniedf("invitation %s was issued to another user", inv.ID)
	}
	if inv.Redeemed() {
		return nil, collections.InvariantViolationf("invitation %s was already redeemed", inv.ID)
	}
	if inv.Expired(co.now()) {
		return nil, collections.InvariantViolationf("invitation %s has expired", inv.ID)
	}

	updated, err := co.apply(ctx, inv.CollectionID,
		func(c *collections.Collection) error {
			if collections.ResolveRole(c, actorID).AtLeast(collections.RoleMember) {
				return errNoop
			}
			co.admit(c, actorID)
			return nil
		},
		func(c *collections.Collection) error {
			if !collections.ResolveRole(c, actorID).AtLeast(collections.RoleMember) {
				return collections.InvariantViolationf("redemption of invitation %s did not persist", inv.ID)
			}
			return nil
		})
	if err != nil {
		return nil, err
	}

	if err := co.invites.MarkAccepted(ctx, inv.ID, co.now().UTC()); err != nil {
		return nil, fmt.Errorf("failed to mark invitation %s accepted: %w", inv.ID, err)
	}
	co.publish(ctx, events.InvitationAccepted, inv.CollectionID, actorID, "")
	return updated, nil
}

// RevokeInvitation withdraws an unredeemed invitation. Admin or above.
func (co *Coordinator) RevokeInvitation(ctx context.Context, collectionID, actorID, invitationID string) error {
	current, err := co.store.Get(ctx, collectionID)
	if err != nil {
		return err
	}
	role := collections.ResolveRole(current, actorID)
	if err := co.checker.Require(role, rbac.ActionInviteMember, rbac.Context{CollectionType: current.Type, InvokerID: actorID}); err != nil {
		return err
	}

	if err := co.invites.Revoke(ctx, invitationID); err != nil {
		return err
	}
	co.publish(ctx, events.InvitationRevoked, collectionID, actorID, "")
	return nil
}

// ListInvitations returns the open invitations for a collection.
// Admin or above.
func (co *Coordinator) ListInvitations(ctx context.Context, collectionID, actorID string) ([]*collections.Invitation, error) {
	current, err := co.store.Get(ctx, collectionID)
	if err != nil {
		return nil, err
	}
	role := collections.ResolveRole(current, actorID)
	if err := co.checker.Require(role, rbac.ActionInviteMember, rbac.Context{CollectionType: current.Type, InvokerID: actorID}); err != nil {
		return nil, err
	}
	return co.invites.ListByCollection(ctx, collectionID)
}
