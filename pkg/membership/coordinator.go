package membership

import (
	"context"
	"errors"
	"time"

	"github.com/gatherly/gatherly/pkg/collections"
	"github.com/gatherly/gatherly/pkg/events"
	"github.com/gatherly/gatherly/pkg/observability"
	"github.com/gatherly/gatherly/pkg/rbac"
	"github.com/gatherly/gatherly/pkg/storage"
)

// staleRetries bounds how often a transition is re-attempted when a
// concurrent writer wins the guarded update.
const staleRetries = 3

// errNoop signals that the requested state already holds; the
// transition succeeds without a write.
var errNoop = errors.New("membership: no change")

// Coordinator executes membership transitions. Every transition
// re-fetches the record, re-resolves the invoker's role from that
// fresh copy, applies the mutation under an optimistic guard, then
// verifies the outcome on the stored record and rolls back if the
// verification fails. Unknown states deny.
type Coordinator struct {
	store   storage.CollectionStore
	posts   storage.PostStore
	invites storage.InvitationStore
	checker *rbac.Checker
	bus     events.Bus
	now     func() time.Time
}

// NewCoordinator creates a membership coordinator.
func NewCoordinator(store storage.CollectionStore, posts storage.PostStore, invites storage.InvitationStore, checker *rbac.Checker, bus events.Bus) *Coordinator {
	return &Coordinator{
		store:   store,
		posts:   posts,
		invites: invites,
		checker: checker,
		bus:     bus,
		now:     time.Now,
	}
}

type mutateFunc func(c *collections.Collection) error
type verifyFunc func(c *collections.Collection) error

// apply runs one transition: fresh fetch, mutate a clone, guarded
// write, verify, rollback on verification failure. Stale writes are
// retried from the top so the mutation always sees current state.
func (co *Coordinator) apply(ctx context.Context, id string, mutate mutateFunc, verify verifyFunc) (*collections.Collection, error) {
	for attempt := 0; attempt < staleRetries; attempt++ {
		current, err := co.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}

		next := current.Clone()
		if err := mutate(next); err != nil {
			if errors.Is(err, errNoop) {
				return current, nil
			}
			return nil, err
		}

		updated, err := co.store.ReplaceMembership(ctx, id, current.UpdatedAt, storage.SetsFrom(next))
		if errors.Is(err, collections.ErrStaleState) {
			continue
		}
		if err != nil {
			return nil, err
		}

		if verify != nil {
			if verr := verify(updated); verr != nil {
				// The stored outcome does not match the intended
				// transition. Restore the pre-write sets and deny.
				if _, rerr := co.store.ReplaceMembership(ctx, id, updated.UpdatedAt, storage.SetsFrom(current)); rerr != nil {
					observability.FromContext(ctx).WithError(rerr).
						WithField("collection_id", id).
						Error("membership rollback failed, record left in unverified state")
				}
				return nil, verr
			}
		}
		return updated, nil
	}
	return nil, collections.StaleStatef("collection %s changed concurrently on every attempt", id)
}

func (co *Coordinator) publish(ctx context.Context, t events.Type, collectionID, actorID, subjectID string) {
	co.bus.Publish(ctx, &events.Event{
		Type:         t,
		CollectionID: collectionID,
		ActorID:      actorID,
		SubjectID:    subjectID,
	})
}

// Follow adds the actor as a follower. Following is idempotent, and a
// user already holding a higher role keeps it unchanged.
func (co *Coordinator) Follow(ctx context.Context, collectionID, actorID string) (*collections.Collection, error) {
	changed := false
	updated, err := co.apply(ctx, collectionID,
		func(c *collections.Collection) error {
			if collections.ResolveRole(c, actorID) != collections.RoleOutsider {
				return errNoop
			}
			if !collections.CanView(c, actorID) {
				return collections.PermissionDeniedf("user %s may not view collection %s", actorID, collectionID)
			}
			c.Followers = collections.Add(c.Followers, actorID)
			changed = true
			return nil
		},
		func(c *collections.Collection) error {
			if !c.IsFollower(actorID) {
				return collections.InvariantViolationf("follow by %s did not persist", actorID)
			}
			return nil
		})
	if err != nil {
		return nil, err
	}
	if changed {
		co.publish(ctx, events.CollectionFollowed, collectionID, actorID, "")
	}
	return updated, nil
}

// Unfollow removes the actor from the followers set. Unfollowing when
// not following is a no-op.
func (co *Coordinator) Unfollow(ctx context.Context, collectionID, actorID string) (*collections.Collection, error) {
	changed := false
	updated, err := co.apply(ctx, collectionID,
		func(c *collections.Collection) error {
			if !c.IsFollower(actorID) {
				return errNoop
			}
			c.Followers = collections.Remove(c.Followers, actorID)
			changed = true
			return nil
		}, nil)
	if err != nil {
		return nil, err
	}
	if changed {
		co.publish(ctx, events.CollectionUnfollowed, collectionID, actorID, "")
	}
	return updated, nil
}

// RequestJoin toggles a join request on a request-type collection:
// a second request from the same user cancels the first. The returned
// flag reports whether a request is pending after the call.
func (co *Coordinator) RequestJoin(ctx context.Context, collectionID, actorID string) (pending bool, err error) {
	_, err = co.apply(ctx, collectionID,
		func(c *collections.Collection) error {
			if c.Type != collections.TypeRequest {
				return collections.InvariantViolationf("collection %s does not take join requests", collectionID)
			}
			role := collections.ResolveRole(c, actorID)
			if role.AtLeast(collections.RoleMember) {
				return collections.InvariantViolationf("user %s is already a member", actorID)
			}
			if !collections.CanView(c, actorID) {
				return collections.PermissionDeniedf("user %s may not view collection %s", actorID, collectionID)
			}
			if c.HasPendingRequest(actorID) {
				c.PendingRequests = collections.Remove(c.PendingRequests, actorID)
				pending = false
			} else {
				c.PendingRequests = collections.Add(c.PendingRequests, actorID)
				pending = true
			}
			return nil
		}, nil)
	if err != nil {
		return false, err
	}

	if pending {
		co.publish(ctx, events.RequestSent, collectionID, actorID, "")
	} else {
		co.publish(ctx, events.RequestCancelled, collectionID, actorID, "")
	}
	return pending, nil
}

// Join makes the actor a member of an open collection. Joining twice
// is a no-op.
func (co *Coordinator) Join(ctx context.Context, collectionID, actorID string) (*collections.Collection, error) {
	changed := false
	updated, err := co.apply(ctx, collectionID,
		func(c *collections.Collection) error {
			if c.Type != collections.TypeOpen {
				return collections.PermissionDeniedf("collection %s is not open", collectionID)
			}
			role := collections.ResolveRole(c, actorID)
			if role.AtLeast(collections.RoleMember) {
				return errNoop
			}
			if !collections.CanView(c, actorID) {
				return collections.PermissionDeniedf("user %s may not view collection %s", actorID, collectionID)
			}
			co.admit(c, actorID)
			changed = true
			return nil
		},
		func(c *collections.Collection) error {
			if collections.ResolveRole(c, actorID) != collections.RoleMember {
				return collections.InvariantViolationf("join by %s did not persist", actorID)
			}
			return nil
		})
	if err != nil {
		return nil, err
	}
	if changed {
		co.publish(ctx, events.CollectionJoined, collectionID, actorID, "")
	}
	return updated, nil
}

// Leave removes the actor's role entirely. The owner cannot leave;
// they must delete the collection instead. Leaving without a role is
// a no-op.
func (co *Coordinator) Leave(ctx context.Context, collectionID, actorID string) (*collections.Collection, error) {
	changed := false
	updated, err := co.apply(ctx, collectionID,
		func(c *collections.Collection) error {
			role := collections.ResolveRole(c, actorID)
			if role == collections.RoleOwner {
				return collections.PermissionDeniedf("the owner cannot leave collection %s", collectionID)
			}
			if role == collections.RoleOutsider {
				return errNoop
			}
			co.evict(c, actorID)
			changed = true
			return nil
		},
		func(c *collections.Collection) error {
			if collections.ResolveRole(c, actorID) != collections.RoleOutsider {
				return collections.InvariantViolationf("leave by %s did not persist", actorID)
			}
			return nil
		})
	if err != nil {
		return nil, err
	}
	if changed {
		co.publish(ctx, events.CollectionLeft, collectionID, actorID, "")
	}
	return updated, nil
}

// admit makes userID a member, clearing any follower or pending state.
func (co *Coordinator) admit(c *collections.Collection, userID string) {
	c.Members = collections.Add(c.Members, userID)
	c.Followers = collections.Remove(c.Followers, userID)
	c.PendingRequests = collections.Remove(c.PendingRequests, userID)
	if c.MemberJoinDates == nil {
		c.MemberJoinDates = make(map[string]time.Time)
	}
	c.MemberJoinDates[userID] = co.now().UTC()
}

// evict strips every role userID holds below owner.
func (co *Coordinator) evict(c *collections.Collection, userID string) {
	c.Admins = collections.Remove(c.Admins, userID)
	c.Members = collections.Remove(c.Members, userID)
	c.Followers = collections.Remove(c.Followers, userID)
	c.PendingRequests = collections.Remove(c.PendingRequests, userID)
	delete(c.MemberJoinDates, userID)
}
