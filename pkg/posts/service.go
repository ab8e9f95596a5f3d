package posts

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/gatherly/gatherly/pkg/collections"
	"github.com/gatherly/gatherly/pkg/events"
	"github.com/gatherly/gatherly/pkg/rbac"
)

// Store is the persistence surface the service needs. Implemented by
// the postgres post store.
type Store interface {
	Create(ctx context.Context, p *Post) error
	Get(ctx context.Context, id string) (*Post, error)
	ListByCollection(ctx context.Context, collectionID string) ([]*Post, error)
	ApplyUpdate(ctx context.Context, id string, u Update) (*Post, error)
	SetPin(ctx context.Context, id string, pinned bool, pinnedAt *time.Time) error
	SoftDelete(ctx context.Context, id string) error
}

// Service applies permission checks and pin bookkeeping around the
// post store. Role resolution always uses a fresh collection fetch.
type Service struct {
	store   Store
	colls   rbac.CollectionGetter
	checker *rbac.Checker
	bus     events.Bus
	now     func() time.Time
}

// NewService creates a post service.
func NewService(store Store, colls rbac.CollectionGetter, checker *rbac.Checker, bus events.Bus) *Service {
	return &Service{
		store:   store,
		colls:   colls,
		checker: checker,
		bus:     bus,
		now:     time.Now,
	}
}

func (s *Service) publish(ctx context.Context, t events.Type, p *Post, actorID string) {
	s.bus.Publish(ctx, &events.Event{
		Type:         t,
		CollectionID: p.CollectionID,
		PostID:       p.ID,
		ActorID:      actorID,
	})
}

// Create adds a post to a collection. Member or above; the author is
// always the actor.
func (s *Service) Create(ctx context.Context, actorID string, p *Post) (*Post, error) {
	c, err := s.colls.GetCollection(ctx, p.CollectionID)
	if err != nil {
		return nil, err
	}

	role := collections.ResolveRole(c, actorID)
	if err := s.checker.Require(role, rbac.ActionCreatePost, rbac.Context{CollectionType: c.Type, InvokerID: actorID}); err != nil {
		return nil, err
	}

	p.ID = uuid.NewString()
	p.AuthorID = actorID
	now := s.now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	p.IsPinned = false
	p.PinnedAt = nil

	if err := ValidateNew(p); err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, p); err != nil {
		return nil, err
	}

	s.publish(ctx, events.PostCreated, p, actorID)
	return p, nil
}

// Get returns a post visible to the viewer. Posts in collections the
// viewer may not see look missing, not forbidden.
func (s *Service) Get(ctx context.Context, postID, viewerID string) (*Post, error) {
	p, err := s.store.Get(ctx, postID)
	if err != nil {
		return nil, err
	}
	c, err := s.colls.GetCollection(ctx, p.CollectionID)
	if err != nil {
		return nil, err
	}
	if !collections.CanView(c, viewerID) {
		return nil, collections.ErrNotFound
	}
	return p, nil
}

// List returns a collection's posts in display order: pinned posts
// first, then the rest under the collection's chosen sort.
func (s *Service) List(ctx context.Context, collectionID, viewerID string) ([]*Post, error) {
	c, err := s.colls.GetCollection(ctx, collectionID)
	if err != nil {
		return nil, err
	}
	if !collections.CanView(c, viewerID) {
		return nil, collections.ErrNotFound
	}

	all, err := s.store.ListByCollection(ctx, collectionID)
	if err != nil {
		return nil, err
	}
	return Sorted(all, c.Type, SortOption(c.PostSort)), nil
}

// Update edits a post's text and settings. Author only.
func (s *Service) Update(ctx context.Context, postID, actorID string, u Update) (*Post, error) {
	p, err := s.store.Get(ctx, postID)
	if err != nil {
		return nil, err
	}
	if p.AuthorID != actorID {
		return nil, collections.PermissionDeniedf("only the author may edit post %s", postID)
	}
	if u.Empty() {
		return p, nil
	}

	updated, err := s.store.ApplyUpdate(ctx, postID, u)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.PostUpdated, updated, actorID)
	return updated, nil
}

// Delete soft-deletes a post. Admins and above may delete any post;
// members only their own. In single-occupant collections the author
// decides.
func (s *Service) Delete(ctx context.Context, postID, actorID string) error {
	p, err := s.store.Get(ctx, postID)
	if err != nil {
		return err
	}
	c, err := s.colls.GetCollection(ctx, p.CollectionID)
	if err != nil {
		return err
	}

	role := collections.ResolveRole(c, actorID)
	rctx := rbac.Context{CollectionType: c.Type, PostAuthorID: p.AuthorID, InvokerID: actorID}
	if err := s.checker.Require(role, rbac.ActionDeletePost, rctx); err != nil {
		return err
	}

	if err := s.store.SoftDelete(ctx, postID); err != nil {
		return err
	}
	s.publish(ctx, events.PostDeleted, p, actorID)
	return nil
}

// Pin pins a post, evicting the oldest pin when the collection is at
// the cap. Pinning an already pinned post refreshes its pin time.
func (s *Service) Pin(ctx context.Context, postID, actorID string) (*Post, error) {
	p, err := s.store.Get(ctx, postID)
	if err != nil {
		return nil, err
	}
	c, err := s.colls.GetCollection(ctx, p.CollectionID)
	if err != nil {
		return nil, err
	}

	role := collections.ResolveRole(c, actorID)
	rctx := rbac.Context{CollectionType: c.Type, PostAuthorID: p.AuthorID, InvokerID: actorID}
	if err := s.checker.Require(role, rbac.ActionPinPost, rctx); err != nil {
		return nil, err
	}

	all, err := s.store.ListByCollection(ctx, p.CollectionID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	evicted := ApplyPin(all, p, now)

	if err := s.store.SetPin(ctx, p.ID, true, &now); err != nil {
		return nil, err
	}
	if evicted != nil {
		if err := s.store.SetPin(ctx, evicted.ID, false, nil); err != nil {
			return nil, err
		}
		s.publish(ctx, events.PostUnpinned, evicted, actorID)
	}

	s.publish(ctx, events.PostPinned, p, actorID)
	return p, nil
}

// Unpin clears a post's pin. Unpinning an unpinned post is a no-op.
func (s *Service) Unpin(ctx context.Context, postID, actorID string) (*Post, error) {
	p, err := s.store.Get(ctx, postID)
	if err != nil {
		return nil, err
	}
	c, err := s.colls.GetCollection(ctx, p.CollectionID)
	if err != nil {
		return nil, err
	}

	role := collections.ResolveRole(c, actorID)
	rctx := rbac.Context{CollectionType: c.Type, PostAuthorID: p.AuthorID, InvokerID: actorID}
	if err := s.checker.Require(role, rbac.ActionPinPost, rctx); err != nil {
		return nil, err
	}

	if !p.IsPinned {
		return p, nil
	}
	ApplyUnpin(p)
	if err := s.store.SetPin(ctx, p.ID, false, nil); err != nil {
		return nil, err
	}

	s.publish(ctx, events.PostUnpinned, p, actorID)
	return p, nil
}
