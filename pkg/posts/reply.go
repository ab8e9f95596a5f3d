package posts

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gatherly/gatherly/pkg/collections"
	"github.com/gatherly/gatherly/pkg/events"
	"github.com/gatherly/gatherly/pkg/rbac"
)

// MaxReplyLength caps reply body size.
const MaxReplyLength = 2000

// Reply is a comment on a post.
type Reply struct {
	ID        string     `json:"id"`
	PostID    string     `json:"post_id"`
	AuthorID  string     `json:"author_id"`
	Body      string     `json:"body"`
	CreatedAt time.Time  `json:"created_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// ReplyStore persists replies.
type ReplyStore interface {
	Create(ctx context.Context, r *Reply) error
	Get(ctx context.Context, id string) (*Reply, error)
	ListByPost(ctx context.Context, postID string) ([]*Reply, error)
	SoftDelete(ctx context.Context, id string) error
}

// ReplyService gates reply creation on the post's AllowReplies flag
// and on collection visibility.
type ReplyService struct {
	replies ReplyStore
	posts   Store
	colls   rbac.CollectionGetter
	checker *rbac.Checker
	bus     events.Bus
	now     func() time.Time
}

// NewReplyService creates a reply service.
func NewReplyService(replies ReplyStore, postStore Store, colls rbac.CollectionGetter, checker *rbac.Checker, bus events.Bus) *ReplyService {
	return &ReplyService{
		replies: replies,
		posts:   postStore,
		colls:   colls,
		checker: checker,
		bus:     bus,
		now:     time.Now,
	}
}

// Create adds a reply to a post. Any viewer of the collection may
// reply while the post allows it.
func (s *ReplyService) Create(ctx context.Context, postID, actorID, body string) (*Reply, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, collections.InvariantViolationf("reply body is required")
	}
	if len(body) > MaxReplyLength {
		return nil, collections.InvariantViolationf("reply exceeds %d characters", MaxReplyLength)
	}

	p, err := s.posts.Get(ctx, postID)
	if err != nil {
		return nil, err
	}
	c, err := s.colls.GetCollection(ctx, p.CollectionID)
	if err != nil {
		return nil, err
	}
	if !collections.CanView(c, actorID) {
		return nil, collections.ErrNotFound
	}
	if !p.AllowReplies {
		return nil, collections.InvariantViolationf("replies are disabled on post %s", postID)
	}

	r := &Reply{
		ID:        uuid.NewString(),
		PostID:    postID,
		AuthorID:  actorID,
		Body:      body,
		CreatedAt: s.now().UTC(),
	}
	if err := s.replies.Create(ctx, r); err != nil {
		return nil, err
	}

	s.bus.Publish(ctx, &events.Event{
		Type:         events.ReplyCreated,
		CollectionID: p.CollectionID,
		PostID:       postID,
		ActorID:      actorID,
	})
	return r, nil
}

// List returns a post's replies oldest first, for viewers of the
// collection.
func (s *ReplyService) List(ctx context.Context, postID, viewerID string) ([]*Reply, error) {
	p, err := s.posts.Get(ctx, postID)
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
	return s.replies.ListByPost(ctx, postID)
}

// Delete removes a reply. The reply author always may; otherwise the
// same rule as post deletion applies.
func (s *ReplyService) Delete(ctx context.Context, replyID, actorID string) error {
	r, err := s.replies.Get(ctx, replyID)
	if err != nil {
		return err
	}
	p, err := s.posts.Get(ctx, r.PostID)
	if err != nil {
		return err
	}
	c, err := s.colls.GetCollection(ctx, p.CollectionID)
	if err != nil {
		return err
	}

	if r.AuthorID != actorID {
		role := collections.ResolveRole(c, actorID)
		rctx := rbac.Context{CollectionType: c.Type, PostAuthorID: r.AuthorID, InvokerID: actorID}
		if err := s.checker.Require(role, rbac.ActionDeletePost, rctx); err != nil {
			return err
		}
	}

	if err := s.replies.SoftDelete(ctx, replyID); err != nil {
		return err
	}

	s.bus.Publish(ctx, &events.Event{
		Type:         events.ReplyDeleted,
		CollectionID: p.CollectionID,
		PostID:       r.PostID,
		ActorID:      actorID,
	})
	return nil
}
