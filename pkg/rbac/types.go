package rbac

import (
	"github.com/gatherly/gatherly/pkg/collections"
)

// Action represents an operation a user can attempt on a collection or
// one of its posts.
type Action string

const (
	ActionEditCollection   Action = "collection:edit"
	ActionManageAccess     Action = "collection:manage_access"
	ActionViewFollowers    Action = "collection:view_followers"
	ActionPromoteMember    Action = "collection:promote_member"
	ActionRemoveAdmin      Action = "collection:remove_admin"
	ActionRemoveMember     Action = "collection:remove_member"
	ActionDeleteCollection Action = "collection:delete"
	ActionInviteMember     Action = "collection:invite_member"
	ActionApproveRequest   Action = "collection:approve_request"
	ActionPinPost          Action = "post:pin"
	ActionDeletePost       Action = "post:delete"
	ActionCreatePost       Action = "post:create"
)

// Context carries the collection-shaped facts a permission decision can
// depend on beyond the invoker's role tier. Post fields are only
// consulted for post-level actions.
type Context struct {
	CollectionType collections.Type

	// PostAuthorID and InvokerID feed the authorship exceptions:
	// members may delete their own posts, and in individual-type
	// collections pin/delete rights belong to the post author.
	PostAuthorID string
	InvokerID    string
}

// IsAuthor reports whether the invoker authored the post under decision.
func (c Context) IsAuthor() bool {
	return c.PostAuthorID != "" && c.PostAuthorID == c.InvokerID
}

// Decision records the outcome of a permission check, for logging and
// HTTP responses.
type Decision struct {
	Allowed bool             `json:"allowed"`
	Role    collections.Role `json:"role"`
	Action  Action           `json:"action"`
	Reason  string           `json:"reason,omitempty"`
}
