package collections

import (
	"time"
)

// Type represents the membership policy of a collection, fixed at creation.
type Type string

const (
	// TypeIndividual is a single-occupant collection; the owner is the only member.
	TypeIndividual Type = "individual"
	// TypeInvite admits members only through owner/admin invitations.
	TypeInvite Type = "invite"
	// TypeRequest admits members after owner/admin approval of a join request.
	TypeRequest Type = "request"
	// TypeOpen admits any user as a member without approval.
	TypeOpen Type = "open"
)

// Valid reports whether t is a known collection type.
func (t Type) Valid() bool {
	switch t {
	case TypeIndividual, TypeInvite, TypeRequest, TypeOpen:
		return true
	}
	return false
}

// RequiresPublic reports whether the type forces public visibility.
// Request and Open collections must be discoverable to be joinable.
func (t Type) RequiresPublic() bool {
	return t == TypeRequest || t == TypeOpen
}

// Role is a user's relationship to a collection. Roles are mutually
// exclusive and hierarchical: a user occupies exactly the highest tier
// that applies.
type Role string

const (
	RoleOwner    Role = "owner"
	RoleAdmin    Role = "admin"
	RoleMember   Role = "member"
	RoleFollower Role = "follower"
	RoleOutsider Role = "outsider"
)

// tier maps roles to their position in the hierarchy, higher is more
// privileged.
func (r Role) tier() int {
	switch r {
	case RoleOwner:
		return 4
	case RoleAdmin:
		return 3
	case RoleMember:
		return 2
	case RoleFollower:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether r is at or above the given tier.
func (r Role) AtLeast(other Role) bool {
	return r.tier() >= other.tier()
}

// Collection is the canonical record for a photo/video collection.
// Admins is a distinct set from OwnerID: the owner is conceptually an
// admin but is tracked separately and never appears in the Admins slice.
type Collection struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	PhotoURL    string `json:"photo_url,omitempty"`

	OwnerID   string   `json:"owner_id"`
	Admins    []string `json:"admins"`
	Members   []string `json:"members"`
	Followers []string `json:"followers"`

	Type     Type `json:"type"`
	IsPublic bool `json:"is_public"`

	// AllowedUsers is the explicit viewer allow-list, meaningful only
	// when IsPublic is false.
	AllowedUsers []string `json:"allowed_users,omitempty"`
	// DeniedUsers is the explicit viewer deny-list, meaningful only
	// when IsPublic is true.
	DeniedUsers []string `json:"denied_users,omitempty"`

	// PendingRequests holds user ids awaiting owner/admin approval.
	// Only populated for request-type collections.
	PendingRequests []string `json:"pending_requests,omitempty"`

	// MemberJoinDates orders the members list most-recent-first.
	MemberJoinDates map[string]time.Time `json:"member_join_dates,omitempty"`

	MemberCount int `json:"member_count"`

	// PostSort names the stored ordering for unpinned posts. The posts
	// package interprets it and falls back to newest first when unset.
	PostSort string `json:"post_sort,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// Update describes a partial edit to a collection. Nil fields are left
// untouched by the store; the type itself is not editable after creation.
type Update struct {
	Name         *string   `json:"name,omitempty"`
	Description  *string   `json:"description,omitempty"`
	PhotoURL     *string   `json:"photo_url,omitempty"`
	IsPublic     *bool     `json:"is_public,omitempty"`
	AllowedUsers *[]string `json:"allowed_users,omitempty"`
	DeniedUsers  *[]string `json:"denied_users,omitempty"`
	PostSort     *string   `json:"post_sort,omitempty"`
}

// Empty reports whether the update would change nothing.
func (u Update) Empty() bool {
	return u.Name == nil && u.Description == nil && u.PhotoURL == nil &&
		u.IsPublic == nil && u.AllowedUsers == nil && u.DeniedUsers == nil &&
		u.PostSort == nil
}

// IsAdmin reports whether userID is in the admins set. The owner is not
// part of the set; use ResolveRole for tier resolution.
func (c *Collection) IsAdmin(userID string) bool {
	return contains(c.Admins, userID)
}

// IsMember reports whether userID is in the members set.
func (c *Collection) IsMember(userID string) bool {
	return contains(c.Members, userID)
}

// IsFollower reports whether userID is in the followers set.
func (c *Collection) IsFollower(userID string) bool {
	return contains(c.Followers, userID)
}

// HasPendingRequest reports whether userID has an outstanding join request.
func (c *Collection) HasPendingRequest(userID string) bool {
	return contains(c.PendingRequests, userID)
}

// IsDeleted reports whether the collection has been soft-deleted.
func (c *Collection) IsDeleted() bool {
	return c.DeletedAt != nil
}

// Clone returns a deep copy, used for optimistic mutation with rollback.
func (c *Collection) Clone() *Collection {
	if c == nil {
		return nil
	}
	dup := *c
	dup.Admins = append([]string(nil), c.Admins...)
	dup.Members = append([]string(nil), c.Members...)
	dup.Followers = append([]string(nil), c.Followers...)
	dup.AllowedUsers = append([]string(nil), c.AllowedUsers...)
	dup.DeniedUsers = append([]string(nil), c.DeniedUsers...)
	dup.PendingRequests = append([]string(nil), c.PendingRequests...)
	if c.MemberJoinDates != nil {
		dup.MemberJoinDates = make(map[string]time.Time, len(c.MemberJoinDates))
		for k, v := range c.MemberJoinDates {
			dup.MemberJoinDates[k] = v
		}
	}
	if c.DeletedAt != nil {
		t := *c.DeletedAt
		dup.DeletedAt = &t
	}
	return &dup
}

// MembersNewestFirst returns the member ids ordered by join date,
// most recent first. Members without a recorded join date sort last,
// in their stored order.
func (c *Collection) MembersNewestFirst() []string {
	ordered := append([]string(nil), c.Members...)
	// Insertion sort keeps the stored order stable for missing dates.
	for i := 1; i < len(ordered); i++ {
		for j := i; j > 0; j-- {
			a, okA := c.MemberJoinDates[ordered[j]]
			b, okB := c.MemberJoinDates[ordered[j-1]]
			if okA && (!okB || a.After(b)) {
				ordered[j], ordered[j-1] = ordered[j-1], ordered[j]
			} else {
				break
			}
		}
	}
	return ordered
}

func contains(set []string, id string) bool {
	for _, v := range set {
		if v == id {
			return true
		}
	}
	return false
}

// Add returns set with id appended if not already present.
func Add(set []string, id string) []string {
	if contains(set, id) {
		return set
	}
	return append(set, id)
}

// Remove returns set with id removed if present.
func Remove(set []string, id string) []string {
	for i, v := range set {
		if v == id {
			return append(set[:i:i], set[i+1:]...)
		}
	}
	return set
}
