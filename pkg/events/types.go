package events

import "time"

// Type names a domain event on the bus.
type Type string

const (
	CollectionCreated Type = "collection.created"
	CollectionUpdated Type = "collection.updated"
	CollectionDeleted Type = "collection.deleted"

	CollectionFollowed   Type = "collection.followed"
	CollectionUnfollowed Type = "collection.unfollowed"
	CollectionJoined     Type = "collection.joined"
	CollectionLeft       Type = "collection.left"

	RequestSent      Type = "collection.request_sent"
	RequestCancelled Type = "collection.request_cancelled"
	RequestApproved  Type = "collection.request_approved"

	MemberPromoted Type = "collection.member_promoted"
	MemberDemoted  Type = "collection.member_demoted"
	MemberRemoved  Type = "collection.member_removed"

	InvitationCreated  Type = "invitation.created"
	InvitationAccepted Type = "invitation.accepted"
	InvitationRevoked  Type = "invitation.revoked"

	PostCreated  Type = "post.created"
	PostUpdated  Type = "post.updated"
	PostDeleted  Type = "post.deleted"
	PostPinned   Type = "post.pinned"
	PostUnpinned Type = "post.unpinned"

	ReplyCreated Type = "reply.created"
	ReplyDeleted Type = "reply.deleted"
)

// Event is a single domain event. SubjectID is the user acted upon
// when that differs from the actor, such as the member being promoted
// or removed.
type Event struct {
	ID           string                 `json:"id"`
	Type         Type                   `json:"type"`
	CollectionID string                 `json:"collection_id,omitempty"`
	PostID       string                 `json:"post_id,omitempty"`
	ActorID      string                 `json:"actor_id,omitempty"`
	SubjectID    string                 `json:"subject_id,omitempty"`
	Timestamp    time.Time              `json:"timestamp"`
	Data         map[string]interface{} `json:"data,omitempty"`
}
