package posts

import (
	"strings"
	"time"

	"github.com/gatherly/gatherly/pkg/collections"
)

// MaxMediaItems caps the number of media attachments per post.
const MaxMediaItems = 5

// MaxPinned caps how many posts a collection may pin at once.
const MaxPinned = 4

// MediaKind distinguishes the attachment types a post can carry.
type MediaKind string

const (
	MediaPhoto MediaKind = "photo"
	MediaVideo MediaKind = "video"
)

// MediaItem is a single uploaded attachment, addressed by its storage
// URL after upload.
type MediaItem struct {
	URL          string    `json:"url"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty"`
	Kind         MediaKind `json:"kind"`
	Width        int       `json:"width,omitempty"`
	Height       int       `json:"height,omitempty"`
}

// Post is a photo or video entry inside a collection.
type Post struct {
	ID           string      `json:"id"`
	CollectionID string      `json:"collection_id"`
	AuthorID     string      `json:"author_id"`
	Title        string      `json:"title,omitempty"`
	Caption      string      `json:"caption,omitempty"`
	Media        []MediaItem `json:"media"`
	TaggedUsers  []string    `json:"tagged_users,omitempty"`

	AllowDownload bool `json:"allow_download"`
	AllowReplies  bool `json:"allow_replies"`

	IsPinned bool       `json:"is_pinned"`
	PinnedAt *time.Time `json:"pinned_at,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// IsDeleted reports whether the post has been soft deleted.
func (p *Post) IsDeleted() bool {
	return p.DeletedAt != nil
}

// sortKey is the case-insensitive text a post sorts under
// alphabetically. Caption wins over title; posts with neither sort
// last among their peers.
func (p *Post) sortKey() string {
	if p.Caption != "" {
		return strings.ToLower(p.Caption)
	}
	return strings.ToLower(p.Title)
}

// Update carries a partial post edit. Nil fields are untouched.
type Update struct {
	Title         *string   `json:"title,omitempty"`
	Caption       *string   `json:"caption,omitempty"`
	TaggedUsers   *[]string `json:"tagged_users,omitempty"`
	AllowDownload *bool     `json:"allow_download,omitempty"`
	AllowReplies  *bool     `json:"allow_replies,omitempty"`
}

// Empty reports whether the update carries no changes.
func (u Update) Empty() bool {
	return u.Title == nil && u.Caption == nil && u.TaggedUsers == nil &&
		u.AllowDownload == nil && u.AllowReplies == nil
}

// ValidateNew checks the structural requirements for a new post.
func ValidateNew(p *Post) error {
	if p == nil {
		return collections.InvariantViolationf("post is nil")
	}
	if p.ID == "" || p.CollectionID == "" || p.AuthorID == "" {
		return collections.InvariantViolationf("post requires id, collection id and author id")
	}
	if len(p.Media) == 0 {
		return collections.InvariantViolationf("post requires at least one media item")
	}
	if len(p.Media) > MaxMediaItems {
		return collections.InvariantViolationf("post may carry at most %d media items", MaxMediaItems)
	}
	for _, m := range p.Media {
		if m.URL == "" {
			return collections.InvariantViolationf("media item requires a url")
		}
		if m.Kind != MediaPhoto && m.Kind != MediaVideo {
			return collections.InvariantViolationf("unknown media kind %q", m.Kind)
		}
	}
	return nil
}
