package storage

import (
	"context"
	"io"
	"time"

	"github.com/gatherly/gatherly/pkg/collections"
	"github.com/gatherly/gatherly/pkg/posts"
)

// MembershipSets is a full replacement of a collection's role sets,
// written in one atomic step by the membership coordinator.
type MembershipSets struct {
	Admins          []string
	Members         []string
	Followers       []string
	AllowedUsers    []string
	DeniedUsers     []string
	PendingRequests []string
	MemberJoinDates map[string]time.Time
}

// SetsFrom snapshots the membership sets of a collection record.
func SetsFrom(c *collections.Collection) MembershipSets {
	return MembershipSets{
		Admins:          c.Admins,
		Members:         c.Members,
		Followers:       c.Followers,
		AllowedUsers:    c.AllowedUsers,
		DeniedUsers:     c.DeniedUsers,
		PendingRequests: c.PendingRequests,
		MemberJoinDates: c.MemberJoinDates,
	}
}

// CollectionStore persists collection records.
//
// ApplyUpdate merges only the fields the update carries. Membership
// writes go through ReplaceMembership, which is guarded by the
// record's last known update time and returns ErrStaleState when a
// concurrent writer got there first.
type CollectionStore interface {
	Create(ctx context.Context, c *collections.Collection) error
	Get(ctx context.Context, id string) (*collections.Collection, error)
	ListForUser(ctx context.Context, userID string, limit, offset int) ([]*collections.Collection, int64, error)
	ApplyUpdate(ctx context.Context, id string, u collections.Update) (*collections.Collection, error)
	ReplaceMembership(ctx context.Context, id string, expect time.Time, sets MembershipSets) (*collections.Collection, error)
	Delete(ctx context.Context, id string) error
}

// PostStore persists posts. Deletes are soft; Purge removes rows whose
// soft-delete is older than the cutoff.
type PostStore interface {
	Create(ctx context.Context, p *posts.Post) error
	Get(ctx context.Context, id string) (*posts.Post, error)
	ListByCollection(ctx context.Context, collectionID string) ([]*posts.Post, error)
	ApplyUpdate(ctx context.Context, id string, u posts.Update) (*posts.Post, error)
	SetPin(ctx context.Context, id string, pinned bool, pinnedAt *time.Time) error
	SoftDelete(ctx context.Context, id string) error
	DeleteByCollection(ctx context.Context, collectionID string) error
	Purge(ctx context.Context, deletedBefore time.Time) (int64, error)
}

// InvitationStore persists membership invitations. Tokens are stored
// hashed; lookups take the raw token.
type InvitationStore interface {
	Create(ctx context.Context, inv *collections.Invitation) error
	GetByToken(ctx context.Context, token string) (*collections.Invitation, error)
	ListByCollection(ctx context.Context, collectionID string) ([]*collections.Invitation, error)
	MarkAccepted(ctx context.Context, id string, at time.Time) error
	Revoke(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// User is a directory entry, used for display and block filtering.
// Role decisions never consult the directory.
type User struct {
	ID          string   `json:"id"`
	Username    string   `json:"username"`
	DisplayName string   `json:"display_name,omitempty"`
	AvatarURL   string   `json:"avatar_url,omitempty"`
	Blocked     []string `json:"blocked,omitempty"`
}

// UserDirectory resolves user ids to profiles.
type UserDirectory interface {
	GetUser(ctx context.Context, id string) (*User, error)
	GetUsers(ctx context.Context, ids []string) ([]*User, error)
}

// MediaStorage uploads post media and returns the public URL the post
// record stores.
type MediaStorage interface {
	Upload(ctx context.Context, key string, content io.Reader, contentType string) (url string, err error)
	Delete(ctx context.Context, key string) error
	HealthCheck(ctx context.Context) error
}

// Config for storage backends
type Config struct {
	// PostgreSQL config
	PostgresURL         string
	PostgresReplicaURLs []string
	PostgresMaxConns    int
	PostgresMinConns    int
	PostgresTimeout     time.Duration

	// S3 config
	S3Endpoint     string
	S3Region       string
	S3Bucket       string
	S3AccessKey    string
	S3SecretKey    string
	S3PublicURL    string
	S3UsePathStyle bool

	// Redis config
	RedisURL        string
	RedisPassword   string
	RedisDB         int
	RedisMaxRetries int
	RedisPoolSize   int

	// Cache config
	CacheEnabled  bool
	CacheTTL      map[string]time.Duration
	UserCacheSize int
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() Config {
	return Config{
		PostgresMaxConns: 20,
		PostgresMinConns: 2,
		PostgresTimeout:  10 * time.Second,
		RedisDB:          0,
		RedisMaxRetries:  3,
		RedisPoolSize:    10,
		CacheEnabled:     true,
		CacheTTL: map[string]time.Duration{
			"collection": 5 * time.Minute,
			"post_list":  1 * time.Minute,
			"user":       15 * time.Minute,
		},
		UserCacheSize: 10000,
	}
}
