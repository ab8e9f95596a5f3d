package auth

import "time"

// Scope represents API token scopes
type Scope string

const (
	ScopeCollectionsRead  Scope = "collections:read"
	ScopeCollectionsWrite Scope = "collections:write"
	ScopePostsWrite       Scope = "posts:write"
	ScopeMediaUpload      Scope = "media:upload"
	ScopeWebhooksManage   Scope = "webhooks:manage"
	ScopeAll              Scope = "*"
)

// APIToken represents an API token. The plaintext token is returned
// exactly once at creation; only the hash is stored.
type APIToken struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	TokenHash   string     `json:"-"`
	TokenPrefix string     `json:"token_prefix"`
	Name        string     `json:"name"`
	Scopes      []Scope    `json:"scopes"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	RevokedAt   *time.Time `json:"revoked_at,omitempty"`
}

// Revoked reports whether the token has been revoked.
func (t *APIToken) Revoked() bool {
	return t.RevokedAt != nil
}

// Expired reports whether the token is past its expiry.
func (t *APIToken) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && now.After(*t.ExpiresAt)
}

// AuthContext holds the authenticated caller for a request.
type AuthContext struct {
	UserID string
	Token  *APIToken
	Scopes []Scope
}

// HasScope checks if the context has a specific scope
func (ac *AuthContext) HasScope(scope Scope) bool {
	for _, s := range ac.Scopes {
		if s == ScopeAll || s == scope {
			return true
		}
	}
	return false
}
