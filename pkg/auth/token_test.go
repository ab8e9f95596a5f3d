package auth

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatherly/gatherly/pkg/collections"
)

func TestGenerateToken(t *testing.T) {
	tg := NewTokenGenerator()

	token, hash, prefix, err := tg.GenerateToken()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(token, TokenPrefix))
	assert.True(t, strings.HasPrefix(prefix, TokenPrefix))
	assert.Len(t, hash, 64)
	assert.Equal(t, tg.HashToken(token), hash)
	assert.Equal(t, tg.ExtractPrefix(token), prefix)
}

func TestGenerateTokenUnique(t *testing.T) {
	tg := NewTokenGenerator()

	a, _, _, err := tg.GenerateToken()
	require.NoError(t, err)
	b, _, _, err := tg.GenerateToken()
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestValidateTokenFormat(t *testing.T) {
	tg := NewTokenGenerator()

	tests := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{
			name:    "valid token",
			token:   TokenPrefix + "dGVzdHRva2VuZGF0YQ",
			wantErr: false,
		},
		{
			name:    "wrong prefix",
			token:   "other_abc",
			wantErr: true,
		},
		{
			name:    "prefix only",
			token:   TokenPrefix,
			wantErr: true,
		},
		{
			name:    "bad encoding",
			token:   TokenPrefix + "not!valid!base64!",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tg.ValidateTokenFormat(tt.token)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

type memTokenStore struct {
	mu     sync.Mutex
	byHash map[string]*APIToken
	byID   map[string]*APIToken
}

func newMemTokenStore() *memTokenStore {
	return &memTokenStore{
		byHash: make(map[string]*APIToken),
		byID:   make(map[string]*APIToken),
	}
}

func (s *memTokenStore) Insert(_ context.Context, t *APIToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dup := *t
	s.byHash[t.TokenHash] = &dup
	s.byID[t.ID] = &dup
	return nil
}

func (s *memTokenStore) GetByHash(_ context.Context, hash string) (*APIToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byHash[hash]
	if !ok {
		return nil, collections.ErrNotFound
	}
	dup := *t
	return &dup, nil
}

func (s *memTokenStore) ListByUser(_ context.Context, userID string) ([]*APIToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*APIToken
	for _, t := range s.byID {
		if t.UserID == userID {
			dup := *t
			out = append(out, &dup)
		}
	}
	return out, nil
}

func (s *memTokenStore) Revoke(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byID[id]
	if !ok || t.RevokedAt != nil {
		return collections.ErrNotFound
	}
	t.RevokedAt = &at
	return nil
}

func (s *memTokenStore) TouchLastUsed(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.byID[id]; ok {
		t.LastUsedAt = &at
	}
	return nil
}

func (s *memTokenStore) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, t := range s.byID {
		if t.ExpiresAt != nil && t.ExpiresAt.Before(before) {
			delete(s.byHash, t.TokenHash)
			delete(s.byID, id)
			n++
		}
	}
	return n, nil
}

func TestTokenManagerLifecycle(t *testing.T) {
	ctx := context.Background()
	tm := NewTokenManager(newMemTokenStore())

	record, plaintext, err := tm.CreateToken(ctx, "u1", "ci token", []Scope{ScopeCollectionsRead}, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, record.ID)
	assert.True(t, strings.HasPrefix(plaintext, TokenPrefix))

	validated, err := tm.ValidateToken(ctx, plaintext)
	require.NoError(t, err)
	assert.Equal(t, record.ID, validated.ID)

	require.NoError(t, tm.RevokeToken(ctx, record.ID))

	_, err = tm.ValidateToken(ctx, plaintext)
	assert.Error(t, err)
}

func TestTokenManagerExpiry(t *testing.T) {
	ctx := context.Background()
	store := newMemTokenStore()
	tm := NewTokenManager(store)

	expires := time.Now().Add(time.Hour)
	_, plaintext, err := tm.CreateToken(ctx, "u1", "short lived", []Scope{ScopeAll}, &expires)
	require.NoError(t, err)

	_, err = tm.ValidateToken(ctx, plaintext)
	require.NoError(t, err)

	tm.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	_, err = tm.ValidateToken(ctx, plaintext)
	assert.Error(t, err)

	deleted, err := tm.CleanupExpiredTokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}

func TestTokenManagerRejectsUnknownToken(t *testing.T) {
	tm := NewTokenManager(newMemTokenStore())

	_, err := tm.ValidateToken(context.Background(), TokenPrefix+"dGVzdHRva2VuZGF0YQ")
	assert.ErrorIs(t, err, collections.ErrNotFound)
}

func TestHasScope(t *testing.T) {
	ac := &AuthContext{Scopes: []Scope{ScopeCollectionsRead}}
	assert.True(t, ac.HasScope(ScopeCollectionsRead))
	assert.False(t, ac.HasScope(ScopePostsWrite))

	admin := &AuthContext{Scopes: []Scope{ScopeAll}}
	assert.True(t, admin.HasScope(ScopePostsWrite))
}
