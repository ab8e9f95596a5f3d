package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// TokenPrefix identifies Gatherly tokens
	TokenPrefix = "gatherly_"
	// TokenLength is the total length of random bytes (32 bytes = 256 bits)
	TokenLength = 32
)

// TokenGenerator generates and validates API tokens
type TokenGenerator struct{}

// NewTokenGenerator creates a new token generator
func NewTokenGenerator() *TokenGenerator {
	return &TokenGenerator{}
}

// GenerateToken creates a new API token.
// Format: gatherly_<base64url(32 random bytes)>
func (tg *TokenGenerator) GenerateToken() (token string, tokenHash string, tokenPrefix string, err error) {
	randomBytes := make([]byte, TokenLength)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", "", "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	encodedToken := base64.RawURLEncoding.EncodeToString(randomBytes)
	fullToken := TokenPrefix + encodedToken

	hash := sha256.Sum256([]byte(fullToken))
	hashStr := hex.EncodeToString(hash[:])

	// The first 8 encoded chars identify the token in listings without
	// revealing the secret part.
	prefix := TokenPrefix
	if len(encodedToken) >= 8 {
		prefix = TokenPrefix + encodedToken[:8]
	}

	return fullToken, hashStr, prefix, nil
}

// HashToken computes the SHA256 hash of a token for lookup
func (tg *TokenGenerator) HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// ValidateTokenFormat checks if a token has the correct format
func (tg *TokenGenerator) ValidateTokenFormat(token string) error {
	if !strings.HasPrefix(token, TokenPrefix) {
		return fmt.Errorf("token must start with %q", TokenPrefix)
	}

	encodedPart := strings.TrimPrefix(token, TokenPrefix)
	if len(encodedPart) == 0 {
		return fmt.Errorf("token is too short")
	}

	if _, err := base64.RawURLEncoding.DecodeString(encodedPart); err != nil {
		return fmt.Errorf("invalid token encoding: %w", err)
	}

	return nil
}

// ExtractPrefix extracts the prefix from a token for display
func (tg *TokenGenerator) ExtractPrefix(token string) string {
	if !strings.HasPrefix(token, TokenPrefix) {
		return ""
	}

	encodedPart := strings.TrimPrefix(token, TokenPrefix)
	if len(encodedPart) >= 8 {
		return TokenPrefix + encodedPart[:8]
	}

	return token
}

// TokenStore persists API tokens by hash.
type TokenStore interface {
	Insert(ctx context.Context, t *APIToken) error
	GetByHash(ctx context.Context, hash string) (*APIToken, error)
	ListByUser(ctx context.Context, userID string) ([]*APIToken, error)
	Revoke(ctx context.Context, id string, at time.Time) error
	TouchLastUsed(ctx context.Context, id string, at time.Time) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// TokenManager manages API token lifecycle
type TokenManager struct {
	generator *TokenGenerator
	store     TokenStore
	now       func() time.Time
}

// NewTokenManager creates a new token manager
func NewTokenManager(store TokenStore) *TokenManager {
	return &TokenManager{
		generator: NewTokenGenerator(),
		store:     store,
		now:       time.Now,
	}
}

// CreateToken creates a new API token. The plaintext is returned once
// and never stored.
func (tm *TokenManager) CreateToken(ctx context.Context, userID, name string, scopes []Scope, expiresAt *time.Time) (*APIToken, string, error) {
	token, tokenHash, tokenPrefix, err := tm.generator.GenerateToken()
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate token: %w", err)
	}

	apiToken := &APIToken{
		ID:          uuid.NewString(),
		UserID:      userID,
		TokenHash:   tokenHash,
		TokenPrefix: tokenPrefix,
		Name:        name,
		Scopes:      scopes,
		ExpiresAt:   expiresAt,
		CreatedAt:   tm.now().UTC(),
	}

	if err := tm.store.Insert(ctx, apiToken); err != nil {
		return nil, "", fmt.Errorf("failed to store token: %w", err)
	}

	return apiToken, token, nil
}

// ValidateToken validates a token and returns its record. Revoked and
// expired tokens fail; successful validation stamps last_used_at.
func (tm *TokenManager) ValidateToken(ctx context.Context, token string) (*APIToken, error) {
	if err := tm.generator.ValidateTokenFormat(token); err != nil {
		return nil, fmt.Errorf("invalid token format: %w", err)
	}

	record, err := tm.store.GetByHash(ctx, tm.generator.HashToken(token))
	if err != nil {
		return nil, err
	}
	if record.Revoked() {
		return nil, fmt.Errorf("token %s has been revoked", record.TokenPrefix)
	}
	if record.Expired(tm.now()) {
		return nil, fmt.Errorf("token %s has expired", record.TokenPrefix)
	}

	// Best effort; a failed stamp does not fail the request.
	_ = tm.store.TouchLastUsed(ctx, record.ID, tm.now().UTC())

	return record, nil
}

// RevokeToken revokes a token
func (tm *TokenManager) RevokeToken(ctx context.Context, tokenID string) error {
	return tm.store.Revoke(ctx, tokenID, tm.now().UTC())
}

// ListUserTokens lists all tokens for a user
func (tm *TokenManager) ListUserTokens(ctx context.Context, userID string) ([]*APIToken, error) {
	return tm.store.ListByUser(ctx, userID)
}

// CleanupExpiredTokens removes tokens past their expiry.
func (tm *TokenManager) CleanupExpiredTokens(ctx context.Context) (int64, error) {
	return tm.store.DeleteExpired(ctx, tm.now().UTC())
}
