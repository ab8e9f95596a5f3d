package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/gatherly/gatherly/pkg/collections"
)

const tokenColumns = `id, user_id, token_hash, token_prefix, name, scopes, expires_at, last_used_at, created_at, revoked_at`

// SQLTokenStore implements TokenStore on PostgreSQL.
type SQLTokenStore struct {
	db *sql.DB
}

// NewSQLTokenStore creates a token store.
func NewSQLTokenStore(db *sql.DB) *SQLTokenStore {
	return &SQLTokenStore{db: db}
}

func (s *SQLTokenStore) Insert(ctx context.Context, t *APIToken) error {
	query := `
		INSERT INTO api_tokens (id, user_id, token_hash, token_prefix, name, scopes, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	scopes := make([]string, len(t.Scopes))
	for i, sc := range t.Scopes {
		scopes[i] = string(sc)
	}

	_, err := s.db.ExecContext(ctx, query,
		t.ID, t.UserID, t.TokenHash, t.TokenPrefix, t.Name,
		pq.Array(scopes), t.ExpiresAt, t.CreatedAt)
	if err != nil {
		return collections.TransientStore(fmt.Errorf("failed to insert token: %w", err))
	}
	return nil
}

func (s *SQLTokenStore) GetByHash(ctx context.Context, hash string) (*APIToken, error) {
	query := `SELECT ` + tokenColumns + ` FROM api_tokens WHERE token_hash = $1`
	return s.scanToken(s.db.QueryRowContext(ctx, query, hash))
}

func (s *SQLTokenStore) ListByUser(ctx context.Context, userID string) ([]*APIToken, error) {
	query := `SELECT ` + tokenColumns + ` FROM api_tokens WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, collections.TransientStore(fmt.Errorf("failed to list tokens: %w", err))
	}
	defer rows.Close()

	var out []*APIToken
	for rows.Next() {
		t, err := s.scanToken(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLTokenStore) Revoke(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE api_tokens SET revoked_at = $2 WHERE id = $1 AND revoked_at IS NULL`

	result, err := s.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return collections.TransientStore(fmt.Errorf("failed to revoke token: %w", err))
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return collections.TransientStore(err)
	}
	if affected == 0 {
		return collections.ErrNotFound
	}
	return nil
}

func (s *SQLTokenStore) TouchLastUsed(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE api_tokens SET last_used_at = $2 WHERE id = $1`
	_, err := s.db.ExecContext(ctx, query, id, at)
	return err
}

func (s *SQLTokenStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	query := `DELETE FROM api_tokens WHERE expires_at IS NOT NULL AND expires_at < $1`

	result, err := s.db.ExecContext(ctx, query, before)
	if err != nil {
		return 0, collections.TransientStore(fmt.Errorf("failed to delete expired tokens: %w", err))
	}
	return result.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *SQLTokenStore) scanToken(row rowScanner) (*APIToken, error) {
	var t APIToken
	var scopes pq.StringArray

	err := row.Scan(&t.ID, &t.UserID, &t.TokenHash, &t.TokenPrefix, &t.Name,
		&scopes, &t.ExpiresAt, &t.LastUsedAt, &t.CreatedAt, &t.RevokedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, collections.ErrNotFound
	}
	if err != nil {
		return nil, collections.TransientStore(fmt.Errorf("failed to scan token: %w", err))
	}

	t.Scopes = make([]Scope, len(scopes))
	for i, sc := range scopes {
		t.Scopes[i] = Scope(sc)
	}
	return &t, nil
}
