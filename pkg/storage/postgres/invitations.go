package postgres

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/gatherly/gatherly/pkg/collections"
)

const invitationColumns = `id, collection_id, inviter_id, invitee_id, created_at, expires_at, accepted_at`

// InvitationStore persists membership invitations. Only a SHA-256 hash
// of the token is stored; the raw token exists solely in the invite
// message sent to the user.
type InvitationStore struct {
	db *sql.DB
}

// NewInvitationStore creates an invitation store.
func NewInvitationStore(db *sql.DB) *InvitationStore {
	return &InvitationStore{db: db}
}

// Create inserts an invitation. The Token field on the record must be
// the raw token; it is hashed before storage and left untouched on the
// record for the caller to deliver.
func (s *InvitationStore) Create(ctx context.Context, inv *collections.Invitation) error {
	query := `
		INSERT INTO invitations (id, collection_id, inviter_id, invitee_id, token_hash, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`

	err := s.db.QueryRowContext(ctx, query,
		inv.ID, inv.CollectionID, inv.InviterID, inv.InviteeID, hashToken(inv.Token), inv.ExpiresAt,
	).Scan(&inv.CreatedAt)
	if err != nil {
		return collections.TransientStore(fmt.Errorf("failed to create invitation: %w", err))
	}
	return nil
}

// GetByToken looks up an invitation by its raw token.
func (s *InvitationStore) GetByToken(ctx context.Context, token string) (*collections.Invitation, error) {
	query := `SELECT ` + invitationColumns + ` FROM invitations WHERE token_hash = $1`
	return scanInvitation(s.db.QueryRowContext(ctx, query, hashToken(token)))
}

// ListByCollection returns a collection's invitations, newest first.
func (s *InvitationStore) ListByCollection(ctx context.Context, collectionID string) ([]*collections.Invitation, error) {
	query := `SELECT ` + invitationColumns + ` FROM invitations
		WHERE collection_id = $1 ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, collectionID)
	if err != nil {
		return nil, collections.TransientStore(fmt.Errorf("failed to list invitations: %w", err))
	}
	defer rows.Close()

	var result []*collections.Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, collections.TransientStore(fmt.Errorf("failed to iterate invitations: %w", err))
	}
	return result, nil
}

// MarkAccepted records the redemption time.
func (s *InvitationStore) MarkAccepted(ctx context.Context, id string, at time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE invitations SET accepted_at = $2 WHERE id = $1 AND accepted_at IS NULL`, id, at)
	if err != nil {
		return collections.TransientStore(fmt.Errorf("failed to mark invitation accepted: %w", err))
	}
	return requireAffected(result)
}

// Revoke removes an invitation before redemption.
func (s *InvitationStore) Revoke(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM invitations WHERE id = $1`, id)
	if err != nil {
		return collections.TransientStore(fmt.Errorf("failed to revoke invitation: %w", err))
	}
	return requireAffected(result)
}

// DeleteExpired removes unredeemed invitations past their expiry.
// Run from the janitor.
func (s *InvitationStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM invitations WHERE accepted_at IS NULL AND expires_at < $1`, before)
	if err != nil {
		return 0, collections.TransientStore(fmt.Errorf("failed to delete expired invitations: %w", err))
	}
	return result.RowsAffected()
}

func scanInvitation(row rowScanner) (*collections.Invitation, error) {
	var inv collections.Invitation
	err := row.Scan(
		&inv.ID, &inv.CollectionID, &inv.InviterID, &inv.InviteeID,
		&inv.CreatedAt, &inv.ExpiresAt, &inv.AcceptedAt,
	)
	if err == sql.ErrNoRows {
		return nil, collections.ErrNotFound
	} else if err != nil {
		return nil, collections.TransientStore(fmt.Errorf("failed to scan invitation: %w", err))
	}
	return &inv, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
