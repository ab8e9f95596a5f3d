package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/gatherly/gatherly/pkg/collections"
	"github.com/gatherly/gatherly/pkg/posts"
)

const replyColumns = `id, post_id, author_id, body, created_at, deleted_at`

// ReplyStore is the PostgreSQL-backed reply store.
type ReplyStore struct {
	db *sql.DB
}

// NewReplyStore creates a reply store.
func NewReplyStore(db *sql.DB) *ReplyStore {
	return &ReplyStore{db: db}
}

// Create inserts a reply.
func (s *ReplyStore) Create(ctx context.Context, r *posts.Reply) error {
	query := `
		INSERT INTO replies (id, post_id, author_id, body)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`

	err := s.db.QueryRowContext(ctx, query, r.ID, r.PostID, r.AuthorID, r.Body).Scan(&r.CreatedAt)
	if err != nil {
		return collections.TransientStore(fmt.Errorf("failed to create reply: %w", err))
	}
	return nil
}

// Get returns a reply by id. Soft-deleted replies look missing.
func (s *ReplyStore) Get(ctx context.Context, id string) (*posts.Reply, error) {
	query := `SELECT ` + replyColumns + ` FROM replies WHERE id = $1 AND deleted_at IS NULL`
	return scanReply(s.db.QueryRowContext(ctx, query, id))
}

// ListByPost returns a post's live replies, oldest first.
func (s *ReplyStore) ListByPost(ctx context.Context, postID string) ([]*posts.Reply, error) {
	query := `SELECT ` + replyColumns + ` FROM replies
		WHERE post_id = $1 AND deleted_at IS NULL ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, postID)
	if err != nil {
		return nil, collections.TransientStore(fmt.Errorf("failed to list replies: %w", err))
	}
	defer rows.Close()

	var result []*posts.Reply
	for rows.Next() {
		r, err := scanReply(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, collections.TransientStore(fmt.Errorf("failed to iterate replies: %w", err))
	}
	return result, nil
}

// SoftDelete marks a reply deleted.
func (s *ReplyStore) SoftDelete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE replies SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return collections.TransientStore(fmt.Errorf("failed to delete reply: %w", err))
	}
	return requireAffected(result)
}

func scanReply(row rowScanner) (*posts.Reply, error) {
	var r posts.Reply
	err := row.Scan(&r.ID, &r.PostID, &r.AuthorID, &r.Body, &r.CreatedAt, &r.DeletedAt)
	if err == sql.ErrNoRows {
		return nil, collections.ErrNotFound
	} else if err != nil {
		return nil, collections.TransientStore(fmt.Errorf("failed to scan reply: %w", err))
	}
	return &r, nil
}
