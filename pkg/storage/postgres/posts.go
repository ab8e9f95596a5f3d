package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/gatherly/gatherly/pkg/collections"
	"github.com/gatherly/gatherly/pkg/posts"
)

const postColumns = `id, collection_id, author_id, title, caption, media, tagged_users,
	allow_download, allow_replies, is_pinned, pinned_at, created_at, updated_at, deleted_at`

// PostStore is the PostgreSQL-backed post store. Deletes are soft so
// the janitor can purge them after a grace period.
type PostStore struct {
	db      *sql.DB
	replica *sql.DB
	cache   *RedisClient
}

// NewPostStore creates a post store. replica and cache may be nil.
func NewPostStore(db, replica *sql.DB, cache *RedisClient) *PostStore {
	if replica == nil {
		replica = db
	}
	return &PostStore{db: db, replica: replica, cache: cache}
}

// Create inserts a new post.
func (s *PostStore) Create(ctx context.Context, p *posts.Post) error {
	media, err := json.Marshal(p.Media)
	if err != nil {
		return fmt.Errorf("failed to marshal media: %w", err)
	}

	query := `
		INSERT INTO posts (id, collection_id, author_id, title, caption, media, tagged_users,
			allow_download, allow_replies, is_pinned, pinned_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`

	err = s.db.QueryRowContext(ctx, query,
		p.ID, p.CollectionID, p.AuthorID, p.Title, p.Caption, media, pq.Array(p.TaggedUsers),
		p.AllowDownload, p.AllowReplies, p.IsPinned, p.PinnedAt,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return collections.TransientStore(fmt.Errorf("failed to create post: %w", err))
	}

	s.invalidateList(ctx, p.CollectionID)
	return nil
}

// Get fetches a post by id. Soft-deleted posts are not found.
func (s *PostStore) Get(ctx context.Context, id string) (*posts.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1 AND deleted_at IS NULL`
	return scanPost(s.db.QueryRowContext(ctx, query, id))
}

// ListByCollection returns the live posts of a collection in storage
// order. Display ordering is applied by the posts package.
func (s *PostStore) ListByCollection(ctx context.Context, collectionID string) ([]*posts.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts
		WHERE collection_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC`

	rows, err := s.replica.QueryContext(ctx, query, collectionID)
	if err != nil {
		return nil, collections.TransientStore(fmt.Errorf("failed to list posts: %w", err))
	}
	defer rows.Close()

	var result []*posts.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, collections.TransientStore(fmt.Errorf("failed to iterate posts: %w", err))
	}
	return result, nil
}

// ApplyUpdate merges only the fields the update carries.
func (s *PostStore) ApplyUpdate(ctx context.Context, id string, u posts.Update) (*posts.Post, error) {
	query := `
		UPDATE posts SET
			title = COALESCE($2, title),
			caption = COALESCE($3, caption),
			tagged_users = COALESCE($4, tagged_users),
			allow_download = COALESCE($5, allow_download),
			allow_replies = COALESCE($6, allow_replies),
			updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING ` + postColumns

	p, err := scanPost(s.db.QueryRowContext(ctx, query,
		id, u.Title, u.Caption, nullableArray(u.TaggedUsers), u.AllowDownload, u.AllowReplies,
	))
	if err != nil {
		return nil, err
	}

	s.invalidateList(ctx, p.CollectionID)
	return p, nil
}

// SetPin writes the pin state of a single post.
func (s *PostStore) SetPin(ctx context.Context, id string, pinned bool, pinnedAt *time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE posts SET is_pinned = $2, pinned_at = $3, updated_at = NOW()
		 WHERE id = $1 AND deleted_at IS NULL`,
		id, pinned, pinnedAt)
	if err != nil {
		return collections.TransientStore(fmt.Errorf("failed to set pin: %w", err))
	}
	return requireAffected(result)
}

// SoftDelete marks the post deleted.
func (s *PostStore) SoftDelete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE posts SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return collections.TransientStore(fmt.Errorf("failed to delete post: %w", err))
	}
	return requireAffected(result)
}

// DeleteByCollection soft-deletes every live post of a collection,
// used by the collection delete cascade.
func (s *PostStore) DeleteByCollection(ctx context.Context, collectionID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE posts SET deleted_at = NOW(), updated_at = NOW()
		 WHERE collection_id = $1 AND deleted_at IS NULL`, collectionID)
	if err != nil {
		return collections.TransientStore(fmt.Errorf("failed to delete collection posts: %w", err))
	}

	s.invalidateList(ctx, collectionID)
	return nil
}

// Purge hard-deletes posts soft-deleted before the cutoff and returns
// the number of removed rows. Run from the janitor.
func (s *PostStore) Purge(ctx context.Context, deletedBefore time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM posts WHERE deleted_at IS NOT NULL AND deleted_at < $1`, deletedBefore)
	if err != nil {
		return 0, collections.TransientStore(fmt.Errorf("failed to purge posts: %w", err))
	}
	return result.RowsAffected()
}

func (s *PostStore) invalidateList(ctx context.Context, collectionID string) {
	if s.cache != nil {
		s.cache.InvalidatePostList(ctx, collectionID)
	}
}

func scanPost(row rowScanner) (*posts.Post, error) {
	var p posts.Post
	var media []byte

	err := row.Scan(
		&p.ID, &p.CollectionID, &p.AuthorID, &p.Title, &p.Caption, &media, pq.Array(&p.TaggedUsers),
		&p.AllowDownload, &p.AllowReplies, &p.IsPinned, &p.PinnedAt,
		&p.CreatedAt, &p.UpdatedAt, &p.DeletedAt,
	)
	if err == sql.ErrNoRows {
		return nil, collections.ErrNotFound
	} else if err != nil {
		return nil, collections.TransientStore(fmt.Errorf("failed to scan post: %w", err))
	}

	if len(media) > 0 {
		if err := json.Unmarshal(media, &p.Media); err != nil {
			return nil, fmt.Errorf("failed to unmarshal media: %w", err)
		}
	}
	return &p, nil
}

func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return collections.TransientStore(fmt.Errorf("failed to read result: %w", err))
	}
	if affected == 0 {
		return collections.ErrNotFound
	}
	return nil
}
