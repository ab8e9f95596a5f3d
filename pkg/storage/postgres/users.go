package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/lib/pq"

	"github.com/gatherly/gatherly/pkg/collections"
	"github.com/gatherly/gatherly/pkg/storage"
)

// UserDirectory resolves user profiles from PostgreSQL with an
// in-process LRU in front. The cache only serves display data;
// nothing on a permission path reads it.
type UserDirectory struct {
	db    *sql.DB
	cache *expirable.LRU[string, *storage.User]
}

// NewUserDirectory creates a user directory with an expiring LRU of
// the given size.
func NewUserDirectory(db *sql.DB, cacheSize int, ttl time.Duration) *UserDirectory {
	if cacheSize <= 0 {
		cacheSize = 10000
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &UserDirectory{
		db:    db,
		cache: expirable.NewLRU[string, *storage.User](cacheSize, nil, ttl),
	}
}

// GetUser fetches a single profile.
func (d *UserDirectory) GetUser(ctx context.Context, id string) (*storage.User, error) {
	if u, ok := d.cache.Get(id); ok {
		return u, nil
	}

	query := `SELECT id, username, display_name, avatar_url, blocked FROM users WHERE id = $1`

	var u storage.User
	err := d.db.QueryRowContext(ctx, query, id).Scan(
		&u.ID, &u.Username, &u.DisplayName, &u.AvatarURL, pq.Array(&u.Blocked),
	)
	if err == sql.ErrNoRows {
		return nil, collections.ErrNotFound
	} else if err != nil {
		return nil, collections.TransientStore(fmt.Errorf("failed to get user: %w", err))
	}

	d.cache.Add(id, &u)
	return &u, nil
}

// GetUsers fetches profiles in bulk, preserving input order. Unknown
// ids are skipped rather than failing the whole batch.
func (d *UserDirectory) GetUsers(ctx context.Context, ids []string) ([]*storage.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	found := make(map[string]*storage.User, len(ids))
	var misses []string
	for _, id := range ids {
		if u, ok := d.cache.Get(id); ok {
			found[id] = u
		} else {
			misses = append(misses, id)
		}
	}

	if len(misses) > 0 {
		query := `SELECT id, username, display_name, avatar_url, blocked FROM users WHERE id = ANY($1)`

		rows, err := d.db.QueryContext(ctx, query, pq.Array(misses))
		if err != nil {
			return nil, collections.TransientStore(fmt.Errorf("failed to get users: %w", err))
		}
		defer rows.Close()

		for rows.Next() {
			var u storage.User
			if err := rows.Scan(&u.ID, &u.Username, &u.DisplayName, &u.AvatarURL, pq.Array(&u.Blocked)); err != nil {
				return nil, collections.TransientStore(fmt.Errorf("failed to scan user: %w", err))
			}
			found[u.ID] = &u
			d.cache.Add(u.ID, &u)
		}
		if err := rows.Err(); err != nil {
			return nil, collections.TransientStore(fmt.Errorf("failed to iterate users: %w", err))
		}
	}

	result := make([]*storage.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := found[id]; ok {
			result = append(result, u)
		}
	}
	return result, nil
}

// InvalidateUser drops a profile from the LRU, for profile updates.
func (d *UserDirectory) InvalidateUser(id string) {
	d.cache.Remove(id)
}
