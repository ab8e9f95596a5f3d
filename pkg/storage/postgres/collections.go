package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/gatherly/gatherly/pkg/collections"
	"github.com/gatherly/gatherly/pkg/storage"
)

var tracer = otel.Tracer("gatherly/storage/postgres")

const collectionColumns = `id, name, description, photo_url, owner_id, type, is_public,
	admins, members, followers, allowed_users, denied_users, pending_requests,
	member_join_dates, member_count, post_sort, created_at, updated_at, deleted_at`

// CollectionStore is the PostgreSQL-backed collection store.
//
// Get always reads the primary so role resolution sees the latest
// membership write. GetCached serves display reads through Redis when
// a cache is attached.
type CollectionStore struct {
	db      *sql.DB
	replica *sql.DB
	cache   *RedisClient
}

// NewCollectionStore creates a collection store. replica and cache may
// be nil.
func NewCollectionStore(db, replica *sql.DB, cache *RedisClient) *CollectionStore {
	if replica == nil {
		replica = db
	}
	return &CollectionStore{db: db, replica: replica, cache: cache}
}

// Create inserts a new collection record.
func (s *CollectionStore) Create(ctx context.Context, c *collections.Collection) error {
	joinDates, err := json.Marshal(c.MemberJoinDates)
	if err != nil {
		return fmt.Errorf("failed to marshal join dates: %w", err)
	}

	query := `
		INSERT INTO collections (id, name, description, photo_url, owner_id, type, is_public,
			admins, members, followers, allowed_users, denied_users, pending_requests,
			member_join_dates, member_count, post_sort)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING created_at, updated_at
	`

	err = s.db.QueryRowContext(ctx, query,
		c.ID, c.Name, c.Description, c.PhotoURL, c.OwnerID, string(c.Type), c.IsPublic,
		pq.Array(c.Admins), pq.Array(c.Members), pq.Array(c.Followers),
		pq.Array(c.AllowedUsers), pq.Array(c.DeniedUsers), pq.Array(c.PendingRequests),
		joinDates, c.MemberCount, c.PostSort,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return collections.TransientStore(fmt.Errorf("failed to create collection: %w", err))
	}
	return nil
}

// Get fetches the authoritative record from the primary, bypassing
// every cache. Soft-deleted records are reported as not found.
func (s *CollectionStore) Get(ctx context.Context, id string) (*collections.Collection, error) {
	ctx, span := tracer.Start(ctx, "CollectionStore.Get",
		trace.WithAttributes(attribute.String("collection.id", id)),
	)
	defer span.End()

	query := `SELECT ` + collectionColumns + ` FROM collections WHERE id = $1 AND deleted_at IS NULL`
	c, err := scanCollection(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return c, nil
}

// GetCached serves display reads. Falls back to the primary on a miss
// and repopulates the cache.
func (s *CollectionStore) GetCached(ctx context.Context, id string) (*collections.Collection, error) {
	if s.cache != nil {
		if c, err := s.cache.GetCollection(ctx, id); err == nil && c != nil {
			return c, nil
		}
	}

	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.SetCollection(ctx, c)
	}
	return c, nil
}

// ListForUser returns collections where the user holds any role,
// newest first, with the total count for pagination.
func (s *CollectionStore) ListForUser(ctx context.Context, userID string, limit, offset int) ([]*collections.Collection, int64, error) {
	where := `deleted_at IS NULL AND
		(owner_id = $1 OR $1 = ANY(admins) OR $1 = ANY(members) OR $1 = ANY(followers))`

	var total int64
	err := s.replica.QueryRowContext(ctx, `SELECT COUNT(*) FROM collections WHERE `+where, userID).Scan(&total)
	if err != nil {
		return nil, 0, collections.TransientStore(fmt.Errorf("failed to count collections: %w", err))
	}

	query := `SELECT ` + collectionColumns + ` FROM collections WHERE ` + where + `
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`

	rows, err := s.replica.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, 0, collections.TransientStore(fmt.Errorf("failed to list collections: %w", err))
	}
	defer rows.Close()

	var result []*collections.Collection
	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, collections.TransientStore(fmt.Errorf("failed to iterate collections: %w", err))
	}
	return result, total, nil
}

// ApplyUpdate merges only the fields the update carries and returns
// the resulting record.
func (s *CollectionStore) ApplyUpdate(ctx context.Context, id string, u collections.Update) (*collections.Collection, error) {
	query := `
		UPDATE collections SET
			name = COALESCE($2, name),
			description = COALESCE($3, description),
			photo_url = COALESCE($4, photo_url),
			is_public = COALESCE($5, is_public),
			allowed_users = COALESCE($6, allowed_users),
			denied_users = COALESCE($7, denied_users),
			post_sort = COALESCE($8, post_sort),
			updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING ` + collectionColumns

	c, err := scanCollection(s.db.QueryRowContext(ctx, query,
		id, u.Name, u.Description, u.PhotoURL, u.IsPublic,
		nullableArray(u.AllowedUsers), nullableArray(u.DeniedUsers), u.PostSort,
	))
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, id)
	return c, nil
}

// ReplaceMembership writes the full membership sets in one statement,
// guarded by the record's last observed update time. A concurrent
// writer surfaces as ErrStaleState.
func (s *CollectionStore) ReplaceMembership(ctx context.Context, id string, expect time.Time, sets storage.MembershipSets) (*collections.Collection, error) {
	ctx, span := tracer.Start(ctx, "CollectionStore.ReplaceMembership",
		trace.WithAttributes(attribute.String("collection.id", id)),
	)
	defer span.End()

	joinDates, err := json.Marshal(sets.MemberJoinDates)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal join dates: %w", err)
	}

	query := `
		UPDATE collections SET
			admins = $3,
			members = $4,
			followers = $5,
			allowed_users = $6,
			denied_users = $7,
			pending_requests = $8,
			member_join_dates = $9,
			member_count = $10,
			updated_at = NOW()
		WHERE id = $1 AND updated_at = $2 AND deleted_at IS NULL
		RETURNING ` + collectionColumns

	c, err := scanCollection(s.db.QueryRowContext(ctx, query,
		id, expect,
		pq.Array(sets.Admins), pq.Array(sets.Members), pq.Array(sets.Followers),
		pq.Array(sets.AllowedUsers), pq.Array(sets.DeniedUsers), pq.Array(sets.PendingRequests),
		joinDates, len(sets.Members),
	))
	if err == nil {
		s.invalidate(ctx, id)
		return c, nil
	}

	// No row matched: either the record is gone or another writer moved
	// updated_at. Disambiguate with a fresh read.
	if isNotFound(err) {
		if _, getErr := s.Get(ctx, id); getErr == nil {
			span.RecordError(err)
			return nil, collections.StaleStatef("collection %s changed concurrently", id)
		}
		return nil, err
	}
	span.RecordError(err)
	return nil, err
}

// Delete soft-deletes the record. Post cleanup is the caller's job.
func (s *CollectionStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE collections SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return collections.TransientStore(fmt.Errorf("failed to delete collection: %w", err))
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return collections.TransientStore(fmt.Errorf("failed to read delete result: %w", err))
	}
	if affected == 0 {
		return collections.ErrNotFound
	}

	s.invalidate(ctx, id)
	return nil
}

// ReconcileMemberCounts repairs member_count drift, returning the
// number of corrected rows. Run from the janitor.
func (s *CollectionStore) ReconcileMemberCounts(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE collections
		SET member_count = cardinality(members), updated_at = NOW()
		WHERE member_count <> cardinality(members) AND deleted_at IS NULL
	`)
	if err != nil {
		return 0, collections.TransientStore(fmt.Errorf("failed to reconcile member counts: %w", err))
	}
	return result.RowsAffected()
}

func (s *CollectionStore) invalidate(ctx context.Context, id string) {
	if s.cache != nil {
		s.cache.InvalidateCollection(ctx, id)
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCollection(row rowScanner) (*collections.Collection, error) {
	var c collections.Collection
	var joinDates []byte
	var typ string

	err := row.Scan(
		&c.ID, &c.Name, &c.Description, &c.PhotoURL, &c.OwnerID, &typ, &c.IsPublic,
		pq.Array(&c.Admins), pq.Array(&c.Members), pq.Array(&c.Followers),
		pq.Array(&c.AllowedUsers), pq.Array(&c.DeniedUsers), pq.Array(&c.PendingRequests),
		&joinDates, &c.MemberCount, &c.PostSort, &c.CreatedAt, &c.UpdatedAt, &c.DeletedAt,
	)
	if err == sql.ErrNoRows {
		return nil, collections.ErrNotFound
	} else if err != nil {
		return nil, collections.TransientStore(fmt.Errorf("failed to scan collection: %w", err))
	}

	c.Type = collections.Type(typ)
	if len(joinDates) > 0 {
		if err := json.Unmarshal(joinDates, &c.MemberJoinDates); err != nil {
			return nil, fmt.Errorf("failed to unmarshal join dates: %w", err)
		}
	}
	return &c, nil
}

func nullableArray(p *[]string) interface{} {
	if p == nil {
		return nil
	}
	return pq.Array(*p)
}

func isNotFound(err error) bool {
	return errors.Is(err, collections.ErrNotFound)
}
