package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns all schema migrations
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create collections table",
			SQL: `
				CREATE TABLE IF NOT EXISTS collections (
					id VARCHAR(64) PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					photo_url TEXT NOT NULL DEFAULT '',
					owner_id VARCHAR(64) NOT NULL,
					type VARCHAR(16) NOT NULL,
					is_public BOOLEAN NOT NULL,
					admins TEXT[] NOT NULL DEFAULT '{}',
					members TEXT[] NOT NULL DEFAULT '{}',
					followers TEXT[] NOT NULL DEFAULT '{}',
					allowed_users TEXT[] NOT NULL DEFAULT '{}',
					denied_users TEXT[] NOT NULL DEFAULT '{}',
					pending_requests TEXT[] NOT NULL DEFAULT '{}',
					member_join_dates JSONB NOT NULL DEFAULT '{}',
					member_count INT NOT NULL DEFAULT 0,
					post_sort VARCHAR(32) NOT NULL DEFAULT '',
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					deleted_at TIMESTAMPTZ
				);

				CREATE INDEX idx_collections_owner_id ON collections(owner_id);
				CREATE INDEX idx_collections_type ON collections(type);
				CREATE INDEX idx_collections_deleted_at ON collections(deleted_at);
			`,
		},
		{
			Version:     2,
			Description: "Create posts table",
			SQL: `
				CREATE TABLE IF NOT EXISTS posts (
					id VARCHAR(64) PRIMARY KEY,
					collection_id VARCHAR(64) NOT NULL REFERENCES collections(id) ON DELETE CASCADE,
					author_id VARCHAR(64) NOT NULL,
					title VARCHAR(255) NOT NULL DEFAULT '',
					caption TEXT NOT NULL DEFAULT '',
					media JSONB NOT NULL DEFAULT '[]',
					tagged_users TEXT[] NOT NULL DEFAULT '{}',
					allow_download BOOLEAN NOT NULL DEFAULT TRUE,
					allow_replies BOOLEAN NOT NULL DEFAULT TRUE,
					is_pinned BOOLEAN NOT NULL DEFAULT FALSE,
					pinned_at TIMESTAMPTZ,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					deleted_at TIMESTAMPTZ
				);

				CREATE INDEX idx_posts_collection_id ON posts(collection_id);
				CREATE INDEX idx_posts_author_id ON posts(author_id);
				CREATE INDEX idx_posts_pinned ON posts(collection_id, is_pinned);
				CREATE INDEX idx_posts_deleted_at ON posts(deleted_at);
			`,
		},
		{
			Version:     3,
			Description: "Create invitations table",
			SQL: `
				CREATE TABLE IF NOT EXISTS invitations (
					id VARCHAR(64) PRIMARY KEY,
					collection_id VARCHAR(64) NOT NULL REFERENCES collections(id) ON DELETE CASCADE,
					inviter_id VARCHAR(64) NOT NULL,
					invitee_id VARCHAR(64) NOT NULL,
					token_hash VARCHAR(64) NOT NULL UNIQUE,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					expires_at TIMESTAMPTZ NOT NULL,
					accepted_at TIMESTAMPTZ
				);

				CREATE INDEX idx_invitations_collection_id ON invitations(collection_id);
				CREATE INDEX idx_invitations_invitee_id ON invitations(invitee_id);
				CREATE INDEX idx_invitations_expires_at ON invitations(expires_at);
			`,
		},
		{
			Version:     4,
			Description: "Create users table",
			SQL: `
				CREATE TABLE IF NOT EXISTS users (
					id VARCHAR(64) PRIMARY KEY,
					username VARCHAR(255) NOT NULL UNIQUE,
					display_name VARCHAR(255) NOT NULL DEFAULT '',
					avatar_url TEXT NOT NULL DEFAULT '',
					blocked TEXT[] NOT NULL DEFAULT '{}',
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
			`,
		},
		{
			Version:     5,
			Description: "Create api_tokens table",
			SQL: `
				CREATE TABLE IF NOT EXISTS api_tokens (
					id VARCHAR(64) PRIMARY KEY,
					user_id VARCHAR(64) NOT NULL,
					token_hash VARCHAR(64) NOT NULL UNIQUE,
					token_prefix VARCHAR(32) NOT NULL,
					name VARCHAR(255) NOT NULL DEFAULT '',
					scopes TEXT[] NOT NULL DEFAULT '{}',
					expires_at TIMESTAMPTZ,
					last_used_at TIMESTAMPTZ,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					revoked_at TIMESTAMPTZ
				);

				CREATE INDEX idx_api_tokens_user_id ON api_tokens(user_id);
				CREATE INDEX idx_api_tokens_expires_at ON api_tokens(expires_at);
			`,
		},
		{
			Version:     6,
			Description: "Create replies table",
			SQL: `
				CREATE TABLE replies (
					id UUID PRIMARY KEY,
					post_id UUID NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
					author_id VARCHAR(255) NOT NULL,
					body TEXT NOT NULL,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					deleted_at TIMESTAMPTZ
				);

				CREATE INDEX idx_replies_post_id ON replies(post_id) WHERE deleted_at IS NULL;
			`,
		},
	}
}

// RunMigrations executes all pending migrations
func RunMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}

	appliedVersions := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		appliedVersions[version] = true
	}
	rows.Close()

	for _, migration := range GetMigrations() {
		if appliedVersions[migration.Version] {
			continue
		}

		fmt.Printf("Running migration %d: %s\n", migration.Version, migration.Description)

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}

		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO schema_migrations (version, description) VALUES ($1, $2)",
			migration.Version, migration.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}
