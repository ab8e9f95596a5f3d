package auth

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatherly/gatherly/pkg/collections"
)

var tokenCols = []string{
	"id", "user_id", "token_hash", "token_prefix", "name", "scopes",
	"expires_at", "last_used_at", "created_at", "revoked_at",
}

func newMockTokenStore(t *testing.T) (*SQLTokenStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSQLTokenStore(db), mock
}

func TestSQLTokenStoreInsert(t *testing.T) {
	store, mock := newMockTokenStore(t)

	mock.ExpectExec("INSERT INTO api_tokens").
		WithArgs("t1", "u1", "hash", "gatherly_abcd1234", "ci token", sqlmock.AnyArg(), nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Insert(context.Background(), &APIToken{
		ID:          "t1",
		UserID:      "u1",
		TokenHash:   "hash",
		TokenPrefix: "gatherly_abcd1234",
		Name:        "ci token",
		Scopes:      []Scope{ScopeCollectionsRead},
		CreatedAt:   time.Now(),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLTokenStoreGetByHash(t *testing.T) {
	store, mock := newMockTokenStore(t)
	now := time.Now()

	mock.ExpectQuery("SELECT (.+) FROM api_tokens WHERE token_hash").
		WithArgs("hash").
		WillReturnRows(sqlmock.NewRows(tokenCols).
			AddRow("t1", "u1", "hash", "gatherly_abcd1234", "ci token", "{collections:read}", nil, nil, now, nil))

	token, err := store.GetByHash(context.Background(), "hash")
	require.NoError(t, err)
	assert.Equal(t, "u1", token.UserID)
	assert.Equal(t, []Scope{ScopeCollectionsRead}, token.Scopes)
	assert.False(t, token.Revoked())
}

func TestSQLTokenStoreGetByHashNotFound(t *testing.T) {
	store, mock := newMockTokenStore(t)

	mock.ExpectQuery("SELECT (.+) FROM api_tokens").
		WillReturnRows(sqlmock.NewRows(tokenCols))

	_, err := store.GetByHash(context.Background(), "nope")
	assert.ErrorIs(t, err, collections.ErrNotFound)
}

func TestSQLTokenStoreRevoke(t *testing.T) {
	t.Run("revokes once", func(t *testing.T) {
		store, mock := newMockTokenStore(t)

		mock.ExpectExec("UPDATE api_tokens SET revoked_at").
			WithArgs("t1", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, store.Revoke(context.Background(), "t1", time.Now()))
	})

	t.Run("already revoked", func(t *testing.T) {
		store, mock := newMockTokenStore(t)

		mock.ExpectExec("UPDATE api_tokens SET revoked_at").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := store.Revoke(context.Background(), "t1", time.Now())
		assert.ErrorIs(t, err, collections.ErrNotFound)
	})
}

func TestSQLTokenStoreDeleteExpired(t *testing.T) {
	store, mock := newMockTokenStore(t)

	mock.ExpectExec("DELETE FROM api_tokens WHERE expires_at").
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := store.DeleteExpired(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestSQLTokenStoreListByUser(t *testing.T) {
	store, mock := newMockTokenStore(t)
	now := time.Now()

	mock.ExpectQuery("SELECT (.+) FROM api_tokens WHERE user_id").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(tokenCols).
			AddRow("t2", "u1", "h2", "gatherly_eeee2222", "newer", "{*}", nil, nil, now, nil).
			AddRow("t1", "u1", "h1", "gatherly_aaaa1111", "older", "{collections:read}", nil, nil, now.Add(-time.Hour), nil))

	tokens, err := store.ListByUser(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	assert.Equal(t, "t2", tokens[0].ID)
}
