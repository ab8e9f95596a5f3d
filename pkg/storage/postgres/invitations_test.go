package postgres

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatherly/gatherly/pkg/collections"
)

func newMockInvitationStore(t *testing.T) (*InvitationStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewInvitationStore(db), mock
}

func TestInvitationStoreCreateHashesToken(t *testing.T) {
	store, mock := newMockInvitationStore(t)

	token, err := collections.NewInvitationToken()
	require.NoError(t, err)
	sum := sha256.Sum256([]byte(token))
	expectedHash := hex.EncodeToString(sum[:])

	mock.ExpectQuery("INSERT INTO invitations").
		WithArgs("i1", "c1", "owner", "guest", expectedHash, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))

	inv := &collections.Invitation{
		ID:           "i1",
		CollectionID: "c1",
		InviterID:    "owner",
		InviteeID:    "guest",
		Token:        token,
		ExpiresAt:    time.Now().Add(collections.InvitationTTL),
	}
	require.NoError(t, store.Create(context.Background(), inv))

	// The raw token survives on the record for delivery.
	assert.Equal(t, token, inv.Token)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvitationStoreGetByToken(t *testing.T) {
	store, mock := newMockInvitationStore(t)

	sum := sha256.Sum256([]byte("gatherly_inv_abc"))
	now := time.Now()

	mock.ExpectQuery("SELECT (.+) FROM invitations WHERE token_hash").
		WithArgs(hex.EncodeToString(sum[:])).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "collection_id", "inviter_id", "invitee_id", "created_at", "expires_at", "accepted_at",
		}).AddRow("i1", "c1", "owner", "guest", now, now.Add(collections.InvitationTTL), nil))

	inv, err := store.GetByToken(context.Background(), "gatherly_inv_abc")
	require.NoError(t, err)
	assert.Equal(t, "guest", inv.InviteeID)
	assert.False(t, inv.Redeemed())
}

func TestInvitationStoreGetByTokenNotFound(t *testing.T) {
	store, mock := newMockInvitationStore(t)

	mock.ExpectQuery("SELECT (.+) FROM invitations").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "collection_id", "inviter_id", "invitee_id", "created_at", "expires_at", "accepted_at",
		}))

	_, err := store.GetByToken(context.Background(), "bogus")
	assert.ErrorIs(t, err, collections.ErrNotFound)
}

func TestInvitationStoreMarkAccepted(t *testing.T) {
	t.Run("marks once", func(t *testing.T) {
		store, mock := newMockInvitationStore(t)

		mock.ExpectExec("UPDATE invitations SET accepted_at").
			WithArgs("i1", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, store.MarkAccepted(context.Background(), "i1", time.Now()))
	})

	t.Run("already redeemed", func(t *testing.T) {
		store, mock := newMockInvitationStore(t)

		mock.ExpectExec("UPDATE invitations SET accepted_at").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := store.MarkAccepted(context.Background(), "i1", time.Now())
		assert.ErrorIs(t, err, collections.ErrNotFound)
	})
}

func TestInvitationStoreDeleteExpired(t *testing.T) {
	store, mock := newMockInvitationStore(t)
	cutoff := time.Now()

	mock.ExpectExec("DELETE FROM invitations WHERE accepted_at IS NULL").
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 4))

	deleted, err := store.DeleteExpired(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(4), deleted)
}

func TestInvitationExpiry(t *testing.T) {
	now := time.Now()
	inv := &collections.Invitation{ExpiresAt: now.Add(time.Hour)}

	assert.False(t, inv.Expired(now))
	assert.True(t, inv.Expired(now.Add(2*time.Hour)))
}
