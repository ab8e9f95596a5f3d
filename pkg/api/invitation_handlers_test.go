package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatherly/gatherly/pkg/collections"
)

func (e *testEnv) seedInviteGroup(t *testing.T) *collections.Collection {
	t.Helper()
	c := &collections.Collection{
		ID:          "c3",
		Name:        "Family Album",
		OwnerID:     "owner",
		Type:        collections.TypeInvite,
		IsPublic:    false,
		Admins:      []string{"admin"},
		Members:     []string{"member"},
		MemberCount: 1,
	}
	require.NoError(t, e.colls.Create(context.Background(), c))
	return c
}

func TestInvitationFlow(t *testing.T) {
	t.Run("invite and accept", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedInviteGroup(t)

		rec := env.do(t, http.MethodPost, "/collections/c3/invitations", "owner", map[string]interface{}{
			"invitee_id": "friend",
		})
		require.Equal(t, http.StatusCreated, rec.Code)

		body := decodeBody(t, rec)
		token, _ := body["token"].(string)
		require.NotEmpty(t, token)
		assert.Equal(t, "friend", body["invitee_id"])

		rec = env.do(t, http.MethodPost, "/invitations/accept", "friend", map[string]interface{}{
			"token": token,
		})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "member", decodeBody(t, rec)["role"])
	})

	t.Run("only the invitee may redeem", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedInviteGroup(t)

		rec := env.do(t, http.MethodPost, "/collections/c3/invitations", "admin", map[string]interface{}{
			"invitee_id": "friend",
		})
		require.Equal(t, http.StatusCreated, rec.Code)
		token := decodeBody(t, rec)["token"].(string)

		rec = env.do(t, http.MethodPost, "/invitations/accept", "impostor", map[string]interface{}{
			"token": token,
		})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("member cannot invite", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedInviteGroup(t)

		rec := env.do(t, http.MethodPost, "/collections/c3/invitations", "member", map[string]interface{}{
			"invitee_id": "friend",
		})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("open collections take no invitations", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedGroup(t)

		rec := env.do(t, http.MethodPost, "/collections/c1/invitations", "owner", map[string]interface{}{
			"invitee_id": "friend",
		})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("missing invitee id", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedInviteGroup(t)

		rec := env.do(t, http.MethodPost, "/collections/c3/invitations", "owner", map[string]interface{}{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestListInvitations(t *testing.T) {
	env := newTestEnv(t)
	env.seedInviteGroup(t)
	env.do(t, http.MethodPost, "/collections/c3/invitations", "owner", map[string]interface{}{
		"invitee_id": "friend",
	})

	rec := env.do(t, http.MethodGet, "/collections/c3/invitations", "admin", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody(t, rec)["invitations"], 1)

	rec = env.do(t, http.MethodGet, "/collections/c3/invitations", "member", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRevokeInvitation(t *testing.T) {
	env := newTestEnv(t)
	env.seedInviteGroup(t)

	rec := env.do(t, http.MethodPost, "/collections/c3/invitations", "owner", map[string]interface{}{
		"invitee_id": "friend",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody(t, rec)
	invitationID := body["id"].(string)
	token := body["token"].(string)

	rec = env.do(t, http.MethodDelete, "/collections/c3/invitations/"+invitationID, "owner", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodPost, "/invitations/accept", "friend", map[string]interface{}{
		"token": token,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
