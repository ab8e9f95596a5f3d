package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatherly/gatherly/pkg/collections"
	"github.com/gatherly/gatherly/pkg/storage"
)

func (e *testEnv) seedRequestGroup(t *testing.T) *collections.Collection {
	t.Helper()
	c := &collections.Collection{
		ID:          "c2",
		Name:        "Curated",
		OwnerID:     "owner",
		Type:        collections.TypeRequest,
		IsPublic:    true,
		Admins:      []string{"admin"},
		Members:     []string{"member"},
		MemberCount: 1,
	}
	require.NoError(t, e.colls.Create(context.Background(), c))
	return c
}

func TestFollowUnfollow(t *testing.T) {
	env := newTestEnv(t)
	env.seedGroup(t)

	rec := env.do(t, http.MethodPost, "/collections/c1/follow", "stranger", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "follower", decodeBody(t, rec)["role"])

	// Idempotent.
	rec = env.do(t, http.MethodPost, "/collections/c1/follow", "stranger", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodDelete, "/collections/c1/follow", "stranger", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "outsider", decodeBody(t, rec)["role"])
}

func TestJoinLeave(t *testing.T) {
	t.Run("stranger joins open collection", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedGroup(t)

		rec := env.do(t, http.MethodPost, "/collections/c1/join", "stranger", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		body := decodeBody(t, rec)
		assert.Equal(t, "member", body["role"])
		assert.EqualValues(t, 3, body["member_count"])
	})

	t.Run("join is gated to open collections", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedRequestGroup(t)

		rec := env.do(t, http.MethodPost, "/collections/c2/join", "stranger", nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("member leaves", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedGroup(t)

		rec := env.do(t, http.MethodPost, "/collections/c1/leave", "member", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "outsider", decodeBody(t, rec)["role"])
	})

	t.Run("owner cannot leave", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedGroup(t)

		rec := env.do(t, http.MethodPost, "/collections/c1/leave", "owner", nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("unauthenticated", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedGroup(t)

		rec := env.do(t, http.MethodPost, "/collections/c1/join", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestJoinRequestFlow(t *testing.T) {
	t.Run("request then approve", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedRequestGroup(t)

		rec := env.do(t, http.MethodPost, "/collections/c2/requests", "applicant", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, true, decodeBody(t, rec)["pending"])

		rec = env.do(t, http.MethodPost, "/collections/c2/requests/applicant/approve", "admin", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "member", decodeBody(t, rec)["role"])
	})

	t.Run("second request withdraws", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedRequestGroup(t)

		env.do(t, http.MethodPost, "/collections/c2/requests", "applicant", nil)
		rec := env.do(t, http.MethodPost, "/collections/c2/requests", "applicant", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, false, decodeBody(t, rec)["pending"])
	})

	t.Run("reject leaves requester outside", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedRequestGroup(t)

		env.do(t, http.MethodPost, "/collections/c2/requests", "applicant", nil)
		rec := env.do(t, http.MethodPost, "/collections/c2/requests/applicant/reject", "admin", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		body := decodeBody(t, rec)
		assert.Equal(t, "outsider", body["role"])
	})

	t.Run("member cannot approve", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedRequestGroup(t)

		env.do(t, http.MethodPost, "/collections/c2/requests", "applicant", nil)
		rec := env.do(t, http.MethodPost, "/collections/c2/requests/applicant/approve", "member", nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("open collections take no requests", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedGroup(t)

		rec := env.do(t, http.MethodPost, "/collections/c1/requests", "stranger", nil)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})
}

func TestPromoteDemoteRemove(t *testing.T) {
	t.Run("owner promotes member", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedGroup(t)

		rec := env.do(t, http.MethodPost, "/collections/c1/members/member/promote", "owner", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "admin", decodeBody(t, rec)["role"])
	})

	t.Run("admin cannot promote", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedGroup(t)

		rec := env.do(t, http.MethodPost, "/collections/c1/members/member/promote", "admin", nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("owner demotes admin", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedGroup(t)

		rec := env.do(t, http.MethodPost, "/collections/c1/members/admin/demote", "owner", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "member", decodeBody(t, rec)["role"])
	})

	t.Run("admin removes member", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedGroup(t)

		rec := env.do(t, http.MethodDelete, "/collections/c1/members/member", "admin", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "outsider", decodeBody(t, rec)["role"])
	})

	t.Run("member cannot remove", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedGroup(t)

		rec := env.do(t, http.MethodDelete, "/collections/c1/members/author", "member", nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestListMembers(t *testing.T) {
	t.Run("viewer sees members", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedGroup(t)

		rec := env.do(t, http.MethodGet, "/collections/c1/members", "member", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		body := decodeBody(t, rec)
		assert.Len(t, body["members"], 2)
		assert.EqualValues(t, 2, body["member_count"])
	})

	t.Run("blocked members are hidden", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedGroup(t)
		env.users.users["author"] = &storage.User{ID: "author", Username: "author", Blocked: []string{"member"}}

		rec := env.do(t, http.MethodGet, "/collections/c1/members", "member", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decodeBody(t, rec)["members"], 1)
	})
}

func TestListFollowers(t *testing.T) {
	env := newTestEnv(t)
	c := env.seedGroup(t)
	c.Followers = []string{"fan"}
	require.NoError(t, env.colls.Create(context.Background(), c))

	t.Run("admin lists followers", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/collections/c1/followers", "admin", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decodeBody(t, rec)["followers"], 1)
	})

	t.Run("member forbidden", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/collections/c1/followers", "member", nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestListPendingRequests(t *testing.T) {
	env := newTestEnv(t)
	env.seedRequestGroup(t)
	env.do(t, http.MethodPost, "/collections/c2/requests", "applicant", nil)

	rec := env.do(t, http.MethodGet, "/collections/c2/requests", "admin", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody(t, rec)["requests"], 1)

	rec = env.do(t, http.MethodGet, "/collections/c2/requests", "member", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
