package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatherly/gatherly/pkg/auth"
)

func TestRegisterWebhook(t *testing.T) {
	t.Run("registers", func(t *testing.T) {
		env := newTestEnv(t)

		rec := env.do(t, http.MethodPost, "/webhooks", "admin", map[string]interface{}{
			"url":    "https://example.com/hook",
			"events": []string{"post.created"},
			"secret": "s3cret",
		})
		require.Equal(t, http.StatusCreated, rec.Code)

		body := decodeBody(t, rec)
		assert.NotEmpty(t, body["id"])
		assert.Equal(t, true, body["active"])
		assert.Empty(t, body["secret"])
	})

	t.Run("url required", func(t *testing.T) {
		env := newTestEnv(t)

		rec := env.do(t, http.MethodPost, "/webhooks", "admin", map[string]interface{}{
			"events": []string{"post.created"},
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("scope required", func(t *testing.T) {
		env := newTestEnv(t)

		rec := env.doScoped(t, http.MethodPost, "/webhooks", "admin",
			[]auth.Scope{auth.ScopeCollectionsRead}, map[string]interface{}{
				"url":    "https://example.com/hook",
				"events": []string{"post.created"},
			})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestWebhookLifecycle(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/webhooks", "admin", map[string]interface{}{
		"url":    "https://example.com/hook",
		"events": []string{"post.created"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decodeBody(t, rec)["id"].(string)

	t.Run("get", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/webhooks/"+id, "admin", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "https://example.com/hook", decodeBody(t, rec)["url"])
	})

	t.Run("list", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/webhooks", "admin", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.EqualValues(t, 1, decodeBody(t, rec)["total"])
	})

	t.Run("deactivate and activate", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/webhooks/"+id+"/deactivate", "admin", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, false, decodeBody(t, rec)["active"])

		rec = env.do(t, http.MethodPost, "/webhooks/"+id+"/activate", "admin", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, true, decodeBody(t, rec)["active"])
	})

	t.Run("deliveries start empty", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/webhooks/"+id+"/deliveries", "admin", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.EqualValues(t, 0, decodeBody(t, rec)["total"])
	})

	t.Run("unregister", func(t *testing.T) {
		rec := env.do(t, http.MethodDelete, "/webhooks/"+id, "admin", nil)
		require.Equal(t, http.StatusNoContent, rec.Code)

		rec = env.do(t, http.MethodGet, "/webhooks/"+id, "admin", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestWebhookDeliveriesUnknownEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/webhooks/ghost/deliveries", "admin", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
