package rbac

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatherly/gatherly/pkg/collections"
	"github.com/gatherly/gatherly/pkg/contextkeys"
)

type stubGetter struct {
	record *collections.Collection
	err    error
	calls  int
}

func (s *stubGetter) GetCollection(ctx context.Context, id string) (*collections.Collection, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.record, nil
}

func newTestRouter(pm *PermissionMiddleware, action Action) *mux.Router {
	r := mux.NewRouter()
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if CollectionFromContext(r.Context()) == nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/collections/{id}", pm.RequirePermission(action)(handler)).Methods("PATCH")
	return r
}

func doRequest(t *testing.T, router *mux.Router, userID string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("PATCH", "/collections/c1", nil)
	if userID != "" {
		req = req.WithContext(contextkeys.WithUserID(req.Context(), userID))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRequirePermission(t *testing.T) {
	record := &collections.Collection{
		ID:       "c1",
		OwnerID:  "owner",
		Admins:   []string{"admin"},
		Members:  []string{"member"},
		Type:     collections.TypeInvite,
		IsPublic: true,
	}

	t.Run("allowed role passes and sees fetched record", func(t *testing.T) {
		getter := &stubGetter{record: record}
		pm := NewPermissionMiddleware(NewChecker(), getter)
		rec := doRequest(t, newTestRouter(pm, ActionEditCollection), "admin")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 1, getter.calls)
	})

	t.Run("denied role gets 403", func(t *testing.T) {
		pm := NewPermissionMiddleware(NewChecker(), &stubGetter{record: record})
		rec := doRequest(t, newTestRouter(pm, ActionEditCollection), "member")

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("unauthenticated gets 401", func(t *testing.T) {
		getter := &stubGetter{record: record}
		pm := NewPermissionMiddleware(NewChecker(), getter)
		rec := doRequest(t, newTestRouter(pm, ActionEditCollection), "")

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, 0, getter.calls, "no fetch before authentication")
	})

	t.Run("missing record gets 404", func(t *testing.T) {
		pm := NewPermissionMiddleware(NewChecker(), &stubGetter{err: collections.ErrNotFound})
		rec := doRequest(t, newTestRouter(pm, ActionEditCollection), "admin")

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("store failure gets 503", func(t *testing.T) {
		pm := NewPermissionMiddleware(NewChecker(), &stubGetter{err: collections.TransientStore(assert.AnError)})
		rec := doRequest(t, newTestRouter(pm, ActionEditCollection), "admin")

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestRequireViewer(t *testing.T) {
	private := &collections.Collection{
		ID:      "c1",
		OwnerID: "owner",
		Members: []string{"member"},
	}

	router := func(pm *PermissionMiddleware) *mux.Router {
		r := mux.NewRouter()
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		r.Handle("/collections/{id}", pm.RequireViewer()(handler)).Methods("GET")
		return r
	}

	t.Run("member may view private collection", func(t *testing.T) {
		pm := NewPermissionMiddleware(NewChecker(), &stubGetter{record: private})
		req := httptest.NewRequest("GET", "/collections/c1", nil)
		req = req.WithContext(contextkeys.WithUserID(req.Context(), "member"))
		rec := httptest.NewRecorder()
		router(pm).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("outsider sees 404 not 403", func(t *testing.T) {
		pm := NewPermissionMiddleware(NewChecker(), &stubGetter{record: private})
		req := httptest.NewRequest("GET", "/collections/c1", nil)
		req = req.WithContext(contextkeys.WithUserID(req.Context(), "stranger"))
		rec := httptest.NewRecorder()
		router(pm).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestCollectionFromContextMissing(t *testing.T) {
	require.Nil(t, CollectionFromContext(context.Background()))
}
