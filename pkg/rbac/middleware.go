package rbac

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/gatherly/gatherly/pkg/collections"
	"github.com/gatherly/gatherly/pkg/contextkeys"
)

// CollectionGetter fetches the authoritative collection record. The
// middleware always consults it instead of any cached copy so that
// permission decisions reflect the current membership sets.
type CollectionGetter interface {
	GetCollection(ctx context.Context, id string) (*collections.Collection, error)
}

// PermissionMiddleware enforces the permission table on routes that
// carry a {id} collection path variable.
type PermissionMiddleware struct {
	checker *Checker
	getter  CollectionGetter
}

// NewPermissionMiddleware creates a new permission middleware
func NewPermissionMiddleware(checker *Checker, getter CollectionGetter) *PermissionMiddleware {
	return &PermissionMiddleware{
		checker: checker,
		getter:  getter,
	}
}

// RequirePermission creates middleware that requires an action on the
// collection named by the route. The fetched record is placed on the
// request context so handlers do not fetch it a second time.
func (pm *PermissionMiddleware) RequirePermission(action Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := contextkeys.GetUserID(r.Context())
			if userID == "" {
				http.Error(w, "Authentication required", http.StatusUnauthorized)
				return
			}

			collectionID := mux.Vars(r)["id"]
			if collectionID == "" {
				http.Error(w, "Collection id required", http.StatusBadRequest)
				return
			}

			c, err := pm.getter.GetCollection(r.Context(), collectionID)
			if err != nil {
				if errors.Is(err, collections.ErrNotFound) {
					http.Error(w, "Collection not found", http.StatusNotFound)
					return
				}
				http.Error(w, "Permission check failed", http.StatusServiceUnavailable)
				return
			}

			role := collections.ResolveRole(c, userID)
			decision := pm.checker.Check(role, action, Context{
				CollectionType: c.Type,
				InvokerID:      userID,
			})
			if !decision.Allowed {
				http.Error(w, "Insufficient permissions", http.StatusForbidden)
				return
			}

			ctx := contextkeys.WithCollection(r.Context(), c)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireViewer creates middleware that gates read routes on record
// visibility rather than a table action.
func (pm *PermissionMiddleware) RequireViewer() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := contextkeys.GetUserID(r.Context())

			collectionID := mux.Vars(r)["id"]
			if collectionID == "" {
				http.Error(w, "Collection id required", http.StatusBadRequest)
				return
			}

			c, err := pm.getter.GetCollection(r.Context(), collectionID)
			if err != nil {
				if errors.Is(err, collections.ErrNotFound) {
					http.Error(w, "Collection not found", http.StatusNotFound)
					return
				}
				http.Error(w, "Permission check failed", http.StatusServiceUnavailable)
				return
			}

			if !collections.CanView(c, userID) {
				// Hidden records look identical to missing ones.
				http.Error(w, "Collection not found", http.StatusNotFound)
				return
			}

			ctx := contextkeys.WithCollection(r.Context(), c)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CollectionFromContext retrieves the record placed by the middleware.
func CollectionFromContext(ctx context.Context) *collections.Collection {
	if c, ok := ctx.Value(contextkeys.CollectionKey).(*collections.Collection); ok {
		return c
	}
	return nil
}
