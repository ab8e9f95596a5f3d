package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/gatherly/gatherly/pkg/collections"
	"github.com/gatherly/gatherly/pkg/contextkeys"
	"github.com/gatherly/gatherly/pkg/events"
	"github.com/gatherly/gatherly/pkg/httputil"
	"github.com/gatherly/gatherly/pkg/rbac"
)

const defaultPageSize = 20

// createCollectionRequest is the payload for POST /collections.
type createCollectionRequest struct {
	Name         string           `json:"name"`
	Description  string           `json:"description,omitempty"`
	PhotoURL     string           `json:"photo_url,omitempty"`
	Type         collections.Type `json:"type"`
	IsPublic     bool             `json:"is_public"`
	AllowedUsers []string         `json:"allowed_users,omitempty"`
	DeniedUsers  []string         `json:"denied_users,omitempty"`
	PostSort     string           `json:"post_sort,omitempty"`
}

// createCollection handles POST /collections
func (s *Server) createCollection(w http.ResponseWriter, r *http.Request) {
	userID := contextkeys.GetUserID(r.Context())
	if userID == "" {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req createCollectionRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	c := &collections.Collection{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Description:  req.Description,
		PhotoURL:     req.PhotoURL,
		OwnerID:      userID,
		Type:         req.Type,
		IsPublic:     req.IsPublic,
		AllowedUsers: req.AllowedUsers,
		DeniedUsers:  req.DeniedUsers,
		PostSort:     req.PostSort,
	}

	if err := collections.ValidateNew(c); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	if err := s.colls.Create(r.Context(), c); err != nil {
		s.logger.WithError(err).Error("failed to create collection")
		httputil.WriteDomainError(w, err)
		return
	}

	s.bus.Publish(r.Context(), &events.Event{
		Type:         events.CollectionCreated,
		CollectionID: c.ID,
		ActorID:      userID,
	})
	httputil.WriteCreated(w, c)
}

// listCollections handles GET /collections, returning the caller's
// collections.
func (s *Server) listCollections(w http.ResponseWriter, r *http.Request) {
	userID := contextkeys.GetUserID(r.Context())
	if userID == "" {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	limit, offset, err := httputil.ParsePagination(r, defaultPageSize)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	items, total, err := s.colls.ListForUser(r.Context(), userID, limit, offset)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"collections": items,
		"total":       total,
		"limit":       limit,
		"offset":      offset,
	})
}

// getCollection handles GET /collections/{id}. Visibility was already
// checked by the middleware, which also fetched the record.
func (s *Server) getCollection(w http.ResponseWriter, r *http.Request) {
	c := rbac.CollectionFromContext(r.Context())
	if c == nil {
		httputil.WriteNotFoundError(w, "Collection not found")
		return
	}
	httputil.WriteSuccess(w, c)
}

// updateCollection handles PATCH /collections/{id}
func (s *Server) updateCollection(w http.ResponseWriter, r *http.Request) {
	userID := contextkeys.GetUserID(r.Context())
	current := rbac.CollectionFromContext(r.Context())
	if current == nil {
		httputil.WriteNotFoundError(w, "Collection not found")
		return
	}

	var update collections.Update
	if !httputil.ParseJSONOrError(w, r, &update) {
		return
	}

	// Admins may edit the collection, but the allow/deny lists are the
	// owner's alone.
	if update.AllowedUsers != nil || update.DeniedUsers != nil {
		role := collections.ResolveRole(current, userID)
		if err := s.checker.Require(role, rbac.ActionManageAccess, rbac.Context{CollectionType: current.Type}); err != nil {
			httputil.WriteDomainError(w, err)
			return
		}
	}

	if err := collections.ValidateUpdate(current, update); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	if update.Empty() {
		httputil.WriteSuccess(w, current)
		return
	}

	updated, err := s.colls.ApplyUpdate(r.Context(), current.ID, update)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	s.bus.Publish(r.Context(), &events.Event{
		Type:         events.CollectionUpdated,
		CollectionID: updated.ID,
		ActorID:      userID,
	})
	httputil.WriteSuccess(w, updated)
}

// deleteCollection handles DELETE /collections/{id}. The coordinator
// owns the permission check and the post cascade.
func (s *Server) deleteCollection(w http.ResponseWriter, r *http.Request) {
	userID := contextkeys.GetUserID(r.Context())
	if userID == "" {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	if err := s.coordinator.DeleteCollection(r.Context(), id, userID); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}
