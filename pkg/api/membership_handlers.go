package api

import (
	"net/http"

	"github.com/gatherly/gatherly/pkg/collections"
	"github.com/gatherly/gatherly/pkg/contextkeys"
	"github.com/gatherly/gatherly/pkg/httputil"
	"github.com/gatherly/gatherly/pkg/rbac"
	"github.com/gatherly/gatherly/pkg/storage"
)

// membershipResponse is the summary returned after a transition.
type membershipResponse struct {
	CollectionID string           `json:"collection_id"`
	Role         collections.Role `json:"role"`
	MemberCount  int              `json:"member_count"`
	Pending      bool             `json:"pending,omitempty"`
}

func summarize(c *collections.Collection, userID string) membershipResponse {
	return membershipResponse{
		CollectionID: c.ID,
		Role:         collections.ResolveRole(c, userID),
		MemberCount:  c.MemberCount,
		Pending:      c.HasPendingRequest(userID),
	}
}

func (s *Server) actorAndID(w http.ResponseWriter, r *http.Request) (userID, id string, ok bool) {
	userID = contextkeys.GetUserID(r.Context())
	if userID == "" {
		httputil.WriteUnauthorized(w, "Authentication required")
		return "", "", false
	}
	id, pathOK := httputil.ParsePathStringOrError(w, r, "id")
	if !pathOK {
		return "", "", false
	}
	return userID, id, true
}

func (s *Server) subject(w http.ResponseWriter, r *http.Request) (string, bool) {
	return httputil.ParsePathStringOrError(w, r, "userID")
}

// follow handles POST /collections/{id}/follow
func (s *Server) follow(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := s.actorAndID(w, r)
	if !ok {
		return
	}
	c, err := s.coordinator.Follow(r.Context(), id, userID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, summarize(c, userID))
}

// unfollow handles DELETE /collections/{id}/follow
func (s *Server) unfollow(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := s.actorAndID(w, r)
	if !ok {
		return
	}
	c, err := s.coordinator.Unfollow(r.Context(), id, userID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, summarize(c, userID))
}

// join handles POST /collections/{id}/join for open collections
func (s *Server) join(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := s.actorAndID(w, r)
	if !ok {
		return
	}
	c, err := s.coordinator.Join(r.Context(), id, userID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, summarize(c, userID))
}

// leave handles POST /collections/{id}/leave
func (s *Server) leave(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := s.actorAndID(w, r)
	if !ok {
		return
	}
	c, err := s.coordinator.Leave(r.Context(), id, userID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, summarize(c, userID))
}

// requestJoin handles POST /collections/{id}/requests. A second call
// from a pending requester withdraws the request.
func (s *Server) requestJoin(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := s.actorAndID(w, r)
	if !ok {
		return
	}
	pending, err := s.coordinator.RequestJoin(r.Context(), id, userID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{
		"collection_id": id,
		"pending":       pending,
	})
}

// approveRequest handles POST /collections/{id}/requests/{userID}/approve
func (s *Server) approveRequest(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := s.actorAndID(w, r)
	if !ok {
		return
	}
	subjectID, ok := s.subject(w, r)
	if !ok {
		return
	}
	c, err := s.coordinator.ApproveRequest(r.Context(), id, userID, subjectID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, summarize(c, subjectID))
}

// rejectRequest handles POST /collections/{id}/requests/{userID}/reject
func (s *Server) rejectRequest(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := s.actorAndID(w, r)
	if !ok {
		return
	}
	subjectID, ok := s.subject(w, r)
	if !ok {
		return
	}
	c, err := s.coordinator.RejectRequest(r.Context(), id, userID, subjectID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, summarize(c, subjectID))
}

// promote handles POST /collections/{id}/members/{userID}/promote
func (s *Server) promote(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := s.actorAndID(w, r)
	if !ok {
		return
	}
	subjectID, ok := s.subject(w, r)
	if !ok {
		return
	}
	c, err := s.coordinator.Promote(r.Context(), id, userID, subjectID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, summarize(c, subjectID))
}

// demote handles POST /collections/{id}/members/{userID}/demote
func (s *Server) demote(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := s.actorAndID(w, r)
	if !ok {
		return
	}
	subjectID, ok := s.subject(w, r)
	if !ok {
		return
	}
	c, err := s.coordinator.Demote(r.Context(), id, userID, subjectID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, summarize(c, subjectID))
}

// removeMember handles DELETE /collections/{id}/members/{userID}
func (s *Server) removeMember(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := s.actorAndID(w, r)
	if !ok {
		return
	}
	subjectID, ok := s.subject(w, r)
	if !ok {
		return
	}
	c, err := s.coordinator.Remove(r.Context(), id, userID, subjectID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, summarize(c, subjectID))
}

// listMembers handles GET /collections/{id}/members, newest joins
// first with blocked users filtered out.
func (s *Server) listMembers(w http.ResponseWriter, r *http.Request) {
	userID := contextkeys.GetUserID(r.Context())
	c := rbac.CollectionFromContext(r.Context())
	if c == nil {
		httputil.WriteNotFoundError(w, "Collection not found")
		return
	}

	ids := c.MembersNewestFirst()
	users := s.resolveVisible(r, userID, ids)
	httputil.WriteSuccess(w, map[string]interface{}{
		"collection_id": c.ID,
		"members":       users,
		"member_count":  c.MemberCount,
	})
}

// listFollowers handles GET /collections/{id}/followers
func (s *Server) listFollowers(w http.ResponseWriter, r *http.Request) {
	userID := contextkeys.GetUserID(r.Context())
	c := rbac.CollectionFromContext(r.Context())
	if c == nil {
		httputil.WriteNotFoundError(w, "Collection not found")
		return
	}

	users := s.resolveVisible(r, userID, c.Followers)
	httputil.WriteSuccess(w, map[string]interface{}{
		"collection_id": c.ID,
		"followers":     users,
	})
}

// listPendingRequests handles GET /collections/{id}/requests
func (s *Server) listPendingRequests(w http.ResponseWriter, r *http.Request) {
	userID := contextkeys.GetUserID(r.Context())
	c := rbac.CollectionFromContext(r.Context())
	if c == nil {
		httputil.WriteNotFoundError(w, "Collection not found")
		return
	}

	users := s.resolveVisible(r, userID, c.PendingRequests)
	httputil.WriteSuccess(w, map[string]interface{}{
		"collection_id": c.ID,
		"requests":      users,
	})
}

// resolveVisible maps user ids to profiles, dropping entries with a
// block in either direction. With no directory wired the ids are
// returned as bare profiles.
func (s *Server) resolveVisible(r *http.Request, viewerID string, ids []string) []*storage.User {
	if s.users == nil {
		out := make([]*storage.User, 0, len(ids))
		for _, id := range ids {
			out = append(out, &storage.User{ID: id})
		}
		return out
	}

	var viewerBlocked []string
	if viewerID != "" {
		if viewer, err := s.users.GetUser(r.Context(), viewerID); err == nil {
			viewerBlocked = viewer.Blocked
		}
	}

	users, err := s.users.GetUsers(r.Context(), ids)
	if err != nil {
		s.logger.WithError(err).Warn("failed to resolve user profiles")
		out := make([]*storage.User, 0, len(ids))
		for _, id := range ids {
			out = append(out, &storage.User{ID: id})
		}
		return out
	}

	out := make([]*storage.User, 0, len(users))
	for _, u := range users {
		if blocked(viewerBlocked, u.ID) || blocked(u.Blocked, viewerID) {
			continue
		}
		// Block lists are private; never echo them to other users.
		dup := *u
		dup.Blocked = nil
		out = append(out, &dup)
	}
	return out
}

func blocked(list []string, id string) bool {
	if id == "" {
		return false
	}
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}
