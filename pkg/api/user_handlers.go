package api

import (
	"net/http"

	"github.com/gatherly/gatherly/pkg/contextkeys"
	"github.com/gatherly/gatherly/pkg/httputil"
)

// getUser handles GET /users/{userID}. A profile blocked in either
// direction is reported as missing.
func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	viewerID := contextkeys.GetUserID(r.Context())
	userID, ok := httputil.ParsePathStringOrError(w, r, "userID")
	if !ok {
		return
	}

	u, err := s.users.GetUser(r.Context(), userID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	if viewerID != "" && viewerID != userID {
		if blocked(u.Blocked, viewerID) {
			httputil.WriteNotFoundError(w, "User not found")
			return
		}
		if viewer, err := s.users.GetUser(r.Context(), viewerID); err == nil && blocked(viewer.Blocked, userID) {
			httputil.WriteNotFoundError(w, "User not found")
			return
		}
	}

	out := *u
	if viewerID != userID {
		out.Blocked = nil
	}
	httputil.WriteSuccess(w, &out)
}
