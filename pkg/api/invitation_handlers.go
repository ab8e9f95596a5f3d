package api

import (
	"net/http"

	"github.com/gatherly/gatherly/pkg/contextkeys"
	"github.com/gatherly/gatherly/pkg/httputil"
)

type createInvitationRequest struct {
	InviteeID string `json:"invitee_id"`
}

type acceptInvitationRequest struct {
	Token string `json:"token"`
}

// createInvitation handles POST /collections/{id}/invitations. The
// response carries the one-time token; it is never listed again.
func (s *Server) createInvitation(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := s.actorAndID(w, r)
	if !ok {
		return
	}

	var req createInvitationRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.InviteeID == "" {
		httputil.WriteBadRequest(w, "invitee_id is required")
		return
	}

	inv, err := s.coordinator.Invite(r.Context(), id, userID, req.InviteeID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteCreated(w, inv)
}

// listInvitations handles GET /collections/{id}/invitations
func (s *Server) listInvitations(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := s.actorAndID(w, r)
	if !ok {
		return
	}

	invs, err := s.coordinator.ListInvitations(r.Context(), id, userID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{
		"collection_id": id,
		"invitations":   invs,
	})
}

// revokeInvitation handles DELETE /collections/{id}/invitations/{invitationID}
func (s *Server) revokeInvitation(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := s.actorAndID(w, r)
	if !ok {
		return
	}
	invitationID, ok := httputil.ParsePathStringOrError(w, r, "invitationID")
	if !ok {
		return
	}

	if err := s.coordinator.RevokeInvitation(r.Context(), id, userID, invitationID); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// acceptInvitation handles POST /invitations/accept
func (s *Server) acceptInvitation(w http.ResponseWriter, r *http.Request) {
	userID := contextkeys.GetUserID(r.Context())
	if userID == "" {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req acceptInvitationRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Token == "" {
		httputil.WriteBadRequest(w, "token is required")
		return
	}

	c, err := s.coordinator.AcceptInvitation(r.Context(), req.Token, userID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, summarize(c, userID))
}
