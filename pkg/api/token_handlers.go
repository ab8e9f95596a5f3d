package api

import (
	"net/http"
	"time"

	"github.com/gatherly/gatherly/pkg/auth"
	"github.com/gatherly/gatherly/pkg/contextkeys"
	"github.com/gatherly/gatherly/pkg/httputil"
)

type createTokenRequest struct {
	Name      string       `json:"name"`
	Scopes    []auth.Scope `json:"scopes"`
	ExpiresAt *time.Time   `json:"expires_at,omitempty"`
}

type createTokenResponse struct {
	Token *auth.APIToken `json:"token"`
	// Plaintext is shown once at creation time and never stored.
	Plaintext string `json:"plaintext"`
}

var knownScopes = map[auth.Scope]bool{
	auth.ScopeCollectionsRead:  true,
	auth.ScopeCollectionsWrite: true,
	auth.ScopePostsWrite:       true,
	auth.ScopeMediaUpload:      true,
	auth.ScopeWebhooksManage:   true,
	auth.ScopeAll:              true,
}

// createToken handles POST /tokens
func (s *Server) createToken(w http.ResponseWriter, r *http.Request) {
	userID := contextkeys.GetUserID(r.Context())
	if userID == "" {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req createTokenRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Name == "" {
		httputil.WriteBadRequest(w, "name is required")
		return
	}
	if len(req.Scopes) == 0 {
		httputil.WriteBadRequest(w, "at least one scope is required")
		return
	}
	for _, scope := range req.Scopes {
		if !knownScopes[scope] {
			httputil.WriteBadRequest(w, "unknown scope: "+string(scope))
			return
		}
	}
	if req.ExpiresAt != nil && req.ExpiresAt.Before(time.Now()) {
		httputil.WriteBadRequest(w, "expires_at is in the past")
		return
	}

	token, plaintext, err := s.tokens.CreateToken(r.Context(), userID, req.Name, req.Scopes, req.ExpiresAt)
	if err != nil {
		s.logger.WithError(err).Error("failed to create API token")
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteCreated(w, createTokenResponse{Token: token, Plaintext: plaintext})
}

// listTokens handles GET /tokens, scoped to the caller.
func (s *Server) listTokens(w http.ResponseWriter, r *http.Request) {
	userID := contextkeys.GetUserID(r.Context())
	if userID == "" {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	tokens, err := s.tokens.ListUserTokens(r.Context(), userID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{
		"tokens": tokens,
		"total":  len(tokens),
	})
}

// revokeToken handles DELETE /tokens/{tokenID}. Callers can only
// revoke their own tokens; anything else looks missing.
func (s *Server) revokeToken(w http.ResponseWriter, r *http.Request) {
	userID := contextkeys.GetUserID(r.Context())
	if userID == "" {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}
	tokenID, ok := httputil.ParsePathStringOrError(w, r, "tokenID")
	if !ok {
		return
	}

	owned, err := s.tokens.ListUserTokens(r.Context(), userID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	found := false
	for _, t := range owned {
		if t.ID == tokenID {
			found = true
			break
		}
	}
	if !found {
		httputil.WriteNotFoundError(w, "Token not found")
		return
	}

	if err := s.tokens.RevokeToken(r.Context(), tokenID); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}
