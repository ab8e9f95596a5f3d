package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/gatherly/gatherly/pkg/events"
	"github.com/gatherly/gatherly/pkg/httputil"
)

const maxDeliveryLogLimit = 200

type registerWebhookRequest struct {
	URL         string        `json:"url"`
	Events      []events.Type `json:"events"`
	Secret      string        `json:"secret,omitempty"`
	Description string        `json:"description,omitempty"`
}

// registerWebhook handles POST /webhooks
func (s *Server) registerWebhook(w http.ResponseWriter, r *http.Request) {
	var req registerWebhookRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	ep := &events.Endpoint{
		ID:          uuid.NewString(),
		URL:         req.URL,
		Events:      req.Events,
		Secret:      req.Secret,
		Description: req.Description,
		Active:      true,
	}
	if err := s.webhooks.Register(ep); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	// The secret is write-only after registration.
	out := *ep
	out.Secret = ""
	httputil.WriteCreated(w, &out)
}

// listWebhooks handles GET /webhooks
func (s *Server) listWebhooks(w http.ResponseWriter, r *http.Request) {
	eps := s.webhooks.ListEndpoints()
	out := make([]*events.Endpoint, 0, len(eps))
	for _, ep := range eps {
		dup := *ep
		dup.Secret = ""
		out = append(out, &dup)
	}
	httputil.WriteSuccess(w, map[string]interface{}{
		"webhooks": out,
		"total":    len(out),
	})
}

// getWebhook handles GET /webhooks/{webhookID}
func (s *Server) getWebhook(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "webhookID")
	if !ok {
		return
	}

	ep, err := s.webhooks.GetEndpoint(id)
	if err != nil {
		httputil.WriteNotFoundError(w, "Webhook not found")
		return
	}
	out := *ep
	out.Secret = ""
	httputil.WriteSuccess(w, &out)
}

// unregisterWebhook handles DELETE /webhooks/{webhookID}
func (s *Server) unregisterWebhook(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "webhookID")
	if !ok {
		return
	}

	if err := s.webhooks.Unregister(id); err != nil {
		httputil.WriteNotFoundError(w, "Webhook not found")
		return
	}
	httputil.WriteNoContent(w)
}

// activateWebhook handles POST /webhooks/{webhookID}/activate
func (s *Server) activateWebhook(w http.ResponseWriter, r *http.Request) {
	s.setWebhookActive(w, r, true)
}

// deactivateWebhook handles POST /webhooks/{webhookID}/deactivate
func (s *Server) deactivateWebhook(w http.ResponseWriter, r *http.Request) {
	s.setWebhookActive(w, r, false)
}

func (s *Server) setWebhookActive(w http.ResponseWriter, r *http.Request, active bool) {
	id, ok := httputil.ParsePathStringOrError(w, r, "webhookID")
	if !ok {
		return
	}

	if err := s.webhooks.SetActive(id, active); err != nil {
		httputil.WriteNotFoundError(w, "Webhook not found")
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{
		"id":     id,
		"active": active,
	})
}

// listWebhookDeliveries handles GET /webhooks/{webhookID}/deliveries
func (s *Server) listWebhookDeliveries(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "webhookID")
	if !ok {
		return
	}

	if _, err := s.webhooks.GetEndpoint(id); err != nil {
		httputil.WriteNotFoundError(w, "Webhook not found")
		return
	}

	limit, err := httputil.ParseQueryInt(r, "limit", 50)
	if err != nil || limit <= 0 || limit > maxDeliveryLogLimit {
		httputil.WriteBadRequest(w, "Invalid limit")
		return
	}

	logs := s.webhooks.GetDeliveryLogs(id, limit)
	httputil.WriteSuccess(w, map[string]interface{}{
		"endpoint_id": id,
		"deliveries":  logs,
		"total":       len(logs),
	})
}
