package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/gatherly/gatherly/pkg/auth"
	"github.com/gatherly/gatherly/pkg/collections"
	"github.com/gatherly/gatherly/pkg/events"
	"github.com/gatherly/gatherly/pkg/membership"
	"github.com/gatherly/gatherly/pkg/middleware"
	"github.com/gatherly/gatherly/pkg/observability"
	"github.com/gatherly/gatherly/pkg/posts"
	"github.com/gatherly/gatherly/pkg/rbac"
	"github.com/gatherly/gatherly/pkg/storage"
)

// Deps carries the services the API server exposes.
type Deps struct {
	Collections storage.CollectionStore
	Coordinator *membership.Coordinator
	Posts       *posts.Service
	Replies     *posts.ReplyService
	Users       storage.UserDirectory
	Media       storage.MediaStorage
	Webhooks    *events.WebhookManager
	Tokens      *auth.TokenManager
	Bus         events.Bus
	Logger      *observability.Logger
}

// Server is the REST API server.
type Server struct {
	router      *mux.Router
	logger      *observability.Logger
	colls       storage.CollectionStore
	coordinator *membership.Coordinator
	posts       *posts.Service
	replies     *posts.ReplyService
	users       storage.UserDirectory
	media       storage.MediaStorage
	webhooks    *events.WebhookManager
	tokens      *auth.TokenManager
	bus         events.Bus
	checker     *rbac.Checker
	perm        *rbac.PermissionMiddleware
}

// NewServer creates an API server and wires its routes.
func NewServer(deps Deps) *Server {
	s := &Server{
		router:      mux.NewRouter(),
		logger:      deps.Logger,
		colls:       deps.Collections,
		coordinator: deps.Coordinator,
		posts:       deps.Posts,
		replies:     deps.Replies,
		users:       deps.Users,
		media:       deps.Media,
		webhooks:    deps.Webhooks,
		tokens:      deps.Tokens,
		bus:         deps.Bus,
	}
	if s.logger == nil {
		s.logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	s.checker = rbac.NewChecker()
	s.perm = rbac.NewPermissionMiddleware(s.checker, NewCollectionGetter(deps.Collections))

	s.setupRoutes()
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	r := s.router

	// Collection routes
	r.HandleFunc("/collections", s.createCollection).Methods("POST")
	r.HandleFunc("/collections", s.listCollections).Methods("GET")
	r.Handle("/collections/{id}", s.viewer(s.getCollection)).Methods("GET")
	r.Handle("/collections/{id}", s.permit(rbac.ActionEditCollection, s.updateCollection)).Methods("PATCH")
	r.HandleFunc("/collections/{id}", s.deleteCollection).Methods("DELETE")

	// Membership routes
	r.HandleFunc("/collections/{id}/follow", s.follow).Methods("POST")
	r.HandleFunc("/collections/{id}/follow", s.unfollow).Methods("DELETE")
	r.HandleFunc("/collections/{id}/join", s.join).Methods("POST")
	r.HandleFunc("/collections/{id}/leave", s.leave).Methods("POST")
	r.HandleFunc("/collections/{id}/requests", s.requestJoin).Methods("POST")
	r.Handle("/collections/{id}/requests", s.permit(rbac.ActionApproveRequest, s.listPendingRequests)).Methods("GET")
	r.HandleFunc("/collections/{id}/requests/{userID}/approve", s.approveRequest).Methods("POST")
	r.HandleFunc("/collections/{id}/requests/{userID}/reject", s.rejectRequest).Methods("POST")
	r.Handle("/collections/{id}/members", s.viewer(s.listMembers)).Methods("GET")
	r.Handle("/collections/{id}/followers", s.permit(rbac.ActionViewFollowers, s.listFollowers)).Methods("GET")
	r.HandleFunc("/collections/{id}/members/{userID}/promote", s.promote).Methods("POST")
	r.HandleFunc("/collections/{id}/members/{userID}/demote", s.demote).Methods("POST")
	r.HandleFunc("/collections/{id}/members/{userID}", s.removeMember).Methods("DELETE")

	// Invitation routes
	r.HandleFunc("/collections/{id}/invitations", s.createInvitation).Methods("POST")
	r.HandleFunc("/collections/{id}/invitations", s.listInvitations).Methods("GET")
	r.HandleFunc("/collections/{id}/invitations/{invitationID}", s.revokeInvitation).Methods("DELETE")
	r.HandleFunc("/invitations/accept", s.acceptInvitation).Methods("POST")

	// Post routes
	r.HandleFunc("/collections/{id}/posts", s.createPost).Methods("POST")
	r.HandleFunc("/collections/{id}/posts", s.listPosts).Methods("GET")
	r.HandleFunc("/posts/{postID}", s.getPost).Methods("GET")
	r.HandleFunc("/posts/{postID}", s.updatePost).Methods("PATCH")
	r.HandleFunc("/posts/{postID}", s.deletePost).Methods("DELETE")
	r.HandleFunc("/posts/{postID}/pin", s.pinPost).Methods("POST")
	r.HandleFunc("/posts/{postID}/pin", s.unpinPost).Methods("DELETE")

	// Reply routes
	r.HandleFunc("/posts/{postID}/replies", s.createReply).Methods("POST")
	r.HandleFunc("/posts/{postID}/replies", s.listReplies).Methods("GET")
	r.HandleFunc("/replies/{replyID}", s.deleteReply).Methods("DELETE")

	// Media upload
	if s.media != nil {
		r.Handle("/media", middleware.RequireScope(auth.ScopeMediaUpload)(http.HandlerFunc(s.uploadMedia))).Methods("POST")
	}

	// User lookup
	if s.users != nil {
		r.HandleFunc("/users/{userID}", s.getUser).Methods("GET")
	}

	// API token management
	if s.tokens != nil {
		r.HandleFunc("/tokens", s.createToken).Methods("POST")
		r.HandleFunc("/tokens", s.listTokens).Methods("GET")
		r.HandleFunc("/tokens/{tokenID}", s.revokeToken).Methods("DELETE")
	}

	// Webhook administration
	if s.webhooks != nil {
		manage := middleware.RequireScope(auth.ScopeWebhooksManage)
		r.Handle("/webhooks", manage(http.HandlerFunc(s.registerWebhook))).Methods("POST")
		r.Handle("/webhooks", manage(http.HandlerFunc(s.listWebhooks))).Methods("GET")
		r.Handle("/webhooks/{webhookID}", manage(http.HandlerFunc(s.getWebhook))).Methods("GET")
		r.Handle("/webhooks/{webhookID}", manage(http.HandlerFunc(s.unregisterWebhook))).Methods("DELETE")
		r.Handle("/webhooks/{webhookID}/activate", manage(http.HandlerFunc(s.activateWebhook))).Methods("POST")
		r.Handle("/webhooks/{webhookID}/deactivate", manage(http.HandlerFunc(s.deactivateWebhook))).Methods("POST")
		r.Handle("/webhooks/{webhookID}/deliveries", manage(http.HandlerFunc(s.listWebhookDeliveries))).Methods("GET")
	}
}

// viewer wraps a handler with the record-visibility gate.
func (s *Server) viewer(h http.HandlerFunc) http.Handler {
	return s.perm.RequireViewer()(h)
}

// permit wraps a handler with a permission-table gate.
func (s *Server) permit(action rbac.Action, h http.HandlerFunc) http.Handler {
	return s.perm.RequirePermission(action)(h)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// collectionGetter adapts the collection store to the role middleware.
type collectionGetter struct {
	store storage.CollectionStore
}

// NewCollectionGetter adapts a CollectionStore to the authoritative
// fetch interface used by permission checks.
func NewCollectionGetter(store storage.CollectionStore) rbac.CollectionGetter {
	return collectionGetter{store: store}
}

func (g collectionGetter) GetCollection(ctx context.Context, id string) (*collections.Collection, error) {
	return g.store.Get(ctx, id)
}
