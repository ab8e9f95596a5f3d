package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/gatherly/gatherly/pkg/contextkeys"
	"github.com/gatherly/gatherly/pkg/httputil"
	"github.com/gatherly/gatherly/pkg/posts"
)

// createPostRequest is the payload for POST /collections/{id}/posts.
type createPostRequest struct {
	Title         string            `json:"title,omitempty"`
	Caption       string            `json:"caption,omitempty"`
	Media         []posts.MediaItem `json:"media"`
	TaggedUsers   []string          `json:"tagged_users,omitempty"`
	AllowDownload bool              `json:"allow_download"`
	AllowReplies  bool              `json:"allow_replies"`
}

// createPost handles POST /collections/{id}/posts
func (s *Server) createPost(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := s.actorAndID(w, r)
	if !ok {
		return
	}

	var req createPostRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	p := &posts.Post{
		ID:            uuid.NewString(),
		CollectionID:  id,
		AuthorID:      userID,
		Title:         req.Title,
		Caption:       req.Caption,
		Media:         req.Media,
		TaggedUsers:   req.TaggedUsers,
		AllowDownload: req.AllowDownload,
		AllowReplies:  req.AllowReplies,
	}

	created, err := s.posts.Create(r.Context(), userID, p)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteCreated(w, created)
}

// listPosts handles GET /collections/{id}/posts. Ordering follows the
// collection's post sort, pinned posts first.
func (s *Server) listPosts(w http.ResponseWriter, r *http.Request) {
	userID := contextkeys.GetUserID(r.Context())
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	items, err := s.posts.List(r.Context(), id, userID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{
		"collection_id": id,
		"posts":         items,
		"total":         len(items),
	})
}

func (s *Server) actorAndPostID(w http.ResponseWriter, r *http.Request) (userID, postID string, ok bool) {
	userID = contextkeys.GetUserID(r.Context())
	if userID == "" {
		httputil.WriteUnauthorized(w, "Authentication required")
		return "", "", false
	}
	postID, pathOK := httputil.ParsePathStringOrError(w, r, "postID")
	if !pathOK {
		return "", "", false
	}
	return userID, postID, true
}

// getPost handles GET /posts/{postID}
func (s *Server) getPost(w http.ResponseWriter, r *http.Request) {
	userID := contextkeys.GetUserID(r.Context())
	postID, ok := httputil.ParsePathStringOrError(w, r, "postID")
	if !ok {
		return
	}

	p, err := s.posts.Get(r.Context(), postID, userID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, p)
}

// updatePost handles PATCH /posts/{postID}
func (s *Server) updatePost(w http.ResponseWriter, r *http.Request) {
	userID, postID, ok := s.actorAndPostID(w, r)
	if !ok {
		return
	}

	var update posts.Update
	if !httputil.ParseJSONOrError(w, r, &update) {
		return
	}

	p, err := s.posts.Update(r.Context(), postID, userID, update)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, p)
}

// deletePost handles DELETE /posts/{postID}
func (s *Server) deletePost(w http.ResponseWriter, r *http.Request) {
	userID, postID, ok := s.actorAndPostID(w, r)
	if !ok {
		return
	}

	if err := s.posts.Delete(r.Context(), postID, userID); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// pinPost handles POST /posts/{postID}/pin
func (s *Server) pinPost(w http.ResponseWriter, r *http.Request) {
	userID, postID, ok := s.actorAndPostID(w, r)
	if !ok {
		return
	}

	p, err := s.posts.Pin(r.Context(), postID, userID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, p)
}

// unpinPost handles DELETE /posts/{postID}/pin
func (s *Server) unpinPost(w http.ResponseWriter, r *http.Request) {
	userID, postID, ok := s.actorAndPostID(w, r)
	if !ok {
		return
	}

	p, err := s.posts.Unpin(r.Context(), postID, userID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, p)
}

// createReplyRequest is the payload for POST /posts/{postID}/replies.
type createReplyRequest struct {
	Body string `json:"body"`
}

// createReply handles POST /posts/{postID}/replies
func (s *Server) createReply(w http.ResponseWriter, r *http.Request) {
	userID, postID, ok := s.actorAndPostID(w, r)
	if !ok {
		return
	}

	var req createReplyRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	reply, err := s.replies.Create(r.Context(), postID, userID, req.Body)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteCreated(w, reply)
}

// listReplies handles GET /posts/{postID}/replies
func (s *Server) listReplies(w http.ResponseWriter, r *http.Request) {
	userID := contextkeys.GetUserID(r.Context())
	postID, ok := httputil.ParsePathStringOrError(w, r, "postID")
	if !ok {
		return
	}

	items, err := s.replies.List(r.Context(), postID, userID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{
		"post_id": postID,
		"replies": items,
		"total":   len(items),
	})
}

// deleteReply handles DELETE /replies/{replyID}
func (s *Server) deleteReply(w http.ResponseWriter, r *http.Request) {
	userID := contextkeys.GetUserID(r.Context())
	if userID == "" {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}
	replyID, ok := httputil.ParsePathStringOrError(w, r, "replyID")
	if !ok {
		return
	}

	if err := s.replies.Delete(r.Context(), replyID, userID); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}
