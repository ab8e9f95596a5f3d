package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gatherly/gatherly/pkg/auth"
	"github.com/gatherly/gatherly/pkg/collections"
	"github.com/gatherly/gatherly/pkg/contextkeys"
	"github.com/gatherly/gatherly/pkg/events"
	"github.com/gatherly/gatherly/pkg/membership"
	"github.com/gatherly/gatherly/pkg/posts"
	"github.com/gatherly/gatherly/pkg/rbac"
	"github.com/gatherly/gatherly/pkg/storage"
)

type memCollections struct {
	mu      sync.Mutex
	records map[string]*collections.Collection
}

func newMemCollections() *memCollections {
	return &memCollections{records: make(map[string]*collections.Collection)}
}

func (s *memCollections) Create(_ context.Context, c *collections.Collection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := c.Clone()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	stored.UpdatedAt = stored.CreatedAt
	s.records[c.ID] = stored
	return nil
}

func (s *memCollections) Get(_ context.Context, id string) (*collections.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.records[id]
	if !ok || c.IsDeleted() {
		return nil, collections.ErrNotFound
	}
	return c.Clone(), nil
}

func (s *memCollections) ListForUser(_ context.Context, userID string, limit, offset int) ([]*collections.Collection, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*collections.Collection
	for _, c := range s.records {
		if c.IsDeleted() {
			continue
		}
		if collections.ResolveRole(c, userID) != collections.RoleOutsider {
			out = append(out, c.Clone())
		}
	}
	total := int64(len(out))
	if offset >= len(out) {
		return nil, total, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, total, nil
}

func (s *memCollections) ApplyUpdate(_ context.Context, id string, u collections.Update) (*collections.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.records[id]
	if !ok || c.IsDeleted() {
		return nil, collections.ErrNotFound
	}
	if u.Name != nil {
		c.Name = *u.Name
	}
	if u.Description != nil {
		c.Description = *u.Description
	}
	if u.PhotoURL != nil {
		c.PhotoURL = *u.PhotoURL
	}
	if u.IsPublic != nil {
		c.IsPublic = *u.IsPublic
	}
	if u.AllowedUsers != nil {
		c.AllowedUsers = *u.AllowedUsers
	}
	if u.DeniedUsers != nil {
		c.DeniedUsers = *u.DeniedUsers
	}
	if u.PostSort != nil {
		c.PostSort = *u.PostSort
	}
	c.UpdatedAt = c.UpdatedAt.Add(time.Millisecond)
	return c.Clone(), nil
}

func (s *memCollections) ReplaceMembership(_ context.Context, id string, expect time.Time, sets storage.MembershipSets) (*collections.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.records[id]
	if !ok || c.IsDeleted() {
		return nil, collections.ErrNotFound
	}
	if !c.UpdatedAt.Equal(expect) {
		return nil, collections.StaleStatef("collection %s changed concurrently", id)
	}
	next := c.Clone()
	next.Admins = sets.Admins
	next.Members = sets.Members
	next.Followers = sets.Followers
	next.AllowedUsers = sets.AllowedUsers
	next.DeniedUsers = sets.DeniedUsers
	next.PendingRequests = sets.PendingRequests
	next.MemberJoinDates = sets.MemberJoinDates
	next.MemberCount = len(sets.Members)
	next.UpdatedAt = c.UpdatedAt.Add(time.Millisecond)
	s.records[id] = next
	return next.Clone(), nil
}

func (s *memCollections) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.records[id]
	if !ok || c.IsDeleted() {
		return collections.ErrNotFound
	}
	now := time.Now()
	c.DeletedAt = &now
	return nil
}

type memPosts struct {
	mu      sync.Mutex
	records map[string]*posts.Post
}

func newMemPosts() *memPosts {
	return &memPosts{records: make(map[string]*posts.Post)}
}

func (s *memPosts) Create(_ context.Context, p *posts.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dup := *p
	s.records[p.ID] = &dup
	return nil
}

func (s *memPosts) Get(_ context.Context, id string) (*posts.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.records[id]
	if !ok || p.IsDeleted() {
		return nil, collections.ErrNotFound
	}
	dup := *p
	return &dup, nil
}

func (s *memPosts) ListByCollection(_ context.Context, collectionID string) ([]*posts.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*posts.Post
	for _, p := range s.records {
		if p.CollectionID == collectionID && !p.IsDeleted() {
			dup := *p
			out = append(out, &dup)
		}
	}
	return out, nil
}

func (s *memPosts) ApplyUpdate(_ context.Context, id string, u posts.Update) (*posts.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.records[id]
	if !ok || p.IsDeleted() {
		return nil, collections.ErrNotFound
	}
	if u.Title != nil {
		p.Title = *u.Title
	}
	if u.Caption != nil {
		p.Caption = *u.Caption
	}
	if u.TaggedUsers != nil {
		p.TaggedUsers = *u.TaggedUsers
	}
	if u.AllowDownload != nil {
		p.AllowDownload = *u.AllowDownload
	}
	if u.AllowReplies != nil {
		p.AllowReplies = *u.AllowReplies
	}
	dup := *p
	return &dup, nil
}

func (s *memPosts) SetPin(_ context.Context, id string, pinned bool, pinnedAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.records[id]
	if !ok {
		return collections.ErrNotFound
	}
	p.IsPinned = pinned
	p.PinnedAt = pinnedAt
	return nil
}

func (s *memPosts) SoftDelete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.records[id]
	if !ok {
		return collections.ErrNotFound
	}
	now := time.Now()
	p.DeletedAt = &now
	return nil
}

func (s *memPosts) DeleteByCollection(_ context.Context, collectionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for _, p := range s.records {
		if p.CollectionID == collectionID {
			p.DeletedAt = &now
		}
	}
	return nil
}

func (s *memPosts) Purge(context.Context, time.Time) (int64, error) { return 0, nil }

type memReplies struct {
	mu      sync.Mutex
	records map[string]*posts.Reply
}

func newMemReplies() *memReplies {
	return &memReplies{records: make(map[string]*posts.Reply)}
}

func (s *memReplies) Create(_ context.Context, r *posts.Reply) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dup := *r
	s.records[r.ID] = &dup
	return nil
}

func (s *memReplies) Get(_ context.Context, id string) (*posts.Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok || r.DeletedAt != nil {
		return nil, collections.ErrNotFound
	}
	dup := *r
	return &dup, nil
}

func (s *memReplies) ListByPost(_ context.Context, postID string) ([]*posts.Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*posts.Reply
	for _, r := range s.records {
		if r.PostID == postID && r.DeletedAt == nil {
			dup := *r
			out = append(out, &dup)
		}
	}
	return out, nil
}

func (s *memReplies) SoftDelete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return collections.ErrNotFound
	}
	now := time.Now()
	r.DeletedAt = &now
	return nil
}

type memInvites struct {
	mu      sync.Mutex
	byID    map[string]*collections.Invitation
	byToken map[string]*collections.Invitation
}

func newMemInvites() *memInvites {
	return &memInvites{
		byID:    make(map[string]*collections.Invitation),
		byToken: make(map[string]*collections.Invitation),
	}
}

func (s *memInvites) Create(_ context.Context, inv *collections.Invitation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dup := *inv
	s.byID[inv.ID] = &dup
	s.byToken[inv.Token] = &dup
	return nil
}

func (s *memInvites) GetByToken(_ context.Context, token string) (*collections.Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.byToken[token]
	if !ok {
		return nil, collections.ErrNotFound
	}
	dup := *inv
	return &dup, nil
}

func (s *memInvites) ListByCollection(_ context.Context, collectionID string) ([]*collections.Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*collections.Invitation
	for _, inv := range s.byID {
		if inv.CollectionID == collectionID {
			dup := *inv
			out = append(out, &dup)
		}
	}
	return out, nil
}

func (s *memInvites) MarkAccepted(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.byID[id]
	if !ok {
		return collections.ErrNotFound
	}
	inv.AcceptedAt = &at
	return nil
}

func (s *memInvites) Revoke(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.byID[id]
	if !ok {
		return collections.ErrNotFound
	}
	delete(s.byID, id)
	delete(s.byToken, inv.Token)
	return nil
}

func (s *memInvites) DeleteExpired(context.Context, time.Time) (int64, error) { return 0, nil }

type memUsers struct {
	users map[string]*storage.User
}

func (s *memUsers) GetUser(_ context.Context, id string) (*storage.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, collections.ErrNotFound
	}
	dup := *u
	return &dup, nil
}

func (s *memUsers) GetUsers(_ context.Context, ids []string) ([]*storage.User, error) {
	var out []*storage.User
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			dup := *u
			out = append(out, &dup)
		} else {
			out = append(out, &storage.User{ID: id})
		}
	}
	return out, nil
}

type memTokens struct {
	mu     sync.Mutex
	byID   map[string]*auth.APIToken
	byHash map[string]*auth.APIToken
}

func newMemTokens() *memTokens {
	return &memTokens{
		byID:   make(map[string]*auth.APIToken),
		byHash: make(map[string]*auth.APIToken),
	}
}

func (s *memTokens) Insert(_ context.Context, t *auth.APIToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dup := *t
	s.byID[t.ID] = &dup
	s.byHash[t.TokenHash] = &dup
	return nil
}

func (s *memTokens) GetByHash(_ context.Context, hash string) (*auth.APIToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byHash[hash]
	if !ok {
		return nil, collections.ErrNotFound
	}
	dup := *t
	return &dup, nil
}

func (s *memTokens) ListByUser(_ context.Context, userID string) ([]*auth.APIToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*auth.APIToken
	for _, t := range s.byID {
		if t.UserID == userID {
			dup := *t
			out = append(out, &dup)
		}
	}
	return out, nil
}

func (s *memTokens) Revoke(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byID[id]
	if !ok {
		return collections.ErrNotFound
	}
	t.RevokedAt = &at
	return nil
}

func (s *memTokens) TouchLastUsed(_ context.Context, id string, at time.Time) error {
	return nil
}

func (s *memTokens) DeleteExpired(context.Context, time.Time) (int64, error) { return 0, nil }

type fakeMediaStore struct {
	mu   sync.Mutex
	keys []string
}

func (s *fakeMediaStore) Upload(_ context.Context, key string, content io.Reader, _ string) (string, error) {
	if _, err := io.Copy(io.Discard, content); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = append(s.keys, key)
	return "https://cdn.example.com/" + key, nil
}

func (s *fakeMediaStore) Delete(context.Context, string) error { return nil }
func (s *fakeMediaStore) HealthCheck(context.Context) error    { return nil }

// testEnv bundles the server with the fakes behind it.
type testEnv struct {
	server  *Server
	colls   *memCollections
	posts   *memPosts
	replies *memReplies
	invites *memInvites
	media   *fakeMediaStore
	users   *memUsers
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	colls := newMemCollections()
	postStore := newMemPosts()
	replyStore := newMemReplies()
	inviteStore := newMemInvites()
	media := &fakeMediaStore{}

	checker := rbac.NewChecker()
	bus := events.NopBus{}
	getter := NewCollectionGetter(colls)

	coordinator := membership.NewCoordinator(colls, postStore, inviteStore, checker, bus)
	postSvc := posts.NewService(postStore, getter, checker, bus)
	replySvc := posts.NewReplyService(replyStore, postStore, getter, checker, bus)

	users := &memUsers{users: map[string]*storage.User{
		"owner":  {ID: "owner", Username: "owner"},
		"admin":  {ID: "admin", Username: "admin"},
		"member": {ID: "member", Username: "member"},
	}}

	server := NewServer(Deps{
		Collections: colls,
		Coordinator: coordinator,
		Posts:       postSvc,
		Replies:     replySvc,
		Users:       users,
		Media:       media,
		Webhooks:    events.NewWebhookManager(),
		Tokens:      auth.NewTokenManager(newMemTokens()),
		Bus:         bus,
	})

	return &testEnv{
		server:  server,
		colls:   colls,
		posts:   postStore,
		replies: replyStore,
		invites: inviteStore,
		media:   media,
		users:   users,
	}
}

// do issues a request as the given user with full token scopes.
func (e *testEnv) do(t *testing.T, method, path, userID string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	return e.doScoped(t, method, path, userID, []auth.Scope{auth.ScopeAll}, body)
}

func (e *testEnv) doScoped(t *testing.T, method, path, userID string, scopes []auth.Scope, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	ctx := req.Context()
	if userID != "" {
		ctx = contextkeys.WithUserID(ctx, userID)
		ctx = contextkeys.WithAuth(ctx, &auth.AuthContext{UserID: userID, Scopes: scopes})
	}
	req = req.WithContext(ctx)

	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

// seedGroup stores an open public collection with the standard cast.
func (e *testEnv) seedGroup(t *testing.T) *collections.Collection {
	t.Helper()
	c := &collections.Collection{
		ID:          "c1",
		Name:        "Trip Photos",
		OwnerID:     "owner",
		Type:        collections.TypeOpen,
		IsPublic:    true,
		Admins:      []string{"admin"},
		Members:     []string{"member", "author"},
		MemberCount: 2,
	}
	require.NoError(t, e.colls.Create(context.Background(), c))
	return c
}

func (e *testEnv) seedPost(t *testing.T, id, authorID string, allowReplies bool) *posts.Post {
	t.Helper()
	p := &posts.Post{
		ID:           id,
		CollectionID: "c1",
		AuthorID:     authorID,
		Media:        []posts.MediaItem{{URL: "https://cdn.example.com/a.jpg", Kind: posts.MediaPhoto}},
		AllowReplies: allowReplies,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}
	require.NoError(t, e.posts.Create(context.Background(), p))
	return p
}
