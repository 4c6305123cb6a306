package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jakobreinwald/cs-130-project-sub000/internal/application/command"
	"github.com/jakobreinwald/cs-130-project-sub000/internal/application/query"
	"github.com/jakobreinwald/cs-130-project-sub000/internal/domain/music"
	"github.com/jakobreinwald/cs-130-project-sub000/internal/domain/profile"
	"github.com/jakobreinwald/cs-130-project-sub000/internal/domain/shared"
	"github.com/jakobreinwald/cs-130-project-sub000/internal/infrastructure/persistence/memory"
	"github.com/jakobreinwald/cs-130-project-sub000/pkg/logger"
)

// ──────────────────────────────────────────────────────────────────────────────
// Fakes
// ──────────────────────────────────────────────────────────────────────────────

// stubCatalog serves recommendation batches in order and nothing else.
type stubCatalog struct {
	mu      sync.Mutex
	batches [][]music.Track
	calls   int
}

func (c *stubCatalog) FetchProfile(ctx context.Context, token string) (*music.Profile, error) {
	return nil, shared.ErrCatalogUnavailable
}

func (c *stubCatalog) FetchTopArtists(ctx context.Context, token string, limit int) ([]music.Artist, error) {
	return nil, nil
}

func (c *stubCatalog) FetchTopTracks(ctx context.Context, token string, limit int) ([]music.Track, error) {
	return nil, nil
}

func (c *stubCatalog) FetchArtists(ctx context.Context, token string, ids []string) ([]music.Artist, error) {
	return nil, nil
}

func (c *stubCatalog) FetchTracks(ctx context.Context, token string, ids []string) ([]music.Track, error) {
	return nil, nil
}

func (c *stubCatalog) FetchRecommendedTracks(ctx context.Context, token string, seedArtists, seedTracks []string, limit int) ([]music.Track, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.calls > len(c.batches) {
		return nil, nil
	}
	return c.batches[c.calls-1], nil
}

func (c *stubCatalog) FetchPlaylist(ctx context.Context, token, playlistID string) (*music.Playlist, error) {
	return nil, shared.ErrPlaylistNotFound
}

func (c *stubCatalog) CreatePlaylist(ctx context.Context, token, userID, name string) (*music.Playlist, error) {
	return &music.Playlist{ID: "pl1", Name: name, OwnerID: userID}, nil
}

func (c *stubCatalog) AddTrackToPlaylist(ctx context.Context, token, playlistID, trackID string) error {
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Fixture
// ──────────────────────────────────────────────────────────────────────────────

type apiFixture struct {
	store   *memory.Store
	catalog *stubCatalog
	server  *Server
}

func newAPIFixture(t *testing.T, cfg Config) *apiFixture {
	t.Helper()
	store := memory.NewStore()
	locker := memory.NewLocker()
	cache := memory.NewTrackCache()
	catalog := &stubCatalog{}
	log := logger.Nop()

	deps := Dependencies{
		LikeCandidate:         command.NewLikeCandidateHandler(store, store.Matches(), locker, log, nil),
		DismissCandidate:      command.NewDismissCandidateHandler(store.Users(), locker),
		GetRecommendations:    command.NewGetRecommendationsHandler(store.Users(), catalog, cache, locker, log, command.GetRecommendationsConfig{}),
		DismissRecommendation: command.NewDismissRecommendationHandler(store.Users(), cache, locker, log),
		GetMatches:            query.NewGetMatchesHandler(store, store.Matches(), log, query.GetMatchesConfig{}),
		GetPotentialMatches:   query.NewGetPotentialMatchesHandler(store.Users()),
		Logger:                log,
	}

	return &apiFixture{
		store:   store,
		catalog: catalog,
		server:  NewServer(cfg, deps),
	}
}

func (f *apiFixture) saveUser(t *testing.T, id string, artists ...string) {
	t.Helper()
	u, err := profile.NewUser(id, id)
	require.NoError(t, err)
	u.ApplyTopLists(map[string]int{"rock": 1}, artists, nil)
	require.NoError(t, f.store.Users().SaveUser(context.Background(), u))
}

func (f *apiFixture) do(t *testing.T, method, path string, header map[string]string) (*httptest.ResponseRecorder, JSONResponse) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)

	var body JSONResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return rec, body
}

func token() map[string]string {
	return map[string]string{AccessTokenHeader: "tok"}
}

// ──────────────────────────────────────────────────────────────────────────────
// Tests
// ──────────────────────────────────────────────────────────────────────────────

func TestHealth_WithoutChecker(t *testing.T) {
	f := newAPIFixture(t, DefaultConfig())

	rec, body := f.do(t, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, body.Success)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, rec.Header().Get("X-Request-ID"), body.RequestID)
}

func TestAPIKeyAuth_GuardsAPIRoutesOnly(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.APIKeyHashes = []string{string(hash)}
	f := newAPIFixture(t, cfg)
	f.saveUser(t, "u1", "a1")

	rec, _ := f.do(t, http.MethodGet, "/live", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, body := f.do(t, http.MethodGet, "/api/v1/users/u1/candidates", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	require.NotNil(t, body.Error)
	assert.Equal(t, "missing_api_key", body.Error.Code)

	rec, _ = f.do(t, http.MethodGet, "/api/v1/users/u1/candidates", map[string]string{"X-API-Key": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, body = f.do(t, http.MethodGet, "/api/v1/users/u1/candidates", map[string]string{"Authorization": "Bearer secret"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, body.Success)
}

func TestUnconfiguredHandler_Returns501(t *testing.T) {
	f := newAPIFixture(t, DefaultConfig())

	rec, body := f.do(t, http.MethodPost, "/api/v1/profile/sync", token())

	assert.Equal(t, http.StatusNotImplemented, rec.Code)
	require.NotNil(t, body.Error)
	assert.Equal(t, "not_implemented", body.Error.Code)
}

func TestGetRecommendations_PartialMeta(t *testing.T) {
	f := newAPIFixture(t, DefaultConfig())
	f.saveUser(t, "u1", "a1")
	f.catalog.batches = [][]music.Track{{
		{ID: "t1", Name: "One"},
		{ID: "t2", Name: "Two"},
	}}

	rec, body := f.do(t, http.MethodGet, "/api/v1/users/u1/recommendations?count=5", token())

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotNil(t, body.Meta)
	assert.True(t, body.Meta.Partial)
	assert.Equal(t, 5, body.Meta.Requested)
	assert.Equal(t, 2, body.Meta.Returned)

	data, ok := body.Data.(map[string]any)
	require.True(t, ok)
	assert.Len(t, data["tracks"], 2)
}

func TestGetRecommendations_BadRequests(t *testing.T) {
	f := newAPIFixture(t, DefaultConfig())
	f.saveUser(t, "u1", "a1")

	tests := []struct {
		name    string
		path    string
		header  map[string]string
		status  int
		code    string
		message string
	}{
		{
			name:   "non-integer count",
			path:   "/api/v1/users/u1/recommendations?count=many",
			header: token(),
			status: http.StatusBadRequest,
			code:   "invalid_request",
		},
		{
			name:    "count out of range",
			path:    "/api/v1/users/u1/recommendations?count=0",
			header:  token(),
			status:  http.StatusBadRequest,
			code:    "invalid_request",
			message: "requested count out of range",
		},
		{
			name:    "missing access token",
			path:    "/api/v1/users/u1/recommendations",
			status:  http.StatusUnauthorized,
			code:    "unauthorized",
			message: "access token is required",
		},
		{
			name:   "unknown user",
			path:   "/api/v1/users/ghost/recommendations",
			header: token(),
			status: http.StatusNotFound,
			code:   "not_found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := f.do(t, http.MethodGet, tt.path, tt.header)

			assert.Equal(t, tt.status, rec.Code)
			assert.False(t, body.Success)
			require.NotNil(t, body.Error)
			assert.Equal(t, tt.code, body.Error.Code)
			if tt.message != "" {
				assert.Equal(t, tt.message, body.Error.Message)
			}
		})
	}
}

func TestDismissRecommendation_NeverRecommended(t *testing.T) {
	f := newAPIFixture(t, DefaultConfig())
	f.saveUser(t, "u1", "a1")

	rec, body := f.do(t, http.MethodPost, "/api/v1/users/u1/recommendations/t9/dismiss", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, body.Error)
	assert.Equal(t, "track was never recommended to this user", body.Error.Message)
}

func TestCandidateLifecycle_OverHTTP(t *testing.T) {
	f := newAPIFixture(t, DefaultConfig())
	f.saveUser(t, "u1", "a1")
	f.saveUser(t, "u2", "a1")

	rec, body := f.do(t, http.MethodPost, "/api/v1/users/u1/candidates/u2/like", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := body.Data.(map[string]any)
	assert.Equal(t, "liked", data["outcome"])
	assert.Nil(t, data["match"])

	rec, body = f.do(t, http.MethodPost, "/api/v1/users/u2/candidates/u1/like", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data = body.Data.(map[string]any)
	assert.Equal(t, "matched", data["outcome"])
	assert.Equal(t, true, data["mutual"])
	match, ok := data["match"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "u1:u2", match["match_id"])

	rec, body = f.do(t, http.MethodGet, "/api/v1/users/u1/matches", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"u2"`)

	rec, body = f.do(t, http.MethodPost, "/api/v1/users/u1/candidates/u2/dismiss", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	require.NotNil(t, body.Error)
	assert.Equal(t, "invalid_transition", body.Error.Code)
}

func TestLikeCandidate_Self(t *testing.T) {
	f := newAPIFixture(t, DefaultConfig())
	f.saveUser(t, "u1", "a1")

	rec, body := f.do(t, http.MethodPost, "/api/v1/users/u1/candidates/u1/like", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, body.Error)
	assert.True(t, strings.Contains(body.Error.Message, "themselves"))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{shared.ErrEmptyUserID, http.StatusBadRequest, "invalid_request"},
		{shared.ErrUserNotFound, http.StatusNotFound, "not_found"},
		{shared.ErrInvalidTrackTransition, http.StatusConflict, "invalid_transition"},
		{shared.ErrLockNotAcquired, http.StatusConflict, "user_busy"},
		{shared.ErrCatalogRateLimited, http.StatusTooManyRequests, "upstream_rate_limited"},
		{shared.ErrCatalogTimeout, http.StatusGatewayTimeout, "upstream_timeout"},
		{context.DeadlineExceeded, http.StatusGatewayTimeout, "upstream_timeout"},
		{shared.ErrCatalogUnavailable, http.StatusBadGateway, "upstream_unavailable"},
		{shared.ErrCatalogUnauthorized, http.StatusUnauthorized, "unauthorized"},
		{assert.AnError, http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			status, code := statusFor(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, code)
		})
	}
}
