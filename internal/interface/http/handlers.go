package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jakobreinwald/cs-130-project-sub000/internal/application/command"
	"github.com/jakobreinwald/cs-130-project-sub000/internal/application/query"
	"github.com/jakobreinwald/cs-130-project-sub000/internal/domain/matching"
	"github.com/jakobreinwald/cs-130-project-sub000/internal/domain/music"
)

// AccessTokenHeader carries the caller's music catalog token.
const AccessTokenHeader = "X-Access-Token"

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker == nil {
		s.writeJSON(w, r, http.StatusOK, map[string]any{
			"healthy": true,
			"uptime":  s.Uptime().Round(time.Second).String(),
		})
		return
	}

	status := s.deps.HealthChecker.Check(r.Context())
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, r, code, status)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Ready {
			s.writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"reason": status.Message,
			})
			return
		}
	}

	s.writeJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// PROFILE HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type syncProfileResponse struct {
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	TopArtists  int       `json:"top_artists"`
	TopTracks   int       `json:"top_tracks"`
	Genres      int       `json:"genres"`
	GenreSource string    `json:"genre_source"`
	Degraded    bool      `json:"degraded"`
	SyncedAt    time.Time `json:"synced_at"`
}

// handleSyncProfile handles POST /api/v1/profile/sync
func (s *Server) handleSyncProfile(w http.ResponseWriter, r *http.Request) {
	if s.deps.SyncProfile == nil {
		notConfigured(w, r)
		return
	}

	result, err := s.deps.SyncProfile.Handle(r.Context(), command.SyncProfileCommand{
		AccessToken: accessToken(r),
	})
	if err != nil {
		s.writeDomainError(w, r, "sync_profile", err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, syncProfileResponse{
		UserID:      result.UserID,
		DisplayName: result.DisplayName,
		TopArtists:  result.TopArtists,
		TopTracks:   result.TopTracks,
		Genres:      result.Genres,
		GenreSource: string(result.GenreSource),
		Degraded:    result.Degraded,
		SyncedAt:    result.SyncedAt,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// CANDIDATE HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type discoverResponse struct {
	UserID     string            `json:"user_id"`
	Discovered int               `json:"discovered"`
	Added      int               `json:"added"`
	Outcomes   map[string]string `json:"outcomes"`
}

// handleDiscoverCandidates handles POST /api/v1/users/{id}/candidates/discover
func (s *Server) handleDiscoverCandidates(w http.ResponseWriter, r *http.Request) {
	if s.deps.DiscoverCandidates == nil {
		notConfigured(w, r)
		return
	}

	result, err := s.deps.DiscoverCandidates.Handle(r.Context(), command.DiscoverCandidatesCommand{
		UserID: r.PathValue("id"),
	})
	if err != nil {
		s.writeDomainError(w, r, "discover_candidates", err)
		return
	}

	outcomes := make(map[string]string, len(result.Outcomes))
	for id, o := range result.Outcomes {
		outcomes[id] = string(o)
	}

	s.writeJSON(w, r, http.StatusOK, discoverResponse{
		UserID:     result.UserID,
		Discovered: result.Discovered,
		Added:      result.Added,
		Outcomes:   outcomes,
	})
}

// handleGetCandidates handles GET /api/v1/users/{id}/candidates[?fresh=true]
func (s *Server) handleGetCandidates(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetPotentialMatches == nil {
		notConfigured(w, r)
		return
	}

	result, err := s.deps.GetPotentialMatches.Handle(r.Context(), query.GetPotentialMatchesQuery{
		UserID:    r.PathValue("id"),
		OnlyFresh: queryBool(r, "fresh"),
	})
	if err != nil {
		s.writeDomainError(w, r, "get_candidates", err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, result)
}

type candidateOutcomeResponse struct {
	UserID      string         `json:"user_id"`
	CandidateID string         `json:"candidate_id"`
	Outcome     string         `json:"outcome"`
	Mutual      bool           `json:"mutual,omitempty"`
	Match       *matchResponse `json:"match,omitempty"`
}

type matchResponse struct {
	MatchID         string    `json:"match_id"`
	Score           *float64  `json:"score"`
	SharedArtistIDs []string  `json:"shared_artist_ids"`
	SharedGenres    []string  `json:"shared_genres"`
	SharedTrackIDs  []string  `json:"shared_track_ids"`
	CreatedAt       time.Time `json:"created_at"`
}

func toMatchResponse(m *matching.Match) *matchResponse {
	if m == nil {
		return nil
	}
	resp := &matchResponse{
		MatchID:         m.ID(),
		SharedArtistIDs: m.SharedArtistIDs,
		SharedGenres:    m.SharedGenres,
		SharedTrackIDs:  m.SharedTrackIDs,
		CreatedAt:       m.CreatedAt,
	}
	if m.HasScore() {
		score := m.Score
		resp.Score = &score
	}
	return resp
}

// handleLikeCandidate handles POST /api/v1/users/{id}/candidates/{candidateID}/like
func (s *Server) handleLikeCandidate(w http.ResponseWriter, r *http.Request) {
	if s.deps.LikeCandidate == nil {
		notConfigured(w, r)
		return
	}

	result, err := s.deps.LikeCandidate.Handle(r.Context(), command.LikeCandidateCommand{
		UserID:      r.PathValue("id"),
		CandidateID: r.PathValue("candidateID"),
	})
	if err != nil {
		s.writeDomainError(w, r, "like_candidate", err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, candidateOutcomeResponse{
		UserID:      result.UserID,
		CandidateID: result.CandidateID,
		Outcome:     string(result.Outcome),
		Mutual:      result.Mutual,
		Match:       toMatchResponse(result.Match),
	})
}

// handleDismissCandidate handles POST /api/v1/users/{id}/candidates/{candidateID}/dismiss
func (s *Server) handleDismissCandidate(w http.ResponseWriter, r *http.Request) {
	if s.deps.DismissCandidate == nil {
		notConfigured(w, r)
		return
	}

	result, err := s.deps.DismissCandidate.Handle(r.Context(), command.DismissCandidateCommand{
		UserID:      r.PathValue("id"),
		CandidateID: r.PathValue("candidateID"),
	})
	if err != nil {
		s.writeDomainError(w, r, "dismiss_candidate", err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, candidateOutcomeResponse{
		UserID:      result.UserID,
		CandidateID: result.CandidateID,
		Outcome:     string(result.Outcome),
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// MATCH HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetMatches handles GET /api/v1/users/{id}/matches
func (s *Server) handleGetMatches(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetMatches == nil {
		notConfigured(w, r)
		return
	}

	result, err := s.deps.GetMatches.Handle(r.Context(), query.GetMatchesQuery{
		UserID: r.PathValue("id"),
	})
	if err != nil {
		s.writeDomainError(w, r, "get_matches", err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// RECOMMENDATION HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type recommendationsResponse struct {
	UserID    string        `json:"user_id"`
	Tracks    []music.Track `json:"tracks"`
	Generated int           `json:"generated"`
	Rounds    int           `json:"rounds"`
}

// handleGetRecommendations handles GET /api/v1/users/{id}/recommendations?count=N
func (s *Server) handleGetRecommendations(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetRecommendations == nil {
		notConfigured(w, r)
		return
	}

	count := s.config.DefaultRecommendationCount
	if raw := r.URL.Query().Get("count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeJSONError(w, r, http.StatusBadRequest, "invalid_request", "count must be an integer")
			return
		}
		count = n
	}

	result, err := s.deps.GetRecommendations.Handle(r.Context(), command.GetRecommendationsCommand{
		AccessToken: accessToken(r),
		UserID:      r.PathValue("id"),
		Count:       count,
	})
	if err != nil {
		s.writeDomainError(w, r, "get_recommendations", err)
		return
	}

	tracks := result.Tracks
	if tracks == nil {
		tracks = []music.Track{}
	}

	s.writeJSONWithMeta(w, r, http.StatusOK, recommendationsResponse{
		UserID:    result.UserID,
		Tracks:    tracks,
		Generated: result.Generated,
		Rounds:    result.Rounds,
	}, &ResponseMeta{
		Partial:   result.Partial,
		Requested: result.Requested,
		Returned:  len(tracks),
	})
}

type trackOutcomeResponse struct {
	UserID         string `json:"user_id"`
	TrackID        string `json:"track_id"`
	Outcome        string `json:"outcome"`
	PlaylistID     string `json:"playlist_id,omitempty"`
	PlaylistSynced bool   `json:"playlist_synced"`
}

// handleLikeRecommendation handles POST /api/v1/users/{id}/recommendations/{trackID}/like
func (s *Server) handleLikeRecommendation(w http.ResponseWriter, r *http.Request) {
	if s.deps.LikeRecommendation == nil {
		notConfigured(w, r)
		return
	}

	result, err := s.deps.LikeRecommendation.Handle(r.Context(), command.LikeRecommendationCommand{
		TrackCommand: command.TrackCommand{
			UserID:  r.PathValue("id"),
			TrackID: r.PathValue("trackID"),
		},
		AccessToken: accessToken(r),
	})
	if err != nil {
		s.writeDomainError(w, r, "like_recommendation", err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, trackOutcomeResponse{
		UserID:         result.UserID,
		TrackID:        result.TrackID,
		Outcome:        string(result.Outcome),
		PlaylistID:     result.PlaylistID,
		PlaylistSynced: result.PlaylistSynced,
	})
}

// handleDismissRecommendation handles POST /api/v1/users/{id}/recommendations/{trackID}/dismiss
func (s *Server) handleDismissRecommendation(w http.ResponseWriter, r *http.Request) {
	if s.deps.DismissRecommendation == nil {
		notConfigured(w, r)
		return
	}

	result, err := s.deps.DismissRecommendation.Handle(r.Context(), command.DismissRecommendationCommand{
		UserID:  r.PathValue("id"),
		TrackID: r.PathValue("trackID"),
	})
	if err != nil {
		s.writeDomainError(w, r, "dismiss_recommendation", err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, trackOutcomeResponse{
		UserID:  result.UserID,
		TrackID: result.TrackID,
		Outcome: string(result.Outcome),
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func accessToken(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(AccessTokenHeader))
}

func queryBool(r *http.Request, key string) bool {
	switch strings.ToLower(r.URL.Query().Get(key)) {
	case "true", "1", "yes":
		return true
	}
	return false
}

func notConfigured(w http.ResponseWriter, r *http.Request) {
	writeJSONError(w, r, http.StatusNotImplemented, "not_implemented", "Handler not configured")
}
