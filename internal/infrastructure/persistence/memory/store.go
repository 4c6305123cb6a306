// Package memory implements in-process storage used in development and tests.
// Every read returns a copy, so callers never alias stored records.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jakobreinwald/cs-130-project-sub000/internal/domain/matching"
	"github.com/jakobreinwald/cs-130-project-sub000/internal/domain/profile"
	"github.com/jakobreinwald/cs-130-project-sub000/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// STORE
// ══════════════════════════════════════════════════════════════════════════════

// Store holds users, artists, genres and matches in maps guarded by
// per-collection locks. Map-valued fields are updated one key at a time
// under the collection lock, so unrelated keys on the same record never clobber.
type Store struct {
	usersMu sync.RWMutex
	users   map[string]*profile.User

	artistsMu sync.RWMutex
	artists   map[string]*profile.Artist

	genresMu sync.RWMutex
	genres   map[string]*profile.Genre

	matchesMu sync.RWMutex
	matches   map[string]*matching.Match

	now func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		users:   make(map[string]*profile.User),
		artists: make(map[string]*profile.Artist),
		genres:  make(map[string]*profile.Genre),
		matches: make(map[string]*matching.Match),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Users returns the user repository.
func (s *Store) Users() profile.UserRepository { return &userRepo{s: s} }

// Artists returns the artist repository.
func (s *Store) Artists() profile.ArtistRepository { return &artistRepo{s: s} }

// Genres returns the genre repository.
func (s *Store) Genres() profile.GenreRepository { return &genreRepo{s: s} }

// Matches returns the match repository.
func (s *Store) Matches() matching.Repository { return &matchRepo{s: s} }

// ─────────────────────────────────────────────────────────────────────────────
// Users
// ─────────────────────────────────────────────────────────────────────────────

type userRepo struct{ s *Store }

func (r *userRepo) GetUser(ctx context.Context, id string) (*profile.User, error) {
	r.s.usersMu.RLock()
	defer r.s.usersMu.RUnlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, shared.ErrUserNotFound
	}
	return u.Clone(), nil
}

func (r *userRepo) SaveUser(ctx context.Context, u *profile.User) error {
	if u == nil || u.ID == "" {
		return shared.ErrEmptyUserID
	}

	r.s.usersMu.Lock()
	defer r.s.usersMu.Unlock()

	now := r.s.now()
	next := u.Clone()
	if existing, ok := r.s.users[u.ID]; ok {
		next.MatchOutcomes = existing.Clone().MatchOutcomes
		next.RecommendedTracks = append(profile.TrackLedger(nil), existing.RecommendedTracks...)
		next.CreatedAt = existing.CreatedAt
		if next.RecPlaylistID == "" {
			next.RecPlaylistID = existing.RecPlaylistID
		}
	} else if next.CreatedAt.IsZero() {
		next.CreatedAt = now
	}
	if next.MatchOutcomes == nil {
		next.MatchOutcomes = make(map[string]profile.MatchOutcome)
	}
	next.SeedCursor = next.SeedCursor.Clamp(len(next.TopArtistIDs), len(next.TopTrackIDs))
	next.UpdatedAt = now
	r.s.users[u.ID] = next
	return nil
}

func (r *userRepo) TransitionMatchOutcome(ctx context.Context, userID, candidateID string, from, to profile.MatchOutcome) error {
	r.s.usersMu.Lock()
	defer r.s.usersMu.Unlock()

	u, ok := r.s.users[userID]
	if !ok {
		return shared.ErrUserNotFound
	}
	if u.Outcome(candidateID) != from {
		return shared.ErrOutcomeChanged
	}
	u.MatchOutcomes[candidateID] = to
	u.UpdatedAt = r.s.now()
	return nil
}

func (r *userRepo) SeedCandidates(ctx context.Context, userID string, candidateIDs []string) (map[string]profile.MatchOutcome, error) {
	r.s.usersMu.Lock()
	defer r.s.usersMu.Unlock()

	u, ok := r.s.users[userID]
	if !ok {
		return nil, shared.ErrUserNotFound
	}
	for _, id := range candidateIDs {
		if _, exists := u.MatchOutcomes[id]; !exists {
			u.MatchOutcomes[id] = profile.OutcomeNone
		}
	}
	return u.Clone().MatchOutcomes, nil
}

func (r *userRepo) SetTrackOutcome(ctx context.Context, userID, trackID string, outcome profile.TrackOutcome) error {
	r.s.usersMu.Lock()
	defer r.s.usersMu.Unlock()

	u, ok := r.s.users[userID]
	if !ok {
		return shared.ErrUserNotFound
	}
	for i := range u.RecommendedTracks {
		if u.RecommendedTracks[i].TrackID == trackID {
			u.RecommendedTracks[i].Outcome = outcome
			u.UpdatedAt = r.s.now()
			return nil
		}
	}
	return shared.ErrTrackNotRecommended
}

func (r *userRepo) AppendRecommendations(ctx context.Context, userID string, trackIDs []string, cursor profile.SeedCursor) error {
	r.s.usersMu.Lock()
	defer r.s.usersMu.Unlock()

	u, ok := r.s.users[userID]
	if !ok {
		return shared.ErrUserNotFound
	}
	seen := u.RecommendedTracks.Seen()
	for _, id := range trackIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		u.RecommendedTracks = append(u.RecommendedTracks, profile.RecommendedTrack{TrackID: id, Outcome: profile.TrackFresh})
	}
	u.SeedCursor = cursor.Clamp(len(u.TopArtistIDs), len(u.TopTrackIDs))
	u.UpdatedAt = r.s.now()
	return nil
}

func (r *userRepo) SetPlaylistID(ctx context.Context, userID, playlistID string) error {
	r.s.usersMu.Lock()
	defer r.s.usersMu.Unlock()

	u, ok := r.s.users[userID]
	if !ok {
		return shared.ErrUserNotFound
	}
	u.RecPlaylistID = playlistID
	u.UpdatedAt = r.s.now()
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Artists
// ─────────────────────────────────────────────────────────────────────────────

type artistRepo struct{ s *Store }

func (r *artistRepo) GetArtist(ctx context.Context, id string) (*profile.Artist, error) {
	r.s.artistsMu.RLock()
	defer r.s.artistsMu.RUnlock()

	a, ok := r.s.artists[id]
	if !ok {
		return nil, shared.ErrArtistNotFound
	}
	return cloneArtist(a), nil
}

func (r *artistRepo) GetArtists(ctx context.Context, ids []string) (map[string]*profile.Artist, error) {
	r.s.artistsMu.RLock()
	defer r.s.artistsMu.RUnlock()

	out := make(map[string]*profile.Artist, len(ids))
	for _, id := range ids {
		if a, ok := r.s.artists[id]; ok {
			out[id] = cloneArtist(a)
		}
	}
	return out, nil
}

func (r *artistRepo) SaveArtist(ctx context.Context, a *profile.Artist) error {
	r.s.artistsMu.Lock()
	defer r.s.artistsMu.Unlock()

	existing, ok := r.s.artists[a.ID]
	if !ok {
		existing = &profile.Artist{ID: a.ID, ListenerRanks: make(map[string]int)}
		r.s.artists[a.ID] = existing
	}
	existing.Name = a.Name
	existing.Genres = append([]string(nil), a.Genres...)
	existing.UpdatedAt = r.s.now()
	return nil
}

func (r *artistRepo) SetListenerRank(ctx context.Context, artistID, userID string, rank int) error {
	r.s.artistsMu.Lock()
	defer r.s.artistsMu.Unlock()

	a, ok := r.s.artists[artistID]
	if !ok {
		a = &profile.Artist{ID: artistID, ListenerRanks: make(map[string]int)}
		r.s.artists[artistID] = a
	}
	a.ListenerRanks[userID] = rank
	a.UpdatedAt = r.s.now()
	return nil
}

func (r *artistRepo) RemoveListener(ctx context.Context, artistID, userID string) error {
	r.s.artistsMu.Lock()
	defer r.s.artistsMu.Unlock()

	if a, ok := r.s.artists[artistID]; ok {
		delete(a.ListenerRanks, userID)
		a.UpdatedAt = r.s.now()
	}
	return nil
}

func cloneArtist(a *profile.Artist) *profile.Artist {
	c := *a
	c.Genres = append([]string(nil), a.Genres...)
	c.ListenerRanks = make(map[string]int, len(a.ListenerRanks))
	for k, v := range a.ListenerRanks {
		c.ListenerRanks[k] = v
	}
	return &c
}

// ─────────────────────────────────────────────────────────────────────────────
// Genres
// ─────────────────────────────────────────────────────────────────────────────

type genreRepo struct{ s *Store }

func (r *genreRepo) GetGenre(ctx context.Context, name string) (*profile.Genre, error) {
	r.s.genresMu.RLock()
	defer r.s.genresMu.RUnlock()

	g, ok := r.s.genres[name]
	if !ok {
		return nil, shared.ErrGenreNotFound
	}
	c := *g
	c.ListenerCounts = make(map[string]int, len(g.ListenerCounts))
	for k, v := range g.ListenerCounts {
		c.ListenerCounts[k] = v
	}
	return &c, nil
}

func (r *genreRepo) SetListenerCount(ctx context.Context, name, userID string, count int) error {
	r.s.genresMu.Lock()
	defer r.s.genresMu.Unlock()

	g, ok := r.s.genres[name]
	if !ok {
		g = &profile.Genre{Name: name, ListenerCounts: make(map[string]int)}
		r.s.genres[name] = g
	}
	g.ListenerCounts[userID] = count
	g.UpdatedAt = r.s.now()
	return nil
}

func (r *genreRepo) RemoveListener(ctx context.Context, name, userID string) error {
	r.s.genresMu.Lock()
	defer r.s.genresMu.Unlock()

	if g, ok := r.s.genres[name]; ok {
		delete(g.ListenerCounts, userID)
		g.UpdatedAt = r.s.now()
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Matches
// ─────────────────────────────────────────────────────────────────────────────

type matchRepo struct{ s *Store }

// UpsertMutual takes the users lock before the matches lock; Save and reads
// only take the matches lock, so the order never inverts. Both outcomes are
// re-checked under the users lock, so a dismiss that landed after the caller
// read the pair aborts the write with ErrNotMutual.
func (r *matchRepo) UpsertMutual(ctx context.Context, m *matching.Match) error {
	r.s.usersMu.Lock()
	defer r.s.usersMu.Unlock()

	a, okA := r.s.users[m.UserA]
	b, okB := r.s.users[m.UserB]
	if !okA || !okB {
		return shared.ErrUserNotFound
	}
	if !a.Outcome(b.ID).Likes() || !b.Outcome(a.ID).Likes() {
		return shared.ErrNotMutual
	}

	r.s.matchesMu.Lock()
	defer r.s.matchesMu.Unlock()

	next := cloneMatch(m)
	if existing, ok := r.s.matches[m.ID()]; ok {
		next.CreatedAt = existing.CreatedAt
	}
	r.s.matches[m.ID()] = next

	now := r.s.now()
	a.MatchOutcomes[b.ID] = profile.OutcomeMatched
	b.MatchOutcomes[a.ID] = profile.OutcomeMatched
	a.UpdatedAt, b.UpdatedAt = now, now
	return nil
}

func (r *matchRepo) Save(ctx context.Context, m *matching.Match) error {
	r.s.matchesMu.Lock()
	defer r.s.matchesMu.Unlock()

	existing, ok := r.s.matches[m.ID()]
	if !ok {
		return shared.ErrMatchNotFound
	}
	next := cloneMatch(m)
	next.CreatedAt = existing.CreatedAt
	r.s.matches[m.ID()] = next
	return nil
}

func (r *matchRepo) Get(ctx context.Context, userA, userB string) (*matching.Match, error) {
	r.s.matchesMu.RLock()
	defer r.s.matchesMu.RUnlock()

	m, ok := r.s.matches[matching.MatchID(userA, userB)]
	if !ok {
		return nil, shared.ErrMatchNotFound
	}
	return cloneMatch(m), nil
}

func (r *matchRepo) ListByUser(ctx context.Context, userID string) ([]*matching.Match, error) {
	r.s.matchesMu.RLock()
	defer r.s.matchesMu.RUnlock()

	out := make([]*matching.Match, 0)
	for _, m := range r.s.matches {
		if m.Involves(userID) {
			out = append(out, cloneMatch(m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out, nil
}

// Count returns the number of stored matches.
func (s *Store) Count() int {
	s.matchesMu.RLock()
	defer s.matchesMu.RUnlock()
	return len(s.matches)
}

// SetClock overrides the store's time source.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

func cloneMatch(m *matching.Match) *matching.Match {
	c := *m
	c.SharedArtistIDs = append([]string(nil), m.SharedArtistIDs...)
	c.SharedGenres = append([]string(nil), m.SharedGenres...)
	c.SharedTrackIDs = append([]string(nil), m.SharedTrackIDs...)
	return &c
}
