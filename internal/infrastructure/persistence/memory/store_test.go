package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jakobreinwald/cs-130-project-sub000/internal/domain/matching"
	"github.com/jakobreinwald/cs-130-project-sub000/internal/domain/music"
	"github.com/jakobreinwald/cs-130-project-sub000/internal/domain/profile"
	"github.com/jakobreinwald/cs-130-project-sub000/internal/domain/shared"
)

func seedUser(t *testing.T, s *Store, id string) {
	t.Helper()
	u, err := profile.NewUser(id, id)
	require.NoError(t, err)
	u.TopArtistIDs = []string{"a1", "a2", "a3"}
	u.TopTrackIDs = []string{"t1", "t2"}
	require.NoError(t, s.Users().SaveUser(context.Background(), u))
}

func TestSaveUser_PreservesOutcomes(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seedUser(t, s, "u1")

	require.NoError(t, s.Users().TransitionMatchOutcome(ctx, "u1", "u2", profile.OutcomeNone, profile.OutcomeLiked))
	require.NoError(t, s.Users().AppendRecommendations(ctx, "u1", []string{"x"}, profile.SeedCursor{ArtistOffset: 2}))

	resync, err := profile.NewUser("u1", "renamed")
	require.NoError(t, err)
	resync.TopArtistIDs = []string{"a9"}
	resync.SeedCursor = profile.SeedCursor{ArtistOffset: 2}
	require.NoError(t, s.Users().SaveUser(ctx, resync))

	got, err := s.Users().GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.DisplayName)
	assert.Equal(t, profile.OutcomeLiked, got.MatchOutcomes["u2"])
	assert.Len(t, got.RecommendedTracks, 1)
	assert.Equal(t, 0, got.SeedCursor.ArtistOffset)
}

func TestSeedCandidates_NeverDowngrades(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seedUser(t, s, "u1")
	require.NoError(t, s.Users().TransitionMatchOutcome(ctx, "u1", "u2", profile.OutcomeNone, profile.OutcomeDismissed))

	outcomes, err := s.Users().SeedCandidates(ctx, "u1", []string{"u2", "u3"})
	require.NoError(t, err)

	assert.Equal(t, map[string]profile.MatchOutcome{
		"u2": profile.OutcomeDismissed,
		"u3": profile.OutcomeNone,
	}, outcomes)
}

func TestGetUser_ReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seedUser(t, s, "u1")

	u, err := s.Users().GetUser(ctx, "u1")
	require.NoError(t, err)
	u.MatchOutcomes["intruder"] = profile.OutcomeMatched

	again, err := s.Users().GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.NotContains(t, again.MatchOutcomes, "intruder")

	_, err = s.Users().GetUser(ctx, "missing")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestAppendRecommendations_SkipsDuplicates(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seedUser(t, s, "u1")

	require.NoError(t, s.Users().AppendRecommendations(ctx, "u1", []string{"x", "y"}, profile.SeedCursor{}))
	require.NoError(t, s.Users().SetTrackOutcome(ctx, "u1", "x", profile.TrackDismissed))
	require.NoError(t, s.Users().AppendRecommendations(ctx, "u1", []string{"x", "z", "z"}, profile.SeedCursor{TrackOffset: 1}))

	u, err := s.Users().GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, profile.TrackLedger{
		{TrackID: "x", Outcome: profile.TrackDismissed},
		{TrackID: "y", Outcome: profile.TrackFresh},
		{TrackID: "z", Outcome: profile.TrackFresh},
	}, u.RecommendedTracks)
	assert.Equal(t, 1, u.SeedCursor.TrackOffset)

	err = s.Users().SetTrackOutcome(ctx, "u1", "never", profile.TrackLiked)
	assert.ErrorIs(t, err, shared.ErrTrackNotRecommended)
}

func TestUpsertMutual_PromotesBothOutcomes(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seedUser(t, s, "alice")
	seedUser(t, s, "bob")
	require.NoError(t, s.Users().TransitionMatchOutcome(ctx, "alice", "bob", profile.OutcomeNone, profile.OutcomeLiked))
	require.NoError(t, s.Users().TransitionMatchOutcome(ctx, "bob", "alice", profile.OutcomeNone, profile.OutcomeLiked))

	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m := &matching.Match{UserA: "alice", UserB: "bob", Score: 0.5, CreatedAt: created, UpdatedAt: created}
	require.NoError(t, s.Matches().UpsertMutual(ctx, m))

	later := *m
	later.CreatedAt = created.Add(time.Hour)
	later.Score = 0.7
	require.NoError(t, s.Matches().UpsertMutual(ctx, &later))

	got, err := s.Matches().Get(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, created, got.CreatedAt)
	assert.Equal(t, 0.7, got.Score)
	assert.Equal(t, 1, s.Count())

	alice, err := s.Users().GetUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, profile.OutcomeMatched, alice.MatchOutcomes["bob"])
}

func TestUpsertMutual_AbortsWhenOneSideDismissed(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seedUser(t, s, "alice")
	seedUser(t, s, "bob")
	require.NoError(t, s.Users().TransitionMatchOutcome(ctx, "alice", "bob", profile.OutcomeNone, profile.OutcomeLiked))
	require.NoError(t, s.Users().TransitionMatchOutcome(ctx, "bob", "alice", profile.OutcomeNone, profile.OutcomeLiked))
	require.NoError(t, s.Users().TransitionMatchOutcome(ctx, "bob", "alice", profile.OutcomeLiked, profile.OutcomeDismissed))

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	err := s.Matches().UpsertMutual(ctx, &matching.Match{UserA: "alice", UserB: "bob", CreatedAt: now, UpdatedAt: now})
	assert.ErrorIs(t, err, shared.ErrNotMutual)
	assert.Equal(t, 0, s.Count())

	bob, err := s.Users().GetUser(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, profile.OutcomeDismissed, bob.Outcome("alice"))
	alice, err := s.Users().GetUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, profile.OutcomeLiked, alice.Outcome("bob"))
}

func TestTransitionMatchOutcome_RejectsChangedOutcome(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seedUser(t, s, "u1")
	require.NoError(t, s.Users().TransitionMatchOutcome(ctx, "u1", "u2", profile.OutcomeNone, profile.OutcomeLiked))

	err := s.Users().TransitionMatchOutcome(ctx, "u1", "u2", profile.OutcomeNone, profile.OutcomeDismissed)
	assert.ErrorIs(t, err, shared.ErrOutcomeChanged)

	err = s.Users().TransitionMatchOutcome(ctx, "ghost", "u2", profile.OutcomeNone, profile.OutcomeLiked)
	assert.ErrorIs(t, err, shared.ErrUserNotFound)

	got, err := s.Users().GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, profile.OutcomeLiked, got.Outcome("u2"))
}

func TestArtistAndGenreIndexes(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	require.NoError(t, s.Artists().SetListenerRank(ctx, "a1", "u1", 0))
	require.NoError(t, s.Artists().SaveArtist(ctx, &profile.Artist{ID: "a1", Name: "Band", Genres: []string{"rock"}}))
	require.NoError(t, s.Artists().SetListenerRank(ctx, "a1", "u2", 4))
	require.NoError(t, s.Artists().RemoveListener(ctx, "a1", "u1"))

	a, err := s.Artists().GetArtist(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "Band", a.Name)
	assert.Equal(t, map[string]int{"u2": 4}, a.ListenerRanks)

	found, err := s.Artists().GetArtists(ctx, []string{"a1", "missing"})
	require.NoError(t, err)
	assert.Len(t, found, 1)

	require.NoError(t, s.Genres().SetListenerCount(ctx, "rock", "u1", 3))
	g, err := s.Genres().GetGenre(ctx, "rock")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"u1": 3}, g.ListenerCounts)

	_, err = s.Genres().GetGenre(ctx, "polka")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestLocker_SerializesPerUser(t *testing.T) {
	l := NewLocker()
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		active  int
		maxSeen int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(ctx, "u1")
			if !assert.NoError(t, err) {
				return
			}
			defer unlock()

			mu.Lock()
			active++
			if active > maxSeen {
				maxSeen = active
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Empty(t, l.locks)
}

func TestLocker_ContextCancelled(t *testing.T) {
	l := NewLocker()
	unlock, err := l.Lock(context.Background(), "u1")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err = l.Lock(ctx, "u1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTrackCache_Expiry(t *testing.T) {
	ctx := context.Background()
	c := NewTrackCache()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	require.NoError(t, c.PutTracks(ctx, []music.Track{{ID: "t1", Name: "One"}}, time.Minute))

	got, err := c.GetTracks(ctx, []string{"t1", "t2"})
	require.NoError(t, err)
	assert.Equal(t, "One", got["t1"].Name)
	assert.Len(t, got, 1)

	now = now.Add(2 * time.Minute)
	got, err = c.GetTracks(ctx, []string{"t1"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestTrackCache_DropTracks(t *testing.T) {
	ctx := context.Background()
	c := NewTrackCache()

	require.NoError(t, c.PutTracks(ctx, []music.Track{{ID: "t1"}, {ID: "t2"}}, 0))
	require.NoError(t, c.DropTracks(ctx, []string{"t1", "missing"}))

	got, err := c.GetTracks(ctx, []string{"t1", "t2"})
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Contains(t, got, "t2")
}
