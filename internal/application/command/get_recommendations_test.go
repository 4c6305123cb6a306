package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jakobreinwald/cs-130-project-sub000/internal/domain/music"
	"github.com/jakobreinwald/cs-130-project-sub000/internal/domain/profile"
	"github.com/jakobreinwald/cs-130-project-sub000/internal/domain/shared"
)

func newRecHandler(f *fixture) *GetRecommendationsHandler {
	return NewGetRecommendationsHandler(f.store.Users(), f.catalog, f.cache, f.locker, f.log, GetRecommendationsConfig{
		BatchSize:   20,
		MaxRounds:   10,
		MaxCount:    50,
		CallTimeout: time.Second,
	})
}

func seedListener(t *testing.T, f *fixture) {
	f.saveUser(t, "u1", userFixture{
		genres:  map[string]int{"rock": 1},
		artists: []string{"a1", "a2", "a3", "a4", "a5"},
		tracks:  []string{"s1", "s2", "s3", "s4", "s5", "s6"},
	})
}

func recCmd(count int) GetRecommendationsCommand {
	return GetRecommendationsCommand{AccessToken: "tok", UserID: "u1", Count: count}
}

func TestGetRecommendations_SeedCursorsWrap(t *testing.T) {
	f := newFixture(t)
	seedListener(t, f)
	f.catalog.batches = [][]music.Track{tracks("x1"), tracks("x2"), tracks("x3")}

	res, err := newRecHandler(f).Handle(context.Background(), recCmd(3))
	require.NoError(t, err)

	assert.Equal(t, []string{"x1", "x2", "x3"}, trackIDsOf(res.Tracks))
	assert.False(t, res.Partial)
	assert.Equal(t, 3, res.Rounds)

	calls := f.catalog.seedCalls()
	require.Len(t, calls, 3)
	assert.Equal(t, []string{"a1", "a2"}, calls[0].artists)
	assert.Equal(t, []string{"a3", "a4"}, calls[1].artists)
	assert.Equal(t, []string{"a5"}, calls[2].artists)
	assert.Equal(t, []string{"s1", "s2", "s3"}, calls[0].tracks)
	assert.Equal(t, []string{"s4", "s5", "s6"}, calls[1].tracks)
	assert.Equal(t, []string{"s1", "s2", "s3"}, calls[2].tracks)

	// artist offsets 0,2,4 then wrap to 0; track offsets 0,3 then 0,3
	assert.Equal(t, profile.SeedCursor{ArtistOffset: 0, TrackOffset: 3}, f.user(t, "u1").SeedCursor)
}

func TestGetRecommendations_NeverResurfacesSeenTracks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seedListener(t, f)
	users := f.store.Users()
	require.NoError(t, users.AppendRecommendations(ctx, "u1", []string{"old1", "old2"}, profile.SeedCursor{}))
	require.NoError(t, users.SetTrackOutcome(ctx, "u1", "old1", profile.TrackDismissed))
	require.NoError(t, users.SetTrackOutcome(ctx, "u1", "old2", profile.TrackLiked))

	f.catalog.batches = [][]music.Track{tracks("old1", "n1", "old2", "n1", "n2")}

	res, err := newRecHandler(f).Handle(ctx, recCmd(2))
	require.NoError(t, err)

	assert.Equal(t, []string{"n1", "n2"}, trackIDsOf(res.Tracks))
	assert.Equal(t, 2, res.Generated)

	ledger := f.user(t, "u1").RecommendedTracks
	assert.Equal(t, profile.TrackLedger{
		{TrackID: "old1", Outcome: profile.TrackDismissed},
		{TrackID: "old2", Outcome: profile.TrackLiked},
		{TrackID: "n1", Outcome: profile.TrackFresh},
		{TrackID: "n2", Outcome: profile.TrackFresh},
	}, ledger)
}

func TestGetRecommendations_CacheFirst(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seedListener(t, f)
	require.NoError(t, f.store.Users().AppendRecommendations(ctx, "u1", []string{"f1", "f2", "f3"}, profile.SeedCursor{}))
	require.NoError(t, f.cache.PutTracks(ctx, tracks("f1", "f2", "f3"), 0))

	res, err := newRecHandler(f).Handle(ctx, recCmd(2))
	require.NoError(t, err)

	assert.Equal(t, []string{"f1", "f2"}, trackIDsOf(res.Tracks))
	assert.Empty(t, f.catalog.seedCalls())
	assert.Equal(t, 0, f.catalog.trackCalls)
}

func TestGetRecommendations_ResolvesUncachedTracksFromCatalog(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seedListener(t, f)
	require.NoError(t, f.store.Users().AppendRecommendations(ctx, "u1", []string{"f1"}, profile.SeedCursor{}))
	f.catalog.tracks["f1"] = track("f1")

	res, err := newRecHandler(f).Handle(ctx, recCmd(1))
	require.NoError(t, err)
	assert.Equal(t, []string{"f1"}, trackIDsOf(res.Tracks))
	assert.Equal(t, 1, f.catalog.trackCalls)

	cached, err := f.cache.GetTracks(ctx, []string{"f1"})
	require.NoError(t, err)
	assert.Contains(t, cached, "f1")
}

func TestGetRecommendations_PartialOnUpstreamFailure(t *testing.T) {
	f := newFixture(t)
	seedListener(t, f)
	f.catalog.batches = [][]music.Track{tracks("n1")}
	f.catalog.recErr = shared.ErrCatalogRateLimited
	f.catalog.recErrAt = 2

	res, err := newRecHandler(f).Handle(context.Background(), recCmd(3))
	require.NoError(t, err)

	assert.Equal(t, []string{"n1"}, trackIDsOf(res.Tracks))
	assert.True(t, res.Partial)
	assert.Equal(t, 2, res.Rounds)

	// only the successful round moved the cursor
	assert.Equal(t, profile.SeedCursor{ArtistOffset: 2, TrackOffset: 3}, f.user(t, "u1").SeedCursor)
}

func TestGetRecommendations_FailedFirstRoundKeepsCursor(t *testing.T) {
	f := newFixture(t)
	seedListener(t, f)
	f.catalog.recErr = shared.ErrCatalogUnavailable
	f.catalog.recErrAt = 1

	res, err := newRecHandler(f).Handle(context.Background(), recCmd(2))
	require.NoError(t, err)

	assert.Empty(t, res.Tracks)
	assert.True(t, res.Partial)
	assert.Equal(t, profile.SeedCursor{}, f.user(t, "u1").SeedCursor)
}

func TestGetRecommendations_EmptyBatchStops(t *testing.T) {
	f := newFixture(t)
	seedListener(t, f)
	f.catalog.batches = [][]music.Track{tracks("n1"), {}}

	res, err := newRecHandler(f).Handle(context.Background(), recCmd(5))
	require.NoError(t, err)

	assert.Len(t, res.Tracks, 1)
	assert.True(t, res.Partial)
	assert.Len(t, f.catalog.seedCalls(), 2)
}

func TestGetRecommendations_SurplusServedNextCall(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seedListener(t, f)
	f.catalog.batches = [][]music.Track{tracks("n1", "n2", "n3", "n4")}
	h := newRecHandler(f)

	first, err := h.Handle(ctx, recCmd(2))
	require.NoError(t, err)
	assert.Equal(t, []string{"n1", "n2"}, trackIDsOf(first.Tracks))
	assert.Equal(t, 4, first.Generated)

	second, err := h.Handle(ctx, recCmd(2))
	require.NoError(t, err)
	assert.Equal(t, []string{"n1", "n2"}, trackIDsOf(second.Tracks))
	assert.Len(t, f.catalog.seedCalls(), 1)

	_, err = NewDismissRecommendationHandler(f.store.Users(), f.cache, f.locker, f.log).
		Handle(ctx, DismissRecommendationCommand{UserID: "u1", TrackID: "n1"})
	require.NoError(t, err)

	cached, err := f.cache.GetTracks(ctx, []string{"n1", "n2"})
	require.NoError(t, err)
	assert.NotContains(t, cached, "n1", "dismissed track is evicted")
	assert.Contains(t, cached, "n2")

	third, err := h.Handle(ctx, recCmd(2))
	require.NoError(t, err)
	assert.Equal(t, []string{"n2", "n3"}, trackIDsOf(third.Tracks))
}

func TestGetRecommendations_NoSeeds(t *testing.T) {
	f := newFixture(t)
	f.saveUser(t, "u1", userFixture{genres: map[string]int{"rock": 1}})

	res, err := newRecHandler(f).Handle(context.Background(), recCmd(1))
	require.NoError(t, err)
	assert.True(t, res.Partial)
	assert.Empty(t, f.catalog.seedCalls())
}

func TestGetRecommendations_Validation(t *testing.T) {
	f := newFixture(t)
	seedListener(t, f)
	h := newRecHandler(f)
	ctx := context.Background()

	_, err := h.Handle(ctx, recCmd(0))
	assert.ErrorIs(t, err, shared.ErrInvalidRequestedCount)

	_, err = h.Handle(ctx, recCmd(51))
	assert.ErrorIs(t, err, shared.ErrInvalidRequestedCount)

	_, err = h.Handle(ctx, GetRecommendationsCommand{UserID: "u1", Count: 1})
	assert.ErrorIs(t, err, shared.ErrMissingAccessToken)

	_, err = h.Handle(ctx, GetRecommendationsCommand{AccessToken: "tok", UserID: "ghost", Count: 1})
	assert.True(t, shared.IsNotFound(err))
}
