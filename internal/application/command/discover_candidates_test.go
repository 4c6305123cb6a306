package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jakobreinwald/cs-130-project-sub000/config"
	"github.com/jakobreinwald/cs-130-project-sub000/internal/domain/profile"
	"github.com/jakobreinwald/cs-130-project-sub000/internal/domain/shared"
)

// seedListeners builds u1 (rock, pop, artist a1) and three other listeners:
// u2 shares rock, u3 shares artist a1, u4 only listens to metal.
func seedListeners(t *testing.T, f *fixture) {
	t.Helper()
	ctx := context.Background()
	f.saveUser(t, "u1", userFixture{genres: map[string]int{"rock": 2, "pop": 1}, artists: []string{"a1"}})

	require.NoError(t, f.store.Genres().SetListenerCount(ctx, "rock", "u1", 2))
	require.NoError(t, f.store.Genres().SetListenerCount(ctx, "pop", "u1", 1))
	require.NoError(t, f.store.Genres().SetListenerCount(ctx, "rock", "u2", 5))
	require.NoError(t, f.store.Genres().SetListenerCount(ctx, "metal", "u4", 9))
	require.NoError(t, f.store.Artists().SetListenerRank(ctx, "a1", "u1", 0))
	require.NoError(t, f.store.Artists().SetListenerRank(ctx, "a1", "u3", 3))
}

func TestDiscoverCandidates_UnionOfGenreAndArtistListeners(t *testing.T) {
	f := newFixture(t)
	seedListeners(t, f)
	h := NewDiscoverCandidatesHandler(f.store, nil, DiscoverCandidatesHandlerConfig{})

	res, err := h.Handle(context.Background(), DiscoverCandidatesCommand{UserID: "u1"})
	require.NoError(t, err)

	assert.Equal(t, map[string]profile.MatchOutcome{
		"u2": profile.OutcomeNone,
		"u3": profile.OutcomeNone,
	}, res.Outcomes)
	assert.Equal(t, 2, res.Discovered)
	assert.Equal(t, 2, res.Added)
}

func TestDiscoverCandidates_Idempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seedListeners(t, f)
	h := NewDiscoverCandidatesHandler(f.store, nil, DiscoverCandidatesHandlerConfig{Concurrency: 1})

	first, err := h.Handle(ctx, DiscoverCandidatesCommand{UserID: "u1"})
	require.NoError(t, err)

	second, err := h.Handle(ctx, DiscoverCandidatesCommand{UserID: "u1"})
	require.NoError(t, err)

	assert.Equal(t, first.Outcomes, second.Outcomes)
	assert.Equal(t, 0, second.Added)
}

func TestDiscoverCandidates_NeverDowngradesOutcome(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seedListeners(t, f)
	require.NoError(t, f.store.Users().TransitionMatchOutcome(ctx, "u1", "u2", profile.OutcomeNone, profile.OutcomeDismissed))
	require.NoError(t, f.store.Users().TransitionMatchOutcome(ctx, "u1", "u3", profile.OutcomeNone, profile.OutcomeLiked))

	res, err := NewDiscoverCandidatesHandler(f.store, nil, DiscoverCandidatesHandlerConfig{}).
		Handle(ctx, DiscoverCandidatesCommand{UserID: "u1"})
	require.NoError(t, err)

	assert.Equal(t, profile.OutcomeDismissed, res.Outcomes["u2"])
	assert.Equal(t, profile.OutcomeLiked, res.Outcomes["u3"])
	assert.Equal(t, 0, res.Added)
}

func TestDiscoverCandidates_ArtistDiscoveryFlagOff(t *testing.T) {
	f := newFixture(t)
	seedListeners(t, f)
	flags := config.LoadFeatureFlags()
	require.NoError(t, flags.DisableFeature(config.FeatureArtistDiscovery))

	res, err := NewDiscoverCandidatesHandler(f.store, flags, DiscoverCandidatesHandlerConfig{}).
		Handle(context.Background(), DiscoverCandidatesCommand{UserID: "u1"})
	require.NoError(t, err)

	assert.Equal(t, map[string]profile.MatchOutcome{"u2": profile.OutcomeNone}, res.Outcomes)
}

func TestDiscoverCandidates_MissingGenreRecordSkipped(t *testing.T) {
	f := newFixture(t)
	f.saveUser(t, "u1", userFixture{genres: map[string]int{"unknown": 1}, artists: []string{"missing"}})

	res, err := NewDiscoverCandidatesHandler(f.store, nil, DiscoverCandidatesHandlerConfig{}).
		Handle(context.Background(), DiscoverCandidatesCommand{UserID: "u1"})
	require.NoError(t, err)
	assert.Empty(t, res.Outcomes)
}

func TestDiscoverCandidates_ProfileNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := NewDiscoverCandidatesHandler(f.store, nil, DiscoverCandidatesHandlerConfig{}).
		Handle(context.Background(), DiscoverCandidatesCommand{UserID: "ghost"})

	assert.ErrorIs(t, err, shared.ErrUserNotFound)
	assert.True(t, shared.IsNotFound(err))
}
