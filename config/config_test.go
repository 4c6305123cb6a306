package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DevelopmentDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_HOST", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsDevelopment())
	assert.Empty(t, cfg.Database.URL)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, 20, cfg.Engine.RecommendationBatchSize)
	assert.Equal(t, 10*time.Second, cfg.Engine.LockTimeout)
	assert.Equal(t, "tastematch:", cfg.Redis.KeyPrefix)
}

func TestLoad_DatabaseURLFromParts(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_USER", "app")
	t.Setenv("DB_PASSWORD", "pw")
	t.Setenv("DB_NAME", "tastematch")
	t.Setenv("DB_SSLMODE", "disable")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://app:pw@db.internal:5432/tastematch?sslmode=disable", cfg.Database.URL)
}

func TestLoad_ProductionRequiresDatabaseAndKeys(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_HOST", "")
	t.Setenv("HTTP_API_KEY_HASHES", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL is required in production")
	assert.Contains(t, err.Error(), "HTTP_API_KEY_HASHES is required in production")
}

func TestLoad_RejectsBadBatchSize(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("ENGINE_REC_BATCH_SIZE", "500")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ENGINE_REC_BATCH_SIZE")
}

func TestFeatureFlags_EnvOverrides(t *testing.T) {
	t.Setenv("FEATURE_RECOMMEND_PLAYLIST_SYNC", "false")
	t.Setenv("FEATURE_PROFILE_TRACK_GENRE_ENRICHMENT", "0")

	ff := LoadFeatureFlags()

	assert.False(t, ff.EnabledFor(FeaturePlaylistSync, "u1"))
	assert.False(t, ff.EnabledFor(FeatureTrackGenreEnrichment, "u1"))
	assert.True(t, ff.EnabledFor(FeatureArtistDiscovery, "u1"))
}

func TestFeatureFlags_UserOverrideWins(t *testing.T) {
	ff := LoadFeatureFlags()
	require.NoError(t, ff.DisableFeature(FeaturePlaylistSync))

	ff.SetUserOverride("beta", FeaturePlaylistSync, true)

	assert.True(t, ff.EnabledFor(FeaturePlaylistSync, "beta"))
	assert.False(t, ff.EnabledFor(FeaturePlaylistSync, "other"))
}

func TestFeatureFlags_RolloutIsStable(t *testing.T) {
	ff := LoadFeatureFlags()
	require.NoError(t, ff.SetRolloutPercent(FeatureArtistDiscovery, 50))

	first := ff.EnabledFor(FeatureArtistDiscovery, "u42")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, ff.EnabledFor(FeatureArtistDiscovery, "u42"))
	}

	assert.ErrorIs(t, ff.SetRolloutPercent(FeatureArtistDiscovery, 101), ErrInvalidRolloutPercent)
	assert.ErrorIs(t, ff.SetRolloutPercent("unknown", 10), ErrFeatureNotFound)
}

func TestFeatureFlags_GetAllFeaturesReturnsCopy(t *testing.T) {
	t.Setenv("FEATURE_RECOMMEND_PLAYLIST_SYNC", "false")
	ff := LoadFeatureFlags()

	all := ff.GetAllFeatures()
	require.Contains(t, all, FeatureArtistDiscovery)
	assert.Equal(t, 100, all[FeatureArtistDiscovery].RolloutPercent)
	assert.Equal(t, 0, all[FeaturePlaylistSync].RolloutPercent)

	f := all[FeatureArtistDiscovery]
	f.RolloutPercent = 0
	all[FeatureArtistDiscovery] = f
	assert.True(t, ff.EnabledFor(FeatureArtistDiscovery, "u1"))
}

func TestFeatureFlags_NilEnablesEverything(t *testing.T) {
	var ff *FeatureFlags
	assert.True(t, ff.EnabledFor(FeaturePlaylistSync, "u1"))
}
