// Package command contains write operations (CQRS - Commands).
// Commands change profile, outcome and recommendation state and are
// serialized per user where they touch that user's mutable fields.
package command

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jakobreinwald/cs-130-project-sub000/config"
	"github.com/jakobreinwald/cs-130-project-sub000/internal/domain/music"
	"github.com/jakobreinwald/cs-130-project-sub000/internal/domain/profile"
	"github.com/jakobreinwald/cs-130-project-sub000/internal/domain/shared"
	"github.com/jakobreinwald/cs-130-project-sub000/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SYNC PROFILE COMMAND
// Pulls the caller's top artists and tracks from the music catalog and
// rebuilds the stored taste profile plus the artist/genre listener indexes
// that candidate discovery reads.
// ══════════════════════════════════════════════════════════════════════════════

// GenreSource tells where genre counts were taken from.
type GenreSource string

const (
	// GenreSourceTracks counts genres of every artist on the top tracks.
	GenreSourceTracks GenreSource = "top_tracks"

	// GenreSourceArtists counts genres of the top artists only.
	GenreSourceArtists GenreSource = "top_artists"
)

// SyncProfileCommand contains the data needed to sync a profile.
type SyncProfileCommand struct {
	// AccessToken is the catalog token of the user being synced.
	// The user ID is taken from the catalog profile it belongs to.
	AccessToken string
}

// Validate validates the command.
func (c SyncProfileCommand) Validate() error {
	if c.AccessToken == "" {
		return shared.ErrMissingAccessToken
	}
	return nil
}

// SyncProfileResult contains the result of synchronization.
type SyncProfileResult struct {
	UserID      string
	DisplayName string

	TopArtists int
	TopTracks  int
	Genres     int

	// GenreSource is GenreSourceArtists when track enrichment was
	// disabled or failed.
	GenreSource GenreSource

	// Degraded is set when track enrichment failed and the sync fell back
	// to top-artist genres.
	Degraded bool

	SyncedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES (Interfaces)
// ══════════════════════════════════════════════════════════════════════════════

// FeatureChecker reports whether a feature is on for a user.
// *config.FeatureFlags satisfies it.
type FeatureChecker interface {
	EnabledFor(featureName, userID string) bool
}

func featureOn(f FeatureChecker, name, userID string) bool {
	if f == nil {
		return true
	}
	return f.EnabledFor(name, userID)
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// SyncProfileHandler handles the SyncProfileCommand.
type SyncProfileHandler struct {
	users   profile.UserRepository
	artists profile.ArtistRepository
	genres  profile.GenreRepository
	catalog music.Catalog
	locker  shared.UserLocker
	flags   FeatureChecker
	log     *logger.Logger

	topLimit int
	now      func() time.Time
}

// SyncProfileHandlerConfig contains configuration for the handler.
type SyncProfileHandlerConfig struct {
	// TopLimit is how many top artists and tracks to request.
	TopLimit int

	// Clock overrides time.Now in tests.
	Clock func() time.Time
}

// DefaultSyncProfileHandlerConfig returns default configuration.
func DefaultSyncProfileHandlerConfig() SyncProfileHandlerConfig {
	return SyncProfileHandlerConfig{
		TopLimit: profile.MaxTopItems,
	}
}

// NewSyncProfileHandler creates a new SyncProfileHandler.
func NewSyncProfileHandler(
	repo profile.Repository,
	catalog music.Catalog,
	locker shared.UserLocker,
	flags FeatureChecker,
	log *logger.Logger,
	config SyncProfileHandlerConfig,
) *SyncProfileHandler {
	if config.TopLimit <= 0 || config.TopLimit > profile.MaxTopItems {
		config.TopLimit = profile.MaxTopItems
	}
	if config.Clock == nil {
		config.Clock = func() time.Time { return time.Now().UTC() }
	}
	if log == nil {
		log = logger.Default()
	}

	return &SyncProfileHandler{
		users:    repo.Users(),
		artists:  repo.Artists(),
		genres:   repo.Genres(),
		catalog:  catalog,
		locker:   locker,
		flags:    flags,
		log:      log.With(logger.Component("sync_profile")),
		topLimit: config.TopLimit,
		now:      config.Clock,
	}
}

// Handle executes the sync profile command.
func (h *SyncProfileHandler) Handle(ctx context.Context, cmd SyncProfileCommand) (*SyncProfileResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("sync_profile: validation failed: %w", err)
	}

	me, err := h.catalog.FetchProfile(ctx, cmd.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("sync_profile: failed to fetch profile: %w", err)
	}
	if me.ID == "" {
		return nil, fmt.Errorf("sync_profile: %w", shared.ErrCatalogInvalidResponse)
	}

	var (
		topArtists []music.Artist
		topTracks  []music.Track
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		topArtists, err = h.catalog.FetchTopArtists(gctx, cmd.AccessToken, h.topLimit)
		return err
	})
	g.Go(func() error {
		var err error
		topTracks, err = h.catalog.FetchTopTracks(gctx, cmd.AccessToken, h.topLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("sync_profile: failed to fetch top lists: %w", err)
	}

	counts, source, degraded := h.countGenres(ctx, cmd.AccessToken, me.ID, topArtists, topTracks)

	unlock, err := h.locker.Lock(ctx, me.ID)
	if err != nil {
		return nil, fmt.Errorf("sync_profile: failed to lock user: %w", err)
	}
	defer unlock()

	user, err := h.users.GetUser(ctx, me.ID)
	switch {
	case shared.IsNotFound(err):
		user, err = profile.NewUser(me.ID, me.DisplayName)
		if err != nil {
			return nil, fmt.Errorf("sync_profile: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("sync_profile: failed to load user: %w", err)
	}

	prevArtists := user.TopArtistIDs
	prevGenres := make([]string, 0, len(user.GenreCounts))
	for name := range user.GenreCounts {
		prevGenres = append(prevGenres, name)
	}

	now := h.now()
	if me.DisplayName != "" {
		user.DisplayName = me.DisplayName
	}
	user.ApplyTopLists(counts, artistIDs(topArtists), trackIDs(topTracks))
	user.SyncedAt = now

	if err := h.users.SaveUser(ctx, user); err != nil {
		return nil, fmt.Errorf("sync_profile: failed to save user: %w", err)
	}

	if err := h.updateArtistIndex(ctx, me.ID, topArtists, prevArtists); err != nil {
		return nil, fmt.Errorf("sync_profile: failed to update artist index: %w", err)
	}
	if err := h.updateGenreIndex(ctx, me.ID, counts, prevGenres); err != nil {
		return nil, fmt.Errorf("sync_profile: failed to update genre index: %w", err)
	}

	h.log.Info("profile synced",
		logger.UserID(me.ID),
		logger.Count("top_artists", len(topArtists)),
		logger.Count("top_tracks", len(topTracks)),
		logger.Count("genres", len(counts)),
		logger.String("genre_source", string(source)),
	)

	return &SyncProfileResult{
		UserID:      me.ID,
		DisplayName: user.DisplayName,
		TopArtists:  len(topArtists),
		TopTracks:   len(topTracks),
		Genres:      len(counts),
		GenreSource: source,
		Degraded:    degraded,
		SyncedAt:    now,
	}, nil
}

// countGenres counts genres over the artists of the top tracks. When that
// lookup fails the counts fall back to the top artists' genres and the
// fallback is logged.
func (h *SyncProfileHandler) countGenres(
	ctx context.Context,
	token, userID string,
	topArtists []music.Artist,
	topTracks []music.Track,
) (map[string]int, GenreSource, bool) {
	if !featureOn(h.flags, config.FeatureTrackGenreEnrichment, userID) || len(topTracks) == 0 {
		return countArtistGenres(topArtists), GenreSourceArtists, false
	}

	counts, err := h.countTrackGenres(ctx, token, topTracks)
	if err != nil {
		h.log.Warn("genre enrichment degraded",
			logger.UserID(userID),
			logger.Err(err),
			logger.String("fallback", string(GenreSourceArtists)),
		)
		return countArtistGenres(topArtists), GenreSourceArtists, true
	}
	return counts, GenreSourceTracks, false
}

func (h *SyncProfileHandler) countTrackGenres(ctx context.Context, token string, tracks []music.Track) (map[string]int, error) {
	ids := make([]string, 0)
	seen := make(map[string]struct{})
	for _, t := range tracks {
		for _, id := range t.ArtistIDs() {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}

	genresByArtist := make(map[string][]string, len(ids))
	for start := 0; start < len(ids); start += music.MaxBatchIDs {
		end := start + music.MaxBatchIDs
		if end > len(ids) {
			end = len(ids)
		}
		batch, err := h.catalog.FetchArtists(ctx, token, ids[start:end])
		if err != nil {
			return nil, err
		}
		for _, a := range batch {
			genresByArtist[a.ID] = a.Genres
		}
	}

	counts := make(map[string]int)
	for _, t := range tracks {
		for _, id := range t.ArtistIDs() {
			for _, g := range genresByArtist[id] {
				counts[g]++
			}
		}
	}
	return counts, nil
}

func countArtistGenres(artists []music.Artist) map[string]int {
	counts := make(map[string]int)
	for _, a := range artists {
		for _, g := range a.Genres {
			counts[g]++
		}
	}
	return counts
}

// updateArtistIndex stores artist metadata and the user's rank for every
// current top artist and drops the user from artists that left the list.
func (h *SyncProfileHandler) updateArtistIndex(ctx context.Context, userID string, top []music.Artist, previous []string) error {
	current := make(map[string]struct{}, len(top))
	for rank, a := range top {
		current[a.ID] = struct{}{}
		if err := h.artists.SaveArtist(ctx, &profile.Artist{ID: a.ID, Name: a.Name, Genres: a.Genres}); err != nil {
			return err
		}
		if err := h.artists.SetListenerRank(ctx, a.ID, userID, rank); err != nil {
			return err
		}
	}
	for _, id := range previous {
		if _, ok := current[id]; ok {
			continue
		}
		if err := h.artists.RemoveListener(ctx, id, userID); err != nil {
			return err
		}
	}
	return nil
}

func (h *SyncProfileHandler) updateGenreIndex(ctx context.Context, userID string, counts map[string]int, previous []string) error {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := h.genres.SetListenerCount(ctx, name, userID, counts[name]); err != nil {
			return err
		}
	}
	for _, name := range previous {
		if _, ok := counts[name]; ok {
			continue
		}
		if err := h.genres.RemoveListener(ctx, name, userID); err != nil {
			return err
		}
	}
	return nil
}

func artistIDs(artists []music.Artist) []string {
	ids := make([]string, 0, len(artists))
	for _, a := range artists {
		ids = append(ids, a.ID)
	}
	return ids
}

func trackIDs(tracks []music.Track) []string {
	ids := make([]string, 0, len(tracks))
	for _, t := range tracks {
		ids = append(ids, t.ID)
	}
	return ids
}
