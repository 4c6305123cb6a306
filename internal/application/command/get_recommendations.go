package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jakobreinwald/cs-130-project-sub000/internal/domain/music"
	"github.com/jakobreinwald/cs-130-project-sub000/internal/domain/profile"
	"github.com/jakobreinwald/cs-130-project-sub000/internal/domain/shared"
	"github.com/jakobreinwald/cs-130-project-sub000/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET RECOMMENDATIONS COMMAND
// Serves fresh tracks from the user's recommendation ledger first and
// generates more from the catalog on shortfall.
//
// Generation rotates a seed window (2 artists, 3 tracks) over the user's
// top lists. Every round that returns a batch advances both cursors with
// wrap-to-zero; a failed or empty round stops generation without moving
// them. Tracks already in the ledger, in any state, are dropped, so a
// track is never resurfaced once seen.
//
// This is a command, not a query: it appends to the ledger and moves the
// seed cursors.
// ══════════════════════════════════════════════════════════════════════════════

// GetRecommendationsCommand contains the recommendation request.
type GetRecommendationsCommand struct {
	AccessToken string
	UserID      string
	Count       int
}

// Validate validates the command against the configured upper bound.
func (c GetRecommendationsCommand) Validate(maxCount int) error {
	if c.AccessToken == "" {
		return shared.ErrMissingAccessToken
	}
	if c.UserID == "" {
		return shared.ErrEmptyUserID
	}
	if c.Count < 1 || c.Count > maxCount {
		return shared.ErrInvalidRequestedCount
	}
	return nil
}

// GetRecommendationsResult contains the tracks served.
type GetRecommendationsResult struct {
	UserID string

	// Tracks in ledger order: previously fresh tracks first, then new ones.
	Tracks []music.Track

	Requested int

	// Generated is how many new tracks were added to the ledger this call.
	// It can exceed what was served; the surplus is served next time.
	Generated int

	// Rounds is the number of catalog batches requested.
	Rounds int

	// Partial is set when fewer than Requested tracks are returned.
	Partial bool
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// GetRecommendationsHandler handles the GetRecommendationsCommand.
type GetRecommendationsHandler struct {
	users   profile.UserRepository
	catalog music.Catalog
	cache   music.TrackCache
	locker  shared.UserLocker
	log     *logger.Logger

	config GetRecommendationsConfig
}

// GetRecommendationsConfig contains configuration for the handler.
type GetRecommendationsConfig struct {
	// BatchSize is the number of tracks asked for per round.
	BatchSize int

	// MaxRounds bounds generation per call.
	MaxRounds int

	// MaxCount is the largest Count a caller may request.
	MaxCount int

	// CallTimeout bounds each catalog call.
	CallTimeout time.Duration

	// CacheTTL is how long full track objects stay cached.
	CacheTTL time.Duration
}

// DefaultGetRecommendationsConfig returns default configuration.
func DefaultGetRecommendationsConfig() GetRecommendationsConfig {
	return GetRecommendationsConfig{
		BatchSize:   20,
		MaxRounds:   10,
		MaxCount:    50,
		CallTimeout: 15 * time.Second,
		CacheTTL:    7 * 24 * time.Hour,
	}
}

// NewGetRecommendationsHandler creates a new GetRecommendationsHandler.
func NewGetRecommendationsHandler(
	users profile.UserRepository,
	catalog music.Catalog,
	cache music.TrackCache,
	locker shared.UserLocker,
	log *logger.Logger,
	config GetRecommendationsConfig,
) *GetRecommendationsHandler {
	def := DefaultGetRecommendationsConfig()
	if config.BatchSize <= 0 {
		config.BatchSize = def.BatchSize
	}
	if config.MaxRounds <= 0 {
		config.MaxRounds = def.MaxRounds
	}
	if config.MaxCount <= 0 {
		config.MaxCount = def.MaxCount
	}
	if config.CallTimeout <= 0 {
		config.CallTimeout = def.CallTimeout
	}
	if log == nil {
		log = logger.Default()
	}

	return &GetRecommendationsHandler{
		users:   users,
		catalog: catalog,
		cache:   cache,
		locker:  locker,
		log:     log.With(logger.Component("recommendations")),
		config:  config,
	}
}

// Handle executes the get recommendations command.
func (h *GetRecommendationsHandler) Handle(ctx context.Context, cmd GetRecommendationsCommand) (*GetRecommendationsResult, error) {
	if err := cmd.Validate(h.config.MaxCount); err != nil {
		return nil, fmt.Errorf("get_recommendations: validation failed: %w", err)
	}

	unlock, err := h.locker.Lock(ctx, cmd.UserID)
	if err != nil {
		return nil, fmt.Errorf("get_recommendations: failed to lock user: %w", err)
	}
	defer unlock()

	user, err := h.users.GetUser(ctx, cmd.UserID)
	if err != nil {
		return nil, fmt.Errorf("get_recommendations: failed to load user: %w", err)
	}

	result := &GetRecommendationsResult{
		UserID:    cmd.UserID,
		Requested: cmd.Count,
	}

	ids := user.RecommendedTracks.Fresh(cmd.Count)
	known := make(map[string]music.Track)

	var genErr error
	if len(ids) < cmd.Count {
		gen := h.generate(ctx, cmd.AccessToken, user, cmd.Count-len(ids))
		genErr = gen.err
		result.Rounds = gen.rounds
		result.Generated = len(gen.ids)

		if gen.rounds > 0 && (len(gen.ids) > 0 || gen.cursor != user.SeedCursor) {
			if err := h.users.AppendRecommendations(ctx, cmd.UserID, gen.ids, gen.cursor); err != nil {
				return nil, fmt.Errorf("get_recommendations: failed to store recommendations: %w", err)
			}
		}

		if len(gen.tracks) > 0 {
			batch := make([]music.Track, 0, len(gen.tracks))
			for _, id := range gen.ids {
				batch = append(batch, gen.tracks[id])
			}
			if err := h.cache.PutTracks(ctx, batch, h.config.CacheTTL); err != nil {
				h.log.Warn("track cache write failed", logger.UserID(cmd.UserID), logger.Err(err))
			}
			for id, t := range gen.tracks {
				known[id] = t
			}
		}

		for _, id := range gen.ids {
			if len(ids) >= cmd.Count {
				break
			}
			ids = append(ids, id)
		}
	}

	tracks, resolveErr := h.resolve(ctx, cmd.AccessToken, ids, known)
	result.Tracks = tracks
	result.Partial = len(tracks) < cmd.Count

	if len(tracks) == 0 {
		// Nothing to serve: surface a hard failure, otherwise an empty
		// partial result.
		for _, err := range []error{genErr, resolveErr} {
			if err != nil && !shared.IsUpstream(err) {
				return nil, fmt.Errorf("get_recommendations: %w", err)
			}
		}
	}

	if result.Partial {
		fields := []logger.Field{
			logger.UserID(cmd.UserID),
			logger.Count("requested", cmd.Count),
			logger.Count("served", len(tracks)),
			logger.Count("rounds", result.Rounds),
		}
		if cause := errors.Join(genErr, resolveErr); cause != nil {
			fields = append(fields, logger.Err(cause))
		}
		h.log.Warn("partial recommendations", fields...)
	}

	return result, nil
}

// generation is the outcome of one generate call.
type generation struct {
	ids    []string
	tracks map[string]music.Track
	cursor profile.SeedCursor
	rounds int
	err    error
}

// generate requests batches until need new tracks are collected, a batch
// fails or comes back empty, the seeds run out, or MaxRounds is reached.
// The cursor only advances past rounds that returned a batch.
func (h *GetRecommendationsHandler) generate(ctx context.Context, token string, user *profile.User, need int) generation {
	gen := generation{
		tracks: make(map[string]music.Track),
		cursor: user.SeedCursor.Clamp(len(user.TopArtistIDs), len(user.TopTrackIDs)),
	}
	seen := user.RecommendedTracks.Seen()

	for gen.rounds < h.config.MaxRounds && len(gen.ids) < need {
		seedArtists := profile.Window(user.TopArtistIDs, gen.cursor.ArtistOffset, profile.ArtistSeedWindow)
		seedTracks := profile.Window(user.TopTrackIDs, gen.cursor.TrackOffset, profile.TrackSeedWindow)
		if len(seedArtists) == 0 && len(seedTracks) == 0 {
			break
		}

		gen.rounds++
		callCtx, cancel := context.WithTimeout(ctx, h.config.CallTimeout)
		batch, err := h.catalog.FetchRecommendedTracks(callCtx, token, seedArtists, seedTracks, h.config.BatchSize)
		cancel()
		if err != nil {
			gen.err = err
			break
		}
		if len(batch) == 0 {
			break
		}

		gen.cursor = gen.cursor.Advance(len(user.TopArtistIDs), len(user.TopTrackIDs))

		for _, t := range batch {
			if t.ID == "" {
				continue
			}
			if _, dup := seen[t.ID]; dup {
				continue
			}
			seen[t.ID] = struct{}{}
			gen.ids = append(gen.ids, t.ID)
			gen.tracks[t.ID] = t
		}
	}

	return gen
}

// resolve returns full track objects for ids in order. Lookups go to the
// known set, then the track cache, then the catalog. Tracks that cannot be
// resolved are left out.
func (h *GetRecommendationsHandler) resolve(ctx context.Context, token string, ids []string, known map[string]music.Track) ([]music.Track, error) {
	found := make(map[string]music.Track, len(ids))
	missing := make([]string, 0)
	for _, id := range ids {
		if t, ok := known[id]; ok {
			found[id] = t
			continue
		}
		missing = append(missing, id)
	}

	if len(missing) > 0 {
		cached, err := h.cache.GetTracks(ctx, missing)
		if err != nil {
			h.log.Warn("track cache read failed", logger.Err(err))
		}
		rest := missing[:0:0]
		for _, id := range missing {
			if t, ok := cached[id]; ok {
				found[id] = t
				continue
			}
			rest = append(rest, id)
		}
		missing = rest
	}

	var fetchErr error
	if len(missing) > 0 {
		fetched := make([]music.Track, 0, len(missing))
		for start := 0; start < len(missing); start += music.MaxBatchIDs {
			end := start + music.MaxBatchIDs
			if end > len(missing) {
				end = len(missing)
			}
			callCtx, cancel := context.WithTimeout(ctx, h.config.CallTimeout)
			batch, err := h.catalog.FetchTracks(callCtx, token, missing[start:end])
			cancel()
			if err != nil {
				fetchErr = err
				break
			}
			fetched = append(fetched, batch...)
		}
		for _, t := range fetched {
			found[t.ID] = t
		}
		if len(fetched) > 0 {
			if err := h.cache.PutTracks(ctx, fetched, h.config.CacheTTL); err != nil {
				h.log.Warn("track cache write failed", logger.Err(err))
			}
		}
	}

	out := make([]music.Track, 0, len(ids))
	for _, id := range ids {
		if t, ok := found[id]; ok {
			out = append(out, t)
		}
	}
	return out, fetchErr
}
