package command

import (
	"context"
	"fmt"

	"github.com/jakobreinwald/cs-130-project-sub000/config"
	"github.com/jakobreinwald/cs-130-project-sub000/internal/domain/music"
	"github.com/jakobreinwald/cs-130-project-sub000/internal/domain/profile"
	"github.com/jakobreinwald/cs-130-project-sub000/internal/domain/shared"
	"github.com/jakobreinwald/cs-130-project-sub000/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIKE RECOMMENDATION COMMAND
// Marks a recommended track as liked and appends it to the user's
// recommendation playlist. The playlist id is stored on the profile,
// created on first use and recreated when the catalog no longer has it.
//
// The outcome write is authoritative. A playlist failure is logged and
// reported in the result, never rolled back into the outcome.
// ══════════════════════════════════════════════════════════════════════════════

// TrackCommand identifies a track in a user's recommendation ledger.
type TrackCommand struct {
	UserID  string
	TrackID string
}

// Validate validates the command.
func (c TrackCommand) Validate() error {
	if c.UserID == "" {
		return shared.ErrEmptyUserID
	}
	if c.TrackID == "" {
		return shared.ErrEmptyTrackID
	}
	return nil
}

// LikeRecommendationCommand contains the like to record.
type LikeRecommendationCommand struct {
	TrackCommand

	// AccessToken is needed for the playlist update.
	AccessToken string
}

// Validate validates the command.
func (c LikeRecommendationCommand) Validate() error {
	if err := c.TrackCommand.Validate(); err != nil {
		return err
	}
	if c.AccessToken == "" {
		return shared.ErrMissingAccessToken
	}
	return nil
}

// LikeRecommendationResult contains the outcome after the like.
type LikeRecommendationResult struct {
	UserID  string
	TrackID string
	Outcome profile.TrackOutcome

	// PlaylistID is the playlist the track was added to, if any.
	PlaylistID string

	// PlaylistSynced is false when the track was already liked, playlist
	// sync is disabled, or the playlist update failed.
	PlaylistSynced bool
}

// LikeRecommendationHandler handles the LikeRecommendationCommand.
type LikeRecommendationHandler struct {
	users   profile.UserRepository
	catalog music.Catalog
	locker  shared.UserLocker
	flags   FeatureChecker
	log     *logger.Logger

	playlistName string
}

// NewLikeRecommendationHandler creates a new LikeRecommendationHandler.
func NewLikeRecommendationHandler(
	users profile.UserRepository,
	catalog music.Catalog,
	locker shared.UserLocker,
	flags FeatureChecker,
	log *logger.Logger,
	playlistName string,
) *LikeRecommendationHandler {
	if playlistName == "" {
		playlistName = "Recommendations"
	}
	if log == nil {
		log = logger.Default()
	}
	return &LikeRecommendationHandler{
		users:        users,
		catalog:      catalog,
		locker:       locker,
		flags:        flags,
		log:          log.With(logger.Component("like_recommendation")),
		playlistName: playlistName,
	}
}

// Handle executes the like recommendation command.
func (h *LikeRecommendationHandler) Handle(ctx context.Context, cmd LikeRecommendationCommand) (*LikeRecommendationResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("like_recommendation: validation failed: %w", err)
	}

	unlock, err := h.locker.Lock(ctx, cmd.UserID)
	if err != nil {
		return nil, fmt.Errorf("like_recommendation: failed to lock user: %w", err)
	}
	defer unlock()

	user, err := h.users.GetUser(ctx, cmd.UserID)
	if err != nil {
		return nil, fmt.Errorf("like_recommendation: failed to load user: %w", err)
	}

	current, ok := user.RecommendedTracks.Lookup(cmd.TrackID)
	if !ok {
		return nil, fmt.Errorf("like_recommendation: %w", shared.ErrTrackNotRecommended)
	}
	next, err := current.Like()
	if err != nil {
		return nil, fmt.Errorf("like_recommendation: %w", err)
	}

	result := &LikeRecommendationResult{
		UserID:     cmd.UserID,
		TrackID:    cmd.TrackID,
		Outcome:    next,
		PlaylistID: user.RecPlaylistID,
	}
	if current == profile.TrackLiked {
		return result, nil
	}

	if err := h.users.SetTrackOutcome(ctx, cmd.UserID, cmd.TrackID, next); err != nil {
		return nil, fmt.Errorf("like_recommendation: failed to store outcome: %w", err)
	}

	if !featureOn(h.flags, config.FeaturePlaylistSync, cmd.UserID) {
		return result, nil
	}

	playlistID, err := h.addToPlaylist(ctx, cmd.AccessToken, user, cmd.TrackID)
	if err != nil {
		h.log.Warn("playlist sync failed",
			logger.UserID(cmd.UserID),
			logger.TrackID(cmd.TrackID),
			logger.Err(err),
		)
		return result, nil
	}
	result.PlaylistID = playlistID
	result.PlaylistSynced = true
	return result, nil
}

// addToPlaylist validates the stored playlist, creating it when missing,
// and appends the track. A playlist deleted between the check and the add
// is recreated once.
func (h *LikeRecommendationHandler) addToPlaylist(ctx context.Context, token string, user *profile.User, trackID string) (string, error) {
	playlistID := user.RecPlaylistID
	if playlistID != "" {
		_, err := h.catalog.FetchPlaylist(ctx, token, playlistID)
		switch {
		case shared.IsNotFound(err):
			h.log.Info("recommendation playlist missing, recreating",
				logger.UserID(user.ID),
				logger.PlaylistID(playlistID),
			)
			playlistID = ""
		case err != nil:
			return "", fmt.Errorf("failed to fetch playlist: %w", err)
		}
	}

	created := false
	if playlistID == "" {
		id, err := h.createPlaylist(ctx, token, user.ID)
		if err != nil {
			return "", err
		}
		playlistID, created = id, true
	}

	err := h.catalog.AddTrackToPlaylist(ctx, token, playlistID, trackID)
	if shared.IsNotFound(err) && !created {
		id, cerr := h.createPlaylist(ctx, token, user.ID)
		if cerr != nil {
			return "", cerr
		}
		playlistID = id
		err = h.catalog.AddTrackToPlaylist(ctx, token, playlistID, trackID)
	}
	if err != nil {
		return "", fmt.Errorf("failed to add track: %w", err)
	}
	return playlistID, nil
}

func (h *LikeRecommendationHandler) createPlaylist(ctx context.Context, token, userID string) (string, error) {
	p, err := h.catalog.CreatePlaylist(ctx, token, userID, h.playlistName)
	if err != nil {
		return "", fmt.Errorf("failed to create playlist: %w", err)
	}
	if err := h.users.SetPlaylistID(ctx, userID, p.ID); err != nil {
		return "", fmt.Errorf("failed to store playlist id: %w", err)
	}
	return p.ID, nil
}
