package command

import (
	"context"
	"fmt"

	"github.com/jakobreinwald/cs-130-project-sub000/internal/domain/music"
	"github.com/jakobreinwald/cs-130-project-sub000/internal/domain/profile"
	"github.com/jakobreinwald/cs-130-project-sub000/internal/domain/shared"
	"github.com/jakobreinwald/cs-130-project-sub000/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// DISMISS RECOMMENDATION COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// DismissRecommendationCommand contains the dismissal to record.
type DismissRecommendationCommand = TrackCommand

// DismissRecommendationResult contains the outcome after the dismissal.
type DismissRecommendationResult struct {
	UserID  string
	TrackID string
	Outcome profile.TrackOutcome
}

// DismissRecommendationHandler handles the DismissRecommendationCommand.
type DismissRecommendationHandler struct {
	users  profile.UserRepository
	cache  music.TrackCache
	locker shared.UserLocker
	logger *logger.Logger
}

// NewDismissRecommendationHandler creates a new DismissRecommendationHandler.
// A dismissed track is evicted from cache; cache may be nil.
func NewDismissRecommendationHandler(
	users profile.UserRepository,
	cache music.TrackCache,
	locker shared.UserLocker,
	log *logger.Logger,
) *DismissRecommendationHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &DismissRecommendationHandler{
		users:  users,
		cache:  cache,
		locker: locker,
		logger: log.With(logger.Component("dismiss_recommendation")),
	}
}

// Handle executes the dismiss recommendation command.
func (h *DismissRecommendationHandler) Handle(ctx context.Context, cmd DismissRecommendationCommand) (*DismissRecommendationResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("dismiss_recommendation: validation failed: %w", err)
	}

	unlock, err := h.locker.Lock(ctx, cmd.UserID)
	if err != nil {
		return nil, fmt.Errorf("dismiss_recommendation: failed to lock user: %w", err)
	}
	defer unlock()

	user, err := h.users.GetUser(ctx, cmd.UserID)
	if err != nil {
		return nil, fmt.Errorf("dismiss_recommendation: failed to load user: %w", err)
	}

	current, ok := user.RecommendedTracks.Lookup(cmd.TrackID)
	if !ok {
		return nil, fmt.Errorf("dismiss_recommendation: %w", shared.ErrTrackNotRecommended)
	}
	next, err := current.Dismiss()
	if err != nil {
		return nil, fmt.Errorf("dismiss_recommendation: %w", err)
	}

	if current != next {
		if err := h.users.SetTrackOutcome(ctx, cmd.UserID, cmd.TrackID, next); err != nil {
			return nil, fmt.Errorf("dismiss_recommendation: failed to store outcome: %w", err)
		}
		if h.cache != nil {
			if err := h.cache.DropTracks(ctx, []string{cmd.TrackID}); err != nil {
				h.logger.Warn("failed to evict dismissed track",
					logger.UserID(cmd.UserID),
					logger.TrackID(cmd.TrackID),
					logger.Err(err),
				)
			}
		}
	}

	return &DismissRecommendationResult{
		UserID:  cmd.UserID,
		TrackID: cmd.TrackID,
		Outcome: next,
	}, nil
}
