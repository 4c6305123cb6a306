package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jakobreinwald/cs-130-project-sub000/internal/domain/matching"
	"github.com/jakobreinwald/cs-130-project-sub000/internal/domain/profile"
	"github.com/jakobreinwald/cs-130-project-sub000/internal/domain/shared"
	"github.com/jakobreinwald/cs-130-project-sub000/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIKE CANDIDATE COMMAND
// Records the user's like. When the candidate already liked the user back,
// the pair becomes a mutual match: both outcomes move to "matched" and a
// single canonical Match record is written together with them.
// ══════════════════════════════════════════════════════════════════════════════

// CandidateCommand identifies a (user, candidate) pair.
type CandidateCommand struct {
	UserID      string
	CandidateID string
}

// Validate validates the command.
func (c CandidateCommand) Validate() error {
	if c.UserID == "" || c.CandidateID == "" {
		return shared.ErrEmptyUserID
	}
	if c.UserID == c.CandidateID {
		return shared.ErrSelfMatch
	}
	return nil
}

// LikeCandidateCommand contains the like to record.
type LikeCandidateCommand = CandidateCommand

// LikeCandidateResult contains the outcome after the like.
type LikeCandidateResult struct {
	UserID      string
	CandidateID string
	Outcome     profile.MatchOutcome

	// Mutual is true once both users liked each other.
	Mutual bool

	// Match is set when Mutual is true and the record could be read.
	Match *matching.Match
}

// LikeCandidateHandler handles the LikeCandidateCommand.
type LikeCandidateHandler struct {
	users   profile.UserRepository
	artists profile.ArtistRepository
	matches matching.Repository
	locker  shared.UserLocker
	log     *logger.Logger

	now func() time.Time
}

// NewLikeCandidateHandler creates a new LikeCandidateHandler.
func NewLikeCandidateHandler(
	repo profile.Repository,
	matches matching.Repository,
	locker shared.UserLocker,
	log *logger.Logger,
	clock func() time.Time,
) *LikeCandidateHandler {
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	if log == nil {
		log = logger.Default()
	}
	return &LikeCandidateHandler{
		users:   repo.Users(),
		artists: repo.Artists(),
		matches: matches,
		locker:  locker,
		log:     log.With(logger.Component("like_candidate")),
		now:     clock,
	}
}

// Handle executes the like candidate command.
func (h *LikeCandidateHandler) Handle(ctx context.Context, cmd LikeCandidateCommand) (*LikeCandidateResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("like_candidate: validation failed: %w", err)
	}

	unlock, err := h.locker.Lock(ctx, cmd.UserID)
	if err != nil {
		return nil, fmt.Errorf("like_candidate: failed to lock user: %w", err)
	}
	defer unlock()

	user, next, err := applyOutcome(ctx, h.users, cmd.UserID, cmd.CandidateID, profile.MatchOutcome.Like)
	if err != nil {
		return nil, fmt.Errorf("like_candidate: %w", err)
	}

	result := &LikeCandidateResult{
		UserID:      cmd.UserID,
		CandidateID: cmd.CandidateID,
		Outcome:     next,
	}

	if next == profile.OutcomeMatched {
		result.Mutual = true
		if m, err := h.matches.Get(ctx, cmd.UserID, cmd.CandidateID); err == nil {
			result.Match = m
		}
		return result, nil
	}

	candidate, err := h.users.GetUser(ctx, cmd.CandidateID)
	if shared.IsNotFound(err) {
		// Candidate has no profile yet; the like stays dormant.
		return result, nil
	}
	if err != nil {
		return nil, fmt.Errorf("like_candidate: failed to load candidate: %w", err)
	}

	if !candidate.Outcome(cmd.UserID).Likes() {
		return result, nil
	}

	m, err := h.buildMatch(ctx, user, candidate)
	if err != nil {
		return nil, fmt.Errorf("like_candidate: %w", err)
	}
	err = h.matches.UpsertMutual(ctx, m)
	if errors.Is(err, shared.ErrNotMutual) {
		// The candidate dismissed the user after the read; the like stays dormant.
		h.log.Info("mutual like withdrawn before match",
			logger.UserID(cmd.UserID),
			logger.CandidateID(cmd.CandidateID),
		)
		return result, nil
	}
	if err != nil {
		return nil, fmt.Errorf("like_candidate: failed to store match: %w", err)
	}

	h.log.Info("mutual match",
		logger.UserID(cmd.UserID),
		logger.CandidateID(cmd.CandidateID),
		logger.MatchID(m.ID()),
		logger.Score(m.Score),
	)

	result.Outcome = profile.OutcomeMatched
	result.Mutual = true
	result.Match = m
	return result, nil
}

// outcomeAttempts bounds re-reads after a lost compare-and-set.
const outcomeAttempts = 3

// applyOutcome reads the user's outcome for candidateID, applies step and
// stores the result only if the stored outcome is still the one read.
// The caller holds the user's lock; the candidate's mutual match may still
// promote the outcome to matched in between, in which case step is
// re-applied to the fresh value.
func applyOutcome(
	ctx context.Context,
	users profile.UserRepository,
	userID, candidateID string,
	step func(profile.MatchOutcome) (profile.MatchOutcome, error),
) (*profile.User, profile.MatchOutcome, error) {
	for attempt := 1; ; attempt++ {
		user, err := users.GetUser(ctx, userID)
		if err != nil {
			return nil, "", fmt.Errorf("failed to load user: %w", err)
		}

		current := user.Outcome(candidateID)
		next, err := step(current)
		if err != nil {
			return nil, "", err
		}
		if next == current {
			return user, next, nil
		}

		err = users.TransitionMatchOutcome(ctx, userID, candidateID, current, next)
		if errors.Is(err, shared.ErrOutcomeChanged) && attempt < outcomeAttempts {
			continue
		}
		if err != nil {
			return nil, "", fmt.Errorf("failed to store outcome: %w", err)
		}
		return user, next, nil
	}
}

func (h *LikeCandidateHandler) buildMatch(ctx context.Context, a, b *profile.User) (*matching.Match, error) {
	artists, err := h.artists.GetArtists(ctx, matching.ArtistIDsFor(a, b))
	if err != nil {
		return nil, fmt.Errorf("failed to load artists: %w", err)
	}
	return matching.NewMatch(a, b, artists, h.now())
}
