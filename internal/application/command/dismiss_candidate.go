package command

import (
	"context"
	"fmt"

	"github.com/jakobreinwald/cs-130-project-sub000/internal/domain/profile"
	"github.com/jakobreinwald/cs-130-project-sub000/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// DISMISS CANDIDATE COMMAND
// One write: the user's outcome for the candidate becomes "dismissed".
// Never creates a Match record. Dismissing a matched pair is rejected.
// ══════════════════════════════════════════════════════════════════════════════

// DismissCandidateCommand contains the dismissal to record.
type DismissCandidateCommand = CandidateCommand

// DismissCandidateResult contains the outcome after the dismissal.
type DismissCandidateResult struct {
	UserID      string
	CandidateID string
	Outcome     profile.MatchOutcome
}

// DismissCandidateHandler handles the DismissCandidateCommand.
type DismissCandidateHandler struct {
	users  profile.UserRepository
	locker shared.UserLocker
}

// NewDismissCandidateHandler creates a new DismissCandidateHandler.
func NewDismissCandidateHandler(users profile.UserRepository, locker shared.UserLocker) *DismissCandidateHandler {
	return &DismissCandidateHandler{
		users:  users,
		locker: locker,
	}
}

// Handle executes the dismiss candidate command.
func (h *DismissCandidateHandler) Handle(ctx context.Context, cmd DismissCandidateCommand) (*DismissCandidateResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("dismiss_candidate: validation failed: %w", err)
	}

	unlock, err := h.locker.Lock(ctx, cmd.UserID)
	if err != nil {
		return nil, fmt.Errorf("dismiss_candidate: failed to lock user: %w", err)
	}
	defer unlock()

	_, next, err := applyOutcome(ctx, h.users, cmd.UserID, cmd.CandidateID, profile.MatchOutcome.Dismiss)
	if err != nil {
		return nil, fmt.Errorf("dismiss_candidate: %w", err)
	}

	return &DismissCandidateResult{
		UserID:      cmd.UserID,
		CandidateID: cmd.CandidateID,
		Outcome:     next,
	}, nil
}
