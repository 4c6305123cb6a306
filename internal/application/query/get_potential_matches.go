// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"fmt"
	"sort"

	"github.com/jakobreinwald/cs-130-project-sub000/internal/domain/profile"
	"github.com/jakobreinwald/cs-130-project-sub000/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET POTENTIAL MATCHES QUERY
// Возвращает карту исходов пользователя в виде списка для отображения.
// С OnlyFresh - только кандидатов, по которым решение ещё не принято.
// ══════════════════════════════════════════════════════════════════════════════

// GetPotentialMatchesQuery содержит параметры запроса.
type GetPotentialMatchesQuery struct {
	UserID string

	// OnlyFresh - только кандидаты с исходом none.
	OnlyFresh bool
}

// Validate проверяет корректность параметров.
func (q GetPotentialMatchesQuery) Validate() error {
	if q.UserID == "" {
		return shared.ErrEmptyUserID
	}
	return nil
}

// CandidateDTO - кандидат и исход пользователя по нему.
type CandidateDTO struct {
	CandidateID string `json:"candidate_id"`
	Outcome     string `json:"outcome"`
}

// GetPotentialMatchesResult - результат запроса.
type GetPotentialMatchesResult struct {
	UserID     string         `json:"user_id"`
	Candidates []CandidateDTO `json:"candidates"`

	// Counts - число кандидатов по каждому исходу (до фильтрации).
	Counts map[string]int `json:"counts"`
}

// Outcome возвращает исход для кандидата или none.
func (r *GetPotentialMatchesResult) Outcome(candidateID string) profile.MatchOutcome {
	for _, c := range r.Candidates {
		if c.CandidateID == candidateID {
			return profile.MatchOutcome(c.Outcome)
		}
	}
	return profile.OutcomeNone
}

// GetPotentialMatchesHandler обрабатывает запрос.
type GetPotentialMatchesHandler struct {
	users profile.UserRepository
}

// NewGetPotentialMatchesHandler создаёт обработчик.
func NewGetPotentialMatchesHandler(users profile.UserRepository) *GetPotentialMatchesHandler {
	return &GetPotentialMatchesHandler{users: users}
}

// Handle выполняет запрос.
func (h *GetPotentialMatchesHandler) Handle(ctx context.Context, q GetPotentialMatchesQuery) (*GetPotentialMatchesResult, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("get_potential_matches: validation failed: %w", err)
	}

	user, err := h.users.GetUser(ctx, q.UserID)
	if err != nil {
		return nil, fmt.Errorf("get_potential_matches: failed to load user: %w", err)
	}

	ids := make([]string, 0, len(user.MatchOutcomes))
	counts := make(map[string]int)
	for id, outcome := range user.MatchOutcomes {
		counts[string(outcome)]++
		if q.OnlyFresh && outcome != profile.OutcomeNone {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)

	candidates := make([]CandidateDTO, 0, len(ids))
	for _, id := range ids {
		candidates = append(candidates, CandidateDTO{
			CandidateID: id,
			Outcome:     string(user.MatchOutcomes[id]),
		})
	}

	return &GetPotentialMatchesResult{
		UserID:     q.UserID,
		Candidates: candidates,
		Counts:     counts,
	}, nil
}
