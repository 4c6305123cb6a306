package profile

import (
	"github.com/jakobreinwald/cs-130-project-sub000/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// MATCH OUTCOME
// Состояние пары (пользователь -> кандидат) с точки зрения пользователя.
//
//	none ──like──► liked ──взаимный like──► matched
//	  │              │
//	  └──dismiss──►  └──dismiss──► dismissed
//
// dismissed и matched - терминальные состояния.
// ══════════════════════════════════════════════════════════════════════════════

// MatchOutcome - исход для кандидата.
type MatchOutcome string

const (
	// OutcomeNone - кандидат найден, решение не принято.
	OutcomeNone MatchOutcome = "none"

	// OutcomeLiked - пользователь лайкнул кандидата.
	OutcomeLiked MatchOutcome = "liked"

	// OutcomeDismissed - пользователь отклонил кандидата.
	OutcomeDismissed MatchOutcome = "dismissed"

	// OutcomeMatched - взаимный лайк, существует запись Match.
	OutcomeMatched MatchOutcome = "matched"
)

// IsValid проверяет, что значение допустимо.
func (o MatchOutcome) IsValid() bool {
	switch o {
	case OutcomeNone, OutcomeLiked, OutcomeDismissed, OutcomeMatched:
		return true
	default:
		return false
	}
}

// IsTerminal возвращает true для состояний без исходящих переходов.
func (o MatchOutcome) IsTerminal() bool {
	return o == OutcomeDismissed || o == OutcomeMatched
}

// Likes - пользователь выразил симпатию: liked или matched.
func (o MatchOutcome) Likes() bool {
	return o == OutcomeLiked || o == OutcomeMatched
}

// Like возвращает состояние после лайка.
// Отсутствующий ключ трактуется как none. Повторный лайк и лайк после
// взаимного совпадения не меняют состояние.
func (o MatchOutcome) Like() (MatchOutcome, error) {
	switch o {
	case "", OutcomeNone, OutcomeLiked:
		return OutcomeLiked, nil
	case OutcomeMatched:
		return OutcomeMatched, nil
	default:
		return o, shared.ErrInvalidOutcomeTransition
	}
}

// Dismiss возвращает состояние после отклонения.
// Неподтверждённый лайк можно отозвать; matched отклонить нельзя.
func (o MatchOutcome) Dismiss() (MatchOutcome, error) {
	switch o {
	case "", OutcomeNone, OutcomeLiked, OutcomeDismissed:
		return OutcomeDismissed, nil
	default:
		return o, shared.ErrInvalidOutcomeTransition
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// TRACK OUTCOME
// ══════════════════════════════════════════════════════════════════════════════

// TrackOutcome - исход для рекомендованного трека.
type TrackOutcome string

const (
	// TrackFresh - трек показан, реакции ещё нет.
	TrackFresh TrackOutcome = "none"

	// TrackLiked - трек добавлен в плейлист рекомендаций.
	TrackLiked TrackOutcome = "liked"

	// TrackDismissed - трек отклонён.
	TrackDismissed TrackOutcome = "dismissed"
)

// IsValid проверяет, что значение допустимо.
func (o TrackOutcome) IsValid() bool {
	return o == TrackFresh || o == TrackLiked || o == TrackDismissed
}

// Like возвращает состояние после лайка трека. liked и dismissed терминальны.
func (o TrackOutcome) Like() (TrackOutcome, error) {
	switch o {
	case TrackFresh, TrackLiked:
		return TrackLiked, nil
	default:
		return o, shared.ErrInvalidTrackTransition
	}
}

// Dismiss возвращает состояние после отклонения трека.
func (o TrackOutcome) Dismiss() (TrackOutcome, error) {
	switch o {
	case TrackFresh, TrackDismissed:
		return TrackDismissed, nil
	default:
		return o, shared.ErrInvalidTrackTransition
	}
}
