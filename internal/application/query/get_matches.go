package query

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jakobreinwald/cs-130-project-sub000/internal/domain/matching"
	"github.com/jakobreinwald/cs-130-project-sub000/internal/domain/profile"
	"github.com/jakobreinwald/cs-130-project-sub000/internal/domain/shared"
	"github.com/jakobreinwald/cs-130-project-sub000/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET MATCHES QUERY
// Кэш совпадений с ленивым обновлением. Записи старше matching.StaleAfter
// пересчитываются на свежих профилях и перезаписываются до возврата.
// Если пересчёт не удался, возвращается старая запись, ошибка пишется в лог.
// ══════════════════════════════════════════════════════════════════════════════

// GetMatchesQuery содержит параметры запроса.
type GetMatchesQuery struct {
	UserID string
}

// Validate проверяет корректность параметров.
func (q GetMatchesQuery) Validate() error {
	if q.UserID == "" {
		return shared.ErrEmptyUserID
	}
	return nil
}

// MatchDTO - совпадение с точки зрения запрашивающего пользователя.
type MatchDTO struct {
	MatchID string `json:"match_id"`
	UserID  string `json:"user_id"`

	// Score - nil, если оценка не определена.
	Score *float64 `json:"score"`

	SharedArtistIDs []string `json:"shared_artist_ids"`
	SharedGenres    []string `json:"shared_genres"`
	SharedTrackIDs  []string `json:"shared_track_ids"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GetMatchesResult - результат запроса.
type GetMatchesResult struct {
	UserID  string     `json:"user_id"`
	Matches []MatchDTO `json:"matches"`

	// Refreshed - сколько записей пересчитано.
	Refreshed int `json:"refreshed"`

	// Stale - сколько устаревших записей вернулось без пересчёта.
	Stale int `json:"stale"`
}

// GetMatchesHandler обрабатывает запрос.
type GetMatchesHandler struct {
	users   profile.UserRepository
	artists profile.ArtistRepository
	matches matching.Repository
	log     *logger.Logger

	concurrency int
	now         func() time.Time
}

// GetMatchesConfig - настройки обработчика.
type GetMatchesConfig struct {
	// Concurrency - сколько записей пересчитывается параллельно.
	Concurrency int

	// Clock подменяет time.Now в тестах.
	Clock func() time.Time
}

// NewGetMatchesHandler создаёт обработчик.
func NewGetMatchesHandler(
	repo profile.Repository,
	matches matching.Repository,
	log *logger.Logger,
	config GetMatchesConfig,
) *GetMatchesHandler {
	if config.Concurrency <= 0 {
		config.Concurrency = 4
	}
	if config.Clock == nil {
		config.Clock = func() time.Time { return time.Now().UTC() }
	}
	if log == nil {
		log = logger.Default()
	}
	return &GetMatchesHandler{
		users:       repo.Users(),
		artists:     repo.Artists(),
		matches:     matches,
		log:         log.With(logger.Component("match_cache")),
		concurrency: config.Concurrency,
		now:         config.Clock,
	}
}

// Handle выполняет запрос.
func (h *GetMatchesHandler) Handle(ctx context.Context, q GetMatchesQuery) (*GetMatchesResult, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("get_matches: validation failed: %w", err)
	}

	if _, err := h.users.GetUser(ctx, q.UserID); err != nil {
		return nil, fmt.Errorf("get_matches: failed to load user: %w", err)
	}

	list, err := h.matches.ListByUser(ctx, q.UserID)
	if err != nil {
		return nil, fmt.Errorf("get_matches: failed to list matches: %w", err)
	}

	now := h.now()
	var refreshed, stale atomic.Int32

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.concurrency)
	for i, m := range list {
		if !m.IsStale(now) {
			continue
		}
		g.Go(func() error {
			fresh, err := h.refresh(gctx, m, now)
			if err != nil {
				h.log.Warn("match refresh failed",
					logger.MatchID(m.ID()),
					logger.Err(err),
				)
				stale.Add(1)
				return nil
			}
			list[i] = fresh
			refreshed.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	dtos := make([]MatchDTO, 0, len(list))
	for _, m := range list {
		dtos = append(dtos, toMatchDTO(m, q.UserID))
	}

	return &GetMatchesResult{
		UserID:    q.UserID,
		Matches:   dtos,
		Refreshed: int(refreshed.Load()),
		Stale:     int(stale.Load()),
	}, nil
}

// refresh пересчитывает копию записи и сохраняет её.
func (h *GetMatchesHandler) refresh(ctx context.Context, m *matching.Match, now time.Time) (*matching.Match, error) {
	a, err := h.users.GetUser(ctx, m.UserA)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", m.UserA, err)
	}
	b, err := h.users.GetUser(ctx, m.UserB)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", m.UserB, err)
	}
	artists, err := h.artists.GetArtists(ctx, matching.ArtistIDsFor(a, b))
	if err != nil {
		return nil, fmt.Errorf("load artists: %w", err)
	}

	fresh := *m
	fresh.Recompute(a, b, artists, now)
	if err := h.matches.Save(ctx, &fresh); err != nil {
		return nil, fmt.Errorf("save: %w", err)
	}
	return &fresh, nil
}

func toMatchDTO(m *matching.Match, viewer string) MatchDTO {
	dto := MatchDTO{
		MatchID:         m.ID(),
		UserID:          m.Other(viewer),
		SharedArtistIDs: m.SharedArtistIDs,
		SharedGenres:    m.SharedGenres,
		SharedTrackIDs:  m.SharedTrackIDs,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
	if m.HasScore() {
		score := m.Score
		dto.Score = &score
	}
	return dto
}
