package matching

import (
	"time"

	"github.com/jakobreinwald/cs-130-project-sub000/internal/domain/profile"
	"github.com/jakobreinwald/cs-130-project-sub000/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// MATCH
// Запись взаимного совпадения. Пара неупорядочена: UserA < UserB,
// поэтому на пару существует ровно одна запись независимо от того,
// кто лайкнул первым.
// ══════════════════════════════════════════════════════════════════════════════

// StaleAfter - возраст записи, после которого оценка пересчитывается при чтении.
const StaleAfter = 24 * time.Hour

// Match - взаимное совпадение двух пользователей.
type Match struct {
	UserA string
	UserB string

	// Score в [0,1] или Undetermined.
	Score float64

	SharedArtistIDs []string
	SharedGenres    []string
	SharedTrackIDs  []string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// PairKey возвращает канонический порядок пары.
func PairKey(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

// MatchID возвращает идентификатор пары "a:b" в каноническом порядке.
func MatchID(a, b string) string {
	first, second := PairKey(a, b)
	return first + ":" + second
}

// NewMatch вычисляет оценку и общие элементы для пары.
// Порядок аргументов не важен.
func NewMatch(a, b *profile.User, artists map[string]*profile.Artist, now time.Time) (*Match, error) {
	if a == nil || b == nil {
		return nil, shared.ErrUserNotFound
	}
	if a.ID == b.ID {
		return nil, shared.ErrSelfMatch
	}
	m := &Match{CreatedAt: now}
	m.UserA, m.UserB = PairKey(a.ID, b.ID)
	m.Recompute(a, b, artists, now)
	return m, nil
}

// ID возвращает идентификатор пары.
func (m *Match) ID() string {
	return m.UserA + ":" + m.UserB
}

// Other возвращает второго участника пары.
func (m *Match) Other(userID string) string {
	if m.UserA == userID {
		return m.UserB
	}
	return m.UserA
}

// Involves проверяет участие пользователя.
func (m *Match) Involves(userID string) bool {
	return m.UserA == userID || m.UserB == userID
}

// HasScore - false для Undetermined.
func (m *Match) HasScore() bool {
	return m.Score != Undetermined
}

// IsStale - запись старше StaleAfter.
func (m *Match) IsStale(now time.Time) bool {
	return now.Sub(m.UpdatedAt) > StaleAfter
}

// Recompute пересчитывает оценку и общие элементы на свежих профилях.
func (m *Match) Recompute(a, b *profile.User, artists map[string]*profile.Artist, now time.Time) {
	first, second := a, b
	if second.ID < first.ID {
		first, second = second, first
	}
	m.Score = MutualScore(first, second, artists)
	s := SharedItems(first, second)
	m.SharedArtistIDs = s.ArtistIDs
	m.SharedGenres = s.Genres
	m.SharedTrackIDs = s.TrackIDs
	m.UpdatedAt = now
}

// ══════════════════════════════════════════════════════════════════════════════
// SHARED ITEMS
// ══════════════════════════════════════════════════════════════════════════════

// Shared - пересечения топ-списков двух пользователей.
type Shared struct {
	ArtistIDs []string
	Genres    []string
	TrackIDs  []string
}

// SharedItems пересекает топ-списки; порядок берётся из списков a.
func SharedItems(a, b *profile.User) Shared {
	genres := make([]string, 0)
	for _, g := range a.TopGenres(0) {
		if _, ok := b.GenreCounts[g]; ok {
			genres = append(genres, g)
		}
	}
	return Shared{
		ArtistIDs: intersect(a.TopArtistIDs, b.TopArtistIDs),
		Genres:    genres,
		TrackIDs:  intersect(a.TopTrackIDs, b.TopTrackIDs),
	}
}

func intersect(a, b []string) []string {
	inB := make(map[string]struct{}, len(b))
	for _, id := range b {
		inB[id] = struct{}{}
	}
	out := make([]string, 0)
	for _, id := range a {
		if _, ok := inB[id]; ok {
			out = append(out, id)
			delete(inB, id)
		}
	}
	return out
}

// ArtistIDsFor собирает топ-артистов нескольких пользователей без повторов.
// Используется для загрузки записей Artist перед расчётом оценки.
func ArtistIDsFor(users ...*profile.User) []string {
	seen := make(map[string]struct{})
	ids := make([]string, 0)
	for _, u := range users {
		if u == nil {
			continue
		}
		for _, id := range u.TopArtistIDs {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids
}
