package profile

import (
	"sort"
	"strings"
	"time"

	"github.com/jakobreinwald/cs-130-project-sub000/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONSTANTS
// ══════════════════════════════════════════════════════════════════════════════

const (
	// MaxTopItems - размер списков top artists / top tracks, запрашиваемых у каталога.
	MaxTopItems = 50

	// MaxTopGenres - сколько жанров участвует в поиске кандидатов.
	MaxTopGenres = 50

	// ArtistSeedWindow - число артистов в одном запросе рекомендаций.
	ArtistSeedWindow = 2

	// TrackSeedWindow - число треков в одном запросе рекомендаций.
	// Вместе с артистами даёт максимум в 5 seed-элементов, принимаемый каталогом.
	TrackSeedWindow = 3
)

// ══════════════════════════════════════════════════════════════════════════════
// USER
// ══════════════════════════════════════════════════════════════════════════════

// User - музыкальный профиль пользователя.
type User struct {
	// ID - стабильный идентификатор пользователя в каталоге.
	ID string

	// DisplayName - отображаемое имя.
	DisplayName string

	// GenreCounts - жанр -> количество прослушиваний.
	GenreCounts map[string]int

	// TopArtistIDs - артисты по убыванию прослушиваний (индекс = ранг).
	TopArtistIDs []string

	// TopTrackIDs - треки по убыванию прослушиваний (индекс = ранг).
	TopTrackIDs []string

	// MatchOutcomes - кандидат -> исход.
	MatchOutcomes map[string]MatchOutcome

	// RecommendedTracks - все когда-либо показанные треки в порядке добавления.
	RecommendedTracks TrackLedger

	// SeedCursor - курсоры ротации seed-элементов.
	SeedCursor SeedCursor

	// RecPlaylistID - плейлист для лайкнутых рекомендаций (лениво создаётся).
	RecPlaylistID string

	SyncedAt  time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewUser создаёт пустой профиль с инициализированными картами.
func NewUser(id, displayName string) (*User, error) {
	if strings.TrimSpace(id) == "" {
		return nil, shared.ErrEmptyUserID
	}
	now := time.Now().UTC()
	return &User{
		ID:            id,
		DisplayName:   displayName,
		GenreCounts:   make(map[string]int),
		MatchOutcomes: make(map[string]MatchOutcome),
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// TotalGenreCount - сумма GenreCounts. Всегда вычисляется при чтении.
func (u *User) TotalGenreCount() int {
	total := 0
	for _, c := range u.GenreCounts {
		total += c
	}
	return total
}

// AverageGenreCount - среднее число прослушиваний на жанр.
func (u *User) AverageGenreCount() float64 {
	if len(u.GenreCounts) == 0 {
		return 0
	}
	return float64(u.TotalGenreCount()) / float64(len(u.GenreCounts))
}

// TopGenres возвращает до limit жанров по убыванию count.
// При равенстве жанры упорядочены по имени.
func (u *User) TopGenres(limit int) []string {
	genres := make([]string, 0, len(u.GenreCounts))
	for g := range u.GenreCounts {
		genres = append(genres, g)
	}
	sort.Slice(genres, func(i, j int) bool {
		ci, cj := u.GenreCounts[genres[i]], u.GenreCounts[genres[j]]
		if ci != cj {
			return ci > cj
		}
		return genres[i] < genres[j]
	})
	if limit > 0 && len(genres) > limit {
		genres = genres[:limit]
	}
	return genres
}

// Outcome возвращает исход для кандидата; отсутствующий ключ = none.
func (u *User) Outcome(candidateID string) MatchOutcome {
	if o, ok := u.MatchOutcomes[candidateID]; ok {
		return o
	}
	return OutcomeNone
}

// ApplyTopLists заменяет топ-списки после синхронизации и
// возвращает курсоры в допустимый диапазон.
func (u *User) ApplyTopLists(genreCounts map[string]int, artistIDs, trackIDs []string) {
	u.GenreCounts = genreCounts
	u.TopArtistIDs = artistIDs
	u.TopTrackIDs = trackIDs
	u.SeedCursor = u.SeedCursor.Clamp(len(artistIDs), len(trackIDs))
}

// SeedWindows возвращает seed-окна для текущих курсоров.
func (u *User) SeedWindows() (artists, tracks []string) {
	return Window(u.TopArtistIDs, u.SeedCursor.ArtistOffset, ArtistSeedWindow),
		Window(u.TopTrackIDs, u.SeedCursor.TrackOffset, TrackSeedWindow)
}

// Clone возвращает глубокую копию.
func (u *User) Clone() *User {
	c := *u
	c.GenreCounts = make(map[string]int, len(u.GenreCounts))
	for k, v := range u.GenreCounts {
		c.GenreCounts[k] = v
	}
	c.MatchOutcomes = make(map[string]MatchOutcome, len(u.MatchOutcomes))
	for k, v := range u.MatchOutcomes {
		c.MatchOutcomes[k] = v
	}
	c.TopArtistIDs = append([]string(nil), u.TopArtistIDs...)
	c.TopTrackIDs = append([]string(nil), u.TopTrackIDs...)
	c.RecommendedTracks = append(TrackLedger(nil), u.RecommendedTracks...)
	return &c
}

// ══════════════════════════════════════════════════════════════════════════════
// SEED CURSOR
// ══════════════════════════════════════════════════════════════════════════════

// SeedCursor - пара курсоров по топ-спискам. Инвариант: 0 <= offset < len
// (для пустого списка offset = 0).
type SeedCursor struct {
	ArtistOffset int
	TrackOffset  int
}

// Advance сдвигает оба курсора на размер окна с переходом в 0.
func (c SeedCursor) Advance(artistLen, trackLen int) SeedCursor {
	return SeedCursor{
		ArtistOffset: AdvanceOffset(c.ArtistOffset, ArtistSeedWindow, artistLen),
		TrackOffset:  AdvanceOffset(c.TrackOffset, TrackSeedWindow, trackLen),
	}
}

// Clamp сбрасывает курсоры, вышедшие за пределы списков.
func (c SeedCursor) Clamp(artistLen, trackLen int) SeedCursor {
	if c.ArtistOffset < 0 || c.ArtistOffset >= artistLen {
		c.ArtistOffset = 0
	}
	if c.TrackOffset < 0 || c.TrackOffset >= trackLen {
		c.TrackOffset = 0
	}
	return c
}

// AdvanceOffset: next = offset + window; если next >= length, то 0.
func AdvanceOffset(offset, window, length int) int {
	next := offset + window
	if next >= length {
		return 0
	}
	return next
}

// Window возвращает ids[offset:offset+size], усечённый по концу списка.
func Window(ids []string, offset, size int) []string {
	if offset < 0 || offset >= len(ids) {
		return nil
	}
	end := offset + size
	if end > len(ids) {
		end = len(ids)
	}
	return append([]string(nil), ids[offset:end]...)
}

// ══════════════════════════════════════════════════════════════════════════════
// TRACK LEDGER
// ══════════════════════════════════════════════════════════════════════════════

// RecommendedTrack - запись журнала рекомендаций.
type RecommendedTrack struct {
	TrackID string
	Outcome TrackOutcome
}

// TrackLedger - упорядоченная карта track id -> исход (порядок добавления).
type TrackLedger []RecommendedTrack

// Lookup возвращает исход трека.
func (l TrackLedger) Lookup(trackID string) (TrackOutcome, bool) {
	for _, rt := range l {
		if rt.TrackID == trackID {
			return rt.Outcome, true
		}
	}
	return "", false
}

// Fresh возвращает до limit треков в состоянии none в порядке хранения.
func (l TrackLedger) Fresh(limit int) []string {
	ids := make([]string, 0, limit)
	for _, rt := range l {
		if len(ids) >= limit {
			break
		}
		if rt.Outcome == TrackFresh {
			ids = append(ids, rt.TrackID)
		}
	}
	return ids
}

// Seen возвращает множество всех записанных треков в любом состоянии.
func (l TrackLedger) Seen() map[string]struct{} {
	seen := make(map[string]struct{}, len(l))
	for _, rt := range l {
		seen[rt.TrackID] = struct{}{}
	}
	return seen
}

// ══════════════════════════════════════════════════════════════════════════════
// ARTIST & GENRE
// ══════════════════════════════════════════════════════════════════════════════

// Artist - артист с обратным индексом слушателей.
type Artist struct {
	ID     string
	Name   string
	Genres []string

	// ListenerRanks - слушатель -> ранг артиста в его топе (0 = самый слушаемый).
	ListenerRanks map[string]int

	UpdatedAt time.Time
}

// Rank возвращает ранг артиста у слушателя.
func (a *Artist) Rank(userID string) (int, bool) {
	if a == nil {
		return 0, false
	}
	r, ok := a.ListenerRanks[userID]
	return r, ok
}

// Genre - жанр с обратным индексом слушателей.
type Genre struct {
	Name string

	// ListenerCounts - слушатель -> количество прослушиваний жанра.
	ListenerCounts map[string]int

	UpdatedAt time.Time
}
