package profile

import (
	"context"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Контракт хранилища профилей. Реализации находятся в infrastructure/persistence.
//
// Принципы:
// - Обновления карт (исходы, ранги, счётчики) атомарны на уровне одного ключа
// - Методы Set*/Remove* не затирают параллельные изменения других ключей
// ══════════════════════════════════════════════════════════════════════════════

// UserRepository определяет операции с профилями пользователей.
type UserRepository interface {
	// GetUser возвращает профиль.
	// Возвращает shared.ErrUserNotFound, если профиль не найден.
	GetUser(ctx context.Context, id string) (*User, error)

	// SaveUser создаёт или обновляет поля профиля, полученные при синхронизации
	// (имя, жанры, топ-списки, курсоры). Карты исходов и журнал
	// рекомендаций существующей записи сохраняются.
	SaveUser(ctx context.Context, u *User) error

	// TransitionMatchOutcome атомарно переводит исход для одного кандидата
	// из from в to. Отсутствующий ключ считается none. Если сохранённый
	// исход уже не равен from, возвращает shared.ErrOutcomeChanged.
	TransitionMatchOutcome(ctx context.Context, userID, candidateID string, from, to MatchOutcome) error

	// SeedCandidates добавляет кандидатов с исходом none, не трогая
	// уже существующие ключи. Возвращает актуальную карту исходов.
	SeedCandidates(ctx context.Context, userID string, candidateIDs []string) (map[string]MatchOutcome, error)

	// SetTrackOutcome атомарно устанавливает исход для одного трека.
	// Возвращает shared.ErrTrackNotRecommended, если трек не в журнале.
	SetTrackOutcome(ctx context.Context, userID, trackID string, outcome TrackOutcome) error

	// AppendRecommendations добавляет новые треки в журнал в состоянии none
	// и сохраняет курсоры одной операцией. Уже записанные треки пропускаются.
	AppendRecommendations(ctx context.Context, userID string, trackIDs []string, cursor SeedCursor) error

	// SetPlaylistID сохраняет ID плейлиста рекомендаций.
	SetPlaylistID(ctx context.Context, userID, playlistID string) error
}

// ArtistRepository определяет операции с артистами.
type ArtistRepository interface {
	// GetArtist возвращает артиста.
	// Возвращает shared.ErrArtistNotFound, если артист не найден.
	GetArtist(ctx context.Context, id string) (*Artist, error)

	// GetArtists возвращает найденных артистов; отсутствующие пропускаются.
	GetArtists(ctx context.Context, ids []string) (map[string]*Artist, error)

	// SaveArtist создаёт или обновляет имя и жанры, сохраняя ListenerRanks.
	SaveArtist(ctx context.Context, a *Artist) error

	// SetListenerRank атомарно устанавливает ранг одного слушателя.
	SetListenerRank(ctx context.Context, artistID, userID string, rank int) error

	// RemoveListener удаляет слушателя из индекса артиста.
	RemoveListener(ctx context.Context, artistID, userID string) error
}

// GenreRepository определяет операции с жанрами.
type GenreRepository interface {
	// GetGenre возвращает жанр.
	// Возвращает shared.ErrGenreNotFound, если жанр не найден.
	GetGenre(ctx context.Context, name string) (*Genre, error)

	// SetListenerCount атомарно устанавливает счётчик одного слушателя,
	// создавая жанр при необходимости.
	SetListenerCount(ctx context.Context, name, userID string, count int) error

	// RemoveListener удаляет слушателя из индекса жанра.
	RemoveListener(ctx context.Context, name, userID string) error
}

// Repository объединяет все репозитории профилей.
type Repository interface {
	Users() UserRepository
	Artists() ArtistRepository
	Genres() GenreRepository
}
