package music

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG PORT
// Внешний каталог (стриминговый сервис). Реализация в infrastructure/external.
//
// Любой метод может вернуть ошибку транспорта или ограничения частоты
// (shared.ErrRateLimited, shared.ErrUpstreamUnavailable). Для генерации
// рекомендаций такие ошибки означают "в этом раунде данных больше нет".
// ══════════════════════════════════════════════════════════════════════════════

const (
	// MaxSeeds - максимум seed-элементов в одном запросе рекомендаций.
	MaxSeeds = 5

	// MaxBatchIDs - максимум ID в одном пакетном запросе артистов/треков.
	MaxBatchIDs = 50
)

// Catalog - операции каталога, выполняемые от имени владельца token.
type Catalog interface {
	// FetchProfile возвращает профиль владельца token.
	FetchProfile(ctx context.Context, token string) (*Profile, error)

	// FetchTopArtists возвращает топ артистов по убыванию прослушиваний.
	FetchTopArtists(ctx context.Context, token string, limit int) ([]Artist, error)

	// FetchTopTracks возвращает топ треков по убыванию прослушиваний.
	FetchTopTracks(ctx context.Context, token string, limit int) ([]Track, error)

	// FetchArtists возвращает артистов по ID (до MaxBatchIDs за вызов).
	FetchArtists(ctx context.Context, token string, ids []string) ([]Artist, error)

	// FetchTracks возвращает треки по ID (до MaxBatchIDs за вызов).
	FetchTracks(ctx context.Context, token string, ids []string) ([]Track, error)

	// FetchRecommendedTracks возвращает пакет треков по seed-элементам.
	FetchRecommendedTracks(ctx context.Context, token string, seedArtists, seedTracks []string, limit int) ([]Track, error)

	// FetchPlaylist возвращает плейлист.
	// Возвращает shared.ErrPlaylistNotFound, если плейлист удалён.
	FetchPlaylist(ctx context.Context, token, playlistID string) (*Playlist, error)

	// CreatePlaylist создаёт плейлист пользователя.
	CreatePlaylist(ctx context.Context, token, userID, name string) (*Playlist, error)

	// AddTrackToPlaylist добавляет трек в плейлист.
	AddTrackToPlaylist(ctx context.Context, token, playlistID, trackID string) error
}

// TrackCache хранит полные объекты треков по ID.
type TrackCache interface {
	// PutTracks кэширует треки.
	PutTracks(ctx context.Context, tracks []Track, ttl time.Duration) error

	// GetTracks возвращает найденные в кэше треки; промахи пропускаются.
	GetTracks(ctx context.Context, ids []string) (map[string]Track, error)

	// DropTracks удаляет треки из кэша; отсутствующие ID игнорируются.
	DropTracks(ctx context.Context, ids []string) error
}
