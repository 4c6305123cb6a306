// Package music содержит объекты внешнего музыкального каталога
// и порт для работы с ним.
package music

import (
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// ArtistRef - краткая ссылка на артиста внутри трека.
type ArtistRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// AlbumRef - альбом трека с обложкой.
type AlbumRef struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ImageURL string `json:"image_url,omitempty"`
}

// Track - полный объект трека с разрешёнными альбомом и артистами.
type Track struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	URI        string      `json:"uri"`
	DurationMs int         `json:"duration_ms"`
	PreviewURL string      `json:"preview_url,omitempty"`
	Artists    []ArtistRef `json:"artists"`
	Album      AlbumRef    `json:"album"`
}

// ArtistIDs возвращает ID всех артистов трека.
func (t Track) ArtistIDs() []string {
	ids := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		ids = append(ids, a.ID)
	}
	return ids
}

// Artist - артист каталога с жанрами.
type Artist struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Genres     []string `json:"genres"`
	Popularity int      `json:"popularity"`
}

// Profile - профиль владельца access token.
type Profile struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Country     string `json:"country,omitempty"`
}

// Playlist - плейлист пользователя.
type Playlist struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	OwnerID    string    `json:"owner_id"`
	TrackCount int       `json:"track_count"`
	FetchedAt  time.Time `json:"fetched_at"`
}
