// Package catalog implements the music catalog Web API client.
// It fetches listener profiles, top lists, track and artist metadata,
// seeded recommendations and maintains the user's recommendation playlist.
package catalog

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE WRAPPERS
// ══════════════════════════════════════════════════════════════════════════════

// PagingDTO is the catalog's offset paging object.
type PagingDTO[T any] struct {
	Items  []T    `json:"items"`
	Total  int    `json:"total"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
	Next   string `json:"next,omitempty"`
}

// ErrorResponseDTO is the error body returned with 4xx/5xx responses.
type ErrorResponseDTO struct {
	Error struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

// ══════════════════════════════════════════════════════════════════════════════
// USER DTOs
// ══════════════════════════════════════════════════════════════════════════════

// UserDTO represents the owner of an access token.
type UserDTO struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Country     string `json:"country,omitempty"`
	Email       string `json:"email,omitempty"`
}

// ══════════════════════════════════════════════════════════════════════════════
// ARTIST / TRACK DTOs
// ══════════════════════════════════════════════════════════════════════════════

// ImageDTO is a cover or avatar image.
type ImageDTO struct {
	URL    string `json:"url"`
	Height int    `json:"height,omitempty"`
	Width  int    `json:"width,omitempty"`
}

// SimpleArtistDTO is the artist object embedded in tracks and albums.
type SimpleArtistDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ArtistDTO is the full artist object with genres.
type ArtistDTO struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Genres     []string   `json:"genres"`
	Popularity int        `json:"popularity"`
	Images     []ImageDTO `json:"images,omitempty"`
}

// AlbumDTO is the album object embedded in tracks.
type AlbumDTO struct {
	ID     string     `json:"id"`
	Name   string     `json:"name"`
	Images []ImageDTO `json:"images"`
}

// TrackDTO is the full track object.
type TrackDTO struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	URI        string            `json:"uri"`
	DurationMs int               `json:"duration_ms"`
	PreviewURL string            `json:"preview_url,omitempty"`
	Artists    []SimpleArtistDTO `json:"artists"`
	Album      AlbumDTO          `json:"album"`
}

// ArtistsResponseDTO is returned by the batch artists endpoint.
// Unknown IDs come back as null entries.
type ArtistsResponseDTO struct {
	Artists []*ArtistDTO `json:"artists"`
}

// TracksResponseDTO is returned by the batch tracks and recommendations endpoints.
type TracksResponseDTO struct {
	Tracks []*TrackDTO `json:"tracks"`
}

// ══════════════════════════════════════════════════════════════════════════════
// PLAYLIST DTOs
// ══════════════════════════════════════════════════════════════════════════════

// PlaylistDTO is the playlist object.
type PlaylistDTO struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Owner  UserDTO `json:"owner"`
	Tracks struct {
		Total int `json:"total"`
	} `json:"tracks"`
}

// CreatePlaylistRequestDTO is the body for creating a playlist.
type CreatePlaylistRequestDTO struct {
	Name        string `json:"name"`
	Public      bool   `json:"public"`
	Description string `json:"description,omitempty"`
}

// AddTracksRequestDTO is the body for appending tracks to a playlist.
type AddTracksRequestDTO struct {
	URIs []string `json:"uris"`
}

// SnapshotDTO is returned after a playlist modification.
type SnapshotDTO struct {
	SnapshotID string `json:"snapshot_id"`
}
