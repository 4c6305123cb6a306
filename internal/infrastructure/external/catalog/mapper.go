package catalog

import (
	"errors"
	"strings"
	"time"

	"github.com/jakobreinwald/cs-130-project-sub000/internal/domain/music"
)

// ErrNilDTO is returned when a mapper receives a nil DTO.
var ErrNilDTO = errors.New("catalog: nil dto")

// ══════════════════════════════════════════════════════════════════════════════
// MAPPER - DTO to domain object transformations
// ══════════════════════════════════════════════════════════════════════════════

// Mapper converts catalog DTOs to music domain objects, keeping the wire
// format out of the domain.
type Mapper struct{}

// NewMapper creates a new Mapper instance.
func NewMapper() *Mapper {
	return &Mapper{}
}

// ProfileFromDTO converts the token owner.
func (m *Mapper) ProfileFromDTO(dto *UserDTO) (*music.Profile, error) {
	if dto == nil {
		return nil, ErrNilDTO
	}
	name := dto.DisplayName
	if name == "" {
		name = dto.ID
	}
	return &music.Profile{
		ID:          dto.ID,
		DisplayName: name,
		Country:     dto.Country,
	}, nil
}

// ArtistFromDTO converts a full artist. Genres are lowercased and trimmed.
func (m *Mapper) ArtistFromDTO(dto *ArtistDTO) music.Artist {
	genres := make([]string, 0, len(dto.Genres))
	for _, g := range dto.Genres {
		g = strings.ToLower(strings.TrimSpace(g))
		if g != "" {
			genres = append(genres, g)
		}
	}
	return music.Artist{
		ID:         dto.ID,
		Name:       dto.Name,
		Genres:     genres,
		Popularity: dto.Popularity,
	}
}

// ArtistsFromDTOs converts artists, skipping null entries.
func (m *Mapper) ArtistsFromDTOs(dtos []*ArtistDTO) []music.Artist {
	out := make([]music.Artist, 0, len(dtos))
	for _, dto := range dtos {
		if dto == nil || dto.ID == "" {
			continue
		}
		out = append(out, m.ArtistFromDTO(dto))
	}
	return out
}

// TrackFromDTO converts a full track. The album image is the first
// (largest) one the catalog returns.
func (m *Mapper) TrackFromDTO(dto *TrackDTO) music.Track {
	artists := make([]music.ArtistRef, 0, len(dto.Artists))
	for _, a := range dto.Artists {
		artists = append(artists, music.ArtistRef{ID: a.ID, Name: a.Name})
	}

	album := music.AlbumRef{ID: dto.Album.ID, Name: dto.Album.Name}
	if len(dto.Album.Images) > 0 {
		album.ImageURL = dto.Album.Images[0].URL
	}

	return music.Track{
		ID:         dto.ID,
		Name:       dto.Name,
		URI:        dto.URI,
		DurationMs: dto.DurationMs,
		PreviewURL: dto.PreviewURL,
		Artists:    artists,
		Album:      album,
	}
}

// TracksFromDTOs converts tracks, skipping null entries.
func (m *Mapper) TracksFromDTOs(dtos []*TrackDTO) []music.Track {
	out := make([]music.Track, 0, len(dtos))
	for _, dto := range dtos {
		if dto == nil || dto.ID == "" {
			continue
		}
		out = append(out, m.TrackFromDTO(dto))
	}
	return out
}

// PlaylistFromDTO converts a playlist.
func (m *Mapper) PlaylistFromDTO(dto *PlaylistDTO, fetchedAt time.Time) (*music.Playlist, error) {
	if dto == nil {
		return nil, ErrNilDTO
	}
	return &music.Playlist{
		ID:         dto.ID,
		Name:       dto.Name,
		OwnerID:    dto.Owner.ID,
		TrackCount: dto.Tracks.Total,
		FetchedAt:  fetchedAt,
	}, nil
}

// TrackURI builds the catalog URI used when adding tracks to playlists.
func TrackURI(trackID string) string {
	return "spotify:track:" + trackID
}
