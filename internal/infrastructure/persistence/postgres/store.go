package postgres

import (
	"github.com/jakobreinwald/cs-130-project-sub000/internal/domain/matching"
	"github.com/jakobreinwald/cs-130-project-sub000/internal/domain/profile"
)

// Store groups the PostgreSQL repositories over one connection pool.
type Store struct {
	users   *UserRepository
	artists *ArtistRepository
	genres  *GenreRepository
	matches *MatchRepository
}

var _ profile.Repository = (*Store)(nil)

// NewStore creates a Store.
func NewStore(conn *Connection) *Store {
	return &Store{
		users:   NewUserRepository(conn),
		artists: NewArtistRepository(conn),
		genres:  NewGenreRepository(conn),
		matches: NewMatchRepository(conn),
	}
}

// Users returns the user repository.
func (s *Store) Users() profile.UserRepository { return s.users }

// Artists returns the artist repository.
func (s *Store) Artists() profile.ArtistRepository { return s.artists }

// Genres returns the genre repository.
func (s *Store) Genres() profile.GenreRepository { return s.genres }

// Matches returns the match repository.
func (s *Store) Matches() matching.Repository { return s.matches }
