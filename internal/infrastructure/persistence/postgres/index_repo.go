package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jakobreinwald/cs-130-project-sub000/internal/domain/profile"
	"github.com/jakobreinwald/cs-130-project-sub000/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ARTIST REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ArtistRepository implements profile.ArtistRepository for PostgreSQL.
// Listener ranks live in artist_listeners, one row per (artist, user).
type ArtistRepository struct {
	conn *Connection
}

// NewArtistRepository creates a new ArtistRepository.
func NewArtistRepository(conn *Connection) *ArtistRepository {
	return &ArtistRepository{conn: conn}
}

var _ profile.ArtistRepository = (*ArtistRepository)(nil)

// GetArtist returns an artist with its listener ranks.
func (r *ArtistRepository) GetArtist(ctx context.Context, id string) (*profile.Artist, error) {
	artists, err := r.GetArtists(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	a, ok := artists[id]
	if !ok {
		return nil, shared.ErrArtistNotFound
	}
	return a, nil
}

// GetArtists returns the artists that exist; missing IDs are skipped.
func (r *ArtistRepository) GetArtists(ctx context.Context, ids []string) (map[string]*profile.Artist, error) {
	out := make(map[string]*profile.Artist, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := r.conn.Query(ctx, `
		SELECT id, name, genres, updated_at
		FROM artists
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query artists: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		a := &profile.Artist{ListenerRanks: make(map[string]int)}
		if err := rows.Scan(&a.ID, &a.Name, &a.Genres, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan artist: %w", err)
		}
		out[a.ID] = a
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	listeners, err := r.conn.Query(ctx, `
		SELECT artist_id, user_id, rank
		FROM artist_listeners
		WHERE artist_id = ANY($1)
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query artist listeners: %w", err)
	}
	defer listeners.Close()

	for listeners.Next() {
		var artistID, userID string
		var rank int
		if err := listeners.Scan(&artistID, &userID, &rank); err != nil {
			return nil, fmt.Errorf("failed to scan artist listener: %w", err)
		}
		if a, ok := out[artistID]; ok {
			a.ListenerRanks[userID] = rank
		}
	}

	return out, listeners.Err()
}

// SaveArtist upserts name and genres; listener ranks are untouched.
func (r *ArtistRepository) SaveArtist(ctx context.Context, a *profile.Artist) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO artists (id, name, genres, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			genres = EXCLUDED.genres,
			updated_at = NOW()
	`, a.ID, a.Name, nonNilSlice(a.Genres))
	if err != nil {
		return fmt.Errorf("failed to save artist: %w", err)
	}
	return nil
}

// SetListenerRank sets one listener's rank, creating the artist if needed.
func (r *ArtistRepository) SetListenerRank(ctx context.Context, artistID, userID string, rank int) error {
	return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO artists (id) VALUES ($1)
			ON CONFLICT (id) DO NOTHING
		`, artistID); err != nil {
			return fmt.Errorf("failed to ensure artist: %w", err)
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO artist_listeners (artist_id, user_id, rank)
			VALUES ($1, $2, $3)
			ON CONFLICT (artist_id, user_id) DO UPDATE SET
				rank = EXCLUDED.rank,
				updated_at = NOW()
		`, artistID, userID, rank); err != nil {
			return fmt.Errorf("failed to set listener rank: %w", err)
		}
		return nil
	})
}

// RemoveListener drops a listener from the artist index.
func (r *ArtistRepository) RemoveListener(ctx context.Context, artistID, userID string) error {
	_, err := r.conn.Exec(ctx, `
		DELETE FROM artist_listeners WHERE artist_id = $1 AND user_id = $2
	`, artistID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove artist listener: %w", err)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// GENRE REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// GenreRepository implements profile.GenreRepository for PostgreSQL.
type GenreRepository struct {
	conn *Connection
}

// NewGenreRepository creates a new GenreRepository.
func NewGenreRepository(conn *Connection) *GenreRepository {
	return &GenreRepository{conn: conn}
}

var _ profile.GenreRepository = (*GenreRepository)(nil)

// GetGenre returns a genre with its listener counts.
func (r *GenreRepository) GetGenre(ctx context.Context, name string) (*profile.Genre, error) {
	g := &profile.Genre{ListenerCounts: make(map[string]int)}
	err := r.conn.QueryRow(ctx, `SELECT name, updated_at FROM genres WHERE name = $1`, name).
		Scan(&g.Name, &g.UpdatedAt)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrGenreNotFound
		}
		return nil, fmt.Errorf("failed to get genre: %w", err)
	}

	rows, err := r.conn.Query(ctx, `
		SELECT user_id, listen_count FROM genre_listeners WHERE genre = $1
	`, name)
	if err != nil {
		return nil, fmt.Errorf("failed to query genre listeners: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var userID string
		var count int
		if err := rows.Scan(&userID, &count); err != nil {
			return nil, fmt.Errorf("failed to scan genre listener: %w", err)
		}
		g.ListenerCounts[userID] = count
	}

	return g, rows.Err()
}

// SetListenerCount sets one listener's count, creating the genre if needed.
func (r *GenreRepository) SetListenerCount(ctx context.Context, name, userID string, count int) error {
	return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO genres (name) VALUES ($1)
			ON CONFLICT (name) DO UPDATE SET updated_at = $2
		`, name, time.Now().UTC()); err != nil {
			return fmt.Errorf("failed to ensure genre: %w", err)
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO genre_listeners (genre, user_id, listen_count)
			VALUES ($1, $2, $3)
			ON CONFLICT (genre, user_id) DO UPDATE SET
				listen_count = EXCLUDED.listen_count,
				updated_at = NOW()
		`, name, userID, count); err != nil {
			return fmt.Errorf("failed to set listener count: %w", err)
		}
		return nil
	})
}

// RemoveListener drops a listener from the genre index.
func (r *GenreRepository) RemoveListener(ctx context.Context, name, userID string) error {
	_, err := r.conn.Exec(ctx, `
		DELETE FROM genre_listeners WHERE genre = $1 AND user_id = $2
	`, name, userID)
	if err != nil {
		return fmt.Errorf("failed to remove genre listener: %w", err)
	}
	return nil
}
