package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jakobreinwald/cs-130-project-sub000/internal/domain/matching"
	"github.com/jakobreinwald/cs-130-project-sub000/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// MATCH REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// MatchRepository implements matching.Repository for PostgreSQL.
type MatchRepository struct {
	conn *Connection
}

// NewMatchRepository creates a new MatchRepository.
func NewMatchRepository(conn *Connection) *MatchRepository {
	return &MatchRepository{conn: conn}
}

var _ matching.Repository = (*MatchRepository)(nil)

const matchColumns = `
	user_a, user_b, score, shared_artist_ids, shared_genres, shared_track_ids,
	created_at, updated_at
`

// UpsertMutual writes the match and flips both outcomes to matched in one
// transaction. Each flip requires the stored outcome to still be liked or
// matched; a concurrent dismiss rolls the transaction back with ErrNotMutual.
// Users are updated in pair order so concurrent upserts of the same pair
// cannot deadlock; conflicts that still occur are retried.
func (r *MatchRepository) UpsertMutual(ctx context.Context, m *matching.Match) error {
	first, second := matching.PairKey(m.UserA, m.UserB)

	return r.conn.WithRetryTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		if err := promoteToMatched(ctx, tx, first, second); err != nil {
			return err
		}
		if err := promoteToMatched(ctx, tx, second, first); err != nil {
			return err
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO matches (`+matchColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (user_a, user_b) DO UPDATE SET
				score = EXCLUDED.score,
				shared_artist_ids = EXCLUDED.shared_artist_ids,
				shared_genres = EXCLUDED.shared_genres,
				shared_track_ids = EXCLUDED.shared_track_ids,
				updated_at = EXCLUDED.updated_at
		`,
			first,
			second,
			m.Score,
			nonNilSlice(m.SharedArtistIDs),
			nonNilSlice(m.SharedGenres),
			nonNilSlice(m.SharedTrackIDs),
			m.CreatedAt,
			m.UpdatedAt,
		)
		if err != nil {
			if IsForeignKeyViolation(err) {
				return shared.ErrUserNotFound
			}
			return fmt.Errorf("failed to upsert match: %w", err)
		}
		return nil
	})
}

// Save overwrites score and shared items of an existing match.
func (r *MatchRepository) Save(ctx context.Context, m *matching.Match) error {
	first, second := matching.PairKey(m.UserA, m.UserB)

	result, err := r.conn.Exec(ctx, `
		UPDATE matches SET
			score = $3,
			shared_artist_ids = $4,
			shared_genres = $5,
			shared_track_ids = $6,
			updated_at = $7
		WHERE user_a = $1 AND user_b = $2
	`,
		first,
		second,
		m.Score,
		nonNilSlice(m.SharedArtistIDs),
		nonNilSlice(m.SharedGenres),
		nonNilSlice(m.SharedTrackIDs),
		m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save match: %w", err)
	}

	if result.RowsAffected() == 0 {
		return shared.ErrMatchNotFound
	}

	return nil
}

// Get returns the match of a pair in either argument order.
func (r *MatchRepository) Get(ctx context.Context, userA, userB string) (*matching.Match, error) {
	first, second := matching.PairKey(userA, userB)

	row := r.conn.QueryRow(ctx, `
		SELECT `+matchColumns+`
		FROM matches
		WHERE user_a = $1 AND user_b = $2
	`, first, second)

	m, err := scanMatch(row)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to get match: %w", err)
	}
	return m, nil
}

// ListByUser returns every match the user is part of, ordered by match ID.
func (r *MatchRepository) ListByUser(ctx context.Context, userID string) ([]*matching.Match, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT `+matchColumns+`
		FROM matches
		WHERE user_a = $1 OR user_b = $1
		ORDER BY user_a COLLATE "C", user_b COLLATE "C"
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}
	defer rows.Close()

	matches := make([]*matching.Match, 0)
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		matches = append(matches, m)
	}

	return matches, rows.Err()
}

func scanMatch(row pgx.Row) (*matching.Match, error) {
	var m matching.Match
	err := row.Scan(
		&m.UserA,
		&m.UserB,
		&m.Score,
		&m.SharedArtistIDs,
		&m.SharedGenres,
		&m.SharedTrackIDs,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}
