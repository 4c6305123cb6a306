package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jakobreinwald/cs-130-project-sub000/internal/domain/profile"
	"github.com/jakobreinwald/cs-130-project-sub000/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// USER REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// UserRepository implements profile.UserRepository for PostgreSQL.
type UserRepository struct {
	conn *Connection
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(conn *Connection) *UserRepository {
	return &UserRepository{conn: conn}
}

var _ profile.UserRepository = (*UserRepository)(nil)

// ─────────────────────────────────────────────────────────────────────────────
// Profile
// ─────────────────────────────────────────────────────────────────────────────

// GetUser returns a profile together with its recommendation ledger.
func (r *UserRepository) GetUser(ctx context.Context, id string) (*profile.User, error) {
	query := `
		SELECT id, display_name, genre_counts, top_artist_ids, top_track_ids,
			   match_outcomes, artist_offset, track_offset, rec_playlist_id,
			   synced_at, created_at, updated_at
		FROM users
		WHERE id = $1
	`

	u, err := r.scanUser(r.conn.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}

	ledger, err := r.loadLedger(ctx, id)
	if err != nil {
		return nil, err
	}
	u.RecommendedTracks = ledger

	return u, nil
}

func (r *UserRepository) scanUser(row pgx.Row) (*profile.User, error) {
	var (
		u            profile.User
		genresJSON   []byte
		outcomesJSON []byte
		syncedAt     *time.Time
	)

	err := row.Scan(
		&u.ID,
		&u.DisplayName,
		&genresJSON,
		&u.TopArtistIDs,
		&u.TopTrackIDs,
		&outcomesJSON,
		&u.SeedCursor.ArtistOffset,
		&u.SeedCursor.TrackOffset,
		&u.RecPlaylistID,
		&syncedAt,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	if err := json.Unmarshal(genresJSON, &u.GenreCounts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal genre counts: %w", err)
	}
	if err := json.Unmarshal(outcomesJSON, &u.MatchOutcomes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal match outcomes: %w", err)
	}
	if u.GenreCounts == nil {
		u.GenreCounts = make(map[string]int)
	}
	if u.MatchOutcomes == nil {
		u.MatchOutcomes = make(map[string]profile.MatchOutcome)
	}
	if syncedAt != nil {
		u.SyncedAt = *syncedAt
	}

	return &u, nil
}

func (r *UserRepository) loadLedger(ctx context.Context, userID string) (profile.TrackLedger, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT track_id, outcome
		FROM recommended_tracks
		WHERE user_id = $1
		ORDER BY seq
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query recommended tracks: %w", err)
	}
	defer rows.Close()

	var ledger profile.TrackLedger
	for rows.Next() {
		var rt profile.RecommendedTrack
		var outcome string
		if err := rows.Scan(&rt.TrackID, &outcome); err != nil {
			return nil, fmt.Errorf("failed to scan recommended track: %w", err)
		}
		rt.Outcome = profile.TrackOutcome(outcome)
		ledger = append(ledger, rt)
	}

	return ledger, rows.Err()
}

// SaveUser upserts the synced fields. Existing outcome maps and the ledger
// are never overwritten; ledger rows of a new user are inserted.
func (r *UserRepository) SaveUser(ctx context.Context, u *profile.User) error {
	if u == nil || u.ID == "" {
		return shared.ErrEmptyUserID
	}

	genresJSON, err := json.Marshal(nonNilMap(u.GenreCounts))
	if err != nil {
		return fmt.Errorf("failed to marshal genre counts: %w", err)
	}
	outcomesJSON, err := json.Marshal(nonNilMap(u.MatchOutcomes))
	if err != nil {
		return fmt.Errorf("failed to marshal match outcomes: %w", err)
	}

	cursor := u.SeedCursor.Clamp(len(u.TopArtistIDs), len(u.TopTrackIDs))
	var syncedAt *time.Time
	if !u.SyncedAt.IsZero() {
		syncedAt = &u.SyncedAt
	}

	query := `
		INSERT INTO users (
			id, display_name, genre_counts, top_artist_ids, top_track_ids,
			match_outcomes, artist_offset, track_offset, rec_playlist_id, synced_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			genre_counts = EXCLUDED.genre_counts,
			top_artist_ids = EXCLUDED.top_artist_ids,
			top_track_ids = EXCLUDED.top_track_ids,
			artist_offset = EXCLUDED.artist_offset,
			track_offset = EXCLUDED.track_offset,
			rec_playlist_id = COALESCE(NULLIF(EXCLUDED.rec_playlist_id, ''), users.rec_playlist_id),
			synced_at = COALESCE(EXCLUDED.synced_at, users.synced_at)
	`

	return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, query,
			u.ID,
			u.DisplayName,
			genresJSON,
			nonNilSlice(u.TopArtistIDs),
			nonNilSlice(u.TopTrackIDs),
			outcomesJSON,
			cursor.ArtistOffset,
			cursor.TrackOffset,
			u.RecPlaylistID,
			syncedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to save user: %w", err)
		}

		if len(u.RecommendedTracks) == 0 {
			return nil
		}

		ids := make([]string, len(u.RecommendedTracks))
		outcomes := make([]string, len(u.RecommendedTracks))
		for i, rt := range u.RecommendedTracks {
			ids[i] = rt.TrackID
			outcomes[i] = string(rt.Outcome)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO recommended_tracks (user_id, track_id, outcome)
			SELECT $1, t.track_id, t.outcome
			FROM unnest($2::text[], $3::text[]) WITH ORDINALITY AS t(track_id, outcome, ord)
			ORDER BY t.ord
			ON CONFLICT (user_id, track_id) DO NOTHING
		`, u.ID, ids, outcomes)
		if err != nil {
			return fmt.Errorf("failed to save recommended tracks: %w", err)
		}
		return nil
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Match outcomes
// ─────────────────────────────────────────────────────────────────────────────

// TransitionMatchOutcome moves a single key of the outcome map from one
// outcome to another. The row is only updated while the stored value still
// equals from; a missing key compares as none.
func (r *UserRepository) TransitionMatchOutcome(ctx context.Context, userID, candidateID string, from, to profile.MatchOutcome) error {
	result, err := r.conn.Exec(ctx, `
		UPDATE users
		SET match_outcomes = jsonb_set(match_outcomes, ARRAY[$2::text], to_jsonb($4::text), true)
		WHERE id = $1 AND COALESCE(match_outcomes->>$2, 'none') = $3
	`, userID, candidateID, string(from), string(to))
	if err != nil {
		return fmt.Errorf("failed to set match outcome: %w", err)
	}

	if result.RowsAffected() == 0 {
		return missingUserOr(ctx, r.conn, userID, shared.ErrOutcomeChanged)
	}

	return nil
}

// promoteToMatched flips userID's outcome for candidateID to matched, but
// only while it is still liked or matched.
func promoteToMatched(ctx context.Context, q Querier, userID, candidateID string) error {
	result, err := q.Exec(ctx, `
		UPDATE users
		SET match_outcomes = jsonb_set(match_outcomes, ARRAY[$2::text], to_jsonb($3::text), true)
		WHERE id = $1 AND match_outcomes->>$2 IN ('liked', 'matched')
	`, userID, candidateID, string(profile.OutcomeMatched))
	if err != nil {
		return fmt.Errorf("failed to promote match outcome: %w", err)
	}

	if result.RowsAffected() == 0 {
		return missingUserOr(ctx, q, userID, shared.ErrNotMutual)
	}

	return nil
}

// missingUserOr returns ErrUserNotFound when the user row is absent and
// otherwise the given error.
func missingUserOr(ctx context.Context, q Querier, userID string, otherwise error) error {
	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check user: %w", err)
	}
	if !exists {
		return shared.ErrUserNotFound
	}
	return otherwise
}

// SeedCandidates inserts missing candidates as none. Existing keys win
// the JSONB concatenation, so outcomes are never downgraded.
func (r *UserRepository) SeedCandidates(ctx context.Context, userID string, candidateIDs []string) (map[string]profile.MatchOutcome, error) {
	var outcomesJSON []byte
	err := r.conn.QueryRow(ctx, `
		UPDATE users
		SET match_outcomes = COALESCE(
			(SELECT jsonb_object_agg(c, 'none'::text) FROM unnest($2::text[]) AS c),
			'{}'::jsonb
		) || match_outcomes
		WHERE id = $1
		RETURNING match_outcomes
	`, userID, nonNilSlice(candidateIDs)).Scan(&outcomesJSON)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to seed candidates: %w", err)
	}

	outcomes := make(map[string]profile.MatchOutcome)
	if err := json.Unmarshal(outcomesJSON, &outcomes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal match outcomes: %w", err)
	}

	return outcomes, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Recommendation ledger
// ─────────────────────────────────────────────────────────────────────────────

// SetTrackOutcome updates one ledger entry.
func (r *UserRepository) SetTrackOutcome(ctx context.Context, userID, trackID string, outcome profile.TrackOutcome) error {
	result, err := r.conn.Exec(ctx, `
		UPDATE recommended_tracks
		SET outcome = $3, updated_at = NOW()
		WHERE user_id = $1 AND track_id = $2
	`, userID, trackID, string(outcome))
	if err != nil {
		return fmt.Errorf("failed to set track outcome: %w", err)
	}

	if result.RowsAffected() > 0 {
		return nil
	}

	if err := r.exists(ctx, userID); err != nil {
		return err
	}
	return shared.ErrTrackNotRecommended
}

// AppendRecommendations records new tracks as none and moves the seed
// cursor in one transaction. Tracks already in the ledger keep their outcome.
func (r *UserRepository) AppendRecommendations(ctx context.Context, userID string, trackIDs []string, cursor profile.SeedCursor) error {
	return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx, `
			UPDATE users SET
				artist_offset = CASE WHEN $2 >= 0 AND $2 < cardinality(top_artist_ids) THEN $2 ELSE 0 END,
				track_offset = CASE WHEN $3 >= 0 AND $3 < cardinality(top_track_ids) THEN $3 ELSE 0 END
			WHERE id = $1
		`, userID, cursor.ArtistOffset, cursor.TrackOffset)
		if err != nil {
			return fmt.Errorf("failed to update seed cursor: %w", err)
		}
		if result.RowsAffected() == 0 {
			return shared.ErrUserNotFound
		}

		if len(trackIDs) == 0 {
			return nil
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO recommended_tracks (user_id, track_id)
			SELECT $1, t.track_id
			FROM unnest($2::text[]) WITH ORDINALITY AS t(track_id, ord)
			ORDER BY t.ord
			ON CONFLICT (user_id, track_id) DO NOTHING
		`, userID, trackIDs)
		if err != nil {
			return fmt.Errorf("failed to append recommended tracks: %w", err)
		}
		return nil
	})
}

// SetPlaylistID stores the recommendation playlist ID.
func (r *UserRepository) SetPlaylistID(ctx context.Context, userID, playlistID string) error {
	result, err := r.conn.Exec(ctx, `UPDATE users SET rec_playlist_id = $2 WHERE id = $1`, userID, playlistID)
	if err != nil {
		return fmt.Errorf("failed to set playlist id: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) exists(ctx context.Context, userID string) error {
	var found bool
	err := r.conn.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&found)
	if err != nil {
		return fmt.Errorf("failed to check user: %w", err)
	}
	if !found {
		return shared.ErrUserNotFound
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func nonNilMap[V any](m map[string]V) map[string]V {
	if m == nil {
		return map[string]V{}
	}
	return m
}

func nonNilSlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
