package postgres

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_users",
			UpSQL:   migration001Up,
		},
		{
			Version: 2,
			Name:    "create_listener_indexes",
			UpSQL:   migration002Up,
		},
		{
			Version: 3,
			Name:    "create_matches",
			UpSQL:   migration003Up,
		},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE USERS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Listener profiles. Outcome maps are JSONB, updated one key at a time
-- with jsonb_set.
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    display_name TEXT NOT NULL DEFAULT '',
    genre_counts JSONB NOT NULL DEFAULT '{}'::jsonb,
    top_artist_ids TEXT[] NOT NULL DEFAULT '{}',
    top_track_ids TEXT[] NOT NULL DEFAULT '{}',
    match_outcomes JSONB NOT NULL DEFAULT '{}'::jsonb,
    artist_offset INTEGER NOT NULL DEFAULT 0,
    track_offset INTEGER NOT NULL DEFAULT 0,
    rec_playlist_id TEXT NOT NULL DEFAULT '',
    synced_at TIMESTAMP WITH TIME ZONE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_artist_offset CHECK (artist_offset >= 0),
    CONSTRAINT valid_track_offset CHECK (track_offset >= 0)
);

-- Every track ever recommended to a user, in insertion order.
CREATE TABLE IF NOT EXISTS recommended_tracks (
    user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    track_id TEXT NOT NULL,
    seq BIGSERIAL NOT NULL,
    outcome VARCHAR(10) NOT NULL DEFAULT 'none',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (user_id, track_id),
    CONSTRAINT valid_track_outcome CHECK (outcome IN ('none', 'liked', 'dismissed'))
);

CREATE INDEX IF NOT EXISTS idx_recommended_tracks_user_seq ON recommended_tracks(user_id, seq);
CREATE INDEX IF NOT EXISTS idx_recommended_tracks_fresh ON recommended_tracks(user_id, seq) WHERE outcome = 'none';

CREATE OR REPLACE FUNCTION update_updated_at_column()
RETURNS TRIGGER AS $$
BEGIN
    NEW.updated_at = NOW();
    RETURN NEW;
END;
$$ language 'plpgsql';

DROP TRIGGER IF EXISTS update_users_updated_at ON users;
CREATE TRIGGER update_users_updated_at
    BEFORE UPDATE ON users
    FOR EACH ROW
    EXECUTE FUNCTION update_updated_at_column();
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: ARTIST & GENRE LISTENER INDEXES
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
CREATE TABLE IF NOT EXISTS artists (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL DEFAULT '',
    genres TEXT[] NOT NULL DEFAULT '{}',
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

-- rank is the artist's position in the listener's top list (0 = most listened)
CREATE TABLE IF NOT EXISTS artist_listeners (
    artist_id TEXT NOT NULL REFERENCES artists(id) ON DELETE CASCADE,
    user_id TEXT NOT NULL,
    rank INTEGER NOT NULL,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (artist_id, user_id),
    CONSTRAINT valid_rank CHECK (rank >= 0)
);

CREATE INDEX IF NOT EXISTS idx_artist_listeners_user ON artist_listeners(user_id);

CREATE TABLE IF NOT EXISTS genres (
    name TEXT PRIMARY KEY,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS genre_listeners (
    genre TEXT NOT NULL REFERENCES genres(name) ON DELETE CASCADE,
    user_id TEXT NOT NULL,
    listen_count INTEGER NOT NULL,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (genre, user_id),
    CONSTRAINT valid_listen_count CHECK (listen_count >= 0)
);

CREATE INDEX IF NOT EXISTS idx_genre_listeners_user ON genre_listeners(user_id);
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: MATCHES
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
-- One row per unordered pair; user_a < user_b in byte order.
CREATE TABLE IF NOT EXISTS matches (
    user_a TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    user_b TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    score DOUBLE PRECISION NOT NULL,
    shared_artist_ids TEXT[] NOT NULL DEFAULT '{}',
    shared_genres TEXT[] NOT NULL DEFAULT '{}',
    shared_track_ids TEXT[] NOT NULL DEFAULT '{}',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (user_a, user_b),
    CONSTRAINT canonical_pair CHECK (user_a COLLATE "C" < user_b COLLATE "C"),
    CONSTRAINT valid_score CHECK (score = -1 OR (score >= 0 AND score <= 1))
);

CREATE INDEX IF NOT EXISTS idx_matches_user_b ON matches(user_b);
CREATE INDEX IF NOT EXISTS idx_matches_updated_at ON matches(updated_at);
`
