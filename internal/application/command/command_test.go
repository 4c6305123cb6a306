package command

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jakobreinwald/cs-130-project-sub000/internal/domain/music"
	"github.com/jakobreinwald/cs-130-project-sub000/internal/domain/profile"
	"github.com/jakobreinwald/cs-130-project-sub000/internal/domain/shared"
	"github.com/jakobreinwald/cs-130-project-sub000/internal/infrastructure/persistence/memory"
	"github.com/jakobreinwald/cs-130-project-sub000/pkg/logger"
)

// ──────────────────────────────────────────────────────────────────────────────
// Fake catalog
// ──────────────────────────────────────────────────────────────────────────────

type seedCall struct {
	artists []string
	tracks  []string
}

type fakeCatalog struct {
	mu sync.Mutex

	profile    music.Profile
	topArtists []music.Artist
	topTracks  []music.Track

	artists    map[string]music.Artist
	artistsErr error

	tracks     map[string]music.Track
	trackCalls int

	// batches are served one per FetchRecommendedTracks call; past the end
	// the catalog returns an empty batch. recErr is returned on call
	// number recErrAt (1-based).
	batches  [][]music.Track
	recErr   error
	recErrAt int
	seeds    []seedCall

	playlists    map[string]*music.Playlist
	added        map[string][]string
	addErr       error
	nextPlaylist int
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		profile:   music.Profile{ID: "u1", DisplayName: "User One"},
		artists:   make(map[string]music.Artist),
		tracks:    make(map[string]music.Track),
		playlists: make(map[string]*music.Playlist),
		added:     make(map[string][]string),
	}
}

func (c *fakeCatalog) FetchProfile(ctx context.Context, token string) (*music.Profile, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.profile
	return &p, nil
}

func (c *fakeCatalog) FetchTopArtists(ctx context.Context, token string, limit int) ([]music.Artist, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]music.Artist(nil), c.topArtists...), nil
}

func (c *fakeCatalog) FetchTopTracks(ctx context.Context, token string, limit int) ([]music.Track, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]music.Track(nil), c.topTracks...), nil
}

func (c *fakeCatalog) FetchArtists(ctx context.Context, token string, ids []string) ([]music.Artist, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.artistsErr != nil {
		return nil, c.artistsErr
	}
	out := make([]music.Artist, 0, len(ids))
	for _, id := range ids {
		if a, ok := c.artists[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func (c *fakeCatalog) FetchTracks(ctx context.Context, token string, ids []string) ([]music.Track, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.trackCalls++
	out := make([]music.Track, 0, len(ids))
	for _, id := range ids {
		if t, ok := c.tracks[id]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func (c *fakeCatalog) FetchRecommendedTracks(ctx context.Context, token string, seedArtists, seedTracks []string, limit int) ([]music.Track, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seeds = append(c.seeds, seedCall{artists: seedArtists, tracks: seedTracks})
	call := len(c.seeds)
	if c.recErrAt == call {
		return nil, c.recErr
	}
	if call > len(c.batches) {
		return nil, nil
	}
	return c.batches[call-1], nil
}

func (c *fakeCatalog) FetchPlaylist(ctx context.Context, token, playlistID string) (*music.Playlist, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.playlists[playlistID]
	if !ok {
		return nil, shared.ErrPlaylistNotFound
	}
	cp := *p
	return &cp, nil
}

func (c *fakeCatalog) CreatePlaylist(ctx context.Context, token, userID, name string) (*music.Playlist, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextPlaylist++
	p := &music.Playlist{ID: fmt.Sprintf("pl%d", c.nextPlaylist), Name: name, OwnerID: userID}
	c.playlists[p.ID] = p
	cp := *p
	return &cp, nil
}

func (c *fakeCatalog) AddTrackToPlaylist(ctx context.Context, token, playlistID, trackID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.addErr != nil {
		return c.addErr
	}
	p, ok := c.playlists[playlistID]
	if !ok {
		return shared.ErrPlaylistNotFound
	}
	p.TrackCount++
	c.added[playlistID] = append(c.added[playlistID], trackID)
	return nil
}

func (c *fakeCatalog) seedCalls() []seedCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]seedCall(nil), c.seeds...)
}

// ──────────────────────────────────────────────────────────────────────────────
// Fixtures
// ──────────────────────────────────────────────────────────────────────────────

type fixture struct {
	store   *memory.Store
	locker  *memory.Locker
	cache   *memory.TrackCache
	catalog *fakeCatalog
	log     *logger.Logger
	now     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:   memory.NewStore(),
		locker:  memory.NewLocker(),
		cache:   memory.NewTrackCache(),
		catalog: newFakeCatalog(),
		log:     logger.Nop(),
		now:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.store.SetClock(f.clock)
	return f
}

func (f *fixture) clock() time.Time { return f.now }

type userFixture struct {
	genres  map[string]int
	artists []string
	tracks  []string
}

func (f *fixture) saveUser(t *testing.T, id string, uf userFixture) {
	t.Helper()
	u, err := profile.NewUser(id, id)
	require.NoError(t, err)
	u.ApplyTopLists(uf.genres, uf.artists, uf.tracks)
	require.NoError(t, f.store.Users().SaveUser(context.Background(), u))
}

func (f *fixture) user(t *testing.T, id string) *profile.User {
	t.Helper()
	u, err := f.store.Users().GetUser(context.Background(), id)
	require.NoError(t, err)
	return u
}

func track(id string) music.Track {
	return music.Track{ID: id, Name: "Track " + id, URI: "catalog:track:" + id}
}

func tracks(ids ...string) []music.Track {
	out := make([]music.Track, 0, len(ids))
	for _, id := range ids {
		out = append(out, track(id))
	}
	return out
}

func trackIDsOf(ts []music.Track) []string {
	ids := make([]string, 0, len(ts))
	for _, t := range ts {
		ids = append(ids, t.ID)
	}
	return ids
}
