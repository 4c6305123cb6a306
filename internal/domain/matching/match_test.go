package matching

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jakobreinwald/cs-130-project-sub000/internal/domain/profile"
	"github.com/jakobreinwald/cs-130-project-sub000/internal/domain/shared"
)

func TestPairKey_Canonical(t *testing.T) {
	a, b := PairKey("zed", "amy")
	assert.Equal(t, "amy", a)
	assert.Equal(t, "zed", b)
	assert.Equal(t, MatchID("amy", "zed"), MatchID("zed", "amy"))
	assert.Equal(t, "amy:zed", MatchID("zed", "amy"))
}

func TestNewMatch_OrderIndependent(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a := &profile.User{
		ID:           "bob",
		GenreCounts:  map[string]int{"rock": 3, "pop": 1},
		TopArtistIDs: []string{"1", "2"},
		TopTrackIDs:  []string{"t1", "t2", "t3"},
	}
	b := &profile.User{
		ID:           "alice",
		GenreCounts:  map[string]int{"rock": 1, "jazz": 2},
		TopArtistIDs: []string{"2", "3"},
		TopTrackIDs:  []string{"t3", "t9"},
	}
	artists := map[string]*profile.Artist{
		"1": {ID: "1", ListenerRanks: map[string]int{"bob": 0}},
		"2": {ID: "2", ListenerRanks: map[string]int{"bob": 1, "alice": 0}},
		"3": {ID: "3", ListenerRanks: map[string]int{"alice": 1}},
	}

	m1, err := NewMatch(a, b, artists, now)
	require.NoError(t, err)
	m2, err := NewMatch(b, a, artists, now)
	require.NoError(t, err)

	assert.Equal(t, m1, m2)
	assert.Equal(t, "alice", m1.UserA)
	assert.Equal(t, "bob", m1.UserB)
	assert.Equal(t, []string{"2"}, m1.SharedArtistIDs)
	assert.Equal(t, []string{"rock"}, m1.SharedGenres)
	assert.Equal(t, []string{"t3"}, m1.SharedTrackIDs)
	assert.True(t, m1.HasScore())
	assert.Equal(t, "bob", m1.Other("alice"))
}

func TestNewMatch_RejectsSelf(t *testing.T) {
	u := &profile.User{ID: "a"}
	_, err := NewMatch(u, u, nil, time.Now())
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestMatch_IsStale(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	m := &Match{UpdatedAt: now.Add(-StaleAfter)}
	assert.False(t, m.IsStale(now))

	m.UpdatedAt = now.Add(-StaleAfter - time.Second)
	assert.True(t, m.IsStale(now))
}

func TestArtistIDsFor_Dedupes(t *testing.T) {
	a := &profile.User{TopArtistIDs: []string{"1", "2"}}
	b := &profile.User{TopArtistIDs: []string{"2", "3"}}
	assert.Equal(t, []string{"1", "2", "3"}, ArtistIDsFor(a, nil, b))
}
