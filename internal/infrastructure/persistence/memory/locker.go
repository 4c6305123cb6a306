package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jakobreinwald/cs-130-project-sub000/internal/domain/music"
	"github.com/jakobreinwald/cs-130-project-sub000/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// KEYED LOCKER
// ══════════════════════════════════════════════════════════════════════════════

// Locker is an in-process per-user mutex. Entries are reference counted
// and dropped once no goroutine holds or waits for them.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	ch   chan struct{}
	refs int
}

// NewLocker creates a Locker.
func NewLocker() *Locker {
	return &Locker{locks: make(map[string]*keyedLock)}
}

// Lock implements shared.UserLocker.
func (l *Locker) Lock(ctx context.Context, userID string) (func(), error) {
	l.mu.Lock()
	kl, ok := l.locks[userID]
	if !ok {
		kl = &keyedLock{ch: make(chan struct{}, 1)}
		l.locks[userID] = kl
	}
	kl.refs++
	l.mu.Unlock()

	select {
	case kl.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(userID, kl)
		return nil, fmt.Errorf("%w: %w", shared.ErrLockNotAcquired, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-kl.ch
			l.release(userID, kl)
		})
	}, nil
}

func (l *Locker) release(userID string, kl *keyedLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, userID)
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// TRACK CACHE
// ══════════════════════════════════════════════════════════════════════════════

// TrackCache keeps full track objects in memory with per-entry expiry.
type TrackCache struct {
	mu     sync.RWMutex
	tracks map[string]cachedTrack
	now    func() time.Time
}

type cachedTrack struct {
	track     music.Track
	expiresAt time.Time
}

// NewTrackCache creates an empty TrackCache.
func NewTrackCache() *TrackCache {
	return &TrackCache{
		tracks: make(map[string]cachedTrack),
		now:    time.Now,
	}
}

// PutTracks implements music.TrackCache. A zero ttl never expires.
func (c *TrackCache) PutTracks(ctx context.Context, tracks []music.Track, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = c.now().Add(ttl)
	}
	for _, t := range tracks {
		c.tracks[t.ID] = cachedTrack{track: t, expiresAt: expiresAt}
	}
	return nil
}

// GetTracks implements music.TrackCache.
func (c *TrackCache) GetTracks(ctx context.Context, ids []string) (map[string]music.Track, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.now()
	out := make(map[string]music.Track, len(ids))
	for _, id := range ids {
		ct, ok := c.tracks[id]
		if !ok {
			continue
		}
		if !ct.expiresAt.IsZero() && now.After(ct.expiresAt) {
			continue
		}
		out[id] = ct.track
	}
	return out, nil
}

// DropTracks implements music.TrackCache.
func (c *TrackCache) DropTracks(ctx context.Context, ids []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, id := range ids {
		delete(c.tracks, id)
	}
	return nil
}
