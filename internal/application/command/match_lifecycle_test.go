package command

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jakobreinwald/cs-130-project-sub000/internal/domain/profile"
	"github.com/jakobreinwald/cs-130-project-sub000/internal/domain/shared"
)

// seedPair stores two users with identical taste that both rank artist "1"
// first.
func seedPair(t *testing.T, f *fixture, a, b string) {
	t.Helper()
	ctx := context.Background()
	uf := userFixture{
		genres:  map[string]int{"rock": 1, "pop": 2, "rap": 3},
		artists: []string{"1"},
		tracks:  []string{"t1", "t2"},
	}
	f.saveUser(t, a, uf)
	f.saveUser(t, b, uf)
	require.NoError(t, f.store.Artists().SetListenerRank(ctx, "1", a, 0))
	require.NoError(t, f.store.Artists().SetListenerRank(ctx, "1", b, 0))
}

func lifecycleHandlers(f *fixture) (*LikeCandidateHandler, *DismissCandidateHandler) {
	like := NewLikeCandidateHandler(f.store, f.store.Matches(), f.locker, f.log, f.clock)
	dismiss := NewDismissCandidateHandler(f.store.Users(), f.locker)
	return like, dismiss
}

func TestDismissCandidate_NeverCreatesMatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seedPair(t, f, "alice", "bob")
	_, dismiss := lifecycleHandlers(f)

	res, err := dismiss.Handle(ctx, DismissCandidateCommand{UserID: "alice", CandidateID: "bob"})
	require.NoError(t, err)
	assert.Equal(t, profile.OutcomeDismissed, res.Outcome)

	again, err := dismiss.Handle(ctx, DismissCandidateCommand{UserID: "alice", CandidateID: "bob"})
	require.NoError(t, err)
	assert.Equal(t, profile.OutcomeDismissed, again.Outcome)

	assert.Equal(t, profile.OutcomeDismissed, f.user(t, "alice").Outcome("bob"))
	assert.Equal(t, 0, f.store.Count())
}

func TestLikeCandidate_UnilateralLikeIsDormant(t *testing.T) {
	f := newFixture(t)
	seedPair(t, f, "alice", "bob")
	like, _ := lifecycleHandlers(f)

	res, err := like.Handle(context.Background(), LikeCandidateCommand{UserID: "alice", CandidateID: "bob"})
	require.NoError(t, err)

	assert.False(t, res.Mutual)
	assert.Nil(t, res.Match)
	assert.Equal(t, profile.OutcomeLiked, f.user(t, "alice").Outcome("bob"))
	assert.Equal(t, 0, f.store.Count())
}

func TestLikeCandidate_MutualLikeCreatesOneCanonicalMatch(t *testing.T) {
	orders := []struct {
		name          string
		first, second string
	}{
		{name: "alice first", first: "alice", second: "bob"},
		{name: "bob first", first: "bob", second: "alice"},
	}

	for _, tt := range orders {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t)
			seedPair(t, f, "alice", "bob")
			like, _ := lifecycleHandlers(f)

			_, err := like.Handle(ctx, LikeCandidateCommand{UserID: tt.first, CandidateID: tt.second})
			require.NoError(t, err)
			res, err := like.Handle(ctx, LikeCandidateCommand{UserID: tt.second, CandidateID: tt.first})
			require.NoError(t, err)

			assert.True(t, res.Mutual)
			assert.Equal(t, profile.OutcomeMatched, res.Outcome)
			require.NotNil(t, res.Match)
			assert.Equal(t, "alice:bob", res.Match.ID())
			assert.InDelta(t, 1.0, res.Match.Score, 1e-9)
			assert.Equal(t, []string{"1"}, res.Match.SharedArtistIDs)
			assert.Equal(t, []string{"t1", "t2"}, res.Match.SharedTrackIDs)
			assert.ElementsMatch(t, []string{"rock", "pop", "rap"}, res.Match.SharedGenres)

			assert.Equal(t, 1, f.store.Count())
			assert.Equal(t, profile.OutcomeMatched, f.user(t, "alice").Outcome("bob"))
			assert.Equal(t, profile.OutcomeMatched, f.user(t, "bob").Outcome("alice"))

			m, err := f.store.Matches().Get(ctx, "bob", "alice")
			require.NoError(t, err)
			assert.Equal(t, f.now, m.UpdatedAt)
		})
	}
}

func TestLikeCandidate_RepeatLikeAfterMatchIsNoop(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seedPair(t, f, "alice", "bob")
	like, _ := lifecycleHandlers(f)

	_, err := like.Handle(ctx, LikeCandidateCommand{UserID: "alice", CandidateID: "bob"})
	require.NoError(t, err)
	_, err = like.Handle(ctx, LikeCandidateCommand{UserID: "bob", CandidateID: "alice"})
	require.NoError(t, err)

	res, err := like.Handle(ctx, LikeCandidateCommand{UserID: "alice", CandidateID: "bob"})
	require.NoError(t, err)
	assert.True(t, res.Mutual)
	assert.NotNil(t, res.Match)
	assert.Equal(t, 1, f.store.Count())
}

func TestLikeCandidate_CandidateWithoutProfile(t *testing.T) {
	f := newFixture(t)
	f.saveUser(t, "alice", userFixture{genres: map[string]int{"rock": 1}, artists: []string{"1"}})
	like, _ := lifecycleHandlers(f)

	res, err := like.Handle(context.Background(), LikeCandidateCommand{UserID: "alice", CandidateID: "ghost"})
	require.NoError(t, err)
	assert.Equal(t, profile.OutcomeLiked, res.Outcome)
	assert.False(t, res.Mutual)
}

func TestLifecycle_RejectedTransitions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seedPair(t, f, "alice", "bob")
	like, dismiss := lifecycleHandlers(f)

	_, err := like.Handle(ctx, LikeCandidateCommand{UserID: "alice", CandidateID: "alice"})
	assert.ErrorIs(t, err, shared.ErrSelfMatch)

	_, err = dismiss.Handle(ctx, DismissCandidateCommand{UserID: "alice", CandidateID: "carol"})
	require.NoError(t, err)
	_, err = like.Handle(ctx, LikeCandidateCommand{UserID: "alice", CandidateID: "carol"})
	assert.ErrorIs(t, err, shared.ErrInvalidOutcomeTransition)

	_, err = like.Handle(ctx, LikeCandidateCommand{UserID: "alice", CandidateID: "bob"})
	require.NoError(t, err)
	_, err = like.Handle(ctx, LikeCandidateCommand{UserID: "bob", CandidateID: "alice"})
	require.NoError(t, err)

	_, err = dismiss.Handle(ctx, DismissCandidateCommand{UserID: "alice", CandidateID: "bob"})
	assert.True(t, shared.IsStateTransition(err))

	_, err = like.Handle(ctx, LikeCandidateCommand{UserID: "ghost", CandidateID: "bob"})
	assert.ErrorIs(t, err, shared.ErrUserNotFound)
}

// ──────────────────────────────────────────────────────────────────────────────
// Interleavings
// ──────────────────────────────────────────────────────────────────────────────

// hookedUsers runs onRead once, right after the watched user's profile has
// been read and before the caller acts on it.
type hookedUsers struct {
	profile.UserRepository
	watch  string
	onRead func()
	once   sync.Once
}

func (r *hookedUsers) GetUser(ctx context.Context, id string) (*profile.User, error) {
	u, err := r.UserRepository.GetUser(ctx, id)
	if id == r.watch {
		r.once.Do(r.onRead)
	}
	return u, err
}

type repoWithUsers struct {
	profile.Repository
	users profile.UserRepository
}

func (r repoWithUsers) Users() profile.UserRepository { return r.users }

func TestLikeCandidate_DismissAfterCandidateReadIsKept(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seedPair(t, f, "alice", "bob")
	like, dismiss := lifecycleHandlers(f)

	_, err := like.Handle(ctx, LikeCandidateCommand{UserID: "bob", CandidateID: "alice"})
	require.NoError(t, err)

	var dismissErr error
	users := &hookedUsers{
		UserRepository: f.store.Users(),
		watch:          "bob",
		onRead: func() {
			_, dismissErr = dismiss.Handle(ctx, DismissCandidateCommand{UserID: "bob", CandidateID: "alice"})
		},
	}
	hooked := NewLikeCandidateHandler(repoWithUsers{Repository: f.store, users: users}, f.store.Matches(), f.locker, f.log, f.clock)

	res, err := hooked.Handle(ctx, LikeCandidateCommand{UserID: "alice", CandidateID: "bob"})
	require.NoError(t, err)
	require.NoError(t, dismissErr)

	assert.False(t, res.Mutual)
	assert.Nil(t, res.Match)
	assert.Equal(t, profile.OutcomeLiked, res.Outcome)
	assert.Equal(t, profile.OutcomeDismissed, f.user(t, "bob").Outcome("alice"))
	assert.Equal(t, profile.OutcomeLiked, f.user(t, "alice").Outcome("bob"))
	assert.Equal(t, 0, f.store.Count())
}

func TestDismissCandidate_MatchAfterReadRejectsDismissal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seedPair(t, f, "alice", "bob")
	like, _ := lifecycleHandlers(f)

	_, err := like.Handle(ctx, LikeCandidateCommand{UserID: "bob", CandidateID: "alice"})
	require.NoError(t, err)

	var likeRes *LikeCandidateResult
	var likeErr error
	users := &hookedUsers{
		UserRepository: f.store.Users(),
		watch:          "bob",
		onRead: func() {
			likeRes, likeErr = like.Handle(ctx, LikeCandidateCommand{UserID: "alice", CandidateID: "bob"})
		},
	}
	hooked := NewDismissCandidateHandler(users, f.locker)

	_, err = hooked.Handle(ctx, DismissCandidateCommand{UserID: "bob", CandidateID: "alice"})
	assert.ErrorIs(t, err, shared.ErrInvalidOutcomeTransition)

	require.NoError(t, likeErr)
	assert.True(t, likeRes.Mutual)
	assert.Equal(t, profile.OutcomeMatched, f.user(t, "bob").Outcome("alice"))
	assert.Equal(t, profile.OutcomeMatched, f.user(t, "alice").Outcome("bob"))
	assert.Equal(t, 1, f.store.Count())
}

func TestLikeCandidate_ConcurrentReciprocalLikes(t *testing.T) {
	for i := 0; i < 50; i++ {
		ctx := context.Background()
		f := newFixture(t)
		seedPair(t, f, "alice", "bob")
		like, _ := lifecycleHandlers(f)

		start := make(chan struct{})
		results := make([]*LikeCandidateResult, 2)
		errs := make([]error, 2)
		var wg sync.WaitGroup
		for n, pair := range [][2]string{{"alice", "bob"}, {"bob", "alice"}} {
			wg.Add(1)
			go func(n int, user, candidate string) {
				defer wg.Done()
				<-start
				results[n], errs[n] = like.Handle(ctx, LikeCandidateCommand{UserID: user, CandidateID: candidate})
			}(n, pair[0], pair[1])
		}
		close(start)
		wg.Wait()

		require.NoError(t, errs[0])
		require.NoError(t, errs[1])
		assert.True(t, results[0].Mutual || results[1].Mutual)
		assert.Equal(t, 1, f.store.Count())
		assert.Equal(t, profile.OutcomeMatched, f.user(t, "alice").Outcome("bob"))
		assert.Equal(t, profile.OutcomeMatched, f.user(t, "bob").Outcome("alice"))
	}
}

func TestLikeCandidate_ConcurrentDismissIsNeverOverwritten(t *testing.T) {
	for i := 0; i < 50; i++ {
		ctx := context.Background()
		f := newFixture(t)
		seedPair(t, f, "alice", "bob")
		like, dismiss := lifecycleHandlers(f)

		_, err := like.Handle(ctx, LikeCandidateCommand{UserID: "bob", CandidateID: "alice"})
		require.NoError(t, err)

		start := make(chan struct{})
		var (
			wg         sync.WaitGroup
			likeRes    *LikeCandidateResult
			likeErr    error
			dismissErr error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			<-start
			likeRes, likeErr = like.Handle(ctx, LikeCandidateCommand{UserID: "alice", CandidateID: "bob"})
		}()
		go func() {
			defer wg.Done()
			<-start
			_, dismissErr = dismiss.Handle(ctx, DismissCandidateCommand{UserID: "bob", CandidateID: "alice"})
		}()
		close(start)
		wg.Wait()

		require.NoError(t, likeErr)
		bob := f.user(t, "bob").Outcome("alice")
		alice := f.user(t, "alice").Outcome("bob")

		if dismissErr == nil {
			assert.Equal(t, profile.OutcomeDismissed, bob)
			assert.Equal(t, profile.OutcomeLiked, alice)
			assert.False(t, likeRes.Mutual)
			assert.Equal(t, 0, f.store.Count())
		} else {
			assert.ErrorIs(t, dismissErr, shared.ErrInvalidOutcomeTransition)
			assert.Equal(t, profile.OutcomeMatched, bob)
			assert.Equal(t, profile.OutcomeMatched, alice)
			assert.True(t, likeRes.Mutual)
			assert.Equal(t, 1, f.store.Count())
		}
	}
}
