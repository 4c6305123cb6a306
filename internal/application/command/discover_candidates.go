package command

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/jakobreinwald/cs-130-project-sub000/config"
	"github.com/jakobreinwald/cs-130-project-sub000/internal/domain/profile"
	"github.com/jakobreinwald/cs-130-project-sub000/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// DISCOVER CANDIDATES COMMAND
// Collects everyone who shares a top genre or a top artist with the user
// and seeds them into the user's outcome map as "none". Existing outcomes
// are never touched, so running it again changes nothing.
// ══════════════════════════════════════════════════════════════════════════════

// DiscoverCandidatesCommand contains the user to discover candidates for.
type DiscoverCandidatesCommand struct {
	UserID string
}

// Validate validates the command.
func (c DiscoverCandidatesCommand) Validate() error {
	if c.UserID == "" {
		return shared.ErrEmptyUserID
	}
	return nil
}

// DiscoverCandidatesResult contains the refreshed outcome map.
type DiscoverCandidatesResult struct {
	UserID string

	// Outcomes is the user's outcome map after seeding.
	Outcomes map[string]profile.MatchOutcome

	// Discovered is the number of distinct candidates found this run.
	Discovered int

	// Added is how many of them were not in the outcome map before.
	Added int
}

// DiscoverCandidatesHandler handles the DiscoverCandidatesCommand.
type DiscoverCandidatesHandler struct {
	users   profile.UserRepository
	artists profile.ArtistRepository
	genres  profile.GenreRepository
	flags   FeatureChecker

	concurrency int
}

// DiscoverCandidatesHandlerConfig contains configuration for the handler.
type DiscoverCandidatesHandlerConfig struct {
	// Concurrency bounds parallel Genre lookups.
	Concurrency int
}

// NewDiscoverCandidatesHandler creates a new DiscoverCandidatesHandler.
func NewDiscoverCandidatesHandler(
	repo profile.Repository,
	flags FeatureChecker,
	config DiscoverCandidatesHandlerConfig,
) *DiscoverCandidatesHandler {
	if config.Concurrency <= 0 {
		config.Concurrency = 8
	}
	return &DiscoverCandidatesHandler{
		users:       repo.Users(),
		artists:     repo.Artists(),
		genres:      repo.Genres(),
		flags:       flags,
		concurrency: config.Concurrency,
	}
}

// Handle executes the discover candidates command.
func (h *DiscoverCandidatesHandler) Handle(ctx context.Context, cmd DiscoverCandidatesCommand) (*DiscoverCandidatesResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("discover_candidates: validation failed: %w", err)
	}

	user, err := h.users.GetUser(ctx, cmd.UserID)
	if err != nil {
		return nil, fmt.Errorf("discover_candidates: failed to load user: %w", err)
	}

	candidates, err := h.collect(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("discover_candidates: %w", err)
	}

	added := 0
	for _, id := range candidates {
		if _, ok := user.MatchOutcomes[id]; !ok {
			added++
		}
	}

	outcomes, err := h.users.SeedCandidates(ctx, cmd.UserID, candidates)
	if err != nil {
		return nil, fmt.Errorf("discover_candidates: failed to seed candidates: %w", err)
	}

	return &DiscoverCandidatesResult{
		UserID:     cmd.UserID,
		Outcomes:   outcomes,
		Discovered: len(candidates),
		Added:      added,
	}, nil
}

// collect unions the listeners of the user's top genres and top artists,
// minus the user. Missing Genre or Artist records are skipped.
func (h *DiscoverCandidatesHandler) collect(ctx context.Context, user *profile.User) ([]string, error) {
	var (
		mu  sync.Mutex
		set = make(map[string]struct{})
	)
	add := func(listeners []string) {
		mu.Lock()
		defer mu.Unlock()
		for _, id := range listeners {
			set[id] = struct{}{}
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.concurrency)

	for _, name := range user.TopGenres(profile.MaxTopGenres) {
		g.Go(func() error {
			genre, err := h.genres.GetGenre(gctx, name)
			if shared.IsNotFound(err) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to load genre %q: %w", name, err)
			}
			add(keys(genre.ListenerCounts))
			return nil
		})
	}

	if featureOn(h.flags, config.FeatureArtistDiscovery, user.ID) && len(user.TopArtistIDs) > 0 {
		g.Go(func() error {
			artists, err := h.artists.GetArtists(gctx, user.TopArtistIDs)
			if err != nil {
				return fmt.Errorf("failed to load artists: %w", err)
			}
			for _, a := range artists {
				add(keys(a.ListenerRanks))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	delete(set, user.ID)
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
