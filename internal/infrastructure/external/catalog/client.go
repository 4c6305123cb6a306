package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/jakobreinwald/cs-130-project-sub000/internal/domain/music"
	"github.com/jakobreinwald/cs-130-project-sub000/internal/domain/shared"
	"github.com/jakobreinwald/cs-130-project-sub000/pkg/logger"
	"github.com/jakobreinwald/cs-130-project-sub000/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the catalog client.
type ClientConfig struct {
	// BaseURL is the Web API root, e.g. https://api.spotify.com/v1
	BaseURL string

	// Timeout is the per-request HTTP timeout
	Timeout time.Duration

	// RateLimiter configuration
	RateLimiter RateLimiterConfig

	// Retry settings for transport errors and 5xx responses
	MaxRetries     int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration

	// Circuit breaker settings
	BreakerThreshold   int
	BreakerTimeout     time.Duration
	BreakerHalfOpenMax int

	// TimeRange is the affinity window for top lists
	TimeRange string

	// Logger for client operations
	Logger *logger.Logger

	// Debug enables per-request logging
	Debug bool
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		BaseURL:            "https://api.spotify.com/v1",
		Timeout:            10 * time.Second,
		RateLimiter:        DefaultRateLimiterConfig(),
		MaxRetries:         2,
		RetryBaseDelay:     250 * time.Millisecond,
		RetryMaxDelay:      5 * time.Second,
		BreakerThreshold:   5,
		BreakerTimeout:     30 * time.Second,
		BreakerHalfOpenMax: 1,
		TimeRange:          "medium_term",
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client talks to the catalog Web API on behalf of a user access token.
// It implements music.Catalog.
type Client struct {
	config      ClientConfig
	httpClient  *http.Client
	logger      *logger.Logger
	rateLimiter *RateLimiter
	breaker     *gobreaker.CircuitBreaker[[]byte]
	retrier     *retry.Retrier
	mapper      *Mapper
	now         func() time.Time
}

var _ music.Catalog = (*Client)(nil)

// NewClient creates a new catalog client.
func NewClient(config ClientConfig) *Client {
	defaults := DefaultClientConfig()
	if config.BaseURL == "" {
		config.BaseURL = defaults.BaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.BreakerThreshold <= 0 {
		config.BreakerThreshold = defaults.BreakerThreshold
	}
	if config.BreakerHalfOpenMax <= 0 {
		config.BreakerHalfOpenMax = defaults.BreakerHalfOpenMax
	}
	if config.TimeRange == "" {
		config.TimeRange = defaults.TimeRange
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}

	log := config.Logger
	if log == nil {
		log = logger.Default()
	}
	log = log.With(logger.Component("catalog"))

	c := &Client{
		config:      config,
		httpClient:  &http.Client{Timeout: config.Timeout},
		logger:      log,
		rateLimiter: NewRateLimiter(config.RateLimiter),
		mapper:      NewMapper(),
		now:         time.Now,
	}

	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "catalog-api",
		MaxRequests: uint32(config.BreakerHalfOpenMax),
		Interval:    time.Minute,
		Timeout:     config.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(config.BreakerThreshold)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state change",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		},
		// Only outages and timeouts count as failures.
		IsSuccessful: func(err error) bool {
			return err == nil || !isOutage(err)
		},
	})

	c.retrier = retry.CatalogRetrier(
		retry.WithMaxAttempts(config.MaxRetries+1),
		retry.WithInitialDelay(config.RetryBaseDelay),
		retry.WithMaxDelay(config.RetryMaxDelay),
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			log.Warn("catalog request retry",
				logger.Int("attempt", attempt),
				logger.Duration("delay", delay),
				logger.Err(err),
			)
		}),
	)

	return c
}

// ══════════════════════════════════════════════════════════════════════════════
// PROFILE OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// FetchProfile returns the owner of token.
func (c *Client) FetchProfile(ctx context.Context, token string) (*music.Profile, error) {
	var dto UserDTO
	if err := c.doRequest(ctx, token, http.MethodGet, "/me", nil, nil, &dto); err != nil {
		return nil, fmt.Errorf("fetch profile: %w", err)
	}
	p, err := c.mapper.ProfileFromDTO(&dto)
	if err != nil || p.ID == "" {
		return nil, fmt.Errorf("fetch profile: %w", shared.ErrCatalogInvalidResponse)
	}
	return p, nil
}

// FetchTopArtists returns the user's top artists, most listened first.
func (c *Client) FetchTopArtists(ctx context.Context, token string, limit int) ([]music.Artist, error) {
	var page PagingDTO[*ArtistDTO]
	if err := c.doRequest(ctx, token, http.MethodGet, "/me/top/artists", c.topQuery(limit), nil, &page); err != nil {
		return nil, fmt.Errorf("fetch top artists: %w", err)
	}
	return c.mapper.ArtistsFromDTOs(page.Items), nil
}

// FetchTopTracks returns the user's top tracks, most listened first.
func (c *Client) FetchTopTracks(ctx context.Context, token string, limit int) ([]music.Track, error) {
	var page PagingDTO[*TrackDTO]
	if err := c.doRequest(ctx, token, http.MethodGet, "/me/top/tracks", c.topQuery(limit), nil, &page); err != nil {
		return nil, fmt.Errorf("fetch top tracks: %w", err)
	}
	return c.mapper.TracksFromDTOs(page.Items), nil
}

func (c *Client) topQuery(limit int) url.Values {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(clamp(limit, 1, 50)))
	q.Set("time_range", c.config.TimeRange)
	return q
}

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG LOOKUPS
// ══════════════════════════════════════════════════════════════════════════════

// FetchArtists returns artists by ID. Unknown IDs are skipped.
func (c *Client) FetchArtists(ctx context.Context, token string, ids []string) ([]music.Artist, error) {
	var out []music.Artist
	for _, chunk := range chunks(ids, music.MaxBatchIDs) {
		q := url.Values{}
		q.Set("ids", strings.Join(chunk, ","))

		var resp ArtistsResponseDTO
		if err := c.doRequest(ctx, token, http.MethodGet, "/artists", q, nil, &resp); err != nil {
			return nil, fmt.Errorf("fetch artists: %w", err)
		}
		out = append(out, c.mapper.ArtistsFromDTOs(resp.Artists)...)
	}
	return out, nil
}

// FetchTracks returns tracks by ID. Unknown IDs are skipped.
func (c *Client) FetchTracks(ctx context.Context, token string, ids []string) ([]music.Track, error) {
	var out []music.Track
	for _, chunk := range chunks(ids, music.MaxBatchIDs) {
		q := url.Values{}
		q.Set("ids", strings.Join(chunk, ","))

		var resp TracksResponseDTO
		if err := c.doRequest(ctx, token, http.MethodGet, "/tracks", q, nil, &resp); err != nil {
			return nil, fmt.Errorf("fetch tracks: %w", err)
		}
		out = append(out, c.mapper.TracksFromDTOs(resp.Tracks)...)
	}
	return out, nil
}

// FetchRecommendedTracks returns a batch of tracks seeded by artists and tracks.
// At most music.MaxSeeds seeds in total are accepted.
func (c *Client) FetchRecommendedTracks(ctx context.Context, token string, seedArtists, seedTracks []string, limit int) ([]music.Track, error) {
	seeds := len(seedArtists) + len(seedTracks)
	if seeds == 0 || seeds > music.MaxSeeds {
		return nil, fmt.Errorf("fetch recommendations: %d seeds: %w", seeds, shared.ErrInvalidInput)
	}

	q := url.Values{}
	if len(seedArtists) > 0 {
		q.Set("seed_artists", strings.Join(seedArtists, ","))
	}
	if len(seedTracks) > 0 {
		q.Set("seed_tracks", strings.Join(seedTracks, ","))
	}
	q.Set("limit", strconv.Itoa(clamp(limit, 1, 100)))

	var resp TracksResponseDTO
	if err := c.doRequest(ctx, token, http.MethodGet, "/recommendations", q, nil, &resp); err != nil {
		return nil, fmt.Errorf("fetch recommendations: %w", err)
	}
	return c.mapper.TracksFromDTOs(resp.Tracks), nil
}

// ══════════════════════════════════════════════════════════════════════════════
// PLAYLIST OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// FetchPlaylist returns a playlist or shared.ErrPlaylistNotFound.
func (c *Client) FetchPlaylist(ctx context.Context, token, playlistID string) (*music.Playlist, error) {
	q := url.Values{}
	q.Set("fields", "id,name,owner(id,display_name),tracks(total)")

	var dto PlaylistDTO
	path := "/playlists/" + url.PathEscape(playlistID)
	if err := c.doRequest(ctx, token, http.MethodGet, path, q, nil, &dto); err != nil {
		return nil, fmt.Errorf("fetch playlist %s: %w", playlistID, playlistErr(err))
	}
	return c.mapper.PlaylistFromDTO(&dto, c.now())
}

// CreatePlaylist creates a private playlist owned by userID.
func (c *Client) CreatePlaylist(ctx context.Context, token, userID, name string) (*music.Playlist, error) {
	body := CreatePlaylistRequestDTO{
		Name:        name,
		Public:      false,
		Description: "Tracks you liked from your recommendations",
	}

	var dto PlaylistDTO
	path := "/users/" + url.PathEscape(userID) + "/playlists"
	if err := c.doRequest(ctx, token, http.MethodPost, path, nil, body, &dto); err != nil {
		return nil, fmt.Errorf("create playlist: %w", err)
	}
	if dto.ID == "" {
		return nil, fmt.Errorf("create playlist: %w", shared.ErrCatalogInvalidResponse)
	}
	return c.mapper.PlaylistFromDTO(&dto, c.now())
}

// AddTrackToPlaylist appends a track. A deleted playlist yields shared.ErrPlaylistNotFound.
func (c *Client) AddTrackToPlaylist(ctx context.Context, token, playlistID, trackID string) error {
	body := AddTracksRequestDTO{URIs: []string{TrackURI(trackID)}}

	var snapshot SnapshotDTO
	path := "/playlists/" + url.PathEscape(playlistID) + "/tracks"
	if err := c.doRequest(ctx, token, http.MethodPost, path, nil, body, &snapshot); err != nil {
		return fmt.Errorf("add track %s to playlist %s: %w", trackID, playlistID, playlistErr(err))
	}
	return nil
}

func playlistErr(err error) error {
	if shared.IsNotFound(err) {
		return shared.ErrPlaylistNotFound
	}
	return err
}

// ══════════════════════════════════════════════════════════════════════════════
// HTTP REQUEST HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// APIError is a non-2xx catalog response other than 429.
type APIError struct {
	Status  int
	Message string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("catalog api error: status %d", e.Status)
	}
	return fmt.Sprintf("catalog api error: status %d: %s", e.Status, e.Message)
}

// Is maps the status code onto the shared error kinds.
func (e *APIError) Is(target error) bool {
	return errors.Is(e.kind(), target)
}

func (e *APIError) kind() error {
	switch {
	case e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden:
		return shared.ErrCatalogUnauthorized
	case e.Status == http.StatusNotFound:
		return shared.ErrNotFound
	case e.Status >= 500:
		return shared.ErrCatalogUnavailable
	default:
		return shared.ErrInvalidInput
	}
}

// doRequest performs a request through the circuit breaker, retrying
// transport errors and 5xx responses with backoff.
func (c *Client) doRequest(ctx context.Context, token, method, path string, query url.Values, body, result any) error {
	if token == "" {
		return shared.ErrMissingAccessToken
	}

	respBody, err := c.breaker.Execute(func() ([]byte, error) {
		var data []byte
		err := c.retrier.Do(ctx, func(ctx context.Context) error {
			var err error
			data, err = c.doSingleRequest(ctx, token, method, path, query, body)
			return err
		})
		return data, err
	})
	if err != nil {
		return c.mapError(ctx, err)
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("%w: %v", shared.ErrCatalogInvalidResponse, err)
		}
	}
	return nil
}

func (c *Client) mapError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return fmt.Errorf("%w: %v", shared.ErrCatalogUnavailable, err)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", shared.ErrCatalogTimeout, err)
	case errors.Is(err, context.Canceled):
		return err
	}

	var rl *RateLimitError
	if errors.As(err, &rl) {
		c.logger.Warn("catalog rate limited", logger.Duration("retry_after", rl.RetryAfter))
	}
	return err
}

// doSingleRequest performs one HTTP round trip. Retryable failures are
// wrapped with retry.Retryable; everything else ends the retry loop.
func (c *Client) doSingleRequest(ctx context.Context, token, method, path string, query url.Values, body any) ([]byte, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	fullURL := c.config.BaseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.config.Debug {
		c.logger.Debug("catalog api request", logger.String("method", method), logger.String("path", path))
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportErr(ctx, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, retry.Retryable(fmt.Errorf("%w: read response: %v", shared.ErrCatalogUnavailable, err))
	}

	if c.config.Debug {
		c.logger.Debug("catalog api response",
			logger.String("path", path),
			logger.Int("status", resp.StatusCode),
			logger.Latency(time.Since(start)),
		)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"), c.now(), c.config.RateLimiter.DefaultRetryAfter)
		c.rateLimiter.RecordRateLimitHit(retryAfter)
		return nil, &RateLimitError{RetryAfter: retryAfter, Message: "catalog rate limit exceeded"}
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode}
		var errBody ErrorResponseDTO
		if json.Unmarshal(respBody, &errBody) == nil {
			apiErr.Message = errBody.Error.Message
		}
		if resp.StatusCode >= 500 {
			return nil, retry.Retryable(apiErr)
		}
		return nil, apiErr
	}

	return respBody, nil
}

func transportErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return retry.Retryable(fmt.Errorf("%w: %v", shared.ErrCatalogTimeout, err))
	}
	return retry.Retryable(fmt.Errorf("%w: %v", shared.ErrCatalogUnavailable, err))
}

// isOutage reports errors that count against the circuit breaker.
func isOutage(err error) bool {
	return errors.Is(err, shared.ErrUpstreamUnavailable) || errors.Is(err, shared.ErrTimeout)
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(v string, now time.Time, fallback time.Duration) time.Duration {
	if fallback <= 0 {
		fallback = 30 * time.Second
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return fallback
	}
	if seconds, err := strconv.Atoi(v); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
		return 0
	}
	return fallback
}

func chunks(ids []string, size int) [][]string {
	var out [][]string
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		out = append(out, ids[start:end])
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH AND STATUS
// ══════════════════════════════════════════════════════════════════════════════

// ClientStatus is the current status of the client.
type ClientStatus struct {
	Breaker     string            `json:"breaker"`
	RateLimiter RateLimiterStatus `json:"rate_limiter"`
}

// Status returns the current status of the client.
func (c *Client) Status() ClientStatus {
	return ClientStatus{
		Breaker:     c.breaker.State().String(),
		RateLimiter: c.rateLimiter.Status(),
	}
}

// Healthy reports whether the circuit breaker lets requests through.
func (c *Client) Healthy() bool {
	return c.breaker.State() != gobreaker.StateOpen
}
