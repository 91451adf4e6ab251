// Package catalog resolves game identifiers against the RAWG games API.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dimitrije/gamevault-api/internal/metrics"
	"github.com/dimitrije/gamevault-api/internal/models"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

var (
	ErrNotFound      = errors.New("game not found in catalog")
	ErrNotConfigured = errors.New("catalog API key is not configured")
	// ErrInvalidGame marks a response without a game id. It wraps ErrNotFound.
	ErrInvalidGame   = fmt.Errorf("invalid game data: %w", ErrNotFound)
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 40
	maxBackoff      = 5 * time.Second
	dateLayout      = "2006-01-02"
)

type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	maxRetries int
	retryDelay time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    newBreaker(),
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		logger:     logger.Named("catalog"),
		now:        time.Now,
	}
}

func newBreaker() *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "rawg",
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
		// A missing game is an answer, not an outage.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound)
		},
	})
}

// GameByID resolves card-level metadata for one game.
func (c *Client) GameByID(ctx context.Context, id string) (*models.Game, error) {
	start := time.Now()
	var raw rawGame
	err := c.get(ctx, "/games/"+url.PathEscape(id), nil, &raw)
	metrics.CatalogLookupDuration.Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		metrics.CatalogLookups.WithLabelValues(metrics.ResultOK).Inc()
	case errors.Is(err, ErrNotFound):
		metrics.CatalogLookups.WithLabelValues(metrics.ResultNotFound).Inc()
		return nil, err
	default:
		metrics.CatalogLookups.WithLabelValues(metrics.ResultError).Inc()
		return nil, err
	}

	game := toGame(raw)
	return &game, nil
}

// GameDetails returns the full game page. The cover image leads the
// screenshot list; a failed screenshot fetch leaves only the cover.
func (c *Client) GameDetails(ctx context.Context, id string) (*models.GameDetails, error) {
	path := "/games/" + url.PathEscape(id)

	var raw rawGame
	if err := c.get(ctx, path, nil, &raw); err != nil {
		return nil, err
	}
	if raw.ID == 0 {
		return nil, fmt.Errorf("%w for %s", ErrInvalidGame, id)
	}

	var shots rawScreenshots
	if err := c.get(ctx, path+"/screenshots", nil, &shots); err != nil {
		c.logger.Warn("failed to fetch screenshots", zap.String("game_id", id), zap.Error(err))
	}

	details := toGameDetails(raw)
	if raw.BackgroundImage != nil && *raw.BackgroundImage != "" {
		details.Screenshots = append(details.Screenshots, *raw.BackgroundImage)
	}
	for _, s := range shots.Results {
		if s.Image != "" {
			details.Screenshots = append(details.Screenshots, s.Image)
		}
	}
	return &details, nil
}

type GamesQuery struct {
	Page       int
	PageSize   int
	Search     string
	Ordering   string
	Metacritic string
	Dates      string
	Platforms  string
}

// Games lists catalog games. Ordering defaults to -metacritic and dates to
// the last ten years. Results without a cover image are dropped.
func (c *Client) Games(ctx context.Context, q GamesQuery) (*models.GamesPage, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	switch {
	case q.PageSize < 1:
		q.PageSize = DefaultPageSize
	case q.PageSize > MaxPageSize:
		q.PageSize = MaxPageSize
	}
	if q.Ordering == "" {
		q.Ordering = "-metacritic"
	}
	if q.Dates == "" {
		q.Dates = c.dateRange(c.now().AddDate(-10, 0, 0))
	}

	params := url.Values{}
	params.Set("page", fmt.Sprint(q.Page))
	params.Set("page_size", fmt.Sprint(q.PageSize))
	params.Set("ordering", q.Ordering)
	params.Set("dates", q.Dates)
	if q.Search != "" {
		params.Set("search", q.Search)
	}
	if q.Metacritic != "" {
		params.Set("metacritic", q.Metacritic)
	}
	if q.Platforms != "" {
		params.Set("platforms", q.Platforms)
	}

	var raw rawGamesPage
	if err := c.get(ctx, "/games", params, &raw); err != nil {
		return nil, err
	}

	page := &models.GamesPage{Results: make([]models.Game, 0, len(raw.Results)), Count: raw.Count}
	for _, g := range raw.Results {
		if g.BackgroundImage == nil || *g.BackgroundImage == "" {
			continue
		}
		page.Results = append(page.Results, toGame(g))
	}
	return page, nil
}

// Popular lists critically acclaimed games (metacritic 80-100).
func (c *Client) Popular(ctx context.Context) ([]models.Game, error) {
	page, err := c.Games(ctx, GamesQuery{Ordering: "-metacritic", Metacritic: "80,100"})
	if err != nil {
		return nil, err
	}
	return page.Results, nil
}

// Trending lists the most added games of the last month.
func (c *Client) Trending(ctx context.Context) ([]models.Game, error) {
	page, err := c.Games(ctx, GamesQuery{Ordering: "-added", Dates: c.dateRange(c.now().AddDate(0, -1, 0))})
	if err != nil {
		return nil, err
	}
	return page.Results, nil
}

func (c *Client) dateRange(from time.Time) string {
	return from.Format(dateLayout) + "," + c.now().Format(dateLayout)
}

func (c *Client) BreakerState() gobreaker.State {
	return c.breaker.State()
}

func (c *Client) get(ctx context.Context, path string, params url.Values, result any) error {
	if c.apiKey == "" {
		return ErrNotConfigured
	}
	if params == nil {
		params = url.Values{}
	}
	params.Set("key", c.apiKey)
	target := c.baseURL + path + "?" + params.Encode()

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * c.retryDelay
			if backoff > maxBackoff {
				backoff = maxBackoff
			}

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		body, err := c.breaker.Execute(func() (interface{}, error) {
			return c.do(ctx, target)
		})
		if err == nil {
			if err := json.Unmarshal(body.([]byte), result); err != nil {
				return fmt.Errorf("decode catalog response: %w", err)
			}
			return nil
		}

		lastErr = err
		if !shouldRetry(err) {
			break
		}
		c.logger.Debug("catalog request failed, retrying",
			zap.String("path", path),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}

	if errors.Is(lastErr, ErrNotFound) {
		return lastErr
	}
	return fmt.Errorf("catalog %s: %w", path, lastErr)
}

func (c *Client) do(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Code: resp.StatusCode}
	}
	return body, nil
}

// StatusError is a non-2xx catalog response other than 404.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected catalog status %d", e.Code)
}

func shouldRetry(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrNotFound) {
		return false
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) && se.Code >= 400 && se.Code < 500 && se.Code != http.StatusTooManyRequests {
		return false
	}
	return true
}
