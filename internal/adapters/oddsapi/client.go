package oddsapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/alejandrodnm/propbet/internal/domain"
	"github.com/alejandrodnm/propbet/internal/ports"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://api.the-odds-api.com"
	defaultRegions = "eu"

	// The free plan allows a few hundred requests a month; the limiter only
	// protects against bursts, the gateway cache does the real saving.
	defaultRatePerSec = 1

	maxRetries        = 3
	baseRetryWait     = 500 * time.Millisecond
	defaultRetryAfter = time.Minute
)

// Config configures the The Odds API client.
type Config struct {
	BaseURL        string
	APIKey         string
	Regions        string
	RequestsPerSec float64
	Timeout        time.Duration
	RetryWait      time.Duration
}

// Client is an HTTP client for The Odds API (v4) with rate limiting and retries.
type Client struct {
	http      *http.Client
	baseURL   string
	apiKey    string
	regions   string
	limiter   *rate.Limiter
	retryWait time.Duration
}

var _ ports.OddsProvider = (*Client)(nil)

// NewClient creates a Client. Empty fields take the production values.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Regions == "" {
		cfg.Regions = defaultRegions
	}
	if cfg.RequestsPerSec <= 0 {
		cfg.RequestsPerSec = defaultRatePerSec
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = baseRetryWait
	}
	return &Client{
		http:      &http.Client{Timeout: cfg.Timeout},
		baseURL:   cfg.BaseURL,
		apiKey:    cfg.APIKey,
		regions:   cfg.Regions,
		limiter:   rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), 2),
		retryWait: cfg.RetryWait,
	}
}

// FetchOdds returns the matches with 1X2 odds for every requested sport.
// The first failing sport aborts the call, so callers that need per-sport
// isolation ask for one sport at a time. Errors are
// *domain.RateLimitedError or *domain.UpstreamError.
func (c *Client) FetchOdds(ctx context.Context, sportKeys []string) ([]domain.Match, error) {
	var matches []domain.Match
	for _, sport := range sportKeys {
		var events []eventDTO
		if err := c.get(ctx, c.oddsURL(sport), &events); err != nil {
			return nil, fmt.Errorf("oddsapi.FetchOdds: %s: %w", sport, err)
		}
		matches = append(matches, mapEvents(events, time.Now().UTC())...)
	}
	return matches, nil
}

func (c *Client) oddsURL(sport string) string {
	q := url.Values{}
	q.Set("apiKey", c.apiKey)
	q.Set("regions", c.regions)
	q.Set("markets", "h2h")
	q.Set("oddsFormat", "decimal")
	q.Set("dateFormat", "iso")
	return fmt.Sprintf("%s/v4/sports/%s/odds?%s", c.baseURL, url.PathEscape(sport), q.Encode())
}

// get performs a rate-limited GET with retries.
func (c *Client) get(ctx context.Context, rawURL string, out any) error {
	return c.doWithRetry(ctx, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return c.http.Do(req)
	}, out)
}

// doWithRetry runs fn with exponential backoff. A 429 is returned
// at once as a RateLimitedError so the caller can back off for the time the
// upstream asked for.
func (c *Client) doWithRetry(ctx context.Context, fn func() (*http.Response, error), out any) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return &domain.UpstreamError{Err: fmt.Errorf("rate limiter: %w", err)}
		}

		resp, err := fn()
		if err != nil {
			if attempt == maxRetries || ctx.Err() != nil {
				return &domain.UpstreamError{Err: fmt.Errorf("request failed after %d retries: %w", attempt, err)}
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
			slog.Warn("rate limited by odds API", "retry_after", retryAfter)
			return &domain.RateLimitedError{RetryAfter: retryAfter}
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			if attempt == maxRetries {
				return &domain.UpstreamError{
					StatusCode: resp.StatusCode,
					Err:        fmt.Errorf("server error after %d retries", maxRetries),
				}
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return &domain.UpstreamError{StatusCode: resp.StatusCode, Err: errors.New(string(body))}
		}

		defer resp.Body.Close()
		if remaining := resp.Header.Get("x-requests-remaining"); remaining != "" {
			slog.Debug("odds API quota", "remaining", remaining, "used", resp.Header.Get("x-requests-used"))
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &domain.UpstreamError{StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
		}
		return nil
	}
	return &domain.UpstreamError{Err: fmt.Errorf("exhausted %d retries", maxRetries)}
}

// sleep waits out the backoff for attempt unless ctx ends first.
func (c *Client) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * c.retryWait
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(v string, now time.Time) time.Duration {
	if v == "" {
		return defaultRetryAfter
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
		return 0
	}
	return defaultRetryAfter
}
