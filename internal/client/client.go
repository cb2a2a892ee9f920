package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kjstillabower/station-watch/internal/circuitbreaker"
	"github.com/kjstillabower/station-watch/internal/models"
	"github.com/kjstillabower/station-watch/internal/observability"
)

// Fetcher returns the latest reading for a station id. Implementations must
// not touch the watchlist; every failure is reported as an error wrapping
// ErrFetchFailed.
type Fetcher interface {
	Fetch(ctx context.Context, stationID string) (models.Reading, error)
}

const (
	DefaultURLTemplate = "http://www.bom.gov.au/fwo/IDN60801/IDN60801.%s.json"
	DefaultUserAgent   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/97.0.4692.71 Safari/537.36"
)

var (
	ErrFetchFailed     = errors.New("fetch failed")
	ErrStationNotFound = errors.New("station not found upstream")
	ErrUpstreamFailure = errors.New("upstream failure")
	ErrRateLimited     = errors.New("rate limited")
	ErrParse           = errors.New("parse observation")
)

// BOMClient fetches station observations from the Bureau of Meteorology JSON feed.
type BOMClient struct {
	urlTemplate    string
	userAgent      string
	timeout        time.Duration
	client         *http.Client
	retryAttempts  int
	retryBaseDelay time.Duration
	retryMaxDelay  time.Duration
	breaker        *circuitbreaker.CircuitBreaker
	limiter        *rate.Limiter
}

// Options configures a BOMClient. Zero values take defaults.
type Options struct {
	URLTemplate    string
	UserAgent      string
	Timeout        time.Duration
	RetryAttempts  int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
}

// NewBOMClient validates opts and returns a client. The URL template must
// contain exactly one %s, replaced by the station id.
func NewBOMClient(opts Options) (*BOMClient, error) {
	if opts.URLTemplate == "" {
		opts.URLTemplate = DefaultURLTemplate
	}
	if strings.Count(opts.URLTemplate, "%s") != 1 {
		return nil, fmt.Errorf("url template %q must contain exactly one %%s", opts.URLTemplate)
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = 1
	}
	if opts.RetryBaseDelay <= 0 {
		opts.RetryBaseDelay = 100 * time.Millisecond
	}
	if opts.RetryMaxDelay < opts.RetryBaseDelay {
		opts.RetryMaxDelay = opts.RetryBaseDelay
	}

	return &BOMClient{
		urlTemplate:    opts.URLTemplate,
		userAgent:      opts.UserAgent,
		timeout:        opts.Timeout,
		retryAttempts:  opts.RetryAttempts,
		retryBaseDelay: opts.RetryBaseDelay,
		retryMaxDelay:  opts.RetryMaxDelay,
		client: &http.Client{
			Timeout: opts.Timeout,
		},
	}, nil
}

// SetCircuitBreaker guards every Fetch with cb. nil disables it.
func (c *BOMClient) SetCircuitBreaker(cb *circuitbreaker.CircuitBreaker) {
	c.breaker = cb
}

// SetRateLimiter makes every upstream attempt wait for a token from l. nil disables it.
func (c *BOMClient) SetRateLimiter(l *rate.Limiter) {
	c.limiter = l
}

// bomResponse is the part of the feed we read. Only the newest observation
// (data[0]) is used.
type bomResponse struct {
	Observations *struct {
		Data []bomObservation `json:"data"`
	} `json:"observations"`
}

type bomObservation struct {
	AirTemp   *float64    `json:"air_temp"`
	RelHum    *float64    `json:"rel_hum"`
	RainTrace *flexString `json:"rain_trace"`
}

// flexString accepts a JSON string or number; the feed has used both for rain_trace.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// Fetch implements Fetcher with bounded retries for transient failures. The
// circuit breaker sees one outcome per Fetch, and only failures that say the
// upstream itself is unhealthy count against it.
func (c *BOMClient) Fetch(ctx context.Context, stationID string) (models.Reading, error) {
	if c.breaker == nil {
		return c.fetchWithRetry(ctx, stationID)
	}

	var (
		result   models.Reading
		fetchErr error
	)
	err := c.breaker.Call(ctx, func() error {
		result, fetchErr = c.fetchWithRetry(ctx, stationID)
		if fetchErr != nil && !IsUpstreamFailure(fetchErr) {
			return nil
		}
		return fetchErr
	})
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return models.Reading{}, fmt.Errorf("%w: station %s: %w", ErrFetchFailed, stationID, err)
	}
	return result, fetchErr
}

// IsUpstreamFailure reports whether err says the feed as a whole is unhealthy
// (transport, timeout, 429, 5xx) rather than one station being unknown or
// returning a malformed document.
func IsUpstreamFailure(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrStationNotFound) && !errors.Is(err, ErrParse)
}

func (c *BOMClient) fetchWithRetry(ctx context.Context, stationID string) (models.Reading, error) {
	var lastErr error

	for attempt := 0; attempt < c.retryAttempts; attempt++ {
		if attempt > 0 {
			observability.FetchRetriesTotal.Inc()
			delay := c.calculateBackoff(attempt)
			select {
			case <-ctx.Done():
				return models.Reading{}, fmt.Errorf("%w: %w", ErrFetchFailed, ctx.Err())
			case <-time.After(delay):
			}
		}

		result, err := c.attempt(ctx, stationID)
		if err == nil {
			return result, nil
		}

		lastErr = err
		if !isRetryable(err) {
			return models.Reading{}, fmt.Errorf("%w: station %s: %w", ErrFetchFailed, stationID, err)
		}
	}

	return models.Reading{}, fmt.Errorf("%w: station %s: exhausted retries: %w", ErrFetchFailed, stationID, lastErr)
}

func (c *BOMClient) attempt(ctx context.Context, stationID string) (models.Reading, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return models.Reading{}, fmt.Errorf("rate limiter wait: %w", err)
		}
	}
	return c.callAPI(ctx, stationID)
}

func (c *BOMClient) callAPI(ctx context.Context, stationID string) (models.Reading, error) {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.stationURL(stationID), nil)
	if err != nil {
		observability.FetchCallsTotal.WithLabelValues("error").Inc()
		return models.Reading{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		observability.FetchCallsTotal.WithLabelValues("error").Inc()
		observability.FetchDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return models.Reading{}, fmt.Errorf("request timeout: %w", err)
		}
		return models.Reading{}, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	status := statusLabel(resp.StatusCode)
	observability.FetchCallsTotal.WithLabelValues(status).Inc()
	observability.FetchDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())

	if err := handleErrorResponse(resp); err != nil {
		return models.Reading{}, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.Reading{}, fmt.Errorf("read response body: %w", err)
	}
	return parseObservation(body, time.Now())
}

func (c *BOMClient) stationURL(stationID string) string {
	return fmt.Sprintf(c.urlTemplate, url.PathEscape(stationID))
}

// parseObservation extracts the newest observation. A payload without
// observations.data[0] is an error; missing fields inside it are not.
func parseObservation(body []byte, observedAt time.Time) (models.Reading, error) {
	var apiResp bomResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return models.Reading{}, fmt.Errorf("%w: %w", ErrParse, err)
	}
	if apiResp.Observations == nil {
		return models.Reading{}, fmt.Errorf("%w: observations not found", ErrParse)
	}
	if apiResp.Observations.Data == nil {
		return models.Reading{}, fmt.Errorf("%w: data array not found", ErrParse)
	}
	if len(apiResp.Observations.Data) == 0 {
		return models.Reading{}, fmt.Errorf("%w: first item not found", ErrParse)
	}

	obs := apiResp.Observations.Data[0]
	reading := models.Reading{ObservedAt: observedAt}
	if obs.AirTemp != nil {
		v := *obs.AirTemp
		reading.TemperatureC = &v
	}
	if obs.RelHum != nil {
		v := int(*obs.RelHum)
		reading.HumidityPct = &v
	}
	if obs.RainTrace != nil {
		v := string(*obs.RainTrace)
		reading.RainTrace = &v
	}
	return reading, nil
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUpstreamFailure) {
		return true
	}

	errStr := err.Error()
	return strings.Contains(errStr, "timeout") || strings.Contains(errStr, "context deadline exceeded")
}

func (c *BOMClient) calculateBackoff(attempt int) time.Duration {
	delay := float64(c.retryBaseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(c.retryMaxDelay) {
		delay = float64(c.retryMaxDelay)
	}

	jitter := delay * 0.1 * rand.Float64()
	return time.Duration(delay + jitter)
}

func handleErrorResponse(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusNotFound:
		return ErrStationNotFound
	case http.StatusTooManyRequests:
		return ErrRateLimited
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, resp.StatusCode)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: HTTP %d", resp.StatusCode)
	}
	return nil
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}
