// Package finnhub provides a client for the Finnhub market data API
package finnhub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/bobmcallan/handspread/internal/common"
	"github.com/bobmcallan/handspread/internal/interfaces"
	"github.com/bobmcallan/handspread/internal/models"
)

// flexFloat handles JSON values that may be either a number or a string.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		*f = flexFloat(num)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s == "" || s == "N/A" {
			*f = 0
			return nil
		}
		num, err := strconv.ParseFloat(s, 64)
		if err != nil {
			*f = 0
			return nil
		}
		*f = flexFloat(num)
		return nil
	}
	return fmt.Errorf("cannot unmarshal %s into float64", string(data))
}

const (
	DefaultBaseURL       = "https://finnhub.io/api/v1"
	DefaultTimeout       = 30 * time.Second
	DefaultRateLimit     = 30 // requests per second, free-tier shaped
	DefaultTTL           = 300 * time.Second
	DefaultMaxConcurrent = 8

	vendorName = "finnhub"
)

// Client implements the MarketClient interface against Finnhub's quote and
// profile2 endpoints. Snapshots are cached whole so all fields of a cached
// symbol share one FetchedAt.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
	ttl        time.Duration
	sem        chan struct{}
	keepRaw    bool
	cache      *snapshotCache
	now        func() time.Time
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithTTL sets how long cached snapshots are reused. Zero disables reuse.
func WithTTL(ttl time.Duration) ClientOption {
	return func(c *Client) {
		c.ttl = ttl
	}
}

// WithMaxConcurrent caps simultaneous vendor fetches across all callers
func WithMaxConcurrent(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.sem = make(chan struct{}, n)
		}
	}
}

// WithRawPayloads keeps the vendor response bodies on the produced values
func WithRawPayloads(keep bool) ClientOption {
	return func(c *Client) {
		c.keepRaw = keep
	}
}

// NewClient creates a new Finnhub client
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  common.NewSilentLogger(),
		ttl:     DefaultTTL,
		sem:     make(chan struct{}, DefaultMaxConcurrent),
		cache:   newSnapshotCache(),
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

var _ interfaces.MarketClient = (*Client)(nil)

// APIError represents a vendor API error
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Finnhub API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// get performs a rate-limited GET request and returns the raw response body.
func (c *Client) get(ctx context.Context, path string, params url.Values) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("token", c.apiKey)

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	c.logger.Debug().Str("url", c.baseURL+path).Msg("Finnhub API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Endpoint:   path,
		}
	}

	return json.RawMessage(body), nil
}

// quoteResponse is the subset of /quote the snapshot needs.
type quoteResponse struct {
	Current *flexFloat `json:"c"`
}

// profileResponse is the subset of /stock/profile2 the snapshot needs.
// Both numeric fields are denominated in millions.
type profileResponse struct {
	Name                 string     `json:"name"`
	ShareOutstanding     *flexFloat `json:"shareOutstanding"`
	MarketCapitalization *flexFloat `json:"marketCapitalization"`
}

// FetchSnapshot retrieves the live quote and profile for a symbol. Snapshots
// within the TTL are served from cache without touching the vendor; concurrent
// fetches for the same symbol coalesce into one round-trip per endpoint.
func (c *Client) FetchSnapshot(ctx context.Context, symbol string) (*models.MarketSnapshot, error) {
	key := strings.ToUpper(strings.TrimSpace(symbol))
	if key == "" {
		return nil, fmt.Errorf("symbol required")
	}

	if snap, ok := c.cache.Get(key, c.ttl); ok {
		c.logger.Debug().Str("symbol", key).Msg("Snapshot served from cache")
		return snap, nil
	}

	v, err, _ := c.cache.group.Do(key, func() (interface{}, error) {
		// Re-check under singleflight: a waiter may arrive just after the
		// winner populated the cache.
		if snap, ok := c.cache.Get(key, c.ttl); ok {
			return snap, nil
		}
		snap, err := c.fetchSnapshot(ctx, key)
		if err != nil {
			return nil, err
		}
		c.cache.Put(key, snap)
		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.MarketSnapshot), nil
}

// fetchSnapshot performs the two vendor calls for one symbol under a single
// concurrency permit and assembles the snapshot.
func (c *Client) fetchSnapshot(ctx context.Context, symbol string) (*models.MarketSnapshot, error) {
	select {
	case c.sem <- struct{}{}:
		defer func() { <-c.sem }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	params := url.Values{}
	params.Set("symbol", symbol)

	quoteRaw, err := c.get(ctx, "/quote", params)
	if err != nil {
		return nil, fmt.Errorf("quote %s: %w", symbol, err)
	}

	params = url.Values{}
	params.Set("symbol", symbol)
	profileRaw, err := c.get(ctx, "/stock/profile2", params)
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", symbol, err)
	}

	var quote quoteResponse
	if err := json.Unmarshal(quoteRaw, &quote); err != nil {
		return nil, fmt.Errorf("decode quote %s: %w", symbol, err)
	}
	var profile profileResponse
	if err := json.Unmarshal(profileRaw, &profile); err != nil {
		return nil, fmt.Errorf("decode profile %s: %w", symbol, err)
	}

	snap := c.buildSnapshot(symbol, quote, profile, quoteRaw, profileRaw)

	c.logger.Debug().
		Str("symbol", symbol).
		Bool("has_price", snap.PriceValue() != nil).
		Bool("has_market_cap", snap.MarketCapValue() != nil).
		Msg("Fetched market snapshot")

	return snap, nil
}
