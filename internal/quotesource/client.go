// Package quotesource implements the engine's price-source client: one GET
// per metal against goldapi.io, rate-limited and retried with exponential
// backoff. Grounded on Alias1177-Predictor's internal/platform/http.Client
// (rate.Limiter + backoff.Retry wrapping a single http.Client.Do), and on
// the teacher's pkg/smartconnect doRequest for the header-building and
// non-2xx/malformed-JSON error handling shape.
package quotesource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"metalindexd/internal/model"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

const baseURL = "https://www.goldapi.io/api"

// Client fetches spot quotes for one metal at a time, rate-limited to the
// fixed XAU,XAG,XPT,XPD fetch cadence the engine drives per tick.
type Client struct {
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// New creates a Client with the given API key. requestsPerSecond bounds
// the outbound request rate; a burst of 1 keeps the engine's fixed fetch
// order strictly serialized.
func New(apiKey string, requestsPerSecond float64) *Client {
	return &Client{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
	}
}

type quoteResponse struct {
	Price     float64 `json:"price"`
	Symbol    string  `json:"symbol"`
	Currency  string  `json:"currency"`
	Timestamp int64   `json:"timestamp"`
}

// FetchErr wraps a non-2xx response or malformed JSON, per spec.md §4.7.
type FetchErr struct {
	Metal      model.Metal
	StatusCode int
	Err        error
}

func (e *FetchErr) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("quotesource: %s: status %d: %v", e.Metal, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("quotesource: %s: %v", e.Metal, e.Err)
}

func (e *FetchErr) Unwrap() error { return e.Err }

// FetchSpotUSDPerOunce fetches metal's current price in USD per troy
// ounce, retrying transient failures with exponential backoff.
func (c *Client) FetchSpotUSDPerOunce(ctx context.Context, metal model.Metal) (float64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	var price float64
	operation := func() error {
		p, err := c.doFetch(ctx, metal)
		if err != nil {
			return err
		}
		price = p
		return nil
	}

	strategy := backoff.NewExponentialBackOff()
	strategy.MaxElapsedTime = 20 * time.Second

	if err := backoff.Retry(operation, backoff.WithContext(strategy, ctx)); err != nil {
		return 0, err
	}
	return price, nil
}

func (c *Client) doFetch(ctx context.Context, metal model.Metal) (float64, error) {
	url := fmt.Sprintf("%s/%s/USD", baseURL, metal.Symbol())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, &FetchErr{Metal: metal, Err: err}
	}
	req.Header.Set("x-access-token", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, &FetchErr{Metal: metal, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, &FetchErr{Metal: metal, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, &FetchErr{Metal: metal, StatusCode: resp.StatusCode, Err: fmt.Errorf("non-2xx response: %s", raw)}
	}

	var out quoteResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return 0, &FetchErr{Metal: metal, StatusCode: resp.StatusCode, Err: fmt.Errorf("malformed JSON: %w", err)}
	}
	if out.Price <= 0 {
		return 0, &FetchErr{Metal: metal, StatusCode: resp.StatusCode, Err: fmt.Errorf("non-positive price: %v", out.Price)}
	}
	return out.Price, nil
}
