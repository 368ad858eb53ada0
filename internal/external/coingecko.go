package external

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kjannette/trahn-portfolio/internal/httputil"
)

const DefaultCoinGeckoURL = "https://api.coingecko.com/api/v3"

type CoinGeckoClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	retry      httputil.RetryConfig
}

type CoinGeckoOption func(*CoinGeckoClient)

func WithCoinGeckoURL(u string) CoinGeckoOption {
	return func(c *CoinGeckoClient) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithCoinGeckoAPIKey sets the demo-plan key sent as x-cg-demo-api-key.
func WithCoinGeckoAPIKey(key string) CoinGeckoOption {
	return func(c *CoinGeckoClient) { c.apiKey = key }
}

func WithCoinGeckoTimeout(d time.Duration) CoinGeckoOption {
	return func(c *CoinGeckoClient) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

func NewCoinGeckoClient(opts ...CoinGeckoOption) *CoinGeckoClient {
	c := &CoinGeckoClient{
		baseURL:    DefaultCoinGeckoURL,
		httpClient: &http.Client{Timeout: 20 * time.Second},
		retry:      httputil.SingleAttempt,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SimplePrice returns the USD spot price per coin id. Ids CoinGecko does not
// know are absent from the returned map.
func (c *CoinGeckoClient) SimplePrice(ctx context.Context, ids ...string) (map[string]decimal.Decimal, error) {
	if len(ids) == 0 {
		return map[string]decimal.Decimal{}, nil
	}

	q := url.Values{}
	q.Set("ids", strings.Join(ids, ","))
	q.Set("vs_currencies", "usd")
	endpoint := "/simple/price"
	reqURL := c.baseURL + endpoint + "?" + q.Encode()

	resp, err := httputil.Do(ctx, c.httpClient, c.retry, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if c.apiKey != "" {
			req.Header.Set("x-cg-demo-api-key", c.apiKey)
		}
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("coingecko fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, newAPIError("coingecko", endpoint, resp)
	}

	var data map[string]map[string]decimal.Decimal
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	out := make(map[string]decimal.Decimal, len(data))
	for id, quotes := range data {
		if usd, ok := quotes["usd"]; ok {
			out[id] = usd
		}
	}
	return out, nil
}
