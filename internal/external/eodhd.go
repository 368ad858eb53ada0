package external

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/kjannette/trahn-portfolio/internal/httputil"
)

const (
	DefaultEODHDURL       = "https://eodhd.com/api"
	DefaultEODHDRateLimit = 10 // requests per second
)

// EODHDClient is an alternative daily-close source for accounts that hold
// an EODHD key.
type EODHDClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	retry      httputil.RetryConfig
	limiter    *rate.Limiter
	now        func() time.Time
}

func NewEODHDClient(apiKey, baseURL string, timeout time.Duration) *EODHDClient {
	if baseURL == "" {
		baseURL = DefaultEODHDURL
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &EODHDClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		retry:      httputil.SingleAttempt,
		limiter:    rate.NewLimiter(rate.Limit(DefaultEODHDRateLimit), DefaultEODHDRateLimit),
		now:        time.Now,
	}
}

func (c *EODHDClient) Name() string { return "eodhd" }

type eodBar struct {
	Date  string          `json:"date"`
	Close decimal.Decimal `json:"close"`
}

// DailyCloses returns the daily closes of the last week for symbol, oldest
// first. Bare symbols are looked up on the US exchange.
func (c *EODHDClient) DailyCloses(ctx context.Context, symbol string) ([]Bar, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	endpoint := "/eod/" + url.PathEscape(eodhdSymbol(symbol))
	q := url.Values{}
	q.Set("api_token", c.apiKey)
	q.Set("fmt", "json")
	q.Set("period", "d")
	q.Set("order", "a")
	q.Set("from", c.now().AddDate(0, 0, -7).Format("2006-01-02"))
	reqURL := c.baseURL + endpoint + "?" + q.Encode()

	resp, err := httputil.Do(ctx, c.httpClient, c.retry, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("eodhd fetch %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, newAPIError("eodhd", endpoint, resp)
	}

	var raw []eodBar
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	bars := make([]Bar, 0, len(raw))
	for _, b := range raw {
		d, err := time.Parse("2006-01-02", b.Date)
		if err != nil {
			continue
		}
		bars = append(bars, Bar{Date: d, Close: b.Close})
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return bars, nil
}

func eodhdSymbol(symbol string) string {
	if strings.Contains(symbol, ".") {
		return symbol
	}
	return symbol + ".US"
}
