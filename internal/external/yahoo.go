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

const DefaultYahooURL = "https://query1.finance.yahoo.com"

// Yahoo rejects requests without a browser-like agent.
const yahooUserAgent = "Mozilla/5.0 (X11; Linux x86_64) trahn-portfolio/1.0"

// Bar is one daily close.
type Bar struct {
	Date  time.Time
	Close decimal.Decimal
}

type YahooClient struct {
	baseURL    string
	httpClient *http.Client
	retry      httputil.RetryConfig
}

func NewYahooClient(baseURL string, timeout time.Duration) *YahooClient {
	if baseURL == "" {
		baseURL = DefaultYahooURL
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &YahooClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		retry:      httputil.SingleAttempt,
	}
}

func (c *YahooClient) Name() string { return "yahoo" }

type yahooChartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// DailyCloses returns the most recent one-day series of daily closes for
// symbol, oldest first. Null closes (halted or not yet settled bars) are
// skipped, so the slice may be empty without an error.
func (c *YahooClient) DailyCloses(ctx context.Context, symbol string) ([]Bar, error) {
	endpoint := "/v8/finance/chart/" + url.PathEscape(symbol)
	q := url.Values{}
	q.Set("range", "1d")
	q.Set("interval", "1d")
	reqURL := c.baseURL + endpoint + "?" + q.Encode()

	resp, err := httputil.Do(ctx, c.httpClient, c.retry, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", yahooUserAgent)
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("yahoo fetch %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, newAPIError("yahoo", endpoint, resp)
	}

	var data yahooChartResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if e := data.Chart.Error; e != nil {
		return nil, &APIError{Service: "yahoo", StatusCode: resp.StatusCode, Message: e.Code + ": " + e.Description, Endpoint: endpoint}
	}
	if len(data.Chart.Result) == 0 {
		return nil, nil
	}

	res := data.Chart.Result[0]
	if len(res.Indicators.Quote) == 0 {
		return nil, nil
	}
	closes := res.Indicators.Quote[0].Close

	bars := make([]Bar, 0, len(closes))
	for i, cl := range closes {
		if cl == nil {
			continue
		}
		var ts time.Time
		if i < len(res.Timestamp) {
			ts = time.Unix(res.Timestamp[i], 0).UTC()
		}
		bars = append(bars, Bar{Date: ts, Close: decimal.NewFromFloat(*cl)})
	}
	return bars, nil
}
