package external_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjannette/trahn-portfolio/internal/external"
)

func init() {
	_ = godotenv.Load("../../.env")
}

func TestCoinGeckoSimplePrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/simple/price", r.URL.Path)
		assert.Equal(t, "bitcoin,solana", r.URL.Query().Get("ids"))
		assert.Equal(t, "usd", r.URL.Query().Get("vs_currencies"))
		assert.Equal(t, "demo-key", r.Header.Get("x-cg-demo-api-key"))
		w.Write([]byte(`{"bitcoin":{"usd":50000},"solana":{}}`))
	}))
	defer srv.Close()

	client := external.NewCoinGeckoClient(
		external.WithCoinGeckoURL(srv.URL),
		external.WithCoinGeckoAPIKey("demo-key"),
	)
	prices, err := client.SimplePrice(context.Background(), "bitcoin", "solana")
	require.NoError(t, err)

	assert.True(t, prices["bitcoin"].Equal(decimal.NewFromInt(50000)))
	_, ok := prices["solana"]
	assert.False(t, ok, "id without a usd quote must be absent")
}

func TestCoinGeckoSimplePrice_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"status":{"error_code":429}}`))
	}))
	defer srv.Close()

	client := external.NewCoinGeckoClient(external.WithCoinGeckoURL(srv.URL))
	_, err := client.SimplePrice(context.Background(), "bitcoin")
	require.Error(t, err)
}

func TestYahooDailyCloses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v8/finance/chart/VOO", r.URL.Path)
		assert.Equal(t, "1d", r.URL.Query().Get("range"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Write([]byte(`{"chart":{"result":[{"timestamp":[1700000000,1700086400],
			"indicators":{"quote":[{"close":[null,412.5]}]}}],"error":null}}`))
	}))
	defer srv.Close()

	client := external.NewYahooClient(srv.URL, 5*time.Second)
	bars, err := client.DailyCloses(context.Background(), "VOO")
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.True(t, bars[0].Close.Equal(decimal.RequireFromString("412.5")))
	assert.Equal(t, int64(1700086400), bars[0].Date.Unix())
}

func TestYahooDailyCloses_EmptySeries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"chart":{"result":[{"timestamp":[],"indicators":{"quote":[{}]}}],"error":null}}`))
	}))
	defer srv.Close()

	bars, err := external.NewYahooClient(srv.URL, 5*time.Second).DailyCloses(context.Background(), "VOO")
	require.NoError(t, err)
	assert.Empty(t, bars)
}

func TestYahooDailyCloses_UnknownSymbol(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`))
	}))
	defer srv.Close()

	_, err := external.NewYahooClient(srv.URL, 5*time.Second).DailyCloses(context.Background(), "NOPE")
	require.Error(t, err)
	assert.True(t, errors.Is(err, external.ErrNotFound))

	var apiErr *external.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "yahoo", apiErr.Service)
}

func TestEODHDDailyCloses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/eod/VOO.US", r.URL.Path)
		assert.Equal(t, "key", r.URL.Query().Get("api_token"))
		w.Write([]byte(`[{"date":"2024-01-03","close":401.1},{"date":"2024-01-02","close":400.0}]`))
	}))
	defer srv.Close()

	bars, err := external.NewEODHDClient("key", srv.URL, 5*time.Second).DailyCloses(context.Background(), "VOO")
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.True(t, bars[1].Close.Equal(decimal.RequireFromString("401.1")), "oldest first, latest last")
}

func TestCoinGeckoLive(t *testing.T) {
	if os.Getenv("LIVE_PRICE_TESTS") == "" {
		t.Skip("LIVE_PRICE_TESTS not set, skipping")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	prices, err := external.NewCoinGeckoClient().SimplePrice(ctx, "ethereum")
	require.NoError(t, err)
	require.True(t, prices["ethereum"].IsPositive())
	t.Logf("ETH price: $%s", prices["ethereum"].StringFixed(2))
}
