package external_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjannette/trahn-portfolio/internal/external"
	"github.com/kjannette/trahn-portfolio/internal/httputil"
)

func TestNotionQueryDatabase(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/databases/db1/query", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, external.DefaultNotionVersion, r.Header.Get("Notion-Version"))

		var q map[string]any
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &q))
		assert.EqualValues(t, 100, q["page_size"])
		assert.Equal(t, "cur-1", q["start_cursor"])

		w.Write([]byte(`{"results":[{"id":"p1","properties":{
			"Account":{"type":"select","select":{"name":"ISA"}},
			"Ticker":{"type":"rich_text","rich_text":[{"plain_text":"VOO"}]},
			"Units":{"type":"number","number":12.5}}}],
			"has_more":false,"next_cursor":null}`))
	}))
	defer srv.Close()

	client := external.NewNotionClient("secret", external.WithNotionURL(srv.URL))
	res, err := client.QueryDatabase(context.Background(), "db1", external.NotionQuery{PageSize: 100, StartCursor: "cur-1"})
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.False(t, res.HasMore)
	assert.Nil(t, res.NextCursor)

	props := res.Results[0].Properties
	assert.Equal(t, "ISA", props["Account"].SelectName())
	assert.Equal(t, "VOO", props["Ticker"].PlainText())
	units, err := props["Units"].Decimal()
	require.NoError(t, err)
	assert.True(t, units.Equal(decimal.RequireFromString("12.5")))
}

func TestNotionUpdatePage_SendsRawNumbers(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/pages/p1", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		w.Write([]byte(`{"id":"p1"}`))
	}))
	defer srv.Close()

	client := external.NewNotionClient("secret", external.WithNotionURL(srv.URL))
	err := client.UpdatePage(context.Background(), "p1", map[string]external.NotionProperty{
		"Current Price": external.NumberProperty(decimal.RequireFromString("59.80")),
	})
	require.NoError(t, err)

	props := got["properties"].(map[string]any)
	price := props["Current Price"].(map[string]any)["number"]
	assert.Equal(t, 59.8, price, "numbers must be sent as JSON numbers, not strings")
}

func TestNotionCreatePage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/pages", r.URL.Path)
		var body struct {
			Parent     map[string]string                  `json:"parent"`
			Properties map[string]external.NotionProperty `json:"properties"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "db1", body.Parent["database_id"])
		assert.Equal(t, "GOLDKRX", body.Properties["Ticker"].PlainText())
		assert.Equal(t, "Unclassified", body.Properties["Account"].SelectName())
		w.Write([]byte(`{"id":"new-page"}`))
	}))
	defer srv.Close()

	client := external.NewNotionClient("secret", external.WithNotionURL(srv.URL))
	page, err := client.CreatePage(context.Background(), "db1", map[string]external.NotionProperty{
		"Ticker":  external.RichTextProperty("GOLDKRX"),
		"Account": external.SelectProperty("Unclassified"),
		"Units":   external.NumberProperty(decimal.Zero),
	})
	require.NoError(t, err)
	assert.Equal(t, "new-page", page.ID)
}

func TestNotionErrorSurfacesAsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"object":"error","status":400,"code":"validation_error","message":"Units is not a property"}`))
	}))
	defer srv.Close()

	client := external.NewNotionClient("secret",
		external.WithNotionURL(srv.URL),
		external.WithNotionRetry(httputil.SingleAttempt),
	)
	err := client.UpdatePage(context.Background(), "p1", map[string]external.NotionProperty{})

	var apiErr *external.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "validation_error")
}
