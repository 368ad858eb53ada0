package holdings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjannette/trahn-portfolio/internal/external"
	"github.com/kjannette/trahn-portfolio/internal/httputil"
)

func TestParseCSV(t *testing.T) {
	in := "Ticker, Account ,Units,Note\nVOO,Overseas,12,core\n,ISA,3,blank ticker\nBTC-USD,Overseas,0.15,\n"

	got, err := ParseCSV(context.Background(), strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "VOO", got[0].Ticker)
	assert.Equal(t, "Overseas", got[0].Account)
	assert.True(t, got[0].Units.Equal(decimal.NewFromInt(12)))
	assert.Equal(t, "BTC-USD", got[1].Ticker)
	assert.Equal(t, "0.15", got[1].Units.String())
}

func TestParseCSV_ByteOrderMark(t *testing.T) {
	in := "\ufeffAccount,Ticker,Units\nGold,GOLDKRX,10\n"
	got, err := ParseCSV(context.Background(), strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Gold", got[0].Account)
}

func TestParseCSV_Errors(t *testing.T) {
	cases := map[string]string{
		"empty":          "",
		"missing column": "Account,Ticker\nx,VOO\n",
		"bad units":      "Account,Ticker,Units\nx,VOO,twelve\n",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseCSV(context.Background(), strings.NewReader(in))
			assert.Error(t, err)
		})
	}
}

func TestCSVSource_MissingFileIsUnavailable(t *testing.T) {
	src := NewCSVSource(filepath.Join(t.TempDir(), "portfolio.csv"))
	assert.False(t, src.Exists())

	_, err := src.Load(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestCSVSource_Load(t *testing.T) {
	path := filepath.Join(t.TempDir(), "portfolio.csv")
	require.NoError(t, os.WriteFile(path, []byte("Account,Ticker,Units\nISA,354500.KS,30\n"), 0o600))

	src := NewCSVSource(path)
	require.True(t, src.Exists())
	got, err := src.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "354500.KS", got[0].Ticker)
}

func TestStaticSource_ReturnsCopies(t *testing.T) {
	src := NewStaticSource(DefaultHoldings())
	first, err := src.Load(context.Background())
	require.NoError(t, err)
	first[0].Ticker = "MUTATED"

	second, _ := src.Load(context.Background())
	assert.Equal(t, "379800.KS", second[0].Ticker)
	assert.Len(t, second, 10)
}

func TestSelect(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "portfolio.csv")
	require.NoError(t, os.WriteFile(present, []byte("Account,Ticker,Units\n"), 0o600))
	notion := NewNotionSource(nil, "db", zerolog.Nop())

	src, err := Select(ModeAuto, Candidates{CSV: NewCSVSource(present), Notion: notion})
	require.NoError(t, err)
	assert.Equal(t, ModeNotion, src.Name())

	src, err = Select(ModeAuto, Candidates{CSV: NewCSVSource(present)})
	require.NoError(t, err)
	assert.Equal(t, ModeCSV, src.Name())

	src, err = Select(ModeAuto, Candidates{CSV: NewCSVSource(filepath.Join(dir, "nope.csv"))})
	require.NoError(t, err)
	assert.Equal(t, ModeStatic, src.Name())

	_, err = Select(ModeNotion, Candidates{})
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = Select("ftp", Candidates{})
	assert.Error(t, err)
}

type pagedQuerier struct {
	pages   []external.NotionQueryResult
	cursors []string
}

func (p *pagedQuerier) QueryDatabase(_ context.Context, _ string, q external.NotionQuery) (*external.NotionQueryResult, error) {
	p.cursors = append(p.cursors, q.StartCursor)
	i := len(p.cursors) - 1
	if i >= len(p.pages) {
		return nil, errors.New("queried past the last page")
	}
	return &p.pages[i], nil
}

func notionPage(id, account, ticker string, units int) external.NotionPage {
	n := json.Number(fmt.Sprint(units))
	return external.NotionPage{
		ID: id,
		Properties: map[string]external.NotionProperty{
			PropAccount: {Type: "select", Select: &external.NotionSelect{Name: account}},
			PropTicker:  {Type: "rich_text", RichText: []external.NotionRichText{{PlainText: ticker}}},
			PropUnits:   {Type: "number", Number: &n},
		},
	}
}

func pageOf(prefix string, n int) []external.NotionPage {
	out := make([]external.NotionPage, n)
	for i := range out {
		out[i] = notionPage(fmt.Sprintf("%s-%d", prefix, i), "ISA", fmt.Sprintf("T%s%d", prefix, i), i+1)
	}
	return out
}

func TestNotionSource_FollowsCursor(t *testing.T) {
	next := "cursor-2"
	q := &pagedQuerier{pages: []external.NotionQueryResult{
		{Results: pageOf("a", 100), HasMore: true, NextCursor: &next},
		{Results: pageOf("b", 50), HasMore: false},
	}}
	src := NewNotionSource(q, "db", zerolog.Nop())

	got, err := src.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 150)
	assert.Equal(t, []string{"", "cursor-2"}, q.cursors)
	assert.Equal(t, "a-0", got[0].Ref)
	assert.Equal(t, "Tb49", got[149].Ticker)
	assert.True(t, got[149].Units.Equal(decimal.NewFromInt(50)))
}

func TestNotionSource_SkipsRowsWithoutTicker(t *testing.T) {
	q := &pagedQuerier{pages: []external.NotionQueryResult{{Results: []external.NotionPage{
		notionPage("p1", "ISA", "VOO", 3),
		notionPage("p2", "ISA", "  ", 1),
	}}}}

	got, err := NewNotionSource(q, "db", zerolog.Nop()).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "VOO", got[0].Ticker)
}

func TestNotionSource_StuckCursorFails(t *testing.T) {
	q := &pagedQuerier{pages: []external.NotionQueryResult{{Results: pageOf("a", 1), HasMore: true}}}

	_, err := NewNotionSource(q, "db", zerolog.Nop()).Load(context.Background())
	assert.Error(t, err)
}

// Exercises the real client wire format end to end.
func TestNotionSource_AgainstHTTP(t *testing.T) {
	var (
		mu     sync.Mutex
		bodies []map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/databases/db-1/query", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		mu.Lock()
		bodies = append(bodies, body)
		mu.Unlock()

		if body["start_cursor"] == nil {
			fmt.Fprint(w, `{"results":[{"id":"p1","properties":{
				"Account":{"type":"select","select":{"name":"해외"}},
				"Ticker":{"type":"rich_text","rich_text":[{"type":"text","text":{"content":"VOO"},"plain_text":"VOO"}]},
				"Units":{"type":"number","number":12}}}],"has_more":true,"next_cursor":"c2"}`)
			return
		}
		fmt.Fprint(w, `{"results":[{"id":"p2","properties":{
			"Account":{"type":"select","select":null},
			"Ticker":{"type":"rich_text","rich_text":[{"type":"text","text":{"content":"BTC-USD"},"plain_text":"BTC-USD"}]},
			"Units":{"type":"number","number":0.15}}}],"has_more":false,"next_cursor":null}`)
	}))
	defer srv.Close()

	client := external.NewNotionClient("secret",
		external.WithNotionURL(srv.URL),
		external.WithNotionRetry(httputil.SingleAttempt),
	)
	got, err := NewNotionSource(client, "db-1", zerolog.Nop()).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "해외", got[0].Account)
	assert.Equal(t, "", got[1].Account)
	assert.Equal(t, "0.15", got[1].Units.String())

	require.Len(t, bodies, 2)
	assert.EqualValues(t, 100, bodies[0]["page_size"])
	assert.Equal(t, "c2", bodies[1]["start_cursor"])
}
