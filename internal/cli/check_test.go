package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjannette/trahn-portfolio/internal/external"
)

type fakeProbe struct {
	db       *external.NotionDatabase
	dbErr    error
	pages    []external.NotionPage
	pageSize int
}

func (f *fakeProbe) RetrieveDatabase(context.Context, string) (*external.NotionDatabase, error) {
	return f.db, f.dbErr
}

func (f *fakeProbe) QueryDatabase(_ context.Context, _ string, q external.NotionQuery) (*external.NotionQueryResult, error) {
	f.pageSize = q.PageSize
	return &external.NotionQueryResult{Results: f.pages, HasMore: true}, nil
}

func database(t *testing.T, body string) *external.NotionDatabase {
	t.Helper()
	var db external.NotionDatabase
	require.NoError(t, json.Unmarshal([]byte(body), &db))
	return &db
}

func TestProbe(t *testing.T) {
	n := json.Number("12")
	fp := &fakeProbe{
		db: database(t, `{"id":"db-1","title":[{"plain_text":"Holdings"}],
			"properties":{"Ticker":{"type":"rich_text"},"Units":{"type":"number"}}}`),
		pages: []external.NotionPage{{
			ID: "p1",
			Properties: map[string]external.NotionProperty{
				"Ticker":  external.RichTextProperty("VOO"),
				"Account": external.SelectProperty("해외"),
				"Units":   {Number: &n},
			},
		}},
	}

	var out bytes.Buffer
	require.NoError(t, probe(context.Background(), &out, fp, "db-1", 3))

	s := out.String()
	assert.Contains(t, s, "Database: Holdings (db-1)")
	assert.Contains(t, s, "Units: number")
	assert.Contains(t, s, `missing expected property "Account"`)
	assert.Contains(t, s, "First 1 rows (more: true)")
	assert.Contains(t, s, "VOO")
	assert.Contains(t, s, "해외")
	assert.Equal(t, 3, fp.pageSize)
}

func TestProbe_RetrieveFails(t *testing.T) {
	fp := &fakeProbe{dbErr: errors.New("401 unauthorized")}
	err := probe(context.Background(), &bytes.Buffer{}, fp, "db-1", 3)
	assert.ErrorContains(t, err, "retrieve database")
}

func TestProbe_NoPreview(t *testing.T) {
	fp := &fakeProbe{db: database(t, `{"id":"db-1","properties":{}}`)}
	require.NoError(t, probe(context.Background(), &bytes.Buffer{}, fp, "db-1", 0))
	assert.Zero(t, fp.pageSize)
}
