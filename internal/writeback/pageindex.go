// Package writeback pushes a valuation snapshot's prices back into the
// Notion holdings database.
package writeback

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/kjannette/trahn-portfolio/internal/external"
	"github.com/kjannette/trahn-portfolio/internal/holdings"
)

const DefaultAccount = "Unclassified"

// PageStore is the part of the Notion client the index uses.
type PageStore interface {
	QueryDatabase(ctx context.Context, databaseID string, q external.NotionQuery) (*external.NotionQueryResult, error)
	CreatePage(ctx context.Context, databaseID string, props map[string]external.NotionProperty) (*external.NotionPage, error)
}

// PageIndex maps tickers to page ids for a single run. Build a new one per
// run; it is not safe for concurrent use.
type PageIndex struct {
	store          PageStore
	databaseID     string
	defaultAccount string
	pages          map[string]string
	created        int
}

func NewPageIndex(store PageStore, databaseID, defaultAccount string) *PageIndex {
	if defaultAccount == "" {
		defaultAccount = DefaultAccount
	}
	return &PageIndex{
		store:          store,
		databaseID:     databaseID,
		defaultAccount: defaultAccount,
		pages:          make(map[string]string),
	}
}

// Remember records a known ticker -> page mapping without a lookup.
func (x *PageIndex) Remember(ticker, pageID string) {
	if ticker != "" && pageID != "" {
		x.pages[ticker] = pageID
	}
}

// Ensure returns the page id for ticker: from the index, else the first row
// whose Ticker equals it, else a newly created row with zero units.
func (x *PageIndex) Ensure(ctx context.Context, ticker string) (string, error) {
	if id, ok := x.pages[ticker]; ok {
		return id, nil
	}

	res, err := x.store.QueryDatabase(ctx, x.databaseID, external.NotionQuery{
		Filter: &external.NotionFilter{
			Property: holdings.PropTicker,
			RichText: &external.NotionTextFilter{Equals: ticker},
		},
		PageSize: 1,
	})
	if err != nil {
		return "", fmt.Errorf("find page for %s: %w", ticker, err)
	}
	if len(res.Results) > 0 && res.Results[0].ID != "" {
		x.pages[ticker] = res.Results[0].ID
		return res.Results[0].ID, nil
	}

	page, err := x.store.CreatePage(ctx, x.databaseID, map[string]external.NotionProperty{
		holdings.PropTicker:  external.RichTextProperty(ticker),
		holdings.PropAccount: external.SelectProperty(x.defaultAccount),
		holdings.PropUnits:   external.NumberProperty(decimal.Zero),
	})
	if err != nil {
		return "", fmt.Errorf("create page for %s: %w", ticker, err)
	}
	x.pages[ticker] = page.ID
	x.created++
	return page.ID, nil
}

func (x *PageIndex) Len() int { return len(x.pages) }

// Created counts rows this index had to add to the database.
func (x *PageIndex) Created() int { return x.created }
