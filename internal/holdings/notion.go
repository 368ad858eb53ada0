package holdings

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/kjannette/trahn-portfolio/internal/external"
	"github.com/kjannette/trahn-portfolio/internal/models"
)

const (
	DefaultPageSize = 100

	PropAccount = "Account"
	PropTicker  = "Ticker"
	PropUnits   = "Units"
)

// DatabaseQuerier is the slice of the Notion client the paged source needs.
type DatabaseQuerier interface {
	QueryDatabase(ctx context.Context, databaseID string, q external.NotionQuery) (*external.NotionQueryResult, error)
}

// NotionSource reads holdings from a Notion database, one row per page.
type NotionSource struct {
	client     DatabaseQuerier
	databaseID string
	pageSize   int
	log        zerolog.Logger
}

func NewNotionSource(client DatabaseQuerier, databaseID string, log zerolog.Logger) *NotionSource {
	return &NotionSource{
		client:     client,
		databaseID: databaseID,
		pageSize:   DefaultPageSize,
		log:        log,
	}
}

func (s *NotionSource) Name() string { return ModeNotion }

// Load follows next_cursor until has_more is false and returns every row.
// Ref carries the page id so write-back can skip the lookup.
func (s *NotionSource) Load(ctx context.Context) ([]models.HoldingRecord, error) {
	var (
		out    []models.HoldingRecord
		cursor string
		pages  int
	)
	for {
		res, err := s.client.QueryDatabase(ctx, s.databaseID, external.NotionQuery{
			PageSize:    s.pageSize,
			StartCursor: cursor,
		})
		if err != nil {
			return nil, fmt.Errorf("query holdings page %d: %w", pages+1, err)
		}
		pages++

		for _, page := range res.Results {
			rec, ok, err := recordFromPage(page)
			if err != nil {
				return nil, err
			}
			if !ok {
				s.log.Warn().Str("page_id", page.ID).Msg("skipping row without ticker")
				continue
			}
			out = append(out, rec)
		}

		if !res.HasMore {
			break
		}
		if res.NextCursor == nil || *res.NextCursor == "" || *res.NextCursor == cursor {
			return nil, fmt.Errorf("holdings page %d: has_more set without a new cursor", pages)
		}
		cursor = *res.NextCursor
	}

	s.log.Debug().Int("pages", pages).Int("rows", len(out)).Msg("holdings loaded")
	return out, nil
}

func recordFromPage(page external.NotionPage) (models.HoldingRecord, bool, error) {
	ticker := strings.TrimSpace(page.Properties[PropTicker].PlainText())
	if ticker == "" {
		return models.HoldingRecord{}, false, nil
	}
	units, err := page.Properties[PropUnits].Decimal()
	if err != nil {
		return models.HoldingRecord{}, false, fmt.Errorf("page %s: units: %w", page.ID, err)
	}
	return models.HoldingRecord{
		Account: page.Properties[PropAccount].SelectName(),
		Ticker:  ticker,
		Units:   units,
		Ref:     page.ID,
	}, true, nil
}
