// Package holdings reads the (account, ticker, units) rows a valuation pass
// runs over. Every source returns the full, ordered list or an error; none
// hands back partial pages.
package holdings

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/shopspring/decimal"

	"github.com/kjannette/trahn-portfolio/internal/models"
)

// ErrUnavailable means the source has nothing to read (missing file,
// unconfigured database).
var ErrUnavailable = errors.New("holdings source unavailable")

type Source interface {
	Name() string
	Load(ctx context.Context) ([]models.HoldingRecord, error)
}

const (
	ModeAuto   = "auto"
	ModeCSV    = "csv"
	ModeNotion = "notion"
	ModeStatic = "static"
)

// Candidates are the configured sources Select chooses between. Nil entries
// are treated as not configured.
type Candidates struct {
	CSV    *CSVSource
	Notion *NotionSource
	Static *StaticSource
}

// Select picks the source for mode. In auto mode the remote database wins
// when configured, then the CSV file if it exists, then the static list.
func Select(mode string, c Candidates) (Source, error) {
	switch mode {
	case ModeCSV:
		if c.CSV == nil {
			return nil, fmt.Errorf("%w: no csv path configured", ErrUnavailable)
		}
		return c.CSV, nil
	case ModeNotion:
		if c.Notion == nil {
			return nil, fmt.Errorf("%w: notion token or database id missing", ErrUnavailable)
		}
		return c.Notion, nil
	case ModeStatic:
		if c.Static == nil {
			return NewStaticSource(DefaultHoldings()), nil
		}
		return c.Static, nil
	case ModeAuto, "":
		if c.Notion != nil {
			return c.Notion, nil
		}
		if c.CSV != nil && c.CSV.Exists() {
			return c.CSV, nil
		}
		if c.Static != nil {
			return c.Static, nil
		}
		return NewStaticSource(DefaultHoldings()), nil
	default:
		return nil, fmt.Errorf("unknown holdings mode %q", mode)
	}
}

// StaticSource serves a literal list.
type StaticSource struct {
	records []models.HoldingRecord
}

func NewStaticSource(records []models.HoldingRecord) *StaticSource {
	cp := make([]models.HoldingRecord, len(records))
	copy(cp, records)
	return &StaticSource{records: cp}
}

func (s *StaticSource) Name() string { return ModeStatic }

func (s *StaticSource) Load(context.Context) ([]models.HoldingRecord, error) {
	out := make([]models.HoldingRecord, len(s.records))
	copy(out, s.records)
	return out, nil
}

// DefaultHoldings is the built-in sample portfolio used when nothing else is
// configured. GOLDKRX units are grams.
func DefaultHoldings() []models.HoldingRecord {
	row := func(account, ticker, units string) models.HoldingRecord {
		return models.HoldingRecord{Account: account, Ticker: ticker, Units: decimal.RequireFromString(units)}
	}
	return []models.HoldingRecord{
		row("연금저축", "379800.KS", "20"),
		row("ISA", "354500.KS", "30"),
		row("ISA", "132030.KS", "25"),
		row("ISA", "153130.KS", "80"),
		row("해외", "VOO", "12"),
		row("해외", "BIL", "30"),
		row("해외", "BSCP", "40"),
		row("해외", "BTC-USD", "0.15"),
		row("해외", "ETH-USD", "1.2"),
		row("금현물", "GOLDKRX", "10"),
	}
}

func fileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}
