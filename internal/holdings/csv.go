package holdings

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/kjannette/trahn-portfolio/internal/models"
)

var requiredColumns = []string{"account", "ticker", "units"}

// CSVSource reads a file with at least the columns Account, Ticker, Units.
// Column order is free and extra columns are ignored.
type CSVSource struct {
	path string
}

func NewCSVSource(path string) *CSVSource {
	return &CSVSource{path: path}
}

func (s *CSVSource) Name() string { return ModeCSV }

func (s *CSVSource) Path() string { return s.path }

func (s *CSVSource) Exists() bool {
	return s.path != "" && fileExists(s.path)
}

func (s *CSVSource) Load(ctx context.Context) ([]models.HoldingRecord, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s not found", ErrUnavailable, s.path)
		}
		return nil, fmt.Errorf("open holdings csv: %w", err)
	}
	defer f.Close()

	return ParseCSV(ctx, f)
}

// ParseCSV decodes holdings from r. Blank tickers are skipped.
func ParseCSV(ctx context.Context, r io.Reader) ([]models.HoldingRecord, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("holdings csv: empty file")
		}
		return nil, fmt.Errorf("holdings csv header: %w", err)
	}
	idx, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	var out []models.HoldingRecord
	line := 1
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("holdings csv line %d: %w", line, err)
		}

		field := func(col string) string {
			i := idx[col]
			if i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}

		ticker := field("ticker")
		if ticker == "" {
			continue
		}
		units, err := decimal.NewFromString(field("units"))
		if err != nil {
			return nil, fmt.Errorf("holdings csv line %d: units %q: %w", line, field("units"), err)
		}
		out = append(out, models.HoldingRecord{
			Account: field("account"),
			Ticker:  ticker,
			Units:   units,
		})
	}
	return out, nil
}

func columnIndex(header []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimPrefix(h, "\ufeff")
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	var missing []string
	for _, col := range requiredColumns {
		if _, ok := idx[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("holdings csv: missing columns %s", strings.Join(missing, ", "))
	}
	return idx, nil
}
