package models

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PortfolioSnapshot is the result of one full valuation pass.
//
// NoData is set when the holdings source produced nothing (missing file,
// empty remote query). A snapshot with rows whose prices all failed has
// NoData == false and AllUnavailable() == true.
type PortfolioSnapshot struct {
	RunID       uuid.UUID       `json:"runId"`
	TakenAt     time.Time       `json:"takenAt"`
	Source      string          `json:"source"`
	Holdings    []PricedHolding `json:"holdings"`
	TotalValue  decimal.Decimal `json:"totalValue"`
	NoData      bool            `json:"noData"`
	SourceError string          `json:"sourceError,omitempty"`
}

func (s *PortfolioSnapshot) DisplayTotal() decimal.Decimal {
	return s.TotalValue.Round(2)
}

func (s *PortfolioSnapshot) FailedTickers() []string {
	var out []string
	for _, h := range s.Holdings {
		if h.Failed() {
			out = append(out, h.Ticker)
		}
	}
	return out
}

// AllUnavailable reports whether the snapshot has rows but none of them
// carries a non-zero price.
func (s *PortfolioSnapshot) AllUnavailable() bool {
	if len(s.Holdings) == 0 {
		return false
	}
	for _, h := range s.Holdings {
		if !h.Price.IsZero() {
			return false
		}
	}
	return true
}

// SortedByValue returns a copy of the holdings, largest value first. Ties
// keep input order.
func (s *PortfolioSnapshot) SortedByValue() []PricedHolding {
	out := make([]PricedHolding, len(s.Holdings))
	copy(out, s.Holdings)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Value.GreaterThan(out[j].Value)
	})
	return out
}

// RunSummary is the stored header of a past valuation pass.
type RunSummary struct {
	RunID      uuid.UUID       `json:"runId"`
	TakenAt    time.Time       `json:"takenAt"`
	Source     string          `json:"source"`
	TotalValue decimal.Decimal `json:"totalValue"`
	Holdings   int             `json:"holdings"`
	Failed     int             `json:"failed"`
	NoData     bool            `json:"noData"`
}

func (s *PortfolioSnapshot) Summary() RunSummary {
	return RunSummary{
		RunID:      s.RunID,
		TakenAt:    s.TakenAt,
		Source:     s.Source,
		TotalValue: s.TotalValue,
		Holdings:   len(s.Holdings),
		Failed:     len(s.FailedTickers()),
		NoData:     s.NoData,
	}
}
