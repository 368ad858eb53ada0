package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/kjannette/trahn-portfolio/internal/models"
	"github.com/kjannette/trahn-portfolio/internal/service"
)

type holdingJSON struct {
	Account string `json:"account"`
	Ticker  string `json:"ticker"`
	Route   string `json:"route"`
	Units   string `json:"units"`
	Price   string `json:"price"`
	Value   string `json:"value"`
	Source  string `json:"source,omitempty"`
	Error   string `json:"error,omitempty"`
}

type snapshotJSON struct {
	RunID          string        `json:"runId"`
	TakenAt        string        `json:"takenAt"`
	Source         string        `json:"source"`
	TotalValue     string        `json:"totalValue"`
	NoData         bool          `json:"noData"`
	AllUnavailable bool          `json:"allUnavailable"`
	SourceError    string        `json:"sourceError,omitempty"`
	Failed         []string      `json:"failed"`
	Holdings       []holdingJSON `json:"holdings"`
}

type summaryJSON struct {
	RunID      string `json:"runId"`
	TakenAt    string `json:"takenAt"`
	Source     string `json:"source"`
	TotalValue string `json:"totalValue"`
	Holdings   int    `json:"holdings"`
	Failed     int    `json:"failed"`
	NoData     bool   `json:"noData"`
}

// Amounts are strings rounded to cents; holdings come sorted by value.
func toSnapshotJSON(s *models.PortfolioSnapshot) snapshotJSON {
	out := snapshotJSON{
		RunID:          s.RunID.String(),
		TakenAt:        s.TakenAt.UTC().Format(time.RFC3339),
		Source:         s.Source,
		TotalValue:     s.DisplayTotal().StringFixed(2),
		NoData:         s.NoData,
		AllUnavailable: s.AllUnavailable(),
		SourceError:    s.SourceError,
		Failed:         s.FailedTickers(),
		Holdings:       []holdingJSON{},
	}
	if out.Failed == nil {
		out.Failed = []string{}
	}
	for _, h := range s.SortedByValue() {
		out.Holdings = append(out.Holdings, holdingJSON{
			Account: h.Account,
			Ticker:  h.Ticker,
			Route:   h.Route.String(),
			Units:   h.Units.String(),
			Price:   h.DisplayPrice().StringFixed(2),
			Value:   h.DisplayValue().StringFixed(2),
			Source:  h.Source,
			Error:   h.Error,
		})
	}
	return out
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	snap, err := s.portfolio.Latest(r.Context())
	if errors.Is(err, service.ErrNoSnapshot) {
		writeError(w, http.StatusNotFound, "no valuation available")
		return
	}
	if err != nil {
		s.log.Error().Err(err).Msg("fetch latest snapshot")
		writeError(w, http.StatusInternalServerError, "failed to fetch latest valuation")
		return
	}
	writeJSON(w, http.StatusOK, toSnapshotJSON(snap))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	runs, err := s.portfolio.History(r.Context(), parseLimit(r, 30))
	if err != nil {
		s.log.Error().Err(err).Msg("fetch history")
		writeError(w, http.StatusInternalServerError, "failed to fetch history")
		return
	}

	out := make([]summaryJSON, len(runs))
	for i, run := range runs {
		out[i] = summaryJSON{
			RunID:      run.RunID.String(),
			TakenAt:    run.TakenAt.UTC().Format(time.RFC3339),
			Source:     run.Source,
			TotalValue: run.TotalValue.Round(2).StringFixed(2),
			Holdings:   run.Holdings,
			Failed:     run.Failed,
			NoData:     run.NoData,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	res, err := s.portfolio.Refresh(r.Context())
	if res == nil {
		s.log.Error().Err(err).Msg("refresh")
		writeError(w, http.StatusInternalServerError, "refresh failed")
		return
	}
	if err != nil {
		// The pass ran; only storing it failed.
		s.log.Warn().Err(err).Msg("refresh completed with errors")
	}
	writeJSON(w, http.StatusOK, toSnapshotJSON(res.Snapshot))
}
