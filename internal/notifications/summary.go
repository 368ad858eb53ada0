package notifications

import (
	"context"
	"fmt"
	"strings"

	"github.com/kjannette/trahn-portfolio/internal/models"
)

// SnapshotMessage is the one-line pass summary posted after each run.
func SnapshotMessage(s *models.PortfolioSnapshot) string {
	if s.NoData {
		if s.SourceError != "" {
			return fmt.Sprintf("valuation: no holdings from %s (%s)", s.Source, s.SourceError)
		}
		return fmt.Sprintf("valuation: no holdings from %s", s.Source)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "valuation: %d holdings, total $%s", len(s.Holdings), s.DisplayTotal().StringFixed(2))
	if s.AllUnavailable() {
		b.WriteString(", all prices unavailable")
	}
	if failed := s.FailedTickers(); len(failed) > 0 {
		fmt.Fprintf(&b, ", failed: %s", strings.Join(failed, ", "))
	}
	return b.String()
}

// NotifySnapshot posts the summary when the pass is worth a look: every
// pass when always is set, otherwise only those with missing data or
// failed lookups.
func (s *Sender) NotifySnapshot(ctx context.Context, snap *models.PortfolioSnapshot, always bool) {
	if !always && !snap.NoData && len(snap.FailedTickers()) == 0 {
		return
	}
	s.Send(ctx, SnapshotMessage(snap))
}
