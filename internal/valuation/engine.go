// Package valuation turns holdings into a priced portfolio snapshot.
package valuation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/kjannette/trahn-portfolio/internal/models"
	"github.com/kjannette/trahn-portfolio/internal/pricing"
)

type Quoter interface {
	Quote(ctx context.Context, ticker string) pricing.QuoteResult
}

// Loader is the holdings source contract: a finite, ordered, complete list.
type Loader interface {
	Name() string
	Load(ctx context.Context) ([]models.HoldingRecord, error)
}

type SnapshotObserver interface {
	ObserveSnapshot(s *models.PortfolioSnapshot)
}

// Report summarises one pass for logs and notifications.
type Report struct {
	Holdings int
	Priced   int
	Failures []pricing.QuoteResult
}

func (r Report) Failed() int {
	return len(r.Failures)
}

type Engine struct {
	quoter   Quoter
	observer SnapshotObserver
	log      zerolog.Logger
	now      func() time.Time
	newID    func() uuid.UUID
}

func NewEngine(q Quoter, observer SnapshotObserver, log zerolog.Logger) *Engine {
	return &Engine{
		quoter:   q,
		observer: observer,
		log:      log,
		now:      time.Now,
		newID:    uuid.New,
	}
}

// Run loads holdings from src and values them. A source failure yields a
// snapshot with NoData set and the reason in SourceError.
func (e *Engine) Run(ctx context.Context, src Loader) (*models.PortfolioSnapshot, Report) {
	records, err := src.Load(ctx)
	if err != nil {
		e.log.Error().Err(err).Str("source", src.Name()).Msg("holdings source failed")
		snap := e.empty(src.Name())
		snap.SourceError = err.Error()
		e.observe(snap)
		return snap, Report{}
	}

	snap, rep := e.Value(ctx, records)
	snap.Source = src.Name()
	return snap, rep
}

// Value prices every record in order, one lookup at a time. Failed lookups
// stay in the snapshot at price zero and are listed in the report.
func (e *Engine) Value(ctx context.Context, records []models.HoldingRecord) (*models.PortfolioSnapshot, Report) {
	if len(records) == 0 {
		snap := e.empty("")
		e.observe(snap)
		return snap, Report{}
	}

	snap := &models.PortfolioSnapshot{
		RunID:      e.newID(),
		TakenAt:    e.now().UTC(),
		Holdings:   make([]models.PricedHolding, 0, len(records)),
		TotalValue: decimal.Zero,
	}
	rep := Report{Holdings: len(records)}

	for _, rec := range records {
		q := e.quoter.Quote(ctx, rec.Ticker)

		ph := models.PricedHolding{
			HoldingRecord: rec,
			Route:         q.Route,
			Price:         q.Price,
			Source:        q.Source,
		}
		if q.Err != nil {
			ph.Price = decimal.Zero
			ph.Error = q.Err.Error()
			rep.Failures = append(rep.Failures, q)
		} else {
			rep.Priced++
		}
		ph.Value = rec.Units.Mul(ph.Price)

		snap.Holdings = append(snap.Holdings, ph)
		snap.TotalValue = snap.TotalValue.Add(ph.Value)
	}

	ev := e.log.Info().
		Str("run_id", snap.RunID.String()).
		Int("holdings", rep.Holdings).
		Int("priced", rep.Priced).
		Int("failed", rep.Failed()).
		Str("total_usd", snap.DisplayTotal().StringFixed(2))
	if rep.Failed() > 0 {
		ev = ev.Strs("failed_tickers", snap.FailedTickers())
	}
	ev.Msg("valuation pass complete")

	e.observe(snap)
	return snap, rep
}

func (e *Engine) empty(source string) *models.PortfolioSnapshot {
	return &models.PortfolioSnapshot{
		RunID:      e.newID(),
		TakenAt:    e.now().UTC(),
		Source:     source,
		Holdings:   []models.PricedHolding{},
		TotalValue: decimal.Zero,
		NoData:     true,
	}
}

func (e *Engine) observe(s *models.PortfolioSnapshot) {
	if e.observer != nil {
		e.observer.ObserveSnapshot(s)
	}
}

// DisplayDrift is |Σ round2(value) − round2(Σ value)|, the gap between
// summing the displayed rows and displaying the total. It never exceeds
// 0.01 per row.
func DisplayDrift(s *models.PortfolioSnapshot) decimal.Decimal {
	rounded := decimal.Zero
	for _, h := range s.Holdings {
		rounded = rounded.Add(h.DisplayValue())
	}
	return rounded.Sub(s.DisplayTotal()).Abs()
}
