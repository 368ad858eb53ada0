package writeback

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/kjannette/trahn-portfolio/internal/external"
	"github.com/kjannette/trahn-portfolio/internal/models"
)

const (
	PropCurrentPrice = "Current Price"
	PropMarketValue  = "Market Value"

	// DefaultDelay keeps consecutive updates under Notion's request rate.
	DefaultDelay = 300 * time.Millisecond
)

type PageUpdater interface {
	UpdatePage(ctx context.Context, pageID string, props map[string]external.NotionProperty) error
}

// ErrorObserver is told about every row that failed to write.
type ErrorObserver interface {
	ObserveWriteError()
}

type RowError struct {
	Ticker string
	Err    error
}

type SyncReport struct {
	Updated int
	Skipped []string
	Failed  []RowError
	Created int
}

type Syncer struct {
	updater  PageUpdater
	index    *PageIndex
	delay    time.Duration
	sleep    func(context.Context, time.Duration) error
	observer ErrorObserver
	log      zerolog.Logger
}

type Option func(*Syncer)

// WithDelay sets the pause between updates. Zero disables it.
func WithDelay(d time.Duration) Option {
	return func(s *Syncer) { s.delay = d }
}

func WithErrorObserver(o ErrorObserver) Option {
	return func(s *Syncer) { s.observer = o }
}

func NewSyncer(updater PageUpdater, index *PageIndex, log zerolog.Logger, opts ...Option) *Syncer {
	s := &Syncer{
		updater: updater,
		index:   index,
		delay:   DefaultDelay,
		sleep:   sleepCtx,
		log:     log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sync writes Current Price and Market Value (both at 2 dp) for every priced
// row. Rows whose lookup failed are skipped so a transient outage never
// overwrites a good price with zero. Row failures are collected, not fatal.
func (s *Syncer) Sync(ctx context.Context, snap *models.PortfolioSnapshot) SyncReport {
	var rep SyncReport
	wrote := false

	for _, h := range snap.Holdings {
		if err := ctx.Err(); err != nil {
			rep.Failed = append(rep.Failed, RowError{Ticker: h.Ticker, Err: err})
			continue
		}
		if h.Failed() {
			rep.Skipped = append(rep.Skipped, h.Ticker)
			s.log.Warn().Str("ticker", h.Ticker).Str("reason", h.Error).Msg("skipping write-back for failed lookup")
			continue
		}

		if wrote && s.delay > 0 {
			if err := s.sleep(ctx, s.delay); err != nil {
				rep.Failed = append(rep.Failed, RowError{Ticker: h.Ticker, Err: err})
				continue
			}
		}
		wrote = true

		if err := s.writeRow(ctx, h); err != nil {
			rep.Failed = append(rep.Failed, RowError{Ticker: h.Ticker, Err: err})
			if s.observer != nil {
				s.observer.ObserveWriteError()
			}
			s.log.Error().Err(err).Str("ticker", h.Ticker).Msg("write-back failed")
			continue
		}
		rep.Updated++
		s.log.Info().
			Str("ticker", h.Ticker).
			Str("price", h.DisplayPrice().StringFixed(2)).
			Msg("write-back ok")
	}

	rep.Created = s.index.Created()
	return rep
}

func (s *Syncer) writeRow(ctx context.Context, h models.PricedHolding) error {
	pageID := h.Ref
	if pageID != "" {
		s.index.Remember(h.Ticker, pageID)
	} else {
		id, err := s.index.Ensure(ctx, h.Ticker)
		if err != nil {
			return err
		}
		pageID = id
	}

	return s.updater.UpdatePage(ctx, pageID, map[string]external.NotionProperty{
		PropCurrentPrice: external.NumberProperty(h.DisplayPrice()),
		PropMarketValue:  external.NumberProperty(h.DisplayValue()),
	})
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
