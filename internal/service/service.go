// Package service runs valuation passes end to end: load holdings, price
// them, store the snapshot, notify and optionally write back.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/kjannette/trahn-portfolio/internal/models"
	"github.com/kjannette/trahn-portfolio/internal/valuation"
	"github.com/kjannette/trahn-portfolio/internal/writeback"
)

// ErrNoSnapshot is returned by Latest before any pass has run or been stored.
var ErrNoSnapshot = errors.New("no snapshot available")

type Store interface {
	Record(ctx context.Context, s *models.PortfolioSnapshot) error
	GetLatest(ctx context.Context) (*models.PortfolioSnapshot, error)
	GetHistory(ctx context.Context, limit int) ([]models.RunSummary, error)
}

type Notifier interface {
	NotifySnapshot(ctx context.Context, s *models.PortfolioSnapshot, always bool)
}

type Syncer interface {
	Sync(ctx context.Context, s *models.PortfolioSnapshot) writeback.SyncReport
}

// Deps wires a Service. Store, Notifier and NewSyncer are optional.
type Deps struct {
	Engine       *valuation.Engine
	Source       valuation.Loader
	Store        Store
	Notifier     Notifier
	NotifyAlways bool
	// NewSyncer builds a fresh syncer per pass so page lookups never
	// outlive one run.
	NewSyncer func() Syncer
	Logger    zerolog.Logger
}

type Result struct {
	Snapshot *models.PortfolioSnapshot
	Report   valuation.Report
	Sync     *writeback.SyncReport
}

// Service serialises passes; a refresh requested while one is running
// waits for it.
type Service struct {
	mu   sync.Mutex
	deps Deps
	log  zerolog.Logger

	lastMu sync.RWMutex
	last   *models.PortfolioSnapshot
}

func New(deps Deps) *Service {
	return &Service{deps: deps, log: deps.Logger}
}

// Refresh runs one valuation pass. Storage failures are returned alongside
// the snapshot, which is still kept in memory.
func (s *Service) Refresh(ctx context.Context) (*Result, error) {
	return s.run(ctx, false)
}

// RefreshAndSync runs a pass and writes prices back to the database the
// holdings came from.
func (s *Service) RefreshAndSync(ctx context.Context) (*Result, error) {
	if s.deps.NewSyncer == nil {
		return nil, errors.New("write-back is not configured")
	}
	return s.run(ctx, true)
}

func (s *Service) run(ctx context.Context, withSync bool) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, rep := s.deps.Engine.Run(ctx, s.deps.Source)
	res := &Result{Snapshot: snap, Report: rep}

	s.lastMu.Lock()
	s.last = snap
	s.lastMu.Unlock()

	var storeErr error
	if s.deps.Store != nil {
		if err := s.deps.Store.Record(ctx, snap); err != nil {
			storeErr = fmt.Errorf("record snapshot: %w", err)
			s.log.Error().Err(err).Str("run_id", snap.RunID.String()).Msg("snapshot not stored")
		}
	}

	if withSync && !snap.NoData {
		sr := s.deps.NewSyncer().Sync(ctx, snap)
		res.Sync = &sr
		s.log.Info().
			Int("updated", sr.Updated).
			Int("skipped", len(sr.Skipped)).
			Int("failed", len(sr.Failed)).
			Int("created", sr.Created).
			Msg("write-back complete")
	}

	if s.deps.Notifier != nil {
		s.deps.Notifier.NotifySnapshot(ctx, snap, s.deps.NotifyAlways)
	}
	return res, storeErr
}

// Latest returns the newest snapshot, preferring the store.
func (s *Service) Latest(ctx context.Context) (*models.PortfolioSnapshot, error) {
	if s.deps.Store != nil {
		snap, err := s.deps.Store.GetLatest(ctx)
		if err != nil {
			return nil, err
		}
		if snap != nil {
			return snap, nil
		}
	}

	s.lastMu.RLock()
	defer s.lastMu.RUnlock()
	if s.last == nil {
		return nil, ErrNoSnapshot
	}
	return s.last, nil
}

// History lists stored runs, newest first. Without a store it holds at most
// the in-memory snapshot.
func (s *Service) History(ctx context.Context, limit int) ([]models.RunSummary, error) {
	if s.deps.Store != nil {
		return s.deps.Store.GetHistory(ctx, limit)
	}
	s.lastMu.RLock()
	defer s.lastMu.RUnlock()
	if s.last == nil {
		return []models.RunSummary{}, nil
	}
	return []models.RunSummary{s.last.Summary()}, nil
}

func (s *Service) SourceName() string {
	return s.deps.Source.Name()
}
