package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/kjannette/trahn-portfolio/internal/models"
)

const DefaultHistoryLimit = 30

// SnapshotRepo stores valuation passes. Decimals travel as text and are cast
// to NUMERIC in SQL so no precision is lost on the way in or out.
type SnapshotRepo struct {
	pool *pgxpool.Pool
}

func NewSnapshotRepo(pool *pgxpool.Pool) *SnapshotRepo {
	return &SnapshotRepo{pool: pool}
}

func (r *SnapshotRepo) Record(ctx context.Context, s *models.PortfolioSnapshot) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	sum := s.Summary()
	_, err = tx.Exec(ctx,
		`INSERT INTO valuation_runs
		 (run_id, taken_at, source, total_value, holdings, failed, no_data, source_error)
		 VALUES ($1::uuid, $2, $3, $4::numeric, $5, $6, $7, $8)`,
		s.RunID.String(), s.TakenAt, s.Source, s.TotalValue.String(),
		sum.Holdings, sum.Failed, s.NoData, s.SourceError,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for i, h := range s.Holdings {
		_, err = tx.Exec(ctx,
			`INSERT INTO valuation_rows
			 (run_id, position, account, ticker, route, units, price, value, source, error, ref)
			 VALUES ($1::uuid, $2, $3, $4, $5, $6::numeric, $7::numeric, $8::numeric, $9, $10, $11)`,
			s.RunID.String(), i, h.Account, h.Ticker, h.Route.String(),
			h.Units.String(), h.Price.String(), h.Value.String(),
			h.Source, h.Error, h.Ref,
		)
		if err != nil {
			return fmt.Errorf("insert row %s: %w", h.Ticker, err)
		}
	}

	return tx.Commit(ctx)
}

// GetLatest returns the most recent snapshot, or nil when none is stored.
func (r *SnapshotRepo) GetLatest(ctx context.Context) (*models.PortfolioSnapshot, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+runColumns+`, source_error FROM valuation_runs ORDER BY taken_at DESC LIMIT 1`,
	)
	return r.load(ctx, row)
}

// Get returns one snapshot by run id, or nil when it does not exist.
func (r *SnapshotRepo) Get(ctx context.Context, runID uuid.UUID) (*models.PortfolioSnapshot, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+runColumns+`, source_error FROM valuation_runs WHERE run_id = $1::uuid`,
		runID.String(),
	)
	return r.load(ctx, row)
}

// GetHistory lists run headers, newest first.
func (r *SnapshotRepo) GetHistory(ctx context.Context, limit int) ([]models.RunSummary, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+runColumns+` FROM valuation_runs ORDER BY taken_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.RunSummary
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// Prune deletes all but the newest keep runs and reports how many went.
func (r *SnapshotRepo) Prune(ctx context.Context, keep int) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM valuation_runs WHERE run_id NOT IN
		 (SELECT run_id FROM valuation_runs ORDER BY taken_at DESC LIMIT $1)`,
		keep,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *SnapshotRepo) load(ctx context.Context, row pgx.Row) (*models.PortfolioSnapshot, error) {
	var sourceErr string
	sum, err := scanSummary(row, &sourceErr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	holdings, err := r.rows(ctx, sum.RunID)
	if err != nil {
		return nil, err
	}
	return &models.PortfolioSnapshot{
		RunID:       sum.RunID,
		TakenAt:     sum.TakenAt,
		Source:      sum.Source,
		Holdings:    holdings,
		TotalValue:  sum.TotalValue,
		NoData:      sum.NoData,
		SourceError: sourceErr,
	}, nil
}

func (r *SnapshotRepo) rows(ctx context.Context, runID uuid.UUID) ([]models.PricedHolding, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT account, ticker, route, units::text, price::text, value::text, source, error, ref
		 FROM valuation_rows WHERE run_id = $1::uuid ORDER BY position ASC`,
		runID.String(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.PricedHolding{}
	for rows.Next() {
		var (
			h                   models.PricedHolding
			route               string
			units, price, value string
		)
		if err := rows.Scan(&h.Account, &h.Ticker, &route, &units, &price, &value, &h.Source, &h.Error, &h.Ref); err != nil {
			return nil, err
		}
		if err := h.Route.UnmarshalText([]byte(route)); err != nil {
			return nil, err
		}
		if h.Units, err = decimal.NewFromString(units); err != nil {
			return nil, err
		}
		if h.Price, err = decimal.NewFromString(price); err != nil {
			return nil, err
		}
		if h.Value, err = decimal.NewFromString(value); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// --- scan helpers ---

const runColumns = `run_id::text, taken_at, source, total_value::text, holdings, failed, no_data`

type scannable interface {
	Scan(dest ...any) error
}

func scanSummary(row scannable, extra ...any) (*models.RunSummary, error) {
	var (
		s       models.RunSummary
		id      string
		total   string
		takenAt time.Time
	)
	dest := append([]any{&id, &takenAt, &s.Source, &total, &s.Holdings, &s.Failed, &s.NoData}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	var err error
	if s.RunID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("run id %q: %w", id, err)
	}
	if s.TotalValue, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("total %q: %w", total, err)
	}
	s.TakenAt = takenAt.UTC()
	return &s, nil
}
