package periods

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerline/ledgerline/internal/accounting/shared"
)

// Repository provides period lookups and state changes.
type Repository interface {
	FindOpenPeriodByDate(ctx context.Context, date time.Time) (Period, error)
	Get(ctx context.Context, id int64) (Period, error)
	List(ctx context.Context) ([]Period, error)
	Create(ctx context.Context, code string, start, end time.Time) (Period, error)
	SetStatus(ctx context.Context, id int64, status Status, actorID int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the pgx-backed period repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const periodColumns = `id, code, start_date, end_date, status, closed_at, closed_by, created_at, updated_at`

func scanPeriod(row pgx.Row) (Period, error) {
	var p Period
	err := row.Scan(&p.ID, &p.Code, &p.StartDate, &p.EndDate, &p.Status, &p.ClosedAt, &p.ClosedBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Period{}, shared.ErrClosedPeriod
		}
		return Period{}, err
	}
	return p, nil
}

// FindOpenPeriodByDate returns the open period covering the supplied date.
func (r *repository) FindOpenPeriodByDate(ctx context.Context, date time.Time) (Period, error) {
	return scanPeriod(r.pool.QueryRow(ctx, `SELECT `+periodColumns+`
FROM periods WHERE status='OPEN' AND $1 BETWEEN start_date AND end_date ORDER BY start_date LIMIT 1`, date))
}

func (r *repository) Get(ctx context.Context, id int64) (Period, error) {
	return scanPeriod(r.pool.QueryRow(ctx, `SELECT `+periodColumns+` FROM periods WHERE id=$1`, id))
}

func (r *repository) List(ctx context.Context) ([]Period, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+periodColumns+` FROM periods ORDER BY start_date`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Period
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *repository) Create(ctx context.Context, code string, start, end time.Time) (Period, error) {
	return scanPeriod(r.pool.QueryRow(ctx, `INSERT INTO periods (code, start_date, end_date, status)
VALUES ($1,$2,$3,'OPEN') RETURNING `+periodColumns, code, start, end))
}

func (r *repository) SetStatus(ctx context.Context, id int64, status Status, actorID int64) error {
	var cmd string
	if status == StatusClosed {
		cmd = `UPDATE periods SET status=$2, closed_at=NOW(), closed_by=$3, updated_at=NOW() WHERE id=$1`
	} else {
		cmd = `UPDATE periods SET status=$2, closed_at=NULL, closed_by=NULLIF($3,0), updated_at=NOW() WHERE id=$1`
	}
	tag, err := r.pool.Exec(ctx, cmd, id, status, actorID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrClosedPeriod
	}
	return nil
}
