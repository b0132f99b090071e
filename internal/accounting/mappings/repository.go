package mappings

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerline/ledgerline/internal/accounting/shared"
)

// Repository reads role overrides from account_mappings.
type Repository interface {
	Get(ctx context.Context, role Role) (AccountMapping, error)
	Upsert(ctx context.Context, role Role, accountCode string) error
	List(ctx context.Context) ([]AccountMapping, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the pgx-backed mapping repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) Get(ctx context.Context, role Role) (AccountMapping, error) {
	if role == "" {
		return AccountMapping{}, errors.New("accounting: mapping role required")
	}
	var m AccountMapping
	err := r.pool.QueryRow(ctx, `SELECT role, account_code, created_at, updated_at FROM account_mappings WHERE role=$1`, role).
		Scan(&m.Role, &m.AccountCode, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AccountMapping{}, shared.ErrMappingNotFound
		}
		return AccountMapping{}, err
	}
	return m, nil
}

func (r *repository) Upsert(ctx context.Context, role Role, accountCode string) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO account_mappings (role, account_code) VALUES ($1,$2)
ON CONFLICT (role) DO UPDATE SET account_code=EXCLUDED.account_code, updated_at=NOW()`, role, accountCode)
	return err
}

func (r *repository) List(ctx context.Context) ([]AccountMapping, error) {
	rows, err := r.pool.Query(ctx, `SELECT role, account_code, created_at, updated_at FROM account_mappings ORDER BY role`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AccountMapping
	for rows.Next() {
		var m AccountMapping
		if err := rows.Scan(&m.Role, &m.AccountCode, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
