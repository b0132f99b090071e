package balances

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerline/ledgerline/internal/accounting/accounts"
	"github.com/ledgerline/ledgerline/internal/accounting/shared"
)

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the pgx-backed balance source. Lines of
// posted and reversed entries are visible to it; a reversal pair nets
// to zero, so reversed originals must stay in the sums. Drafts never
// appear.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) GetAccount(ctx context.Context, accountID int64) (AccountInfo, error) {
	var info AccountInfo
	var category string
	err := r.pool.QueryRow(ctx, `SELECT id, code, name, category, opening_balance, opening_date
FROM accounts WHERE id=$1`, accountID).
		Scan(&info.ID, &info.Code, &info.Name, &category, &info.OpeningBalance, &info.OpeningDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AccountInfo{}, shared.ErrAccountNotFound
		}
		return AccountInfo{}, err
	}
	info.Nature = accounts.NatureOf(accounts.Category(category))
	return info, nil
}

func (r *repository) ListLeafAccounts(ctx context.Context) ([]AccountInfo, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, code, name, category, opening_balance, opening_date
FROM accounts WHERE is_leaf AND is_active ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AccountInfo
	for rows.Next() {
		var info AccountInfo
		var category string
		if err := rows.Scan(&info.ID, &info.Code, &info.Name, &category, &info.OpeningBalance, &info.OpeningDate); err != nil {
			return nil, err
		}
		info.Nature = accounts.NatureOf(accounts.Category(category))
		out = append(out, info)
	}
	return out, rows.Err()
}

func (r *repository) ListPostedLines(ctx context.Context, accountID int64, from, to time.Time) ([]Line, error) {
	rows, err := r.pool.Query(ctx, `SELECT l.id, e.id, e.number, e.date, l.account_id, l.debit, l.credit, l.memo
FROM journal_lines l
JOIN journal_entries e ON e.id = l.je_id
WHERE l.account_id=$1 AND e.status IN ('POSTED','REVERSED') AND e.date BETWEEN $2 AND $3
ORDER BY e.date, e.id, l.id`, accountID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Line
	for rows.Next() {
		var line Line
		if err := rows.Scan(&line.LineID, &line.EntryID, &line.EntryNumber, &line.EntryDate, &line.AccountID, &line.Debit, &line.Credit, &line.Memo); err != nil {
			return nil, err
		}
		out = append(out, line)
	}
	return out, rows.Err()
}

func (r *repository) SumPostedLines(ctx context.Context, accountID int64, from, to time.Time) (float64, float64, int, error) {
	var debit, credit float64
	var lines int
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(l.debit),0), COALESCE(SUM(l.credit),0), COUNT(l.id)
FROM journal_lines l
JOIN journal_entries e ON e.id = l.je_id
WHERE l.account_id=$1 AND e.status IN ('POSTED','REVERSED') AND e.date BETWEEN $2 AND $3`, accountID, from, to).
		Scan(&debit, &credit, &lines)
	if err != nil {
		return 0, 0, 0, err
	}
	return debit, credit, lines, nil
}
