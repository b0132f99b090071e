package accounts

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerline/ledgerline/internal/accounting/shared"
	"github.com/ledgerline/ledgerline/internal/platform/db"
)

// Repository defines data access for the chart of accounts.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Account, error)
	GetByCode(ctx context.Context, code string) (Account, error)
	List(ctx context.Context) ([]Account, error)
	ListChildren(ctx context.Context, parentID int64) ([]Account, error)
	ListTypes(ctx context.Context) ([]AccountType, error)
}

// TxRepository exposes transactional account operations.
type TxRepository interface {
	Get(ctx context.Context, id int64) (Account, error)
	GetForUpdate(ctx context.Context, id int64) (Account, error)
	Insert(ctx context.Context, in CreateInput, level int) (Account, error)
	Update(ctx context.Context, in UpdateInput) error
	SetLeaf(ctx context.Context, id int64, leaf bool) error
	Delete(ctx context.Context, id int64) error
	CountChildren(ctx context.Context, id int64) (int, error)
	CountJournalLines(ctx context.Context, id int64) (int, error)
	GetType(ctx context.Context, id int64) (AccountType, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the pgx-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const accountColumns = `id, code, name, type_id, category, parent_id, level, is_leaf,
is_cash, is_bank, is_reconcilable, is_control, is_system, is_active,
opening_balance, opening_date, bank_name, bank_iban, bank_swift,
credit_limit, minimum_balance, low_balance_warning, created_at, updated_at`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	var bankName, bankIBAN, bankSWIFT *string
	err := row.Scan(&a.ID, &a.Code, &a.Name, &a.TypeID, &a.Category, &a.ParentID, &a.Level, &a.IsLeaf,
		&a.IsCash, &a.IsBank, &a.IsReconcilable, &a.IsControl, &a.IsSystem, &a.IsActive,
		&a.OpeningBalance, &a.OpeningDate, &bankName, &bankIBAN, &bankSWIFT,
		&a.Limits.CreditLimit, &a.Limits.MinimumBalance, &a.Limits.LowBalanceWarning, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, shared.ErrAccountNotFound
		}
		return Account{}, err
	}
	if bankName != nil || bankIBAN != nil || bankSWIFT != nil {
		a.Bank = &BankDetails{}
		if bankName != nil {
			a.Bank.BankName = *bankName
		}
		if bankIBAN != nil {
			a.Bank.IBAN = *bankIBAN
		}
		if bankSWIFT != nil {
			a.Bank.SWIFT = *bankSWIFT
		}
	}
	return a, nil
}

func (r *repository) Get(ctx context.Context, id int64) (Account, error) {
	return scanAccount(r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id=$1`, id))
}

func (r *repository) GetByCode(ctx context.Context, code string) (Account, error) {
	return scanAccount(r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE code=$1`, code))
}

func (r *repository) List(ctx context.Context) ([]Account, error) {
	return r.queryAccounts(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY code`)
}

func (r *repository) ListChildren(ctx context.Context, parentID int64) ([]Account, error) {
	return r.queryAccounts(ctx, `SELECT `+accountColumns+` FROM accounts WHERE parent_id=$1 ORDER BY code`, parentID)
}

func (r *repository) queryAccounts(ctx context.Context, sql string, args ...any) ([]Account, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *repository) ListTypes(ctx context.Context) ([]AccountType, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, code, name, category, parent_id, level, created_at, updated_at FROM account_types ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AccountType
	for rows.Next() {
		var t AccountType
		if err := rows.Scan(&t.ID, &t.Code, &t.Name, &t.Category, &t.ParentID, &t.Level, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// WithTx executes fn within a repeatable-read transaction.
func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) Get(ctx context.Context, id int64) (Account, error) {
	return scanAccount(r.tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id=$1`, id))
}

func (r *txRepository) GetForUpdate(ctx context.Context, id int64) (Account, error) {
	return scanAccount(r.tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id=$1 FOR UPDATE`, id))
}

func (r *txRepository) Insert(ctx context.Context, in CreateInput, level int) (Account, error) {
	var bankName, bankIBAN, bankSWIFT *string
	if in.Bank != nil {
		bankName, bankIBAN, bankSWIFT = &in.Bank.BankName, &in.Bank.IBAN, &in.Bank.SWIFT
	}
	row := r.tx.QueryRow(ctx, `INSERT INTO accounts
(code, name, type_id, category, parent_id, level, is_leaf, is_cash, is_bank, is_reconcilable, is_control, is_system, is_active,
 opening_balance, opening_date, bank_name, bank_iban, bank_swift, credit_limit, minimum_balance, low_balance_warning)
SELECT $1,$2,$3,t.category,$4,$5,TRUE,$6,$7,$8,$9,$10,TRUE,$11,$12,$13,$14,$15,$16,$17,$18
FROM account_types t WHERE t.id=$3
RETURNING `+accountColumns,
		in.Code, in.Name, in.TypeID, in.ParentID, level, in.IsCash, in.IsBank, in.IsReconcilable,
		in.IsControl, in.IsSystem, in.OpeningBalance, in.OpeningDate, bankName, bankIBAN, bankSWIFT,
		in.Limits.CreditLimit, in.Limits.MinimumBalance, in.Limits.LowBalanceWarning)
	account, err := scanAccount(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Account{}, shared.ErrDuplicateCode
		}
		return Account{}, err
	}
	return account, nil
}

func (r *txRepository) Update(ctx context.Context, in UpdateInput) error {
	var bankName, bankIBAN, bankSWIFT *string
	if in.Bank != nil {
		bankName, bankIBAN, bankSWIFT = &in.Bank.BankName, &in.Bank.IBAN, &in.Bank.SWIFT
	}
	cmd, err := r.tx.Exec(ctx, `UPDATE accounts SET name=$2, is_reconcilable=$3,
bank_name=$4, bank_iban=$5, bank_swift=$6, credit_limit=$7, minimum_balance=$8, low_balance_warning=$9, updated_at=NOW()
WHERE id=$1`, in.AccountID, in.Name, in.IsReconcilable, bankName, bankIBAN, bankSWIFT,
		in.Limits.CreditLimit, in.Limits.MinimumBalance, in.Limits.LowBalanceWarning)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrAccountNotFound
	}
	return nil
}

func (r *txRepository) SetLeaf(ctx context.Context, id int64, leaf bool) error {
	_, err := r.tx.Exec(ctx, `UPDATE accounts SET is_leaf=$2, updated_at=NOW() WHERE id=$1`, id, leaf)
	return err
}

func (r *txRepository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.tx.Exec(ctx, `DELETE FROM accounts WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrAccountNotFound
	}
	return nil
}

func (r *txRepository) CountChildren(ctx context.Context, id int64) (int, error) {
	var n int
	err := r.tx.QueryRow(ctx, `SELECT COUNT(*) FROM accounts WHERE parent_id=$1`, id).Scan(&n)
	return n, err
}

func (r *txRepository) CountJournalLines(ctx context.Context, id int64) (int, error) {
	var n int
	err := r.tx.QueryRow(ctx, `SELECT COUNT(*) FROM journal_lines WHERE account_id=$1`, id).Scan(&n)
	return n, err
}

func (r *txRepository) GetType(ctx context.Context, id int64) (AccountType, error) {
	var t AccountType
	err := r.tx.QueryRow(ctx, `SELECT id, code, name, category, parent_id, level, created_at, updated_at FROM account_types WHERE id=$1`, id).
		Scan(&t.ID, &t.Code, &t.Name, &t.Category, &t.ParentID, &t.Level, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AccountType{}, shared.ErrAccountNotFound
		}
		return AccountType{}, err
	}
	return t, nil
}
