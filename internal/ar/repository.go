package ar

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerline/ledgerline/internal/platform/db"
)

// Repository abstracts AR persistence.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetInvoice(ctx context.Context, id int64) (Invoice, error)
	ListInvoices(ctx context.Context, status InvoiceStatus, limit int) ([]Invoice, error)
	GetReturn(ctx context.Context, id int64) (Return, error)
	GetPayment(ctx context.Context, id int64) (Payment, error)
	ListPayments(ctx context.Context, limit int) ([]Payment, error)
	AgedInvoices(ctx context.Context, asOf time.Time) ([]AgedInvoice, error)
}

// TxRepository exposes transactional AR operations.
type TxRepository interface {
	InsertInvoice(ctx context.Context, inv Invoice) (Invoice, error)
	InsertInvoiceLines(ctx context.Context, invoiceID int64, lines []InvoiceLine) ([]InvoiceLine, error)
	GetInvoiceForUpdate(ctx context.Context, id int64) (Invoice, error)
	UpdateInvoiceStatus(ctx context.Context, id int64, status InvoiceStatus, journalID *int64) error
	DeleteInvoice(ctx context.Context, id int64) error

	InsertReturn(ctx context.Context, ret Return) (Return, error)
	InsertReturnLines(ctx context.Context, returnID int64, lines []ReturnLine) ([]ReturnLine, error)
	GetReturnForUpdate(ctx context.Context, id int64) (Return, error)
	UpdateReturnStatus(ctx context.Context, id int64, status InvoiceStatus, journalID *int64) error
	SumConfirmedReturns(ctx context.Context, invoiceID int64) (float64, error)

	InsertPayment(ctx context.Context, p Payment) (Payment, error)
	GetPaymentForUpdate(ctx context.Context, id int64) (Payment, error)
	UpdatePaymentFields(ctx context.Context, p Payment) error
	SetPaymentPosted(ctx context.Context, id int64, journalID int64, postedAt time.Time) error
	SetPaymentUnposted(ctx context.Context, id int64) error
	SetPaymentSync(ctx context.Context, id int64, status SyncStatus, message string) error
	DeletePayment(ctx context.Context, id int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the pgx-backed AR repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const invoiceColumns = `id, number, customer_id, customer_name, date, due_date, status, total, journal_id, created_by, created_at, updated_at`

type rowQueryer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func scanInvoice(row pgx.Row) (Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.Number, &inv.CustomerID, &inv.CustomerName, &inv.Date, &inv.DueDate,
		&inv.Status, &inv.Total, &inv.JournalID, &inv.CreatedBy, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invoice{}, ErrInvoiceNotFound
		}
		return Invoice{}, err
	}
	return inv, nil
}

func queryInvoiceLines(ctx context.Context, q rowQueryer, invoiceID int64) ([]InvoiceLine, error) {
	rows, err := q.Query(ctx, `SELECT id, invoice_id, description, qty, unit_price, unit_cost, amount
FROM ar_invoice_lines WHERE invoice_id=$1 ORDER BY id`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []InvoiceLine
	for rows.Next() {
		var line InvoiceLine
		if err := rows.Scan(&line.ID, &line.InvoiceID, &line.Description, &line.Qty, &line.UnitPrice, &line.UnitCost, &line.Amount); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func (r *repository) GetInvoice(ctx context.Context, id int64) (Invoice, error) {
	inv, err := scanInvoice(r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM ar_invoices WHERE id=$1`, id))
	if err != nil {
		return Invoice{}, err
	}
	inv.Lines, err = queryInvoiceLines(ctx, r.pool, id)
	return inv, err
}

func (r *repository) ListInvoices(ctx context.Context, status InvoiceStatus, limit int) ([]Invoice, error) {
	if limit <= 0 {
		limit = 100
	}
	sql := `SELECT ` + invoiceColumns + ` FROM ar_invoices ORDER BY date DESC, id DESC LIMIT $1`
	args := []any{limit}
	if status != "" {
		sql = `SELECT ` + invoiceColumns + ` FROM ar_invoices WHERE status=$1 ORDER BY date DESC, id DESC LIMIT $2`
		args = []any{status, limit}
	}
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

const returnColumns = `r.id, r.number, r.invoice_id, i.number, r.date, r.status, r.total, r.journal_id, r.created_by, r.created_at, r.updated_at`

func scanReturn(row pgx.Row) (Return, error) {
	var ret Return
	err := row.Scan(&ret.ID, &ret.Number, &ret.InvoiceID, &ret.InvoiceNumber, &ret.Date, &ret.Status,
		&ret.Total, &ret.JournalID, &ret.CreatedBy, &ret.CreatedAt, &ret.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Return{}, ErrReturnNotFound
		}
		return Return{}, err
	}
	return ret, nil
}

func queryReturnLines(ctx context.Context, q rowQueryer, returnID int64) ([]ReturnLine, error) {
	rows, err := q.Query(ctx, `SELECT id, return_id, description, qty, unit_price, unit_cost, amount
FROM ar_return_lines WHERE return_id=$1 ORDER BY id`, returnID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []ReturnLine
	for rows.Next() {
		var line ReturnLine
		if err := rows.Scan(&line.ID, &line.ReturnID, &line.Description, &line.Qty, &line.UnitPrice, &line.UnitCost, &line.Amount); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func (r *repository) GetReturn(ctx context.Context, id int64) (Return, error) {
	ret, err := scanReturn(r.pool.QueryRow(ctx, `SELECT `+returnColumns+`
FROM ar_returns r JOIN ar_invoices i ON i.id = r.invoice_id WHERE r.id=$1`, id))
	if err != nil {
		return Return{}, err
	}
	ret.Lines, err = queryReturnLines(ctx, r.pool, id)
	return ret, err
}

const paymentColumns = `p.id, p.number, p.invoice_id, i.number, p.amount, p.date, p.method, p.account_id, p.note,
p.status, p.sync_status, p.sync_message, p.journal_id, p.created_by, p.posted_at, p.created_at, p.updated_at`

func scanPayment(row pgx.Row) (Payment, error) {
	var p Payment
	err := row.Scan(&p.ID, &p.Number, &p.InvoiceID, &p.InvoiceNumber, &p.Amount, &p.Date, &p.Method, &p.AccountID, &p.Note,
		&p.Status, &p.SyncStatus, &p.SyncMessage, &p.JournalID, &p.CreatedBy, &p.PostedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Payment{}, ErrPaymentNotFound
		}
		return Payment{}, err
	}
	return p, nil
}

func (r *repository) GetPayment(ctx context.Context, id int64) (Payment, error) {
	return scanPayment(r.pool.QueryRow(ctx, `SELECT `+paymentColumns+`
FROM ar_payments p JOIN ar_invoices i ON i.id = p.invoice_id WHERE p.id=$1`, id))
}

func (r *repository) ListPayments(ctx context.Context, limit int) ([]Payment, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT `+paymentColumns+`
FROM ar_payments p JOIN ar_invoices i ON i.id = p.invoice_id ORDER BY p.date DESC, p.id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// AgedInvoices returns confirmed invoices dated on or before asOf with
// posted payments and confirmed returns applied, both capped at asOf.
func (r *repository) AgedInvoices(ctx context.Context, asOf time.Time) ([]AgedInvoice, error) {
	rows, err := r.pool.Query(ctx, `SELECT i.id, i.number, i.customer_id, i.customer_name, i.date, i.total,
COALESCE((SELECT SUM(p.amount) FROM ar_payments p WHERE p.invoice_id=i.id AND p.status='POSTED' AND p.date <= $1), 0),
COALESCE((SELECT SUM(r.total) FROM ar_returns r WHERE r.invoice_id=i.id AND r.status='CONFIRMED' AND r.date <= $1), 0)
FROM ar_invoices i
WHERE i.status='CONFIRMED' AND i.date <= $1
ORDER BY i.customer_name, i.date`, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AgedInvoice
	for rows.Next() {
		var a AgedInvoice
		if err := rows.Scan(&a.InvoiceID, &a.Number, &a.PartyID, &a.PartyName, &a.Date, &a.Total, &a.Paid, &a.ReturnsTot); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) InsertInvoice(ctx context.Context, inv Invoice) (Invoice, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO ar_invoices (number, customer_id, customer_name, date, due_date, status, total, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id, created_at, updated_at`,
		inv.Number, inv.CustomerID, inv.CustomerName, inv.Date, inv.DueDate, inv.Status, inv.Total, inv.CreatedBy).
		Scan(&inv.ID, &inv.CreatedAt, &inv.UpdatedAt)
	return inv, err
}

func (r *txRepository) InsertInvoiceLines(ctx context.Context, invoiceID int64, lines []InvoiceLine) ([]InvoiceLine, error) {
	out := make([]InvoiceLine, 0, len(lines))
	for _, line := range lines {
		line.InvoiceID = invoiceID
		err := r.tx.QueryRow(ctx, `INSERT INTO ar_invoice_lines (invoice_id, description, qty, unit_price, unit_cost, amount)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`,
			invoiceID, line.Description, line.Qty, line.UnitPrice, line.UnitCost, line.Amount).Scan(&line.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, line)
	}
	return out, nil
}

func (r *txRepository) GetInvoiceForUpdate(ctx context.Context, id int64) (Invoice, error) {
	inv, err := scanInvoice(r.tx.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM ar_invoices WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return Invoice{}, err
	}
	inv.Lines, err = queryInvoiceLines(ctx, r.tx, id)
	return inv, err
}

func (r *txRepository) UpdateInvoiceStatus(ctx context.Context, id int64, status InvoiceStatus, journalID *int64) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE ar_invoices SET status=$2, journal_id=COALESCE($3, journal_id), updated_at=NOW() WHERE id=$1`, id, status, journalID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}

func (r *txRepository) DeleteInvoice(ctx context.Context, id int64) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM ar_invoice_lines WHERE invoice_id=$1`, id); err != nil {
		return err
	}
	cmd, err := r.tx.Exec(ctx, `DELETE FROM ar_invoices WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}

func (r *txRepository) InsertReturn(ctx context.Context, ret Return) (Return, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO ar_returns (number, invoice_id, date, status, total, created_by)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING id, created_at, updated_at`,
		ret.Number, ret.InvoiceID, ret.Date, ret.Status, ret.Total, ret.CreatedBy).
		Scan(&ret.ID, &ret.CreatedAt, &ret.UpdatedAt)
	return ret, err
}

func (r *txRepository) InsertReturnLines(ctx context.Context, returnID int64, lines []ReturnLine) ([]ReturnLine, error) {
	out := make([]ReturnLine, 0, len(lines))
	for _, line := range lines {
		line.ReturnID = returnID
		err := r.tx.QueryRow(ctx, `INSERT INTO ar_return_lines (return_id, description, qty, unit_price, unit_cost, amount)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`,
			returnID, line.Description, line.Qty, line.UnitPrice, line.UnitCost, line.Amount).Scan(&line.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, line)
	}
	return out, nil
}

func (r *txRepository) GetReturnForUpdate(ctx context.Context, id int64) (Return, error) {
	ret, err := scanReturn(r.tx.QueryRow(ctx, `SELECT `+returnColumns+`
FROM ar_returns r JOIN ar_invoices i ON i.id = r.invoice_id WHERE r.id=$1 FOR UPDATE OF r`, id))
	if err != nil {
		return Return{}, err
	}
	ret.Lines, err = queryReturnLines(ctx, r.tx, id)
	return ret, err
}

func (r *txRepository) UpdateReturnStatus(ctx context.Context, id int64, status InvoiceStatus, journalID *int64) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE ar_returns SET status=$2, journal_id=COALESCE($3, journal_id), updated_at=NOW() WHERE id=$1`, id, status, journalID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrReturnNotFound
	}
	return nil
}

func (r *txRepository) SumConfirmedReturns(ctx context.Context, invoiceID int64) (float64, error) {
	var total float64
	err := r.tx.QueryRow(ctx, `SELECT COALESCE(SUM(total),0) FROM ar_returns WHERE invoice_id=$1 AND status='CONFIRMED'`, invoiceID).Scan(&total)
	return total, err
}

func (r *txRepository) InsertPayment(ctx context.Context, p Payment) (Payment, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO ar_payments (number, invoice_id, amount, date, method, account_id, note, status, sync_status, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) RETURNING id, created_at, updated_at`,
		p.Number, p.InvoiceID, p.Amount, p.Date, p.Method, p.AccountID, p.Note, p.Status, p.SyncStatus, p.CreatedBy).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *txRepository) GetPaymentForUpdate(ctx context.Context, id int64) (Payment, error) {
	return scanPayment(r.tx.QueryRow(ctx, `SELECT `+paymentColumns+`
FROM ar_payments p JOIN ar_invoices i ON i.id = p.invoice_id WHERE p.id=$1 FOR UPDATE OF p`, id))
}

func (r *txRepository) UpdatePaymentFields(ctx context.Context, p Payment) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE ar_payments SET amount=$2, date=$3, method=$4, account_id=$5, note=$6, updated_at=NOW() WHERE id=$1`,
		p.ID, p.Amount, p.Date, p.Method, p.AccountID, p.Note)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

func (r *txRepository) SetPaymentPosted(ctx context.Context, id int64, journalID int64, postedAt time.Time) error {
	_, err := r.tx.Exec(ctx, `UPDATE ar_payments SET status='POSTED', sync_status='SYNCED', sync_message='', journal_id=$2, posted_at=$3, updated_at=NOW() WHERE id=$1`,
		id, journalID, postedAt)
	return err
}

func (r *txRepository) SetPaymentUnposted(ctx context.Context, id int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE ar_payments SET status='DRAFT', sync_status='PENDING', sync_message='', journal_id=NULL, posted_at=NULL, updated_at=NOW() WHERE id=$1`, id)
	return err
}

func (r *txRepository) SetPaymentSync(ctx context.Context, id int64, status SyncStatus, message string) error {
	_, err := r.tx.Exec(ctx, `UPDATE ar_payments SET sync_status=$2, sync_message=$3, updated_at=NOW() WHERE id=$1`, id, status, message)
	return err
}

func (r *txRepository) DeletePayment(ctx context.Context, id int64) error {
	cmd, err := r.tx.Exec(ctx, `DELETE FROM ar_payments WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrPaymentNotFound
	}
	return nil
}
