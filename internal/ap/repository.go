package ap

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerline/ledgerline/internal/platform/db"
)

// Repository abstracts AP persistence.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetInvoice(ctx context.Context, id int64) (Invoice, error)
	ListInvoices(ctx context.Context, status InvoiceStatus, limit int) ([]Invoice, error)
	GetPayment(ctx context.Context, id int64) (Payment, error)
	ListPayments(ctx context.Context, limit int) ([]Payment, error)
	AgedInvoices(ctx context.Context, asOf time.Time) ([]AgedInvoice, error)
}

// TxRepository exposes transactional AP operations.
type TxRepository interface {
	InsertInvoice(ctx context.Context, inv Invoice) (Invoice, error)
	InsertInvoiceLines(ctx context.Context, invoiceID int64, lines []InvoiceLine) ([]InvoiceLine, error)
	GetInvoiceForUpdate(ctx context.Context, id int64) (Invoice, error)
	UpdateInvoiceStatus(ctx context.Context, id int64, status InvoiceStatus, journalID *int64) error
	DeleteInvoice(ctx context.Context, id int64) error

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

// NewRepository constructs the pgx-backed AP repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const invoiceColumns = `id, number, supplier_id, supplier_name, date, due_date, status, total, journal_id, created_by, created_at, updated_at`

type rowQueryer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func scanInvoice(row pgx.Row) (Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.Number, &inv.SupplierID, &inv.SupplierName, &inv.Date, &inv.DueDate,
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
	rows, err := q.Query(ctx, `SELECT id, invoice_id, description, qty, unit_cost, amount
FROM ap_invoice_lines WHERE invoice_id=$1 ORDER BY id`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []InvoiceLine
	for rows.Next() {
		var line InvoiceLine
		if err := rows.Scan(&line.ID, &line.InvoiceID, &line.Description, &line.Qty, &line.UnitCost, &line.Amount); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func (r *repository) GetInvoice(ctx context.Context, id int64) (Invoice, error) {
	inv, err := scanInvoice(r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM ap_invoices WHERE id=$1`, id))
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
	sql := `SELECT ` + invoiceColumns + ` FROM ap_invoices ORDER BY date DESC, id DESC LIMIT $1`
	args := []any{limit}
	if status != "" {
		sql = `SELECT ` + invoiceColumns + ` FROM ap_invoices WHERE status=$1 ORDER BY date DESC, id DESC LIMIT $2`
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
FROM ap_payments p JOIN ap_invoices i ON i.id = p.invoice_id WHERE p.id=$1`, id))
}

func (r *repository) ListPayments(ctx context.Context, limit int) ([]Payment, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT `+paymentColumns+`
FROM ap_payments p JOIN ap_invoices i ON i.id = p.invoice_id ORDER BY p.date DESC, p.id DESC LIMIT $1`, limit)
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
// posted payments applied, capped at asOf.
func (r *repository) AgedInvoices(ctx context.Context, asOf time.Time) ([]AgedInvoice, error) {
	rows, err := r.pool.Query(ctx, `SELECT i.id, i.number, i.supplier_id, i.supplier_name, i.date, i.total,
COALESCE((SELECT SUM(p.amount) FROM ap_payments p WHERE p.invoice_id=i.id AND p.status='POSTED' AND p.date <= $1), 0)
FROM ap_invoices i
WHERE i.status='CONFIRMED' AND i.date <= $1
ORDER BY i.supplier_name, i.date`, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AgedInvoice
	for rows.Next() {
		var a AgedInvoice
		if err := rows.Scan(&a.InvoiceID, &a.Number, &a.PartyID, &a.PartyName, &a.Date, &a.Total, &a.Paid); err != nil {
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
	err := r.tx.QueryRow(ctx, `INSERT INTO ap_invoices (number, supplier_id, supplier_name, date, due_date, status, total, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id, created_at, updated_at`,
		inv.Number, inv.SupplierID, inv.SupplierName, inv.Date, inv.DueDate, inv.Status, inv.Total, inv.CreatedBy).
		Scan(&inv.ID, &inv.CreatedAt, &inv.UpdatedAt)
	return inv, err
}

func (r *txRepository) InsertInvoiceLines(ctx context.Context, invoiceID int64, lines []InvoiceLine) ([]InvoiceLine, error) {
	out := make([]InvoiceLine, 0, len(lines))
	for _, line := range lines {
		line.InvoiceID = invoiceID
		err := r.tx.QueryRow(ctx, `INSERT INTO ap_invoice_lines (invoice_id, description, qty, unit_cost, amount)
VALUES ($1,$2,$3,$4,$5) RETURNING id`,
			invoiceID, line.Description, line.Qty, line.UnitCost, line.Amount).Scan(&line.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, line)
	}
	return out, nil
}

func (r *txRepository) GetInvoiceForUpdate(ctx context.Context, id int64) (Invoice, error) {
	inv, err := scanInvoice(r.tx.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM ap_invoices WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return Invoice{}, err
	}
	inv.Lines, err = queryInvoiceLines(ctx, r.tx, id)
	return inv, err
}

func (r *txRepository) UpdateInvoiceStatus(ctx context.Context, id int64, status InvoiceStatus, journalID *int64) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE ap_invoices SET status=$2, journal_id=COALESCE($3, journal_id), updated_at=NOW() WHERE id=$1`, id, status, journalID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}

func (r *txRepository) DeleteInvoice(ctx context.Context, id int64) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM ap_invoice_lines WHERE invoice_id=$1`, id); err != nil {
		return err
	}
	cmd, err := r.tx.Exec(ctx, `DELETE FROM ap_invoices WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}

func (r *txRepository) InsertPayment(ctx context.Context, p Payment) (Payment, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO ap_payments (number, invoice_id, amount, date, method, account_id, note, status, sync_status, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) RETURNING id, created_at, updated_at`,
		p.Number, p.InvoiceID, p.Amount, p.Date, p.Method, p.AccountID, p.Note, p.Status, p.SyncStatus, p.CreatedBy).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *txRepository) GetPaymentForUpdate(ctx context.Context, id int64) (Payment, error) {
	return scanPayment(r.tx.QueryRow(ctx, `SELECT `+paymentColumns+`
FROM ap_payments p JOIN ap_invoices i ON i.id = p.invoice_id WHERE p.id=$1 FOR UPDATE OF p`, id))
}

func (r *txRepository) UpdatePaymentFields(ctx context.Context, p Payment) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE ap_payments SET amount=$2, date=$3, method=$4, account_id=$5, note=$6, updated_at=NOW() WHERE id=$1`,
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
	_, err := r.tx.Exec(ctx, `UPDATE ap_payments SET status='POSTED', sync_status='SYNCED', sync_message='', journal_id=$2, posted_at=$3, updated_at=NOW() WHERE id=$1`,
		id, journalID, postedAt)
	return err
}

func (r *txRepository) SetPaymentUnposted(ctx context.Context, id int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE ap_payments SET status='DRAFT', sync_status='PENDING', sync_message='', journal_id=NULL, posted_at=NULL, updated_at=NOW() WHERE id=$1`, id)
	return err
}

func (r *txRepository) SetPaymentSync(ctx context.Context, id int64, status SyncStatus, message string) error {
	_, err := r.tx.Exec(ctx, `UPDATE ap_payments SET sync_status=$2, sync_message=$3, updated_at=NOW() WHERE id=$1`, id, status, message)
	return err
}

func (r *txRepository) DeletePayment(ctx context.Context, id int64) error {
	cmd, err := r.tx.Exec(ctx, `DELETE FROM ap_payments WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrPaymentNotFound
	}
	return nil
}
