package journals

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerline/ledgerline/internal/accounting/periods"
	"github.com/ledgerline/ledgerline/internal/accounting/shared"
	"github.com/ledgerline/ledgerline/internal/platform/db"
)

// Repository abstracts transactional journal persistence.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, entryID int64) (JournalEntry, []JournalLine, error)
	GetBySource(ctx context.Context, module string, ref uuid.UUID) (JournalEntry, error)
	List(ctx context.Context, limit int) ([]JournalEntry, error)
}

// TxRepository exposes transactional journal operations.
type TxRepository interface {
	InsertEntry(ctx context.Context, entry JournalEntry) (JournalEntry, error)
	InsertLines(ctx context.Context, entryID int64, lines []LineInput) ([]JournalLine, error)
	GetEntryForUpdate(ctx context.Context, entryID int64) (JournalEntry, []JournalLine, error)
	UpdateStatus(ctx context.Context, entryID int64, status EntryStatus, postedAt *time.Time) error
	DeleteEntry(ctx context.Context, entryID int64) error
	GetPostingAccounts(ctx context.Context, ids []int64) (map[int64]PostingAccount, error)
	FindOpenPeriodByDate(ctx context.Context, date time.Time) (periods.Period, error)
	LinkSource(ctx context.Context, module string, ref uuid.UUID, entryID int64) error
	UnlinkSource(ctx context.Context, entryID int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the pgx-backed journal repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

// WithTx executes fn within a repeatable-read transaction.
func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const entryColumns = `id, number, period_id, date, type, status, reference, memo, source_module, source_id, created_by, posted_at, reverse_of, created_at, updated_at`

func scanEntry(row pgx.Row) (JournalEntry, error) {
	var e JournalEntry
	var sourceModule *string
	var sourceID *uuid.UUID
	err := row.Scan(&e.ID, &e.Number, &e.PeriodID, &e.Date, &e.Type, &e.Status, &e.Reference, &e.Memo,
		&sourceModule, &sourceID, &e.CreatedBy, &e.PostedAt, &e.ReverseOfID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalEntry{}, shared.ErrJournalNotFound
		}
		return JournalEntry{}, err
	}
	if sourceModule != nil {
		e.SourceModule = *sourceModule
	}
	if sourceID != nil {
		e.SourceID = *sourceID
	}
	return e, nil
}

func (r *repository) Get(ctx context.Context, entryID int64) (JournalEntry, []JournalLine, error) {
	entry, err := scanEntry(r.pool.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE id=$1`, entryID))
	if err != nil {
		return JournalEntry{}, nil, err
	}
	lines, err := queryLines(ctx, r.pool, entryID)
	if err != nil {
		return JournalEntry{}, nil, err
	}
	return entry, lines, nil
}

// GetBySource finds the entry a document was previously linked to.
func (r *repository) GetBySource(ctx context.Context, module string, ref uuid.UUID) (JournalEntry, error) {
	return scanEntry(r.pool.QueryRow(ctx, `SELECT e.id, e.number, e.period_id, e.date, e.type, e.status, e.reference, e.memo,
e.source_module, e.source_id, e.created_by, e.posted_at, e.reverse_of, e.created_at, e.updated_at
FROM journal_entries e JOIN source_links s ON s.je_id = e.id
WHERE s.module=$1 AND s.ref_id=$2`, module, ref))
}

func (r *repository) List(ctx context.Context, limit int) ([]JournalEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT `+entryColumns+` FROM journal_entries ORDER BY date DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []JournalEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func queryLines(ctx context.Context, q queryer, entryID int64) ([]JournalLine, error) {
	rows, err := q.Query(ctx, `SELECT id, je_id, account_id, debit, credit, memo, created_at, updated_at
FROM journal_lines WHERE je_id=$1 ORDER BY id ASC`, entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []JournalLine
	for rows.Next() {
		var line JournalLine
		if err := rows.Scan(&line.ID, &line.JournalID, &line.AccountID, &line.Debit, &line.Credit, &line.Memo, &line.CreatedAt, &line.UpdatedAt); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) InsertEntry(ctx context.Context, entry JournalEntry) (JournalEntry, error) {
	var sourceModule any
	var sourceID any
	if entry.SourceModule != "" {
		sourceModule = entry.SourceModule
	}
	if entry.SourceID != uuid.Nil {
		sourceID = entry.SourceID
	}
	row := r.tx.QueryRow(ctx, `INSERT INTO journal_entries (number, period_id, date, type, status, reference, memo, source_module, source_id, created_by, posted_at, reverse_of)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12) RETURNING id, created_at, updated_at`,
		entry.Number, entry.PeriodID, entry.Date, entry.Type, entry.Status, entry.Reference, entry.Memo,
		sourceModule, sourceID, entry.CreatedBy, entry.PostedAt, entry.ReverseOfID)
	if err := row.Scan(&entry.ID, &entry.CreatedAt, &entry.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.ConstraintName == "uq_journal_entries_number" {
			return JournalEntry{}, fmt.Errorf("%w: %s", shared.ErrNumberCollision, entry.Number)
		}
		return JournalEntry{}, err
	}
	return entry, nil
}

func (r *txRepository) InsertLines(ctx context.Context, entryID int64, lines []LineInput) ([]JournalLine, error) {
	out := make([]JournalLine, 0, len(lines))
	for _, line := range lines {
		var inserted JournalLine
		err := r.tx.QueryRow(ctx, `INSERT INTO journal_lines (je_id, account_id, debit, credit, memo)
VALUES ($1,$2,$3,$4,$5) RETURNING id, je_id, account_id, debit, credit, memo, created_at, updated_at`,
			entryID, line.AccountID, shared.Round2(line.Debit), shared.Round2(line.Credit), line.Memo).
			Scan(&inserted.ID, &inserted.JournalID, &inserted.AccountID, &inserted.Debit, &inserted.Credit, &inserted.Memo, &inserted.CreatedAt, &inserted.UpdatedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, inserted)
	}
	return out, nil
}

func (r *txRepository) GetEntryForUpdate(ctx context.Context, entryID int64) (JournalEntry, []JournalLine, error) {
	entry, err := scanEntry(r.tx.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE id=$1 FOR UPDATE`, entryID))
	if err != nil {
		return JournalEntry{}, nil, err
	}
	lines, err := queryLines(ctx, r.tx, entryID)
	if err != nil {
		return JournalEntry{}, nil, err
	}
	return entry, lines, nil
}

func (r *txRepository) UpdateStatus(ctx context.Context, entryID int64, status EntryStatus, postedAt *time.Time) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journal_entries SET status=$2, posted_at=COALESCE($3, posted_at), updated_at=NOW() WHERE id=$1`, entryID, status, postedAt)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrJournalNotFound
	}
	return nil
}

func (r *txRepository) DeleteEntry(ctx context.Context, entryID int64) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM journal_lines WHERE je_id=$1`, entryID); err != nil {
		return err
	}
	cmd, err := r.tx.Exec(ctx, `DELETE FROM journal_entries WHERE id=$1`, entryID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrJournalNotFound
	}
	return nil
}

func (r *txRepository) GetPostingAccounts(ctx context.Context, ids []int64) (map[int64]PostingAccount, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, code, is_leaf, is_active, is_cash, is_bank FROM accounts WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64]PostingAccount, len(ids))
	for rows.Next() {
		var a PostingAccount
		if err := rows.Scan(&a.ID, &a.Code, &a.IsLeaf, &a.IsActive, &a.IsCash, &a.IsBank); err != nil {
			return nil, err
		}
		out[a.ID] = a
	}
	return out, rows.Err()
}

func (r *txRepository) FindOpenPeriodByDate(ctx context.Context, date time.Time) (periods.Period, error) {
	var p periods.Period
	err := r.tx.QueryRow(ctx, `SELECT id, code, start_date, end_date, status, closed_at, closed_by, created_at, updated_at
FROM periods WHERE status='OPEN' AND $1 BETWEEN start_date AND end_date ORDER BY start_date LIMIT 1 FOR UPDATE`, date).
		Scan(&p.ID, &p.Code, &p.StartDate, &p.EndDate, &p.Status, &p.ClosedAt, &p.ClosedBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return periods.Period{}, shared.ErrClosedPeriod
		}
		return periods.Period{}, err
	}
	return p, nil
}

func (r *txRepository) LinkSource(ctx context.Context, module string, ref uuid.UUID, entryID int64) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO source_links (module, ref_id, je_id) VALUES ($1,$2,$3)`, module, ref, entryID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.ConstraintName == "uq_source_links" {
			return shared.ErrSourceConflict
		}
		return err
	}
	return nil
}

// UnlinkSource frees the document's source link so a later re-posting
// books a fresh entry. Entries without a link are a no-op.
func (r *txRepository) UnlinkSource(ctx context.Context, entryID int64) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM source_links WHERE je_id=$1`, entryID)
	return err
}
