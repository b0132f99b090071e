package balances

import (
	"context"
	"sort"
	"time"

	"github.com/ledgerline/ledgerline/internal/accounting/accounts"
	"github.com/ledgerline/ledgerline/internal/accounting/shared"
)

// Engine computes account balances from posted journal lines. Balances
// are signed by account nature: a debit-nature account grows with
// debits, a credit-nature account grows with credits. Healthy accounts
// therefore carry positive balances regardless of category.
type Engine struct {
	repo        Repository
	checkpoints *CheckpointStore
}

// NewEngine constructs the balance engine. checkpoints may be nil, in
// which case every query scans from the opening date.
func NewEngine(repo Repository, checkpoints *CheckpointStore) *Engine {
	return &Engine{repo: repo, checkpoints: checkpoints}
}

func signedFlow(nature accounts.Nature, debit, credit float64) float64 {
	if nature == accounts.NatureDebit {
		return debit - credit
	}
	return credit - debit
}

// BalanceAt returns the signed balance of the account at end of day asOf.
// The opening balance counts once its opening date has been reached.
func (e *Engine) BalanceAt(ctx context.Context, accountID int64, asOf time.Time) (float64, error) {
	account, err := e.repo.GetAccount(ctx, accountID)
	if err != nil {
		return 0, err
	}
	return e.balanceAt(ctx, account, asOf)
}

func (e *Engine) balanceAt(ctx context.Context, account AccountInfo, asOf time.Time) (float64, error) {
	scanFrom := earliest
	base := 0.0

	if e.checkpoints != nil {
		if monthEnd, ok := priorMonthEnd(asOf); ok {
			cached, hit, err := e.checkpoints.Get(ctx, account.ID, monthEnd)
			if err == nil && !hit {
				cached, err = e.scanBalance(ctx, account, earliest, monthEnd, openingCounted(account, monthEnd))
				if err != nil {
					return 0, err
				}
				_ = e.checkpoints.Set(ctx, account.ID, monthEnd, cached)
				hit = true
			}
			if err == nil && hit {
				base = cached
				scanFrom = monthEnd.AddDate(0, 0, 1)
			}
		}
	}

	if scanFrom.Equal(earliest) {
		base = openingCounted(account, asOf)
	} else if account.OpeningDate != nil && !account.OpeningDate.Before(scanFrom) && !account.OpeningDate.After(asOf) {
		// Opening date falls after the checkpoint month, so the cached
		// figure does not include it yet.
		base += account.OpeningBalance
	}

	debit, credit, _, err := e.repo.SumPostedLines(ctx, account.ID, scanFrom, asOf)
	if err != nil {
		return 0, err
	}
	return shared.Round2(base + signedFlow(account.Nature, debit, credit)), nil
}

func openingCounted(account AccountInfo, asOf time.Time) float64 {
	if account.OpeningDate != nil && !account.OpeningDate.After(asOf) {
		return account.OpeningBalance
	}
	return 0
}

func (e *Engine) scanBalance(ctx context.Context, account AccountInfo, from, to time.Time, opening float64) (float64, error) {
	debit, credit, _, err := e.repo.SumPostedLines(ctx, account.ID, from, to)
	if err != nil {
		return 0, err
	}
	return shared.Round2(opening + signedFlow(account.Nature, debit, credit)), nil
}

// FlowOver returns the signed movement of the account within [from, to].
// The opening balance contributes only when its opening date falls
// inside the window. An inverted interval yields zero.
func (e *Engine) FlowOver(ctx context.Context, accountID int64, from, to time.Time) (float64, error) {
	if from.After(to) {
		return 0, nil
	}
	account, err := e.repo.GetAccount(ctx, accountID)
	if err != nil {
		return 0, err
	}
	flow := 0.0
	if account.OpeningDate != nil && !account.OpeningDate.Before(from) && !account.OpeningDate.After(to) {
		flow = account.OpeningBalance
	}
	debit, credit, _, err := e.repo.SumPostedLines(ctx, accountID, from, to)
	if err != nil {
		return 0, err
	}
	return shared.Round2(flow + signedFlow(account.Nature, debit, credit)), nil
}

// RunningLedger returns the account's lines within [from, to] in posting
// order with a cumulative balance seeded from the day before the window.
func (e *Engine) RunningLedger(ctx context.Context, accountID int64, from, to time.Time) (opening float64, rows []LedgerRow, err error) {
	account, err := e.repo.GetAccount(ctx, accountID)
	if err != nil {
		return 0, nil, err
	}
	if from.After(to) {
		return 0, nil, nil
	}
	opening, err = e.balanceAt(ctx, account, from.AddDate(0, 0, -1))
	if err != nil {
		return 0, nil, err
	}
	lines, err := e.repo.ListPostedLines(ctx, accountID, from, to)
	if err != nil {
		return 0, nil, err
	}
	sort.SliceStable(lines, func(i, j int) bool {
		if !lines[i].EntryDate.Equal(lines[j].EntryDate) {
			return lines[i].EntryDate.Before(lines[j].EntryDate)
		}
		if lines[i].EntryID != lines[j].EntryID {
			return lines[i].EntryID < lines[j].EntryID
		}
		return lines[i].LineID < lines[j].LineID
	})

	running := opening
	if account.OpeningDate != nil && !account.OpeningDate.Before(from) && !account.OpeningDate.After(to) {
		// Opening balance lands inside the window; surface it as the seed.
		running = shared.Round2(running + account.OpeningBalance)
		opening = running
	}
	rows = make([]LedgerRow, 0, len(lines))
	for _, line := range lines {
		running = shared.Round2(running + signedFlow(account.Nature, line.Debit, line.Credit))
		rows = append(rows, LedgerRow{
			Date:        line.EntryDate,
			EntryID:     line.EntryID,
			EntryNumber: line.EntryNumber,
			Memo:        line.Memo,
			Debit:       line.Debit,
			Credit:      line.Credit,
			Balance:     running,
		})
	}
	return opening, rows, nil
}

// Summarize returns opening, movement, closing, and line count figures
// for one account over [from, to].
func (e *Engine) Summarize(ctx context.Context, accountID int64, from, to time.Time) (PeriodSummary, error) {
	account, err := e.repo.GetAccount(ctx, accountID)
	if err != nil {
		return PeriodSummary{}, err
	}
	summary := PeriodSummary{AccountID: accountID}
	if from.After(to) {
		return summary, nil
	}
	summary.Opening, err = e.balanceAt(ctx, account, from.AddDate(0, 0, -1))
	if err != nil {
		return PeriodSummary{}, err
	}
	debit, credit, lines, err := e.repo.SumPostedLines(ctx, accountID, from, to)
	if err != nil {
		return PeriodSummary{}, err
	}
	summary.Debit = shared.Round2(debit)
	summary.Credit = shared.Round2(credit)
	summary.Lines = lines
	closing := summary.Opening + signedFlow(account.Nature, debit, credit)
	if account.OpeningDate != nil && !account.OpeningDate.Before(from) && !account.OpeningDate.After(to) {
		closing += account.OpeningBalance
	}
	summary.Closing = shared.Round2(closing)
	summary.Movement = shared.Round2(summary.Closing - summary.Opening)
	return summary, nil
}

// earliest predates any plausible ledger data.
var earliest = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)

// priorMonthEnd returns the last day of the month before asOf's month.
// It reports false when asOf is too early for a checkpoint to help.
func priorMonthEnd(asOf time.Time) (time.Time, bool) {
	firstOfMonth := time.Date(asOf.Year(), asOf.Month(), 1, 0, 0, 0, 0, asOf.Location())
	monthEnd := firstOfMonth.AddDate(0, 0, -1)
	if monthEnd.Before(earliest) {
		return time.Time{}, false
	}
	return monthEnd, true
}
