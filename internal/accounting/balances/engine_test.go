package balances

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ledgerline/ledgerline/internal/accounting/accounts"
	"github.com/ledgerline/ledgerline/internal/accounting/shared"
)

type fakeSource struct {
	accounts map[int64]AccountInfo
	lines    []Line
}

func (f *fakeSource) GetAccount(_ context.Context, accountID int64) (AccountInfo, error) {
	a, ok := f.accounts[accountID]
	if !ok {
		return AccountInfo{}, shared.ErrAccountNotFound
	}
	return a, nil
}

func (f *fakeSource) ListLeafAccounts(_ context.Context) ([]AccountInfo, error) {
	out := make([]AccountInfo, 0, len(f.accounts))
	for _, a := range f.accounts {
		out = append(out, a)
	}
	return out, nil
}

func (f *fakeSource) ListPostedLines(_ context.Context, accountID int64, from, to time.Time) ([]Line, error) {
	var out []Line
	for _, line := range f.lines {
		if line.AccountID != accountID {
			continue
		}
		if line.EntryDate.Before(from) || line.EntryDate.After(to) {
			continue
		}
		out = append(out, line)
	}
	return out, nil
}

func (f *fakeSource) SumPostedLines(ctx context.Context, accountID int64, from, to time.Time) (float64, float64, int, error) {
	lines, _ := f.ListPostedLines(ctx, accountID, from, to)
	var debit, credit float64
	for _, line := range lines {
		debit += line.Debit
		credit += line.Credit
	}
	return debit, credit, len(lines), nil
}

func day(d int) time.Time {
	return time.Date(2025, 3, d, 0, 0, 0, 0, time.UTC)
}

func cashAccount(opening float64, openingDate *time.Time) AccountInfo {
	return AccountInfo{ID: 1, Code: "11011", Name: "Cash", Nature: accounts.NatureDebit, OpeningBalance: opening, OpeningDate: openingDate}
}

func TestBalanceAtDebitNature(t *testing.T) {
	opening := day(1)
	src := &fakeSource{
		accounts: map[int64]AccountInfo{1: cashAccount(1000, &opening)},
		lines: []Line{
			{LineID: 1, EntryID: 1, EntryDate: day(5), AccountID: 1, Debit: 500},
			{LineID: 2, EntryID: 2, EntryDate: day(10), AccountID: 1, Credit: 200},
		},
	}
	engine := NewEngine(src, nil)

	got, err := engine.BalanceAt(context.Background(), 1, day(31))
	require.NoError(t, err)
	require.Equal(t, 1300.0, got)
}

func TestBalanceAtCreditNature(t *testing.T) {
	src := &fakeSource{
		accounts: map[int64]AccountInfo{2: {ID: 2, Code: "41010", Nature: accounts.NatureCredit}},
		lines: []Line{
			{LineID: 1, EntryID: 1, EntryDate: day(5), AccountID: 2, Credit: 500},
			{LineID: 2, EntryID: 2, EntryDate: day(10), AccountID: 2, Debit: 50},
		},
	}
	engine := NewEngine(src, nil)

	got, err := engine.BalanceAt(context.Background(), 2, day(31))
	require.NoError(t, err)
	require.Equal(t, 450.0, got)
}

func TestBalanceAtExcludesOpeningBeforeItsDate(t *testing.T) {
	opening := day(15)
	src := &fakeSource{accounts: map[int64]AccountInfo{1: cashAccount(1000, &opening)}}
	engine := NewEngine(src, nil)

	before, err := engine.BalanceAt(context.Background(), 1, day(14))
	require.NoError(t, err)
	require.Equal(t, 0.0, before)

	after, err := engine.BalanceAt(context.Background(), 1, day(15))
	require.NoError(t, err)
	require.Equal(t, 1000.0, after)
}

func TestBalanceAtUnknownAccount(t *testing.T) {
	engine := NewEngine(&fakeSource{accounts: map[int64]AccountInfo{}}, nil)
	_, err := engine.BalanceAt(context.Background(), 99, day(1))
	require.ErrorIs(t, err, shared.ErrAccountNotFound)
}

func TestFlowOverWindow(t *testing.T) {
	opening := day(1)
	src := &fakeSource{
		accounts: map[int64]AccountInfo{1: cashAccount(1000, &opening)},
		lines: []Line{
			{LineID: 1, EntryID: 1, EntryDate: day(5), AccountID: 1, Debit: 300},
			{LineID: 2, EntryID: 2, EntryDate: day(20), AccountID: 1, Credit: 100},
		},
	}
	engine := NewEngine(src, nil)

	// Window starts after the opening date, so only movements count.
	got, err := engine.FlowOver(context.Background(), 1, day(2), day(31))
	require.NoError(t, err)
	require.Equal(t, 200.0, got)

	// Window containing the opening date includes it.
	got, err = engine.FlowOver(context.Background(), 1, day(1), day(31))
	require.NoError(t, err)
	require.Equal(t, 1200.0, got)
}

func TestFlowOverInvertedIntervalIsZero(t *testing.T) {
	engine := NewEngine(&fakeSource{accounts: map[int64]AccountInfo{1: cashAccount(0, nil)}}, nil)
	got, err := engine.FlowOver(context.Background(), 1, day(20), day(10))
	require.NoError(t, err)
	require.Equal(t, 0.0, got)
}

func TestRunningLedgerOrderAndCumulativeBalance(t *testing.T) {
	opening := day(1)
	src := &fakeSource{
		accounts: map[int64]AccountInfo{1: cashAccount(100, &opening)},
		lines: []Line{
			// Deliberately out of order to exercise sorting.
			{LineID: 9, EntryID: 3, EntryNumber: "MANUAL-GEN-3", EntryDate: day(10), AccountID: 1, Credit: 50},
			{LineID: 4, EntryID: 2, EntryNumber: "MANUAL-GEN-2", EntryDate: day(5), AccountID: 1, Debit: 200},
			{LineID: 2, EntryID: 1, EntryNumber: "MANUAL-GEN-1", EntryDate: day(5), AccountID: 1, Debit: 25},
		},
	}
	engine := NewEngine(src, nil)

	openingBalance, rows, err := engine.RunningLedger(context.Background(), 1, day(2), day(31))
	require.NoError(t, err)
	require.Equal(t, 100.0, openingBalance)
	require.Len(t, rows, 3)
	require.Equal(t, "MANUAL-GEN-1", rows[0].EntryNumber)
	require.Equal(t, 125.0, rows[0].Balance)
	require.Equal(t, "MANUAL-GEN-2", rows[1].EntryNumber)
	require.Equal(t, 325.0, rows[1].Balance)
	require.Equal(t, "MANUAL-GEN-3", rows[2].EntryNumber)
	require.Equal(t, 275.0, rows[2].Balance)
}

func TestRunningLedgerSeedsOpeningInsideWindow(t *testing.T) {
	opening := day(10)
	src := &fakeSource{
		accounts: map[int64]AccountInfo{1: cashAccount(500, &opening)},
		lines: []Line{
			{LineID: 1, EntryID: 1, EntryDate: day(12), AccountID: 1, Debit: 100},
		},
	}
	engine := NewEngine(src, nil)

	openingBalance, rows, err := engine.RunningLedger(context.Background(), 1, day(1), day(31))
	require.NoError(t, err)
	require.Equal(t, 500.0, openingBalance)
	require.Len(t, rows, 1)
	require.Equal(t, 600.0, rows[0].Balance)
}

func TestSummarize(t *testing.T) {
	opening := day(1)
	src := &fakeSource{
		accounts: map[int64]AccountInfo{1: cashAccount(1000, &opening)},
		lines: []Line{
			{LineID: 1, EntryID: 1, EntryDate: day(5), AccountID: 1, Debit: 300},
			{LineID: 2, EntryID: 2, EntryDate: day(20), AccountID: 1, Credit: 120},
		},
	}
	engine := NewEngine(src, nil)

	summary, err := engine.Summarize(context.Background(), 1, day(2), day(31))
	require.NoError(t, err)
	require.Equal(t, 1000.0, summary.Opening)
	require.Equal(t, 300.0, summary.Debit)
	require.Equal(t, 120.0, summary.Credit)
	require.Equal(t, 180.0, summary.Movement)
	require.Equal(t, 1180.0, summary.Closing)
	require.Equal(t, 2, summary.Lines)
}

func TestSummarizeEmptyIntervalIsZero(t *testing.T) {
	engine := NewEngine(&fakeSource{accounts: map[int64]AccountInfo{1: cashAccount(1000, nil)}}, nil)

	summary, err := engine.Summarize(context.Background(), 1, day(20), day(10))
	require.NoError(t, err)
	require.Equal(t, PeriodSummary{AccountID: 1}, summary)
}
