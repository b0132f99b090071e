package balances

import (
	"context"
	"time"

	"github.com/ledgerline/ledgerline/internal/accounting/accounts"
)

// Line is one journal line as seen by the balance engine. Drafts never
// reach it; a reversed original still does, netted out by its posted
// reversal.
type Line struct {
	LineID      int64
	EntryID     int64
	EntryNumber string
	EntryDate   time.Time
	AccountID   int64
	Debit       float64
	Credit      float64
	Memo        string
}

// AccountInfo carries the account attributes the engine needs.
type AccountInfo struct {
	ID             int64
	Code           string
	Name           string
	Nature         accounts.Nature
	OpeningBalance float64
	OpeningDate    *time.Time
}

// Repository supplies posted lines and account attributes.
type Repository interface {
	GetAccount(ctx context.Context, accountID int64) (AccountInfo, error)
	ListPostedLines(ctx context.Context, accountID int64, from, to time.Time) ([]Line, error)
	SumPostedLines(ctx context.Context, accountID int64, from, to time.Time) (debit, credit float64, lines int, err error)
	ListLeafAccounts(ctx context.Context) ([]AccountInfo, error)
}

// LedgerRow is one line of a running ledger, carrying the balance after
// the line is applied.
type LedgerRow struct {
	Date        time.Time
	EntryID     int64
	EntryNumber string
	Memo        string
	Debit       float64
	Credit      float64
	Balance     float64
}

// PeriodSummary aggregates one account over an interval. Movement is
// the signed change from opening to closing; Lines counts the journal
// lines contributing to it.
type PeriodSummary struct {
	AccountID int64
	Opening   float64
	Debit     float64
	Credit    float64
	Movement  float64
	Closing   float64
	Lines     int
}
