package reports

import (
	"time"

	"github.com/ledgerline/ledgerline/internal/accounting/accounts"
	"github.com/ledgerline/ledgerline/internal/accounting/balances"
)

// TrialBalanceRow is one leaf account's figures over the report window.
// The closing balance is projected onto the debit or credit column
// according to the account's nature and the residual sign.
type TrialBalanceRow struct {
	AccountID     int64
	Code          string
	Name          string
	Category      accounts.Category
	Nature        accounts.Nature
	Opening       float64
	PeriodDebit   float64
	PeriodCredit  float64
	Closing       float64
	DebitBalance  float64
	CreditBalance float64
}

// TrialBalance reports every moving leaf account over [From, To].
// Imbalance is surfaced, never hidden: a non-zero value means the ledger
// needs investigation.
type TrialBalance struct {
	From        time.Time
	To          time.Time
	Rows        []TrialBalanceRow
	TotalDebit  float64
	TotalCredit float64
	Imbalance   float64
}

// AccountLedger is the running ledger view for one account.
type AccountLedger struct {
	AccountID int64
	Code      string
	Name      string
	Category  accounts.Category
	From      time.Time
	To        time.Time
	Opening   float64
	Rows      []balances.LedgerRow
	Closing   float64
}

// BalanceSheetLine is one account's signed balance as of the report date.
type BalanceSheetLine struct {
	AccountID int64
	Code      string
	Name      string
	Balance   float64
}

// BalanceSheet presents assets against liabilities and equity as of a
// date. Net income folds revenue minus expenses into the equity side.
type BalanceSheet struct {
	AsOf                   time.Time
	Assets                 []BalanceSheetLine
	Liabilities            []BalanceSheetLine
	Equity                 []BalanceSheetLine
	NetIncome              float64
	TotalAssets            float64
	TotalLiabilitiesEquity float64
	Imbalance              float64
}

// BucketCount is the number of aging buckets.
const BucketCount = 5

// BucketLabels names the aging buckets in days outstanding.
var BucketLabels = [BucketCount]string{"0-30", "31-60", "61-90", "91-120", ">120"}

// AgedParty is one customer or supplier with open amounts decomposed by
// invoice age.
type AgedParty struct {
	PartyID   int64
	PartyName string
	Buckets   [BucketCount]float64
	Total     float64
}

// AgedReport is the aged receivables or payables snapshot as of a date.
// Parties with nothing outstanding are omitted.
type AgedReport struct {
	AsOf         time.Time
	Parties      []AgedParty
	BucketTotals [BucketCount]float64
	Percentages  [BucketCount]float64
	Total        float64
}
