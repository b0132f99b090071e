package reports

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ledgerline/ledgerline/internal/accounting/accounts"
	"github.com/ledgerline/ledgerline/internal/accounting/balances"
	"github.com/ledgerline/ledgerline/internal/accounting/shared"
	"github.com/ledgerline/ledgerline/internal/ap"
	"github.com/ledgerline/ledgerline/internal/ar"
)

type fakeBalanceSource struct {
	accounts map[int64]balances.AccountInfo
	lines    []balances.Line
}

func (f *fakeBalanceSource) GetAccount(_ context.Context, accountID int64) (balances.AccountInfo, error) {
	account, ok := f.accounts[accountID]
	if !ok {
		return balances.AccountInfo{}, shared.ErrAccountNotFound
	}
	return account, nil
}

func (f *fakeBalanceSource) ListPostedLines(_ context.Context, accountID int64, from, to time.Time) ([]balances.Line, error) {
	var out []balances.Line
	for _, line := range f.lines {
		if line.AccountID == accountID && !line.EntryDate.Before(from) && !line.EntryDate.After(to) {
			out = append(out, line)
		}
	}
	return out, nil
}

func (f *fakeBalanceSource) SumPostedLines(_ context.Context, accountID int64, from, to time.Time) (float64, float64, int, error) {
	var debit, credit float64
	var count int
	for _, line := range f.lines {
		if line.AccountID == accountID && !line.EntryDate.Before(from) && !line.EntryDate.After(to) {
			debit += line.Debit
			credit += line.Credit
			count++
		}
	}
	return debit, credit, count, nil
}

func (f *fakeBalanceSource) ListLeafAccounts(_ context.Context) ([]balances.AccountInfo, error) {
	out := make([]balances.AccountInfo, 0, len(f.accounts))
	for _, account := range f.accounts {
		out = append(out, account)
	}
	return out, nil
}

type fakeAccountSource struct {
	accounts map[int64]accounts.Account
}

func (f *fakeAccountSource) Get(_ context.Context, id int64) (accounts.Account, error) {
	account, ok := f.accounts[id]
	if !ok {
		return accounts.Account{}, shared.ErrAccountNotFound
	}
	return account, nil
}

func (f *fakeAccountSource) List(_ context.Context) ([]accounts.Account, error) {
	out := make([]accounts.Account, 0, len(f.accounts))
	for _, account := range f.accounts {
		out = append(out, account)
	}
	return out, nil
}

type fakeReceivables struct {
	invoices []ar.AgedInvoice
}

func (f *fakeReceivables) AgedInvoices(_ context.Context, _ time.Time) ([]ar.AgedInvoice, error) {
	return f.invoices, nil
}

type fakePayables struct {
	invoices []ap.AgedInvoice
}

func (f *fakePayables) AgedInvoices(_ context.Context, _ time.Time) ([]ap.AgedInvoice, error) {
	return f.invoices, nil
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// chartFixture builds a January book: a cash sale of 1000 with 600 COGS
// and a purchase of 800 paid 500 via bank.
func chartFixture() (*fakeBalanceSource, *fakeAccountSource) {
	natures := map[accounts.Category]accounts.Nature{}
	for _, cat := range []accounts.Category{accounts.CategoryAsset, accounts.CategoryLiability,
		accounts.CategoryEquity, accounts.CategoryRevenue, accounts.CategoryExpense} {
		natures[cat] = accounts.NatureOf(cat)
	}
	defs := []struct {
		id       int64
		code     string
		name     string
		category accounts.Category
	}{
		{1, "11011", "Cash on hand", accounts.CategoryAsset},
		{2, "11030", "Accounts receivable", accounts.CategoryAsset},
		{3, "41010", "Sales revenue", accounts.CategoryRevenue},
		{4, "51010", "Cost of goods sold", accounts.CategoryExpense},
		{5, "11051", "Inventory", accounts.CategoryAsset},
		{6, "21010", "Accounts payable", accounts.CategoryLiability},
		{7, "11021", "Bank account", accounts.CategoryAsset},
	}
	source := &fakeBalanceSource{accounts: make(map[int64]balances.AccountInfo)}
	chart := &fakeAccountSource{accounts: make(map[int64]accounts.Account)}
	for _, def := range defs {
		source.accounts[def.id] = balances.AccountInfo{
			ID: def.id, Code: def.code, Name: def.name, Nature: natures[def.category],
		}
		chart.accounts[def.id] = accounts.Account{
			ID: def.id, Code: def.code, Name: def.name, Category: def.category,
			IsLeaf: true, IsActive: true,
		}
	}
	saleDate := day(2025, 1, 15)
	purchaseDate := day(2025, 1, 20)
	payDate := day(2025, 1, 21)
	source.lines = []balances.Line{
		{LineID: 1, EntryID: 1, EntryNumber: "SALE-1", EntryDate: saleDate, AccountID: 2, Debit: 1000},
		{LineID: 2, EntryID: 1, EntryNumber: "SALE-1", EntryDate: saleDate, AccountID: 3, Credit: 1000},
		{LineID: 3, EntryID: 1, EntryNumber: "SALE-1", EntryDate: saleDate, AccountID: 4, Debit: 600},
		{LineID: 4, EntryID: 1, EntryNumber: "SALE-1", EntryDate: saleDate, AccountID: 5, Credit: 600},
		{LineID: 5, EntryID: 2, EntryNumber: "PAY-1", EntryDate: saleDate, AccountID: 1, Debit: 1000},
		{LineID: 6, EntryID: 2, EntryNumber: "PAY-1", EntryDate: saleDate, AccountID: 2, Credit: 1000},
		{LineID: 7, EntryID: 3, EntryNumber: "PURCHASE-1", EntryDate: purchaseDate, AccountID: 5, Debit: 800},
		{LineID: 8, EntryID: 3, EntryNumber: "PURCHASE-1", EntryDate: purchaseDate, AccountID: 6, Credit: 800},
		{LineID: 9, EntryID: 4, EntryNumber: "PAY-2", EntryDate: payDate, AccountID: 6, Debit: 500},
		{LineID: 10, EntryID: 4, EntryNumber: "PAY-2", EntryDate: payDate, AccountID: 7, Credit: 500},
	}
	return source, chart
}

func newTestService() *Service {
	source, chart := chartFixture()
	engine := balances.NewEngine(source, nil)
	return NewService(engine, chart, &fakeReceivables{}, &fakePayables{})
}

func TestTrialBalanceBalances(t *testing.T) {
	svc := newTestService()

	report, err := svc.TrialBalance(context.Background(), day(2025, 1, 1), day(2025, 1, 31))
	require.NoError(t, err)
	require.Equal(t, 1800.0, report.TotalDebit)
	require.Equal(t, 1800.0, report.TotalCredit)
	require.Equal(t, 0.0, report.Imbalance)

	byCode := map[string]TrialBalanceRow{}
	for _, row := range report.Rows {
		byCode[row.Code] = row
	}
	require.Equal(t, 1000.0, byCode["11011"].DebitBalance)
	require.Equal(t, 1000.0, byCode["41010"].CreditBalance)
	require.Equal(t, 600.0, byCode["51010"].DebitBalance)
	require.Equal(t, 200.0, byCode["11051"].DebitBalance)
	require.Equal(t, 300.0, byCode["21010"].CreditBalance)
	// The bank account went negative, so its balance flips to the credit column.
	require.Equal(t, 500.0, byCode["11021"].CreditBalance)
	// AR netted to zero but moved, so it still appears.
	require.Contains(t, byCode, "11030")
	require.Equal(t, 0.0, byCode["11030"].Closing)
}

func TestBalanceSheetFoldsNetIncomeIntoEquity(t *testing.T) {
	svc := newTestService()

	report, err := svc.BalanceSheet(context.Background(), day(2025, 1, 31))
	require.NoError(t, err)
	require.Equal(t, 700.0, report.TotalAssets)
	require.Equal(t, 400.0, report.NetIncome)
	require.Equal(t, 700.0, report.TotalLiabilitiesEquity)
	require.Equal(t, 0.0, report.Imbalance)
	require.Len(t, report.Liabilities, 1)
	require.Equal(t, 300.0, report.Liabilities[0].Balance)
}

func TestLedgerRunningBalance(t *testing.T) {
	svc := newTestService()

	ledger, err := svc.Ledger(context.Background(), 5, day(2025, 1, 1), day(2025, 1, 31))
	require.NoError(t, err)
	require.Equal(t, 0.0, ledger.Opening)
	require.Len(t, ledger.Rows, 2)
	require.Equal(t, -600.0, ledger.Rows[0].Balance)
	require.Equal(t, 200.0, ledger.Rows[1].Balance)
	require.Equal(t, 200.0, ledger.Closing)
}

func TestCategoryLedgersSkipsIdleAccounts(t *testing.T) {
	svc := newTestService()

	ledgers, err := svc.CategoryLedgers(context.Background(), accounts.CategoryAsset, day(2025, 1, 1), day(2025, 1, 31))
	require.NoError(t, err)
	// Cash, AR, inventory, and bank moved; no other asset leaves exist.
	require.Len(t, ledgers, 4)
	require.Equal(t, "11011", ledgers[0].Code)
}

func TestAgedReceivablesBucketBoundaries(t *testing.T) {
	invoice := ar.AgedInvoice{
		InvoiceID: 1, Number: "INV-1", PartyID: 9, PartyName: "Acme Trading",
		Date: day(2024, 10, 15), Total: 500,
	}
	source, chart := chartFixture()
	svc := NewService(balances.NewEngine(source, nil), chart, &fakeReceivables{invoices: []ar.AgedInvoice{invoice}}, &fakePayables{})

	cases := []struct {
		asOf   time.Time
		bucket int
	}{
		{day(2025, 1, 15), 3},
		{day(2025, 1, 20), 3},
		{day(2025, 2, 15), 4},
	}
	for _, tc := range cases {
		report, err := svc.AgedReceivables(context.Background(), tc.asOf)
		require.NoError(t, err)
		require.Len(t, report.Parties, 1)
		require.Equal(t, 500.0, report.Parties[0].Buckets[tc.bucket], "as of %s", tc.asOf.Format("2006-01-02"))
		require.Equal(t, 500.0, report.Total)
	}
}

func TestAgedReceivablesOmitsSettledParties(t *testing.T) {
	source, chart := chartFixture()
	asOf := day(2025, 3, 31)
	recv := &fakeReceivables{invoices: []ar.AgedInvoice{
		{InvoiceID: 1, Number: "INV-1", PartyID: 1, PartyName: "Paid Up Ltd", Date: day(2025, 3, 1), Total: 400, Paid: 400},
		{InvoiceID: 2, Number: "INV-2", PartyID: 2, PartyName: "Slow Co", Date: day(2025, 3, 20), Total: 300},
		{InvoiceID: 3, Number: "INV-3", PartyID: 2, PartyName: "Slow Co", Date: day(2024, 10, 1), Total: 150, Paid: 50},
	}}
	svc := NewService(balances.NewEngine(source, nil), chart, recv, &fakePayables{})

	report, err := svc.AgedReceivables(context.Background(), asOf)
	require.NoError(t, err)
	require.Len(t, report.Parties, 1)
	require.Equal(t, "Slow Co", report.Parties[0].PartyName)
	require.Equal(t, 300.0, report.Parties[0].Buckets[0])
	require.Equal(t, 100.0, report.Parties[0].Buckets[4])
	require.Equal(t, 400.0, report.Total)
	require.Equal(t, 75.0, report.Percentages[0])
	require.Equal(t, 25.0, report.Percentages[4])
}

func TestAgedPayables(t *testing.T) {
	source, chart := chartFixture()
	pay := &fakePayables{invoices: []ap.AgedInvoice{
		{InvoiceID: 1, Number: "PINV-1", PartyID: 3, PartyName: "Nordic Supplies", Date: day(2025, 1, 20), Total: 800, Paid: 500},
	}}
	svc := NewService(balances.NewEngine(source, nil), chart, &fakeReceivables{}, pay)

	report, err := svc.AgedPayables(context.Background(), day(2025, 2, 10))
	require.NoError(t, err)
	require.Len(t, report.Parties, 1)
	require.Equal(t, 300.0, report.Parties[0].Buckets[0])
}
