package reports

import (
	"context"
	"sort"
	"time"

	"github.com/ledgerline/ledgerline/internal/accounting/accounts"
	"github.com/ledgerline/ledgerline/internal/accounting/balances"
	"github.com/ledgerline/ledgerline/internal/accounting/shared"
	"github.com/ledgerline/ledgerline/internal/ap"
	"github.com/ledgerline/ledgerline/internal/ar"
)

// BalanceEngine supplies the balance figures reports aggregate.
type BalanceEngine interface {
	BalanceAt(ctx context.Context, accountID int64, asOf time.Time) (float64, error)
	Summarize(ctx context.Context, accountID int64, from, to time.Time) (balances.PeriodSummary, error)
	RunningLedger(ctx context.Context, accountID int64, from, to time.Time) (float64, []balances.LedgerRow, error)
}

// AccountSource lists chart accounts for report scoping.
type AccountSource interface {
	Get(ctx context.Context, id int64) (accounts.Account, error)
	List(ctx context.Context) ([]accounts.Account, error)
}

// ReceivablesSource feeds the aged receivables report.
type ReceivablesSource interface {
	AgedInvoices(ctx context.Context, asOf time.Time) ([]ar.AgedInvoice, error)
}

// PayablesSource feeds the aged payables report.
type PayablesSource interface {
	AgedInvoices(ctx context.Context, asOf time.Time) ([]ap.AgedInvoice, error)
}

// Service builds the user-facing reports from posted balances and open
// documents.
type Service struct {
	engine      BalanceEngine
	accounts    AccountSource
	receivables ReceivablesSource
	payables    PayablesSource
}

// NewService constructs the reporting service. receivables and payables
// may be nil when the respective report is not served.
func NewService(engine BalanceEngine, accountSource AccountSource, receivables ReceivablesSource, payables PayablesSource) *Service {
	return &Service{
		engine:      engine,
		accounts:    accountSource,
		receivables: receivables,
		payables:    payables,
	}
}

// TrialBalance summarizes every leaf account with opening or movement in
// [from, to] and projects closings onto nature-signed columns.
func (s *Service) TrialBalance(ctx context.Context, from, to time.Time) (TrialBalance, error) {
	all, err := s.accounts.List(ctx)
	if err != nil {
		return TrialBalance{}, err
	}
	report := TrialBalance{From: from, To: to}
	for _, account := range all {
		if !account.IsLeaf {
			continue
		}
		summary, err := s.engine.Summarize(ctx, account.ID, from, to)
		if err != nil {
			return TrialBalance{}, err
		}
		if summary.Opening == 0 && summary.Debit == 0 && summary.Credit == 0 && summary.Closing == 0 {
			continue
		}
		row := TrialBalanceRow{
			AccountID:    account.ID,
			Code:         account.Code,
			Name:         account.Name,
			Category:     account.Category,
			Nature:       account.Nature(),
			Opening:      summary.Opening,
			PeriodDebit:  summary.Debit,
			PeriodCredit: summary.Credit,
			Closing:      summary.Closing,
		}
		projectClosing(&row)
		report.Rows = append(report.Rows, row)
		report.TotalDebit = shared.Round2(report.TotalDebit + row.DebitBalance)
		report.TotalCredit = shared.Round2(report.TotalCredit + row.CreditBalance)
	}
	sort.Slice(report.Rows, func(i, j int) bool { return report.Rows[i].Code < report.Rows[j].Code })
	report.Imbalance = shared.Round2(report.TotalDebit - report.TotalCredit)
	return report, nil
}

// projectClosing places the signed closing on the column matching the
// account's nature; a negative residual flips to the opposite column.
func projectClosing(row *TrialBalanceRow) {
	debitSide := row.Nature == accounts.NatureDebit
	if row.Closing < 0 {
		debitSide = !debitSide
	}
	amount := row.Closing
	if amount < 0 {
		amount = -amount
	}
	if debitSide {
		row.DebitBalance = amount
	} else {
		row.CreditBalance = amount
	}
}

// Ledger returns one account's running ledger over [from, to].
func (s *Service) Ledger(ctx context.Context, accountID int64, from, to time.Time) (AccountLedger, error) {
	account, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return AccountLedger{}, err
	}
	opening, rows, err := s.engine.RunningLedger(ctx, accountID, from, to)
	if err != nil {
		return AccountLedger{}, err
	}
	closing := opening
	if len(rows) > 0 {
		closing = rows[len(rows)-1].Balance
	}
	return AccountLedger{
		AccountID: account.ID,
		Code:      account.Code,
		Name:      account.Name,
		Category:  account.Category,
		From:      from,
		To:        to,
		Opening:   opening,
		Rows:      rows,
		Closing:   closing,
	}, nil
}

// CategoryLedgers returns ledgers for every leaf account of a category,
// the grouped variant of the ledger view. Accounts without movement and
// with a zero opening are skipped.
func (s *Service) CategoryLedgers(ctx context.Context, category accounts.Category, from, to time.Time) ([]AccountLedger, error) {
	all, err := s.accounts.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []AccountLedger
	for _, account := range all {
		if !account.IsLeaf || account.Category != category {
			continue
		}
		ledger, err := s.Ledger(ctx, account.ID, from, to)
		if err != nil {
			return nil, err
		}
		if ledger.Opening == 0 && len(ledger.Rows) == 0 {
			continue
		}
		out = append(out, ledger)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// BalanceSheet presents the ledger position as of a date. Revenue and
// expense closings fold into equity as net income, and any residual
// imbalance is reported rather than suppressed.
func (s *Service) BalanceSheet(ctx context.Context, asOf time.Time) (BalanceSheet, error) {
	all, err := s.accounts.List(ctx)
	if err != nil {
		return BalanceSheet{}, err
	}
	report := BalanceSheet{AsOf: asOf}
	var revenue, expense float64
	for _, account := range all {
		if !account.IsLeaf {
			continue
		}
		balance, err := s.engine.BalanceAt(ctx, account.ID, asOf)
		if err != nil {
			return BalanceSheet{}, err
		}
		if balance == 0 {
			continue
		}
		line := BalanceSheetLine{AccountID: account.ID, Code: account.Code, Name: account.Name, Balance: balance}
		switch account.Category {
		case accounts.CategoryAsset:
			report.Assets = append(report.Assets, line)
			report.TotalAssets = shared.Round2(report.TotalAssets + balance)
		case accounts.CategoryLiability:
			report.Liabilities = append(report.Liabilities, line)
		case accounts.CategoryEquity:
			report.Equity = append(report.Equity, line)
		case accounts.CategoryRevenue:
			revenue += balance
		case accounts.CategoryExpense:
			expense += balance
		}
	}
	sortLines(report.Assets)
	sortLines(report.Liabilities)
	sortLines(report.Equity)
	report.NetIncome = shared.Round2(revenue - expense)
	total := report.NetIncome
	for _, line := range report.Liabilities {
		total += line.Balance
	}
	for _, line := range report.Equity {
		total += line.Balance
	}
	report.TotalLiabilitiesEquity = shared.Round2(total)
	report.Imbalance = shared.Round2(report.TotalAssets - report.TotalLiabilitiesEquity)
	return report, nil
}

func sortLines(lines []BalanceSheetLine) {
	sort.Slice(lines, func(i, j int) bool { return lines[i].Code < lines[j].Code })
}

// AgedReceivables buckets open customer invoices by age as of the
// report date.
func (s *Service) AgedReceivables(ctx context.Context, asOf time.Time) (AgedReport, error) {
	invoices, err := s.receivables.AgedInvoices(ctx, asOf)
	if err != nil {
		return AgedReport{}, err
	}
	rows := make([]agedRow, 0, len(invoices))
	for _, inv := range invoices {
		rows = append(rows, agedRow{
			PartyID:   inv.PartyID,
			PartyName: inv.PartyName,
			Date:      inv.Date,
			Remaining: inv.Remaining(),
		})
	}
	return buildAgedReport(asOf, rows), nil
}

// AgedPayables buckets open supplier invoices by age as of the report
// date.
func (s *Service) AgedPayables(ctx context.Context, asOf time.Time) (AgedReport, error) {
	invoices, err := s.payables.AgedInvoices(ctx, asOf)
	if err != nil {
		return AgedReport{}, err
	}
	rows := make([]agedRow, 0, len(invoices))
	for _, inv := range invoices {
		rows = append(rows, agedRow{
			PartyID:   inv.PartyID,
			PartyName: inv.PartyName,
			Date:      inv.Date,
			Remaining: inv.Remaining(),
		})
	}
	return buildAgedReport(asOf, rows), nil
}

type agedRow struct {
	PartyID   int64
	PartyName string
	Date      time.Time
	Remaining float64
}

// bucketIndex maps days outstanding to an aging bucket.
func bucketIndex(days int) int {
	switch {
	case days <= 30:
		return 0
	case days <= 60:
		return 1
	case days <= 90:
		return 2
	case days <= 120:
		return 3
	default:
		return 4
	}
}

func buildAgedReport(asOf time.Time, rows []agedRow) AgedReport {
	report := AgedReport{AsOf: asOf}
	parties := make(map[int64]*AgedParty)
	for _, row := range rows {
		if row.Remaining <= 0 {
			// Fully paid invoices contribute nothing.
			continue
		}
		party, ok := parties[row.PartyID]
		if !ok {
			party = &AgedParty{PartyID: row.PartyID, PartyName: row.PartyName}
			parties[row.PartyID] = party
		}
		days := int(asOf.Sub(row.Date).Hours() / 24)
		idx := bucketIndex(days)
		party.Buckets[idx] = shared.Round2(party.Buckets[idx] + row.Remaining)
		party.Total = shared.Round2(party.Total + row.Remaining)
	}
	for _, party := range parties {
		if party.Total <= 0 {
			continue
		}
		report.Parties = append(report.Parties, *party)
		for i, amount := range party.Buckets {
			report.BucketTotals[i] = shared.Round2(report.BucketTotals[i] + amount)
		}
		report.Total = shared.Round2(report.Total + party.Total)
	}
	sort.Slice(report.Parties, func(i, j int) bool {
		if report.Parties[i].PartyName != report.Parties[j].PartyName {
			return report.Parties[i].PartyName < report.Parties[j].PartyName
		}
		return report.Parties[i].PartyID < report.Parties[j].PartyID
	})
	if report.Total > 0 {
		for i, amount := range report.BucketTotals {
			report.Percentages[i] = shared.Round2(amount / report.Total * 100)
		}
	}
	return report
}
