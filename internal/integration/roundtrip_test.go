package integration

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/ledgerline/internal/accounting/journals"
	"github.com/ledgerline/ledgerline/internal/accounting/periods"
	"github.com/ledgerline/ledgerline/internal/accounting/shared"
	"github.com/ledgerline/ledgerline/internal/ar"
)

// memoryLedger backs a real journal service for cross-component tests,
// so the hooks exercise the actual posting, linking, and reversal
// protocol instead of a canned double.
type memoryLedger struct {
	entries map[int64]journals.JournalEntry
	lines   map[int64][]journals.JournalLine
	links   map[string]int64
	nextID  int64
	lineID  int64
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{
		entries: make(map[int64]journals.JournalEntry),
		lines:   make(map[int64][]journals.JournalLine),
		links:   make(map[string]int64),
	}
}

func (m *memoryLedger) WithTx(ctx context.Context, fn func(context.Context, journals.TxRepository) error) error {
	return fn(ctx, m)
}

func (m *memoryLedger) Get(_ context.Context, entryID int64) (journals.JournalEntry, []journals.JournalLine, error) {
	e, ok := m.entries[entryID]
	if !ok {
		return journals.JournalEntry{}, nil, shared.ErrJournalNotFound
	}
	return e, m.lines[entryID], nil
}

func (m *memoryLedger) GetBySource(_ context.Context, module string, ref uuid.UUID) (journals.JournalEntry, error) {
	id, ok := m.links[module+":"+ref.String()]
	if !ok {
		return journals.JournalEntry{}, shared.ErrJournalNotFound
	}
	return m.entries[id], nil
}

func (m *memoryLedger) List(_ context.Context, limit int) ([]journals.JournalEntry, error) {
	out := make([]journals.JournalEntry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e)
	}
	return out, nil
}

func (m *memoryLedger) InsertEntry(_ context.Context, entry journals.JournalEntry) (journals.JournalEntry, error) {
	m.nextID++
	entry.ID = m.nextID
	m.entries[entry.ID] = entry
	return entry, nil
}

func (m *memoryLedger) InsertLines(_ context.Context, entryID int64, lines []journals.LineInput) ([]journals.JournalLine, error) {
	out := make([]journals.JournalLine, 0, len(lines))
	for _, in := range lines {
		m.lineID++
		out = append(out, journals.JournalLine{
			ID: m.lineID, JournalID: entryID, AccountID: in.AccountID,
			Debit: shared.Round2(in.Debit), Credit: shared.Round2(in.Credit), Memo: in.Memo,
		})
	}
	m.lines[entryID] = out
	return out, nil
}

func (m *memoryLedger) GetEntryForUpdate(ctx context.Context, entryID int64) (journals.JournalEntry, []journals.JournalLine, error) {
	return m.Get(ctx, entryID)
}

func (m *memoryLedger) UpdateStatus(_ context.Context, entryID int64, status journals.EntryStatus, postedAt *time.Time) error {
	e, ok := m.entries[entryID]
	if !ok {
		return shared.ErrJournalNotFound
	}
	e.Status = status
	if postedAt != nil {
		e.PostedAt = postedAt
	}
	m.entries[entryID] = e
	return nil
}

func (m *memoryLedger) DeleteEntry(_ context.Context, entryID int64) error {
	delete(m.entries, entryID)
	delete(m.lines, entryID)
	return nil
}

func (m *memoryLedger) GetPostingAccounts(_ context.Context, ids []int64) (map[int64]journals.PostingAccount, error) {
	out := make(map[int64]journals.PostingAccount, len(ids))
	for _, id := range ids {
		out[id] = journals.PostingAccount{ID: id, IsLeaf: true, IsActive: true}
	}
	return out, nil
}

func (m *memoryLedger) FindOpenPeriodByDate(_ context.Context, date time.Time) (periods.Period, error) {
	return periods.Period{
		ID:        1,
		StartDate: date.AddDate(0, -1, 0),
		EndDate:   date.AddDate(0, 1, 0),
		Status:    periods.StatusOpen,
	}, nil
}

func (m *memoryLedger) LinkSource(_ context.Context, module string, ref uuid.UUID, entryID int64) error {
	key := module + ":" + ref.String()
	if _, ok := m.links[key]; ok {
		return shared.ErrSourceConflict
	}
	m.links[key] = entryID
	return nil
}

func (m *memoryLedger) UnlinkSource(_ context.Context, entryID int64) error {
	for key, id := range m.links {
		if id == entryID {
			delete(m.links, key)
		}
	}
	return nil
}

// netBalances folds every line of the ledger into per-account net
// movement (debit minus credit). Drafts carry no ledger effect; a
// reversed original stays in the sum and is netted by its posted
// reversal, matching how the balance engine reads lines.
func (m *memoryLedger) netBalances() map[int64]float64 {
	net := make(map[int64]float64)
	for id, e := range m.entries {
		if e.Status != journals.StatusPosted && e.Status != journals.StatusReversed {
			continue
		}
		for _, l := range m.lines[id] {
			net[l.AccountID] += l.Debit - l.Credit
		}
	}
	return net
}

func newLedgerHooks() (*Hooks, *memoryLedger) {
	store := newMemoryLedger()
	svc := journals.NewService(store, nil, nil, nil)
	svc.WithNow(func() time.Time { return time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC) })

	resolver := &fakeResolver{roles: newTestRoles()}
	directory := &fakeDirectory{accounts: newTestDirectoryAccounts()}
	return NewHooks(svc, resolver, directory, nil, nil), store
}

func salePaymentEvent() ar.PaymentPostedEvent {
	return ar.PaymentPostedEvent{
		ID:            31,
		Number:        "PAY-20250314100000",
		InvoiceNumber: "INV-20250314100000",
		Amount:        400,
		Date:          time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC),
		Method:        ar.MethodCash,
	}
}

func TestPaymentRepostAfterReversalThroughJournalService(t *testing.T) {
	hooks, store := newLedgerHooks()

	first, err := hooks.HandleSalePaymentPosted(context.Background(), salePaymentEvent())
	require.NoError(t, err)

	_, err = hooks.ReverseDocumentEntry(context.Background(), first, "unpost", 7)
	require.NoError(t, err)

	second, err := hooks.HandleSalePaymentPosted(context.Background(), salePaymentEvent())
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	original := store.entries[first]
	require.Equal(t, journals.StatusReversed, original.Status)
	repost := store.entries[second]
	require.Equal(t, journals.StatusPosted, repost.Status)
}

func TestPaymentPostReverseLeavesBalancesFlat(t *testing.T) {
	hooks, store := newLedgerHooks()

	entryID, err := hooks.HandleSalePaymentPosted(context.Background(), salePaymentEvent())
	require.NoError(t, err)

	net := store.netBalances()
	require.Equal(t, 400.0, net[cashAccountID])
	require.Equal(t, -400.0, net[arAccountID])

	_, err = hooks.ReverseDocumentEntry(context.Background(), entryID, "unpost", 7)
	require.NoError(t, err)

	for account, amount := range store.netBalances() {
		require.Zerof(t, amount, "account %d not flat after reversal", account)
	}
}

func TestFullReturnRestoresInvoiceBalances(t *testing.T) {
	hooks, store := newLedgerHooks()

	cost := 60.0
	_, err := hooks.HandleSaleInvoiceConfirmed(context.Background(), ar.InvoiceConfirmedEvent{
		ID:           11,
		Number:       "INV-20250314100000",
		CustomerName: "Acme Trading",
		Date:         time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		Total:        1000,
		Lines: []ar.LineEvent{
			{Description: "Widget", Qty: 10, UnitPrice: 100, UnitCost: &cost, Amount: 1000},
		},
	})
	require.NoError(t, err)

	_, err = hooks.HandleSaleReturnConfirmed(context.Background(), ar.ReturnConfirmedEvent{
		ID:            21,
		Number:        "RET-20250314100000",
		InvoiceNumber: "INV-20250314100000",
		Date:          time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC),
		Total:         1000,
		Lines: []ar.LineEvent{
			{Description: "Widget", Qty: 10, UnitPrice: 100, UnitCost: &cost, Amount: 1000},
		},
	})
	require.NoError(t, err)

	for account, amount := range store.netBalances() {
		require.Zerof(t, amount, "account %d not flat after full return", account)
	}
}
