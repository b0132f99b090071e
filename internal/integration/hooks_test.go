package integration

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/ledgerline/internal/accounting/accounts"
	"github.com/ledgerline/ledgerline/internal/accounting/journals"
	"github.com/ledgerline/ledgerline/internal/accounting/mappings"
	"github.com/ledgerline/ledgerline/internal/accounting/shared"
	"github.com/ledgerline/ledgerline/internal/ap"
	"github.com/ledgerline/ledgerline/internal/ar"
	_ "github.com/ledgerline/ledgerline/testing"
)

type fakeLedger struct {
	nextID   int64
	posted   []journals.DraftInput
	entries  map[int64]journals.JournalEntry
	bySource map[string]int64
	reversed []journals.ReverseInput
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		entries:  make(map[int64]journals.JournalEntry),
		bySource: make(map[string]int64),
	}
}

func (f *fakeLedger) PostDirect(_ context.Context, input journals.DraftInput) (journals.JournalEntry, error) {
	key := input.SourceModule + ":" + input.SourceID.String()
	if _, ok := f.bySource[key]; ok {
		return journals.JournalEntry{}, shared.ErrSourceAlreadyLinked
	}
	f.nextID++
	entry := journals.JournalEntry{
		ID:           f.nextID,
		Number:       fmt.Sprintf("%s-%s-20250314100000", input.Prefix, input.DocRef),
		Date:         input.Date,
		Type:         input.Type,
		Status:       journals.StatusPosted,
		SourceModule: input.SourceModule,
		SourceID:     input.SourceID,
	}
	for _, in := range input.Lines {
		entry.Lines = append(entry.Lines, journals.JournalLine{
			JournalID: entry.ID, AccountID: in.AccountID, Debit: in.Debit, Credit: in.Credit, Memo: in.Memo,
		})
	}
	f.entries[entry.ID] = entry
	f.bySource[key] = entry.ID
	f.posted = append(f.posted, input)
	return entry, nil
}

func (f *fakeLedger) GetBySource(_ context.Context, module string, ref uuid.UUID) (journals.JournalEntry, error) {
	id, ok := f.bySource[module+":"+ref.String()]
	if !ok {
		return journals.JournalEntry{}, shared.ErrJournalNotFound
	}
	return f.entries[id], nil
}

func (f *fakeLedger) Reverse(_ context.Context, input journals.ReverseInput) (journals.JournalEntry, error) {
	f.reversed = append(f.reversed, input)
	if original, ok := f.entries[input.EntryID]; ok {
		original.Status = journals.StatusReversed
		f.entries[original.ID] = original
		for key, id := range f.bySource {
			if id == original.ID {
				delete(f.bySource, key)
			}
		}
	}
	f.nextID++
	return journals.JournalEntry{ID: f.nextID, Status: journals.StatusPosted, ReverseOfID: &input.EntryID}, nil
}

type fakeResolver struct {
	roles map[mappings.Role]int64
}

func (f *fakeResolver) Resolve(_ context.Context, role mappings.Role) (mappings.Resolved, error) {
	id, ok := f.roles[role]
	if !ok {
		return mappings.Resolved{}, fmt.Errorf("%w: %s", shared.ErrMappingNotFound, role)
	}
	return mappings.Resolved{Role: role, AccountID: id}, nil
}

type fakeDirectory struct {
	accounts map[int64]accounts.Account
}

func (f *fakeDirectory) Get(_ context.Context, id int64) (accounts.Account, error) {
	account, ok := f.accounts[id]
	if !ok {
		return accounts.Account{}, shared.ErrAccountNotFound
	}
	return account, nil
}

type capturePublisher struct {
	events []DocumentPostedEvent
}

func (c *capturePublisher) DocumentPosted(_ context.Context, evt DocumentPostedEvent) error {
	c.events = append(c.events, evt)
	return nil
}

const (
	arAccountID        = int64(1)
	revenueAccountID   = int64(2)
	cogsAccountID      = int64(3)
	inventoryAccountID = int64(4)
	apAccountID        = int64(5)
	cashAccountID      = int64(6)
	bankAccountID      = int64(7)
)

func newTestRoles() map[mappings.Role]int64 {
	return map[mappings.Role]int64{
		mappings.RoleAR:           arAccountID,
		mappings.RoleSalesRevenue: revenueAccountID,
		mappings.RoleCOGS:         cogsAccountID,
		mappings.RoleInventory:    inventoryAccountID,
		mappings.RoleAP:           apAccountID,
		mappings.RoleCash:         cashAccountID,
		mappings.RoleBank:         bankAccountID,
	}
}

func newTestDirectoryAccounts() map[int64]accounts.Account {
	return map[int64]accounts.Account{
		cashAccountID: {ID: cashAccountID, Code: "11011", IsCash: true, IsLeaf: true, IsActive: true},
		bankAccountID: {ID: bankAccountID, Code: "11021", IsBank: true, IsLeaf: true, IsActive: true},
	}
}

func newTestHooks() (*Hooks, *fakeLedger, *capturePublisher) {
	ledger := newFakeLedger()
	resolver := &fakeResolver{roles: newTestRoles()}
	directory := &fakeDirectory{accounts: newTestDirectoryAccounts()}
	publisher := &capturePublisher{}
	return NewHooks(ledger, resolver, directory, publisher, nil), ledger, publisher
}

func saleInvoiceEvent() ar.InvoiceConfirmedEvent {
	cost := 60.0
	return ar.InvoiceConfirmedEvent{
		ID:           11,
		Number:       "INV-20250314100000",
		CustomerName: "Acme Trading",
		Date:         time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		Total:        1000,
		Lines: []ar.LineEvent{
			{Description: "Widget", Qty: 10, UnitPrice: 100, UnitCost: &cost, Amount: 1000},
		},
	}
}

func TestSaleInvoicePostsRevenueAndCOGS(t *testing.T) {
	hooks, ledger, publisher := newTestHooks()

	id, err := hooks.HandleSaleInvoiceConfirmed(context.Background(), saleInvoiceEvent())
	require.NoError(t, err)
	require.Equal(t, int64(1), id)

	require.Len(t, ledger.posted, 1)
	input := ledger.posted[0]
	require.Equal(t, journals.TypeAutomatic, input.Type)
	require.Equal(t, journals.PrefixSale, input.Prefix)
	require.Equal(t, "ar_invoice", input.SourceModule)
	require.Len(t, input.Lines, 4)
	require.Equal(t, arAccountID, input.Lines[0].AccountID)
	require.Equal(t, 1000.0, input.Lines[0].Debit)
	require.Equal(t, 1000.0, input.Lines[1].Credit)
	require.Equal(t, revenueAccountID, input.Lines[1].AccountID)
	require.Equal(t, 600.0, input.Lines[2].Debit)
	require.Equal(t, cogsAccountID, input.Lines[2].AccountID)
	require.Equal(t, 600.0, input.Lines[3].Credit)
	require.Equal(t, inventoryAccountID, input.Lines[3].AccountID)

	require.Len(t, publisher.events, 1)
	require.Equal(t, "ar_invoice", publisher.events[0].DocumentType)
	require.Equal(t, int64(11), publisher.events[0].DocumentID)
	require.Equal(t, 1600.0, publisher.events[0].Amount)
}

func TestSaleInvoiceWithoutCostsSkipsCOGS(t *testing.T) {
	hooks, ledger, _ := newTestHooks()

	evt := saleInvoiceEvent()
	evt.Lines[0].UnitCost = nil
	_, err := hooks.HandleSaleInvoiceConfirmed(context.Background(), evt)
	require.NoError(t, err)
	require.Len(t, ledger.posted[0].Lines, 2)
}

func TestRepostResolvesExistingEntry(t *testing.T) {
	hooks, ledger, publisher := newTestHooks()

	first, err := hooks.HandleSaleInvoiceConfirmed(context.Background(), saleInvoiceEvent())
	require.NoError(t, err)
	second, err := hooks.HandleSaleInvoiceConfirmed(context.Background(), saleInvoiceEvent())
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Len(t, ledger.posted, 1)
	require.Len(t, publisher.events, 1)
}

func TestRepostAfterReversalBooksNewEntry(t *testing.T) {
	hooks, ledger, _ := newTestHooks()

	first, err := hooks.HandleSaleInvoiceConfirmed(context.Background(), saleInvoiceEvent())
	require.NoError(t, err)

	_, err = hooks.ReverseDocumentEntry(context.Background(), first, "unpost", 7)
	require.NoError(t, err)

	second, err := hooks.HandleSaleInvoiceConfirmed(context.Background(), saleInvoiceEvent())
	require.NoError(t, err)
	require.NotEqual(t, first, second)
	require.Len(t, ledger.posted, 2)
}

func TestRepostRefusesStaleReversedLink(t *testing.T) {
	hooks, ledger, _ := newTestHooks()

	first, err := hooks.HandleSaleInvoiceConfirmed(context.Background(), saleInvoiceEvent())
	require.NoError(t, err)

	// A reversed entry that still holds its source link must not be
	// treated as the document's ledger effect.
	entry := ledger.entries[first]
	entry.Status = journals.StatusReversed
	ledger.entries[first] = entry

	_, err = hooks.HandleSaleInvoiceConfirmed(context.Background(), saleInvoiceEvent())
	require.ErrorIs(t, err, shared.ErrSourceAlreadyLinked)
}

func TestSaleReturnReversesReturnedLines(t *testing.T) {
	hooks, ledger, _ := newTestHooks()

	cost := 60.0
	_, err := hooks.HandleSaleReturnConfirmed(context.Background(), ar.ReturnConfirmedEvent{
		ID:            21,
		Number:        "RET-20250314100000",
		InvoiceNumber: "INV-20250314100000",
		Date:          time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC),
		Total:         200,
		Lines: []ar.LineEvent{
			{Description: "Widget", Qty: 2, UnitPrice: 100, UnitCost: &cost, Amount: 200},
		},
	})
	require.NoError(t, err)

	input := ledger.posted[0]
	require.Equal(t, journals.PrefixReturn, input.Prefix)
	require.Len(t, input.Lines, 4)
	require.Equal(t, revenueAccountID, input.Lines[0].AccountID)
	require.Equal(t, 200.0, input.Lines[0].Debit)
	require.Equal(t, arAccountID, input.Lines[1].AccountID)
	require.Equal(t, 200.0, input.Lines[1].Credit)
	require.Equal(t, inventoryAccountID, input.Lines[2].AccountID)
	require.Equal(t, 120.0, input.Lines[2].Debit)
	require.Equal(t, cogsAccountID, input.Lines[3].AccountID)
	require.Equal(t, 120.0, input.Lines[3].Credit)
}

func TestSalePaymentUsesCanonicalCashAccount(t *testing.T) {
	hooks, ledger, _ := newTestHooks()

	_, err := hooks.HandleSalePaymentPosted(context.Background(), ar.PaymentPostedEvent{
		ID:            31,
		Number:        "PAY-20250314100000",
		InvoiceNumber: "INV-20250314100000",
		Amount:        400,
		Date:          time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC),
		Method:        ar.MethodCash,
	})
	require.NoError(t, err)

	input := ledger.posted[0]
	require.Equal(t, cashAccountID, input.Lines[0].AccountID)
	require.Equal(t, 400.0, input.Lines[0].Debit)
	require.Equal(t, arAccountID, input.Lines[1].AccountID)
	require.Equal(t, 400.0, input.Lines[1].Credit)
}

func TestSalePaymentRejectsMismatchedAccount(t *testing.T) {
	hooks, _, _ := newTestHooks()

	bank := bankAccountID
	_, err := hooks.HandleSalePaymentPosted(context.Background(), ar.PaymentPostedEvent{
		ID:        32,
		Number:    "PAY-20250314100001",
		Amount:    400,
		Date:      time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC),
		Method:    ar.MethodCash,
		AccountID: &bank,
	})
	require.ErrorIs(t, err, shared.ErrMethodAccountMismatch)
}

func TestPurchaseInvoicePostsInventoryAgainstAP(t *testing.T) {
	hooks, ledger, _ := newTestHooks()

	_, err := hooks.HandlePurchaseInvoiceConfirmed(context.Background(), ap.InvoiceConfirmedEvent{
		ID:           41,
		Number:       "PINV-20250314100000",
		SupplierName: "Nordic Supplies",
		Date:         time.Date(2025, 3, 8, 0, 0, 0, 0, time.UTC),
		Total:        800,
		Lines: []ap.LineEvent{
			{Description: "Raw material", Qty: 20, UnitCost: 40, Amount: 800},
		},
	})
	require.NoError(t, err)

	input := ledger.posted[0]
	require.Equal(t, journals.PrefixPurchase, input.Prefix)
	require.Equal(t, inventoryAccountID, input.Lines[0].AccountID)
	require.Equal(t, 800.0, input.Lines[0].Debit)
	require.Equal(t, apAccountID, input.Lines[1].AccountID)
	require.Equal(t, 800.0, input.Lines[1].Credit)
}

func TestPurchasePaymentDebitsAP(t *testing.T) {
	hooks, ledger, _ := newTestHooks()

	bank := bankAccountID
	_, err := hooks.HandlePurchasePaymentPosted(context.Background(), ap.PaymentPostedEvent{
		ID:            51,
		Number:        "PPAY-20250314100000",
		InvoiceNumber: "PINV-20250314100000",
		Amount:        300,
		Date:          time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC),
		Method:        ap.MethodBankTransfer,
		AccountID:     &bank,
	})
	require.NoError(t, err)

	input := ledger.posted[0]
	require.Equal(t, apAccountID, input.Lines[0].AccountID)
	require.Equal(t, 300.0, input.Lines[0].Debit)
	require.Equal(t, bankAccountID, input.Lines[1].AccountID)
	require.Equal(t, 300.0, input.Lines[1].Credit)
}

func TestReverseDocumentEntry(t *testing.T) {
	hooks, ledger, _ := newTestHooks()

	id, err := hooks.ReverseDocumentEntry(context.Background(), 9, "unpost", 7)
	require.NoError(t, err)
	require.Equal(t, int64(1), id)
	require.Len(t, ledger.reversed, 1)
	require.Equal(t, int64(9), ledger.reversed[0].EntryID)
	require.Equal(t, "unpost", ledger.reversed[0].Reason)
}
