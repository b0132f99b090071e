package ar

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ledgerline/ledgerline/internal/accounting/shared"
	internalShared "github.com/ledgerline/ledgerline/internal/shared"
	_ "github.com/ledgerline/ledgerline/testing"
)

type fakeRepo struct {
	invoices map[int64]Invoice
	returns  map[int64]Return
	payments map[int64]Payment
	nextID   int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		invoices: make(map[int64]Invoice),
		returns:  make(map[int64]Return),
		payments: make(map[int64]Payment),
	}
}

func (f *fakeRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, f)
}

func (f *fakeRepo) GetInvoice(_ context.Context, id int64) (Invoice, error) {
	inv, ok := f.invoices[id]
	if !ok {
		return Invoice{}, ErrInvoiceNotFound
	}
	return inv, nil
}

func (f *fakeRepo) ListInvoices(_ context.Context, status InvoiceStatus, _ int) ([]Invoice, error) {
	var out []Invoice
	for _, inv := range f.invoices {
		if status == "" || inv.Status == status {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (f *fakeRepo) GetReturn(_ context.Context, id int64) (Return, error) {
	ret, ok := f.returns[id]
	if !ok {
		return Return{}, ErrReturnNotFound
	}
	return ret, nil
}

func (f *fakeRepo) GetPayment(_ context.Context, id int64) (Payment, error) {
	p, ok := f.payments[id]
	if !ok {
		return Payment{}, ErrPaymentNotFound
	}
	return p, nil
}

func (f *fakeRepo) ListPayments(_ context.Context, _ int) ([]Payment, error) {
	var out []Payment
	for _, p := range f.payments {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeRepo) AgedInvoices(_ context.Context, asOf time.Time) ([]AgedInvoice, error) {
	var out []AgedInvoice
	for _, inv := range f.invoices {
		if inv.Status != InvoiceConfirmed || inv.Date.After(asOf) {
			continue
		}
		aged := AgedInvoice{
			InvoiceID: inv.ID, Number: inv.Number, PartyID: inv.CustomerID,
			PartyName: inv.CustomerName, Date: inv.Date, Total: inv.Total,
		}
		for _, p := range f.payments {
			if p.InvoiceID == inv.ID && p.Status == PaymentPosted && !p.Date.After(asOf) {
				aged.Paid += p.Amount
			}
		}
		for _, ret := range f.returns {
			if ret.InvoiceID == inv.ID && ret.Status == InvoiceConfirmed && !ret.Date.After(asOf) {
				aged.ReturnsTot += ret.Total
			}
		}
		out = append(out, aged)
	}
	return out, nil
}

func (f *fakeRepo) InsertInvoice(_ context.Context, inv Invoice) (Invoice, error) {
	f.nextID++
	inv.ID = f.nextID
	f.invoices[inv.ID] = inv
	return inv, nil
}

func (f *fakeRepo) InsertInvoiceLines(_ context.Context, invoiceID int64, lines []InvoiceLine) ([]InvoiceLine, error) {
	inv := f.invoices[invoiceID]
	for i := range lines {
		f.nextID++
		lines[i].ID = f.nextID
		lines[i].InvoiceID = invoiceID
	}
	inv.Lines = lines
	f.invoices[invoiceID] = inv
	return lines, nil
}

func (f *fakeRepo) GetInvoiceForUpdate(ctx context.Context, id int64) (Invoice, error) {
	return f.GetInvoice(ctx, id)
}

func (f *fakeRepo) UpdateInvoiceStatus(_ context.Context, id int64, status InvoiceStatus, journalID *int64) error {
	inv, ok := f.invoices[id]
	if !ok {
		return ErrInvoiceNotFound
	}
	inv.Status = status
	if journalID != nil {
		inv.JournalID = journalID
	}
	f.invoices[id] = inv
	return nil
}

func (f *fakeRepo) DeleteInvoice(_ context.Context, id int64) error {
	delete(f.invoices, id)
	return nil
}

func (f *fakeRepo) InsertReturn(_ context.Context, ret Return) (Return, error) {
	f.nextID++
	ret.ID = f.nextID
	f.returns[ret.ID] = ret
	return ret, nil
}

func (f *fakeRepo) InsertReturnLines(_ context.Context, returnID int64, lines []ReturnLine) ([]ReturnLine, error) {
	ret := f.returns[returnID]
	for i := range lines {
		f.nextID++
		lines[i].ID = f.nextID
		lines[i].ReturnID = returnID
	}
	ret.Lines = lines
	f.returns[returnID] = ret
	return lines, nil
}

func (f *fakeRepo) GetReturnForUpdate(ctx context.Context, id int64) (Return, error) {
	return f.GetReturn(ctx, id)
}

func (f *fakeRepo) UpdateReturnStatus(_ context.Context, id int64, status InvoiceStatus, journalID *int64) error {
	ret, ok := f.returns[id]
	if !ok {
		return ErrReturnNotFound
	}
	ret.Status = status
	if journalID != nil {
		ret.JournalID = journalID
	}
	f.returns[id] = ret
	return nil
}

func (f *fakeRepo) SumConfirmedReturns(_ context.Context, invoiceID int64) (float64, error) {
	var total float64
	for _, ret := range f.returns {
		if ret.InvoiceID == invoiceID && ret.Status == InvoiceConfirmed {
			total += ret.Total
		}
	}
	return total, nil
}

func (f *fakeRepo) InsertPayment(_ context.Context, p Payment) (Payment, error) {
	f.nextID++
	p.ID = f.nextID
	f.payments[p.ID] = p
	return p, nil
}

func (f *fakeRepo) GetPaymentForUpdate(ctx context.Context, id int64) (Payment, error) {
	return f.GetPayment(ctx, id)
}

func (f *fakeRepo) UpdatePaymentFields(_ context.Context, p Payment) error {
	stored, ok := f.payments[p.ID]
	if !ok {
		return ErrPaymentNotFound
	}
	stored.Amount = p.Amount
	stored.Date = p.Date
	stored.Method = p.Method
	stored.AccountID = p.AccountID
	stored.Note = p.Note
	f.payments[p.ID] = stored
	return nil
}

func (f *fakeRepo) SetPaymentPosted(_ context.Context, id int64, journalID int64, postedAt time.Time) error {
	p := f.payments[id]
	p.Status = PaymentPosted
	p.SyncStatus = SyncSynced
	p.SyncMessage = ""
	p.JournalID = &journalID
	p.PostedAt = &postedAt
	f.payments[id] = p
	return nil
}

func (f *fakeRepo) SetPaymentUnposted(_ context.Context, id int64) error {
	p := f.payments[id]
	p.Status = PaymentDraft
	p.SyncStatus = SyncPending
	p.SyncMessage = ""
	p.JournalID = nil
	p.PostedAt = nil
	f.payments[id] = p
	return nil
}

func (f *fakeRepo) SetPaymentSync(_ context.Context, id int64, status SyncStatus, message string) error {
	p := f.payments[id]
	p.SyncStatus = status
	p.SyncMessage = message
	f.payments[id] = p
	return nil
}

func (f *fakeRepo) DeletePayment(_ context.Context, id int64) error {
	delete(f.payments, id)
	return nil
}

// fakeHooks keeps one ledger entry per document source, the way the
// journal source link does. Booking the same document twice converges
// on the linked entry; reversing releases the link so the next booking
// mints a fresh entry.
type fakeHooks struct {
	nextJournalID int64
	postErr       error
	reversals     []int64
	posted        []PaymentPostedEvent
	entries       map[string]int64
}

func newFakeHooks() *fakeHooks {
	return &fakeHooks{entries: make(map[string]int64)}
}

func (f *fakeHooks) book(key string) (int64, error) {
	if f.postErr != nil {
		return 0, f.postErr
	}
	if id, ok := f.entries[key]; ok {
		return id, nil
	}
	f.nextJournalID++
	f.entries[key] = f.nextJournalID
	return f.nextJournalID, nil
}

func (f *fakeHooks) HandleSaleInvoiceConfirmed(_ context.Context, evt InvoiceConfirmedEvent) (int64, error) {
	return f.book(fmt.Sprintf("invoice:%d", evt.ID))
}

func (f *fakeHooks) HandleSaleReturnConfirmed(_ context.Context, evt ReturnConfirmedEvent) (int64, error) {
	return f.book(fmt.Sprintf("return:%d", evt.ID))
}

func (f *fakeHooks) HandleSalePaymentPosted(_ context.Context, evt PaymentPostedEvent) (int64, error) {
	id, err := f.book(fmt.Sprintf("payment:%d", evt.ID))
	if err != nil {
		return 0, err
	}
	f.posted = append(f.posted, evt)
	return id, nil
}

func (f *fakeHooks) ReverseDocumentEntry(_ context.Context, journalID int64, _ string, _ int64) (int64, error) {
	f.reversals = append(f.reversals, journalID)
	for key, id := range f.entries {
		if id == journalID {
			delete(f.entries, key)
		}
	}
	f.nextJournalID++
	return f.nextJournalID, nil
}

func newTestService(t *testing.T) (*Service, *fakeRepo, *fakeHooks) {
	t.Helper()
	repo := newFakeRepo()
	hooks := newFakeHooks()
	svc := NewService(repo, hooks, nil, internalShared.StaticCapabilities{internalShared.CapEditPostedPayments: true}, nil)
	svc.WithNow(func() time.Time { return time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC) })
	return svc, repo, hooks
}

func sampleInvoiceInput() CreateInvoiceInput {
	cost := 60.0
	return CreateInvoiceInput{
		CustomerID:   1,
		CustomerName: "Acme Trading",
		Date:         time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		CreatedBy:    7,
		Lines: []CreateInvoiceLine{
			{Description: "Widget", Qty: 10, UnitPrice: 100, UnitCost: &cost},
		},
	}
}

func confirmedInvoice(t *testing.T, svc *Service) Invoice {
	t.Helper()
	inv, err := svc.CreateInvoice(context.Background(), sampleInvoiceInput())
	require.NoError(t, err)
	inv, err = svc.ConfirmInvoice(context.Background(), inv.ID, 7)
	require.NoError(t, err)
	return inv
}

func TestCreateInvoiceComputesTotals(t *testing.T) {
	svc, _, _ := newTestService(t)

	input := sampleInvoiceInput()
	input.Lines = append(input.Lines, CreateInvoiceLine{Description: "Gadget", Qty: 3, UnitPrice: 33.335})

	inv, err := svc.CreateInvoice(context.Background(), input)
	require.NoError(t, err)
	require.Equal(t, InvoiceDraft, inv.Status)
	require.Equal(t, 1100.01, inv.Total)
	require.Equal(t, time.Date(2025, 4, 9, 0, 0, 0, 0, time.UTC), inv.DueDate)
	require.Len(t, inv.Lines, 2)
	require.Equal(t, 100.01, inv.Lines[1].Amount)
}

func TestConfirmInvoiceStoresJournalLink(t *testing.T) {
	svc, repo, _ := newTestService(t)

	inv := confirmedInvoice(t, svc)
	require.Equal(t, InvoiceConfirmed, inv.Status)
	require.NotNil(t, inv.JournalID)

	stored, _ := repo.GetInvoice(context.Background(), inv.ID)
	require.Equal(t, InvoiceConfirmed, stored.Status)
}

func TestConfirmInvoiceIsIdempotent(t *testing.T) {
	svc, _, hooks := newTestService(t)

	inv := confirmedInvoice(t, svc)
	again, err := svc.ConfirmInvoice(context.Background(), inv.ID, 7)
	require.NoError(t, err)
	require.Equal(t, *inv.JournalID, *again.JournalID)
	require.Equal(t, int64(1), hooks.nextJournalID)
}

func TestConfirmInvoiceFailureKeepsDraft(t *testing.T) {
	svc, repo, hooks := newTestService(t)

	inv, err := svc.CreateInvoice(context.Background(), sampleInvoiceInput())
	require.NoError(t, err)

	hooks.postErr = shared.ErrClosedPeriod
	_, err = svc.ConfirmInvoice(context.Background(), inv.ID, 7)
	require.ErrorIs(t, err, shared.ErrClosedPeriod)

	stored, _ := repo.GetInvoice(context.Background(), inv.ID)
	require.Equal(t, InvoiceDraft, stored.Status)
}

func TestCancelInvoiceDraftOnly(t *testing.T) {
	svc, _, _ := newTestService(t)

	inv := confirmedInvoice(t, svc)
	err := svc.CancelInvoice(context.Background(), inv.ID, 7)
	require.ErrorIs(t, err, ErrNotDraft)
}

func TestCreateReturnRejectsExcessAmount(t *testing.T) {
	svc, _, _ := newTestService(t)

	inv := confirmedInvoice(t, svc)
	_, err := svc.CreateReturn(context.Background(), CreateReturnInput{
		InvoiceID: inv.ID,
		Date:      time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC),
		CreatedBy: 7,
		Lines:     []CreateInvoiceLine{{Description: "Widget", Qty: 11, UnitPrice: 100}},
	})
	require.ErrorIs(t, err, ErrReturnExceedsInvoice)
}

func TestConfirmReturn(t *testing.T) {
	svc, repo, _ := newTestService(t)

	inv := confirmedInvoice(t, svc)
	ret, err := svc.CreateReturn(context.Background(), CreateReturnInput{
		InvoiceID: inv.ID,
		Date:      time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC),
		CreatedBy: 7,
		Lines:     []CreateInvoiceLine{{Description: "Widget", Qty: 2, UnitPrice: 100}},
	})
	require.NoError(t, err)
	require.Equal(t, 200.0, ret.Total)

	confirmed, err := svc.ConfirmReturn(context.Background(), ret.ID, 7)
	require.NoError(t, err)
	require.Equal(t, InvoiceConfirmed, confirmed.Status)
	require.NotNil(t, confirmed.JournalID)

	stored, _ := repo.GetReturn(context.Background(), ret.ID)
	require.Equal(t, InvoiceConfirmed, stored.Status)
}

func TestCreatePaymentRequiresConfirmedInvoice(t *testing.T) {
	svc, _, _ := newTestService(t)

	inv, err := svc.CreateInvoice(context.Background(), sampleInvoiceInput())
	require.NoError(t, err)

	_, err = svc.CreatePayment(context.Background(), CreatePaymentInput{
		InvoiceID: inv.ID, Amount: 100,
		Date: time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC),
	})
	require.ErrorIs(t, err, ErrNotConfirmed)
}

func draftPayment(t *testing.T, svc *Service, invoiceID int64, amount float64) Payment {
	t.Helper()
	p, err := svc.CreatePayment(context.Background(), CreatePaymentInput{
		InvoiceID: invoiceID,
		Amount:    amount,
		Date:      time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC),
		Method:    MethodCash,
		CreatedBy: 7,
	})
	require.NoError(t, err)
	return p
}

func TestCreatePaymentRejectsUnknownMethod(t *testing.T) {
	svc, _, _ := newTestService(t)

	inv := confirmedInvoice(t, svc)
	_, err := svc.CreatePayment(context.Background(), CreatePaymentInput{
		InvoiceID: inv.ID,
		Amount:    100,
		Date:      time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC),
		Method:    PaymentMethod("CARD"),
		CreatedBy: 7,
	})
	require.ErrorIs(t, err, ErrInvalidMethod)
}

func TestPostPayment(t *testing.T) {
	svc, repo, hooks := newTestService(t)

	inv := confirmedInvoice(t, svc)
	p := draftPayment(t, svc, inv.ID, 400)

	posted, err := svc.PostPayment(context.Background(), p.ID, 7)
	require.NoError(t, err)
	require.Equal(t, PaymentPosted, posted.Status)
	require.Equal(t, SyncSynced, posted.SyncStatus)
	require.NotNil(t, posted.JournalID)
	require.Len(t, hooks.posted, 1)
	require.Equal(t, 400.0, hooks.posted[0].Amount)

	stored, _ := repo.GetPayment(context.Background(), p.ID)
	require.Equal(t, PaymentPosted, stored.Status)
}

func TestPostPaymentIsIdempotent(t *testing.T) {
	svc, _, hooks := newTestService(t)

	inv := confirmedInvoice(t, svc)
	p := draftPayment(t, svc, inv.ID, 400)

	_, err := svc.PostPayment(context.Background(), p.ID, 7)
	require.NoError(t, err)
	_, err = svc.PostPayment(context.Background(), p.ID, 7)
	require.NoError(t, err)
	require.Len(t, hooks.posted, 1)
}

func TestPostPaymentLedgerFailureLeavesDraft(t *testing.T) {
	svc, repo, hooks := newTestService(t)

	inv := confirmedInvoice(t, svc)
	p := draftPayment(t, svc, inv.ID, 400)

	hooks.postErr = shared.ErrMappingNotFound
	_, err := svc.PostPayment(context.Background(), p.ID, 7)

	var lpe *LedgerPostError
	require.ErrorAs(t, err, &lpe)
	require.True(t, lpe.Retryable)

	stored, _ := repo.GetPayment(context.Background(), p.ID)
	require.Equal(t, PaymentDraft, stored.Status)
	require.Equal(t, SyncFailed, stored.SyncStatus)
	require.NotEmpty(t, stored.SyncMessage)

	// Retry succeeds after the mapping is fixed.
	hooks.postErr = nil
	posted, err := svc.PostPayment(context.Background(), p.ID, 7)
	require.NoError(t, err)
	require.Equal(t, SyncSynced, posted.SyncStatus)
}

func TestUnpostPayment(t *testing.T) {
	svc, repo, hooks := newTestService(t)

	inv := confirmedInvoice(t, svc)
	p := draftPayment(t, svc, inv.ID, 400)
	posted, err := svc.PostPayment(context.Background(), p.ID, 7)
	require.NoError(t, err)
	journalID := *posted.JournalID

	unposted, err := svc.UnpostPayment(context.Background(), p.ID, 7, "wrong amount")
	require.NoError(t, err)
	require.Equal(t, PaymentDraft, unposted.Status)
	require.Equal(t, SyncPending, unposted.SyncStatus)
	require.Nil(t, unposted.JournalID)
	require.Equal(t, []int64{journalID}, hooks.reversals)

	stored, _ := repo.GetPayment(context.Background(), p.ID)
	require.Nil(t, stored.JournalID)
}

func TestRepostPaymentAfterUnpostBooksNewJournal(t *testing.T) {
	svc, _, _ := newTestService(t)

	inv := confirmedInvoice(t, svc)
	p := draftPayment(t, svc, inv.ID, 400)

	first, err := svc.PostPayment(context.Background(), p.ID, 7)
	require.NoError(t, err)
	firstJournal := *first.JournalID

	_, err = svc.UnpostPayment(context.Background(), p.ID, 7, "wrong amount")
	require.NoError(t, err)

	second, err := svc.PostPayment(context.Background(), p.ID, 7)
	require.NoError(t, err)
	require.Equal(t, PaymentPosted, second.Status)
	require.Equal(t, SyncSynced, second.SyncStatus)
	require.NotEqual(t, firstJournal, *second.JournalID)
}

func TestUnpostPaymentRequiresPosted(t *testing.T) {
	svc, _, _ := newTestService(t)

	inv := confirmedInvoice(t, svc)
	p := draftPayment(t, svc, inv.ID, 400)

	_, err := svc.UnpostPayment(context.Background(), p.ID, 7, "")
	require.ErrorIs(t, err, ErrNotPosted)
}

func TestEditPostedPaymentRequiresCapability(t *testing.T) {
	repo := newFakeRepo()
	hooks := newFakeHooks()
	svc := NewService(repo, hooks, nil, internalShared.StaticCapabilities{}, nil)
	svc.WithNow(func() time.Time { return time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC) })

	_, err := svc.EditPostedPayment(context.Background(), EditPaymentInput{PaymentID: 1, ActorID: 7})
	require.ErrorIs(t, err, ErrEditForbidden)
}

func TestEditPostedPaymentReversesAndReposts(t *testing.T) {
	svc, repo, hooks := newTestService(t)

	inv := confirmedInvoice(t, svc)
	p := draftPayment(t, svc, inv.ID, 400)
	posted, err := svc.PostPayment(context.Background(), p.ID, 7)
	require.NoError(t, err)
	oldJournal := *posted.JournalID

	newAmount := 350.0
	edited, err := svc.EditPostedPayment(context.Background(), EditPaymentInput{
		PaymentID: p.ID, ActorID: 7, Amount: &newAmount,
	})
	require.NoError(t, err)
	require.Equal(t, PaymentPosted, edited.Status)
	require.Equal(t, 350.0, edited.Amount)
	require.NotEqual(t, oldJournal, *edited.JournalID)
	require.Equal(t, []int64{oldJournal}, hooks.reversals)
	require.Len(t, hooks.posted, 2)
	require.Equal(t, 350.0, hooks.posted[1].Amount)

	stored, _ := repo.GetPayment(context.Background(), p.ID)
	require.Equal(t, 350.0, stored.Amount)
}

func TestEditPostedPaymentRejectsUnknownMethod(t *testing.T) {
	svc, _, _ := newTestService(t)

	inv := confirmedInvoice(t, svc)
	p := draftPayment(t, svc, inv.ID, 400)
	_, err := svc.PostPayment(context.Background(), p.ID, 7)
	require.NoError(t, err)

	bad := PaymentMethod("CARD")
	_, err = svc.EditPostedPayment(context.Background(), EditPaymentInput{
		PaymentID: p.ID, ActorID: 7, Method: &bad,
	})
	require.ErrorIs(t, err, ErrInvalidMethod)
}

func TestDeletePaymentDraftOnly(t *testing.T) {
	svc, _, _ := newTestService(t)

	inv := confirmedInvoice(t, svc)
	p := draftPayment(t, svc, inv.ID, 400)
	_, err := svc.PostPayment(context.Background(), p.ID, 7)
	require.NoError(t, err)

	err = svc.DeletePayment(context.Background(), p.ID, 7)
	require.ErrorIs(t, err, ErrNotDraft)
}

func TestAgedInvoicesAppliesPaymentsAndReturns(t *testing.T) {
	svc, _, _ := newTestService(t)

	inv := confirmedInvoice(t, svc)
	p := draftPayment(t, svc, inv.ID, 400)
	_, err := svc.PostPayment(context.Background(), p.ID, 7)
	require.NoError(t, err)

	aged, err := svc.AgedInvoices(context.Background(), time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, aged, 1)
	require.Equal(t, 600.0, aged[0].Remaining())
}
