package integration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerline/ledgerline/internal/accounting/accounts"
	"github.com/ledgerline/ledgerline/internal/accounting/journals"
	"github.com/ledgerline/ledgerline/internal/accounting/mappings"
	"github.com/ledgerline/ledgerline/internal/accounting/shared"
	"github.com/ledgerline/ledgerline/internal/ap"
	"github.com/ledgerline/ledgerline/internal/ar"
)

// Ledger exposes the journal operations document posting needs.
type Ledger interface {
	PostDirect(ctx context.Context, input journals.DraftInput) (journals.JournalEntry, error)
	GetBySource(ctx context.Context, module string, ref uuid.UUID) (journals.JournalEntry, error)
	Reverse(ctx context.Context, input journals.ReverseInput) (journals.JournalEntry, error)
}

// AccountResolver turns canonical roles into ledger accounts.
type AccountResolver interface {
	Resolve(ctx context.Context, role mappings.Role) (mappings.Resolved, error)
}

// AccountDirectory loads accounts for settlement compatibility checks.
type AccountDirectory interface {
	Get(ctx context.Context, id int64) (accounts.Account, error)
}

// DocumentPostedEvent is emitted after a document reaches the ledger.
type DocumentPostedEvent struct {
	EntryID      int64
	EntryNumber  string
	DocumentType string
	DocumentID   int64
	Amount       float64
	Date         time.Time
}

// Publisher fans document-posted events out to downstream listeners.
type Publisher interface {
	DocumentPosted(ctx context.Context, evt DocumentPostedEvent) error
}

// Hooks wires AR and AP document events into the general ledger. Each
// handler posts one balanced entry and returns its id; re-posting the
// same document resolves to the previously linked entry.
type Hooks struct {
	ledger    Ledger
	resolver  AccountResolver
	directory AccountDirectory
	publisher Publisher
	logger    *slog.Logger
}

// NewHooks constructs integration hooks. publisher may be nil.
func NewHooks(ledger Ledger, resolver AccountResolver, directory AccountDirectory, publisher Publisher, logger *slog.Logger) *Hooks {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hooks{
		ledger:    ledger,
		resolver:  resolver,
		directory: directory,
		publisher: publisher,
		logger:    logger,
	}
}

// HandleSaleInvoiceConfirmed books Dr AR / Cr revenue, with a COGS pair
// when every line carries a unit cost. Missing cost data downgrades to a
// warning and the entry posts without COGS lines.
func (h *Hooks) HandleSaleInvoiceConfirmed(ctx context.Context, evt ar.InvoiceConfirmedEvent) (int64, error) {
	if evt.Total <= 0 {
		return 0, fmt.Errorf("integration: sale invoice %s has no amount", evt.Number)
	}
	arAccount, err := h.resolver.Resolve(ctx, mappings.RoleAR)
	if err != nil {
		return 0, err
	}
	revenue, err := h.resolver.Resolve(ctx, mappings.RoleSalesRevenue)
	if err != nil {
		return 0, err
	}
	lines := []journals.LineInput{
		{AccountID: arAccount.AccountID, Debit: evt.Total, Memo: fmt.Sprintf("Sale %s", evt.Number)},
		{AccountID: revenue.AccountID, Credit: evt.Total, Memo: fmt.Sprintf("Sale %s", evt.Number)},
	}
	cost, known := saleCost(evt.Lines)
	switch {
	case !known:
		h.logger.Warn("sale invoice missing unit costs, posting without COGS",
			slog.String("invoice", evt.Number))
	case cost > 0:
		cogs, err := h.resolver.Resolve(ctx, mappings.RoleCOGS)
		if err != nil {
			return 0, err
		}
		inventory, err := h.resolver.Resolve(ctx, mappings.RoleInventory)
		if err != nil {
			return 0, err
		}
		lines = append(lines,
			journals.LineInput{AccountID: cogs.AccountID, Debit: cost, Memo: fmt.Sprintf("COGS %s", evt.Number)},
			journals.LineInput{AccountID: inventory.AccountID, Credit: cost, Memo: fmt.Sprintf("COGS %s", evt.Number)},
		)
	}
	input := journals.DraftInput{
		Date:      evt.Date,
		Type:      journals.TypeAutomatic,
		Prefix:    journals.PrefixSale,
		DocRef:    evt.Number,
		Reference: evt.Number,
		Memo:      fmt.Sprintf("Sale invoice %s (%s)", evt.Number, evt.CustomerName),
		Lines:     lines,
	}
	return h.post(ctx, "ar_invoice", evt.ID, input)
}

// HandleSaleReturnConfirmed reverses the sale for the returned lines
// only: Dr revenue / Cr AR, plus the COGS reversal when costs are known.
func (h *Hooks) HandleSaleReturnConfirmed(ctx context.Context, evt ar.ReturnConfirmedEvent) (int64, error) {
	if evt.Total <= 0 {
		return 0, fmt.Errorf("integration: sale return %s has no amount", evt.Number)
	}
	arAccount, err := h.resolver.Resolve(ctx, mappings.RoleAR)
	if err != nil {
		return 0, err
	}
	revenue, err := h.resolver.Resolve(ctx, mappings.RoleSalesRevenue)
	if err != nil {
		return 0, err
	}
	memo := fmt.Sprintf("Return %s against %s", evt.Number, evt.InvoiceNumber)
	lines := []journals.LineInput{
		{AccountID: revenue.AccountID, Debit: evt.Total, Memo: memo},
		{AccountID: arAccount.AccountID, Credit: evt.Total, Memo: memo},
	}
	cost, known := saleCost(evt.Lines)
	switch {
	case !known:
		h.logger.Warn("sale return missing unit costs, posting without COGS reversal",
			slog.String("return", evt.Number))
	case cost > 0:
		cogs, err := h.resolver.Resolve(ctx, mappings.RoleCOGS)
		if err != nil {
			return 0, err
		}
		inventory, err := h.resolver.Resolve(ctx, mappings.RoleInventory)
		if err != nil {
			return 0, err
		}
		lines = append(lines,
			journals.LineInput{AccountID: inventory.AccountID, Debit: cost, Memo: memo},
			journals.LineInput{AccountID: cogs.AccountID, Credit: cost, Memo: memo},
		)
	}
	input := journals.DraftInput{
		Date:      evt.Date,
		Type:      journals.TypeAutomatic,
		Prefix:    journals.PrefixReturn,
		DocRef:    evt.Number,
		Reference: evt.InvoiceNumber,
		Memo:      memo,
		Lines:     lines,
	}
	return h.post(ctx, "ar_return", evt.ID, input)
}

// HandleSalePaymentPosted books Dr cash|bank / Cr AR.
func (h *Hooks) HandleSalePaymentPosted(ctx context.Context, evt ar.PaymentPostedEvent) (int64, error) {
	if evt.Amount <= 0 {
		return 0, fmt.Errorf("integration: sale payment %s has no amount", evt.Number)
	}
	settlement, err := h.settlementAccount(ctx, string(evt.Method), evt.AccountID)
	if err != nil {
		return 0, err
	}
	arAccount, err := h.resolver.Resolve(ctx, mappings.RoleAR)
	if err != nil {
		return 0, err
	}
	memo := fmt.Sprintf("Payment %s for %s", evt.Number, evt.InvoiceNumber)
	input := journals.DraftInput{
		Date:      evt.Date,
		Type:      journals.TypeAutomatic,
		Prefix:    journals.PrefixPayment,
		DocRef:    evt.Number,
		Reference: evt.InvoiceNumber,
		Memo:      memo,
		Lines: []journals.LineInput{
			{AccountID: settlement, Debit: evt.Amount, Memo: memo},
			{AccountID: arAccount.AccountID, Credit: evt.Amount, Memo: memo},
		},
	}
	return h.post(ctx, "ar_payment", evt.ID, input)
}

// HandlePurchaseInvoiceConfirmed books Dr inventory / Cr AP.
func (h *Hooks) HandlePurchaseInvoiceConfirmed(ctx context.Context, evt ap.InvoiceConfirmedEvent) (int64, error) {
	if evt.Total <= 0 {
		return 0, fmt.Errorf("integration: purchase invoice %s has no amount", evt.Number)
	}
	inventory, err := h.resolver.Resolve(ctx, mappings.RoleInventory)
	if err != nil {
		return 0, err
	}
	apAccount, err := h.resolver.Resolve(ctx, mappings.RoleAP)
	if err != nil {
		return 0, err
	}
	memo := fmt.Sprintf("Purchase invoice %s (%s)", evt.Number, evt.SupplierName)
	input := journals.DraftInput{
		Date:      evt.Date,
		Type:      journals.TypeAutomatic,
		Prefix:    journals.PrefixPurchase,
		DocRef:    evt.Number,
		Reference: evt.Number,
		Memo:      memo,
		Lines: []journals.LineInput{
			{AccountID: inventory.AccountID, Debit: evt.Total, Memo: memo},
			{AccountID: apAccount.AccountID, Credit: evt.Total, Memo: memo},
		},
	}
	return h.post(ctx, "ap_invoice", evt.ID, input)
}

// HandlePurchasePaymentPosted books Dr AP / Cr cash|bank.
func (h *Hooks) HandlePurchasePaymentPosted(ctx context.Context, evt ap.PaymentPostedEvent) (int64, error) {
	if evt.Amount <= 0 {
		return 0, fmt.Errorf("integration: purchase payment %s has no amount", evt.Number)
	}
	settlement, err := h.settlementAccount(ctx, string(evt.Method), evt.AccountID)
	if err != nil {
		return 0, err
	}
	apAccount, err := h.resolver.Resolve(ctx, mappings.RoleAP)
	if err != nil {
		return 0, err
	}
	memo := fmt.Sprintf("Payment %s for %s", evt.Number, evt.InvoiceNumber)
	input := journals.DraftInput{
		Date:      evt.Date,
		Type:      journals.TypeAutomatic,
		Prefix:    journals.PrefixPayment,
		DocRef:    evt.Number,
		Reference: evt.InvoiceNumber,
		Memo:      memo,
		Lines: []journals.LineInput{
			{AccountID: apAccount.AccountID, Debit: evt.Amount, Memo: memo},
			{AccountID: settlement, Credit: evt.Amount, Memo: memo},
		},
	}
	return h.post(ctx, "ap_payment", evt.ID, input)
}

// ReverseDocumentEntry reverses a document's journal entry and returns
// the reversal's id.
func (h *Hooks) ReverseDocumentEntry(ctx context.Context, journalID int64, reason string, actorID int64) (int64, error) {
	reversal, err := h.ledger.Reverse(ctx, journals.ReverseInput{
		EntryID: journalID,
		ActorID: actorID,
		Reason:  reason,
	})
	if err != nil {
		return 0, err
	}
	return reversal.ID, nil
}

// post sends the entry to the ledger under a deterministic source id.
// A source conflict means an earlier attempt already committed, so the
// linked entry's id is returned instead of an error. Convergence never
// lands on a reversed entry: that link is stale and booking against it
// would leave the document with no ledger effect.
func (h *Hooks) post(ctx context.Context, docType string, docID int64, input journals.DraftInput) (int64, error) {
	input.SourceModule = docType
	input.SourceID = sourceID(docType, docID)
	entry, err := h.ledger.PostDirect(ctx, input)
	if err != nil {
		if errors.Is(err, shared.ErrSourceAlreadyLinked) {
			existing, lookupErr := h.ledger.GetBySource(ctx, docType, input.SourceID)
			if lookupErr != nil {
				return 0, err
			}
			if existing.Status == journals.StatusReversed {
				return 0, fmt.Errorf("integration: %s %d still linked to reversed entry %s: %w",
					docType, docID, existing.Number, shared.ErrSourceAlreadyLinked)
			}
			return existing.ID, nil
		}
		return 0, err
	}
	h.publish(ctx, docType, docID, entry)
	return entry.ID, nil
}

// settlementAccount picks the cash or bank account for a payment. An
// explicit account must match the method; otherwise the canonical cash
// or bank account is used.
func (h *Hooks) settlementAccount(ctx context.Context, method string, accountID *int64) (int64, error) {
	if accountID != nil {
		account, err := h.directory.Get(ctx, *accountID)
		if err != nil {
			return 0, err
		}
		if method == "CASH" {
			if !account.IsCash {
				return 0, fmt.Errorf("%w: %s needs a cash account", shared.ErrMethodAccountMismatch, method)
			}
		} else if !account.IsBank {
			return 0, fmt.Errorf("%w: %s needs a bank account", shared.ErrMethodAccountMismatch, method)
		}
		return account.ID, nil
	}
	role := mappings.RoleBank
	if method == "CASH" {
		role = mappings.RoleCash
	}
	resolved, err := h.resolver.Resolve(ctx, role)
	if err != nil {
		return 0, err
	}
	return resolved.AccountID, nil
}

func (h *Hooks) publish(ctx context.Context, docType string, docID int64, entry journals.JournalEntry) {
	if h.publisher == nil {
		return
	}
	var amount float64
	for _, line := range entry.Lines {
		amount += line.Debit
	}
	_ = h.publisher.DocumentPosted(ctx, DocumentPostedEvent{
		EntryID:      entry.ID,
		EntryNumber:  entry.Number,
		DocumentType: docType,
		DocumentID:   docID,
		Amount:       shared.Round2(amount),
		Date:         entry.Date,
	})
}

// saleCost sums line costs, reporting false when any unit cost is unknown.
func saleCost(lines []ar.LineEvent) (float64, bool) {
	var total float64
	for _, line := range lines {
		if line.UnitCost == nil {
			return 0, false
		}
		total += shared.Round2(line.Qty * *line.UnitCost)
	}
	return shared.Round2(total), true
}

func sourceID(docType string, id int64) uuid.UUID {
	return uuid.NewSHA1(uuid.Nil, []byte(fmt.Sprintf("%s:%d", strings.ToUpper(docType), id)))
}
