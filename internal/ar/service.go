package ar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ledgerline/ledgerline/internal/accounting/shared"
	internalShared "github.com/ledgerline/ledgerline/internal/shared"
)

// AuditPort records document lifecycle events.
type AuditPort interface {
	Record(ctx context.Context, log internalShared.AuditLog) error
}

// CreateInvoiceInput groups fields for a new sale invoice.
type CreateInvoiceInput struct {
	CustomerID   int64
	CustomerName string
	Date         time.Time
	DueDate      time.Time
	CreatedBy    int64
	Lines        []CreateInvoiceLine
}

// CreateInvoiceLine is one item on a new invoice.
type CreateInvoiceLine struct {
	Description string
	Qty         float64
	UnitPrice   float64
	UnitCost    *float64
}

// CreateReturnInput groups fields for a new sale return.
type CreateReturnInput struct {
	InvoiceID int64
	Date      time.Time
	CreatedBy int64
	Lines     []CreateInvoiceLine
}

// CreatePaymentInput groups fields for a new payment draft.
type CreatePaymentInput struct {
	InvoiceID int64
	Amount    float64
	Date      time.Time
	Method    PaymentMethod
	AccountID *int64
	Note      string
	CreatedBy int64
}

// EditPaymentInput carries field changes for a guarded posted-payment
// edit. Nil pointers leave the field untouched.
type EditPaymentInput struct {
	PaymentID int64
	ActorID   int64
	Amount    *float64
	Date      *time.Time
	Method    *PaymentMethod
	AccountID *int64
	Note      *string
}

// Service coordinates AR documents and their ledger effects.
type Service struct {
	repo         Repository
	hooks        IntegrationHandler
	audit        AuditPort
	capabilities internalShared.CapabilityChecker
	logger       *slog.Logger
	numbers      *internalShared.DocNumberGenerator
	now          func() time.Time
}

// NewService constructs the AR service.
func NewService(repo Repository, hooks IntegrationHandler, audit AuditPort, capabilities internalShared.CapabilityChecker, logger *slog.Logger) *Service {
	return &Service{
		repo:         repo,
		hooks:        hooks,
		audit:        audit,
		capabilities: capabilities,
		logger:       logger,
		numbers:      internalShared.NewDocNumberGenerator(),
		now:          time.Now,
	}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
		s.numbers.WithNow(now)
	}
}

// GetInvoice loads one invoice with lines.
func (s *Service) GetInvoice(ctx context.Context, id int64) (Invoice, error) {
	return s.repo.GetInvoice(ctx, id)
}

// ListInvoices returns invoices, optionally filtered by status.
func (s *Service) ListInvoices(ctx context.Context, status InvoiceStatus, limit int) ([]Invoice, error) {
	return s.repo.ListInvoices(ctx, status, limit)
}

// GetPayment loads one payment.
func (s *Service) GetPayment(ctx context.Context, id int64) (Payment, error) {
	return s.repo.GetPayment(ctx, id)
}

// ListPayments returns recent payments.
func (s *Service) ListPayments(ctx context.Context, limit int) ([]Payment, error) {
	return s.repo.ListPayments(ctx, limit)
}

// AgedInvoices returns the aging source rows as of a date.
func (s *Service) AgedInvoices(ctx context.Context, asOf time.Time) ([]AgedInvoice, error) {
	return s.repo.AgedInvoices(ctx, asOf)
}

// CreateInvoice stores a new draft invoice. Drafts have no ledger effect.
func (s *Service) CreateInvoice(ctx context.Context, input CreateInvoiceInput) (Invoice, error) {
	if input.CustomerID == 0 || input.CustomerName == "" {
		return Invoice{}, fmt.Errorf("ar: customer required")
	}
	if input.Date.IsZero() {
		return Invoice{}, fmt.Errorf("ar: invoice date required")
	}
	if len(input.Lines) == 0 {
		return Invoice{}, fmt.Errorf("ar: invoice requires at least one line")
	}
	lines := make([]InvoiceLine, 0, len(input.Lines))
	total := 0.0
	for _, in := range input.Lines {
		if in.Qty <= 0 || in.UnitPrice < 0 {
			return Invoice{}, ErrInvalidAmount
		}
		amount := shared.Round2(in.Qty * in.UnitPrice)
		total += amount
		lines = append(lines, InvoiceLine{
			Description: in.Description,
			Qty:         in.Qty,
			UnitPrice:   in.UnitPrice,
			UnitCost:    in.UnitCost,
			Amount:      amount,
		})
	}
	dueDate := input.DueDate
	if dueDate.IsZero() {
		dueDate = input.Date.AddDate(0, 0, 30)
	}
	var invoice Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inserted, err := tx.InsertInvoice(ctx, Invoice{
			Number:       s.numbers.Next("INV"),
			CustomerID:   input.CustomerID,
			CustomerName: input.CustomerName,
			Date:         input.Date,
			DueDate:      dueDate,
			Status:       InvoiceDraft,
			Total:        shared.Round2(total),
			CreatedBy:    input.CreatedBy,
		})
		if err != nil {
			return err
		}
		inserted.Lines, err = tx.InsertInvoiceLines(ctx, inserted.ID, lines)
		if err != nil {
			return err
		}
		invoice = inserted
		return nil
	})
	if err != nil {
		return Invoice{}, err
	}
	s.record(ctx, input.CreatedBy, "ar.invoice.create", "ar_invoice", invoice.ID, map[string]any{"number": invoice.Number})
	return invoice, nil
}

// ConfirmInvoice transitions a draft invoice to CONFIRMED and books the
// sale in the ledger. Failure to post keeps the invoice draft.
func (s *Service) ConfirmInvoice(ctx context.Context, invoiceID, actorID int64) (Invoice, error) {
	var invoice Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inv, err := tx.GetInvoiceForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		if inv.Status == InvoiceConfirmed {
			invoice = inv
			return nil
		}
		if inv.Status != InvoiceDraft {
			return ErrNotDraft
		}
		journalID, err := s.hooks.HandleSaleInvoiceConfirmed(ctx, invoiceConfirmedEvent(inv))
		if err != nil {
			return err
		}
		if err := tx.UpdateInvoiceStatus(ctx, inv.ID, InvoiceConfirmed, &journalID); err != nil {
			return err
		}
		inv.Status = InvoiceConfirmed
		inv.JournalID = &journalID
		invoice = inv
		return nil
	})
	if err != nil {
		return Invoice{}, err
	}
	s.record(ctx, actorID, "ar.invoice.confirm", "ar_invoice", invoice.ID, map[string]any{"number": invoice.Number})
	return invoice, nil
}

// CancelInvoice cancels a draft invoice. Confirmed invoices are adjusted
// through returns, never cancelled.
func (s *Service) CancelInvoice(ctx context.Context, invoiceID, actorID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inv, err := tx.GetInvoiceForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		if inv.Status != InvoiceDraft {
			return ErrNotDraft
		}
		return tx.UpdateInvoiceStatus(ctx, inv.ID, InvoiceCancelled, nil)
	})
	if err != nil {
		return err
	}
	s.record(ctx, actorID, "ar.invoice.cancel", "ar_invoice", invoiceID, nil)
	return nil
}

// CreateReturn stores a draft sale return against a confirmed invoice.
func (s *Service) CreateReturn(ctx context.Context, input CreateReturnInput) (Return, error) {
	if input.Date.IsZero() {
		return Return{}, fmt.Errorf("ar: return date required")
	}
	if len(input.Lines) == 0 {
		return Return{}, fmt.Errorf("ar: return requires at least one line")
	}
	lines := make([]ReturnLine, 0, len(input.Lines))
	total := 0.0
	for _, in := range input.Lines {
		if in.Qty <= 0 || in.UnitPrice < 0 {
			return Return{}, ErrInvalidAmount
		}
		amount := shared.Round2(in.Qty * in.UnitPrice)
		total += amount
		lines = append(lines, ReturnLine{
			Description: in.Description,
			Qty:         in.Qty,
			UnitPrice:   in.UnitPrice,
			UnitCost:    in.UnitCost,
			Amount:      amount,
		})
	}
	var ret Return
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inv, err := tx.GetInvoiceForUpdate(ctx, input.InvoiceID)
		if err != nil {
			return err
		}
		if inv.Status != InvoiceConfirmed {
			return ErrNotConfirmed
		}
		returned, err := tx.SumConfirmedReturns(ctx, inv.ID)
		if err != nil {
			return err
		}
		if total+returned > inv.Total+shared.Epsilon {
			return ErrReturnExceedsInvoice
		}
		inserted, err := tx.InsertReturn(ctx, Return{
			Number:    s.numbers.Next("RET"),
			InvoiceID: inv.ID,
			Date:      input.Date,
			Status:    InvoiceDraft,
			Total:     shared.Round2(total),
			CreatedBy: input.CreatedBy,
		})
		if err != nil {
			return err
		}
		inserted.InvoiceNumber = inv.Number
		inserted.Lines, err = tx.InsertReturnLines(ctx, inserted.ID, lines)
		if err != nil {
			return err
		}
		ret = inserted
		return nil
	})
	if err != nil {
		return Return{}, err
	}
	s.record(ctx, input.CreatedBy, "ar.return.create", "ar_return", ret.ID, map[string]any{"number": ret.Number})
	return ret, nil
}

// ConfirmReturn posts the return's reversal entry and marks it CONFIRMED.
func (s *Service) ConfirmReturn(ctx context.Context, returnID, actorID int64) (Return, error) {
	var ret Return
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetReturnForUpdate(ctx, returnID)
		if err != nil {
			return err
		}
		if current.Status == InvoiceConfirmed {
			ret = current
			return nil
		}
		if current.Status != InvoiceDraft {
			return ErrNotDraft
		}
		journalID, err := s.hooks.HandleSaleReturnConfirmed(ctx, returnConfirmedEvent(current))
		if err != nil {
			return err
		}
		if err := tx.UpdateReturnStatus(ctx, current.ID, InvoiceConfirmed, &journalID); err != nil {
			return err
		}
		current.Status = InvoiceConfirmed
		current.JournalID = &journalID
		ret = current
		return nil
	})
	if err != nil {
		return Return{}, err
	}
	s.record(ctx, actorID, "ar.return.confirm", "ar_return", ret.ID, map[string]any{"number": ret.Number})
	return ret, nil
}

// CreatePayment stores a payment draft with no ledger effect.
func (s *Service) CreatePayment(ctx context.Context, input CreatePaymentInput) (Payment, error) {
	if input.Amount <= 0 {
		return Payment{}, ErrInvalidAmount
	}
	if input.Date.IsZero() {
		return Payment{}, fmt.Errorf("ar: payment date required")
	}
	if input.Method == "" {
		input.Method = MethodCash
	}
	if !input.Method.Valid() {
		return Payment{}, ErrInvalidMethod
	}
	var payment Payment
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inv, err := tx.GetInvoiceForUpdate(ctx, input.InvoiceID)
		if err != nil {
			return err
		}
		if inv.Status != InvoiceConfirmed {
			return ErrNotConfirmed
		}
		inserted, err := tx.InsertPayment(ctx, Payment{
			Number:     s.numbers.Next("PAY"),
			InvoiceID:  inv.ID,
			Amount:     shared.Round2(input.Amount),
			Date:       input.Date,
			Method:     input.Method,
			AccountID:  input.AccountID,
			Note:       input.Note,
			Status:     PaymentDraft,
			SyncStatus: SyncPending,
			CreatedBy:  input.CreatedBy,
		})
		if err != nil {
			return err
		}
		inserted.InvoiceNumber = inv.Number
		payment = inserted
		return nil
	})
	if err != nil {
		return Payment{}, err
	}
	s.record(ctx, input.CreatedBy, "ar.payment.create", "ar_payment", payment.ID, map[string]any{"number": payment.Number})
	return payment, nil
}

// PostPayment books the payment in the ledger and marks it POSTED with
// sync SYNCED. A ledger failure leaves the payment draft with sync
// FAILED and the failure message; posting again retries.
func (s *Service) PostPayment(ctx context.Context, paymentID, actorID int64) (Payment, error) {
	var payment Payment
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		p, err := tx.GetPaymentForUpdate(ctx, paymentID)
		if err != nil {
			return err
		}
		if p.Status == PaymentPosted {
			payment = p
			return nil
		}
		journalID, err := s.hooks.HandleSalePaymentPosted(ctx, paymentPostedEvent(p))
		if err != nil {
			return wrapLedgerPostError(err)
		}
		now := s.now()
		if err := tx.SetPaymentPosted(ctx, p.ID, journalID, now); err != nil {
			return err
		}
		p.Status = PaymentPosted
		p.SyncStatus = SyncSynced
		p.SyncMessage = ""
		p.JournalID = &journalID
		p.PostedAt = &now
		payment = p
		return nil
	})
	if err != nil {
		var lpe *LedgerPostError
		if errors.As(err, &lpe) {
			s.markSyncFailed(ctx, paymentID, lpe.Message)
			s.record(ctx, actorID, "ar.payment.post_failed", "ar_payment", paymentID, map[string]any{"error": lpe.Message})
		}
		return Payment{}, err
	}
	s.record(ctx, actorID, "ar.payment.post", "ar_payment", payment.ID, map[string]any{"number": payment.Number})
	return payment, nil
}

// UnpostPayment reverses the payment's ledger entry and returns the
// payment to draft with its journal link cleared.
func (s *Service) UnpostPayment(ctx context.Context, paymentID, actorID int64, reason string) (Payment, error) {
	var payment Payment
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		p, err := tx.GetPaymentForUpdate(ctx, paymentID)
		if err != nil {
			return err
		}
		if p.Status != PaymentPosted || p.JournalID == nil {
			return ErrNotPosted
		}
		if _, err := s.hooks.ReverseDocumentEntry(ctx, *p.JournalID, reason, actorID); err != nil {
			return err
		}
		if err := tx.SetPaymentUnposted(ctx, p.ID); err != nil {
			return err
		}
		p.Status = PaymentDraft
		p.SyncStatus = SyncPending
		p.JournalID = nil
		p.PostedAt = nil
		payment = p
		return nil
	})
	if err != nil {
		return Payment{}, err
	}
	s.record(ctx, actorID, "ar.payment.unpost", "ar_payment", payment.ID, map[string]any{"reason": reason})
	return payment, nil
}

// EditPostedPayment edits a posted payment under the
// can_edit_posted_payments capability: the entry is reversed, the fields
// applied, and the payment posted again. Every changed field lands in
// the audit trail.
func (s *Service) EditPostedPayment(ctx context.Context, input EditPaymentInput) (Payment, error) {
	if s.capabilities == nil || !s.capabilities.Can(ctx, input.ActorID, internalShared.CapEditPostedPayments) {
		return Payment{}, ErrEditForbidden
	}
	if input.Amount != nil && *input.Amount <= 0 {
		return Payment{}, ErrInvalidAmount
	}
	if input.Method != nil && !input.Method.Valid() {
		return Payment{}, ErrInvalidMethod
	}
	var payment Payment
	diff := map[string]any{}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		p, err := tx.GetPaymentForUpdate(ctx, input.PaymentID)
		if err != nil {
			return err
		}
		if p.Status != PaymentPosted || p.JournalID == nil {
			return ErrNotPosted
		}
		if _, err := s.hooks.ReverseDocumentEntry(ctx, *p.JournalID, "posted payment edit", input.ActorID); err != nil {
			return err
		}
		applyPaymentEdit(&p, input, diff)
		if err := tx.SetPaymentUnposted(ctx, p.ID); err != nil {
			return err
		}
		if err := tx.UpdatePaymentFields(ctx, p); err != nil {
			return err
		}
		journalID, err := s.hooks.HandleSalePaymentPosted(ctx, paymentPostedEvent(p))
		if err != nil {
			return wrapLedgerPostError(err)
		}
		now := s.now()
		if err := tx.SetPaymentPosted(ctx, p.ID, journalID, now); err != nil {
			return err
		}
		p.Status = PaymentPosted
		p.SyncStatus = SyncSynced
		p.JournalID = &journalID
		p.PostedAt = &now
		payment = p
		return nil
	})
	if err != nil {
		var lpe *LedgerPostError
		if errors.As(err, &lpe) {
			s.markSyncFailed(ctx, input.PaymentID, lpe.Message)
		}
		return Payment{}, err
	}
	s.record(ctx, input.ActorID, "ar.payment.edit_posted", "ar_payment", payment.ID, diff)
	return payment, nil
}

// DeletePayment removes a draft payment.
func (s *Service) DeletePayment(ctx context.Context, paymentID, actorID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		p, err := tx.GetPaymentForUpdate(ctx, paymentID)
		if err != nil {
			return err
		}
		if p.Status != PaymentDraft {
			return ErrNotDraft
		}
		return tx.DeletePayment(ctx, p.ID)
	})
	if err != nil {
		return err
	}
	s.record(ctx, actorID, "ar.payment.delete", "ar_payment", paymentID, nil)
	return nil
}

func applyPaymentEdit(p *Payment, input EditPaymentInput, diff map[string]any) {
	if input.Amount != nil && *input.Amount != p.Amount {
		diff["amount"] = map[string]any{"from": p.Amount, "to": *input.Amount}
		p.Amount = shared.Round2(*input.Amount)
	}
	if input.Date != nil && !input.Date.Equal(p.Date) {
		diff["date"] = map[string]any{"from": p.Date.Format("2006-01-02"), "to": input.Date.Format("2006-01-02")}
		p.Date = *input.Date
	}
	if input.Method != nil && *input.Method != p.Method {
		diff["method"] = map[string]any{"from": p.Method, "to": *input.Method}
		p.Method = *input.Method
	}
	if input.AccountID != nil {
		diff["account_id"] = map[string]any{"from": p.AccountID, "to": *input.AccountID}
		p.AccountID = input.AccountID
	}
	if input.Note != nil && *input.Note != p.Note {
		diff["note"] = map[string]any{"from": p.Note, "to": *input.Note}
		p.Note = *input.Note
	}
}

func (s *Service) markSyncFailed(ctx context.Context, paymentID int64, message string) {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.SetPaymentSync(ctx, paymentID, SyncFailed, message)
	})
	if err != nil && s.logger != nil {
		s.logger.Error("mark payment sync failed", slog.Any("error", err), slog.Int64("payment_id", paymentID))
	}
}

func (s *Service) record(ctx context.Context, actorID int64, action, entity string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, internalShared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   entity,
		EntityID: fmt.Sprintf("%d", id),
		Meta:     meta,
		At:       s.now(),
	})
}

func invoiceConfirmedEvent(inv Invoice) InvoiceConfirmedEvent {
	evt := InvoiceConfirmedEvent{
		ID:           inv.ID,
		Number:       inv.Number,
		CustomerName: inv.CustomerName,
		Date:         inv.Date,
		Total:        inv.Total,
	}
	for _, line := range inv.Lines {
		evt.Lines = append(evt.Lines, LineEvent{
			Description: line.Description,
			Qty:         line.Qty,
			UnitPrice:   line.UnitPrice,
			UnitCost:    line.UnitCost,
			Amount:      line.Amount,
		})
	}
	return evt
}

func returnConfirmedEvent(ret Return) ReturnConfirmedEvent {
	evt := ReturnConfirmedEvent{
		ID:            ret.ID,
		Number:        ret.Number,
		InvoiceNumber: ret.InvoiceNumber,
		Date:          ret.Date,
		Total:         ret.Total,
	}
	for _, line := range ret.Lines {
		evt.Lines = append(evt.Lines, LineEvent{
			Description: line.Description,
			Qty:         line.Qty,
			UnitPrice:   line.UnitPrice,
			UnitCost:    line.UnitCost,
			Amount:      line.Amount,
		})
	}
	return evt
}

func paymentPostedEvent(p Payment) PaymentPostedEvent {
	return PaymentPostedEvent{
		ID:            p.ID,
		Number:        p.Number,
		InvoiceNumber: p.InvoiceNumber,
		Amount:        p.Amount,
		Date:          p.Date,
		Method:        p.Method,
		AccountID:     p.AccountID,
	}
}
