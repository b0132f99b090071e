package ap

import "errors"

var (
	// ErrInvoiceNotFound indicates a missing purchase invoice.
	ErrInvoiceNotFound = errors.New("ap: invoice not found")
	// ErrPaymentNotFound indicates a missing payment.
	ErrPaymentNotFound = errors.New("ap: payment not found")
	// ErrNotDraft indicates the operation requires a draft document.
	ErrNotDraft = errors.New("ap: document is not a draft")
	// ErrNotConfirmed indicates the operation requires a confirmed invoice.
	ErrNotConfirmed = errors.New("ap: invoice is not confirmed")
	// ErrNotPosted indicates the operation requires a posted payment.
	ErrNotPosted = errors.New("ap: payment is not posted")
	// ErrEditForbidden indicates the caller may not edit posted payments.
	ErrEditForbidden = errors.New("ap: editing posted payments not permitted")
	// ErrInvalidAmount indicates a non-positive amount.
	ErrInvalidAmount = errors.New("ap: amount must be positive")
	// ErrInvalidMethod indicates an unsupported payment method.
	ErrInvalidMethod = errors.New("ap: unsupported payment method")
)
