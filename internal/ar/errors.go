package ar

import "errors"

var (
	// ErrInvoiceNotFound indicates a missing sale invoice.
	ErrInvoiceNotFound = errors.New("ar: invoice not found")
	// ErrReturnNotFound indicates a missing sale return.
	ErrReturnNotFound = errors.New("ar: return not found")
	// ErrPaymentNotFound indicates a missing payment.
	ErrPaymentNotFound = errors.New("ar: payment not found")
	// ErrNotDraft indicates the operation requires a draft document.
	ErrNotDraft = errors.New("ar: document is not a draft")
	// ErrNotConfirmed indicates the operation requires a confirmed invoice.
	ErrNotConfirmed = errors.New("ar: invoice is not confirmed")
	// ErrNotPosted indicates the operation requires a posted payment.
	ErrNotPosted = errors.New("ar: payment is not posted")
	// ErrEditForbidden indicates the caller may not edit posted payments.
	ErrEditForbidden = errors.New("ar: editing posted payments not permitted")
	// ErrReturnExceedsInvoice indicates returned amounts exceed the invoice.
	ErrReturnExceedsInvoice = errors.New("ar: return exceeds invoice amount")
	// ErrInvalidAmount indicates a non-positive amount.
	ErrInvalidAmount = errors.New("ar: amount must be positive")
	// ErrInvalidMethod indicates an unsupported payment method.
	ErrInvalidMethod = errors.New("ar: unsupported payment method")
)
