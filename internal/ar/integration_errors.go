package ar

import (
	"errors"
	"fmt"

	accounting "github.com/ledgerline/ledgerline/internal/accounting/shared"
)

// LedgerPostError indicates the document was recorded but journal posting failed.
type LedgerPostError struct {
	Err       error
	Retryable bool
	Message   string
}

func (e *LedgerPostError) Error() string {
	return e.Message
}

func (e *LedgerPostError) Unwrap() error {
	return e.Err
}

func wrapLedgerPostError(err error) *LedgerPostError {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, accounting.ErrClosedPeriod):
		return &LedgerPostError{
			Err:       err,
			Retryable: true,
			Message:   "No open period covers the document date; document saved but not posted to the ledger",
		}
	case errors.Is(err, accounting.ErrMappingNotFound):
		return &LedgerPostError{
			Err:       err,
			Retryable: true,
			Message:   "Account mapping missing; document saved but not posted to the ledger",
		}
	case errors.Is(err, accounting.ErrMethodAccountMismatch):
		return &LedgerPostError{
			Err:       err,
			Retryable: false,
			Message:   "Payment method does not match the settlement account",
		}
	default:
		return &LedgerPostError{
			Err:       err,
			Retryable: false,
			Message:   fmt.Sprintf("Failed to post to ledger; document saved but not posted (%s)", err.Error()),
		}
	}
}
