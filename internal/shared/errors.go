package shared

import (
	"errors"
	"net/http"

	acctshared "github.com/ledgerline/ledgerline/internal/accounting/shared"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
)

// StatusFor maps ledger errors to HTTP status codes. Unknown errors map
// to 500 and their details stay out of responses.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, acctshared.ErrJournalNotFound),
		errors.Is(err, acctshared.ErrAccountNotFound),
		errors.Is(err, acctshared.ErrMappingNotFound):
		return http.StatusNotFound
	case errors.Is(err, acctshared.ErrSourceAlreadyLinked),
		errors.Is(err, acctshared.ErrSourceConflict),
		errors.Is(err, acctshared.ErrDuplicateCode),
		errors.Is(err, acctshared.ErrAlreadyPosted),
		errors.Is(err, acctshared.ErrAlreadyReversed),
		errors.Is(err, acctshared.ErrAccountInUse):
		return http.StatusConflict
	case errors.Is(err, acctshared.ErrUnbalanced),
		errors.Is(err, acctshared.ErrTooFewLines),
		errors.Is(err, acctshared.ErrClosedPeriod),
		errors.Is(err, acctshared.ErrNonLeafAccount),
		errors.Is(err, acctshared.ErrInactiveAccount),
		errors.Is(err, acctshared.ErrNotPosted),
		errors.Is(err, acctshared.ErrPostedImmutable),
		errors.Is(err, acctshared.ErrInvalidStatus),
		errors.Is(err, acctshared.ErrInvalidCode),
		errors.Is(err, acctshared.ErrSystemProtected),
		errors.Is(err, acctshared.ErrMethodAccountMismatch):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// UserSafeMessage returns a message safe to show end users. Internal
// errors are replaced with a generic message.
func UserSafeMessage(err error) string {
	if err == nil {
		return ""
	}
	if StatusFor(err) < http.StatusInternalServerError {
		return err.Error()
	}
	return "Something went wrong. Please try again."
}
