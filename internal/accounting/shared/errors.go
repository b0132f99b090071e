package shared

import (
	"errors"
	"math"
)

var (
	// ErrUnbalanced indicates debit != credit at post time.
	ErrUnbalanced = errors.New("accounting: journal lines must balance")
	// ErrTooFewLines indicates less than two lines.
	ErrTooFewLines = errors.New("accounting: journal requires at least two lines")
	// ErrClosedPeriod indicates no open period covers the entry date.
	ErrClosedPeriod = errors.New("accounting: no open period covers date")
	// ErrNonLeafAccount indicates a line references a grouping account.
	ErrNonLeafAccount = errors.New("accounting: account is not a leaf")
	// ErrInactiveAccount indicates a line references a deactivated account.
	ErrInactiveAccount = errors.New("accounting: account is not active")
	// ErrSourceAlreadyLinked indicates idempotency conflict.
	ErrSourceAlreadyLinked = errors.New("accounting: source already linked")
	// ErrJournalNotFound indicates missing entry.
	ErrJournalNotFound = errors.New("accounting: journal entry not found")
	// ErrAlreadyPosted indicates the entry is already posted.
	ErrAlreadyPosted = errors.New("accounting: journal already posted")
	// ErrNotPosted indicates the operation requires a posted entry.
	ErrNotPosted = errors.New("accounting: journal not posted")
	// ErrAlreadyReversed indicates the entry was reversed before.
	ErrAlreadyReversed = errors.New("accounting: journal already reversed")
	// ErrPostedImmutable indicates posted entries cannot be modified or deleted.
	ErrPostedImmutable = errors.New("accounting: posted journal is immutable")
	// ErrInvalidStatus indicates action can't proceed from the current status.
	ErrInvalidStatus = errors.New("accounting: invalid status transition")
	// ErrMappingNotFound indicates a canonical account mapping is missing.
	ErrMappingNotFound = errors.New("accounting: canonical account not mapped")
	// ErrSourceConflict indicates the source link already exists.
	ErrSourceConflict = errors.New("accounting: source link conflict")
	// ErrDuplicateCode indicates an account code is taken.
	ErrDuplicateCode = errors.New("accounting: account code already exists")
	// ErrInvalidCode indicates an account code is not 4-8 digits.
	ErrInvalidCode = errors.New("accounting: account code must be 4-8 digits")
	// ErrAccountInUse indicates an account is referenced by journal lines.
	ErrAccountInUse = errors.New("accounting: account referenced by journal lines")
	// ErrSystemProtected indicates a system account cannot be deleted.
	ErrSystemProtected = errors.New("accounting: system account is protected")
	// ErrAccountNotFound indicates missing account.
	ErrAccountNotFound = errors.New("accounting: account not found")
	// ErrMethodAccountMismatch indicates the payment method does not fit the account.
	ErrMethodAccountMismatch = errors.New("accounting: payment method incompatible with account")
	// ErrNumberCollision indicates another process took the entry number.
	ErrNumberCollision = errors.New("accounting: entry number collision")
)

// Epsilon is the tolerance for monetary equality at scale 2.
const Epsilon = 0.01

// AmountsEqual reports whether two amounts match within Epsilon.
func AmountsEqual(a, b float64) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff < Epsilon
}

// Round2 normalises an amount to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
