package journals

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerline/ledgerline/internal/accounting/shared"
)

// LineInput describes a journal line for a draft or posting request.
type LineInput struct {
	AccountID int64
	Debit     float64
	Credit    float64
	Memo      string
}

// DraftInput groups fields required to create a journal entry.
type DraftInput struct {
	Date      time.Time
	Type      EntryType
	Prefix    Prefix
	DocRef    string
	Reference string
	Memo      string
	CreatedBy int64

	// SourceModule/SourceID link document-generated entries for idempotency.
	// Manual entries leave both empty.
	SourceModule string
	SourceID     uuid.UUID

	Lines []LineInput
}

// Validate ensures the draft meets the structural posting invariants:
// at least two lines, exactly one non-zero side per line, and balance
// within 0.01.
func (in DraftInput) Validate() error {
	if in.Date.IsZero() {
		return errors.New("accounting: entry date required")
	}
	if len(in.Lines) < 2 {
		return shared.ErrTooFewLines
	}
	var debit, credit float64
	for idx, line := range in.Lines {
		if line.AccountID == 0 {
			return fmt.Errorf("accounting: line %d missing account", idx)
		}
		if line.Debit < 0 || line.Credit < 0 {
			return fmt.Errorf("accounting: line %d negative amount", idx)
		}
		if line.Debit > 0 && line.Credit > 0 {
			return fmt.Errorf("accounting: line %d cannot be both debit and credit", idx)
		}
		if line.Debit == 0 && line.Credit == 0 {
			return fmt.Errorf("accounting: line %d has no amount", idx)
		}
		debit += line.Debit
		credit += line.Credit
	}
	if !shared.AmountsEqual(debit, credit) {
		return shared.ErrUnbalanced
	}
	return nil
}

// TotalDebit sums the debit side of the draft.
func (in DraftInput) TotalDebit() float64 {
	var total float64
	for _, line := range in.Lines {
		total += line.Debit
	}
	return shared.Round2(total)
}

// ReverseInput wraps parameters for reversal.
type ReverseInput struct {
	EntryID int64
	ActorID int64
	Reason  string
	// Date defaults to the current day when zero.
	Date time.Time
}
