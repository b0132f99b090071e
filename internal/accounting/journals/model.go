package journals

import (
	"time"

	"github.com/google/uuid"
)

// EntryStatus enumerates the journal entry lifecycle.
type EntryStatus string

const (
	StatusDraft    EntryStatus = "DRAFT"
	StatusPosted   EntryStatus = "POSTED"
	StatusReversed EntryStatus = "REVERSED"
)

// EntryType distinguishes manual entries from document-generated ones.
type EntryType string

const (
	TypeManual    EntryType = "MANUAL"
	TypeAutomatic EntryType = "AUTOMATIC"
)

// JournalEntry captures the header of a balanced set of lines.
type JournalEntry struct {
	ID           int64
	Number       string
	PeriodID     int64
	Date         time.Time
	Type         EntryType
	Status       EntryStatus
	Reference    string
	Memo         string
	SourceModule string
	SourceID     uuid.UUID
	CreatedBy    int64
	PostedAt     *time.Time
	ReverseOfID  *int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Lines        []JournalLine
}

// JournalLine stores a debit or credit amount for a leaf account.
type JournalLine struct {
	ID        int64
	JournalID int64
	AccountID int64
	Debit     float64
	Credit    float64
	Memo      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PostingAccount carries the account attributes checked during posting.
type PostingAccount struct {
	ID       int64
	Code     string
	IsLeaf   bool
	IsActive bool
	IsCash   bool
	IsBank   bool
}

// PostedEvent is emitted after an entry reaches POSTED status.
type PostedEvent struct {
	EntryID     int64
	EntryNumber string
	Date        time.Time
	Amount      float64
	Source      string
}
