package periods

import "time"

// Status enumerates valid period states.
type Status string

const (
	StatusOpen   Status = "OPEN"
	StatusClosed Status = "CLOSED"
)

// Period represents a fiscal period window. Postings are only accepted
// for dates covered by an open period.
type Period struct {
	ID        int64
	Code      string
	StartDate time.Time
	EndDate   time.Time
	Status    Status
	ClosedAt  *time.Time
	ClosedBy  *int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Covers reports whether the date falls inside the period window.
func (p Period) Covers(date time.Time) bool {
	return !date.Before(p.StartDate) && !date.After(p.EndDate)
}
