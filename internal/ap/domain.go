package ap

import "time"

// InvoiceStatus enumerates purchase invoice statuses.
type InvoiceStatus string

const (
	InvoiceDraft     InvoiceStatus = "DRAFT"
	InvoiceConfirmed InvoiceStatus = "CONFIRMED"
	InvoiceCancelled InvoiceStatus = "CANCELLED"
)

// PaymentStatus enumerates purchase payment statuses.
type PaymentStatus string

const (
	PaymentDraft  PaymentStatus = "DRAFT"
	PaymentPosted PaymentStatus = "POSTED"
)

// SyncStatus tracks whether a document reached the ledger.
type SyncStatus string

const (
	SyncPending SyncStatus = "PENDING"
	SyncSynced  SyncStatus = "SYNCED"
	SyncFailed  SyncStatus = "FAILED"
)

// PaymentMethod enumerates how a payment settles.
type PaymentMethod string

const (
	MethodCash         PaymentMethod = "CASH"
	MethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	MethodCheck        PaymentMethod = "CHECK"
)

// Valid reports whether the method is one of the supported settlement
// kinds. Bank transfers and checks settle through bank accounts, cash
// through cash accounts.
func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCash, MethodBankTransfer, MethodCheck:
		return true
	}
	return false
}

// Invoice is a purchase invoice. Only confirmed invoices reach the
// ledger and the aging report.
type Invoice struct {
	ID           int64
	Number       string
	SupplierID   int64
	SupplierName string
	Date         time.Time
	DueDate      time.Time
	Status       InvoiceStatus
	Total        float64
	JournalID    *int64
	CreatedBy    int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Lines        []InvoiceLine
}

// InvoiceLine is one purchased item priced at cost.
type InvoiceLine struct {
	ID          int64
	InvoiceID   int64
	Description string
	Qty         float64
	UnitCost    float64
	Amount      float64
}

// Payment is a purchase payment. Drafts have no ledger effect.
type Payment struct {
	ID            int64
	Number        string
	InvoiceID     int64
	InvoiceNumber string
	Amount        float64
	Date          time.Time
	Method        PaymentMethod
	AccountID     *int64
	Note          string
	Status        PaymentStatus
	SyncStatus    SyncStatus
	SyncMessage   string
	JournalID     *int64
	CreatedBy     int64
	PostedAt      *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// AgedInvoice is one confirmed invoice with payments applied, feeding
// the aged payables report.
type AgedInvoice struct {
	InvoiceID int64
	Number    string
	PartyID   int64
	PartyName string
	Date      time.Time
	Total     float64
	Paid      float64
}

// Remaining is the open amount of the invoice.
func (a AgedInvoice) Remaining() float64 {
	return a.Total - a.Paid
}
