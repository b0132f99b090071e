package ap

import (
	"context"
	"time"
)

// LineEvent carries one purchase line into the ledger hooks.
type LineEvent struct {
	Description string
	Qty         float64
	UnitCost    float64
	Amount      float64
}

// InvoiceConfirmedEvent fires when a purchase invoice is confirmed.
type InvoiceConfirmedEvent struct {
	ID           int64
	Number       string
	SupplierName string
	Date         time.Time
	Total        float64
	Lines        []LineEvent
}

// PaymentPostedEvent fires when a purchase payment is posted.
type PaymentPostedEvent struct {
	ID            int64
	Number        string
	InvoiceNumber string
	Amount        float64
	Date          time.Time
	Method        PaymentMethod
	AccountID     *int64
}

// IntegrationHandler posts document events into the general ledger and
// returns the resulting journal entry id.
type IntegrationHandler interface {
	HandlePurchaseInvoiceConfirmed(ctx context.Context, evt InvoiceConfirmedEvent) (int64, error)
	HandlePurchasePaymentPosted(ctx context.Context, evt PaymentPostedEvent) (int64, error)
	ReverseDocumentEntry(ctx context.Context, journalID int64, reason string, actorID int64) (int64, error)
}
