package shared

import "context"

// CapEditPostedPayments allows unposting and editing posted payments.
const CapEditPostedPayments = "can_edit_posted_payments"

// CapabilityChecker answers whether an actor holds a capability.
type CapabilityChecker interface {
	Can(ctx context.Context, actorID int64, capability string) bool
}

// StaticCapabilities grants capabilities globally from configuration.
type StaticCapabilities map[string]bool

// Can reports whether the capability is enabled.
func (c StaticCapabilities) Can(_ context.Context, _ int64, capability string) bool {
	return c[capability]
}
