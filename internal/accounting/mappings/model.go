package mappings

import "time"

// Role names a canonical ledger slot that document posting resolves
// through, decoupling documents from raw account codes.
type Role string

const (
	RoleSalesRevenue    Role = "sales_revenue"
	RoleCOGS            Role = "cogs"
	RoleInventory       Role = "inventory"
	RoleAR              Role = "ar"
	RoleAP              Role = "ap"
	RoleCash            Role = "cash"
	RoleBank            Role = "bank"
	RolePurchaseExpense Role = "purchase_expense"
)

// DefaultCodes seeds every role with its conventional account code.
// Deployments override individual roles through account_mappings rows.
func DefaultCodes() map[Role]string {
	return map[Role]string{
		RoleSalesRevenue:    "41010",
		RoleCOGS:            "51010",
		RoleInventory:       "11051",
		RoleAR:              "11030",
		RoleAP:              "21010",
		RoleCash:            "11011",
		RoleBank:            "11021",
		RolePurchaseExpense: "51010",
	}
}

// AccountMapping links a canonical role to a ledger account code.
type AccountMapping struct {
	Role        Role
	AccountCode string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Resolved is the outcome of resolving a role.
type Resolved struct {
	Role        Role
	AccountID   int64
	AccountCode string
}
