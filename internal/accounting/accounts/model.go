package accounts

import "time"

// Category enumerates CoA categories.
type Category string

const (
	CategoryAsset     Category = "ASSET"
	CategoryLiability Category = "LIABILITY"
	CategoryEquity    Category = "EQUITY"
	CategoryRevenue   Category = "REVENUE"
	CategoryExpense   Category = "EXPENSE"
)

// Nature is the normal balance side of an account.
type Nature string

const (
	NatureDebit  Nature = "DEBIT"
	NatureCredit Nature = "CREDIT"
)

// NatureOf returns the fixed nature for a category.
// Assets and expenses carry debit balances; the rest carry credit balances.
func NatureOf(cat Category) Nature {
	switch cat {
	case CategoryAsset, CategoryExpense:
		return NatureDebit
	default:
		return NatureCredit
	}
}

// AccountType is a node in the category hierarchy referenced by accounts.
type AccountType struct {
	ID        int64
	Code      string
	Name      string
	Category  Category
	ParentID  *int64
	Level     int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Nature returns the fixed nature for the type's category.
func (t AccountType) Nature() Nature {
	return NatureOf(t.Category)
}

// BankDetails holds optional bank metadata for bank accounts.
type BankDetails struct {
	BankName string
	IBAN     string
	SWIFT    string
}

// Limits holds optional balance guard rails for an account.
type Limits struct {
	CreditLimit       *float64
	MinimumBalance    *float64
	LowBalanceWarning *float64
}

// Account models a chart of accounts node.
type Account struct {
	ID             int64
	Code           string
	Name           string
	TypeID         int64
	Category       Category
	ParentID       *int64
	Level          int
	IsLeaf         bool
	IsCash         bool
	IsBank         bool
	IsReconcilable bool
	IsControl      bool
	IsSystem       bool
	IsActive       bool
	OpeningBalance float64
	OpeningDate    *time.Time
	Bank           *BankDetails
	Limits         Limits
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Nature returns the account's normal balance side.
func (a Account) Nature() Nature {
	return NatureOf(a.Category)
}

// CreateInput groups fields accepted when creating an account.
type CreateInput struct {
	Code           string
	Name           string
	TypeID         int64
	ParentID       *int64
	IsCash         bool
	IsBank         bool
	IsReconcilable bool
	IsControl      bool
	IsSystem       bool
	OpeningBalance float64
	OpeningDate    *time.Time
	Bank           *BankDetails
	Limits         Limits
}

// UpdateInput groups mutable account fields.
type UpdateInput struct {
	AccountID      int64
	Name           string
	IsReconcilable bool
	Bank           *BankDetails
	Limits         Limits
}
