package recon

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreateCollectionInput captures a new draft collection recorded against a
// delivered order.
type CreateCollectionInput struct {
	OrderID        int64     `validate:"required,gt=0"`
	AgentID        int64     `validate:"required,gt=0"`
	Amount         decimal.Decimal
	CollectionDate time.Time `validate:"required"`
}

// CreateDepositInput captures a deposit reported by an agent. Amount is
// checked separately because the validator cannot see inside a decimal.
type CreateDepositInput struct {
	AgentID         int64  `validate:"required,gt=0"`
	Amount          decimal.Decimal
	Method          string `validate:"required,oneof=cash bank_transfer mobile_money"`
	ReferenceNumber string `validate:"omitempty,max=64"`
	Notes           string `validate:"omitempty,max=500"`
}

// Allocation records how much of a deposit was applied to one collection.
type Allocation struct {
	CollectionID   int64
	Applied        decimal.Decimal
	NewAllocated   decimal.Decimal
	FullyAllocated bool
}

// VerifyDepositResult is returned by VerifyDeposit so callers can show the
// operator exactly where the money went.
type VerifyDepositResult struct {
	Deposit     *Deposit
	Allocations []Allocation
	Remainder   decimal.Decimal
}

// BulkResult summarizes an all-or-nothing batch operation.
type BulkResult struct {
	BatchID   string
	Processed int
}
