package recon

import (
	"time"

	"github.com/shopspring/decimal"
)

// CollectionStatus enumerates the agent collection lifecycle. Status only
// moves forward; deposited is reached via deposit allocation, never by a
// direct transition call.
type CollectionStatus string

const (
	CollectionDraft     CollectionStatus = "draft"
	CollectionVerified  CollectionStatus = "verified"
	CollectionApproved  CollectionStatus = "approved"
	CollectionDeposited CollectionStatus = "deposited"
)

// DepositStatus enumerates the agent deposit lifecycle.
type DepositStatus string

const (
	DepositPending  DepositStatus = "pending"
	DepositVerified DepositStatus = "verified"
	DepositRejected DepositStatus = "rejected"
)

// Collection is cash owed to the business by one delivery agent for one
// order.
type Collection struct {
	ID              int64
	OrderID         int64
	AgentID         int64
	Amount          decimal.Decimal
	AllocatedAmount decimal.Decimal
	Status          CollectionStatus
	CollectionDate  time.Time
	VerifiedAt      *time.Time
	VerifiedByID    *int64
	ApprovedAt      *time.Time
	ApprovedByID    *int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Outstanding is the portion not yet matched to deposits.
func (c Collection) Outstanding() decimal.Decimal {
	return c.Amount.Sub(c.AllocatedAmount)
}

// Deposit is a physical or bank deposit made by an agent.
type Deposit struct {
	ID              int64
	AgentID         int64
	Amount          decimal.Decimal
	Status          DepositStatus
	Method          string
	ReferenceNumber string
	Notes           string
	VerifiedAt      *time.Time
	VerifiedByID    *int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// AgentBalance is the per-agent running total, created lazily on first
// collection or deposit activity. CurrentBalance never goes negative.
type AgentBalance struct {
	AgentID        int64
	TotalCollected decimal.Decimal
	TotalDeposited decimal.Decimal
	CurrentBalance decimal.Decimal
	IsBlocked      bool
	BlockReason    string
	BlockedAt      *time.Time
	BlockedByID    *int64
	UpdatedAt      time.Time
}
