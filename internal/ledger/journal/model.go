package journal

import (
	"time"

	"github.com/shopspring/decimal"
)

// SourceType identifies the business event kind that produced an entry.
type SourceType string

const (
	SourceOrderDelivery    SourceType = "order_delivery"
	SourceFailedDelivery   SourceType = "failed_delivery"
	SourceOrderReturn      SourceType = "order_return"
	SourceAgentCollection  SourceType = "agent_collection"
	SourceAgentDeposit     SourceType = "agent_deposit"
	SourceCommissionPayout SourceType = "commission_payout"
	SourceManual           SourceType = "manual"
)

// Entry is an atomic, balanced group of ledger lines representing one
// financial event. Immutable once created except for the voided flag;
// corrections are posted as reversing entries.
type Entry struct {
	ID          int64
	EntryNumber string
	EntryDate   time.Time
	Description string
	SourceType  SourceType
	SourceID    int64
	CreatedBy   int64
	IsVoided    bool
	CreatedAt   time.Time
	Lines       []Line
}

// Line is one append-only ledger line. Exactly one of Debit/Credit is
// non-zero. RunningBalance snapshots the account balance immediately after
// this line posted.
type Line struct {
	ID             int64
	EntryID        int64
	AccountID      int64
	Debit          decimal.Decimal
	Credit         decimal.Decimal
	Description    string
	RunningBalance decimal.Decimal
}
