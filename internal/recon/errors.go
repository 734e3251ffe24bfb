package recon

import (
	"errors"
	"fmt"
)

var (
	ErrCollectionNotFound    = errors.New("collection not found")
	ErrDepositNotFound       = errors.New("deposit not found")
	ErrAgentBalanceNotFound  = errors.New("agent balance not found")
	ErrDepositExceedsBalance = errors.New("deposit amount exceeds agent's outstanding balance")
	ErrNonPositiveAmount     = errors.New("amount must be greater than zero")
	ErrTooManyDeposits       = errors.New("too many deposits in one batch")
	ErrDuplicateReference    = errors.New("deposit reference number already used")
	ErrAgentAlreadyBlocked   = errors.New("agent is already blocked")
	ErrAgentNotBlocked       = errors.New("agent is not blocked")
)

// TransitionError reports a lifecycle call made out of order. It names the
// status the record was actually in so the caller can tell a replay from a
// genuinely wrong call.
type TransitionError struct {
	Entity string
	ID     int64
	From   string
	Action string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s %d cannot be %s from status %q", e.Entity, e.ID, e.Action, e.From)
}
