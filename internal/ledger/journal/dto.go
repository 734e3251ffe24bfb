package journal

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// LineInput describes one requested ledger line.
type LineInput struct {
	AccountID   int64
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Description string
}

// PostingInput groups the fields required to post a journal entry.
type PostingInput struct {
	Lines       []LineInput
	EntryDate   time.Time
	Description string
	SourceType  SourceType
	SourceID    int64
	CreatedBy   int64
}

// Validate enforces the balanced-entry invariant before anything is written:
// at least two lines, each line debit-or-credit (never both, never negative),
// and exact decimal equality of total debits and credits.
func (in PostingInput) Validate() error {
	if len(in.Lines) < 2 {
		return ErrTooFewLines
	}
	if in.SourceType == "" {
		return fmt.Errorf("journal: source type required")
	}
	if in.SourceID == 0 {
		return fmt.Errorf("journal: source id required")
	}
	debit := decimal.Zero
	credit := decimal.Zero
	for idx, line := range in.Lines {
		if line.AccountID == 0 {
			return fmt.Errorf("journal: line %d missing account", idx)
		}
		if line.Debit.IsNegative() || line.Credit.IsNegative() {
			return fmt.Errorf("journal: line %d negative amount", idx)
		}
		if line.Debit.IsPositive() && line.Credit.IsPositive() {
			return fmt.Errorf("journal: line %d cannot be both debit and credit", idx)
		}
		if line.Debit.IsZero() && line.Credit.IsZero() {
			return fmt.Errorf("journal: line %d has no amount", idx)
		}
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	if !debit.Equal(credit) {
		return fmt.Errorf("%w: debit %s, credit %s", ErrUnbalanced, debit, credit)
	}
	return nil
}
