package accounts

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// AccountType enumerates chart of accounts categories.
type AccountType string

const (
	TypeAsset     AccountType = "asset"
	TypeLiability AccountType = "liability"
	TypeEquity    AccountType = "equity"
	TypeRevenue   AccountType = "revenue"
	TypeExpense   AccountType = "expense"
)

// NormalBalance is the side on which an account's balance is conventionally
// positive.
type NormalBalance string

const (
	NormalDebit  NormalBalance = "debit"
	NormalCredit NormalBalance = "credit"
)

// Account models a chart of accounts node. Balances are denominated in the
// account's normal-balance direction and mutated only by the posting engine.
type Account struct {
	ID             int64
	Code           string
	Name           string
	Description    string
	Type           AccountType
	NormalBalance  NormalBalance
	CurrentBalance decimal.Decimal
	IsActive       bool
	IsSystem       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NormalBalanceFor returns the normal balance mandated for an account type:
// assets and expenses carry debit balances, everything else credit.
func NormalBalanceFor(t AccountType) (NormalBalance, error) {
	switch t {
	case TypeAsset, TypeExpense:
		return NormalDebit, nil
	case TypeLiability, TypeEquity, TypeRevenue:
		return NormalCredit, nil
	}
	return "", fmt.Errorf("accounts: unknown account type %q", t)
}

// ValidateNormalBalance checks that the pairing matches policy.
func ValidateNormalBalance(t AccountType, nb NormalBalance) error {
	want, err := NormalBalanceFor(t)
	if err != nil {
		return err
	}
	if nb != want {
		return fmt.Errorf("accounts: invalid normal balance for %s account: expected %s, got %s", t, want, nb)
	}
	return nil
}

// codeRanges maps each account type to its permitted 4-digit code range.
var codeRanges = map[AccountType][2]int{
	TypeAsset:     {1000, 1999},
	TypeLiability: {2000, 2999},
	TypeEquity:    {3000, 3999},
	TypeRevenue:   {4000, 4999},
	TypeExpense:   {5000, 5999},
}

// ValidateCode checks the 4-digit account code format and that the code
// falls in the range reserved for the account type.
func ValidateCode(code string, t AccountType) error {
	if len(code) != 4 {
		return fmt.Errorf("accounts: code must be exactly 4 digits, got %q", code)
	}
	n := 0
	for _, r := range code {
		if r < '0' || r > '9' {
			return fmt.Errorf("accounts: code must be numeric, got %q", code)
		}
		n = n*10 + int(r-'0')
	}
	r, ok := codeRanges[t]
	if !ok {
		return fmt.Errorf("accounts: unknown account type %q", t)
	}
	if n < r[0] || n > r[1] {
		return fmt.Errorf("accounts: code %s is invalid for %s, must be between %d-%d", code, t, r[0], r[1])
	}
	return nil
}

// SignedDelta converts a debit/credit pair into the balance delta for this
// account: debit−credit for debit-normal accounts, credit−debit otherwise.
func (a Account) SignedDelta(debit, credit decimal.Decimal) decimal.Decimal {
	if a.NormalBalance == NormalDebit {
		return debit.Sub(credit)
	}
	return credit.Sub(debit)
}
