package integrity

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/relaybooks/relaybooks/internal/ledger/accounts"
	"github.com/relaybooks/relaybooks/internal/platform/db"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type sums struct {
	debits, credits decimal.Decimal
}

type memStore struct {
	accounts map[int64]accounts.Account
	lines    map[int64]sums
}

func (s *memStore) ListActiveAccounts(_ context.Context, _ db.DB) ([]accounts.Account, error) {
	var out []accounts.Account
	for _, a := range s.accounts {
		if a.IsActive {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *memStore) GetAccount(_ context.Context, _ db.DB, accountID int64) (accounts.Account, error) {
	a, ok := s.accounts[accountID]
	if !ok {
		return accounts.Account{}, accounts.ErrAccountNotSeeded
	}
	return a, nil
}

func (s *memStore) SumLines(_ context.Context, _ db.DB, accountID int64) (decimal.Decimal, decimal.Decimal, error) {
	l := s.lines[accountID]
	if l.debits.IsZero() && l.credits.IsZero() {
		return decimal.Zero, decimal.Zero, nil
	}
	return l.debits, l.credits, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestVerifyBalancedAccount(t *testing.T) {
	store := &memStore{
		accounts: map[int64]accounts.Account{
			1: {ID: 1, Code: "1010", Name: "Cash in Hand", NormalBalance: accounts.NormalDebit,
				CurrentBalance: dec("700.00"), IsActive: true},
		},
		lines: map[int64]sums{
			1: {debits: dec("1000.00"), credits: dec("300.00")},
		},
	}
	v := NewVerifier(store, nil, testLogger())

	res, err := v.Verify(context.Background(), nil, 1)
	require.NoError(t, err)
	require.True(t, res.Balanced)
	require.True(t, res.Calculated.Equal(dec("700.00")))
	require.True(t, res.Difference.IsZero())
}

func TestVerifyCreditNormalAccount(t *testing.T) {
	store := &memStore{
		accounts: map[int64]accounts.Account{
			2: {ID: 2, Code: "4010", Name: "Product Revenue", NormalBalance: accounts.NormalCredit,
				CurrentBalance: dec("900.00"), IsActive: true},
		},
		lines: map[int64]sums{
			2: {debits: dec("100.00"), credits: dec("1000.00")},
		},
	}
	v := NewVerifier(store, nil, testLogger())

	res, err := v.Verify(context.Background(), nil, 2)
	require.NoError(t, err)
	require.True(t, res.Balanced)
	require.True(t, res.Calculated.Equal(dec("900.00")))
}

func TestVerifyWithinTolerance(t *testing.T) {
	store := &memStore{
		accounts: map[int64]accounts.Account{
			1: {ID: 1, Code: "1010", NormalBalance: accounts.NormalDebit,
				CurrentBalance: dec("100.01"), IsActive: true},
		},
		lines: map[int64]sums{
			1: {debits: dec("100.00"), credits: decimal.Zero},
		},
	}
	v := NewVerifier(store, nil, testLogger())

	res, err := v.Verify(context.Background(), nil, 1)
	require.NoError(t, err)
	require.True(t, res.Balanced)
	require.True(t, res.Difference.Equal(dec("0.01")))
}

func TestVerifyAllReportsDrift(t *testing.T) {
	store := &memStore{
		accounts: map[int64]accounts.Account{
			1: {ID: 1, Code: "1010", Name: "Cash in Hand", NormalBalance: accounts.NormalDebit,
				CurrentBalance: dec("700.00"), IsActive: true},
			2: {ID: 2, Code: "4010", Name: "Product Revenue", NormalBalance: accounts.NormalCredit,
				CurrentBalance: dec("950.00"), IsActive: true},
			3: {ID: 3, Code: "1200", Name: "Inventory", NormalBalance: accounts.NormalDebit,
				CurrentBalance: dec("10.00"), IsActive: false},
		},
		lines: map[int64]sums{
			1: {debits: dec("1000.00"), credits: dec("300.00")},
			2: {debits: decimal.Zero, credits: dec("900.00")},
		},
	}
	v := NewVerifier(store, nil, testLogger())

	report, err := v.VerifyAll(context.Background())
	require.NoError(t, err)
	// Inactive accounts are skipped.
	require.Len(t, report.Results, 2)
	require.Len(t, report.OutOfBalance, 1)
	require.Equal(t, "4010", report.OutOfBalance[0].Code)
	require.True(t, report.OutOfBalance[0].Difference.Equal(dec("50.00")))
	require.True(t, report.MaxDrift.Equal(dec("50.00")))
}

func TestVerifyAllClean(t *testing.T) {
	store := &memStore{
		accounts: map[int64]accounts.Account{
			1: {ID: 1, Code: "1010", NormalBalance: accounts.NormalDebit,
				CurrentBalance: decimal.Zero, IsActive: true},
		},
		lines: map[int64]sums{},
	}
	v := NewVerifier(store, nil, testLogger())

	report, err := v.VerifyAll(context.Background())
	require.NoError(t, err)
	require.Empty(t, report.OutOfBalance)
	require.True(t, report.MaxDrift.IsZero())
}
