package integrity

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/relaybooks/relaybooks/internal/ledger/accounts"
	"github.com/relaybooks/relaybooks/internal/platform/db"
	"github.com/relaybooks/relaybooks/internal/shared"
)

type sqlStore struct{}

// NewStore returns the SQL-backed integrity store.
func NewStore() Store {
	return sqlStore{}
}

func (sqlStore) ListActiveAccounts(ctx context.Context, q db.DB) ([]accounts.Account, error) {
	rows, err := q.Query(ctx, `SELECT id, code, name, account_type, normal_balance, current_balance::text
FROM accounts WHERE is_active ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []accounts.Account
	for rows.Next() {
		var a accounts.Account
		var balance string
		if err := rows.Scan(&a.ID, &a.Code, &a.Name, &a.Type, &a.NormalBalance, &balance); err != nil {
			return nil, err
		}
		if a.CurrentBalance, err = decimal.NewFromString(balance); err != nil {
			return nil, fmt.Errorf("integrity: parse balance %q: %w", balance, err)
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

func (sqlStore) GetAccount(ctx context.Context, q db.DB, accountID int64) (accounts.Account, error) {
	var a accounts.Account
	var balance string
	err := q.QueryRow(ctx, `SELECT id, code, name, account_type, normal_balance, current_balance::text
FROM accounts WHERE id=$1`, accountID).
		Scan(&a.ID, &a.Code, &a.Name, &a.Type, &a.NormalBalance, &balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return accounts.Account{}, shared.ErrNotFound
		}
		return accounts.Account{}, err
	}
	if a.CurrentBalance, err = decimal.NewFromString(balance); err != nil {
		return accounts.Account{}, fmt.Errorf("integrity: parse balance %q: %w", balance, err)
	}
	return a, nil
}

func (sqlStore) SumLines(ctx context.Context, q db.DB, accountID int64) (decimal.Decimal, decimal.Decimal, error) {
	// Voided entries stay in the sum. Voiding only flags the entry; the
	// stored balance keeps its effect until a reversing entry is posted, so
	// excluding those lines would report drift on a healthy ledger.
	var debits, credits string
	err := q.QueryRow(ctx, `SELECT COALESCE(SUM(debit_amount), 0)::text, COALESCE(SUM(credit_amount), 0)::text
FROM account_transactions
WHERE account_id=$1`, accountID).Scan(&debits, &credits)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	d, err := decimal.NewFromString(debits)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	c, err := decimal.NewFromString(credits)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return d, c, nil
}
