package accounts

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/relaybooks/relaybooks/internal/platform/db"
	"github.com/relaybooks/relaybooks/internal/shared"
)

// Store exposes account reads used by the registry and seeding.
type Store interface {
	GetByCode(ctx context.Context, q db.DB, code string) (Account, error)
	InsertIfAbsent(ctx context.Context, q db.DB, seed SeedAccount) error
}

type store struct{}

// NewStore returns the SQL-backed account store.
func NewStore() Store {
	return store{}
}

const accountColumns = `id, code, name, COALESCE(description, ''), account_type, normal_balance, current_balance::text, is_active, is_system, created_at, updated_at`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	var balance string
	err := row.Scan(&a.ID, &a.Code, &a.Name, &a.Description, &a.Type, &a.NormalBalance, &balance, &a.IsActive, &a.IsSystem, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return Account{}, err
	}
	a.CurrentBalance, err = decimal.NewFromString(balance)
	if err != nil {
		return Account{}, fmt.Errorf("accounts: parse balance %q: %w", balance, err)
	}
	return a, nil
}

func (store) GetByCode(ctx context.Context, q db.DB, code string) (Account, error) {
	row := q.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE code=$1`, code)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, shared.ErrNotFound
		}
		return Account{}, err
	}
	return a, nil
}

func (store) InsertIfAbsent(ctx context.Context, q db.DB, seed SeedAccount) error {
	nb, err := NormalBalanceFor(seed.Type)
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, `INSERT INTO accounts (code, name, account_type, normal_balance, current_balance, is_active, is_system)
VALUES ($1, $2, $3, $4, 0, TRUE, TRUE)
ON CONFLICT (code) DO NOTHING`, seed.Code, seed.Name, seed.Type, nb)
	return err
}

// Seed inserts any missing chart accounts. It never touches existing rows,
// so re-running it is safe.
func Seed(ctx context.Context, q db.DB, s Store) error {
	for _, seed := range SeedChart() {
		if err := ValidateCode(seed.Code, seed.Type); err != nil {
			return err
		}
		if err := s.InsertIfAbsent(ctx, q, seed); err != nil {
			return fmt.Errorf("accounts: seed %s: %w", seed.Code, err)
		}
	}
	return nil
}
