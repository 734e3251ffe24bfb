package journal

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/relaybooks/relaybooks/internal/ledger/accounts"
	"github.com/relaybooks/relaybooks/internal/platform/db"
)

// Store exposes the storage operations the posting engine performs inside
// the caller's transaction.
type Store interface {
	// LastEntryNumberForDay returns the highest entry number matching the
	// day prefix, locking the row against concurrent generators. Empty
	// string when the day has no entries yet.
	LastEntryNumberForDay(ctx context.Context, q db.DB, prefix string) (string, error)
	// InsertEntry persists the entry header, filling ID and CreatedAt.
	// Returns ErrDuplicateEntryNumber when a concurrent writer won the race.
	InsertEntry(ctx context.Context, q db.DB, e *Entry) error
	InsertLine(ctx context.Context, q db.DB, l *Line) error
	GetAccountForUpdate(ctx context.Context, q db.DB, accountID int64) (accounts.Account, error)
	SetAccountBalance(ctx context.Context, q db.DB, accountID int64, balance decimal.Decimal) error
	HasEntryForSource(ctx context.Context, q db.DB, sourceType SourceType, sourceID int64) (bool, error)
	GetEntryForSource(ctx context.Context, q db.DB, sourceType SourceType, sourceID int64) (*Entry, error)
	SetVoided(ctx context.Context, q db.DB, entryID int64, voided bool) error
}

type sqlStore struct{}

// NewStore returns the SQL-backed journal store.
func NewStore() Store {
	return sqlStore{}
}

func (sqlStore) LastEntryNumberForDay(ctx context.Context, q db.DB, prefix string) (string, error) {
	var number string
	err := q.QueryRow(ctx, `SELECT entry_number FROM journal_entries
WHERE entry_number LIKE $1
ORDER BY entry_number DESC
LIMIT 1
FOR UPDATE`, prefix+"%").Scan(&number)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return number, nil
}

func (sqlStore) InsertEntry(ctx context.Context, q db.DB, e *Entry) error {
	// The insert runs under a savepoint so a unique violation on the entry
	// number aborts only this statement, leaving the enclosing transaction
	// usable for the retry.
	if _, err := q.Exec(ctx, `SAVEPOINT journal_insert`); err != nil {
		return err
	}
	err := q.QueryRow(ctx, `INSERT INTO journal_entries (entry_number, entry_date, description, source_type, source_id, created_by, is_voided)
VALUES ($1, $2, $3, $4, $5, $6, FALSE)
RETURNING id, created_at`, e.EntryNumber, e.EntryDate, e.Description, e.SourceType, e.SourceID, e.CreatedBy).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		_, _ = q.Exec(ctx, `ROLLBACK TO SAVEPOINT journal_insert`)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && strings.Contains(pgErr.ConstraintName, "entry_number") {
			return fmt.Errorf("%w: %s", ErrDuplicateEntryNumber, e.EntryNumber)
		}
		return err
	}
	_, err = q.Exec(ctx, `RELEASE SAVEPOINT journal_insert`)
	return err
}

func (sqlStore) InsertLine(ctx context.Context, q db.DB, l *Line) error {
	return q.QueryRow(ctx, `INSERT INTO account_transactions (journal_entry_id, account_id, debit_amount, credit_amount, description, running_balance)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id`, l.EntryID, l.AccountID, l.Debit.String(), l.Credit.String(), l.Description, l.RunningBalance.String()).Scan(&l.ID)
}

func (sqlStore) GetAccountForUpdate(ctx context.Context, q db.DB, accountID int64) (accounts.Account, error) {
	var a accounts.Account
	var balance string
	err := q.QueryRow(ctx, `SELECT id, code, name, account_type, normal_balance, current_balance::text, is_active
FROM accounts WHERE id=$1 FOR UPDATE`, accountID).
		Scan(&a.ID, &a.Code, &a.Name, &a.Type, &a.NormalBalance, &balance, &a.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return accounts.Account{}, fmt.Errorf("%w: account %d", accounts.ErrAccountNotSeeded, accountID)
		}
		return accounts.Account{}, err
	}
	a.CurrentBalance, err = decimal.NewFromString(balance)
	if err != nil {
		return accounts.Account{}, fmt.Errorf("journal: parse balance %q: %w", balance, err)
	}
	return a, nil
}

func (sqlStore) SetAccountBalance(ctx context.Context, q db.DB, accountID int64, balance decimal.Decimal) error {
	cmd, err := q.Exec(ctx, `UPDATE accounts SET current_balance=$2, updated_at=NOW() WHERE id=$1`, accountID, balance.String())
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("journal: account %d vanished during posting", accountID)
	}
	return nil
}

func (sqlStore) HasEntryForSource(ctx context.Context, q db.DB, sourceType SourceType, sourceID int64) (bool, error) {
	var exists bool
	err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM journal_entries WHERE source_type=$1 AND source_id=$2 AND NOT is_voided)`, sourceType, sourceID).Scan(&exists)
	return exists, err
}

func (sqlStore) GetEntryForSource(ctx context.Context, q db.DB, sourceType SourceType, sourceID int64) (*Entry, error) {
	var e Entry
	err := q.QueryRow(ctx, `SELECT id, entry_number, entry_date, description, source_type, source_id, created_by, is_voided, created_at
FROM journal_entries WHERE source_type=$1 AND source_id=$2 AND NOT is_voided
ORDER BY id DESC LIMIT 1`, sourceType, sourceID).
		Scan(&e.ID, &e.EntryNumber, &e.EntryDate, &e.Description, &e.SourceType, &e.SourceID, &e.CreatedBy, &e.IsVoided, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}
	return &e, nil
}

func (sqlStore) SetVoided(ctx context.Context, q db.DB, entryID int64, voided bool) error {
	cmd, err := q.Exec(ctx, `UPDATE journal_entries SET is_voided=$2 WHERE id=$1`, entryID, voided)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}
