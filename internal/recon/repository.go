package recon

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/relaybooks/relaybooks/internal/platform/db"
)

// Store is the persistence surface for collections, deposits and agent
// balances. Every method takes the query capability explicitly so the
// service can compose several calls into one transaction.
type Store interface {
	CreateCollection(ctx context.Context, q db.DB, c *Collection) error
	GetCollectionForUpdate(ctx context.Context, q db.DB, id int64) (*Collection, error)
	SetCollectionVerified(ctx context.Context, q db.DB, id, verifierID int64, at time.Time) error
	SetCollectionApproved(ctx context.Context, q db.DB, id, approverID int64, at time.Time) error
	SetCollectionAllocation(ctx context.Context, q db.DB, id int64, allocated decimal.Decimal, status CollectionStatus) error
	ListAllocatableForUpdate(ctx context.Context, q db.DB, agentID int64) ([]Collection, error)

	CreateDeposit(ctx context.Context, q db.DB, d *Deposit) error
	GetDepositForUpdate(ctx context.Context, q db.DB, id int64) (*Deposit, error)
	SetDepositVerified(ctx context.Context, q db.DB, id, verifierID int64, at time.Time) error
	SetDepositRejected(ctx context.Context, q db.DB, id, verifierID int64, at time.Time, notes string) error
	AppendDepositNote(ctx context.Context, q db.DB, id int64, note string) error

	EnsureBalanceForUpdate(ctx context.Context, q db.DB, agentID int64) (*AgentBalance, error)
	ApplyCollectionApproved(ctx context.Context, q db.DB, agentID int64, amount decimal.Decimal) error
	ApplyDepositVerified(ctx context.Context, q db.DB, agentID int64, amount decimal.Decimal) error
	GetBalance(ctx context.Context, q db.DB, agentID int64) (*AgentBalance, error)
	ListBalances(ctx context.Context, q db.DB) ([]AgentBalance, error)
	ListBlocked(ctx context.Context, q db.DB) ([]AgentBalance, error)
	SetBlocked(ctx context.Context, q db.DB, agentID, blockerID int64, reason string, at time.Time) error
	SetUnblocked(ctx context.Context, q db.DB, agentID int64) error
}

type sqlStore struct{}

// NewStore returns the Postgres-backed Store.
func NewStore() Store { return sqlStore{} }

const collectionColumns = `
	id, order_id, agent_id,
	amount::text, allocated_amount::text, status, collection_date,
	verified_at, verified_by_id, approved_at, approved_by_id,
	created_at, updated_at`

func scanCollection(row pgx.Row) (*Collection, error) {
	var (
		c                 Collection
		amount, allocated string
	)
	err := row.Scan(
		&c.ID, &c.OrderID, &c.AgentID,
		&amount, &allocated, &c.Status, &c.CollectionDate,
		&c.VerifiedAt, &c.VerifiedByID, &c.ApprovedAt, &c.ApprovedByID,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCollectionNotFound
		}
		return nil, err
	}
	if c.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("parse collection amount: %w", err)
	}
	if c.AllocatedAmount, err = decimal.NewFromString(allocated); err != nil {
		return nil, fmt.Errorf("parse allocated amount: %w", err)
	}
	return &c, nil
}

func (sqlStore) CreateCollection(ctx context.Context, q db.DB, c *Collection) error {
	return q.QueryRow(ctx, `
		INSERT INTO agent_collections (order_id, agent_id, amount, allocated_amount, status, collection_date)
		VALUES ($1, $2, $3, 0, $4, $5)
		RETURNING id, created_at, updated_at`,
		c.OrderID, c.AgentID, c.Amount.String(), c.Status, c.CollectionDate,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
}

func (sqlStore) GetCollectionForUpdate(ctx context.Context, q db.DB, id int64) (*Collection, error) {
	return scanCollection(q.QueryRow(ctx, `
		SELECT `+collectionColumns+`
		FROM agent_collections
		WHERE id = $1
		FOR UPDATE`, id))
}

func (sqlStore) SetCollectionVerified(ctx context.Context, q db.DB, id, verifierID int64, at time.Time) error {
	_, err := q.Exec(ctx, `
		UPDATE agent_collections
		SET status = $2, verified_at = $3, verified_by_id = $4, updated_at = now()
		WHERE id = $1`, id, CollectionVerified, at, verifierID)
	return err
}

func (sqlStore) SetCollectionApproved(ctx context.Context, q db.DB, id, approverID int64, at time.Time) error {
	_, err := q.Exec(ctx, `
		UPDATE agent_collections
		SET status = $2, approved_at = $3, approved_by_id = $4, updated_at = now()
		WHERE id = $1`, id, CollectionApproved, at, approverID)
	return err
}

func (sqlStore) SetCollectionAllocation(ctx context.Context, q db.DB, id int64, allocated decimal.Decimal, status CollectionStatus) error {
	_, err := q.Exec(ctx, `
		UPDATE agent_collections
		SET allocated_amount = $2, status = $3, updated_at = now()
		WHERE id = $1`, id, allocated.String(), status)
	return err
}

// ListAllocatableForUpdate locks the agent's approved collections in FIFO
// order. Ties on collection_date break by id so allocation order is stable.
func (sqlStore) ListAllocatableForUpdate(ctx context.Context, q db.DB, agentID int64) ([]Collection, error) {
	rows, err := q.Query(ctx, `
		SELECT `+collectionColumns+`
		FROM agent_collections
		WHERE agent_id = $1 AND status = $2 AND allocated_amount < amount
		ORDER BY collection_date ASC, id ASC
		FOR UPDATE`, agentID, CollectionApproved)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Collection
	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

const depositColumns = `
	id, agent_id, amount::text, status, method, reference_number, notes,
	verified_at, verified_by_id, created_at, updated_at`

func scanDeposit(row pgx.Row) (*Deposit, error) {
	var (
		d      Deposit
		amount string
	)
	err := row.Scan(
		&d.ID, &d.AgentID, &amount, &d.Status, &d.Method, &d.ReferenceNumber, &d.Notes,
		&d.VerifiedAt, &d.VerifiedByID, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDepositNotFound
		}
		return nil, err
	}
	if d.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("parse deposit amount: %w", err)
	}
	return &d, nil
}

func (sqlStore) CreateDeposit(ctx context.Context, q db.DB, d *Deposit) error {
	err := q.QueryRow(ctx, `
		INSERT INTO agent_deposits (agent_id, amount, status, method, reference_number, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`,
		d.AgentID, d.Amount.String(), d.Status, d.Method, d.ReferenceNumber, d.Notes,
	).Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && strings.Contains(pgErr.ConstraintName, "reference_number") {
			return ErrDuplicateReference
		}
		return err
	}
	return nil
}

func (sqlStore) GetDepositForUpdate(ctx context.Context, q db.DB, id int64) (*Deposit, error) {
	return scanDeposit(q.QueryRow(ctx, `
		SELECT `+depositColumns+`
		FROM agent_deposits
		WHERE id = $1
		FOR UPDATE`, id))
}

func (sqlStore) SetDepositVerified(ctx context.Context, q db.DB, id, verifierID int64, at time.Time) error {
	_, err := q.Exec(ctx, `
		UPDATE agent_deposits
		SET status = $2, verified_at = $3, verified_by_id = $4, updated_at = now()
		WHERE id = $1`, id, DepositVerified, at, verifierID)
	return err
}

func (sqlStore) SetDepositRejected(ctx context.Context, q db.DB, id, verifierID int64, at time.Time, notes string) error {
	_, err := q.Exec(ctx, `
		UPDATE agent_deposits
		SET status = $2, verified_at = $3, verified_by_id = $4,
		    notes = CASE WHEN notes = '' THEN $5 ELSE notes || E'\n' || $5 END,
		    updated_at = now()
		WHERE id = $1`, id, DepositRejected, at, verifierID, notes)
	return err
}

func (sqlStore) AppendDepositNote(ctx context.Context, q db.DB, id int64, note string) error {
	_, err := q.Exec(ctx, `
		UPDATE agent_deposits
		SET notes = CASE WHEN notes = '' THEN $2 ELSE notes || E'\n' || $2 END,
		    updated_at = now()
		WHERE id = $1`, id, note)
	return err
}

const balanceColumns = `
	agent_id, total_collected::text, total_deposited::text, current_balance::text,
	is_blocked, COALESCE(block_reason, ''), blocked_at, blocked_by_id, updated_at`

func scanBalance(row pgx.Row) (*AgentBalance, error) {
	var (
		b                             AgentBalance
		collected, deposited, current string
	)
	err := row.Scan(
		&b.AgentID, &collected, &deposited, &current,
		&b.IsBlocked, &b.BlockReason, &b.BlockedAt, &b.BlockedByID, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAgentBalanceNotFound
		}
		return nil, err
	}
	if b.TotalCollected, err = decimal.NewFromString(collected); err != nil {
		return nil, fmt.Errorf("parse total collected: %w", err)
	}
	if b.TotalDeposited, err = decimal.NewFromString(deposited); err != nil {
		return nil, fmt.Errorf("parse total deposited: %w", err)
	}
	if b.CurrentBalance, err = decimal.NewFromString(current); err != nil {
		return nil, fmt.Errorf("parse current balance: %w", err)
	}
	return &b, nil
}

// EnsureBalanceForUpdate creates the agent's balance row on first use, then
// locks it for the rest of the transaction.
func (sqlStore) EnsureBalanceForUpdate(ctx context.Context, q db.DB, agentID int64) (*AgentBalance, error) {
	if _, err := q.Exec(ctx, `
		INSERT INTO agent_balances (agent_id, total_collected, total_deposited, current_balance)
		VALUES ($1, 0, 0, 0)
		ON CONFLICT (agent_id) DO NOTHING`, agentID); err != nil {
		return nil, err
	}
	return scanBalance(q.QueryRow(ctx, `
		SELECT `+balanceColumns+`
		FROM agent_balances
		WHERE agent_id = $1
		FOR UPDATE`, agentID))
}

func (sqlStore) ApplyCollectionApproved(ctx context.Context, q db.DB, agentID int64, amount decimal.Decimal) error {
	_, err := q.Exec(ctx, `
		UPDATE agent_balances
		SET total_collected = total_collected + $2,
		    current_balance = current_balance + $2,
		    updated_at = now()
		WHERE agent_id = $1`, agentID, amount.String())
	return err
}

func (sqlStore) ApplyDepositVerified(ctx context.Context, q db.DB, agentID int64, amount decimal.Decimal) error {
	_, err := q.Exec(ctx, `
		UPDATE agent_balances
		SET total_deposited = total_deposited + $2,
		    current_balance = current_balance - $2,
		    updated_at = now()
		WHERE agent_id = $1`, agentID, amount.String())
	return err
}

func (sqlStore) GetBalance(ctx context.Context, q db.DB, agentID int64) (*AgentBalance, error) {
	return scanBalance(q.QueryRow(ctx, `
		SELECT `+balanceColumns+`
		FROM agent_balances
		WHERE agent_id = $1`, agentID))
}

func (s sqlStore) ListBalances(ctx context.Context, q db.DB) ([]AgentBalance, error) {
	return s.listBalances(ctx, q, `ORDER BY current_balance DESC`)
}

func (s sqlStore) ListBlocked(ctx context.Context, q db.DB) ([]AgentBalance, error) {
	return s.listBalances(ctx, q, `WHERE is_blocked ORDER BY blocked_at ASC`)
}

func (sqlStore) listBalances(ctx context.Context, q db.DB, tail string) ([]AgentBalance, error) {
	rows, err := q.Query(ctx, `SELECT `+balanceColumns+` FROM agent_balances `+tail)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AgentBalance
	for rows.Next() {
		b, err := scanBalance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func (sqlStore) SetBlocked(ctx context.Context, q db.DB, agentID, blockerID int64, reason string, at time.Time) error {
	_, err := q.Exec(ctx, `
		UPDATE agent_balances
		SET is_blocked = TRUE, block_reason = $2, blocked_at = $3, blocked_by_id = $4, updated_at = now()
		WHERE agent_id = $1`, agentID, reason, at, blockerID)
	return err
}

func (sqlStore) SetUnblocked(ctx context.Context, q db.DB, agentID int64) error {
	_, err := q.Exec(ctx, `
		UPDATE agent_balances
		SET is_blocked = FALSE, block_reason = NULL, blocked_at = NULL, blocked_by_id = NULL, updated_at = now()
		WHERE agent_id = $1`, agentID)
	return err
}
