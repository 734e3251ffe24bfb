package recon

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	"github.com/relaybooks/relaybooks/internal/ledger/journal"
	"github.com/relaybooks/relaybooks/internal/observability"
	"github.com/relaybooks/relaybooks/internal/platform/db"
	"github.com/relaybooks/relaybooks/internal/shared"
)

// bulkDepositLimit caps a single bulk verification batch. Each deposit in
// the batch runs a FIFO allocation under row locks, so batches are kept
// small enough to keep lock hold times reasonable.
const bulkDepositLimit = 50

// PostingPort is the slice of the ledger the reconciliation flow needs.
// Collections and deposits post their entries inside the caller's
// transaction so the status change and the ledger entry commit together.
type PostingPort interface {
	PostCollectionVerified(ctx context.Context, q db.DB, collectionID int64, amount decimal.Decimal, userID int64) (*journal.Entry, error)
	PostDepositVerified(ctx context.Context, q db.DB, depositID int64, amount decimal.Decimal, userID int64) (*journal.Entry, error)
}

// AuditPort records who did what to collections, deposits and blocks.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// RefreshEnqueuer schedules an aging snapshot rebuild after an operation
// changes agent balances, so the report does not wait for the nightly run.
type RefreshEnqueuer interface {
	EnqueueAgingRefresh(ctx context.Context) error
}

// Service implements the agent cash reconciliation workflow.
type Service struct {
	store    Store
	txer     db.Transactor
	posting  PostingPort
	audit    AuditPort
	metrics  *observability.Metrics
	logger   *slog.Logger
	validate *validator.Validate
	refresh  RefreshEnqueuer
	now      func() time.Time
}

// NewService wires the reconciliation service.
func NewService(store Store, txer db.Transactor, posting PostingPort, audit AuditPort, metrics *observability.Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    store,
		txer:     txer,
		posting:  posting,
		audit:    audit,
		metrics:  metrics,
		logger:   logger,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      time.Now,
	}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) *Service {
	s.now = now
	return s
}

// WithRefreshEnqueuer hooks an aging refresh job behind balance-changing
// operations. nil leaves the snapshot to the scheduled rebuild.
func (s *Service) WithRefreshEnqueuer(r RefreshEnqueuer) *Service {
	s.refresh = r
	return s
}

// requestAgingRefresh is fire-and-forget. A failed enqueue only delays the
// snapshot until the nightly rebuild, so it never fails the operation.
func (s *Service) requestAgingRefresh(ctx context.Context) {
	if s.refresh == nil {
		return
	}
	if err := s.refresh.EnqueueAgingRefresh(ctx); err != nil {
		s.logger.Warn("aging refresh enqueue failed", slog.String("error", err.Error()))
	}
}

// CreateCollection records a draft collection for a delivered order.
func (s *Service) CreateCollection(ctx context.Context, in CreateCollectionInput) (*Collection, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}
	if !in.Amount.IsPositive() {
		return nil, ErrNonPositiveAmount
	}
	c := &Collection{
		OrderID:         in.OrderID,
		AgentID:         in.AgentID,
		Amount:          in.Amount,
		AllocatedAmount: decimal.Zero,
		Status:          CollectionDraft,
		CollectionDate:  in.CollectionDate,
	}
	err := s.txer.WithTx(ctx, func(ctx context.Context, tx db.DB) error {
		return s.store.CreateCollection(ctx, tx, c)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("collection created",
		slog.Int64("collection_id", c.ID),
		slog.Int64("agent_id", c.AgentID),
		slog.String("amount", c.Amount.String()))
	return c, nil
}

// VerifyCollection moves a draft collection to verified and posts the
// receivable entry.
func (s *Service) VerifyCollection(ctx context.Context, collectionID, verifierID int64) (*Collection, error) {
	var out *Collection
	err := s.txer.WithTx(ctx, func(ctx context.Context, tx db.DB) error {
		c, err := s.verifyCollection(ctx, tx, collectionID, verifierID)
		if err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, verifierID, "collection.verify", "agent_collection", collectionID, nil)
	return out, nil
}

func (s *Service) verifyCollection(ctx context.Context, tx db.DB, collectionID, verifierID int64) (*Collection, error) {
	c, err := s.store.GetCollectionForUpdate(ctx, tx, collectionID)
	if err != nil {
		return nil, err
	}
	if c.Status != CollectionDraft {
		return nil, &TransitionError{Entity: "collection", ID: c.ID, From: string(c.Status), Action: "verified"}
	}
	at := s.now()
	if err := s.store.SetCollectionVerified(ctx, tx, c.ID, verifierID, at); err != nil {
		return nil, err
	}
	if _, err := s.posting.PostCollectionVerified(ctx, tx, c.ID, c.Amount, verifierID); err != nil {
		return nil, fmt.Errorf("post collection %d: %w", c.ID, err)
	}
	c.Status = CollectionVerified
	c.VerifiedAt = &at
	c.VerifiedByID = &verifierID
	return c, nil
}

// BulkVerifyCollections verifies a batch of draft collections in a single
// transaction. One failure rolls the whole batch back.
func (s *Service) BulkVerifyCollections(ctx context.Context, collectionIDs []int64, verifierID int64) (*BulkResult, error) {
	if len(collectionIDs) == 0 {
		return &BulkResult{}, nil
	}
	batchID := uuid.NewString()
	err := s.txer.WithTx(ctx, func(ctx context.Context, tx db.DB) error {
		for _, id := range collectionIDs {
			if _, err := s.verifyCollection(ctx, tx, id, verifierID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, id := range collectionIDs {
		s.recordAudit(ctx, verifierID, "collection.verify", "agent_collection", id, map[string]any{"batch_id": batchID})
	}
	s.logger.Info("bulk collection verify committed",
		slog.String("batch_id", batchID),
		slog.Int("count", len(collectionIDs)))
	return &BulkResult{BatchID: batchID, Processed: len(collectionIDs)}, nil
}

// ApproveCollection moves a verified collection to approved. Approval is
// the point the amount starts counting against the agent's balance and
// becomes eligible for deposit allocation.
func (s *Service) ApproveCollection(ctx context.Context, collectionID, approverID int64) (*Collection, error) {
	var out *Collection
	err := s.txer.WithTx(ctx, func(ctx context.Context, tx db.DB) error {
		c, err := s.store.GetCollectionForUpdate(ctx, tx, collectionID)
		if err != nil {
			return err
		}
		if c.Status != CollectionVerified {
			return &TransitionError{Entity: "collection", ID: c.ID, From: string(c.Status), Action: "approved"}
		}
		at := s.now()
		if err := s.store.SetCollectionApproved(ctx, tx, c.ID, approverID, at); err != nil {
			return err
		}
		if _, err := s.store.EnsureBalanceForUpdate(ctx, tx, c.AgentID); err != nil {
			return err
		}
		if err := s.store.ApplyCollectionApproved(ctx, tx, c.AgentID, c.Amount); err != nil {
			return err
		}
		c.Status = CollectionApproved
		c.ApprovedAt = &at
		c.ApprovedByID = &approverID
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, approverID, "collection.approve", "agent_collection", collectionID, nil)
	s.requestAgingRefresh(ctx)
	return out, nil
}

// CreateDeposit records a pending deposit. The amount may not exceed the
// agent's current outstanding balance, so an agent cannot park phantom cash
// ahead of collections being approved.
func (s *Service) CreateDeposit(ctx context.Context, in CreateDepositInput) (*Deposit, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}
	if !in.Amount.IsPositive() {
		return nil, ErrNonPositiveAmount
	}
	ref := in.ReferenceNumber
	if ref == "" {
		ref = "DEP-" + ulid.Make().String()
	}
	d := &Deposit{
		AgentID:         in.AgentID,
		Amount:          in.Amount,
		Status:          DepositPending,
		Method:          in.Method,
		ReferenceNumber: ref,
		Notes:           in.Notes,
	}
	err := s.txer.WithTx(ctx, func(ctx context.Context, tx db.DB) error {
		bal, err := s.store.EnsureBalanceForUpdate(ctx, tx, in.AgentID)
		if err != nil {
			return err
		}
		if in.Amount.GreaterThan(bal.CurrentBalance) {
			return fmt.Errorf("%w: deposit %s, balance %s",
				ErrDepositExceedsBalance, in.Amount.String(), bal.CurrentBalance.String())
		}
		return s.store.CreateDeposit(ctx, tx, d)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("deposit created",
		slog.Int64("deposit_id", d.ID),
		slog.Int64("agent_id", d.AgentID),
		slog.String("amount", d.Amount.String()),
		slog.String("reference", d.ReferenceNumber))
	return d, nil
}

// VerifyDeposit confirms a pending deposit, posts the cash movement and
// allocates the amount FIFO across the agent's approved collections. Any
// amount left over after allocation stays on the agent's deposited total
// and is flagged on the deposit for manual follow-up.
func (s *Service) VerifyDeposit(ctx context.Context, depositID, verifierID int64) (*VerifyDepositResult, error) {
	var out *VerifyDepositResult
	err := s.txer.WithTx(ctx, func(ctx context.Context, tx db.DB) error {
		res, err := s.verifyDeposit(ctx, tx, depositID, verifierID)
		if err != nil {
			return err
		}
		out = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, verifierID, "deposit.verify", "agent_deposit", depositID, map[string]any{
		"allocations": len(out.Allocations),
		"remainder":   out.Remainder.String(),
	})
	s.requestAgingRefresh(ctx)
	return out, nil
}

func (s *Service) verifyDeposit(ctx context.Context, tx db.DB, depositID, verifierID int64) (*VerifyDepositResult, error) {
	d, err := s.store.GetDepositForUpdate(ctx, tx, depositID)
	if err != nil {
		return nil, err
	}
	if d.Status != DepositPending {
		return nil, &TransitionError{Entity: "deposit", ID: d.ID, From: string(d.Status), Action: "verified"}
	}

	bal, err := s.store.EnsureBalanceForUpdate(ctx, tx, d.AgentID)
	if err != nil {
		return nil, err
	}
	if d.Amount.GreaterThan(bal.CurrentBalance) {
		return nil, fmt.Errorf("%w: deposit %s, balance %s",
			ErrDepositExceedsBalance, d.Amount.String(), bal.CurrentBalance.String())
	}

	at := s.now()
	if err := s.store.SetDepositVerified(ctx, tx, d.ID, verifierID, at); err != nil {
		return nil, err
	}
	if err := s.store.ApplyDepositVerified(ctx, tx, d.AgentID, d.Amount); err != nil {
		return nil, err
	}
	if _, err := s.posting.PostDepositVerified(ctx, tx, d.ID, d.Amount, verifierID); err != nil {
		return nil, fmt.Errorf("post deposit %d: %w", d.ID, err)
	}

	collections, err := s.store.ListAllocatableForUpdate(ctx, tx, d.AgentID)
	if err != nil {
		return nil, err
	}
	allocs, remainder := allocateFIFO(collections, d.Amount)
	for _, a := range allocs {
		status := CollectionApproved
		if a.FullyAllocated {
			status = CollectionDeposited
		}
		if err := s.store.SetCollectionAllocation(ctx, tx, a.CollectionID, a.NewAllocated, status); err != nil {
			return nil, err
		}
	}
	if remainder.IsPositive() {
		note := "Unallocated remainder: " + remainder.String()
		if err := s.store.AppendDepositNote(ctx, tx, d.ID, note); err != nil {
			return nil, err
		}
		s.logger.Warn("deposit left unallocated remainder",
			slog.Int64("deposit_id", d.ID),
			slog.Int64("agent_id", d.AgentID),
			slog.String("remainder", remainder.String()))
	}

	d.Status = DepositVerified
	d.VerifiedAt = &at
	d.VerifiedByID = &verifierID
	return &VerifyDepositResult{Deposit: d, Allocations: allocs, Remainder: remainder}, nil
}

// BulkVerifyDeposits verifies up to bulkDepositLimit pending deposits in a
// single transaction. One failure rolls the whole batch back.
func (s *Service) BulkVerifyDeposits(ctx context.Context, depositIDs []int64, verifierID int64) (*BulkResult, error) {
	if len(depositIDs) == 0 {
		return &BulkResult{}, nil
	}
	if len(depositIDs) > bulkDepositLimit {
		return nil, fmt.Errorf("%w: %d exceeds limit of %d", ErrTooManyDeposits, len(depositIDs), bulkDepositLimit)
	}
	batchID := uuid.NewString()
	err := s.txer.WithTx(ctx, func(ctx context.Context, tx db.DB) error {
		for _, id := range depositIDs {
			if _, err := s.verifyDeposit(ctx, tx, id, verifierID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, id := range depositIDs {
		s.recordAudit(ctx, verifierID, "deposit.verify", "agent_deposit", id, map[string]any{"batch_id": batchID})
	}
	s.logger.Info("bulk deposit verify committed",
		slog.String("batch_id", batchID),
		slog.Int("count", len(depositIDs)))
	s.requestAgingRefresh(ctx)
	return &BulkResult{BatchID: batchID, Processed: len(depositIDs)}, nil
}

// RejectDeposit marks a pending deposit rejected. Nothing is posted and
// nothing is allocated; the agent's balance is untouched.
func (s *Service) RejectDeposit(ctx context.Context, depositID, verifierID int64, reason string) (*Deposit, error) {
	var out *Deposit
	err := s.txer.WithTx(ctx, func(ctx context.Context, tx db.DB) error {
		d, err := s.store.GetDepositForUpdate(ctx, tx, depositID)
		if err != nil {
			return err
		}
		if d.Status != DepositPending {
			return &TransitionError{Entity: "deposit", ID: d.ID, From: string(d.Status), Action: "rejected"}
		}
		at := s.now()
		if err := s.store.SetDepositRejected(ctx, tx, d.ID, verifierID, at, "Rejected: "+reason); err != nil {
			return err
		}
		d.Status = DepositRejected
		d.VerifiedAt = &at
		d.VerifiedByID = &verifierID
		out = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, verifierID, "deposit.reject", "agent_deposit", depositID, map[string]any{"reason": reason})
	return out, nil
}

// BlockAgent stops an agent from taking new orders until their balance is
// settled.
func (s *Service) BlockAgent(ctx context.Context, agentID, blockerID int64, reason string) (*AgentBalance, error) {
	var out *AgentBalance
	err := s.txer.WithTx(ctx, func(ctx context.Context, tx db.DB) error {
		bal, err := s.store.EnsureBalanceForUpdate(ctx, tx, agentID)
		if err != nil {
			return err
		}
		if bal.IsBlocked {
			return fmt.Errorf("%w: agent %d", ErrAgentAlreadyBlocked, agentID)
		}
		at := s.now()
		if err := s.store.SetBlocked(ctx, tx, agentID, blockerID, reason, at); err != nil {
			return err
		}
		bal.IsBlocked = true
		bal.BlockReason = reason
		bal.BlockedAt = &at
		bal.BlockedByID = &blockerID
		out = bal
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.AgentBlocked()
	s.recordAudit(ctx, blockerID, "agent.block", "agent_balance", agentID, map[string]any{"reason": reason})
	s.logger.Warn("agent blocked",
		slog.Int64("agent_id", agentID),
		slog.String("reason", reason))
	return out, nil
}

// UnblockAgent lifts a block.
func (s *Service) UnblockAgent(ctx context.Context, agentID, actorID int64) (*AgentBalance, error) {
	var out *AgentBalance
	err := s.txer.WithTx(ctx, func(ctx context.Context, tx db.DB) error {
		bal, err := s.store.EnsureBalanceForUpdate(ctx, tx, agentID)
		if err != nil {
			return err
		}
		if !bal.IsBlocked {
			return fmt.Errorf("%w: agent %d", ErrAgentNotBlocked, agentID)
		}
		if err := s.store.SetUnblocked(ctx, tx, agentID); err != nil {
			return err
		}
		bal.IsBlocked = false
		bal.BlockReason = ""
		bal.BlockedAt = nil
		bal.BlockedByID = nil
		out = bal
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actorID, "agent.unblock", "agent_balance", agentID, nil)
	s.logger.Info("agent unblocked", slog.Int64("agent_id", agentID))
	return out, nil
}

// GetAgentBalance returns the agent's balance, or ErrAgentBalanceNotFound
// when the agent has no activity yet.
func (s *Service) GetAgentBalance(ctx context.Context, agentID int64) (*AgentBalance, error) {
	var out *AgentBalance
	err := s.txer.WithTx(ctx, func(ctx context.Context, tx db.DB) error {
		bal, err := s.store.GetBalance(ctx, tx, agentID)
		if err != nil {
			return err
		}
		out = bal
		return nil
	})
	return out, err
}

// ListBalances returns all agent balances, highest outstanding first.
func (s *Service) ListBalances(ctx context.Context) ([]AgentBalance, error) {
	var out []AgentBalance
	err := s.txer.WithTx(ctx, func(ctx context.Context, tx db.DB) error {
		var err error
		out, err = s.store.ListBalances(ctx, tx)
		return err
	})
	return out, err
}

// ListBlockedAgents returns currently blocked agents, oldest block first.
func (s *Service) ListBlockedAgents(ctx context.Context) ([]AgentBalance, error) {
	var out []AgentBalance
	err := s.txer.WithTx(ctx, func(ctx context.Context, tx db.DB) error {
		var err error
		out, err = s.store.ListBlocked(ctx, tx)
		return err
	})
	return out, err
}

// recordAudit logs audit failures instead of failing the already committed
// operation.
func (s *Service) recordAudit(ctx context.Context, actorID int64, action, entity string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   entity,
		EntityID: strconv.FormatInt(entityID, 10),
		Meta:     meta,
		At:       s.now(),
	})
	if err != nil {
		s.logger.Error("audit record failed",
			slog.String("action", action),
			slog.String("entity", entity),
			slog.Int64("entity_id", entityID),
			slog.String("error", err.Error()))
	}
}
