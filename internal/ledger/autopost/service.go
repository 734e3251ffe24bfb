package autopost

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/relaybooks/relaybooks/internal/ledger/accounts"
	"github.com/relaybooks/relaybooks/internal/ledger/journal"
	"github.com/relaybooks/relaybooks/internal/platform/db"
)

// Config carries the translator tunables.
type Config struct {
	// FailedDeliveryFee is the fixed operational cost booked per failed
	// delivery.
	FailedDeliveryFee decimal.Decimal
	// MinCOGSThreshold gates COGS/Inventory lines: totals at or below it
	// are not booked.
	MinCOGSThreshold decimal.Decimal
}

// Store exposes the source-record scans used by the backfill sweeps.
type Store interface {
	ListDeliveredOrdersMissingRevenue(ctx context.Context, q db.DB, limit int) ([]DeliveredOrder, error)
}

// Service turns business events into journal postings. Post* methods run
// inside the caller's transaction and perform the caller-side idempotency
// check: an event that already produced an entry is skipped, returning a
// nil entry.
type Service struct {
	engine   *journal.Engine
	registry *accounts.Registry
	store    Store
	pool     *pgxpool.Pool
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time
}

// NewService builds the translator service. pool is only needed for the
// standalone backfill entry points and may be nil otherwise.
func NewService(engine *journal.Engine, registry *accounts.Registry, store Store, pool *pgxpool.Pool, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{engine: engine, registry: registry, store: store, pool: pool, cfg: cfg, logger: logger, now: time.Now}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// PostDeliveryCompleted books revenue recognition for a delivered order.
func (s *Service) PostDeliveryCompleted(ctx context.Context, q db.DB, order DeliveredOrder, userID int64) (*journal.Entry, error) {
	if order.RevenueRecognized {
		s.logger.Info("revenue already recognized, skipping", slog.Int64("order_id", order.OrderID))
		return nil, nil
	}
	exists, err := s.engine.HasEntryForSource(ctx, q, journal.SourceOrderDelivery, order.OrderID)
	if err != nil {
		return nil, err
	}
	if exists {
		s.logger.Info("revenue entry already exists, skipping", slog.Int64("order_id", order.OrderID))
		return nil, nil
	}
	if missing := MissingCOGS(order.Items); len(missing) > 0 {
		s.logger.Warn("order has products without COGS, using zero",
			slog.Int64("order_id", order.OrderID),
			slog.String("products", strings.Join(missing, ", ")))
	}
	chart, err := s.registry.ResolveChart(ctx, q)
	if err != nil {
		return nil, err
	}
	lines, err := RevenueRecognitionLines(chart, order, s.cfg.MinCOGSThreshold)
	if err != nil {
		return nil, err
	}
	return s.engine.Post(ctx, q, journal.PostingInput{
		Lines:       lines,
		EntryDate:   s.now(),
		Description: fmt.Sprintf("Revenue recognition - Order #%d", order.OrderID),
		SourceType:  journal.SourceOrderDelivery,
		SourceID:    order.OrderID,
		CreatedBy:   userID,
	})
}

// PostDeliveryFailed books the fixed failed-delivery fee.
func (s *Service) PostDeliveryFailed(ctx context.Context, q db.DB, failed FailedDelivery, userID int64) (*journal.Entry, error) {
	exists, err := s.engine.HasEntryForSource(ctx, q, journal.SourceFailedDelivery, failed.DeliveryID)
	if err != nil {
		return nil, err
	}
	if exists {
		s.logger.Info("failed delivery entry already exists, skipping", slog.Int64("delivery_id", failed.DeliveryID))
		return nil, nil
	}
	chart, err := s.registry.ResolveChart(ctx, q)
	if err != nil {
		return nil, err
	}
	return s.engine.Post(ctx, q, journal.PostingInput{
		Lines:       FailedDeliveryLines(chart, failed.OrderID, s.cfg.FailedDeliveryFee),
		EntryDate:   s.now(),
		Description: fmt.Sprintf("Failed delivery expense - Order #%d", failed.OrderID),
		SourceType:  journal.SourceFailedDelivery,
		SourceID:    failed.DeliveryID,
		CreatedBy:   userID,
	})
}

// PostOrderReturned books the mirror-image reversal of the order's revenue
// recognition, plus an optional processing fee.
func (s *Service) PostOrderReturned(ctx context.Context, q db.DB, order DeliveredOrder, processingFee decimal.Decimal, userID int64) (*journal.Entry, error) {
	exists, err := s.engine.HasEntryForSource(ctx, q, journal.SourceOrderReturn, order.OrderID)
	if err != nil {
		return nil, err
	}
	if exists {
		s.logger.Info("return reversal already exists, skipping", slog.Int64("order_id", order.OrderID))
		return nil, nil
	}
	chart, err := s.registry.ResolveChart(ctx, q)
	if err != nil {
		return nil, err
	}
	lines, err := ReturnReversalLines(chart, order, processingFee, s.cfg.MinCOGSThreshold)
	if err != nil {
		return nil, err
	}
	description := fmt.Sprintf("Return reversal - Order #%d", order.OrderID)
	if original, err := s.engine.EntryForSource(ctx, q, journal.SourceOrderDelivery, order.OrderID); err == nil {
		description = fmt.Sprintf("%s (Original %s)", description, original.EntryNumber)
	} else if !errors.Is(err, journal.ErrEntryNotFound) {
		return nil, err
	}
	return s.engine.Post(ctx, q, journal.PostingInput{
		Lines:       lines,
		EntryDate:   s.now(),
		Description: description,
		SourceType:  journal.SourceOrderReturn,
		SourceID:    order.OrderID,
		CreatedBy:   userID,
	})
}

// PostCollectionVerified books the collection-verified movement.
func (s *Service) PostCollectionVerified(ctx context.Context, q db.DB, collectionID int64, amount decimal.Decimal, userID int64) (*journal.Entry, error) {
	chart, err := s.registry.ResolveChart(ctx, q)
	if err != nil {
		return nil, err
	}
	return s.engine.Post(ctx, q, journal.PostingInput{
		Lines:       CollectionVerifiedLines(chart, collectionID, amount),
		EntryDate:   s.now(),
		Description: fmt.Sprintf("Collection verification - Collection #%d", collectionID),
		SourceType:  journal.SourceAgentCollection,
		SourceID:    collectionID,
		CreatedBy:   userID,
	})
}

// PostDepositVerified books the deposit-verified settlement.
func (s *Service) PostDepositVerified(ctx context.Context, q db.DB, depositID int64, amount decimal.Decimal, userID int64) (*journal.Entry, error) {
	chart, err := s.registry.ResolveChart(ctx, q)
	if err != nil {
		return nil, err
	}
	return s.engine.Post(ctx, q, journal.PostingInput{
		Lines:       DepositVerifiedLines(chart, depositID, amount),
		EntryDate:   s.now(),
		Description: fmt.Sprintf("Deposit verification - Deposit #%d", depositID),
		SourceType:  journal.SourceAgentDeposit,
		SourceID:    depositID,
		CreatedBy:   userID,
	})
}

// PostCommissionPayout books a commission payout against the payable.
func (s *Service) PostCommissionPayout(ctx context.Context, q db.DB, payout CommissionPayout, userID int64) (*journal.Entry, error) {
	if !payout.Amount.IsPositive() {
		return nil, fmt.Errorf("autopost: payout %d amount must be positive, got %s", payout.PayoutID, payout.Amount)
	}
	exists, err := s.engine.HasEntryForSource(ctx, q, journal.SourceCommissionPayout, payout.PayoutID)
	if err != nil {
		return nil, err
	}
	if exists {
		s.logger.Info("payout entry already exists, skipping", slog.Int64("payout_id", payout.PayoutID))
		return nil, nil
	}
	chart, err := s.registry.ResolveChart(ctx, q)
	if err != nil {
		return nil, err
	}
	return s.engine.Post(ctx, q, journal.PostingInput{
		Lines:       CommissionPayoutLines(chart, payout.PayoutID, payout.Amount),
		EntryDate:   s.now(),
		Description: fmt.Sprintf("Commission payout #%d", payout.PayoutID),
		SourceType:  journal.SourceCommissionPayout,
		SourceID:    payout.PayoutID,
		CreatedBy:   userID,
	})
}

// BackfillRevenue scans for delivered orders with no revenue entry and posts
// one per order through the live translator, each in its own transaction.
// Safe to re-run; already-posted orders are filtered by the scan and
// re-checked inside the transaction.
func (s *Service) BackfillRevenue(ctx context.Context, userID int64, limit int) (int, error) {
	if s.pool == nil || s.store == nil {
		return 0, errors.New("autopost: backfill requires a pool and store")
	}
	orders, err := s.store.ListDeliveredOrdersMissingRevenue(ctx, s.pool, limit)
	if err != nil {
		return 0, err
	}
	posted := 0
	for _, order := range orders {
		err := db.WithTx(ctx, s.pool, func(ctx context.Context, tx db.DB) error {
			entry, err := s.PostDeliveryCompleted(ctx, tx, order, userID)
			if err != nil {
				return err
			}
			if entry != nil {
				posted++
			}
			return nil
		})
		if err != nil {
			return posted, fmt.Errorf("autopost: backfill order %d: %w", order.OrderID, err)
		}
	}
	s.logger.Info("revenue backfill completed", slog.Int("scanned", len(orders)), slog.Int("posted", posted))
	return posted, nil
}
