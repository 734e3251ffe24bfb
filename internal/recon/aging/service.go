package aging

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/relaybooks/relaybooks/internal/observability"
	"github.com/relaybooks/relaybooks/internal/platform/db"
	"github.com/relaybooks/relaybooks/internal/recon"
)

// autoBlockReason is the exact reason written to every automatic block so
// they can be told apart from manual ones.
const autoBlockReason = "Automatic block: Overdue collection balance (4+ days)"

// AgentBlocker is the slice of the reconciliation service the auto-block
// sweep needs.
type AgentBlocker interface {
	BlockAgent(ctx context.Context, agentID, blockerID int64, reason string) (*recon.AgentBalance, error)
	ListBlockedAgents(ctx context.Context) ([]recon.AgentBalance, error)
}

// Service computes and serves the agent aging report.
type Service struct {
	store   Store
	txer    db.Transactor
	cache   *ReportCache
	blocker AgentBlocker
	metrics *observability.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewService wires the aging service.
func NewService(store Store, txer db.Transactor, cache *ReportCache, blocker AgentBlocker, metrics *observability.Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:   store,
		txer:    txer,
		cache:   cache,
		blocker: blocker,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) *Service {
	s.now = now
	return s
}

// RefreshAll rebuilds the aging snapshot from live collection data and
// drops the cached report.
func (s *Service) RefreshAll(ctx context.Context) (*Report, error) {
	start := time.Now()
	now := s.now()

	var report *Report
	err := s.txer.WithTx(ctx, func(ctx context.Context, tx db.DB) error {
		outstanding, err := s.store.ListOutstanding(ctx, tx)
		if err != nil {
			return err
		}
		report = buildReport(outstanding, now)
		return s.store.ReplaceSnapshot(ctx, tx, report.Rows, now)
	})
	if err != nil {
		return nil, err
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn("aging cache invalidation failed", slog.String("error", err.Error()))
	}
	s.metrics.AgingRefreshObserved(time.Since(start))
	s.logger.Info("aging snapshot refreshed",
		slog.Int("agents", len(report.Rows)),
		slog.Duration("took", time.Since(start)))
	return report, nil
}

// buildReport groups outstanding collections by agent and buckets each
// amount by age.
func buildReport(outstanding []outstandingCollection, now time.Time) *Report {
	byAgent := make(map[int64]*Row)
	var order []int64
	for _, oc := range outstanding {
		row, ok := byAgent[oc.AgentID]
		if !ok {
			row = &Row{
				AgentID:          oc.AgentID,
				AgentName:        oc.AgentName,
				OldestCollection: oc.CollectionDate,
			}
			byAgent[oc.AgentID] = row
			order = append(order, oc.AgentID)
		}
		row.bucketize(oc.Outstanding, daysSince(oc.CollectionDate, now))
		if oc.CollectionDate.Before(row.OldestCollection) {
			row.OldestCollection = oc.CollectionDate
		}
	}
	report := &Report{GeneratedAt: now}
	for _, id := range order {
		report.Rows = append(report.Rows, *byAgent[id])
	}
	return report
}

// Report returns the latest snapshot, from cache when possible.
func (s *Service) Report(ctx context.Context) (*Report, error) {
	if cached, err := s.cache.Get(ctx); err != nil {
		s.logger.Warn("aging cache read failed", slog.String("error", err.Error()))
	} else if cached != nil {
		return cached, nil
	}

	var report *Report
	err := s.txer.WithTx(ctx, func(ctx context.Context, tx db.DB) error {
		var err error
		report, err = s.store.ListSnapshot(ctx, tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, report); err != nil {
		s.logger.Warn("aging cache write failed", slog.String("error", err.Error()))
	}
	return report, nil
}

// AutoBlockOverdueAgents blocks every agent carrying cash outstanding for
// four days or more, attributing the blocks to actorID. Scheduled sweeps
// pass the system actor; manual runs pass the manager who triggered them.
// Agents already blocked are left alone. Returns how many agents were
// newly blocked.
func (s *Service) AutoBlockOverdueAgents(ctx context.Context, actorID int64) (int, error) {
	var report *Report
	err := s.txer.WithTx(ctx, func(ctx context.Context, tx db.DB) error {
		var err error
		report, err = s.store.ListSnapshot(ctx, tx)
		return err
	})
	if err != nil {
		return 0, err
	}
	blockedList, err := s.blocker.ListBlockedAgents(ctx)
	if err != nil {
		return 0, err
	}
	blocked := make(map[int64]bool, len(blockedList))
	for _, b := range blockedList {
		blocked[b.AgentID] = true
	}

	count := 0
	for _, row := range report.Rows {
		if !row.Overdue() || blocked[row.AgentID] {
			continue
		}
		if _, err := s.blocker.BlockAgent(ctx, row.AgentID, actorID, autoBlockReason); err != nil {
			if errors.Is(err, recon.ErrAgentAlreadyBlocked) {
				continue
			}
			s.logger.Error("auto block failed",
				slog.Int64("agent_id", row.AgentID),
				slog.String("error", err.Error()))
			continue
		}
		count++
	}
	if count > 0 {
		s.logger.Warn("auto block sweep blocked agents", slog.Int("count", count))
	}
	return count, nil
}
