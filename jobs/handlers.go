package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/relaybooks/relaybooks/internal/jobs"
	"github.com/relaybooks/relaybooks/internal/ledger/autopost"
	"github.com/relaybooks/relaybooks/internal/ledger/integrity"
	"github.com/relaybooks/relaybooks/internal/recon/aging"
)

// defaultBackfillLimit bounds an unparametrized backfill run.
const defaultBackfillLimit = 200

// systemUserID attributes scheduler-posted entries.
const systemUserID = 0

// NewAgingRefreshHandler processes TaskAgingRefresh.
func NewAgingRefreshHandler(svc *aging.Service, metrics *jobmetrics.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track("aging_refresh")
		report, err := svc.RefreshAll(ctx)
		if err != nil {
			return tracker.End(fmt.Errorf("aging refresh: %w", err))
		}
		logger.Info("aging refresh job done", slog.Int("agents", len(report.Rows)))
		return tracker.End(nil)
	}
}

// NewAgingAutoBlockHandler processes TaskAgingAutoBlock. When auto-blocking
// is disabled the task is a no-op so the schedule can stay in place.
func NewAgingAutoBlockHandler(svc *aging.Service, enabled bool, metrics *jobmetrics.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track("aging_autoblock")
		if !enabled {
			logger.Info("auto block disabled, skipping")
			return tracker.End(nil)
		}
		count, err := svc.AutoBlockOverdueAgents(ctx, systemUserID)
		if err != nil {
			return tracker.End(fmt.Errorf("auto block sweep: %w", err))
		}
		logger.Info("auto block job done", slog.Int("blocked", count))
		return tracker.End(nil)
	}
}

// NewLedgerIntegrityHandler processes TaskLedgerIntegrity. Any account whose
// stored balance drifts from its posted lines fails the job so the failure
// shows up in job metrics and alerting.
func NewLedgerIntegrityHandler(verifier *integrity.Verifier, metrics *jobmetrics.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track("ledger_integrity")
		report, err := verifier.VerifyAll(ctx)
		if err != nil {
			return tracker.End(fmt.Errorf("integrity check: %w", err))
		}
		if len(report.OutOfBalance) > 0 {
			return tracker.End(fmt.Errorf("integrity check: %d accounts out of balance, max drift %s",
				len(report.OutOfBalance), report.MaxDrift.String()))
		}
		logger.Info("ledger integrity check clean", slog.Int("accounts", len(report.Results)))
		return tracker.End(nil)
	}
}

// NewRevenueBackfillHandler processes TaskRevenueBackfill.
func NewRevenueBackfillHandler(svc *autopost.Service, metrics *jobmetrics.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track("revenue_backfill")
		var payload RevenueBackfillPayload
		if len(t.Payload()) > 0 {
			if err := json.Unmarshal(t.Payload(), &payload); err != nil {
				return asynq.SkipRetry
			}
		}
		limit := payload.Limit
		if limit <= 0 {
			limit = defaultBackfillLimit
		}
		posted, err := svc.BackfillRevenue(ctx, systemUserID, limit)
		if err != nil {
			return tracker.End(fmt.Errorf("revenue backfill: %w", err))
		}
		logger.Info("revenue backfill job done", slog.Int("posted", posted))
		return tracker.End(nil)
	}
}
