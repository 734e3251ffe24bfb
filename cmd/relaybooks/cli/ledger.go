package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/relaybooks/relaybooks/internal/ledger/accounts"
	"github.com/relaybooks/relaybooks/internal/ledger/autopost"
	"github.com/relaybooks/relaybooks/internal/ledger/integrity"
	"github.com/relaybooks/relaybooks/internal/ledger/journal"
	"github.com/relaybooks/relaybooks/internal/platform/db"
)

// LedgerCLI bundles the administrative ledger commands.
type LedgerCLI struct {
	pool     *pgxpool.Pool
	engine   *journal.Engine
	autopost *autopost.Service
	verifier *integrity.Verifier
	logger   *slog.Logger
}

// NewLedgerCLI wires the ledger command helpers.
func NewLedgerCLI(pool *pgxpool.Pool, engine *journal.Engine, autopostSvc *autopost.Service, verifier *integrity.Verifier, logger *slog.Logger) *LedgerCLI {
	return &LedgerCLI{pool: pool, engine: engine, autopost: autopostSvc, verifier: verifier, logger: logger}
}

// SeedAccounts inserts any missing chart-of-accounts rows. Safe to run
// repeatedly.
func (c *LedgerCLI) SeedAccounts(ctx context.Context) error {
	if err := accounts.Seed(ctx, c.pool, accounts.NewStore()); err != nil {
		return fmt.Errorf("seed accounts: %w", err)
	}
	c.logger.Info("chart of accounts seeded")
	return nil
}

// VerifyBalances recomputes every account balance from posted lines and
// prints any drift. Returns the number of accounts out of balance.
func (c *LedgerCLI) VerifyBalances(ctx context.Context, out io.Writer) (int, error) {
	report, err := c.verifier.VerifyAll(ctx)
	if err != nil {
		return 0, err
	}
	for _, r := range report.OutOfBalance {
		fmt.Fprintf(out, "account %s %s: stored %s, calculated %s, drift %s\n",
			r.Code, r.Name,
			r.Stored.String(), r.Calculated.String(), r.Difference.String())
	}
	fmt.Fprintf(out, "%d accounts checked, %d out of balance\n", len(report.Results), len(report.OutOfBalance))
	return len(report.OutOfBalance), nil
}

// BackfillRevenue posts missing revenue entries for up to limit delivered
// orders.
func (c *LedgerCLI) BackfillRevenue(ctx context.Context, actorID int64, limit int) (int, error) {
	return c.autopost.BackfillRevenue(ctx, actorID, limit)
}

// VoidEntry flags a journal entry as voided. The entry and its lines stay
// on the books; post a reversing entry to correct the balances.
func (c *LedgerCLI) VoidEntry(ctx context.Context, entryID int64) error {
	if entryID <= 0 {
		return fmt.Errorf("void entry: id must be positive, got %d", entryID)
	}
	err := db.WithTx(ctx, c.pool, func(ctx context.Context, tx db.DB) error {
		return c.engine.Void(ctx, tx, entryID)
	})
	if err != nil {
		return fmt.Errorf("void entry %d: %w", entryID, err)
	}
	c.logger.Info("journal entry voided", slog.Int64("entry_id", entryID))
	return nil
}
