package integrity

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/relaybooks/relaybooks/internal/ledger/accounts"
	"github.com/relaybooks/relaybooks/internal/platform/db"
)

// Tolerance is the maximum accepted drift between a stored balance and the
// balance recomputed from transaction history.
var Tolerance = decimal.RequireFromString("0.01")

// Store exposes the reads needed to recompute account balances.
type Store interface {
	ListActiveAccounts(ctx context.Context, q db.DB) ([]accounts.Account, error)
	GetAccount(ctx context.Context, q db.DB, accountID int64) (accounts.Account, error)
	SumLines(ctx context.Context, q db.DB, accountID int64) (debits, credits decimal.Decimal, err error)
}

// Result compares one account's stored balance with its recomputed balance.
type Result struct {
	AccountID  int64
	Code       string
	Name       string
	Stored     decimal.Decimal
	Calculated decimal.Decimal
	Difference decimal.Decimal
	Balanced   bool
}

// Report aggregates a full sweep.
type Report struct {
	Results      []Result
	OutOfBalance []Result
	MaxDrift     decimal.Decimal
}

// Verifier recomputes account balances from their full line history. It is
// an operational health check: drift beyond tolerance means the running
// balance maintenance and the ledger history disagree.
type Verifier struct {
	store  Store
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewVerifier builds a Verifier. pool is required only for VerifyAll.
func NewVerifier(store Store, pool *pgxpool.Pool, logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{store: store, pool: pool, logger: logger}
}

// Verify recomputes one account's balance as the sum of its lines signed by
// normal balance and compares it to the stored balance.
func (v *Verifier) Verify(ctx context.Context, q db.DB, accountID int64) (Result, error) {
	account, err := v.store.GetAccount(ctx, q, accountID)
	if err != nil {
		return Result{}, err
	}
	debits, credits, err := v.store.SumLines(ctx, q, accountID)
	if err != nil {
		return Result{}, err
	}
	calculated := account.SignedDelta(debits, credits)
	difference := account.CurrentBalance.Sub(calculated)
	return Result{
		AccountID:  account.ID,
		Code:       account.Code,
		Name:       account.Name,
		Stored:     account.CurrentBalance,
		Calculated: calculated,
		Difference: difference,
		Balanced:   difference.Abs().LessThanOrEqual(Tolerance),
	}, nil
}

// VerifyAll sweeps every active account with bounded concurrency and
// reports the out-of-tolerance ones plus the maximum observed drift.
func (v *Verifier) VerifyAll(ctx context.Context) (Report, error) {
	list, err := v.store.ListActiveAccounts(ctx, v.pool)
	if err != nil {
		return Report{}, err
	}

	results := make([]Result, len(list))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, account := range list {
		g.Go(func() error {
			res, err := v.Verify(gctx, v.pool, account.ID)
			if err != nil {
				return err
			}
			mu.Lock()
			results[i] = res
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Report{}, err
	}

	report := Report{Results: results, MaxDrift: decimal.Zero}
	for _, res := range results {
		drift := res.Difference.Abs()
		if drift.GreaterThan(report.MaxDrift) {
			report.MaxDrift = drift
		}
		if !res.Balanced {
			report.OutOfBalance = append(report.OutOfBalance, res)
			v.logger.Warn("account balance drift",
				slog.String("code", res.Code),
				slog.String("stored", res.Stored.String()),
				slog.String("calculated", res.Calculated.String()),
				slog.String("difference", res.Difference.String()))
		}
	}
	sort.Slice(report.OutOfBalance, func(i, j int) bool {
		return report.OutOfBalance[i].Code < report.OutOfBalance[j].Code
	})
	return report, nil
}
