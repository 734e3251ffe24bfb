package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/shopspring/decimal"

	"github.com/relaybooks/relaybooks/cmd/relaybooks/cli"
	"github.com/relaybooks/relaybooks/internal/app"
	"github.com/relaybooks/relaybooks/internal/ledger/accounts"
	"github.com/relaybooks/relaybooks/internal/ledger/autopost"
	"github.com/relaybooks/relaybooks/internal/ledger/integrity"
	"github.com/relaybooks/relaybooks/internal/ledger/journal"
	"github.com/relaybooks/relaybooks/internal/observability"
	"github.com/relaybooks/relaybooks/internal/platform/cache"
	"github.com/relaybooks/relaybooks/internal/platform/db"
	"github.com/relaybooks/relaybooks/internal/recon"
	"github.com/relaybooks/relaybooks/internal/recon/aging"
	"github.com/relaybooks/relaybooks/internal/shared"
)

const usage = `usage: relaybooks <command> [flags]

commands:
  seed-accounts       insert any missing chart-of-accounts rows
  verify-balances     recompute account balances and report drift
  backfill-revenue    post missing revenue entries for delivered orders
  void-entry          flag a journal entry as voided
  aging-refresh       rebuild the agent aging snapshot
  aging-export        write the aging report as CSV to stdout
  auto-block          block agents with overdue collection balances
  jobs-trigger        enqueue a background job by task type
  jobs-stats          print background queue statistics
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	if err := run(ctx, cfg, logger, os.Args[1], os.Args[2:]); err != nil {
		logger.Error("command failed", slog.String("command", os.Args[1]), slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *app.Config, logger *slog.Logger, command string, args []string) error {
	switch command {
	case "jobs-trigger":
		fs := flag.NewFlagSet(command, flag.ExitOnError)
		name := fs.String("task", "", "task type to enqueue")
		_ = fs.Parse(args)
		jobsCLI, err := cli.NewJobsCLI(cfg.RedisAddr)
		if err != nil {
			return err
		}
		defer jobsCLI.Close()
		info, err := jobsCLI.Trigger(ctx, *name)
		if err != nil {
			return err
		}
		fmt.Printf("enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
		return nil

	case "jobs-stats":
		jobsCLI, err := cli.NewJobsCLI(cfg.RedisAddr)
		if err != nil {
			return err
		}
		defer jobsCLI.Close()
		stats, err := jobsCLI.InspectQueue(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("queue=%s pending=%d active=%d scheduled=%d retry=%d\n",
			stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
		return nil
	}

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	failedFee, err := decimal.NewFromString(cfg.FailedDeliveryFee)
	if err != nil {
		return fmt.Errorf("parse failed delivery fee: %w", err)
	}
	minCOGS, err := decimal.NewFromString(cfg.MinCOGSThreshold)
	if err != nil {
		return fmt.Errorf("parse min cogs threshold: %w", err)
	}

	metrics := observability.NewMetrics()
	registry := accounts.NewRegistry(accounts.NewStore())
	engine := journal.NewEngine(journal.NewStore(), journal.Config{
		MaxRetries:    cfg.EntryMaxRetries,
		BackoffMin:    cfg.EntryBackoffMin,
		BackoffJitter: cfg.EntryBackoffJitter,
	}, logger, metrics)
	autopostSvc := autopost.NewService(engine, registry, autopost.NewStore(), pool, autopost.Config{
		FailedDeliveryFee: failedFee,
		MinCOGSThreshold:  minCOGS,
	}, logger)
	verifier := integrity.NewVerifier(integrity.NewStore(), pool, logger)
	ledgerCLI := cli.NewLedgerCLI(pool, engine, autopostSvc, verifier, logger)

	switch command {
	case "seed-accounts":
		return ledgerCLI.SeedAccounts(ctx)

	case "verify-balances":
		drifted, err := ledgerCLI.VerifyBalances(ctx, os.Stdout)
		if err != nil {
			return err
		}
		if drifted > 0 {
			os.Exit(1)
		}
		return nil

	case "backfill-revenue":
		fs := flag.NewFlagSet(command, flag.ExitOnError)
		limit := fs.Int("limit", 200, "maximum orders to backfill")
		actor := fs.Int64("actor", 0, "user id recorded on posted entries")
		_ = fs.Parse(args)
		posted, err := ledgerCLI.BackfillRevenue(ctx, *actor, *limit)
		if err != nil {
			return err
		}
		fmt.Printf("%d entries posted\n", posted)
		return nil

	case "void-entry":
		fs := flag.NewFlagSet(command, flag.ExitOnError)
		id := fs.Int64("id", 0, "journal entry id to void")
		_ = fs.Parse(args)
		if err := ledgerCLI.VoidEntry(ctx, *id); err != nil {
			return err
		}
		fmt.Printf("entry %d voided\n", *id)
		return nil

	case "aging-refresh", "aging-export", "auto-block":
		redisClient, err := cache.New(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Warn("redis unavailable, running without cache", slog.Any("error", err))
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
		auditLogger := shared.NewAuditLogger(pool)
		reconSvc := recon.NewService(recon.NewStore(), db.NewTransactor(pool), autopostSvc, auditLogger, metrics, logger)
		agingCache := aging.NewReportCache(redisClient, cfg.AgingReportCacheTTL)
		agingSvc := aging.NewService(aging.NewStore(), db.NewTransactor(pool), agingCache, reconSvc, metrics, logger)
		agingCLI := cli.NewAgingCLI(agingSvc, logger)
		switch command {
		case "aging-refresh":
			return agingCLI.Refresh(ctx, os.Stdout)
		case "aging-export":
			return agingCLI.ExportCSV(ctx, os.Stdout)
		default:
			fs := flag.NewFlagSet(command, flag.ExitOnError)
			actor := fs.Int64("actor", 0, "user id recorded on the blocks")
			_ = fs.Parse(args)
			return agingCLI.AutoBlock(ctx, *actor, os.Stdout)
		}

	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}
