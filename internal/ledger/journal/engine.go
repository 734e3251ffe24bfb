package journal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/relaybooks/relaybooks/internal/observability"
	"github.com/relaybooks/relaybooks/internal/platform/db"
)

// Config carries the posting engine tunables.
type Config struct {
	// MaxRetries bounds entry-number generation attempts per posting.
	MaxRetries int
	// BackoffMin and BackoffJitter shape the randomized delay between
	// attempts: min + rand(jitter).
	BackoffMin    time.Duration
	BackoffJitter time.Duration
}

// DefaultConfig mirrors the production defaults.
func DefaultConfig() Config {
	return Config{MaxRetries: 5, BackoffMin: 10 * time.Millisecond, BackoffJitter: 50 * time.Millisecond}
}

// Engine posts balanced journal entries: it generates the daily sequential
// entry number, maintains per-account running balances and persists the
// entry with its lines, all inside the caller's transaction.
type Engine struct {
	store   Store
	cfg     Config
	logger  *slog.Logger
	metrics *observability.Metrics
	sleep   func(context.Context, time.Duration) error
}

// NewEngine builds an Engine. metrics may be nil.
func NewEngine(store Store, cfg Config, logger *slog.Logger, metrics *observability.Metrics) *Engine {
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = DefaultConfig().MaxRetries
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: store, cfg: cfg, logger: logger, metrics: metrics, sleep: sleepCtx}
}

// Post validates and persists a balanced journal entry. q must be a
// transaction; the entry header, every line and every account balance
// update commit or roll back together with whatever else the caller did.
func (e *Engine) Post(ctx context.Context, q db.DB, in PostingInput) (*Entry, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	entry, err := e.insertWithRetry(ctx, q, in)
	if err != nil {
		return nil, err
	}

	for _, li := range in.Lines {
		account, err := e.store.GetAccountForUpdate(ctx, q, li.AccountID)
		if err != nil {
			return nil, err
		}
		balance := account.CurrentBalance.Add(account.SignedDelta(li.Debit, li.Credit))
		if err := e.store.SetAccountBalance(ctx, q, account.ID, balance); err != nil {
			return nil, err
		}
		line := Line{
			EntryID:        entry.ID,
			AccountID:      li.AccountID,
			Debit:          li.Debit,
			Credit:         li.Credit,
			Description:    li.Description,
			RunningBalance: balance,
		}
		if err := e.store.InsertLine(ctx, q, &line); err != nil {
			return nil, err
		}
		entry.Lines = append(entry.Lines, line)
	}

	e.metrics.EntryPosted(string(in.SourceType))
	e.logger.Info("journal entry posted",
		slog.String("entry_number", entry.EntryNumber),
		slog.String("source_type", string(in.SourceType)),
		slog.Int64("source_id", in.SourceID))
	return entry, nil
}

// insertWithRetry generates the next entry number for the entry date's day
// and inserts the header, retrying on unique violations from concurrent
// generators.
func (e *Engine) insertWithRetry(ctx context.Context, q db.DB, in PostingInput) (*Entry, error) {
	prefix := DayPrefix(in.EntryDate)
	var lastErr error
	for attempt := 1; attempt <= e.cfg.MaxRetries; attempt++ {
		last, err := e.store.LastEntryNumberForDay(ctx, q, prefix)
		if err != nil {
			return nil, err
		}
		seq := 1
		if last != "" {
			prev, ok := ParseSequence(last)
			if ok {
				seq = prev + 1
			} else {
				e.logger.Warn("unparseable journal entry sequence, restarting at 1",
					slog.String("entry_number", last))
			}
		}

		entry := &Entry{
			EntryNumber: FormatEntryNumber(in.EntryDate, seq),
			EntryDate:   in.EntryDate,
			Description: in.Description,
			SourceType:  in.SourceType,
			SourceID:    in.SourceID,
			CreatedBy:   in.CreatedBy,
		}
		err = e.store.InsertEntry(ctx, q, entry)
		if err == nil {
			return entry, nil
		}
		if !errors.Is(err, ErrDuplicateEntryNumber) {
			return nil, err
		}
		lastErr = err
		e.metrics.EntryNumberRetry()
		e.logger.Warn("journal entry number collision, retrying",
			slog.String("entry_number", entry.EntryNumber),
			slog.Int("attempt", attempt),
			slog.Int("max_retries", e.cfg.MaxRetries))
		if attempt < e.cfg.MaxRetries {
			if err := e.sleep(ctx, e.backoff()); err != nil {
				return nil, err
			}
		}
	}
	e.metrics.EntryNumberExhausted()
	return nil, fmt.Errorf("%w after %d attempts: %v", ErrRetryExhausted, e.cfg.MaxRetries, lastErr)
}

func (e *Engine) backoff() time.Duration {
	d := e.cfg.BackoffMin
	if e.cfg.BackoffJitter > 0 {
		d += time.Duration(rand.Int63n(int64(e.cfg.BackoffJitter)))
	}
	return d
}

// HasEntryForSource reports whether a non-voided entry already exists for
// the business event. Callers use it as the idempotency check before
// invoking a translator.
func (e *Engine) HasEntryForSource(ctx context.Context, q db.DB, sourceType SourceType, sourceID int64) (bool, error) {
	return e.store.HasEntryForSource(ctx, q, sourceType, sourceID)
}

// EntryForSource returns the latest non-voided entry for a business event.
func (e *Engine) EntryForSource(ctx context.Context, q db.DB, sourceType SourceType, sourceID int64) (*Entry, error) {
	return e.store.GetEntryForSource(ctx, q, sourceType, sourceID)
}

// Void flags an entry as voided. History stays immutable; the caller is
// expected to post a reversing entry for the correction itself.
func (e *Engine) Void(ctx context.Context, q db.DB, entryID int64) error {
	return e.store.SetVoided(ctx, q, entryID, true)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
