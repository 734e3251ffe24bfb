package journal

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/relaybooks/relaybooks/internal/ledger/accounts"
	"github.com/relaybooks/relaybooks/internal/platform/db"
)

type memStore struct {
	entries     map[string]*Entry
	accounts    map[int64]*accounts.Account
	lines       []Line
	nextID      int64
	forcedDupes int
}

func newMemStore(accts ...accounts.Account) *memStore {
	s := &memStore{
		entries:  make(map[string]*Entry),
		accounts: make(map[int64]*accounts.Account),
	}
	for i := range accts {
		a := accts[i]
		s.accounts[a.ID] = &a
	}
	return s
}

func (s *memStore) LastEntryNumberForDay(_ context.Context, _ db.DB, prefix string) (string, error) {
	last := ""
	for number := range s.entries {
		if strings.HasPrefix(number, prefix) && number > last {
			last = number
		}
	}
	return last, nil
}

func (s *memStore) InsertEntry(_ context.Context, _ db.DB, e *Entry) error {
	if s.forcedDupes > 0 {
		// A concurrent writer won this number and committed, so the
		// contested number is taken and the next max re-read sees it.
		s.forcedDupes--
		s.nextID++
		s.entries[e.EntryNumber] = &Entry{
			ID:          s.nextID,
			EntryNumber: e.EntryNumber,
			EntryDate:   e.EntryDate,
			SourceType:  SourceManual,
			SourceID:    -s.nextID,
			CreatedAt:   time.Now(),
		}
		return ErrDuplicateEntryNumber
	}
	if _, exists := s.entries[e.EntryNumber]; exists {
		return ErrDuplicateEntryNumber
	}
	s.nextID++
	e.ID = s.nextID
	e.CreatedAt = time.Now()
	s.entries[e.EntryNumber] = e
	return nil
}

func (s *memStore) InsertLine(_ context.Context, _ db.DB, l *Line) error {
	s.nextID++
	l.ID = s.nextID
	s.lines = append(s.lines, *l)
	return nil
}

func (s *memStore) GetAccountForUpdate(_ context.Context, _ db.DB, accountID int64) (accounts.Account, error) {
	a, ok := s.accounts[accountID]
	if !ok {
		return accounts.Account{}, accounts.ErrAccountNotSeeded
	}
	return *a, nil
}

func (s *memStore) SetAccountBalance(_ context.Context, _ db.DB, accountID int64, balance decimal.Decimal) error {
	s.accounts[accountID].CurrentBalance = balance
	return nil
}

func (s *memStore) HasEntryForSource(_ context.Context, _ db.DB, sourceType SourceType, sourceID int64) (bool, error) {
	e, err := s.GetEntryForSource(nil, nil, sourceType, sourceID)
	if err != nil {
		return false, nil
	}
	return e != nil, nil
}

func (s *memStore) GetEntryForSource(_ context.Context, _ db.DB, sourceType SourceType, sourceID int64) (*Entry, error) {
	for _, e := range s.entries {
		if e.SourceType == sourceType && e.SourceID == sourceID && !e.IsVoided {
			return e, nil
		}
	}
	return nil, ErrEntryNotFound
}

func (s *memStore) SetVoided(_ context.Context, _ db.DB, entryID int64, voided bool) error {
	for _, e := range s.entries {
		if e.ID == entryID {
			e.IsVoided = voided
			return nil
		}
	}
	return ErrEntryNotFound
}

func testAccounts() (accounts.Account, accounts.Account) {
	cash := accounts.Account{
		ID: 1, Code: "1010", Name: "Cash in Hand",
		Type: accounts.TypeAsset, NormalBalance: accounts.NormalDebit,
		CurrentBalance: decimal.Zero, IsActive: true,
	}
	revenue := accounts.Account{
		ID: 2, Code: "4010", Name: "Product Revenue",
		Type: accounts.TypeRevenue, NormalBalance: accounts.NormalCredit,
		CurrentBalance: decimal.Zero, IsActive: true,
	}
	return cash, revenue
}

func newTestEngine(store Store) *Engine {
	e := NewEngine(store, DefaultConfig(), nil, nil)
	e.sleep = func(context.Context, time.Duration) error { return nil }
	return e
}

func TestPostBalancedEntry(t *testing.T) {
	cash, revenue := testAccounts()
	store := newMemStore(cash, revenue)
	engine := newTestEngine(store)

	day := time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)
	entry, err := engine.Post(context.Background(), nil, PostingInput{
		Lines: []LineInput{
			{AccountID: 1, Debit: decimal.RequireFromString("150.00")},
			{AccountID: 2, Credit: decimal.RequireFromString("150.00")},
		},
		EntryDate:   day,
		Description: "Test sale",
		SourceType:  SourceOrderDelivery,
		SourceID:    77,
		CreatedBy:   3,
	})
	require.NoError(t, err)
	require.Equal(t, "JE-20260502-00001", entry.EntryNumber)
	require.Len(t, entry.Lines, 2)

	// Running balances snapshot the account immediately after each line.
	require.True(t, entry.Lines[0].RunningBalance.Equal(decimal.RequireFromString("150.00")))
	require.True(t, entry.Lines[1].RunningBalance.Equal(decimal.RequireFromString("150.00")))
	require.True(t, store.accounts[1].CurrentBalance.Equal(decimal.RequireFromString("150.00")))
	require.True(t, store.accounts[2].CurrentBalance.Equal(decimal.RequireFromString("150.00")))
}

func TestPostSequenceIncrementsWithinDay(t *testing.T) {
	cash, revenue := testAccounts()
	store := newMemStore(cash, revenue)
	engine := newTestEngine(store)
	day := time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)

	for i := 1; i <= 3; i++ {
		entry, err := engine.Post(context.Background(), nil, PostingInput{
			Lines: []LineInput{
				{AccountID: 1, Debit: decimal.NewFromInt(10)},
				{AccountID: 2, Credit: decimal.NewFromInt(10)},
			},
			EntryDate:  day,
			SourceType: SourceManual,
			SourceID:   int64(i),
		})
		require.NoError(t, err)
		require.Equal(t, FormatEntryNumber(day, i), entry.EntryNumber)
	}

	// A different day restarts the sequence.
	nextDay := day.AddDate(0, 0, 1)
	entry, err := engine.Post(context.Background(), nil, PostingInput{
		Lines: []LineInput{
			{AccountID: 1, Debit: decimal.NewFromInt(10)},
			{AccountID: 2, Credit: decimal.NewFromInt(10)},
		},
		EntryDate:  nextDay,
		SourceType: SourceManual,
		SourceID:   99,
	})
	require.NoError(t, err)
	require.Equal(t, FormatEntryNumber(nextDay, 1), entry.EntryNumber)
}

func TestPostRejectsUnbalancedInput(t *testing.T) {
	cash, revenue := testAccounts()
	store := newMemStore(cash, revenue)
	engine := newTestEngine(store)

	_, err := engine.Post(context.Background(), nil, PostingInput{
		Lines: []LineInput{
			{AccountID: 1, Debit: decimal.RequireFromString("100.00")},
			{AccountID: 2, Credit: decimal.RequireFromString("99.99")},
		},
		EntryDate:  time.Now(),
		SourceType: SourceManual,
		SourceID:   1,
	})
	require.ErrorIs(t, err, ErrUnbalanced)
	require.Empty(t, store.entries)
	require.Empty(t, store.lines)
}

func TestPostValidation(t *testing.T) {
	cash, _ := testAccounts()
	engine := newTestEngine(newMemStore(cash))

	_, err := engine.Post(context.Background(), nil, PostingInput{
		Lines: []LineInput{
			{AccountID: 1, Debit: decimal.NewFromInt(10)},
		},
		SourceType: SourceManual,
		SourceID:   1,
	})
	require.ErrorIs(t, err, ErrTooFewLines)

	_, err = engine.Post(context.Background(), nil, PostingInput{
		Lines: []LineInput{
			{AccountID: 1, Debit: decimal.NewFromInt(10), Credit: decimal.NewFromInt(10)},
			{AccountID: 1, Credit: decimal.NewFromInt(10)},
		},
		SourceType: SourceManual,
		SourceID:   1,
	})
	require.ErrorContains(t, err, "both debit and credit")

	_, err = engine.Post(context.Background(), nil, PostingInput{
		Lines: []LineInput{
			{AccountID: 1, Debit: decimal.NewFromInt(-5)},
			{AccountID: 1, Credit: decimal.NewFromInt(-5)},
		},
		SourceType: SourceManual,
		SourceID:   1,
	})
	require.ErrorContains(t, err, "negative amount")
}

func TestPostRetriesOnNumberCollision(t *testing.T) {
	cash, revenue := testAccounts()
	store := newMemStore(cash, revenue)
	store.forcedDupes = 2
	engine := newTestEngine(store)
	day := time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC)

	entry, err := engine.Post(context.Background(), nil, PostingInput{
		Lines: []LineInput{
			{AccountID: 1, Debit: decimal.NewFromInt(10)},
			{AccountID: 2, Credit: decimal.NewFromInt(10)},
		},
		EntryDate:  day,
		SourceType: SourceManual,
		SourceID:   1,
	})
	require.NoError(t, err)
	require.Equal(t, 0, store.forcedDupes)

	// Each retry must re-read the day's max, see the competitor's committed
	// number and advance past it, never regenerate the contested one.
	require.Equal(t, FormatEntryNumber(day, 3), entry.EntryNumber)
}

func TestPostExhaustsRetries(t *testing.T) {
	cash, revenue := testAccounts()
	store := newMemStore(cash, revenue)
	store.forcedDupes = DefaultConfig().MaxRetries
	engine := newTestEngine(store)

	_, err := engine.Post(context.Background(), nil, PostingInput{
		Lines: []LineInput{
			{AccountID: 1, Debit: decimal.NewFromInt(10)},
			{AccountID: 2, Credit: decimal.NewFromInt(10)},
		},
		EntryDate:  time.Now(),
		SourceType: SourceManual,
		SourceID:   1,
	})
	require.ErrorIs(t, err, ErrRetryExhausted)
}

func TestVoidKeepsHistory(t *testing.T) {
	cash, revenue := testAccounts()
	store := newMemStore(cash, revenue)
	engine := newTestEngine(store)
	ctx := context.Background()

	entry, err := engine.Post(ctx, nil, PostingInput{
		Lines: []LineInput{
			{AccountID: 1, Debit: decimal.NewFromInt(25)},
			{AccountID: 2, Credit: decimal.NewFromInt(25)},
		},
		EntryDate:  time.Now(),
		SourceType: SourceOrderDelivery,
		SourceID:   5,
	})
	require.NoError(t, err)

	ok, err := engine.HasEntryForSource(ctx, nil, SourceOrderDelivery, 5)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, engine.Void(ctx, nil, entry.ID))

	ok, err = engine.HasEntryForSource(ctx, nil, SourceOrderDelivery, 5)
	require.NoError(t, err)
	require.False(t, ok)
	// Lines are never deleted, and balances keep the entry's effect until a
	// reversing entry is posted.
	require.Len(t, store.lines, 2)
	require.True(t, store.accounts[1].CurrentBalance.Equal(decimal.NewFromInt(25)))
	require.True(t, store.accounts[2].CurrentBalance.Equal(decimal.NewFromInt(25)))
}
