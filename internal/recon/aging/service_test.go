package aging

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/relaybooks/relaybooks/internal/platform/db"
	"github.com/relaybooks/relaybooks/internal/recon"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type memStore struct {
	outstanding []outstandingCollection
	snapshot    *Report
}

func (s *memStore) ListOutstanding(_ context.Context, _ db.DB) ([]outstandingCollection, error) {
	return s.outstanding, nil
}

func (s *memStore) ReplaceSnapshot(_ context.Context, _ db.DB, rows []Row, generatedAt time.Time) error {
	s.snapshot = &Report{Rows: rows, GeneratedAt: generatedAt}
	return nil
}

func (s *memStore) ListSnapshot(_ context.Context, _ db.DB) (*Report, error) {
	if s.snapshot == nil {
		return &Report{}, nil
	}
	return s.snapshot, nil
}

type memTxer struct{}

func (memTxer) WithTx(ctx context.Context, fn func(ctx context.Context, tx db.DB) error) error {
	return fn(ctx, nil)
}

type fakeBlocker struct {
	blocked   map[int64]string
	blockedBy map[int64]int64
	fail      error
}

func newFakeBlocker() *fakeBlocker {
	return &fakeBlocker{blocked: make(map[int64]string), blockedBy: make(map[int64]int64)}
}

func (b *fakeBlocker) BlockAgent(_ context.Context, agentID, blockerID int64, reason string) (*recon.AgentBalance, error) {
	if b.fail != nil {
		return nil, b.fail
	}
	b.blocked[agentID] = reason
	b.blockedBy[agentID] = blockerID
	return &recon.AgentBalance{AgentID: agentID, IsBlocked: true, BlockReason: reason}, nil
}

func (b *fakeBlocker) ListBlockedAgents(_ context.Context) ([]recon.AgentBalance, error) {
	var out []recon.AgentBalance
	for agentID, reason := range b.blocked {
		out = append(out, recon.AgentBalance{AgentID: agentID, IsBlocked: true, BlockReason: reason})
	}
	return out, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(store *memStore, blocker AgentBlocker, now time.Time) *Service {
	svc := NewService(store, memTxer{}, nil, blocker, nil, testLogger())
	return svc.WithNow(func() time.Time { return now })
}

func TestDaysSince(t *testing.T) {
	now := time.Date(2026, 7, 10, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		elapsed time.Duration
		want    int
	}{
		{0, 0},
		{23 * time.Hour, 0},
		{24 * time.Hour, 1},
		{25 * time.Hour, 1},
		{48 * time.Hour, 2},
		{192 * time.Hour, 8},
	}
	for _, tc := range cases {
		got := daysSince(now.Add(-tc.elapsed), now)
		require.Equal(t, tc.want, got, "elapsed %s", tc.elapsed)
	}

	// A future-dated collection is clamped to zero days.
	require.Equal(t, 0, daysSince(now.Add(time.Hour), now))
}

func TestRefreshAllBucketsByAge(t *testing.T) {
	now := time.Date(2026, 7, 10, 12, 0, 0, 0, time.UTC)
	store := &memStore{
		outstanding: []outstandingCollection{
			{AgentID: 1, AgentName: "Amina", Outstanding: dec("100.00"), CollectionDate: now},
			{AgentID: 1, AgentName: "Amina", Outstanding: dec("200.00"), CollectionDate: now.Add(-2 * 24 * time.Hour)},
			{AgentID: 1, AgentName: "Amina", Outstanding: dec("300.00"), CollectionDate: now.Add(-5 * 24 * time.Hour)},
			{AgentID: 1, AgentName: "Amina", Outstanding: dec("400.00"), CollectionDate: now.Add(-11 * 24 * time.Hour)},
			{AgentID: 2, AgentName: "Bilal", Outstanding: dec("50.00"), CollectionDate: now.Add(-24 * time.Hour)},
		},
	}
	svc := newTestService(store, newFakeBlocker(), now)

	report, err := svc.RefreshAll(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Rows, 2)

	amina := report.Rows[0]
	require.Equal(t, int64(1), amina.AgentID)
	require.True(t, amina.Bucket0To1.Equal(dec("100.00")))
	require.True(t, amina.Bucket2To3.Equal(dec("200.00")))
	require.True(t, amina.Bucket4To7.Equal(dec("300.00")))
	require.True(t, amina.Bucket8Plus.Equal(dec("400.00")))
	require.True(t, amina.TotalOutstanding.Equal(dec("1000.00")))
	require.Equal(t, now.Add(-11*24*time.Hour), amina.OldestCollection)
	require.True(t, amina.Overdue())

	bilal := report.Rows[1]
	require.True(t, bilal.Bucket0To1.Equal(dec("50.00")))
	require.True(t, bilal.TotalOutstanding.Equal(dec("50.00")))
	require.False(t, bilal.Overdue())

	// The snapshot was persisted.
	require.NotNil(t, store.snapshot)
	require.Len(t, store.snapshot.Rows, 2)
}

func TestRefreshAllEmpty(t *testing.T) {
	store := &memStore{}
	svc := newTestService(store, newFakeBlocker(), time.Now())

	report, err := svc.RefreshAll(context.Background())
	require.NoError(t, err)
	require.Empty(t, report.Rows)
	require.NotNil(t, store.snapshot)
}

func TestAutoBlockOverdueAgents(t *testing.T) {
	now := time.Date(2026, 7, 10, 12, 0, 0, 0, time.UTC)
	store := &memStore{
		outstanding: []outstandingCollection{
			{AgentID: 1, AgentName: "Amina", Outstanding: dec("300.00"), CollectionDate: now.Add(-5 * 24 * time.Hour)},
			{AgentID: 2, AgentName: "Bilal", Outstanding: dec("50.00"), CollectionDate: now.Add(-24 * time.Hour)},
			{AgentID: 3, AgentName: "Chidi", Outstanding: dec("900.00"), CollectionDate: now.Add(-10 * 24 * time.Hour)},
		},
	}
	blocker := newFakeBlocker()
	svc := newTestService(store, blocker, now)

	_, err := svc.RefreshAll(context.Background())
	require.NoError(t, err)

	count, err := svc.AutoBlockOverdueAgents(context.Background(), 42)
	require.NoError(t, err)
	require.Equal(t, 2, count)
	require.Equal(t, "Automatic block: Overdue collection balance (4+ days)", blocker.blocked[1])
	require.Equal(t, "Automatic block: Overdue collection balance (4+ days)", blocker.blocked[3])
	require.NotContains(t, blocker.blocked, int64(2))

	// The sweep is attributed to the actor who triggered it.
	require.Equal(t, int64(42), blocker.blockedBy[1])
	require.Equal(t, int64(42), blocker.blockedBy[3])

	// A second sweep blocks nobody new.
	count, err = svc.AutoBlockOverdueAgents(context.Background(), 42)
	require.NoError(t, err)
	require.Equal(t, 0, count)
}

func TestAutoBlockContinuesPastFailures(t *testing.T) {
	now := time.Date(2026, 7, 10, 12, 0, 0, 0, time.UTC)
	store := &memStore{
		outstanding: []outstandingCollection{
			{AgentID: 1, AgentName: "Amina", Outstanding: dec("300.00"), CollectionDate: now.Add(-5 * 24 * time.Hour)},
		},
	}
	blocker := newFakeBlocker()
	blocker.fail = context.DeadlineExceeded
	svc := newTestService(store, blocker, now)

	_, err := svc.RefreshAll(context.Background())
	require.NoError(t, err)

	count, err := svc.AutoBlockOverdueAgents(context.Background(), 42)
	require.NoError(t, err)
	require.Equal(t, 0, count)
}
