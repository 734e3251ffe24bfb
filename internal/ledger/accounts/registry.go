package accounts

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/relaybooks/relaybooks/internal/platform/db"
	"github.com/relaybooks/relaybooks/internal/shared"
)

// ErrAccountNotSeeded indicates a chart code that has no seeded account row.
// Posting to an unresolved account would corrupt the ledger, so this is a
// configuration failure the caller must not swallow.
var ErrAccountNotSeeded = errors.New("accounts: required account not seeded")

// Registry caches account code to id lookups. It is an explicit object
// rather than process-wide state so tests and re-seeding can clear it.
type Registry struct {
	store Store

	mu     sync.RWMutex
	byCode map[string]int64
}

// NewRegistry returns an empty registry backed by the given store.
func NewRegistry(store Store) *Registry {
	return &Registry{store: store, byCode: make(map[string]int64)}
}

// Resolve maps a stable account code to its storage id, reading through the
// cache on a miss. A code with no seeded account is fatal.
func (r *Registry) Resolve(ctx context.Context, q db.DB, code string) (int64, error) {
	r.mu.RLock()
	id, ok := r.byCode[code]
	r.mu.RUnlock()
	if ok {
		return id, nil
	}

	account, err := r.store.GetByCode(ctx, q, code)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return 0, fmt.Errorf("%w: %s", ErrAccountNotSeeded, code)
		}
		return 0, err
	}

	r.mu.Lock()
	r.byCode[code] = account.ID
	r.mu.Unlock()
	return account.ID, nil
}

// Invalidate clears the cache. Call after re-seeding accounts.
func (r *Registry) Invalidate() {
	r.mu.Lock()
	r.byCode = make(map[string]int64)
	r.mu.Unlock()
}

// ResolveChart resolves every account the translators post to.
func (r *Registry) ResolveChart(ctx context.Context, q db.DB) (Chart, error) {
	var c Chart
	for _, bind := range []struct {
		code string
		dst  *int64
	}{
		{CodeCashInHand, &c.CashInHand},
		{CodeCashInTransit, &c.CashInTransit},
		{CodeAgentAR, &c.AgentAR},
		{CodeInventory, &c.Inventory},
		{CodeRefundLiability, &c.RefundLiability},
		{CodeCommissionsPayable, &c.CommissionsPayable},
		{CodeProductRevenue, &c.ProductRevenue},
		{CodeCOGS, &c.COGS},
		{CodeFailedDeliveryExpense, &c.FailedDeliveryExpense},
		{CodeReturnProcessing, &c.ReturnProcessing},
		{CodeDeliveryAgentCommission, &c.DeliveryAgentCommission},
		{CodeSalesRepCommission, &c.SalesRepCommission},
	} {
		id, err := r.Resolve(ctx, q, bind.code)
		if err != nil {
			return Chart{}, err
		}
		*bind.dst = id
	}
	return c, nil
}
