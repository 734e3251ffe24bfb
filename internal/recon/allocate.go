package recon

import "github.com/shopspring/decimal"

// allocateFIFO spreads amount across collections in the order given,
// filling each collection's outstanding portion before moving to the next.
// The last collection touched may end up partially allocated. Collections
// with nothing outstanding are skipped. The second return value is whatever
// could not be allocated.
func allocateFIFO(collections []Collection, amount decimal.Decimal) ([]Allocation, decimal.Decimal) {
	remaining := amount
	var allocs []Allocation
	for _, c := range collections {
		if !remaining.IsPositive() {
			break
		}
		outstanding := c.Outstanding()
		if !outstanding.IsPositive() {
			continue
		}
		applied := decimal.Min(outstanding, remaining)
		newAllocated := c.AllocatedAmount.Add(applied)
		allocs = append(allocs, Allocation{
			CollectionID:   c.ID,
			Applied:        applied,
			NewAllocated:   newAllocated,
			FullyAllocated: newAllocated.Equal(c.Amount),
		})
		remaining = remaining.Sub(applied)
	}
	return allocs, remaining
}
