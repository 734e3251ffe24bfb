package aging

import (
	"time"

	"github.com/shopspring/decimal"
)

// Row is one agent's outstanding cash broken down by how long it has been
// outstanding. Buckets are measured in whole elapsed days since the
// collection date.
type Row struct {
	AgentID          int64           `json:"agentId"`
	AgentName        string          `json:"agentName"`
	TotalOutstanding decimal.Decimal `json:"totalOutstanding"`
	Bucket0To1       decimal.Decimal `json:"bucket0to1"`
	Bucket2To3       decimal.Decimal `json:"bucket2to3"`
	Bucket4To7       decimal.Decimal `json:"bucket4to7"`
	Bucket8Plus      decimal.Decimal `json:"bucket8plus"`
	OldestCollection time.Time       `json:"oldestCollection"`
}

// Overdue reports whether any amount has been outstanding four days or
// longer.
func (r Row) Overdue() bool {
	return r.Bucket4To7.IsPositive() || r.Bucket8Plus.IsPositive()
}

// Report is the full aging snapshot, worst agents first.
type Report struct {
	Rows        []Row     `json:"rows"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// outstandingCollection is the raw input to a refresh: one unsettled
// collection with its live outstanding amount.
type outstandingCollection struct {
	AgentID        int64
	AgentName      string
	Outstanding    decimal.Decimal
	CollectionDate time.Time
}

// daysSince returns whole elapsed days between then and now. A collection
// made 24 hours ago is 1 day old; 23 hours ago is 0 days.
func daysSince(then, now time.Time) int {
	d := now.UTC().Sub(then.UTC())
	if d < 0 {
		return 0
	}
	return int(d.Hours() / 24)
}

// bucketize accumulates the outstanding amount into the right bucket of
// the row.
func (r *Row) bucketize(amount decimal.Decimal, days int) {
	switch {
	case days <= 1:
		r.Bucket0To1 = r.Bucket0To1.Add(amount)
	case days <= 3:
		r.Bucket2To3 = r.Bucket2To3.Add(amount)
	case days <= 7:
		r.Bucket4To7 = r.Bucket4To7.Add(amount)
	default:
		r.Bucket8Plus = r.Bucket8Plus.Add(amount)
	}
	r.TotalOutstanding = r.TotalOutstanding.Add(amount)
}
