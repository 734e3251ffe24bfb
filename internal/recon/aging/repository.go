package aging

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/relaybooks/relaybooks/internal/platform/db"
)

// Store persists the precomputed aging snapshot in agent_aging_reports.
type Store interface {
	ListOutstanding(ctx context.Context, q db.DB) ([]outstandingCollection, error)
	ReplaceSnapshot(ctx context.Context, q db.DB, rows []Row, generatedAt time.Time) error
	ListSnapshot(ctx context.Context, q db.DB) (*Report, error)
}

type sqlStore struct{}

// NewStore returns the Postgres-backed Store.
func NewStore() Store { return sqlStore{} }

// ListOutstanding returns every unsettled collection with its live
// outstanding amount. Collections on soft-deleted orders are excluded.
func (sqlStore) ListOutstanding(ctx context.Context, q db.DB) ([]outstandingCollection, error) {
	rows, err := q.Query(ctx, `
		SELECT c.agent_id, COALESCE(u.name, ''), (c.amount - c.allocated_amount)::text, c.collection_date
		FROM agent_collections c
		JOIN orders o ON o.id = c.order_id AND o.deleted_at IS NULL
		LEFT JOIN users u ON u.id = c.agent_id
		WHERE c.status IN ('draft', 'verified', 'approved')
		  AND c.allocated_amount < c.amount
		ORDER BY c.agent_id, c.collection_date`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []outstandingCollection
	for rows.Next() {
		var (
			oc     outstandingCollection
			amount string
		)
		if err := rows.Scan(&oc.AgentID, &oc.AgentName, &amount, &oc.CollectionDate); err != nil {
			return nil, err
		}
		if oc.Outstanding, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("parse outstanding amount: %w", err)
		}
		out = append(out, oc)
	}
	return out, rows.Err()
}

// ReplaceSnapshot upserts the given rows and removes agents no longer
// carrying any outstanding balance.
func (sqlStore) ReplaceSnapshot(ctx context.Context, q db.DB, rows []Row, generatedAt time.Time) error {
	agentIDs := make([]int64, 0, len(rows))
	for _, r := range rows {
		agentIDs = append(agentIDs, r.AgentID)
	}
	if _, err := q.Exec(ctx, `
		DELETE FROM agent_aging_reports
		WHERE agent_id <> ALL($1)`, agentIDs); err != nil {
		return err
	}
	for _, r := range rows {
		_, err := q.Exec(ctx, `
			INSERT INTO agent_aging_reports
				(agent_id, agent_name, total_outstanding, bucket_0_1, bucket_2_3, bucket_4_7, bucket_8_plus, oldest_collection, generated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (agent_id) DO UPDATE SET
				agent_name = EXCLUDED.agent_name,
				total_outstanding = EXCLUDED.total_outstanding,
				bucket_0_1 = EXCLUDED.bucket_0_1,
				bucket_2_3 = EXCLUDED.bucket_2_3,
				bucket_4_7 = EXCLUDED.bucket_4_7,
				bucket_8_plus = EXCLUDED.bucket_8_plus,
				oldest_collection = EXCLUDED.oldest_collection,
				generated_at = EXCLUDED.generated_at`,
			r.AgentID, r.AgentName,
			r.TotalOutstanding.String(), r.Bucket0To1.String(), r.Bucket2To3.String(),
			r.Bucket4To7.String(), r.Bucket8Plus.String(),
			r.OldestCollection, generatedAt)
		if err != nil {
			return err
		}
	}
	return nil
}

// ListSnapshot reads the stored report, worst agents first.
func (sqlStore) ListSnapshot(ctx context.Context, q db.DB) (*Report, error) {
	rows, err := q.Query(ctx, `
		SELECT agent_id, agent_name,
		       total_outstanding::text, bucket_0_1::text, bucket_2_3::text, bucket_4_7::text, bucket_8_plus::text,
		       oldest_collection, generated_at
		FROM agent_aging_reports
		ORDER BY bucket_8_plus DESC, total_outstanding DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	report := &Report{}
	for rows.Next() {
		var (
			r                        Row
			total, b01, b23, b47, b8 string
		)
		if err := rows.Scan(&r.AgentID, &r.AgentName, &total, &b01, &b23, &b47, &b8, &r.OldestCollection, &report.GeneratedAt); err != nil {
			return nil, err
		}
		for _, p := range []struct {
			dst *decimal.Decimal
			src string
		}{
			{&r.TotalOutstanding, total},
			{&r.Bucket0To1, b01},
			{&r.Bucket2To3, b23},
			{&r.Bucket4To7, b47},
			{&r.Bucket8Plus, b8},
		} {
			if *p.dst, err = decimal.NewFromString(p.src); err != nil {
				return nil, fmt.Errorf("parse aging bucket: %w", err)
			}
		}
		report.Rows = append(report.Rows, r)
	}
	return report, rows.Err()
}
