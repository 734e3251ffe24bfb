package autopost

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/relaybooks/relaybooks/internal/platform/db"
)

type sqlStore struct{}

// NewStore returns the SQL-backed backfill store. It reads the order tables
// owned by the delivery service; everything here is read-only.
func NewStore() Store {
	return sqlStore{}
}

func (sqlStore) ListDeliveredOrdersMissingRevenue(ctx context.Context, q db.DB, limit int) ([]DeliveredOrder, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := q.Query(ctx, `SELECT o.id, o.total_amount::text,
	COALESCE(da.commission_amount, 0)::text,
	COALESCE(sr.commission_amount, 0)::text,
	o.revenue_recognized
FROM orders o
LEFT JOIN users da ON da.id = o.delivery_agent_id
LEFT JOIN users sr ON sr.id = o.customer_rep_id
WHERE o.status = 'delivered'
  AND o.deleted_at IS NULL
  AND NOT EXISTS (
	SELECT 1 FROM journal_entries je
	WHERE je.source_type = 'order_delivery' AND je.source_id = o.id AND NOT je.is_voided
  )
ORDER BY o.id
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []DeliveredOrder
	for rows.Next() {
		var o DeliveredOrder
		var total, agentComm, repComm string
		if err := rows.Scan(&o.OrderID, &total, &agentComm, &repComm, &o.RevenueRecognized); err != nil {
			return nil, err
		}
		if o.TotalAmount, err = decimal.NewFromString(total); err != nil {
			return nil, fmt.Errorf("autopost: parse order %d amount: %w", o.OrderID, err)
		}
		if o.AgentCommission, err = decimal.NewFromString(agentComm); err != nil {
			return nil, err
		}
		if o.RepCommission, err = decimal.NewFromString(repComm); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range orders {
		items, err := listOrderItems(ctx, q, orders[i].OrderID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}
	return orders, nil
}

func listOrderItems(ctx context.Context, q db.DB, orderID int64) ([]OrderItem, error) {
	rows, err := q.Query(ctx, `SELECT oi.product_id, p.name, oi.quantity, COALESCE(p.cogs, 0)::text
FROM order_items oi
JOIN products p ON p.id = oi.product_id
WHERE oi.order_id = $1
ORDER BY oi.id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []OrderItem
	for rows.Next() {
		var item OrderItem
		var cogs string
		if err := rows.Scan(&item.ProductID, &item.ProductName, &item.Quantity, &cogs); err != nil {
			return nil, err
		}
		if item.UnitCOGS, err = decimal.NewFromString(cogs); err != nil {
			return nil, fmt.Errorf("autopost: parse product %d cogs: %w", item.ProductID, err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
