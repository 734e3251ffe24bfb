package autopost

import "github.com/shopspring/decimal"

// OrderItem is one line of a delivered order, pre-loaded by the caller.
type OrderItem struct {
	ProductID   int64
	ProductName string
	Quantity    int64
	UnitCOGS    decimal.Decimal
}

// DeliveredOrder is the business event behind revenue recognition and, with
// the same shape, behind return reversal.
type DeliveredOrder struct {
	OrderID           int64
	TotalAmount       decimal.Decimal
	AgentCommission   decimal.Decimal
	RepCommission     decimal.Decimal
	Items             []OrderItem
	RevenueRecognized bool
}

// FailedDelivery is a delivery that failed and was not rescheduled.
type FailedDelivery struct {
	DeliveryID int64
	OrderID    int64
}

// CommissionPayout is a commission payment to an agent or rep.
type CommissionPayout struct {
	PayoutID int64
	Amount   decimal.Decimal
}

// TotalCOGS sums unit COGS times quantity over the order items. Missing
// COGS counts as zero; callers log the gap, posting is never blocked by it.
func TotalCOGS(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.UnitCOGS.Mul(decimal.NewFromInt(item.Quantity)))
	}
	return total
}

// MissingCOGS names the products with no COGS configured.
func MissingCOGS(items []OrderItem) []string {
	var missing []string
	for _, item := range items {
		if item.UnitCOGS.IsZero() {
			missing = append(missing, item.ProductName)
		}
	}
	return missing
}
