package autopost

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/relaybooks/relaybooks/internal/ledger/accounts"
	"github.com/relaybooks/relaybooks/internal/ledger/journal"
)

// Line builders are pure mappings from a business event to balanced ledger
// lines. All the commission split, COGS threshold and reversal symmetry
// rules live here.

// RevenueRecognitionLines builds the delivery-completed posting:
//
//	debit  Cash in Transit         orderAmount − agentCommission
//	credit Product Revenue         orderAmount
//	debit  Agent Commission Exp.   agentCommission        (if > 0)
//	debit  Rep Commission Exp.     repCommission          (if > 0)
//	credit Commissions Payable     repCommission          (if > 0)
//	debit  COGS / credit Inventory totalCOGS              (if > minCOGS)
func RevenueRecognitionLines(chart accounts.Chart, order DeliveredOrder, minCOGS decimal.Decimal) ([]journal.LineInput, error) {
	if !order.TotalAmount.IsPositive() {
		return nil, fmt.Errorf("autopost: order %d amount must be positive, got %s", order.OrderID, order.TotalAmount)
	}
	if order.AgentCommission.IsNegative() || order.RepCommission.IsNegative() {
		return nil, fmt.Errorf("autopost: order %d has negative commission", order.OrderID)
	}
	cashInTransit := order.TotalAmount.Sub(order.AgentCommission)
	if cashInTransit.IsNegative() {
		return nil, fmt.Errorf("autopost: order %d agent commission %s exceeds order amount %s", order.OrderID, order.AgentCommission, order.TotalAmount)
	}

	lines := []journal.LineInput{
		{
			AccountID:   chart.CashInTransit,
			Debit:       cashInTransit,
			Description: fmt.Sprintf("Cash from delivered order %d (net of commission)", order.OrderID),
		},
		{
			AccountID:   chart.ProductRevenue,
			Credit:      order.TotalAmount,
			Description: "Product sales revenue",
		},
	}
	if order.AgentCommission.IsPositive() {
		lines = append(lines, journal.LineInput{
			AccountID:   chart.DeliveryAgentCommission,
			Debit:       order.AgentCommission,
			Description: "Delivery agent commission expense",
		})
	}
	if order.RepCommission.IsPositive() {
		lines = append(lines,
			journal.LineInput{
				AccountID:   chart.SalesRepCommission,
				Debit:       order.RepCommission,
				Description: "Sales representative commission expense",
			},
			journal.LineInput{
				AccountID:   chart.CommissionsPayable,
				Credit:      order.RepCommission,
				Description: "Sales representative commission payable",
			})
	}
	if totalCOGS := TotalCOGS(order.Items); totalCOGS.GreaterThan(minCOGS) {
		lines = append(lines,
			journal.LineInput{
				AccountID:   chart.COGS,
				Debit:       totalCOGS,
				Description: "Cost of goods sold",
			},
			journal.LineInput{
				AccountID:   chart.Inventory,
				Credit:      totalCOGS,
				Description: "Inventory reduction",
			})
	}
	return lines, nil
}

// ReturnReversalLines is the exact mirror image of the revenue-recognition
// lines (debits and credits swapped, same amounts), plus an optional return
// processing fee against the refund liability.
func ReturnReversalLines(chart accounts.Chart, order DeliveredOrder, processingFee, minCOGS decimal.Decimal) ([]journal.LineInput, error) {
	original, err := RevenueRecognitionLines(chart, order, minCOGS)
	if err != nil {
		return nil, err
	}
	lines := make([]journal.LineInput, 0, len(original)+2)
	for _, line := range original {
		lines = append(lines, journal.LineInput{
			AccountID:   line.AccountID,
			Debit:       line.Credit,
			Credit:      line.Debit,
			Description: line.Description + " reversal",
		})
	}
	if processingFee.IsPositive() {
		lines = append(lines,
			journal.LineInput{
				AccountID:   chart.ReturnProcessing,
				Debit:       processingFee,
				Description: "Return processing cost",
			},
			journal.LineInput{
				AccountID:   chart.RefundLiability,
				Credit:      processingFee,
				Description: "Customer refund pending",
			})
	}
	return lines, nil
}

// FailedDeliveryLines records the fixed operational cost of a failed
// delivery.
func FailedDeliveryLines(chart accounts.Chart, orderID int64, fee decimal.Decimal) []journal.LineInput {
	return []journal.LineInput{
		{
			AccountID:   chart.FailedDeliveryExpense,
			Debit:       fee,
			Description: fmt.Sprintf("Failed delivery - Order #%d", orderID),
		},
		{
			AccountID:   chart.CashInHand,
			Credit:      fee,
			Description: "Cash impact of failed delivery",
		},
	}
}

// CollectionVerifiedLines moves a verified agent collection out of cash in
// transit into the agent's receivable.
func CollectionVerifiedLines(chart accounts.Chart, collectionID int64, amount decimal.Decimal) []journal.LineInput {
	return []journal.LineInput{
		{
			AccountID:   chart.AgentAR,
			Debit:       amount,
			Description: fmt.Sprintf("Agent AR for collection %d", collectionID),
		},
		{
			AccountID:   chart.CashInTransit,
			Credit:      amount,
			Description: "Moving cash from transit to agent AR",
		},
	}
}

// DepositVerifiedLines settles an agent receivable against a verified bank
// deposit.
func DepositVerifiedLines(chart accounts.Chart, depositID int64, amount decimal.Decimal) []journal.LineInput {
	return []journal.LineInput{
		{
			AccountID:   chart.CashInHand,
			Debit:       amount,
			Description: fmt.Sprintf("Cash received for deposit %d", depositID),
		},
		{
			AccountID:   chart.AgentAR,
			Credit:      amount,
			Description: "Agent AR settled by deposit",
		},
	}
}

// CommissionPayoutLines clears the commissions payable with cash.
func CommissionPayoutLines(chart accounts.Chart, payoutID int64, amount decimal.Decimal) []journal.LineInput {
	return []journal.LineInput{
		{
			AccountID:   chart.CommissionsPayable,
			Debit:       amount,
			Description: fmt.Sprintf("Commission payout %d", payoutID),
		},
		{
			AccountID:   chart.CashInHand,
			Credit:      amount,
			Description: "Cash paid for commissions",
		},
	}
}
