package accounts

// Stable account codes used by the automated posting translators. These must
// match seeded rows in the accounts table; Registry.ResolveChart fails loudly
// when any of them is missing.
const (
	CodeCashInHand              = "1010"
	CodeCashInTransit           = "1015"
	CodeAgentAR                 = "1020"
	CodeInventory               = "1200"
	CodeRefundLiability         = "2010"
	CodeCommissionsPayable      = "2020"
	CodeProductRevenue          = "4010"
	CodeCOGS                    = "5010"
	CodeFailedDeliveryExpense   = "5020"
	CodeReturnProcessing        = "5030"
	CodeDeliveryAgentCommission = "5040"
	CodeSalesRepCommission      = "5050"
)

// Chart holds the storage identifiers of every account the translators post
// to, resolved once per process and invalidated on re-seed.
type Chart struct {
	CashInHand              int64
	CashInTransit           int64
	AgentAR                 int64
	Inventory               int64
	RefundLiability         int64
	CommissionsPayable      int64
	ProductRevenue          int64
	COGS                    int64
	FailedDeliveryExpense   int64
	ReturnProcessing        int64
	DeliveryAgentCommission int64
	SalesRepCommission      int64
}

// SeedAccount describes one pre-seeded chart entry.
type SeedAccount struct {
	Code string
	Name string
	Type AccountType
}

// SeedChart lists the fixed set of accounts the core posts against.
func SeedChart() []SeedAccount {
	return []SeedAccount{
		{Code: CodeCashInHand, Name: "Cash in Hand", Type: TypeAsset},
		{Code: CodeCashInTransit, Name: "Cash in Transit", Type: TypeAsset},
		{Code: CodeAgentAR, Name: "Accounts Receivable - Delivery Agents", Type: TypeAsset},
		{Code: CodeInventory, Name: "Inventory", Type: TypeAsset},
		{Code: CodeRefundLiability, Name: "Refund Liability", Type: TypeLiability},
		{Code: CodeCommissionsPayable, Name: "Commissions Payable", Type: TypeLiability},
		{Code: CodeProductRevenue, Name: "Product Revenue", Type: TypeRevenue},
		{Code: CodeCOGS, Name: "Cost of Goods Sold", Type: TypeExpense},
		{Code: CodeFailedDeliveryExpense, Name: "Failed Delivery Expense", Type: TypeExpense},
		{Code: CodeReturnProcessing, Name: "Return Processing Expense", Type: TypeExpense},
		{Code: CodeDeliveryAgentCommission, Name: "Delivery Agent Commission Expense", Type: TypeExpense},
		{Code: CodeSalesRepCommission, Name: "Sales Rep Commission Expense", Type: TypeExpense},
	}
}
