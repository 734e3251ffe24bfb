package accounts

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestNormalBalanceFor(t *testing.T) {
	cases := []struct {
		accountType AccountType
		want        NormalBalance
	}{
		{TypeAsset, NormalDebit},
		{TypeExpense, NormalDebit},
		{TypeLiability, NormalCredit},
		{TypeEquity, NormalCredit},
		{TypeRevenue, NormalCredit},
	}
	for _, tc := range cases {
		got, err := NormalBalanceFor(tc.accountType)
		require.NoError(t, err)
		require.Equal(t, tc.want, got, "type %s", tc.accountType)
	}

	_, err := NormalBalanceFor(AccountType("contra"))
	require.Error(t, err)
}

func TestValidateNormalBalance(t *testing.T) {
	require.NoError(t, ValidateNormalBalance(TypeAsset, NormalDebit))
	require.Error(t, ValidateNormalBalance(TypeAsset, NormalCredit))
	require.Error(t, ValidateNormalBalance(TypeRevenue, NormalDebit))
}

func TestValidateCode(t *testing.T) {
	require.NoError(t, ValidateCode("1010", TypeAsset))
	require.NoError(t, ValidateCode("2020", TypeLiability))
	require.NoError(t, ValidateCode("3000", TypeEquity))
	require.NoError(t, ValidateCode("4010", TypeRevenue))
	require.NoError(t, ValidateCode("5999", TypeExpense))

	// Wrong range for the type.
	require.Error(t, ValidateCode("1010", TypeRevenue))
	require.Error(t, ValidateCode("5010", TypeAsset))

	// Malformed codes.
	require.Error(t, ValidateCode("101", TypeAsset))
	require.Error(t, ValidateCode("10100", TypeAsset))
	require.Error(t, ValidateCode("10a0", TypeAsset))
}

func TestSignedDelta(t *testing.T) {
	debitNormal := Account{NormalBalance: NormalDebit}
	creditNormal := Account{NormalBalance: NormalCredit}

	hundred := decimal.NewFromInt(100)
	forty := decimal.NewFromInt(40)

	require.True(t, debitNormal.SignedDelta(hundred, forty).Equal(decimal.NewFromInt(60)))
	require.True(t, debitNormal.SignedDelta(forty, hundred).Equal(decimal.NewFromInt(-60)))
	require.True(t, creditNormal.SignedDelta(hundred, forty).Equal(decimal.NewFromInt(-60)))
	require.True(t, creditNormal.SignedDelta(forty, hundred).Equal(decimal.NewFromInt(60)))
}

func TestSeedChartCoversAllCodes(t *testing.T) {
	seeds := SeedChart()
	codes := make(map[string]bool, len(seeds))
	for _, s := range seeds {
		require.NoError(t, ValidateCode(s.Code, s.Type), "code %s", s.Code)
		_, err := NormalBalanceFor(s.Type)
		require.NoError(t, err)
		codes[s.Code] = true
	}
	for _, code := range []string{
		CodeCashInHand, CodeCashInTransit, CodeAgentAR, CodeInventory,
		CodeRefundLiability, CodeCommissionsPayable,
		CodeProductRevenue, CodeCOGS, CodeFailedDeliveryExpense,
		CodeReturnProcessing, CodeDeliveryAgentCommission, CodeSalesRepCommission,
	} {
		require.True(t, codes[code], "missing seed for %s", code)
	}
}
