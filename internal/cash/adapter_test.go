package cash

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/settlement"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func TestRegisterPolicyCheck(t *testing.T) {
	spec := settlement.CashSpec{RegisterID: 1, SessionID: 2, IdempotencyKey: "cash-1"}
	open := registerPolicy{Currency: "USD", SessionOpen: true}

	require.NoError(t, open.check(spec, dec("100"), "USD"))

	err := open.check(spec, dec("100"), "EUR")
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Contains(t, err.Error(), "currency")

	closed := open
	closed.SessionOpen = false
	err = closed.check(spec, dec("100"), "USD")
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Contains(t, err.Error(), "not open")

	limited := open
	limited.MaxTxnAmount = decimal.NewNullDecimal(dec("500"))
	require.NoError(t, limited.check(spec, dec("500"), "USD"))

	err = limited.check(spec, dec("500.01"), "USD")
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Contains(t, err.Error(), "limit")
}
