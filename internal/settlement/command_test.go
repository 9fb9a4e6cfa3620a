package settlement

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

func validApplyCommand() ApplyCommand {
	return ApplyCommand{
		TenantID:          1,
		LegalEntityID:     10,
		CounterpartyID:    100,
		ActorID:           7,
		CurrencyCode:      "usd",
		SettlementDate:    date("2025-03-10"),
		IncomingAmountTxn: dec("100"),
		IdempotencyKey:    " apply-1 ",
	}
}

func TestApplyCommandNormalize(t *testing.T) {
	cmd := validApplyCommand()
	cmd.Normalize()

	require.Equal(t, "USD", cmd.CurrencyCode)
	require.Equal(t, "apply-1", cmd.IdempotencyKey)
	require.Equal(t, ChannelManual, cmd.PaymentChannel)
	require.True(t, cmd.AutoAllocate)

	manual := validApplyCommand()
	manual.ManualAllocations = []ManualAllocation{{OpenItemID: 1, AmountTxn: dec("10")}}
	manual.Normalize()
	require.False(t, manual.AutoAllocate)
}

func TestApplyCommandValidate(t *testing.T) {
	cases := map[string]struct {
		mutate func(*ApplyCommand)
		ok     bool
	}{
		"valid":                           {mutate: func(c *ApplyCommand) {}, ok: true},
		"missing tenant":                  {mutate: func(c *ApplyCommand) { c.TenantID = 0 }},
		"missing actor":                   {mutate: func(c *ApplyCommand) { c.ActorID = 0 }},
		"unknown currency":                {mutate: func(c *ApplyCommand) { c.CurrencyCode = "QQQ" }},
		"short currency":                  {mutate: func(c *ApplyCommand) { c.CurrencyCode = "US" }},
		"missing key":                     {mutate: func(c *ApplyCommand) { c.IdempotencyKey = "" }},
		"negative incoming":               {mutate: func(c *ApplyCommand) { c.IncomingAmountTxn = dec("-1") }},
		"zero incoming without unapplied": {mutate: func(c *ApplyCommand) { c.IncomingAmountTxn = dec("0") }},
		"zero incoming with unapplied": {mutate: func(c *ApplyCommand) {
			c.IncomingAmountTxn = dec("0")
			c.UseUnappliedCash = true
		}, ok: true},
		"manual allocation without item": {mutate: func(c *ApplyCommand) {
			c.ManualAllocations = []ManualAllocation{{AmountTxn: dec("10")}}
		}},
		"manual allocation non-positive": {mutate: func(c *ApplyCommand) {
			c.ManualAllocations = []ManualAllocation{{OpenItemID: 1, AmountTxn: dec("0")}}
		}},
		"non-positive fx rate": {mutate: func(c *ApplyCommand) {
			rate := dec("0")
			c.FXRate = &rate
		}},
		"cash channel without source": {mutate: func(c *ApplyCommand) { c.PaymentChannel = ChannelCash }},
		"cash channel with spec": {mutate: func(c *ApplyCommand) {
			c.PaymentChannel = ChannelCash
			c.CashSpec = &CashSpec{RegisterID: 1, SessionID: 2, IdempotencyKey: "cash-1"}
		}, ok: true},
		"cash spec missing register": {mutate: func(c *ApplyCommand) {
			c.PaymentChannel = ChannelCash
			c.CashSpec = &CashSpec{SessionID: 2, IdempotencyKey: "cash-1"}
		}},
		"bank metadata without key": {mutate: func(c *ApplyCommand) { c.BankTransactionRef = "STMT-1" }},
		"bank metadata with key": {mutate: func(c *ApplyCommand) {
			c.BankTransactionRef = "STMT-1"
			c.BankApplyKey = "bank-1"
		}, ok: true},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			cmd := validApplyCommand()
			tc.mutate(&cmd)
			cmd.Normalize()
			err := cmd.Validate()
			if tc.ok {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, shared.ErrValidation)
			}
		})
	}
}

func TestReverseCommandValidate(t *testing.T) {
	cmd := ReverseCommand{TenantID: 1, BatchID: 2, ActorID: 3}
	require.NoError(t, cmd.Validate())

	cmd.BatchID = 0
	require.ErrorIs(t, cmd.Validate(), shared.ErrValidation)
}

func TestAttachBankRefCommandValidate(t *testing.T) {
	valid := AttachBankRefCommand{
		TenantID:           1,
		ActorID:            2,
		TargetType:         TargetSettlement,
		TargetID:           3,
		BankTransactionRef: "STMT-1",
		IdempotencyKey:     "bank-1",
	}
	require.NoError(t, valid.Validate())

	missingPayload := valid
	missingPayload.BankTransactionRef = ""
	require.ErrorIs(t, missingPayload.Validate(), shared.ErrValidation)

	badTarget := valid
	badTarget.TargetType = "OTHER"
	require.ErrorIs(t, badTarget.Validate(), shared.ErrValidation)
}

func TestStatusForResidual(t *testing.T) {
	require.Equal(t, OpenItemSettled, StatusForResidual(dec("0"), dec("100")))
	require.Equal(t, OpenItemPartiallySettled, StatusForResidual(dec("40"), dec("100")))
	require.Equal(t, OpenItemOpen, StatusForResidual(dec("100"), dec("100")))

	require.Equal(t, UnappliedFullyApplied, UnappliedStatusForResidual(dec("0"), dec("50")))
	require.Equal(t, UnappliedPartial, UnappliedStatusForResidual(dec("20"), dec("50")))
	require.Equal(t, UnappliedOpen, UnappliedStatusForResidual(dec("50"), dec("50")))
}
