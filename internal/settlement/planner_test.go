package settlement

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func planItem(id int64, residualTxn, residualBase string) OpenItem {
	return OpenItem{
		ID:           id,
		AmountTxn:    dec(residualTxn),
		AmountBase:   dec(residualBase),
		ResidualTxn:  dec(residualTxn),
		ResidualBase: dec(residualBase),
	}
}

func TestBuildPlanAutoStopsAtFunds(t *testing.T) {
	plan, err := BuildPlan(PlanInput{
		Items: []OpenItem{
			planItem(1, "100", "100"),
			planItem(2, "250", "250"),
			planItem(3, "75", "75"),
		},
		AutoAllocate:   true,
		AvailableTxn:   dec("300"),
		SettlementRate: decimal.NewFromInt(1),
	})
	require.NoError(t, err)

	require.Len(t, plan.Lines, 2)
	require.True(t, plan.Lines[0].AmountTxn.Equal(dec("100")))
	require.True(t, plan.Lines[1].AmountTxn.Equal(dec("200")))
	require.True(t, plan.TotalTxn.Equal(dec("300")))
	require.True(t, plan.RemainderTxn.IsZero())
}

func TestBuildPlanAutoRemainder(t *testing.T) {
	plan, err := BuildPlan(PlanInput{
		Items:          []OpenItem{planItem(1, "100", "100")},
		AutoAllocate:   true,
		AvailableTxn:   dec("130"),
		SettlementRate: decimal.NewFromInt(1),
	})
	require.NoError(t, err)
	require.True(t, plan.TotalTxn.Equal(dec("100")))
	require.True(t, plan.RemainderTxn.Equal(dec("30")))
}

func TestBuildPlanAutoSkipsNothingToAllocate(t *testing.T) {
	plan, err := BuildPlan(PlanInput{
		Items:          nil,
		AutoAllocate:   true,
		AvailableTxn:   dec("130"),
		SettlementRate: decimal.NewFromInt(1),
	})
	require.NoError(t, err)
	require.Empty(t, plan.Lines)
	require.True(t, plan.RemainderTxn.Equal(dec("130")))
}

func TestBuildPlanManualSumsDuplicates(t *testing.T) {
	plan, err := BuildPlan(PlanInput{
		Items: []OpenItem{planItem(1, "100", "100")},
		Manual: []ManualAllocation{
			{OpenItemID: 1, AmountTxn: dec("40")},
			{OpenItemID: 1, AmountTxn: dec("60")},
		},
		AvailableTxn:   dec("100"),
		SettlementRate: decimal.NewFromInt(1),
	})
	require.NoError(t, err)
	require.Len(t, plan.Lines, 1)
	require.True(t, plan.Lines[0].AmountTxn.Equal(dec("100")))
}

func TestBuildPlanManualRejectsUnknownItem(t *testing.T) {
	_, err := BuildPlan(PlanInput{
		Items:          []OpenItem{planItem(1, "100", "100")},
		Manual:         []ManualAllocation{{OpenItemID: 99, AmountTxn: dec("10")}},
		AvailableTxn:   dec("100"),
		SettlementRate: decimal.NewFromInt(1),
	})
	require.ErrorIs(t, err, ErrItemNotInCandidates)
}

func TestBuildPlanManualRejectsOverResidual(t *testing.T) {
	_, err := BuildPlan(PlanInput{
		Items: []OpenItem{planItem(1, "100", "100")},
		Manual: []ManualAllocation{
			{OpenItemID: 1, AmountTxn: dec("70")},
			{OpenItemID: 1, AmountTxn: dec("70")},
		},
		AvailableTxn:   dec("200"),
		SettlementRate: decimal.NewFromInt(1),
	})
	require.ErrorIs(t, err, ErrAllocationExceedsResidual)
}

func TestBuildPlanManualRejectsOverFunds(t *testing.T) {
	_, err := BuildPlan(PlanInput{
		Items:          []OpenItem{planItem(1, "100", "100")},
		Manual:         []ManualAllocation{{OpenItemID: 1, AmountTxn: dec("100")}},
		AvailableTxn:   dec("80"),
		SettlementRate: decimal.NewFromInt(1),
	})
	require.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestPlanHistoricBaseProRata(t *testing.T) {
	// Item recorded at 1.05: partial allocation relieves the proportional
	// share of the historical base, full allocation takes the exact residual.
	item := OpenItem{
		ID:           1,
		AmountTxn:    dec("100"),
		AmountBase:   dec("105.00"),
		ResidualTxn:  dec("100"),
		ResidualBase: dec("105.00"),
	}
	partial, err := BuildPlan(PlanInput{
		Items:          []OpenItem{item},
		Manual:         []ManualAllocation{{OpenItemID: 1, AmountTxn: dec("33")}},
		AvailableTxn:   dec("33"),
		SettlementRate: dec("1.10"),
	})
	require.NoError(t, err)
	require.True(t, partial.Lines[0].AmountBaseHistoric.Equal(dec("34.65")))
	require.True(t, partial.Lines[0].AmountBaseSettle.Equal(dec("36.30")))

	full, err := BuildPlan(PlanInput{
		Items:          []OpenItem{item},
		Manual:         []ManualAllocation{{OpenItemID: 1, AmountTxn: dec("100")}},
		AvailableTxn:   dec("100"),
		SettlementRate: dec("1.10"),
	})
	require.NoError(t, err)
	require.True(t, full.Lines[0].AmountBaseHistoric.Equal(dec("105.00")))
	require.True(t, full.FXVarianceBase.Equal(dec("5.00")))
}

func TestPlanVarianceNegative(t *testing.T) {
	item := OpenItem{
		ID:           1,
		AmountTxn:    dec("100"),
		AmountBase:   dec("105.00"),
		ResidualTxn:  dec("100"),
		ResidualBase: dec("105.00"),
	}
	plan, err := BuildPlan(PlanInput{
		Items:          []OpenItem{item},
		Manual:         []ManualAllocation{{OpenItemID: 1, AmountTxn: dec("100")}},
		AvailableTxn:   dec("100"),
		SettlementRate: dec("1.02"),
	})
	require.NoError(t, err)
	require.True(t, plan.TotalBaseSettle.Equal(dec("102.00")))
	require.True(t, plan.FXVarianceBase.Equal(dec("-3.00")))
}
