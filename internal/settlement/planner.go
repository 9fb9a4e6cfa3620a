package settlement

import (
	"sort"

	"github.com/shopspring/decimal"
)

// baseScale is the decimal precision of base-currency amounts.
const baseScale = 2

// PlanLine is one planned (open item, amount) pairing with both base bases:
// the historical base relieves the open item at its recorded FX basis, the
// settlement base drives the journal posting.
type PlanLine struct {
	Item               OpenItem
	AmountTxn          decimal.Decimal
	AmountBaseHistoric decimal.Decimal
	AmountBaseSettle   decimal.Decimal
}

// Plan is the outcome of allocation planning for one apply.
type Plan struct {
	Lines             []PlanLine
	TotalTxn          decimal.Decimal
	TotalBaseHistoric decimal.Decimal
	TotalBaseSettle   decimal.Decimal
	RemainderTxn      decimal.Decimal
	FXVarianceBase    decimal.Decimal
}

// PlanInput carries everything the planner needs. Items must be the locked
// candidate set ordered by (due date, document date, id) ascending.
type PlanInput struct {
	Items          []OpenItem
	Manual         []ManualAllocation
	AutoAllocate   bool
	AvailableTxn   decimal.Decimal
	SettlementRate decimal.Decimal
}

// BuildPlan produces the allocation plan. Manual and auto are mutually
// exclusive per call: an empty manual plan, or an explicit autoAllocate,
// selects the oldest-due-first algorithm.
func BuildPlan(in PlanInput) (Plan, error) {
	if in.AutoAllocate || len(in.Manual) == 0 {
		return buildAutoPlan(in)
	}
	return buildManualPlan(in)
}

func buildManualPlan(in PlanInput) (Plan, error) {
	byItem := make(map[int64]OpenItem, len(in.Items))
	order := make(map[int64]int, len(in.Items))
	for idx, item := range in.Items {
		byItem[item.ID] = item
		order[item.ID] = idx
	}

	// Amounts for the same item are summed before residual checks.
	requested := make(map[int64]decimal.Decimal, len(in.Manual))
	ids := make([]int64, 0, len(in.Manual))
	for _, alloc := range in.Manual {
		if _, ok := byItem[alloc.OpenItemID]; !ok {
			return Plan{}, ErrItemNotInCandidates
		}
		if _, seen := requested[alloc.OpenItemID]; !seen {
			ids = append(ids, alloc.OpenItemID)
		}
		requested[alloc.OpenItemID] = requested[alloc.OpenItemID].Add(alloc.AmountTxn)
	}
	sort.Slice(ids, func(i, j int) bool { return order[ids[i]] < order[ids[j]] })

	plan := newPlan()
	total := decimal.Zero
	for _, id := range ids {
		item := byItem[id]
		amount := requested[id]
		if amount.GreaterThan(item.ResidualTxn) {
			return Plan{}, ErrAllocationExceedsResidual
		}
		total = total.Add(amount)
		plan.append(makeLine(item, amount, in.SettlementRate))
	}
	if total.GreaterThan(in.AvailableTxn) {
		return Plan{}, ErrInsufficientFunds
	}
	plan.finish(in.AvailableTxn)
	return plan, nil
}

func buildAutoPlan(in PlanInput) (Plan, error) {
	plan := newPlan()
	remaining := in.AvailableTxn
	for _, item := range in.Items {
		if !remaining.IsPositive() {
			break
		}
		amount := decimal.Min(remaining, item.ResidualTxn)
		if !amount.IsPositive() {
			continue
		}
		remaining = remaining.Sub(amount)
		plan.append(makeLine(item, amount, in.SettlementRate))
	}
	plan.finish(in.AvailableTxn)
	return plan, nil
}

// makeLine computes both base amounts for an allocation. The historical base
// is the proportional share of the item's residual base, preserving the FX
// rate recorded when the item was created; a full allocation takes the exact
// residual base so no rounding dust is stranded on the item.
func makeLine(item OpenItem, amountTxn, rate decimal.Decimal) PlanLine {
	var historic decimal.Decimal
	if amountTxn.Equal(item.ResidualTxn) {
		historic = item.ResidualBase
	} else {
		historic = item.ResidualBase.Mul(amountTxn).Div(item.ResidualTxn).Round(baseScale)
	}
	return PlanLine{
		Item:               item,
		AmountTxn:          amountTxn,
		AmountBaseHistoric: historic,
		AmountBaseSettle:   amountTxn.Mul(rate).Round(baseScale),
	}
}

func newPlan() Plan {
	return Plan{
		TotalTxn:          decimal.Zero,
		TotalBaseHistoric: decimal.Zero,
		TotalBaseSettle:   decimal.Zero,
		RemainderTxn:      decimal.Zero,
		FXVarianceBase:    decimal.Zero,
	}
}

func (p *Plan) append(line PlanLine) {
	p.Lines = append(p.Lines, line)
	p.TotalTxn = p.TotalTxn.Add(line.AmountTxn)
	p.TotalBaseHistoric = p.TotalBaseHistoric.Add(line.AmountBaseHistoric)
	p.TotalBaseSettle = p.TotalBaseSettle.Add(line.AmountBaseSettle)
}

// finish derives the unallocated remainder and the realized FX variance. The
// variance (settlement basis minus historical basis) is reported but absorbed
// into the offset account rather than posted separately.
func (p *Plan) finish(available decimal.Decimal) {
	p.RemainderTxn = available.Sub(p.TotalTxn)
	if p.RemainderTxn.IsNegative() {
		p.RemainderTxn = decimal.Zero
	}
	p.FXVarianceBase = p.TotalBaseSettle.Sub(p.TotalBaseHistoric)
}
