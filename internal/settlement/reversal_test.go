package settlement

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/ledger"
)

func applyFixture(t *testing.T, svc *Service, mutate func(*ApplyCommand)) ApplyResult {
	t.Helper()
	cmd := baseApplyCommand()
	if mutate != nil {
		mutate(&cmd)
	}
	result, err := svc.Apply(context.Background(), cmd)
	require.NoError(t, err)
	return result
}

func TestReverseRestoresOpenItems(t *testing.T) {
	repo := seedRepo()
	seedOpenItem(repo, 1, DirectionAR, "USD", "100", "100", "2025-01-15", 500)
	svc, metrics := newTestService(repo, nil)

	applied := applyFixture(t, svc, func(c *ApplyCommand) {
		c.ManualAllocations = []ManualAllocation{{OpenItemID: 1, AmountTxn: dec("100")}}
	})
	require.Equal(t, OpenItemSettled, repo.items[1].Status)

	result, err := svc.Reverse(context.Background(), ReverseCommand{
		TenantID: testTenant,
		BatchID:  applied.Batch.ID,
		ActorID:  testActor,
	})
	require.NoError(t, err)

	require.Equal(t, BatchReversed, result.ReversalBatch.Status)
	require.NotNil(t, result.ReversalBatch.ReversalOfBatchID)
	require.Equal(t, applied.Batch.ID, *result.ReversalBatch.ReversalOfBatchID)
	require.Equal(t, "SET-2025-000002", result.ReversalBatch.Number)

	original := repo.batches[applied.Batch.ID]
	require.Equal(t, BatchReversed, original.Status)
	require.NotNil(t, original.ReversedByBatchID)
	require.Equal(t, result.ReversalBatch.ID, *original.ReversedByBatchID)

	item := repo.items[1]
	require.True(t, item.ResidualTxn.Equal(dec("100")))
	require.True(t, item.SettledTxn.IsZero())
	require.Equal(t, OpenItemOpen, item.Status)
	require.Equal(t, DocumentOpen, repo.docs[500])

	// The mirror entry swaps each leg of the original posting.
	mirror := result.Journal
	require.Len(t, mirror.Lines, 2)
	require.Equal(t, arOffsetAccount, mirror.Lines[0].AccountID)
	require.True(t, mirror.Lines[0].Credit.Equal(dec("100")))
	require.Equal(t, arControlAccount, mirror.Lines[1].AccountID)
	require.True(t, mirror.Lines[1].Debit.Equal(dec("100")))

	originalJournal := repo.journals[applied.Batch.JournalEntryID]
	require.Equal(t, ledger.JournalStatusReversed, originalJournal.Status)
	require.NotNil(t, originalJournal.ReversalJournalEntryID)
	require.Equal(t, mirror.ID, *originalJournal.ReversalJournalEntryID)

	require.Equal(t, 1, metrics.reversed)
}

func TestReverseAfterLaterSettlement(t *testing.T) {
	repo := seedRepo()
	seedOpenItem(repo, 1, DirectionAR, "USD", "100", "100", "2025-01-15", 500)
	svc, _ := newTestService(repo, nil)

	first := applyFixture(t, svc, func(c *ApplyCommand) {
		c.IncomingAmountTxn = dec("40")
		c.ManualAllocations = []ManualAllocation{{OpenItemID: 1, AmountTxn: dec("40")}}
	})
	applyFixture(t, svc, func(c *ApplyCommand) {
		c.IdempotencyKey = "apply-2"
		c.IncomingAmountTxn = dec("30")
		c.ManualAllocations = []ManualAllocation{{OpenItemID: 1, AmountTxn: dec("30")}}
	})
	require.True(t, repo.items[1].ResidualTxn.Equal(dec("30")))

	// The later batch left headroom, so the exact restore stays within the
	// item's original amount and the earlier batch reverses cleanly.
	_, err := svc.Reverse(context.Background(), ReverseCommand{
		TenantID: testTenant,
		BatchID:  first.Batch.ID,
		ActorID:  testActor,
	})
	require.NoError(t, err)

	item := repo.items[1]
	require.True(t, item.ResidualTxn.Equal(dec("70")))
	require.True(t, item.SettledTxn.Equal(dec("30")))
	require.Equal(t, OpenItemPartiallySettled, item.Status)
}

func TestReverseTwiceRejected(t *testing.T) {
	repo := seedRepo()
	seedOpenItem(repo, 1, DirectionAR, "USD", "100", "100", "2025-01-15", 500)
	svc, _ := newTestService(repo, nil)

	applied := applyFixture(t, svc, func(c *ApplyCommand) {
		c.ManualAllocations = []ManualAllocation{{OpenItemID: 1, AmountTxn: dec("100")}}
	})

	cmd := ReverseCommand{TenantID: testTenant, BatchID: applied.Batch.ID, ActorID: testActor}
	_, err := svc.Reverse(context.Background(), cmd)
	require.NoError(t, err)

	_, err = svc.Reverse(context.Background(), cmd)
	require.ErrorIs(t, err, ErrAlreadyReversed)
}

func TestReverseWrongTenant(t *testing.T) {
	repo := seedRepo()
	seedOpenItem(repo, 1, DirectionAR, "USD", "100", "100", "2025-01-15", 500)
	svc, _ := newTestService(repo, nil)

	applied := applyFixture(t, svc, func(c *ApplyCommand) {
		c.ManualAllocations = []ManualAllocation{{OpenItemID: 1, AmountTxn: dec("100")}}
	})

	_, err := svc.Reverse(context.Background(), ReverseCommand{
		TenantID: testTenant + 1,
		BatchID:  applied.Batch.ID,
		ActorID:  testActor,
	})
	require.ErrorIs(t, err, ErrBatchNotFound)
}

func TestReverseBlockedByConsumedRemainder(t *testing.T) {
	repo := seedRepo()
	seedOpenItem(repo, 1, DirectionAR, "USD", "100", "100", "2025-01-15", 500)
	seedOpenItem(repo, 2, DirectionAR, "USD", "40", "40", "2025-02-15", 501)
	svc, _ := newTestService(repo, nil)

	// Overpay so the first batch leaves 50 on account.
	first := applyFixture(t, svc, func(c *ApplyCommand) {
		c.IncomingAmountTxn = dec("150")
		c.ManualAllocations = []ManualAllocation{{OpenItemID: 1, AmountTxn: dec("100")}}
	})
	require.NotNil(t, first.UnappliedCreated)

	// A later settlement consumes part of that remainder.
	applyFixture(t, svc, func(c *ApplyCommand) {
		c.IdempotencyKey = "apply-2"
		c.IncomingAmountTxn = decimal.Zero
		c.UseUnappliedCash = true
		c.ManualAllocations = []ManualAllocation{{OpenItemID: 2, AmountTxn: dec("40")}}
	})

	_, err := svc.Reverse(context.Background(), ReverseCommand{
		TenantID: testTenant,
		BatchID:  first.Batch.ID,
		ActorID:  testActor,
	})
	require.ErrorIs(t, err, ErrNotReversible)
}

func TestReverseRetiresUntouchedRemainder(t *testing.T) {
	repo := seedRepo()
	seedOpenItem(repo, 1, DirectionAR, "USD", "100", "100", "2025-01-15", 500)
	svc, _ := newTestService(repo, nil)

	applied := applyFixture(t, svc, func(c *ApplyCommand) {
		c.IncomingAmountTxn = dec("150")
		c.ManualAllocations = []ManualAllocation{{OpenItemID: 1, AmountTxn: dec("100")}}
	})
	require.NotNil(t, applied.UnappliedCreated)

	_, err := svc.Reverse(context.Background(), ReverseCommand{
		TenantID: testTenant,
		BatchID:  applied.Batch.ID,
		ActorID:  testActor,
	})
	require.NoError(t, err)

	row := repo.unapplied[applied.UnappliedCreated.ID]
	require.Equal(t, UnappliedReversed, row.Status)
	require.True(t, row.ResidualTxn.IsZero())
	require.True(t, row.ResidualBase.IsZero())
}

func TestReverseRestoresConsumedUnapplied(t *testing.T) {
	repo := seedRepo()
	seedOpenItem(repo, 1, DirectionAR, "USD", "80", "80", "2025-01-15", 500)
	seedUnapplied(repo, 20, "USD", "50", "50", "2025-01-01")
	svc, _ := newTestService(repo, nil)

	applied := applyFixture(t, svc, func(c *ApplyCommand) {
		c.IncomingAmountTxn = dec("30")
		c.UseUnappliedCash = true
		c.ManualAllocations = []ManualAllocation{{OpenItemID: 1, AmountTxn: dec("80")}}
	})
	require.Len(t, applied.UnappliedConsumed, 1)
	require.Equal(t, UnappliedFullyApplied, repo.unapplied[20].Status)

	_, err := svc.Reverse(context.Background(), ReverseCommand{
		TenantID: testTenant,
		BatchID:  applied.Batch.ID,
		ActorID:  testActor,
	})
	require.NoError(t, err)

	row := repo.unapplied[20]
	require.Equal(t, UnappliedOpen, row.Status)
	require.True(t, row.ResidualTxn.Equal(dec("50")))
	require.True(t, repo.items[1].ResidualTxn.Equal(dec("80")))
}

func TestReverseBlockedByPostedCash(t *testing.T) {
	repo := seedRepo()
	seedOpenItem(repo, 1, DirectionAR, "USD", "100", "100", "2025-01-15", 500)
	cash := newMemCash()
	svc, _ := newTestService(repo, cash)

	applied := applyFixture(t, svc, func(c *ApplyCommand) {
		c.PaymentChannel = ChannelCash
		c.CashSpec = &CashSpec{RegisterID: 3, SessionID: 4, IdempotencyKey: "cash-1"}
		c.ManualAllocations = []ManualAllocation{{OpenItemID: 1, AmountTxn: dec("100")}}
	})
	require.NotNil(t, applied.Batch.CashTransactionID)

	cmd := ReverseCommand{TenantID: testTenant, BatchID: applied.Batch.ID, ActorID: testActor}
	_, err := svc.Reverse(context.Background(), cmd)
	require.ErrorIs(t, err, ErrCashStillPosted)

	// Once the register transaction is reversed upstream the batch unblocks.
	txn := cash.txns[*applied.Batch.CashTransactionID]
	txn.Status = CashReversed
	cash.txns[txn.ID] = txn

	result, err := svc.Reverse(context.Background(), cmd)
	require.NoError(t, err)
	require.Nil(t, result.ReversalBatch.CashTransactionID)
	require.True(t, repo.items[1].ResidualTxn.Equal(dec("100")))
}

func TestReverseClosedPeriod(t *testing.T) {
	repo := seedRepo()
	seedOpenItem(repo, 1, DirectionAR, "USD", "100", "100", "2025-01-15", 500)
	svc, _ := newTestService(repo, nil)

	applied := applyFixture(t, svc, func(c *ApplyCommand) {
		c.ManualAllocations = []ManualAllocation{{OpenItemID: 1, AmountTxn: dec("100")}}
	})

	repo.periods[0].Status = ledger.PeriodStatusClosed
	_, err := svc.Reverse(context.Background(), ReverseCommand{
		TenantID: testTenant,
		BatchID:  applied.Batch.ID,
		ActorID:  testActor,
	})
	require.ErrorIs(t, err, ledger.ErrPeriodNotOpen)
}

func TestReverseNegatesVariance(t *testing.T) {
	repo := seedRepo()
	item := OpenItem{
		ID:             1,
		TenantID:       testTenant,
		LegalEntityID:  testLegalEntity,
		DocumentID:     500,
		CounterpartyID: testCounterparty,
		Direction:      DirectionAR,
		Currency:       "EUR",
		AmountTxn:      dec("100"),
		AmountBase:     dec("105.00"),
		ResidualTxn:    dec("100"),
		ResidualBase:   dec("105.00"),
		Status:         OpenItemOpen,
		DueDate:        date("2025-01-15"),
		DocumentDate:   date("2024-12-15"),
	}
	repo.items[1] = &item
	repo.docs[500] = DocumentOpen
	svc, _ := newTestService(repo, nil)

	rate := dec("1.10")
	applied := applyFixture(t, svc, func(c *ApplyCommand) {
		c.CurrencyCode = "EUR"
		c.FXRate = &rate
		c.ManualAllocations = []ManualAllocation{{OpenItemID: 1, AmountTxn: dec("100")}}
	})
	require.True(t, applied.Batch.FXVarianceBase.Equal(dec("5.00")))

	result, err := svc.Reverse(context.Background(), ReverseCommand{
		TenantID: testTenant,
		BatchID:  applied.Batch.ID,
		ActorID:  testActor,
	})
	require.NoError(t, err)
	require.True(t, result.ReversalBatch.FXVarianceBase.Equal(dec("-5.00")))
	require.True(t, repo.items[1].ResidualBase.Equal(dec("105.00")))
}
