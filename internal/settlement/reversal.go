package settlement

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/meridian-erp/meridian-erp/internal/audit"
	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// uqReversalOf backs the at-most-one-reversal rule.
const uqReversalOf = "uq_settlement_batches_reversal_of"

// Reverse undoes a posted settlement: it restores every open item and
// unapplied cash row the original batch touched, posts a mirror journal, and
// creates a paired batch of status REVERSED. It fails when any downstream
// state has progressed past the point of exact restoration.
func (s *Service) Reverse(ctx context.Context, cmd ReverseCommand) (ReverseResult, error) {
	if err := cmd.Validate(); err != nil {
		return ReverseResult{}, err
	}
	preview, err := s.repo.GetBatch(ctx, cmd.BatchID)
	if err != nil {
		return ReverseResult{}, err
	}
	if preview.TenantID != cmd.TenantID {
		return ReverseResult{}, ErrBatchNotFound
	}
	if s.guard != nil {
		if err := s.guard.AssertScopeAccess(ctx, cmd.ActorID, shared.ScopeLegalEntity, preview.LegalEntityID, "settlement.reverse"); err != nil {
			return ReverseResult{}, err
		}
	}

	var result ReverseResult
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		original, err := tx.GetBatchForUpdate(ctx, cmd.BatchID)
		if err != nil {
			return err
		}
		if original.Status != BatchPosted || original.ReversedByBatchID != nil {
			return ErrAlreadyReversed
		}
		if original.CashTransactionID != nil && s.cash != nil {
			cashTxn, err := s.cash.Get(ctx, *original.CashTransactionID)
			if err != nil {
				return err
			}
			if cashTxn.Status == CashPosted {
				return ErrCashStillPosted
			}
		}

		period, err := tx.FindOpenPeriod(ctx, original.LegalEntityID, original.SettlementDate)
		if err != nil {
			return err
		}
		if err := ledger.EnsureOpenForPosting(period, original.SettlementDate); err != nil {
			return err
		}

		allocations, err := tx.ListAllocations(ctx, original.ID)
		if err != nil {
			return err
		}
		for _, alloc := range allocations {
			item, err := tx.GetOpenItemForUpdate(ctx, alloc.OpenItemID)
			if err != nil {
				return err
			}
			restoredTxn := item.ResidualTxn.Add(alloc.AmountTxn)
			restoredBase := item.ResidualBase.Add(alloc.AmountBaseHistoric)
			if restoredTxn.GreaterThan(item.AmountTxn) || restoredBase.GreaterThan(item.AmountBase) {
				return ErrNotReversible
			}
			item.ResidualTxn = restoredTxn
			item.ResidualBase = restoredBase
			item.SettledTxn = item.AmountTxn.Sub(restoredTxn)
			item.Status = StatusForResidual(restoredTxn, item.AmountTxn)
			if err := tx.UpdateOpenItem(ctx, item); err != nil {
				return err
			}
			if _, err := tx.RefreshDocumentStatus(ctx, item.DocumentID); err != nil {
				return err
			}
		}

		consumptions, err := tx.ListConsumptions(ctx, original.ID)
		if err != nil {
			return err
		}
		for _, consumption := range consumptions {
			row, err := tx.GetUnappliedForUpdate(ctx, consumption.UnappliedCashID)
			if err != nil {
				return err
			}
			if row.Status == UnappliedReversed {
				return ErrNotReversible
			}
			restoredTxn := row.ResidualTxn.Add(consumption.AmountTxn)
			restoredBase := row.ResidualBase.Add(consumption.AmountBase)
			if restoredTxn.GreaterThan(row.AmountTxn) || restoredBase.GreaterThan(row.AmountBase) {
				return ErrNotReversible
			}
			row.ResidualTxn = restoredTxn
			row.ResidualBase = restoredBase
			row.Status = UnappliedStatusForResidual(restoredTxn, row.AmountTxn)
			if err := tx.UpdateUnapplied(ctx, row); err != nil {
				return err
			}
		}

		created, err := tx.FindUnappliedBySourceBatch(ctx, original.ID)
		if err != nil {
			return err
		}
		if created != nil {
			// The row this batch produced must be fully untouched; a later
			// settlement that consumed any of it blocks the reversal.
			if !created.ResidualTxn.Equal(created.AmountTxn) || created.Status == UnappliedReversed {
				return ErrNotReversible
			}
			created.ResidualTxn = created.ResidualTxn.Sub(created.AmountTxn)
			created.ResidualBase = created.ResidualBase.Sub(created.AmountBase)
			created.Status = UnappliedReversed
			if err := tx.UpdateUnapplied(ctx, *created); err != nil {
				return err
			}
		}

		seq, err := tx.NextSequence(ctx, original.TenantID, original.LegalEntityID, SequenceNamespace, period.FiscalYear)
		if err != nil {
			return err
		}
		number := fmt.Sprintf("%s-%d-%06d", SequenceNamespace, period.FiscalYear, seq)

		var mirror ledger.JournalEntry
		if original.JournalEntryID != 0 {
			originalJournal, err := tx.GetJournal(ctx, original.JournalEntryID)
			if err != nil {
				return err
			}
			if originalJournal.Status != ledger.JournalStatusPosted {
				return ErrNotReversible
			}
			memo := cmd.Memo
			if memo == "" {
				memo = fmt.Sprintf("Reversal of settlement %s", original.Number)
			}
			mirror, err = tx.InsertJournal(ctx, ledger.PostingInput{
				TenantID:      original.TenantID,
				LegalEntityID: original.LegalEntityID,
				PeriodID:      period.ID,
				Date:          original.SettlementDate,
				SourceModule:  SourceModuleName + ":REVERSAL",
				SourceID:      uuid.New(),
				Memo:          memo,
				PostedBy:      cmd.ActorID,
				Lines:         ledger.ReverseLines(originalJournal.Lines),
			})
			if err != nil {
				return err
			}
			if err := tx.MarkJournalReversed(ctx, original.JournalEntryID, mirror.ID); err != nil {
				return err
			}
		}

		reversal := SettlementBatch{
			TenantID:           original.TenantID,
			LegalEntityID:      original.LegalEntityID,
			CounterpartyID:     original.CounterpartyID,
			Direction:          original.Direction,
			Currency:           original.Currency,
			SettlementDate:     original.SettlementDate,
			SequenceNo:         seq,
			Number:             number,
			Status:             BatchReversed,
			Context:            original.Context,
			TotalAllocatedTxn:  original.TotalAllocatedTxn,
			TotalAllocatedBase: original.TotalAllocatedBase,
			FXRate:             original.FXRate,
			FXSource:           original.FXSource,
			FXVarianceBase:     original.FXVarianceBase.Neg(),
			JournalEntryID:     mirror.ID,
			ReversalOfBatchID:  &original.ID,
			CreatedBy:          cmd.ActorID,
		}
		reversal, err = tx.InsertBatch(ctx, reversal)
		if err != nil {
			return err
		}
		if err := tx.MarkBatchReversed(ctx, original.ID, reversal.ID); err != nil {
			return err
		}

		snapshot := audit.ReverseSnapshot{
			OriginalBatchID:   original.ID,
			ReversalBatchID:   reversal.ID,
			ReversalJournalID: mirror.ID,
			Memo:              cmd.Memo,
		}
		if err := tx.RecordAudit(ctx, audit.NewLog(cmd.ActorID, audit.ActionSettlementReverse, "settlement_batch",
			fmt.Sprintf("%d", original.ID), snapshot.Meta(), s.now())); err != nil {
			return err
		}

		original.Status = BatchReversed
		original.ReversedByBatchID = &reversal.ID
		result = ReverseResult{ReversalBatch: reversal, OriginalBatch: original, Journal: mirror}
		return nil
	})
	if err != nil {
		if constraint, ok := uniqueViolation(err); ok && constraint == uqReversalOf {
			return ReverseResult{}, ErrAlreadyReversed
		}
		return ReverseResult{}, err
	}

	if s.metrics != nil {
		s.metrics.SettlementReversed()
	}
	s.logger.Info("settlement reversed",
		slog.Int64("original_batch_id", result.OriginalBatch.ID),
		slog.Int64("reversal_batch_id", result.ReversalBatch.ID))
	return result, nil
}
