package settlement

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/meridian-erp/meridian-erp/internal/audit"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Unapplied cash rows carry their own bank apply key constraint.
const uqUnappliedBankApplyKey = "uq_unapplied_cash_bank_apply_key"

// BankRefResult reports the outcome of a bank reference attach.
type BankRefResult struct {
	TargetType          BankRefTarget
	TargetID            int64
	BankStatementLineID *int64
	BankTransactionRef  string
	IdempotentReplay    bool
}

// AttachBankRef tags a settlement batch or unapplied cash row with a bank
// statement reference. Replays carrying the same key and values succeed
// without touching state; the same key pointed at different values fails.
func (s *Service) AttachBankRef(ctx context.Context, cmd AttachBankRefCommand) (BankRefResult, error) {
	if err := cmd.Validate(); err != nil {
		return BankRefResult{}, err
	}

	var result BankRefResult
	attach := func(ctx context.Context, tx TxRepository) error {
		var err error
		result, err = s.attachBankRef(ctx, tx, cmd)
		return err
	}
	err := s.repo.WithTx(ctx, attach)
	if err != nil {
		if constraint, ok := uniqueViolation(err); ok &&
			(constraint == "uq_settlement_batches_bank_apply_key" || constraint == uqUnappliedBankApplyKey) {
			// A concurrent attach with the same key committed first.
			err = s.repo.WithTx(ctx, attach)
		}
		if err != nil {
			return BankRefResult{}, err
		}
	}

	if !result.IdempotentReplay {
		s.logger.Info("bank reference attached",
			slog.String("target_type", string(cmd.TargetType)),
			slog.Int64("target_id", cmd.TargetID),
			slog.String("ref", cmd.BankTransactionRef))
	}
	return result, nil
}

func (s *Service) attachBankRef(ctx context.Context, tx TxRepository, cmd AttachBankRefCommand) (BankRefResult, error) {
	switch cmd.TargetType {
	case TargetSettlement:
		return s.attachToBatch(ctx, tx, cmd)
	default:
		return s.attachToUnapplied(ctx, tx, cmd)
	}
}

func (s *Service) attachToBatch(ctx context.Context, tx TxRepository, cmd AttachBankRefCommand) (BankRefResult, error) {
	if prior, err := tx.FindBatchByBankApplyKey(ctx, cmd.TenantID, cmd.IdempotencyKey); err != nil {
		return BankRefResult{}, err
	} else if prior != nil {
		if prior.ID != cmd.TargetID || !sameBankRef(prior.BankStatementLineID, prior.BankTransactionRef, cmd) {
			return BankRefResult{}, ErrBankRefConflict
		}
		return BankRefResult{
			TargetType:          TargetSettlement,
			TargetID:            prior.ID,
			BankStatementLineID: prior.BankStatementLineID,
			BankTransactionRef:  prior.BankTransactionRef,
			IdempotentReplay:    true,
		}, nil
	}

	batch, err := tx.GetBatchForUpdate(ctx, cmd.TargetID)
	if err != nil {
		return BankRefResult{}, err
	}
	if batch.TenantID != cmd.TenantID {
		return BankRefResult{}, ErrBatchNotFound
	}
	if hasBankRef(batch.BankStatementLineID, batch.BankTransactionRef) &&
		!sameBankRef(batch.BankStatementLineID, batch.BankTransactionRef, cmd) {
		return BankRefResult{}, ErrBankRefConflict
	}
	if s.guard != nil {
		if err := s.guard.AssertScopeAccess(ctx, cmd.ActorID, shared.ScopeLegalEntity, batch.LegalEntityID, "settlement.bank_ref"); err != nil {
			return BankRefResult{}, err
		}
	}
	if err := tx.SetBatchBankRef(ctx, batch.ID, cmd.BankStatementLineID, cmd.BankTransactionRef, cmd.IdempotencyKey); err != nil {
		return BankRefResult{}, err
	}
	if err := s.recordBankRefAudit(ctx, tx, cmd, "settlement_batch"); err != nil {
		return BankRefResult{}, err
	}
	return BankRefResult{
		TargetType:          TargetSettlement,
		TargetID:            batch.ID,
		BankStatementLineID: cmd.BankStatementLineID,
		BankTransactionRef:  cmd.BankTransactionRef,
	}, nil
}

func (s *Service) attachToUnapplied(ctx context.Context, tx TxRepository, cmd AttachBankRefCommand) (BankRefResult, error) {
	if prior, err := tx.FindUnappliedByBankApplyKey(ctx, cmd.TenantID, cmd.IdempotencyKey); err != nil {
		return BankRefResult{}, err
	} else if prior != nil {
		if prior.ID != cmd.TargetID || !sameBankRef(prior.BankStatementLineID, prior.BankTransactionRef, cmd) {
			return BankRefResult{}, ErrBankRefConflict
		}
		return BankRefResult{
			TargetType:          TargetUnappliedCash,
			TargetID:            prior.ID,
			BankStatementLineID: prior.BankStatementLineID,
			BankTransactionRef:  prior.BankTransactionRef,
			IdempotentReplay:    true,
		}, nil
	}

	row, err := tx.GetUnappliedForUpdate(ctx, cmd.TargetID)
	if err != nil {
		return BankRefResult{}, err
	}
	if row.TenantID != cmd.TenantID {
		return BankRefResult{}, ErrUnappliedNotFound
	}
	if hasBankRef(row.BankStatementLineID, row.BankTransactionRef) &&
		!sameBankRef(row.BankStatementLineID, row.BankTransactionRef, cmd) {
		return BankRefResult{}, ErrBankRefConflict
	}
	if s.guard != nil {
		if err := s.guard.AssertScopeAccess(ctx, cmd.ActorID, shared.ScopeLegalEntity, row.LegalEntityID, "settlement.bank_ref"); err != nil {
			return BankRefResult{}, err
		}
	}
	if err := tx.SetUnappliedBankRef(ctx, row.ID, cmd.BankStatementLineID, cmd.BankTransactionRef, cmd.IdempotencyKey); err != nil {
		return BankRefResult{}, err
	}
	if err := s.recordBankRefAudit(ctx, tx, cmd, "unapplied_cash"); err != nil {
		return BankRefResult{}, err
	}
	return BankRefResult{
		TargetType:          TargetUnappliedCash,
		TargetID:            row.ID,
		BankStatementLineID: cmd.BankStatementLineID,
		BankTransactionRef:  cmd.BankTransactionRef,
	}, nil
}

func (s *Service) recordBankRefAudit(ctx context.Context, tx TxRepository, cmd AttachBankRefCommand, entity string) error {
	meta := map[string]any{
		"target_type":            string(cmd.TargetType),
		"bank_transaction_ref":   cmd.BankTransactionRef,
		"idempotency_key":        cmd.IdempotencyKey,
		"bank_statement_line_id": nil,
	}
	if cmd.BankStatementLineID != nil {
		meta["bank_statement_line_id"] = *cmd.BankStatementLineID
	}
	return tx.RecordAudit(ctx, audit.NewLog(cmd.ActorID, audit.ActionBankRefAttach, entity,
		fmt.Sprintf("%d", cmd.TargetID), meta, s.now()))
}

func hasBankRef(lineID *int64, ref string) bool {
	return lineID != nil || ref != ""
}

func sameBankRef(lineID *int64, ref string, cmd AttachBankRefCommand) bool {
	if ref != cmd.BankTransactionRef {
		return false
	}
	switch {
	case lineID == nil && cmd.BankStatementLineID == nil:
		return true
	case lineID != nil && cmd.BankStatementLineID != nil:
		return *lineID == *cmd.BankStatementLineID
	default:
		return false
	}
}
