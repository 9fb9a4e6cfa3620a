package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/audit"
	"github.com/meridian-erp/meridian-erp/internal/fx"
	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// SequenceNamespace scopes settlement batch numbering.
const SequenceNamespace = "SET"

// SourceModuleName tags journals posted by this engine.
const SourceModuleName = "CARI_SETTLEMENT"

// Unique constraints backing the idempotency key spaces. A violation on one
// of these means a concurrent caller won the race; the loser re-reads and
// returns the winning row as a replay.
var idempotencyConstraints = map[string]struct{}{
	"uq_settlement_batches_apply_key":      {},
	"uq_settlement_batches_bank_apply_key": {},
	"uq_settlement_batches_event_uid":      {},
	"uq_settlement_batches_cash_txn":       {},
}

// MetricsRecorder is the slice of observability the service reports to.
type MetricsRecorder interface {
	SettlementApplied(replay bool)
	SettlementReversed()
	ObserveAllocations(count int)
}

// Service is the settlement orchestrator: it composes idempotency
// resolution, locking, FX, planning, account resolution, journal posting, and
// state updates into one atomic apply.
type Service struct {
	repo    Repository
	fx      *fx.Resolver
	cash    CashPort
	guard   shared.ScopeGuard
	metrics MetricsRecorder
	logger  *slog.Logger
	now     func() time.Time
}

// NewService builds the orchestrator. cash, guard, and metrics may be nil.
func NewService(repo Repository, fxResolver *fx.Resolver, cash CashPort, guard shared.ScopeGuard, metrics MetricsRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, fx: fxResolver, cash: cash, guard: guard, metrics: metrics, logger: logger, now: time.Now}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Apply settles incoming funds against the counterparty's open items inside
// one transaction and returns the full outcome. Calling it again with the
// same idempotency key returns the original outcome marked as a replay.
func (s *Service) Apply(ctx context.Context, cmd ApplyCommand) (ApplyResult, error) {
	cmd.Normalize()
	if err := cmd.Validate(); err != nil {
		return ApplyResult{}, err
	}
	if s.guard != nil {
		if err := s.guard.AssertScopeAccess(ctx, cmd.ActorID, shared.ScopeLegalEntity, cmd.LegalEntityID, "settlement.apply"); err != nil {
			return ApplyResult{}, err
		}
	}

	var result ApplyResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		existing, err := s.resolveExisting(ctx, tx, cmd)
		if err != nil {
			return err
		}
		if existing != nil {
			replay, err := s.loadResult(ctx, tx, *existing)
			if err != nil {
				return err
			}
			replay.IdempotentReplay = true
			result = replay
			return nil
		}
		applied, err := s.applyNew(ctx, tx, cmd)
		if err != nil {
			return err
		}
		result = applied
		return nil
	})
	if err != nil {
		if constraint, ok := uniqueViolation(err); ok {
			if _, racing := idempotencyConstraints[constraint]; racing {
				return s.replayAfterRace(ctx, cmd)
			}
		}
		return ApplyResult{}, err
	}

	if s.metrics != nil {
		s.metrics.SettlementApplied(result.IdempotentReplay)
		if !result.IdempotentReplay {
			s.metrics.ObserveAllocations(len(result.Allocations))
		}
	}
	s.logger.Info("settlement applied",
		slog.Int64("batch_id", result.Batch.ID),
		slog.String("number", result.Batch.Number),
		slog.Bool("replay", result.IdempotentReplay),
		slog.String("total_txn", result.Batch.TotalAllocatedTxn.String()))
	return result, nil
}

// resolveExisting checks each supplied idempotency key space. More than one
// space resolving to different batches is a conflict; exactly one resolving
// returns that batch for a verbatim replay.
func (s *Service) resolveExisting(ctx context.Context, tx TxRepository, cmd ApplyCommand) (*SettlementBatch, error) {
	type lookup struct {
		supplied bool
		find     func() (*SettlementBatch, error)
	}
	lookups := []lookup{
		{cmd.IdempotencyKey != "", func() (*SettlementBatch, error) {
			return tx.FindBatchByApplyKey(ctx, cmd.TenantID, cmd.IdempotencyKey)
		}},
		{cmd.BankApplyKey != "", func() (*SettlementBatch, error) {
			return tx.FindBatchByBankApplyKey(ctx, cmd.TenantID, cmd.BankApplyKey)
		}},
		{cmd.IntegrationEventUID != "", func() (*SettlementBatch, error) {
			return tx.FindBatchByEventUID(ctx, cmd.TenantID, cmd.IntegrationEventUID)
		}},
		{cmd.CashTransactionID != nil, func() (*SettlementBatch, error) {
			return tx.FindBatchByCashTransactionID(ctx, cmd.TenantID, *cmd.CashTransactionID)
		}},
	}

	var found *SettlementBatch
	for _, l := range lookups {
		if !l.supplied {
			continue
		}
		batch, err := l.find()
		if err != nil {
			return nil, err
		}
		if batch == nil {
			continue
		}
		if found != nil && found.ID != batch.ID {
			return nil, ErrIdempotencyConflict
		}
		found = batch
	}
	return found, nil
}

func (s *Service) applyNew(ctx context.Context, tx TxRepository, cmd ApplyCommand) (ApplyResult, error) {
	cp, err := tx.GetCounterparty(ctx, cmd.CounterpartyID)
	if err != nil {
		return ApplyResult{}, err
	}
	if cp.TenantID != cmd.TenantID || cp.LegalEntityID != cmd.LegalEntityID {
		return ApplyResult{}, fmt.Errorf("settlement: counterparty %d outside requested scope: %w", cp.ID, shared.ErrValidation)
	}
	if !cp.Active {
		return ApplyResult{}, fmt.Errorf("settlement: counterparty %d is inactive: %w", cp.ID, shared.ErrValidation)
	}
	baseCurrency, err := tx.LegalEntityCurrency(ctx, cmd.LegalEntityID)
	if err != nil {
		return ApplyResult{}, err
	}

	// Lock order: open items first.
	items, err := tx.LockOpenItems(ctx, cmd.TenantID, cmd.LegalEntityID, cmd.CounterpartyID, cmd.CurrencyCode)
	if err != nil {
		return ApplyResult{}, err
	}
	direction, items, err := resolveDirection(items, cmd.ManualAllocations)
	if err != nil {
		return ApplyResult{}, err
	}

	// Cash transaction next, before any insert.
	cashTxn, err := s.resolveCash(ctx, cmd)
	if err != nil {
		return ApplyResult{}, err
	}

	resolution, err := s.fx.Resolve(ctx, fx.Input{
		Date:               cmd.SettlementDate,
		SettlementCurrency: cmd.CurrencyCode,
		FunctionalCurrency: baseCurrency,
		ProvidedRate:       cmd.FXRate,
		FallbackMode:       cmd.FXFallbackMode,
		FallbackMaxDays:    cmd.FXFallbackMaxDays,
	})
	if err != nil {
		return ApplyResult{}, err
	}

	var unapplied []UnappliedCash
	available := cmd.IncomingAmountTxn
	if cmd.UseUnappliedCash {
		unapplied, err = tx.LockUnappliedCash(ctx, cmd.TenantID, cmd.LegalEntityID, cmd.CounterpartyID, cmd.CurrencyCode)
		if err != nil {
			return ApplyResult{}, err
		}
		for _, row := range unapplied {
			available = available.Add(row.ResidualTxn)
		}
	}

	plan, err := BuildPlan(PlanInput{
		Items:          items,
		Manual:         cmd.ManualAllocations,
		AutoAllocate:   cmd.AutoAllocate,
		AvailableTxn:   available,
		SettlementRate: resolution.Rate,
	})
	if err != nil {
		return ApplyResult{}, err
	}
	// Funds are drawn from the incoming amount first; only the excess of the
	// plan over the incoming amount consumes unapplied cash, and only the
	// unconsumed part of the incoming amount becomes a new unapplied row.
	consumedTotal := plan.TotalTxn.Sub(cmd.IncomingAmountTxn)
	if consumedTotal.IsNegative() {
		consumedTotal = decimal.Zero
	}
	newRemainder := cmd.IncomingAmountTxn.Sub(plan.TotalTxn)
	if newRemainder.IsNegative() {
		newRemainder = decimal.Zero
	}
	if len(plan.Lines) == 0 && !newRemainder.IsPositive() {
		return ApplyResult{}, ErrEmptyPlan
	}
	sourceContext := ContextManual
	switch {
	case cashTxn != nil:
		sourceContext = ContextCashLinked
	case consumedTotal.IsPositive():
		sourceContext = ContextOnAccountApply
	}

	// Sequence counter after the row locks, before inserts.
	period, err := tx.FindOpenPeriod(ctx, cmd.LegalEntityID, cmd.SettlementDate)
	if err != nil {
		return ApplyResult{}, err
	}
	if err := ledger.EnsureOpenForPosting(period, cmd.SettlementDate); err != nil {
		return ApplyResult{}, err
	}
	seq, err := tx.NextSequence(ctx, cmd.TenantID, cmd.LegalEntityID, SequenceNamespace, period.FiscalYear)
	if err != nil {
		return ApplyResult{}, err
	}
	number := fmt.Sprintf("%s-%d-%06d", SequenceNamespace, period.FiscalYear, seq)

	var journal ledger.JournalEntry
	if plan.TotalTxn.IsPositive() {
		accounts, err := ResolvePostingAccounts(ctx, tx, cmd.LegalEntityID, direction, sourceContext, cp)
		if err != nil {
			return ApplyResult{}, err
		}
		journal, err = tx.InsertJournal(ctx, buildPosting(cmd, period, direction, accounts, plan.TotalBaseSettle, number))
		if err != nil {
			return ApplyResult{}, err
		}
	}

	batch := SettlementBatch{
		TenantID:            cmd.TenantID,
		LegalEntityID:       cmd.LegalEntityID,
		CounterpartyID:      cmd.CounterpartyID,
		Direction:           direction,
		Currency:            cmd.CurrencyCode,
		SettlementDate:      cmd.SettlementDate,
		SequenceNo:          seq,
		Number:              number,
		Status:              BatchPosted,
		Context:             sourceContext,
		TotalAllocatedTxn:   plan.TotalTxn,
		TotalAllocatedBase:  plan.TotalBaseSettle,
		FXRate:              resolution.Rate,
		FXSource:            string(resolution.Source),
		FXVarianceBase:      plan.FXVarianceBase,
		JournalEntryID:      journal.ID,
		BankTransactionRef:  cmd.BankTransactionRef,
		BankStatementLineID: cmd.BankStatementLineID,
		SourceModule:        cmd.SourceModule,
		SourceEntityID:      cmd.SourceEntityID,
		CreatedBy:           cmd.ActorID,
	}
	batch.ApplyKey = optional(cmd.IdempotencyKey)
	batch.BankApplyKey = optional(cmd.BankApplyKey)
	batch.IntegrationEventUID = optional(cmd.IntegrationEventUID)
	if cashTxn != nil {
		batch.CashTransactionID = &cashTxn.ID
	}
	batch, err = tx.InsertBatch(ctx, batch)
	if err != nil {
		return ApplyResult{}, err
	}

	allocations, err := tx.InsertAllocations(ctx, buildAllocations(batch, plan, cmd))
	if err != nil {
		return ApplyResult{}, err
	}

	// Per-item updates, then unapplied updates, per the lock order.
	for _, line := range plan.Lines {
		item := line.Item
		item.ResidualTxn = item.ResidualTxn.Sub(line.AmountTxn)
		item.ResidualBase = item.ResidualBase.Sub(line.AmountBaseHistoric)
		item.SettledTxn = item.AmountTxn.Sub(item.ResidualTxn)
		item.Status = StatusForResidual(item.ResidualTxn, item.AmountTxn)
		if item.ResidualTxn.IsNegative() || item.ResidualBase.IsNegative() {
			return ApplyResult{}, ErrAllocationExceedsResidual
		}
		if err := tx.UpdateOpenItem(ctx, item); err != nil {
			return ApplyResult{}, err
		}
		if _, err := tx.RefreshDocumentStatus(ctx, item.DocumentID); err != nil {
			return ApplyResult{}, err
		}
	}

	consumptions, err := s.consumeUnapplied(ctx, tx, batch.ID, unapplied, consumedTotal)
	if err != nil {
		return ApplyResult{}, err
	}

	var created *UnappliedCash
	if newRemainder.IsPositive() {
		row := UnappliedCash{
			TenantID:            cmd.TenantID,
			LegalEntityID:       cmd.LegalEntityID,
			CounterpartyID:      cmd.CounterpartyID,
			Currency:            cmd.CurrencyCode,
			AmountTxn:           newRemainder,
			AmountBase:          newRemainder.Mul(resolution.Rate).Round(baseScale),
			ResidualTxn:         newRemainder,
			Status:              UnappliedOpen,
			SourceBatchID:       &batch.ID,
			BankStatementLineID: cmd.BankStatementLineID,
			BankTransactionRef:  cmd.BankTransactionRef,
			ReceiptDate:         cmd.SettlementDate,
		}
		row.ResidualBase = row.AmountBase
		inserted, err := tx.InsertUnapplied(ctx, row)
		if err != nil {
			return ApplyResult{}, err
		}
		created = &inserted
	}

	if cashTxn != nil {
		var unappliedID *int64
		if created != nil {
			unappliedID = &created.ID
		}
		if err := tx.LinkCashTransaction(ctx, cashTxn.ID, batch.ID, unappliedID); err != nil {
			return ApplyResult{}, err
		}
	}

	snapshot := buildApplySnapshot(batch, allocations, consumptions, created)
	if err := tx.RecordAudit(ctx, audit.NewLog(cmd.ActorID, audit.ActionSettlementApply, "settlement_batch",
		fmt.Sprintf("%d", batch.ID), snapshot.Meta(), s.now())); err != nil {
		return ApplyResult{}, err
	}

	return ApplyResult{
		Batch:             batch,
		Allocations:       allocations,
		Journal:           journal,
		UnappliedCreated:  created,
		UnappliedConsumed: consumptions,
		CashTransaction:   cashTxn,
	}, nil
}

// resolveCash creates or validates the linked cash transaction for CASH
// channel requests. A replayed inner creation that disagrees with the request
// on amount or currency fails the whole call.
func (s *Service) resolveCash(ctx context.Context, cmd ApplyCommand) (*CashTransaction, error) {
	if cmd.PaymentChannel != ChannelCash && cmd.CashTransactionID == nil {
		return nil, nil
	}
	if s.cash == nil {
		return nil, fmt.Errorf("settlement: cash subsystem not configured: %w", shared.ErrSetup)
	}
	if cmd.CashTransactionID != nil {
		txn, err := s.cash.Get(ctx, *cmd.CashTransactionID)
		if err != nil {
			return nil, err
		}
		if txn.Currency != cmd.CurrencyCode || !txn.Amount.Equal(cmd.IncomingAmountTxn) {
			return nil, ErrCashMismatch
		}
		return &txn, nil
	}
	txn, _, err := s.cash.CreateOrReplay(ctx, *cmd.CashSpec, cmd.IncomingAmountTxn, cmd.CurrencyCode, cmd.CounterpartyID)
	if err != nil {
		return nil, err
	}
	if txn.Currency != cmd.CurrencyCode || !txn.Amount.Equal(cmd.IncomingAmountTxn) {
		return nil, ErrCashMismatch
	}
	return &txn, nil
}

// consumeUnapplied applies the consumption total across the locked unapplied
// rows, oldest receipt first, and persists the consumption links.
func (s *Service) consumeUnapplied(ctx context.Context, tx TxRepository, batchID int64, rows []UnappliedCash, total decimal.Decimal) ([]UnappliedConsumption, error) {
	if !total.IsPositive() {
		return nil, nil
	}
	remaining := total
	var consumptions []UnappliedConsumption
	for _, row := range rows {
		if !remaining.IsPositive() {
			break
		}
		amount := decimal.Min(remaining, row.ResidualTxn)
		if !amount.IsPositive() {
			continue
		}
		var base decimal.Decimal
		if amount.Equal(row.ResidualTxn) {
			base = row.ResidualBase
		} else {
			base = row.ResidualBase.Mul(amount).Div(row.ResidualTxn).Round(baseScale)
		}
		row.ResidualTxn = row.ResidualTxn.Sub(amount)
		row.ResidualBase = row.ResidualBase.Sub(base)
		row.Status = UnappliedStatusForResidual(row.ResidualTxn, row.AmountTxn)
		if err := tx.UpdateUnapplied(ctx, row); err != nil {
			return nil, err
		}
		consumptions = append(consumptions, UnappliedConsumption{
			BatchID:         batchID,
			UnappliedCashID: row.ID,
			AmountTxn:       amount,
			AmountBase:      base,
		})
		remaining = remaining.Sub(amount)
	}
	if remaining.IsPositive() {
		return nil, ErrInsufficientFunds
	}
	if err := tx.InsertConsumptions(ctx, consumptions); err != nil {
		return nil, err
	}
	return consumptions, nil
}

// loadResult reassembles the full apply outcome of an existing batch.
func (s *Service) loadResult(ctx context.Context, tx TxRepository, batch SettlementBatch) (ApplyResult, error) {
	allocations, err := tx.ListAllocations(ctx, batch.ID)
	if err != nil {
		return ApplyResult{}, err
	}
	var journal ledger.JournalEntry
	if batch.JournalEntryID != 0 {
		journal, err = tx.GetJournal(ctx, batch.JournalEntryID)
		if err != nil {
			return ApplyResult{}, err
		}
	}
	created, err := tx.FindUnappliedBySourceBatch(ctx, batch.ID)
	if err != nil {
		return ApplyResult{}, err
	}
	consumptions, err := tx.ListConsumptions(ctx, batch.ID)
	if err != nil {
		return ApplyResult{}, err
	}
	var cashTxn *CashTransaction
	if batch.CashTransactionID != nil && s.cash != nil {
		txn, err := s.cash.Get(ctx, *batch.CashTransactionID)
		if err != nil {
			return ApplyResult{}, err
		}
		cashTxn = &txn
	}
	return ApplyResult{
		Batch:             batch,
		Allocations:       allocations,
		Journal:           journal,
		UnappliedCreated:  created,
		UnappliedConsumed: consumptions,
		CashTransaction:   cashTxn,
	}, nil
}

// replayAfterRace re-reads the batch a concurrent caller inserted first.
func (s *Service) replayAfterRace(ctx context.Context, cmd ApplyCommand) (ApplyResult, error) {
	var result ApplyResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		existing, err := s.resolveExisting(ctx, tx, cmd)
		if err != nil {
			return err
		}
		if existing == nil {
			return ErrBatchNotFound
		}
		replay, err := s.loadResult(ctx, tx, *existing)
		if err != nil {
			return err
		}
		replay.IdempotentReplay = true
		result = replay
		return nil
	})
	if err != nil {
		return ApplyResult{}, err
	}
	if s.metrics != nil {
		s.metrics.SettlementApplied(true)
	}
	return result, nil
}

// Get loads one batch with its allocations, journal, and unapplied cash
// state for the read API.
func (s *Service) Get(ctx context.Context, tenantID, id int64) (ApplyResult, error) {
	batch, err := s.repo.GetBatch(ctx, id)
	if err != nil {
		return ApplyResult{}, err
	}
	if batch.TenantID != tenantID {
		return ApplyResult{}, ErrBatchNotFound
	}
	var result ApplyResult
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		result, err = s.loadResult(ctx, tx, batch)
		return err
	})
	if err != nil {
		return ApplyResult{}, err
	}
	return result, nil
}

// List returns batches matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]SettlementBatch, error) {
	return s.repo.ListBatches(ctx, filter)
}

// resolveDirection derives the single direction of the request. For manual
// plans only the referenced items count as touched; for auto plans the whole
// candidate set does.
func resolveDirection(items []OpenItem, manual []ManualAllocation) (Direction, []OpenItem, error) {
	touched := items
	if len(manual) > 0 {
		wanted := make(map[int64]struct{}, len(manual))
		for _, alloc := range manual {
			wanted[alloc.OpenItemID] = struct{}{}
		}
		touched = touched[:0:0]
		for _, item := range items {
			if _, ok := wanted[item.ID]; ok {
				touched = append(touched, item)
			}
		}
	}
	if len(touched) == 0 {
		return DirectionAR, items, nil
	}
	direction := touched[0].Direction
	for _, item := range touched[1:] {
		if item.Direction != direction {
			return "", nil, ErrMixedDirections
		}
	}
	if len(manual) > 0 {
		return direction, touched, nil
	}
	// Auto plans consume the whole candidate set; it must be homogeneous.
	for _, item := range items {
		if item.Direction != direction {
			return "", nil, ErrMixedDirections
		}
	}
	return direction, items, nil
}

// buildPosting constructs the balanced two-line journal: for AR, debit offset
// and credit control by the settlement-base total; for AP, the mirror.
func buildPosting(cmd ApplyCommand, period ledger.Period, dir Direction, accounts PostingAccounts, totalBase decimal.Decimal, number string) ledger.PostingInput {
	debitAccount, creditAccount := accounts.Offset.ID, accounts.Control.ID
	if dir == DirectionAP {
		debitAccount, creditAccount = accounts.Control.ID, accounts.Offset.ID
	}
	memo := cmd.Memo
	if memo == "" {
		memo = fmt.Sprintf("Settlement %s", number)
	}
	return ledger.PostingInput{
		TenantID:      cmd.TenantID,
		LegalEntityID: cmd.LegalEntityID,
		PeriodID:      period.ID,
		Date:          cmd.SettlementDate,
		SourceModule:  SourceModuleName,
		SourceID:      uuid.New(),
		Memo:          memo,
		PostedBy:      cmd.ActorID,
		Lines: []ledger.PostingLineInput{
			{AccountID: debitAccount, Debit: totalBase},
			{AccountID: creditAccount, Credit: totalBase},
		},
	}
}

// buildAllocations maps plan lines to rows. Only the first row carries the
// primary and bank idempotency keys.
func buildAllocations(batch SettlementBatch, plan Plan, cmd ApplyCommand) []SettlementAllocation {
	out := make([]SettlementAllocation, 0, len(plan.Lines))
	for idx, line := range plan.Lines {
		alloc := SettlementAllocation{
			BatchID:            batch.ID,
			OpenItemID:         line.Item.ID,
			AmountTxn:          line.AmountTxn,
			AmountBaseHistoric: line.AmountBaseHistoric,
			AmountBaseSettle:   line.AmountBaseSettle,
		}
		if idx == 0 {
			alloc.ApplyKey = optional(cmd.IdempotencyKey)
			alloc.BankApplyKey = optional(cmd.BankApplyKey)
		}
		out = append(out, alloc)
	}
	return out
}

func buildApplySnapshot(batch SettlementBatch, allocations []SettlementAllocation, consumptions []UnappliedConsumption, created *UnappliedCash) audit.ApplySnapshot {
	snapshot := audit.ApplySnapshot{
		BatchID:        batch.ID,
		Number:         batch.Number,
		JournalEntryID: batch.JournalEntryID,
		FXRate:         batch.FXRate.String(),
		FXSource:       batch.FXSource,
		FXVarianceBase: batch.FXVarianceBase.String(),
	}
	if batch.ApplyKey != nil {
		snapshot.IdempotencyKey = *batch.ApplyKey
	}
	if batch.CashTransactionID != nil {
		snapshot.CashTransactionID = batch.CashTransactionID
	}
	if created != nil {
		snapshot.CreatedUnappliedID = &created.ID
	}
	for _, alloc := range allocations {
		snapshot.Allocations = append(snapshot.Allocations, audit.AllocationRecord{
			OpenItemID:         alloc.OpenItemID,
			AmountTxn:          alloc.AmountTxn.String(),
			AmountBaseHistoric: alloc.AmountBaseHistoric.String(),
			AmountBaseSettle:   alloc.AmountBaseSettle.String(),
		})
	}
	for _, consumption := range consumptions {
		snapshot.Consumed = append(snapshot.Consumed, audit.ConsumptionRecord{
			UnappliedCashID: consumption.UnappliedCashID,
			AmountTxn:       consumption.AmountTxn.String(),
			AmountBase:      consumption.AmountBase.String(),
		})
	}
	return snapshot
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

// uniqueViolation extracts the constraint name from a Postgres 23505 error.
func uniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return pgErr.ConstraintName, true
	}
	return "", false
}
