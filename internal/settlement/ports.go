package settlement

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/counterparty"
	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// ApplyResult is the response shape of one apply call. On an idempotent
// replay every field is loaded from the winning batch, untouched.
type ApplyResult struct {
	Batch             SettlementBatch
	Allocations       []SettlementAllocation
	Journal           ledger.JournalEntry
	UnappliedCreated  *UnappliedCash
	UnappliedConsumed []UnappliedConsumption
	CashTransaction   *CashTransaction
	IdempotentReplay  bool
}

// ReverseResult is the response shape of one reversal.
type ReverseResult struct {
	ReversalBatch SettlementBatch
	OriginalBatch SettlementBatch
	Journal       ledger.JournalEntry
}

// ListFilter narrows batch listings.
type ListFilter struct {
	TenantID       int64
	LegalEntityID  int64
	CounterpartyID int64
	Status         BatchStatus
	FromDate       time.Time
	ToDate         time.Time
	Limit          int
	Offset         int
}

// Repository exposes settlement persistence. All mutations run through WithTx
// so one apply, attach, or reverse is exactly one atomic transaction.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetBatch(ctx context.Context, id int64) (SettlementBatch, error)
	ListBatches(ctx context.Context, filter ListFilter) ([]SettlementBatch, error)
}

// TxRepository is the data surface available inside one settlement
// transaction. Lock-taking methods acquire pessimistic row locks held until
// commit; callers must follow the fixed acquisition order (open items, cash
// transaction, sequence counter, inserts, item updates, unapplied updates).
type TxRepository interface {
	AccountSource

	// Idempotency lookups, one per key space. A nil batch means no match.
	FindBatchByApplyKey(ctx context.Context, tenantID int64, key string) (*SettlementBatch, error)
	FindBatchByBankApplyKey(ctx context.Context, tenantID int64, key string) (*SettlementBatch, error)
	FindBatchByEventUID(ctx context.Context, tenantID int64, uid string) (*SettlementBatch, error)
	FindBatchByCashTransactionID(ctx context.Context, tenantID, cashTransactionID int64) (*SettlementBatch, error)

	GetCounterparty(ctx context.Context, id int64) (counterparty.Counterparty, error)
	LegalEntityCurrency(ctx context.Context, legalEntityID int64) (string, error)

	// LockOpenItems returns the unsettled candidate set for the counterparty
	// and currency, FOR UPDATE, ordered by (due date, document date, id).
	LockOpenItems(ctx context.Context, tenantID, legalEntityID, counterpartyID int64, currency string) ([]OpenItem, error)
	GetOpenItemForUpdate(ctx context.Context, id int64) (OpenItem, error)
	UpdateOpenItem(ctx context.Context, item OpenItem) error
	// RefreshDocumentStatus recomputes the document aggregate from the sum of
	// its open items' residuals and persists it.
	RefreshDocumentStatus(ctx context.Context, documentID int64) (DocumentStatus, error)

	// LockUnappliedCash returns consumable rows oldest receipt first, FOR UPDATE.
	LockUnappliedCash(ctx context.Context, tenantID, legalEntityID, counterpartyID int64, currency string) ([]UnappliedCash, error)
	GetUnappliedForUpdate(ctx context.Context, id int64) (UnappliedCash, error)
	InsertUnapplied(ctx context.Context, row UnappliedCash) (UnappliedCash, error)
	UpdateUnapplied(ctx context.Context, row UnappliedCash) error
	FindUnappliedBySourceBatch(ctx context.Context, batchID int64) (*UnappliedCash, error)
	FindUnappliedByBankApplyKey(ctx context.Context, tenantID int64, key string) (*UnappliedCash, error)
	InsertConsumptions(ctx context.Context, rows []UnappliedConsumption) error
	ListConsumptions(ctx context.Context, batchID int64) ([]UnappliedConsumption, error)

	// NextSequence reserves the next monotonic number for the scope under lock.
	NextSequence(ctx context.Context, tenantID, legalEntityID int64, namespace string, fiscalYear int) (int64, error)
	FindOpenPeriod(ctx context.Context, legalEntityID int64, date time.Time) (ledger.Period, error)

	InsertJournal(ctx context.Context, in ledger.PostingInput) (ledger.JournalEntry, error)
	GetJournal(ctx context.Context, entryID int64) (ledger.JournalEntry, error)
	MarkJournalReversed(ctx context.Context, entryID, reversalEntryID int64) error

	InsertBatch(ctx context.Context, batch SettlementBatch) (SettlementBatch, error)
	InsertAllocations(ctx context.Context, allocs []SettlementAllocation) ([]SettlementAllocation, error)
	GetBatchForUpdate(ctx context.Context, id int64) (SettlementBatch, error)
	ListAllocations(ctx context.Context, batchID int64) ([]SettlementAllocation, error)
	MarkBatchReversed(ctx context.Context, id, reversedByBatchID int64) error

	SetBatchBankRef(ctx context.Context, id int64, lineID *int64, ref, key string) error
	SetUnappliedBankRef(ctx context.Context, id int64, lineID *int64, ref, key string) error

	// LinkCashTransaction writes the settlement-linkage columns on the cash
	// transaction relation.
	LinkCashTransaction(ctx context.Context, cashTransactionID, batchID int64, unappliedCashID *int64) error

	RecordAudit(ctx context.Context, log shared.AuditLog) error
}

// CashPort is the slice of the external cash-register subsystem the
// settlement engine consumes. CreateOrReplay is idempotent by the CashSpec
// idempotency key and event uid; the implementation enforces register
// currency, session mode, and max-amount policy.
type CashPort interface {
	Get(ctx context.Context, id int64) (CashTransaction, error)
	CreateOrReplay(ctx context.Context, spec CashSpec, amount decimal.Decimal, currency string, counterpartyID int64) (CashTransaction, bool, error)
}
