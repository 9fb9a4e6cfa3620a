package settlement

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction distinguishes receivable from payable settlements. One batch
// touches open items of exactly one direction.
type Direction string

const (
	DirectionAR Direction = "AR"
	DirectionAP Direction = "AP"
)

// Channel is the payment channel of an apply request.
type Channel string

const (
	ChannelCash   Channel = "CASH"
	ChannelBank   Channel = "BANK"
	ChannelManual Channel = "MANUAL"
)

// SourceContext classifies how a settlement was funded; it selects the
// context-suffixed purpose-account codes.
type SourceContext string

const (
	ContextCashLinked     SourceContext = "CASH_LINKED"
	ContextOnAccountApply SourceContext = "ON_ACCOUNT_APPLY"
	ContextManual         SourceContext = "MANUAL"
)

// OpenItemStatus tracks how much of an open item remains unsettled.
type OpenItemStatus string

const (
	OpenItemOpen             OpenItemStatus = "OPEN"
	OpenItemPartiallySettled OpenItemStatus = "PARTIALLY_SETTLED"
	OpenItemSettled          OpenItemStatus = "SETTLED"
)

// OpenItem is the unit of settlement: an unsettled receivable/payable line
// carrying amounts in both transaction and base currency. Mutated only inside
// a locked settlement or reversal transaction.
type OpenItem struct {
	ID             int64
	TenantID       int64
	LegalEntityID  int64
	DocumentID     int64
	CounterpartyID int64
	Direction      Direction
	Currency       string
	AmountTxn      decimal.Decimal
	AmountBase     decimal.Decimal
	ResidualTxn    decimal.Decimal
	ResidualBase   decimal.Decimal
	SettledTxn     decimal.Decimal
	Status         OpenItemStatus
	DueDate        time.Time
	DocumentDate   time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// StatusForResidual derives the open item status from its residual.
func StatusForResidual(residual, original decimal.Decimal) OpenItemStatus {
	switch {
	case residual.IsZero():
		return OpenItemSettled
	case residual.LessThan(original):
		return OpenItemPartiallySettled
	default:
		return OpenItemOpen
	}
}

// DocumentStatus is the aggregate status of a posted AR/AP document, derived
// from the sum of its open items' residuals.
type DocumentStatus string

const (
	DocumentOpen             DocumentStatus = "OPEN"
	DocumentPartiallySettled DocumentStatus = "PARTIALLY_SETTLED"
	DocumentSettled          DocumentStatus = "SETTLED"
)

// BatchStatus enumerates settlement batch states. The transition is one-way:
// POSTED -> REVERSED, at most once.
type BatchStatus string

const (
	BatchPosted   BatchStatus = "POSTED"
	BatchReversed BatchStatus = "REVERSED"
)

// SettlementBatch records one settlement operation: its allocations, posted
// journal, cash/bank linkage, and every idempotency surface.
type SettlementBatch struct {
	ID             int64
	TenantID       int64
	LegalEntityID  int64
	CounterpartyID int64
	Direction      Direction
	Currency       string
	SettlementDate time.Time
	SequenceNo     int64
	Number         string
	Status         BatchStatus
	Context        SourceContext

	TotalAllocatedTxn  decimal.Decimal
	TotalAllocatedBase decimal.Decimal
	FXRate             decimal.Decimal
	FXSource           string
	FXVarianceBase     decimal.Decimal

	JournalEntryID      int64
	ReversalOfBatchID   *int64
	ReversedByBatchID   *int64
	CashTransactionID   *int64
	BankStatementLineID *int64
	BankTransactionRef  string
	BankApplyKey        *string
	ApplyKey            *string
	IntegrationEventUID *string
	SourceModule        string
	SourceEntityID      string

	CreatedBy int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SettlementAllocation pairs a batch with one open item. Only the first
// allocation of a batch carries the primary/bank idempotency keys.
type SettlementAllocation struct {
	ID                 int64
	BatchID            int64
	OpenItemID         int64
	AmountTxn          decimal.Decimal
	AmountBaseHistoric decimal.Decimal
	AmountBaseSettle   decimal.Decimal
	ApplyKey           *string
	BankApplyKey       *string
	CreatedAt          time.Time
}

// UnappliedStatus tracks consumption of an unapplied cash receipt.
type UnappliedStatus string

const (
	UnappliedOpen         UnappliedStatus = "UNAPPLIED"
	UnappliedPartial      UnappliedStatus = "PARTIALLY_APPLIED"
	UnappliedFullyApplied UnappliedStatus = "FULLY_APPLIED"
	UnappliedReversed     UnappliedStatus = "REVERSED"
)

// UnappliedCash is a received amount not yet matched to an open item.
type UnappliedCash struct {
	ID                  int64
	TenantID            int64
	LegalEntityID       int64
	CounterpartyID      int64
	Currency            string
	AmountTxn           decimal.Decimal
	AmountBase          decimal.Decimal
	ResidualTxn         decimal.Decimal
	ResidualBase        decimal.Decimal
	Status              UnappliedStatus
	SourceBatchID       *int64
	BankStatementLineID *int64
	BankTransactionRef  string
	BankApplyKey        *string
	ReceiptDate         time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// UnappliedStatusForResidual derives the unapplied cash status.
func UnappliedStatusForResidual(residual, original decimal.Decimal) UnappliedStatus {
	switch {
	case residual.IsZero():
		return UnappliedFullyApplied
	case residual.LessThan(original):
		return UnappliedPartial
	default:
		return UnappliedOpen
	}
}

// UnappliedConsumption links a batch to an unapplied cash row it consumed.
// Stored as first-class rows so reversal replays relational state instead of
// reconstructing it from the audit trail.
type UnappliedConsumption struct {
	ID              int64
	BatchID         int64
	UnappliedCashID int64
	AmountTxn       decimal.Decimal
	AmountBase      decimal.Decimal
	CreatedAt       time.Time
}

// CashTransactionStatus mirrors the status surface of the external cash
// subsystem that matters to settlement.
type CashTransactionStatus string

const (
	CashPosted   CashTransactionStatus = "POSTED"
	CashReversed CashTransactionStatus = "REVERSED"
)

// CashTransaction is the settlement-facing projection of a cash register
// transaction owned by the external cash subsystem.
type CashTransaction struct {
	ID                int64
	RegisterID        int64
	SessionID         int64
	Currency          string
	Amount            decimal.Decimal
	Status            CashTransactionStatus
	SettlementBatchID *int64
	UnappliedCashID   *int64
}
