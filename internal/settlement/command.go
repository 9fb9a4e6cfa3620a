package settlement

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"github.com/meridian-erp/meridian-erp/internal/fx"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ManualAllocation is one caller-chosen (open item, amount) pair.
type ManualAllocation struct {
	OpenItemID int64           `json:"openItemId" validate:"required"`
	AmountTxn  decimal.Decimal `json:"amountTxn"`
}

// CashSpec describes the cash transaction to create when the payment channel
// is CASH and no existing cash transaction id was supplied.
type CashSpec struct {
	RegisterID     int64  `json:"registerId" validate:"required"`
	SessionID      int64  `json:"sessionId" validate:"required"`
	IdempotencyKey string `json:"idempotencyKey" validate:"required"`
	EventUID       string `json:"eventUid"`
}

// ApplyCommand is the validated request for one settlement apply. Required
// and optional fields are explicit; defaults are resolved in Normalize before
// any side effect begins.
type ApplyCommand struct {
	TenantID       int64     `validate:"required"`
	LegalEntityID  int64     `validate:"required"`
	CounterpartyID int64     `validate:"required"`
	ActorID        int64     `validate:"required"`
	CurrencyCode   string    `validate:"required,len=3"`
	SettlementDate time.Time `validate:"required"`

	IncomingAmountTxn decimal.Decimal
	PaymentChannel    Channel
	IdempotencyKey    string `validate:"required,max=120"`

	ManualAllocations []ManualAllocation
	AutoAllocate      bool
	UseUnappliedCash  bool

	FXRate            *decimal.Decimal
	FXFallbackMode    *fx.FallbackMode
	FXFallbackMaxDays *int

	BankApplyKey        string
	BankStatementLineID *int64
	BankTransactionRef  string

	IntegrationEventUID string
	SourceModule        string
	SourceEntityID      string

	CashTransactionID *int64
	CashSpec          *CashSpec

	Memo string
}

// Normalize resolves defaults and canonical forms. Called once, before
// validation.
func (c *ApplyCommand) Normalize() {
	c.CurrencyCode = strings.ToUpper(strings.TrimSpace(c.CurrencyCode))
	c.IdempotencyKey = strings.TrimSpace(c.IdempotencyKey)
	c.BankApplyKey = strings.TrimSpace(c.BankApplyKey)
	c.IntegrationEventUID = strings.TrimSpace(c.IntegrationEventUID)
	if c.PaymentChannel == "" {
		c.PaymentChannel = ChannelManual
	}
	if len(c.ManualAllocations) == 0 {
		c.AutoAllocate = true
	}
}

// Validate rejects malformed commands before any lock is taken.
func (c *ApplyCommand) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("settlement: %v: %w", err, shared.ErrValidation)
	}
	if _, err := currency.ParseISO(c.CurrencyCode); err != nil {
		return fmt.Errorf("settlement: unknown currency %q: %w", c.CurrencyCode, shared.ErrValidation)
	}
	switch c.PaymentChannel {
	case ChannelCash, ChannelBank, ChannelManual:
	default:
		return fmt.Errorf("settlement: unknown payment channel %q: %w", c.PaymentChannel, shared.ErrValidation)
	}
	if c.IncomingAmountTxn.IsNegative() {
		return fmt.Errorf("settlement: incoming amount must not be negative: %w", shared.ErrValidation)
	}
	if c.IncomingAmountTxn.IsZero() && !c.UseUnappliedCash {
		return fmt.Errorf("settlement: incoming amount required unless unapplied cash is used: %w", shared.ErrValidation)
	}
	for idx, alloc := range c.ManualAllocations {
		if alloc.OpenItemID == 0 {
			return fmt.Errorf("settlement: manual allocation %d missing open item id: %w", idx, shared.ErrValidation)
		}
		if !alloc.AmountTxn.IsPositive() {
			return fmt.Errorf("settlement: manual allocation %d amount must be positive: %w", idx, shared.ErrValidation)
		}
	}
	if c.FXRate != nil && !c.FXRate.IsPositive() {
		return fmt.Errorf("settlement: explicit fx rate must be positive: %w", shared.ErrValidation)
	}
	if c.PaymentChannel == ChannelCash && c.CashTransactionID == nil && c.CashSpec == nil {
		return fmt.Errorf("settlement: cash channel requires a cash transaction id or spec: %w", shared.ErrValidation)
	}
	if c.CashSpec != nil {
		if err := validate.Struct(c.CashSpec); err != nil {
			return fmt.Errorf("settlement: cash spec: %v: %w", err, shared.ErrValidation)
		}
	}
	if c.BankStatementLineID != nil || c.BankTransactionRef != "" {
		if c.BankApplyKey == "" {
			return fmt.Errorf("settlement: bank metadata requires a bank apply key: %w", shared.ErrValidation)
		}
	}
	return nil
}

// ReverseCommand requests reversal of a posted batch.
type ReverseCommand struct {
	TenantID int64  `validate:"required"`
	BatchID  int64  `validate:"required"`
	ActorID  int64  `validate:"required"`
	Memo     string `validate:"max=500"`
}

// Validate rejects malformed reversal commands.
func (c *ReverseCommand) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("settlement: %v: %w", err, shared.ErrValidation)
	}
	return nil
}

// BankRefTarget enumerates attach targets.
type BankRefTarget string

const (
	TargetSettlement    BankRefTarget = "SETTLEMENT"
	TargetUnappliedCash BankRefTarget = "UNAPPLIED_CASH"
)

// AttachBankRefCommand idempotently tags a settlement batch or unapplied cash
// row with a bank statement reference.
type AttachBankRefCommand struct {
	TenantID            int64         `validate:"required"`
	ActorID             int64         `validate:"required"`
	TargetType          BankRefTarget `validate:"required"`
	TargetID            int64         `validate:"required"`
	BankStatementLineID *int64
	BankTransactionRef  string
	IdempotencyKey      string `validate:"required,max=120"`
}

// Validate rejects malformed attach commands.
func (c *AttachBankRefCommand) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("settlement: %v: %w", err, shared.ErrValidation)
	}
	if c.TargetType != TargetSettlement && c.TargetType != TargetUnappliedCash {
		return fmt.Errorf("settlement: unknown bank reference target %q: %w", c.TargetType, shared.ErrValidation)
	}
	if c.BankStatementLineID == nil && c.BankTransactionRef == "" {
		return fmt.Errorf("settlement: bank statement line id or transaction ref required: %w", shared.ErrValidation)
	}
	return nil
}
