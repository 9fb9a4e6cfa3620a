package settlement

import (
	"fmt"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

var (
	// ErrInsufficientFunds indicates the plan exceeds available funds.
	ErrInsufficientFunds = fmt.Errorf("settlement: allocation total exceeds available funds: %w", shared.ErrConflict)
	// ErrAllocationExceedsResidual indicates a manual allocation larger than
	// the open item's residual.
	ErrAllocationExceedsResidual = fmt.Errorf("settlement: allocation exceeds open item residual: %w", shared.ErrConflict)
	// ErrItemNotInCandidates indicates a manual allocation referencing an open
	// item outside the locked candidate set.
	ErrItemNotInCandidates = fmt.Errorf("settlement: open item not in candidate set: %w", shared.ErrValidation)
	// ErrMixedDirections indicates AR and AP items in one request.
	ErrMixedDirections = fmt.Errorf("settlement: open items must share one direction: %w", shared.ErrConflict)
	// ErrEmptyPlan indicates nothing could be allocated and no unapplied cash
	// would be produced.
	ErrEmptyPlan = fmt.Errorf("settlement: nothing to allocate: %w", shared.ErrValidation)
	// ErrIdempotencyConflict indicates two supplied key spaces resolve to
	// different existing batches.
	ErrIdempotencyConflict = fmt.Errorf("settlement: idempotency keys resolve to different batches: %w", shared.ErrConflict)
	// ErrBatchNotFound indicates the settlement batch does not exist.
	ErrBatchNotFound = fmt.Errorf("settlement: batch not found: %w", shared.ErrNotFound)
	// ErrAlreadyReversed indicates a second reversal of the same batch.
	ErrAlreadyReversed = fmt.Errorf("settlement: batch already reversed: %w", shared.ErrConflict)
	// ErrNotReversible indicates downstream state has progressed past the
	// point of exact restoration.
	ErrNotReversible = fmt.Errorf("settlement: downstream state prevents exact restoration: %w", shared.ErrConflict)
	// ErrCashStillPosted indicates the linked cash transaction must be
	// reversed first.
	ErrCashStillPosted = fmt.Errorf("settlement: linked cash transaction still posted: %w", shared.ErrConflict)
	// ErrBankRefConflict indicates a replayed attach with different reference
	// values, or a target already carrying a different reference.
	ErrBankRefConflict = fmt.Errorf("settlement: bank reference conflict: %w", shared.ErrConflict)
	// ErrUnappliedNotFound indicates the unapplied cash row does not exist.
	ErrUnappliedNotFound = fmt.Errorf("settlement: unapplied cash not found: %w", shared.ErrNotFound)
	// ErrCashMismatch indicates the inner cash-transaction idempotency replay
	// disagreed with the request on a cross-checked field.
	ErrCashMismatch = fmt.Errorf("settlement: cash transaction does not match request: %w", shared.ErrConflict)
)

// SetupError names the purpose codes that could not be resolved so operators
// can fix the mapping.
type SetupError struct {
	LegalEntityID int64
	MissingCodes  []string
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("settlement: purpose account mapping missing for legal entity %d, codes %v", e.LegalEntityID, e.MissingCodes)
}

// Unwrap classifies SetupError as a setup failure.
func (e *SetupError) Unwrap() error { return shared.ErrSetup }
