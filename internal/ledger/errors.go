package ledger

import (
	"fmt"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

var (
	// ErrUnbalanced indicates debit != credit.
	ErrUnbalanced = fmt.Errorf("ledger: journal lines must balance: %w", shared.ErrValidation)
	// ErrTooFewLines indicates less than two lines.
	ErrTooFewLines = fmt.Errorf("ledger: journal requires at least two lines: %w", shared.ErrValidation)
	// ErrPeriodNotOpen indicates the posting date falls in a period that is not open.
	ErrPeriodNotOpen = fmt.Errorf("ledger: period is not open for posting: %w", shared.ErrConflict)
	// ErrNoPeriod indicates no fiscal period covers the posting date.
	ErrNoPeriod = fmt.Errorf("ledger: no fiscal period covers the posting date: %w", shared.ErrSetup)
	// ErrJournalNotFound indicates missing entry.
	ErrJournalNotFound = fmt.Errorf("ledger: journal entry not found: %w", shared.ErrNotFound)
	// ErrAlreadyReversed indicates a second reversal attempt on the same entry.
	ErrAlreadyReversed = fmt.Errorf("ledger: journal entry already reversed: %w", shared.ErrConflict)
	// ErrAccountNotFound indicates a missing ledger account.
	ErrAccountNotFound = fmt.Errorf("ledger: account not found: %w", shared.ErrNotFound)
	// ErrMappingNotFound indicates no purpose-account mapping matched.
	ErrMappingNotFound = fmt.Errorf("ledger: purpose account mapping not found: %w", shared.ErrSetup)
)
