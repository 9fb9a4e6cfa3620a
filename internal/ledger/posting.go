package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// balanceTolerance is the maximum accepted difference between total debit and
// total credit of a posting.
var balanceTolerance = decimal.New(1, -6)

// PostingLineInput describes a journal line for a posting request.
type PostingLineInput struct {
	AccountID int64
	Debit     decimal.Decimal
	Credit    decimal.Decimal
}

// PostingInput groups fields required to create a journal entry.
type PostingInput struct {
	TenantID      int64
	LegalEntityID int64
	PeriodID      int64
	Date          time.Time
	SourceModule  string
	SourceID      uuid.UUID
	Memo          string
	PostedBy      int64
	Lines         []PostingLineInput
}

// Validate ensures posting input meets minimum criteria.
func (in PostingInput) Validate() error {
	if in.PeriodID == 0 {
		return fmt.Errorf("ledger: period required: %w", shared.ErrValidation)
	}
	if len(in.Lines) < 2 {
		return ErrTooFewLines
	}
	debit := decimal.Zero
	credit := decimal.Zero
	for idx, line := range in.Lines {
		if line.AccountID == 0 {
			return fmt.Errorf("ledger: line %d missing account: %w", idx, shared.ErrValidation)
		}
		if line.Debit.IsNegative() || line.Credit.IsNegative() {
			return fmt.Errorf("ledger: line %d negative amount: %w", idx, shared.ErrValidation)
		}
		if line.Debit.IsPositive() && line.Credit.IsPositive() {
			return fmt.Errorf("ledger: line %d cannot be both debit and credit: %w", idx, shared.ErrValidation)
		}
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	if debit.Sub(credit).Abs().GreaterThan(balanceTolerance) {
		return ErrUnbalanced
	}
	if in.SourceModule == "" {
		return fmt.Errorf("ledger: source module required: %w", shared.ErrValidation)
	}
	if in.SourceID == uuid.Nil {
		return fmt.Errorf("ledger: source id required: %w", shared.ErrValidation)
	}
	return nil
}

// ReverseLines builds the mirror lines of a posted entry: debit and credit
// swapped per line, amounts unchanged.
func ReverseLines(lines []JournalLine) []PostingLineInput {
	out := make([]PostingLineInput, 0, len(lines))
	for _, line := range lines {
		out = append(out, PostingLineInput{
			AccountID: line.AccountID,
			Debit:     line.Credit,
			Credit:    line.Debit,
		})
	}
	return out
}

// EnsureOpenForPosting checks that a period accepts postings for the date.
func EnsureOpenForPosting(p Period, date time.Time) error {
	if p.Status != PeriodStatusOpen {
		return ErrPeriodNotOpen
	}
	if date.Before(p.StartDate) || date.After(p.EndDate) {
		return fmt.Errorf("ledger: date %s outside period %s: %w", date.Format("2006-01-02"), p.Code, shared.ErrValidation)
	}
	return nil
}
