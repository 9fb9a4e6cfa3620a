package fx

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Source identifies where a resolved rate came from.
type Source string

const (
	// SourceParity marks equal-currency settlements, rate fixed at 1.
	SourceParity Source = "PARITY"
	// SourceRequest marks a caller-supplied rate; it wins over stored rates.
	SourceRequest Source = "REQUEST"
	// SourceTableExactSpot marks an exact-date spot rate from the rate table.
	SourceTableExactSpot Source = "FX_TABLE_EXACT_SPOT"
	// SourceTablePriorSpot marks the nearest earlier spot rate.
	SourceTablePriorSpot Source = "FX_TABLE_PRIOR_SPOT"
)

// FallbackMode controls what happens when no exact-date rate exists.
type FallbackMode string

const (
	FallbackNone      FallbackMode = "NONE"
	FallbackPriorDate FallbackMode = "PRIOR_DATE"
)

// IsValid reports whether the mode is known.
func (m FallbackMode) IsValid() bool {
	return m == FallbackNone || m == FallbackPriorDate
}

// Rate is a stored spot rate as of a date.
type Rate struct {
	FromCurrency string
	ToCurrency   string
	RateDate     time.Time
	Rate         decimal.Decimal
	CreatedAt    time.Time
}

// Resolution is the outcome of resolving a settlement rate.
type Resolution struct {
	Rate     decimal.Decimal
	Source   Source
	RateDate time.Time
}

var (
	// ErrParityViolated indicates a non-1 rate supplied for equal currencies.
	ErrParityViolated = fmt.Errorf("fx: rate must be exactly 1 when settlement and functional currency are equal: %w", shared.ErrValidation)
	// ErrRateRequired indicates no rate could be resolved and the caller must
	// supply one explicitly.
	ErrRateRequired = fmt.Errorf("fx: no spot rate available for the settlement date, explicit rate required: %w", shared.ErrSetup)
	// ErrRateNotPositive indicates a zero or negative supplied rate.
	ErrRateNotPositive = fmt.Errorf("fx: rate must be positive: %w", shared.ErrValidation)
)
