package ledger

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func day(value string) time.Time {
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		panic(err)
	}
	return parsed
}

func validPosting() PostingInput {
	return PostingInput{
		TenantID:      1,
		LegalEntityID: 10,
		PeriodID:      900,
		Date:          day("2025-03-10"),
		SourceModule:  "CARI_SETTLEMENT",
		SourceID:      uuid.New(),
		PostedBy:      7,
		Lines: []PostingLineInput{
			{AccountID: 2, Debit: dec("100")},
			{AccountID: 1, Credit: dec("100")},
		},
	}
}

func TestPostingInputValidate(t *testing.T) {
	require.NoError(t, validPosting().Validate())

	missingPeriod := validPosting()
	missingPeriod.PeriodID = 0
	require.ErrorIs(t, missingPeriod.Validate(), shared.ErrValidation)

	oneLine := validPosting()
	oneLine.Lines = oneLine.Lines[:1]
	require.ErrorIs(t, oneLine.Validate(), ErrTooFewLines)

	unbalanced := validPosting()
	unbalanced.Lines[1].Credit = dec("99")
	require.ErrorIs(t, unbalanced.Validate(), ErrUnbalanced)

	bothSides := validPosting()
	bothSides.Lines[0].Credit = dec("1")
	require.ErrorIs(t, bothSides.Validate(), shared.ErrValidation)

	negative := validPosting()
	negative.Lines[0].Debit = dec("-100")
	require.ErrorIs(t, negative.Validate(), shared.ErrValidation)

	missingSource := validPosting()
	missingSource.SourceModule = ""
	require.ErrorIs(t, missingSource.Validate(), shared.ErrValidation)

	missingSourceID := validPosting()
	missingSourceID.SourceID = uuid.Nil
	require.ErrorIs(t, missingSourceID.Validate(), shared.ErrValidation)
}

func TestReverseLinesSwapsSides(t *testing.T) {
	lines := []JournalLine{
		{AccountID: 2, Debit: dec("110"), Credit: decimal.Zero},
		{AccountID: 1, Debit: decimal.Zero, Credit: dec("110")},
	}
	mirror := ReverseLines(lines)
	require.Len(t, mirror, 2)
	require.Equal(t, int64(2), mirror[0].AccountID)
	require.True(t, mirror[0].Credit.Equal(dec("110")))
	require.True(t, mirror[0].Debit.IsZero())
	require.Equal(t, int64(1), mirror[1].AccountID)
	require.True(t, mirror[1].Debit.Equal(dec("110")))
}

func TestEnsureOpenForPosting(t *testing.T) {
	period := Period{
		ID:         900,
		Code:       "2025",
		FiscalYear: 2025,
		StartDate:  day("2025-01-01"),
		EndDate:    day("2025-12-31"),
		Status:     PeriodStatusOpen,
	}
	require.NoError(t, EnsureOpenForPosting(period, day("2025-03-10")))

	closed := period
	closed.Status = PeriodStatusClosed
	require.ErrorIs(t, EnsureOpenForPosting(closed, day("2025-03-10")), ErrPeriodNotOpen)

	locked := period
	locked.Status = PeriodStatusLocked
	require.ErrorIs(t, EnsureOpenForPosting(locked, day("2025-03-10")), ErrPeriodNotOpen)

	require.ErrorIs(t, EnsureOpenForPosting(period, day("2026-01-01")), shared.ErrValidation)
}
