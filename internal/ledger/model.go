package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// JournalStatus enumerates journal entry states. Posted entries are immutable
// except for the one-way POSTED -> REVERSED transition.
type JournalStatus string

const (
	JournalStatusPosted   JournalStatus = "POSTED"
	JournalStatusReversed JournalStatus = "REVERSED"
)

// JournalEntry is a posted, balanced double-entry record.
type JournalEntry struct {
	ID                     int64
	Number                 int64
	TenantID               int64
	LegalEntityID          int64
	PeriodID               int64
	Date                   time.Time
	SourceModule           string
	SourceID               uuid.UUID
	Memo                   string
	Status                 JournalStatus
	ReversalJournalEntryID *int64
	PostedBy               int64
	PostedAt               time.Time
	CreatedAt              time.Time
	Lines                  []JournalLine
}

// JournalLine is one leg of a journal entry.
type JournalLine struct {
	ID        int64
	JournalID int64
	AccountID int64
	Debit     decimal.Decimal
	Credit    decimal.Decimal
	CreatedAt time.Time
}

// PeriodStatus enumerates valid fiscal period states.
type PeriodStatus string

const (
	PeriodStatusOpen   PeriodStatus = "OPEN"
	PeriodStatusClosed PeriodStatus = "CLOSED"
	PeriodStatusLocked PeriodStatus = "LOCKED"
)

// Period represents a fiscal period window for a legal entity.
type Period struct {
	ID            int64
	LegalEntityID int64
	Code          string
	FiscalYear    int
	StartDate     time.Time
	EndDate       time.Time
	Status        PeriodStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// AccountType enumerates ledger account classes.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeRevenue   AccountType = "REVENUE"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// Account is a ledger account in a legal entity's chart.
type Account struct {
	ID            int64
	TenantID      int64
	LegalEntityID int64
	Code          string
	Name          string
	Type          AccountType
	Active        bool
	Postable      bool
}

// PurposeAccount maps a semantic purpose code to a ledger account per legal
// entity, so posting logic never hardcodes account ids.
type PurposeAccount struct {
	LegalEntityID int64
	Code          string
	AccountID     int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
