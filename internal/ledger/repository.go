package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the query surface shared by *pgxpool.Pool and pgx.Tx. Settlement
// runs these helpers against its own transaction so journal writes commit
// atomically with the rest of the apply.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// InsertEntry validates the posting input, persists a journal entry with its
// lines, and returns the stored entry. The caller holds the transaction.
func InsertEntry(ctx context.Context, q Querier, in PostingInput) (JournalEntry, error) {
	if err := in.Validate(); err != nil {
		return JournalEntry{}, err
	}
	row := q.QueryRow(ctx, `INSERT INTO journal_entries (tenant_id, legal_entity_id, period_id, date, source_module, source_id, memo, posted_by, status)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,'POSTED') RETURNING id, number, posted_at, created_at`,
		in.TenantID, in.LegalEntityID, in.PeriodID, in.Date, in.SourceModule, in.SourceID, in.Memo, in.PostedBy)
	entry := JournalEntry{
		TenantID:      in.TenantID,
		LegalEntityID: in.LegalEntityID,
		PeriodID:      in.PeriodID,
		Date:          in.Date,
		SourceModule:  in.SourceModule,
		SourceID:      in.SourceID,
		Memo:          in.Memo,
		PostedBy:      in.PostedBy,
		Status:        JournalStatusPosted,
	}
	if err := row.Scan(&entry.ID, &entry.Number, &entry.PostedAt, &entry.CreatedAt); err != nil {
		return JournalEntry{}, err
	}
	for _, line := range in.Lines {
		var stored JournalLine
		err := q.QueryRow(ctx, `INSERT INTO journal_lines (je_id, account_id, debit, credit)
VALUES ($1,$2,$3,$4) RETURNING id, created_at`, entry.ID, line.AccountID, line.Debit, line.Credit).
			Scan(&stored.ID, &stored.CreatedAt)
		if err != nil {
			return JournalEntry{}, err
		}
		stored.JournalID = entry.ID
		stored.AccountID = line.AccountID
		stored.Debit = line.Debit
		stored.Credit = line.Credit
		entry.Lines = append(entry.Lines, stored)
	}
	return entry, nil
}

// MarkReversed transitions a posted entry to REVERSED and records the
// back-reference to the reversal entry. The transition is one-way.
func MarkReversed(ctx context.Context, q Querier, entryID, reversalEntryID int64) error {
	tag, err := q.Exec(ctx, `UPDATE journal_entries SET status='REVERSED', reversal_journal_entry_id=$2 WHERE id=$1 AND status='POSTED' AND reversal_journal_entry_id IS NULL`,
		entryID, reversalEntryID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyReversed
	}
	return nil
}

// GetEntryWithLines loads a journal entry and its lines.
func GetEntryWithLines(ctx context.Context, q Querier, entryID int64) (JournalEntry, error) {
	var entry JournalEntry
	err := q.QueryRow(ctx, `SELECT id, number, tenant_id, legal_entity_id, period_id, date, source_module, source_id, memo, status, reversal_journal_entry_id, posted_by, posted_at, created_at
FROM journal_entries WHERE id=$1`, entryID).Scan(
		&entry.ID, &entry.Number, &entry.TenantID, &entry.LegalEntityID, &entry.PeriodID, &entry.Date,
		&entry.SourceModule, &entry.SourceID, &entry.Memo, &entry.Status, &entry.ReversalJournalEntryID,
		&entry.PostedBy, &entry.PostedAt, &entry.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalEntry{}, ErrJournalNotFound
		}
		return JournalEntry{}, err
	}
	rows, err := q.Query(ctx, `SELECT id, je_id, account_id, debit, credit, created_at FROM journal_lines WHERE je_id=$1 ORDER BY id`, entryID)
	if err != nil {
		return JournalEntry{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line JournalLine
		if err := rows.Scan(&line.ID, &line.JournalID, &line.AccountID, &line.Debit, &line.Credit, &line.CreatedAt); err != nil {
			return JournalEntry{}, err
		}
		entry.Lines = append(entry.Lines, line)
	}
	return entry, rows.Err()
}

// FindPeriodForDate resolves the fiscal period covering the date for a legal
// entity. With forUpdate the row is locked for the remainder of the
// transaction.
func FindPeriodForDate(ctx context.Context, q Querier, legalEntityID int64, date time.Time, forUpdate bool) (Period, error) {
	sql := `SELECT id, legal_entity_id, code, fiscal_year, start_date, end_date, status, created_at, updated_at
FROM fiscal_periods WHERE legal_entity_id=$1 AND start_date <= $2 AND end_date >= $2`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	var p Period
	err := q.QueryRow(ctx, sql, legalEntityID, date).Scan(
		&p.ID, &p.LegalEntityID, &p.Code, &p.FiscalYear, &p.StartDate, &p.EndDate, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Period{}, ErrNoPeriod
		}
		return Period{}, err
	}
	return p, nil
}

// GetAccount loads a ledger account by id.
func GetAccount(ctx context.Context, q Querier, accountID int64) (Account, error) {
	var a Account
	err := q.QueryRow(ctx, `SELECT id, tenant_id, legal_entity_id, code, name, type, active, postable FROM accounts WHERE id=$1`, accountID).
		Scan(&a.ID, &a.TenantID, &a.LegalEntityID, &a.Code, &a.Name, &a.Type, &a.Active, &a.Postable)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	return a, nil
}
