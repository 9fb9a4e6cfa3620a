package settlement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/counterparty"
	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// PostgresRepository is the Postgres-backed settlement store.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

var (
	_ Repository   = (*PostgresRepository)(nil)
	_ TxRepository = (*txRepository)(nil)
)

func NewRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// WithTx runs fn inside one RepeatableRead transaction.
func (r *PostgresRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const batchColumns = `id, tenant_id, legal_entity_id, counterparty_id, direction, currency,
	settlement_date, sequence_no, number, status, source_context,
	total_allocated_txn, total_allocated_base, fx_rate, fx_source, fx_variance_base,
	COALESCE(journal_entry_id, 0), reversal_of_batch_id, reversed_by_batch_id,
	cash_transaction_id, bank_statement_line_id, COALESCE(bank_transaction_ref, ''),
	bank_apply_key, apply_key, integration_event_uid,
	COALESCE(source_module, ''), COALESCE(source_entity_id, ''),
	created_by, created_at, updated_at`

func scanBatch(row pgx.Row) (SettlementBatch, error) {
	var b SettlementBatch
	err := row.Scan(
		&b.ID, &b.TenantID, &b.LegalEntityID, &b.CounterpartyID, &b.Direction, &b.Currency,
		&b.SettlementDate, &b.SequenceNo, &b.Number, &b.Status, &b.Context,
		&b.TotalAllocatedTxn, &b.TotalAllocatedBase, &b.FXRate, &b.FXSource, &b.FXVarianceBase,
		&b.JournalEntryID, &b.ReversalOfBatchID, &b.ReversedByBatchID,
		&b.CashTransactionID, &b.BankStatementLineID, &b.BankTransactionRef,
		&b.BankApplyKey, &b.ApplyKey, &b.IntegrationEventUID,
		&b.SourceModule, &b.SourceEntityID,
		&b.CreatedBy, &b.CreatedAt, &b.UpdatedAt,
	)
	return b, err
}

func (r *PostgresRepository) GetBatch(ctx context.Context, id int64) (SettlementBatch, error) {
	batch, err := scanBatch(r.pool.QueryRow(ctx,
		`SELECT `+batchColumns+` FROM cari_settlement_batches WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return SettlementBatch{}, ErrBatchNotFound
	}
	if err != nil {
		return SettlementBatch{}, fmt.Errorf("settlement: get batch: %w", err)
	}
	return batch, nil
}

func (r *PostgresRepository) ListBatches(ctx context.Context, filter ListFilter) ([]SettlementBatch, error) {
	conditions := []string{"tenant_id = $1"}
	args := []any{filter.TenantID}
	add := func(cond string, arg any) {
		args = append(args, arg)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}
	if filter.LegalEntityID != 0 {
		add("legal_entity_id = $%d", filter.LegalEntityID)
	}
	if filter.CounterpartyID != 0 {
		add("counterparty_id = $%d", filter.CounterpartyID)
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	if !filter.FromDate.IsZero() {
		add("settlement_date >= $%d", filter.FromDate)
	}
	if !filter.ToDate.IsZero() {
		add("settlement_date <= $%d", filter.ToDate)
	}
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	args = append(args, limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM cari_settlement_batches WHERE %s
		ORDER BY settlement_date DESC, id DESC LIMIT $%d OFFSET $%d`,
		batchColumns, strings.Join(conditions, " AND "), len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("settlement: list batches: %w", err)
	}
	defer rows.Close()

	var batches []SettlementBatch
	for rows.Next() {
		batch, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("settlement: scan batch: %w", err)
		}
		batches = append(batches, batch)
	}
	return batches, rows.Err()
}

// txRepository implements TxRepository over one open pgx transaction.
type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) findBatch(ctx context.Context, query string, args ...any) (*SettlementBatch, error) {
	batch, err := scanBatch(r.tx.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("settlement: find batch: %w", err)
	}
	return &batch, nil
}

func (r *txRepository) FindBatchByApplyKey(ctx context.Context, tenantID int64, key string) (*SettlementBatch, error) {
	return r.findBatch(ctx, `SELECT `+batchColumns+` FROM cari_settlement_batches
		WHERE tenant_id = $1 AND apply_key = $2`, tenantID, key)
}

func (r *txRepository) FindBatchByBankApplyKey(ctx context.Context, tenantID int64, key string) (*SettlementBatch, error) {
	return r.findBatch(ctx, `SELECT `+batchColumns+` FROM cari_settlement_batches
		WHERE tenant_id = $1 AND bank_apply_key = $2`, tenantID, key)
}

func (r *txRepository) FindBatchByEventUID(ctx context.Context, tenantID int64, uid string) (*SettlementBatch, error) {
	return r.findBatch(ctx, `SELECT `+batchColumns+` FROM cari_settlement_batches
		WHERE tenant_id = $1 AND integration_event_uid = $2`, tenantID, uid)
}

func (r *txRepository) FindBatchByCashTransactionID(ctx context.Context, tenantID, cashTransactionID int64) (*SettlementBatch, error) {
	return r.findBatch(ctx, `SELECT `+batchColumns+` FROM cari_settlement_batches
		WHERE tenant_id = $1 AND cash_transaction_id = $2 AND status = 'POSTED'`, tenantID, cashTransactionID)
}

func (r *txRepository) GetCounterparty(ctx context.Context, id int64) (counterparty.Counterparty, error) {
	return counterparty.Get(ctx, r.tx, id)
}

func (r *txRepository) LegalEntityCurrency(ctx context.Context, legalEntityID int64) (string, error) {
	var currency string
	err := r.tx.QueryRow(ctx,
		`SELECT base_currency FROM legal_entities WHERE id = $1`, legalEntityID).Scan(&currency)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("settlement: legal entity %d: %w", legalEntityID, shared.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("settlement: legal entity currency: %w", err)
	}
	return currency, nil
}

const openItemColumns = `id, tenant_id, legal_entity_id, document_id, counterparty_id, direction,
	currency, amount_txn, amount_base, residual_txn, residual_base, settled_txn, status,
	due_date, document_date, created_at, updated_at`

func scanOpenItem(row pgx.Row) (OpenItem, error) {
	var it OpenItem
	err := row.Scan(
		&it.ID, &it.TenantID, &it.LegalEntityID, &it.DocumentID, &it.CounterpartyID, &it.Direction,
		&it.Currency, &it.AmountTxn, &it.AmountBase, &it.ResidualTxn, &it.ResidualBase, &it.SettledTxn,
		&it.Status, &it.DueDate, &it.DocumentDate, &it.CreatedAt, &it.UpdatedAt,
	)
	return it, err
}

func (r *txRepository) LockOpenItems(ctx context.Context, tenantID, legalEntityID, counterpartyID int64, currency string) ([]OpenItem, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+openItemColumns+` FROM cari_open_items
		WHERE tenant_id = $1 AND legal_entity_id = $2 AND counterparty_id = $3
		  AND currency = $4 AND residual_txn > 0
		ORDER BY due_date, document_date, id
		FOR UPDATE`, tenantID, legalEntityID, counterpartyID, currency)
	if err != nil {
		return nil, fmt.Errorf("settlement: lock open items: %w", err)
	}
	defer rows.Close()

	var items []OpenItem
	for rows.Next() {
		item, err := scanOpenItem(rows)
		if err != nil {
			return nil, fmt.Errorf("settlement: scan open item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *txRepository) GetOpenItemForUpdate(ctx context.Context, id int64) (OpenItem, error) {
	item, err := scanOpenItem(r.tx.QueryRow(ctx,
		`SELECT `+openItemColumns+` FROM cari_open_items WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return OpenItem{}, fmt.Errorf("settlement: open item %d: %w", id, shared.ErrNotFound)
	}
	if err != nil {
		return OpenItem{}, fmt.Errorf("settlement: get open item: %w", err)
	}
	return item, nil
}

func (r *txRepository) UpdateOpenItem(ctx context.Context, item OpenItem) error {
	_, err := r.tx.Exec(ctx, `UPDATE cari_open_items
		SET residual_txn = $2, residual_base = $3, settled_txn = $4, status = $5, updated_at = NOW()
		WHERE id = $1`,
		item.ID, item.ResidualTxn, item.ResidualBase, item.SettledTxn, item.Status)
	if err != nil {
		return fmt.Errorf("settlement: update open item: %w", err)
	}
	return nil
}

func (r *txRepository) RefreshDocumentStatus(ctx context.Context, documentID int64) (DocumentStatus, error) {
	var residual, original decimal.Decimal
	err := r.tx.QueryRow(ctx, `SELECT COALESCE(SUM(residual_txn), 0), COALESCE(SUM(amount_txn), 0)
		FROM cari_open_items WHERE document_id = $1`, documentID).Scan(&residual, &original)
	if err != nil {
		return "", fmt.Errorf("settlement: document residuals: %w", err)
	}
	status := DocumentStatus(StatusForResidual(residual, original))
	_, err = r.tx.Exec(ctx, `UPDATE cari_documents SET settlement_status = $2, updated_at = NOW() WHERE id = $1`,
		documentID, status)
	if err != nil {
		return "", fmt.Errorf("settlement: refresh document status: %w", err)
	}
	return status, nil
}

const unappliedColumns = `id, tenant_id, legal_entity_id, counterparty_id, currency,
	amount_txn, amount_base, residual_txn, residual_base, status, source_batch_id,
	bank_statement_line_id, COALESCE(bank_transaction_ref, ''), bank_apply_key,
	receipt_date, created_at, updated_at`

func scanUnapplied(row pgx.Row) (UnappliedCash, error) {
	var u UnappliedCash
	err := row.Scan(
		&u.ID, &u.TenantID, &u.LegalEntityID, &u.CounterpartyID, &u.Currency,
		&u.AmountTxn, &u.AmountBase, &u.ResidualTxn, &u.ResidualBase, &u.Status, &u.SourceBatchID,
		&u.BankStatementLineID, &u.BankTransactionRef, &u.BankApplyKey,
		&u.ReceiptDate, &u.CreatedAt, &u.UpdatedAt,
	)
	return u, err
}

func (r *txRepository) LockUnappliedCash(ctx context.Context, tenantID, legalEntityID, counterpartyID int64, currency string) ([]UnappliedCash, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+unappliedColumns+` FROM cari_unapplied_cash
		WHERE tenant_id = $1 AND legal_entity_id = $2 AND counterparty_id = $3
		  AND currency = $4 AND residual_txn > 0 AND status IN ('UNAPPLIED', 'PARTIALLY_APPLIED')
		ORDER BY receipt_date, id
		FOR UPDATE`, tenantID, legalEntityID, counterpartyID, currency)
	if err != nil {
		return nil, fmt.Errorf("settlement: lock unapplied cash: %w", err)
	}
	defer rows.Close()

	var out []UnappliedCash
	for rows.Next() {
		row, err := scanUnapplied(rows)
		if err != nil {
			return nil, fmt.Errorf("settlement: scan unapplied cash: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *txRepository) GetUnappliedForUpdate(ctx context.Context, id int64) (UnappliedCash, error) {
	row, err := scanUnapplied(r.tx.QueryRow(ctx,
		`SELECT `+unappliedColumns+` FROM cari_unapplied_cash WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return UnappliedCash{}, ErrUnappliedNotFound
	}
	if err != nil {
		return UnappliedCash{}, fmt.Errorf("settlement: get unapplied cash: %w", err)
	}
	return row, nil
}

func (r *txRepository) InsertUnapplied(ctx context.Context, row UnappliedCash) (UnappliedCash, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO cari_unapplied_cash
		(tenant_id, legal_entity_id, counterparty_id, currency, amount_txn, amount_base,
		 residual_txn, residual_base, status, source_batch_id, bank_statement_line_id,
		 bank_transaction_ref, bank_apply_key, receipt_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NULLIF($12, ''), $13, $14)
		RETURNING id, created_at, updated_at`,
		row.TenantID, row.LegalEntityID, row.CounterpartyID, row.Currency, row.AmountTxn, row.AmountBase,
		row.ResidualTxn, row.ResidualBase, row.Status, row.SourceBatchID, row.BankStatementLineID,
		row.BankTransactionRef, row.BankApplyKey, row.ReceiptDate,
	).Scan(&row.ID, &row.CreatedAt, &row.UpdatedAt)
	if err != nil {
		return UnappliedCash{}, fmt.Errorf("settlement: insert unapplied cash: %w", err)
	}
	return row, nil
}

func (r *txRepository) UpdateUnapplied(ctx context.Context, row UnappliedCash) error {
	_, err := r.tx.Exec(ctx, `UPDATE cari_unapplied_cash
		SET residual_txn = $2, residual_base = $3, status = $4, updated_at = NOW()
		WHERE id = $1`,
		row.ID, row.ResidualTxn, row.ResidualBase, row.Status)
	if err != nil {
		return fmt.Errorf("settlement: update unapplied cash: %w", err)
	}
	return nil
}

func (r *txRepository) FindUnappliedBySourceBatch(ctx context.Context, batchID int64) (*UnappliedCash, error) {
	row, err := scanUnapplied(r.tx.QueryRow(ctx,
		`SELECT `+unappliedColumns+` FROM cari_unapplied_cash WHERE source_batch_id = $1 FOR UPDATE`, batchID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("settlement: find unapplied by source batch: %w", err)
	}
	return &row, nil
}

func (r *txRepository) FindUnappliedByBankApplyKey(ctx context.Context, tenantID int64, key string) (*UnappliedCash, error) {
	row, err := scanUnapplied(r.tx.QueryRow(ctx,
		`SELECT `+unappliedColumns+` FROM cari_unapplied_cash
		WHERE tenant_id = $1 AND bank_apply_key = $2`, tenantID, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("settlement: find unapplied by bank apply key: %w", err)
	}
	return &row, nil
}

func (r *txRepository) InsertConsumptions(ctx context.Context, rows []UnappliedConsumption) error {
	for _, c := range rows {
		_, err := r.tx.Exec(ctx, `INSERT INTO cari_unapplied_consumptions
			(batch_id, unapplied_cash_id, amount_txn, amount_base)
			VALUES ($1, $2, $3, $4)`,
			c.BatchID, c.UnappliedCashID, c.AmountTxn, c.AmountBase)
		if err != nil {
			return fmt.Errorf("settlement: insert consumption: %w", err)
		}
	}
	return nil
}

func (r *txRepository) ListConsumptions(ctx context.Context, batchID int64) ([]UnappliedConsumption, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, batch_id, unapplied_cash_id, amount_txn, amount_base, created_at
		FROM cari_unapplied_consumptions WHERE batch_id = $1 ORDER BY id`, batchID)
	if err != nil {
		return nil, fmt.Errorf("settlement: list consumptions: %w", err)
	}
	defer rows.Close()

	var out []UnappliedConsumption
	for rows.Next() {
		var c UnappliedConsumption
		if err := rows.Scan(&c.ID, &c.BatchID, &c.UnappliedCashID, &c.AmountTxn, &c.AmountBase, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("settlement: scan consumption: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *txRepository) NextSequence(ctx context.Context, tenantID, legalEntityID int64, namespace string, fiscalYear int) (int64, error) {
	var next int64
	err := r.tx.QueryRow(ctx, `INSERT INTO settlement_sequences (tenant_id, legal_entity_id, namespace, fiscal_year, last_value)
		VALUES ($1, $2, $3, $4, 1)
		ON CONFLICT (tenant_id, legal_entity_id, namespace, fiscal_year)
		DO UPDATE SET last_value = settlement_sequences.last_value + 1
		RETURNING last_value`,
		tenantID, legalEntityID, namespace, fiscalYear).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("settlement: next sequence: %w", err)
	}
	return next, nil
}

func (r *txRepository) FindOpenPeriod(ctx context.Context, legalEntityID int64, date time.Time) (ledger.Period, error) {
	return ledger.FindPeriodForDate(ctx, r.tx, legalEntityID, date, true)
}

func (r *txRepository) InsertJournal(ctx context.Context, in ledger.PostingInput) (ledger.JournalEntry, error) {
	return ledger.InsertEntry(ctx, r.tx, in)
}

func (r *txRepository) GetJournal(ctx context.Context, entryID int64) (ledger.JournalEntry, error) {
	return ledger.GetEntryWithLines(ctx, r.tx, entryID)
}

func (r *txRepository) MarkJournalReversed(ctx context.Context, entryID, reversalEntryID int64) error {
	return ledger.MarkReversed(ctx, r.tx, entryID, reversalEntryID)
}

func (r *txRepository) ResolvePurposeAccount(ctx context.Context, legalEntityID int64, codes []string) (ledger.Account, string, error) {
	return ledger.ResolvePurposeAccount(ctx, r.tx, legalEntityID, codes)
}

func (r *txRepository) GetAccount(ctx context.Context, accountID int64) (ledger.Account, error) {
	return ledger.GetAccount(ctx, r.tx, accountID)
}

func (r *txRepository) InsertBatch(ctx context.Context, batch SettlementBatch) (SettlementBatch, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO cari_settlement_batches
		(tenant_id, legal_entity_id, counterparty_id, direction, currency, settlement_date,
		 sequence_no, number, status, source_context,
		 total_allocated_txn, total_allocated_base, fx_rate, fx_source, fx_variance_base,
		 journal_entry_id, reversal_of_batch_id, cash_transaction_id,
		 bank_statement_line_id, bank_transaction_ref, bank_apply_key,
		 apply_key, integration_event_uid, source_module, source_entity_id, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
		        NULLIF($16::bigint, 0), $17, $18, $19, NULLIF($20, ''), $21, $22, $23,
		        NULLIF($24, ''), NULLIF($25, ''), $26)
		RETURNING id, created_at, updated_at`,
		batch.TenantID, batch.LegalEntityID, batch.CounterpartyID, batch.Direction, batch.Currency,
		batch.SettlementDate, batch.SequenceNo, batch.Number, batch.Status, batch.Context,
		batch.TotalAllocatedTxn, batch.TotalAllocatedBase, batch.FXRate, batch.FXSource, batch.FXVarianceBase,
		batch.JournalEntryID, batch.ReversalOfBatchID, batch.CashTransactionID,
		batch.BankStatementLineID, batch.BankTransactionRef, batch.BankApplyKey,
		batch.ApplyKey, batch.IntegrationEventUID, batch.SourceModule, batch.SourceEntityID,
		batch.CreatedBy,
	).Scan(&batch.ID, &batch.CreatedAt, &batch.UpdatedAt)
	if err != nil {
		return SettlementBatch{}, fmt.Errorf("settlement: insert batch: %w", err)
	}
	return batch, nil
}

func (r *txRepository) InsertAllocations(ctx context.Context, allocs []SettlementAllocation) ([]SettlementAllocation, error) {
	for i := range allocs {
		err := r.tx.QueryRow(ctx, `INSERT INTO cari_settlement_allocations
			(batch_id, open_item_id, amount_txn, amount_base_historic, amount_base_settle,
			 apply_key, bank_apply_key)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id, created_at`,
			allocs[i].BatchID, allocs[i].OpenItemID, allocs[i].AmountTxn,
			allocs[i].AmountBaseHistoric, allocs[i].AmountBaseSettle,
			allocs[i].ApplyKey, allocs[i].BankApplyKey,
		).Scan(&allocs[i].ID, &allocs[i].CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("settlement: insert allocation: %w", err)
		}
	}
	return allocs, nil
}

func (r *txRepository) GetBatchForUpdate(ctx context.Context, id int64) (SettlementBatch, error) {
	batch, err := scanBatch(r.tx.QueryRow(ctx,
		`SELECT `+batchColumns+` FROM cari_settlement_batches WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return SettlementBatch{}, ErrBatchNotFound
	}
	if err != nil {
		return SettlementBatch{}, fmt.Errorf("settlement: get batch for update: %w", err)
	}
	return batch, nil
}

func (r *txRepository) ListAllocations(ctx context.Context, batchID int64) ([]SettlementAllocation, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, batch_id, open_item_id, amount_txn,
		amount_base_historic, amount_base_settle, apply_key, bank_apply_key, created_at
		FROM cari_settlement_allocations WHERE batch_id = $1 ORDER BY id`, batchID)
	if err != nil {
		return nil, fmt.Errorf("settlement: list allocations: %w", err)
	}
	defer rows.Close()

	var out []SettlementAllocation
	for rows.Next() {
		var a SettlementAllocation
		if err := rows.Scan(&a.ID, &a.BatchID, &a.OpenItemID, &a.AmountTxn,
			&a.AmountBaseHistoric, &a.AmountBaseSettle, &a.ApplyKey, &a.BankApplyKey, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("settlement: scan allocation: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *txRepository) MarkBatchReversed(ctx context.Context, id, reversedByBatchID int64) error {
	tag, err := r.tx.Exec(ctx, `UPDATE cari_settlement_batches
		SET status = 'REVERSED', reversed_by_batch_id = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'POSTED' AND reversed_by_batch_id IS NULL`,
		id, reversedByBatchID)
	if err != nil {
		return fmt.Errorf("settlement: mark batch reversed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyReversed
	}
	return nil
}

func (r *txRepository) SetBatchBankRef(ctx context.Context, id int64, lineID *int64, ref, key string) error {
	_, err := r.tx.Exec(ctx, `UPDATE cari_settlement_batches
		SET bank_statement_line_id = $2, bank_transaction_ref = NULLIF($3, ''), bank_apply_key = $4,
		    updated_at = NOW()
		WHERE id = $1`, id, lineID, ref, key)
	if err != nil {
		return fmt.Errorf("settlement: set batch bank ref: %w", err)
	}
	return nil
}

func (r *txRepository) SetUnappliedBankRef(ctx context.Context, id int64, lineID *int64, ref, key string) error {
	_, err := r.tx.Exec(ctx, `UPDATE cari_unapplied_cash
		SET bank_statement_line_id = $2, bank_transaction_ref = NULLIF($3, ''), bank_apply_key = $4,
		    updated_at = NOW()
		WHERE id = $1`, id, lineID, ref, key)
	if err != nil {
		return fmt.Errorf("settlement: set unapplied bank ref: %w", err)
	}
	return nil
}

func (r *txRepository) LinkCashTransaction(ctx context.Context, cashTransactionID, batchID int64, unappliedCashID *int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE cash_transactions
		SET settlement_batch_id = $2, unapplied_cash_id = $3, updated_at = NOW()
		WHERE id = $1`, cashTransactionID, batchID, unappliedCashID)
	if err != nil {
		return fmt.Errorf("settlement: link cash transaction: %w", err)
	}
	return nil
}

func (r *txRepository) RecordAudit(ctx context.Context, log shared.AuditLog) error {
	return shared.RecordAuditTx(ctx, r.tx, log)
}
