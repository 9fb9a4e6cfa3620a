// Package cash adapts the cash-register subsystem's transaction table to the
// settlement engine. The register, session, and policy logic live in that
// subsystem; this adapter only reads transactions and performs the idempotent
// create used by cash-channel settlements.
package cash

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/settlement"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Adapter implements settlement.CashPort over the cash_transactions table.
type Adapter struct {
	pool *pgxpool.Pool
}

func NewAdapter(pool *pgxpool.Pool) *Adapter {
	return &Adapter{pool: pool}
}

const columns = `ct.id, ct.register_id, ct.session_id, ct.currency, ct.amount, ct.status,
	ct.settlement_batch_id, ct.unapplied_cash_id`

func scan(row pgx.Row) (settlement.CashTransaction, error) {
	var txn settlement.CashTransaction
	err := row.Scan(&txn.ID, &txn.RegisterID, &txn.SessionID, &txn.Currency, &txn.Amount,
		&txn.Status, &txn.SettlementBatchID, &txn.UnappliedCashID)
	return txn, err
}

// Get loads one cash transaction.
func (a *Adapter) Get(ctx context.Context, id int64) (settlement.CashTransaction, error) {
	txn, err := scan(a.pool.QueryRow(ctx,
		`SELECT `+columns+` FROM cash_transactions ct WHERE ct.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return settlement.CashTransaction{}, fmt.Errorf("cash: transaction %d: %w", id, shared.ErrNotFound)
	}
	if err != nil {
		return settlement.CashTransaction{}, fmt.Errorf("cash: get transaction: %w", err)
	}
	return txn, nil
}

// registerPolicy is the slice of register and session state that gates a new
// cash transaction. MaxTxnAmount is NULL when the register has no limit.
type registerPolicy struct {
	Currency     string
	SessionOpen  bool
	MaxTxnAmount decimal.NullDecimal
}

func (p registerPolicy) check(spec settlement.CashSpec, amount decimal.Decimal, currency string) error {
	if p.Currency != currency {
		return fmt.Errorf("cash: register currency %s does not match %s: %w", p.Currency, currency, shared.ErrValidation)
	}
	if !p.SessionOpen {
		return fmt.Errorf("cash: session %d is not open: %w", spec.SessionID, shared.ErrValidation)
	}
	if p.MaxTxnAmount.Valid && amount.GreaterThan(p.MaxTxnAmount.Decimal) {
		return fmt.Errorf("cash: amount %s exceeds register %d limit %s: %w",
			amount, spec.RegisterID, p.MaxTxnAmount.Decimal, shared.ErrValidation)
	}
	return nil
}

// CreateOrReplay inserts a posted cash transaction, or returns the existing
// one when the idempotency key was already used. The register must carry the
// requested currency, the session must be open, and the amount must not
// exceed the register's transaction limit.
func (a *Adapter) CreateOrReplay(ctx context.Context, spec settlement.CashSpec, amount decimal.Decimal, currency string, counterpartyID int64) (settlement.CashTransaction, bool, error) {
	if existing, ok, err := a.findByKey(ctx, spec.IdempotencyKey); err != nil {
		return settlement.CashTransaction{}, false, err
	} else if ok {
		return existing, true, nil
	}

	var policy registerPolicy
	err := a.pool.QueryRow(ctx, `SELECT r.currency, s.status = 'OPEN', r.max_txn_amount
		FROM cash_registers r
		JOIN cash_sessions s ON s.register_id = r.id AND s.id = $2
		WHERE r.id = $1`, spec.RegisterID, spec.SessionID).
		Scan(&policy.Currency, &policy.SessionOpen, &policy.MaxTxnAmount)
	if errors.Is(err, pgx.ErrNoRows) {
		return settlement.CashTransaction{}, false, fmt.Errorf("cash: register %d session %d: %w", spec.RegisterID, spec.SessionID, shared.ErrNotFound)
	}
	if err != nil {
		return settlement.CashTransaction{}, false, fmt.Errorf("cash: load register: %w", err)
	}
	if err := policy.check(spec, amount, currency); err != nil {
		return settlement.CashTransaction{}, false, err
	}

	txn, err := scan(a.pool.QueryRow(ctx, `INSERT INTO cash_transactions
		(register_id, session_id, counterparty_id, currency, amount, status, idempotency_key, event_uid)
		VALUES ($1, $2, $3, $4, $5, 'POSTED', $6, NULLIF($7, ''))
		RETURNING `+insertReturning,
		spec.RegisterID, spec.SessionID, counterpartyID, currency, amount,
		spec.IdempotencyKey, spec.EventUID))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			if existing, ok, err := a.findByKey(ctx, spec.IdempotencyKey); err == nil && ok {
				return existing, true, nil
			}
		}
		return settlement.CashTransaction{}, false, fmt.Errorf("cash: create transaction: %w", err)
	}
	return txn, false, nil
}

const insertReturning = `id, register_id, session_id, currency, amount, status,
	settlement_batch_id, unapplied_cash_id`

func (a *Adapter) findByKey(ctx context.Context, key string) (settlement.CashTransaction, bool, error) {
	txn, err := scan(a.pool.QueryRow(ctx,
		`SELECT `+columns+` FROM cash_transactions ct WHERE ct.idempotency_key = $1`, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return settlement.CashTransaction{}, false, nil
	}
	if err != nil {
		return settlement.CashTransaction{}, false, fmt.Errorf("cash: find by key: %w", err)
	}
	return txn, true, nil
}
