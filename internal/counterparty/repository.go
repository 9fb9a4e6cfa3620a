package counterparty

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// ErrNotFound indicates the counterparty does not exist.
var ErrNotFound = fmt.Errorf("counterparty: not found: %w", shared.ErrNotFound)

// Repository provides PostgreSQL backed persistence for counterparties.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const selectColumns = `id, tenant_id, legal_entity_id, code, name, is_customer, is_vendor, ar_control_account_id, ap_control_account_id, active, created_at, updated_at`

// Get loads a counterparty by id using the supplied querier, so settlement
// can read it inside its own transaction.
func Get(ctx context.Context, q ledger.Querier, id int64) (Counterparty, error) {
	var cp Counterparty
	err := q.QueryRow(ctx, `SELECT `+selectColumns+` FROM counterparties WHERE id=$1`, id).Scan(
		&cp.ID, &cp.TenantID, &cp.LegalEntityID, &cp.Code, &cp.Name, &cp.IsCustomer, &cp.IsVendor,
		&cp.ARControlAccountID, &cp.APControlAccountID, &cp.Active, &cp.CreatedAt, &cp.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Counterparty{}, ErrNotFound
		}
		return Counterparty{}, err
	}
	return cp, nil
}

// Get loads a counterparty by id.
func (r *Repository) Get(ctx context.Context, id int64) (Counterparty, error) {
	return Get(ctx, r.pool, id)
}

// SetControlOverrides stores validated AR/AP control-account overrides.
func (r *Repository) SetControlOverrides(ctx context.Context, id int64, arAccountID, apAccountID *int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE counterparties SET ar_control_account_id=$2, ap_control_account_id=$3, updated_at=NOW() WHERE id=$1`,
		id, arAccountID, apAccountID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
