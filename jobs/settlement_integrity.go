package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SettlementIntegrity scans recently posted batches for invariant drift:
// batch totals that no longer match their allocation sums, open items with
// negative residuals, and unapplied cash rows consumed past their amount.
// Findings are logged, not repaired.
type SettlementIntegrity struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewSettlementIntegrity(pool *pgxpool.Pool, logger *slog.Logger) *SettlementIntegrity {
	return &SettlementIntegrity{pool: pool, logger: logger}
}

// Handle processes TaskSettlementIntegrity tasks.
func (j *SettlementIntegrity) Handle(ctx context.Context, t *asynq.Task) error {
	var payload SettlementIntegrityPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	to := payload.ToDate
	if to.IsZero() {
		to = time.Now().UTC()
	}
	from := payload.FromDate
	if from.IsZero() {
		from = to.AddDate(0, 0, -7)
	}

	findings := 0

	rows, err := j.pool.Query(ctx, `SELECT b.id, b.number
		FROM cari_settlement_batches b
		JOIN cari_settlement_allocations a ON a.batch_id = b.id
		WHERE b.settlement_date BETWEEN $1 AND $2 AND b.status = 'POSTED'
		GROUP BY b.id, b.number, b.total_allocated_txn
		HAVING SUM(a.amount_txn) <> b.total_allocated_txn`, from, to)
	if err != nil {
		return err
	}
	for rows.Next() {
		var id int64
		var number string
		if err := rows.Scan(&id, &number); err != nil {
			rows.Close()
			return err
		}
		findings++
		j.logger.Error("settlement batch total drifted from allocation sum",
			slog.Int64("batch_id", id), slog.String("number", number))
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	var negativeItems int
	if err := j.pool.QueryRow(ctx, `SELECT COUNT(*) FROM cari_open_items
		WHERE residual_txn < 0 OR residual_base < 0 OR residual_txn > amount_txn`).Scan(&negativeItems); err != nil {
		return err
	}
	if negativeItems > 0 {
		findings += negativeItems
		j.logger.Error("open items with residual out of range", slog.Int("count", negativeItems))
	}

	var overConsumed int
	if err := j.pool.QueryRow(ctx, `SELECT COUNT(*) FROM cari_unapplied_cash
		WHERE residual_txn < 0 OR residual_txn > amount_txn`).Scan(&overConsumed); err != nil {
		return err
	}
	if overConsumed > 0 {
		findings += overConsumed
		j.logger.Error("unapplied cash rows with residual out of range", slog.Int("count", overConsumed))
	}

	j.logger.Info("settlement integrity scan finished",
		slog.Time("from", from), slog.Time("to", to), slog.Int("findings", findings))
	return nil
}
