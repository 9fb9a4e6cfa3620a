package fx

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// RateRepository reads spot rates from the rate table.
type RateRepository interface {
	// FindExact returns the spot rate stored for the exact date.
	FindExact(ctx context.Context, from, to string, date time.Time) (decimal.Decimal, bool, error)
	// FindPriorWithin returns the nearest earlier spot rate no older than
	// maxDays before the date. maxDays <= 0 means unlimited.
	FindPriorWithin(ctx context.Context, from, to string, date time.Time, maxDays int) (decimal.Decimal, time.Time, bool, error)
	// ListPairsActiveOn returns the distinct currency pairs that have a rate
	// on the given date. Used by the cache warmup job.
	ListPairsActiveOn(ctx context.Context, date time.Time) ([]Rate, error)
}

// Repository provides PostgreSQL backed access to fx_rates.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) FindExact(ctx context.Context, from, to string, date time.Time) (decimal.Decimal, bool, error) {
	var rate decimal.Decimal
	err := r.pool.QueryRow(ctx, `SELECT rate FROM fx_rates WHERE from_currency=$1 AND to_currency=$2 AND rate_date=$3`,
		from, to, date).Scan(&rate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, false, nil
		}
		return decimal.Zero, false, err
	}
	return rate, true, nil
}

func (r *Repository) FindPriorWithin(ctx context.Context, from, to string, date time.Time, maxDays int) (decimal.Decimal, time.Time, bool, error) {
	sql := `SELECT rate, rate_date FROM fx_rates WHERE from_currency=$1 AND to_currency=$2 AND rate_date < $3`
	args := []any{from, to, date}
	if maxDays > 0 {
		sql += ` AND rate_date >= $4`
		args = append(args, date.AddDate(0, 0, -maxDays))
	}
	sql += ` ORDER BY rate_date DESC LIMIT 1`
	var rate decimal.Decimal
	var rateDate time.Time
	err := r.pool.QueryRow(ctx, sql, args...).Scan(&rate, &rateDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, time.Time{}, false, nil
		}
		return decimal.Zero, time.Time{}, false, err
	}
	return rate, rateDate, true, nil
}

func (r *Repository) ListPairsActiveOn(ctx context.Context, date time.Time) ([]Rate, error) {
	rows, err := r.pool.Query(ctx, `SELECT from_currency, to_currency, rate_date, rate, created_at FROM fx_rates WHERE rate_date=$1`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var rates []Rate
	for rows.Next() {
		var rate Rate
		if err := rows.Scan(&rate.FromCurrency, &rate.ToCurrency, &rate.RateDate, &rate.Rate, &rate.CreatedAt); err != nil {
			return nil, err
		}
		rates = append(rates, rate)
	}
	return rates, rows.Err()
}
