package fx

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// Config carries the process-wide fallback policy, resolved once at startup
// and threaded into every call. Individual requests may override it.
type Config struct {
	FallbackMode    FallbackMode
	FallbackMaxDays int
}

// Input describes one rate resolution request.
type Input struct {
	Date               time.Time
	SettlementCurrency string
	FunctionalCurrency string
	ProvidedRate       *decimal.Decimal
	FallbackMode       *FallbackMode
	FallbackMaxDays    *int
}

// Resolver determines the rate used to convert a settlement's transaction
// amount into the legal entity's functional currency.
type Resolver struct {
	repo   RateRepository
	cache  *Cache
	cfg    Config
	lookup singleflight.Group
}

// NewResolver constructs a resolver. cache may be nil.
func NewResolver(repo RateRepository, cache *Cache, cfg Config) *Resolver {
	if !cfg.FallbackMode.IsValid() {
		cfg.FallbackMode = FallbackNone
	}
	return &Resolver{repo: repo, cache: cache, cfg: cfg}
}

var one = decimal.NewFromInt(1)

// Resolve applies the source priority chain: parity, caller-supplied rate,
// exact-date spot, prior-date spot (only under PRIOR_DATE fallback), then
// failure demanding an explicit rate.
func (r *Resolver) Resolve(ctx context.Context, in Input) (Resolution, error) {
	if in.SettlementCurrency == in.FunctionalCurrency {
		if in.ProvidedRate != nil && !in.ProvidedRate.Equal(one) {
			return Resolution{}, ErrParityViolated
		}
		return Resolution{Rate: one, Source: SourceParity, RateDate: in.Date}, nil
	}

	if in.ProvidedRate != nil {
		if !in.ProvidedRate.IsPositive() {
			return Resolution{}, ErrRateNotPositive
		}
		return Resolution{Rate: *in.ProvidedRate, Source: SourceRequest, RateDate: in.Date}, nil
	}

	if rate, ok := r.cache.Get(ctx, in.SettlementCurrency, in.FunctionalCurrency, in.Date); ok {
		return Resolution{Rate: rate, Source: SourceTableExactSpot, RateDate: in.Date}, nil
	}
	rate, found, err := r.findExact(ctx, in)
	if err != nil {
		return Resolution{}, err
	}
	if found {
		r.cache.Set(ctx, in.SettlementCurrency, in.FunctionalCurrency, in.Date, rate)
		return Resolution{Rate: rate, Source: SourceTableExactSpot, RateDate: in.Date}, nil
	}

	mode := r.cfg.FallbackMode
	if in.FallbackMode != nil && in.FallbackMode.IsValid() {
		mode = *in.FallbackMode
	}
	if mode == FallbackPriorDate {
		maxDays := r.cfg.FallbackMaxDays
		if in.FallbackMaxDays != nil {
			maxDays = *in.FallbackMaxDays
		}
		prior, rateDate, found, err := r.repo.FindPriorWithin(ctx, in.SettlementCurrency, in.FunctionalCurrency, in.Date, maxDays)
		if err != nil {
			return Resolution{}, err
		}
		if found {
			return Resolution{Rate: prior, Source: SourceTablePriorSpot, RateDate: rateDate}, nil
		}
	}

	return Resolution{}, ErrRateRequired
}

type exactResult struct {
	rate  decimal.Decimal
	found bool
}

// findExact collapses concurrent lookups for the same pair and date into one
// database query.
func (r *Resolver) findExact(ctx context.Context, in Input) (decimal.Decimal, bool, error) {
	key := in.SettlementCurrency + "/" + in.FunctionalCurrency + "@" + in.Date.Format("2006-01-02")
	v, err, _ := r.lookup.Do(key, func() (any, error) {
		rate, found, err := r.repo.FindExact(ctx, in.SettlementCurrency, in.FunctionalCurrency, in.Date)
		if err != nil {
			return nil, err
		}
		return exactResult{rate: rate, found: found}, nil
	})
	if err != nil {
		return decimal.Decimal{}, false, err
	}
	res := v.(exactResult)
	return res.rate, res.found, nil
}
