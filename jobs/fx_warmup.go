package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridian-erp/meridian-erp/internal/fx"
)

// FXWarmup loads the day's published rates into the Redis cache so the first
// settlements of the day do not each pay a database round trip.
type FXWarmup struct {
	rates  fx.RateRepository
	cache  *fx.Cache
	logger *slog.Logger
}

func NewFXWarmup(rates fx.RateRepository, cache *fx.Cache, logger *slog.Logger) *FXWarmup {
	return &FXWarmup{rates: rates, cache: cache, logger: logger}
}

// Handle processes TaskFXWarmup tasks.
func (j *FXWarmup) Handle(ctx context.Context, t *asynq.Task) error {
	var payload FXWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	date := payload.Date
	if date.IsZero() {
		date = time.Now().UTC().Truncate(24 * time.Hour)
	}

	pairs, err := j.rates.ListPairsActiveOn(ctx, date)
	if err != nil {
		return err
	}
	for _, pair := range pairs {
		j.cache.Set(ctx, pair.FromCurrency, pair.ToCurrency, pair.RateDate, pair.Rate)
	}
	j.logger.Info("fx cache warmed",
		slog.Time("date", date),
		slog.Int("pairs", len(pairs)))
	return nil
}
