// Package alerts turns high-value opportunities into alert events,
// deduplicated across restarts via Redis and throttled locally.
package alerts

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/itzcole03/A1Betting-master-main-sub018/internal/config"
	"github.com/itzcole03/A1Betting-master-main-sub018/pkg/models"
)

// Alerter decides which opportunities are worth pushing as alerts.
// Alerting is best-effort: Redis being down degrades dedup to
// pass-through instead of blocking the pipeline.
type Alerter struct {
	client  *redis.Client // nil disables the cross-restart dedup
	cfg     config.AlertConfig
	limiter *rate.Limiter
	log     zerolog.Logger
}

// New creates an alerter. client may be nil.
func New(client *redis.Client, cfg config.AlertConfig, log zerolog.Logger) *Alerter {
	perMinute := cfg.RatePerMinute
	if perMinute <= 0 {
		perMinute = 10
	}
	return &Alerter{
		client:  client,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute),
		log:     log.With().Str("component", "alerts").Logger(),
	}
}

// Check returns an alert for the opportunity if it clears the EV
// threshold, hasn't been alerted recently, and the rate limit allows
// it.
func (a *Alerter) Check(ctx context.Context, opp models.BettingOpportunity) (*models.Alert, bool) {
	if opp.ExpectedValue < a.cfg.MinExpectedValue {
		return nil, false
	}

	if !a.limiter.Allow() {
		a.log.Debug().Str("id", opp.ID).Msg("alert rate limited")
		return nil, false
	}

	if !a.shouldAlert(ctx, opp) {
		return nil, false
	}

	return &models.Alert{
		OpportunityID: opp.ID,
		SportKey:      opp.SportKey,
		MarketKey:     opp.MarketKey,
		Selection:     opp.Selection,
		ExpectedValue: opp.ExpectedValue,
		KellyFraction: opp.KellyFraction,
		TriggeredAt:   time.Now(),
	}, true
}

// shouldAlert consults the Redis dedup key. SET NX with TTL makes the
// check-and-mark atomic.
func (a *Alerter) shouldAlert(ctx context.Context, opp models.BettingOpportunity) bool {
	if a.client == nil {
		return true
	}

	key := dedupKey(opp)
	ok, err := a.client.SetNX(ctx, key, "1", a.cfg.DedupTTL).Result()
	if err != nil {
		// Redis down: alert anyway rather than go silent.
		a.log.Warn().Err(err).Msg("alert dedup unavailable, passing through")
		return true
	}
	return ok
}

// dedupKey derives a stable key from the opportunity identity so
// re-scores of the same line don't re-alert within the TTL.
func dedupKey(opp models.BettingOpportunity) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%s:%s", opp.EventID, opp.MarketKey, opp.Selection)))
	return fmt.Sprintf("alert:dedup:%x", sum[:8])
}
