// Package ensemble combines heterogeneous model predictions into a
// single scored betting opportunity.
package ensemble

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/itzcole03/A1Betting-master-main-sub018/internal/oppcache"
	"github.com/itzcole03/A1Betting-master-main-sub018/internal/registry"
	"github.com/itzcole03/A1Betting-master-main-sub018/pkg/betmath"
	"github.com/itzcole03/A1Betting-master-main-sub018/pkg/models"
)

// ErrNoModelInput is returned when an aggregation round has zero model
// predictions to combine. No opportunity is created or updated; any
// stale opportunity in the cache is left untouched.
var ErrNoModelInput = errors.New("ensemble: no model predictions")

// ProbabilityFn converts the combined model value and market context
// into a win probability. How a point estimate on a line maps to a
// probability is a modeling decision, so it is injected rather than
// hard-coded.
type ProbabilityFn func(value float64, ctx models.MarketContext) (float64, error)

// DirectProbability treats the combined value as the win probability
// itself, for models that output probabilities directly.
func DirectProbability(value float64, _ models.MarketContext) (float64, error) {
	if math.IsNaN(value) || value < 0 || value > 1 {
		return 0, fmt.Errorf("%w: value %f is not a probability", betmath.ErrInvalidInput, value)
	}
	return value, nil
}

// Config tunes the aggregator.
type Config struct {
	KellyCap float64
}

// Aggregator scores market contexts using registry-weighted model
// ensembles.
type Aggregator struct {
	registry *registry.Registry
	cache    *oppcache.Cache
	probFn   ProbabilityFn
	kellyCap float64
	log      zerolog.Logger
}

// New creates an aggregator. probFn must not be nil.
func New(reg *registry.Registry, cache *oppcache.Cache, probFn ProbabilityFn, cfg Config, log zerolog.Logger) *Aggregator {
	cap := cfg.KellyCap
	if cap <= 0 {
		cap = betmath.DefaultKellyCap
	}
	return &Aggregator{
		registry: reg,
		cache:    cache,
		probFn:   probFn,
		kellyCap: cap,
		log:      log.With().Str("component", "ensemble").Logger(),
	}
}

// Score combines the predictions for a market context, attaches EV,
// Kelly sizing and a risk level, and upserts the result into the
// opportunity cache. Returns the scored opportunity and the cache's
// verdict on the change.
func (a *Aggregator) Score(ctx models.MarketContext, preds []models.ModelPrediction) (models.BettingOpportunity, oppcache.Verdict, error) {
	opp, err := a.Combine(ctx, preds)
	if err != nil {
		return models.BettingOpportunity{}, 0, err
	}

	verdict := a.cache.Upsert(opp)

	a.log.Debug().
		Str("id", opp.ID).
		Str("verdict", verdict.String()).
		Float64("ev", opp.ExpectedValue).
		Float64("kelly", opp.KellyFraction).
		Str("risk", string(opp.RiskLevel)).
		Int("models", len(preds)).
		Msg("opportunity scored")

	return opp, verdict, nil
}

// Combine performs the pure ensemble math without touching the cache.
//
// Weights are renormalized over the models present in this call, not
// the whole registry, so a temporarily unavailable model never biases
// the combination.
func (a *Aggregator) Combine(ctx models.MarketContext, preds []models.ModelPrediction) (models.BettingOpportunity, error) {
	if len(preds) == 0 {
		return models.BettingOpportunity{}, ErrNoModelInput
	}
	if ctx.Odds <= 1 {
		return models.BettingOpportunity{}, fmt.Errorf("%w: odds %f", betmath.ErrInvalidInput, ctx.Odds)
	}

	totalWeight := 0.0
	rawWeights := make([]float64, len(preds))
	for i, p := range preds {
		w := a.registry.Weight(p.ModelName)
		rawWeights[i] = w
		totalWeight += w
	}
	if totalWeight == 0 {
		// All-zero weights degenerate to a plain average.
		for i := range rawWeights {
			rawWeights[i] = 1
		}
		totalWeight = float64(len(preds))
	}

	var (
		value      float64
		confidence float64
		latest     time.Time
		breakdown  = make(map[string]float64, len(preds))
		features   = make(map[string]float64)
	)

	for i, p := range preds {
		w := rawWeights[i] / totalWeight
		value += w * p.Value
		confidence += w * p.Confidence
		breakdown[p.ModelName] = w
		for feature, shap := range p.ShapValues {
			features[feature] += w * shap
		}
		if p.Timestamp.After(latest) {
			latest = p.Timestamp
		}
	}
	if latest.IsZero() {
		latest = time.Now()
	}

	p, err := a.probFn(value, ctx)
	if err != nil {
		return models.BettingOpportunity{}, fmt.Errorf("probability conversion: %w", err)
	}

	ev, err := betmath.ExpectedValue(p, ctx.Odds, 1)
	if err != nil {
		return models.BettingOpportunity{}, err
	}
	kelly, err := betmath.KellyFraction(p, ctx.Odds, a.kellyCap)
	if err != nil {
		return models.BettingOpportunity{}, err
	}

	opp := models.BettingOpportunity{
		ID:                 oppcache.OpportunityID(ctx.EventID, ctx.MarketKey, ctx.Selection),
		SportKey:           ctx.SportKey,
		EventID:            ctx.EventID,
		MarketKey:          ctx.MarketKey,
		Selection:          ctx.Selection,
		Odds:               ctx.Odds,
		EnsembleValue:      value,
		EnsembleConfidence: confidence,
		WinProbability:     p,
		ExpectedValue:      ev,
		KellyFraction:      kelly,
		RiskLevel:          riskLevel(kelly, confidence),
		ModelBreakdown:     breakdown,
		FeatureImpacts:     features,
		UpdatedAt:          latest,
	}

	return opp, nil
}

// Reprice recomputes an opportunity's economics at a new price. The
// model consensus (value, confidence, win probability, breakdown)
// stands; only expected value, Kelly sizing, and the risk bucket move
// with the odds.
func Reprice(opp models.BettingOpportunity, odds float64, at time.Time, kellyCap float64) (models.BettingOpportunity, error) {
	if odds <= 1 {
		return models.BettingOpportunity{}, fmt.Errorf("%w: odds %f", betmath.ErrInvalidInput, odds)
	}

	ev, err := betmath.ExpectedValue(opp.WinProbability, odds, 1)
	if err != nil {
		return models.BettingOpportunity{}, err
	}
	kelly, err := betmath.KellyFraction(opp.WinProbability, odds, kellyCap)
	if err != nil {
		return models.BettingOpportunity{}, err
	}

	opp.Odds = odds
	opp.ExpectedValue = ev
	opp.KellyFraction = kelly
	opp.RiskLevel = riskLevel(kelly, opp.EnsembleConfidence)
	if at.IsZero() {
		at = time.Now()
	}
	opp.UpdatedAt = at
	return opp, nil
}

// riskLevel buckets an opportunity by sizing and confidence: thin Kelly
// or shaky confidence is high risk, strong both is low, anything else
// medium.
func riskLevel(kelly, confidence float64) models.RiskLevel {
	switch {
	case kelly < 0.02 || confidence < 0.55:
		return models.RiskHigh
	case kelly >= 0.1 && confidence >= 0.75:
		return models.RiskLow
	default:
		return models.RiskMedium
	}
}
