// Package registry tracks registered prediction models and the
// accuracy-derived weights used by the ensemble.
package registry

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/itzcole03/A1Betting-master-main-sub018/pkg/models"
)

// DefaultWeight is assigned at registration and kept until the model has
// evaluation metrics.
const DefaultWeight = 1.0

type modelEntry struct {
	metrics     *models.ModelMetrics
	weight      float64
	evaluations int
	registered  time.Time
}

// ModelSnapshot is an exported view of one model's registry state.
type ModelSnapshot struct {
	Name        string               `json:"name"`
	Weight      float64              `json:"weight"`
	Metrics     *models.ModelMetrics `json:"metrics,omitempty"`
	Evaluations int                  `json:"evaluations"`
}

// Registry holds named models, their latest evaluation metrics, and the
// weight derived from accuracy relative to the mean accuracy across all
// evaluated models. Weights are stored raw and normalized only at the
// point of ensemble combination.
type Registry struct {
	mu     sync.RWMutex
	models map[string]*modelEntry
	log    zerolog.Logger
}

// New creates an empty registry.
func New(log zerolog.Logger) *Registry {
	return &Registry{
		models: make(map[string]*modelEntry),
		log:    log.With().Str("component", "registry").Logger(),
	}
}

// Register adds a model with the default weight. Re-registering an
// existing model resets its metrics and weight.
func (r *Registry) Register(modelName string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.models[modelName] = &modelEntry{
		weight:     DefaultWeight,
		registered: time.Now(),
	}
	r.log.Info().Str("model", modelName).Msg("model registered")
}

// UpdateMetrics stores the latest evaluation metrics for a model and
// triggers a weight recalculation. Unknown models are registered
// implicitly.
func (r *Registry) UpdateMetrics(modelName string, metrics models.ModelMetrics) {
	r.mu.Lock()
	entry, ok := r.models[modelName]
	if !ok {
		entry = &modelEntry{weight: DefaultWeight, registered: time.Now()}
		r.models[modelName] = entry
	}
	m := metrics
	entry.metrics = &m
	entry.evaluations++
	snapshot := r.accuracies()
	r.mu.Unlock()

	// Weight math happens outside the lock; only the swap takes it.
	weights := computeWeights(snapshot)
	if weights == nil {
		return
	}

	r.mu.Lock()
	for name, w := range weights {
		if e, ok := r.models[name]; ok {
			e.weight = w
		}
	}
	r.mu.Unlock()

	r.log.Debug().
		Str("model", modelName).
		Float64("accuracy", metrics.Accuracy).
		Msg("model metrics updated")
}

// RecalculateWeights recomputes every evaluated model's weight as
// accuracy / mean(accuracy over models with metrics). Models without
// metrics keep their current weight. A registry with no evaluated models
// skips the recompute entirely.
func (r *Registry) RecalculateWeights() {
	r.mu.RLock()
	snapshot := r.accuracies()
	r.mu.RUnlock()

	weights := computeWeights(snapshot)
	if weights == nil {
		return
	}

	r.mu.Lock()
	for name, w := range weights {
		if e, ok := r.models[name]; ok {
			e.weight = w
		}
	}
	r.mu.Unlock()
}

// Weight returns the last computed weight for a model, or the default
// for unknown/unevaluated models.
func (r *Registry) Weight(modelName string) float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if entry, ok := r.models[modelName]; ok {
		return entry.weight
	}
	return DefaultWeight
}

// Names returns all registered model names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	return names
}

// Snapshot exports the registry state for the metrics:updated broadcast
// and the HTTP API.
func (r *Registry) Snapshot() []ModelSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ModelSnapshot, 0, len(r.models))
	for name, entry := range r.models {
		s := ModelSnapshot{
			Name:        name,
			Weight:      entry.weight,
			Evaluations: entry.evaluations,
		}
		if entry.metrics != nil {
			m := *entry.metrics
			s.Metrics = &m
		}
		out = append(out, s)
	}
	return out
}

// accuracies returns name -> accuracy for models with metrics.
// Caller must hold at least the read lock.
func (r *Registry) accuracies() map[string]float64 {
	acc := make(map[string]float64)
	for name, entry := range r.models {
		if entry.metrics != nil {
			acc[name] = entry.metrics.Accuracy
		}
	}
	return acc
}

// computeWeights derives weights from an accuracy snapshot. Returns nil
// when no model has metrics (never divides by zero).
func computeWeights(accuracies map[string]float64) map[string]float64 {
	if len(accuracies) == 0 {
		return nil
	}

	sum := 0.0
	for _, a := range accuracies {
		sum += a
	}
	mean := sum / float64(len(accuracies))
	if mean == 0 {
		return nil
	}

	weights := make(map[string]float64, len(accuracies))
	for name, a := range accuracies {
		weights[name] = a / mean
	}
	return weights
}
