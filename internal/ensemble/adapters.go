package ensemble

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/itzcole03/A1Betting-master-main-sub018/pkg/models"
)

// Adapter is the contract a prediction model fulfils. Predict must
// honor the context deadline.
type Adapter interface {
	Name() string
	Predict(ctx context.Context, mc models.MarketContext) (models.ModelPrediction, error)
}

// Pool fans prediction requests out to model adapters. A per-call
// timeout and a circuit breaker per adapter keep one slow or failing
// model from degrading the whole round: it is simply excluded, and the
// ensemble shrinks.
type Pool struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
	breakers map[string]*gobreaker.CircuitBreaker
	timeout  time.Duration
	log      zerolog.Logger
}

// NewPool creates an adapter pool with the given per-call timeout.
func NewPool(timeout time.Duration, log zerolog.Logger) *Pool {
	return &Pool{
		adapters: make(map[string]Adapter),
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		timeout:  timeout,
		log:      log.With().Str("component", "adapter_pool").Logger(),
	}
}

// Add registers an adapter and wires its circuit breaker.
func (p *Pool) Add(adapter Adapter) {
	name := adapter.Name()

	p.mu.Lock()
	defer p.mu.Unlock()

	p.adapters[name] = adapter
	p.breakers[name] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    name,
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			p.log.Warn().
				Str("adapter", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("adapter breaker state changed")
		},
	})
}

// Names returns the registered adapter names.
func (p *Pool) Names() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, 0, len(p.adapters))
	for name := range p.adapters {
		names = append(names, name)
	}
	return names
}

// Predict queries every registered adapter concurrently and returns the
// predictions that arrived in time. Timeouts, errors and open breakers
// exclude an adapter from the round without failing it; the caller gets
// whatever subset responded.
func (p *Pool) Predict(ctx context.Context, mc models.MarketContext) []models.ModelPrediction {
	p.mu.RLock()
	adapters := make([]Adapter, 0, len(p.adapters))
	breakers := make([]*gobreaker.CircuitBreaker, 0, len(p.adapters))
	for name, a := range p.adapters {
		adapters = append(adapters, a)
		breakers = append(breakers, p.breakers[name])
	}
	p.mu.RUnlock()

	results := make(chan models.ModelPrediction, len(adapters))
	var wg sync.WaitGroup

	for i, adapter := range adapters {
		wg.Add(1)
		go func(adapter Adapter, breaker *gobreaker.CircuitBreaker) {
			defer wg.Done()

			callCtx, cancel := context.WithTimeout(ctx, p.timeout)
			defer cancel()

			out, err := breaker.Execute(func() (interface{}, error) {
				return adapter.Predict(callCtx, mc)
			})
			if err != nil {
				p.log.Warn().
					Err(err).
					Str("adapter", adapter.Name()).
					Str("event", mc.EventID).
					Msg("adapter excluded from round")
				return
			}

			pred := out.(models.ModelPrediction)
			if pred.ModelName == "" {
				pred.ModelName = adapter.Name()
			}
			results <- pred
		}(adapter, breakers[i])
	}

	wg.Wait()
	close(results)

	preds := make([]models.ModelPrediction, 0, len(adapters))
	for pred := range results {
		preds = append(preds, pred)
	}
	return preds
}
