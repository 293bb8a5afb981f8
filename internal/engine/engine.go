// Package engine wires the inbound event stream to the aggregation and
// tracking components and rebroadcasts what they derive.
package engine

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/itzcole03/A1Betting-master-main-sub018/internal/alerts"
	"github.com/itzcole03/A1Betting-master-main-sub018/internal/broker"
	"github.com/itzcole03/A1Betting-master-main-sub018/internal/config"
	"github.com/itzcole03/A1Betting-master-main-sub018/internal/ensemble"
	"github.com/itzcole03/A1Betting-master-main-sub018/internal/oppcache"
	"github.com/itzcole03/A1Betting-master-main-sub018/internal/publisher"
	"github.com/itzcole03/A1Betting-master-main-sub018/internal/registry"
	"github.com/itzcole03/A1Betting-master-main-sub018/internal/tracker"
	"github.com/itzcole03/A1Betting-master-main-sub018/pkg/models"
)

// Engine routes inbound events through the pipeline: props and odds to
// the aggregator, settlements to the tracker, derived events out
// through the broker.
type Engine struct {
	cfg        config.EngineConfig
	registry   *registry.Registry
	pool       *ensemble.Pool
	aggregator *ensemble.Aggregator
	cache      *oppcache.Cache
	tracker    *tracker.Tracker
	broker     *broker.Broker
	alerter    *alerts.Alerter
	publisher  *publisher.StreamPublisher

	// Same-identity events are sharded to the same worker so odds
	// updates for one opportunity apply in arrival order.
	workerQueues []chan models.InboundEvent

	processed int64
	errored   int64
	statsMu   sync.Mutex

	log zerolog.Logger
}

// New assembles the engine around its collaborators.
func New(
	cfg config.EngineConfig,
	reg *registry.Registry,
	pool *ensemble.Pool,
	agg *ensemble.Aggregator,
	cache *oppcache.Cache,
	tr *tracker.Tracker,
	b *broker.Broker,
	al *alerts.Alerter,
	pub *publisher.StreamPublisher,
	log zerolog.Logger,
) *Engine {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	queues := make([]chan models.InboundEvent, workers)
	for i := range queues {
		queues[i] = make(chan models.InboundEvent, 256)
	}

	return &Engine{
		cfg:          cfg,
		registry:     reg,
		pool:         pool,
		aggregator:   agg,
		cache:        cache,
		tracker:      tr,
		broker:       b,
		alerter:      al,
		publisher:    pub,
		workerQueues: queues,
		log:          log.With().Str("component", "engine").Logger(),
	}
}

// Run consumes the inbound event stream until it closes or the context
// is cancelled, then drains in-flight work bounded by the shutdown
// timeout.
func (e *Engine) Run(ctx context.Context, events <-chan models.InboundEvent) error {
	var wg sync.WaitGroup
	for i, queue := range e.workerQueues {
		wg.Add(1)
		go func(id int, queue <-chan models.InboundEvent) {
			defer wg.Done()
			for ev := range queue {
				e.handle(ctx, ev)
			}
		}(i, queue)
	}

	// Scheduled sweeps run independently of the event loop.
	tickerCtx, cancelTickers := context.WithCancel(ctx)
	var tickerWg sync.WaitGroup
	tickerWg.Add(2)
	go func() {
		defer tickerWg.Done()
		e.evictionLoop(tickerCtx)
	}()
	go func() {
		defer tickerWg.Done()
		e.weightRecalcLoop(tickerCtx)
	}()

intake:
	for {
		select {
		case <-ctx.Done():
			break intake
		case ev, ok := <-events:
			if !ok {
				break intake
			}
			e.dispatch(ev)
		}
	}

	// Graceful drain: no new intake, let workers finish what's queued,
	// abandon the rest after the timeout.
	cancelTickers()
	for _, queue := range e.workerQueues {
		close(queue)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		tickerWg.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.log.Info().Msg("engine drained")
		return nil
	case <-time.After(e.cfg.ShutdownTimeout):
		e.log.Warn().Msg("engine drain timed out, abandoning in-flight work")
		return errors.New("engine: shutdown drain timed out")
	}
}

// dispatch shards the event to the worker owning its identity.
func (e *Engine) dispatch(ev models.InboundEvent) {
	queue := e.workerQueues[e.shard(ev)]
	select {
	case queue <- ev:
	default:
		e.log.Warn().Str("type", ev.Type).Msg("worker queue full, dropping event")
		e.countError()
	}
}

func (e *Engine) shard(ev models.InboundEvent) int {
	var key string
	switch {
	case ev.Prop != nil:
		key = ev.Prop.EventID + ev.Prop.MarketKey + ev.Prop.Selection
	case ev.Odds != nil:
		key = ev.Odds.EventID + ev.Odds.MarketKey + ev.Odds.Selection
	case ev.Settlement != nil:
		key = ev.Settlement.BetID
	}

	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(e.workerQueues)))
}

func (e *Engine) handle(ctx context.Context, ev models.InboundEvent) {
	var err error
	switch {
	case ev.Prop != nil:
		err = e.handleProp(ctx, *ev.Prop)
	case ev.Odds != nil:
		err = e.handleOdds(ctx, *ev.Odds)
	case ev.Settlement != nil:
		err = e.handleSettlement(ctx, *ev.Settlement)
	default:
		return // ping
	}

	if err != nil {
		e.countError()
		e.log.Warn().Err(err).Str("type", ev.Type).Msg("event handling failed")
		return
	}
	e.countProcessed()
}

// handleProp runs a full scoring round for the prop's market context.
func (e *Engine) handleProp(ctx context.Context, prop models.PropUpdate) error {
	return e.scoreContext(ctx, prop.Context(), prop.Timestamp)
}

// handleOdds applies a price move. A line removal deletes the
// opportunity; otherwise the stored opportunity is re-scored at the new
// price, and a context never seen before gets a full scoring round.
func (e *Engine) handleOdds(ctx context.Context, odds models.OddsUpdate) error {
	id := oppcache.OpportunityID(odds.EventID, odds.MarketKey, odds.Selection)

	if odds.Removed {
		removed, err := e.cache.Remove(id)
		if err != nil {
			if errors.Is(err, oppcache.ErrNotFound) {
				return nil
			}
			return err
		}
		e.broker.Publish(models.EventOpportunityRemoved, broker.TopicOpportunities, removed)
		return nil
	}

	existing, err := e.cache.Get(id)
	if errors.Is(err, oppcache.ErrNotFound) {
		mc := models.MarketContext{
			SportKey:  odds.SportKey,
			EventID:   odds.EventID,
			MarketKey: odds.MarketKey,
			Selection: odds.Selection,
			Odds:      odds.Odds,
		}
		return e.scoreContext(ctx, mc, odds.Timestamp)
	}
	if err != nil {
		return err
	}

	rescored, err := ensemble.Reprice(existing, odds.Odds, odds.Timestamp, e.cfg.KellyCapMax)
	if err != nil {
		return err
	}

	verdict := e.cache.Upsert(rescored)
	e.emit(ctx, rescored, verdict)
	return nil
}

// scoreContext fans out to the model pool and scores whatever subset
// responded. A round with zero responders fails without touching any
// stale opportunity.
func (e *Engine) scoreContext(ctx context.Context, mc models.MarketContext, at time.Time) error {
	preds := e.pool.Predict(ctx, mc)
	if len(preds) == 0 {
		return fmt.Errorf("score %s/%s: %w", mc.EventID, mc.MarketKey, ensemble.ErrNoModelInput)
	}

	// Stamp predictions with the causing update's time so the cache's
	// ordering check compares feed times, not model latencies.
	if !at.IsZero() {
		for i := range preds {
			preds[i].Timestamp = at
		}
	}

	opp, verdict, err := e.aggregator.Score(mc, preds)
	if err != nil {
		return err
	}
	e.emit(ctx, opp, verdict)
	return nil
}

// handleSettlement updates the ledger and rebroadcasts fresh metrics.
func (e *Engine) handleSettlement(ctx context.Context, s models.Settlement) error {
	if _, err := e.tracker.RecordSettlement(ctx, s); err != nil {
		return err
	}

	snap, err := e.tracker.Snapshot(tracker.AllTime(time.Now()))
	if err != nil {
		return err
	}

	e.broker.Publish(models.EventMetricsUpdated, broker.TopicMetrics, snap)
	if err := e.publisher.PublishSnapshot(ctx, snap); err != nil {
		e.log.Warn().Err(err).Msg("metrics stream publish failed")
	}
	return nil
}

// emit rebroadcasts a scored opportunity according to the cache
// verdict. Silent and stale verdicts emit nothing.
func (e *Engine) emit(ctx context.Context, opp models.BettingOpportunity, verdict oppcache.Verdict) {
	var eventType string
	switch verdict {
	case oppcache.VerdictCreated:
		eventType = models.EventOpportunityNew
	case oppcache.VerdictUpdated:
		eventType = models.EventOpportunityUpdated
	default:
		return
	}

	e.broker.Publish(eventType, broker.TopicOpportunities, opp)

	if err := e.publisher.PublishOpportunity(ctx, eventType, opp); err != nil {
		e.log.Warn().Err(err).Msg("opportunity stream publish failed")
	}

	if alert, ok := e.alerter.Check(ctx, opp); ok {
		e.broker.Publish(models.EventAlert, broker.TopicAlerts, *alert)
	}
}

// evictionLoop sweeps expired opportunities on a fixed interval and
// announces each eviction.
func (e *Engine) evictionLoop(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.EvictionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			for _, opp := range e.cache.EvictExpired(now) {
				e.broker.Publish(models.EventOpportunityRemoved, broker.TopicOpportunities, opp)
			}
		}
	}
}

// weightRecalcLoop refreshes registry weights periodically and
// announces the new state.
func (e *Engine) weightRecalcLoop(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.WeightRecalcInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.registry.RecalculateWeights()
			e.broker.Publish(models.EventMetricsUpdated, broker.TopicMetrics, map[string]interface{}{
				"models": e.registry.Snapshot(),
			})
		}
	}
}

// Degrade announces that a component halted on a fatal error.
func (e *Engine) Degrade(component, reason string) {
	e.log.Error().Str("degraded_component", component).Str("reason", reason).Msg("component degraded")
	e.broker.Publish(models.EventComponentDegraded, broker.TopicSystem, models.ComponentDegraded{
		Component: component,
		Reason:    reason,
		At:        time.Now(),
	})
}

// Stats returns processing counters.
func (e *Engine) Stats() (processed, errored int64) {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	return e.processed, e.errored
}

func (e *Engine) countProcessed() {
	e.statsMu.Lock()
	e.processed++
	e.statsMu.Unlock()
}

func (e *Engine) countError() {
	e.statsMu.Lock()
	e.errored++
	e.statsMu.Unlock()
}
