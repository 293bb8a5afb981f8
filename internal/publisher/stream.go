// Package publisher mirrors derived events onto Redis Streams for
// consumers that are not connected over WebSocket.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/itzcole03/A1Betting-master-main-sub018/pkg/models"
)

const (
	opportunitiesStream = "opportunities.detected"
	metricsStream       = "metrics.updated"

	// Streams are capped so an unattended Redis doesn't grow unbounded.
	maxStreamLen = 10000
)

// StreamPublisher writes derived events to Redis Streams. A nil client
// disables publishing entirely.
type StreamPublisher struct {
	client *redis.Client
	log    zerolog.Logger
}

// New creates a stream publisher. client may be nil.
func New(client *redis.Client, log zerolog.Logger) *StreamPublisher {
	return &StreamPublisher{
		client: client,
		log:    log.With().Str("component", "publisher").Logger(),
	}
}

// PublishOpportunity writes an opportunity event to the global stream
// and a sport-specific one.
func (p *StreamPublisher) PublishOpportunity(ctx context.Context, eventType string, opp models.BettingOpportunity) error {
	if p.client == nil {
		return nil
	}

	payload, err := json.Marshal(opp)
	if err != nil {
		return fmt.Errorf("marshal opportunity: %w", err)
	}

	values := map[string]interface{}{
		"event": eventType,
		"data":  string(payload),
	}

	for _, stream := range []string{
		opportunitiesStream,
		fmt.Sprintf("%s.%s", opportunitiesStream, opp.SportKey),
	} {
		if err := p.client.XAdd(ctx, &redis.XAddArgs{
			Stream: stream,
			MaxLen: maxStreamLen,
			Approx: true,
			Values: values,
		}).Err(); err != nil {
			return fmt.Errorf("publish to stream %s: %w", stream, err)
		}
	}

	return nil
}

// PublishSnapshot writes a performance snapshot to the metrics stream.
func (p *StreamPublisher) PublishSnapshot(ctx context.Context, snap models.PerformanceSnapshot) error {
	if p.client == nil {
		return nil
	}

	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	if err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: metricsStream,
		MaxLen: maxStreamLen,
		Approx: true,
		Values: map[string]interface{}{
			"event": models.EventMetricsUpdated,
			"data":  string(payload),
		},
	}).Err(); err != nil {
		return fmt.Errorf("publish to stream %s: %w", metricsStream, err)
	}

	return nil
}
