// Package broker is the in-process pub/sub core of the distribution
// layer: typed topics, per-topic sequence numbers, and non-blocking
// fan-out to subscribers.
package broker

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/itzcole03/A1Betting-master-main-sub018/pkg/models"
)

// Topic names for derived events.
const (
	TopicOpportunities = "opportunities"
	TopicMetrics       = "metrics"
	TopicAlerts        = "alerts"
	TopicSystem        = "system"
)

const defaultBuffer = 256

// Subscription is one consumer's registration. Events arrive on C;
// a subscriber that falls behind has events dropped, not queued
// unboundedly.
type Subscription struct {
	ID     string
	C      <-chan models.OutboundMessage
	ch     chan models.OutboundMessage
	topics map[string]*models.SubscriptionFilter
	broker *Broker
	mu     sync.Mutex
	closed bool
}

type topicState struct {
	seq  uint64
	subs map[string]*Subscription
}

// Broker routes published events to topic subscribers. Sequence numbers
// are monotonically increasing per topic and independent across topics;
// within one topic, delivery order matches publish order.
type Broker struct {
	mu      sync.Mutex
	topics  map[string]*topicState
	dropped int64
	log     zerolog.Logger
}

// New creates an empty broker.
func New(log zerolog.Logger) *Broker {
	return &Broker{
		topics: make(map[string]*topicState),
		log:    log.With().Str("component", "broker").Logger(),
	}
}

// NewSubscription creates an unattached subscription. Attach it to
// topics with Subscribe.
func (b *Broker) NewSubscription() *Subscription {
	ch := make(chan models.OutboundMessage, defaultBuffer)
	return &Subscription{
		ID:     uuid.NewString(),
		C:      ch,
		ch:     ch,
		topics: make(map[string]*models.SubscriptionFilter),
		broker: b,
	}
}

// Subscribe registers the subscription on a topic. Idempotent: a second
// subscribe to the same topic replaces the filter only.
func (b *Broker) Subscribe(sub *Subscription, topic string, filter *models.SubscriptionFilter) {
	sub.mu.Lock()
	if sub.closed {
		sub.mu.Unlock()
		return
	}
	sub.topics[topic] = filter
	sub.mu.Unlock()

	b.mu.Lock()
	defer b.mu.Unlock()

	// A Close that ran between the two locks has already detached the
	// topics it saw; registering now would leave a closed channel
	// reachable from Publish.
	sub.mu.Lock()
	closed := sub.closed
	sub.mu.Unlock()
	if closed {
		return
	}

	state, ok := b.topics[topic]
	if !ok {
		state = &topicState{subs: make(map[string]*Subscription)}
		b.topics[topic] = state
	}
	state.subs[sub.ID] = sub
}

// Unsubscribe removes the subscription from a topic. Idempotent.
func (b *Broker) Unsubscribe(sub *Subscription, topic string) {
	sub.mu.Lock()
	delete(sub.topics, topic)
	sub.mu.Unlock()

	b.mu.Lock()
	defer b.mu.Unlock()

	if state, ok := b.topics[topic]; ok {
		delete(state.subs, sub.ID)
	}
}

// Close detaches the subscription from every topic and closes its
// channel.
func (s *Subscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	topics := make([]string, 0, len(s.topics))
	for topic := range s.topics {
		topics = append(topics, topic)
	}
	s.mu.Unlock()

	for _, topic := range topics {
		s.broker.Unsubscribe(s, topic)
	}
	close(s.ch)
}

// Topics returns the topics the subscription is attached to.
func (s *Subscription) Topics() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.topics))
	for topic := range s.topics {
		out = append(out, topic)
	}
	return out
}

// Publish assigns the topic's next sequence number and fans the event
// out to subscribers. Delivery is non-blocking: a full subscriber buffer
// drops the event for that subscriber rather than stalling the topic.
func (b *Broker) Publish(eventType, topic string, data interface{}) models.OutboundMessage {
	b.mu.Lock()
	defer b.mu.Unlock()

	state, ok := b.topics[topic]
	if !ok {
		state = &topicState{subs: make(map[string]*Subscription)}
		b.topics[topic] = state
	}

	state.seq++
	msg := models.OutboundMessage{
		Type:      eventType,
		Topic:     topic,
		Seq:       state.seq,
		Data:      data,
		Timestamp: time.Now(),
	}

	for _, sub := range state.subs {
		if !matches(sub, topic, data) {
			continue
		}
		select {
		case sub.ch <- msg:
		default:
			b.dropped++
			b.log.Warn().
				Str("topic", topic).
				Str("subscriber", sub.ID).
				Uint64("seq", msg.Seq).
				Msg("subscriber buffer full, dropping event")
		}
	}

	return msg
}

// Seq returns the current sequence number for a topic.
func (b *Broker) Seq(topic string) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if state, ok := b.topics[topic]; ok {
		return state.seq
	}
	return 0
}

// matches applies the subscriber's topic filter when the payload is an
// opportunity; other payload kinds always pass.
func matches(sub *Subscription, topic string, data interface{}) bool {
	sub.mu.Lock()
	filter := sub.topics[topic]
	sub.mu.Unlock()

	if filter == nil {
		return true
	}
	if opp, ok := data.(models.BettingOpportunity); ok {
		return filter.Matches(opp)
	}
	return true
}
