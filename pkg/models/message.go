package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Inbound message kinds accepted at the transport boundary.
const (
	MessageTypePropUpdate = "prop_update"
	MessageTypeOddsUpdate = "odds_update"
	MessageTypeSettlement = "settlement"
	MessageTypePing       = "ping"
)

// Outbound (rebroadcast) message kinds.
const (
	EventOpportunityNew     = "opportunity:new"
	EventOpportunityUpdated = "opportunity:updated"
	EventOpportunityRemoved = "opportunity:removed"
	EventMetricsUpdated     = "metrics:updated"
	EventAlert              = "alert"
	EventComponentDegraded  = "component:degraded"
)

// InboundMessage is the wire envelope for messages from the odds feed.
// Data stays raw until the type tag is validated.
type InboundMessage struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"` // unix millis
}

// InboundEvent is a decoded inbound message. Exactly one of the payload
// fields is non-nil, matched to Type.
type InboundEvent struct {
	Type       string
	Prop       *PropUpdate
	Odds       *OddsUpdate
	Settlement *Settlement
	ReceivedAt time.Time
}

// DecodeInbound validates the envelope's type tag and decodes its payload.
// Unknown types are rejected here so downstream code only ever sees the
// four known kinds.
func DecodeInbound(raw []byte) (InboundEvent, error) {
	var msg InboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return InboundEvent{}, fmt.Errorf("decode envelope: %w", err)
	}

	ev := InboundEvent{Type: msg.Type, ReceivedAt: time.Now()}

	switch msg.Type {
	case MessageTypePropUpdate:
		var p PropUpdate
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			return InboundEvent{}, fmt.Errorf("decode prop_update: %w", err)
		}
		ev.Prop = &p

	case MessageTypeOddsUpdate:
		var o OddsUpdate
		if err := json.Unmarshal(msg.Data, &o); err != nil {
			return InboundEvent{}, fmt.Errorf("decode odds_update: %w", err)
		}
		ev.Odds = &o

	case MessageTypeSettlement:
		var s Settlement
		if err := json.Unmarshal(msg.Data, &s); err != nil {
			return InboundEvent{}, fmt.Errorf("decode settlement: %w", err)
		}
		ev.Settlement = &s

	case MessageTypePing:
		// No payload.

	default:
		return InboundEvent{}, fmt.Errorf("unknown message type %q", msg.Type)
	}

	return ev, nil
}

// OutboundMessage is the wire envelope for rebroadcast events. Seq is
// monotonically increasing per topic so consumers can detect gaps and
// request a resync.
type OutboundMessage struct {
	Type      string      `json:"type"`
	Topic     string      `json:"topic"`
	Seq       uint64      `json:"seq"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// SubscriptionFilter narrows which outbound events a subscriber receives.
// Empty fields match everything.
type SubscriptionFilter struct {
	Sports        []string `json:"sports,omitempty"`
	Markets       []string `json:"markets,omitempty"`
	MinConfidence float64  `json:"min_confidence,omitempty"`
}

// Matches reports whether an opportunity passes the filter.
func (f SubscriptionFilter) Matches(opp BettingOpportunity) bool {
	if len(f.Sports) > 0 && !contains(f.Sports, opp.SportKey) {
		return false
	}
	if len(f.Markets) > 0 && !contains(f.Markets, opp.MarketKey) {
		return false
	}
	if f.MinConfidence > 0 && opp.EnsembleConfidence < f.MinConfidence {
		return false
	}
	return true
}

// ClientMessage is what hub clients send to manage their subscriptions.
type ClientMessage struct {
	Type   string              `json:"type"` // "subscribe" | "unsubscribe"
	Topic  string              `json:"topic"`
	Filter *SubscriptionFilter `json:"filter,omitempty"`
}

// Alert is pushed when an opportunity clears the alerting thresholds.
type Alert struct {
	OpportunityID string    `json:"opportunity_id"`
	SportKey      string    `json:"sport_key"`
	MarketKey     string    `json:"market_key"`
	Selection     string    `json:"selection"`
	ExpectedValue float64   `json:"expected_value"`
	KellyFraction float64   `json:"kelly_fraction"`
	TriggeredAt   time.Time `json:"triggered_at"`
}

// ComponentDegraded signals that a component halted on a fatal error.
type ComponentDegraded struct {
	Component string    `json:"component"`
	Reason    string    `json:"reason"`
	At        time.Time `json:"at"`
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
