package alerts

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itzcole03/A1Betting-master-main-sub018/internal/config"
	"github.com/itzcole03/A1Betting-master-main-sub018/pkg/models"
)

func testOpportunity(ev float64) models.BettingOpportunity {
	return models.BettingOpportunity{
		ID:            "opp-1",
		SportKey:      "basketball_nba",
		EventID:       "evt-1",
		MarketKey:     "player_points",
		Selection:     "over",
		ExpectedValue: ev,
		KellyFraction: 0.08,
	}
}

func TestCheckBelowThreshold(t *testing.T) {
	a := New(nil, config.AlertConfig{MinExpectedValue: 0.05, RatePerMinute: 60}, zerolog.Nop())

	alert, ok := a.Check(context.Background(), testOpportunity(0.02))
	assert.False(t, ok)
	assert.Nil(t, alert)
}

func TestCheckAboveThreshold(t *testing.T) {
	a := New(nil, config.AlertConfig{MinExpectedValue: 0.05, RatePerMinute: 60}, zerolog.Nop())

	alert, ok := a.Check(context.Background(), testOpportunity(0.12))
	require.True(t, ok)
	require.NotNil(t, alert)
	assert.Equal(t, "opp-1", alert.OpportunityID)
	assert.Equal(t, "player_points", alert.MarketKey)
	assert.InDelta(t, 0.12, alert.ExpectedValue, 1e-9)
	assert.WithinDuration(t, time.Now(), alert.TriggeredAt, time.Second)
}

func TestCheckRateLimited(t *testing.T) {
	a := New(nil, config.AlertConfig{MinExpectedValue: 0.05, RatePerMinute: 1}, zerolog.Nop())

	_, ok := a.Check(context.Background(), testOpportunity(0.12))
	require.True(t, ok)

	// Burst exhausted; the next high-EV opportunity waits out the window.
	_, ok = a.Check(context.Background(), testOpportunity(0.20))
	assert.False(t, ok)
}
