package oppcache

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itzcole03/A1Betting-master-main-sub018/pkg/models"
)

func newTestCache(ttl time.Duration) *Cache {
	return New(ttl, 0.1, zerolog.Nop())
}

func makeOpp(id string, odds float64, at time.Time) models.BettingOpportunity {
	return models.BettingOpportunity{
		ID:                 id,
		SportKey:           "basketball_nba",
		EventID:            "evt-1",
		MarketKey:          "player_points",
		Selection:          "Over 25.5",
		Odds:               odds,
		EnsembleConfidence: 0.8,
		UpdatedAt:          at,
	}
}

func TestOpportunityIDStable(t *testing.T) {
	a := OpportunityID("evt-1", "player_points", "Over 25.5")
	b := OpportunityID("evt-1", "player_points", "Over 25.5")
	c := OpportunityID("evt-1", "player_points", "Under 25.5")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestUpsertVerdicts(t *testing.T) {
	c := newTestCache(5 * time.Minute)
	base := time.Now()

	// First sight of the opportunity.
	v := c.Upsert(makeOpp("opp-1", 1.91, base))
	assert.Equal(t, VerdictCreated, v)

	// 1.91 -> 1.95 is a 0.04 move, below the 0.1 threshold: silent.
	v = c.Upsert(makeOpp("opp-1", 1.95, base.Add(time.Second)))
	assert.Equal(t, VerdictSilent, v)

	stored, err := c.Get("opp-1")
	require.NoError(t, err)
	assert.Equal(t, 1.95, stored.Odds, "silent update must still store the new odds")

	// 1.95 -> 2.10 is a 0.15 move, at/above threshold: rebroadcast.
	v = c.Upsert(makeOpp("opp-1", 2.10, base.Add(2*time.Second)))
	assert.Equal(t, VerdictUpdated, v)
}

func TestUpsertDropsOutOfOrder(t *testing.T) {
	c := newTestCache(5 * time.Minute)
	base := time.Now()

	c.Upsert(makeOpp("opp-1", 2.00, base))

	// An update stamped before the stored one must not apply.
	v := c.Upsert(makeOpp("opp-1", 1.50, base.Add(-time.Minute)))
	assert.Equal(t, VerdictStale, v)

	stored, err := c.Get("opp-1")
	require.NoError(t, err)
	assert.Equal(t, 2.00, stored.Odds)
}

func TestUpsertPreservesCreatedAt(t *testing.T) {
	c := newTestCache(5 * time.Minute)
	base := time.Now()

	c.Upsert(makeOpp("opp-1", 2.00, base))
	first, err := c.Get("opp-1")
	require.NoError(t, err)

	c.Upsert(makeOpp("opp-1", 2.50, base.Add(time.Second)))
	second, err := c.Get("opp-1")
	require.NoError(t, err)

	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.True(t, second.ExpiresAt.After(first.CreatedAt))
}

func TestListFilter(t *testing.T) {
	c := newTestCache(5 * time.Minute)
	now := time.Now()

	nba := makeOpp("opp-nba", 2.00, now)
	c.Upsert(nba)

	nfl := makeOpp("opp-nfl", 2.00, now)
	nfl.SportKey = "americanfootball_nfl"
	nfl.EnsembleConfidence = 0.6
	c.Upsert(nfl)

	assert.Len(t, c.List(Filter{}), 2)
	assert.Len(t, c.List(Filter{SportKey: "basketball_nba"}), 1)
	assert.Len(t, c.List(Filter{MinConfidence: 0.7}), 1)
	assert.Len(t, c.List(Filter{SportKey: "soccer_epl"}), 0)
}

func TestEvictExpired(t *testing.T) {
	c := newTestCache(100 * time.Millisecond)
	now := time.Now()

	c.Upsert(makeOpp("opp-1", 2.00, now))
	c.Upsert(makeOpp("opp-2", 2.00, now))

	// Nothing is evicted before expiry.
	evicted := c.EvictExpired(now.Add(50 * time.Millisecond))
	assert.Empty(t, evicted)
	assert.Equal(t, 2, c.Len())

	// Everything past expiresAt goes in one sweep.
	evicted = c.EvictExpired(now.Add(200 * time.Millisecond))
	assert.Len(t, evicted, 2)
	assert.Equal(t, 0, c.Len())

	_, err := c.Get("opp-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRemove(t *testing.T) {
	c := newTestCache(5 * time.Minute)
	c.Upsert(makeOpp("opp-1", 2.00, time.Now()))

	removed, err := c.Remove("opp-1")
	require.NoError(t, err)
	assert.Equal(t, "opp-1", removed.ID)

	_, err = c.Remove("opp-1")
	assert.ErrorIs(t, err, ErrNotFound)
}
