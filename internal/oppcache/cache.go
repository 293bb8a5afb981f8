// Package oppcache holds the live betting opportunities keyed by a
// stable identity, with TTL eviction and odds-change deduplication.
package oppcache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/itzcole03/A1Betting-master-main-sub018/pkg/models"
)

// ErrNotFound is returned when an opportunity id is not in the cache.
var ErrNotFound = errors.New("oppcache: opportunity not found")

// Verdict classifies what an upsert did, which decides whether the
// change is rebroadcast.
type Verdict int

const (
	// VerdictCreated means the opportunity is new. Rebroadcast.
	VerdictCreated Verdict = iota
	// VerdictUpdated means odds moved at or past the threshold. Rebroadcast.
	VerdictUpdated
	// VerdictSilent means odds moved below the threshold. The cache is
	// updated but subscribers are not flooded with noise.
	VerdictSilent
	// VerdictStale means the update's timestamp is older than the stored
	// one. Out-of-order arrivals are dropped, not applied.
	VerdictStale
)

func (v Verdict) String() string {
	switch v {
	case VerdictCreated:
		return "created"
	case VerdictUpdated:
		return "updated"
	case VerdictSilent:
		return "silent"
	case VerdictStale:
		return "stale"
	default:
		return "unknown"
	}
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	SportKey      string
	MarketKey     string
	MinConfidence float64
}

// Cache is the single store for live opportunities. A single mutex
// serializes writes; reads take the shared lock.
type Cache struct {
	mu        sync.RWMutex
	items     map[string]*models.BettingOpportunity
	ttl       time.Duration
	threshold float64 // minimum decimal-odds delta that triggers a rebroadcast
	log       zerolog.Logger
}

// New creates a cache with the given TTL and odds-change threshold.
func New(ttl time.Duration, minOddsChangeThreshold float64, log zerolog.Logger) *Cache {
	return &Cache{
		items:     make(map[string]*models.BettingOpportunity),
		ttl:       ttl,
		threshold: minOddsChangeThreshold,
		log:       log.With().Str("component", "oppcache").Logger(),
	}
}

// OpportunityID derives the stable identity of an opportunity from its
// event, market and selection.
func OpportunityID(eventID, marketKey, selection string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%s:%s", eventID, marketKey, selection)))
	return hex.EncodeToString(sum[:16])
}

// Upsert stores the opportunity at its id, resetting expiry to now+ttl,
// and reports how the stored state changed. The caller rebroadcasts on
// VerdictCreated and VerdictUpdated only.
func (c *Cache) Upsert(opp models.BettingOpportunity) Verdict {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	existing, ok := c.items[opp.ID]
	if ok && opp.UpdatedAt.Before(existing.UpdatedAt) {
		c.log.Debug().
			Str("id", opp.ID).
			Time("stored", existing.UpdatedAt).
			Time("arrived", opp.UpdatedAt).
			Msg("dropping out-of-order update")
		return VerdictStale
	}

	opp.ExpiresAt = now.Add(c.ttl)

	if !ok {
		opp.CreatedAt = now
		stored := opp
		c.items[opp.ID] = &stored
		return VerdictCreated
	}

	opp.CreatedAt = existing.CreatedAt
	oddsDelta := math.Abs(opp.Odds - existing.Odds)
	stored := opp
	c.items[opp.ID] = &stored

	if oddsDelta < c.threshold {
		return VerdictSilent
	}
	return VerdictUpdated
}

// Get returns the opportunity stored at id.
func (c *Cache) Get(id string) (models.BettingOpportunity, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	opp, ok := c.items[id]
	if !ok {
		return models.BettingOpportunity{}, ErrNotFound
	}
	return *opp, nil
}

// List returns all live opportunities passing the filter.
func (c *Cache) List(filter Filter) []models.BettingOpportunity {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]models.BettingOpportunity, 0, len(c.items))
	for _, opp := range c.items {
		if filter.SportKey != "" && opp.SportKey != filter.SportKey {
			continue
		}
		if filter.MarketKey != "" && opp.MarketKey != filter.MarketKey {
			continue
		}
		if filter.MinConfidence > 0 && opp.EnsembleConfidence < filter.MinConfidence {
			continue
		}
		out = append(out, *opp)
	}
	return out
}

// Remove deletes an opportunity explicitly (book pulled the line).
// Returns the removed value so the caller can rebroadcast it.
func (c *Cache) Remove(id string) (models.BettingOpportunity, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	opp, ok := c.items[id]
	if !ok {
		return models.BettingOpportunity{}, ErrNotFound
	}
	delete(c.items, id)
	return *opp, nil
}

// EvictExpired removes every entry past its expiry and returns them.
// The caller emits one opportunity:removed event per eviction.
func (c *Cache) EvictExpired(now time.Time) []models.BettingOpportunity {
	c.mu.Lock()
	defer c.mu.Unlock()

	var evicted []models.BettingOpportunity
	for id, opp := range c.items {
		if now.After(opp.ExpiresAt) {
			evicted = append(evicted, *opp)
			delete(c.items, id)
		}
	}
	return evicted
}

// Len returns the number of live opportunities.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
