// Package tracker maintains the append-only bet ledger and computes
// realized-performance metrics over it.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/itzcole03/A1Betting-master-main-sub018/pkg/betmath"
	"github.com/itzcole03/A1Betting-master-main-sub018/pkg/models"
)

var (
	// ErrAlreadySettled is returned when settling a bet whose stored
	// record is already terminal. The ledger is left unchanged.
	ErrAlreadySettled = errors.New("tracker: bet already settled")

	// ErrUnknownBet is returned when settling a bet id that was never
	// placed.
	ErrUnknownBet = errors.New("tracker: unknown bet id")

	// ErrDuplicateBet is returned when placing a bet id that already
	// exists in the ledger.
	ErrDuplicateBet = errors.New("tracker: duplicate bet id")

	// ErrInvalidRecord is returned for records violating the bet state
	// machine (non-terminal settlement result, non-positive stake, ...).
	ErrInvalidRecord = errors.New("tracker: invalid bet record")

	// ErrDegraded is returned by queries after the tracker refused a
	// corrupted ledger restore. Serving ambiguous metrics silently is
	// worse than failing loudly.
	ErrDegraded = errors.New("tracker: ledger degraded, refusing to serve metrics")
)

// Store persists ledger mutations. Implementations must be safe for
// concurrent use. A nil Store keeps the tracker purely in-memory.
type Store interface {
	InsertPlacement(ctx context.Context, rec models.BetRecord) error
	UpdateSettlement(ctx context.Context, rec models.BetRecord) error
}

// Window bounds a metrics query.
type Window struct {
	Start time.Time
	End   time.Time
}

// Day, Week and Month return the trailing windows ending at now.
func Day(now time.Time) Window   { return Window{Start: now.AddDate(0, 0, -1), End: now} }
func Week(now time.Time) Window  { return Window{Start: now.AddDate(0, 0, -7), End: now} }
func Month(now time.Time) Window { return Window{Start: now.AddDate(0, -1, 0), End: now} }

// AllTime returns a window covering the whole ledger.
func AllTime(now time.Time) Window { return Window{End: now} }

func (w Window) contains(t time.Time) bool {
	if !w.Start.IsZero() && t.Before(w.Start) {
		return false
	}
	if !w.End.IsZero() && t.After(w.End) {
		return false
	}
	return true
}

// Tracker owns the bet ledger. Settlements transition a record exactly
// once from pending to a terminal state; snapshots are recomputed from
// the ledger on every request so corrections and backfills are always
// reflected consistently.
type Tracker struct {
	mu       sync.RWMutex
	ledger   map[string]*models.BetRecord
	bankroll float64
	degraded bool
	store    Store
	log      zerolog.Logger
}

// New creates an empty tracker. bankroll seeds the equity curve used for
// drawdown; store may be nil.
func New(bankroll float64, store Store, log zerolog.Logger) *Tracker {
	return &Tracker{
		ledger:   make(map[string]*models.BetRecord),
		bankroll: bankroll,
		store:    store,
		log:      log.With().Str("component", "tracker").Logger(),
	}
}

// Restore seeds the ledger from persisted records. Records violating the
// bet state machine poison the whole restore: the tracker marks itself
// degraded and refuses metric queries rather than serving numbers built
// on an ambiguous ledger.
func (t *Tracker) Restore(records []models.BetRecord) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	seen := make(map[string]bool, len(records))
	for _, rec := range records {
		if seen[rec.ID] {
			t.degraded = true
			return fmt.Errorf("%w: duplicate bet id %s", ErrInvalidRecord, rec.ID)
		}
		seen[rec.ID] = true

		if rec.Result.IsTerminal() && rec.SettledAt == nil {
			t.degraded = true
			return fmt.Errorf("%w: bet %s is terminal without settled_at", ErrInvalidRecord, rec.ID)
		}
		if !rec.Result.IsTerminal() && rec.Result != models.BetPending {
			t.degraded = true
			return fmt.Errorf("%w: bet %s has unknown result %q", ErrInvalidRecord, rec.ID, rec.Result)
		}
	}

	for _, rec := range records {
		r := rec
		t.ledger[rec.ID] = &r
	}
	t.log.Info().Int("records", len(records)).Msg("ledger restored")
	return nil
}

// MarkDegraded poisons the tracker when the persisted ledger could not
// be loaded at all.
func (t *Tracker) MarkDegraded() {
	t.mu.Lock()
	t.degraded = true
	t.mu.Unlock()
}

// Degraded reports whether the tracker refused its last restore.
func (t *Tracker) Degraded() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.degraded
}

// RecordPlacement appends a pending bet to the ledger.
func (t *Tracker) RecordPlacement(ctx context.Context, rec models.BetRecord) error {
	if rec.Result != models.BetPending {
		return fmt.Errorf("%w: placement result must be pending", ErrInvalidRecord)
	}
	if rec.Stake <= 0 || rec.OddsAtPlacement <= 1 {
		return fmt.Errorf("%w: stake must be > 0 and odds > 1", ErrInvalidRecord)
	}

	t.mu.Lock()
	if _, exists := t.ledger[rec.ID]; exists {
		t.mu.Unlock()
		return ErrDuplicateBet
	}
	if rec.PlacedAt.IsZero() {
		rec.PlacedAt = time.Now()
	}
	stored := rec
	t.ledger[rec.ID] = &stored
	t.mu.Unlock()

	if t.store != nil {
		if err := t.store.InsertPlacement(ctx, rec); err != nil {
			t.log.Warn().Err(err).Str("bet_id", rec.ID).Msg("ledger persist failed")
		}
	}
	return nil
}

// RecordSettlement transitions a pending bet to a terminal state.
// Settling an already-terminal bet returns ErrAlreadySettled and leaves
// the ledger unchanged.
func (t *Tracker) RecordSettlement(ctx context.Context, s models.Settlement) (models.BetRecord, error) {
	if !s.Result.IsTerminal() {
		return models.BetRecord{}, fmt.Errorf("%w: settlement result %q is not terminal", ErrInvalidRecord, s.Result)
	}

	t.mu.Lock()
	rec, ok := t.ledger[s.BetID]
	if !ok {
		t.mu.Unlock()
		return models.BetRecord{}, ErrUnknownBet
	}
	if rec.Result.IsTerminal() {
		t.mu.Unlock()
		return models.BetRecord{}, ErrAlreadySettled
	}

	settledAt := s.SettledAt
	if settledAt.IsZero() {
		settledAt = time.Now()
	}
	rec.Result = s.Result
	rec.SettledAt = &settledAt
	rec.ClosingOdds = s.ClosingOdds
	settled := *rec
	t.mu.Unlock()

	if t.store != nil {
		if err := t.store.UpdateSettlement(ctx, settled); err != nil {
			t.log.Warn().Err(err).Str("bet_id", settled.ID).Msg("settlement persist failed")
		}
	}

	t.log.Info().
		Str("bet_id", settled.ID).
		Str("result", string(settled.Result)).
		Float64("profit", settled.Profit()).
		Msg("bet settled")
	return settled, nil
}

// Snapshot recomputes all performance metrics from the ledger restricted
// to the window. Deliberately not incremental: a full recompute keeps the
// snapshot internally consistent even after backfilled corrections, and
// avoids compounding floating error.
func (t *Tracker) Snapshot(window Window) (models.PerformanceSnapshot, error) {
	settled, err := t.settledInWindow(window)
	if err != nil {
		return models.PerformanceSnapshot{}, err
	}

	snap := models.PerformanceSnapshot{
		WindowStart: window.Start,
		WindowEnd:   window.End,
		TotalBets:   len(settled),
	}
	if len(settled) == 0 {
		return snap, nil
	}

	var (
		decidedStake float64
		profit       float64
		returns      []float64
		clvs         []float64
		equity       = []float64{t.bankroll}
	)

	for _, rec := range settled {
		decided := false
		switch rec.Result {
		case models.BetWon:
			snap.Wins++
			decided = true
		case models.BetLost:
			snap.Losses++
			decided = true
		}

		p := rec.Profit()
		profit += p
		equity = append(equity, equity[len(equity)-1]+p)

		// Pushes and cancellations return the stake untouched: money
		// that was never at risk, so it neither dilutes ROI nor Sharpe.
		if decided {
			decidedStake += rec.Stake
			if rec.Stake > 0 {
				returns = append(returns, p/rec.Stake)
			}
		}

		if rec.ClosingOdds != nil {
			if clv, err := betmath.CLV(rec.OddsAtPlacement, *rec.ClosingOdds); err == nil {
				clvs = append(clvs, clv)
			}
		}
	}

	decided := snap.Wins + snap.Losses
	snap.WinRate = betmath.WinRate(snap.Wins, decided)
	snap.ProfitLoss = profit
	snap.ROI = betmath.ROI(profit, decidedStake)
	if decided > 0 {
		snap.AverageStake = decidedStake / float64(decided)
	}
	snap.MaxDrawdown = betmath.MaxDrawdown(equity)
	snap.SharpeRatio = betmath.SharpeRatio(returns, 0)
	snap.CLVAverage = betmath.Mean(clvs)

	return snap, nil
}

// Streaks scans settlements in chronological order within the window and
// returns the current and longest win/loss streaks. Pushes and
// cancellations neither extend nor break a streak.
func (t *Tracker) Streaks(window Window) (models.Streaks, error) {
	settled, err := t.settledInWindow(window)
	if err != nil {
		return models.Streaks{}, err
	}

	var s models.Streaks
	var curWin, curLoss int

	for _, rec := range settled {
		switch rec.Result {
		case models.BetWon:
			curWin++
			curLoss = 0
			if curWin > s.LongestWin {
				s.LongestWin = curWin
			}
		case models.BetLost:
			curLoss++
			curWin = 0
			if curLoss > s.LongestLoss {
				s.LongestLoss = curLoss
			}
		}
	}

	s.CurrentWin = curWin
	s.CurrentLoss = curLoss
	return s, nil
}

// Pending returns the ids of unsettled bets, oldest first.
func (t *Tracker) Pending() []models.BetRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []models.BetRecord
	for _, rec := range t.ledger {
		if rec.Result == models.BetPending {
			out = append(out, *rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlacedAt.Before(out[j].PlacedAt) })
	return out
}

// settledInWindow returns settled records inside the window, ordered by
// settlement time.
func (t *Tracker) settledInWindow(window Window) ([]models.BetRecord, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.degraded {
		return nil, ErrDegraded
	}

	var out []models.BetRecord
	for _, rec := range t.ledger {
		if !rec.Result.IsTerminal() || rec.SettledAt == nil {
			continue
		}
		if !window.contains(*rec.SettledAt) {
			continue
		}
		out = append(out, *rec)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].SettledAt.Before(*out[j].SettledAt) })
	return out, nil
}
