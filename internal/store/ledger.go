// Package store persists the bet ledger in Postgres.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/itzcole03/A1Betting-master-main-sub018/pkg/models"
)

// ErrCorruptLedger is returned when persisted rows violate the bet
// state machine. Serving metrics computed from an ambiguous ledger is
// worse than refusing to start, so callers must treat this as fatal for
// the tracking component.
var ErrCorruptLedger = errors.New("store: corrupt ledger")

// LedgerStore reads and writes bet records.
type LedgerStore struct {
	db *sql.DB
}

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, dsn string) (*LedgerStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open ledger db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping ledger db: %w", err)
	}
	return &LedgerStore{db: db}, nil
}

// NewWithDB wraps an existing connection (used by tests).
func NewWithDB(db *sql.DB) *LedgerStore {
	return &LedgerStore{db: db}
}

// Close releases the connection pool.
func (s *LedgerStore) Close() error {
	return s.db.Close()
}

// InsertPlacement writes a freshly placed bet.
func (s *LedgerStore) InsertPlacement(ctx context.Context, rec models.BetRecord) error {
	query := `
		INSERT INTO bet_records (
			id, opportunity_id, stake, odds_at_placement, result, placed_at
		) VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.db.ExecContext(ctx, query,
		rec.ID,
		rec.OpportunityID,
		rec.Stake,
		rec.OddsAtPlacement,
		string(rec.Result),
		rec.PlacedAt,
	)
	if err != nil {
		return fmt.Errorf("insert placement: %w", err)
	}
	return nil
}

// UpdateSettlement records the single pending-to-terminal transition.
// The WHERE clause guards the transition at the database level too: a
// row that is already terminal is never overwritten.
func (s *LedgerStore) UpdateSettlement(ctx context.Context, rec models.BetRecord) error {
	query := `
		UPDATE bet_records
		SET result = $2, closing_odds = $3, settled_at = $4
		WHERE id = $1 AND result = 'pending'
	`

	res, err := s.db.ExecContext(ctx, query,
		rec.ID,
		string(rec.Result),
		rec.ClosingOdds,
		rec.SettledAt,
	)
	if err != nil {
		return fmt.Errorf("update settlement: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("settlement rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("settlement for bet %s matched no pending row", rec.ID)
	}
	return nil
}

// LoadLedger reads every bet record, validating the state machine as it
// goes. Any violation poisons the whole load with ErrCorruptLedger.
func (s *LedgerStore) LoadLedger(ctx context.Context) ([]models.BetRecord, error) {
	query := `
		SELECT id, opportunity_id, stake, odds_at_placement, closing_odds, result, placed_at, settled_at
		FROM bet_records
		ORDER BY placed_at
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]bool)
	var records []models.BetRecord

	for rows.Next() {
		var (
			rec       models.BetRecord
			result    string
			closing   sql.NullFloat64
			settledAt sql.NullTime
		)
		if err := rows.Scan(
			&rec.ID,
			&rec.OpportunityID,
			&rec.Stake,
			&rec.OddsAtPlacement,
			&closing,
			&result,
			&rec.PlacedAt,
			&settledAt,
		); err != nil {
			return nil, fmt.Errorf("scan bet record: %w", err)
		}

		rec.Result = models.BetResult(result)
		if closing.Valid {
			v := closing.Float64
			rec.ClosingOdds = &v
		}
		if settledAt.Valid {
			t := settledAt.Time
			rec.SettledAt = &t
		}

		if seen[rec.ID] {
			return nil, fmt.Errorf("%w: duplicate bet id %s", ErrCorruptLedger, rec.ID)
		}
		seen[rec.ID] = true

		switch {
		case rec.Result.IsTerminal() && rec.SettledAt == nil:
			return nil, fmt.Errorf("%w: bet %s terminal without settled_at", ErrCorruptLedger, rec.ID)
		case !rec.Result.IsTerminal() && rec.Result != models.BetPending:
			return nil, fmt.Errorf("%w: bet %s has unknown result %q", ErrCorruptLedger, rec.ID, result)
		}

		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger: %w", err)
	}
	return records, nil
}
