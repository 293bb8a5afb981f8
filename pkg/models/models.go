package models

import "time"

// RiskLevel buckets an opportunity's stake-sizing risk.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// BetResult is the lifecycle state of a placed bet.
// A bet transitions exactly once from pending to a terminal state.
type BetResult string

const (
	BetPending   BetResult = "pending"
	BetWon       BetResult = "won"
	BetLost      BetResult = "lost"
	BetPush      BetResult = "push"
	BetCancelled BetResult = "cancelled"
)

// IsTerminal reports whether the result ends the bet's lifecycle.
func (r BetResult) IsTerminal() bool {
	switch r {
	case BetWon, BetLost, BetPush, BetCancelled:
		return true
	}
	return false
}

// ModelPrediction is one model's raw output for a market context.
// Immutable once created.
type ModelPrediction struct {
	ModelName  string             `json:"model_name"`
	Value      float64            `json:"value"`
	Confidence float64            `json:"confidence"` // [0,1]
	ShapValues map[string]float64 `json:"shap_values,omitempty"`
	Timestamp  time.Time          `json:"timestamp"`
}

// ModelMetrics holds a model's latest evaluation results.
type ModelMetrics struct {
	Accuracy    float64   `json:"accuracy"` // [0,1]
	SampleSize  int       `json:"sample_size"`
	EvaluatedAt time.Time `json:"evaluated_at"`
}

// MarketContext identifies what is being bet on.
type MarketContext struct {
	SportKey  string  `json:"sport_key"`
	EventID   string  `json:"event_id"`
	MarketKey string  `json:"market_key"`
	Selection string  `json:"selection"`
	Line      float64 `json:"line,omitempty"` // point/total line, 0 for moneyline
	Odds      float64 `json:"odds"`           // decimal, > 1
}

// BettingOpportunity is a scored, stake-sized betting recommendation.
// Created by the aggregator, re-scored in place on new input, removed
// on TTL expiry or explicit line removal.
type BettingOpportunity struct {
	ID                 string             `json:"id"` // stable hash of event+market+selection
	SportKey           string             `json:"sport_key"`
	EventID            string             `json:"event_id"`
	MarketKey          string             `json:"market_key"`
	Selection          string             `json:"selection"`
	Odds               float64            `json:"odds"` // decimal
	EnsembleValue      float64            `json:"ensemble_value"`
	EnsembleConfidence float64            `json:"ensemble_confidence"` // [0,1]
	WinProbability     float64            `json:"win_probability"`
	ExpectedValue      float64            `json:"expected_value"` // per unit stake
	KellyFraction      float64            `json:"kelly_fraction"`
	RiskLevel          RiskLevel          `json:"risk_level"`
	ModelBreakdown     map[string]float64 `json:"model_breakdown"` // model -> normalized weight
	FeatureImpacts     map[string]float64 `json:"feature_impacts,omitempty"`
	UpdatedAt          time.Time          `json:"updated_at"` // timestamp of the causing update
	CreatedAt          time.Time          `json:"created_at"`
	ExpiresAt          time.Time          `json:"expires_at"`
}

// BetRecord is one entry in the performance ledger.
// Immutable after settlement.
type BetRecord struct {
	ID              string     `json:"id"`
	OpportunityID   string     `json:"opportunity_id"`
	Stake           float64    `json:"stake"`
	OddsAtPlacement float64    `json:"odds_at_placement"` // decimal
	ClosingOdds     *float64   `json:"closing_odds,omitempty"`
	Result          BetResult  `json:"result"`
	PlacedAt        time.Time  `json:"placed_at"`
	SettledAt       *time.Time `json:"settled_at,omitempty"`
}

// Profit returns the realized profit/loss of a settled bet.
// Pending and cancelled bets contribute zero.
func (b BetRecord) Profit() float64 {
	switch b.Result {
	case BetWon:
		return b.Stake * (b.OddsAtPlacement - 1)
	case BetLost:
		return -b.Stake
	}
	return 0
}

// PerformanceSnapshot is a windowed view over the settled-bet ledger.
// Recomputed from the ledger on every request, never mutated in place.
type PerformanceSnapshot struct {
	WindowStart  time.Time `json:"window_start"`
	WindowEnd    time.Time `json:"window_end"`
	TotalBets    int       `json:"total_bets"`
	Wins         int       `json:"wins"`
	Losses       int       `json:"losses"`
	WinRate      float64   `json:"win_rate"`
	ROI          float64   `json:"roi"`
	ProfitLoss   float64   `json:"profit_loss"`
	AverageStake float64   `json:"average_stake"`
	MaxDrawdown  float64   `json:"max_drawdown"`
	SharpeRatio  float64   `json:"sharpe_ratio"`
	CLVAverage   float64   `json:"clv_average"`
}

// Streaks summarizes consecutive results within a window.
type Streaks struct {
	CurrentWin  int `json:"current_win"`
	CurrentLoss int `json:"current_loss"`
	LongestWin  int `json:"longest_win"`
	LongestLoss int `json:"longest_loss"`
}

// PropUpdate is an inbound player-prop line update.
type PropUpdate struct {
	SportKey  string    `json:"sport_key"`
	EventID   string    `json:"event_id"`
	MarketKey string    `json:"market_key"`
	Selection string    `json:"selection"`
	Line      float64   `json:"line"`
	Odds      float64   `json:"odds"` // decimal
	Timestamp time.Time `json:"timestamp"`
}

// OddsUpdate is an inbound price move on a known market.
type OddsUpdate struct {
	SportKey  string    `json:"sport_key"`
	EventID   string    `json:"event_id"`
	MarketKey string    `json:"market_key"`
	Selection string    `json:"selection"`
	Odds      float64   `json:"odds"`              // decimal
	Removed   bool      `json:"removed,omitempty"` // book pulled the line
	Timestamp time.Time `json:"timestamp"`
}

// Settlement is an inbound settled-bet notification.
type Settlement struct {
	BetID       string    `json:"bet_id"`
	Result      BetResult `json:"result"`
	ClosingOdds *float64  `json:"closing_odds,omitempty"`
	SettledAt   time.Time `json:"settled_at"`
}

// Context returns the market context of a prop update.
func (p PropUpdate) Context() MarketContext {
	return MarketContext{
		SportKey:  p.SportKey,
		EventID:   p.EventID,
		MarketKey: p.MarketKey,
		Selection: p.Selection,
		Line:      p.Line,
		Odds:      p.Odds,
	}
}
