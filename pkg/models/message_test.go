package models_test

import (
	"testing"
	"time"

	"github.com/itzcole03/A1Betting-master-main-sub018/pkg/models"
)

func TestDecodeInbound(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		wantType   string
		shouldFail bool
	}{
		{
			name:     "Odds update",
			raw:      `{"type":"odds_update","data":{"event_id":"evt-1","market_key":"player_points","selection":"Over 25.5","odds":1.95,"timestamp":"2026-03-01T12:00:00Z"},"timestamp":1772366400000}`,
			wantType: models.MessageTypeOddsUpdate,
		},
		{
			name:     "Prop update",
			raw:      `{"type":"prop_update","data":{"event_id":"evt-1","market_key":"player_points","selection":"Over 25.5","line":25.5,"odds":1.91},"timestamp":1772366400000}`,
			wantType: models.MessageTypePropUpdate,
		},
		{
			name:     "Settlement",
			raw:      `{"type":"settlement","data":{"bet_id":"bet-1","result":"won","settled_at":"2026-03-01T15:00:00Z"},"timestamp":1772366400000}`,
			wantType: models.MessageTypeSettlement,
		},
		{
			name:     "Ping has no payload",
			raw:      `{"type":"ping","timestamp":1772366400000}`,
			wantType: models.MessageTypePing,
		},
		{
			name:       "Unknown kind rejected at the boundary",
			raw:        `{"type":"exotic_new_thing","data":{},"timestamp":1}`,
			shouldFail: true,
		},
		{
			name:       "Malformed payload",
			raw:        `{"type":"odds_update","data":{"odds":"not-a-number"},"timestamp":1}`,
			shouldFail: true,
		},
		{
			name:       "Not JSON",
			raw:        `garbage`,
			shouldFail: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := models.DecodeInbound([]byte(tt.raw))

			if tt.shouldFail {
				if err == nil {
					t.Error("expected error but got none")
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ev.Type != tt.wantType {
				t.Errorf("Type = %s, want %s", ev.Type, tt.wantType)
			}
		})
	}
}

func TestDecodeInboundPayloadFields(t *testing.T) {
	raw := `{"type":"odds_update","data":{"sport_key":"basketball_nba","event_id":"evt-1","market_key":"player_points","selection":"Over 25.5","odds":2.10,"timestamp":"2026-03-01T12:00:00Z"},"timestamp":1772366400000}`

	ev, err := models.DecodeInbound([]byte(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Odds == nil {
		t.Fatal("Odds payload is nil")
	}
	if ev.Odds.Odds != 2.10 {
		t.Errorf("Odds = %f, want 2.10", ev.Odds.Odds)
	}
	want := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if !ev.Odds.Timestamp.Equal(want) {
		t.Errorf("Timestamp = %v, want %v", ev.Odds.Timestamp, want)
	}
}

func TestBetResultTerminal(t *testing.T) {
	terminal := []models.BetResult{models.BetWon, models.BetLost, models.BetPush, models.BetCancelled}
	for _, r := range terminal {
		if !r.IsTerminal() {
			t.Errorf("%s should be terminal", r)
		}
	}
	if models.BetPending.IsTerminal() {
		t.Error("pending should not be terminal")
	}
}

func TestBetRecordProfit(t *testing.T) {
	won := models.BetRecord{Stake: 100, OddsAtPlacement: 2.50, Result: models.BetWon}
	if got := won.Profit(); got != 150 {
		t.Errorf("won Profit = %f, want 150", got)
	}

	lost := models.BetRecord{Stake: 100, OddsAtPlacement: 2.50, Result: models.BetLost}
	if got := lost.Profit(); got != -100 {
		t.Errorf("lost Profit = %f, want -100", got)
	}

	push := models.BetRecord{Stake: 100, OddsAtPlacement: 2.50, Result: models.BetPush}
	if got := push.Profit(); got != 0 {
		t.Errorf("push Profit = %f, want 0", got)
	}
}
