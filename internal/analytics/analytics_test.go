package analytics

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"dicebot/internal/storage"
)

func TestAnalyzeDailyLogs(t *testing.T) {
	testDate := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	events := []storage.Event{
		{Timestamp: testDate.Add(2 * time.Hour), UserID: "u1", Username: "alice", Command: "CCB<=70", System: "Cthulhu", OK: true},
		{Timestamp: testDate.Add(4 * time.Hour), UserID: "u1", Username: "alice", Command: "CCB<=50", System: "Cthulhu", OK: true},
		{Timestamp: testDate.Add(6 * time.Hour), UserID: "u2", Username: "bob", Command: "hello", System: "DiceBot", OK: false},
		// next day, ignored
		{Timestamp: testDate.AddDate(0, 0, 1), UserID: "u3", Command: "2d6", System: "DiceBot", OK: true},
		// previous day, ignored
		{Timestamp: testDate.Add(-time.Second), UserID: "u3", Command: "2d6", System: "DiceBot", OK: true},
	}

	stats := AnalyzeDailyLogs(events, testDate.Add(13*time.Hour))

	if stats.Date != "2024-01-15" {
		t.Errorf("Expected date '2024-01-15', got '%s'", stats.Date)
	}
	if stats.TotalRolls != 3 {
		t.Errorf("Expected 3 rolls, got %d", stats.TotalRolls)
	}
	if stats.FailedRolls != 1 {
		t.Errorf("Expected 1 failed roll, got %d", stats.FailedRolls)
	}
	if stats.UniqueUsers != 2 {
		t.Errorf("Expected 2 unique users, got %d", stats.UniqueUsers)
	}
	if stats.RollsBySystem["Cthulhu"] != 2 || stats.RollsBySystem["DiceBot"] != 1 {
		t.Errorf("Unexpected per-system counts: %v", stats.RollsBySystem)
	}
	alice := stats.UserStats["u1"]
	if alice.Rolls != 2 || alice.Username != "alice" || alice.Failed != 0 {
		t.Errorf("Unexpected stats for u1: %+v", alice)
	}
	bob := stats.UserStats["u2"]
	if bob.Rolls != 1 || bob.Failed != 1 {
		t.Errorf("Unexpected stats for u2: %+v", bob)
	}
}

func TestTopSystems(t *testing.T) {
	stats := &DailyStats{RollsBySystem: map[string]int{"B": 3, "A": 3, "C": 7, "D": 1}}

	top := stats.TopSystems(3)
	want := []SystemCount{{"C", 7}, {"A", 3}, {"B", 3}}
	if len(top) != len(want) {
		t.Fatalf("Expected %d entries, got %d", len(want), len(top))
	}
	for i := range want {
		if top[i] != want[i] {
			t.Errorf("entry %d: expected %+v, got %+v", i, want[i], top[i])
		}
	}
	if len(stats.TopSystems(-1)) != 4 {
		t.Errorf("negative n must return every system")
	}
}

func TestFormatDailyReport(t *testing.T) {
	empty := AnalyzeDailyLogs(nil, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))
	if got := FormatDailyReport(empty); got != "📊 Dice report for 2024-01-15\nNo rolls today." {
		t.Errorf("unexpected empty report: %q", got)
	}

	stats := &DailyStats{Date: "2024-01-15", TotalRolls: 9, FailedRolls: 2, UniqueUsers: 4, RollsBySystem: map[string]int{}}
	for i := 0; i < 7; i++ {
		stats.RollsBySystem[fmt.Sprintf("S%d", i)] = i + 1
	}
	want := "📊 Dice report for 2024-01-15\n🎲 rolls: 9 (failed: 2)\n👥 players: 4\nTop systems:\n- S6: 7\n- S5: 6\n- S4: 5\n- S3: 4\n- S2: 3"
	if got := FormatDailyReport(stats); got != want {
		t.Errorf("unexpected report:\n%s\nwant:\n%s", got, want)
	}
}

func TestDailyStatsToJSON(t *testing.T) {
	stats := AnalyzeDailyLogs([]storage.Event{
		{Timestamp: time.Date(2024, 1, 15, 1, 0, 0, 0, time.UTC), UserID: "u1", System: "DiceBot", OK: true},
	}, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))

	jsonStr, err := stats.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON failed: %v", err)
	}
	var back DailyStats
	if err := json.Unmarshal([]byte(jsonStr), &back); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if back.TotalRolls != 1 || back.RollsBySystem["DiceBot"] != 1 {
		t.Errorf("unexpected decoded stats: %+v", back)
	}
}
