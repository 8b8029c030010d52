package analytics

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"dicebot/internal/storage"
)

// topSystemsInReport caps the per-system lines of the report.
const topSystemsInReport = 5

// DailyStats holds roll statistics for one day
type DailyStats struct {
	Date          string               `json:"date"`
	TotalRolls    int                  `json:"total_rolls"`
	FailedRolls   int                  `json:"failed_rolls"`
	UniqueUsers   int                  `json:"unique_users"`
	RollsBySystem map[string]int       `json:"rolls_by_system"`
	UserStats     map[string]UserStats `json:"user_stats"`
}

// UserStats holds one user's rolls for the day
type UserStats struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Rolls    int    `json:"rolls"`
	Failed   int    `json:"failed"`
}

// SystemCount is one line of the per-system ranking
type SystemCount struct {
	System string
	Rolls  int
}

// AnalyzeDailyLogs aggregates the events falling on targetDate's calendar day
func AnalyzeDailyLogs(events []storage.Event, targetDate time.Time) *DailyStats {
	startOfDay := time.Date(targetDate.Year(), targetDate.Month(), targetDate.Day(), 0, 0, 0, 0, targetDate.Location())
	endOfDay := startOfDay.AddDate(0, 0, 1)

	stats := &DailyStats{
		Date:          startOfDay.Format("2006-01-02"),
		RollsBySystem: make(map[string]int),
		UserStats:     make(map[string]UserStats),
	}

	for _, event := range events {
		if event.Timestamp.Before(startOfDay) || !event.Timestamp.Before(endOfDay) {
			continue
		}
		stats.TotalRolls++
		if !event.OK {
			stats.FailedRolls++
		}
		stats.RollsBySystem[event.System]++

		userStat, exists := stats.UserStats[event.UserID]
		if !exists {
			userStat = UserStats{UserID: event.UserID}
		}
		if event.Username != "" {
			userStat.Username = event.Username
		}
		userStat.Rolls++
		if !event.OK {
			userStat.Failed++
		}
		stats.UserStats[event.UserID] = userStat
	}

	stats.UniqueUsers = len(stats.UserStats)
	return stats
}

// TopSystems ranks systems by roll count, ties broken by name
func (ds *DailyStats) TopSystems(n int) []SystemCount {
	out := make([]SystemCount, 0, len(ds.RollsBySystem))
	for sys, count := range ds.RollsBySystem {
		out = append(out, SystemCount{System: sys, Rolls: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rolls != out[j].Rolls {
			return out[i].Rolls > out[j].Rolls
		}
		return out[i].System < out[j].System
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// FormatDailyReport renders the stats as note text
func FormatDailyReport(ds *DailyStats) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📊 Dice report for %s\n", ds.Date))
	if ds.TotalRolls == 0 {
		sb.WriteString("No rolls today.")
		return sb.String()
	}
	sb.WriteString(fmt.Sprintf("🎲 rolls: %d (failed: %d)\n", ds.TotalRolls, ds.FailedRolls))
	sb.WriteString(fmt.Sprintf("👥 players: %d\n", ds.UniqueUsers))
	sb.WriteString("Top systems:")
	for _, sc := range ds.TopSystems(topSystemsInReport) {
		sb.WriteString(fmt.Sprintf("\n- %s: %d", sc.System, sc.Rolls))
	}
	return sb.String()
}

// ToJSON serializes the stats for detailed inspection
func (ds *DailyStats) ToJSON() (string, error) {
	data, err := json.MarshalIndent(ds, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
