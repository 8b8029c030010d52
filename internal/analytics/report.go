package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"dicebot/internal/storage"
)

// Poster publishes a standalone note.
type Poster interface {
	CreateNote(ctx context.Context, text, replyID string) error
}

// Reporter builds the daily roll report from the roll log.
type Reporter struct {
	rec    storage.Recorder
	poster Poster
	now    func() time.Time
	log    zerolog.Logger
}

// NewReporter returns a reporter that logs the report and, when poster is
// not nil, also publishes it as a note.
func NewReporter(rec storage.Recorder, poster Poster, log zerolog.Logger) *Reporter {
	return &Reporter{rec: rec, poster: poster, now: time.Now, log: log}
}

// Run reads only today's (UTC) rolls.
func (r *Reporter) Run(ctx context.Context) error {
	now := r.now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	events, err := r.rec.LoadRollsSince(dayStart)
	if err != nil {
		return fmt.Errorf("load roll log: %w", err)
	}
	stats := AnalyzeDailyLogs(events, now)
	if e := r.log.Debug(); e.Enabled() {
		detail, err := stats.ToJSON()
		if err != nil {
			e.Err(err).Msg("daily dice stats")
		} else {
			e.RawJSON("stats", []byte(detail)).Msg("daily dice stats")
		}
	}
	r.log.Info().
		Str("date", stats.Date).
		Int("rolls", stats.TotalRolls).
		Int("failed", stats.FailedRolls).
		Int("users", stats.UniqueUsers).
		Msg("daily dice report")
	if r.poster == nil {
		return nil
	}
	if err := r.poster.CreateNote(ctx, FormatDailyReport(stats), ""); err != nil {
		return fmt.Errorf("post report: %w", err)
	}
	return nil
}
