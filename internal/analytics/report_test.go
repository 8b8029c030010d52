package analytics

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dicebot/internal/storage"
)

type memRecorder struct {
	events []storage.Event
	since  time.Time
	err    error
}

func (m *memRecorder) AppendRoll(ev storage.Event) error {
	m.events = append(m.events, ev)
	return nil
}

func (m *memRecorder) LoadRollsSince(since time.Time) ([]storage.Event, error) {
	m.since = since
	var out []storage.Event
	for _, ev := range m.events {
		if !ev.Timestamp.Before(since) {
			out = append(out, ev)
		}
	}
	return out, m.err
}

type fakePoster struct {
	texts []string
	err   error
}

func (f *fakePoster) CreateNote(_ context.Context, text, replyID string) error {
	if replyID != "" {
		return errors.New("report must not be a reply")
	}
	f.texts = append(f.texts, text)
	return f.err
}

func TestReporter_PostsTodaysReport(t *testing.T) {
	now := time.Date(2024, 1, 15, 21, 0, 0, 0, time.UTC)
	rec := &memRecorder{events: []storage.Event{
		{Timestamp: now.Add(-time.Hour), UserID: "u1", System: "DiceBot", OK: true},
		{Timestamp: now.Add(-48 * time.Hour), UserID: "u2", System: "DiceBot", OK: true},
	}}
	poster := &fakePoster{}
	r := NewReporter(rec, poster, zerolog.Nop())
	r.now = func() time.Time { return now }

	require.NoError(t, r.Run(context.Background()))
	require.Len(t, poster.texts, 1)
	assert.Contains(t, poster.texts[0], "2024-01-15")
	assert.Contains(t, poster.texts[0], "🎲 rolls: 1 (failed: 0)")
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), rec.since)
}

func TestReporter_DebugLogsStats(t *testing.T) {
	now := time.Date(2024, 1, 15, 21, 0, 0, 0, time.UTC)
	rec := &memRecorder{events: []storage.Event{
		{Timestamp: now.Add(-time.Hour), UserID: "u1", System: "DX3", OK: true},
	}}
	var buf bytes.Buffer
	r := NewReporter(rec, nil, zerolog.New(&buf).Level(zerolog.DebugLevel))
	r.now = func() time.Time { return now }

	require.NoError(t, r.Run(context.Background()))
	assert.Contains(t, buf.String(), `"message":"daily dice stats"`)
	assert.Contains(t, buf.String(), `"total_rolls": 1`)
}

func TestReporter_LogOnly(t *testing.T) {
	r := NewReporter(&memRecorder{}, nil, zerolog.Nop())
	assert.NoError(t, r.Run(context.Background()))
}

func TestReporter_Errors(t *testing.T) {
	r := NewReporter(&memRecorder{err: errors.New("gone")}, nil, zerolog.Nop())
	assert.Error(t, r.Run(context.Background()))

	r = NewReporter(&memRecorder{}, &fakePoster{err: errors.New("401")}, zerolog.Nop())
	assert.Error(t, r.Run(context.Background()))
}
