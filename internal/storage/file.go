package storage

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const dayLayout = "2006-01-02"

// DailyFileLog writes rolls as JSON lines into one file per UTC day. For a
// configured path of data/rolls.jsonl the file for 2024-01-15 is
// data/rolls-2024-01-15.jsonl.
type DailyFileLog struct {
	dir    string
	prefix string
	ext    string
	now    func() time.Time
	mu     sync.Mutex
}

func NewDailyFileLog(path string) (*DailyFileLog, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure roll log dir: %w", err)
	}
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	if ext == "" {
		ext = ".jsonl"
	}
	return &DailyFileLog{
		dir:    dir,
		prefix: strings.TrimSuffix(base, filepath.Ext(base)),
		ext:    ext,
		now:    time.Now,
	}, nil
}

// fileFor names the partition holding rolls from day t.
func (l *DailyFileLog) fileFor(t time.Time) string {
	return filepath.Join(l.dir, l.prefix+"-"+t.UTC().Format(dayLayout)+l.ext)
}

// AppendRoll stamps events without a timestamp with the current time.
func (l *DailyFileLog) AppendRoll(event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = l.now().UTC()
	}
	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode roll: %w", err)
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	f, err := os.OpenFile(l.fileFor(event.Timestamp), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open roll log: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return fmt.Errorf("append roll: %w", err)
	}
	return f.Close()
}

// LoadRollsSince reads only the day partitions from since up to today.
// Lines that fail to decode, such as one cut short by a crash, are skipped.
func (l *DailyFileLog) LoadRollsSince(since time.Time) ([]Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	since = since.UTC()
	today := truncateDay(l.now().UTC())
	var events []Event
	for day := truncateDay(since); !day.After(today); day = day.AddDate(0, 0, 1) {
		dayEvents, err := readRolls(l.fileFor(day))
		if err != nil {
			return nil, err
		}
		for _, ev := range dayEvents {
			if !ev.Timestamp.Before(since) {
				events = append(events, ev)
			}
		}
	}
	return events, nil
}

func readRolls(path string) ([]Event, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	s := bufio.NewScanner(f)
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var events []Event
	for s.Scan() {
		line := s.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev Event
		if err := json.Unmarshal(line, &ev); err != nil {
			continue
		}
		events = append(events, ev)
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", path, err)
	}
	return events, nil
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
