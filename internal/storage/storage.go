package storage

import "time"

// Event is one roll handled by the bot: the command a user sent and what
// the dice engine answered.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	NoteID    string    `json:"note_id"`
	Command   string    `json:"command"`
	System    string    `json:"system"`
	OK        bool      `json:"ok"`
	Result    string    `json:"result"`
}

// Recorder persists roll events. LoadRollsSince returns events at or after
// since, oldest first. Implementations must be safe for concurrent use.
type Recorder interface {
	AppendRoll(event Event) error
	LoadRollsSince(since time.Time) ([]Event, error)
}
