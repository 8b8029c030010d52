package misskey

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Host     string `json:"host,omitempty"`
}

type Note struct {
	ID       string   `json:"id"`
	Text     string   `json:"text"`
	User     User     `json:"user"`
	Mentions Mentions `json:"mentions"`
}

// Mentions holds mentioned user ids. Misskey sends them as strings; some
// forks and older payloads use objects carrying an id field.
type Mentions []string

func (m *Mentions) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*m = nil
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("mentions: %w", err)
	}
	out := make(Mentions, 0, len(raw))
	for _, item := range raw {
		var id string
		if err := json.Unmarshal(item, &id); err == nil {
			out = append(out, id)
			continue
		}
		var obj struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(item, &obj); err != nil {
			return fmt.Errorf("mentions: %w", err)
		}
		out = append(out, obj.ID)
	}
	*m = out
	return nil
}

func (m Mentions) Contains(userID string) bool {
	for _, id := range m {
		if id == userID {
			return true
		}
	}
	return false
}

// streamFrame is the envelope every streaming message arrives in.
type streamFrame struct {
	Type string          `json:"type"`
	Body json.RawMessage `json:"body"`
}

type channelEvent struct {
	ID   string          `json:"id"`
	Type string          `json:"type"`
	Body json.RawMessage `json:"body"`
}

type connectFrame struct {
	Type string      `json:"type"`
	Body connectBody `json:"body"`
}

type connectBody struct {
	Channel string `json:"channel"`
	ID      string `json:"id"`
}
