package misskey

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var ErrAPI = errors.New("misskey api error")

// APIError is returned for non-2xx answers from the Misskey API.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("misskey api: %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("misskey api: %d", e.Status)
}

func (e *APIError) Unwrap() error { return ErrAPI }

type Client struct {
	host       string
	token      string
	visibility string
	http       *http.Client
}

type Option func(*Client)

func WithVisibility(v string) Option { return func(c *Client) { c.visibility = v } }

func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }

func NewClient(host, token string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		host:  strings.TrimRight(host, "/"),
		token: token,
		http:  &http.Client{Timeout: timeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type createNoteRequest struct {
	I          string `json:"i"`
	Text       string `json:"text"`
	ReplyID    string `json:"replyId,omitempty"`
	Visibility string `json:"visibility,omitempty"`
}

// CreateNote posts text, threaded under replyID when it is not empty.
func (c *Client) CreateNote(ctx context.Context, text, replyID string) error {
	payload, err := json.Marshal(createNoteRequest{
		I:          c.token,
		Text:       text,
		ReplyID:    replyID,
		Visibility: c.visibility,
	})
	if err != nil {
		return fmt.Errorf("encode note: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/notes/create", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("create note: %w", err)
	}
	defer func(body io.ReadCloser) {
		_ = body.Close()
	}(resp.Body)
	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	apiErr := &APIError{Status: resp.StatusCode}
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10)); err == nil && json.Unmarshal(data, &body) == nil {
		apiErr.Code = body.Error.Code
		apiErr.Message = body.Error.Message
	}
	return apiErr
}
