package bcdice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const DefaultBaseURL = "https://bcdice.kazagakure.net/v2"

var ErrUnexpectedStatus = errors.New("unexpected status")

type GameSystem struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	SortKey string `json:"sort_key"`
}

type RollResult struct {
	OK     bool   `json:"ok"`
	Text   string `json:"text"`
	Reason string `json:"reason"`
}

// Client talks to a BCDice API v2 server.
type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func NewWithHTTPClient(baseURL string, hc *http.Client) *Client {
	c := New(baseURL, 0)
	if hc != nil {
		c.http = hc
	}
	return c
}

// ListSystems returns the engine catalog in server order.
func (c *Client) ListSystems(ctx context.Context) ([]GameSystem, error) {
	body, status, err := c.get(ctx, c.baseURL+"/game_system")
	if err != nil {
		return nil, err
	}
	if status < 200 || status > 299 {
		return nil, fmt.Errorf("list systems: %w: %d", ErrUnexpectedStatus, status)
	}
	return decodeSystems(body)
}

// Roll evaluates command under system. A decoded {ok:false} answer is a
// result, not an error; errors mean the engine could not be consulted.
func (c *Client) Roll(ctx context.Context, command, system string) (RollResult, error) {
	u := fmt.Sprintf("%s/game_system/%s/roll?%s",
		c.baseURL, url.PathEscape(system), url.Values{"command": {command}}.Encode())
	body, status, err := c.get(ctx, u)
	if err != nil {
		return RollResult{}, err
	}
	// BCDice reports unknown commands and systems as 400 with ok=false.
	if status < 200 || status > 499 || (status > 299 && status < 400) {
		return RollResult{}, fmt.Errorf("roll: %w: %d", ErrUnexpectedStatus, status)
	}
	var res struct {
		OK     *bool  `json:"ok"`
		Text   string `json:"text"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(body, &res); err != nil || res.OK == nil {
		return RollResult{}, fmt.Errorf("roll: %w: %d with undecodable body", ErrUnexpectedStatus, status)
	}
	return RollResult{OK: *res.OK, Text: res.Text, Reason: res.Reason}, nil
}

func (c *Client) get(ctx context.Context, u string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request %s: %w", req.URL.Path, err)
	}
	defer func(body io.ReadCloser) {
		_ = body.Close()
	}(resp.Body)
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read body: %w", err)
	}
	return body, resp.StatusCode, nil
}

// decodeSystems accepts both a bare array and the {"game_system": [...]}
// envelope served by BCDice-API.
func decodeSystems(body []byte) ([]GameSystem, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var systems []GameSystem
		if err := json.Unmarshal(trimmed, &systems); err != nil {
			return nil, fmt.Errorf("decode systems: %w", err)
		}
		return systems, nil
	}
	var envelope struct {
		GameSystem []GameSystem `json:"game_system"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, fmt.Errorf("decode systems: %w", err)
	}
	return envelope.GameSystem, nil
}
