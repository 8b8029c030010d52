package misskey

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"
	"golang.org/x/net/websocket"
)

// NoteHandler receives every note delivered on the subscribed channel.
type NoteHandler func(ctx context.Context, note Note)

type Stream struct {
	host        string
	token       string
	channel     string
	maxInflight int
	retryStart  time.Duration
	retryMax    time.Duration
	log         zerolog.Logger
}

type StreamOption func(*Stream)

func WithMaxInflight(n int) StreamOption { return func(s *Stream) { s.maxInflight = n } }

func WithReconnectInterval(start, maxWait time.Duration) StreamOption {
	return func(s *Stream) {
		s.retryStart = start
		s.retryMax = maxWait
	}
}

func WithLogger(log zerolog.Logger) StreamOption { return func(s *Stream) { s.log = log } }

func NewStream(host, token, channel string, opts ...StreamOption) *Stream {
	s := &Stream{
		host:        strings.TrimRight(host, "/"),
		token:       token,
		channel:     channel,
		maxInflight: 8,
		retryStart:  time.Second,
		retryMax:    time.Minute,
		log:         zerolog.Nop(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.maxInflight < 1 {
		s.maxInflight = 1
	}
	return s
}

// Listen keeps a streaming connection open until ctx is cancelled,
// redialing with exponential backoff whenever it drops. Handlers run on a
// bounded pool and get a context that survives ctx cancellation, so
// in-flight replies are finished before Listen returns.
func (s *Stream) Listen(ctx context.Context, handle NoteHandler) error {
	p := pool.New().WithMaxGoroutines(s.maxInflight)
	defer p.Wait()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.retryStart
	bo.MaxInterval = s.retryMax
	bo.MaxElapsedTime = 0
	bo.Reset()
	retry := backoff.WithContext(bo, ctx)

	handlerCtx := context.WithoutCancel(ctx)
	for {
		connected, err := s.session(ctx, func(n Note) {
			p.Go(func() { handle(handlerCtx, n) })
		})
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if connected {
			retry.Reset()
		}
		wait := retry.NextBackOff()
		if wait == backoff.Stop {
			return ctx.Err()
		}
		s.log.Warn().Err(err).Dur("retry_in", wait).Msg("stream disconnected")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// session runs one connection. connected reports whether the subscription
// frame went out, which resets the backoff.
func (s *Stream) session(ctx context.Context, dispatch func(Note)) (connected bool, err error) {
	wsURL, err := StreamURL(s.host, s.token)
	if err != nil {
		return false, err
	}
	cfg, err := websocket.NewConfig(wsURL, s.host)
	if err != nil {
		return false, fmt.Errorf("stream config: %w", err)
	}
	conn, err := cfg.DialContext(ctx)
	if err != nil {
		return false, fmt.Errorf("dial stream: %w", err)
	}
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()
	defer func() {
		_ = conn.Close()
	}()

	connID := uuid.NewString()
	if err := websocket.JSON.Send(conn, connectFrame{
		Type: "connect",
		Body: connectBody{Channel: s.channel, ID: connID},
	}); err != nil {
		return false, fmt.Errorf("subscribe %s: %w", s.channel, err)
	}
	s.log.Info().Str("channel", s.channel).Str("conn_id", connID).Msg("stream connected")

	for {
		var raw json.RawMessage
		if err := websocket.JSON.Receive(conn, &raw); err != nil {
			var syntaxErr *json.SyntaxError
			if errors.As(err, &syntaxErr) {
				s.log.Warn().Err(err).Msg("skipping undecodable frame")
				continue
			}
			return true, fmt.Errorf("read frame: %w", err)
		}
		note, ok, err := decodeNote(raw, connID)
		if err != nil {
			s.log.Warn().Err(err).Msg("skipping malformed frame")
			continue
		}
		if ok {
			dispatch(note)
		}
	}
}

// decodeNote extracts the note from a channel frame addressed to connID.
// ok is false for frames that carry no note.
func decodeNote(raw []byte, connID string) (Note, bool, error) {
	var frame streamFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return Note{}, false, fmt.Errorf("frame: %w", err)
	}
	if frame.Type != "channel" {
		return Note{}, false, nil
	}
	var ev channelEvent
	if err := json.Unmarshal(frame.Body, &ev); err != nil {
		return Note{}, false, fmt.Errorf("channel event: %w", err)
	}
	if ev.Type != "note" || (connID != "" && ev.ID != connID) {
		return Note{}, false, nil
	}
	var note Note
	if err := json.Unmarshal(ev.Body, &note); err != nil {
		return Note{}, false, fmt.Errorf("note: %w", err)
	}
	return note, true, nil
}

// StreamURL turns the API host into the streaming endpoint.
func StreamURL(host, token string) (string, error) {
	u, err := url.Parse(strings.TrimRight(host, "/"))
	if err != nil {
		return "", fmt.Errorf("parse host: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path += "/streaming"
	u.RawQuery = url.Values{"i": {token}}.Encode()
	return u.String(), nil
}
