package bot

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/panics"

	"dicebot/internal/bcdice"
	"dicebot/internal/misskey"
	"dicebot/internal/storage"
)

type Sender interface {
	CreateNote(ctx context.Context, text, replyID string) error
}

type DiceEngine interface {
	ListSystems(ctx context.Context) ([]bcdice.GameSystem, error)
	Roll(ctx context.Context, command, system string) (bcdice.RollResult, error)
}

type Preferences interface {
	SystemFor(userID string) string
	Set(ctx context.Context, userID, system string) error
	Reset(ctx context.Context, userID string) error
}

type Bot struct {
	botID string
	s     Sender
	dice  DiceEngine
	prefs Preferences
	rec   storage.Recorder
	log   zerolog.Logger
	now   func() time.Time
}

type Option func(*Bot)

// WithRecorder enables the roll log.
func WithRecorder(rec storage.Recorder) Option { return func(b *Bot) { b.rec = rec } }

func WithLogger(log zerolog.Logger) Option { return func(b *Bot) { b.log = log } }

func WithClock(now func() time.Time) Option { return func(b *Bot) { b.now = now } }

func New(botID string, s Sender, dice DiceEngine, prefs Preferences, opts ...Option) *Bot {
	b := &Bot{
		botID: botID,
		s:     s,
		dice:  dice,
		prefs: prefs,
		log:   zerolog.Nop(),
		now:   defaultNow,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// HandleNote processes one streamed note. Nothing escapes it: failures and
// panics are logged and the note is dropped.
func (b *Bot) HandleNote(ctx context.Context, note misskey.Note) {
	log := b.log.With().Str("note_id", note.ID).Str("user_id", note.User.ID).Logger()

	var pc panics.Catcher
	pc.Try(func() {
		text, replyTo, ok := b.Reply(ctx, note)
		if !ok {
			return
		}
		if err := b.s.CreateNote(ctx, text, replyTo); err != nil {
			log.Error().Err(err).Msg("failed to send reply")
			return
		}
		log.Debug().Msg("reply sent")
	})
	if r := pc.Recovered(); r != nil {
		log.Error().Err(r.AsError()).Msg("note handling panicked")
	}
}

// Reply decides the answer to note. ok is false when the note is not
// addressed to the bot.
func (b *Bot) Reply(ctx context.Context, note misskey.Note) (text, replyTo string, ok bool) {
	if !note.Mentions.Contains(b.botID) {
		return "", "", false
	}
	if note.User.ID == "" {
		b.log.Warn().Err(errNoUser).Str("note_id", note.ID).Msg("dropping note")
		return "", "", false
	}
	pure := normalize(note.Text)
	r, match := classify(pure)
	b.log.Info().
		Str("note_id", note.ID).
		Str("user", note.User.Username).
		Str("intent", r.name).
		Str("text", pure).
		Msg("command received")
	text = r.handle(b, ctx, command{note: note, text: pure, match: match})
	return text, note.ID, true
}
