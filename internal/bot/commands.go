package bot

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"dicebot/internal/bcdice"
	"dicebot/internal/misskey"
	"dicebot/internal/prefs"
	"dicebot/internal/storage"
)

// maxListedSystems caps the system list reply.
const maxListedSystems = 20

const (
	msgSystemSet     = "%s ✅ system set to '%s'"
	msgSystemCurrent = "%s 🎯 current system is '%s'"
	msgSystemReset   = "%s ♻️ system reset to default (%s)"
	msgSaveFailed    = "%s ❌ couldn't save your system setting."
	msgListFailed    = "%s ⚠️ couldn't fetch the system list."
	msgListHeader    = "%s 🎲 available systems:"
	msgRollResult    = "%s 🎲 result: %s"

	rollNoResult    = "[no result]"
	rollErrorFormat = "❌ error: %s"
	rollServerError = "❌ dice server error"
)

// keyword accepts the English command word and the Korean one used by the
// bot's first users.
const keyword = `(?:system|시스템)`

const sp = `[\s\p{Z}]*`

var (
	mentionPattern = regexp.MustCompile(`@[^\s\p{Z}]+`)

	setPattern   = regexp.MustCompile(`(?i)` + keyword + sp + `[:：]` + sp + `([^\s\p{Z}]+)`)
	checkPattern = regexp.MustCompile(`(?i)` + keyword + sp + `(?:check|확인)`)
	resetPattern = regexp.MustCompile(`(?i)` + keyword + sp + `(?:reset|초기화)`)
	listPattern  = regexp.MustCompile(`(?i)` + keyword + sp + `(?:list|목록)`)
)

type command struct {
	note  misskey.Note
	text  string
	match []string
}

type rule struct {
	name    string
	pattern *regexp.Regexp
	handle  func(b *Bot, ctx context.Context, cmd command) string
}

// rules are tried in order; a dice command may well contain the word
// "system", so the roll fallback must stay last.
var rules = []rule{
	{name: "set", pattern: setPattern, handle: (*Bot).setSystem},
	{name: "check", pattern: checkPattern, handle: (*Bot).checkSystem},
	{name: "reset", pattern: resetPattern, handle: (*Bot).resetSystem},
	{name: "list", pattern: listPattern, handle: (*Bot).listSystems},
}

var rollRule = rule{name: "roll", handle: (*Bot).roll}

func classify(text string) (rule, []string) {
	for _, r := range rules {
		if m := r.pattern.FindStringSubmatch(text); m != nil {
			return r, m
		}
	}
	return rollRule, nil
}

// normalize strips @handles and surrounding whitespace.
func normalize(text string) string {
	return strings.TrimSpace(mentionPattern.ReplaceAllString(text, ""))
}

func mention(u misskey.User) string {
	if u.Host != "" {
		return "@" + u.Username + "@" + u.Host
	}
	return "@" + u.Username
}

func (b *Bot) setSystem(ctx context.Context, cmd command) string {
	system := cmd.match[1]
	if err := b.prefs.Set(ctx, cmd.note.User.ID, system); err != nil {
		b.log.Error().Err(err).Str("user_id", cmd.note.User.ID).Str("system", system).Msg("failed to store system")
		return fmt.Sprintf(msgSaveFailed, mention(cmd.note.User))
	}
	return fmt.Sprintf(msgSystemSet, mention(cmd.note.User), system)
}

func (b *Bot) checkSystem(_ context.Context, cmd command) string {
	return fmt.Sprintf(msgSystemCurrent, mention(cmd.note.User), b.prefs.SystemFor(cmd.note.User.ID))
}

func (b *Bot) resetSystem(ctx context.Context, cmd command) string {
	if err := b.prefs.Reset(ctx, cmd.note.User.ID); err != nil {
		b.log.Error().Err(err).Str("user_id", cmd.note.User.ID).Msg("failed to reset system")
		return fmt.Sprintf(msgSaveFailed, mention(cmd.note.User))
	}
	return fmt.Sprintf(msgSystemReset, mention(cmd.note.User), prefs.DefaultSystem)
}

func (b *Bot) listSystems(ctx context.Context, cmd command) string {
	systems, err := b.dice.ListSystems(ctx)
	if err != nil {
		b.log.Error().Err(err).Msg("failed to fetch system list")
		systems = nil
	}
	if len(systems) == 0 {
		return fmt.Sprintf(msgListFailed, mention(cmd.note.User))
	}
	if len(systems) > maxListedSystems {
		systems = systems[:maxListedSystems]
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(msgListHeader, mention(cmd.note.User)))
	for _, s := range systems {
		sb.WriteString("\n- ")
		sb.WriteString(s.ID)
	}
	return sb.String()
}

func (b *Bot) roll(ctx context.Context, cmd command) string {
	system := b.prefs.SystemFor(cmd.note.User.ID)
	res, err := b.dice.Roll(ctx, cmd.text, system)
	if err != nil {
		b.log.Error().Err(err).Str("system", system).Str("command", cmd.text).Msg("dice engine request failed")
	}
	text := rollText(res, err)
	b.record(cmd, system, res, err, text)
	return fmt.Sprintf(msgRollResult, mention(cmd.note.User), text)
}

// rollText resolves an engine answer or failure to the text shown to users.
func rollText(res bcdice.RollResult, err error) string {
	switch {
	case err != nil:
		return rollServerError
	case !res.OK:
		return fmt.Sprintf(rollErrorFormat, res.Reason)
	case res.Text == "":
		return rollNoResult
	default:
		return res.Text
	}
}

func (b *Bot) record(cmd command, system string, res bcdice.RollResult, err error, text string) {
	if b.rec == nil {
		return
	}
	ev := storage.Event{
		Timestamp: b.now().UTC(),
		UserID:    cmd.note.User.ID,
		Username:  cmd.note.User.Username,
		NoteID:    cmd.note.ID,
		Command:   cmd.text,
		System:    system,
		OK:        err == nil && res.OK,
		Result:    text,
	}
	if recErr := b.rec.AppendRoll(ev); recErr != nil {
		b.log.Warn().Err(recErr).Msg("failed to append roll log")
	}
}

var errNoUser = errors.New("note has no author")

func defaultNow() time.Time { return time.Now() }
