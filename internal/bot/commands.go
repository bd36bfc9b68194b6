package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tazhate/calbridge/internal/dispatch"
	"github.com/tazhate/calbridge/internal/domain"
	"github.com/tazhate/calbridge/internal/pluginerr"
)

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start", "help":
		b.cmdHelp()
	case "today":
		b.cmdEvents(ctx, 0)
	case "week":
		b.cmdEvents(ctx, 7)
	case "calendars":
		b.cmdCalendars(ctx)
	case "permissions":
		b.cmdPermissions(ctx)
	case "cancel":
		n := b.CancelAll()
		b.SendMessage(fmt.Sprintf("Cancelled %d prompt(s)", n))
	default:
		b.SendMessage("Unknown command. /help for the list")
	}
}

func (b *Bot) cmdHelp() {
	text := `<b>Commands:</b>

/today — today's events
/week — events for the next 7 days
/calendars — calendars
/permissions — permission states
/cancel — cancel pending prompts

Prompts from API clients appear here as buttons.`
	b.SendMessage(text)
}

// call runs a dispatcher command and reports rejections in the chat.
func (b *Bot) call(ctx context.Context, name string, options map[string]any) (any, bool) {
	if b.caller == nil {
		b.SendMessage("❌ Not connected to a calendar store")
		return nil, false
	}
	out, err := b.caller.Call(ctx, name, options)
	if err != nil {
		var pe *pluginerr.Error
		if errors.As(err, &pe) {
			b.SendMessage("❌ " + html.EscapeString(pe.Message))
		} else {
			b.SendMessage("❌ " + html.EscapeString(err.Error()))
		}
		return nil, false
	}
	if env, ok := out.(dispatch.Envelope); ok {
		return env.Result, true
	}
	return out, true
}

// cmdEvents lists events from the start of today; days 0 means today only.
func (b *Bot) cmdEvents(ctx context.Context, days int) {
	now := time.Now().In(b.opts.Location)
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, b.opts.Location)
	to := from.AddDate(0, 0, max(days, 1)).Add(-time.Millisecond)

	out, ok := b.call(ctx, dispatch.CmdListEventsInRange, map[string]any{
		"startDate": float64(from.UnixMilli()),
		"endDate":   float64(to.UnixMilli()),
	})
	if !ok {
		return
	}
	events, _ := out.([]domain.EventRecord)
	if len(events) == 0 {
		b.SendMessage("📅 No events")
		return
	}
	b.SendMessage(formatEvents(events, b.opts.Location))
}

func formatEvents(events []domain.EventRecord, loc *time.Location) string {
	sort.Slice(events, func(i, j int) bool { return events[i].StartDate < events[j].StartDate })
	var sb strings.Builder
	day := ""
	for _, e := range events {
		start := time.UnixMilli(e.StartDate).In(loc)
		if d := start.Format("Mon 2 Jan"); d != day {
			if day != "" {
				sb.WriteString("\n")
			}
			day = d
			fmt.Fprintf(&sb, "<b>%s</b>\n", d)
		}
		when := "all day"
		if !e.IsAllDay {
			when = start.Format("15:04")
			if e.EndDate != 0 {
				when += "–" + time.UnixMilli(e.EndDate).In(loc).Format("15:04")
			}
		}
		fmt.Fprintf(&sb, "• %s %s", when, html.EscapeString(e.Title))
		if e.Location != "" {
			fmt.Fprintf(&sb, " (%s)", html.EscapeString(e.Location))
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (b *Bot) cmdCalendars(ctx context.Context) {
	out, ok := b.call(ctx, dispatch.CmdListCalendars, nil)
	if !ok {
		return
	}
	cals, _ := out.([]domain.Calendar)
	if len(cals) == 0 {
		b.SendMessage("📚 No calendars")
		return
	}
	var sb strings.Builder
	sb.WriteString("<b>Calendars:</b>\n")
	for _, c := range cals {
		mark := "🔒"
		if c.Writable {
			mark = "✏️"
		}
		fmt.Fprintf(&sb, "%s %s\n", mark, html.EscapeString(c.Title))
	}
	b.SendMessage(strings.TrimRight(sb.String(), "\n"))
}

func (b *Bot) cmdPermissions(ctx context.Context) {
	out, ok := b.call(ctx, dispatch.CmdCheckAllPermissions, nil)
	if !ok {
		return
	}
	states, _ := out.(map[domain.PermissionAlias]domain.PermissionState)
	aliases := make([]string, 0, len(states))
	for a := range states {
		aliases = append(aliases, string(a))
	}
	sort.Strings(aliases)
	var sb strings.Builder
	sb.WriteString("<b>Permissions:</b>\n")
	for _, a := range aliases {
		fmt.Fprintf(&sb, "%s: %s\n", a, states[domain.PermissionAlias(a)])
	}
	b.SendMessage(strings.TrimRight(sb.String(), "\n"))
}
