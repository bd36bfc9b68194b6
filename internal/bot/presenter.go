package bot

import (
	"context"
	"fmt"
	"html"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tazhate/calbridge/internal/domain"
	"github.com/tazhate/calbridge/internal/prompt"
)

type chooserPrompt struct {
	req        *prompt.Request[[]domain.Calendar]
	candidates []domain.Calendar
	selected   map[int]bool
	style      domain.SelectionStyle
	messageID  int
}

type editorPrompt struct {
	req       *prompt.Request[domain.EventParams]
	draft     domain.EventParams
	calendars []domain.Calendar
	messageID int
}

type consentPrompt struct {
	req       *prompt.Request[bool]
	aliases   []domain.PermissionAlias
	messageID int
}

// ChooseCalendars shows the calendar picker. Single selection resolves on
// the first tap; multiple selection toggles until Done.
func (b *Bot) ChooseCalendars(_ context.Context, req *prompt.Request[[]domain.Calendar], candidates []domain.Calendar, style domain.SelectionStyle) error {
	p := &chooserPrompt{req: req, candidates: candidates, selected: map[int]bool{}, style: style}
	b.mu.Lock()
	b.chooser = p
	text, kb := chooserView(p)
	b.mu.Unlock()

	msg, err := b.SendMessageWithKeyboard(text, kb)
	if err != nil {
		b.clearChooser(p)
		return fmt.Errorf("send calendar chooser: %w", err)
	}
	b.mu.Lock()
	p.messageID = msg.MessageID
	b.mu.Unlock()
	go b.expire(req.Done(), func() { b.clearChooser(p) })
	return nil
}

// EditEvent shows the draft. Replying with text sets the title.
func (b *Bot) EditEvent(_ context.Context, req *prompt.Request[domain.EventParams], draft domain.EventParams, calendars []domain.Calendar) error {
	p := &editorPrompt{req: req, draft: draft, calendars: calendars}
	if p.draft.CalendarID == "" {
		for _, c := range calendars {
			if c.Default {
				p.draft.CalendarID = c.ID
			}
		}
	}
	b.mu.Lock()
	b.editor = p
	text, kb := b.editorView(p)
	b.mu.Unlock()

	msg, err := b.SendMessageWithKeyboard(text, kb)
	if err != nil {
		b.clearEditor(p)
		return fmt.Errorf("send event editor: %w", err)
	}
	b.mu.Lock()
	p.messageID = msg.MessageID
	b.mu.Unlock()
	go b.expire(req.Done(), func() { b.clearEditor(p) })
	return nil
}

// ConfirmAccess asks the owner to allow the aliases.
func (b *Bot) ConfirmAccess(_ context.Context, req *prompt.Request[bool], aliases []domain.PermissionAlias, rationale bool) error {
	p := &consentPrompt{req: req, aliases: aliases}
	b.mu.Lock()
	b.consent = p
	b.mu.Unlock()

	msg, err := b.SendMessageWithKeyboard(consentText(aliases, rationale), consentKeyboard())
	if err != nil {
		b.clearConsent(p)
		return fmt.Errorf("send consent prompt: %w", err)
	}
	b.mu.Lock()
	p.messageID = msg.MessageID
	b.mu.Unlock()
	go b.expire(req.Done(), func() { b.clearConsent(p) })
	return nil
}

// Open sends a link to the configured web app. Without a link nothing can be opened.
func (b *Bot) Open(_ context.Context, t prompt.Target) error {
	var url, label, text string
	switch t.App {
	case prompt.AppCalendar:
		url, label, text = b.opts.CalendarURL, "📅 Open calendar", "Calendar"
		if t.At != nil {
			text += " at " + t.At.In(b.opts.Location).Format("Mon 2 Jan 2006 15:04")
		}
	case prompt.AppReminders:
		url, label, text = b.opts.RemindersURL, "✅ Open reminders", "Reminders"
	}
	if url == "" {
		return prompt.ErrNoPresenter
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL(label, url)))
	if _, err := b.SendMessageWithKeyboard(html.EscapeString(text), kb); err != nil {
		return fmt.Errorf("send open link: %w", err)
	}
	return nil
}

func (b *Bot) expire(done <-chan struct{}, clear func()) {
	<-done
	clear()
}

func (b *Bot) clearChooser(p *chooserPrompt) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.chooser == p {
		b.chooser = nil
	}
}

func (b *Bot) clearEditor(p *editorPrompt) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.editor == p {
		b.editor = nil
	}
}

func (b *Bot) clearConsent(p *consentPrompt) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.consent == p {
		b.consent = nil
	}
}

// CancelAll cancels every prompt still waiting for the owner.
func (b *Bot) CancelAll() int {
	b.mu.Lock()
	chooser, editor, consent := b.chooser, b.editor, b.consent
	b.chooser, b.editor, b.consent = nil, nil, nil
	b.mu.Unlock()

	n := 0
	if chooser != nil && chooser.req.Cancel() {
		n++
	}
	if editor != nil && editor.req.Cancel() {
		n++
	}
	if consent != nil && consent.req.Cancel() {
		n++
	}
	return n
}

func chooserView(p *chooserPrompt) (string, tgbotapi.InlineKeyboardMarkup) {
	text := "<b>Choose a calendar</b>"
	if p.style == domain.SelectMultiple {
		text = "<b>Choose calendars</b>\nTap to toggle, then Done."
	}
	if len(p.candidates) == 0 {
		text += "\n\nNo calendars available."
	}
	return text, chooserKeyboard(p)
}

func (b *Bot) editorView(p *editorPrompt) (string, tgbotapi.InlineKeyboardMarkup) {
	d := p.draft
	var sb strings.Builder
	sb.WriteString("<b>New event</b>\n")
	title := d.Title
	if title == "" {
		title = "(reply with a title)"
	}
	fmt.Fprintf(&sb, "Title: %s\n", html.EscapeString(title))
	for _, c := range p.calendars {
		if c.ID == d.CalendarID {
			fmt.Fprintf(&sb, "Calendar: %s\n", html.EscapeString(c.Title))
		}
	}
	const layout = "Mon 2 Jan 15:04"
	if d.Start != nil {
		fmt.Fprintf(&sb, "Start: %s\n", d.Start.In(b.opts.Location).Format(layout))
	}
	if d.End != nil {
		fmt.Fprintf(&sb, "End: %s\n", d.End.In(b.opts.Location).Format(layout))
	}
	if d.AllDay {
		sb.WriteString("All day\n")
	}
	if d.Location != "" {
		fmt.Fprintf(&sb, "Location: %s\n", html.EscapeString(d.Location))
	}
	return strings.TrimRight(sb.String(), "\n"), editorKeyboard(p)
}

func consentText(aliases []domain.PermissionAlias, rationale bool) string {
	names := make([]string, len(aliases))
	for i, a := range aliases {
		names[i] = aliasLabel(a)
	}
	text := fmt.Sprintf("🔐 Allow access to <b>%s</b>?", strings.Join(names, ", "))
	if rationale {
		text = "Access was refused before. Without it the request cannot be completed.\n\n" + text
	}
	return text
}

func aliasLabel(a domain.PermissionAlias) string {
	switch a {
	case domain.ReadCalendar:
		return "read calendars"
	case domain.WriteCalendar:
		return "write calendars"
	case domain.ReadReminders:
		return "read reminders"
	case domain.WriteReminders:
		return "write reminders"
	}
	return string(a)
}
