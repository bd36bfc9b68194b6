package bot

import (
	"context"
	"html"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tazhate/calbridge/internal/domain"
)

func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.Message != nil {
		b.handleMessage(ctx, update.Message)
	} else if update.CallbackQuery != nil {
		b.handleCallback(update.CallbackQuery)
	}
}

func (b *Bot) allowed(u *tgbotapi.User) bool {
	return u != nil && u.ID == b.opts.OwnerID
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if !b.allowed(msg.From) {
		b.reply(msg.Chat.ID, "⛔ Access denied")
		return
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}
	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}

	// A plain reply titles the event being edited.
	b.mu.Lock()
	p := b.editor
	if p == nil {
		b.mu.Unlock()
		b.SendMessage("Nothing is waiting for input. /help for commands")
		return
	}
	p.draft.Title = text
	view, kb := b.editorView(p)
	msgID := p.messageID
	b.mu.Unlock()
	b.editMessage(msgID, view, &kb)
}

func (b *Bot) reply(chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.logger.Warn("send reply", "error", err)
	}
}

func (b *Bot) handleCallback(cb *tgbotapi.CallbackQuery) {
	if !b.allowed(cb.From) {
		b.answer(cb.ID, "⛔ Access denied")
		return
	}
	if cb.Message == nil {
		b.answer(cb.ID, "")
		return
	}

	parts := strings.Split(cb.Data, ":")
	if len(parts) < 2 {
		b.answer(cb.ID, "")
		return
	}
	switch parts[0] {
	case cbChooser:
		b.onChooser(cb, parts[1:])
	case cbEditor:
		b.onEditor(cb, parts[1:])
	case cbConsent:
		b.onConsent(cb, parts[1])
	default:
		b.answer(cb.ID, "")
	}
}

func (b *Bot) onChooser(cb *tgbotapi.CallbackQuery, args []string) {
	b.mu.Lock()
	p := b.chooser
	if p == nil || p.messageID != cb.Message.MessageID {
		b.mu.Unlock()
		b.answer(cb.ID, "This prompt has expired")
		return
	}

	switch args[0] {
	case "t":
		i, ok := index(args, len(p.candidates))
		if !ok {
			b.mu.Unlock()
			b.answer(cb.ID, "")
			return
		}
		if p.style == domain.SelectSingle {
			b.chooser = nil
			b.mu.Unlock()
			chosen := []domain.Calendar{p.candidates[i]}
			p.req.Resolve(chosen)
			b.editMessage(p.messageID, "Selected: "+html.EscapeString(chosen[0].Title), nil)
			b.answer(cb.ID, "")
			return
		}
		p.selected[i] = !p.selected[i]
		text, kb := chooserView(p)
		b.mu.Unlock()
		b.editMessage(p.messageID, text, &kb)
		b.answer(cb.ID, "")
	case "ok":
		b.chooser = nil
		chosen := make([]domain.Calendar, 0, len(p.selected))
		titles := make([]string, 0, len(p.selected))
		for i, c := range p.candidates {
			if p.selected[i] {
				chosen = append(chosen, c)
				titles = append(titles, html.EscapeString(c.Title))
			}
		}
		b.mu.Unlock()
		p.req.Resolve(chosen)
		b.editMessage(p.messageID, "Selected: "+strings.Join(titles, ", "), nil)
		b.answer(cb.ID, "")
	default:
		b.chooser = nil
		b.mu.Unlock()
		p.req.Cancel()
		b.editMessage(p.messageID, "Cancelled", nil)
		b.answer(cb.ID, "")
	}
}

func (b *Bot) onEditor(cb *tgbotapi.CallbackQuery, args []string) {
	b.mu.Lock()
	p := b.editor
	if p == nil || p.messageID != cb.Message.MessageID {
		b.mu.Unlock()
		b.answer(cb.ID, "This prompt has expired")
		return
	}

	switch args[0] {
	case "c":
		i, ok := index(args, len(p.calendars))
		if !ok {
			b.mu.Unlock()
			b.answer(cb.ID, "")
			return
		}
		p.draft.CalendarID = p.calendars[i].ID
		text, kb := b.editorView(p)
		b.mu.Unlock()
		b.editMessage(p.messageID, text, &kb)
		b.answer(cb.ID, "")
	case "ok":
		b.editor = nil
		draft := p.draft
		b.mu.Unlock()
		p.req.Resolve(draft)
		b.editMessage(p.messageID, "💾 Saved: "+html.EscapeString(draft.Title), nil)
		b.answer(cb.ID, "Saved")
	default:
		b.editor = nil
		b.mu.Unlock()
		p.req.Cancel()
		b.editMessage(p.messageID, "Cancelled", nil)
		b.answer(cb.ID, "")
	}
}

func (b *Bot) onConsent(cb *tgbotapi.CallbackQuery, answer string) {
	b.mu.Lock()
	p := b.consent
	if p == nil || p.messageID != cb.Message.MessageID {
		b.mu.Unlock()
		b.answer(cb.ID, "This prompt has expired")
		return
	}
	b.consent = nil
	b.mu.Unlock()

	granted := answer == "y"
	p.req.Resolve(granted)
	if granted {
		b.editMessage(p.messageID, "✅ Access allowed", nil)
	} else {
		b.editMessage(p.messageID, "🚫 Access denied", nil)
	}
	b.answer(cb.ID, "")
}

// index parses args[1] as an index below n.
func index(args []string, n int) (int, bool) {
	if len(args) < 2 {
		return 0, false
	}
	i, err := strconv.Atoi(args[1])
	if err != nil || i < 0 || i >= n {
		return 0, false
	}
	return i, true
}
