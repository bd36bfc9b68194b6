package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tazhate/calbridge/internal/domain"
)

// Callback data prefixes.
const (
	cbChooser = "cal"
	cbEditor  = "ev"
	cbConsent = "perm"
)

// Calendar chooser keyboard, one calendar per row
func chooserKeyboard(p *chooserPrompt) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for i, c := range p.candidates {
		label := truncate(c.Title, 40)
		if p.selected[i] {
			label = "☑️ " + label
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, fmt.Sprintf("%s:t:%d", cbChooser, i)),
		))
	}
	action := tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("✖️ Cancel", cbChooser+":x"))
	if p.style == domain.SelectMultiple {
		action = append(tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("✅ Done", cbChooser+":ok")), action...)
	}
	rows = append(rows, action)
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// Event editor keyboard: calendar choice, then save or cancel
func editorKeyboard(p *editorPrompt) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for i, c := range p.calendars {
		label := truncate(c.Title, 20)
		if c.ID == p.draft.CalendarID {
			label = "• " + label
		}
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, fmt.Sprintf("%s:c:%d", cbEditor, i)))
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("💾 Save", cbEditor+":ok"),
		tgbotapi.NewInlineKeyboardButtonData("✖️ Cancel", cbEditor+":x"),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func consentKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Allow", cbConsent+":y"),
			tgbotapi.NewInlineKeyboardButtonData("🚫 Deny", cbConsent+":n"),
		),
	)
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
