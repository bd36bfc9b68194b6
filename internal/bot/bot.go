// Package bot is the Telegram front end: it presents prompts to the owner,
// delivers notifications and answers a few chat commands.
package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Sender is the part of *tgbotapi.BotAPI the bot talks through.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Caller runs dispatcher commands for chat commands.
type Caller interface {
	Call(ctx context.Context, name string, options map[string]any) (any, error)
}

type Options struct {
	OwnerID      int64
	CalendarURL  string
	RemindersURL string
	Location     *time.Location
	Logger       *slog.Logger
}

type Bot struct {
	api    Sender
	tg     *tgbotapi.BotAPI
	opts   Options
	logger *slog.Logger
	caller Caller

	mu      sync.Mutex
	chooser *chooserPrompt
	editor  *editorPrompt
	consent *consentPrompt
}

func New(token string, opts Options) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	b := NewWithSender(api, opts)
	b.tg = api
	b.logger.Info("telegram authorized", "username", api.Self.UserName)
	b.setCommands()
	return b, nil
}

// NewWithSender builds a bot on any Sender.
func NewWithSender(api Sender, opts Options) *Bot {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{api: api, opts: opts, logger: logger.With("component", "bot")}
}

// SetCaller attaches the dispatcher once it exists.
func (b *Bot) SetCaller(c Caller) { b.caller = c }

func (b *Bot) setCommands() {
	commands := []tgbotapi.BotCommand{
		{Command: "today", Description: "📅 Today's events"},
		{Command: "week", Description: "🗓 Events for the next 7 days"},
		{Command: "calendars", Description: "📚 Calendars"},
		{Command: "permissions", Description: "🔐 Permission states"},
		{Command: "cancel", Description: "✖️ Cancel pending prompts"},
		{Command: "help", Description: "❓ Help"},
	}
	if _, err := b.api.Request(tgbotapi.NewSetMyCommands(commands...)); err != nil {
		b.logger.Warn("failed to set commands", "error", err)
	}
}

func (b *Bot) SetupWebhook(webhookURL string) error {
	if b.tg == nil {
		return fmt.Errorf("webhook needs a telegram client")
	}
	wh, err := tgbotapi.NewWebhook(webhookURL + "/bot")
	if err != nil {
		return fmt.Errorf("create webhook: %w", err)
	}
	if _, err := b.api.Request(wh); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	info, err := b.tg.GetWebhookInfo()
	if err != nil {
		return fmt.Errorf("get webhook info: %w", err)
	}
	if info.LastErrorDate != 0 {
		b.logger.Warn("webhook last error", "message", info.LastErrorMessage)
	}
	b.logger.Info("webhook set", "url", webhookURL+"/bot")
	return nil
}

// WebhookHandler receives updates posted by Telegram.
func (b *Bot) WebhookHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var update tgbotapi.Update
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			http.Error(w, "bad update", http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
		go b.HandleUpdate(context.Background(), update)
	})
}

// Poll reads updates with long polling until ctx ends.
func (b *Bot) Poll(ctx context.Context) error {
	if b.tg == nil {
		return fmt.Errorf("polling needs a telegram client")
	}
	if _, err := b.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		b.logger.Warn("delete webhook", "error", err)
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.tg.GetUpdatesChan(u)
	for {
		select {
		case <-ctx.Done():
			b.tg.StopReceivingUpdates()
			return nil
		case update := <-updates:
			go b.HandleUpdate(ctx, update)
		}
	}
}

func (b *Bot) SendMessage(text string) (tgbotapi.Message, error) {
	msg := tgbotapi.NewMessage(b.opts.OwnerID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	return b.api.Send(msg)
}

func (b *Bot) SendMessageWithKeyboard(text string, keyboard tgbotapi.InlineKeyboardMarkup) (tgbotapi.Message, error) {
	msg := tgbotapi.NewMessage(b.opts.OwnerID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = keyboard
	return b.api.Send(msg)
}

// editMessage replaces a prompt message; a nil keyboard removes the buttons.
func (b *Bot) editMessage(messageID int, text string, keyboard *tgbotapi.InlineKeyboardMarkup) {
	var edit tgbotapi.EditMessageTextConfig
	if keyboard != nil {
		edit = tgbotapi.NewEditMessageTextAndMarkup(b.opts.OwnerID, messageID, text, *keyboard)
	} else {
		edit = tgbotapi.NewEditMessageText(b.opts.OwnerID, messageID, text)
	}
	edit.ParseMode = tgbotapi.ModeHTML
	if _, err := b.api.Request(edit); err != nil {
		b.logger.Warn("edit message", "message_id", messageID, "error", err)
	}
}

func (b *Bot) answer(callbackID, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		b.logger.Debug("answer callback", "error", err)
	}
}

// Notify sends a scheduler notification to the owner.
func (b *Bot) Notify(_ context.Context, text string) error {
	if _, err := b.SendMessage(text); err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	return nil
}
