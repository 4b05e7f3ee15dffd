package channel

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/insider-one/notify-dispatch/internal/domain"
)

// telegramMarkdownEscapes are the characters that must be escaped in a
// Markdown-mode subject line before it is prepended to the body
// [spec §4.4].
var telegramMarkdownEscapes = []string{"_", "*", "[", "`"}

// TelegramAdapter sends messages through the Telegram Bot API.
type TelegramAdapter struct {
	bot     *tgbotapi.BotAPI
	logger  *slog.Logger
	enabled bool
}

func NewTelegramAdapter(bot *tgbotapi.BotAPI, enabled bool, logger *slog.Logger) *TelegramAdapter {
	return &TelegramAdapter{bot: bot, logger: logger, enabled: enabled}
}

func (a *TelegramAdapter) Name() domain.Channel { return domain.ChannelTelegram }
func (a *TelegramAdapter) IsEnabled() bool       { return a.enabled }
func (a *TelegramAdapter) IsConfigured() bool    { return a.bot != nil }

func escapeTelegramMarkdown(s string) string {
	for _, c := range telegramMarkdownEscapes {
		s = strings.ReplaceAll(s, c, "\\"+c)
	}
	return s
}

// Send expects recipient to be the numeric chat id as a string.
func (a *TelegramAdapter) Send(ctx context.Context, recipient, subject, body string) SendResult {
	if !a.IsConfigured() {
		return fail("NOT_CONFIGURED", "telegram bot token not configured", false)
	}

	chatID, err := strconv.ParseInt(recipient, 10, 64)
	if err != nil {
		return fail("INVALID_RECIPIENT", "recipient is not a valid telegram chat id", false)
	}

	text := body
	if subject != "" {
		text = fmt.Sprintf("*%s*\n\n%s", escapeTelegramMarkdown(subject), body)
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown

	a.logger.Info("sending telegram message",
		slog.String("to", domain.MaskRecipient(domain.ChannelTelegram, recipient)))

	sent, err := a.bot.Send(msg)
	if err != nil {
		return classifyTelegramError(err)
	}

	return ok(strconv.Itoa(sent.MessageID))
}

// classifyTelegramError treats 4xx as terminal except 429/5xx which are
// transient [spec §4.4].
func classifyTelegramError(err error) SendResult {
	var code int
	var message string

	switch e := err.(type) {
	case *tgbotapi.Error:
		code, message = e.Code, e.Message
	case tgbotapi.Error:
		code, message = e.Code, e.Message
	default:
		return fail("API_ERROR", err.Error(), true)
	}

	return classifyTelegramErrorCode(code, message)
}

func classifyTelegramErrorCode(code int, message string) SendResult {
	if code == 429 || code >= 500 {
		return fail("API_ERROR", message, true)
	}
	if code >= 400 {
		return fail("INVALID_RECIPIENT", message, false)
	}
	return fail("API_ERROR", message, true)
}

func (a *TelegramAdapter) HealthCheck(ctx context.Context) bool {
	if a.bot == nil {
		return false
	}
	_, err := a.bot.GetMe()
	return err == nil
}
