package reporter

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go-crowdworks-watcher/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// maxListingMessages caps how many listings are pushed per run; the rest are
// only counted in the summary.
const maxListingMessages = 20

// Sender is the part of *tgbotapi.BotAPI the reporter needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type TelegramReporter struct {
	bot    Sender
	chatID int64
	log    *zap.Logger
}

func NewTelegramReporter(token string, chatID int64, log *zap.Logger) (*TelegramReporter, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram bot: %w", err)
	}

	//turn this on in case of debug
	//bot.Debug = true

	return NewWithSender(bot, chatID, log), nil
}

func NewWithSender(bot Sender, chatID int64, log *zap.Logger) *TelegramReporter {
	return &TelegramReporter{bot: bot, chatID: chatID, log: log}
}

func (t *TelegramReporter) Name() string {
	return "telegram"
}

// Publish announces the run summary followed by one message per matching listing.
func (t *TelegramReporter) Publish(ctx context.Context, result models.RunResult) error {
	if err := t.SendMessage(summary(result)); err != nil {
		return fmt.Errorf("failed to send summary: %w", err)
	}

	var errs []error
	for i, l := range result.Filtered {
		if i == maxListingMessages {
			break
		}
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if err := t.SendListing(l); err != nil {
			t.log.Warn("⚠️ Failed to send listing", zap.String("url", l.URL), zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t *TelegramReporter) SendMessage(text string) error {
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	_, err := t.bot.Send(msg)
	return err
}

func (t *TelegramReporter) SendListing(l models.Listing) error {
	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("🔗 View Job", l.URL),
		),
	)

	msg := tgbotapi.NewMessage(t.chatID, formatListing(l))
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	msg.ReplyMarkup = keyboard

	_, err := t.bot.Send(msg)
	return err
}

// SendError posts a plain-text alert for a failed run.
func (t *TelegramReporter) SendError(errReq error) error {
	msg := tgbotapi.NewMessage(t.chatID, fmt.Sprintf("❌ Crawl failed: %v", errReq))
	_, err := t.bot.Send(msg)
	return err
}

func summary(result models.RunResult) string {
	text := fmt.Sprintf("📊 *%s*\n", escapeMarkdown("CrowdWorks crawl "+result.RunAt.Format("2006-01-02 15:04")))
	text += escapeMarkdown(fmt.Sprintf("new/updated: %d, matching: %d", len(result.Raw), len(result.Filtered)))
	if hidden := len(result.Filtered) - maxListingMessages; hidden > 0 {
		text += "\n" + escapeMarkdown(fmt.Sprintf("(+%d more in %s)", hidden, result.FilteredPath))
	}
	return text
}

func formatListing(l models.Listing) string {
	//build message chunks
	msgText := fmt.Sprintf("🔥 *%s*\n", escapeMarkdown(l.Title))
	msgText += fmt.Sprintf("🏢 %s\n", escapeMarkdown(l.Client))
	msgText += fmt.Sprintf("💰 %s\n", escapeMarkdown(l.Budget))
	if l.PostedDate != nil {
		msgText += fmt.Sprintf("📅 %s\n", escapeMarkdown(*l.PostedDate))
	}
	if l.GPTReason != "" {
		msgText += fmt.Sprintf("🤖 %s\n", escapeMarkdown(l.GPTReason))
	}
	return msgText
}

func escapeMarkdown(text string) string {
	replacer := strings.NewReplacer(
		"_", "\\_", "*", "\\*", "[", "\\[", "]", "\\]", "(", "\\(",
		")", "\\)", "~", "\\~", "`", "\\`", ">", "\\>", "#", "\\#",
		"+", "\\+", "-", "\\-", "=", "\\=", "|", "\\|", "{", "\\{",
		"}", "\\}", ".", "\\.", "!", "\\!",
	)
	return replacer.Replace(text)
}
