package notify

import (
	"fmt"
	"html"
	"strings"
	"time"

	"gouden-gids-crawler/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Notifier reports finished crawl runs
type Notifier interface {
	NotifyRun(run models.CrawlRun, link string) error
}

// TelegramNotifier sends run summaries to one chat
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger *zap.Logger
}

// NewTelegramNotifier authorizes the bot token against the Telegram API
func NewTelegramNotifier(token string, chatID int64, logger *zap.Logger) (*TelegramNotifier, error) {
	return NewTelegramNotifierWithEndpoint(token, tgbotapi.APIEndpoint, chatID, logger)
}

// NewTelegramNotifierWithEndpoint talks to a custom Bot API server;
// endpoint is a format string like tgbotapi.APIEndpoint
func NewTelegramNotifierWithEndpoint(token, endpoint string, chatID int64, logger *zap.Logger) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(token, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	logger.Info("authorized telegram bot", zap.String("account", bot.Self.UserName))

	return &TelegramNotifier{bot: bot, chatID: chatID, logger: logger}, nil
}

// NotifyRun sends the summary of run; link, when set, points at the output
func (n *TelegramNotifier) NotifyRun(run models.CrawlRun, link string) error {
	msg := tgbotapi.NewMessage(n.chatID, FormatRunSummary(run, link))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send run summary: %w", err)
	}
	n.logger.Debug("sent run summary", zap.String("run_id", run.ID), zap.Int64("chat_id", n.chatID))
	return nil
}

// FormatRunSummary renders run as a Telegram HTML message
func FormatRunSummary(run models.CrawlRun, link string) string {
	var b strings.Builder
	if run.Status == models.RunStatusDone {
		fmt.Fprintf(&b, "✅ Crawl of <b>%s</b> finished\n\n", html.EscapeString(run.Category))
	} else {
		fmt.Fprintf(&b, "❌ Crawl of <b>%s</b> failed\n\n", html.EscapeString(run.Category))
	}

	fmt.Fprintf(&b, "Businesses: %d\n", run.Records)
	fmt.Fprintf(&b, "Result pages: %d of %d\n", run.Pages, run.MaxPage)
	fmt.Fprintf(&b, "Errors: %d\n", run.Errors)
	if d := run.Duration(); d > 0 {
		fmt.Fprintf(&b, "Duration: %s\n", d.Round(time.Second))
	}
	if run.LastError != "" {
		fmt.Fprintf(&b, "Last error: <code>%s</code>\n", html.EscapeString(run.LastError))
	}
	if link != "" {
		fmt.Fprintf(&b, "\nView results: %s\n", link)
	}
	fmt.Fprintf(&b, "\nRun: <code>%s</code>", run.ID)
	return b.String()
}
