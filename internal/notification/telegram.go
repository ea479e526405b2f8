package notification

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/olegiv/logwatch-alerts-go/internal/analyzer"
	internalerrors "github.com/olegiv/logwatch-alerts-go/internal/errors"
	"golang.org/x/time/rate"
)

const (
	maxMessageLength = 4096
	// minMessageInterval is the minimum time between messages to the chat
	minMessageInterval = 1 * time.Second
	// maxRetries is the maximum number of attempts for sending one message
	maxRetries = 3
	// baseRetryDelay is the initial delay between retries (doubles each attempt)
	baseRetryDelay = 2 * time.Second
	// defaultRetryAfter is used when a 429 response carries no retry_after
	defaultRetryAfter = 30
)

var _ analyzer.Notifier = (*TelegramClient)(nil)

// botAPI is the part of tgbotapi.BotAPI the client uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramClient sends notifications to one Telegram chat.
type TelegramClient struct {
	bot      botAPI
	stop     func()
	chatID   int64
	hostname string
	limiter  *rate.Limiter
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewTelegramClient creates a new Telegram client
func NewTelegramClient(botToken string, chatID int64) (*TelegramClient, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, internalerrors.Wrapf(err, "failed to create Telegram bot")
	}

	c := newTelegramClient(bot, chatID)
	c.stop = bot.StopReceivingUpdates
	return c, nil
}

func newTelegramClient(bot botAPI, chatID int64) *TelegramClient {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	return &TelegramClient{
		bot:      bot,
		chatID:   chatID,
		hostname: hostname,
		limiter:  rate.NewLimiter(rate.Every(minMessageInterval), 1),
		sleep:    sleepContext,
	}
}

// Name implements analyzer.Notifier.
func (t *TelegramClient) Name() string {
	return string(analyzer.NotifierTelegram)
}

// Send implements analyzer.Notifier. Long bodies are split into several
// messages, each rate limited and retried.
func (t *TelegramClient) Send(ctx context.Context, subject, body string) error {
	for _, msg := range splitMessage(t.formatMessage(subject, body)) {
		if err := t.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("telegram rate limiter: %w", err)
		}

		msgConfig := tgbotapi.NewMessage(t.chatID, msg)
		msgConfig.ParseMode = tgbotapi.ModeMarkdownV2

		if err := t.sendWithRetry(ctx, msgConfig); err != nil {
			return err
		}
	}
	return nil
}

// formatMessage renders subject and body as MarkdownV2
func (t *TelegramClient) formatMessage(subject, body string) string {
	var msg strings.Builder
	msg.WriteString("🔔 *" + escapeMarkdown(subject) + "*\n")
	msg.WriteString("🖥 Host\\: " + escapeMarkdown(t.hostname) + "\n\n")
	msg.WriteString(escapeMarkdown(body))
	return msg.String()
}

// sendWithRetry sends a message with exponential backoff retry
func (t *TelegramClient) sendWithRetry(ctx context.Context, msgConfig tgbotapi.MessageConfig) error {
	var lastErr error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		_, err := t.bot.Send(msgConfig)
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt == maxRetries {
			break
		}

		delay := baseRetryDelay * time.Duration(1<<(attempt-1)) // 2s, 4s
		if isRateLimitError(err) {
			delay = time.Duration(extractRetryAfter(err)) * time.Second
		}
		if err := t.sleep(ctx, delay); err != nil {
			return internalerrors.Wrapf(lastErr, "telegram send aborted")
		}
	}

	return internalerrors.Wrapf(lastErr, "failed to send message after %d attempts", maxRetries)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// isRateLimitError checks if the error is a Telegram rate limit error (429)
func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == 429 {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "429") || strings.Contains(errStr, "Too Many Requests")
}

// extractRetryAfter returns the retry_after seconds of a rate limit error
func extractRetryAfter(err error) int {
	if err == nil {
		return 0
	}

	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
		return apiErr.RetryAfter
	}

	// Example: "Too Many Requests: retry after 30"
	errStr := err.Error()
	if idx := strings.Index(strings.ToLower(errStr), "retry after "); idx != -1 {
		remaining := errStr[idx+len("retry after "):]
		var seconds int
		if _, err := fmt.Sscanf(remaining, "%d", &seconds); err == nil {
			return seconds
		}
	}

	return defaultRetryAfter
}

// splitMessage splits a long message into chunks of at most
// maxMessageLength bytes, preferring line boundaries.
func splitMessage(message string) []string {
	if len(message) <= maxMessageLength {
		return []string{message}
	}

	var messages []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			messages = append(messages, strings.TrimSuffix(current.String(), "\n"))
			current.Reset()
		}
	}

	for _, line := range strings.Split(message, "\n") {
		if current.Len()+len(line)+1 > maxMessageLength {
			flush()
		}
		for len(line) > maxMessageLength {
			cut := safeCut(line, maxMessageLength)
			messages = append(messages, line[:cut])
			line = line[cut:]
		}
		current.WriteString(line)
		current.WriteString("\n")
	}
	flush()

	return messages
}

// safeCut returns an index <= limit that neither splits a UTF-8 sequence
// nor separates a MarkdownV2 escape from the character it escapes.
func safeCut(s string, limit int) int {
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	trailing := 0
	for i := cut - 1; i >= 0 && s[i] == '\\'; i-- {
		trailing++
	}
	if trailing%2 == 1 {
		cut--
	}
	if cut <= 0 {
		return limit
	}
	return cut
}

// escapeMarkdown escapes special characters for Telegram MarkdownV2
func escapeMarkdown(text string) string {
	// See: https://core.telegram.org/bots/api#markdownv2-style
	// Backslash goes first so inserted escapes are not doubled.
	specialChars := []string{
		"\\", "_", "*", "[", "]", "(", ")", "~", "`", ">", "#", "+", "-", "=", "|", "{", "}", ".", "!", ":",
	}

	result := text
	for _, char := range specialChars {
		result = strings.ReplaceAll(result, char, "\\"+char)
	}

	return result
}

// Close stops the bot's update polling.
func (t *TelegramClient) Close() error {
	if t.stop != nil {
		t.stop()
	}
	return nil
}
