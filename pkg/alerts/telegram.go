// Package alerts sends keyword-triggered warnings to a Telegram chat.
package alerts

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"

	"github.com/jhulett18/threadsrecon/pkg/logger"
)

// Priority is the alert severity level.
type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"
)

var priorityEmoji = map[Priority]string{
	PriorityHigh:   "\U0001F534",
	PriorityMedium: "\U0001F7E1",
	PriorityLow:    "\U0001F7E2",
}

const (
	defaultBaseURL = "https://api.telegram.org"
	maxContentLen  = 200
)

// TelegramAlertSystem sends formatted MarkdownV2 alerts through the
// Telegram bot API.
type TelegramAlertSystem struct {
	client  *resty.Client
	baseURL string
	token   string
	chatID  string
	log     logger.Logger
	now     func() time.Time
}

// NewTelegramAlertSystem creates an alert sender for the given bot
// token and chat.
func NewTelegramAlertSystem(token, chatID string, log logger.Logger) *TelegramAlertSystem {
	if log == nil {
		log = logger.GetLogger()
	}
	client := resty.New().
		SetTimeout(30 * time.Second).
		SetRetryCount(2)

	return &TelegramAlertSystem{
		client:  client,
		baseURL: defaultBaseURL,
		token:   token,
		chatID:  chatID,
		log:     log,
		now:     time.Now,
	}
}

// SetBaseURL overrides the Telegram API endpoint. Used in tests.
func (t *TelegramAlertSystem) SetBaseURL(baseURL string) {
	t.baseURL = strings.TrimRight(baseURL, "/")
}

// markdownSpecials are the characters MarkdownV2 requires escaping.
var markdownSpecials = []string{
	"_", "*", "[", "]", "(", ")", "~", "`", ">", "#",
	"+", "-", "=", "|", "{", "}", ".", "!",
}

// EscapeMarkdown escapes MarkdownV2 special characters.
func EscapeMarkdown(text string) string {
	for _, ch := range markdownSpecials {
		text = strings.ReplaceAll(text, ch, "\\"+ch)
	}
	return text
}

// TruncateText shortens text to maxContentLen, keeping bold markers
// balanced.
func TruncateText(text string) string {
	if len(text) <= maxContentLen {
		return text
	}

	cut := maxContentLen
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	truncated := strings.TrimRight(text[:cut], " ")
	if strings.Count(truncated, "*")%2 != 0 {
		truncated = strings.TrimRight(truncated, "*")
	}
	return truncated + "..."
}

// SendAlert sends one formatted alert. Metadata rows are appended in
// sorted key order.
func (t *TelegramAlertSystem) SendAlert(ctx context.Context, keyword, text string, priority Priority, metadata map[string]string) error {
	emoji, ok := priorityEmoji[Priority(strings.ToUpper(string(priority)))]
	if !ok {
		emoji = "⚪"
	}

	timestamp := EscapeMarkdown(t.now().Format("2006-01-02 15:04:05"))
	safeKeyword := EscapeMarkdown(keyword)
	safeText := TruncateText(EscapeMarkdown(text))

	parts := []string{
		fmt.Sprintf("%s *ALERT* %s", emoji, emoji),
		fmt.Sprintf("*Priority*: %s", priority),
		fmt.Sprintf("*Keyword*: %s", safeKeyword),
		fmt.Sprintf("*Time*: %s", timestamp),
		fmt.Sprintf("*Content*: %s", safeText),
	}

	if len(metadata) > 0 {
		parts = append(parts, "\n*Additional Info*:")
		keys := make([]string, 0, len(metadata))
		for key := range metadata {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			parts = append(parts, fmt.Sprintf("• %s: %s", EscapeMarkdown(key), EscapeMarkdown(metadata[key])))
		}
	}

	message := strings.Join(parts, "\n")

	resp, err := t.client.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"chat_id":    t.chatID,
			"text":       message,
			"parse_mode": "MarkdownV2",
		}).
		Post(fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token))
	if err != nil {
		t.log.ErrorWithFields("Failed to send Telegram alert", map[string]interface{}{
			"error": err.Error(),
		})
		return fmt.Errorf("failed to send alert: %w", err)
	}
	if resp.StatusCode() != 200 {
		t.log.ErrorWithFields("Telegram API rejected alert", map[string]interface{}{
			"status": resp.StatusCode(),
			"body":   string(resp.Body()),
		})
		return fmt.Errorf("telegram API returned status %d", resp.StatusCode())
	}
	return nil
}
