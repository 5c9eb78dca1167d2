package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"

	"github.com/neurafeed/neurafeed/app/database"
)

const telegramAPIBase = "https://api.telegram.org"

// Notifier delivers new-article alerts to Telegram chats. Delivery is
// strictly best effort: any failure is logged and swallowed so a Telegram
// outage can never stall or fail an ingestion cycle.
type Notifier struct {
	httpClient *http.Client
	apiBase    string
	botToken   string
}

func NewNotifier(httpClient *http.Client, botToken string) *Notifier {
	return NewNotifierWithBase(httpClient, botToken, telegramAPIBase)
}

// NewNotifierWithBase allows overriding the Bot API base URL, for tests.
func NewNotifierWithBase(httpClient *http.Client, botToken, apiBase string) *Notifier {
	return &Notifier{
		httpClient: httpClient,
		apiBase:    apiBase,
		botToken:   botToken,
	}
}

// Enabled reports whether a bot token is configured at all.
func (n *Notifier) Enabled() bool {
	return n.botToken != ""
}

// NotifyNewArticle sends an alert about a freshly stored article when the
// owner opted in. Users with the digest or disabled preference, or without
// a connected chat, are skipped silently.
func (n *Notifier) NotifyNewArticle(ctx context.Context, user *database.User, article *database.Article) {
	if !n.shouldDeliver(user) {
		return
	}

	text := fmt.Sprintf("\U0001F4F0 <b>%s</b>\n\n%s\n\n%s",
		html.EscapeString(article.Title), html.EscapeString(snippet(article.Content, 200)), article.Link)

	if err := n.sendMessage(ctx, user.TelegramChatID, text); err != nil {
		slog.Warn("Telegram notification failed",
			"user_id", user.ID, "article_id", article.ID, "error", err)
	}
}

// SendMessage delivers an arbitrary text to a chat. Used for the account
// linking confirmation in the webhook handler.
func (n *Notifier) SendMessage(ctx context.Context, chatID, text string) error {
	return n.sendMessage(ctx, chatID, text)
}

func (n *Notifier) shouldDeliver(user *database.User) bool {
	if !n.Enabled() {
		return false
	}
	if user.NotificationPreference != database.NotifyImmediate {
		return false
	}
	return user.TelegramConnected && user.TelegramChatID != ""
}

func (n *Notifier) sendMessage(ctx context.Context, chatID, text string) error {
	payload, err := json.Marshal(map[string]string{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "HTML",
	})
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.apiBase, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call Telegram: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("Telegram error (status %d): %s", resp.StatusCode, string(body))
	}

	return nil
}

func snippet(text string, max int) string {
	if len(text) <= max {
		return text
	}
	return text[:max] + "..."
}

