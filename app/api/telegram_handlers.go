package api

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const linkTokenLifetime = 15 * time.Minute

// IssueTelegramToken hands out the short-lived token the user sends to the
// bot to bind their chat. An unexpired token is reused so repeated clicks in
// a UI don't invalidate the one the user already pasted.
func (h *Handler) IssueTelegramToken(c *gin.Context) {
	userID := currentUserID(c)

	user, err := h.userRepo.GetUserByID(userID)
	if err != nil {
		slog.Error("Database error", "operation", "get_user", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, errorJSON("Internal error"))
		return
	}
	if user == nil {
		c.JSON(http.StatusNotFound, errorJSON("Account no longer exists"))
		return
	}

	if user.TelegramConnected {
		c.JSON(http.StatusConflict, errorJSON("Telegram already connected"))
		return
	}

	now := time.Now().UTC()
	if user.TelegramLinkToken != nil && user.TelegramTokenExpiresAt != nil && user.TelegramTokenExpiresAt.After(now) {
		c.JSON(http.StatusOK, gin.H{
			"token":      *user.TelegramLinkToken,
			"expires_at": user.TelegramTokenExpiresAt,
		})
		return
	}

	token, err := newLinkToken()
	if err != nil {
		slog.Error("Link token generation failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorJSON("Internal error"))
		return
	}

	expiresAt := now.Add(linkTokenLifetime)
	if err := h.userRepo.SetTelegramLinkToken(userID, token, expiresAt); err != nil {
		slog.Error("Database error", "operation", "set_link_token", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, errorJSON("Internal error"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_at": expiresAt,
	})
}

func newLinkToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// telegramUpdate is the subset of the Bot API update payload the webhook
// needs.
type telegramUpdate struct {
	Message struct {
		Text string `json:"text"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
	} `json:"message"`
}

// TelegramWebhook handles bot updates. Only /start and /connect are
// understood; everything else gets a short hint. The response to Telegram
// itself is always 200 so the update is not redelivered.
func (h *Handler) TelegramWebhook(c *gin.Context) {
	var update telegramUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		c.Status(http.StatusOK)
		return
	}

	chatID := fmt.Sprintf("%d", update.Message.Chat.ID)
	text := strings.TrimSpace(update.Message.Text)
	if chatID == "0" || text == "" {
		c.Status(http.StatusOK)
		return
	}

	switch {
	case text == "/start":
		h.replyTo(c, chatID, "Welcome! Generate a link token in your account settings, then send /connect <token> here.")
	case strings.HasPrefix(text, "/connect"):
		h.handleConnect(c, chatID, text)
	default:
		h.replyTo(c, chatID, "Unknown command. Use /connect <token> to link your account.")
	}

	c.Status(http.StatusOK)
}

func (h *Handler) handleConnect(c *gin.Context, chatID, text string) {
	fields := strings.Fields(text)
	if len(fields) != 2 {
		h.replyTo(c, chatID, "Usage: /connect <token>")
		return
	}
	token := fields[1]

	user, err := h.userRepo.GetUserByLinkToken(token)
	if err != nil || user == nil {
		h.replyTo(c, chatID, "That token is invalid or has expired. Generate a new one and try again.")
		return
	}

	if err := h.userRepo.ConnectTelegram(user.ID, chatID); err != nil {
		slog.Error("Database error", "operation", "connect_telegram", "user_id", user.ID, "error", err)
		h.replyTo(c, chatID, "Something went wrong, please try again.")
		return
	}

	slog.Info("Telegram account linked", "user_id", user.ID)
	h.replyTo(c, chatID, "Account linked. You will receive article notifications here.")
}

func (h *Handler) replyTo(c *gin.Context, chatID, text string) {
	if !h.notifier.Enabled() {
		return
	}
	if err := h.notifier.SendMessage(c.Request.Context(), chatID, text); err != nil {
		slog.Warn("Webhook reply failed", "chat_id", chatID, "error", err)
	}
}
