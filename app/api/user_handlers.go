package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/neurafeed/neurafeed/app/database"
)

type signupRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Name     string `json:"name" binding:"required"`
}

func (h *Handler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorJSON("Invalid signup payload"))
		return
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		slog.Error("Password hashing failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorJSON("Internal error"))
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	user, err := h.userRepo.CreateUser(email, hash, req.Name)
	if err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			c.JSON(http.StatusConflict, errorJSON("Email already registered"))
			return
		}
		slog.Error("Database error", "operation", "create_user", "error", err)
		c.JSON(http.StatusInternalServerError, errorJSON("Internal error"))
		return
	}

	token, err := h.auth.IssueToken(user.ID)
	if err != nil {
		slog.Error("Token issue failed", "user_id", user.ID, "error", err)
		c.JSON(http.StatusInternalServerError, errorJSON("Internal error"))
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"token": token,
		"user":  newUserResponse(user),
	})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorJSON("Invalid login payload"))
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	user, err := h.userRepo.GetUserByEmail(email)
	if err != nil || user == nil || !checkPassword(user.PasswordHash, req.Password) {
		// Same response for unknown email and wrong password
		c.JSON(http.StatusUnauthorized, errorJSON("Invalid credentials"))
		return
	}

	token, err := h.auth.IssueToken(user.ID)
	if err != nil {
		slog.Error("Token issue failed", "user_id", user.ID, "error", err)
		c.JSON(http.StatusInternalServerError, errorJSON("Internal error"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user":  newUserResponse(user),
	})
}

func (h *Handler) GetProfile(c *gin.Context) {
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

	profile := gin.H{"user": newUserResponse(user)}

	if count, err := h.sourceRepo.GetSourceCount(userID); err == nil {
		profile["source_count"] = count
	}
	if count, err := h.articleRepo.GetSummarizedCount(userID); err == nil {
		profile["summarized_count"] = count
	}

	c.JSON(http.StatusOK, profile)
}

type settingsRequest struct {
	NotificationPreference string `json:"notification_preference" binding:"required"`
}

func (h *Handler) UpdateSettings(c *gin.Context) {
	var req settingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorJSON("Invalid settings payload"))
		return
	}

	switch req.NotificationPreference {
	case database.NotifyImmediate, database.NotifyDigest, database.NotifyDisabled:
	default:
		c.JSON(http.StatusBadRequest, errorJSON("Unknown notification preference"))
		return
	}

	userID := currentUserID(c)
	if err := h.userRepo.UpdateNotificationPreference(userID, req.NotificationPreference); err != nil {
		slog.Error("Database error", "operation", "update_settings", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, errorJSON("Internal error"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"notification_preference": req.NotificationPreference})
}
