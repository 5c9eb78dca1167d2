package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/neurafeed/neurafeed/app/database"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
	recommendedLimit = 20
	profileTopN      = 5
)

func (h *Handler) ListArticles(c *gin.Context) {
	userID := currentUserID(c)

	opts := database.ArticleListOptions{
		Page:  parsePositiveInt(c.Query("page"), 1),
		Limit: parsePositiveInt(c.Query("limit"), defaultPageLimit),
	}
	if opts.Limit > maxPageLimit {
		opts.Limit = maxPageLimit
	}

	if raw := c.Query("is_read"); raw != "" {
		isRead, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorJSON("is_read must be true or false"))
			return
		}
		opts.IsRead = &isRead
	}

	articles, total, err := h.articleRepo.ListArticles(userID, opts)
	if err != nil {
		slog.Error("Database error", "operation", "list_articles", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, errorJSON("Internal error"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"articles": newArticleListResponse(articles),
		"total":    total,
		"page":     opts.Page,
		"limit":    opts.Limit,
	})
}

// ListRecommended ranks by the user's interest profile. Without a profile
// there is nothing to rank on, so the newest articles stand in.
func (h *Handler) ListRecommended(c *gin.Context) {
	userID := currentUserID(c)

	keywords, err := h.tracker.TopKeywords(userID, profileTopN)
	if err != nil {
		slog.Error("Interest profile lookup failed", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, errorJSON("Internal error"))
		return
	}

	var articles []database.Article
	if len(keywords) == 0 {
		articles, err = h.articleRepo.ListRecent(userID, recommendedLimit)
	} else {
		articles, err = h.articleRepo.ListByKeywords(userID, keywords, recommendedLimit)
	}
	if err != nil {
		slog.Error("Database error", "operation", "list_recommended", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, errorJSON("Internal error"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"articles": newArticleListResponse(articles),
		"keywords": keywords,
	})
}

func (h *Handler) GetArticle(c *gin.Context) {
	article, ok := h.loadArticle(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, newArticleResponse(article, true))
}

// MarkArticleRead flips the read flag. The interest profile update fires
// only on the first unread-to-read transition; marking an already-read
// article again is a no-op for the profile.
func (h *Handler) MarkArticleRead(c *gin.Context) {
	article, ok := h.loadArticle(c)
	if !ok {
		return
	}

	firstRead := !article.IsRead
	if firstRead {
		if err := h.articleRepo.MarkRead(article.ID, article.UserID); err != nil {
			slog.Error("Database error", "operation", "mark_read", "article_id", article.ID, "error", err)
			c.JSON(http.StatusInternalServerError, errorJSON("Internal error"))
			return
		}
		article.IsRead = true
		h.tracker.RecordRead(article.UserID, article)
	}

	c.JSON(http.StatusOK, newArticleResponse(article, false))
}

type saveRequest struct {
	Saved *bool `json:"saved" binding:"required"`
}

func (h *Handler) ToggleArticleSaved(c *gin.Context) {
	var req saveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorJSON("Body must contain a saved flag"))
		return
	}

	article, ok := h.loadArticle(c)
	if !ok {
		return
	}

	if err := h.articleRepo.SetSaved(article.ID, article.UserID, *req.Saved); err != nil {
		slog.Error("Database error", "operation", "set_saved", "article_id", article.ID, "error", err)
		c.JSON(http.StatusInternalServerError, errorJSON("Internal error"))
		return
	}

	article.IsSaved = *req.Saved
	c.JSON(http.StatusOK, newArticleResponse(article, false))
}

// SummarizeArticle is the on-demand enrichment path. An article that
// already carries a summary returns it as-is without spending quota; a
// refused or failed enrichment is a 503 the client may retry later.
func (h *Handler) SummarizeArticle(c *gin.Context) {
	article, ok := h.loadArticle(c)
	if !ok {
		return
	}

	if article.HasSummary() {
		c.JSON(http.StatusOK, newArticleResponse(article, false))
		return
	}

	result := h.engine.Enrich(c.Request.Context(), article.Content)
	if result == nil {
		c.JSON(http.StatusServiceUnavailable, errorJSON("Summarization unavailable, try again later"))
		return
	}

	if err := h.articleRepo.SetEnrichment(article.ID, result.Summary, result.Keywords); err != nil {
		slog.Error("Database error", "operation", "set_enrichment", "article_id", article.ID, "error", err)
		c.JSON(http.StatusInternalServerError, errorJSON("Internal error"))
		return
	}

	article.Summary = &result.Summary
	article.Keywords = result.Keywords
	c.JSON(http.StatusOK, newArticleResponse(article, false))
}

// loadArticle fetches the requested article scoped to the authenticated
// user, writing the error response itself when the lookup fails.
func (h *Handler) loadArticle(c *gin.Context) (*database.Article, bool) {
	userID := currentUserID(c)
	articleID := c.Param("id")

	article, err := h.articleRepo.GetArticle(articleID, userID)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		slog.Error("Database error", "operation", "get_article", "article_id", articleID, "error", err)
		c.JSON(http.StatusInternalServerError, errorJSON("Internal error"))
		return nil, false
	}
	if err != nil || article == nil {
		c.JSON(http.StatusNotFound, errorJSON("Article not found"))
		return nil, false
	}

	return article, true
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := gin.H{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
	}

	count, err := h.articleRepo.GetArticleCount()
	if err != nil {
		health["status"] = "degraded"
		c.JSON(http.StatusServiceUnavailable, health)
		return
	}

	health["status"] = "ok"
	health["articles"] = count
	if users, err := h.userRepo.GetUserCount(); err == nil {
		health["users"] = users
	}

	c.JSON(http.StatusOK, health)
}

func parsePositiveInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return fallback
	}
	return value
}
