package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/neurafeed/neurafeed/app/database"
)

type createFeedRequest struct {
	URL      string `json:"url" binding:"required,url"`
	Category string `json:"category"`
}

// CreateFeed registers a subscription. The feed is fetched and parsed
// synchronously so an invalid URL fails the request immediately instead of
// producing a source that silently never yields articles.
func (h *Handler) CreateFeed(c *gin.Context) {
	var req createFeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorJSON("Invalid feed payload"))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.fetchTimeout)
	defer cancel()

	data, err := h.fetcher.Run(ctx, req.URL)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorJSON("Feed could not be fetched: "+err.Error()))
		return
	}

	metadata, _, err := h.parser.Run(data)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorJSON("URL does not point to a valid RSS or Atom feed"))
		return
	}

	source := &database.Source{
		UserID:      currentUserID(c),
		FeedURL:     req.URL,
		Title:       metadata.Title,
		Description: metadata.Description,
		SiteLink:    metadata.Link,
		Category:    strings.TrimSpace(req.Category),
	}

	if err := h.sourceRepo.CreateSource(source); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			c.JSON(http.StatusConflict, errorJSON("Feed already subscribed"))
			return
		}
		slog.Error("Database error", "operation", "create_source", "error", err)
		c.JSON(http.StatusInternalServerError, errorJSON("Internal error"))
		return
	}

	c.JSON(http.StatusCreated, newSourceResponse(source))
}

func (h *Handler) ListFeeds(c *gin.Context) {
	userID := currentUserID(c)

	sources, err := h.sourceRepo.GetSourcesForUser(userID)
	if err != nil {
		slog.Error("Database error", "operation", "list_sources", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, errorJSON("Internal error"))
		return
	}

	out := make([]sourceResponse, 0, len(sources))
	for i := range sources {
		out = append(out, newSourceResponse(&sources[i]))
	}

	c.JSON(http.StatusOK, gin.H{
		"feeds": out,
		"total": len(out),
	})
}

type updateFeedRequest struct {
	Category string `json:"category" binding:"required"`
}

func (h *Handler) UpdateFeed(c *gin.Context) {
	var req updateFeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorJSON("Body must contain a category"))
		return
	}

	userID := currentUserID(c)
	sourceID := c.Param("id")

	if err := h.sourceRepo.UpdateSourceCategory(sourceID, userID, strings.TrimSpace(req.Category)); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, errorJSON("Feed not found"))
			return
		}
		slog.Error("Database error", "operation", "update_source", "source_id", sourceID, "error", err)
		c.JSON(http.StatusInternalServerError, errorJSON("Internal error"))
		return
	}

	source, err := h.sourceRepo.GetSource(sourceID, userID)
	if err != nil || source == nil {
		c.JSON(http.StatusInternalServerError, errorJSON("Internal error"))
		return
	}

	c.JSON(http.StatusOK, newSourceResponse(source))
}

func (h *Handler) DeleteFeed(c *gin.Context) {
	userID := currentUserID(c)
	sourceID := c.Param("id")

	if err := h.sourceRepo.DeleteSource(sourceID, userID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, errorJSON("Feed not found"))
			return
		}
		slog.Error("Database error", "operation", "delete_source", "source_id", sourceID, "error", err)
		c.JSON(http.StatusInternalServerError, errorJSON("Internal error"))
		return
	}

	c.Status(http.StatusNoContent)
}
