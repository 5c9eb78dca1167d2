package api

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

// NewServer wires up the router: request logging, panic recovery and all
// routes. Everything under /api except signup, login and the Telegram
// webhook requires a bearer token.
func NewServer(handler *Handler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(requestLogger())
	r.Use(gin.Recovery())

	r.GET("/health", handler.GetHealth)

	api := r.Group("/api")
	{
		api.POST("/users/signup", handler.Signup)
		api.POST("/users/login", handler.Login)
		api.POST("/telegram/webhook", handler.TelegramWebhook)

		authed := api.Group("")
		authed.Use(handler.auth.Middleware())
		{
			authed.GET("/users/me", handler.GetProfile)
			authed.PATCH("/users/settings", handler.UpdateSettings)
			authed.POST("/users/telegram/token", handler.IssueTelegramToken)

			authed.POST("/feeds", handler.CreateFeed)
			authed.GET("/feeds", handler.ListFeeds)
			authed.PATCH("/feeds/:id", handler.UpdateFeed)
			authed.DELETE("/feeds/:id", handler.DeleteFeed)

			authed.GET("/articles", handler.ListArticles)
			authed.GET("/articles/recommended", handler.ListRecommended)
			authed.GET("/articles/:id", handler.GetArticle)
			authed.PATCH("/articles/:id/read", handler.MarkArticleRead)
			authed.PATCH("/articles/:id/save", handler.ToggleArticleSaved)
			authed.POST("/articles/:id/summarize", handler.SummarizeArticle)
		}
	}

	return r
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()

		slog.Info("Request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(started),
			"client_ip", c.ClientIP(),
		)
	}
}
