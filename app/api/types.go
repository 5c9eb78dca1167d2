package api

import (
	"time"

	"github.com/neurafeed/neurafeed/app/ai"
	"github.com/neurafeed/neurafeed/app/database"
	"github.com/neurafeed/neurafeed/app/feed"
	"github.com/neurafeed/neurafeed/app/interest"
	"github.com/neurafeed/neurafeed/app/notify"
)

type Handler struct {
	userRepo    database.UserRepository
	sourceRepo  database.SourceRepository
	articleRepo database.ArticleRepository

	fetcher  *feed.Fetcher
	parser   *feed.Parser
	engine   *ai.Engine
	tracker  *interest.Tracker
	notifier *notify.Notifier

	auth         *Auth
	fetchTimeout time.Duration
	version      string
}

type HandlerOptions struct {
	FetchTimeout time.Duration
	Version      string
}

func NewHandler(
	userRepo database.UserRepository,
	sourceRepo database.SourceRepository,
	articleRepo database.ArticleRepository,
	fetcher *feed.Fetcher,
	parser *feed.Parser,
	engine *ai.Engine,
	tracker *interest.Tracker,
	notifier *notify.Notifier,
	auth *Auth,
	opts HandlerOptions,
) *Handler {
	return &Handler{
		userRepo:     userRepo,
		sourceRepo:   sourceRepo,
		articleRepo:  articleRepo,
		fetcher:      fetcher,
		parser:       parser,
		engine:       engine,
		tracker:      tracker,
		notifier:     notifier,
		auth:         auth,
		fetchTimeout: opts.FetchTimeout,
		version:      opts.Version,
	}
}

// userResponse is the public view of an account; the password hash and the
// link token never leave the server.
type userResponse struct {
	ID                     string `json:"id"`
	Email                  string `json:"email"`
	Name                   string `json:"name"`
	NotificationPreference string `json:"notification_preference"`
	TelegramConnected      bool   `json:"telegram_connected"`
}

func newUserResponse(user *database.User) userResponse {
	return userResponse{
		ID:                     user.ID,
		Email:                  user.Email,
		Name:                   user.Name,
		NotificationPreference: user.NotificationPreference,
		TelegramConnected:      user.TelegramConnected,
	}
}

type sourceResponse struct {
	ID            string     `json:"id"`
	FeedURL       string     `json:"feed_url"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	SiteLink      string     `json:"site_link"`
	Category      string     `json:"category"`
	LastFetchedAt *time.Time `json:"last_fetched_at"`
	CreatedAt     time.Time  `json:"created_at"`
}

func newSourceResponse(source *database.Source) sourceResponse {
	return sourceResponse{
		ID:            source.ID,
		FeedURL:       source.FeedURL,
		Title:         source.Title,
		Description:   source.Description,
		SiteLink:      source.SiteLink,
		Category:      source.Category,
		LastFetchedAt: source.LastFetchedAt,
		CreatedAt:     source.CreatedAt,
	}
}

type articleResponse struct {
	ID          string    `json:"id"`
	SourceID    string    `json:"source_id"`
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	Content     string    `json:"content,omitempty"`
	Summary     *string   `json:"summary"`
	Keywords    []string  `json:"keywords"`
	PublishedAt time.Time `json:"published_at"`
	IsRead      bool      `json:"is_read"`
	IsSaved     bool      `json:"is_saved"`
}

func newArticleResponse(article *database.Article, includeContent bool) articleResponse {
	resp := articleResponse{
		ID:          article.ID,
		SourceID:    article.SourceID,
		Title:       article.Title,
		Link:        article.Link,
		Summary:     article.Summary,
		Keywords:    article.Keywords,
		PublishedAt: article.PublishedAt,
		IsRead:      article.IsRead,
		IsSaved:     article.IsSaved,
	}
	if includeContent {
		resp.Content = article.Content
	}
	return resp
}

func newArticleListResponse(articles []database.Article) []articleResponse {
	out := make([]articleResponse, 0, len(articles))
	for i := range articles {
		out = append(out, newArticleResponse(&articles[i], false))
	}
	return out
}

// errorJSON is the uniform error body shape.
func errorJSON(message string) map[string]string {
	return map[string]string{"error": message}
}
