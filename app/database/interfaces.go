package database

import (
	"time"
)

type UserRepository interface {
	CreateUser(email, passwordHash, name string) (*User, error)
	GetUserByID(id string) (*User, error)
	GetUserByEmail(email string) (*User, error)

	UpdateNotificationPreference(id, preference string) error

	SetTelegramLinkToken(id, token string, expiresAt time.Time) error
	GetUserByLinkToken(token string) (*User, error)
	ConnectTelegram(id, chatID string) error

	IncrementKeywords(id string, keywords []string) error
	GetKeywordProfile(id string) (map[string]int, error)
	GetUserCount() (int, error)
}

type SourceRepository interface {
	CreateSource(source *Source) error
	GetSource(id, userID string) (*Source, error)
	GetSourcesForUser(userID string) ([]Source, error)
	GetAllSources() ([]Source, error)
	UpdateSourceCategory(id, userID, category string) error
	DeleteSource(id, userID string) error
	UpdateLastFetched(id string, fetchedAt time.Time) error
	GetSourceCount(userID string) (int, error)
}

type ArticleListOptions struct {
	IsRead *bool
	Page   int
	Limit  int
}

type ArticleRepository interface {
	Exists(userID, link string) (bool, error)
	CreateArticle(article *Article) error
	GetArticle(id, userID string) (*Article, error)
	ListArticles(userID string, opts ArticleListOptions) ([]Article, int, error)
	ListRecent(userID string, limit int) ([]Article, error)
	ListByKeywords(userID string, keywords []string, limit int) ([]Article, error)

	MarkRead(id, userID string) error
	SetSaved(id, userID string, saved bool) error
	SetEnrichment(id string, summary string, keywords []string) error

	GetSummarizedCount(userID string) (int, error)
	GetArticleCount() (int, error)
}
