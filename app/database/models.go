package database

import (
	"time"
)

// Notification preference values stored on a user.
const (
	NotifyImmediate = "immediate"
	NotifyDigest    = "digest"
	NotifyDisabled  = "disabled"
)

type User struct {
	ID                     string
	Email                  string
	PasswordHash           string
	Name                   string
	KeywordProfile         map[string]int
	NotificationPreference string
	TelegramChatID         string
	TelegramConnected      bool
	TelegramLinkToken      *string
	TelegramTokenExpiresAt *time.Time
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

type Source struct {
	ID            string
	UserID        string
	FeedURL       string
	Title         string
	Description   string
	SiteLink      string
	Category      string
	LastFetchedAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Article struct {
	ID          string
	SourceID    string
	UserID      string
	Title       string
	Link        string // normalized, dedup key together with UserID
	Content     string
	Summary     *string
	Keywords    []string
	PublishedAt time.Time
	IsRead      bool
	IsSaved     bool
	CreatedAt   time.Time
}

// HasSummary reports whether enrichment already succeeded for this article.
// Summary and keywords are set together, so the summary alone is the marker.
func (a *Article) HasSummary() bool {
	return a.Summary != nil && *a.Summary != ""
}
