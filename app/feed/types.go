package feed

import (
	"time"
)

// Metadata describes the feed document itself, used when registering a
// subscription.
type Metadata struct {
	Title       string
	Link        string
	Description string
}

// Item is a single entry parsed out of a syndication document, prior to
// normalization and persistence.
type Item struct {
	Title       string
	Link        string
	Description string
	Content     string
	PublishedAt time.Time
}

// Snippet returns the item's own text, preferring full content over the
// description. Used as the fallback when page extraction fails.
func (i Item) Snippet() string {
	if i.Content != "" {
		return i.Content
	}
	return i.Description
}
