package interest

import (
	"log/slog"
	"sort"

	"github.com/neurafeed/neurafeed/app/database"
)

// Tracker maintains per-user interest profiles: a keyword score map that
// grows as the user reads enriched articles. Profile updates are best
// effort, a failed write never fails the operation that triggered it.
type Tracker struct {
	userRepo database.UserRepository
}

func NewTracker(userRepo database.UserRepository) *Tracker {
	return &Tracker{userRepo: userRepo}
}

// RecordRead folds an article's keywords into the owner's profile. Meant to
// run exactly once per article, on its first unread-to-read transition; the
// caller is responsible for that gating. Articles without keywords leave
// the profile untouched.
func (t *Tracker) RecordRead(userID string, article *database.Article) {
	if len(article.Keywords) == 0 {
		return
	}

	if err := t.userRepo.IncrementKeywords(userID, article.Keywords); err != nil {
		slog.Warn("Interest profile update failed",
			"user_id", userID, "article_id", article.ID, "error", err)
	}
}

// TopKeywords returns up to n profile keywords ordered by descending score.
// Ties break alphabetically so the result is stable across calls.
func (t *Tracker) TopKeywords(userID string, n int) ([]string, error) {
	profile, err := t.userRepo.GetKeywordProfile(userID)
	if err != nil {
		return nil, err
	}

	keywords := make([]string, 0, len(profile))
	for keyword := range profile {
		keywords = append(keywords, keyword)
	}
	sort.Slice(keywords, func(i, j int) bool {
		if profile[keywords[i]] != profile[keywords[j]] {
			return profile[keywords[i]] > profile[keywords[j]]
		}
		return keywords[i] < keywords[j]
	})

	if len(keywords) > n {
		keywords = keywords[:n]
	}
	return keywords, nil
}
