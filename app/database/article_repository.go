package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var _ ArticleRepository = (*articleRepository)(nil)

type articleRepository struct {
	db *DB
}

func NewArticleRepository(db *DB) ArticleRepository {
	return &articleRepository{db: db}
}

// Exists is a fast-path check used by the pipeline before extraction. It is
// advisory only: the UNIQUE (user_id, link) constraint resolves races.
func (r *articleRepository) Exists(userID, link string) (bool, error) {
	var one int
	err := r.db.QueryRow(`SELECT 1 FROM articles WHERE user_id = ? AND link = ? LIMIT 1`,
		userID, link).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check article existence: %w", err)
	}
	return true, nil
}

func (r *articleRepository) CreateArticle(article *Article) error {
	if article.ID == "" {
		article.ID = uuid.NewString()
	}
	if article.CreatedAt.IsZero() {
		article.CreatedAt = time.Now().UTC()
	}

	keywordsJSON, err := json.Marshal(keywordsOrEmpty(article.Keywords))
	if err != nil {
		return fmt.Errorf("failed to encode keywords: %w", err)
	}

	_, err = r.db.Exec(`
		INSERT INTO articles (id, source_id, user_id, title, link, content,
		                      summary, keywords, published_at, is_read, is_saved, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, article.ID, article.SourceID, article.UserID, article.Title, article.Link,
		article.Content, article.Summary, string(keywordsJSON),
		article.PublishedAt.UTC(), article.IsRead, article.IsSaved, article.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create article: %w", err)
	}

	return nil
}

const articleColumns = `id, source_id, user_id, title, link, content, summary,
       keywords, published_at, is_read, is_saved, created_at`

func (r *articleRepository) GetArticle(id, userID string) (*Article, error) {
	row := r.db.QueryRow(`
		SELECT `+articleColumns+`
		FROM articles
		WHERE id = ? AND user_id = ?
	`, id, userID)

	article, err := scanArticle(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get article: %w", err)
	}
	return article, nil
}

func (r *articleRepository) ListArticles(userID string, opts ArticleListOptions) ([]Article, int, error) {
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.Limit < 1 {
		opts.Limit = 10
	}

	where := `WHERE user_id = ?`
	args := []any{userID}
	if opts.IsRead != nil {
		where += ` AND is_read = ?`
		args = append(args, *opts.IsRead)
	}

	var total int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM articles `+where, args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count articles: %w", err)
	}

	query := `SELECT ` + articleColumns + ` FROM articles ` + where +
		` ORDER BY published_at DESC LIMIT ? OFFSET ?`
	args = append(args, opts.Limit, (opts.Page-1)*opts.Limit)

	articles, err := r.queryArticles(query, args...)
	if err != nil {
		return nil, 0, err
	}

	return articles, total, nil
}

func (r *articleRepository) ListRecent(userID string, limit int) ([]Article, error) {
	return r.queryArticles(`
		SELECT `+articleColumns+`
		FROM articles
		WHERE user_id = ?
		ORDER BY published_at DESC
		LIMIT ?
	`, userID, limit)
}

// ListByKeywords returns the newest articles tagged with any of the given
// keywords. Keywords are stored as a JSON array, so matching is done against
// the quoted form of each keyword.
func (r *articleRepository) ListByKeywords(userID string, keywords []string, limit int) ([]Article, error) {
	if len(keywords) == 0 {
		return nil, nil
	}

	clauses := make([]string, 0, len(keywords))
	args := []any{userID}
	for _, keyword := range keywords {
		clauses = append(clauses, `keywords LIKE ?`)
		quoted, err := json.Marshal(keyword)
		if err != nil {
			return nil, fmt.Errorf("failed to encode keyword: %w", err)
		}
		args = append(args, "%"+string(quoted)+"%")
	}
	args = append(args, limit)

	return r.queryArticles(`
		SELECT `+articleColumns+`
		FROM articles
		WHERE user_id = ? AND (`+strings.Join(clauses, " OR ")+`)
		ORDER BY published_at DESC
		LIMIT ?
	`, args...)
}

func (r *articleRepository) queryArticles(query string, args ...any) ([]Article, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query articles: %w", err)
	}
	defer rows.Close()

	var articles []Article
	for rows.Next() {
		article, err := scanArticle(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan article row: %w", err)
		}
		articles = append(articles, *article)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating article rows: %w", err)
	}

	return articles, nil
}

func (r *articleRepository) MarkRead(id, userID string) error {
	result, err := r.db.Exec(`
		UPDATE articles SET is_read = 1 WHERE id = ? AND user_id = ?
	`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to mark article read: %w", err)
	}
	return requireRowAffected(result, "article")
}

func (r *articleRepository) SetSaved(id, userID string, saved bool) error {
	result, err := r.db.Exec(`
		UPDATE articles SET is_saved = ? WHERE id = ? AND user_id = ?
	`, saved, id, userID)
	if err != nil {
		return fmt.Errorf("failed to update saved flag: %w", err)
	}
	return requireRowAffected(result, "article")
}

// SetEnrichment persists a successful enrichment result. Summary and
// keywords are written together; they are never set independently.
func (r *articleRepository) SetEnrichment(id string, summary string, keywords []string) error {
	keywordsJSON, err := json.Marshal(keywordsOrEmpty(keywords))
	if err != nil {
		return fmt.Errorf("failed to encode keywords: %w", err)
	}

	result, err := r.db.Exec(`
		UPDATE articles SET summary = ?, keywords = ? WHERE id = ?
	`, summary, string(keywordsJSON), id)
	if err != nil {
		return fmt.Errorf("failed to set enrichment: %w", err)
	}
	return requireRowAffected(result, "article")
}

func (r *articleRepository) GetSummarizedCount(userID string) (int, error) {
	var count int
	err := r.db.QueryRow(`
		SELECT COUNT(*) FROM articles WHERE user_id = ? AND summary IS NOT NULL
	`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get summarized count: %w", err)
	}
	return count, nil
}

func (r *articleRepository) GetArticleCount() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM articles`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get article count: %w", err)
	}
	return count, nil
}

func scanArticle(scan func(...any) error) (*Article, error) {
	var article Article
	var keywordsJSON string

	err := scan(
		&article.ID, &article.SourceID, &article.UserID, &article.Title, &article.Link,
		&article.Content, &article.Summary, &keywordsJSON,
		&article.PublishedAt, &article.IsRead, &article.IsSaved, &article.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(keywordsJSON), &article.Keywords); err != nil {
		return nil, fmt.Errorf("failed to decode keywords: %w", err)
	}

	return &article, nil
}

func keywordsOrEmpty(keywords []string) []string {
	if keywords == nil {
		return []string{}
	}
	return keywords
}
