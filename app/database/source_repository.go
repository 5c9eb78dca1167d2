package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var _ SourceRepository = (*sourceRepository)(nil)

type sourceRepository struct {
	db *DB
}

func NewSourceRepository(db *DB) SourceRepository {
	return &sourceRepository{db: db}
}

func (r *sourceRepository) CreateSource(source *Source) error {
	if source.ID == "" {
		source.ID = uuid.NewString()
	}
	if source.Category == "" {
		source.Category = "Uncategorized"
	}
	now := time.Now().UTC()
	source.CreatedAt = now
	source.UpdatedAt = now

	_, err := r.db.Exec(`
		INSERT INTO sources (id, user_id, feed_url, title, description, site_link, category, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, source.ID, source.UserID, source.FeedURL, source.Title, source.Description,
		source.SiteLink, source.Category, source.CreatedAt, source.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create source: %w", err)
	}

	return nil
}

func (r *sourceRepository) GetSource(id, userID string) (*Source, error) {
	var source Source
	err := r.db.QueryRow(`
		SELECT id, user_id, feed_url, title, description, site_link, category,
		       last_fetched_at, created_at, updated_at
		FROM sources
		WHERE id = ? AND user_id = ?
	`, id, userID).Scan(
		&source.ID, &source.UserID, &source.FeedURL, &source.Title, &source.Description,
		&source.SiteLink, &source.Category, &source.LastFetchedAt,
		&source.CreatedAt, &source.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get source: %w", err)
	}
	return &source, nil
}

func (r *sourceRepository) GetSourcesForUser(userID string) ([]Source, error) {
	return r.querySources(`WHERE user_id = ? ORDER BY created_at DESC`, userID)
}

// GetAllSources returns every subscription across all users, ordered so the
// ingestion pass visits sources in a stable order.
func (r *sourceRepository) GetAllSources() ([]Source, error) {
	return r.querySources(`ORDER BY user_id, created_at`)
}

func (r *sourceRepository) querySources(clause string, args ...any) ([]Source, error) {
	rows, err := r.db.Query(`
		SELECT id, user_id, feed_url, title, description, site_link, category,
		       last_fetched_at, created_at, updated_at
		FROM sources `+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sources: %w", err)
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		var source Source
		err := rows.Scan(
			&source.ID, &source.UserID, &source.FeedURL, &source.Title, &source.Description,
			&source.SiteLink, &source.Category, &source.LastFetchedAt,
			&source.CreatedAt, &source.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source row: %w", err)
		}
		sources = append(sources, source)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating source rows: %w", err)
	}

	return sources, nil
}

func (r *sourceRepository) UpdateSourceCategory(id, userID, category string) error {
	result, err := r.db.Exec(`
		UPDATE sources
		SET category = ?, updated_at = ?
		WHERE id = ? AND user_id = ?
	`, category, time.Now().UTC(), id, userID)
	if err != nil {
		return fmt.Errorf("failed to update source category: %w", err)
	}
	return requireRowAffected(result, "source")
}

func (r *sourceRepository) DeleteSource(id, userID string) error {
	result, err := r.db.Exec(`DELETE FROM sources WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete source: %w", err)
	}
	return requireRowAffected(result, "source")
}

func (r *sourceRepository) UpdateLastFetched(id string, fetchedAt time.Time) error {
	_, err := r.db.Exec(`
		UPDATE sources
		SET last_fetched_at = ?, updated_at = ?
		WHERE id = ?
	`, fetchedAt.UTC(), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update last fetched time: %w", err)
	}
	return nil
}

func (r *sourceRepository) GetSourceCount(userID string) (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM sources WHERE user_id = ?`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get source count: %w", err)
	}
	return count, nil
}
