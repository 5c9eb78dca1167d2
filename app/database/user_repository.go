package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var _ UserRepository = (*userRepository)(nil)

type userRepository struct {
	db *DB
}

func NewUserRepository(db *DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) CreateUser(email, passwordHash, name string) (*User, error) {
	id := uuid.NewString()
	now := time.Now().UTC()

	_, err := r.db.Exec(`
		INSERT INTO users (id, email, password_hash, name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, email, passwordHash, name, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return r.GetUserByID(id)
}

func (r *userRepository) GetUserByID(id string) (*User, error) {
	return r.getUser(`WHERE id = ?`, id)
}

func (r *userRepository) GetUserByEmail(email string) (*User, error) {
	return r.getUser(`WHERE email = ?`, email)
}

// GetUserByLinkToken resolves a pending Telegram link token. Expired tokens
// do not match: the token is single-use and time-boxed.
func (r *userRepository) GetUserByLinkToken(token string) (*User, error) {
	return r.getUser(`WHERE telegram_link_token = ? AND telegram_token_expires_at > ?`,
		token, time.Now().UTC())
}

func (r *userRepository) getUser(where string, args ...any) (*User, error) {
	var user User
	var profileJSON string

	err := r.db.QueryRow(`
		SELECT id, email, password_hash, name, keyword_profile,
		       notification_preference, telegram_chat_id, telegram_connected,
		       telegram_link_token, telegram_token_expires_at,
		       created_at, updated_at
		FROM users `+where, args...).Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.Name, &profileJSON,
		&user.NotificationPreference, &user.TelegramChatID, &user.TelegramConnected,
		&user.TelegramLinkToken, &user.TelegramTokenExpiresAt,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if err := json.Unmarshal([]byte(profileJSON), &user.KeywordProfile); err != nil {
		return nil, fmt.Errorf("failed to decode keyword profile: %w", err)
	}

	return &user, nil
}

func (r *userRepository) UpdateNotificationPreference(id, preference string) error {
	result, err := r.db.Exec(`
		UPDATE users
		SET notification_preference = ?, updated_at = ?
		WHERE id = ?
	`, preference, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update notification preference: %w", err)
	}
	return requireRowAffected(result, "user")
}

func (r *userRepository) SetTelegramLinkToken(id, token string, expiresAt time.Time) error {
	result, err := r.db.Exec(`
		UPDATE users
		SET telegram_link_token = ?, telegram_token_expires_at = ?, updated_at = ?
		WHERE id = ?
	`, token, expiresAt.UTC(), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to set telegram link token: %w", err)
	}
	return requireRowAffected(result, "user")
}

// ConnectTelegram binds a chat identity to the user and consumes the link
// token in the same statement.
func (r *userRepository) ConnectTelegram(id, chatID string) error {
	result, err := r.db.Exec(`
		UPDATE users
		SET telegram_chat_id = ?, telegram_connected = 1,
		    telegram_link_token = NULL, telegram_token_expires_at = NULL,
		    updated_at = ?
		WHERE id = ?
	`, chatID, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to connect telegram: %w", err)
	}
	return requireRowAffected(result, "user")
}

// IncrementKeywords bumps each keyword's score by one, creating missing
// entries at 1. The read-modify-write runs in a transaction so concurrent
// reads of different articles do not lose increments.
func (r *userRepository) IncrementKeywords(id string, keywords []string) error {
	if len(keywords) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var profileJSON string
	err = tx.QueryRow(`SELECT keyword_profile FROM users WHERE id = ?`, id).Scan(&profileJSON)
	if err != nil {
		return fmt.Errorf("failed to read keyword profile: %w", err)
	}

	profile := make(map[string]int)
	if err := json.Unmarshal([]byte(profileJSON), &profile); err != nil {
		return fmt.Errorf("failed to decode keyword profile: %w", err)
	}

	for _, keyword := range keywords {
		profile[keyword]++
	}

	updated, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to encode keyword profile: %w", err)
	}

	_, err = tx.Exec(`UPDATE users SET keyword_profile = ?, updated_at = ? WHERE id = ?`,
		string(updated), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update keyword profile: %w", err)
	}

	return tx.Commit()
}

func (r *userRepository) GetKeywordProfile(id string) (map[string]int, error) {
	var profileJSON string
	err := r.db.QueryRow(`SELECT keyword_profile FROM users WHERE id = ?`, id).Scan(&profileJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get keyword profile: %w", err)
	}

	profile := make(map[string]int)
	if err := json.Unmarshal([]byte(profileJSON), &profile); err != nil {
		return nil, fmt.Errorf("failed to decode keyword profile: %w", err)
	}
	return profile, nil
}

func (r *userRepository) GetUserCount() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get user count: %w", err)
	}
	return count, nil
}

func requireRowAffected(result sql.Result, entity string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%s %w", entity, ErrNotFound)
	}
	return nil
}
