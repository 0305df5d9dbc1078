package store

import (
	"database/sql"
	"fmt"

	"github.com/ourhaus/ourhaus/internal/model"
)

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

func scanUser(scanner interface{ Scan(...any) error }) (*model.UserProfile, error) {
	var u model.UserProfile
	var notifications int
	err := scanner.Scan(
		&u.ID, &u.Email, &u.DisplayName, &u.PhotoURL, &u.PasswordHash,
		&notifications, &u.Preferences.Theme, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.Preferences.Notifications = notifications != 0
	return &u, nil
}

const userCols = `id, email, display_name, photo_url, password_hash, notifications_enabled, theme, created_at, updated_at`

// Create inserts a new user profile with default preferences.
func (s *UserStore) Create(id, email, displayName, passwordHash string) (*model.UserProfile, error) {
	_, err := s.db.Exec(
		`INSERT INTO users (id, email, display_name, password_hash) VALUES (?, ?, ?, ?)`,
		id, email, displayName, passwordHash,
	)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return s.GetByID(id)
}

// Ensure creates a profile for the given identity if none exists and returns
// the stored row either way. Safe to call concurrently for the same id: the
// insert is a no-op when the row already exists.
func (s *UserStore) Ensure(id, email, displayName, photoURL string) (*model.UserProfile, error) {
	_, err := s.db.Exec(
		`INSERT INTO users (id, email, display_name, photo_url) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		id, email, displayName, photoURL,
	)
	if err != nil {
		return nil, fmt.Errorf("ensure user: %w", err)
	}
	return s.GetByID(id)
}

func (s *UserStore) GetByID(id string) (*model.UserProfile, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	u.HouseholdIDs, err = s.HouseholdIDs(id)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *UserStore) GetByEmail(email string) (*model.UserProfile, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE email = ?`, email)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	u.HouseholdIDs, err = s.HouseholdIDs(u.ID)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// HouseholdIDs returns the households the user belongs to, oldest first.
// Derived from membership rows, so it can never drift from the member set.
func (s *UserStore) HouseholdIDs(userID string) ([]string, error) {
	rows, err := s.db.Query(
		`SELECT household_id FROM household_members WHERE user_id = ? ORDER BY joined_at ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list household ids: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan household id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UpdatePreferences sets the user's notification flag and theme.
func (s *UserStore) UpdatePreferences(id string, notifications bool, theme string) (*model.UserProfile, error) {
	n := 0
	if notifications {
		n = 1
	}
	_, err := s.db.Exec(
		`UPDATE users SET notifications_enabled = ?, theme = ?, updated_at = datetime('now') WHERE id = ?`,
		n, theme, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update preferences: %w", err)
	}
	return s.GetByID(id)
}
