package model

import "time"

// Preferences holds per-user settings. New profiles default to
// notifications on and the "auto" theme.
type Preferences struct {
	Notifications bool   `json:"notifications"`
	Theme         string `json:"theme"`
}

// UserProfile extends the authenticated identity with household membership
// and preferences. The ID is the identity subject and never changes.
type UserProfile struct {
	ID           string      `json:"id"`
	Email        string      `json:"email"`
	DisplayName  string      `json:"display_name,omitempty"`
	PhotoURL     string      `json:"photo_url,omitempty"`
	HouseholdIDs []string    `json:"household_ids"`
	Preferences  Preferences `json:"preferences"`
	PasswordHash string      `json:"-"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}
