package model

import "time"

// Role is a household membership role.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

// Valid reports whether r is one of the three known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleEditor, RoleViewer:
		return true
	}
	return false
}

// CanInvite reports whether a member with this role may issue invitations.
func (r Role) CanInvite() bool {
	return r == RoleOwner || r == RoleEditor
}

type Household struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	PrimaryContactID string    `json:"primary_contact_id"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// HouseholdMember ties a user to a household at a role. The member rows for
// a household are its authoritative member set; there is no separate id list
// to drift out of sync.
type HouseholdMember struct {
	HouseholdID string    `json:"household_id"`
	UserID      string    `json:"user_id"`
	Role        Role      `json:"role"`
	JoinedAt    time.Time `json:"joined_at"`
}
