package model

import "time"

// InvitationStatus is the lifecycle state of a household invitation.
// pending is the only non-terminal state; accepted, expired, and cancelled
// are terminal.
type InvitationStatus string

const (
	InvitationPending   InvitationStatus = "pending"
	InvitationAccepted  InvitationStatus = "accepted"
	InvitationExpired   InvitationStatus = "expired"
	InvitationCancelled InvitationStatus = "cancelled"
)

// HouseholdInvitation is a single-use, time-limited credential for joining
// a household at a fixed role. The token is the only thing the invitee holds.
type HouseholdInvitation struct {
	ID          string           `json:"id"`
	HouseholdID string           `json:"household_id"`
	Token       string           `json:"token,omitempty"`
	Email       string           `json:"email"`
	Role        Role             `json:"role"`
	InvitedBy   string           `json:"invited_by"`
	InvitedAt   time.Time        `json:"invited_at"`
	ExpiresAt   time.Time        `json:"expires_at"`
	Status      InvitationStatus `json:"status"`
	AcceptedBy  *string          `json:"accepted_by,omitempty"`
	AcceptedAt  *time.Time       `json:"accepted_at,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}
