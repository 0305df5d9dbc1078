// Package membership owns the rules for household creation, invitations,
// and member mutation. Stores are injected so tests run against in-memory
// databases; every multi-write operation is a single store transaction.
package membership

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ourhaus/ourhaus/internal/model"
	"github.com/ourhaus/ourhaus/internal/store"
	"github.com/ourhaus/ourhaus/internal/token"
)

type Service struct {
	users       *store.UserStore
	households  *store.HouseholdStore
	invitations *store.InvitationStore
	logger      *slog.Logger
	now         func() time.Time
}

type Option func(*Service)

// WithClock overrides the service's time source. Tests use this to drive
// invitation expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(users *store.UserStore, households *store.HouseholdStore, invitations *store.InvitationStore, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		users:       users,
		households:  households,
		invitations: invitations,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsureProfile creates a profile for the identity if none exists and
// returns the stored profile either way. Idempotent and safe under
// concurrent calls for the same id.
func (s *Service) EnsureProfile(userID, email, displayName, photoURL string) (*model.UserProfile, error) {
	if userID == "" || strings.TrimSpace(email) == "" {
		return nil, fmt.Errorf("%w: user id and email are required", ErrValidation)
	}
	return s.users.Ensure(userID, strings.TrimSpace(email), displayName, photoURL)
}

// CreateHousehold creates a household owned by ownerID. The household row
// and the owner's membership are written in one transaction, so the two can
// never diverge.
func (s *Service) CreateHousehold(ownerID, name string) (*model.Household, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: household name is required", ErrValidation)
	}
	owner, err := s.users.GetByID(ownerID)
	if err != nil {
		return nil, err
	}
	if owner == nil {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, ownerID)
	}

	h, err := s.households.CreateWithOwner(token.NewID(), name, ownerID, s.now())
	if err != nil {
		return nil, err
	}
	s.logger.Info("household created", "household_id", h.ID, "owner_id", ownerID)
	return h, nil
}

// RenameHousehold changes the household's name. Owner only.
func (s *Service) RenameHousehold(householdID, actingUserID, name string) (*model.Household, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: household name is required", ErrValidation)
	}
	acting, err := s.households.GetMember(householdID, actingUserID)
	if err != nil {
		return nil, err
	}
	if acting == nil || acting.Role != model.RoleOwner {
		return nil, ErrNotAuthorized
	}
	return s.households.Rename(householdID, name)
}

// SetPrimaryContact designates a member as the household's primary contact.
// Owner only; the contact must currently be a member.
func (s *Service) SetPrimaryContact(householdID, actingUserID, contactUserID string) error {
	acting, err := s.households.GetMember(householdID, actingUserID)
	if err != nil {
		return err
	}
	if acting == nil || acting.Role != model.RoleOwner {
		return ErrNotAuthorized
	}
	contact, err := s.households.GetMember(householdID, contactUserID)
	if err != nil {
		return err
	}
	if contact == nil {
		return fmt.Errorf("%w: user %s", ErrMemberNotFound, contactUserID)
	}
	return s.households.SetPrimaryContact(householdID, contactUserID)
}

// UpdatePreferences stores the user's notification and theme choices.
func (s *Service) UpdatePreferences(userID string, notifications bool, theme string) (*model.UserProfile, error) {
	switch theme {
	case "light", "dark", "auto":
	default:
		return nil, fmt.Errorf("%w: unknown theme %q", ErrValidation, theme)
	}
	u, err := s.users.GetByID(userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, userID)
	}
	return s.users.UpdatePreferences(userID, notifications, theme)
}

// GetHousehold returns a household the requester belongs to.
func (s *Service) GetHousehold(householdID, userID string) (*model.Household, error) {
	member, err := s.households.GetMember(householdID, userID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, ErrNotAuthorized
	}
	h, err := s.households.GetByID(householdID)
	if err != nil {
		return nil, err
	}
	if h == nil {
		return nil, fmt.Errorf("%w: household %s", ErrNotFound, householdID)
	}
	return h, nil
}

// ListHouseholds returns the households the user belongs to.
func (s *Service) ListHouseholds(userID string) ([]model.Household, error) {
	return s.households.ListForUser(userID)
}

// ListMembers returns a household's members to one of its members.
func (s *Service) ListMembers(householdID, userID string) ([]model.HouseholdMember, error) {
	requester, err := s.households.GetMember(householdID, userID)
	if err != nil {
		return nil, err
	}
	if requester == nil {
		return nil, ErrNotAuthorized
	}
	return s.households.ListMembers(householdID)
}

// InviteMember issues a pending invitation for email at the given role.
// Owners and editors may invite. An editor issuing an owner invitation is
// allowed, matching the household page's observed behavior.
func (s *Service) InviteMember(householdID, inviterID, email string, role model.Role) (*model.HouseholdInvitation, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrValidation)
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrValidation, role)
	}

	inviter, err := s.households.GetMember(householdID, inviterID)
	if err != nil {
		return nil, err
	}
	if inviter == nil || !inviter.Role.CanInvite() {
		return nil, ErrNotAuthorized
	}

	tok, err := token.New()
	if err != nil {
		return nil, err
	}
	inv, err := s.invitations.Create(token.NewID(), householdID, tok, email, role, inviterID, s.now())
	if err != nil {
		return nil, err
	}
	s.logger.Info("invitation issued",
		"invitation_id", inv.ID, "household_id", householdID, "role", role, "invited_by", inviterID)
	return inv, nil
}

// AcceptInvitation consumes the token and joins the accepter to the
// household. Checks run in a fixed order so each failure mode surfaces its
// own reason: unknown token, already used, expired, then email mismatch.
// The consuming write is a pending-only status flip, so a replayed token
// adds at most one member no matter how the calls interleave.
func (s *Service) AcceptInvitation(tok, accepterID, accepterEmail string) (*model.HouseholdInvitation, error) {
	inv, err := s.invitations.GetByToken(tok)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, ErrInvalidToken
	}
	if inv.Status != model.InvitationPending {
		return nil, fmt.Errorf("%w: status %s", ErrAlreadyUsed, inv.Status)
	}
	now := s.now()
	if !now.Before(inv.ExpiresAt) {
		return nil, ErrExpired
	}
	if !strings.EqualFold(strings.TrimSpace(accepterEmail), inv.Email) {
		return nil, ErrEmailMismatch
	}

	ok, err := s.invitations.Accept(inv.ID, accepterID, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Lost the race to another accept.
		return nil, fmt.Errorf("%w: status %s", ErrAlreadyUsed, model.InvitationAccepted)
	}
	s.logger.Info("invitation accepted",
		"invitation_id", inv.ID, "household_id", inv.HouseholdID, "accepted_by", accepterID)
	return s.invitations.GetByID(inv.ID)
}

// CancelInvitation moves a pending invitation to cancelled. Household
// owners and the original inviter may cancel.
func (s *Service) CancelInvitation(invitationID, actingUserID string) error {
	inv, err := s.invitations.GetByID(invitationID)
	if err != nil {
		return err
	}
	if inv == nil {
		return fmt.Errorf("%w: invitation %s", ErrNotFound, invitationID)
	}

	acting, err := s.households.GetMember(inv.HouseholdID, actingUserID)
	if err != nil {
		return err
	}
	isOwner := acting != nil && acting.Role == model.RoleOwner
	if !isOwner && inv.InvitedBy != actingUserID {
		return ErrNotAuthorized
	}
	if inv.Status != model.InvitationPending {
		return fmt.Errorf("%w: status %s", ErrAlreadyUsed, inv.Status)
	}

	ok, err := s.invitations.Cancel(invitationID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: status changed concurrently", ErrAlreadyUsed)
	}
	return nil
}

// ListInvitations returns a household's invitations to an owner or editor.
func (s *Service) ListInvitations(householdID, userID string) ([]model.HouseholdInvitation, error) {
	requester, err := s.households.GetMember(householdID, userID)
	if err != nil {
		return nil, err
	}
	if requester == nil || !requester.Role.CanInvite() {
		return nil, ErrNotAuthorized
	}
	return s.invitations.ListByHousehold(householdID)
}

// RemoveMember removes targetUserID from the household. Only owners may
// remove, and never themselves, which keeps every household reachable by
// at least one owner through this path.
func (s *Service) RemoveMember(householdID, actingUserID, targetUserID string) error {
	if targetUserID == actingUserID {
		return ErrSelfRemoval
	}

	acting, err := s.households.GetMember(householdID, actingUserID)
	if err != nil {
		return err
	}
	if acting == nil || acting.Role != model.RoleOwner {
		return ErrNotAuthorized
	}

	removed, err := s.households.RemoveMember(householdID, targetUserID)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("%w: user %s", ErrMemberNotFound, targetUserID)
	}
	s.logger.Info("member removed",
		"household_id", householdID, "user_id", targetUserID, "removed_by", actingUserID)
	return nil
}

// UpdateMemberRole changes a member's role. Owner only; owners cannot
// change their own role so a household cannot demote its last owner.
func (s *Service) UpdateMemberRole(householdID, actingUserID, targetUserID string, role model.Role) (*model.HouseholdMember, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrValidation, role)
	}
	if targetUserID == actingUserID {
		return nil, fmt.Errorf("%w: cannot change your own role", ErrValidation)
	}

	acting, err := s.households.GetMember(householdID, actingUserID)
	if err != nil {
		return nil, err
	}
	if acting == nil || acting.Role != model.RoleOwner {
		return nil, ErrNotAuthorized
	}

	target, err := s.households.GetMember(householdID, targetUserID)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, fmt.Errorf("%w: user %s", ErrMemberNotFound, targetUserID)
	}

	return s.households.UpdateMemberRole(householdID, targetUserID, role)
}

// SweepExpired marks long-expired pending invitations expired. Expiry is
// authoritative at acceptance time regardless; this keeps listings honest.
func (s *Service) SweepExpired() (int64, error) {
	return s.invitations.MarkExpired(s.now())
}
