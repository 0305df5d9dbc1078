// Package homelog owns Home, HomeAccess, Event, and Snapshot mutations and
// enforces the ledger invariants: events are create-only, sealed snapshots
// are permanently immutable, and home access lives or dies with its grant
// row.
package homelog

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ourhaus/ourhaus/internal/model"
	"github.com/ourhaus/ourhaus/internal/store"
	"github.com/ourhaus/ourhaus/internal/token"
)

var (
	ErrValidation    = errors.New("validation failed")
	ErrNotAuthorized = errors.New("not authorized")
	ErrNotFound      = errors.New("not found")

	// ErrSealed: the snapshot has been sealed and can never change again.
	ErrSealed = errors.New("snapshot is sealed")

	// ErrHashMismatch: a caller-supplied content hash disagrees with the
	// hash of the uploaded bytes.
	ErrHashMismatch = errors.New("content hash mismatch")
)

type Service struct {
	homes      *store.HomeStore
	events     *store.EventStore
	snapshots  *store.SnapshotStore
	households *store.HouseholdStore
	logger     *slog.Logger
	now        func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(homes *store.HomeStore, events *store.EventStore, snapshots *store.SnapshotStore, households *store.HouseholdStore, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		homes:      homes,
		events:     events,
		snapshots:  snapshots,
		households: households,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateHome registers a home owned by the given household. The requester
// must be an owner or editor of that household. Owner access for the
// household is granted in the same write.
func (s *Service) CreateHome(userID, householdID string, addr model.Address, nickname string) (*model.Home, error) {
	if strings.TrimSpace(addr.Street) == "" || strings.TrimSpace(addr.City) == "" {
		return nil, fmt.Errorf("%w: street and city are required", ErrValidation)
	}
	member, err := s.households.GetMember(householdID, userID)
	if err != nil {
		return nil, err
	}
	if member == nil || !member.Role.CanInvite() {
		return nil, ErrNotAuthorized
	}

	h, err := s.homes.Create(token.NewID(), addr, nickname, householdID, userID, s.now())
	if err != nil {
		return nil, err
	}
	s.logger.Info("home created", "home_id", h.ID, "household_id", householdID)
	return h, nil
}

// GetHome returns a home the user can reach through any access grant.
func (s *Service) GetHome(homeID, userID string) (*model.Home, error) {
	if _, err := s.requireAccess(homeID, userID); err != nil {
		return nil, err
	}
	return s.homes.GetByID(homeID)
}

// ListHomes returns all homes the user can reach.
func (s *Service) ListHomes(userID string) ([]model.Home, error) {
	return s.homes.ListForUser(userID, s.now())
}

// requireAccess resolves the user's access on the home, failing with
// ErrNotFound for missing homes and ErrNotAuthorized for unreachable ones.
func (s *Service) requireAccess(homeID, userID string) (*model.HomeAccess, error) {
	h, err := s.homes.GetByID(homeID)
	if err != nil {
		return nil, err
	}
	if h == nil {
		return nil, fmt.Errorf("%w: home %s", ErrNotFound, homeID)
	}
	access, err := s.homes.AccessForUser(homeID, userID, s.now())
	if err != nil {
		return nil, err
	}
	if access == nil {
		return nil, ErrNotAuthorized
	}
	return access, nil
}

func (s *Service) requireWriteAccess(homeID, userID string) (*model.HomeAccess, error) {
	access, err := s.requireAccess(homeID, userID)
	if err != nil {
		return nil, err
	}
	if !access.Role.CanWrite() {
		return nil, ErrNotAuthorized
	}
	return access, nil
}

// GrantAccess gives another household access to a home, optionally expiring.
// Only holders of owner access may grant.
func (s *Service) GrantAccess(homeID, actingUserID, householdID string, role model.AccessRole, expiresAt *time.Time) error {
	if !role.Valid() {
		return fmt.Errorf("%w: unknown access role %q", ErrValidation, role)
	}
	access, err := s.requireAccess(homeID, actingUserID)
	if err != nil {
		return err
	}
	if access.Role != model.AccessOwner {
		return ErrNotAuthorized
	}
	hh, err := s.households.GetByID(householdID)
	if err != nil {
		return err
	}
	if hh == nil {
		return fmt.Errorf("%w: household %s", ErrNotFound, householdID)
	}
	return s.homes.GrantAccess(homeID, householdID, role, actingUserID, expiresAt, s.now())
}

// RevokeAccess removes a household's grant. Owner access required; the
// owning household's own grant cannot be revoked (transfer ownership
// instead).
func (s *Service) RevokeAccess(homeID, actingUserID, householdID string) error {
	access, err := s.requireAccess(homeID, actingUserID)
	if err != nil {
		return err
	}
	if access.Role != model.AccessOwner {
		return ErrNotAuthorized
	}
	h, err := s.homes.GetByID(homeID)
	if err != nil {
		return err
	}
	if h == nil {
		return fmt.Errorf("%w: home %s", ErrNotFound, homeID)
	}
	if h.CurrentOwnerHouseholdID == householdID {
		return fmt.Errorf("%w: cannot revoke the owning household", ErrValidation)
	}
	revoked, err := s.homes.RevokeAccess(homeID, householdID)
	if err != nil {
		return err
	}
	if !revoked {
		return fmt.Errorf("%w: no access grant for household %s", ErrNotFound, householdID)
	}
	return nil
}

// TransferOwnership hands the home to another household. The old owner's
// access row is deleted in the same transaction that flips the owner
// pointer, and a transfer event lands on the timeline.
func (s *Service) TransferOwnership(homeID, actingUserID, newHouseholdID string) error {
	access, err := s.requireAccess(homeID, actingUserID)
	if err != nil {
		return err
	}
	if access.Role != model.AccessOwner {
		return ErrNotAuthorized
	}
	h, err := s.homes.GetByID(homeID)
	if err != nil {
		return err
	}
	if h == nil {
		return fmt.Errorf("%w: home %s", ErrNotFound, homeID)
	}
	if h.CurrentOwnerHouseholdID == newHouseholdID {
		return fmt.Errorf("%w: household already owns this home", ErrValidation)
	}
	hh, err := s.households.GetByID(newHouseholdID)
	if err != nil {
		return err
	}
	if hh == nil {
		return fmt.Errorf("%w: household %s", ErrNotFound, newHouseholdID)
	}

	err = s.homes.Transfer(homeID, h.CurrentOwnerHouseholdID, newHouseholdID, actingUserID, token.NewID(), s.now())
	if err != nil {
		return err
	}
	s.logger.Info("home ownership transferred",
		"home_id", homeID, "from", h.CurrentOwnerHouseholdID, "to", newHouseholdID)
	return nil
}

// EventInput carries caller-supplied fields for a new timeline event.
type EventInput struct {
	Type        model.EventType
	Category    string
	Title       string
	Description string
	OccurredAt  time.Time
	Cost        *model.Cost
	SnapshotID  *string
}

// AppendEvent records a new timeline entry. There is no update or delete
// counterpart anywhere in the repo: the timeline only grows.
func (s *Service) AppendEvent(homeID, userID string, in EventInput) (*model.Event, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if !in.Type.Valid() || in.Type == model.EventCorrection || in.Type == model.EventTransfer {
		return nil, fmt.Errorf("%w: event type %q", ErrValidation, in.Type)
	}
	access, err := s.requireWriteAccess(homeID, userID)
	if err != nil {
		return nil, err
	}
	occurredAt := in.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = s.now()
	}
	return s.events.Append(model.Event{
		ID:                   token.NewID(),
		HomeID:               homeID,
		Type:                 in.Type,
		Category:             in.Category,
		Title:                in.Title,
		Description:          in.Description,
		OccurredAt:           occurredAt,
		CreatedBy:            userID,
		CreatedByHouseholdID: access.HouseholdID,
		Cost:                 in.Cost,
		SnapshotID:           in.SnapshotID,
	})
}

// AppendCorrection records a correction event pointing at an existing event
// on the same home. The original row is untouched.
func (s *Service) AppendCorrection(homeID, userID, correctsEventID, title, description string) (*model.Event, error) {
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidation)
	}
	access, err := s.requireWriteAccess(homeID, userID)
	if err != nil {
		return nil, err
	}
	original, err := s.events.GetByID(correctsEventID)
	if err != nil {
		return nil, err
	}
	if original == nil {
		return nil, fmt.Errorf("%w: event %s", ErrNotFound, correctsEventID)
	}
	if original.HomeID != homeID {
		return nil, fmt.Errorf("%w: corrected event belongs to another home", ErrValidation)
	}
	return s.events.Append(model.Event{
		ID:                   token.NewID(),
		HomeID:               homeID,
		Type:                 model.EventCorrection,
		Title:                title,
		Description:          description,
		OccurredAt:           s.now(),
		CreatedBy:            userID,
		CreatedByHouseholdID: access.HouseholdID,
		CorrectsEventID:      &correctsEventID,
	})
}

// Timeline returns the home's events, most recent occurrence first.
func (s *Service) Timeline(homeID, userID string) ([]model.Event, error) {
	if _, err := s.requireAccess(homeID, userID); err != nil {
		return nil, err
	}
	return s.events.ListByHome(homeID)
}

// CreateSnapshot starts an unsealed snapshot.
func (s *Service) CreateSnapshot(homeID, userID, title, description string, takenAt time.Time, typ model.SnapshotType) (*model.Snapshot, error) {
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if !typ.Valid() {
		return nil, fmt.Errorf("%w: snapshot type %q", ErrValidation, typ)
	}
	access, err := s.requireWriteAccess(homeID, userID)
	if err != nil {
		return nil, err
	}
	if takenAt.IsZero() {
		takenAt = s.now()
	}
	return s.snapshots.Create(model.Snapshot{
		ID:                   token.NewID(),
		HomeID:               homeID,
		Title:                title,
		Description:          description,
		TakenAt:              takenAt,
		Type:                 typ,
		CreatedBy:            userID,
		CreatedByHouseholdID: access.HouseholdID,
	})
}

// GetSnapshot returns a snapshot with its files.
func (s *Service) GetSnapshot(homeID, snapshotID, userID string) (*model.Snapshot, error) {
	if _, err := s.requireAccess(homeID, userID); err != nil {
		return nil, err
	}
	sn, err := s.snapshots.GetByID(snapshotID)
	if err != nil {
		return nil, err
	}
	if sn == nil || sn.HomeID != homeID {
		return nil, fmt.Errorf("%w: snapshot %s", ErrNotFound, snapshotID)
	}
	return sn, nil
}

// ListSnapshots returns the home's snapshots, newest first.
func (s *Service) ListSnapshots(homeID, userID string) ([]model.Snapshot, error) {
	if _, err := s.requireAccess(homeID, userID); err != nil {
		return nil, err
	}
	return s.snapshots.ListByHome(homeID)
}

// UpdateSnapshot edits metadata while the snapshot is unsealed.
func (s *Service) UpdateSnapshot(homeID, snapshotID, userID, title, description string, takenAt time.Time) (*model.Snapshot, error) {
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidation)
	}
	sn, err := s.GetSnapshot(homeID, snapshotID, userID)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireWriteAccess(homeID, userID); err != nil {
		return nil, err
	}
	if takenAt.IsZero() {
		takenAt = sn.TakenAt
	}
	ok, err := s.snapshots.Update(snapshotID, title, description, takenAt)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSealed
	}
	return s.snapshots.GetByID(snapshotID)
}

// AddSnapshotFile attaches file content to an unsealed snapshot. The stored
// hash is the hex SHA-256 of the content; when the caller supplies an
// expected hash the upload is verified against it.
func (s *Service) AddSnapshotFile(homeID, snapshotID, userID, name, url, contentType string, content []byte, expectedHash string) (*model.Snapshot, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: file name is required", ErrValidation)
	}
	if _, err := s.GetSnapshot(homeID, snapshotID, userID); err != nil {
		return nil, err
	}
	if _, err := s.requireWriteAccess(homeID, userID); err != nil {
		return nil, err
	}

	sum := sha256.Sum256(content)
	hash := hex.EncodeToString(sum[:])
	if expectedHash != "" && !strings.EqualFold(expectedHash, hash) {
		return nil, fmt.Errorf("%w: got %s", ErrHashMismatch, hash)
	}

	ok, err := s.snapshots.AddFile(snapshotID, model.SnapshotFile{
		Name:        name,
		URL:         url,
		ContentType: contentType,
		Size:        int64(len(content)),
		Hash:        hash,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSealed
	}
	return s.snapshots.GetByID(snapshotID)
}

// SealSnapshot freezes the snapshot permanently. Sealing twice fails with
// ErrSealed; there is no unseal.
func (s *Service) SealSnapshot(homeID, snapshotID, userID string) (*model.Snapshot, error) {
	if _, err := s.GetSnapshot(homeID, snapshotID, userID); err != nil {
		return nil, err
	}
	if _, err := s.requireWriteAccess(homeID, userID); err != nil {
		return nil, err
	}
	ok, err := s.snapshots.Seal(snapshotID, userID, s.now())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSealed
	}
	s.logger.Info("snapshot sealed", "snapshot_id", snapshotID, "sealed_by", userID)
	return s.snapshots.GetByID(snapshotID)
}
