package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/ourhaus/ourhaus/internal/model"
)

// InviteTTL is how long an invitation stays acceptable after issue.
const InviteTTL = 7 * 24 * time.Hour

type InvitationStore struct {
	db *sql.DB
}

func NewInvitationStore(db *sql.DB) *InvitationStore {
	return &InvitationStore{db: db}
}

func scanInvitation(scanner interface{ Scan(...any) error }) (*model.HouseholdInvitation, error) {
	var inv model.HouseholdInvitation
	var acceptedBy sql.NullString
	var acceptedAt sql.NullTime

	err := scanner.Scan(
		&inv.ID, &inv.HouseholdID, &inv.Token, &inv.Email, &inv.Role,
		&inv.InvitedBy, &inv.InvitedAt, &inv.ExpiresAt, &inv.Status,
		&acceptedBy, &acceptedAt, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if !inv.Role.Valid() {
		return nil, fmt.Errorf("%w: invitation role %q", ErrMalformedRecord, inv.Role)
	}
	switch inv.Status {
	case model.InvitationPending, model.InvitationAccepted, model.InvitationExpired, model.InvitationCancelled:
	default:
		return nil, fmt.Errorf("%w: invitation status %q", ErrMalformedRecord, inv.Status)
	}
	if acceptedBy.Valid {
		inv.AcceptedBy = &acceptedBy.String
	}
	if acceptedAt.Valid {
		inv.AcceptedAt = &acceptedAt.Time
	}
	return &inv, nil
}

const invitationCols = `id, household_id, token, email, role, invited_by, invited_at, expires_at, status, accepted_by, accepted_at, created_at, updated_at`

// Create inserts a pending invitation expiring InviteTTL after now.
// The token carries a unique index, so a collision fails the insert rather
// than silently aliasing two invitations.
func (s *InvitationStore) Create(id, householdID, tok, email string, role model.Role, invitedBy string, now time.Time) (*model.HouseholdInvitation, error) {
	_, err := s.db.Exec(
		`INSERT INTO invitations (id, household_id, token, email, role, invited_by, invited_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, householdID, tok, email, role, invitedBy, now, now.Add(InviteTTL),
	)
	if err != nil {
		return nil, fmt.Errorf("insert invitation: %w", err)
	}
	return s.GetByID(id)
}

func (s *InvitationStore) GetByID(id string) (*model.HouseholdInvitation, error) {
	row := s.db.QueryRow(`SELECT `+invitationCols+` FROM invitations WHERE id = ?`, id)
	inv, err := scanInvitation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get invitation: %w", err)
	}
	return inv, nil
}

// GetByToken resolves an invitation directly through the unique token index,
// regardless of status. Callers inspect status and expiry themselves so they
// can report distinct failure reasons.
func (s *InvitationStore) GetByToken(tok string) (*model.HouseholdInvitation, error) {
	row := s.db.QueryRow(`SELECT `+invitationCols+` FROM invitations WHERE token = ?`, tok)
	inv, err := scanInvitation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get invitation by token: %w", err)
	}
	return inv, nil
}

func (s *InvitationStore) ListByHousehold(householdID string) ([]model.HouseholdInvitation, error) {
	rows, err := s.db.Query(
		`SELECT `+invitationCols+` FROM invitations WHERE household_id = ? ORDER BY invited_at DESC`,
		householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("list invitations: %w", err)
	}
	defer rows.Close()

	var invs []model.HouseholdInvitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invitation: %w", err)
		}
		invs = append(invs, *inv)
	}
	return invs, rows.Err()
}

// Accept consumes a pending invitation and adds the accepter to the
// household in one transaction. The status flip is the guarding write:
// it only matches rows still pending, so when two accepts race, exactly one
// sees a row updated and the loser's membership insert is rolled back.
// Returns false if the invitation was no longer pending.
func (s *InvitationStore) Accept(id, accepterID string, now time.Time) (bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		`UPDATE invitations SET status = ?, accepted_by = ?, accepted_at = ?, updated_at = datetime('now')
		 WHERE id = ? AND status = ?`,
		model.InvitationAccepted, accepterID, now, id, model.InvitationPending,
	)
	if err != nil {
		return false, fmt.Errorf("mark accepted: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	var householdID string
	var role model.Role
	if err := tx.QueryRow(
		`SELECT household_id, role FROM invitations WHERE id = ?`, id,
	).Scan(&householdID, &role); err != nil {
		return false, fmt.Errorf("read accepted invitation: %w", err)
	}

	if _, err := tx.Exec(
		`INSERT INTO household_members (household_id, user_id, role, joined_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(household_id, user_id) DO NOTHING`,
		householdID, accepterID, role, now,
	); err != nil {
		return false, fmt.Errorf("insert member: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}

// Cancel moves a pending invitation to cancelled. Returns false if the
// invitation had already left pending.
func (s *InvitationStore) Cancel(id string) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE invitations SET status = ?, updated_at = datetime('now') WHERE id = ? AND status = ?`,
		model.InvitationCancelled, id, model.InvitationPending,
	)
	if err != nil {
		return false, fmt.Errorf("cancel invitation: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// MarkExpired sweeps pending invitations whose expiry has passed. Expiry is
// still checked at acceptance time; the sweep only keeps listings tidy.
func (s *InvitationStore) MarkExpired(now time.Time) (int64, error) {
	result, err := s.db.Exec(
		`UPDATE invitations SET status = ?, updated_at = datetime('now') WHERE status = ? AND expires_at <= ?`,
		model.InvitationExpired, model.InvitationPending, now,
	)
	if err != nil {
		return 0, fmt.Errorf("mark expired invitations: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return count, nil
}
