package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/ourhaus/ourhaus/internal/model"
)

type HomeStore struct {
	db *sql.DB
}

func NewHomeStore(db *sql.DB) *HomeStore {
	return &HomeStore{db: db}
}

func scanHome(scanner interface{ Scan(...any) error }) (*model.Home, error) {
	var h model.Home
	err := scanner.Scan(
		&h.ID, &h.Address.Street, &h.Address.City, &h.Address.State,
		&h.Address.ZipCode, &h.Address.Country, &h.Nickname, &h.PhotoURL,
		&h.CurrentOwnerHouseholdID, &h.CreatedAt, &h.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func scanHomeAccess(scanner interface{ Scan(...any) error }) (*model.HomeAccess, error) {
	var a model.HomeAccess
	var expiresAt sql.NullTime
	err := scanner.Scan(
		&a.HomeID, &a.HouseholdID, &a.Role, &a.GrantedBy, &a.GrantedAt,
		&expiresAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if !a.Role.Valid() {
		return nil, fmt.Errorf("%w: access role %q", ErrMalformedRecord, a.Role)
	}
	if expiresAt.Valid {
		a.ExpiresAt = &expiresAt.Time
	}
	return &a, nil
}

const homeCols = `id, street, city, state, zip_code, country, nickname, photo_url, current_owner_household_id, created_at, updated_at`
const homeAccessCols = `home_id, household_id, role, granted_by, granted_at, expires_at, created_at, updated_at`

// Create inserts a home and grants its owning household owner access in one
// transaction. A home never exists without an access path to it.
func (s *HomeStore) Create(id string, addr model.Address, nickname, ownerHouseholdID, createdBy string, now time.Time) (*model.Home, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO homes (id, street, city, state, zip_code, country, nickname, current_owner_household_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, addr.Street, addr.City, addr.State, addr.ZipCode, addr.Country, nickname, ownerHouseholdID,
	); err != nil {
		return nil, fmt.Errorf("insert home: %w", err)
	}
	if _, err := tx.Exec(
		`INSERT INTO home_access (home_id, household_id, role, granted_by, granted_at)
		 VALUES (?, ?, ?, ?, ?)`,
		id, ownerHouseholdID, model.AccessOwner, createdBy, now,
	); err != nil {
		return nil, fmt.Errorf("insert owner access: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetByID(id)
}

func (s *HomeStore) GetByID(id string) (*model.Home, error) {
	row := s.db.QueryRow(`SELECT `+homeCols+` FROM homes WHERE id = ?`, id)
	h, err := scanHome(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get home: %w", err)
	}
	return h, nil
}

// ListForUser returns homes reachable through any of the user's households'
// unexpired access grants.
func (s *HomeStore) ListForUser(userID string, now time.Time) ([]model.Home, error) {
	rows, err := s.db.Query(
		`SELECT DISTINCT h.id, h.street, h.city, h.state, h.zip_code, h.country,
		        h.nickname, h.photo_url, h.current_owner_household_id, h.created_at, h.updated_at
		 FROM homes h
		 JOIN home_access ha ON h.id = ha.home_id
		 JOIN household_members hm ON ha.household_id = hm.household_id
		 WHERE hm.user_id = ? AND (ha.expires_at IS NULL OR ha.expires_at > ?)
		 ORDER BY h.created_at ASC`,
		userID, now,
	)
	if err != nil {
		return nil, fmt.Errorf("list homes for user: %w", err)
	}
	defer rows.Close()

	var homes []model.Home
	for rows.Next() {
		h, err := scanHome(rows)
		if err != nil {
			return nil, fmt.Errorf("scan home: %w", err)
		}
		homes = append(homes, *h)
	}
	return homes, rows.Err()
}

// AccessForUser returns the strongest unexpired access the user holds on the
// home through any household, or nil when no grant reaches them.
func (s *HomeStore) AccessForUser(homeID, userID string, now time.Time) (*model.HomeAccess, error) {
	rows, err := s.db.Query(
		`SELECT ha.home_id, ha.household_id, ha.role, ha.granted_by, ha.granted_at,
		        ha.expires_at, ha.created_at, ha.updated_at
		 FROM home_access ha
		 JOIN household_members hm ON ha.household_id = hm.household_id
		 WHERE ha.home_id = ? AND hm.user_id = ? AND (ha.expires_at IS NULL OR ha.expires_at > ?)`,
		homeID, userID, now,
	)
	if err != nil {
		return nil, fmt.Errorf("access for user: %w", err)
	}
	defer rows.Close()

	var best *model.HomeAccess
	for rows.Next() {
		a, err := scanHomeAccess(rows)
		if err != nil {
			return nil, fmt.Errorf("scan access: %w", err)
		}
		if best == nil || accessRank(a.Role) > accessRank(best.Role) {
			best = a
		}
	}
	return best, rows.Err()
}

func accessRank(r model.AccessRole) int {
	switch r {
	case model.AccessOwner:
		return 3
	case model.AccessMember:
		return 2
	case model.AccessViewer:
		return 1
	}
	return 0
}

// GrantAccess gives a household an access level on a home, optionally
// time-limited (contractor style grants).
func (s *HomeStore) GrantAccess(homeID, householdID string, role model.AccessRole, grantedBy string, expiresAt *time.Time, now time.Time) error {
	_, err := s.db.Exec(
		`INSERT INTO home_access (home_id, household_id, role, granted_by, granted_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(home_id, household_id) DO UPDATE SET
		   role = excluded.role, granted_by = excluded.granted_by,
		   granted_at = excluded.granted_at, expires_at = excluded.expires_at,
		   updated_at = datetime('now')`,
		homeID, householdID, role, grantedBy, now, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("grant access: %w", err)
	}
	return nil
}

// RevokeAccess deletes a household's access row. Access is row-existence,
// so deletion is the revocation.
func (s *HomeStore) RevokeAccess(homeID, householdID string) (bool, error) {
	result, err := s.db.Exec(
		`DELETE FROM home_access WHERE home_id = ? AND household_id = ?`,
		homeID, householdID,
	)
	if err != nil {
		return false, fmt.Errorf("revoke access: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// Transfer moves ownership to another household in one transaction: the
// owner pointer flips, the old owner's access row is deleted (explicit
// revocation), the new owner gets an owner grant, and a transfer event is
// appended to the timeline.
func (s *HomeStore) Transfer(homeID, oldHouseholdID, newHouseholdID, actingUserID, eventID string, now time.Time) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`UPDATE homes SET current_owner_household_id = ?, updated_at = datetime('now') WHERE id = ?`,
		newHouseholdID, homeID,
	); err != nil {
		return fmt.Errorf("update owner: %w", err)
	}
	if _, err := tx.Exec(
		`DELETE FROM home_access WHERE home_id = ? AND household_id = ?`,
		homeID, oldHouseholdID,
	); err != nil {
		return fmt.Errorf("revoke old owner access: %w", err)
	}
	if _, err := tx.Exec(
		`INSERT INTO home_access (home_id, household_id, role, granted_by, granted_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(home_id, household_id) DO UPDATE SET
		   role = excluded.role, granted_by = excluded.granted_by,
		   granted_at = excluded.granted_at, expires_at = NULL,
		   updated_at = datetime('now')`,
		homeID, newHouseholdID, model.AccessOwner, actingUserID, now,
	); err != nil {
		return fmt.Errorf("grant new owner access: %w", err)
	}
	if _, err := tx.Exec(
		`INSERT INTO events (id, home_id, type, title, description, occurred_at, created_by, created_by_household_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		eventID, homeID, model.EventTransfer, "Ownership transferred",
		fmt.Sprintf("Ownership transferred to household %s", newHouseholdID),
		now, actingUserID, oldHouseholdID,
	); err != nil {
		return fmt.Errorf("append transfer event: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
