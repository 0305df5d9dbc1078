package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/ourhaus/ourhaus/internal/model"
)

type SnapshotStore struct {
	db *sql.DB
}

func NewSnapshotStore(db *sql.DB) *SnapshotStore {
	return &SnapshotStore{db: db}
}

func scanSnapshot(scanner interface{ Scan(...any) error }) (*model.Snapshot, error) {
	var sn model.Snapshot
	var sealed int
	var sealedAt sql.NullTime
	var sealedBy sql.NullString

	err := scanner.Scan(
		&sn.ID, &sn.HomeID, &sn.Title, &sn.Description, &sn.TakenAt, &sn.Type,
		&sealed, &sealedAt, &sealedBy, &sn.CreatedBy, &sn.CreatedByHouseholdID,
		&sn.CreatedAt, &sn.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if !sn.Type.Valid() {
		return nil, fmt.Errorf("%w: snapshot type %q", ErrMalformedRecord, sn.Type)
	}
	sn.Sealed = sealed != 0
	if sealedAt.Valid {
		sn.SealedAt = &sealedAt.Time
	}
	if sealedBy.Valid {
		sn.SealedBy = &sealedBy.String
	}
	return &sn, nil
}

const snapshotCols = `id, home_id, title, description, taken_at, type, sealed, sealed_at, sealed_by, created_by, created_by_household_id, created_at, updated_at`

func (s *SnapshotStore) Create(sn model.Snapshot) (*model.Snapshot, error) {
	_, err := s.db.Exec(
		`INSERT INTO snapshots (id, home_id, title, description, taken_at, type, created_by, created_by_household_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sn.ID, sn.HomeID, sn.Title, sn.Description, sn.TakenAt, sn.Type,
		sn.CreatedBy, sn.CreatedByHouseholdID,
	)
	if err != nil {
		return nil, fmt.Errorf("insert snapshot: %w", err)
	}
	return s.GetByID(sn.ID)
}

func (s *SnapshotStore) GetByID(id string) (*model.Snapshot, error) {
	row := s.db.QueryRow(`SELECT `+snapshotCols+` FROM snapshots WHERE id = ?`, id)
	sn, err := scanSnapshot(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	sn.Files, err = s.listFiles(id)
	if err != nil {
		return nil, err
	}
	return sn, nil
}

func (s *SnapshotStore) listFiles(snapshotID string) ([]model.SnapshotFile, error) {
	rows, err := s.db.Query(
		`SELECT name, url, content_type, size, hash FROM snapshot_files WHERE snapshot_id = ? ORDER BY name ASC`,
		snapshotID,
	)
	if err != nil {
		return nil, fmt.Errorf("list snapshot files: %w", err)
	}
	defer rows.Close()

	files := []model.SnapshotFile{}
	for rows.Next() {
		var f model.SnapshotFile
		if err := rows.Scan(&f.Name, &f.URL, &f.ContentType, &f.Size, &f.Hash); err != nil {
			return nil, fmt.Errorf("scan snapshot file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

func (s *SnapshotStore) ListByHome(homeID string) ([]model.Snapshot, error) {
	rows, err := s.db.Query(
		`SELECT `+snapshotCols+` FROM snapshots WHERE home_id = ? ORDER BY taken_at DESC`,
		homeID,
	)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []model.Snapshot
	for rows.Next() {
		sn, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snaps = append(snaps, *sn)
	}
	return snaps, rows.Err()
}

// Update edits an unsealed snapshot's metadata. The sealed guard is in the
// WHERE clause, so a snapshot sealed by a concurrent writer cannot be
// touched. Returns false when the snapshot was sealed (or absent).
func (s *SnapshotStore) Update(id, title, description string, takenAt time.Time) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE snapshots SET title = ?, description = ?, taken_at = ?, updated_at = datetime('now')
		 WHERE id = ? AND sealed = 0`,
		title, description, takenAt, id,
	)
	if err != nil {
		return false, fmt.Errorf("update snapshot: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// AddFile attaches a content-addressed file to an unsealed snapshot. The
// sealed check and the insert share one transaction so a seal racing in
// between cannot admit a late file. Returns false when sealed.
func (s *SnapshotStore) AddFile(snapshotID string, f model.SnapshotFile) (bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var sealed int
	err = tx.QueryRow(`SELECT sealed FROM snapshots WHERE id = ?`, snapshotID).Scan(&sealed)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check sealed: %w", err)
	}
	if sealed != 0 {
		return false, nil
	}

	if _, err := tx.Exec(
		`INSERT INTO snapshot_files (snapshot_id, name, url, content_type, size, hash)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		snapshotID, f.Name, f.URL, f.ContentType, f.Size, f.Hash,
	); err != nil {
		return false, fmt.Errorf("insert snapshot file: %w", err)
	}
	if _, err := tx.Exec(
		`UPDATE snapshots SET updated_at = datetime('now') WHERE id = ?`, snapshotID,
	); err != nil {
		return false, fmt.Errorf("touch snapshot: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}

// Seal flips sealed from 0 to 1, recording who sealed and when. One-way:
// the guard matches only unsealed rows, so a second seal is a no-op.
// Returns false when the snapshot was already sealed (or absent).
func (s *SnapshotStore) Seal(id, sealedBy string, now time.Time) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE snapshots SET sealed = 1, sealed_at = ?, sealed_by = ?, updated_at = datetime('now')
		 WHERE id = ? AND sealed = 0`,
		now, sealedBy, id,
	)
	if err != nil {
		return false, fmt.Errorf("seal snapshot: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}
