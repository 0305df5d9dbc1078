package store

import (
	"database/sql"
	"fmt"

	"github.com/ourhaus/ourhaus/internal/model"
)

// EventStore persists home timeline events. It deliberately exposes no
// update or delete: the events table is an append-only ledger and
// corrections are new rows referencing the corrected event.
type EventStore struct {
	db *sql.DB
}

func NewEventStore(db *sql.DB) *EventStore {
	return &EventStore{db: db}
}

func scanEvent(scanner interface{ Scan(...any) error }) (*model.Event, error) {
	var e model.Event
	var correctsEventID, snapshotID, costCurrency sql.NullString
	var costAmount sql.NullInt64

	err := scanner.Scan(
		&e.ID, &e.HomeID, &e.Type, &e.Category, &e.Title, &e.Description,
		&e.OccurredAt, &e.CreatedBy, &e.CreatedByHouseholdID,
		&correctsEventID, &snapshotID, &costAmount, &costCurrency, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if !e.Type.Valid() {
		return nil, fmt.Errorf("%w: event type %q", ErrMalformedRecord, e.Type)
	}
	if correctsEventID.Valid {
		e.CorrectsEventID = &correctsEventID.String
	}
	if snapshotID.Valid {
		e.SnapshotID = &snapshotID.String
	}
	if costAmount.Valid {
		e.Cost = &model.Cost{Amount: costAmount.Int64, Currency: costCurrency.String}
	}
	return &e, nil
}

const eventCols = `id, home_id, type, category, title, description, occurred_at, created_by, created_by_household_id, corrects_event_id, snapshot_id, cost_amount, cost_currency, created_at`

// Append inserts a new event row.
func (s *EventStore) Append(e model.Event) (*model.Event, error) {
	var costAmount sql.NullInt64
	var costCurrency sql.NullString
	if e.Cost != nil {
		costAmount = sql.NullInt64{Int64: e.Cost.Amount, Valid: true}
		costCurrency = sql.NullString{String: e.Cost.Currency, Valid: true}
	}

	_, err := s.db.Exec(
		`INSERT INTO events (id, home_id, type, category, title, description, occurred_at,
		                     created_by, created_by_household_id, corrects_event_id, snapshot_id,
		                     cost_amount, cost_currency)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.HomeID, e.Type, e.Category, e.Title, e.Description, e.OccurredAt,
		e.CreatedBy, e.CreatedByHouseholdID, e.CorrectsEventID, e.SnapshotID,
		costAmount, costCurrency,
	)
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	return s.GetByID(e.ID)
}

func (s *EventStore) GetByID(id string) (*model.Event, error) {
	row := s.db.QueryRow(`SELECT `+eventCols+` FROM events WHERE id = ?`, id)
	e, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

// ListByHome returns a home's timeline, most recent occurrence first.
func (s *EventStore) ListByHome(homeID string) ([]model.Event, error) {
	rows, err := s.db.Query(
		`SELECT `+eventCols+` FROM events WHERE home_id = ? ORDER BY occurred_at DESC, created_at DESC`,
		homeID,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}
