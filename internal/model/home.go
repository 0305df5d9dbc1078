package model

import "time"

// Address is the physical location of a home.
type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zip_code"`
	Country string `json:"country"`
}

// Home is a long-lived physical property. Its history persists across
// ownership changes; CurrentOwnerHouseholdID only names today's owner.
type Home struct {
	ID                      string    `json:"id"`
	Address                 Address   `json:"address"`
	Nickname                string    `json:"nickname,omitempty"`
	PhotoURL                string    `json:"photo_url,omitempty"`
	CurrentOwnerHouseholdID string    `json:"current_owner_household_id"`
	CreatedAt               time.Time `json:"created_at"`
	UpdatedAt               time.Time `json:"updated_at"`
}

// AccessRole is a household's access level on a home. It is distinct from
// the household-internal Role.
type AccessRole string

const (
	AccessOwner  AccessRole = "owner"
	AccessMember AccessRole = "member"
	AccessViewer AccessRole = "viewer"
)

func (r AccessRole) Valid() bool {
	switch r {
	case AccessOwner, AccessMember, AccessViewer:
		return true
	}
	return false
}

// CanWrite reports whether this access level permits recording events and
// snapshots on the home.
func (r AccessRole) CanWrite() bool {
	return r == AccessOwner || r == AccessMember
}

// HomeAccess grants one household an access level on one home. Access
// exists only while the row exists; revocation is deletion.
type HomeAccess struct {
	HomeID      string     `json:"home_id"`
	HouseholdID string     `json:"household_id"`
	Role        AccessRole `json:"role"`
	GrantedBy   string     `json:"granted_by"`
	GrantedAt   time.Time  `json:"granted_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// EventType classifies timeline entries.
type EventType string

const (
	EventMaintenance EventType = "maintenance"
	EventRepair      EventType = "repair"
	EventUpgrade     EventType = "upgrade"
	EventInspection  EventType = "inspection"
	EventDocument    EventType = "document"
	EventNote        EventType = "note"
	EventTransfer    EventType = "transfer"
	EventCorrection  EventType = "correction"
)

func (t EventType) Valid() bool {
	switch t {
	case EventMaintenance, EventRepair, EventUpgrade, EventInspection,
		EventDocument, EventNote, EventTransfer, EventCorrection:
		return true
	}
	return false
}

// Cost is an optional amount attached to an event.
type Cost struct {
	Amount   int64  `json:"amount"` // minor units
	Currency string `json:"currency"`
}

// Event is one append-only entry in a home's timeline. Events are never
// updated or deleted; corrections are new events referencing the original.
type Event struct {
	ID                   string    `json:"id"`
	HomeID               string    `json:"home_id"`
	Type                 EventType `json:"type"`
	Category             string    `json:"category,omitempty"`
	Title                string    `json:"title"`
	Description          string    `json:"description,omitempty"`
	OccurredAt           time.Time `json:"occurred_at"`
	CreatedBy            string    `json:"created_by"`
	CreatedByHouseholdID string    `json:"created_by_household_id"`
	CorrectsEventID      *string   `json:"corrects_event_id,omitempty"`
	SnapshotID           *string   `json:"snapshot_id,omitempty"`
	Cost                 *Cost     `json:"cost,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
}

// SnapshotType classifies baseline snapshots.
type SnapshotType string

const (
	SnapshotMoveIn     SnapshotType = "move-in"
	SnapshotInspection SnapshotType = "inspection"
	SnapshotTransfer   SnapshotType = "transfer"
	SnapshotAnnual     SnapshotType = "annual"
	SnapshotCustom     SnapshotType = "custom"
)

func (t SnapshotType) Valid() bool {
	switch t {
	case SnapshotMoveIn, SnapshotInspection, SnapshotTransfer, SnapshotAnnual, SnapshotCustom:
		return true
	}
	return false
}

// SnapshotFile is a content-addressed attachment: Hash is the hex SHA-256
// of the file content.
type SnapshotFile struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	Hash        string `json:"hash"`
}

// Snapshot captures a home's state at a point in time. It may be edited
// while Sealed is false; sealing is one-way and freezes it permanently.
type Snapshot struct {
	ID                   string         `json:"id"`
	HomeID               string         `json:"home_id"`
	Title                string         `json:"title"`
	Description          string         `json:"description,omitempty"`
	TakenAt              time.Time      `json:"taken_at"`
	Type                 SnapshotType   `json:"type"`
	Sealed               bool           `json:"sealed"`
	SealedAt             *time.Time     `json:"sealed_at,omitempty"`
	SealedBy             *string        `json:"sealed_by,omitempty"`
	CreatedBy            string         `json:"created_by"`
	CreatedByHouseholdID string         `json:"created_by_household_id"`
	Files                []SnapshotFile `json:"files"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
}
