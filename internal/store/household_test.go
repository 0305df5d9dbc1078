package store

import (
	"testing"
	"time"

	"github.com/ourhaus/ourhaus/internal/database"
	"github.com/ourhaus/ourhaus/internal/model"
)

func setupHouseholdTestDB(t *testing.T) (*HouseholdStore, *UserStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewHouseholdStore(db), NewUserStore(db)
}

func mustCreateUser(t *testing.T, us *UserStore, id, email string) {
	t.Helper()
	if _, err := us.Create(id, email, "", ""); err != nil {
		t.Fatalf("create user %s: %v", id, err)
	}
}

func TestHouseholdCreateWithOwner(t *testing.T) {
	hs, us := setupHouseholdTestDB(t)
	mustCreateUser(t, us, "u1", "alice@example.com")

	h, err := hs.CreateWithOwner("h1", "Smiths", "u1", time.Now().UTC())
	if err != nil {
		t.Fatalf("create household: %v", err)
	}
	if h.Name != "Smiths" {
		t.Errorf("name = %q, want %q", h.Name, "Smiths")
	}
	if h.PrimaryContactID != "u1" {
		t.Errorf("primary contact = %q, want %q", h.PrimaryContactID, "u1")
	}

	members, err := hs.ListMembers("h1")
	if err != nil {
		t.Fatalf("list members: %v", err)
	}
	if len(members) != 1 {
		t.Fatalf("expected 1 member, got %d", len(members))
	}
	if members[0].UserID != "u1" || members[0].Role != model.RoleOwner {
		t.Errorf("member = %+v, want u1 as owner", members[0])
	}
}

func TestHouseholdGetByIDNotFound(t *testing.T) {
	hs, _ := setupHouseholdTestDB(t)

	h, err := hs.GetByID("missing")
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if h != nil {
		t.Error("expected nil for nonexistent household")
	}
}

func TestHouseholdGetMember(t *testing.T) {
	hs, us := setupHouseholdTestDB(t)
	mustCreateUser(t, us, "u1", "alice@example.com")
	if _, err := hs.CreateWithOwner("h1", "Smiths", "u1", time.Now().UTC()); err != nil {
		t.Fatalf("create: %v", err)
	}

	m, err := hs.GetMember("h1", "u1")
	if err != nil {
		t.Fatalf("get member: %v", err)
	}
	if m == nil || m.Role != model.RoleOwner {
		t.Fatalf("member = %+v, want owner", m)
	}

	missing, err := hs.GetMember("h1", "u2")
	if err != nil {
		t.Fatalf("get missing member: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for non-member")
	}
}

func TestHouseholdRemoveMember(t *testing.T) {
	hs, us := setupHouseholdTestDB(t)
	mustCreateUser(t, us, "u1", "alice@example.com")
	mustCreateUser(t, us, "u2", "bob@example.com")
	now := time.Now().UTC()
	if _, err := hs.CreateWithOwner("h1", "Smiths", "u1", now); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := hs.db.Exec(
		`INSERT INTO household_members (household_id, user_id, role, joined_at) VALUES (?, ?, ?, ?)`,
		"h1", "u2", model.RoleEditor, now,
	); err != nil {
		t.Fatalf("add member: %v", err)
	}

	removed, err := hs.RemoveMember("h1", "u2")
	if err != nil {
		t.Fatalf("remove member: %v", err)
	}
	if !removed {
		t.Fatal("expected removal to report true")
	}

	// Gone from the member set and from the user's household list
	m, err := hs.GetMember("h1", "u2")
	if err != nil {
		t.Fatalf("get member after remove: %v", err)
	}
	if m != nil {
		t.Error("expected nil after remove")
	}
	ids, err := us.HouseholdIDs("u2")
	if err != nil {
		t.Fatalf("household ids: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("household ids = %v, want empty", ids)
	}
}

func TestHouseholdRemoveMemberAbsent(t *testing.T) {
	hs, us := setupHouseholdTestDB(t)
	mustCreateUser(t, us, "u1", "alice@example.com")
	if _, err := hs.CreateWithOwner("h1", "Smiths", "u1", time.Now().UTC()); err != nil {
		t.Fatalf("create: %v", err)
	}

	removed, err := hs.RemoveMember("h1", "ghost")
	if err != nil {
		t.Fatalf("remove member: %v", err)
	}
	if removed {
		t.Error("expected false when removing a non-member")
	}
}

func TestHouseholdUpdateMemberRole(t *testing.T) {
	hs, us := setupHouseholdTestDB(t)
	mustCreateUser(t, us, "u1", "alice@example.com")
	if _, err := hs.CreateWithOwner("h1", "Smiths", "u1", time.Now().UTC()); err != nil {
		t.Fatalf("create: %v", err)
	}

	m, err := hs.UpdateMemberRole("h1", "u1", model.RoleEditor)
	if err != nil {
		t.Fatalf("update role: %v", err)
	}
	if m.Role != model.RoleEditor {
		t.Errorf("role = %q, want %q", m.Role, model.RoleEditor)
	}
}

func TestHouseholdListForUser(t *testing.T) {
	hs, us := setupHouseholdTestDB(t)
	mustCreateUser(t, us, "u1", "alice@example.com")
	now := time.Now().UTC()
	if _, err := hs.CreateWithOwner("h1", "Beach House", "u1", now); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := hs.CreateWithOwner("h2", "Apartment", "u1", now); err != nil {
		t.Fatalf("create: %v", err)
	}

	households, err := hs.ListForUser("u1")
	if err != nil {
		t.Fatalf("list for user: %v", err)
	}
	if len(households) != 2 {
		t.Fatalf("expected 2 households, got %d", len(households))
	}
	// Ordered by name
	if households[0].Name != "Apartment" {
		t.Errorf("first = %q, want %q", households[0].Name, "Apartment")
	}
}

func TestHouseholdMalformedRole(t *testing.T) {
	hs, us := setupHouseholdTestDB(t)
	mustCreateUser(t, us, "u1", "alice@example.com")
	if _, err := hs.CreateWithOwner("h1", "Smiths", "u1", time.Now().UTC()); err != nil {
		t.Fatalf("create: %v", err)
	}
	// The CHECK constraint rejects bad roles on write, so corrupt the row
	// with constraints off to reach the decoder's validation path.
	if _, err := hs.db.Exec(`PRAGMA ignore_check_constraints = ON`); err != nil {
		t.Skipf("cannot disable check constraints: %v", err)
	}
	if _, err := hs.db.Exec(
		`UPDATE household_members SET role = 'superuser' WHERE household_id = 'h1'`,
	); err != nil {
		t.Skipf("cannot corrupt row: %v", err)
	}

	_, err := hs.GetMember("h1", "u1")
	if err == nil {
		t.Fatal("expected malformed record error")
	}
}
