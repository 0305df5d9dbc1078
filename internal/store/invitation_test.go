package store

import (
	"testing"
	"time"

	"github.com/ourhaus/ourhaus/internal/database"
	"github.com/ourhaus/ourhaus/internal/model"
)

func setupInvitationTestDB(t *testing.T) (*InvitationStore, *HouseholdStore, *UserStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewInvitationStore(db), NewHouseholdStore(db), NewUserStore(db)
}

func seedHousehold(t *testing.T, hs *HouseholdStore, us *UserStore) {
	t.Helper()
	mustCreateUser(t, us, "u1", "alice@example.com")
	mustCreateUser(t, us, "u2", "bob@example.com")
	if _, err := hs.CreateWithOwner("h1", "Smiths", "u1", time.Now().UTC()); err != nil {
		t.Fatalf("create household: %v", err)
	}
}

func TestInvitationCreate(t *testing.T) {
	is, hs, us := setupInvitationTestDB(t)
	seedHousehold(t, hs, us)

	now := time.Now().UTC()
	inv, err := is.Create("i1", "h1", "tok-1", "bob@x.com", model.RoleEditor, "u1", now)
	if err != nil {
		t.Fatalf("create invitation: %v", err)
	}
	if inv.Status != model.InvitationPending {
		t.Errorf("status = %q, want %q", inv.Status, model.InvitationPending)
	}
	wantExpiry := now.Add(InviteTTL)
	if got := inv.ExpiresAt.Sub(wantExpiry); got > time.Second || got < -time.Second {
		t.Errorf("expires_at = %v, want ~%v", inv.ExpiresAt, wantExpiry)
	}
}

func TestInvitationTokenUnique(t *testing.T) {
	is, hs, us := setupInvitationTestDB(t)
	seedHousehold(t, hs, us)

	now := time.Now().UTC()
	if _, err := is.Create("i1", "h1", "tok-1", "bob@x.com", model.RoleEditor, "u1", now); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := is.Create("i2", "h1", "tok-1", "carol@x.com", model.RoleViewer, "u1", now); err == nil {
		t.Fatal("expected error for duplicate token, got nil")
	}
}

func TestInvitationGetByToken(t *testing.T) {
	is, hs, us := setupInvitationTestDB(t)
	seedHousehold(t, hs, us)

	now := time.Now().UTC()
	if _, err := is.Create("i1", "h1", "tok-1", "bob@x.com", model.RoleEditor, "u1", now); err != nil {
		t.Fatalf("create: %v", err)
	}

	inv, err := is.GetByToken("tok-1")
	if err != nil {
		t.Fatalf("get by token: %v", err)
	}
	if inv == nil || inv.ID != "i1" {
		t.Fatalf("invitation = %+v, want i1", inv)
	}

	missing, err := is.GetByToken("nope")
	if err != nil {
		t.Fatalf("get missing token: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for unknown token")
	}
}

func TestInvitationAcceptConsumesOnce(t *testing.T) {
	is, hs, us := setupInvitationTestDB(t)
	seedHousehold(t, hs, us)

	now := time.Now().UTC()
	if _, err := is.Create("i1", "h1", "tok-1", "bob@example.com", model.RoleEditor, "u1", now); err != nil {
		t.Fatalf("create: %v", err)
	}

	ok, err := is.Accept("i1", "u2", now)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if !ok {
		t.Fatal("first accept should succeed")
	}

	// Member row exists with the invitation's role
	m, err := hs.GetMember("h1", "u2")
	if err != nil {
		t.Fatalf("get member: %v", err)
	}
	if m == nil || m.Role != model.RoleEditor {
		t.Fatalf("member = %+v, want u2 as editor", m)
	}

	// Second accept observes the consumed guard
	ok, err = is.Accept("i1", "u2", now)
	if err != nil {
		t.Fatalf("second accept: %v", err)
	}
	if ok {
		t.Fatal("second accept should report false")
	}

	inv, err := is.GetByID("i1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if inv.Status != model.InvitationAccepted {
		t.Errorf("status = %q, want %q", inv.Status, model.InvitationAccepted)
	}
	if inv.AcceptedBy == nil || *inv.AcceptedBy != "u2" {
		t.Errorf("accepted_by = %v, want u2", inv.AcceptedBy)
	}
}

func TestInvitationCancel(t *testing.T) {
	is, hs, us := setupInvitationTestDB(t)
	seedHousehold(t, hs, us)

	now := time.Now().UTC()
	if _, err := is.Create("i1", "h1", "tok-1", "bob@x.com", model.RoleViewer, "u1", now); err != nil {
		t.Fatalf("create: %v", err)
	}

	ok, err := is.Cancel("i1")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if !ok {
		t.Fatal("cancel should succeed for pending invitation")
	}

	// Terminal: accept after cancel fails
	ok, err = is.Accept("i1", "u2", now)
	if err != nil {
		t.Fatalf("accept after cancel: %v", err)
	}
	if ok {
		t.Fatal("accept after cancel should report false")
	}

	// Cancel is not repeatable either
	ok, err = is.Cancel("i1")
	if err != nil {
		t.Fatalf("second cancel: %v", err)
	}
	if ok {
		t.Fatal("second cancel should report false")
	}
}

func TestInvitationMarkExpired(t *testing.T) {
	is, hs, us := setupInvitationTestDB(t)
	seedHousehold(t, hs, us)

	issued := time.Now().UTC().Add(-8 * 24 * time.Hour)
	if _, err := is.Create("i1", "h1", "tok-old", "bob@x.com", model.RoleViewer, "u1", issued); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := is.Create("i2", "h1", "tok-new", "carol@x.com", model.RoleViewer, "u1", time.Now().UTC()); err != nil {
		t.Fatalf("create: %v", err)
	}

	n, err := is.MarkExpired(time.Now().UTC())
	if err != nil {
		t.Fatalf("mark expired: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 expired, got %d", n)
	}

	old, _ := is.GetByID("i1")
	if old.Status != model.InvitationExpired {
		t.Errorf("old status = %q, want %q", old.Status, model.InvitationExpired)
	}
	fresh, _ := is.GetByID("i2")
	if fresh.Status != model.InvitationPending {
		t.Errorf("fresh status = %q, want %q", fresh.Status, model.InvitationPending)
	}
}

func TestInvitationListByHousehold(t *testing.T) {
	is, hs, us := setupInvitationTestDB(t)
	seedHousehold(t, hs, us)

	now := time.Now().UTC()
	if _, err := is.Create("i1", "h1", "tok-1", "bob@x.com", model.RoleViewer, "u1", now.Add(-time.Hour)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := is.Create("i2", "h1", "tok-2", "carol@x.com", model.RoleEditor, "u1", now); err != nil {
		t.Fatalf("create: %v", err)
	}

	invs, err := is.ListByHousehold("h1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(invs) != 2 {
		t.Fatalf("expected 2 invitations, got %d", len(invs))
	}
	// Most recent first
	if invs[0].ID != "i2" {
		t.Errorf("first = %q, want i2", invs[0].ID)
	}
}
