package membership

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ourhaus/ourhaus/internal/database"
	"github.com/ourhaus/ourhaus/internal/model"
	"github.com/ourhaus/ourhaus/internal/store"
)

type testEnv struct {
	svc         *Service
	users       *store.UserStore
	households  *store.HouseholdStore
	invitations *store.InvitationStore
	clock       *fakeClock
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func setupService(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	users := store.NewUserStore(db)
	households := store.NewHouseholdStore(db)
	invitations := store.NewInvitationStore(db)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	svc := NewService(users, households, invitations, logger, WithClock(clock.Now))
	return &testEnv{svc: svc, users: users, households: households, invitations: invitations, clock: clock}
}

func (e *testEnv) user(t *testing.T, id, email string) {
	t.Helper()
	if _, err := e.users.Create(id, email, "User "+id, ""); err != nil {
		t.Fatalf("create user %s: %v", id, err)
	}
}

func TestCreateHouseholdOwnerIsSoleMember(t *testing.T) {
	e := setupService(t)
	e.user(t, "u1", "alice@example.com")

	h, err := e.svc.CreateHousehold("u1", "  The Smiths  ")
	if err != nil {
		t.Fatalf("create household: %v", err)
	}
	if h.Name != "The Smiths" {
		t.Errorf("name = %q, want trimmed %q", h.Name, "The Smiths")
	}
	if h.PrimaryContactID != "u1" {
		t.Errorf("primary contact = %q, want u1", h.PrimaryContactID)
	}

	members, err := e.svc.ListMembers(h.ID, "u1")
	if err != nil {
		t.Fatalf("list members: %v", err)
	}
	if len(members) != 1 || members[0].UserID != "u1" || members[0].Role != model.RoleOwner {
		t.Fatalf("members = %+v, want exactly u1 as owner", members)
	}

	profile, err := e.users.GetByID("u1")
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if len(profile.HouseholdIDs) != 1 || profile.HouseholdIDs[0] != h.ID {
		t.Errorf("profile households = %v, want [%s]", profile.HouseholdIDs, h.ID)
	}
}

func TestCreateHouseholdValidation(t *testing.T) {
	e := setupService(t)
	e.user(t, "u1", "alice@example.com")

	if _, err := e.svc.CreateHousehold("u1", "   "); !errors.Is(err, ErrValidation) {
		t.Errorf("blank name: err = %v, want ErrValidation", err)
	}
	if _, err := e.svc.CreateHousehold("ghost", "Spooks"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown owner: err = %v, want ErrNotFound", err)
	}
}

func TestEnsureProfileIdempotent(t *testing.T) {
	e := setupService(t)

	p1, err := e.svc.EnsureProfile("u1", "alice@example.com", "Alice", "")
	if err != nil {
		t.Fatalf("first ensure: %v", err)
	}
	p2, err := e.svc.EnsureProfile("u1", "alice@example.com", "Alice Renamed", "")
	if err != nil {
		t.Fatalf("second ensure: %v", err)
	}
	if p2.DisplayName != p1.DisplayName {
		t.Errorf("second ensure changed display name to %q", p2.DisplayName)
	}
}

func inviteAndCreate(t *testing.T, e *testEnv) (householdID, token string) {
	t.Helper()
	e.user(t, "u1", "alice@example.com")
	e.user(t, "u2", "bob@example.com")
	h, err := e.svc.CreateHousehold("u1", "Smiths")
	if err != nil {
		t.Fatalf("create household: %v", err)
	}
	inv, err := e.svc.InviteMember(h.ID, "u1", "Bob@Example.com", model.RoleEditor)
	if err != nil {
		t.Fatalf("invite: %v", err)
	}
	if inv.Email != "bob@example.com" {
		t.Errorf("invitation email = %q, want lowercased", inv.Email)
	}
	return h.ID, inv.Token
}

func TestInvitePermissions(t *testing.T) {
	e := setupService(t)
	hID, tok := inviteAndCreate(t, e)

	if _, err := e.svc.AcceptInvitation(tok, "u2", "bob@example.com"); err != nil {
		t.Fatalf("accept: %v", err)
	}

	// u2 is an editor and may invite
	if _, err := e.svc.InviteMember(hID, "u2", "carol@example.com", model.RoleViewer); err != nil {
		t.Errorf("editor invite: %v", err)
	}

	// Demote u2 to viewer; viewers cannot invite
	if _, err := e.svc.UpdateMemberRole(hID, "u1", "u2", model.RoleViewer); err != nil {
		t.Fatalf("demote: %v", err)
	}
	if _, err := e.svc.InviteMember(hID, "u2", "dave@example.com", model.RoleViewer); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("viewer invite: err = %v, want ErrNotAuthorized", err)
	}

	// Non-members cannot invite
	e.user(t, "u9", "eve@example.com")
	if _, err := e.svc.InviteMember(hID, "u9", "frank@example.com", model.RoleViewer); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("outsider invite: err = %v, want ErrNotAuthorized", err)
	}
}

func TestAcceptInvitationJoins(t *testing.T) {
	e := setupService(t)
	hID, tok := inviteAndCreate(t, e)

	inv, err := e.svc.AcceptInvitation(tok, "u2", "BOB@example.com")
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if inv.Status != model.InvitationAccepted {
		t.Errorf("status = %q, want accepted", inv.Status)
	}
	if inv.AcceptedBy == nil || *inv.AcceptedBy != "u2" {
		t.Errorf("accepted_by = %v, want u2", inv.AcceptedBy)
	}

	m, err := e.households.GetMember(hID, "u2")
	if err != nil {
		t.Fatalf("get member: %v", err)
	}
	if m == nil || m.Role != model.RoleEditor {
		t.Fatalf("member = %+v, want u2 as editor", m)
	}
}

func TestAcceptInvalidToken(t *testing.T) {
	e := setupService(t)
	inviteAndCreate(t, e)

	if _, err := e.svc.AcceptInvitation("no-such-token", "u2", "bob@example.com"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestAcceptEmailMismatchLeavesPending(t *testing.T) {
	e := setupService(t)
	hID, tok := inviteAndCreate(t, e)
	e.user(t, "u3", "mallory@example.com")

	if _, err := e.svc.AcceptInvitation(tok, "u3", "mallory@example.com"); !errors.Is(err, ErrEmailMismatch) {
		t.Fatalf("err = %v, want ErrEmailMismatch", err)
	}

	// The invitation survives the mismatch and the right person can still use it
	inv, err := e.svc.AcceptInvitation(tok, "u2", "bob@example.com")
	if err != nil {
		t.Fatalf("accept after mismatch: %v", err)
	}
	if inv.Status != model.InvitationAccepted {
		t.Errorf("status = %q, want accepted", inv.Status)
	}
	if m, _ := e.households.GetMember(hID, "u3"); m != nil {
		t.Error("mismatched accepter must not become a member")
	}
}

func TestAcceptExpiryBoundary(t *testing.T) {
	e := setupService(t)
	_, tok := inviteAndCreate(t, e)

	// One hour before the 7-day mark: still good. Roll back after checking
	// by testing the late case on a second invitation instead.
	e.clock.Advance(7*24*time.Hour - time.Hour)
	if _, err := e.svc.AcceptInvitation(tok, "u2", "bob@example.com"); err != nil {
		t.Fatalf("accept just before expiry: %v", err)
	}
}

func TestAcceptAfterExpiry(t *testing.T) {
	e := setupService(t)
	hID, tok := inviteAndCreate(t, e)

	e.clock.Advance(8 * 24 * time.Hour)
	if _, err := e.svc.AcceptInvitation(tok, "u2", "bob@example.com"); !errors.Is(err, ErrExpired) {
		t.Fatalf("err = %v, want ErrExpired", err)
	}
	if m, _ := e.households.GetMember(hID, "u2"); m != nil {
		t.Error("expired accept must not add a member")
	}
}

func TestAcceptExactlyAtExpiry(t *testing.T) {
	e := setupService(t)
	_, tok := inviteAndCreate(t, e)

	e.clock.Advance(7 * 24 * time.Hour)
	if _, err := e.svc.AcceptInvitation(tok, "u2", "bob@example.com"); !errors.Is(err, ErrExpired) {
		t.Errorf("at the boundary: err = %v, want ErrExpired", err)
	}
}

func TestDoubleAcceptAddsAtMostOne(t *testing.T) {
	e := setupService(t)
	hID, tok := inviteAndCreate(t, e)

	if _, err := e.svc.AcceptInvitation(tok, "u2", "bob@example.com"); err != nil {
		t.Fatalf("first accept: %v", err)
	}
	if _, err := e.svc.AcceptInvitation(tok, "u2", "bob@example.com"); !errors.Is(err, ErrAlreadyUsed) {
		t.Errorf("second accept: err = %v, want ErrAlreadyUsed", err)
	}

	members, err := e.households.ListMembers(hID)
	if err != nil {
		t.Fatalf("list members: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("expected owner plus one accepter, got %d members", len(members))
	}
}

func TestConcurrentAcceptAddsAtMostOne(t *testing.T) {
	e := setupService(t)
	hID, tok := inviteAndCreate(t, e)

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.svc.AcceptInvitation(tok, "u2", "bob@example.com")
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
		} else if !errors.Is(err, ErrAlreadyUsed) {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if successes != 1 {
		t.Errorf("successful accepts = %d, want exactly 1", successes)
	}
	members, err := e.households.ListMembers(hID)
	if err != nil {
		t.Fatalf("list members: %v", err)
	}
	if len(members) != 2 {
		t.Errorf("members = %d, want 2", len(members))
	}
}

func TestCancelInvitation(t *testing.T) {
	e := setupService(t)
	hID, tok := inviteAndCreate(t, e)

	invs, err := e.svc.ListInvitations(hID, "u1")
	if err != nil {
		t.Fatalf("list invitations: %v", err)
	}
	if len(invs) != 1 {
		t.Fatalf("expected 1 invitation, got %d", len(invs))
	}

	// A stranger cannot cancel
	e.user(t, "u9", "eve@example.com")
	if err := e.svc.CancelInvitation(invs[0].ID, "u9"); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("stranger cancel: err = %v, want ErrNotAuthorized", err)
	}

	if err := e.svc.CancelInvitation(invs[0].ID, "u1"); err != nil {
		t.Fatalf("owner cancel: %v", err)
	}
	if _, err := e.svc.AcceptInvitation(tok, "u2", "bob@example.com"); !errors.Is(err, ErrAlreadyUsed) {
		t.Errorf("accept after cancel: err = %v, want ErrAlreadyUsed", err)
	}
}

func TestRemoveMemberRoundTrip(t *testing.T) {
	e := setupService(t)
	hID, tok := inviteAndCreate(t, e)
	if _, err := e.svc.AcceptInvitation(tok, "u2", "bob@example.com"); err != nil {
		t.Fatalf("accept: %v", err)
	}

	if err := e.svc.RemoveMember(hID, "u1", "u2"); err != nil {
		t.Fatalf("remove member: %v", err)
	}

	if m, _ := e.households.GetMember(hID, "u2"); m != nil {
		t.Error("removed member still present in household")
	}
	profile, err := e.users.GetByID("u2")
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	for _, id := range profile.HouseholdIDs {
		if id == hID {
			t.Error("removed household still listed on the profile")
		}
	}
}

func TestRemoveMemberSelfRemovalNeverMutates(t *testing.T) {
	e := setupService(t)
	hID, tok := inviteAndCreate(t, e)
	if _, err := e.svc.AcceptInvitation(tok, "u2", "bob@example.com"); err != nil {
		t.Fatalf("accept: %v", err)
	}

	if err := e.svc.RemoveMember(hID, "u1", "u1"); !errors.Is(err, ErrSelfRemoval) {
		t.Fatalf("err = %v, want ErrSelfRemoval", err)
	}
	members, err := e.households.ListMembers(hID)
	if err != nil {
		t.Fatalf("list members: %v", err)
	}
	if len(members) != 2 {
		t.Errorf("self-removal attempt changed membership, have %d members", len(members))
	}
}

func TestRemoveMemberAuthorization(t *testing.T) {
	e := setupService(t)
	hID, tok := inviteAndCreate(t, e)
	if _, err := e.svc.AcceptInvitation(tok, "u2", "bob@example.com"); err != nil {
		t.Fatalf("accept: %v", err)
	}

	// Editors cannot remove
	if err := e.svc.RemoveMember(hID, "u2", "u1"); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("editor remove: err = %v, want ErrNotAuthorized", err)
	}
	// Removing a non-member reports MemberNotFound
	if err := e.svc.RemoveMember(hID, "u1", "ghost"); !errors.Is(err, ErrMemberNotFound) {
		t.Errorf("missing target: err = %v, want ErrMemberNotFound", err)
	}
}

func TestUpdateMemberRole(t *testing.T) {
	e := setupService(t)
	hID, tok := inviteAndCreate(t, e)
	if _, err := e.svc.AcceptInvitation(tok, "u2", "bob@example.com"); err != nil {
		t.Fatalf("accept: %v", err)
	}

	m, err := e.svc.UpdateMemberRole(hID, "u1", "u2", model.RoleViewer)
	if err != nil {
		t.Fatalf("update role: %v", err)
	}
	if m.Role != model.RoleViewer {
		t.Errorf("role = %q, want viewer", m.Role)
	}

	if _, err := e.svc.UpdateMemberRole(hID, "u1", "u1", model.RoleViewer); !errors.Is(err, ErrValidation) {
		t.Errorf("self role change: err = %v, want ErrValidation", err)
	}
	if _, err := e.svc.UpdateMemberRole(hID, "u2", "u1", model.RoleViewer); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("non-owner role change: err = %v, want ErrNotAuthorized", err)
	}
	if _, err := e.svc.UpdateMemberRole(hID, "u1", "u2", model.Role("admin")); !errors.Is(err, ErrValidation) {
		t.Errorf("bad role: err = %v, want ErrValidation", err)
	}
}

func TestRenameHousehold(t *testing.T) {
	e := setupService(t)
	hID, tok := inviteAndCreate(t, e)
	if _, err := e.svc.AcceptInvitation(tok, "u2", "bob@example.com"); err != nil {
		t.Fatalf("accept: %v", err)
	}

	h, err := e.svc.RenameHousehold(hID, "u1", "  Oak Street  ")
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	if h.Name != "Oak Street" {
		t.Errorf("name = %q, want trimmed %q", h.Name, "Oak Street")
	}

	if _, err := e.svc.RenameHousehold(hID, "u2", "Nope"); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("editor rename: err = %v, want ErrNotAuthorized", err)
	}
	if _, err := e.svc.RenameHousehold(hID, "u1", "   "); !errors.Is(err, ErrValidation) {
		t.Errorf("blank rename: err = %v, want ErrValidation", err)
	}
}

func TestSetPrimaryContact(t *testing.T) {
	e := setupService(t)
	hID, tok := inviteAndCreate(t, e)
	if _, err := e.svc.AcceptInvitation(tok, "u2", "bob@example.com"); err != nil {
		t.Fatalf("accept: %v", err)
	}

	if err := e.svc.SetPrimaryContact(hID, "u1", "u2"); err != nil {
		t.Fatalf("set primary contact: %v", err)
	}
	h, err := e.svc.GetHousehold(hID, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if h.PrimaryContactID != "u2" {
		t.Errorf("primary contact = %q, want u2", h.PrimaryContactID)
	}

	if err := e.svc.SetPrimaryContact(hID, "u2", "u1"); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("editor set: err = %v, want ErrNotAuthorized", err)
	}
	if err := e.svc.SetPrimaryContact(hID, "u1", "ghost"); !errors.Is(err, ErrMemberNotFound) {
		t.Errorf("non-member contact: err = %v, want ErrMemberNotFound", err)
	}
}

func TestUpdatePreferences(t *testing.T) {
	e := setupService(t)
	e.user(t, "u1", "alice@example.com")

	p, err := e.svc.UpdatePreferences("u1", false, "dark")
	if err != nil {
		t.Fatalf("update preferences: %v", err)
	}
	if p.Preferences.Notifications {
		t.Error("notifications should be off")
	}
	if p.Preferences.Theme != "dark" {
		t.Errorf("theme = %q, want dark", p.Preferences.Theme)
	}

	if _, err := e.svc.UpdatePreferences("u1", true, "neon"); !errors.Is(err, ErrValidation) {
		t.Errorf("bad theme: err = %v, want ErrValidation", err)
	}
	if _, err := e.svc.UpdatePreferences("ghost", true, "auto"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown user: err = %v, want ErrNotFound", err)
	}
}

func TestSweepExpired(t *testing.T) {
	e := setupService(t)
	hID, _ := inviteAndCreate(t, e)

	e.clock.Advance(8 * 24 * time.Hour)
	n, err := e.svc.SweepExpired()
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 1 {
		t.Errorf("swept = %d, want 1", n)
	}

	invs, err := e.svc.ListInvitations(hID, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if invs[0].Status != model.InvitationExpired {
		t.Errorf("status = %q, want expired", invs[0].Status)
	}
}

// Full shared-household walkthrough: two users end up in one household, the
// second leaves again, and the first user's view stays consistent throughout.
func TestSharedHouseholdLifecycle(t *testing.T) {
	e := setupService(t)
	e.user(t, "u1", "alice@example.com")
	e.user(t, "u2", "bob@example.com")

	h, err := e.svc.CreateHousehold("u1", "Oak Street")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	inv, err := e.svc.InviteMember(h.ID, "u1", "bob@example.com", model.RoleEditor)
	if err != nil {
		t.Fatalf("invite: %v", err)
	}
	if _, err := e.svc.AcceptInvitation(inv.Token, "u2", "bob@example.com"); err != nil {
		t.Fatalf("accept: %v", err)
	}

	for _, uid := range []string{"u1", "u2"} {
		hs, err := e.svc.ListHouseholds(uid)
		if err != nil {
			t.Fatalf("list households for %s: %v", uid, err)
		}
		if len(hs) != 1 || hs[0].ID != h.ID {
			t.Fatalf("households for %s = %+v, want [%s]", uid, hs, h.ID)
		}
	}

	if err := e.svc.RemoveMember(h.ID, "u1", "u2"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	hs, err := e.svc.ListHouseholds("u2")
	if err != nil {
		t.Fatalf("list after removal: %v", err)
	}
	if len(hs) != 0 {
		t.Errorf("u2 should see no households after removal, got %d", len(hs))
	}
	members, err := e.svc.ListMembers(h.ID, "u1")
	if err != nil {
		t.Fatalf("list members: %v", err)
	}
	if len(members) != 1 || members[0].UserID != "u1" {
		t.Errorf("members = %+v, want only u1", members)
	}
}
