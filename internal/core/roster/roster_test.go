package roster

import (
	"testing"
	"time"
)

func TestNew_OrdersByJoinedAtThenUserID(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := New([]Member{
		{UserID: "u3", Role: RolePM, JoinedAt: base.Add(time.Hour)},
		{UserID: "u2", Role: RolePM, JoinedAt: base},
		{UserID: "u1", Role: RolePM, JoinedAt: base},
	})

	got := r.Members()
	want := []string{"u1", "u2", "u3"}
	for i, id := range want {
		if got[i].UserID != id {
			t.Errorf("Members()[%d] = %q, want %q", i, got[i].UserID, id)
		}
	}

	first, ok := r.FirstWithRole(RolePM)
	if !ok || first.UserID != "u1" {
		t.Errorf("FirstWithRole(pm) = %q, %v, want u1, true", first.UserID, ok)
	}
}

func TestRoster_Lookups(t *testing.T) {
	r := New([]Member{
		{UserID: "a", Role: RoleAdmin, SquadIDs: []string{"s1"}},
		{UserID: "b", Role: RoleMember, SquadIDs: []string{"s1", "s2"}, ReportsTo: "a"},
		{UserID: "c", Role: RoleMember},
	})

	if !r.Has("b") || r.Has("zzz") {
		t.Error("Has returned wrong membership")
	}
	if m, _ := r.Get("b"); m.ReportsTo != "a" {
		t.Errorf("Get(b).ReportsTo = %q, want a", m.ReportsTo)
	}
	if n := len(r.WithRole(RoleMember)); n != 2 {
		t.Errorf("WithRole(member) = %d members, want 2", n)
	}
	if n := len(r.InSquad("s2")); n != 1 {
		t.Errorf("InSquad(s2) = %d members, want 1", n)
	}
	if _, ok := r.FirstWithRole(RolePM); ok {
		t.Error("FirstWithRole(pm) found a holder in a roster without one")
	}
}

func TestIsKnownRole(t *testing.T) {
	for _, role := range Roles {
		if !IsKnownRole(role) {
			t.Errorf("IsKnownRole(%q) = false", role)
		}
	}
	if IsKnownRole("owner") {
		t.Error("IsKnownRole(owner) = true")
	}
}
