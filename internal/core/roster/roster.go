// Package roster models a project's membership list for pure lookups:
// roles, squads, and the reports-to link.
package roster

import (
	"slices"
	"sort"
	"time"
)

// Project role constants. This is the complete role catalog; escalation
// blocks may only reference these roles.
const (
	RoleAdmin  = "admin"
	RolePM     = "pm"
	RoleLead   = "lead"
	RoleMember = "member"
)

// Roles lists the role catalog in seniority order.
var Roles = []string{RoleAdmin, RolePM, RoleLead, RoleMember}

// IsKnownRole reports whether role is in the catalog.
func IsKnownRole(role string) bool {
	return slices.Contains(Roles, role)
}

// Member is one user's membership in a project.
type Member struct {
	UserID    string
	Role      string
	ReportsTo string // Empty when no manager is configured
	SquadIDs  []string
	Email     string
	JoinedAt  time.Time
}

// InSquad reports whether the member belongs to squadID.
func (m Member) InSquad(squadID string) bool {
	return slices.Contains(m.SquadIDs, squadID)
}

// Roster is an immutable, deterministically ordered member list.
// Members are ordered by JoinedAt, ties broken by UserID; every lookup that
// can match more than one member returns the first in this order.
type Roster struct {
	members []Member
	byUser  map[string]int
}

// New builds a Roster from members. The input slice is not retained.
func New(members []Member) *Roster {
	sorted := make([]Member, len(members))
	copy(sorted, members)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].JoinedAt.Equal(sorted[j].JoinedAt) {
			return sorted[i].JoinedAt.Before(sorted[j].JoinedAt)
		}
		return sorted[i].UserID < sorted[j].UserID
	})

	byUser := make(map[string]int, len(sorted))
	for i, m := range sorted {
		byUser[m.UserID] = i
	}
	return &Roster{members: sorted, byUser: byUser}
}

// Members returns all members in roster order.
func (r *Roster) Members() []Member {
	return r.members
}

// Len returns the number of members.
func (r *Roster) Len() int {
	return len(r.members)
}

// Get returns the member with userID.
func (r *Roster) Get(userID string) (Member, bool) {
	i, ok := r.byUser[userID]
	if !ok {
		return Member{}, false
	}
	return r.members[i], true
}

// Has reports whether userID is a member.
func (r *Roster) Has(userID string) bool {
	_, ok := r.byUser[userID]
	return ok
}

// WithRole returns the members holding role, in roster order.
func (r *Roster) WithRole(role string) []Member {
	var out []Member
	for _, m := range r.members {
		if m.Role == role {
			out = append(out, m)
		}
	}
	return out
}

// FirstWithRole returns the earliest-joined member holding role.
func (r *Roster) FirstWithRole(role string) (Member, bool) {
	for _, m := range r.members {
		if m.Role == role {
			return m, true
		}
	}
	return Member{}, false
}

// InSquad returns the members of squadID, in roster order.
func (r *Roster) InSquad(squadID string) []Member {
	var out []Member
	for _, m := range r.members {
		if m.InSquad(squadID) {
			out = append(out, m)
		}
	}
	return out
}
