// Package routing resolves an escalation step's abstract recipient rule to a
// concrete user id. Resolution is pure: the caller supplies the project roster.
package routing

import (
	"errors"
	"fmt"

	"github.com/example/pulse/internal/core/roster"
)

// Route types.
const (
	ReportsTo = "reports_to"
	Role      = "role"
	User      = "user"
)

// ErrNoRecipient is returned when a route yields no user.
var ErrNoRecipient = errors.New("no recipient")

// Route is the recipient rule of a step.
type Route struct {
	Type   string
	Role   string // For Role routes
	UserID string // For User routes
}

// Resolution is the outcome of a successful route resolution.
type Resolution struct {
	RecipientID string
	// FellBack is set when a reports_to route had no usable manager and the
	// project admin was chosen instead.
	FellBack bool
}

// Resolve maps route and the instance's target user to a recipient.
//
//   - user: the configured user id.
//   - role: the earliest-joined member holding the role.
//   - reports_to: the target's manager, one hop. A target without a manager,
//     or whose manager is no longer a project member, falls back to the
//     earliest-joined admin.
//
// When nothing matches the returned error wraps ErrNoRecipient.
func Resolve(route Route, targetUserID string, r *roster.Roster) (Resolution, error) {
	switch route.Type {
	case User:
		if route.UserID == "" {
			return Resolution{}, fmt.Errorf("%w: user route without user id", ErrNoRecipient)
		}
		return Resolution{RecipientID: route.UserID}, nil

	case Role:
		holder, ok := r.FirstWithRole(route.Role)
		if !ok {
			return Resolution{}, fmt.Errorf("%w: no member holds role %q", ErrNoRecipient, route.Role)
		}
		return Resolution{RecipientID: holder.UserID}, nil

	case ReportsTo:
		if target, ok := r.Get(targetUserID); ok && target.ReportsTo != "" && r.Has(target.ReportsTo) {
			return Resolution{RecipientID: target.ReportsTo}, nil
		}
		admin, ok := r.FirstWithRole(roster.RoleAdmin)
		if !ok {
			return Resolution{}, fmt.Errorf("%w: %s has no manager and the project has no admin", ErrNoRecipient, targetUserID)
		}
		return Resolution{RecipientID: admin.UserID, FellBack: true}, nil
	}

	return Resolution{}, fmt.Errorf("%w: unknown route type %q", ErrNoRecipient, route.Type)
}
